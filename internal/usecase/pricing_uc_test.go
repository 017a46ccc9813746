//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"testing"

	"telegram-virtual-number/internal/domain"
	"telegram-virtual-number/internal/domain/model"
	"telegram-virtual-number/internal/usecase"
)

func f64(v float64) *float64 { return &v }
func i64(v int64) *int64     { return &v }

func TestCalculatePrice_Scenarios(t *testing.T) {
	cases := []struct {
		name string
		base int64
		d    usecase.PricingDefaults
		want int64
	}{
		{"markup 20 round 100", 10000, usecase.PricingDefaults{MarginPercent: 20, RoundTo: 100}, 12000},
		{"min margin wins", 10000, usecase.PricingDefaults{MarginPercent: 5, RoundTo: 1000, MinMargin: 2000}, 12000},
		{"rounds up", 10010, usecase.PricingDefaults{MarginPercent: 0, RoundTo: 100}, 10100},
		{"no rounding", 999, usecase.PricingDefaults{MarginPercent: 10}, 1099},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := usecase.CalculatePrice(tc.base, nil, tc.d); got != tc.want {
				t.Fatalf("CalculatePrice(%d) = %d, want %d", tc.base, got, tc.want)
			}
		})
	}
}

func TestCalculatePrice_Bounds(t *testing.T) {
	settings := []usecase.PricingDefaults{
		{MarginPercent: 20, RoundTo: 100},
		{MarginPercent: 5, RoundTo: 1000, MinMargin: 2000},
		{MarginPercent: 0, RoundTo: 500, MinMargin: 1},
		{MarginPercent: 12.5, RoundTo: 50, MinMargin: 300},
	}
	for _, d := range settings {
		for base := int64(1); base < 200000; base += 997 {
			got := usecase.CalculatePrice(base, nil, d)
			if got < base+d.MinMargin {
				t.Fatalf("%+v base=%d: price %d below base+min", d, base, got)
			}
			if d.RoundTo > 0 && got%d.RoundTo != 0 {
				t.Fatalf("%+v base=%d: price %d not a multiple of %d", d, base, got, d.RoundTo)
			}
		}
	}
}

func TestRoundToStep_Idempotent(t *testing.T) {
	for _, step := range []int64{0, 1, 10, 100, 1000} {
		for v := 0.0; v < 50000; v += 123.4 {
			once := usecase.RoundToStep(v, step)
			if twice := usecase.RoundToStep(float64(once), step); twice != once {
				t.Fatalf("step %d: RoundToStep not idempotent for %v: %d then %d", step, v, once, twice)
			}
		}
	}
	if got := usecase.RoundToStep(12000, 100); got != 12000 {
		t.Fatalf("exact multiple must stay, got %d", got)
	}
	if got := usecase.RoundToStep(10.4, 0); got != 10 {
		t.Fatalf("non-positive step rounds to nearest, got %d", got)
	}
}

func TestPricingUseCase_MostSpecificRuleWins(t *testing.T) {
	ctx := context.Background()
	rules := NewMockRuleRepo()
	uc := usecase.NewPricingUseCase(rules, usecase.PricingDefaults{MarginPercent: 20, RoundTo: 100}, newTestLogger())

	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatal(err)
		}
	}
	must(uc.SetRule(ctx, model.PricingRule{Scope: model.ScopeGlobal, MarginPercent: f64(30), Active: true}))
	must(uc.SetRule(ctx, model.PricingRule{Scope: model.ScopeService, ServiceID: "tg", MarginPercent: f64(50), Active: true}))
	must(uc.SetRule(ctx, model.PricingRule{Scope: model.ScopeCombo, ServiceID: "tg", CountryID: "98", MarginPercent: f64(10), RoundTo: i64(1000), Active: true}))
	must(uc.SetRule(ctx, model.PricingRule{Scope: model.ScopeCountry, CountryID: "7", MarginPercent: f64(90), Active: false}))

	check := func(service, country string, want int64) {
		t.Helper()
		got, err := uc.Price(ctx, service, country, "any", 10000)
		if err != nil {
			t.Fatalf("Price: %v", err)
		}
		if got != want {
			t.Fatalf("Price(%s,%s) = %d, want %d", service, country, got, want)
		}
	}
	check("tg", "98", 11000) // combo
	check("tg", "1", 15000)  // service
	check("wa", "7", 13000)  // inactive country rule skipped, global applies

	listed, err := uc.ListRules(ctx)
	must(err)
	if len(listed) != 3 || listed[0].Scope != model.ScopeCombo || listed[2].Scope != model.ScopeGlobal {
		t.Fatalf("unexpected rule order: %+v", listed)
	}

	if err := uc.SetRule(ctx, model.PricingRule{Scope: "bogus"}); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestPricingUseCase_ApplyZeroQuote(t *testing.T) {
	uc := usecase.NewPricingUseCase(nil, usecase.PricingDefaults{MarginPercent: 20, RoundTo: 100}, nil)
	pq, err := uc.Apply(context.Background(), "numberland", "tg", "98", "any", model.ZeroQuote())
	if err != nil {
		t.Fatal(err)
	}
	if pq.SellPrice != 0 || pq.ValidityWindow != model.DefaultValidityWindow {
		t.Fatalf("zero quote must stay unpriced: %+v", pq)
	}
}
