package usecase

import (
	"context"
	"fmt"
	"math"
	"sort"

	"telegram-virtual-number/internal/domain"
	"telegram-virtual-number/internal/domain/model"
	"telegram-virtual-number/internal/domain/ports/repository"

	"github.com/rs/zerolog"
)

// PricingDefaults are the global markup settings used when no rule (or a
// rule field) is set.
type PricingDefaults struct {
	MarginPercent float64
	RoundTo       int64
	MinMargin     int64
}

// RoundToStep rounds value up to the next multiple of step. A non-positive
// step rounds to the nearest integer.
func RoundToStep(value float64, step int64) int64 {
	if step <= 0 {
		return int64(math.Round(value))
	}
	s := float64(step)
	// the epsilon keeps exact multiples from being pushed a step up by
	// floating point noise
	return int64(math.Ceil(value/s-1e-9)) * step
}

// CalculatePrice applies margin, rounding and minimum margin to a vendor
// base amount. rule may be nil.
func CalculatePrice(base int64, rule *model.PricingRule, d PricingDefaults) int64 {
	margin, round, minMargin := d.MarginPercent, d.RoundTo, d.MinMargin
	if rule != nil {
		if rule.MarginPercent != nil {
			margin = *rule.MarginPercent
		}
		if rule.RoundTo != nil {
			round = *rule.RoundTo
		}
		if rule.MinMargin != nil {
			minMargin = *rule.MinMargin
		}
	}
	price := RoundToStep(float64(base)*(1+margin/100), round)
	if price-base < minMargin {
		price = RoundToStep(float64(base+minMargin), round)
	}
	return price
}

// PricingUseCase turns vendor base amounts into sell prices and manages the
// markup rules.
type PricingUseCase interface {
	// Price returns the sell price for base using the most specific active
	// rule for the combination.
	Price(ctx context.Context, service, country, operator string, base int64) (int64, error)
	// Apply prices a vendor quote.
	Apply(ctx context.Context, provider, service, country, operator string, q model.Quote) (model.PricedQuote, error)

	SetRule(ctx context.Context, rule model.PricingRule) error
	DeleteRule(ctx context.Context, key string) error
	// ListRules returns active rules, most specific first.
	ListRules(ctx context.Context) ([]model.PricingRule, error)
	Defaults() PricingDefaults
}

var _ PricingUseCase = (*pricingUC)(nil)

type pricingUC struct {
	rules    repository.PricingRuleRepository
	defaults PricingDefaults
	log      *zerolog.Logger
}

// NewPricingUseCase builds the pricing engine. rules may be nil, in which case
// only the defaults apply.
func NewPricingUseCase(rules repository.PricingRuleRepository, defaults PricingDefaults, logger *zerolog.Logger) PricingUseCase {
	if logger == nil {
		logger = nopLogger()
	}
	return &pricingUC{rules: rules, defaults: defaults, log: logger}
}

func (p *pricingUC) Defaults() PricingDefaults { return p.defaults }

func (p *pricingUC) Price(ctx context.Context, service, country, operator string, base int64) (int64, error) {
	if base < 0 {
		return 0, domain.ErrInvalidArgument
	}
	rule, err := p.resolve(ctx, service, country, operator)
	if err != nil {
		return 0, err
	}
	return CalculatePrice(base, rule, p.defaults), nil
}

func (p *pricingUC) Apply(ctx context.Context, provider, service, country, operator string, q model.Quote) (model.PricedQuote, error) {
	pq := model.PricedQuote{Quote: q, Provider: provider, ServiceID: service, CountryID: country, Operator: operator}
	if q.BaseAmount <= 0 {
		return pq, nil
	}
	price, err := p.Price(ctx, service, country, operator, q.BaseAmount)
	if err != nil {
		return pq, err
	}
	pq.SellPrice = price
	return pq, nil
}

func (p *pricingUC) resolve(ctx context.Context, service, country, operator string) (*model.PricingRule, error) {
	if p.rules == nil {
		return nil, nil
	}
	rules, err := p.rules.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list pricing rules: %w", err)
	}
	var best *model.PricingRule
	for i := range rules {
		r := &rules[i]
		if !r.Matches(service, country, operator) {
			continue
		}
		if best == nil || r.Rank() < best.Rank() {
			best = r
		}
	}
	return best, nil
}

func (p *pricingUC) SetRule(ctx context.Context, rule model.PricingRule) error {
	if p.rules == nil {
		return domain.ErrConfiguration
	}
	if !model.ValidScope(rule.Scope) {
		return fmt.Errorf("%w: scope %q", domain.ErrInvalidArgument, rule.Scope)
	}
	if rule.MarginPercent != nil && *rule.MarginPercent < 0 {
		return fmt.Errorf("%w: negative margin", domain.ErrInvalidArgument)
	}
	if rule.MinMargin != nil && *rule.MinMargin < 0 {
		return fmt.Errorf("%w: negative min margin", domain.ErrInvalidArgument)
	}
	if err := p.rules.Save(ctx, rule); err != nil {
		return err
	}
	p.log.Info().Str("rule", rule.Key()).Bool("active", rule.Active).Msg("pricing rule saved")
	return nil
}

func (p *pricingUC) DeleteRule(ctx context.Context, key string) error {
	if p.rules == nil {
		return domain.ErrConfiguration
	}
	return p.rules.Delete(ctx, key)
}

func (p *pricingUC) ListRules(ctx context.Context) ([]model.PricingRule, error) {
	if p.rules == nil {
		return nil, nil
	}
	rules, err := p.rules.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(rules, func(i, j int) bool {
		if rules[i].Rank() != rules[j].Rank() {
			return rules[i].Rank() < rules[j].Rank()
		}
		return rules[i].Key() < rules[j].Key()
	})
	return rules, nil
}
