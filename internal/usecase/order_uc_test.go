//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"telegram-virtual-number/internal/domain"
	"telegram-virtual-number/internal/domain/model"
	"telegram-virtual-number/internal/usecase"
)

type orderFixture struct {
	uc       usecase.OrderUseCase
	provider *MockProvider
	wallet   usecase.WalletUseCase
	orders   *MockOrderRepo
	pollers  *MockPollers
	notifier *MockNotifier
	locker   *MockLocker
}

func newOrderFixture(t *testing.T) *orderFixture {
	t.Helper()
	prov := &MockProvider{
		KeyValue: "numberland",
		QuoteFunc: func(ctx context.Context, s, c, o string) (model.Quote, error) {
			return model.Quote{BaseAmount: 10000, Available: 5, RepeatCapable: true, ValidityWindow: 20 * time.Minute}, nil
		},
		BuyFunc: func(ctx context.Context, s, c, o string, price *int64) (model.Purchase, error) {
			if price == nil || *price != 10000 {
				t.Errorf("buy must pin the quoted base amount, got %v", price)
			}
			return model.Purchase{ID: "n1", PhoneNumber: "+989121234567", Amount: 10000, RepeatCapable: true, ValidityWindow: 20 * time.Minute}, nil
		},
	}
	notifier := &MockNotifier{}
	wallet := usecase.NewWalletUseCase(NewMockWalletRepo(), NewMockTopUpRepo(), notifier, usecase.WalletSettings{}, newTestLogger())
	pricing := usecase.NewPricingUseCase(nil, usecase.PricingDefaults{MarginPercent: 20, RoundTo: 100}, newTestLogger())
	f := &orderFixture{
		provider: prov,
		wallet:   wallet,
		orders:   NewMockOrderRepo(),
		pollers:  &MockPollers{},
		notifier: notifier,
		locker:   NewMockLocker(),
	}
	f.uc = usecase.NewOrderUseCase(NewMockRegistry(prov), pricing, wallet, f.orders, f.locker, f.pollers, notifier,
		usecase.PollSettings{Interval: time.Second, Grace: time.Hour}, newTestLogger())
	return f
}

func (f *orderFixture) buy(userID int64) (*model.Order, error) {
	return f.uc.Purchase(context.Background(), usecase.PurchaseRequest{
		UserID: userID, Provider: "numberland", ServiceID: "tg", CountryID: "98", Operator: "any",
	})
}

func TestPurchase_Success(t *testing.T) {
	ctx := context.Background()
	f := newOrderFixture(t)
	_, _ = f.wallet.Credit(ctx, 1, 15000, "seed")

	o, err := f.buy(1)
	if err != nil {
		t.Fatalf("Purchase: %v", err)
	}
	if o.SellPrice != 12000 || o.Status != model.OrderStatusWaitingCode || o.PhoneNumber != "+989121234567" {
		t.Fatalf("unexpected order %+v", o)
	}
	if bal, _ := f.wallet.Balance(ctx, 1); bal != 3000 {
		t.Fatalf("expected balance 3000, got %d", bal)
	}
	if got, err := f.orders.GetActive(ctx, 1, "numberland", "n1"); err != nil || got.SellPrice != 12000 {
		t.Fatalf("order must be active: %+v %v", got, err)
	}
	if ttl := f.orders.TTLs["numberland:n1"]; ttl != 20*time.Minute+time.Hour {
		t.Fatalf("active ttl must be window+grace, got %v", ttl)
	}
	hist, _ := f.uc.History(ctx, 1, 10)
	if len(hist) != 1 {
		t.Fatalf("expected one history entry, got %d", len(hist))
	}
	if len(f.pollers.Calls) != 1 || f.pollers.Calls[0] != "replace:numberland:n1" {
		t.Fatalf("poller must be started, got %v", f.pollers.Calls)
	}
	if len(f.locker.held) != 0 {
		t.Fatal("purchase lock must be released")
	}
}

func TestPurchase_InsufficientFundsNeverBuys(t *testing.T) {
	f := newOrderFixture(t)
	bought := false
	f.provider.BuyFunc = func(ctx context.Context, s, c, o string, price *int64) (model.Purchase, error) {
		bought = true
		return model.Purchase{}, nil
	}
	if _, err := f.buy(1); !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if bought {
		t.Fatal("vendor must not be charged when the wallet is short")
	}
}

func TestPurchase_VendorFailureRefunds(t *testing.T) {
	ctx := context.Background()
	f := newOrderFixture(t)
	_, _ = f.wallet.Credit(ctx, 1, 15000, "seed")
	f.provider.BuyFunc = func(ctx context.Context, s, c, o string, price *int64) (model.Purchase, error) {
		return model.Purchase{}, &domain.VendorAPIError{Provider: "numberland", Code: -205, Description: "no balance"}
	}

	_, err := f.buy(1)
	if vErr, ok := domain.IsVendorError(err); !ok || vErr.Code != -205 {
		t.Fatalf("expected vendor error -205, got %v", err)
	}
	if bal, _ := f.wallet.Balance(ctx, 1); bal != 15000 {
		t.Fatalf("debit must be refunded, balance %d", bal)
	}
	if active, _ := f.uc.ActiveOrders(ctx, 1); len(active) != 0 {
		t.Fatalf("no order may be persisted, got %d", len(active))
	}
	if len(f.pollers.Calls) != 0 {
		t.Fatal("no poller may start")
	}
	hist, _ := f.wallet.History(ctx, 1, 10)
	if len(hist) != 3 || hist[0].Type != model.TransactionCredit {
		t.Fatalf("expected seed, debit and refund lines, got %+v", hist)
	}
}

func TestPurchase_ZeroQuote(t *testing.T) {
	ctx := context.Background()
	f := newOrderFixture(t)
	_, _ = f.wallet.Credit(ctx, 1, 15000, "seed")
	f.provider.QuoteFunc = func(ctx context.Context, s, c, o string) (model.Quote, error) {
		return model.ZeroQuote(), nil
	}
	if _, err := f.buy(1); !errors.Is(err, domain.ErrNoQuote) {
		t.Fatalf("expected ErrNoQuote, got %v", err)
	}
	if bal, _ := f.wallet.Balance(ctx, 1); bal != 15000 {
		t.Fatalf("balance must be untouched, got %d", bal)
	}
}

func TestPurchase_InFlightLock(t *testing.T) {
	ctx := context.Background()
	f := newOrderFixture(t)
	if _, err := f.locker.TryLock(ctx, "lock:purchase:1", time.Minute); err != nil {
		t.Fatal(err)
	}
	if _, err := f.buy(1); !errors.Is(err, domain.ErrPurchaseInFlight) {
		t.Fatalf("expected ErrPurchaseInFlight, got %v", err)
	}
}

func TestPurchase_UnknownProvider(t *testing.T) {
	f := newOrderFixture(t)
	_, err := f.uc.Purchase(context.Background(), usecase.PurchaseRequest{UserID: 1, Provider: "smsman", ServiceID: "tg", CountryID: "98"})
	if !errors.Is(err, domain.ErrUnknownProvider) {
		t.Fatalf("expected ErrUnknownProvider, got %v", err)
	}
}

func TestOrderActions(t *testing.T) {
	ctx := context.Background()

	t.Run("cancel removes the order and its poller", func(t *testing.T) {
		f := newOrderFixture(t)
		_, _ = f.wallet.Credit(ctx, 1, 15000, "seed")
		if _, err := f.buy(1); err != nil {
			t.Fatal(err)
		}
		f.provider.StatusFunc = func(ctx context.Context, id string) (model.StatusResult, error) {
			return model.StatusResult{Status: model.OrderStatusCanceled}, nil
		}
		o, err := f.uc.Cancel(ctx, 1, "numberland", "n1")
		if err != nil {
			t.Fatal(err)
		}
		if o.Status != model.OrderStatusCanceled {
			t.Fatalf("expected canceled, got %s", o.Status)
		}
		if _, err := f.orders.GetActive(ctx, 1, "numberland", "n1"); !errors.Is(err, domain.ErrNotFound) {
			t.Fatal("canceled order must leave the active set")
		}
		if last := f.pollers.Calls[len(f.pollers.Calls)-1]; last != "remove:numberland:n1" {
			t.Fatalf("poller must be removed, got %v", f.pollers.Calls)
		}
	})

	t.Run("repeat restarts the poller", func(t *testing.T) {
		f := newOrderFixture(t)
		_, _ = f.wallet.Credit(ctx, 1, 15000, "seed")
		if _, err := f.buy(1); err != nil {
			t.Fatal(err)
		}
		f.provider.StatusFunc = func(ctx context.Context, id string) (model.StatusResult, error) {
			return model.StatusResult{Status: model.OrderStatusWaitingCodeAgain}, nil
		}
		o, err := f.uc.Repeat(ctx, 1, "numberland", "n1")
		if err != nil {
			t.Fatal(err)
		}
		if o.Status != model.OrderStatusWaitingCodeAgain {
			t.Fatalf("expected waiting_code_again, got %s", o.Status)
		}
		if len(f.pollers.Calls) != 2 || f.pollers.Calls[1] != "replace:numberland:n1" {
			t.Fatalf("poller must be replaced, got %v", f.pollers.Calls)
		}
	})

	t.Run("status re-read failure falls back to the action outcome", func(t *testing.T) {
		f := newOrderFixture(t)
		_, _ = f.wallet.Credit(ctx, 1, 15000, "seed")
		if _, err := f.buy(1); err != nil {
			t.Fatal(err)
		}
		f.provider.StatusFunc = func(ctx context.Context, id string) (model.StatusResult, error) {
			return model.StatusResult{}, &domain.TransportError{Provider: "numberland", Method: "checkstatus", StatusCode: 502}
		}
		o, err := f.uc.Close(ctx, 1, "numberland", "n1")
		if err != nil {
			t.Fatal(err)
		}
		if o.Status != model.OrderStatusCompleted {
			t.Fatalf("expected completed, got %s", o.Status)
		}
		if _, err := f.uc.Refresh(ctx, 1, "numberland", "n1"); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("finished order is no longer actionable, got %v", err)
		}
	})

	t.Run("rejected action surfaces a vendor error", func(t *testing.T) {
		f := newOrderFixture(t)
		_, _ = f.wallet.Credit(ctx, 1, 15000, "seed")
		if _, err := f.buy(1); err != nil {
			t.Fatal(err)
		}
		f.provider.ActionFunc = func(ctx context.Context, action, id string) (model.ActionResult, error) {
			return model.ActionResult{Accepted: false, Description: "this number is not active"}, nil
		}
		if _, err := f.uc.Ban(ctx, 1, "numberland", "n1"); err == nil {
			t.Fatal("expected an error")
		} else if _, ok := domain.IsVendorError(err); !ok {
			t.Fatalf("expected vendor error, got %v", err)
		}
	})

	t.Run("foreign order is not found", func(t *testing.T) {
		f := newOrderFixture(t)
		if _, err := f.uc.Cancel(ctx, 2, "numberland", "n1"); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}
