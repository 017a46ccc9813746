package adapter

import (
	"context"

	"telegram-virtual-number/internal/domain/model"
)

// Provider is the vendor-agnostic contract every virtual-number backend
// adapter implements. Errors are *domain.VendorAPIError for vendor-reported
// failures, *domain.TransportError / *domain.DecodeError for transport
// failures, and domain.ErrConfiguration when the credential is missing.
type Provider interface {
	Key() string
	DisplayName() string

	// Catalog
	Balance(ctx context.Context) (model.ProviderBalance, error)
	ListServices(ctx context.Context) ([]model.Service, error)
	ListCountries(ctx context.Context) ([]model.Country, error)
	// Quote returns model.ZeroQuote() when the vendor has no usable entry.
	Quote(ctx context.Context, service, country, operator string) (model.Quote, error)

	// Temporary number lifecycle
	Buy(ctx context.Context, service, country, operator string, price *int64) (model.Purchase, error)
	Status(ctx context.Context, id string) (model.StatusResult, error)
	Cancel(ctx context.Context, id string) (model.ActionResult, error)
	Ban(ctx context.Context, id string) (model.ActionResult, error)
	Repeat(ctx context.Context, id string) (model.ActionResult, error)
	Close(ctx context.Context, id string) (model.ActionResult, error)
}

// ProviderRegistry resolves vendor keys to adapters. The enabled set and the
// display names come from configuration.
type ProviderRegistry interface {
	Get(key string) (Provider, error)
	Enabled() []string
	DisplayName(key string) string
	Default() string
}

// OperatorLister is implemented by providers that expose a fixed set of
// operator choices. Providers without it accept "any" only.
type OperatorLister interface {
	Operators() []string
}
