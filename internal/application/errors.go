package application

import (
	"errors"
	"strconv"

	"telegram-virtual-number/internal/domain"
	"telegram-virtual-number/internal/infra/i18n"
)

// errPurchase marks failures of the confirm step so they render with the
// purchase prefix.
var errPurchase = errors.New("purchase failed")

var errorKeys = []struct {
	err error
	key string
}{
	{domain.ErrInsufficientFunds, "err.insufficient_funds"},
	{domain.ErrNotFound, "err.not_found"},
	{domain.ErrAlreadyProcessed, "err.already_processed"},
	{domain.ErrPermissionDenied, "err.permission_denied"},
	{domain.ErrInvalidArgument, "err.invalid_argument"},
	{domain.ErrUnknownProvider, "err.unknown_provider"},
	{domain.ErrConfiguration, "err.configuration"},
	{domain.ErrPurchaseInFlight, "err.purchase_in_flight"},
	{domain.ErrRateLimited, "err.rate_limited"},
	{domain.ErrNoQuote, "err.no_quote"},
}

// LocalizeError turns err into a user-facing sentence. Vendor codes with a
// dedicated key win; otherwise the vendor's own description is shown.
func LocalizeError(tr *i18n.Translator, err error) string {
	if err == nil {
		return ""
	}
	if v, ok := domain.IsVendorError(err); ok {
		key := "err.vendor." + strconv.Itoa(v.Code)
		if tr.Has(key) {
			return tr.T(key)
		}
		if v.Description != "" {
			return v.Description
		}
		return tr.T("err.unknown")
	}
	for _, e := range errorKeys {
		if errors.Is(err, e.err) {
			return tr.T(e.key)
		}
	}
	if domain.IsTransient(err) {
		return tr.T("err.vendor_unavailable")
	}
	return tr.T("err.unknown")
}
