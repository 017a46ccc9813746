package domain

import (
	"errors"
	"fmt"
)

// VendorAPIError is a failure reported by the vendor itself (negative RESULT,
// error_msg, ...). It is terminal for the call that produced it.
type VendorAPIError struct {
	Provider    string
	Code        int
	Description string
}

func (e *VendorAPIError) Error() string {
	return fmt.Sprintf("%s api error %d: %s", e.Provider, e.Code, e.Description)
}

// TransportError covers network failures and non-2xx HTTP responses.
// StatusCode is 0 for network-level failures.
type TransportError struct {
	Provider   string
	Method     string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s %s: http %d", e.Provider, e.Method, e.StatusCode)
	}
	return fmt.Sprintf("%s %s: %v", e.Provider, e.Method, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Retryable reports whether another attempt could succeed (network or 5xx).
func (e *TransportError) Retryable() bool {
	return e.StatusCode == 0 || e.StatusCode >= 500
}

// DecodeError is returned when a vendor response is not valid JSON.
type DecodeError struct {
	Provider string
	Method   string
	Body     string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s %s: invalid json response: %q", e.Provider, e.Method, e.Body)
}

// IsVendorError reports whether err carries a vendor-reported failure and
// returns it.
func IsVendorError(err error) (*VendorAPIError, bool) {
	var v *VendorAPIError
	if errors.As(err, &v) {
		return v, true
	}
	return nil, false
}

// IsTransient reports whether err is a transport or decode failure that a
// poller may swallow and retry on its next tick.
func IsTransient(err error) bool {
	var te *TransportError
	if errors.As(err, &te) {
		return true
	}
	var de *DecodeError
	return errors.As(err, &de)
}
