package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"
	"github.com/tidwall/gjson"

	"telegram-virtual-number/internal/domain"
	"telegram-virtual-number/internal/infra/metrics"
)

// ResultCheck inspects a decoded vendor body and returns a
// *domain.VendorAPIError when the vendor reports a failure in-band.
type ResultCheck func(body gjson.Result) error

type Options struct {
	Provider        string
	BaseURL         string
	CredentialParam string // query parameter carrying the api key
	Credential      string
	Timeout         time.Duration
	MaxRetries      int
	Backoff         time.Duration
	Check           ResultCheck
	UserAgent       string

	// HTTPClient is shared by every call of this client; nil builds one.
	HTTPClient *http.Client
	Logger     *zerolog.Logger
}

// Client is the GET executor shared by a vendor adapter.
type Client struct {
	opts Options
	http *http.Client
	log  zerolog.Logger
}

func New(opts Options) *Client {
	if opts.CredentialParam == "" {
		opts.CredentialParam = "apikey"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.Backoff <= 0 {
		opts.Backoff = 600 * time.Millisecond
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "numbot/1.0"
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: opts.Timeout}
	}
	l := zerolog.Nop()
	if opts.Logger != nil {
		l = opts.Logger.With().Str("component", "transport").Str("provider", opts.Provider).Logger()
	}
	return &Client{opts: opts, http: hc, log: l}
}

// Provider is the vendor key this client talks to.
func (c *Client) Provider() string { return c.opts.Provider }

// Get calls {BaseURL}/{path}?{params}&{credential}, retrying transport and
// decode failures with exponential backoff. 4xx fails immediately. A vendor
// error reported in the body is returned as *domain.VendorAPIError.
func (c *Client) Get(ctx context.Context, path string, params url.Values) (gjson.Result, error) {
	if c.opts.Credential == "" {
		return gjson.Result{}, fmt.Errorf("%w: missing %s api key", domain.ErrConfiguration, c.opts.Provider)
	}
	method := params.Get("method")
	if method == "" {
		method = strings.TrimSuffix(path, ".php")
	}

	q := url.Values{}
	for k, v := range params {
		q[k] = v
	}
	q.Set(c.opts.CredentialParam, c.opts.Credential)
	endpoint := strings.TrimRight(c.opts.BaseURL, "/")
	if path != "" {
		endpoint += "/" + strings.TrimLeft(path, "/")
	}
	endpoint += "?" + q.Encode()

	start := time.Now()
	var (
		body    gjson.Result
		attempt int
	)
	b := retry.WithMaxRetries(uint64(c.opts.MaxRetries), retry.NewExponential(c.opts.Backoff))
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		if attempt > 0 {
			metrics.IncVendorRetry(c.opts.Provider, method)
		}
		attempt++
		res, err := c.do(ctx, endpoint, method)
		if err != nil {
			if isRetryable(err) {
				c.log.Warn().Err(err).Str("method", method).Int("attempt", attempt).Msg("vendor call failed, retrying")
				return retry.RetryableError(err)
			}
			return err
		}
		body = res
		return nil
	})
	if err != nil {
		metrics.ObserveVendorCall(c.opts.Provider, method, outcome(err), time.Since(start))
		return gjson.Result{}, err
	}

	if c.opts.Check != nil {
		if err := c.opts.Check(body); err != nil {
			var ve *domain.VendorAPIError
			if errors.As(err, &ve) && ve.Provider == "" {
				ve.Provider = c.opts.Provider
			}
			metrics.ObserveVendorCall(c.opts.Provider, method, outcome(err), time.Since(start))
			return gjson.Result{}, err
		}
	}
	metrics.ObserveVendorCall(c.opts.Provider, method, "ok", time.Since(start))
	return body, nil
}

func (c *Client) do(ctx context.Context, endpoint, method string) (gjson.Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.opts.UserAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return gjson.Result{}, &domain.TransportError{Provider: c.opts.Provider, Method: method, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return gjson.Result{}, &domain.TransportError{Provider: c.opts.Provider, Method: method, Err: err}
	}
	if resp.StatusCode >= 400 {
		return gjson.Result{}, &domain.TransportError{
			Provider:   c.opts.Provider,
			Method:     method,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("%s", truncate(string(raw), 200)),
		}
	}
	if !gjson.ValidBytes(raw) {
		return gjson.Result{}, &domain.DecodeError{Provider: c.opts.Provider, Method: method, Body: truncate(string(raw), 200)}
	}
	return gjson.ParseBytes(raw), nil
}

func isRetryable(err error) bool {
	var te *domain.TransportError
	if errors.As(err, &te) {
		return te.Retryable()
	}
	var de *domain.DecodeError
	return errors.As(err, &de)
}

func outcome(err error) string {
	var (
		ve *domain.VendorAPIError
		te *domain.TransportError
		de *domain.DecodeError
	)
	switch {
	case errors.As(err, &ve):
		return "api_error"
	case errors.As(err, &te):
		return "transport_error"
	case errors.As(err, &de):
		return "decode_error"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	}
	return "error"
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
