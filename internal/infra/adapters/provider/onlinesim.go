package provider

import (
	"context"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"

	"telegram-virtual-number/internal/config"
	"telegram-virtual-number/internal/domain"
	"telegram-virtual-number/internal/domain/model"
	"telegram-virtual-number/internal/domain/ports/adapter"
	"telegram-virtual-number/internal/infra/transport"
)

const KeyOnlineSim = "onlinesim"

const (
	opRepeat = "3"
	opClose  = "6"
	opCancel = "8"
)

var _ adapter.Provider = (*OnlineSim)(nil)

type onlineSimError struct {
	code int
	desc string
}

// onlineSimErrors maps the vendor's symbolic response values. Codes reuse the
// numeric space of the other vendor where the meaning is the same.
var onlineSimErrors = map[string]onlineSimError{
	"ACCOUNT_IDENTIFICATION_REQUIRED": {-903, "account identification required"},
	"ERROR_WRONG_KEY":                 {-901, "apikey not found"},
	"ERROR_NO_KEY":                    {-901, "apikey not found"},
	"ERROR_NO_SERVICE":                {-202, "parameters not found"},
	"NO_NUMBER":                       {-213, "no number available"},
	"WARNING_LOW_BALANCE":             {-205, "no balance"},
	"TZID_NO_NUMBER":                  {-304, "number id not found"},
	"NO_COMPLETE_TZID":                {-204, "this number is not active"},
	"ERROR_NO_OPERATIONS":             {-304, "number id not found"},
	"EXCEEDED_CONCURRENT_OPERATIONS":  {-214, "too many concurrent operations"},
}

var onlineSimServiceNames = map[string]string{
	"tg": "Telegram",
	"wa": "WhatsApp",
	"fb": "Facebook",
	"vk": "VKontakte",
	"go": "Google",
	"ig": "Instagram",
	"tw": "Twitter",
}

var onlineSimCountryNames = map[string]string{
	"7":   "Russia",
	"380": "Ukraine",
	"1":   "USA",
	"44":  "United Kingdom",
	"49":  "Germany",
	"90":  "Turkey",
	"98":  "Iran",
}

// OnlineSim talks to the per-operation *.php API.
type OnlineSim struct {
	display string
	cl      *transport.Client
}

func NewOnlineSim(cfg config.VendorConfig, display string, hc *http.Client, logger *zerolog.Logger) *OnlineSim {
	return &OnlineSim{
		display: display,
		cl: transport.New(transport.Options{
			Provider:   KeyOnlineSim,
			BaseURL:    cfg.BaseURL,
			Credential: cfg.APIKey,
			Timeout:    cfg.Timeout,
			MaxRetries: cfg.MaxRetries,
			Backoff:    cfg.Backoff,
			Check:      onlineSimCheck,
			HTTPClient: hc,
			Logger:     logger,
		}),
	}
}

// onlineSimCheck fails when the body carries an error field or a response
// value other than "1".
func onlineSimCheck(body gjson.Result) error {
	if !body.IsObject() {
		return nil
	}
	errField := field(body, "error", "error_msg", "errorCode")
	resp := body.Get("response")
	if !errField.Exists() && (!resp.Exists() || resp.String() == "1") {
		return nil
	}

	symbol := resp.String()
	if errField.Exists() {
		symbol = field(body, "error", "errorCode").String()
	}
	if e, ok := onlineSimErrors[strings.ToUpper(symbol)]; ok {
		return &domain.VendorAPIError{Provider: KeyOnlineSim, Code: e.code, Description: e.desc}
	}
	code := -1
	if n, err := strconv.Atoi(body.Get("errorCode").String()); err == nil && n != 0 {
		code = n
	}
	desc := field(body, "error_msg", "error").String()
	if desc == "" {
		desc = symbol
	}
	if desc == "" {
		desc = "unknown error"
	}
	return &domain.VendorAPIError{Provider: KeyOnlineSim, Code: code, Description: desc}
}

func (o *OnlineSim) Key() string         { return KeyOnlineSim }
func (o *OnlineSim) DisplayName() string { return o.display }
func (o *OnlineSim) Operators() []string { return []string{"any"} }

func (o *OnlineSim) Balance(ctx context.Context) (model.ProviderBalance, error) {
	body, err := o.cl.Get(ctx, "getBalance.php", nil)
	if err != nil {
		return model.ProviderBalance{}, err
	}
	bal := field(body, "balance", "BALANCE", "money").String()
	if bal == "" {
		bal = "0"
	}
	return model.ProviderBalance{Amount: bal, Currency: "RUB"}, nil
}

func tariffParams(extra url.Values) url.Values {
	p := url.Values{
		"locale_price": {"1"},
		"count":        {"200"},
		"page":         {"1"},
		"lang":         {"en"},
	}
	for k, v := range extra {
		p[k] = v
	}
	return p
}

// tariffs returns the country -> service map; some API variants misspell the
// key or nest it under "data".
func (o *OnlineSim) tariffs(ctx context.Context, extra url.Values) (gjson.Result, error) {
	body, err := o.cl.Get(ctx, "getTariffs.php", tariffParams(extra))
	if err != nil {
		return gjson.Result{}, err
	}
	return field(body, "tariffs", "tarifs", "data"), nil
}

func serviceName(code string) string {
	if n, ok := onlineSimServiceNames[code]; ok {
		return n
	}
	return strings.ToUpper(code)
}

func countryName(id string) string {
	if n, ok := onlineSimCountryNames[id]; ok {
		return n
	}
	return "Country " + id
}

func collectServices(svs gjson.Result, seen map[string]bool, out []model.Service) []model.Service {
	if !svs.IsObject() {
		return out
	}
	svs.ForEach(func(code, _ gjson.Result) bool {
		c := code.String()
		if seen[c] {
			return true
		}
		seen[c] = true
		name := serviceName(c)
		out = append(out, model.Service{ID: c, Name: name, NameEn: name, Active: true})
		return true
	})
	return out
}

func (o *OnlineSim) ListServices(ctx context.Context) ([]model.Service, error) {
	t, err := o.tariffs(ctx, nil)
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	var out []model.Service
	t.ForEach(func(_, svs gjson.Result) bool {
		out = collectServices(svs, seen, out)
		return true
	})
	if len(out) == 0 {
		// the global listing is empty on some accounts; probe common countries
		for _, c := range []string{"7", "1", "44"} {
			t2, err := o.tariffs(ctx, url.Values{"country": {c}})
			if err != nil {
				continue
			}
			out = collectServices(t2.Get(c), seen, out)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NameEn < out[j].NameEn })
	return out, nil
}

func (o *OnlineSim) ListCountries(ctx context.Context) ([]model.Country, error) {
	t, err := o.tariffs(ctx, nil)
	if err != nil {
		return nil, err
	}
	var out []model.Country
	t.ForEach(func(key, _ gjson.Result) bool {
		id := key.String()
		name := countryName(id)
		out = append(out, model.Country{ID: id, Name: name, NameEn: name, Active: true})
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].NameEn < out[j].NameEn })
	return out, nil
}

// Quote ignores operator; OnlineSim has no operator granularity.
func (o *OnlineSim) Quote(ctx context.Context, service, country, _ string) (model.Quote, error) {
	t, err := o.tariffs(ctx, url.Values{"country": {country}, "filter_service": {service}})
	if err != nil {
		return model.Quote{}, err
	}
	ent := t.Get(country).Get(service)
	amount := field(ent, "cost", "price")
	if !truthy(amount) {
		return model.ZeroQuote(), nil
	}
	return model.Quote{
		BaseAmount:     amount.Int(),
		Available:      int(field(ent, "count", "numbers").Int()),
		RepeatCapable:  true,
		ValidityWindow: model.DefaultValidityWindow,
	}, nil
}

func (o *OnlineSim) Buy(ctx context.Context, service, country, _ string, price *int64) (model.Purchase, error) {
	body, err := o.cl.Get(ctx, "getNum.php", url.Values{
		"service": {service},
		"country": {country},
		"lang":    {"en"},
	})
	if err != nil {
		return model.Purchase{}, err
	}
	tzid := field(body, "tzid", "id").String()
	if tzid == "" {
		return model.Purchase{}, &domain.DecodeError{Provider: KeyOnlineSim, Method: "getNum", Body: body.Raw}
	}
	var amount int64
	if price != nil {
		amount = *price
	}
	return model.Purchase{
		ID:             tzid,
		PhoneNumber:    FormatPhone(field(body, "number", "NUMBER").String(), ""),
		Amount:         amount,
		RepeatCapable:  true,
		ValidityWindow: model.DefaultValidityWindow,
	}, nil
}

// statusFromMessage infers the order status from free-form vendor text.
func statusFromMessage(code, msg string) model.OrderStatus {
	msg = strings.ToLower(msg)
	switch {
	case code != "":
		return model.OrderStatusCodeReceived
	case strings.Contains(msg, "over"), strings.Contains(msg, "complete"), strings.Contains(msg, "finish"):
		return model.OrderStatusCompleted
	case strings.Contains(msg, "cancel"), strings.Contains(msg, "ban"):
		return model.OrderStatusCanceled
	case strings.Contains(msg, "again"):
		return model.OrderStatusWaitingCodeAgain
	}
	return model.OrderStatusWaitingCode
}

func (o *OnlineSim) Status(ctx context.Context, id string) (model.StatusResult, error) {
	body, err := o.cl.Get(ctx, "getState.php", url.Values{"tzid": {id}})
	if err != nil {
		return model.StatusResult{}, err
	}
	item := body
	switch {
	case body.IsArray():
		item = body.Get("0")
	case body.Get("state").IsArray():
		item = body.Get("state.0")
	}
	code := item.Get("code").String()
	msg := strings.ToLower(field(item, "msg", "status").String())
	return model.StatusResult{Status: statusFromMessage(code, msg), Code: code, Description: msg}, nil
}

func (o *OnlineSim) operation(ctx context.Context, id, op string) (model.ActionResult, error) {
	body, err := o.cl.Get(ctx, "setOperation.php", url.Values{"tzid": {id}, "op": {op}})
	if err != nil {
		return model.ActionResult{}, err
	}
	return model.ActionResult{Accepted: true, Description: body.Raw}, nil
}

func (o *OnlineSim) Cancel(ctx context.Context, id string) (model.ActionResult, error) {
	return o.operation(ctx, id, opCancel)
}

// Ban shares the cancel operation; the vendor has no separate ban.
func (o *OnlineSim) Ban(ctx context.Context, id string) (model.ActionResult, error) {
	return o.operation(ctx, id, opCancel)
}

func (o *OnlineSim) Repeat(ctx context.Context, id string) (model.ActionResult, error) {
	return o.operation(ctx, id, opRepeat)
}

func (o *OnlineSim) Close(ctx context.Context, id string) (model.ActionResult, error) {
	return o.operation(ctx, id, opClose)
}
