package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"

	"telegram-virtual-number/internal/config"
	"telegram-virtual-number/internal/domain"
	"telegram-virtual-number/internal/domain/model"
	"telegram-virtual-number/internal/domain/ports/adapter"
	"telegram-virtual-number/internal/infra/transport"
)

const KeyNumberland = "numberland"

var _ adapter.Provider = (*Numberland)(nil)

// numberlandErrors maps negative RESULT codes to descriptions.
var numberlandErrors = map[int]string{
	-901: "apikey not found",
	-902: "method invalid",
	-990: "number id invalid",
	-900: "other technical error",
	-202: "parameters not found",
	-204: "this number is not active",
	-205: "no balance",
	-206: "price not set",
	-210: "service is not active",
	-211: "operator is not active",
	-212: "country is not active",
	-304: "number id not found",
}

// Numberland talks to the single-endpoint v2.php API where the operation is
// selected by the "method" query parameter.
type Numberland struct {
	display string
	cl      *transport.Client
}

func NewNumberland(cfg config.VendorConfig, display string, hc *http.Client, logger *zerolog.Logger) *Numberland {
	return &Numberland{
		display: display,
		cl: transport.New(transport.Options{
			Provider:   KeyNumberland,
			BaseURL:    cfg.BaseURL,
			Credential: cfg.APIKey,
			Timeout:    cfg.Timeout,
			MaxRetries: cfg.MaxRetries,
			Backoff:    cfg.Backoff,
			Check:      numberlandCheck,
			HTTPClient: hc,
			Logger:     logger,
		}),
	}
}

// numberlandCheck raises a negative RESULT as a vendor error. Lists (catalog
// endpoints) carry no result field.
func numberlandCheck(body gjson.Result) error {
	if !body.IsObject() {
		return nil
	}
	res := field(body, "RESULT", "result")
	if !res.Exists() {
		return nil
	}
	code, err := strconv.Atoi(res.String())
	if err != nil || code >= 0 {
		return nil
	}
	desc := numberlandErrors[code]
	if desc == "" {
		desc = field(body, "DESCRIPTION", "description").String()
	}
	if desc == "" {
		desc = "unknown error"
	}
	return &domain.VendorAPIError{Provider: KeyNumberland, Code: code, Description: desc}
}

func (n *Numberland) Key() string         { return KeyNumberland }
func (n *Numberland) DisplayName() string { return n.display }

// Operators are the vendor operator slots plus the min/any selectors.
func (n *Numberland) Operators() []string { return []string{"1", "2", "3", "4", "min", "any"} }

func (n *Numberland) call(ctx context.Context, method string, params url.Values) (gjson.Result, error) {
	if params == nil {
		params = url.Values{}
	}
	params.Set("method", method)
	return n.cl.Get(ctx, "v2.php", params)
}

func (n *Numberland) Balance(ctx context.Context) (model.ProviderBalance, error) {
	body, err := n.call(ctx, "balance", nil)
	if err != nil {
		return model.ProviderBalance{}, err
	}
	bal := field(body, "BALANCE", "balance").String()
	if bal == "" {
		bal = "0"
	}
	cur := field(body, "CURRENCY", "currency").String()
	if cur == "" {
		cur = "Toman"
	}
	return model.ProviderBalance{Amount: bal, Currency: cur}, nil
}

func (n *Numberland) ListServices(ctx context.Context) ([]model.Service, error) {
	body, err := n.call(ctx, "getservice", nil)
	if err != nil {
		return nil, err
	}
	var out []model.Service
	for _, it := range body.Array() {
		id := field(it, "id", "ID").String()
		if id == "" {
			continue
		}
		out = append(out, model.Service{
			ID:     id,
			Name:   field(it, "name", "NAME").String(),
			NameEn: field(it, "name_en", "NAME_EN").String(),
			Active: catalogActive(it),
		})
	}
	return out, nil
}

func (n *Numberland) ListCountries(ctx context.Context) ([]model.Country, error) {
	body, err := n.call(ctx, "getcountry", nil)
	if err != nil {
		return nil, err
	}
	var out []model.Country
	for _, it := range body.Array() {
		id := field(it, "id", "ID").String()
		if id == "" {
			continue
		}
		out = append(out, model.Country{
			ID:     id,
			Name:   field(it, "name", "NAME").String(),
			NameEn: field(it, "name_en", "NAME_EN").String(),
			Emoji:  field(it, "emoji", "EMOJI").String(),
			Active: catalogActive(it),
		})
	}
	return out, nil
}

func (n *Numberland) Quote(ctx context.Context, service, country, operator string) (model.Quote, error) {
	body, err := n.call(ctx, "getinfo", url.Values{
		"service":  {service},
		"country":  {country},
		"operator": {operator},
	})
	if err != nil {
		return model.Quote{}, err
	}
	it, ok := pickQuoteEntry(body)
	if !ok {
		return model.ZeroQuote(), nil
	}
	return quoteFromEntry(it), nil
}

func (n *Numberland) Buy(ctx context.Context, service, country, operator string, price *int64) (model.Purchase, error) {
	params := url.Values{
		"service":  {service},
		"country":  {country},
		"operator": {operator},
	}
	if price != nil && *price > 0 {
		params.Set("price", strconv.FormatInt(*price, 10))
	}
	body, err := n.call(ctx, "getnum", params)
	if err != nil {
		return model.Purchase{}, err
	}
	id := field(body, "ID", "id").String()
	if id == "" {
		return model.Purchase{}, &domain.DecodeError{Provider: KeyNumberland, Method: "getnum", Body: body.Raw}
	}
	return model.Purchase{
		ID:             id,
		PhoneNumber:    FormatPhone(field(body, "NUMBER", "number").String(), field(body, "AREACODE", "areacode").String()),
		Amount:         field(body, "AMOUNT", "amount").Int(),
		RepeatCapable:  flag(field(body, "REPEAT", "repeat"), false),
		ValidityWindow: ParseWindow(field(body, "TIME", "time").String()),
	}, nil
}

func (n *Numberland) Status(ctx context.Context, id string) (model.StatusResult, error) {
	body, err := n.call(ctx, "checkstatus", url.Values{"id": {id}})
	if err != nil {
		return model.StatusResult{}, err
	}
	st := model.OrderStatus(field(body, "RESULT", "result").Int())
	if !st.Valid() {
		return model.StatusResult{}, &domain.DecodeError{
			Provider: KeyNumberland,
			Method:   "checkstatus",
			Body:     fmt.Sprintf("unexpected status %d", int(st)),
		}
	}
	return model.StatusResult{
		Status:      st,
		Code:        field(body, "CODE", "code").String(),
		Description: field(body, "DESCRIPTION", "description").String(),
	}, nil
}

func (n *Numberland) action(ctx context.Context, method, id string) (model.ActionResult, error) {
	body, err := n.call(ctx, method, url.Values{"id": {id}})
	if err != nil {
		return model.ActionResult{}, err
	}
	return model.ActionResult{
		Accepted:    field(body, "RESULT", "result").Int() > 0,
		Description: field(body, "DESCRIPTION", "description").String(),
	}, nil
}

func (n *Numberland) Cancel(ctx context.Context, id string) (model.ActionResult, error) {
	return n.action(ctx, "cancelnumber", id)
}

func (n *Numberland) Ban(ctx context.Context, id string) (model.ActionResult, error) {
	return n.action(ctx, "bannumber", id)
}

func (n *Numberland) Repeat(ctx context.Context, id string) (model.ActionResult, error) {
	return n.action(ctx, "repeat", id)
}

func (n *Numberland) Close(ctx context.Context, id string) (model.ActionResult, error) {
	return n.action(ctx, "closenumber", id)
}
