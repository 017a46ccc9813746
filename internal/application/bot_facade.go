package application

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"telegram-virtual-number/internal/domain"
	"telegram-virtual-number/internal/domain/model"
	"telegram-virtual-number/internal/domain/ports/adapter"
	"telegram-virtual-number/internal/domain/ports/repository"
	"telegram-virtual-number/internal/infra/i18n"
	"telegram-virtual-number/internal/usecase"
)

// Callback data understood by the Telegram router.
const (
	CBHome         = "home"
	CBLanguage     = "language"
	CBProviders    = "providers"
	CBWallet       = "wallet"
	CBTopUp        = "w:topup"
	CBWalletHist   = "w:history"
	CBSupport      = "support"
	CBOrders       = "orders"
	CBActiveOrders = "active_orders"
	CBBuyTemp      = "buy_temp"
	CBBuyPerm      = "buy_perm"
	CBConfirmBuy   = "cf:buy"

	PrefixLang        = "lang:"
	PrefixProvider    = "pv:set:"
	PrefixServicePage = "sv:p:"
	PrefixService     = "sv:s:"
	PrefixCountryPage = "ct:p:"
	PrefixCountry     = "ct:s:"
	PrefixOperator    = "op:"
	PrefixStatus      = "st:"
	PrefixApprove     = "w:approve:"
	PrefixReject      = "w:reject:"
)

var languageLabels = map[string]string{
	"fa": "🇮🇷 فارسی",
	"en": "🇬🇧 English",
	"ru": "🇷🇺 Русский",
}

// FacadeSettings tunes rendering.
type FacadeSettings struct {
	PageSize     int
	HistoryLimit int
	Currency     string
}

// BotFacade composes usecases into localized bot answers. The Telegram
// adapter only forwards the returned Reply to the chat.
type BotFacade struct {
	orders    usecase.OrderUseCase
	wallet    usecase.WalletUseCase
	providers adapter.ProviderRegistry
	prefs     repository.PreferenceRepository
	states    repository.StateRepository
	bundle    *i18n.Bundle
	settings  FacadeSettings
	log       *zerolog.Logger
	now       func() time.Time
}

func NewBotFacade(
	orders usecase.OrderUseCase,
	wallet usecase.WalletUseCase,
	providers adapter.ProviderRegistry,
	prefs repository.PreferenceRepository,
	states repository.StateRepository,
	bundle *i18n.Bundle,
	settings FacadeSettings,
	logger *zerolog.Logger,
) *BotFacade {
	if settings.PageSize <= 0 {
		settings.PageSize = 8
	}
	if settings.HistoryLimit <= 0 {
		settings.HistoryLimit = 10
	}
	if settings.Currency == "" {
		settings.Currency = "Toman"
	}
	if logger == nil {
		l := zerolog.Nop()
		logger = &l
	}
	l := logger.With().Str("component", "bot_facade").Logger()
	return &BotFacade{
		orders:    orders,
		wallet:    wallet,
		providers: providers,
		prefs:     prefs,
		states:    states,
		bundle:    bundle,
		settings:  settings,
		log:       &l,
		now:       time.Now,
	}
}

// ---------------------------------------------------------------------------
// helpers
// ---------------------------------------------------------------------------

func (b *BotFacade) tr(ctx context.Context, userID int64) *i18n.Translator {
	lang, err := b.prefs.GetLang(ctx, userID)
	if err != nil {
		b.log.Warn().Err(err).Int64("user_id", userID).Msg("read language preference")
	}
	return b.bundle.For(lang)
}

func btn(tr *i18n.Translator, key, data string) adapter.InlineButton {
	return adapter.InlineButton{Text: tr.T(key), Data: data}
}

func homeRow(tr *i18n.Translator) []adapter.InlineButton {
	return []adapter.InlineButton{btn(tr, "btn.back", CBHome)}
}

func backRow(tr *i18n.Translator, data string) []adapter.InlineButton {
	return []adapter.InlineButton{btn(tr, "btn.back", data)}
}

func yesNo(tr *i18n.Translator, v bool) string {
	if v {
		return tr.T("common.yes")
	}
	return tr.T("common.no")
}

// formatWindow renders a duration the way vendors print it: HH:MM:SS.
func formatWindow(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	s := int64(d / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", s/3600, (s/60)%60, s%60)
}

// chunk lays buttons out n per row.
func chunk(buttons []adapter.InlineButton, n int) [][]adapter.InlineButton {
	var rows [][]adapter.InlineButton
	for len(buttons) > 0 {
		k := n
		if k > len(buttons) {
			k = len(buttons)
		}
		rows = append(rows, buttons[:k])
		buttons = buttons[k:]
	}
	return rows
}

// page returns the bounds of page p, clamping p into range.
func page(total, size, p int) (start, end, clamped int) {
	if p < 0 {
		p = 0
	}
	if last := (total - 1) / size; total > 0 && p > last {
		p = last
	}
	start = p * size
	end = start + size
	if end > total {
		end = total
	}
	return start, end, p
}

func navRow(tr *i18n.Translator, prefix string, p, end, total int) []adapter.InlineButton {
	var nav []adapter.InlineButton
	if p > 0 {
		nav = append(nav, btn(tr, "btn.prev", prefix+strconv.Itoa(p-1)))
	}
	if end < total {
		nav = append(nav, btn(tr, "btn.next", prefix+strconv.Itoa(p+1)))
	}
	return nav
}

// providerKey resolves the user's vendor. chosen is false when several
// vendors are enabled and the user never picked one.
func (b *BotFacade) providerKey(ctx context.Context, userID int64) (key string, chosen bool) {
	enabled := b.providers.Enabled()
	pref, err := b.prefs.GetProvider(ctx, userID)
	if err != nil {
		b.log.Warn().Err(err).Int64("user_id", userID).Msg("read provider preference")
	}
	for _, k := range enabled {
		if k == pref {
			return pref, true
		}
	}
	return b.providers.Default(), len(enabled) <= 1
}

// buyState returns the in-progress purchase conversation or nil.
func (b *BotFacade) buyState(ctx context.Context, userID int64) (*repository.ConversationState, error) {
	st, err := b.states.GetState(ctx, userID)
	if err != nil {
		return nil, err
	}
	if st == nil || st.Data == nil || st.Data["provider"] == "" {
		return nil, nil
	}
	return st, nil
}

func (b *BotFacade) selectionLost(tr *i18n.Translator) Reply {
	return Reply{
		Text: tr.T("catalog.selection_lost"),
		Rows: [][]adapter.InlineButton{{btn(tr, "menu.buy_temp", CBBuyTemp)}, homeRow(tr)},
	}
}

// ---------------------------------------------------------------------------
// menus & preferences
// ---------------------------------------------------------------------------

// Start greets the user and asks for a vendor first when several are enabled
// and none was picked yet.
func (b *BotFacade) Start(ctx context.Context, userID int64) (Reply, error) {
	tr := b.tr(ctx, userID)
	if err := b.states.ClearState(ctx, userID); err != nil {
		b.log.Warn().Err(err).Int64("user_id", userID).Msg("clear state on start")
	}
	if _, chosen := b.providerKey(ctx, userID); !chosen {
		r := b.providersReply(tr)
		r.Text = tr.T("greet") + "\n\n" + r.Text
		return r, nil
	}
	r := b.mainMenu(ctx, tr, userID)
	r.Text = tr.T("greet")
	return r, nil
}

func (b *BotFacade) Help(ctx context.Context, userID int64) (Reply, error) {
	tr := b.tr(ctx, userID)
	return Reply{Text: tr.T("help"), Rows: [][]adapter.InlineButton{homeRow(tr)}}, nil
}

func (b *BotFacade) MainMenu(ctx context.Context, userID int64) (Reply, error) {
	tr := b.tr(ctx, userID)
	if err := b.states.ClearState(ctx, userID); err != nil {
		b.log.Warn().Err(err).Int64("user_id", userID).Msg("clear state on menu")
	}
	return b.mainMenu(ctx, tr, userID), nil
}

func (b *BotFacade) mainMenu(ctx context.Context, tr *i18n.Translator, userID int64) Reply {
	rows := [][]adapter.InlineButton{
		{btn(tr, "menu.buy_temp", CBBuyTemp)},
		{btn(tr, "menu.buy_perm", CBBuyPerm)},
		{btn(tr, "menu.wallet", CBWallet), btn(tr, "menu.orders", CBOrders)},
		{btn(tr, "menu.active", CBActiveOrders), btn(tr, "menu.support", CBSupport)},
		{btn(tr, "menu.language", CBLanguage)},
	}
	if len(b.providers.Enabled()) > 1 {
		rows[len(rows)-1] = append(rows[len(rows)-1], btn(tr, "menu.providers", CBProviders))
	}
	text := tr.T("greet")
	if key, chosen := b.providerKey(ctx, userID); chosen && len(b.providers.Enabled()) > 1 {
		text += "\n" + tr.T("provider_set", b.providers.DisplayName(key))
	}
	return Reply{Text: text, Rows: rows}
}

func (b *BotFacade) LanguageMenu(ctx context.Context, userID int64) (Reply, error) {
	tr := b.tr(ctx, userID)
	var buttons []adapter.InlineButton
	for _, lang := range i18n.Supported {
		if !b.bundle.Supports(lang) {
			continue
		}
		buttons = append(buttons, adapter.InlineButton{Text: languageLabels[lang], Data: PrefixLang + lang})
	}
	rows := chunk(buttons, 3)
	rows = append(rows, homeRow(tr))
	return Reply{Text: tr.T("choose_language"), Rows: rows}, nil
}

func (b *BotFacade) SetLanguage(ctx context.Context, userID int64, lang string) (Reply, error) {
	lang = i18n.Normalize(lang)
	if !b.bundle.Supports(lang) {
		return Reply{}, fmt.Errorf("%w: language %q", domain.ErrInvalidArgument, lang)
	}
	if err := b.prefs.SetLang(ctx, userID, lang); err != nil {
		return Reply{}, fmt.Errorf("set language: %w", err)
	}
	tr := b.bundle.For(lang)
	r := b.mainMenu(ctx, tr, userID)
	r.Text = tr.T("language_set")
	return r, nil
}

func (b *BotFacade) ProvidersMenu(ctx context.Context, userID int64) (Reply, error) {
	return b.providersReply(b.tr(ctx, userID)), nil
}

func (b *BotFacade) providersReply(tr *i18n.Translator) Reply {
	var rows [][]adapter.InlineButton
	for _, key := range b.providers.Enabled() {
		rows = append(rows, []adapter.InlineButton{{Text: b.providers.DisplayName(key), Data: PrefixProvider + key}})
	}
	rows = append(rows, homeRow(tr))
	return Reply{Text: tr.T("choose_provider"), Rows: rows}
}

func (b *BotFacade) SetProvider(ctx context.Context, userID int64, key string) (Reply, error) {
	p, err := b.providers.Get(key)
	if err != nil {
		return Reply{}, err
	}
	if err := b.prefs.SetProvider(ctx, userID, p.Key()); err != nil {
		return Reply{}, fmt.Errorf("set provider: %w", err)
	}
	if err := b.states.ClearState(ctx, userID); err != nil {
		b.log.Warn().Err(err).Int64("user_id", userID).Msg("clear state on provider switch")
	}
	tr := b.tr(ctx, userID)
	r := b.mainMenu(ctx, tr, userID)
	r.Text = tr.T("provider_set", b.providers.DisplayName(p.Key()))
	return r, nil
}

func (b *BotFacade) Support(ctx context.Context, userID int64) (Reply, error) {
	tr := b.tr(ctx, userID)
	return Reply{Text: tr.T("support.info"), Rows: [][]adapter.InlineButton{homeRow(tr)}}, nil
}

func (b *BotFacade) BuyPermanent(ctx context.Context, userID int64) (Reply, error) {
	tr := b.tr(ctx, userID)
	return Reply{Text: tr.T("buy_perm.stub"), Rows: [][]adapter.InlineButton{homeRow(tr)}}, nil
}

// ---------------------------------------------------------------------------
// temporary number flow
// ---------------------------------------------------------------------------

// BuyTemporary starts a fresh purchase conversation on the user's vendor.
func (b *BotFacade) BuyTemporary(ctx context.Context, userID int64) (Reply, error) {
	key, chosen := b.providerKey(ctx, userID)
	if !chosen {
		return b.providersReply(b.tr(ctx, userID)), nil
	}
	st := &repository.ConversationState{
		Step: repository.StepChoosingService,
		Data: map[string]string{"provider": key},
	}
	if err := b.states.SetState(ctx, userID, st); err != nil {
		return Reply{}, fmt.Errorf("start purchase: %w", err)
	}
	return b.Services(ctx, userID, 0)
}

func (b *BotFacade) Services(ctx context.Context, userID int64, p int) (Reply, error) {
	tr := b.tr(ctx, userID)
	st, err := b.buyState(ctx, userID)
	if err != nil {
		return Reply{}, err
	}
	if st == nil {
		return b.BuyTemporary(ctx, userID)
	}
	prov, err := b.providers.Get(st.Data["provider"])
	if err != nil {
		return Reply{}, err
	}
	all, err := prov.ListServices(ctx)
	if err != nil {
		return Reply{}, err
	}
	services := make([]model.Service, 0, len(all))
	for _, s := range all {
		if s.Active {
			services = append(services, s)
		}
	}
	if len(services) == 0 {
		return Reply{Text: tr.T("catalog.empty"), Rows: [][]adapter.InlineButton{homeRow(tr)}}, nil
	}

	start, end, p := page(len(services), b.settings.PageSize, p)
	buttons := make([]adapter.InlineButton, 0, end-start)
	for _, s := range services[start:end] {
		buttons = append(buttons, adapter.InlineButton{Text: s.LocalizedName(tr.Lang()), Data: PrefixService + s.ID})
	}
	rows := chunk(buttons, 2)
	if nav := navRow(tr, PrefixServicePage, p, end, len(services)); len(nav) > 0 {
		rows = append(rows, nav)
	}
	rows = append(rows, homeRow(tr))
	return Reply{Text: tr.T("catalog.choose_service"), Rows: rows}, nil
}

func (b *BotFacade) ChooseService(ctx context.Context, userID int64, serviceID string) (Reply, error) {
	if strings.TrimSpace(serviceID) == "" {
		return Reply{}, domain.ErrInvalidArgument
	}
	st, err := b.buyState(ctx, userID)
	if err != nil {
		return Reply{}, err
	}
	if st == nil {
		return b.selectionLost(b.tr(ctx, userID)), nil
	}
	st.Step = repository.StepChoosingCountry
	st.Data["service_id"] = serviceID
	delete(st.Data, "country_id")
	delete(st.Data, "operator")
	if err := b.states.SetState(ctx, userID, st); err != nil {
		return Reply{}, err
	}
	return b.countries(ctx, userID, st, 0)
}

func (b *BotFacade) Countries(ctx context.Context, userID int64, p int) (Reply, error) {
	st, err := b.buyState(ctx, userID)
	if err != nil {
		return Reply{}, err
	}
	if st == nil || st.Data["service_id"] == "" {
		return b.selectionLost(b.tr(ctx, userID)), nil
	}
	return b.countries(ctx, userID, st, p)
}

func (b *BotFacade) countries(ctx context.Context, userID int64, st *repository.ConversationState, p int) (Reply, error) {
	tr := b.tr(ctx, userID)
	prov, err := b.providers.Get(st.Data["provider"])
	if err != nil {
		return Reply{}, err
	}
	all, err := prov.ListCountries(ctx)
	if err != nil {
		return Reply{}, err
	}
	countries := make([]model.Country, 0, len(all))
	for _, c := range all {
		if c.Active {
			countries = append(countries, c)
		}
	}
	if len(countries) == 0 {
		return Reply{Text: tr.T("catalog.empty"), Rows: [][]adapter.InlineButton{backRow(tr, CBBuyTemp)}}, nil
	}

	start, end, p := page(len(countries), b.settings.PageSize, p)
	buttons := make([]adapter.InlineButton, 0, end-start)
	for _, c := range countries[start:end] {
		label := strings.TrimSpace(c.Emoji + " " + c.LocalizedName(tr.Lang()))
		buttons = append(buttons, adapter.InlineButton{Text: label, Data: PrefixCountry + c.ID})
	}
	rows := chunk(buttons, 2)
	if nav := navRow(tr, PrefixCountryPage, p, end, len(countries)); len(nav) > 0 {
		rows = append(rows, nav)
	}
	rows = append(rows, backRow(tr, CBBuyTemp))
	return Reply{Text: tr.T("catalog.choose_country"), Rows: rows}, nil
}

func operatorsOf(p adapter.Provider) []string {
	if ol, ok := p.(adapter.OperatorLister); ok {
		if ops := ol.Operators(); len(ops) > 0 {
			return ops
		}
	}
	return []string{"any"}
}

func (b *BotFacade) ChooseCountry(ctx context.Context, userID int64, countryID string) (Reply, error) {
	if strings.TrimSpace(countryID) == "" {
		return Reply{}, domain.ErrInvalidArgument
	}
	tr := b.tr(ctx, userID)
	st, err := b.buyState(ctx, userID)
	if err != nil {
		return Reply{}, err
	}
	if st == nil || st.Data["service_id"] == "" {
		return b.selectionLost(tr), nil
	}
	prov, err := b.providers.Get(st.Data["provider"])
	if err != nil {
		return Reply{}, err
	}
	st.Step = repository.StepChoosingOperator
	st.Data["country_id"] = countryID
	delete(st.Data, "operator")
	if err := b.states.SetState(ctx, userID, st); err != nil {
		return Reply{}, err
	}

	ops := operatorsOf(prov)
	buttons := make([]adapter.InlineButton, 0, len(ops))
	for _, op := range ops {
		label := op
		if k := "op." + op; tr.Has(k) {
			label = tr.T(k)
		}
		buttons = append(buttons, adapter.InlineButton{Text: label, Data: PrefixOperator + op})
	}
	rows := chunk(buttons, 3)
	rows = append(rows, backRow(tr, CBBuyTemp))
	return Reply{Text: tr.T("catalog.choose_operator"), Rows: rows}, nil
}

// ChooseOperator quotes the selection and asks for confirmation.
func (b *BotFacade) ChooseOperator(ctx context.Context, userID int64, operator string) (Reply, error) {
	tr := b.tr(ctx, userID)
	st, err := b.buyState(ctx, userID)
	if err != nil {
		return Reply{}, err
	}
	if st == nil || st.Data["service_id"] == "" || st.Data["country_id"] == "" {
		return b.selectionLost(tr), nil
	}
	prov, err := b.providers.Get(st.Data["provider"])
	if err != nil {
		return Reply{}, err
	}
	valid := false
	for _, op := range operatorsOf(prov) {
		if op == operator {
			valid = true
			break
		}
	}
	if !valid {
		return Reply{}, fmt.Errorf("%w: operator %q", domain.ErrInvalidArgument, operator)
	}

	q, err := b.orders.Quote(ctx, prov.Key(), st.Data["service_id"], st.Data["country_id"], operator)
	if err != nil {
		return Reply{}, err
	}
	if q.BaseAmount <= 0 {
		if err := b.states.ClearState(ctx, userID); err != nil {
			b.log.Warn().Err(err).Int64("user_id", userID).Msg("clear state after empty quote")
		}
		return Reply{Text: tr.T("quote.none"), Rows: [][]adapter.InlineButton{{btn(tr, "menu.buy_temp", CBBuyTemp)}, homeRow(tr)}}, nil
	}

	st.Step = repository.StepConfirmPurchase
	st.Data["operator"] = operator
	if err := b.states.SetState(ctx, userID, st); err != nil {
		return Reply{}, err
	}
	cur := b.settings.Currency
	text := tr.T("quote.info", q.Available, q.BaseAmount, cur, q.SellPrice, cur,
		yesNo(tr, q.RepeatCapable), formatWindow(q.ValidityWindow))
	rows := [][]adapter.InlineButton{
		{btn(tr, "btn.confirm", CBConfirmBuy)},
		backRow(tr, CBBuyTemp),
	}
	return Reply{Text: text, Rows: rows}, nil
}

// ConfirmPurchase buys the quoted selection. Failures are wrapped with
// errPurchase.
func (b *BotFacade) ConfirmPurchase(ctx context.Context, userID int64) (Reply, error) {
	tr := b.tr(ctx, userID)
	st, err := b.buyState(ctx, userID)
	if err != nil {
		return Reply{}, err
	}
	if st == nil || st.Step != repository.StepConfirmPurchase {
		return b.selectionLost(tr), nil
	}
	if err := b.states.ClearState(ctx, userID); err != nil {
		b.log.Warn().Err(err).Int64("user_id", userID).Msg("clear state before purchase")
	}

	o, err := b.orders.Purchase(ctx, usecase.PurchaseRequest{
		UserID:    userID,
		Provider:  st.Data["provider"],
		ServiceID: st.Data["service_id"],
		CountryID: st.Data["country_id"],
		Operator:  st.Data["operator"],
	})
	if err != nil {
		return Reply{}, fmt.Errorf("%w: %w", errPurchase, err)
	}
	text := tr.T("order.purchased", o.ID, o.PhoneNumber, o.SellPrice, b.settings.Currency,
		formatWindow(o.ValidityWindow), yesNo(tr, o.RepeatCapable))
	return Reply{Text: text, Rows: statusRows(tr, o)}, nil
}

// ---------------------------------------------------------------------------
// orders
// ---------------------------------------------------------------------------

// StatusData is the callback payload of an order action button.
func StatusData(action usecase.OrderAction, provider, orderID string) string {
	return PrefixStatus + string(action) + ":" + provider + ":" + orderID
}

func statusRows(tr *i18n.Translator, o *model.Order) [][]adapter.InlineButton {
	return [][]adapter.InlineButton{
		{
			btn(tr, "btn.cancel", StatusData(usecase.ActionCancel, o.Provider, o.ID)),
			btn(tr, "btn.repeat", StatusData(usecase.ActionRepeat, o.Provider, o.ID)),
			btn(tr, "btn.close", StatusData(usecase.ActionClose, o.Provider, o.ID)),
		},
		{
			btn(tr, "btn.refresh", StatusData(usecase.ActionRefresh, o.Provider, o.ID)),
			btn(tr, "btn.ban", StatusData(usecase.ActionBan, o.Provider, o.ID)),
		},
		homeRow(tr),
	}
}

func statusName(tr *i18n.Translator, s model.OrderStatus) string {
	if k := "status." + s.String(); tr.Has(k) {
		return tr.T(k)
	}
	return s.String()
}

func (b *BotFacade) OrderAction(ctx context.Context, userID int64, action usecase.OrderAction, provider, orderID string) (Reply, error) {
	var (
		o   *model.Order
		err error
	)
	switch action {
	case usecase.ActionCancel:
		o, err = b.orders.Cancel(ctx, userID, provider, orderID)
	case usecase.ActionBan:
		o, err = b.orders.Ban(ctx, userID, provider, orderID)
	case usecase.ActionRepeat:
		o, err = b.orders.Repeat(ctx, userID, provider, orderID)
	case usecase.ActionClose:
		o, err = b.orders.Close(ctx, userID, provider, orderID)
	case usecase.ActionRefresh:
		o, err = b.orders.Refresh(ctx, userID, provider, orderID)
	default:
		return Reply{}, fmt.Errorf("%w: action %q", domain.ErrInvalidArgument, action)
	}
	if err != nil {
		return Reply{}, err
	}

	tr := b.tr(ctx, userID)
	if o.Status.IsTerminal() {
		return Reply{
			Text: o.PhoneNumber + "\n" + tr.T("order.final", statusName(tr, o.Status)),
			Rows: [][]adapter.InlineButton{homeRow(tr)},
		}, nil
	}
	text := o.PhoneNumber + "\n" + tr.T("order.status", statusName(tr, o.Status))
	if o.LastCode != "" {
		text += "\n\n" + tr.T("order.code", o.LastCode)
	}
	return Reply{Text: text, Rows: statusRows(tr, o)}, nil
}

func (b *BotFacade) ActiveOrders(ctx context.Context, userID int64) (Reply, error) {
	tr := b.tr(ctx, userID)
	list, err := b.orders.ActiveOrders(ctx, userID)
	if err != nil {
		return Reply{}, err
	}
	if len(list) == 0 {
		return Reply{Text: tr.T("orders.active_empty"), Rows: [][]adapter.InlineButton{homeRow(tr)}}, nil
	}
	now := b.now()
	var sb strings.Builder
	sb.WriteString(tr.T("orders.active_title"))
	rows := make([][]adapter.InlineButton, 0, len(list)+1)
	for _, o := range list {
		code := o.LastCode
		if code == "" {
			code = "-"
		}
		sb.WriteString("\n")
		sb.WriteString(tr.T("orders.active_line", o.PhoneNumber, statusName(tr, o.Status), formatWindow(o.Remaining(now)), code))
		rows = append(rows, []adapter.InlineButton{{
			Text: "🔄 " + o.PhoneNumber,
			Data: StatusData(usecase.ActionRefresh, o.Provider, o.ID),
		}})
	}
	rows = append(rows, homeRow(tr))
	return Reply{Text: sb.String(), Rows: rows}, nil
}

func (b *BotFacade) OrderHistory(ctx context.Context, userID int64) (Reply, error) {
	tr := b.tr(ctx, userID)
	list, err := b.orders.History(ctx, userID, b.settings.HistoryLimit)
	if err != nil {
		return Reply{}, err
	}
	if len(list) == 0 {
		return Reply{Text: tr.T("orders.history_empty"), Rows: [][]adapter.InlineButton{homeRow(tr)}}, nil
	}
	var sb strings.Builder
	sb.WriteString(tr.T("orders.history_title"))
	for _, o := range list {
		sb.WriteString("\n")
		sb.WriteString(tr.T("orders.history_line", o.CreatedAt.Format("2006-01-02 15:04"), o.PhoneNumber,
			o.SellPrice, b.settings.Currency, b.providers.DisplayName(o.Provider)))
	}
	return Reply{Text: sb.String(), Rows: [][]adapter.InlineButton{homeRow(tr)}}, nil
}

// ---------------------------------------------------------------------------
// wallet
// ---------------------------------------------------------------------------

func walletRows(tr *i18n.Translator) [][]adapter.InlineButton {
	return [][]adapter.InlineButton{
		{btn(tr, "btn.topup", CBTopUp), btn(tr, "btn.history", CBWalletHist)},
		homeRow(tr),
	}
}

func (b *BotFacade) Wallet(ctx context.Context, userID int64) (Reply, error) {
	tr := b.tr(ctx, userID)
	bal, err := b.wallet.Balance(ctx, userID)
	if err != nil {
		return Reply{}, err
	}
	return Reply{Text: tr.T("wallet.balance", bal, b.settings.Currency), Rows: walletRows(tr)}, nil
}

func (b *BotFacade) WalletHistory(ctx context.Context, userID int64) (Reply, error) {
	tr := b.tr(ctx, userID)
	txs, err := b.wallet.History(ctx, userID, b.settings.HistoryLimit)
	if err != nil {
		return Reply{}, err
	}
	if len(txs) == 0 {
		return Reply{Text: tr.T("wallet.history_empty"), Rows: walletRows(tr)}, nil
	}
	var sb strings.Builder
	sb.WriteString(tr.T("wallet.history_title"))
	for _, tx := range txs {
		sign := "+"
		if tx.Type == model.TransactionDebit {
			sign = "-"
		}
		sb.WriteString("\n")
		sb.WriteString(tr.T("wallet.history_line", tx.At.Format("2006-01-02 15:04"), sign, tx.Amount, b.settings.Currency, tx.Meta))
	}
	return Reply{Text: sb.String(), Rows: walletRows(tr)}, nil
}

func (b *BotFacade) StartTopUp(ctx context.Context, userID int64) (Reply, error) {
	tr := b.tr(ctx, userID)
	st := &repository.ConversationState{Step: repository.StepAwaitingTopUp, Data: map[string]string{}}
	if err := b.states.SetState(ctx, userID, st); err != nil {
		return Reply{}, err
	}
	return Reply{
		Text: tr.T("wallet.topup_prompt", b.settings.Currency),
		Rows: [][]adapter.InlineButton{backRow(tr, CBWallet)},
	}, nil
}

// HandleText takes the typed top-up amount. Persian and Arabic digits are
// accepted.
func (b *BotFacade) HandleText(ctx context.Context, userID int64, text string) (Reply, bool, error) {
	st, err := b.states.GetState(ctx, userID)
	if err != nil {
		return Reply{}, false, err
	}
	if st == nil || st.Step != repository.StepAwaitingTopUp {
		return Reply{}, false, nil
	}
	tr := b.tr(ctx, userID)
	amount, err := ParseAmount(text)
	if err != nil {
		return Reply{Text: tr.T("wallet.topup_invalid"), Rows: [][]adapter.InlineButton{backRow(tr, CBWallet)}}, true, nil
	}
	req, err := b.wallet.RequestTopUp(ctx, userID, amount)
	if err != nil {
		return Reply{}, true, err
	}
	if err := b.states.ClearState(ctx, userID); err != nil {
		b.log.Warn().Err(err).Int64("user_id", userID).Msg("clear state after top-up request")
	}
	return Reply{
		Text: tr.T("wallet.topup_requested", req.Amount, b.settings.Currency, req.ID),
		Rows: walletRows(tr),
	}, true, nil
}

// ParseAmount reads a positive whole amount, ignoring separators.
func ParseAmount(s string) (int64, error) {
	s = strings.Map(func(r rune) rune {
		switch {
		case r >= '۰' && r <= '۹':
			return '0' + (r - '۰')
		case r >= '٠' && r <= '٩':
			return '0' + (r - '٠')
		case r == ',' || r == '_' || r == ' ' || r == '٬':
			return -1
		}
		return r
	}, strings.TrimSpace(s))
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: amount %q", domain.ErrInvalidArgument, s)
	}
	if v <= 0 {
		return 0, fmt.Errorf("%w: amount must be positive", domain.ErrInvalidArgument)
	}
	return v, nil
}

// ---------------------------------------------------------------------------
// admin
// ---------------------------------------------------------------------------

func (b *BotFacade) IsAdmin(userID int64) bool { return b.wallet.IsAdmin(userID) }

func (b *BotFacade) DecideTopUp(ctx context.Context, actor int64, id string, approve bool) (Reply, error) {
	var err error
	if approve {
		_, err = b.wallet.Approve(ctx, id, actor)
	} else {
		_, err = b.wallet.Reject(ctx, id, actor)
	}
	if err != nil {
		return Reply{}, err
	}
	tr := b.tr(ctx, actor)
	key := "admin.topup_rejected"
	if approve {
		key = "admin.topup_approved"
	}
	return Reply{Text: tr.T(key, id)}, nil
}

// PanelBalances lists every enabled vendor's panel balance. A failing vendor
// is shown as unavailable instead of failing the whole answer.
func (b *BotFacade) PanelBalances(ctx context.Context, userID int64) (Reply, error) {
	if !b.wallet.IsAdmin(userID) {
		return Reply{}, domain.ErrPermissionDenied
	}
	tr := b.tr(ctx, userID)
	var sb strings.Builder
	sb.WriteString(tr.T("admin.panel_title"))
	for _, key := range b.providers.Enabled() {
		name := b.providers.DisplayName(key)
		sb.WriteString("\n")
		p, err := b.providers.Get(key)
		if err != nil {
			sb.WriteString(tr.T("admin.panel_error", name))
			continue
		}
		bal, err := p.Balance(ctx)
		if err != nil {
			b.log.Warn().Err(err).Str("provider", key).Msg("panel balance")
			sb.WriteString(tr.T("admin.panel_error", name))
			continue
		}
		sb.WriteString(tr.T("admin.panel_line", name, bal.Amount, bal.Currency))
	}
	return Reply{Text: sb.String(), Rows: [][]adapter.InlineButton{homeRow(tr)}}, nil
}

// ErrorReply localizes err. Purchase failures carry the purchase prefix.
func (b *BotFacade) ErrorReply(ctx context.Context, userID int64, err error) Reply {
	tr := b.tr(ctx, userID)
	msg := LocalizeError(tr, err)
	if errors.Is(err, errPurchase) {
		msg = tr.T("err.purchase", msg)
	}
	return Reply{Text: msg, Rows: [][]adapter.InlineButton{homeRow(tr)}}
}
