package application

import (
	"context"

	"telegram-virtual-number/internal/domain/ports/adapter"
	"telegram-virtual-number/internal/usecase"
)

// Reply is a rendered, already localized bot answer.
type Reply struct {
	Text string
	Rows [][]adapter.InlineButton
}

// BotFacadeIface is the surface the Telegram router drives. Keeping it an
// interface lets the router be tested with a light-weight fake.
type BotFacadeIface interface {
	Start(ctx context.Context, userID int64) (Reply, error)
	Help(ctx context.Context, userID int64) (Reply, error)
	MainMenu(ctx context.Context, userID int64) (Reply, error)

	LanguageMenu(ctx context.Context, userID int64) (Reply, error)
	SetLanguage(ctx context.Context, userID int64, lang string) (Reply, error)
	ProvidersMenu(ctx context.Context, userID int64) (Reply, error)
	SetProvider(ctx context.Context, userID int64, key string) (Reply, error)
	Support(ctx context.Context, userID int64) (Reply, error)

	// Temporary number flow: service -> country -> operator -> confirm.
	BuyTemporary(ctx context.Context, userID int64) (Reply, error)
	BuyPermanent(ctx context.Context, userID int64) (Reply, error)
	Services(ctx context.Context, userID int64, page int) (Reply, error)
	ChooseService(ctx context.Context, userID int64, serviceID string) (Reply, error)
	Countries(ctx context.Context, userID int64, page int) (Reply, error)
	ChooseCountry(ctx context.Context, userID int64, countryID string) (Reply, error)
	ChooseOperator(ctx context.Context, userID int64, operator string) (Reply, error)
	ConfirmPurchase(ctx context.Context, userID int64) (Reply, error)

	OrderAction(ctx context.Context, userID int64, action usecase.OrderAction, provider, orderID string) (Reply, error)
	ActiveOrders(ctx context.Context, userID int64) (Reply, error)
	OrderHistory(ctx context.Context, userID int64) (Reply, error)

	Wallet(ctx context.Context, userID int64) (Reply, error)
	WalletHistory(ctx context.Context, userID int64) (Reply, error)
	StartTopUp(ctx context.Context, userID int64) (Reply, error)
	// HandleText consumes free text when a conversation step expects it.
	// handled is false when nothing was waiting for input.
	HandleText(ctx context.Context, userID int64, text string) (reply Reply, handled bool, err error)

	DecideTopUp(ctx context.Context, actor int64, id string, approve bool) (Reply, error)
	PanelBalances(ctx context.Context, userID int64) (Reply, error)
	IsAdmin(userID int64) bool

	// ErrorReply localizes err for userID.
	ErrorReply(ctx context.Context, userID int64, err error) Reply
}

var _ BotFacadeIface = (*BotFacade)(nil)
