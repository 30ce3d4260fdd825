package domain

// Статусы торговых решений
const (
	StatusPause  = "pause"
	StatusBuy    = "buy"
	StatusSell   = "sell"
	StatusCancel = "cancel"
)

// ValidStatuses закрытое множество статусов основного торгового канала
var ValidStatuses = map[string]bool{
	StatusPause:  true,
	StatusBuy:    true,
	StatusSell:   true,
	StatusCancel: true,
}

// ValidOrderStatuses закрытое множество статусов канала ревизии ордеров
// (покупка через ревизию запрещена)
var ValidOrderStatuses = map[string]bool{
	StatusPause:  true,
	StatusSell:   true,
	StatusCancel: true,
}

// Стороны сделок
const (
	SideBuy  = "buy"
	SideSell = "sell"
)

// Состояния ордеров
const (
	OrderStateLive            = "live"
	OrderStateFilled          = "filled"
	OrderStateCancelled       = "canceled"
	OrderStatePartiallyFilled = "partially_filled"
)

// Торговая пара по умолчанию
const DefaultInstID = "BTC-USDT"

// Роли сообщений чата
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)
