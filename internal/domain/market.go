package domain

import "encoding/json"

// Balances балансы пользователя по паре BTC-USDT
type Balances struct {
	USDT float64 `json:"USDT"`
	BTC  float64 `json:"BTC"`
}

// ActiveOrder активный ордер из торгового API.
// Имена полей повторяют формат биржи (instId/px/sz и т.д.).
type ActiveOrder struct {
	OrderID    string  `json:"ordId"`
	InstID     string  `json:"instId"`
	Side       string  `json:"side"`
	Price      string  `json:"px"`
	Size       string  `json:"sz"`
	State      string  `json:"state"`
	CreatedAt  string  `json:"cTime"`
	UpdatedAt  string  `json:"uTime"`
	AgeMinutes float64 `json:"age_minutes"`
}

// UserData пользовательская часть снапшота рынка
type UserData struct {
	ActiveOrders []ActiveOrder `json:"active_orders"`
	Balances     Balances      `json:"balances"`
}

// Indicators сводные рыночные индикаторы
type Indicators struct {
	CurrentPrice float64 `json:"current_price"`
	Volume24h    float64 `json:"volume_24h"`
	Change24h    float64 `json:"change_24h"`
	High24h      float64 `json:"high_24h"`
	Low24h       float64 `json:"low_24h"`
}

// MarketSnapshot снапшот рынка от торгового API.
//
// market_data хранится как сырой JSON: стакан и свечи по таймфреймам
// нужны только для рендера промпта, бот их не интерпретирует.
type MarketSnapshot struct {
	InstID     string                     `json:"inst_id"`
	MarketData map[string]json.RawMessage `json:"market_data"`
	UserData   UserData                   `json:"user_data"`
	Indicators Indicators                 `json:"indicators"`
	Timestamp  string                     `json:"timestamp"`
	Message    string                     `json:"message"`
}

// Orderbook возвращает сырой стакан из market_data (может быть nil)
func (m *MarketSnapshot) Orderbook() json.RawMessage {
	return m.MarketData["orderbook"]
}

// Candles1m возвращает сырые минутные свечи из market_data (может быть nil)
func (m *MarketSnapshot) Candles1m() json.RawMessage {
	candles, ok := m.MarketData["candles"]
	if !ok {
		return nil
	}
	var byTF map[string]json.RawMessage
	if err := json.Unmarshal(candles, &byTF); err != nil {
		return nil
	}
	return byTF["1m"]
}

// OrderResult результат мутирующей операции торгового API
type OrderResult struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}
