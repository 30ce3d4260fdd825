package domain

import "fmt"

// Decision торговое решение, полученное от LLM.
//
// Закрытый тип-сумма: дискриминант и поля не экспортируются, так что
// невалидный вариант невозможно собрать вне конструкторов. Статус
// фиксируется конструктором, поля вариантов заполняются только для
// своего статуса.
type Decision struct {
	status   string
	response string

	// только для buy
	buyAmount         float64
	takeProfitPercent float64
	stopLossPercent   float64

	// только для sell
	sellAmount float64

	// только для cancel
	orderID string
}

// NewPauseDecision создает решение "пауза"
func NewPauseDecision(response string) Decision {
	return Decision{status: StatusPause, response: response}
}

// NewBuyDecision создает решение о покупке
func NewBuyDecision(response string, buyAmount, takeProfitPercent, stopLossPercent float64) Decision {
	return Decision{
		status:            StatusBuy,
		response:          response,
		buyAmount:         buyAmount,
		takeProfitPercent: takeProfitPercent,
		stopLossPercent:   stopLossPercent,
	}
}

// NewSellDecision создает решение о продаже
func NewSellDecision(response string, sellAmount float64) Decision {
	return Decision{status: StatusSell, response: response, sellAmount: sellAmount}
}

// NewCancelDecision создает решение об отмене ордера
func NewCancelDecision(response string, orderID string) Decision {
	return Decision{status: StatusCancel, response: response, orderID: orderID}
}

// Status возвращает статус решения (pause/buy/sell/cancel)
func (d Decision) Status() string {
	return d.status
}

// Response возвращает объяснение решения от LLM
func (d Decision) Response() string {
	return d.response
}

// BuyAmount сумма покупки в USDT (только для buy)
func (d Decision) BuyAmount() float64 {
	return d.buyAmount
}

// TakeProfitPercent процент тейк-профита (только для buy)
func (d Decision) TakeProfitPercent() float64 {
	return d.takeProfitPercent
}

// StopLossPercent процент стоп-лосса (только для buy)
func (d Decision) StopLossPercent() float64 {
	return d.stopLossPercent
}

// SellAmount количество BTC для продажи (только для sell)
func (d Decision) SellAmount() float64 {
	return d.sellAmount
}

// OrderID идентификатор ордера для отмены (только для cancel)
func (d Decision) OrderID() string {
	return d.orderID
}

// String краткое человекочитаемое представление для логов
func (d Decision) String() string {
	switch d.status {
	case StatusBuy:
		return fmt.Sprintf("buy %.2f USDT (TP %.2f%%, SL %.2f%%)", d.buyAmount, d.takeProfitPercent, d.stopLossPercent)
	case StatusSell:
		return fmt.Sprintf("sell %.8f BTC", d.sellAmount)
	case StatusCancel:
		return fmt.Sprintf("cancel order %s", d.orderID)
	default:
		return "pause"
	}
}
