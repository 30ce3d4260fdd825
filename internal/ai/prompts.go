package ai

import (
	"encoding/json"
	"fmt"

	"github.com/kirillm/tradebot/internal/domain"
)

// traderSystemPrompt возвращает системный промпт основного торгового канала.
// Содержимое промпта — настройка, а не контракт: структурным требованием
// являются только четыре формы JSON-ответа.
func traderSystemPrompt(targetAPY float64, tradingPair string) string {
	return fmt.Sprintf(`You are a professional %s trader.

Your task is to continuously analyze the market, adapt to current conditions and trade
towards the target yearly yield with the lowest possible risk. You act like an experienced
trader, not a rigid bot: you use technical and contextual analysis, watch the balance,
open positions and market reaction in real time.

# Goal
target_apy = %.1f (target yearly yield in %%)

# Workflow
1. The first message carries the market history (multi-timeframe candles, top-20 orderbook,
   balances, open orders). Build the initial trading picture and risk parameters from it.
2. Every update carries the latest 1m candles, current orderbook, balances and open orders.
   Update your internal view, recompute the higher timeframes and indicators (RSI, MACD,
   SMA, EMA, ATR) and adjust the strategy.

# Risk management
- Pick the per-trade risk, RRR, position size and number of open trades yourself based on
  current conditions and the yield goal.
- Reduce risk in volatile periods, pause or trade minimal size in a directionless market.

# Response format
Always respond ONLY with a single JSON object, no markdown and no extra text.

Pause:
{"status": "pause", "response": "short explanation"}

Buy:
{"status": "buy", "response": "short explanation", "buy_amount": <USDT amount>, "take_profit_percent": <pct>, "stop_loss_percent": <pct>}

Sell:
{"status": "sell", "response": "short explanation", "sell_amount": <BTC amount>}

Cancel:
{"status": "cancel", "response": "short explanation", "order_id": "<order id>"}

IMPORTANT: the reply must be valid JSON with no surrounding characters or text.`, tradingPair, targetAPY)
}

// ordersSystemPrompt возвращает системный промпт канала ревизии ордеров.
// Покупка в этом канале запрещена.
func ordersSystemPrompt(tradingPair string) string {
	return fmt.Sprintf(`You are a professional %s trader reviewing currently open orders.

For every open order decide, using its age, the distance from the current price and the
short-term trend, whether it should be kept, cancelled, or whether the position should be
sold. Buying is NOT allowed in this review.

# Response format
Always respond ONLY with a single JSON object, no markdown and no extra text.

Keep everything:
{"status": "pause", "response": "short explanation"}

Cancel an order:
{"status": "cancel", "response": "short explanation", "order_id": "<order id>"}

Sell (omit sell_amount to sell the whole position):
{"status": "sell", "response": "short explanation", "sell_amount": <BTC amount>}

IMPORTANT: the reply must be valid JSON with no surrounding characters or text.`, tradingPair)
}

// renderInitialMessage рендерит первое сообщение с полной историей рынка
func renderInitialMessage(snapshot *domain.MarketSnapshot) string {
	marketJSON, _ := json.MarshalIndent(snapshot.MarketData, "", "  ")
	ordersJSON, _ := json.MarshalIndent(snapshot.UserData.ActiveOrders, "", "  ")

	return fmt.Sprintf(`INITIAL DATA FOR ANALYSIS:

Trading pair: %s
Time: %s

MARKET DATA:
%s

USER DATA:
USDT balance: %.2f
BTC balance: %.8f
Active orders: %d
%s

INDICATORS:
Current price: %.2f
24h volume: %.2f
24h change: %.2f%%
24h high: %.2f
24h low: %.2f

Analyze the data and build the initial trading strategy. Respond in JSON.`,
		snapshot.InstID,
		snapshot.Timestamp,
		string(marketJSON),
		snapshot.UserData.Balances.USDT,
		snapshot.UserData.Balances.BTC,
		len(snapshot.UserData.ActiveOrders),
		string(ordersJSON),
		snapshot.Indicators.CurrentPrice,
		snapshot.Indicators.Volume24h,
		snapshot.Indicators.Change24h,
		snapshot.Indicators.High24h,
		snapshot.Indicators.Low24h,
	)
}

// renderUpdateMessage рендерит регулярное обновление: стакан, последние
// минутные свечи, балансы и активные ордера
func renderUpdateMessage(snapshot *domain.MarketSnapshot) string {
	orderbook := snapshot.Orderbook()
	if orderbook == nil {
		orderbook = json.RawMessage("[]")
	}
	candles := snapshot.Candles1m()
	if candles == nil {
		candles = json.RawMessage("[]")
	}
	ordersJSON, _ := json.MarshalIndent(snapshot.UserData.ActiveOrders, "", "  ")

	return fmt.Sprintf(`MARKET DATA UPDATE:

Time: %s

ORDERBOOK:
%s

LATEST CANDLES (1m):
%s

BALANCE:
USDT: %.2f
BTC: %.8f

ACTIVE ORDERS:
%s

CURRENT INDICATORS:
Price: %.2f
24h volume: %.2f

Update your analysis and make a trading decision. Respond in JSON.`,
		snapshot.Timestamp,
		string(orderbook),
		string(candles),
		snapshot.UserData.Balances.USDT,
		snapshot.UserData.Balances.BTC,
		string(ordersJSON),
		snapshot.Indicators.CurrentPrice,
		snapshot.Indicators.Volume24h,
	)
}

// renderOrdersMessage рендерит запрос ревизии открытых ордеров
func renderOrdersMessage(snapshot *domain.MarketSnapshot, orders []domain.ActiveOrder) string {
	ordersJSON, _ := json.MarshalIndent(orders, "", "  ")

	return fmt.Sprintf(`OPEN ORDERS REVIEW:

Time: %s

CURRENT PRICE: %.2f
24h change: %.2f%%

OPEN ORDERS:
%s

BALANCE:
USDT: %.2f
BTC: %.8f

Review each order against the current price, its age and the short-term trend.
Respond in JSON (pause, cancel or sell only).`,
		snapshot.Timestamp,
		snapshot.Indicators.CurrentPrice,
		snapshot.Indicators.Change24h,
		string(ordersJSON),
		snapshot.UserData.Balances.USDT,
		snapshot.UserData.Balances.BTC,
	)
}

// correctionMessage однократное корректирующее сообщение при нарушении
// закрытого множества статусов
func correctionMessage(allowed []string) string {
	return fmt.Sprintf(
		"Your previous reply used a status outside the allowed set. Respond again with a single JSON object whose \"status\" is one of: %s. No markdown, no extra text.",
		jsonList(allowed),
	)
}

func jsonList(values []string) string {
	b, _ := json.Marshal(values)
	return string(b)
}
