package policy

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/kirillm/tradebot/internal/domain"
	"github.com/kirillm/tradebot/pkg/utils"
)

var (
	// ErrBelowMinimum покупка меньше минимального номинала биржи
	ErrBelowMinimum = errors.New("buy amount below minimum notional")

	// ErrReserveBreached покупка залезает в неприкосновенный остаток
	ErrReserveBreached = errors.New("buy amount would breach the usdt reserve")

	// ErrRiskTooHigh покупка превышает допустимую долю баланса
	ErrRiskTooHigh = errors.New("buy amount exceeds per-trade risk limit")

	// ErrTooManyOrders превышен лимит открытых ордеров
	ErrTooManyOrders = errors.New("too many open orders")
)

// Gate предохранитель между решением модели и биржей.
// Решение модели — совет; последнее слово за лимитами.
type Gate struct {
	limits Limits
	logger zerolog.Logger
}

// NewGate создает предохранитель с заданными лимитами
func NewGate(limits Limits) *Gate {
	return &Gate{
		limits: limits,
		logger: utils.ComponentLogger("policy"),
	}
}

// CheckBuy проверяет покупку против лимитов и текущего баланса.
// Возвращает nil, если ордер можно отправлять.
func (g *Gate) CheckBuy(d domain.Decision, balances domain.Balances, openOrders int) error {
	amount := d.BuyAmount()

	if amount < g.limits.MinBuyAmount {
		g.logger.Warn().
			Float64("buy_amount", amount).
			Float64("min_buy_amount", g.limits.MinBuyAmount).
			Msg("buy rejected: below minimum notional")
		return fmt.Errorf("%w: %.2f < %.2f USDT", ErrBelowMinimum, amount, g.limits.MinBuyAmount)
	}

	spendable := balances.USDT - g.limits.ReserveUSDT
	if amount > spendable {
		g.logger.Warn().
			Float64("buy_amount", amount).
			Float64("usdt_balance", balances.USDT).
			Float64("reserve_usdt", g.limits.ReserveUSDT).
			Msg("buy rejected: reserve breached")
		return fmt.Errorf("%w: %.2f > %.2f USDT spendable (balance %.2f, reserve %.2f)",
			ErrReserveBreached, amount, spendable, balances.USDT, g.limits.ReserveUSDT)
	}

	if g.limits.MaxRiskPerTrade > 0 && amount > balances.USDT*g.limits.MaxRiskPerTrade/100 {
		g.logger.Warn().
			Float64("buy_amount", amount).
			Float64("max_risk_per_trade", g.limits.MaxRiskPerTrade).
			Msg("buy rejected: per-trade risk limit")
		return fmt.Errorf("%w: %.2f exceeds %.1f%% of balance %.2f",
			ErrRiskTooHigh, amount, g.limits.MaxRiskPerTrade, balances.USDT)
	}

	if g.limits.MaxOpenPositions > 0 && openOrders >= g.limits.MaxOpenPositions {
		g.logger.Warn().
			Int("open_orders", openOrders).
			Int("max_open_positions", g.limits.MaxOpenPositions).
			Msg("buy rejected: open order limit reached")
		return fmt.Errorf("%w: %d open, limit %d", ErrTooManyOrders, openOrders, g.limits.MaxOpenPositions)
	}

	return nil
}

// CheckSell проверяет продажу: объем не больше доступного BTC.
// Нулевой sell_amount означает продажу всей позиции и всегда допустим.
func (g *Gate) CheckSell(d domain.Decision, balances domain.Balances) error {
	amount := d.SellAmount()
	if amount == 0 {
		return nil
	}
	if amount > balances.BTC {
		g.logger.Warn().
			Float64("sell_amount", amount).
			Float64("btc_balance", balances.BTC).
			Msg("sell rejected: amount exceeds position")
		return fmt.Errorf("sell amount %.8f exceeds btc balance %.8f", amount, balances.BTC)
	}
	return nil
}

// Limits возвращает действующие лимиты
func (g *Gate) Limits() Limits {
	return g.limits
}
