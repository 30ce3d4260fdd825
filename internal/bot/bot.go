package bot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/kirillm/tradebot/internal/config"
	"github.com/kirillm/tradebot/internal/domain"
	"github.com/kirillm/tradebot/internal/parser"
	"github.com/kirillm/tradebot/internal/policy"
	"github.com/kirillm/tradebot/pkg/utils"
)

// TradingAPI операции торгового API, нужные циклу
type TradingAPI interface {
	TestConnection(ctx context.Context) bool
	MarketAnalytics(ctx context.Context) (*domain.MarketSnapshot, error)
	MarketMonitor(ctx context.Context) (*domain.MarketSnapshot, error)
	PlaceBuyOrder(ctx context.Context, amount, takeProfitPercent, stopLossPercent float64) (*domain.OrderResult, error)
	PlaceSellOrder(ctx context.Context, amount float64) (*domain.OrderResult, error)
	CancelOrder(ctx context.Context, orderID string) (*domain.OrderResult, error)
	ListOrders(ctx context.Context) ([]domain.ActiveOrder, error)
}

// DecisionProvider источник торговых решений
type DecisionProvider interface {
	GetTradingDecision(ctx context.Context, snapshot *domain.MarketSnapshot, isInitial bool) (string, error)
	GetOrdersDecision(ctx context.Context, snapshot *domain.MarketSnapshot, orders []domain.ActiveOrder) (string, error)
}

// Notifier уведомления о сделках; реализация обязана быть
// некритичной для цикла
type Notifier interface {
	TestConnection() bool
	NotifyStartup(tradingPair string, demoMode bool)
	NotifyBuy(d domain.Decision, result *domain.OrderResult)
	NotifySell(d domain.Decision, result *domain.OrderResult)
	NotifyCancel(d domain.Decision)
	NotifySellAfterCancel(btcAmount float64)
	NotifyRejected(d domain.Decision, reason error)
	NotifyError(context string, err error)
	NotifyShutdown(uptime time.Duration)
}

// Bot координатор торгового цикла: собирает снапшот рынка, спрашивает
// решение у модели, прогоняет его через предохранитель и исполняет.
// Ошибка одного цикла никогда не валит процесс — следующий тик
// начинает с чистого листа.
type Bot struct {
	cfg      *config.Config
	api      TradingAPI
	trader   DecisionProvider
	gate     *policy.Gate
	notifier Notifier
	logger   zerolog.Logger

	mu          sync.Mutex
	initialized bool
	running     bool
	stopChan    chan struct{}

	startedAt       time.Time
	lastOrderReview time.Time
}

// New собирает бота из готовых компонентов
func New(cfg *config.Config, api TradingAPI, trader DecisionProvider, gate *policy.Gate, notifier Notifier) *Bot {
	return &Bot{
		cfg:      cfg,
		api:      api,
		trader:   trader,
		gate:     gate,
		notifier: notifier,
		logger:   utils.ComponentLogger("bot"),
		stopChan: make(chan struct{}),
	}
}

// Initialize проверяет внешние зависимости перед стартом.
// Недоступность торгового API фатальна, недоступность Telegram — нет.
func (b *Bot) Initialize(ctx context.Context) error {
	b.logger.Info().
		Str("pair", b.cfg.Trading.TradingPair).
		Bool("demo", b.cfg.API.DemoMode).
		Msg("initializing trading bot")

	if !b.api.TestConnection(ctx) {
		return fmt.Errorf("trading api is unreachable at %s", b.cfg.API.BaseURL)
	}

	if b.notifier != nil && !b.notifier.TestConnection() {
		b.logger.Warn().Msg("telegram is unavailable, continuing without notifications")
	}

	b.mu.Lock()
	b.initialized = true
	b.mu.Unlock()
	return nil
}

// Run запускает торговый цикл и блокируется до остановки
func (b *Bot) Run(ctx context.Context) error {
	b.mu.Lock()
	if !b.initialized {
		b.mu.Unlock()
		return domain.ErrNotInitialized
	}
	if b.running {
		b.mu.Unlock()
		return domain.ErrAlreadyRunning
	}
	b.running = true
	b.startedAt = time.Now()
	b.mu.Unlock()

	defer b.cleanup()

	// Первый запрос — полная аналитика рынка, с повторами:
	// торговый API мог стартовать позже бота
	snapshot, err := b.initialSnapshot(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch initial market analytics: %w", err)
	}

	if b.notifier != nil {
		b.notifier.NotifyStartup(b.cfg.Trading.TradingPair, b.cfg.API.DemoMode)
	}

	if err := b.decideAndExecute(ctx, snapshot, true); err != nil {
		b.reportCycleError("initial decision", err)
	}
	b.lastOrderReview = time.Now()

	ticker := time.NewTicker(b.cfg.Trading.UpdateInterval)
	defer ticker.Stop()

	b.logger.Info().
		Dur("update_interval", b.cfg.Trading.UpdateInterval).
		Dur("order_review_interval", b.cfg.Trading.OrderReviewInterval).
		Msg("trading loop started")

	for {
		select {
		case <-ticker.C:
			if err := b.tradingCycle(ctx); err != nil {
				b.reportCycleError("trading cycle", err)
			}
			if time.Since(b.lastOrderReview) >= b.cfg.Trading.OrderReviewInterval {
				if err := b.orderReviewCycle(ctx); err != nil {
					b.reportCycleError("order review", err)
				}
				b.lastOrderReview = time.Now()
			}

		case <-b.stopChan:
			return nil

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Stop останавливает торговый цикл
func (b *Bot) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.running {
		return
	}
	b.running = false
	close(b.stopChan)
}

// IsRunning сообщает, крутится ли цикл
func (b *Bot) IsRunning() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.running
}

func (b *Bot) cleanup() {
	uptime := time.Since(b.startedAt)
	b.logger.Info().Dur("uptime", uptime).Msg("trading bot stopped")
	if b.notifier != nil {
		b.notifier.NotifyShutdown(uptime)
	}
}

// initialSnapshot забирает полную аналитику рынка с экспоненциальными
// повторами. Повторы живут здесь, а не в API-клиенте: обычные циклы
// при сбое просто ждут следующий тик.
func (b *Bot) initialSnapshot(ctx context.Context) (*domain.MarketSnapshot, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 2 * time.Second
	bo.MaxElapsedTime = 2 * time.Minute

	var snapshot *domain.MarketSnapshot
	operation := func() error {
		var err error
		snapshot, err = b.api.MarketAnalytics(ctx)
		if err != nil {
			b.logger.Warn().Err(err).Msg("market analytics failed, retrying")
		}
		return err
	}

	if err := backoff.Retry(operation, backoff.WithContext(bo, ctx)); err != nil {
		return nil, err
	}
	return snapshot, nil
}

// tradingCycle один тик основного цикла: свежий снапшот, решение,
// валидация, исполнение
func (b *Bot) tradingCycle(ctx context.Context) error {
	snapshot, err := b.api.MarketMonitor(ctx)
	if err != nil {
		return fmt.Errorf("market monitor failed: %w", err)
	}
	return b.decideAndExecute(ctx, snapshot, false)
}

func (b *Bot) decideAndExecute(ctx context.Context, snapshot *domain.MarketSnapshot, isInitial bool) error {
	raw, err := b.trader.GetTradingDecision(ctx, snapshot, isInitial)
	if err != nil {
		return fmt.Errorf("trading decision failed: %w", err)
	}

	d, err := parser.ParseAndValidate(raw)
	if err != nil {
		return fmt.Errorf("model reply rejected: %w", err)
	}

	utils.LogTradingDecision(d.Status(), d.Response())
	return b.executeDecision(ctx, d, snapshot)
}

// executeDecision исполняет провалидированное решение.
// Покупки дополнительно проходят предохранитель лимитов.
func (b *Bot) executeDecision(ctx context.Context, d domain.Decision, snapshot *domain.MarketSnapshot) error {
	switch d.Status() {
	case domain.StatusPause:
		b.logger.Info().Str("reason", d.Response()).Msg("holding position")
		return nil

	case domain.StatusBuy:
		openOrders := len(snapshot.UserData.ActiveOrders)
		if err := b.gate.CheckBuy(d, snapshot.UserData.Balances, openOrders); err != nil {
			b.logger.Warn().Err(err).Msg("buy blocked by policy")
			if b.notifier != nil {
				b.notifier.NotifyRejected(d, err)
			}
			return nil
		}
		result, err := b.api.PlaceBuyOrder(ctx, d.BuyAmount(), d.TakeProfitPercent(), d.StopLossPercent())
		if err != nil {
			return fmt.Errorf("buy order failed: %w", err)
		}
		b.logger.Info().Str("order_id", result.OrderID).Msg("buy order placed")
		if b.notifier != nil {
			b.notifier.NotifyBuy(d, result)
		}
		return nil

	case domain.StatusSell:
		if err := b.gate.CheckSell(d, snapshot.UserData.Balances); err != nil {
			b.logger.Warn().Err(err).Msg("sell blocked by policy")
			if b.notifier != nil {
				b.notifier.NotifyRejected(d, err)
			}
			return nil
		}
		result, err := b.api.PlaceSellOrder(ctx, d.SellAmount())
		if err != nil {
			return fmt.Errorf("sell order failed: %w", err)
		}
		b.logger.Info().Str("order_id", result.OrderID).Msg("sell order placed")
		if b.notifier != nil {
			b.notifier.NotifySell(d, result)
		}
		return nil

	case domain.StatusCancel:
		if _, err := b.api.CancelOrder(ctx, d.OrderID()); err != nil {
			return fmt.Errorf("cancel order failed: %w", err)
		}
		b.logger.Info().Str("order_id", d.OrderID()).Msg("order cancelled")
		if b.notifier != nil {
			b.notifier.NotifyCancel(d)
		}
		return b.liquidateIfOrphaned(ctx)

	default:
		// parser гарантирует закрытое множество, сюда не попадаем
		return fmt.Errorf("%w: unexpected status %q", domain.ErrInvalidDecision, d.Status())
	}
}

// orderReviewCycle ревизия открытых ордеров отдельным каналом решений
func (b *Bot) orderReviewCycle(ctx context.Context) error {
	orders, err := b.api.ListOrders(ctx)
	if err != nil {
		return fmt.Errorf("failed to list orders: %w", err)
	}
	if len(orders) == 0 {
		b.logger.Debug().Msg("no open orders to review")
		return nil
	}

	snapshot, err := b.api.MarketMonitor(ctx)
	if err != nil {
		return fmt.Errorf("market monitor failed: %w", err)
	}

	raw, err := b.trader.GetOrdersDecision(ctx, snapshot, orders)
	if err != nil {
		return fmt.Errorf("orders decision failed: %w", err)
	}

	d, err := parser.ParseAndValidateOrders(raw)
	if err != nil {
		return fmt.Errorf("model reply rejected: %w", err)
	}

	utils.LogTradingDecision(d.Status(), d.Response())
	return b.executeDecision(ctx, d, snapshot)
}

// liquidateIfOrphaned продает всю позицию, если после отмены не осталось
// ни одного ордера, а BTC на балансе есть: позиция без take-profit и
// stop-loss ордеров не должна висеть без присмотра.
func (b *Bot) liquidateIfOrphaned(ctx context.Context) error {
	orders, err := b.api.ListOrders(ctx)
	if err != nil {
		return fmt.Errorf("failed to list orders after cancel: %w", err)
	}
	if len(orders) > 0 {
		return nil
	}

	snapshot, err := b.api.MarketMonitor(ctx)
	if err != nil {
		return fmt.Errorf("market monitor failed: %w", err)
	}
	btc := snapshot.UserData.Balances.BTC
	if btc <= 0 {
		return nil
	}

	b.logger.Warn().Float64("btc", btc).Msg("no orders left after cancel, liquidating position")
	if _, err := b.api.PlaceSellOrder(ctx, 0); err != nil {
		return fmt.Errorf("liquidation sell failed: %w", err)
	}
	if b.notifier != nil {
		b.notifier.NotifySellAfterCancel(btc)
	}
	return nil
}

// reportCycleError логирует ошибку цикла и уведомляет оператора.
// Региональный отказ провайдера после исчерпания компенсаций —
// единственная ошибка, о которой стоит кричать громче.
func (b *Bot) reportCycleError(stage string, err error) {
	if errors.Is(err, domain.ErrRegionDenied) {
		b.logger.Error().Err(err).Str("stage", stage).Msg("llm region denial is not recovering")
	} else {
		b.logger.Error().Err(err).Str("stage", stage).Msg("cycle error, waiting for next tick")
	}
	if b.notifier != nil {
		b.notifier.NotifyError(stage, err)
	}
}
