package ai

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/kirillm/tradebot/internal/config"
	"github.com/kirillm/tradebot/internal/domain"
	"github.com/kirillm/tradebot/internal/parser"
	"github.com/kirillm/tradebot/pkg/utils"
)

const (
	// Глубина истории диалога: последние N сообщений (user+assistant)
	historyLimit = 10

	// Максимум компенсаций регионального отказа до фатальной ошибки
	maxRetries = 3

	// Пауза перед возвратом управления после регионального отказа
	regionRetryDelay = 5 * time.Minute
)

// Trader клиент торговых решений поверх ChatCompleter.
//
// Гарантирует не более одного запроса к LLM одновременно и минимальный
// интервал между запросами. Лишние запросы не ставятся в очередь:
// они немедленно получают последний удачный ответ или синтетическую паузу.
type Trader struct {
	chat    ChatCompleter
	limiter *rate.Limiter
	logger  zerolog.Logger

	targetAPY   float64
	tradingPair string

	// sleep подменяется в тестах, чтобы не ждать реальные минуты
	sleep func(time.Duration)

	// mu — in-flight guard: держится на весь цикл построения запроса,
	// вызова LLM и записи результата
	mu sync.Mutex

	// stateMu защищает состояние, читаемое и из fallback-пути
	stateMu          sync.Mutex
	history          []Message
	retryCount       int
	lastGoodResponse string
}

// NewTrader создает клиент торговых решений
func NewTrader(chat ChatCompleter, openaiCfg config.OpenAIConfig, tradingCfg config.TradingConfig) *Trader {
	return &Trader{
		chat:        chat,
		limiter:     rate.NewLimiter(rate.Every(openaiCfg.MinRequestInterval), 1),
		logger:      utils.ComponentLogger("ai_trader"),
		targetAPY:   tradingCfg.TargetAPY,
		tradingPair: tradingCfg.TradingPair,
		sleep:       time.Sleep,
	}
}

// GetTradingDecision запрашивает торговое решение.
//
// При isInitial отправляется полная история рынка и не действует
// минимальный интервал (это первый запрос процесса).
func (t *Trader) GetTradingDecision(ctx context.Context, snapshot *domain.MarketSnapshot, isInitial bool) (string, error) {
	if !t.mu.TryLock() {
		t.logger.Warn().Msg("decision request while another is in flight, returning fallback")
		return t.fallbackResponse("a decision request is already in flight"), nil
	}
	defer t.mu.Unlock()

	if !isInitial && !t.limiter.Allow() {
		t.logger.Warn().Msg("decision request throttled, returning fallback")
		return t.fallbackResponse("request throttled: minimum interval between decisions not yet elapsed"), nil
	}

	var userMsg string
	if isInitial {
		userMsg = renderInitialMessage(snapshot)
	} else {
		userMsg = renderUpdateMessage(snapshot)
	}

	system := traderSystemPrompt(t.targetAPY, t.tradingPair)
	return t.request(ctx, system, userMsg, domain.ValidStatuses, "trading")
}

// GetOrdersDecision запрашивает ревизию открытых ордеров.
// Отдельный канал решений со своим промптом и закрытым множеством
// статусов, но с общей историей и общим троттлингом.
func (t *Trader) GetOrdersDecision(ctx context.Context, snapshot *domain.MarketSnapshot, orders []domain.ActiveOrder) (string, error) {
	if !t.mu.TryLock() {
		t.logger.Warn().Msg("orders review while another request is in flight, returning fallback")
		return t.fallbackResponse("a decision request is already in flight"), nil
	}
	defer t.mu.Unlock()

	if !t.limiter.Allow() {
		t.logger.Warn().Msg("orders review throttled, returning fallback")
		return t.fallbackResponse("request throttled: minimum interval between decisions not yet elapsed"), nil
	}

	userMsg := renderOrdersMessage(snapshot, orders)
	system := ordersSystemPrompt(t.tradingPair)
	return t.request(ctx, system, userMsg, domain.ValidOrderStatuses, "orders")
}

// request выполняет один логический запрос решения: системный промпт,
// ограниченная история, свежий пользовательский ход, проверка закрытого
// множества статусов с одной корректирующей попыткой.
func (t *Trader) request(ctx context.Context, system, userMsg string, allowed map[string]bool, kind string) (string, error) {
	messages := make([]Message, 0, len(t.history)+2)
	messages = append(messages, Message{Role: domain.RoleSystem, Content: system})
	t.stateMu.Lock()
	messages = append(messages, t.history...)
	t.stateMu.Unlock()
	messages = append(messages, Message{Role: domain.RoleUser, Content: userMsg})

	started := time.Now()
	reply, err := t.chat.Chat(ctx, messages)
	if err != nil {
		if errors.Is(err, domain.ErrRegionDenied) {
			return t.compensateRegionDenied(err)
		}
		return "", err
	}
	utils.LogLLMInteraction(kind, len(reply), time.Since(started))

	// Лёгкая проверка статуса до полного парсинга: одна корректирующая
	// попытка, результат которой принимается без повторной проверки.
	if !statusAllowed(reply, allowed) {
		t.logger.Warn().Str("kind", kind).Msg("reply status outside allowed set, sending one corrective turn")

		retryMessages := append(messages,
			Message{Role: domain.RoleAssistant, Content: reply},
			Message{Role: domain.RoleUser, Content: correctionMessage(allowedList(allowed))},
		)

		corrected, err := t.chat.Chat(ctx, retryMessages)
		if err != nil {
			if errors.Is(err, domain.ErrRegionDenied) {
				return t.compensateRegionDenied(err)
			}
			return "", err
		}
		reply = corrected
	}

	t.recordSuccess(userMsg, reply)
	return reply, nil
}

// compensateRegionDenied компенсирует региональный отказ провайдера:
// до maxRetries подряд возвращается запасной ответ с выдержкой паузы,
// после — ошибка пробрасывается и становится фатальной для цикла.
func (t *Trader) compensateRegionDenied(err error) (string, error) {
	t.stateMu.Lock()
	t.retryCount++
	count := t.retryCount
	t.stateMu.Unlock()

	if count > maxRetries {
		t.logger.Error().Int("retry_count", count).Msg("region denial retries exhausted")
		return "", err
	}

	t.logger.Warn().
		Int("retry_count", count).
		Int("max_retries", maxRetries).
		Dur("delay", regionRetryDelay).
		Msg("llm region denied, returning fallback and waiting")

	resp := t.fallbackResponse("waiting out a regional denial from the llm provider")
	t.sleep(regionRetryDelay)
	return resp, nil
}

// recordSuccess фиксирует удачный ответ: сбрасывает счетчик повторов,
// обновляет запасной ответ и дописывает оба хода в историю
func (t *Trader) recordSuccess(userMsg, reply string) {
	t.stateMu.Lock()
	defer t.stateMu.Unlock()

	t.retryCount = 0
	t.lastGoodResponse = reply

	t.history = append(t.history,
		Message{Role: domain.RoleUser, Content: userMsg},
		Message{Role: domain.RoleAssistant, Content: reply},
	)
	if len(t.history) > historyLimit {
		t.history = t.history[len(t.history)-historyLimit:]
	}
}

// fallbackResponse возвращает последний удачный ответ, а при его
// отсутствии — синтетическую паузу с объяснением
func (t *Trader) fallbackResponse(reason string) string {
	t.stateMu.Lock()
	defer t.stateMu.Unlock()

	if t.lastGoodResponse != "" {
		return t.lastGoodResponse
	}
	return synthesizedPause(reason)
}

// Status возвращает счетчики для диагностики в логах цикла
func (t *Trader) Status() (retryCount, retriesMax, historyLen int) {
	t.stateMu.Lock()
	defer t.stateMu.Unlock()
	return t.retryCount, maxRetries, len(t.history)
}

// synthesizedPause собирает валидный pause-ответ с указанной причиной
func synthesizedPause(reason string) string {
	b, _ := json.Marshal(map[string]string{
		"status":   domain.StatusPause,
		"response": reason,
	})
	return string(b)
}

// statusAllowed проверяет только поле status, без полного разбора решения
func statusAllowed(reply string, allowed map[string]bool) bool {
	var probe struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal([]byte(parser.CleanResponse(reply)), &probe); err != nil {
		return false
	}
	return allowed[strings.ToLower(probe.Status)]
}

func allowedList(allowed map[string]bool) []string {
	// фиксированный порядок для стабильного текста коррекции
	order := []string{domain.StatusPause, domain.StatusBuy, domain.StatusSell, domain.StatusCancel}
	var list []string
	for _, s := range order {
		if allowed[s] {
			list = append(list, s)
		}
	}
	return list
}
