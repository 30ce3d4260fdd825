package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kirillm/tradebot/internal/config"
	"github.com/kirillm/tradebot/internal/domain"
	"github.com/kirillm/tradebot/internal/parser"
)

type chatStep struct {
	reply string
	err   error
}

// fakeChat отдает заготовленные ответы по порядку, последний повторяется
type fakeChat struct {
	mu    sync.Mutex
	steps []chatStep
	calls int
	last  []Message
}

func (f *fakeChat) Chat(_ context.Context, messages []Message) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	idx := f.calls
	if idx >= len(f.steps) {
		idx = len(f.steps) - 1
	}
	f.calls++
	f.last = messages
	step := f.steps[idx]
	return step.reply, step.err
}

func (f *fakeChat) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func newTestTrader(chat ChatCompleter, minInterval time.Duration) (*Trader, *[]time.Duration) {
	tr := NewTrader(chat,
		config.OpenAIConfig{MinRequestInterval: minInterval},
		config.TradingConfig{TargetAPY: 30, TradingPair: domain.DefaultInstID},
	)
	var sleeps []time.Duration
	tr.sleep = func(d time.Duration) { sleeps = append(sleeps, d) }
	return tr, &sleeps
}

func testSnapshot() *domain.MarketSnapshot {
	return &domain.MarketSnapshot{
		InstID: domain.DefaultInstID,
		UserData: domain.UserData{
			Balances: domain.Balances{USDT: 100, BTC: 0.001},
		},
	}
}

func regionErr() error {
	return fmt.Errorf("%w: Country, region, or territory not supported", domain.ErrRegionDenied)
}

func TestTrader_ThrottleReturnsCached(t *testing.T) {
	chat := &fakeChat{steps: []chatStep{
		{reply: `{"status":"pause","response":"first"}`},
		{reply: `{"status":"pause","response":"second"}`},
	}}
	tr, _ := newTestTrader(chat, time.Hour)

	got1, err := tr.GetTradingDecision(context.Background(), testSnapshot(), false)
	if err != nil {
		t.Fatalf("first decision: %v", err)
	}

	// второй запрос уходит раньше минимального интервала: без похода в LLM
	got2, err := tr.GetTradingDecision(context.Background(), testSnapshot(), false)
	if err != nil {
		t.Fatalf("throttled decision: %v", err)
	}
	if chat.callCount() != 1 {
		t.Errorf("chat calls = %d, want 1", chat.callCount())
	}
	if got2 != got1 {
		t.Errorf("throttled reply = %q, want cached %q", got2, got1)
	}
}

func TestTrader_ThrottleWithoutHistorySynthesizesPause(t *testing.T) {
	chat := &fakeChat{steps: []chatStep{
		{err: errors.New("upstream down")},
	}}
	tr, _ := newTestTrader(chat, time.Hour)

	if _, err := tr.GetTradingDecision(context.Background(), testSnapshot(), false); err == nil {
		t.Fatal("expected upstream error")
	}

	// удачных ответов не было: троттлинг отдает синтетическую паузу
	got, err := tr.GetTradingDecision(context.Background(), testSnapshot(), false)
	if err != nil {
		t.Fatalf("throttled decision: %v", err)
	}
	d, err := parser.Parse(got)
	if err != nil {
		t.Fatalf("synthesized reply does not parse: %v", err)
	}
	if d.Status() != domain.StatusPause {
		t.Errorf("synthesized status = %q, want pause", d.Status())
	}
}

func TestTrader_InitialBypassesThrottle(t *testing.T) {
	chat := &fakeChat{steps: []chatStep{
		{reply: `{"status":"pause","response":"boot"}`},
		{reply: `{"status":"pause","response":"update"}`},
	}}
	tr, _ := newTestTrader(chat, time.Hour)

	if _, err := tr.GetTradingDecision(context.Background(), testSnapshot(), true); err != nil {
		t.Fatalf("initial decision: %v", err)
	}
	got, err := tr.GetTradingDecision(context.Background(), testSnapshot(), false)
	if err != nil {
		t.Fatalf("first update: %v", err)
	}
	if chat.callCount() != 2 {
		t.Errorf("chat calls = %d, want 2", chat.callCount())
	}
	if !strings.Contains(got, "update") {
		t.Errorf("update reply = %q", got)
	}
}

func TestTrader_InFlightReturnsFallback(t *testing.T) {
	chat := &fakeChat{steps: []chatStep{
		{reply: `{"status":"pause","response":"slow"}`},
	}}
	tr, _ := newTestTrader(chat, time.Nanosecond)

	tr.mu.Lock()
	got, err := tr.GetTradingDecision(context.Background(), testSnapshot(), false)
	tr.mu.Unlock()
	if err != nil {
		t.Fatalf("in-flight decision: %v", err)
	}
	if chat.callCount() != 0 {
		t.Errorf("chat calls = %d, want 0", chat.callCount())
	}
	if d, err := parser.Parse(got); err != nil || d.Status() != domain.StatusPause {
		t.Errorf("in-flight fallback = %q, want pause decision", got)
	}
}

func TestTrader_CorrectiveRetryExactlyOnce(t *testing.T) {
	chat := &fakeChat{steps: []chatStep{
		{reply: `{"status":"strategy","response":"creative"}`},
		{reply: `{"status":"plan","response":"still creative"}`},
	}}
	tr, _ := newTestTrader(chat, time.Nanosecond)

	got, err := tr.GetTradingDecision(context.Background(), testSnapshot(), false)
	if err != nil {
		t.Fatalf("decision: %v", err)
	}
	// одна корректирующая попытка, третьего запроса нет,
	// результат повтора принимается как есть
	if chat.callCount() != 2 {
		t.Errorf("chat calls = %d, want 2", chat.callCount())
	}
	if !strings.Contains(got, "plan") {
		t.Errorf("reply = %q, want the corrective attempt result", got)
	}

	lastUser := chat.last[len(chat.last)-1]
	if lastUser.Role != domain.RoleUser || !strings.Contains(lastUser.Content, domain.StatusPause) {
		t.Errorf("corrective turn = %+v, want user message listing allowed statuses", lastUser)
	}
}

func TestTrader_RegionDeniedCompensation(t *testing.T) {
	chat := &fakeChat{steps: []chatStep{
		{err: regionErr()},
		{err: regionErr()},
		{reply: `{"status":"pause","response":"recovered"}`},
	}}
	tr, sleeps := newTestTrader(chat, time.Nanosecond)

	for i := 0; i < 2; i++ {
		got, err := tr.GetTradingDecision(context.Background(), testSnapshot(), false)
		if err != nil {
			t.Fatalf("denied call %d: %v", i+1, err)
		}
		if d, perr := parser.Parse(got); perr != nil || d.Status() != domain.StatusPause {
			t.Errorf("denied call %d reply = %q, want pause fallback", i+1, got)
		}
	}
	if retries, _, _ := tr.Status(); retries != 2 {
		t.Errorf("retry count = %d, want 2", retries)
	}
	if len(*sleeps) != 2 || (*sleeps)[0] != regionRetryDelay {
		t.Errorf("sleeps = %v, want two delays of %v", *sleeps, regionRetryDelay)
	}

	got, err := tr.GetTradingDecision(context.Background(), testSnapshot(), false)
	if err != nil {
		t.Fatalf("recovered call: %v", err)
	}
	if !strings.Contains(got, "recovered") {
		t.Errorf("recovered reply = %q", got)
	}
	// удачный ответ сбрасывает счетчик компенсаций
	if retries, _, _ := tr.Status(); retries != 0 {
		t.Errorf("retry count after success = %d, want 0", retries)
	}
}

func TestTrader_RegionDeniedExhausted(t *testing.T) {
	chat := &fakeChat{steps: []chatStep{
		{err: regionErr()},
	}}
	tr, _ := newTestTrader(chat, time.Nanosecond)

	for i := 0; i < maxRetries; i++ {
		if _, err := tr.GetTradingDecision(context.Background(), testSnapshot(), false); err != nil {
			t.Fatalf("denied call %d: %v", i+1, err)
		}
	}

	_, err := tr.GetTradingDecision(context.Background(), testSnapshot(), false)
	if !errors.Is(err, domain.ErrRegionDenied) {
		t.Fatalf("err = %v, want ErrRegionDenied after %d compensations", err, maxRetries)
	}
}

func TestTrader_HistoryCapped(t *testing.T) {
	chat := &fakeChat{steps: []chatStep{
		{reply: `{"status":"pause","response":"ok"}`},
	}}
	tr, _ := newTestTrader(chat, time.Nanosecond)

	for i := 0; i < 8; i++ {
		if _, err := tr.GetTradingDecision(context.Background(), testSnapshot(), false); err != nil {
			t.Fatalf("call %d: %v", i+1, err)
		}
	}
	if _, _, hist := tr.Status(); hist != historyLimit {
		t.Errorf("history length = %d, want %d", hist, historyLimit)
	}
}

func TestTrader_OrdersDecisionUsesOrdersStatuses(t *testing.T) {
	chat := &fakeChat{steps: []chatStep{
		// buy недопустим в канале ревизии ордеров: ждем коррекцию
		{reply: `{"status":"buy","response":"more","buy_amount":50,"take_profit_percent":8,"stop_loss_percent":4}`},
		{reply: `{"status":"cancel","response":"stale","order_id":"ord-1"}`},
	}}
	tr, _ := newTestTrader(chat, time.Nanosecond)

	orders := []domain.ActiveOrder{{OrderID: "ord-1", InstID: domain.DefaultInstID, Side: domain.SideBuy}}
	got, err := tr.GetOrdersDecision(context.Background(), testSnapshot(), orders)
	if err != nil {
		t.Fatalf("orders decision: %v", err)
	}
	if chat.callCount() != 2 {
		t.Errorf("chat calls = %d, want 2", chat.callCount())
	}
	if !strings.Contains(got, "cancel") {
		t.Errorf("reply = %q, want the corrected cancel decision", got)
	}
}
