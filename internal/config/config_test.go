package config

import (
	"testing"
	"time"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("TRADING_API_BASE_URL", "http://localhost:8001")
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.OpenAI.Model != "gpt-4o-mini" {
		t.Errorf("model = %q", cfg.OpenAI.Model)
	}
	if cfg.OpenAI.Temperature != 0.1 || cfg.OpenAI.MaxTokens != 500 {
		t.Errorf("llm params = %.2f/%d, want 0.1/500", cfg.OpenAI.Temperature, cfg.OpenAI.MaxTokens)
	}
	if cfg.OpenAI.MinRequestInterval != 5*time.Second {
		t.Errorf("min request interval = %v, want 5s", cfg.OpenAI.MinRequestInterval)
	}
	if cfg.Trading.TradingPair != "BTC-USDT" {
		t.Errorf("trading pair = %q", cfg.Trading.TradingPair)
	}
	if cfg.Trading.UpdateInterval != 5*time.Minute || cfg.Trading.OrderReviewInterval != 10*time.Minute {
		t.Errorf("intervals = %v/%v, want 5m/10m", cfg.Trading.UpdateInterval, cfg.Trading.OrderReviewInterval)
	}
	if cfg.API.DemoMode {
		t.Error("demo mode on by default")
	}
}

func TestLoad_Overrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("DEMO_MODE", "true")
	t.Setenv("UPDATE_INTERVAL", "30s")
	t.Setenv("TELEGRAM_CHAT_ID", "123456")
	t.Setenv("TARGET_APY", "45")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.API.DemoMode {
		t.Error("demo mode not applied")
	}
	if cfg.Trading.UpdateInterval != 30*time.Second {
		t.Errorf("update interval = %v, want 30s", cfg.Trading.UpdateInterval)
	}
	if cfg.Telegram.ChatID != 123456 {
		t.Errorf("chat id = %d", cfg.Telegram.ChatID)
	}
	if cfg.Trading.TargetAPY != 45 {
		t.Errorf("target apy = %v", cfg.Trading.TargetAPY)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"missing api key", "OPENAI_API_KEY", ""},
		{"bad demo mode", "DEMO_MODE", "maybe"},
		{"bad interval", "UPDATE_INTERVAL", "fast"},
		{"bad chat id", "TELEGRAM_CHAT_ID", "not-a-number"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequiredEnv(t)
			t.Setenv(tt.key, tt.value)
			if _, err := Load(); err == nil {
				t.Error("expected error")
			}
		})
	}
}
