package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config содержит все настройки приложения
type Config struct {
	OpenAI   OpenAIConfig
	API      APIConfig
	Trading  TradingConfig
	Telegram TelegramConfig
	Policy   PolicyConfig
	LogLevel string
	LogFile  string
}

type OpenAIConfig struct {
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
	// Минимальный интервал между запросами к LLM
	MinRequestInterval time.Duration
}

type APIConfig struct {
	BaseURL  string
	DemoMode bool
}

type TradingConfig struct {
	TargetAPY           float64
	TradingPair         string
	UpdateInterval      time.Duration
	OrderReviewInterval time.Duration
}

type TelegramConfig struct {
	BotToken string
	ChatID   int64
}

type PolicyConfig struct {
	// Путь к YAML с лимитами безопасности (опционально)
	LimitsFile       string
	MaxRiskPerTrade  float64
	MaxOpenPositions int
}

// Load загружает конфигурацию из .env файла
func Load() (*Config, error) {
	// Загружаем .env файл (если есть)
	if err := godotenv.Load(); err != nil {
		fmt.Println("Warning: .env file not found, using environment variables")
	}

	demoMode, err := strconv.ParseBool(getEnv("DEMO_MODE", "false"))
	if err != nil {
		return nil, fmt.Errorf("invalid DEMO_MODE: %w", err)
	}

	temperature, err := strconv.ParseFloat(getEnv("OPENAI_TEMPERATURE", "0.1"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid OPENAI_TEMPERATURE: %w", err)
	}

	maxTokens, err := strconv.Atoi(getEnv("OPENAI_MAX_TOKENS", "500"))
	if err != nil {
		return nil, fmt.Errorf("invalid OPENAI_MAX_TOKENS: %w", err)
	}

	minInterval, err := time.ParseDuration(getEnv("OPENAI_MIN_REQUEST_INTERVAL", "5s"))
	if err != nil {
		return nil, fmt.Errorf("invalid OPENAI_MIN_REQUEST_INTERVAL: %w", err)
	}

	targetAPY, err := strconv.ParseFloat(getEnv("TARGET_APY", "30"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid TARGET_APY: %w", err)
	}

	updateInterval, err := time.ParseDuration(getEnv("UPDATE_INTERVAL", "5m"))
	if err != nil {
		return nil, fmt.Errorf("invalid UPDATE_INTERVAL: %w", err)
	}

	orderReviewInterval, err := time.ParseDuration(getEnv("ORDER_REVIEW_INTERVAL", "10m"))
	if err != nil {
		return nil, fmt.Errorf("invalid ORDER_REVIEW_INTERVAL: %w", err)
	}

	chatID, err := strconv.ParseInt(getEnv("TELEGRAM_CHAT_ID", "0"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid TELEGRAM_CHAT_ID: %w", err)
	}

	maxRisk, err := strconv.ParseFloat(getEnv("MAX_RISK_PER_TRADE", "0"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid MAX_RISK_PER_TRADE: %w", err)
	}

	maxPositions, err := strconv.Atoi(getEnv("MAX_OPEN_POSITIONS", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid MAX_OPEN_POSITIONS: %w", err)
	}

	config := &Config{
		OpenAI: OpenAIConfig{
			APIKey:             getEnv("OPENAI_API_KEY", ""),
			Model:              getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			Temperature:        temperature,
			MaxTokens:          maxTokens,
			MinRequestInterval: minInterval,
		},
		API: APIConfig{
			BaseURL:  getEnv("TRADING_API_BASE_URL", "http://localhost:8001"),
			DemoMode: demoMode,
		},
		Trading: TradingConfig{
			TargetAPY:           targetAPY,
			TradingPair:         getEnv("TRADING_PAIR", "BTC-USDT"),
			UpdateInterval:      updateInterval,
			OrderReviewInterval: orderReviewInterval,
		},
		Telegram: TelegramConfig{
			BotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
			ChatID:   chatID,
		},
		Policy: PolicyConfig{
			LimitsFile:       getEnv("POLICY_LIMITS_FILE", ""),
			MaxRiskPerTrade:  maxRisk,
			MaxOpenPositions: maxPositions,
		},
		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogFile:  getEnv("LOG_FILE", "tradebot.log"),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate проверяет обязательные поля конфигурации
func (c *Config) Validate() error {
	if c.OpenAI.APIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required")
	}
	if c.API.BaseURL == "" {
		return fmt.Errorf("TRADING_API_BASE_URL is required")
	}
	if c.Trading.UpdateInterval <= 0 {
		return fmt.Errorf("UPDATE_INTERVAL must be positive")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
