package policy

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Limits торговые лимиты предохранителя.
// Значения по умолчанию подходят для BTC-USDT на споте,
// файл лимитов может переопределить любое поле.
type Limits struct {
	// Минимальный номинал покупки, USDT
	MinBuyAmount float64 `yaml:"min_buy_amount"`

	// Неприкосновенный остаток USDT, который нельзя тратить
	ReserveUSDT float64 `yaml:"reserve_usdt"`

	// Максимальная доля баланса на одну сделку, процент
	MaxRiskPerTrade float64 `yaml:"max_risk_per_trade"`

	// Максимум одновременно открытых ордеров
	MaxOpenPositions int `yaml:"max_open_positions"`
}

// DefaultLimits лимиты по умолчанию
func DefaultLimits() Limits {
	return Limits{
		MinBuyAmount:     10,
		ReserveUSDT:      35,
		MaxRiskPerTrade:  0,
		MaxOpenPositions: 0,
	}
}

// LoadLimits читает лимиты из YAML-файла поверх значений по умолчанию.
// Пустой путь — работаем на дефолтах.
func LoadLimits(path string) (Limits, error) {
	limits := DefaultLimits()
	if path == "" {
		return limits, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return limits, fmt.Errorf("failed to read limits file: %w", err)
	}
	if err := yaml.Unmarshal(data, &limits); err != nil {
		return limits, fmt.Errorf("failed to parse limits file: %w", err)
	}

	if limits.MinBuyAmount < 0 || limits.ReserveUSDT < 0 {
		return limits, fmt.Errorf("limits file %s: negative limit values", path)
	}
	return limits, nil
}
