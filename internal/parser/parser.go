package parser

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/kirillm/tradebot/internal/domain"
	"github.com/kirillm/tradebot/pkg/utils"
)

var logger = utils.ComponentLogger("parser")

// CleanResponse очищает сырой ответ LLM и извлекает JSON.
//
// Удаляет markdown-ограждения кода, обрезает пробелы и берет область
// от первой '{' до последней '}'. Если фигурных скобок нет, возвращает
// очищенный текст как есть.
func CleanResponse(text string) string {
	text = strings.ReplaceAll(text, "```json", "")
	text = strings.ReplaceAll(text, "```", "")
	text = strings.TrimSpace(text)

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		return text[start : end+1]
	}
	return text
}

// Parse разбирает ответ LLM основного торгового канала в решение.
//
// Неизвестный статус не считается ошибкой: решение принудительно
// заменяется на паузу, а в объяснение дописывается исходное значение.
func Parse(raw string) (domain.Decision, error) {
	return parse(raw, domain.ValidStatuses)
}

// ParseOrders разбирает ответ канала ревизии ордеров.
// Статус buy в этом канале запрещен и также сводится к паузе.
func ParseOrders(raw string) (domain.Decision, error) {
	return parse(raw, domain.ValidOrderStatuses)
}

func parse(raw string, allowed map[string]bool) (domain.Decision, error) {
	cleaned := CleanResponse(raw)
	logger.Debug().Str("raw", raw).Str("cleaned", cleaned).Msg("parsing llm response")

	var data map[string]any
	if err := json.Unmarshal([]byte(cleaned), &data); err != nil {
		return domain.Decision{}, domain.NewParseError("invalid JSON", raw, err)
	}

	rawStatus, ok := data["status"].(string)
	if !ok {
		return domain.Decision{}, domain.NewParseError("missing 'status' field", raw, domain.ErrMissingField)
	}
	respVal, ok := data["response"]
	if !ok {
		return domain.Decision{}, domain.NewParseError("missing 'response' field", raw, domain.ErrMissingField)
	}
	response := fmt.Sprint(respVal)

	status := strings.ToLower(rawStatus)

	// Неизвестный статус исправляем на паузу вместо отказа: пауза
	// безопасна, а причина остается видимой в объяснении решения.
	if !allowed[status] {
		logger.Warn().Str("status", rawStatus).Msg("invalid status corrected to pause")
		note := fmt.Sprintf("Corrected invalid status '%s' to pause. %s", rawStatus, response)
		return domain.NewPauseDecision(note), nil
	}

	switch status {
	case domain.StatusPause:
		return domain.NewPauseDecision(response), nil

	case domain.StatusBuy:
		var missing []string
		for _, field := range []string{"buy_amount", "take_profit_percent", "stop_loss_percent"} {
			if _, ok := data[field]; !ok {
				missing = append(missing, field)
			}
		}
		if len(missing) > 0 {
			reason := fmt.Sprintf("missing fields for buy decision: %s", strings.Join(missing, ", "))
			return domain.Decision{}, domain.NewParseError(reason, raw, domain.ErrMissingField)
		}

		amount, err := toFloat(data["buy_amount"])
		if err != nil {
			return domain.Decision{}, domain.NewParseError("invalid 'buy_amount'", raw, err)
		}
		tp, err := toFloat(data["take_profit_percent"])
		if err != nil {
			return domain.Decision{}, domain.NewParseError("invalid 'take_profit_percent'", raw, err)
		}
		sl, err := toFloat(data["stop_loss_percent"])
		if err != nil {
			return domain.Decision{}, domain.NewParseError("invalid 'stop_loss_percent'", raw, err)
		}
		return domain.NewBuyDecision(response, amount, tp, sl), nil

	case domain.StatusSell:
		val, ok := data["sell_amount"]
		if !ok {
			// в канале ревизии sell без количества означает "продать все"
			if !allowed[domain.StatusBuy] {
				return domain.NewSellDecision(response, 0), nil
			}
			return domain.Decision{}, domain.NewParseError("missing 'sell_amount' for sell decision", raw, domain.ErrMissingField)
		}
		amount, err := toFloat(val)
		if err != nil {
			return domain.Decision{}, domain.NewParseError("invalid 'sell_amount'", raw, err)
		}
		return domain.NewSellDecision(response, amount), nil

	case domain.StatusCancel:
		val, ok := data["order_id"]
		if !ok {
			return domain.Decision{}, domain.NewParseError("missing 'order_id' for cancel decision", raw, domain.ErrMissingField)
		}
		return domain.NewCancelDecision(response, fmt.Sprint(val)), nil
	}

	// недостижимо: allowed гарантирует один из четырех статусов
	return domain.Decision{}, domain.NewParseError(fmt.Sprintf("unknown status: %s", status), raw, nil)
}

// Validate проверяет бизнес-правила торгового решения.
// Невалидное решение не является ошибкой: возвращается false с логом причины.
func Validate(d domain.Decision) bool {
	switch d.Status() {
	case domain.StatusBuy:
		if d.BuyAmount() <= 0 {
			logger.Error().Float64("buy_amount", d.BuyAmount()).Msg("buy amount must be positive")
			return false
		}
		if d.TakeProfitPercent() <= 0 || d.TakeProfitPercent() > 100 {
			logger.Error().Float64("take_profit", d.TakeProfitPercent()).Msg("take profit must be in (0, 100]")
			return false
		}
		if d.StopLossPercent() <= 0 || d.StopLossPercent() > 100 {
			logger.Error().Float64("stop_loss", d.StopLossPercent()).Msg("stop loss must be in (0, 100]")
			return false
		}
		if d.TakeProfitPercent() <= d.StopLossPercent() {
			logger.Error().
				Float64("take_profit", d.TakeProfitPercent()).
				Float64("stop_loss", d.StopLossPercent()).
				Msg("take profit must exceed stop loss")
			return false
		}

	case domain.StatusSell:
		if d.SellAmount() <= 0 {
			logger.Error().Float64("sell_amount", d.SellAmount()).Msg("sell amount must be positive")
			return false
		}

	case domain.StatusCancel:
		if strings.TrimSpace(d.OrderID()) == "" {
			logger.Error().Msg("order id must not be empty")
			return false
		}
	}

	// пауза валидна всегда
	return true
}

// ValidateOrders проверяет решение канала ревизии ордеров.
// Отличие от Validate: sell с нулевым количеством означает "продать все".
func ValidateOrders(d domain.Decision) bool {
	if d.Status() == domain.StatusSell {
		if d.SellAmount() < 0 {
			logger.Error().Float64("sell_amount", d.SellAmount()).Msg("sell amount must not be negative")
			return false
		}
		return true
	}
	return Validate(d)
}

// ParseAndValidate разбирает и валидирует ответ основного канала
func ParseAndValidate(raw string) (domain.Decision, error) {
	decision, err := Parse(raw)
	if err != nil {
		return domain.Decision{}, err
	}
	if !Validate(decision) {
		return domain.Decision{}, domain.NewParseError("decision failed validation", raw, domain.ErrInvalidDecision)
	}
	logger.Info().Str("status", decision.Status()).Msg("decision parsed and validated")
	return decision, nil
}

// ParseAndValidateOrders разбирает и валидирует ответ канала ревизии
func ParseAndValidateOrders(raw string) (domain.Decision, error) {
	decision, err := ParseOrders(raw)
	if err != nil {
		return domain.Decision{}, err
	}
	if !ValidateOrders(decision) {
		return domain.Decision{}, domain.NewParseError("orders decision failed validation", raw, domain.ErrInvalidDecision)
	}
	return decision, nil
}

// ToAPIPayload преобразует решение в полезную нагрузку торгового API.
// Тотальная функция: закрытый тип решения исключает неизвестный вариант.
func ToAPIPayload(d domain.Decision) map[string]any {
	switch d.Status() {
	case domain.StatusBuy:
		return map[string]any{
			"action":              "buy",
			"buy_amount":          d.BuyAmount(),
			"take_profit_percent": d.TakeProfitPercent(),
			"stop_loss_percent":   d.StopLossPercent(),
		}
	case domain.StatusSell:
		return map[string]any{
			"action":      "sell",
			"sell_amount": d.SellAmount(),
		}
	case domain.StatusCancel:
		return map[string]any{
			"action":   "cancel",
			"order_id": d.OrderID(),
		}
	default:
		return map[string]any{"action": "pause"}
	}
}

// toFloat приводит значение JSON к float64 (число или числовая строка)
func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, fmt.Errorf("not a number: %q", n)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("not a number: %v", v)
	}
}
