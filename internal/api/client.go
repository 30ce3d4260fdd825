package api

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"github.com/kirillm/tradebot/internal/config"
	"github.com/kirillm/tradebot/internal/domain"
	"github.com/kirillm/tradebot/pkg/utils"
)

const requestTimeout = 30 * time.Second

// Client клиент торгового API.
//
// Без состояния и без повторов: повторные попытки, если нужны,
// остаются на стороне вызывающего цикла.
type Client struct {
	demoMode bool
	client   *resty.Client
	logger   zerolog.Logger
}

// NewClient создает новый клиент торгового API
func NewClient(cfg config.APIConfig) *Client {
	client := resty.New()
	client.SetBaseURL(cfg.BaseURL)
	client.SetTimeout(requestTimeout)
	client.SetHeader("Content-Type", "application/json")
	client.SetHeader("User-Agent", "TradeBot/1.0.0")

	return &Client{
		demoMode: cfg.DemoMode,
		client:   client,
		logger:   utils.ComponentLogger("api_client"),
	}
}

// Close освобождает соединения HTTP-клиента
func (c *Client) Close() {
	c.client.GetClient().CloseIdleConnections()
	c.logger.Info().Msg("trading api client closed")
}

// get выполняет GET-запрос и декодирует тело ответа в out
func (c *Client) get(ctx context.Context, endpoint string, query map[string]string, out any) error {
	started := time.Now()
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParams(query).
		Get(endpoint)
	if err != nil {
		return &domain.APIError{Endpoint: endpoint, Err: err}
	}
	utils.LogAPICall(endpoint, "GET", resp.StatusCode(), time.Since(started))

	if resp.IsError() {
		return &domain.APIError{Endpoint: endpoint, StatusCode: resp.StatusCode(), Body: string(resp.Body())}
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return &domain.APIError{Endpoint: endpoint, Err: fmt.Errorf("malformed response body: %w", err)}
	}
	return nil
}

// post выполняет POST-запрос с JSON-телом и декодирует ответ в out
func (c *Client) post(ctx context.Context, endpoint string, body any, out any) error {
	started := time.Now()
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(body).
		Post(endpoint)
	if err != nil {
		return &domain.APIError{Endpoint: endpoint, Err: err}
	}
	utils.LogAPICall(endpoint, "POST", resp.StatusCode(), time.Since(started))

	if resp.IsError() {
		return &domain.APIError{Endpoint: endpoint, StatusCode: resp.StatusCode(), Body: string(resp.Body())}
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return &domain.APIError{Endpoint: endpoint, Err: fmt.Errorf("malformed response body: %w", err)}
	}
	return nil
}

// Health проверяет состояние торгового API
func (c *Client) Health(ctx context.Context) (map[string]any, error) {
	var result map[string]any
	if err := c.get(ctx, "/api/v1/health", nil, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// MarketAnalytics получает тяжелый исторический снапшот рынка
func (c *Client) MarketAnalytics(ctx context.Context) (*domain.MarketSnapshot, error) {
	var snapshot domain.MarketSnapshot
	query := map[string]string{"demo": fmt.Sprintf("%t", c.demoMode)}
	if err := c.get(ctx, "/api/v1/market/analytics", query, &snapshot); err != nil {
		return nil, err
	}
	c.logger.Info().Str("inst_id", snapshot.InstID).Msg("market analytics received")
	return &snapshot, nil
}

// MarketMonitor получает легкий снапшот текущего состояния рынка
func (c *Client) MarketMonitor(ctx context.Context) (*domain.MarketSnapshot, error) {
	var snapshot domain.MarketSnapshot
	query := map[string]string{"demo": fmt.Sprintf("%t", c.demoMode)}
	if err := c.get(ctx, "/api/v1/market/monitor", query, &snapshot); err != nil {
		return nil, err
	}
	c.logger.Debug().Str("inst_id", snapshot.InstID).Msg("market monitor received")
	return &snapshot, nil
}

// PlaceBuyOrder размещает ордер на покупку
func (c *Client) PlaceBuyOrder(ctx context.Context, amount, takeProfitPercent, stopLossPercent float64) (*domain.OrderResult, error) {
	body := map[string]any{
		"buy_amount":          amount,
		"take_profit_percent": takeProfitPercent,
		"stop_loss_percent":   stopLossPercent,
		"demo":                c.demoMode,
	}

	c.logger.Info().
		Float64("amount", amount).
		Float64("take_profit", takeProfitPercent).
		Float64("stop_loss", stopLossPercent).
		Msg("placing buy order")

	var result domain.OrderResult
	if err := c.post(ctx, "/api/v1/orders/buy", body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// PlaceSellOrder размещает ордер на продажу.
// Нулевой amount означает продажу всей позиции: поле sell_amount
// в запросе опускается и сервер продает весь доступный BTC.
func (c *Client) PlaceSellOrder(ctx context.Context, amount float64) (*domain.OrderResult, error) {
	body := map[string]any{
		"demo": c.demoMode,
	}
	if amount > 0 {
		body["sell_amount"] = amount
	}

	c.logger.Info().Float64("amount", amount).Msg("placing sell order")

	var result domain.OrderResult
	if err := c.post(ctx, "/api/v1/orders/sell", body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// CancelOrder отменяет ордер
func (c *Client) CancelOrder(ctx context.Context, orderID string) (*domain.OrderResult, error) {
	body := map[string]any{
		"order_id": orderID,
		"demo":     c.demoMode,
	}

	c.logger.Info().Str("order_id", orderID).Msg("cancelling order")

	var result domain.OrderResult
	if err := c.post(ctx, "/api/v1/orders/cancel", body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ListOrders возвращает список активных ордеров
func (c *Client) ListOrders(ctx context.Context) ([]domain.ActiveOrder, error) {
	var orders []domain.ActiveOrder
	if err := c.get(ctx, "/api/v1/orders", nil, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// TestConnection проверяет доступность API без проброса ошибки.
// Используется только для стартовой диагностики.
func (c *Client) TestConnection(ctx context.Context) bool {
	if _, err := c.Health(ctx); err != nil {
		c.logger.Error().Err(err).Msg("trading api connection failed")
		return false
	}
	c.logger.Info().Msg("trading api connection established")
	return true
}
