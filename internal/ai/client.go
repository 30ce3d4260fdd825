package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kirillm/tradebot/internal/config"
	"github.com/kirillm/tradebot/internal/domain"
)

// Полный таймаут на один запрос к LLM: сетевой вызов плюс ожидание
// генерации у completion-бэкендов.
const chatTimeout = 120 * time.Second

// Message сообщение чата с ролью
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatCompleter транспорт чат-завершений (подменяется в тестах)
type ChatCompleter interface {
	Chat(ctx context.Context, messages []Message) (string, error)
}

// ChatClient клиент OpenAI-совместимого chat completions API
type ChatClient struct {
	apiKey      string
	baseURL     string
	model       string
	temperature float64
	maxTokens   int
	client      *http.Client
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error struct {
		Message string `json:"message"`
		Code    string `json:"code"`
	} `json:"error"`
}

// NewChatClient создает клиент LLM из конфигурации
func NewChatClient(cfg config.OpenAIConfig) *ChatClient {
	return &ChatClient{
		apiKey:      cfg.APIKey,
		baseURL:     "https://api.openai.com",
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		client:      &http.Client{Timeout: chatTimeout},
	}
}

// SetBaseURL переопределяет адрес API (для тестов и совместимых провайдеров)
func (c *ChatClient) SetBaseURL(baseURL string) {
	c.baseURL = baseURL
}

// Chat отправляет сообщения и возвращает текст ответа модели.
// Региональный отказ провайдера различается отдельно: он компенсируется
// выше по стеку, в отличие от остальных ошибок.
func (c *ChatClient) Chat(ctx context.Context, messages []Message) (string, error) {
	requestBody := chatRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	}

	jsonData, err := json.Marshal(requestBody)
	if err != nil {
		return "", &domain.LLMError{Op: "marshal request", Err: err}
	}

	// Build endpoint, avoiding double /v1 if baseURL already contains it
	endpoint := c.baseURL
	if !strings.HasSuffix(endpoint, "/v1") {
		endpoint += "/v1"
	}
	endpoint += "/chat/completions"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", &domain.LLMError{Op: "build request", Err: err}
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.apiKey))

	resp, err := c.client.Do(req)
	if err != nil {
		return "", &domain.LLMError{Op: "send request", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &domain.LLMError{Op: "read response", Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		if isRegionDenied(resp.StatusCode, body) {
			return "", fmt.Errorf("%w: %s", domain.ErrRegionDenied, string(body))
		}
		return "", &domain.LLMError{Op: "chat completion", Err: fmt.Errorf("api returned %d: %s", resp.StatusCode, string(body))}
	}

	var chatResp chatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return "", &domain.LLMError{Op: "decode response", Err: err}
	}

	if len(chatResp.Choices) == 0 {
		return "", &domain.LLMError{Op: "chat completion", Err: fmt.Errorf("no choices in response")}
	}

	return chatResp.Choices[0].Message.Content, nil
}

// isRegionDenied распознает отказ провайдера по географии
func isRegionDenied(statusCode int, body []byte) bool {
	if statusCode != http.StatusForbidden {
		return false
	}
	text := string(body)
	return strings.Contains(text, "unsupported_country_region_territory") ||
		strings.Contains(text, "Country, region, or territory not supported")
}
