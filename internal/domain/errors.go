package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrRegionDenied возвращается когда LLM-провайдер отклонил запрос по географии
	ErrRegionDenied = errors.New("llm request denied for current region")

	// ErrMissingField возвращается когда в ответе LLM отсутствует обязательное поле
	ErrMissingField = errors.New("missing required field")

	// ErrInvalidDecision возвращается когда решение не прошло бизнес-валидацию
	ErrInvalidDecision = errors.New("decision failed validation")

	// ErrNotInitialized возвращается при запуске бота без инициализации
	ErrNotInitialized = errors.New("bot is not initialized")

	// ErrAlreadyRunning возвращается при повторном запуске бота
	ErrAlreadyRunning = errors.New("bot is already running")
)

// ParseError ошибка разбора ответа LLM
type ParseError struct {
	Reason string
	Raw    string // фрагмент исходного текста для диагностики
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse error: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("parse error: %s", e.Reason)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// NewParseError создает ошибку парсинга с фрагментом исходного текста
func NewParseError(reason, raw string, err error) *ParseError {
	const maxExcerpt = 200
	if len(raw) > maxExcerpt {
		raw = raw[:maxExcerpt] + "..."
	}
	return &ParseError{Reason: reason, Raw: raw, Err: err}
}

// APIError ошибка торгового API (HTTP или транспорт)
type APIError struct {
	Endpoint   string
	StatusCode int
	Body       string
	Err        error
}

func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("trading api error: %s returned %d: %s", e.Endpoint, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("trading api error: %s: %v", e.Endpoint, e.Err)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// LLMError некомпенсируемая ошибка LLM-провайдера
type LLMError struct {
	Op  string
	Err error
}

func (e *LLMError) Error() string {
	return fmt.Sprintf("llm error: %s: %v", e.Op, e.Err)
}

func (e *LLMError) Unwrap() error {
	return e.Err
}
