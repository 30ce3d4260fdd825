package utils

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// SetupLogger настраивает глобальный zerolog-логгер.
//
// Пишет в консоль и, если задан logFile, дублирует в файл в JSON.
// Неизвестный уровень трактуется как info.
func SetupLogger(level, logFile string) error {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}

	console := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}

	var out io.Writer = console
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return err
		}
		out = zerolog.MultiLevelWriter(console, f)
	}

	log.Logger = zerolog.New(out).Level(lvl).With().Timestamp().Logger()
	return nil
}

// ComponentLogger возвращает логгер с меткой компонента
func ComponentLogger(name string) zerolog.Logger {
	return log.With().Str("component", name).Logger()
}

// LogTradingDecision логирует принятое торговое решение единым форматом
func LogTradingDecision(status, details string) {
	log.Info().
		Str("event", "trading_decision").
		Str("status", status).
		Msg(details)
}

// LogAPICall логирует обращение к торговому API
func LogAPICall(endpoint, method string, statusCode int, elapsed time.Duration) {
	log.Debug().
		Str("event", "api_call").
		Str("endpoint", endpoint).
		Str("method", method).
		Int("status", statusCode).
		Dur("elapsed", elapsed).
		Msg("trading api call")
}

// LogLLMInteraction логирует обмен с LLM
func LogLLMInteraction(kind string, responseLen int, elapsed time.Duration) {
	log.Debug().
		Str("event", "llm_interaction").
		Str("kind", kind).
		Int("response_len", responseLen).
		Dur("elapsed", elapsed).
		Msg("llm interaction")
}
