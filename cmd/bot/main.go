package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/kirillm/tradebot/internal/ai"
	"github.com/kirillm/tradebot/internal/api"
	"github.com/kirillm/tradebot/internal/bot"
	"github.com/kirillm/tradebot/internal/config"
	"github.com/kirillm/tradebot/internal/policy"
	"github.com/kirillm/tradebot/internal/telegram"
	"github.com/kirillm/tradebot/pkg/utils"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	if err := utils.SetupLogger(cfg.LogLevel, cfg.LogFile); err != nil {
		log.Fatal().Err(err).Msg("failed to set up logger")
	}

	log.Info().
		Str("pair", cfg.Trading.TradingPair).
		Bool("demo", cfg.API.DemoMode).
		Str("model", cfg.OpenAI.Model).
		Msg("starting trading bot")

	limits, err := policy.LoadLimits(cfg.Policy.LimitsFile)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load policy limits")
	}
	if cfg.Policy.MaxRiskPerTrade > 0 {
		limits.MaxRiskPerTrade = cfg.Policy.MaxRiskPerTrade
	}
	if cfg.Policy.MaxOpenPositions > 0 {
		limits.MaxOpenPositions = cfg.Policy.MaxOpenPositions
	}

	apiClient := api.NewClient(cfg.API)
	defer apiClient.Close()

	chat := ai.NewChatClient(cfg.OpenAI)
	trader := ai.NewTrader(chat, cfg.OpenAI, cfg.Trading)

	notifier, err := telegram.NewNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID)
	if err != nil {
		log.Warn().Err(err).Msg("telegram setup failed, continuing without notifications")
	}

	b := bot.New(cfg, apiClient, trader, policy.NewGate(limits), notifier)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := b.Initialize(ctx); err != nil {
		log.Fatal().Err(err).Msg("initialization failed")
	}

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		s := <-sig
		log.Info().Str("signal", s.String()).Msg("shutdown signal received")
		b.Stop()
		cancel()
	}()

	if err := b.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal().Err(err).Msg("trading bot exited with error")
	}
}
