package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/duetbots/adam/internal/access"
	"github.com/duetbots/adam/internal/bot"
	"github.com/duetbots/adam/internal/config"
	"github.com/duetbots/adam/internal/dialogue"
	"github.com/duetbots/adam/internal/groq"
	"github.com/duetbots/adam/internal/logging"
	"github.com/duetbots/adam/internal/memory"
	"github.com/duetbots/adam/internal/persona"
	"github.com/duetbots/adam/internal/ratelimit"
	"github.com/duetbots/adam/internal/respond"
	"github.com/duetbots/adam/internal/store"
	"github.com/duetbots/adam/internal/webhook"
)

func main() {
	// .env is optional; real deployments use the environment directly.
	envLoaded := godotenv.Load() == nil

	cfg := config.Load()
	logger := logging.New(cfg.LogLevel)

	if envLoaded {
		logger.Info("loaded .env file")
	}
	if err := cfg.Validate(); err != nil {
		logger.WithError(err).Fatal("invalid configuration")
	}

	bank, err := persona.Load(cfg.PersonaPath)
	if err != nil {
		logger.WithError(err).Fatal("failed to load persona")
	}

	var accessStore *store.Store
	if st, err := store.Open(filepath.Join(cfg.StatePath, "access.db")); err != nil {
		logger.WithError(err).Error("access store unavailable, running in-memory")
	} else {
		accessStore = st
		defer st.Close()
	}

	mem := memory.New(logging.ForSubsystem(logger, "memory"))
	limiter := ratelimit.New()
	accessCtl := access.New(accessStore, cfg.AdminIDs, logging.ForSubsystem(logger, "access"))

	transport := webhook.New(webhook.Config{
		Port:          cfg.WebhookPort,
		CompanionURL:  cfg.CompanionURL,
		Secret:        cfg.WebhookSecret,
		SelfName:      cfg.BotName,
		CompanionName: cfg.CompanionName,
		Timeout:       cfg.RequestTimeout,
	}, bank, logging.ForSubsystem(logger, "webhook"))

	completer := groq.NewClient(cfg.GroqBaseURL, cfg.GroqAPIKey, cfg.GroqModel)
	generator := respond.New(completer, bank, mem, logging.ForSubsystem(logger, "respond"))

	coordinator := dialogue.New(dialogue.Config{
		CompanionName:   cfg.CompanionName,
		SolicitProb:     cfg.SolicitProb,
		PublicChance:    cfg.PublicChance,
		MaxHelpPerChat:  cfg.MaxHelpPerChat,
		HelpCooldown:    cfg.HelpCooldown,
		SessionTimeout:  cfg.SessionTimeout,
		ConversationLen: cfg.ConversationLen,
		DelayMin:        cfg.ResponseDelayMin,
		DelayMax:        cfg.ResponseDelayMax,
	}, transport, nil, bank, logging.ForSubsystem(logger, "dialogue"))

	adam, err := bot.New(cfg, bot.Deps{
		Memory:      mem,
		Limiter:     limiter,
		Generator:   generator,
		Coordinator: coordinator,
		Transport:   transport,
		Access:      accessCtl,
		Bank:        bank,
	}, logging.ForSubsystem(logger, "bot"))
	if err != nil {
		logger.WithError(err).Fatal("failed to create bot")
	}
	coordinator.SetMessenger(adam)

	if err := adam.Start(); err != nil {
		logger.WithError(err).Fatal("failed to start bot")
	}
	logger.WithFields(logrus.Fields{
		"bot":       cfg.BotName,
		"companion": cfg.CompanionName,
		"webhook":   cfg.WebhookPort,
	}).Info("adam is online")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := adam.Stop(ctx); err != nil {
		logger.WithError(err).Error("shutdown error")
	}
}
