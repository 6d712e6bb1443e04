package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/ashureev/duhoc-advisor/internal/agent"
	"github.com/ashureev/duhoc-advisor/internal/analytics"
	"github.com/ashureev/duhoc-advisor/internal/config"
	"github.com/ashureev/duhoc-advisor/internal/llm"
	"github.com/ashureev/duhoc-advisor/internal/store"
)

// app holds the dependencies shared by the serve and chat commands.
type app struct {
	cfg      *config.Config
	repo     store.Repository
	model    llm.LLM
	convLog  agent.ConversationLogger
	registry *prometheus.Registry
	svc      *agent.Service
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	logger := slog.Default()

	repo, err := store.Open(ctx, store.Options{
		Driver:      cfg.Database.Driver,
		Path:        cfg.Database.Path,
		URL:         cfg.Database.URL,
		AutoMigrate: cfg.Database.AutoMigrate,
	})
	if err != nil {
		return nil, fmt.Errorf("initialize database: %w", err)
	}
	if err := repo.Ping(ctx); err != nil {
		_ = repo.Close()
		return nil, fmt.Errorf("database health check: %w", err)
	}
	slog.Info("Database connected", "driver", cfg.Database.Driver)

	model, err := llm.New(ctx, cfg.Agent, logger)
	if err != nil {
		_ = repo.Close()
		return nil, fmt.Errorf("initialize llm: %w", err)
	}
	slog.Info("LLM provider ready", "provider", model.Name(), "model", cfg.Agent.Model)

	convLog, err := agent.NewConversationLogger(cfg.ConversationLog, logger)
	if err != nil {
		llm.Close(model)
		_ = repo.Close()
		return nil, fmt.Errorf("initialize conversation logger: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := analytics.NewMetrics(registry)

	svc := agent.NewService(repo, model, cfg.Agent,
		agent.WithRecorder(analytics.NewRecorder(cfg.Agent.AnalyticsEnabled, metrics)),
		agent.WithConversationLogger(convLog),
	)

	return &app{
		cfg:      cfg,
		repo:     repo,
		model:    model,
		convLog:  convLog,
		registry: registry,
		svc:      svc,
	}, nil
}

func (a *app) Close() {
	if err := a.convLog.Close(); err != nil {
		slog.Error("Failed to close conversation logger", "error", err)
	}
	llm.Close(a.model)
	if err := a.repo.Close(); err != nil {
		slog.Error("Failed to close repository", "error", err)
	}
}
