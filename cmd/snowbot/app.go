package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/snow-emergency-monitor/internal/adapter/discord"
	kafkaadapter "github.com/couchcryptid/snow-emergency-monitor/internal/adapter/kafka"
	"github.com/couchcryptid/snow-emergency-monitor/internal/adapter/sqlite"
	"github.com/couchcryptid/snow-emergency-monitor/internal/adapter/web"
	"github.com/couchcryptid/snow-emergency-monitor/internal/config"
	"github.com/couchcryptid/snow-emergency-monitor/internal/domain"
	"github.com/couchcryptid/snow-emergency-monitor/internal/observability"
	"github.com/couchcryptid/snow-emergency-monitor/internal/pipeline"
)

// app is the wired monitor plus everything that must be closed on exit.
type app struct {
	monitor    *pipeline.Monitor
	dispatcher *pipeline.Dispatcher
	closers    []func() error
	logger     *slog.Logger
}

// buildApp wires the monitor from cfg. A dry run reads persisted state but
// never writes it back and sends no alerts.
func buildApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics, dryRun bool) (*app, error) {
	a := &app{logger: logger}
	clock := clockwork.NewRealClock()

	store, err := a.openStore(ctx, cfg, dryRun)
	if err != nil {
		return nil, err
	}

	var notifiers []pipeline.Notifier
	if !dryRun {
		notifiers = append(notifiers, pipeline.NewLogNotifier(logger))
		if cfg.DiscordWebhookURL != "" {
			notifiers = append(notifiers, discord.NewWebhook(cfg.DiscordWebhookURL, cfg.FetchTimeout, logger))
			logger.Info("discord notifications enabled")
		}
		if cfg.KafkaEnabled {
			w := kafkaadapter.NewWriter(cfg, logger)
			notifiers = append(notifiers, w)
			a.closers = append(a.closers, w.Close)
			logger.Info("kafka alerts enabled", "topic", cfg.KafkaAlertTopic, "brokers", cfg.KafkaBrokers)
		}
	}

	client := web.NewClient(cfg.FetchTimeout, cfg.UserAgent, metrics, logger)
	gatherer := pipeline.NewGatherer(client, cfg.ActiveProbeURL, cfg.NewsProbeURL, logger)
	machine := domain.NewStateMachine(domain.NewCalendar(cfg.Location))
	a.dispatcher = pipeline.NewDispatcher(logger, metrics, clock, notifiers...)

	a.monitor = pipeline.New(gatherer, machine, a.dispatcher, store, clock, logger, metrics, pipeline.Options{
		Interval:       cfg.CheckInterval,
		TestMode:       cfg.TestMode,
		NotifyAllClear: cfg.NotifyAllClear,
	})
	return a, nil
}

var _ pipeline.Pinger = (*sqlite.Store)(nil)

func (a *app) openStore(ctx context.Context, cfg *config.Config, dryRun bool) (pipeline.StateStore, error) {
	if cfg.StateDBPath == "" {
		return pipeline.NewMemoryStore(), nil
	}

	db, err := sqlite.Open(cfg.StateDBPath)
	if err != nil {
		return nil, err
	}
	if !dryRun {
		a.closers = append(a.closers, db.Close)
		a.logger.Info("state persistence enabled", "path", cfg.StateDBPath)
		return db, nil
	}

	defer db.Close() //nolint:errcheck // read-only use
	st, err := db.Load(ctx)
	if err != nil {
		return nil, err
	}
	mem := pipeline.NewMemoryStore()
	if err := mem.Save(ctx, st); err != nil {
		return nil, fmt.Errorf("seed dry-run state: %w", err)
	}
	return mem, nil
}

// close waits for in-flight alerts, then releases resources.
func (a *app) close() {
	a.dispatcher.Wait()
	for _, c := range a.closers {
		if err := c(); err != nil {
			a.logger.Error("close error", "error", err)
		}
	}
}
