package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"deckcore/internal/blob"
	"deckcore/internal/catalog"
	"deckcore/internal/config"
	"deckcore/internal/core"
	"deckcore/internal/persistence"
	"deckcore/pkg/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// globalFlags are the persistent root flags.
type globalFlags struct {
	configPath string
	envFile    string
	deckID     string
	logLevel   string
	trace      bool
}

// app is everything a command needs, built once per invocation.
type app struct {
	cfg      config.Config
	logger   *slog.Logger
	catalog  *catalog.Catalog
	store    domain.SnapshotStore
	registry *prometheus.Registry
	provider *sdktrace.TracerProvider
	svc      *core.Service
	out      io.Writer
}

func newApp(ctx context.Context, flags globalFlags, out, errOut io.Writer) (*app, error) {
	cfg, err := config.Load(flags.configPath, flags.envFile)
	if err != nil {
		return nil, err
	}
	if flags.deckID != "" {
		cfg.DeckID = flags.deckID
	}
	if flags.logLevel != "" {
		cfg.Log.Level = flags.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid flags: %w", err)
	}

	a := &app{cfg: cfg, out: out}
	a.logger = config.NewLogger(cfg.Log, errOut)

	a.catalog = catalog.New()
	if cfg.Catalog != "" {
		if a.catalog, err = catalog.Load(cfg.Catalog); err != nil {
			return nil, err
		}
	}

	if a.store, err = persistence.Open(ctx, cfg.Persistence, a.logger); err != nil {
		return nil, err
	}
	archive, err := blob.Open(ctx, cfg.Archive)
	if err != nil {
		_ = a.store.Close()
		return nil, err
	}

	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	var tracer core.Tracer
	if flags.trace {
		tracer = core.NewJSONTracer(errOut)
	} else {
		a.provider = sdktrace.NewTracerProvider()
		tracer = core.NewOTelTracer(a.provider.Tracer("deckcore"))
	}

	opts := []core.Option{
		core.WithDeckID(cfg.DeckID),
		core.WithLogger(a.logger),
		core.WithAuditRecorder(core.NewSlogAuditRecorder(a.logger)),
		core.WithMetricsRecorder(core.NewPrometheusMetricsRecorder(a.registry, cfg.Metrics.Namespace)),
		core.WithTracer(tracer),
		core.WithStore(a.store),
		core.WithInvariantChecks(cfg.Strict),
	}
	if archive != nil {
		opts = append(opts, core.WithArchive(archive))
	}
	if cfg.Hand.Seed != 0 {
		opts = append(opts, core.WithHandSeed(cfg.Hand.Seed))
	}
	a.svc = core.NewService(a.catalog, opts...)

	if err := a.svc.Load(ctx); err != nil && !errors.Is(err, domain.ErrSnapshotNotFound) {
		_ = a.close(ctx)
		return nil, err
	}
	a.logger.Debug("deck ready",
		"deck", cfg.DeckID,
		"store", a.store.Driver(),
		"cards", a.svc.Deck().Total(),
		"catalog", a.catalog.Len())
	return a, nil
}

func (a *app) close(ctx context.Context) error {
	var errs []error
	if a.provider != nil {
		errs = append(errs, a.provider.Shutdown(context.WithoutCancel(ctx)))
	}
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	return errors.Join(errs...)
}
