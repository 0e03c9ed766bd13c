// Package app initializes and holds the long-lived services, acting as the
// dependency injection container. Providers are selected from configuration
// and initialization fails fast on anything misconfigured.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/retakeai/retake/internal/ai"
	"github.com/retakeai/retake/internal/archive"
	"github.com/retakeai/retake/internal/config"
	"github.com/retakeai/retake/internal/discovery"
	"github.com/retakeai/retake/internal/ingest"
	"github.com/retakeai/retake/internal/metrics"
	"github.com/retakeai/retake/internal/notify"
	"github.com/retakeai/retake/internal/scraper"
	"github.com/retakeai/retake/internal/search"
	"github.com/retakeai/retake/internal/store"
	"github.com/retakeai/retake/internal/store/postgres"
	"github.com/retakeai/retake/internal/store/sqlite"
)

// App holds the shared services for the process lifetime.
type App struct {
	Config    config.Config
	Logger    *zap.Logger
	Scraper   *scraper.Client
	Local     store.Local
	Cloud     store.Cloud
	Archive   archive.Store
	Notifier  notify.Publisher
	Extractor ai.IntentExtractor
	Embedder  ai.Embedder
	Ingester  *ingest.Service
	Search    *search.Service
	Discovery *discovery.Service

	renderer *scraper.ChromedpRenderer
}

// New wires every service from configuration. A nil store interface means
// that tier is disabled; unknown provider names are a startup error.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	metrics.Init()

	a := &App{Config: cfg, Logger: logger}

	a.renderer = scraper.NewChromedpRenderer(cfg.Scraper)
	a.Scraper = scraper.NewClient(cfg.Scraper, scraper.NewCollyGetter(cfg.Scraper), a.renderer, logger)

	if err := a.initStores(ctx, cfg); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.initAI(cfg); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.initArchive(ctx, cfg); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.initNotifier(ctx, cfg); err != nil {
		a.Close()
		return nil, err
	}

	a.Ingester = ingest.New(a.Local, a.Cloud, a.Embedder, logger)
	a.Search = search.New(a.Local, a.Cloud, a.Extractor, a.Embedder, logger)
	a.Discovery = discovery.New(a.Scraper, a.Ingester, a.Cloud, a.Archive, a.Notifier, cfg.Notify.Topic, cfg.Source.BaseURL, logger)

	logger.Info("application services initialized",
		zap.String("local", cfg.Local.Provider),
		zap.String("cloud", cfg.Cloud.Provider),
		zap.String("ai", cfg.AI.Provider),
		zap.String("archive", cfg.Archive.Provider),
		zap.String("notify", cfg.Notify.Provider))
	return a, nil
}

func (a *App) initStores(ctx context.Context, cfg config.Config) error {
	switch cfg.Local.Provider {
	case "sqlite":
		local, err := sqlite.New(cfg.Local.Path, a.Logger)
		if err != nil {
			return fmt.Errorf("initialize local store: %w", err)
		}
		a.Local = local
	case "noop":
		a.Logger.Info("local store disabled")
	default:
		return fmt.Errorf("unknown local store provider: %s", cfg.Local.Provider)
	}

	switch cfg.Cloud.Provider {
	case "postgres":
		cloud, err := postgres.New(ctx, postgres.Config{
			DSN:      cfg.Cloud.DSN,
			MaxConns: cfg.Cloud.MaxConns,
		}, a.Logger)
		if err != nil {
			return fmt.Errorf("initialize cloud store: %w", err)
		}
		a.Cloud = cloud
	case "noop":
		a.Logger.Info("cloud store disabled")
	default:
		return fmt.Errorf("unknown cloud store provider: %s", cfg.Cloud.Provider)
	}
	return nil
}

func (a *App) initAI(cfg config.Config) error {
	switch cfg.AI.Provider {
	case "gemini":
		client, err := ai.NewGeminiClient(cfg.AI, nil, a.Logger)
		if err != nil {
			return fmt.Errorf("initialize ai client: %w", err)
		}
		a.Extractor = client
		a.Embedder = client
	case "noop":
		a.Logger.Info("ai capability disabled")
		a.Extractor = ai.Noop{}
		a.Embedder = ai.Noop{}
	default:
		return fmt.Errorf("unknown ai provider: %s", cfg.AI.Provider)
	}
	return nil
}

func (a *App) initArchive(ctx context.Context, cfg config.Config) error {
	switch cfg.Archive.Provider {
	case "gcs":
		st, err := archive.NewGCS(ctx, cfg.Archive.Bucket)
		if err != nil {
			return fmt.Errorf("initialize archive: %w", err)
		}
		a.Archive = st
	case "local":
		st, err := archive.NewLocal(cfg.Archive.BaseDir)
		if err != nil {
			return fmt.Errorf("initialize archive: %w", err)
		}
		a.Archive = st
	case "noop":
		a.Archive = archive.Noop{}
	default:
		return fmt.Errorf("unknown archive provider: %s", cfg.Archive.Provider)
	}
	return nil
}

func (a *App) initNotifier(ctx context.Context, cfg config.Config) error {
	switch cfg.Notify.Provider {
	case "pubsub":
		pub, err := notify.NewPubSub(ctx, cfg.Notify.ProjectID)
		if err != nil {
			return fmt.Errorf("initialize notifier: %w", err)
		}
		a.Notifier = pub
	case "memory":
		a.Notifier = notify.NewMemory()
	case "noop":
		a.Notifier = notify.Noop{}
	default:
		return fmt.Errorf("unknown notify provider: %s", cfg.Notify.Provider)
	}
	return nil
}

// Close releases every held resource. Safe to call on a partially
// initialized App.
func (a *App) Close() {
	if a.renderer != nil {
		a.renderer.Close()
	}
	if a.Local != nil {
		if err := a.Local.Close(); err != nil {
			a.Logger.Warn("closing local store", zap.Error(err))
		}
	}
	if a.Cloud != nil {
		a.Cloud.Close()
	}
	if a.Archive != nil {
		if err := a.Archive.Close(); err != nil {
			a.Logger.Warn("closing archive", zap.Error(err))
		}
	}
	if a.Notifier != nil {
		if err := a.Notifier.Close(); err != nil {
			a.Logger.Warn("closing notifier", zap.Error(err))
		}
	}
}
