package cmd

import (
	"context"
	"fmt"

	"github.com/notearc/nbq/pkg/auth"
	"github.com/notearc/nbq/pkg/browser"
	"github.com/notearc/nbq/pkg/cache"
	"github.com/notearc/nbq/pkg/config"
	"github.com/notearc/nbq/pkg/detector"
	"github.com/notearc/nbq/pkg/history"
	"github.com/notearc/nbq/pkg/lifecycle"
	"github.com/notearc/nbq/pkg/logging"
	"github.com/notearc/nbq/pkg/metrics"
	"github.com/notearc/nbq/pkg/notebook"
	"github.com/notearc/nbq/pkg/query"
)

type app struct {
	cfg      *config.Config
	driver   *browser.Driver
	creds    *auth.Store
	cache    *cache.Cache
	library  *notebook.Library
	history  *history.Store
	pool     *browser.Pool
	orch     *query.Orchestrator
	shutdown *lifecycle.Manager
}

func wireApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	if err := cfg.EnsureDirs(); err != nil {
		return nil, err
	}
	logging.SetDirectory(cfg.LogDir())

	var responseCache *cache.Cache
	if cfg.CacheEnabled {
		responseCache, err = cache.New(cache.Options{
			Capacity: cfg.CacheSize,
			TTL:      cfg.CacheTTL,
			Path:     cfg.CachePath(),
		})
		if err != nil {
			return nil, fmt.Errorf("open response cache: %w", err)
		}
	}

	library, err := notebook.Open(cfg.LibraryPath())
	if err != nil {
		return nil, err
	}

	driver := browser.NewDriver()
	creds := auth.NewStore(cfg.CredentialsPath(), cfg.EncryptionKey)
	pool := browser.NewPool(driver, creds)

	det := detector.New()
	det.Timeout = cfg.DetectTimeout

	hist := history.NewStore(cfg.HistoryPath())

	orch := query.New(query.Deps{
		Pool:     pool,
		Detector: det,
		Cache:    responseCache,
		Metrics:  metrics.NewRecorder(),
		History:  hist,
		Direct: func(ctx context.Context, question, target string) (string, error) {
			return browser.RunDirect(ctx, driver, creds, det, question, target, cfg.Headless)
		},
		MaxParallel: cfg.MaxParallel,
		Headless:    cfg.Headless,
	})

	// Reverse registration order: sessions close before the driver stops,
	// and the cache flushes last.
	shutdown := lifecycle.NewManager()
	if responseCache != nil {
		shutdown.Register("cache flush", func(ctx context.Context) error {
			return responseCache.Save()
		})
	}
	shutdown.Register("playwright driver", func(ctx context.Context) error {
		return driver.Stop()
	})
	shutdown.Register("browser sessions", pool.CloseAll)

	return &app{
		cfg:      cfg,
		driver:   driver,
		creds:    creds,
		cache:    responseCache,
		library:  library,
		history:  hist,
		pool:     pool,
		orch:     orch,
		shutdown: shutdown,
	}, nil
}
