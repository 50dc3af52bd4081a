package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/scoutline/scout-cli/internal/connector"
	"github.com/scoutline/scout-cli/internal/connector/feed"
	"github.com/scoutline/scout-cli/internal/fetcher"
	"github.com/scoutline/scout-cli/internal/runner"
	"github.com/scoutline/scout-cli/internal/scheduler"
	"github.com/scoutline/scout-cli/internal/scoring"
	"github.com/scoutline/scout-cli/internal/store"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.Path
		if dsn == "" {
			dsn = "scout.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// buildRegistry assembles the connector catalog from config. Connectors
// without configuration are simply not registered.
func buildRegistry() *connector.Registry {
	reg := connector.NewRegistry()

	if cfg.Feed.URL != "" {
		f := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{})
		reg.Register(feed.New(feed.Config{
			URL:     cfg.Feed.URL,
			Channel: cfg.Feed.Channel,
			Cadence: cfg.Feed.Cadence,
		}, f))
	}

	return reg
}

func buildScheduler(st store.Store, reg *connector.Registry) *scheduler.Scheduler {
	return scheduler.New(reg, st, st, st, scheduler.Options{
		Waves:   scheduler.ParseWaves(cfg.Scheduler.PriorityWaves),
		LockTTL: cfg.LockTTL(),
	})
}

func buildExecutor(st store.Store, reg *connector.Registry) *runner.Executor {
	var limiter *rate.Limiter
	if cfg.Worker.FetchRatePerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.Worker.FetchRatePerSec), 1)
	}
	return runner.New(st, reg, scoring.New(cfg.RecencyPolicy()), runner.Options{
		Backoff:      cfg.SchedulerBackoff(),
		FetchLimiter: limiter,
	})
}

func pollInterval() time.Duration {
	return time.Duration(cfg.Worker.PollIntervalSec) * time.Second
}
