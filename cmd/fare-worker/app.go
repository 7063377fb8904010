package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/BearBump/FareBox/config"
	"github.com/BearBump/FareBox/internal/broker/kafka"
	"github.com/BearBump/FareBox/internal/cache"
	"github.com/BearBump/FareBox/internal/cache/rediscache"
	"github.com/BearBump/FareBox/internal/integrations/flights"
	"github.com/BearBump/FareBox/internal/integrations/flights/provider"
	"github.com/BearBump/FareBox/internal/services/catalog"
	"github.com/BearBump/FareBox/internal/services/history"
	"github.com/BearBump/FareBox/internal/services/pricecheck"
	"github.com/BearBump/FareBox/internal/services/scheduler"
	"github.com/BearBump/FareBox/internal/storage/pgfares"
)

// fareStore is what the worker needs from storage: the catalog and the price
// history, plus a readiness check.
type fareStore interface {
	catalog.Repository
	history.Repository
	Ping(ctx context.Context) error
}

type workerFactories struct {
	newStorage       func(cfg *config.Config) (repo fareStore, closeFn func(), err error)
	newCache         func(cfg *config.Config) cache.BytesCache
	newProducer      func(cfg *config.Config) pricecheck.Producer
	newRateLimiter   func(cfg *config.Config) pricecheck.RateLimiter
	newFlightsClient func(cfg *config.Config) (flights.Client, string)
}

func defaultWorkerFactories() workerFactories {
	return workerFactories{
		newStorage: func(cfg *config.Config) (fareStore, func(), error) {
			st, err := pgfares.New(cfg.Database.ConnString())
			if err != nil {
				return nil, nil, err
			}
			return st, st.Close, nil
		},
		newCache: func(cfg *config.Config) cache.BytesCache {
			return rediscache.New(fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port))
		},
		newProducer: func(cfg *config.Config) pricecheck.Producer {
			brokers := []string{fmt.Sprintf("%s:%d", cfg.Kafka.Host, cfg.Kafka.Port)}
			return kafka.NewProducer(brokers)
		},
		newRateLimiter: func(cfg *config.Config) pricecheck.RateLimiter {
			redisAddr := fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)
			return rediscache.NewRateLimiter(redisAddr)
		},
		newFlightsClient: func(cfg *config.Config) (flights.Client, string) {
			// По умолчанию mock; bookingcom только при заданном api key.
			return provider.New(cfg.FareBox)
		},
	}
}

type fareWorker struct {
	scheduler *scheduler.Scheduler
	checker   *pricecheck.Service
	repo      fareStore
}

func buildFareWorker(ctx context.Context, cfg *config.Config, f workerFactories) (*fareWorker, func(), error) {
	fb := cfg.FareBox

	origin := fb.Origin
	if origin == "" {
		origin = "FRA"
	}
	topic := cfg.Kafka.PriceCheckedTopicName
	if topic == "" {
		topic = "price.checked"
	}
	latestTTL := time.Duration(fb.LatestPricesTTLSeconds) * time.Second
	if latestTTL <= 0 {
		latestTTL = 10 * time.Minute
	}
	destinationsTTL := time.Duration(fb.DestinationsTTLSeconds) * time.Second
	if destinationsTTL <= 0 {
		destinationsTTL = 24 * time.Hour
	}
	interCallDelay := time.Duration(fb.InterCallDelayMillis) * time.Millisecond
	if interCallDelay <= 0 {
		interCallDelay = pricecheck.DefaultInterCallDelay
	}
	// 0 = по умолчанию, отрицательное значение выключает очистку
	retentionDays := fb.RetentionDays
	switch {
	case retentionDays == 0:
		retentionDays = scheduler.DefaultRetentionDays
	case retentionDays < 0:
		retentionDays = 0
	}

	planner, err := scheduler.NewPlanner(scheduler.PlannerConfig{
		Times:    fb.ScheduleTimes,
		TimeZone: fb.ScheduleTimeZone,
		Interval: time.Duration(fb.ScheduleIntervalSeconds) * time.Second,
	})
	if err != nil {
		return nil, nil, err
	}

	repo, closeFn, err := f.newStorage(cfg)
	if err != nil {
		return nil, nil, err
	}
	if closeFn == nil {
		closeFn = func() {}
	}

	c := f.newCache(cfg)
	hist := history.New(repo, c, latestTTL)
	cat := catalog.New(repo, c, destinationsTTL).
		WithLocation(planner.Location()).
		WithLatestInvalidator(hist)

	if err := cat.SyncFromConfig(ctx, fb); err != nil {
		closeFn()
		return nil, nil, err
	}

	client, providerName := f.newFlightsClient(cfg)
	slog.Info("flight provider selected", "provider", providerName)

	checker := pricecheck.New(cat, hist, client, f.newProducer(cfg), f.newRateLimiter(cfg), topic).
		WithSettings(interCallDelay, int64(fb.ProviderRateLimitPerMinute)).
		WithProviderName(providerName)

	sched := scheduler.New(checker, hist, planner, origin).
		WithRetention(retentionDays)

	return &fareWorker{scheduler: sched, checker: checker, repo: repo}, closeFn, nil
}

// RunFareWorker runs the scheduler until ctx is done. The worker HTTP surface
// is started when swaggerPath is set.
func RunFareWorker(ctx context.Context, cfg *config.Config, f workerFactories, swaggerPath string) error {
	w, closeFn, err := buildFareWorker(ctx, cfg, f)
	if err != nil {
		return err
	}
	defer closeFn()

	if swaggerPath != "" {
		go func() {
			err := runWorkerHTTPServer(ctx, workerHTTPOpts{
				httpAddr:    cfg.FareBox.WorkerHTTPAddr,
				swaggerPath: swaggerPath,
				worker:      w,
				cfg:         cfg,
			})
			if err != nil && ctx.Err() == nil {
				slog.Error("worker HTTP server stopped", "error", err.Error())
			}
		}()
	}

	return w.scheduler.Run(ctx)
}
