package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BearBump/FareBox/config"
	faresapi "github.com/BearBump/FareBox/internal/api/fares_api"
	"github.com/BearBump/FareBox/internal/broker/kafka"
	"github.com/BearBump/FareBox/internal/cache/rediscache"
	"github.com/BearBump/FareBox/internal/integrations/flights/provider"
	"github.com/BearBump/FareBox/internal/services/catalog"
	"github.com/BearBump/FareBox/internal/services/history"
	"github.com/BearBump/FareBox/internal/services/pricecheck"
	"github.com/BearBump/FareBox/internal/services/scheduler"
	"github.com/BearBump/FareBox/internal/storage/pgfares"
)

type fareAPIApp struct {
	ctx      context.Context
	cancel   context.CancelFunc
	opts     fareAPIOpts
	api      *faresapi.FaresAPI
	history  *history.Service
	consumer *kafka.Consumer
	closers  []func()
}

func mustBootstrapFareAPI() *fareAPIApp {
	cfgPath := os.Getenv("configPath")
	if cfgPath == "" {
		panic("configPath env var is required")
	}
	swaggerPath := os.Getenv("swaggerPath")
	if swaggerPath == "" {
		panic("swaggerPath env var is required")
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		panic(fmt.Sprintf("ошибка парсинга конфига, %v", err))
	}
	fb := cfg.FareBox

	origin := fb.Origin
	if origin == "" {
		origin = "FRA"
	}
	httpAddr := fb.HTTPAddr
	if httpAddr == "" {
		httpAddr = ":8080"
	}
	consumerGroup := fb.KafkaConsumerGroup
	if consumerGroup == "" {
		consumerGroup = "fare-api"
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

	// "сегодня" для upcoming считаем в той же зоне, что и расписание
	planner, err := scheduler.NewPlanner(scheduler.PlannerConfig{
		Times:    fb.ScheduleTimes,
		TimeZone: fb.ScheduleTimeZone,
	})
	if err != nil {
		panic(fmt.Sprintf("invalid schedule config: %v", err))
	}

	st := mustOpenPostgresWithRetry(cfg.Database.ConnString(), 60*time.Second)

	redisAddr := fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)
	rc := rediscache.New(redisAddr)
	rl := rediscache.NewRateLimiter(redisAddr)

	hist := history.New(st, rc, latestTTL)
	cat := catalog.New(st, rc, destinationsTTL).
		WithLocation(planner.Location()).
		WithLatestInvalidator(hist)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	if err := cat.SyncFromConfig(ctx, fb); err != nil {
		panic(fmt.Sprintf("config sync failed: %v", err))
	}

	brokers := []string{fmt.Sprintf("%s:%d", cfg.Kafka.Host, cfg.Kafka.Port)}
	producer := kafka.NewProducer(brokers)
	consumer := kafka.NewConsumer(brokers, topic, consumerGroup)

	client, providerName := provider.New(fb)
	slog.Info("flight provider selected", "provider", providerName)

	checker := pricecheck.New(cat, hist, client, producer, rl, topic).
		WithSettings(interCallDelay, int64(fb.ProviderRateLimitPerMinute)).
		WithProviderName(providerName)

	api := faresapi.New(cat, hist, checker, origin).
		WithDefaultMaxAgeHours(fb.OnDemandMaxAgeHours)

	return &fareAPIApp{
		ctx:    ctx,
		cancel: cancel,
		opts: fareAPIOpts{
			httpAddr:      httpAddr,
			swaggerPath:   swaggerPath,
			topic:         topic,
			consumerGroup: consumerGroup,
		},
		api:      api,
		history:  hist,
		consumer: consumer,
		closers: []func(){
			func() { _ = producer.Close() },
			func() { _ = rl.Close() },
			func() { _ = rc.Close() },
			st.Close,
		},
	}
}

func mustOpenPostgresWithRetry(connString string, wait time.Duration) *pgfares.Storage {
	deadline := time.Now().Add(wait)
	var lastErr error
	for time.Now().Before(deadline) {
		st, err := pgfares.New(connString)
		if err == nil {
			return st
		}
		lastErr = err
		time.Sleep(1 * time.Second)
	}
	panic(fmt.Sprintf("postgres is not ready after %s: %v", wait, lastErr))
}

func (a *fareAPIApp) Close() {
	if a.cancel != nil {
		a.cancel()
	}
	if a.consumer != nil {
		_ = a.consumer.Close()
	}
	for _, fn := range a.closers {
		fn()
	}
}

func (a *fareAPIApp) Run() error {
	return runFareAPI(a.ctx, a.opts, a.api, a.history, a.consumer)
}
