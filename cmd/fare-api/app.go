package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	faresapi "github.com/BearBump/FareBox/internal/api/fares_api"
	"github.com/BearBump/FareBox/internal/broker/messages"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	httpSwagger "github.com/swaggo/http-swagger"
)

type fareAPIOpts struct {
	httpAddr    string
	swaggerPath string

	topic         string
	consumerGroup string

	onListen func(httpAddr string)
}

type priceCheckedConsumer interface {
	ConsumePriceChecked(ctx context.Context, handler func(ctx context.Context, m messages.PriceChecked) error) error
}

type latestInvalidator interface {
	InvalidateLatest(ctx context.Context, targetDateID int64) error
}

func runFareAPI(ctx context.Context, opts fareAPIOpts, api *faresapi.FaresAPI, inv latestInvalidator, consumer priceCheckedConsumer) error {
	if opts.swaggerPath == "" {
		return fmt.Errorf("swaggerPath env var is required")
	}
	if _, err := os.Stat(opts.swaggerPath); os.IsNotExist(err) {
		return fmt.Errorf("swagger file not found: %s", opts.swaggerPath)
	}

	lis, err := net.Listen("tcp", opts.httpAddr)
	if err != nil {
		return err
	}
	if opts.onListen != nil {
		opts.onListen(lis.Addr().String())
	}

	httpErr := make(chan error, 1)
	go func() {
		httpErr <- runHTTPServer(ctx, lis, api, opts.swaggerPath)
	}()

	go func() {
		slog.Info("kafka consumer started", "topic", opts.topic, "group", opts.consumerGroup)
		err := consumer.ConsumePriceChecked(ctx, func(ctx context.Context, m messages.PriceChecked) error {
			// кэш не критичен: ошибку логируем и едем дальше
			if err := inv.InvalidateLatest(ctx, m.TargetDateID); err != nil {
				slog.Warn("latest prices cache invalidation failed",
					"target_date_id", m.TargetDateID, "error", err.Error())
			}
			return nil
		})
		if err != nil && ctx.Err() == nil {
			slog.Error("kafka consumer stopped", "topic", opts.topic, "error", err.Error())
		}
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-httpErr:
		return err
	}
}

func newRouter(api *faresapi.FaresAPI, swaggerPath string) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/swagger.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		http.ServeFile(w, r, swaggerPath)
	})
	r.Get("/docs/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger.json"),
	))

	api.Routes(r)
	return r
}

func runHTTPServer(ctx context.Context, lis net.Listener, api *faresapi.FaresAPI, swaggerPath string) error {
	srv := &http.Server{
		Handler:           newRouter(api, swaggerPath),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("HTTP API listening", "addr", lis.Addr().String())
	if err := srv.Serve(lis); err != nil && err != http.ErrServerClosed {
		return err
	}
	return ctx.Err()
}
