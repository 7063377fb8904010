package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/BearBump/FareBox/config"
	"github.com/go-chi/chi/v5"
	httpSwagger "github.com/swaggo/http-swagger"
)

type workerHTTPOpts struct {
	httpAddr    string
	swaggerPath string
	onListen    func(httpAddr string)

	worker *fareWorker
	cfg    *config.Config
}

func runWorkerHTTPServer(ctx context.Context, opts workerHTTPOpts) error {
	if opts.httpAddr == "" {
		opts.httpAddr = ":8082"
	}
	if opts.swaggerPath == "" {
		return fmt.Errorf("worker swaggerPath env var is required")
	}
	if _, err := os.Stat(opts.swaggerPath); os.IsNotExist(err) {
		return fmt.Errorf("worker swagger file not found: %s", opts.swaggerPath)
	}

	lis, err := net.Listen("tcp", opts.httpAddr)
	if err != nil {
		return err
	}
	if opts.onListen != nil {
		opts.onListen(lis.Addr().String())
	}

	srv := &http.Server{Handler: newWorkerRouter(opts), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		_ = lis.Close()
	}()

	return srv.Serve(lis)
}

func newWorkerRouter(opts workerHTTPOpts) chi.Router {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if opts.worker == nil || opts.worker.repo == nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"worker not wired"}`))
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := opts.worker.repo.Ping(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "db unavailable", "error": err.Error()})
			return
		}
		_, _ = w.Write([]byte(`{"status":"ready"}`))
	})

	r.Get("/stats", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if opts.worker == nil {
			_, _ = w.Write([]byte(`{"error":"worker not wired"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"scheduler":   opts.worker.scheduler.Stats(),
			"priceChecks": opts.worker.checker.Stats(),
		})
	})

	r.Get("/config", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if opts.cfg == nil {
			_, _ = w.Write([]byte(`{"error":"config not wired"}`))
			return
		}
		// Avoid dumping secrets; show only operational worker settings.
		fb := opts.cfg.FareBox
		out := map[string]any{
			"origin":                     fb.Origin,
			"destinations":               len(fb.Destinations),
			"targetDates":                len(fb.TargetDates),
			"scheduleTimes":              fb.ScheduleTimes,
			"scheduleTimeZone":           fb.ScheduleTimeZone,
			"scheduleIntervalSeconds":    fb.ScheduleIntervalSeconds,
			"retentionDays":              fb.RetentionDays,
			"interCallDelayMillis":       fb.InterCallDelayMillis,
			"onDemandMaxAgeHours":        fb.OnDemandMaxAgeHours,
			"providerType":               fb.ProviderType,
			"providerRateLimitPerMinute": fb.ProviderRateLimitPerMinute,
		}
		_ = json.NewEncoder(w).Encode(out)
	})

	r.Post("/trigger", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if opts.worker == nil {
			_, _ = w.Write([]byte(`{"error":"worker not wired"}`))
			return
		}
		opts.worker.scheduler.Trigger()
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"triggered":true}`))
	})

	r.Get("/swagger.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		http.ServeFile(w, r, opts.swaggerPath)
	})

	swaggerURL := "/swagger.json"
	if fi, err := os.Stat(opts.swaggerPath); err == nil {
		swaggerURL = fmt.Sprintf("/swagger.json?v=%d", fi.ModTime().Unix())
	}
	r.Get("/docs/*", httpSwagger.Handler(httpSwagger.URL(swaggerURL)))

	return r
}
