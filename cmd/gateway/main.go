// Command gateway is the HTTP acceptor (SPEC_FULL §13.2): it parses the
// command line, builds the configured selection policy, starts the probe
// scheduler, and serves every request through the middleware chain in
// front of the dispatcher.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/oschwald/geoip2-golang"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tanmay/gateway/internal/config"
	"github.com/tanmay/gateway/internal/dispatcher"
	"github.com/tanmay/gateway/internal/geopolicy"
	"github.com/tanmay/gateway/internal/logging"
	"github.com/tanmay/gateway/internal/middleware"
	"github.com/tanmay/gateway/internal/pool"
)

const listenAddr = "127.0.0.1:8080"

func main() {
	cfg, err := config.ParseGateway(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log, err := logging.New(logging.Config{Level: logging.LevelFromEnv().String()})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	policy, err := buildPolicy(cfg, log)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	scheduler := pool.NewScheduler(policy, cfg.HealthCheckInterval)
	scheduler.Start()
	defer scheduler.Stop()

	disp := dispatcher.New(policy, log)

	rateLimiter := middleware.NewRateLimiter(cfg.Ambient.RateLimit.MaxTokens, cfg.Ambient.RateLimit.RefillRate)
	circuitBreaker := middleware.NewCircuitBreaker(
		cfg.Ambient.CircuitBreaker.Threshold,
		time.Duration(cfg.Ambient.CircuitBreaker.Timeout)*time.Second,
	)

	stages := []middleware.Middleware{
		middleware.RequestID(),
		middleware.Metrics(),
		middleware.Logging(log),
		rateLimiter.Middleware(),
	}
	if cfg.Ambient.Auth.Enabled() {
		auth := middleware.NewAuth(cfg.Ambient.Auth.APIKeys, cfg.Ambient.Auth.JWTSecret)
		stages = append(stages, auth.Middleware())
	}
	stages = append(stages, circuitBreaker.Middleware())

	handler := middleware.Pipeline(disp, stages...)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/pool", poolHandler(policy))
	mux.Handle("/", handler)

	srv := &http.Server{Addr: listenAddr, Handler: mux}

	shutdownComplete := make(chan struct{})
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		<-sigCh

		log.Info("shutting down", nil)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Error("shutdown error", map[string]interface{}{"error": err.Error()})
		}
		close(shutdownComplete)
	}()

	log.Info("gateway listening", map[string]interface{}{"addr": listenAddr})
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	<-shutdownComplete
}

// buildPolicy constructs a pool.SelectionPolicy of the kind selected by the
// command line, wiring in a GeoIP2 database for the geo-aware variant. Every
// backend is given the gateway's logger so Probe can warn about a non-2xx
// health response.
func buildPolicy(cfg config.Gateway, log *logging.Logger) (pool.SelectionPolicy, error) {
	backends := make([]*pool.Backend, len(cfg.Backends))
	for i, addr := range cfg.Backends {
		backends[i] = pool.NewBackendWithLogger(addr, log)
	}

	switch cfg.Policy {
	case config.LeastResponse:
		return pool.NewLeastResponsePolicy(backends), nil
	case config.GeoAware:
		db, err := geoip2.Open(cfg.GeoDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open GeoIP database: %w", err)
		}
		return geopolicy.New(backends, db), nil
	default:
		return pool.NewRoundRobinPolicy(backends), nil
	}
}

// poolHandler serves the read-only diagnostics snapshot (SPEC_FULL §13.3).
func poolHandler(policy pool.SelectionPolicy) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(policy.Snapshot())
	}
}
