// cmd/agent-server/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"weather-agent/internal/agent"
	"weather-agent/internal/common/config"
	"weather-agent/internal/common/database"
	"weather-agent/internal/common/logger"
	"weather-agent/internal/common/observability"
	"weather-agent/internal/extract"
	"weather-agent/internal/forecast"
	"weather-agent/internal/geocode"
	"weather-agent/internal/llm"
	"weather-agent/internal/server"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootstrap := logger.New("info", "console")
		bootstrap.Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()

	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting weather agent server...",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	jaegerEndpoint := ""
	if cfg.Observability.TracingEnabled {
		jaegerEndpoint = cfg.Observability.JaegerEndpoint
	}
	obs := observability.New(cfg.App.Name, jaegerEndpoint)
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Init Redis (optional geocode cache) with retry ---
	var redis *database.RedisClient
	if cfg.Redis.Enabled {
		err = retryWithBackoff(func() error {
			var err error
			redis, err = database.NewRedis(cfg.Redis)
			if err != nil {
				return err
			}
			return redis.Ping(ctx)
		}, 5, 2*time.Second, zapLog, "Redis connection")

		if err != nil {
			// The cache is an optimization; run uncached rather than refuse to start.
			zapLog.Warn("redis unavailable, geocode caching disabled", zap.Error(err))
			redis = nil
		} else {
			defer redis.Close()
			zapLog.Info("Redis connected successfully")
		}
	}

	// --- Build the pipeline ---
	clock := clockwork.NewRealClock()

	llmClient := llm.NewHTTPClient(cfg.LLM, log)
	extractor := extract.New(llmClient, clock, cfg.LLM.ExtractTemperature, log)

	var geocoder geocode.Geocoder = geocode.NewNominatimClient(cfg.Geocoding, log)
	if redis != nil && cfg.Geocoding.CacheTTL > 0 {
		geocoder = geocode.NewCachedGeocoder(geocoder, redis, cfg.Geocoding.GetCacheTTL(), log)
	}

	provider := forecast.NewOpenMeteoClient(cfg.Forecast, log)

	weatherAgent, err := agent.New(extractor, geocoder, provider, llmClient, cfg.LLM.SummaryTemperature, obs, log)
	if err != nil {
		zapLog.Fatal("agent setup failed", zap.Error(err))
	}

	srv := server.New(cfg, weatherAgent, clock, log)

	// --- Metrics + pprof sidecar ---
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.Handle("/debug/pprof/", http.DefaultServeMux)

		addr := fmt.Sprintf(":%d", cfg.Server.MetricsPort)
		zapLog.Info("Metrics server listening", zap.String("addr", addr))
		if err := http.ListenAndServe(addr, mux); err != nil {
			zapLog.Error("metrics server stopped", zap.Error(err))
		}
	}()

	// --- Serve until signalled ---
	go func() {
		zapLog.Info("HTTP server listening", zap.Int("port", cfg.Server.Port))
		if err := srv.Listen(); err != nil {
			zapLog.Fatal("http server stopped", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	zapLog.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("shutdown error", zap.Error(err))
	}

	zapLog.Info("Weather agent server stopped")
}
