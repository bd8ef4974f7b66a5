package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/voxnote/dictation-gateway/internal/config"
	"github.com/voxnote/dictation-gateway/internal/engine"
	"github.com/voxnote/dictation-gateway/internal/gateway"
	"github.com/voxnote/dictation-gateway/internal/history"
	"github.com/voxnote/dictation-gateway/internal/observability"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		// Use fmt for fatal errors before logger is initialized
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize structured logger
	observability.InitLogger(cfg.LogLevel, cfg.LogPretty)
	logger := observability.GetLogger()

	logger.Info().
		Str("port", cfg.Port).
		Str("engine", cfg.Engine).
		Str("log_level", cfg.LogLevel).
		Bool("metrics_enabled", cfg.MetricsEnabled).
		Msg("Dictation Gateway starting")

	// Recognition engine factory
	var factory engine.Factory
	switch cfg.Engine {
	case config.EngineStub:
		factory = engine.NewStubFactory(engine.StubScript{})
		logger.Warn().Msg("Using stub recognition engine; transcripts are canned")
	default:
		// mu-law client audio is expanded to linear PCM by the gateway before
		// it reaches the engine.
		encoding := cfg.AudioEncoding
		if encoding == config.AudioEncodingMulaw {
			encoding = config.AudioEncodingLinear16
		}
		factory = engine.NewDeepgramFactory(engine.DeepgramConfig{
			APIKey:     cfg.DeepgramAPIKey,
			Model:      cfg.DeepgramModel,
			Encoding:   encoding,
			SampleRate: cfg.AudioSampleRate,
			Channels:   cfg.AudioChannels,
		})
	}

	// Durable store for the document and transcript history
	dbPath := cfg.HistoryDBPath
	if dbPath == "" {
		dbPath = history.DefaultDBPath()
	}
	store, err := history.OpenSQLite(dbPath)
	if err != nil {
		logger.Fatal().Err(err).Str("path", dbPath).Msg("Failed to open history database")
	}
	defer store.Close()

	manager := history.NewManager(store, history.Options{
		AutosaveDebounce: cfg.AutosaveDebounce(),
	})

	// Create HTTP server
	mux := http.NewServeMux()

	// Dictation client WebSocket endpoint
	mux.HandleFunc("/ws", gateway.Handler(cfg, factory, manager))

	// Health check endpoint
	mux.HandleFunc("/health", observability.HealthCheckHandler())

	// Readiness endpoint
	mux.HandleFunc("/ready", observability.ReadinessHandler(map[string]observability.HealthCheckFunc{
		"store": func(ctx context.Context) (bool, error) {
			if err := store.Ping(ctx); err != nil {
				return false, err
			}
			return true, nil
		},
		"engine": func(ctx context.Context) (bool, error) {
			// Creating an engine validates configuration without dialing the
			// backend, so readiness does not burn API quota.
			if _, err := factory.New(probeListener{}); err != nil {
				return false, err
			}
			return true, nil
		},
	}))

	// Metrics endpoint (Prometheus)
	if cfg.MetricsEnabled {
		mux.Handle("/metrics", promhttp.Handler())
		logger.Info().Msg("Prometheus metrics enabled at /metrics")
	}

	// Create HTTP server with timeouts
	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("endpoint", fmt.Sprintf("ws://localhost:%s/ws", cfg.Port)).
			Msg("Server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	// Flush any pending debounced autosave before the store closes.
	manager.Flush()

	logger.Info().Msg("Server exited gracefully")
}

// probeListener satisfies engine.Listener for readiness probes; the probe
// engine is never started.
type probeListener struct{}

func (probeListener) OnResult(engine.ResultBatch) {}
func (probeListener) OnEnd()                      {}
func (probeListener) OnError(string)              {}
