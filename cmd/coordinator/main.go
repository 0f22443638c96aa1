// linkmind coordinator: the Admission API, Durable Task Runtime, and Probe
// Bridge wired into a single process.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/linkmind-dev/linkmind/internal/api"
	"github.com/linkmind-dev/linkmind/internal/config"
	"github.com/linkmind-dev/linkmind/internal/llm"
	"github.com/linkmind-dev/linkmind/internal/pipeline"
	"github.com/linkmind-dev/linkmind/internal/probebridge"
	"github.com/linkmind-dev/linkmind/internal/runtime"
	"github.com/linkmind-dev/linkmind/internal/scrape"
	"github.com/linkmind-dev/linkmind/internal/store"
	"github.com/linkmind-dev/linkmind/internal/version"
)

const taskQueue = "links"

func main() {
	envPath := flag.String("env-file", getEnv("ENV_FILE", ".env"), "Path to .env file")
	flag.Parse()

	cfg, err := config.Load(*envPath)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	configureLogging(cfg)

	slog.Info("starting "+version.Full(), "http_addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbCfg, err := store.LoadConfigFromEnv()
	if err != nil {
		slog.Error("failed to load database configuration", "error", err)
		os.Exit(1)
	}

	client, err := store.NewClient(ctx, dbCfg)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer client.Close()
	slog.Info("connected to postgres")

	deps := buildPipelineDependencies(client)
	registry := runtime.NewRegistry()
	pipeline.Register(registry, deps)

	runtimeCfg := runtime.DefaultConfig(taskQueue)
	runtimeCfg.WorkerCount = cfg.WorkerConcurrency
	runtimeCfg.MaxConcurrentTasks = cfg.WorkerConcurrency
	pool := runtime.NewPool(client, registry, runtimeCfg)
	pool.Start(ctx)
	defer pool.Stop()

	resultHandler := pipeline.NewProbeResultHandler(client, client, taskQueue)
	bridge := probebridge.NewManager(client, resultHandler)

	go runExpirySweeps(ctx, client, cfg.ProbeEventTimeout)

	server := api.NewServer(cfg, client, client, pool, bridge, taskQueue)

	serveErr := make(chan error, 1)
	go func() { serveErr <- server.Start(ctx) }()

	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	case err := <-serveErr:
		if err != nil {
			slog.Error("admission api exited", "error", err)
		}
	}
}

// buildPipelineDependencies wires the process-link and refresh-related task
// handlers' collaborators. The Anthropic client and Ollama embedder are
// both optional: a freshly cloned deployment may not have LLM credentials
// configured yet, and the pipeline degrades by skipping those steps rather
// than failing to start.
func buildPipelineDependencies(client *store.Client) pipeline.Dependencies {
	deps := pipeline.Dependencies{
		Store:     client,
		Extractor: scrape.NewHTTPExtractor(&http.Client{Timeout: 30 * time.Second}),
		OCR:       scrape.NoopOCR{},
	}

	if apiKey := os.Getenv("ANTHROPIC_API_KEY"); apiKey != "" {
		model := getEnv("ANTHROPIC_MODEL", "claude-sonnet-4-5")
		anthropic, err := llm.NewAnthropicClient(apiKey, model, 1024)
		if err != nil {
			slog.Warn("anthropic client disabled", "error", err)
		} else {
			deps.Summarizer = anthropic
			deps.Insighter = anthropic
		}
	} else {
		slog.Warn("ANTHROPIC_API_KEY not set, summarization and insight generation disabled")
	}

	if ollamaURL := os.Getenv("OLLAMA_BASE_URL"); ollamaURL != "" {
		model := getEnv("OLLAMA_EMBED_MODEL", "nomic-embed-text")
		deps.Embedder = llm.NewOllamaEmbedder(ollamaURL, model, &http.Client{Timeout: 30 * time.Second})
	} else {
		slog.Warn("OLLAMA_BASE_URL not set, embedding and related-link discovery disabled")
	}

	return deps
}

// runExpirySweeps periodically fails probe events and device-code
// enrollments that have sat unanswered past their deadline. An expired probe
// event is marked errored and only logged here; its link stays in
// waiting_probe.
func runExpirySweeps(ctx context.Context, client *store.Client, probeTimeout time.Duration) {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			expired, err := client.SweepExpiredProbeEvents(ctx, int(probeTimeout.Seconds()))
			if err != nil {
				slog.Error("probe event expiry sweep failed", "error", err)
			} else if len(expired) > 0 {
				slog.Warn("expired stale probe events", "count", len(expired))
			}

			if err := client.ExpireStaleDeviceAuths(ctx); err != nil {
				slog.Error("device auth expiry sweep failed", "error", err)
			}
		}
	}
}

func configureLogging(cfg *config.Config) {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel}
	var handler slog.Handler

	if cfg.LogFilePath != "" {
		f, err := os.OpenFile(cfg.LogFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			slog.Warn("could not open log file, logging to stderr", "path", cfg.LogFilePath, "error", err)
			handler = slog.NewJSONHandler(os.Stderr, opts)
		} else {
			handler = slog.NewJSONHandler(f, opts)
		}
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	slog.SetDefault(slog.New(handler))
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
