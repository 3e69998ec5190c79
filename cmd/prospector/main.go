// Prospector runs one lead-prospecting job from the command line: it reads a
// business context file, wires the external adapters from the environment,
// runs the pipeline, and writes the event stream to stdout as NDJSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/Nellia-dev/prospector/pkg/config"
	"github.com/Nellia-dev/prospector/pkg/events"
	"github.com/Nellia-dev/prospector/pkg/llm"
	"github.com/Nellia-dev/prospector/pkg/llm/anthropic"
	"github.com/Nellia-dev/prospector/pkg/llm/openai"
	"github.com/Nellia-dev/prospector/pkg/models"
	"github.com/Nellia-dev/prospector/pkg/pipeline"
	"github.com/Nellia-dev/prospector/pkg/rag"
	"github.com/Nellia-dev/prospector/pkg/store"
	"github.com/Nellia-dev/prospector/pkg/webtools"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	configPath := flag.String("config", "", "Path to YAML configuration file (optional)")
	contextPath := flag.String("context", "", "Path to the business context JSON file (required)")
	jobID := flag.String("job-id", "", "Job identifier (generated when empty)")
	userID := flag.String("user-id", "cli", "User identifier")
	maxLeads := flag.Int("max-leads", 5, "Maximum number of leads to generate")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	if *contextPath == "" {
		logger.Error("missing required -context flag")
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	var bc models.BusinessContext
	raw, err := os.ReadFile(*contextPath)
	if err != nil {
		logger.Error("failed to read business context", "path", *contextPath, "error", err)
		os.Exit(1)
	}
	if err := json.Unmarshal(raw, &bc); err != nil {
		logger.Error("failed to parse business context", "path", *contextPath, "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := buildDeps(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to wire external services", "error", err)
		os.Exit(1)
	}

	orch, err := pipeline.New(cfg, deps)
	if err != nil {
		logger.Error("failed to build orchestrator", "error", err)
		os.Exit(1)
	}

	id := *jobID
	if id == "" {
		id = uuid.NewString()
	}
	job := models.Job{
		JobID:     id,
		UserID:    *userID,
		Business:  bc,
		MaxLeads:  *maxLeads,
		CreatedAt: time.Now().UTC(),
	}
	logger.Info("starting job", "job_id", job.JobID, "max_leads", job.MaxLeads)

	enc := json.NewEncoder(os.Stdout)
	for ev := range orch.Run(ctx, job).Events() {
		line, err := events.Marshal(ev)
		if err != nil {
			logger.Error("failed to encode event", "event_type", ev.Type(), "error", err)
			continue
		}
		_ = enc.Encode(json.RawMessage(line))
	}
}

// buildDeps wires the LLM provider, search, scrape, embeddings and the
// persistence sidecar from the environment. Missing optional services
// degrade: no embedder means keyword-only RAG, no store means no snapshot.
func buildDeps(ctx context.Context, cfg *config.Config, logger *slog.Logger) (pipeline.Deps, error) {
	provider, embedder, err := buildLLM(cfg)
	if err != nil {
		return pipeline.Deps{}, err
	}
	gateway := llm.New(provider, llm.Options{
		MaxRetries:        cfg.MaxRetries,
		RetryDelay:        cfg.RetryDelay(),
		Timeout:           cfg.LLMTimeout(),
		RequestsPerSecond: cfg.LLMRequestsPerSecond,
	})

	tavilyKey := os.Getenv(cfg.TavilyAPIKeyEnv)
	if tavilyKey == "" {
		return pipeline.Deps{}, fmt.Errorf("%s is not set", cfg.TavilyAPIKeyEnv)
	}
	searcher := webtools.NewTavilyClient(tavilyKey, cfg.SearchTimeout())
	scraper := webtools.NewHTTPScraper(&http.Client{Timeout: cfg.ScrapeTimeout()}, cfg.ScrapeMaxChars)

	sidecar, err := buildSidecar(ctx, cfg, logger)
	if err != nil {
		return pipeline.Deps{}, err
	}

	return pipeline.Deps{
		Gateway:  gateway,
		Searcher: searcher,
		Scraper:  scraper,
		Embedder: embedder,
		Sidecar:  sidecar,
		Logger:   logger,
	}, nil
}

// buildLLM picks the provider from the environment: OpenAI wins when both
// keys are present because it also supplies embeddings.
func buildLLM(cfg *config.Config) (llm.Provider, rag.Embedder, error) {
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		provider, err := openai.NewProviderFromAPIKey(key, getEnv("OPENAI_MODEL", "gpt-4o-mini"))
		if err != nil {
			return nil, nil, err
		}
		embedder, err := openai.NewEmbedderFromAPIKey(key, os.Getenv("OPENAI_EMBEDDING_MODEL"))
		if err != nil {
			return nil, nil, err
		}
		return provider, embedder, nil
	}
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		provider, err := anthropic.NewProviderFromAPIKey(key, getEnv("ANTHROPIC_MODEL", "claude-sonnet-4-0"))
		if err != nil {
			return nil, nil, err
		}
		// Anthropic has no embeddings API; the RAG store degrades to
		// keyword retrieval.
		return provider, nil, nil
	}
	return nil, nil, fmt.Errorf("neither OPENAI_API_KEY nor ANTHROPIC_API_KEY is set")
}

// buildSidecar picks the snapshot store: Postgres, then Redis, then memory.
func buildSidecar(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*store.ContextSidecar, error) {
	if dsn := os.Getenv(cfg.PostgresDSNEnv); dsn != "" {
		pg, err := store.NewPostgresStore(ctx, dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		return store.NewContextSidecar(pg), nil
	}
	if addr := os.Getenv(cfg.RedisAddrEnv); addr != "" {
		client := redis.NewClient(&redis.Options{Addr: addr})
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
		}
		return store.NewContextSidecar(store.NewRedisStore(client, 24*time.Hour)), nil
	}
	logger.Info("no persistent store configured, using in-memory snapshots")
	return store.NewContextSidecar(store.NewMemoryStore()), nil
}
