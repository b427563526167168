package bootstrap

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/kirillkom/club-events-assistant/internal/config"
	"github.com/kirillkom/club-events-assistant/internal/core/ports"
	"github.com/kirillkom/club-events-assistant/internal/core/usecase"
	rediscache "github.com/kirillkom/club-events-assistant/internal/infrastructure/cache/redis"
	"github.com/kirillkom/club-events-assistant/internal/infrastructure/chunking"
	"github.com/kirillkom/club-events-assistant/internal/infrastructure/extractor/brochure"
	"github.com/kirillkom/club-events-assistant/internal/infrastructure/llm/ollama"
	openaillm "github.com/kirillkom/club-events-assistant/internal/infrastructure/llm/openai"
	"github.com/kirillkom/club-events-assistant/internal/infrastructure/queue/nats"
	"github.com/kirillkom/club-events-assistant/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/club-events-assistant/internal/infrastructure/rerank/crossencoder"
	"github.com/kirillkom/club-events-assistant/internal/infrastructure/rerank/lexical"
	"github.com/kirillkom/club-events-assistant/internal/infrastructure/resilience"
	"github.com/kirillkom/club-events-assistant/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/club-events-assistant/internal/infrastructure/vector/qdrant"
	"github.com/kirillkom/club-events-assistant/internal/observability/logging"
	"github.com/kirillkom/club-events-assistant/internal/observability/metrics"
)

type App struct {
	Config config.Config
	Logger *slog.Logger

	Store       *postgres.EventStore
	Queue       ports.MessageQueue
	Pipeline    *usecase.QueryPipeline
	Ingest      *usecase.IngestEventUseCase
	Reports     *usecase.ReportService
	Indexer     ports.EventIndexer
	HTTPMetrics *metrics.HTTPServerMetrics

	closeFns []func()
}

type Option func(*options)

type options struct {
	logOutput io.Writer
}

// WithLogOutput redirects logs, e.g. to stderr when stdout carries a protocol.
func WithLogOutput(w io.Writer) Option {
	return func(o *options) {
		if w != nil {
			o.logOutput = w
		}
	}
}

// New wires every component from cfg. service names the process in logs and
// metrics. Indexer is nil unless the qdrant backend is selected.
func New(ctx context.Context, cfg config.Config, service string, opts ...Option) (*App, error) {
	o := options{logOutput: os.Stdout}
	for _, opt := range opts {
		opt(&o)
	}
	logger := logging.New(o.logOutput, service, cfg.LogLevel)
	slog.SetDefault(logger)

	app := &App{Config: cfg, Logger: logger}
	ok := false
	defer func() {
		if !ok {
			app.Close()
		}
	}()

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	app.closeFns = append(app.closeFns, func() { _ = db.Close() })

	store := postgres.NewEventStore(db, cfg.DBTimeout)
	if err := store.EnsureSchema(ctx, cfg.EmbeddingDim); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	app.Store = store

	app.HTTPMetrics = metrics.NewHTTPServerMetrics(service)
	executor := resilience.NewExecutor(resilience.Config{
		RetryMaxAttempts: cfg.RetryMaxAttempts,
		AttemptTimeout:   cfg.CallTimeout,
		BreakerEnabled:   cfg.BreakerEnabled,
		Observer:         metrics.NewBreakerMetrics(service, app.HTTPMetrics.Registry()),
	})

	if cfg.NATSURL != "" {
		queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{ResilienceExecutor: executor, Logger: logger})
		if err != nil {
			return nil, fmt.Errorf("init message queue: %w", err)
		}
		app.Queue = queue
		app.closeFns = append(app.closeFns, queue.Close)
	}

	generator, embedder, embedModel, err := newLanguageModels(cfg, executor)
	if err != nil {
		return nil, err
	}
	if cfg.RedisURL != "" {
		client, err := rediscache.Open(ctx, cfg.RedisURL)
		if err != nil {
			logger.Warn("embedding_cache_disabled", "error", err.Error())
		} else {
			app.closeFns = append(app.closeFns, func() { _ = client.Close() })
			embedder = rediscache.NewEmbeddingCache(embedder, client, embedModel, cfg.EmbedCacheTTL, logger)
		}
	}

	var reranker ports.Reranker
	switch cfg.RerankProvider {
	case "crossencoder":
		reranker = crossencoder.New(cfg.RerankURL, executor)
	case "lexical", "":
		reranker = lexical.New()
	default:
		return nil, fmt.Errorf("unknown RERANK_PROVIDER %q", cfg.RerankProvider)
	}

	var index ports.PassageIndex
	switch cfg.RetrievalBackend {
	case "qdrant":
		vectorDB := qdrant.New(cfg.QdrantURL, cfg.QdrantCollection)
		index = vectorDB
		app.Indexer = usecase.NewIndexEventUseCase(store, embedder, vectorDB)
	case "postgres", "":
		index = store
	default:
		return nil, fmt.Errorf("unknown RETRIEVAL_BACKEND %q", cfg.RetrievalBackend)
	}

	archive, err := localfs.New(cfg.BrochureDir)
	if err != nil {
		return nil, fmt.Errorf("init brochure archive: %w", err)
	}

	observer := metrics.NewPipelineMetrics(service, app.HTTPMetrics.Registry())

	app.Reports = usecase.NewReportService(store, logger)
	router := usecase.NewIntentRouter(generator, usecase.RouterMode(cfg.RouterMode), logger, observer)
	retriever := usecase.NewHybridRetriever(embedder, index, reranker, usecase.RetrievalLimits{
		VectorTopK:       cfg.RAGVectorTopK,
		KeywordTopK:      cfg.RAGKeywordTopK,
		TopK:             cfg.RAGTopK,
		QueryInstruction: cfg.QueryInstruction,
	})
	composer := usecase.NewAnswerComposer(app.Reports, store, generator, logger)
	app.Pipeline = usecase.NewQueryPipeline(router, retriever, composer, logger, observer)

	app.Ingest = usecase.NewIngestEventUseCase(
		store,
		embedder,
		chunking.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap),
		brochure.NewExtractor(cfg.BrochureMaxSize),
		app.Queue,
		cfg.ChunkSize,
		logger,
		observer,
	).WithArchive(archive)

	logger.Info("app_bootstrapped",
		"llm_provider", cfg.LLMProvider,
		"rerank_provider", cfg.RerankProvider,
		"retrieval_backend", cfg.RetrievalBackend,
		"router_mode", cfg.RouterMode,
		"embedding_cache", cfg.RedisURL != "",
		"queue", app.Queue != nil,
	)
	ok = true
	return app, nil
}

func newLanguageModels(cfg config.Config, executor *resilience.Executor) (ports.Generator, ports.Embedder, string, error) {
	switch cfg.LLMProvider {
	case "openai":
		client := openaillm.New(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.OpenAIGenModel, cfg.OpenAIEmbedModel, executor)
		return openaillm.NewGenerator(client), openaillm.NewEmbedder(client), cfg.OpenAIEmbedModel, nil
	case "ollama", "":
		client := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel, executor)
		return ollama.NewGenerator(client), ollama.NewEmbedder(client), cfg.OllamaEmbedModel, nil
	default:
		return nil, nil, "", fmt.Errorf("unknown LLM_PROVIDER %q", cfg.LLMProvider)
	}
}

// Close releases connections in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closeFns) - 1; i >= 0; i-- {
		a.closeFns[i]()
	}
	a.closeFns = nil
}
