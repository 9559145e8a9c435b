package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kirillkom/urbanism-zoning/internal/config"
	"github.com/kirillkom/urbanism-zoning/internal/core/ports"
	"github.com/kirillkom/urbanism-zoning/internal/core/usecase"
	"github.com/kirillkom/urbanism-zoning/internal/infrastructure/chunking"
	"github.com/kirillkom/urbanism-zoning/internal/infrastructure/extractor/pdf"
	"github.com/kirillkom/urbanism-zoning/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/urbanism-zoning/internal/infrastructure/llm/openai"
	"github.com/kirillkom/urbanism-zoning/internal/infrastructure/portal"
	"github.com/kirillkom/urbanism-zoning/internal/infrastructure/queue/nats"
	"github.com/kirillkom/urbanism-zoning/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/urbanism-zoning/internal/infrastructure/resilience"
	"github.com/kirillkom/urbanism-zoning/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/urbanism-zoning/internal/infrastructure/vector/qdrant"
	"github.com/kirillkom/urbanism-zoning/internal/observability/metrics"
)

// ErrRAGDisabled is returned to processes that cannot run without an embedding provider.
var ErrRAGDisabled = errors.New("no embedding provider configured: set OPENAI_API_KEY or LLM_PROVIDER=ollama")

type Options struct {
	// Service names the process in metrics labels.
	Service string
	// SkipQueue leaves lookups without background indexing.
	SkipQueue     bool
	HTTPMetrics   *metrics.HTTPServerMetrics
	WorkerMetrics *metrics.WorkerMetrics
}

type App struct {
	Config config.Config

	Cities    *config.CityCatalog
	Zoning    *usecase.ZoningService
	Directory *usecase.CityDirectoryService
	// Indexer and Queue are nil when retrieval is disabled.
	Indexer *usecase.IndexRegulationUseCase
	Queue   *nats.Queue

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	executor := resilience.NewExecutor(cfg.Resilience, resilience.WithObserver(outboundObserver(opts)))

	cities, err := config.LoadCities(cfg.CitiesFile)
	if err != nil {
		return nil, fmt.Errorf("load cities: %w", err)
	}
	if _, ok := cities.CityByID(cfg.DefaultCityID); !ok {
		return nil, fmt.Errorf("default city %q is not in the catalogue", cfg.DefaultCityID)
	}

	portals := portal.NewDirectory(portal.Options{
		Timeout:           cfg.PortalTimeout,
		RequestsPerSecond: cfg.PortalRateLimit,
		APIKeys:           cfg.PortalAPIKeys,
		Executor:          executor,
	})

	cache, err := localfs.New(cfg.RegulationCache, cfg.RegulationCacheTTL)
	if err != nil {
		return nil, fmt.Errorf("init regulation cache: %w", err)
	}
	texts := pdf.NewSource(pdf.Options{
		MaxBytes: cfg.DocumentMaxBytes,
		Cache:    cache,
		KeyFor:   localfs.KeyFor,
		Executor: executor,
	})

	generator, err := newGenerator(cfg, executor)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config:    cfg,
		Cities:    cities,
		Directory: usecase.NewCityDirectoryService(cities),
	}
	zoningOpts := usecase.ZoningOptions{
		DefaultCityID:     cfg.DefaultCityID,
		ContextCandidates: cfg.RAGContextCandidates,
		Texts:             texts,
		Generator:         generator,
	}

	var closers []func()
	if cfg.RAGEnabled() {
		rag, db, err := newRAG(ctx, cfg, executor)
		if err != nil {
			return nil, err
		}
		closers = append(closers, func() { _ = db.Close() })

		docs := postgres.NewRegulationDocumentRepository(db)
		if err := docs.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("ensure regulation documents schema: %w", err)
		}

		var retriever ports.RegulationRetriever = rag
		if opts.HTTPMetrics != nil {
			retriever = opts.HTTPMetrics.InstrumentRetriever(opts.Service, retriever)
		}
		zoningOpts.Retriever = retriever

		var indexer ports.DocumentIndexer = rag
		if opts.WorkerMetrics != nil {
			indexer = opts.WorkerMetrics.InstrumentIndexer(opts.Service, indexer)
		}
		app.Indexer = usecase.NewIndexRegulationUseCase(docs, texts, indexer)

		if !opts.SkipQueue {
			queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{ResilienceExecutor: executor})
			if err != nil {
				_ = db.Close()
				return nil, fmt.Errorf("init message queue: %w", err)
			}
			app.Queue = queue
			closers = append([]func(){queue.Close}, closers...)
			if cfg.IndexOnLookup {
				zoningOpts.IndexQueue = queue
			}
		}
	} else {
		slog.Info("rag_disabled", "reason", ErrRAGDisabled.Error())
	}

	if !cfg.AnalysisEnabled {
		zoningOpts.Generator = nil
	}
	if zoningOpts.Generator == nil {
		slog.Info("building_analysis_disabled")
	}

	app.Zoning = usecase.NewZoningService(cities, portals, zoningOpts)
	app.closeFn = func() {
		for _, closeFn := range closers {
			closeFn()
		}
	}
	return app, nil
}

func outboundObserver(opts Options) resilience.Observer {
	switch {
	case opts.HTTPMetrics != nil:
		return opts.HTTPMetrics.Outbound()
	case opts.WorkerMetrics != nil:
		return opts.WorkerMetrics.Outbound()
	default:
		return nil
	}
}

// newGenerator returns nil, not an error, when no provider credentials exist.
func newGenerator(cfg config.Config, executor *resilience.Executor) (ports.AnswerGenerator, error) {
	switch cfg.LLMProvider {
	case "ollama":
		client := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel, executor)
		return ollama.NewGenerator(client), nil
	case "openai", "":
		if cfg.OpenAIAPIKey == "" {
			return nil, nil
		}
		client, err := newOpenAIClient(cfg, executor)
		if err != nil {
			return nil, err
		}
		return openai.NewGenerator(client), nil
	default:
		return nil, fmt.Errorf("unsupported LLM_PROVIDER %q", cfg.LLMProvider)
	}
}

func newEmbedder(cfg config.Config, executor *resilience.Executor) (ports.Embedder, error) {
	if cfg.LLMProvider == "ollama" {
		client := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel, executor)
		return ollama.NewEmbedder(client), nil
	}
	client, err := newOpenAIClient(cfg, executor)
	if err != nil {
		return nil, err
	}
	return openai.NewEmbedder(client), nil
}

func newOpenAIClient(cfg config.Config, executor *resilience.Executor) (*openai.Client, error) {
	client, err := openai.New(openai.Config{
		APIKey:     cfg.OpenAIAPIKey,
		BaseURL:    cfg.OpenAIBaseURL,
		EmbedModel: cfg.OpenAIEmbedModel,
		ChatModel:  cfg.OpenAIChatModel,
	}, executor)
	if err != nil {
		return nil, fmt.Errorf("init openai client: %w", err)
	}
	return client, nil
}

func newRAG(ctx context.Context, cfg config.Config, executor *resilience.Executor) (*usecase.RagService, *sql.DB, error) {
	embedder, err := newEmbedder(cfg, executor)
	if err != nil {
		return nil, nil, err
	}

	db, err := postgres.OpenDB(ctx, cfg.PostgresDSN, postgres.PoolOptions{})
	if err != nil {
		return nil, nil, fmt.Errorf("open postgres: %w", err)
	}

	var repo ports.EmbeddingsRepository
	switch cfg.VectorBackend {
	case "qdrant":
		repo = qdrant.New(cfg.QdrantURL, cfg.QdrantCollection)
	case "postgres", "":
		pgRepo := postgres.NewEmbeddingsRepository(db, cfg.EmbeddingDimensions)
		if err := pgRepo.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("ensure embeddings schema: %w", err)
		}
		repo = pgRepo
	default:
		_ = db.Close()
		return nil, nil, fmt.Errorf("unsupported VECTOR_BACKEND %q", cfg.VectorBackend)
	}

	chunker := chunking.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap)
	rag := usecase.NewRagService(chunker, embedder, repo).WithDefaultLimit(cfg.RAGTopK)
	return rag, db, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
