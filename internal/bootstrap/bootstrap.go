package bootstrap

import (
	"context"
	"fmt"

	"github.com/askdocs/pdfchat/internal/config"
	"github.com/askdocs/pdfchat/internal/core/ports"
	"github.com/askdocs/pdfchat/internal/core/usecase"
	"github.com/askdocs/pdfchat/internal/infrastructure/chunking"
	"github.com/askdocs/pdfchat/internal/infrastructure/embedding/ollama"
	"github.com/askdocs/pdfchat/internal/infrastructure/extractor/pdfpage"
	"github.com/askdocs/pdfchat/internal/infrastructure/index/dense"
	"github.com/askdocs/pdfchat/internal/infrastructure/index/sparse"
	natsqueue "github.com/askdocs/pdfchat/internal/infrastructure/queue/nats"
	"github.com/askdocs/pdfchat/internal/infrastructure/repository/postgres"
	"github.com/askdocs/pdfchat/internal/infrastructure/resilience"
	"github.com/askdocs/pdfchat/internal/infrastructure/storage/localfs"
)

type App struct {
	Config config.Config

	Queue  ports.MessageQueue
	Engine *usecase.Engine

	closeFn func()
}

// New wires the whole engine together. The session indexes live in process
// memory, so the NATS consumer and the query path must share one App.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	repo := postgres.NewFileRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	var executor *resilience.Executor
	if cfg.ResilienceEnabled {
		executor = resilience.NewExecutor(resilience.DefaultConfig())
	}

	queue, err := natsqueue.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, natsqueue.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	embedder := ollama.NewEmbedder(cfg.OllamaURL, cfg.OllamaEmbedModel, ollama.Options{
		BatchSize:          cfg.EmbedBatchSize,
		ResilienceExecutor: executor,
	})

	retrievalCfg := usecase.RetrievalConfig{
		KPerIndex:       cfg.KPerIndex,
		KFused:          cfg.KFused,
		RRFConstant:     cfg.RRFConstant,
		DedupMinOverlap: cfg.DedupMinOverlap,
	}
	registry := usecase.NewSessionRegistry(func() *usecase.SessionRetriever {
		return usecase.NewSessionRetriever(
			chunking.NewSplitter(cfg.ChunkTokens, cfg.ChunkOverlapRatio),
			embedder,
			dense.New(),
			sparse.New(),
			retrievalCfg,
		)
	})

	engine := usecase.NewEngine(registry, repo, storage, queue, pdfpage.NewExtractor())

	return &App{
		Config: cfg,
		Queue:  queue,
		Engine: engine,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
