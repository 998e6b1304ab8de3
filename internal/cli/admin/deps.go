package admin

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/cloo-solutions/ragbot/internal/config"
	"github.com/cloo-solutions/ragbot/internal/database"
	"github.com/cloo-solutions/ragbot/internal/domain"
	"github.com/cloo-solutions/ragbot/internal/embcache"
	"github.com/cloo-solutions/ragbot/internal/extract"
	"github.com/cloo-solutions/ragbot/internal/logger"
	"github.com/cloo-solutions/ragbot/internal/metrics"
	"github.com/cloo-solutions/ragbot/internal/openai"
	"github.com/cloo-solutions/ragbot/internal/repository"
	"github.com/cloo-solutions/ragbot/internal/service"
	"github.com/cloo-solutions/ragbot/internal/storage"
	"github.com/cloo-solutions/ragbot/internal/telemetry"
	"github.com/cloo-solutions/ragbot/internal/vectorindex/flat"
)

const migrationsDir = "migrations"

// index is what both backends provide.
type index interface {
	Size(ctx context.Context, ns domain.Namespace) (int, error)
	Search(ctx context.Context, ns domain.Namespace, vector []float32, k int) ([]domain.ScoredChunk, error)
	Stats(ctx context.Context, ns domain.Namespace) (domain.IndexStats, error)
	Replace(ctx context.Context, ns domain.Namespace, chunks []domain.Chunk, vectors [][]float32) error
}

// deps holds the process-wide components shared by every subcommand.
type deps struct {
	cfg      *config.Config
	logger   *zap.Logger
	embedder service.Embedder
	index    index

	closers []func()
}

type depsOptions struct {
	// migrate applies pending migrations when the pgvector backend is used.
	migrate bool
}

// bootstrap loads configuration and sets up logging and telemetry.
func bootstrap() (*config.Config, *zap.Logger, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		return nil, nil, nil, err
	}

	shutdownTelemetry := func() {}
	if cfg.HasSentry() {
		shutdown, err := telemetry.Init(telemetry.Config{
			DSN:              cfg.SentryDSN,
			Environment:      cfg.Env,
			TracesSampleRate: cfg.TracesSampleRate,
		})
		if err != nil {
			log.Warn("telemetry init failed, continuing without tracing", zap.Error(err))
		} else {
			shutdownTelemetry = shutdown
		}
	}

	cleanup := func() {
		shutdownTelemetry()
		_ = log.Sync()
	}
	return cfg, log, cleanup, nil
}

func newDeps(ctx context.Context, cfg *config.Config, log *zap.Logger, opts depsOptions) (*deps, error) {
	d := &deps{cfg: cfg, logger: log}

	embedder, err := d.newEmbedder(ctx)
	if err != nil {
		d.Close()
		return nil, err
	}
	d.embedder = embedder

	idx, err := d.newIndex(ctx, opts)
	if err != nil {
		d.Close()
		return nil, err
	}
	d.index = idx

	return d, nil
}

func (d *deps) newEmbedder(ctx context.Context) (service.Embedder, error) {
	if !d.cfg.HasOpenAI() {
		return nil, fmt.Errorf("OPENAI_API_KEY is required")
	}
	base := openai.NewEmbedder(openai.EmbedderConfig{
		APIKey:     d.cfg.OpenAIAPIKey,
		BaseURL:    d.cfg.OpenAIBaseURL,
		Model:      d.cfg.EmbeddingModel,
		Dimensions: d.cfg.EmbeddingDimensions,
		BatchSize:  d.cfg.EmbeddingBatchSize,
		Logger:     d.logger,
	})
	if !d.cfg.HasRedis() {
		return base, nil
	}

	store, err := embcache.NewRedisStore(embcache.RedisConfig{
		Addrs:    d.cfg.RedisAddrs,
		Password: d.cfg.RedisPassword,
		TTL:      d.cfg.EmbeddingCacheTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding cache: %w", err)
	}
	if err := store.Ping(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to reach embedding cache: %w", err)
	}
	d.closers = append(d.closers, store.Close)
	d.logger.Info("embedding cache enabled", zap.Strings("addrs", d.cfg.RedisAddrs))

	return embcache.New(base, base.Model(), store, metrics.EmbeddingCacheTotal, d.logger), nil
}

func (d *deps) newIndex(ctx context.Context, opts depsOptions) (index, error) {
	if d.cfg.UsesPGVector() {
		pool, err := d.newPool(ctx, opts.migrate)
		if err != nil {
			return nil, err
		}
		d.logger.Info("using pgvector index")
		return repository.NewChunkRepository(pool), nil
	}

	flatOpts := flat.Options{Logger: d.logger}
	if d.cfg.HasS3() {
		client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
			Endpoint:        d.cfg.S3Endpoint,
			Region:          d.cfg.S3Region,
			AccessKeyID:     d.cfg.S3AccessKey,
			SecretAccessKey: d.cfg.S3SecretKey,
			Bucket:          d.cfg.S3Bucket,
			UsePathStyle:    true,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create S3 client: %w", err)
		}
		if err := client.EnsureBucket(ctx); err != nil {
			return nil, fmt.Errorf("failed to ensure S3 bucket: %w", err)
		}
		flatOpts.Mirror = storage.NewIndexMirror(client, d.cfg.S3Prefix, d.logger)
		d.logger.Info("index mirror enabled", zap.String("bucket", d.cfg.S3Bucket))
	}
	d.logger.Info("using flat index", zap.String("dir", d.cfg.IndexDir))
	return flat.NewStore(d.cfg.IndexDir, flatOpts), nil
}

func (d *deps) newPool(ctx context.Context, migrate bool) (*pgxpool.Pool, error) {
	if migrate {
		if err := database.Migrate(d.cfg.DatabaseURL, migrationsDir, d.logger); err != nil {
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}
	pool, err := database.NewPool(ctx, database.Config{URL: d.cfg.DatabaseURL})
	if err != nil {
		return nil, err
	}
	d.closers = append(d.closers, pool.Close)
	d.logger.Info("connected to database")
	return pool, nil
}

func (d *deps) extractor() *extract.Registry {
	reg := extract.NewRegistry()
	reg.Register(".pdf", extract.NewPDFExtractor(d.logger))
	reg.Register(".txt", extract.TextExtractor{})
	reg.Register(".md", extract.TextExtractor{})
	return reg
}

func (d *deps) indexBuilder() *service.IndexBuilder {
	return service.NewIndexBuilder(d.extractor(), d.embedder, d.index, service.IndexBuilderConfig{
		Chunk:  service.ChunkConfig{Size: d.cfg.ChunkSize, Overlap: d.cfg.ChunkOverlap},
		Logger: d.logger,
	})
}

func (d *deps) classifier() (*service.IntentClassifier, error) {
	if d.cfg.IntentsFile == "" {
		return service.NewIntentClassifier(service.DefaultIntentRules)
	}
	c, err := service.LoadIntentClassifier(d.cfg.IntentsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load intents: %w", err)
	}
	return c, nil
}

func (d *deps) chatService() (*service.ChatService, error) {
	classifier, err := d.classifier()
	if err != nil {
		return nil, err
	}
	generator := service.NewAnswerGenerator(openai.NewChatClient(d.cfg.OpenAIAPIKey, d.cfg.OpenAIBaseURL), service.GeneratorConfig{
		Model:        d.cfg.ChatModel,
		Temperature:  d.cfg.Temperature,
		MaxTokens:    d.cfg.MaxTokens,
		SystemPrompt: d.cfg.SystemPrompt,
		HistoryTurns: d.cfg.HistoryTurns,
		MaxContexts:  d.cfg.MaxContexts,
		Attempts:     d.cfg.RetryAttempts,
		BaseDelay:    d.cfg.RetryBaseDelay,
	})
	retriever := service.NewRetriever(d.embedder, d.index)
	return service.NewChatService(classifier, retriever, generator, d.index, d.cfg.MaxTopK), nil
}

// corpus resolves configured corpus directories to namespaces.
func (d *deps) corpus() (map[domain.Namespace]string, error) {
	out := make(map[domain.Namespace]string, len(d.cfg.CorpusDirs))
	for name, dir := range d.cfg.CorpusDirs {
		ns, err := domain.ParseNamespace(name)
		if err != nil {
			return nil, fmt.Errorf("CORPUS_DIRS: %w", err)
		}
		out[ns] = dir
	}
	return out, nil
}

func (d *deps) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
}
