package service

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/cloo-solutions/ragbot/internal/domain"
	"github.com/cloo-solutions/ragbot/internal/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const defaultExtractConcurrency = 4

// DocumentExtractor reads the text of the corpus files it supports.
type DocumentExtractor interface {
	Supports(path string) bool
	ExtractText(ctx context.Context, path string) (string, error)
}

// IndexWriter replaces the whole index of a namespace.
type IndexWriter interface {
	Replace(ctx context.Context, ns domain.Namespace, chunks []domain.Chunk, vectors [][]float32) error
}

// BuildResult summarizes one namespace build.
type BuildResult struct {
	Namespace domain.Namespace
	Files     int
	Chunks    int
}

// IndexBuilderConfig configures an IndexBuilder.
type IndexBuilderConfig struct {
	Chunk       ChunkConfig
	Concurrency int
	Logger      *zap.Logger
}

// IndexBuilder turns a corpus directory into a namespace index.
type IndexBuilder struct {
	extractor   DocumentExtractor
	embedder    Embedder
	writer      IndexWriter
	chunkCfg    ChunkConfig
	concurrency int
	logger      *zap.Logger
	newID       func() string
}

// NewIndexBuilder creates an IndexBuilder.
func NewIndexBuilder(extractor DocumentExtractor, embedder Embedder, writer IndexWriter, cfg IndexBuilderConfig) *IndexBuilder {
	if cfg.Chunk.Size <= 0 {
		cfg.Chunk = DefaultChunkConfig()
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultExtractConcurrency
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &IndexBuilder{
		extractor:   extractor,
		embedder:    embedder,
		writer:      writer,
		chunkCfg:    cfg.Chunk,
		concurrency: cfg.Concurrency,
		logger:      cfg.Logger,
		newID:       uuid.NewString,
	}
}

// Build rebuilds the index of ns from every supported file under root. The
// previous index stays in place if any step fails.
func (b *IndexBuilder) Build(ctx context.Context, ns domain.Namespace, root string) (BuildResult, error) {
	result := BuildResult{Namespace: ns}
	if !ns.IsIndexed() {
		return result, domain.Wrap(domain.ErrUnknownNamespace, fmt.Errorf("%q", ns))
	}

	ctx, span := telemetry.StartSpan(ctx, "ingest.build", telemetry.SpanAttributes{
		Namespace: ns.String(),
		Operation: "build",
	})
	defer span.End()

	files, err := b.listFiles(root)
	if err != nil {
		span.SetError(err)
		return result, err
	}
	result.Files = len(files)

	texts, err := b.extractAll(ctx, files)
	if err != nil {
		span.SetError(err)
		return result, err
	}

	var chunks []domain.Chunk
	for i, path := range files {
		rel, err := filepath.Rel(root, path)
		if err != nil {
			rel = path
		}
		for _, text := range ChunkText(texts[i], b.chunkCfg) {
			chunks = append(chunks, domain.Chunk{
				ID:        b.newID(),
				Namespace: ns,
				Position:  len(chunks),
				Text:      text,
				Source:    filepath.ToSlash(rel),
				FileName:  filepath.Base(path),
			})
		}
	}

	var vectors [][]float32
	if len(chunks) > 0 {
		inputs := make([]string, len(chunks))
		for i := range chunks {
			inputs[i] = chunks[i].Text
		}
		vectors, err = b.embedder.Embed(ctx, inputs)
		if err != nil {
			span.SetError(err)
			return result, fmt.Errorf("embed %s corpus: %w", ns, err)
		}
	}

	if err := b.writer.Replace(ctx, ns, chunks, vectors); err != nil {
		span.SetError(err)
		return result, fmt.Errorf("replace %s index: %w", ns, err)
	}
	result.Chunks = len(chunks)

	telemetry.AddBreadcrumb(ctx, "ingest", fmt.Sprintf("%s: files=%d chunks=%d", ns, result.Files, result.Chunks))
	b.logger.Info("namespace index built",
		zap.String("namespace", ns.String()),
		zap.Int("files", result.Files),
		zap.Int("chunks", result.Chunks),
	)
	return result, nil
}

// listFiles returns the supported files under root in lexical order. A
// missing root is an empty corpus.
func (b *IndexBuilder) listFiles(root string) ([]string, error) {
	if _, err := os.Stat(root); errors.Is(err, fs.ErrNotExist) {
		b.logger.Warn("corpus directory not found", zap.String("root", root))
		return nil, nil
	}

	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !b.extractor.Supports(path) {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk corpus %s: %w", root, err)
	}
	sort.Strings(files)
	return files, nil
}

// extractAll extracts every file concurrently. Files that cannot be read
// contribute empty text.
func (b *IndexBuilder) extractAll(ctx context.Context, files []string) ([]string, error) {
	texts := make([]string, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)
	for i, path := range files {
		g.Go(func() error {
			text, err := b.extractor.ExtractText(gctx, path)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				b.logger.Warn("skipping unreadable document", zap.String("path", path), zap.Error(err))
				return nil
			}
			texts[i] = text
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return texts, nil
}
