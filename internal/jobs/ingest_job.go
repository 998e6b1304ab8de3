package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/cloo-solutions/ragbot/internal/domain"
	"github.com/cloo-solutions/ragbot/internal/service"
	"github.com/cloo-solutions/ragbot/internal/telemetry"
	"go.uber.org/zap"
)

// NamespaceBuilder rebuilds one namespace index from a corpus directory.
type NamespaceBuilder interface {
	Build(ctx context.Context, ns domain.Namespace, root string) (service.BuildResult, error)
}

// IngestJob rebuilds every configured namespace.
type IngestJob struct {
	builder NamespaceBuilder
	corpus  map[domain.Namespace]string
	logger  *zap.Logger
}

// NewIngestJob creates an IngestJob. corpus maps namespaces to corpus roots.
func NewIngestJob(builder NamespaceBuilder, corpus map[domain.Namespace]string, logger *zap.Logger) *IngestJob {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IngestJob{builder: builder, corpus: corpus, logger: logger}
}

// RunOnce builds the configured namespaces in a stable order. A failing
// namespace does not stop the others; all failures are returned joined.
func (j *IngestJob) RunOnce(ctx context.Context) ([]service.BuildResult, error) {
	var (
		results []service.BuildResult
		errs    []error
	)
	for _, ns := range domain.IndexedNamespaces {
		root, ok := j.corpus[ns]
		if !ok {
			continue
		}
		if err := ctx.Err(); err != nil {
			return results, err
		}

		res, err := j.builder.Build(ctx, ns, root)
		if err != nil {
			if errors.Is(err, domain.ErrBuildInProgress) {
				j.logger.Warn("build already running, skipping", zap.String("namespace", ns.String()))
				continue
			}
			errs = append(errs, fmt.Errorf("%s: %w", ns, err))
			continue
		}
		results = append(results, res)
	}
	return results, errors.Join(errs...)
}

// ProcessJobs implements JobProcessor.
func (j *IngestJob) ProcessJobs(ctx context.Context) error {
	ctx, span := telemetry.StartTransaction(ctx, "ingest.rebuild", "job")
	defer span.End()

	results, err := j.RunOnce(ctx)
	if err != nil {
		span.SetError(err)
	}
	for _, r := range results {
		j.logger.Info("namespace rebuilt",
			zap.String("namespace", r.Namespace.String()),
			zap.Int("files", r.Files),
			zap.Int("chunks", r.Chunks),
		)
	}
	return err
}
