package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/cloo-solutions/ragbot/internal/domain"
)

type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ChunkRepository is the pgvector-backed vector index. A namespace's rows
// and its rag_indexes entry are always replaced in one transaction.
type ChunkRepository struct {
	pool *pgxpool.Pool
}

func NewChunkRepository(pool *pgxpool.Pool) *ChunkRepository {
	return &ChunkRepository{pool: pool}
}

// Replace deletes every chunk of the namespace and inserts the new set.
// A concurrent build of the same namespace fails with ErrBuildInProgress.
func (r *ChunkRepository) Replace(ctx context.Context, ns domain.Namespace, chunks []domain.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunk/vector count mismatch: %d chunks, %d vectors", len(chunks), len(vectors))
	}
	dim := 0
	if len(vectors) > 0 {
		dim = len(vectors[0])
	}
	for i, v := range vectors {
		if len(v) != dim {
			return domain.Wrap(domain.ErrDimensionMismatch, fmt.Errorf("vector %d has %d dimensions, expected %d", i, len(v), dim))
		}
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var locked bool
	if err := tx.QueryRow(ctx, `SELECT pg_try_advisory_xact_lock(hashtext($1))`, ns.String()).Scan(&locked); err != nil {
		return fmt.Errorf("acquire build lock: %w", err)
	}
	if !locked {
		return domain.Wrap(domain.ErrBuildInProgress, fmt.Errorf("namespace %s", ns))
	}

	if _, err := tx.Exec(ctx, `DELETE FROM rag_chunks WHERE namespace = $1`, ns.String()); err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}

	if len(chunks) > 0 {
		batch := &pgx.Batch{}
		for i, c := range chunks {
			batch.Queue(
				`INSERT INTO rag_chunks (id, namespace, position, text, source, file_name, embedding)
				 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
				c.ID, ns.String(), i, c.Text, c.Source, c.FileName, pgvector.NewVector(vectors[i]),
			)
		}
		br := tx.SendBatch(ctx, batch)
		for i := range chunks {
			if _, err := br.Exec(); err != nil {
				_ = br.Close()
				return fmt.Errorf("insert chunk %d: %w", i, err)
			}
		}
		if err := br.Close(); err != nil {
			return fmt.Errorf("insert chunks: %w", err)
		}
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO rag_indexes (namespace, dimension, chunk_count, built_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (namespace) DO UPDATE
		 SET dimension = EXCLUDED.dimension, chunk_count = EXCLUDED.chunk_count, built_at = EXCLUDED.built_at`,
		ns.String(), dim, len(chunks), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("record index: %w", err)
	}

	return tx.Commit(ctx)
}

// Stats returns the recorded index shape, zero values for an unbuilt namespace.
func (r *ChunkRepository) Stats(ctx context.Context, ns domain.Namespace) (domain.IndexStats, error) {
	return stats(ctx, r.pool, ns)
}

// Size returns the number of chunks indexed for the namespace.
func (r *ChunkRepository) Size(ctx context.Context, ns domain.Namespace) (int, error) {
	s, err := stats(ctx, r.pool, ns)
	if err != nil {
		return 0, err
	}
	return s.Chunks, nil
}

// Search ranks chunks by cosine distance d with score 1/(1+d), best first.
func (r *ChunkRepository) Search(ctx context.Context, ns domain.Namespace, vector []float32, k int) ([]domain.ScoredChunk, error) {
	s, err := stats(ctx, r.pool, ns)
	if err != nil {
		return nil, err
	}
	if s.Chunks == 0 || k <= 0 {
		return []domain.ScoredChunk{}, nil
	}
	if len(vector) != s.Dimension {
		return nil, domain.Wrap(domain.ErrDimensionMismatch,
			fmt.Errorf("query has %d dimensions, %s index has %d", len(vector), ns, s.Dimension))
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id::text, position, text, source, file_name,
		        1.0 / (1.0 + (embedding <=> $2)) AS score
		 FROM rag_chunks
		 WHERE namespace = $1
		 ORDER BY score DESC, position ASC
		 LIMIT $3`,
		ns.String(), pgvector.NewVector(vector), k,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.ScoredChunk, 0, k)
	for rows.Next() {
		sc := domain.ScoredChunk{Chunk: domain.Chunk{Namespace: ns}}
		if err := rows.Scan(&sc.Chunk.ID, &sc.Chunk.Position, &sc.Chunk.Text, &sc.Chunk.Source, &sc.Chunk.FileName, &sc.Score); err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

func stats(ctx context.Context, db dbtx, ns domain.Namespace) (domain.IndexStats, error) {
	s := domain.IndexStats{Namespace: ns}
	err := db.QueryRow(ctx,
		`SELECT dimension, chunk_count FROM rag_indexes WHERE namespace = $1`, ns.String(),
	).Scan(&s.Dimension, &s.Chunks)
	if errors.Is(err, pgx.ErrNoRows) {
		return s, nil
	}
	if err != nil {
		return domain.IndexStats{}, err
	}
	return s, nil
}
