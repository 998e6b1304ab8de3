// Package flat implements an exact vector index persisted as two files per
// namespace: a little-endian float32 matrix and a JSON-lines metadata file.
package flat

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/cloo-solutions/ragbot/internal/domain"
)

// Mirror copies namespace artifacts to and from remote storage.
type Mirror interface {
	Publish(ctx context.Context, prefix, dir string, files []string) error
	Fetch(ctx context.Context, prefix, dir string, files []string) (bool, error)
}

// Options configures a Store.
type Options struct {
	Logger *zap.Logger
	// Mirror, when set, receives artifacts after every build and supplies
	// them when a namespace is missing locally.
	Mirror Mirror
}

// Store is a file-backed vector index. Each namespace is loaded at most once
// per process and then served from memory.
type Store struct {
	root   string
	logger *zap.Logger
	mirror Mirror

	mu     sync.RWMutex
	tables map[domain.Namespace]*table
	loads  singleflight.Group
}

// NewStore creates a store rooted at dir. Nothing is read until first use.
func NewStore(root string, opts Options) *Store {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		root:   root,
		logger: logger,
		mirror: opts.Mirror,
		tables: make(map[domain.Namespace]*table),
	}
}

// Dir returns the artifact directory of a namespace.
func (s *Store) Dir(ns domain.Namespace) string {
	return filepath.Join(s.root, ns.String())
}

// Size returns the number of indexed chunks, 0 for a missing namespace.
func (s *Store) Size(ctx context.Context, ns domain.Namespace) (int, error) {
	t, err := s.load(ctx, ns)
	if err != nil {
		return 0, err
	}
	return t.size(), nil
}

// Stats describes the loaded namespace index.
func (s *Store) Stats(ctx context.Context, ns domain.Namespace) (domain.IndexStats, error) {
	t, err := s.load(ctx, ns)
	if err != nil {
		return domain.IndexStats{}, err
	}
	return domain.IndexStats{Namespace: ns, Chunks: t.size(), Dimension: t.dim}, nil
}

// Search returns the k chunks most similar to vector, best first.
func (s *Store) Search(ctx context.Context, ns domain.Namespace, vector []float32, k int) ([]domain.ScoredChunk, error) {
	t, err := s.load(ctx, ns)
	if err != nil {
		return nil, err
	}
	if t.size() == 0 || k <= 0 {
		return []domain.ScoredChunk{}, nil
	}
	if len(vector) != t.dim {
		return nil, domain.Wrap(domain.ErrDimensionMismatch,
			fmt.Errorf("query has %d dimensions, %s index has %d", len(vector), ns, t.dim))
	}
	return t.search(vector, k), nil
}

// Replace atomically swaps the namespace index for one built from chunks
// and vectors. Only one build per namespace may run at a time.
func (s *Store) Replace(ctx context.Context, ns domain.Namespace, chunks []domain.Chunk, vectors [][]float32) error {
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return fmt.Errorf("create index root: %w", err)
	}

	lock := flock.New(filepath.Join(s.root, ns.String()+".lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire build lock: %w", err)
	}
	if !locked {
		return domain.Wrap(domain.ErrBuildInProgress, fmt.Errorf("namespace %s", ns))
	}
	defer func() { _ = lock.Unlock() }()

	tmp, err := os.MkdirTemp(s.root, "."+ns.String()+".tmp-*")
	if err != nil {
		return fmt.Errorf("create staging dir: %w", err)
	}
	defer os.RemoveAll(tmp)

	if err := writeArtifacts(tmp, chunks, vectors); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := AtomicSwap(tmp, s.Dir(ns)); err != nil {
		return fmt.Errorf("swap index into place: %w", err)
	}

	s.mu.Lock()
	delete(s.tables, ns)
	s.mu.Unlock()

	s.logger.Info("index written",
		zap.String("namespace", ns.String()),
		zap.Int("chunks", len(chunks)),
		zap.String("dir", s.Dir(ns)),
	)

	if s.mirror != nil {
		if err := s.mirror.Publish(ctx, ns.String(), s.Dir(ns), ArtifactFiles); err != nil {
			return fmt.Errorf("publish index: %w", err)
		}
	}
	return nil
}

func (s *Store) load(ctx context.Context, ns domain.Namespace) (*table, error) {
	s.mu.RLock()
	t, ok := s.tables[ns]
	s.mu.RUnlock()
	if ok {
		return t, nil
	}

	v, err, _ := s.loads.Do(ns.String(), func() (interface{}, error) {
		s.mu.RLock()
		t, ok := s.tables[ns]
		s.mu.RUnlock()
		if ok {
			return t, nil
		}

		// Shared by every waiter, so one caller's cancellation must not
		// fail the others.
		t, err := s.readNamespace(context.WithoutCancel(ctx), ns)
		if err != nil {
			return nil, err
		}

		s.mu.Lock()
		s.tables[ns] = t
		s.mu.Unlock()
		return t, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*table), nil
}

// readNamespace reads artifacts from disk, falling back to a backup left by
// an interrupted swap and then to the mirror when absent. Missing or
// inconsistent artifacts yield an empty table. A mirror failure is returned
// so the namespace is retried on next use.
func (s *Store) readNamespace(ctx context.Context, ns domain.Namespace) (*table, error) {
	dir := s.Dir(ns)
	log := s.logger.With(zap.String("namespace", ns.String()), zap.String("dir", dir))

	if !artifactsExist(dir) && artifactsExist(backupDir(dir)) {
		log.Warn("index missing, reading backup from interrupted swap")
		dir = backupDir(dir)
	} else if s.mirror != nil && !artifactsExist(dir) {
		fetched, err := s.mirror.Fetch(ctx, ns.String(), dir, ArtifactFiles)
		if err != nil {
			return nil, fmt.Errorf("fetch %s index from mirror: %w", ns, err)
		}
		if fetched {
			log.Info("index fetched from mirror")
		}
	}

	t, err := readArtifacts(dir)
	switch {
	case err == nil:
		log.Info("index loaded", zap.Int("chunks", t.size()), zap.Int("dim", t.dim))
		return t, nil
	case errors.Is(err, fs.ErrNotExist):
		log.Warn("index artifacts missing, namespace is empty")
		return &table{}, nil
	case errors.Is(err, domain.ErrCorruptIndex):
		log.Warn("index artifacts inconsistent, namespace is empty", zap.Error(err))
		return &table{}, nil
	default:
		return nil, fmt.Errorf("load %s index: %w", ns, err)
	}
}

func artifactsExist(dir string) bool {
	for _, f := range ArtifactFiles {
		if _, err := os.Stat(filepath.Join(dir, f)); err != nil {
			return false
		}
	}
	return true
}

func backupDir(dir string) string { return dir + ".bak" }

// AtomicSwap replaces destDir with srcDir by renaming. The previous
// directory is restored if the final rename fails. A backup left behind by
// an interrupted swap is moved back into place when destDir is missing, and
// is only discarded while a complete destDir exists.
func AtomicSwap(srcDir, destDir string) error {
	parent := filepath.Dir(destDir)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return err
	}
	backup := backupDir(destDir)
	if err := recoverBackup(destDir, backup); err != nil {
		return fmt.Errorf("recover backup: %w", err)
	}
	if _, err := os.Stat(destDir); err == nil {
		if err := os.Rename(destDir, backup); err != nil {
			return err
		}
	}
	if err := os.Rename(srcDir, destDir); err != nil {
		if _, stErr := os.Stat(backup); stErr == nil {
			_ = os.Rename(backup, destDir)
		}
		return err
	}
	_ = os.RemoveAll(backup)
	return nil
}

// recoverBackup restores backup when destDir is missing, and removes it when
// destDir is already present.
func recoverBackup(destDir, backup string) error {
	if _, err := os.Stat(backup); errors.Is(err, fs.ErrNotExist) {
		return nil
	} else if err != nil {
		return err
	}
	if _, err := os.Stat(destDir); errors.Is(err, fs.ErrNotExist) {
		return os.Rename(backup, destDir)
	} else if err != nil {
		return err
	}
	return os.RemoveAll(backup)
}
