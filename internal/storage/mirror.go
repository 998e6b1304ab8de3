package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"go.uber.org/zap"
)

// IndexMirror publishes index artifacts to a bucket and restores them on
// hosts that have none. Objects live at <prefix>/<namespace>/<file>.
type IndexMirror struct {
	client *S3Client
	prefix string
	logger *zap.Logger
}

// NewIndexMirror creates a mirror rooted at keyPrefix inside the client's bucket.
func NewIndexMirror(client *S3Client, keyPrefix string, logger *zap.Logger) *IndexMirror {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IndexMirror{client: client, prefix: keyPrefix, logger: logger}
}

func (m *IndexMirror) key(namespace, file string) string {
	return path.Join(m.prefix, namespace, file)
}

// Publish uploads every file from dir, in order.
func (m *IndexMirror) Publish(ctx context.Context, namespace, dir string, files []string) error {
	for _, f := range files {
		if err := m.client.PutFile(ctx, m.key(namespace, f), filepath.Join(dir, f)); err != nil {
			return err
		}
	}
	m.logger.Info("index published",
		zap.String("namespace", namespace),
		zap.String("bucket", m.client.Bucket()),
		zap.String("prefix", m.key(namespace, "")),
	)
	return nil
}

// Fetch downloads every file into dir. It returns false without error when
// the mirror holds no complete copy. dir is only created once all files
// have been downloaded.
func (m *IndexMirror) Fetch(ctx context.Context, namespace, dir string, files []string) (bool, error) {
	for _, f := range files {
		if _, err := m.client.HeadObject(ctx, m.key(namespace, f)); err != nil {
			if errors.Is(err, ErrObjectNotFound) {
				return false, nil
			}
			return false, err
		}
	}

	parent := filepath.Dir(dir)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return false, fmt.Errorf("create index root: %w", err)
	}
	tmp, err := os.MkdirTemp(parent, "."+filepath.Base(dir)+".fetch-*")
	if err != nil {
		return false, fmt.Errorf("create staging dir: %w", err)
	}
	defer os.RemoveAll(tmp)

	for _, f := range files {
		if err := m.client.GetFile(ctx, m.key(namespace, f), filepath.Join(tmp, f)); err != nil {
			if errors.Is(err, ErrObjectNotFound) {
				return false, nil
			}
			return false, err
		}
	}

	if err := os.RemoveAll(dir); err != nil {
		return false, err
	}
	if err := os.Rename(tmp, dir); err != nil {
		return false, fmt.Errorf("move fetched index into place: %w", err)
	}
	return true, nil
}
