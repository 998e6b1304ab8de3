// Package extract turns corpus documents into plain text.
package extract

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Extractor returns the plain text of one document.
type Extractor interface {
	ExtractText(ctx context.Context, path string) (string, error)
}

// Registry dispatches to an Extractor by lowercase file extension.
type Registry struct {
	byExt map[string]Extractor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byExt: make(map[string]Extractor)}
}

// Register associates ext (e.g. ".pdf") with an extractor.
func (r *Registry) Register(ext string, e Extractor) {
	r.byExt[strings.ToLower(ext)] = e
}

// Supports reports whether path has a registered extension.
func (r *Registry) Supports(path string) bool {
	_, ok := r.byExt[strings.ToLower(filepath.Ext(path))]
	return ok
}

// ExtractText implements Extractor.
func (r *Registry) ExtractText(ctx context.Context, path string) (string, error) {
	e, ok := r.byExt[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return "", fmt.Errorf("unsupported document type: %s", path)
	}
	return e.ExtractText(ctx, path)
}

// TextExtractor reads plain-text documents such as .txt and .md files.
type TextExtractor struct{}

// ExtractText implements Extractor.
func (TextExtractor) ExtractText(_ context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return normalize(string(data)), nil
}

// normalize folds compatibility characters (ligatures, full-width forms)
// into their plain equivalents.
func normalize(s string) string {
	return norm.NFKC.String(s)
}
