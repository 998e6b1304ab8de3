package domain

import (
	"fmt"
	"strings"
)

// Chunk is a contiguous span of document text stored in a namespace index.
// Position is the row of the chunk's vector in that index.
type Chunk struct {
	ID        string    `json:"id"`
	Namespace Namespace `json:"namespace"`
	Position  int       `json:"position"`
	Text      string    `json:"text"`
	Source    string    `json:"source"`
	FileName  string    `json:"file_name"`
}

// ValidateChunk validates a Chunk instance
func ValidateChunk(c *Chunk) error {
	if c == nil {
		return fmt.Errorf("chunk cannot be nil")
	}
	if c.ID == "" {
		return fmt.Errorf("chunk ID is required")
	}
	if strings.TrimSpace(c.Text) == "" {
		return fmt.Errorf("chunk text is required")
	}
	if !c.Namespace.IsIndexed() {
		return fmt.Errorf("invalid chunk namespace: %s", c.Namespace)
	}
	if c.Position < 0 {
		return fmt.Errorf("chunk position cannot be negative")
	}
	return nil
}

// DisplaySource returns the chunk's source path, falling back to its file
// name and finally to the namespace.
func (c *Chunk) DisplaySource() string {
	if c.Source != "" {
		return c.Source
	}
	if c.FileName != "" {
		return c.FileName
	}
	return c.Namespace.String()
}

// ScoredChunk is a chunk returned by a vector index together with its
// similarity score in [1/3, 1].
type ScoredChunk struct {
	Chunk Chunk
	Score float64
}

// SearchHit is a retrieval result handed to the generator and to API callers.
type SearchHit struct {
	ID     string  `json:"id"`
	Text   string  `json:"text"`
	Score  float64 `json:"score"`
	Source string  `json:"source"`
}

// IndexStats describes a built namespace index.
type IndexStats struct {
	Namespace Namespace `json:"namespace"`
	Chunks    int       `json:"chunks"`
	Dimension int       `json:"dimension"`
}
