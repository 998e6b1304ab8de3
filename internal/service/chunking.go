package service

import "strings"

// ChunkConfig controls how extracted documents are split before embedding.
// Size and Overlap are measured in characters (runes).
type ChunkConfig struct {
	Size    int
	Overlap int
}

// DefaultChunkConfig provides the ingestion defaults.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		Size:    1200,
		Overlap: 150,
	}
}

// ChunkText splits text into overlapping windows. Window i starts at
// i*(Size-Overlap); windows are trimmed and blank ones dropped.
func ChunkText(text string, cfg ChunkConfig) []string {
	if cfg.Size <= 0 {
		cfg = DefaultChunkConfig()
	}
	if cfg.Overlap < 0 {
		cfg.Overlap = 0
	}
	step := cfg.Size - cfg.Overlap
	if step < 1 {
		step = 1
	}

	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	runes := []rune(text)

	chunks := make([]string, 0, len(runes)/step+1)
	for start := 0; start < len(runes); start += step {
		end := min(start+cfg.Size, len(runes))

		chunk := strings.TrimSpace(string(runes[start:end]))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}

		if end == len(runes) {
			break
		}
	}

	return chunks
}
