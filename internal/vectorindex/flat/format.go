package flat

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/cloo-solutions/ragbot/internal/domain"
)

// Artifact file names inside a namespace directory.
const (
	IndexFile    = "index.f32"
	MetadataFile = "metadata.jsonl"
)

// ArtifactFiles lists the files that make up one namespace index.
var ArtifactFiles = []string{IndexFile, MetadataFile}

const formatVersion = 1

var magic = [4]byte{'R', 'V', 'E', 'C'}

type header struct {
	Magic   [4]byte
	Version uint32
	Dim     uint32
	Count   uint32
}

// table is a loaded namespace index. Row i of vectors belongs to chunks[i].
type table struct {
	dim     int
	chunks  []domain.Chunk
	vectors []float32
	norms   []float64
}

func (t *table) size() int {
	if t == nil {
		return 0
	}
	return len(t.chunks)
}

func (t *table) row(i int) []float32 {
	return t.vectors[i*t.dim : (i+1)*t.dim]
}

func newTable(dim int, chunks []domain.Chunk, vectors []float32) *table {
	t := &table{dim: dim, chunks: chunks, vectors: vectors, norms: make([]float64, len(chunks))}
	for i := range chunks {
		t.norms[i] = norm(t.row(i))
	}
	return t
}

// writeArtifacts writes both artifact files into dir. vectors holds one row
// per chunk.
func writeArtifacts(dir string, chunks []domain.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunk/vector count mismatch: %d chunks, %d vectors", len(chunks), len(vectors))
	}
	dim := 0
	if len(vectors) > 0 {
		dim = len(vectors[0])
		if dim == 0 {
			return fmt.Errorf("invalid vector dimension 0")
		}
	}
	for i, v := range vectors {
		if len(v) != dim {
			return domain.Wrap(domain.ErrDimensionMismatch, fmt.Errorf("vector %d has %d dimensions, expected %d", i, len(v), dim))
		}
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create index dir %s: %w", dir, err)
	}

	mf, err := os.Create(filepath.Join(dir, MetadataFile))
	if err != nil {
		return fmt.Errorf("cannot create metadata file: %w", err)
	}
	bw := bufio.NewWriter(mf)
	enc := json.NewEncoder(bw)
	for _, c := range chunks {
		if err := enc.Encode(c); err != nil {
			_ = mf.Close()
			return fmt.Errorf("cannot write metadata: %w", err)
		}
	}
	if err := bw.Flush(); err != nil {
		_ = mf.Close()
		return err
	}
	if err := mf.Close(); err != nil {
		return err
	}

	vf, err := os.Create(filepath.Join(dir, IndexFile))
	if err != nil {
		return fmt.Errorf("cannot create vectors file: %w", err)
	}
	vw := bufio.NewWriter(vf)
	h := header{Magic: magic, Version: formatVersion, Dim: uint32(dim), Count: uint32(len(vectors))}
	if err := binary.Write(vw, binary.LittleEndian, h); err != nil {
		_ = vf.Close()
		return fmt.Errorf("cannot write index header: %w", err)
	}
	for _, v := range vectors {
		if err := binary.Write(vw, binary.LittleEndian, v); err != nil {
			_ = vf.Close()
			return fmt.Errorf("cannot write vectors: %w", err)
		}
	}
	if err := vw.Flush(); err != nil {
		_ = vf.Close()
		return err
	}
	if err := vf.Sync(); err != nil {
		_ = vf.Close()
		return err
	}
	return vf.Close()
}

// readArtifacts loads a namespace directory. It returns os.ErrNotExist when
// either file is missing and domain.ErrCorruptIndex when they disagree.
func readArtifacts(dir string) (*table, error) {
	chunks, err := readMetadata(filepath.Join(dir, MetadataFile))
	if err != nil {
		return nil, err
	}

	vf, err := os.Open(filepath.Join(dir, IndexFile))
	if err != nil {
		return nil, fmt.Errorf("cannot open vectors file: %w", err)
	}
	defer vf.Close()

	br := bufio.NewReader(vf)
	var h header
	if err := binary.Read(br, binary.LittleEndian, &h); err != nil {
		return nil, domain.Wrap(domain.ErrCorruptIndex, fmt.Errorf("read header: %w", err))
	}
	if h.Magic != magic || h.Version != formatVersion {
		return nil, domain.Wrap(domain.ErrCorruptIndex, fmt.Errorf("unsupported index format %q v%d", h.Magic[:], h.Version))
	}
	if int(h.Count) != len(chunks) {
		return nil, domain.Wrap(domain.ErrCorruptIndex, fmt.Errorf("index has %d vectors, metadata has %d rows", h.Count, len(chunks)))
	}
	if h.Count > 0 && h.Dim == 0 {
		return nil, domain.Wrap(domain.ErrCorruptIndex, fmt.Errorf("index has zero dimension"))
	}

	vectors := make([]float32, int(h.Count)*int(h.Dim))
	if err := binary.Read(br, binary.LittleEndian, vectors); err != nil {
		return nil, domain.Wrap(domain.ErrCorruptIndex, fmt.Errorf("read vectors: %w", err))
	}
	if _, err := br.ReadByte(); !errors.Is(err, io.EOF) {
		return nil, domain.Wrap(domain.ErrCorruptIndex, fmt.Errorf("trailing bytes after %d vectors", h.Count))
	}

	return newTable(int(h.Dim), chunks, vectors), nil
}

func readMetadata(path string) ([]domain.Chunk, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cannot open metadata file: %w", err)
	}
	defer f.Close()

	var out []domain.Chunk
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var c domain.Chunk
		if err := json.Unmarshal(line, &c); err != nil {
			return nil, domain.Wrap(domain.ErrCorruptIndex, fmt.Errorf("invalid metadata row %d: %w", len(out), err))
		}
		out = append(out, c)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("cannot read metadata file: %w", err)
	}
	return out, nil
}

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}
