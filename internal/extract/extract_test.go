package extract

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePages struct {
	pages  []string
	errs   map[int]error
	panics map[int]bool
}

func (f fakePages) NumPage() int {
	return len(f.pages)
}

func (f fakePages) PageText(page int) (string, error) {
	if f.panics[page] {
		panic("malformed content stream")
	}
	if err := f.errs[page]; err != nil {
		return "", err
	}
	return f.pages[page-1], nil
}

func TestPDFExtractor_JoinsPages(t *testing.T) {
	e := NewPDFExtractor(nil)
	src := fakePages{pages: []string{"Article 250", "Grounding"}}

	text, err := e.extractPages(context.Background(), "nec.pdf", src)

	require.NoError(t, err)
	assert.Equal(t, "Article 250\nGrounding", text)
}

func TestPDFExtractor_FailedPagesAreEmpty(t *testing.T) {
	e := NewPDFExtractor(nil)
	src := fakePages{
		pages:  []string{"one", "two", "three", "four"},
		errs:   map[int]error{2: errors.New("bad font")},
		panics: map[int]bool{3: true},
	}

	text, err := e.extractPages(context.Background(), "nec.pdf", src)

	require.NoError(t, err)
	assert.Equal(t, "one\n\n\nfour", text)
}

func TestPDFExtractor_NormalizesLigatures(t *testing.T) {
	e := NewPDFExtractor(nil)
	src := fakePages{pages: []string{"eﬃcient ﬁxtures"}}

	text, err := e.extractPages(context.Background(), "doc.pdf", src)

	require.NoError(t, err)
	assert.Equal(t, "efficient fixtures", text)
}

func TestPDFExtractor_Canceled(t *testing.T) {
	e := NewPDFExtractor(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.extractPages(ctx, "doc.pdf", fakePages{pages: []string{"a"}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPDFExtractor_NotAPDF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fake.pdf")
	require.NoError(t, os.WriteFile(path, []byte("plain text, not a pdf"), 0o644))

	_, err := NewPDFExtractor(nil).ExtractText(context.Background(), path)
	assert.Error(t, err)
}

func TestPDFExtractor_MissingFile(t *testing.T) {
	_, err := NewPDFExtractor(nil).ExtractText(context.Background(), filepath.Join(t.TempDir(), "none.pdf"))
	assert.Error(t, err)
}

func TestRegistry(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.TXT")
	require.NoError(t, os.WriteFile(path, []byte("permit ﬁling"), 0o644))

	r := NewRegistry()
	r.Register(".pdf", NewPDFExtractor(nil))
	r.Register(".txt", TextExtractor{})

	assert.True(t, r.Supports("a/b/C.PDF"))
	assert.True(t, r.Supports(path))
	assert.False(t, r.Supports("image.png"))

	text, err := r.ExtractText(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "permit filing", text)

	_, err = r.ExtractText(context.Background(), "image.png")
	assert.ErrorContains(t, err, "unsupported")
}
