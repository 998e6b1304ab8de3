package extract

import (
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"
)

// pageSource is a document that yields text page by page (1-based).
type pageSource interface {
	NumPage() int
	PageText(page int) (string, error)
}

type pdfPages struct {
	r *pdf.Reader
}

func (p pdfPages) NumPage() int {
	return p.r.NumPage()
}

func (p pdfPages) PageText(page int) (string, error) {
	pg := p.r.Page(page)
	if pg.V.IsNull() {
		return "", nil
	}
	return pg.GetPlainText(nil)
}

// PDFExtractor extracts text from PDF files. A page that cannot be decoded
// contributes an empty string; the rest of the document is kept.
type PDFExtractor struct {
	logger *zap.Logger
}

// NewPDFExtractor creates a PDF extractor.
func NewPDFExtractor(logger *zap.Logger) *PDFExtractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PDFExtractor{logger: logger}
}

// ExtractText implements Extractor. Pages are joined with newlines.
func (e *PDFExtractor) ExtractText(ctx context.Context, path string) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("open pdf %s: %v", path, r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf %s: %w", path, err)
	}
	defer f.Close()

	return e.extractPages(ctx, path, pdfPages{r: r})
}

func (e *PDFExtractor) extractPages(ctx context.Context, path string, src pageSource) (string, error) {
	n := src.NumPage()
	pages := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		text, err := safePageText(src, i)
		if err != nil {
			e.logger.Warn("pdf page extraction failed",
				zap.String("path", path),
				zap.Int("page", i),
				zap.Error(err),
			)
			text = ""
		}
		pages = append(pages, text)
	}
	return normalize(strings.Join(pages, "\n")), nil
}

func safePageText(src pageSource, page int) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return src.PageText(page)
}
