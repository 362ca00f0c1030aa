package pdftext

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/kirillkom/efaktur-validator/internal/core/domain"
	"github.com/kirillkom/efaktur-validator/internal/core/ports"
)

// Extractor reads the embedded text layer of a PDF. Scanned PDFs without one
// are handed to the fallback extractor when configured.
type Extractor struct {
	fallback ports.TextExtractor
	logger   *slog.Logger
}

func NewExtractor(fallback ports.TextExtractor, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{fallback: fallback, logger: logger}
}

func (e *Extractor) ExtractText(ctx context.Context, data []byte) (string, error) {
	text, err := readTextLayer(data)
	if err != nil {
		return "", domain.WrapError(domain.ErrExtractionFailed, "read pdf text layer", err)
	}
	if strings.TrimSpace(text) != "" || e.fallback == nil {
		return text, nil
	}

	e.logger.InfoContext(ctx, "pdf has no text layer, falling back to ocr")
	return e.fallback.ExtractText(ctx, data)
}

func readTextLayer(data []byte) (text string, err error) {
	// The pdf package panics on some malformed cross-reference tables.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}

	var b strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		rows, err := page.GetTextByRow()
		if err != nil {
			return "", fmt.Errorf("page %d: %w", i, err)
		}
		if b.Len() > 0 && len(rows) > 0 {
			b.WriteString("\n")
		}
		for _, row := range rows {
			writeRow(&b, row.Content)
			b.WriteString("\n")
		}
	}
	return b.String(), nil
}

// writeRow joins the text runs of one row, inserting a space only where the
// runs are visibly apart.
func writeRow(b *strings.Builder, runs pdf.TextHorizontal) {
	var prev *pdf.Text
	for i := range runs {
		run := runs[i]
		if prev != nil && run.X-(prev.X+prev.W) > 0.2*prev.FontSize {
			b.WriteByte(' ')
		}
		b.WriteString(run.S)
		prev = &runs[i]
	}
}
