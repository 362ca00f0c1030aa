// Package ocr drives the tesseract and pdftoppm command line tools.
package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/kirillkom/efaktur-validator/internal/core/domain"
	"github.com/kirillkom/efaktur-validator/internal/core/ports"
)

type Config struct {
	Tesseract     string // binary name or path, default "tesseract"
	TesseractLang string // default "ind+eng"
	TessdataDir   string
	Pdftoppm      string // binary name or path, default "pdftoppm"
	DPI           int    // rasterization DPI, default 300
	MaxPages      int    // 0 = all pages
}

type Engine struct {
	cfg     Config
	runner  Runner
	scratch ports.ScratchStorage
	logger  *slog.Logger
}

func NewEngine(cfg Config, scratch ports.ScratchStorage, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.TesseractLang == "" {
		cfg.TesseractLang = "ind+eng"
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	return &Engine{cfg: cfg, runner: execRunner{logger: logger}, scratch: scratch, logger: logger}
}

// RecognizeImage runs tesseract over a single JPEG or PNG image.
func (e *Engine) RecognizeImage(ctx context.Context, data []byte) (string, error) {
	var text string
	err := e.withScratch(ctx, func(dir string) error {
		input := path.Join(dir, "input")
		if err := e.scratch.Save(ctx, input, bytes.NewReader(data)); err != nil {
			return fmt.Errorf("stage image: %w", err)
		}
		p, err := e.scratch.Path(input)
		if err != nil {
			return err
		}
		text, err = e.tesseract(ctx, p)
		return err
	})
	return text, err
}

// RecognizePDF rasterizes every page and runs tesseract on each; page texts
// are joined with a blank line.
func (e *Engine) RecognizePDF(ctx context.Context, data []byte) (string, error) {
	var b strings.Builder
	err := e.withPDFPages(ctx, data, func(pages []renderedPage) error {
		for i, page := range pages {
			text, err := e.tesseract(ctx, page.path)
			if err != nil {
				return fmt.Errorf("page %d: %w", i+1, err)
			}
			if b.Len() > 0 {
				b.WriteString("\n\n")
			}
			b.WriteString(text)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return b.String(), nil
}

// RasterizePDF returns the PNG bytes of each rendered page.
func (e *Engine) RasterizePDF(ctx context.Context, data []byte) ([][]byte, error) {
	var out [][]byte
	err := e.withPDFPages(ctx, data, func(pages []renderedPage) error {
		for _, page := range pages {
			rc, err := e.scratch.Open(ctx, page.key)
			if err != nil {
				return err
			}
			png, err := io.ReadAll(rc)
			rc.Close()
			if err != nil {
				return fmt.Errorf("read rendered page: %w", err)
			}
			out = append(out, png)
		}
		return nil
	})
	return out, err
}

type renderedPage struct {
	key  string
	path string
}

func (e *Engine) withPDFPages(ctx context.Context, data []byte, fn func(pages []renderedPage) error) error {
	return e.withScratch(ctx, func(dir string) error {
		input := path.Join(dir, "input.pdf")
		if err := e.scratch.Save(ctx, input, bytes.NewReader(data)); err != nil {
			return fmt.Errorf("stage pdf: %w", err)
		}
		inPath, err := e.scratch.Path(input)
		if err != nil {
			return err
		}
		prefix, err := e.scratch.Path(path.Join(dir, "page"))
		if err != nil {
			return err
		}

		args := []string{"-r", strconv.Itoa(e.cfg.DPI), "-png"}
		if e.cfg.MaxPages > 0 {
			args = append(args, "-f", "1", "-l", strconv.Itoa(e.cfg.MaxPages))
		}
		args = append(args, inPath, prefix)
		if _, stderr, err := e.runner.Run(ctx, e.cfg.Pdftoppm, args...); err != nil {
			return domain.WrapError(domain.ErrExtractionFailed, "pdftoppm", commandError(err, stderr))
		}

		matches, err := renderedPNGs(prefix)
		if err != nil {
			return domain.WrapError(domain.ErrExtractionFailed, "pdftoppm", err)
		}
		if len(matches) == 0 {
			return domain.WrapError(domain.ErrExtractionFailed, "pdftoppm", errors.New("no pages rendered"))
		}
		pages := make([]renderedPage, 0, len(matches))
		for _, m := range matches {
			pages = append(pages, renderedPage{key: path.Join(dir, filepath.Base(m)), path: m})
		}
		return fn(pages)
	})
}

// renderedPNGs lists prefix-N.png files. The directory is read directly
// because the scratch path may contain glob metacharacters.
func renderedPNGs(prefix string) ([]string, error) {
	dir, base := filepath.Split(prefix)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list rendered pages: %w", err)
	}
	var matches []string
	for _, entry := range entries {
		name := entry.Name()
		if !entry.IsDir() && strings.HasPrefix(name, base+"-") && strings.HasSuffix(name, ".png") {
			matches = append(matches, filepath.Join(dir, name))
		}
	}
	// pdftoppm zero-pads page numbers, so lexical order is page order.
	sort.Strings(matches)
	return matches, nil
}

func (e *Engine) tesseract(ctx context.Context, imagePath string) (string, error) {
	args := []string{imagePath, "stdout", "-l", e.cfg.TesseractLang}
	if e.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", e.cfg.TessdataDir)
	}
	out, stderr, err := e.runner.Run(ctx, e.cfg.Tesseract, args...)
	if err != nil {
		return "", domain.WrapError(domain.ErrExtractionFailed, "tesseract", commandError(err, stderr))
	}
	return string(out), nil
}

// withScratch gives fn a fresh scratch directory key and removes it afterwards.
func (e *Engine) withScratch(ctx context.Context, fn func(dir string) error) error {
	if e.scratch == nil {
		return errors.New("ocr: scratch storage is not configured")
	}
	dir := uuid.NewString()
	defer func() {
		if err := e.scratch.Remove(context.WithoutCancel(ctx), dir); err != nil {
			e.logger.WarnContext(ctx, "scratch cleanup failed", "dir", dir, "error", err)
		}
	}()
	return fn(dir)
}

func commandError(err error, stderr []byte) error {
	msg := strings.TrimSpace(string(stderr))
	if msg == "" {
		return err
	}
	return fmt.Errorf("%w: %s", err, truncate(msg, 512))
}

// ImageExtractor adapts Engine to ports.TextExtractor for images.
type ImageExtractor struct {
	engine *Engine
}

func NewImageExtractor(engine *Engine) *ImageExtractor {
	return &ImageExtractor{engine: engine}
}

func (x *ImageExtractor) ExtractText(ctx context.Context, data []byte) (string, error) {
	return x.engine.RecognizeImage(ctx, data)
}

// PDFExtractor adapts Engine to ports.TextExtractor for scanned PDFs.
type PDFExtractor struct {
	engine *Engine
}

func NewPDFExtractor(engine *Engine) *PDFExtractor {
	return &PDFExtractor{engine: engine}
}

func (x *PDFExtractor) ExtractText(ctx context.Context, data []byte) (string, error) {
	return x.engine.RecognizePDF(ctx, data)
}
