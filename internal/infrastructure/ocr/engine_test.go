package ocr

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/kirillkom/efaktur-validator/internal/core/domain"
	"github.com/kirillkom/efaktur-validator/internal/infrastructure/storage/localfs"
)

type runCall struct {
	name string
	args []string
}

// runnerStub fakes tesseract by echoing the image file content and pdftoppm
// by writing one file per configured page next to the output prefix.
type runnerStub struct {
	calls     []runCall
	pages     []string
	failTool  string
	stderr    string
	seenFiles []string
}

func (r *runnerStub) Run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	r.calls = append(r.calls, runCall{name: name, args: args})
	if name == r.failTool {
		return nil, []byte(r.stderr), errors.New("exit status 1")
	}
	switch name {
	case "tesseract":
		content, err := os.ReadFile(args[0])
		if err != nil {
			return nil, nil, err
		}
		r.seenFiles = append(r.seenFiles, args[0])
		return []byte("OCR:" + string(content)), nil, nil
	case "pdftoppm":
		prefix := args[len(args)-1]
		for i, page := range r.pages {
			name := prefix + "-" + string(rune('1'+i)) + ".png"
			if err := os.WriteFile(name, []byte(page), 0o600); err != nil {
				return nil, nil, err
			}
		}
		return nil, nil, nil
	}
	return nil, nil, errors.New("unexpected tool " + name)
}

func newTestEngine(t *testing.T, cfg Config, runner *runnerStub) (*Engine, string) {
	t.Helper()
	dir := t.TempDir()
	scratch, err := localfs.New(dir)
	if err != nil {
		t.Fatalf("scratch: %v", err)
	}
	engine := NewEngine(cfg, scratch, nil)
	engine.runner = runner
	return engine, dir
}

func assertScratchEmpty(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read scratch dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected scratch cleaned up, found %d entries", len(entries))
	}
}

func TestRecognizeImageRunsTesseract(t *testing.T) {
	runner := &runnerStub{}
	engine, dir := newTestEngine(t, Config{TessdataDir: "/usr/share/tessdata"}, runner)

	text, err := NewImageExtractor(engine).ExtractText(context.Background(), []byte("Faktur Pajak"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "OCR:Faktur Pajak" {
		t.Fatalf("unexpected text %q", text)
	}
	if len(runner.calls) != 1 {
		t.Fatalf("expected one call, got %d", len(runner.calls))
	}
	got := strings.Join(runner.calls[0].args[1:], " ")
	if got != "stdout -l ind+eng --tessdata-dir /usr/share/tessdata" {
		t.Fatalf("unexpected tesseract args %q", got)
	}
	assertScratchEmpty(t, dir)
}

func TestRecognizeImageFailureIsExtractionFailed(t *testing.T) {
	runner := &runnerStub{failTool: "tesseract", stderr: "Error in pixReadMem: Unknown format"}
	engine, dir := newTestEngine(t, Config{}, runner)

	_, err := engine.RecognizeImage(context.Background(), []byte("not an image"))
	if !domain.IsKind(err, domain.ErrExtractionFailed) {
		t.Fatalf("expected extraction failed, got %v", err)
	}
	if !strings.Contains(err.Error(), "Unknown format") {
		t.Fatalf("expected stderr in error, got %v", err)
	}
	assertScratchEmpty(t, dir)
}

func TestRecognizePDFOCRsEveryPageInOrder(t *testing.T) {
	runner := &runnerStub{pages: []string{"page one", "page two"}}
	engine, dir := newTestEngine(t, Config{DPI: 200, MaxPages: 2}, runner)

	text, err := NewPDFExtractor(engine).ExtractText(context.Background(), []byte("%PDF-1.4"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "OCR:page one\n\nOCR:page two" {
		t.Fatalf("unexpected text %q", text)
	}

	raster := runner.calls[0]
	if raster.name != "pdftoppm" {
		t.Fatalf("expected pdftoppm first, got %s", raster.name)
	}
	got := strings.Join(raster.args[:7], " ")
	if got != "-r 200 -png -f 1 -l 2" {
		t.Fatalf("unexpected pdftoppm args %q", got)
	}
	if filepath.Base(raster.args[7]) != "input.pdf" {
		t.Fatalf("unexpected input %q", raster.args[7])
	}
	assertScratchEmpty(t, dir)
}

func TestRasterizePDFReturnsPageBytes(t *testing.T) {
	runner := &runnerStub{pages: []string{"png-1", "png-2", "png-3"}}
	engine, dir := newTestEngine(t, Config{}, runner)

	pages, err := engine.RasterizePDF(context.Background(), []byte("%PDF-1.4"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pages) != 3 || string(pages[0]) != "png-1" || string(pages[2]) != "png-3" {
		t.Fatalf("unexpected pages %q", pages)
	}
	if strings.Join(runner.calls[0].args[:3], " ") != "-r 300 -png" {
		t.Fatalf("unexpected default args %v", runner.calls[0].args)
	}
	assertScratchEmpty(t, dir)
}

func TestRasterizePDFUnderScratchPathWithGlobCharacters(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "scans[2024]")
	scratch, err := localfs.New(dir)
	if err != nil {
		t.Fatalf("scratch: %v", err)
	}
	runner := &runnerStub{pages: []string{"png-1", "png-2"}}
	engine := NewEngine(Config{}, scratch, nil)
	engine.runner = runner

	pages, err := engine.RasterizePDF(context.Background(), []byte("%PDF-1.4"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pages) != 2 || string(pages[0]) != "png-1" || string(pages[1]) != "png-2" {
		t.Fatalf("unexpected pages %q", pages)
	}
}

func TestRenderedPNGsIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"page-2.png", "page-1.png", "page.txt", "input.pdf", "other-1.png"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0o600); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}

	matches, err := renderedPNGs(filepath.Join(dir, "page"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{filepath.Join(dir, "page-1.png"), filepath.Join(dir, "page-2.png")}
	if !reflect.DeepEqual(matches, want) {
		t.Fatalf("expected %v, got %v", want, matches)
	}
}

func TestRenderedPNGsReportsMissingDir(t *testing.T) {
	if _, err := renderedPNGs(filepath.Join(t.TempDir(), "gone", "page")); err == nil {
		t.Fatal("expected error for missing directory")
	}
}

func TestRasterizePDFWithoutPagesFails(t *testing.T) {
	engine, _ := newTestEngine(t, Config{}, &runnerStub{})

	if _, err := engine.RasterizePDF(context.Background(), []byte("%PDF-1.4")); !domain.IsKind(err, domain.ErrExtractionFailed) {
		t.Fatalf("expected extraction failed, got %v", err)
	}
}

func TestRasterizePDFToolFailure(t *testing.T) {
	engine, _ := newTestEngine(t, Config{}, &runnerStub{failTool: "pdftoppm", stderr: "Syntax Error: Couldn't find trailer dictionary"})

	_, err := engine.RasterizePDF(context.Background(), []byte("garbage"))
	if !domain.IsKind(err, domain.ErrExtractionFailed) {
		t.Fatalf("expected extraction failed, got %v", err)
	}
}
