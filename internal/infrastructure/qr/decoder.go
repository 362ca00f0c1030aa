// Package qr locates the e-Faktur validation QR code on scanned pages.
package qr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"

	"github.com/kirillkom/efaktur-validator/internal/core/domain"
)

// MaxImagePixels bounds the decoded bitmap; an A4 page at 600 dpi is ~35M.
const MaxImagePixels = 40_000_000

var decodeHints = map[gozxing.DecodeHintType]interface{}{
	gozxing.DecodeHintType_TRY_HARDER: true,
}

// Decoder reads a QR code from JPEG or PNG bytes.
type Decoder struct {
	logger    *slog.Logger
	maxPixels int
}

func NewDecoder(logger *slog.Logger) *Decoder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Decoder{logger: logger, maxPixels: MaxImagePixels}
}

// DecodeQR returns the payload of the first QR code found, or "" when the
// image has none. Only undecodable image bytes are an error.
func (d *Decoder) DecodeQR(ctx context.Context, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", domain.WrapError(domain.ErrExtractionFailed, "qr decode image", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.Width > d.maxPixels/cfg.Height {
		return "", domain.WrapError(domain.ErrInvalidInput, "qr decode image",
			fmt.Errorf("image %dx%d exceeds %d pixels", cfg.Width, cfg.Height, d.maxPixels))
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", domain.WrapError(domain.ErrExtractionFailed, "qr decode image", err)
	}
	return d.decodeImage(img)
}

func (d *Decoder) decodeImage(img image.Image) (string, error) {
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return "", domain.WrapError(domain.ErrExtractionFailed, "qr bitmap", err)
	}
	result, err := qrcode.NewQRCodeReader().Decode(bmp, decodeHints)
	if err != nil {
		d.logger.Debug("qr_not_found", "error", err.Error())
		return "", nil
	}
	return result.GetText(), nil
}

// Rasterizer renders PDF pages to PNG images.
type Rasterizer interface {
	RasterizePDF(ctx context.Context, data []byte) ([][]byte, error)
}

// PDFDecoder rasterizes a PDF and scans its pages in order.
type PDFDecoder struct {
	rasterizer Rasterizer
	decoder    *Decoder
}

func NewPDFDecoder(rasterizer Rasterizer, decoder *Decoder) *PDFDecoder {
	if decoder == nil {
		decoder = NewDecoder(nil)
	}
	return &PDFDecoder{rasterizer: rasterizer, decoder: decoder}
}

func (d *PDFDecoder) DecodeQR(ctx context.Context, data []byte) (string, error) {
	pages, err := d.rasterizer.RasterizePDF(ctx, data)
	if err != nil {
		return "", fmt.Errorf("rasterize pdf for qr: %w", err)
	}
	for i, page := range pages {
		payload, err := d.decoder.DecodeQR(ctx, page)
		if err != nil {
			return "", fmt.Errorf("page %d: %w", i+1, err)
		}
		if payload != "" {
			return payload, nil
		}
	}
	return "", nil
}
