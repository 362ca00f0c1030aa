package ports

import (
	"context"
	"io"

	"github.com/kirillkom/efaktur-validator/internal/core/domain"
)

// TextExtractor returns the raw text of one document kind.
type TextExtractor interface {
	ExtractText(ctx context.Context, data []byte) (string, error)
}

// QRDecoder returns the first QR payload found in a document, or "" when
// there is none.
type QRDecoder interface {
	DecodeQR(ctx context.Context, data []byte) (string, error)
}

// ReferenceSource yields the authoritative record for an invoice. qrURL may
// be empty when the document carried no usable QR code.
type ReferenceSource interface {
	Fetch(ctx context.Context, qrURL string) (*domain.ReferenceRecord, error)
}

// ValidationEventPublisher emits audit events for completed validations.
type ValidationEventPublisher interface {
	PublishValidationCompleted(ctx context.Context, event domain.ValidationEvent) error
}

// ScratchStorage holds short-lived files handed to external tools.
type ScratchStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Path(key string) (string, error)
	Remove(ctx context.Context, key string) error
}
