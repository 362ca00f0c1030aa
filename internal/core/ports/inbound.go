package ports

import (
	"context"

	"github.com/kirillkom/efaktur-validator/internal/core/domain"
)

// InvoiceValidator is the inbound contract for e-Faktur validation.
type InvoiceValidator interface {
	Validate(ctx context.Context, filename string, content []byte) (*domain.ValidationResult, error)
	ValidateText(ctx context.Context, rawText string, qrURL *string) (*domain.ValidationResult, error)
}
