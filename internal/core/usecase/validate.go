package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/efaktur-validator/internal/core/domain"
	"github.com/kirillkom/efaktur-validator/internal/core/efaktur"
	"github.com/kirillkom/efaktur-validator/internal/core/ports"
)

// DocumentReader bundles the text and QR collaborators for one file kind.
type DocumentReader struct {
	Text ports.TextExtractor
	QR   ports.QRDecoder
}

type ValidateInvoiceUseCase struct {
	readers   map[domain.FileKind]DocumentReader
	reference ports.ReferenceSource
	events    ports.ValidationEventPublisher
	logger    *slog.Logger
	now       func() time.Time
}

// NewValidateInvoiceUseCase wires the pipeline. events and logger may be nil.
func NewValidateInvoiceUseCase(
	readers map[domain.FileKind]DocumentReader,
	reference ports.ReferenceSource,
	events ports.ValidationEventPublisher,
	logger *slog.Logger,
) *ValidateInvoiceUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &ValidateInvoiceUseCase{
		readers:   readers,
		reference: reference,
		events:    events,
		logger:    logger,
		now:       time.Now,
	}
}

func (uc *ValidateInvoiceUseCase) Validate(ctx context.Context, filename string, content []byte) (*domain.ValidationResult, error) {
	kind, ok := domain.DetectFileKind(filename)
	if !ok {
		return nil, domain.WrapError(domain.ErrUnsupportedFileType, "validate", fmt.Errorf("filename %q", filename))
	}
	reader, ok := uc.readers[kind]
	if !ok || reader.Text == nil {
		return nil, fmt.Errorf("validate: no text extractor for %s documents", kind)
	}

	text, err := uc.extractText(ctx, kind, reader.Text, content)
	if err != nil {
		return nil, err
	}
	qrURL := uc.decodeQR(ctx, kind, reader.QR, content)

	return uc.validate(ctx, filename, text, qrURL)
}

func (uc *ValidateInvoiceUseCase) ValidateText(ctx context.Context, rawText string, qrURL *string) (*domain.ValidationResult, error) {
	if isBlank(rawText) {
		return nil, domain.WrapError(domain.ErrEmptyExtraction, "validate text", errors.New("empty text"))
	}
	var accepted *string
	if qrURL != nil {
		accepted = acceptQRPayload(*qrURL)
	}
	return uc.validate(ctx, "", rawText, accepted)
}

func (uc *ValidateInvoiceUseCase) validate(ctx context.Context, filename, rawText string, qrURL *string) (*domain.ValidationResult, error) {
	extracted := efaktur.ExtractFields(efaktur.Normalize(rawText))

	record, err := uc.fetchReference(ctx, qrURL)
	if err != nil {
		return nil, err
	}

	deviations := efaktur.Reconcile(extracted, record.Fields)
	status, message := efaktur.Summarize(deviations)

	result := &domain.ValidationResult{
		Status:  status,
		Message: message,
		Results: domain.ValidationDetails{
			Deviations:    deviations,
			ValidatedData: record.Fields.Clone(),
			ExtractedData: extracted,
			RawOCRText:    rawText,
			QRURL:         qrURL,
		},
	}

	uc.publish(ctx, filename, result)
	return result, nil
}

func (uc *ValidateInvoiceUseCase) extractText(ctx context.Context, kind domain.FileKind, extractor ports.TextExtractor, content []byte) (string, error) {
	text, err := extractor.ExtractText(ctx, content)
	if err != nil {
		if domain.IsKind(err, domain.ErrExtractionFailed) || domain.IsKind(err, domain.ErrEmptyExtraction) {
			return "", fmt.Errorf("extract %s text: %w", kind, err)
		}
		return "", domain.WrapError(domain.ErrExtractionFailed, fmt.Sprintf("extract %s text", kind), err)
	}
	if isBlank(text) {
		return "", domain.WrapError(domain.ErrEmptyExtraction, fmt.Sprintf("extract %s text", kind), errors.New("no text found"))
	}
	uc.logger.DebugContext(ctx, "document text extracted", "kind", kind, "text", text)
	return text, nil
}

// decodeQR never fails the validation; a missing or unusable QR code just
// means the reference lookup runs without a key.
func (uc *ValidateInvoiceUseCase) decodeQR(ctx context.Context, kind domain.FileKind, decoder ports.QRDecoder, content []byte) *string {
	if decoder == nil {
		return nil
	}
	payload, err := decoder.DecodeQR(ctx, content)
	if err != nil {
		uc.logger.WarnContext(ctx, "qr decode failed", "kind", kind, "error", err)
		return nil
	}
	return acceptQRPayload(payload)
}

func (uc *ValidateInvoiceUseCase) fetchReference(ctx context.Context, qrURL *string) (*domain.ReferenceRecord, error) {
	key := ""
	if qrURL != nil {
		key = *qrURL
	}
	record, err := uc.reference.Fetch(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("fetch reference record: %w", err)
	}
	if record == nil {
		return nil, domain.WrapError(domain.ErrReferenceParse, "fetch reference record", errors.New("empty record"))
	}
	if record.Fields == nil {
		record.Fields = domain.NewFields()
	}
	return record, nil
}

func (uc *ValidateInvoiceUseCase) publish(ctx context.Context, filename string, result *domain.ValidationResult) {
	if uc.events == nil {
		return
	}
	event := domain.ValidationEvent{
		ID:             uuid.NewString(),
		RequestID:      domain.RequestIDFromContext(ctx),
		Filename:       filename,
		Status:         result.Status,
		DeviationCount: len(result.Results.Deviations),
		Deviations:     result.Results.Deviations,
		QRURL:          result.Results.QRURL,
		CompletedAt:    uc.now().UTC(),
	}
	if v, ok := result.Results.ExtractedData.Get(domain.FieldNomorFaktur); ok {
		event.NomorFaktur = &v
	}
	if err := uc.events.PublishValidationCompleted(ctx, event); err != nil {
		uc.logger.WarnContext(ctx, "publish validation event failed", "event_id", event.ID, "error", err)
	}
}

// acceptQRPayload keeps only payloads that look like a DJP validation URL.
func acceptQRPayload(payload string) *string {
	payload = strings.TrimSpace(payload)
	if payload == "" || !strings.Contains(payload, "http") {
		return nil
	}
	return &payload
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
