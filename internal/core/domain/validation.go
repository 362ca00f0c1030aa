package domain

import (
	"path/filepath"
	"strings"
	"time"
)

type DeviationType string

const (
	DeviationMissingInPDF DeviationType = "missing_in_pdf"
	DeviationMissingInAPI DeviationType = "missing_in_api"
	DeviationMismatch     DeviationType = "mismatch"
)

type Deviation struct {
	Field          FieldName     `json:"field"`
	PDFValue       *string       `json:"pdf_value"`
	ReferenceValue *string       `json:"reference_value"`
	Type           DeviationType `json:"deviation_type"`
}

type ValidationStatus string

const (
	StatusValidatedSuccessfully   ValidationStatus = "validated_successfully"
	StatusValidatedWithDeviations ValidationStatus = "validated_with_deviations"
)

type ValidationDetails struct {
	Deviations    []Deviation `json:"deviations"`
	ValidatedData Fields      `json:"validated_data"`
	ExtractedData Fields      `json:"extracted_data"`
	RawOCRText    string      `json:"raw_ocr_text"`
	QRURL         *string     `json:"qr_url"`
}

type ValidationResult struct {
	Status  ValidationStatus  `json:"status"`
	Message string            `json:"message"`
	Results ValidationDetails `json:"validation_results"`
}

// ValidationEvent is the audit summary published after a completed validation.
type ValidationEvent struct {
	ID             string           `json:"id"`
	RequestID      string           `json:"request_id,omitempty"`
	Filename       string           `json:"filename,omitempty"`
	Status         ValidationStatus `json:"status"`
	DeviationCount int              `json:"deviation_count"`
	Deviations     []Deviation      `json:"deviations"`
	NomorFaktur    *string          `json:"nomor_faktur"`
	QRURL          *string          `json:"qr_url"`
	CompletedAt    time.Time        `json:"completed_at"`
}

type FileKind string

const (
	FileKindPDF   FileKind = "pdf"
	FileKindImage FileKind = "image"
)

// DetectFileKind dispatches on the filename extension, case-insensitively.
func DetectFileKind(filename string) (FileKind, bool) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return FileKindPDF, true
	case ".jpg", ".jpeg", ".png":
		return FileKindImage, true
	default:
		return "", false
	}
}
