package httpadapter

import (
	"net/http"

	"github.com/kirillkom/efaktur-validator/internal/core/domain"
)

const internalErrorMessage = "Internal server error during validation"

// mapError returns the status and user-facing message for a validation
// error. Unclassified errors never expose their text.
func mapError(err error) (int, string) {
	switch {
	case domain.IsKind(err, domain.ErrUnsupportedFileType):
		return http.StatusBadRequest, "Only PDF and JPG/PNG files are supported"
	case domain.IsKind(err, domain.ErrEmptyExtraction):
		return http.StatusBadRequest, "No text found in document"
	case domain.IsKind(err, domain.ErrExtractionFailed):
		return http.StatusBadRequest, "Failed to extract text from document"
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, "Invalid request"
	case domain.IsKind(err, domain.ErrReferenceUnavailable):
		return http.StatusUnprocessableEntity, "DJP reference record is unavailable"
	case domain.IsKind(err, domain.ErrReferenceParse):
		return http.StatusInternalServerError, "Failed to parse DJP response"
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable, "DJP service temporarily unavailable"
	default:
		return http.StatusInternalServerError, internalErrorMessage
	}
}
