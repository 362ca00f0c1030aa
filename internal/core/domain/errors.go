package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput         = errors.New("invalid input")
	ErrUnsupportedFileType  = errors.New("unsupported file type")
	ErrEmptyExtraction      = errors.New("empty extraction")
	ErrExtractionFailed     = errors.New("extraction failed")
	ErrReferenceParse       = errors.New("reference parse failure")
	ErrReferenceUnavailable = errors.New("reference unavailable")
	ErrTemporary            = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
