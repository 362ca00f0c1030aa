package efaktur

import (
	"fmt"

	"github.com/kirillkom/efaktur-validator/internal/core/domain"
)

// Reconcile compares extracted fields with the reference record in
// domain.FieldOrder. Values are compared by exact string equality.
func Reconcile(extracted, reference domain.Fields) []domain.Deviation {
	deviations := make([]domain.Deviation, 0, len(domain.FieldOrder))
	for _, name := range domain.FieldOrder {
		pdfValue := extracted[name]
		refValue := reference[name]

		var kind domain.DeviationType
		switch {
		case pdfValue == nil && refValue == nil:
			continue
		case pdfValue == nil:
			kind = domain.DeviationMissingInPDF
		case refValue == nil:
			kind = domain.DeviationMissingInAPI
		case *pdfValue != *refValue:
			kind = domain.DeviationMismatch
		default:
			continue
		}

		deviations = append(deviations, domain.Deviation{
			Field:          name,
			PDFValue:       copyValue(pdfValue),
			ReferenceValue: copyValue(refValue),
			Type:           kind,
		})
	}
	return deviations
}

// Summarize derives the result status and message from a deviation list.
func Summarize(deviations []domain.Deviation) (domain.ValidationStatus, string) {
	if len(deviations) == 0 {
		return domain.StatusValidatedSuccessfully, "E-Faktur data matches DJP records"
	}
	return domain.StatusValidatedWithDeviations, fmt.Sprintf("Found %d deviation(s) in e-Faktur data", len(deviations))
}

func copyValue(v *string) *string {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}
