// Package xlsx renders validation results as Excel workbooks.
package xlsx

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/efaktur-validator/internal/core/domain"
)

const (
	summarySheet   = "Summary"
	deviationSheet = "Deviations"
	fieldsSheet    = "Fields"
)

var amountFields = map[domain.FieldName]bool{
	domain.FieldJumlahDPP: true,
	domain.FieldJumlahPPN: true,
}

// Render builds a workbook with a summary, the deviation list and a side by
// side view of extracted and DJP values.
func Render(result *domain.ValidationResult) ([]byte, error) {
	if result == nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "xlsx report", fmt.Errorf("nil result"))
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	for _, sheet := range []string{deviationSheet, fieldsSheet} {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, fmt.Errorf("create sheet %s: %w", sheet, err)
		}
	}

	if err := writeSummary(f, result); err != nil {
		return nil, fmt.Errorf("xlsx summary: %w", err)
	}
	if err := writeDeviations(f, result.Results.Deviations); err != nil {
		return nil, fmt.Errorf("xlsx deviations: %w", err)
	}
	if err := writeFields(f, result.Results.ExtractedData, result.Results.ValidatedData); err != nil {
		return nil, fmt.Errorf("xlsx fields: %w", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}

func writeSummary(f *excelize.File, result *domain.ValidationResult) error {
	qrURL := ""
	if result.Results.QRURL != nil {
		qrURL = *result.Results.QRURL
	}
	rows := [][]any{
		{"Status", string(result.Status)},
		{"Message", result.Message},
		{"Deviations", len(result.Results.Deviations)},
		{"QR URL", qrURL},
	}
	for i, row := range rows {
		if err := writeRow(f, summarySheet, i+1, row...); err != nil {
			return err
		}
	}
	return setWidths(f, summarySheet, []colWidth{{"A", "A", 14}, {"B", "B", 60}})
}

func writeDeviations(f *excelize.File, deviations []domain.Deviation) error {
	if err := writeRow(f, deviationSheet, 1, "Field", "PDF Value", "DJP Value", "Type", "Difference"); err != nil {
		return err
	}
	for i, d := range deviations {
		err := writeRow(f, deviationSheet, i+2,
			string(d.Field),
			valueOrEmpty(d.PDFValue),
			valueOrEmpty(d.ReferenceValue),
			string(d.Type),
			difference(d),
		)
		if err != nil {
			return err
		}
	}
	return setWidths(f, deviationSheet, []colWidth{{"A", "A", 16}, {"B", "C", 36}, {"D", "E", 16}})
}

func writeFields(f *excelize.File, extracted, reference domain.Fields) error {
	if err := writeRow(f, fieldsSheet, 1, "Field", "Extracted", "DJP"); err != nil {
		return err
	}
	for i, name := range domain.FieldOrder {
		err := writeRow(f, fieldsSheet, i+2,
			string(name),
			valueOrEmpty(extracted[name]),
			valueOrEmpty(reference[name]),
		)
		if err != nil {
			return err
		}
	}
	return setWidths(f, fieldsSheet, []colWidth{{"A", "A", 16}, {"B", "C", 36}})
}

func writeRow(f *excelize.File, sheet string, row int, values ...any) error {
	for col, v := range values {
		cell, err := excelize.CoordinatesToCellName(col+1, row)
		if err != nil {
			return fmt.Errorf("cell %d,%d: %w", col+1, row, err)
		}
		if err := f.SetCellValue(sheet, cell, v); err != nil {
			return fmt.Errorf("set %s!%s: %w", sheet, cell, err)
		}
	}
	return nil
}

type colWidth struct {
	from, to string
	width    float64
}

func setWidths(f *excelize.File, sheet string, widths []colWidth) error {
	for _, w := range widths {
		if err := f.SetColWidth(sheet, w.from, w.to, w.width); err != nil {
			return fmt.Errorf("width %s!%s:%s: %w", sheet, w.from, w.to, err)
		}
	}
	return nil
}

// difference is PDF minus DJP for mismatched amounts, empty otherwise.
func difference(d domain.Deviation) string {
	if d.Type != domain.DeviationMismatch || !amountFields[d.Field] {
		return ""
	}
	pdfAmount, err := decimal.NewFromString(*d.PDFValue)
	if err != nil {
		return ""
	}
	refAmount, err := decimal.NewFromString(*d.ReferenceValue)
	if err != nil {
		return ""
	}
	return pdfAmount.Sub(refAmount).String()
}

func valueOrEmpty(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
