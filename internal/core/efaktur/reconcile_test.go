package efaktur

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirillkom/efaktur-validator/internal/core/domain"
)

func referenceFields() domain.Fields {
	f := domain.NewFields()
	f.Set(domain.FieldNPWPPenjual, "012345678012000")
	f.Set(domain.FieldNamaPenjual, "PT ABC")
	f.Set(domain.FieldNPWPPembeli, "023456789217000")
	f.Set(domain.FieldNamaPembeli, "PT XYZ")
	f.Set(domain.FieldNomorFaktur, "0700002212345678")
	f.Set(domain.FieldTanggalFaktur, "01/04/2022")
	f.Set(domain.FieldJumlahDPP, "15000000")
	f.Set(domain.FieldJumlahPPN, "1650000")
	return f
}

func TestReconcileIdenticalRecords(t *testing.T) {
	deviations := Reconcile(referenceFields(), referenceFields())
	require.NotNil(t, deviations)
	assert.Empty(t, deviations)

	status, msg := Summarize(deviations)
	assert.Equal(t, domain.StatusValidatedSuccessfully, status)
	assert.Equal(t, "E-Faktur data matches DJP records", msg)
}

func TestReconcileMissingInPDF(t *testing.T) {
	extracted := referenceFields()
	extracted.Clear(domain.FieldJumlahPPN)

	deviations := Reconcile(extracted, referenceFields())
	require.Len(t, deviations, 1)
	d := deviations[0]
	assert.Equal(t, domain.FieldJumlahPPN, d.Field)
	assert.Equal(t, domain.DeviationMissingInPDF, d.Type)
	assert.Nil(t, d.PDFValue)
	require.NotNil(t, d.ReferenceValue)
	assert.Equal(t, "1650000", *d.ReferenceValue)

	status, msg := Summarize(deviations)
	assert.Equal(t, domain.StatusValidatedWithDeviations, status)
	assert.Equal(t, "Found 1 deviation(s) in e-Faktur data", msg)
}

func TestReconcileRules(t *testing.T) {
	extracted := domain.NewFields()
	reference := domain.NewFields()

	// both absent: no deviation for npwpPenjual
	extracted.Set(domain.FieldNamaPenjual, "PT ABC")
	reference.Set(domain.FieldNamaPenjual, "PT ABC")
	extracted.Set(domain.FieldNPWPPembeli, "023456789217000")
	reference.Set(domain.FieldNamaPembeli, "PT XYZ")
	extracted.Set(domain.FieldJumlahDPP, "015000000")
	reference.Set(domain.FieldJumlahDPP, "15000000")
	extracted.Set(domain.FieldNomorFaktur, "")
	reference.Set(domain.FieldNomorFaktur, "0700002212345678")

	deviations := Reconcile(extracted, reference)
	require.Len(t, deviations, 4)

	assert.Equal(t, domain.FieldNPWPPembeli, deviations[0].Field)
	assert.Equal(t, domain.DeviationMissingInAPI, deviations[0].Type)
	assert.Nil(t, deviations[0].ReferenceValue)

	assert.Equal(t, domain.FieldNamaPembeli, deviations[1].Field)
	assert.Equal(t, domain.DeviationMissingInPDF, deviations[1].Type)

	assert.Equal(t, domain.FieldNomorFaktur, deviations[2].Field)
	assert.Equal(t, domain.DeviationMismatch, deviations[2].Type)
	require.NotNil(t, deviations[2].PDFValue)
	assert.Equal(t, "", *deviations[2].PDFValue)

	assert.Equal(t, domain.FieldJumlahDPP, deviations[3].Field)
	assert.Equal(t, domain.DeviationMismatch, deviations[3].Type)
	assert.Equal(t, "015000000", *deviations[3].PDFValue)
	assert.Equal(t, "15000000", *deviations[3].ReferenceValue)
}

func TestReconcileAllAbsentAgainstFullReference(t *testing.T) {
	deviations := Reconcile(domain.NewFields(), referenceFields())
	require.Len(t, deviations, len(domain.FieldOrder))
	for i, d := range deviations {
		assert.Equal(t, domain.FieldOrder[i], d.Field)
		assert.Equal(t, domain.DeviationMissingInPDF, d.Type)
	}
}

func TestReconcileSwapSymmetry(t *testing.T) {
	a := referenceFields()
	a.Clear(domain.FieldNamaPembeli)
	a.Set(domain.FieldJumlahPPN, "1650001")
	b := referenceFields()
	b.Clear(domain.FieldTanggalFaktur)

	forward := Reconcile(a, b)
	backward := Reconcile(b, a)
	require.Len(t, backward, len(forward))

	for i := range forward {
		f, r := forward[i], backward[i]
		assert.Equal(t, f.Field, r.Field)
		assert.Equal(t, f.PDFValue, r.ReferenceValue)
		assert.Equal(t, f.ReferenceValue, r.PDFValue)
		switch f.Type {
		case domain.DeviationMissingInPDF:
			assert.Equal(t, domain.DeviationMissingInAPI, r.Type)
		case domain.DeviationMissingInAPI:
			assert.Equal(t, domain.DeviationMissingInPDF, r.Type)
		default:
			assert.Equal(t, f.Type, r.Type)
		}
	}
}

func TestReconcileDoesNotAliasInputs(t *testing.T) {
	extracted := referenceFields()
	extracted.Set(domain.FieldNamaPenjual, "PT ABD")
	reference := referenceFields()

	deviations := Reconcile(extracted, reference)
	require.Len(t, deviations, 1)
	*deviations[0].PDFValue = "changed"

	v, _ := extracted.Get(domain.FieldNamaPenjual)
	assert.Equal(t, "PT ABD", v)
}
