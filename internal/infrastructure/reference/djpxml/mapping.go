package djpxml

import "github.com/kirillkom/efaktur-validator/internal/core/domain"

// FieldMapping links an invoice field to the DJP response element holding it.
type FieldMapping struct {
	Field   domain.FieldName
	Element string
}

// DefaultFieldMapping covers the resValidateFakturPm schema. The DJP service
// calls the buyer "lawan transaksi".
var DefaultFieldMapping = []FieldMapping{
	{Field: domain.FieldNPWPPenjual, Element: "npwpPenjual"},
	{Field: domain.FieldNamaPenjual, Element: "namaPenjual"},
	{Field: domain.FieldNPWPPembeli, Element: "npwpLawanTransaksi"},
	{Field: domain.FieldNamaPembeli, Element: "namaLawanTransaksi"},
	{Field: domain.FieldNomorFaktur, Element: "nomorFaktur"},
	{Field: domain.FieldTanggalFaktur, Element: "tanggalFaktur"},
	{Field: domain.FieldJumlahDPP, Element: "jumlahDpp"},
	{Field: domain.FieldJumlahPPN, Element: "jumlahPpn"},
}

const (
	elementApprovalStatus = "statusApproval"
	elementInvoiceStatus  = "statusFaktur"
)
