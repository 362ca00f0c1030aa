package efaktur

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/kirillkom/efaktur-validator/internal/core/domain"
)

var (
	reSellerMarker = regexp.MustCompile(`(?i)Pengusaha Kena Pajak`)
	reBuyerMarker  = regexp.MustCompile(`(?i)Pembeli Barang Kena Pajak`)

	reNPWP = regexp.MustCompile(`NPWP[\s:|\-]*([0-9.\-]+)`)
	reNama = regexp.MustCompile(`Nama[\s:|\-]*([A-Z0-9 .,&-]+)`)

	reNomorFaktur   = regexp.MustCompile(`(?i)(?:Kode dan Nomor Seri Faktur Pajak|Nomor[\s:|\-]*Faktur)[\s:|\-]*([0-9.\-]+[ ]*[0-9]+)`)
	reTanggalFaktur = regexp.MustCompile(`(?i)(?:Tanggal[\s:|\-]*Faktur[\s:|\-]*|,\s*)(\d{1,2}/\d{1,2}/\d{4})`)
	reTanggalTeks   = regexp.MustCompile(`(?i),\s*(\d{1,2})\s+([A-Z]+)\s+(\d{4})`)
	reJumlahDPP     = regexp.MustCompile(`(?i)Dasar Pengenaan Pajak[\s:|\-]*([0-9.,]+)`)
	reJumlahPPN     = regexp.MustCompile(`(?i)Total PPN[\s:|\-]*([0-9.,]+)`)

	reNonDigit        = regexp.MustCompile(`[^0-9]`)
	reAmountSeparator = regexp.MustCompile(`[\s.,]`)
)

var indonesianMonths = map[string]string{
	"JANUARI":   "01",
	"FEBRUARI":  "02",
	"MARET":     "03",
	"APRIL":     "04",
	"MEI":       "05",
	"JUNI":      "06",
	"JULI":      "07",
	"AGUSTUS":   "08",
	"SEPTEMBER": "09",
	"OKTOBER":   "10",
	"NOVEMBER":  "11",
	"DESEMBER":  "12",
}

// Sections holds the seller and buyer parts of an invoice text. An empty
// section means its marker was not found.
type Sections struct {
	Seller string
	Buyer  string
}

// SplitSections locates the seller ("Pengusaha Kena Pajak") and buyer
// ("Pembeli Barang Kena Pajak") blocks.
func SplitSections(text string) Sections {
	seller := reSellerMarker.FindStringIndex(text)
	buyer := reBuyerMarker.FindStringIndex(text)

	switch {
	case seller != nil && buyer != nil:
		s := Sections{Buyer: text[buyer[0]:]}
		if seller[0] <= buyer[0] {
			s.Seller = text[seller[0]:buyer[0]]
		}
		return s
	case seller != nil:
		return Sections{Seller: text[seller[0]:]}
	case buyer != nil:
		return Sections{Buyer: text[buyer[0]:]}
	default:
		return Sections{}
	}
}

// ExtractFields runs every field extractor over normalized text. Fields whose
// pattern does not match stay absent; extraction never fails.
func ExtractFields(text string) domain.Fields {
	sections := SplitSections(text)
	fields := domain.NewFields()

	extractors := []struct {
		name domain.FieldName
		fn   func() (string, bool)
	}{
		{domain.FieldNPWPPenjual, func() (string, bool) { return SellerNPWP(text, sections.Seller) }},
		{domain.FieldNamaPenjual, func() (string, bool) { return SellerName(text, sections.Seller) }},
		{domain.FieldNPWPPembeli, func() (string, bool) { return BuyerNPWP(text, sections.Buyer) }},
		{domain.FieldNamaPembeli, func() (string, bool) { return BuyerName(text, sections.Buyer) }},
		{domain.FieldNomorFaktur, func() (string, bool) { return InvoiceNumber(text) }},
		{domain.FieldTanggalFaktur, func() (string, bool) { return InvoiceDate(text) }},
		{domain.FieldJumlahDPP, func() (string, bool) { return TaxBase(text) }},
		{domain.FieldJumlahPPN, func() (string, bool) { return VATAmount(text) }},
	}
	for _, ex := range extractors {
		if v, ok := ex.fn(); ok {
			fields.Set(ex.name, v)
		}
	}
	return fields
}

// NPWP returns the digits of the first tax ID labelled "NPWP" in text.
func NPWP(text string) (string, bool) {
	m := reNPWP.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return digitsOnly(m[1]), true
}

// Name returns the first uppercase name labelled "Nama" in text.
func Name(text string) (string, bool) {
	m := reNama.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return strings.TrimSpace(m[1]), true
}

func SellerNPWP(text, section string) (string, bool) {
	return fromSectionOrText(NPWP, text, section)
}

func SellerName(text, section string) (string, bool) {
	return fromSectionOrText(Name, text, section)
}

// BuyerNPWP prefers the buyer section and otherwise assumes the second NPWP
// in the document belongs to the buyer.
func BuyerNPWP(text, section string) (string, bool) {
	if v, ok := fromSection(NPWP, section); ok {
		return v, true
	}
	m := nthSubmatch(reNPWP, text, 1)
	if m == nil {
		return "", false
	}
	return digitsOnly(m[1]), true
}

// BuyerName mirrors BuyerNPWP for the "Nama" label.
func BuyerName(text, section string) (string, bool) {
	if v, ok := fromSection(Name, section); ok {
		return v, true
	}
	m := nthSubmatch(reNama, text, 1)
	if m == nil {
		return "", false
	}
	return strings.TrimSpace(m[1]), true
}

func InvoiceNumber(text string) (string, bool) {
	m := reNomorFaktur.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return digitsOnly(strings.TrimSpace(m[1])), true
}

// InvoiceDate matches "Tanggal Faktur DD/MM/YYYY" (or a comma-led date) and
// falls back to ", <day> <BULAN> <year>".
func InvoiceDate(text string) (string, bool) {
	if m := reTanggalFaktur.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1]), true
	}
	m := reTanggalTeks.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	month, ok := indonesianMonths[strings.ToUpper(m[2])]
	if !ok {
		return "", false
	}
	return fmt.Sprintf("%s/%s/%s", zeroPad(m[1]), month, m[3]), true
}

func TaxBase(text string) (string, bool) {
	return amount(reJumlahDPP, text)
}

func VATAmount(text string) (string, bool) {
	return amount(reJumlahPPN, text)
}

func amount(re *regexp.Regexp, text string) (string, bool) {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return reAmountSeparator.ReplaceAllString(strings.TrimSpace(m[1]), ""), true
}

func fromSection(fn func(string) (string, bool), section string) (string, bool) {
	if section == "" {
		return "", false
	}
	v, ok := fn(section)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// fromSectionOrText falls back to the whole text when the section is empty
// or yields nothing usable.
func fromSectionOrText(fn func(string) (string, bool), text, section string) (string, bool) {
	if v, ok := fromSection(fn, section); ok {
		return v, true
	}
	return fn(text)
}

func nthSubmatch(re *regexp.Regexp, text string, n int) []string {
	all := re.FindAllStringSubmatch(text, n+1)
	if len(all) <= n {
		return nil
	}
	return all[n]
}

func digitsOnly(s string) string {
	return reNonDigit.ReplaceAllString(s, "")
}

func zeroPad(day string) string {
	if len(day) == 1 {
		return "0" + day
	}
	return day
}
