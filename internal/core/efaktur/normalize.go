// Package efaktur turns OCR output of Indonesian e-Faktur documents into
// structured fields and reconciles them with a DJP reference record.
package efaktur

import (
	"regexp"
	"strings"
)

var (
	reLineBreaks  = regexp.MustCompile(`[\r\n]+`)
	reHorizSpace  = regexp.MustCompile(`[ \t]+`)
	reNonASCII    = regexp.MustCompile(`[^\x00-\x7F]+`)
	reMultiSpaces = regexp.MustCompile(` +`)
)

// ocrSubstitutions are applied in order; later patterns rely on earlier ones.
var ocrSubstitutions = []struct {
	from string
	to   string
}{
	{"Sen Faktur", "Seri Faktur"},
	{"NPWP |", "NPWP :"},
	{"NPWP :", "NPWP:"},
	{"NIKPaspor", "NIK/Paspor"},
	{"Palak", "Pajak"},
}

// Normalize cleans raw OCR text: line breaks and horizontal whitespace are
// collapsed, known misrecognitions corrected and non-ASCII runes dropped.
func Normalize(text string) string {
	if text == "" {
		return ""
	}
	// Removing non-ASCII runes can expose new substitution matches, a
	// second pass settles them.
	return normalizePass(normalizePass(text))
}

func normalizePass(text string) string {
	text = reLineBreaks.ReplaceAllString(text, "\n")
	text = reHorizSpace.ReplaceAllString(text, " ")
	for _, sub := range ocrSubstitutions {
		text = strings.ReplaceAll(text, sub.from, sub.to)
	}
	text = reNonASCII.ReplaceAllString(text, "")
	return reMultiSpaces.ReplaceAllString(text, " ")
}
