package models

import "strings"

// TaxIDLength is the number of digits in an NPWP.
const TaxIDLength = 16

var taxIDSeparators = strings.NewReplacer(".", "", "-", "", " ", "")

// NormalizeTaxID strips grouping separators from a tax id or a tax id
// fragment. It does not check length or digits.
func NormalizeTaxID(s string) string {
	return taxIDSeparators.Replace(strings.TrimSpace(s))
}

// IsTaxID reports whether s is a canonical 16 digit tax id.
func IsTaxID(s string) bool {
	if len(s) != TaxIDLength {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// FormatTaxID groups a canonical tax id into 4 digit segments
// (0000.0000.0000.0000). Non-canonical input is returned unchanged.
func FormatTaxID(s string) string {
	if !IsTaxID(s) {
		return s
	}
	var b strings.Builder
	for i := 0; i < TaxIDLength; i += 4 {
		if i > 0 {
			b.WriteByte('.')
		}
		b.WriteString(s[i : i+4])
	}
	return b.String()
}
