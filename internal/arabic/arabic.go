// Package arabic converts Western digits to their Arabic-Indic glyphs.
package arabic

import "strings"

// digits maps each Western digit to the corresponding Arabic-Indic glyph
// (U+0660 through U+0669).
var digits = [10]rune{'٠', '١', '٢', '٣', '٤', '٥', '٦', '٧', '٨', '٩'}

// Format replaces every Western digit 0-9 in s with its Arabic-Indic glyph.
// All other runes, including the decimal separator, pass through unchanged.
func Format(s string) string {
	var b strings.Builder
	b.Grow(len(s) * 2)
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(digits[r-'0'])
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Latinize is the inverse of Format: Arabic-Indic glyphs become Western
// digits, everything else passes through.
func Latinize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '٠' && r <= '٩' {
			b.WriteRune('0' + (r - '٠'))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
