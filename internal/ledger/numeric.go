package ledger

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Coerce parses a source amount into a decimal. Source systems emit both
// comma and dot decimal separators; the comma form is normalized before
// parsing. The second return is false when the input is empty or not a
// number.
func Coerce(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, false
	}
	s = strings.ReplaceAll(s, ",", ".")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// CoerceOrZero parses like Coerce but degrades unparseable input to zero.
func CoerceOrZero(s string) decimal.Decimal {
	d, _ := Coerce(s)
	return d
}

// Ratio divides num by den, returning zero when the denominator is zero so
// VAT-percentage columns never carry an infinite or undefined value.
func Ratio(num, den decimal.Decimal) decimal.Decimal {
	if den.IsZero() {
		return decimal.Zero
	}
	return num.Div(den)
}

// Round2 rounds to the two decimals used for human review.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
