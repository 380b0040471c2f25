// Package money parses and renders prices in the formats storefronts and
// users write them: "R$ 1.234,56", "80,99", "80.99".
package money

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrUnparseable indicates the input could not be read as a price.
var ErrUnparseable = errors.New("money: unparseable price")

const symbol = "R$"

// Parse reads a price string. Brazilian format (dot thousands, comma
// decimals) and US format are both accepted; the rightmost separator wins.
func Parse(s string) (decimal.Decimal, error) {
	cleaned := strings.NewReplacer("R$", "", "r$", "", " ", "", " ", "").Replace(strings.TrimSpace(s))
	if cleaned == "" {
		return decimal.Decimal{}, ErrUnparseable
	}

	commaPos := strings.LastIndex(cleaned, ",")
	dotPos := strings.LastIndex(cleaned, ".")

	switch {
	case commaPos >= 0 && dotPos >= 0:
		if commaPos > dotPos {
			// 1.234,56
			cleaned = strings.ReplaceAll(cleaned, ".", "")
			cleaned = strings.ReplaceAll(cleaned, ",", ".")
		} else {
			// 1,234.56
			cleaned = strings.ReplaceAll(cleaned, ",", "")
		}
	case commaPos >= 0:
		// 80,99
		cleaned = strings.ReplaceAll(cleaned, ",", ".")
	}

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Decimal{}, ErrUnparseable
	}
	return d, nil
}

// Format renders a price as "R$ 1.234,56". Nil renders as "R$ --".
func Format(d *decimal.Decimal) string {
	if d == nil {
		return symbol + " --"
	}
	return FormatValue(*d)
}

// FormatValue renders a price value as "R$ 1.234,56".
func FormatValue(d decimal.Decimal) string {
	fixed := d.StringFixed(2) // e.g. -1234.56
	neg := strings.HasPrefix(fixed, "-")
	fixed = strings.TrimPrefix(fixed, "-")

	intPart := fixed[:len(fixed)-3]
	fracPart := fixed[len(fixed)-2:]

	var groups []string
	for len(intPart) > 3 {
		groups = append([]string{intPart[len(intPart)-3:]}, groups...)
		intPart = intPart[:len(intPart)-3]
	}
	groups = append([]string{intPart}, groups...)

	out := symbol + " " + strings.Join(groups, ".") + "," + fracPart
	if neg {
		out = symbol + " -" + strings.Join(groups, ".") + "," + fracPart
	}
	return out
}

// FormatPct renders a percentage with one decimal, "--%" for nil.
func FormatPct(d *decimal.Decimal) string {
	if d == nil {
		return "--%"
	}
	return d.StringFixed(1) + "%"
}
