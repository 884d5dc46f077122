// Package money formats monetary amounts for documents and notifications.
package money

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Places returns the number of minor-unit digits shown for a currency.
// The CFA francs have no minor unit.
func Places(currency string) int32 {
	switch strings.ToUpper(currency) {
	case "XOF", "XAF":
		return 0
	default:
		return 2
	}
}

// Round rounds amount half away from zero to the currency's precision.
func Round(amount float64, currency string) decimal.Decimal {
	return decimal.NewFromFloat(amount).Round(Places(currency))
}

// Format renders amount with a space as thousands separator and the
// currency code as suffix, e.g. "1 234 567 XOF" or "-12 500.50 EUR".
func Format(amount float64, currency string) string {
	out := Number(amount, Places(currency))
	if currency == "" {
		return out
	}
	return out + " " + strings.ToUpper(currency)
}

// Number renders amount rounded to places with grouped thousands.
func Number(amount float64, places int32) string {
	text := decimal.NewFromFloat(amount).StringFixed(places)
	sign := ""
	if strings.HasPrefix(text, "-") {
		sign, text = "-", text[1:]
	}
	whole, frac, hasFrac := strings.Cut(text, ".")
	if strings.Trim(whole, "0") == "" && strings.Trim(frac, "0") == "" {
		sign = ""
	}
	grouped := group(whole)
	if hasFrac {
		return sign + grouped + "." + frac
	}
	return sign + grouped
}

// Percent renders a rate with one decimal and a percent sign.
func Percent(rate float64) string {
	return decimal.NewFromFloat(rate).StringFixed(1) + "%"
}

func group(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	lead := len(digits) % 3
	if lead > 0 {
		b.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}
