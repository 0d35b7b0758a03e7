// Package money formats minor-unit amounts and computes display estimates.
package money

import (
	"strconv"
	"strings"
)

// DefaultCurrency applies when a response carries no currency code.
const DefaultCurrency = "USD"

var symbols = map[string]string{
	"USD": "$",
	"CAD": "CA$",
	"MXN": "MX$",
	"EUR": "€",
	"GBP": "£",
}

// FormatCents renders an amount in minor units, e.g. FormatCents(7500, "USD")
// is "$75.00". An empty currency means USD.
func FormatCents(cents int64, currency string) string {
	code := strings.ToUpper(strings.TrimSpace(currency))
	if code == "" {
		code = DefaultCurrency
	}

	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	amount := groupThousands(cents/100) + "." + pad2(cents%100)

	if symbol, ok := symbols[code]; ok {
		return sign + symbol + amount
	}
	return sign + amount + " " + code
}

func groupThousands(n int64) string {
	digits := strconv.FormatInt(n, 10)
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
			b.WriteByte(',')
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}

func pad2(n int64) string {
	if n < 10 {
		return "0" + strconv.FormatInt(n, 10)
	}
	return strconv.FormatInt(n, 10)
}
