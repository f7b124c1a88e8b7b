package utils

import (
	"fmt"
	"math"
	"strings"
)

// Round2 rounds half away from zero to 2 decimals.
func Round2(v float64) float64 {
	r := math.Round(v*100) / 100
	if r == 0 {
		// avoid printing "-0.00"
		return 0
	}
	return r
}

// FormatMoney formats amount with thousands separators, e.g.
// FormatMoney(15000.5, "USD") -> "15,000.50 USD".
func FormatMoney(amount float64, currency string) string {
	formatted := fmt.Sprintf("%.2f", math.Abs(Round2(amount)))

	parts := strings.Split(formatted, ".")
	integerPart := parts[0]
	decimalPart := parts[1]

	var result []string
	for i := len(integerPart); i > 0; i -= 3 {
		start := i - 3
		if start < 0 {
			start = 0
		}
		result = append([]string{integerPart[start:i]}, result...)
	}

	s := strings.Join(result, ",") + "." + decimalPart
	if Round2(amount) < 0 {
		s = "-" + s
	}
	if currency != "" {
		s += " " + currency
	}
	return s
}
