package entities

import (
	"strconv"
	"strings"
)

// ParseNumber coerces currency-style strings to numbers: "$17,500.00",
// "-$1,234.5" and "3.2%" all parse; anything else reports false.
func ParseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	var cleaned strings.Builder
	for _, r := range s {
		switch r {
		case '$', '€', '£', ',', '%', ' ':
			continue
		default:
			cleaned.WriteRune(r)
		}
	}
	v, err := strconv.ParseFloat(cleaned.String(), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
