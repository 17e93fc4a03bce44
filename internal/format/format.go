// Package format mirrors the display filters the web templates used:
// compact large numbers, grouped currency, safe on junk input.
package format

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
)

// Compact shortens big numbers with K/M/B/T suffixes, two decimals.
// Bad input formats as "0.00".
func Compact(value interface{}) string {
	num, ok := toFloat(value)
	if !ok {
		return "0.00"
	}

	switch {
	case num >= 1e12:
		return fmt.Sprintf("%.2fT", num/1e12)
	case num >= 1e9:
		return fmt.Sprintf("%.2fB", num/1e9)
	case num >= 1e6:
		return fmt.Sprintf("%.2fM", num/1e6)
	case num >= 1e3:
		return fmt.Sprintf("%.2fK", num/1e3)
	default:
		return fmt.Sprintf("%.2f", num)
	}
}

// Currency renders a comma-grouped amount with two decimals. Bad input
// formats as "0.00".
func Currency(value interface{}) string {
	num, ok := toFloat(value)
	if !ok {
		return "0.00"
	}

	return humanize.FormatFloat("#,###.##", num)
}

// Abs returns the absolute value, zero on junk.
func Abs(value interface{}) float64 {
	num, ok := toFloat(value)
	if !ok {
		return 0.0
	}

	return math.Abs(num)
}

// Capitalize upper-cases the first letter only.
func Capitalize(value string) string {
	if value == "" {
		return ""
	}

	return strings.ToUpper(value[:1]) + strings.ToLower(value[1:])
}

func toFloat(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
