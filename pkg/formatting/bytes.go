// Package formatting holds small parsing and presentation helpers shared by
// configuration and the judgment pipeline: byte sizes and tolerant JSON
// extraction from model output.
package formatting

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
)

// Size units in ascending powers of 1024.
var units = []string{"B", "KB", "MB", "GB", "TB", "PB", "EB"}

// FormatBytes renders n with the largest base-1024 unit that keeps the value
// at or above one, rounded to precision decimal places.
func FormatBytes(n int64, precision int) string {
	precision = max(precision, 0)

	size := float64(n)
	i := 0
	for math.Abs(size) >= 1024 && i < len(units)-1 {
		size /= 1024
		i++
	}

	if i == 0 {
		return strconv.FormatInt(n, 10) + " B"
	}
	return strconv.FormatFloat(size, 'f', precision, 64) + " " + units[i]
}

// ParseBytes reads a size such as "50MB", "1.5 GB", or "512KiB". Units are
// case-insensitive and base-1024; a bare number is a byte count.
func ParseBytes(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty byte size string")
	}

	split := strings.IndexFunc(s, func(r rune) bool {
		return !unicode.IsDigit(r) && r != '.'
	})
	number, unit := s, ""
	if split >= 0 {
		number, unit = s[:split], strings.TrimSpace(s[split:])
	}
	if number == "" {
		return 0, fmt.Errorf("invalid byte size: %q", s)
	}

	value, err := strconv.ParseFloat(number, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid byte size number: %w", err)
	}

	exp, ok := unitExponent(unit)
	if !ok {
		return 0, fmt.Errorf("unknown byte size unit: %q", unit)
	}

	return int64(value * math.Pow(1024, float64(exp))), nil
}

func unitExponent(unit string) (int, bool) {
	u := strings.ToUpper(unit)
	if u == "" {
		return 0, true
	}
	u = strings.Replace(u, "IB", "B", 1)
	if len(u) == 1 && u != "B" {
		u += "B"
	}
	for i, known := range units {
		if u == known {
			return i, true
		}
	}
	return 0, false
}
