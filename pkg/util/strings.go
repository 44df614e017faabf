package util

import (
	"math"
	"strconv"
	"strings"
)

// ParseNumber coerces a report cell to float64. Blank or unparsable cells are
// NaN. Thousands separators are accepted.
func ParseNumber(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "nan") || strings.EqualFold(s, "null") {
		return math.NaN()
	}
	s = strings.ReplaceAll(s, ",", "")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(v, 0) {
		return math.NaN()
	}
	return v
}
