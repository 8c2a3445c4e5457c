package normalize

import (
	"strconv"
	"strings"
)

// ParseCoordinate parses a coordinate value that may carry a trailing
// hemisphere letter ("77.1539W", "38.8895 N") into signed decimal
// degrees. West and South suffixes negate the value; an explicit sign on
// a suffixed value is honored after negation of the absolute value.
func ParseCoordinate(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}

	negate := false
	switch last := s[len(s)-1]; last {
	case 'W', 'w', 'S', 's':
		negate = true
		s = strings.TrimSpace(s[:len(s)-1])
	case 'E', 'e', 'N', 'n':
		// "12e4" style scientific notation never appears in these
		// datasets, so a trailing letter is always a hemisphere.
		s = strings.TrimSpace(s[:len(s)-1])
	}
	if s == "" {
		return 0, false
	}

	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil {
		return 0, false
	}
	if negate {
		if v < 0 {
			v = -v
		}
		return -v, true
	}
	return v, true
}

// parseFloat parses s, returning fallback when empty or malformed.
func parseFloat(s string, fallback float64) float64 {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	if s == "" {
		return fallback
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fallback
	}
	return v
}
