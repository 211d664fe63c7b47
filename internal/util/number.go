package util

import (
	"regexp"
	"strconv"
	"strings"
)

var leadingNumber = regexp.MustCompile(`^[+-]?(?:\d+\.?\d*|\.\d+)(?:[eE][+-]?\d+)?`)

// ParseLeadingFloat parses the longest numeric prefix of input, so
// "100 approx" yields 100. ok is false when input does not start with a number.
func ParseLeadingFloat(input string) (float64, bool) {
	s := strings.TrimSpace(input)
	token := leadingNumber.FindString(s)
	if token == "" {
		return 0, false
	}
	parsed, err := strconv.ParseFloat(token, 64)
	if err != nil {
		// exponent overflow such as "1e999"; retry without the exponent
		if idx := strings.IndexAny(token, "eE"); idx > 0 {
			parsed, err = strconv.ParseFloat(token[:idx], 64)
		}
		if err != nil {
			return 0, false
		}
	}
	return parsed, true
}

// IsPlainNumber reports whether the whole trimmed input is a number.
func IsPlainNumber(input string) bool {
	s := strings.TrimSpace(input)
	if s == "" {
		return false
	}
	return leadingNumber.FindString(s) == s
}
