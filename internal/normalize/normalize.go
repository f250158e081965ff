// Package normalize holds the pure field-cleaning helpers applied to every raw
// CSV value before validation.
package normalize

import (
	"strconv"
	"strings"
)

// Scalar trims leading and trailing whitespace from a raw field value.
// An empty result becomes nil, the absent marker; otherwise the trimmed
// string is returned.
func Scalar(value string) interface{} {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return trimmed
}

// LeadingInt extracts the run of decimal digits anchored at the start of a
// normalized string value and returns it as an int. Absent input, non-string
// input, or a string without leading digits all yield nil. Used to recover a
// numeric cylinder count from values like "6 cylinders".
func LeadingInt(value interface{}) interface{} {
	s, ok := value.(string)
	if !ok {
		return nil
	}
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		return nil
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return nil
	}
	return n
}
