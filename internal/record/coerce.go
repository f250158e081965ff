package record

import (
	"strconv"
	"time"
)

// Field coercion helpers. Each returns the typed value (nil pointer for an
// absent field) or a *ValidationError naming the offending field.

func requiredString(row map[string]interface{}, field string) (string, *ValidationError) {
	v, ok := row[field]
	if !ok || v == nil {
		return "", &ValidationError{Field: field, Value: v, Reason: "required field is missing"}
	}
	s, ok := v.(string)
	if !ok {
		return "", &ValidationError{Field: field, Value: v, Reason: "expected a string"}
	}
	return s, nil
}

func optionalString(row map[string]interface{}, field string) (*string, *ValidationError) {
	v, ok := row[field]
	if !ok || v == nil {
		return nil, nil
	}
	s, ok := v.(string)
	if !ok {
		return nil, &ValidationError{Field: field, Value: v, Reason: "expected a string"}
	}
	return &s, nil
}

func optionalEnum(row map[string]interface{}, field string, allowed []string) (*string, *ValidationError) {
	s, verr := optionalString(row, field)
	if verr != nil || s == nil {
		return nil, verr
	}
	for _, a := range allowed {
		if *s == a {
			return s, nil
		}
	}
	return nil, &ValidationError{Field: field, Value: *s, Reason: "value not in allowed set"}
}

func optionalInt64(row map[string]interface{}, field string) (*int64, *ValidationError) {
	v, ok := row[field]
	if !ok || v == nil {
		return nil, nil
	}
	switch val := v.(type) {
	case int:
		n := int64(val)
		return &n, nil
	case int64:
		return &val, nil
	case string:
		n, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			return nil, &ValidationError{Field: field, Value: val, Reason: "not a valid integer"}
		}
		return &n, nil
	default:
		return nil, &ValidationError{Field: field, Value: v, Reason: "not a valid integer"}
	}
}

func optionalIntInRange(row map[string]interface{}, field string, min, max int) (*int, *ValidationError) {
	n64, verr := optionalInt64(row, field)
	if verr != nil || n64 == nil {
		return nil, verr
	}
	n := int(*n64)
	if n < min || n > max {
		return nil, &ValidationError{Field: field, Value: n, Reason: "value out of range"}
	}
	return &n, nil
}

// optionalCount handles the cylinders column, which the reader has already
// rewritten to an int (or nil) via the leading-integer extraction.
func optionalCount(row map[string]interface{}, field string) (*int, *ValidationError) {
	v, ok := row[field]
	if !ok || v == nil {
		return nil, nil
	}
	n, ok := v.(int)
	if !ok {
		return nil, &ValidationError{Field: field, Value: v, Reason: "expected an integer count"}
	}
	if n < 0 {
		return nil, &ValidationError{Field: field, Value: n, Reason: "count cannot be negative"}
	}
	return &n, nil
}

func optionalFloat(row map[string]interface{}, field string) (*float64, *ValidationError) {
	v, ok := row[field]
	if !ok || v == nil {
		return nil, nil
	}
	switch val := v.(type) {
	case float64:
		return &val, nil
	case int:
		f := float64(val)
		return &f, nil
	case string:
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return nil, &ValidationError{Field: field, Value: val, Reason: "not a valid number"}
		}
		return &f, nil
	default:
		return nil, &ValidationError{Field: field, Value: v, Reason: "not a valid number"}
	}
}

func optionalFloatInRange(row map[string]interface{}, field string, min, max float64) (*float64, *ValidationError) {
	f, verr := optionalFloat(row, field)
	if verr != nil || f == nil {
		return nil, verr
	}
	if *f < min || *f > max {
		return nil, &ValidationError{Field: field, Value: *f, Reason: "value out of range"}
	}
	return f, nil
}

func optionalTime(row map[string]interface{}, field string) (*time.Time, *ValidationError) {
	s, verr := optionalString(row, field)
	if verr != nil || s == nil {
		return nil, verr
	}
	for _, layout := range postingDateLayouts {
		if t, err := time.Parse(layout, *s); err == nil {
			return &t, nil
		}
	}
	return nil, &ValidationError{Field: field, Value: *s, Reason: "not a recognized timestamp"}
}
