package jsonutil

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// FlexibleStringValue converts a json.RawMessage to a string, handling hand-written
// files that put numbers or booleans where strings are expected.
// Returns empty string for null/empty.
func FlexibleStringValue(raw json.RawMessage) string {
	if isEmpty(raw) {
		return ""
	}

	var strVal string
	if err := json.Unmarshal(raw, &strVal); err == nil {
		return strVal
	}

	var numVal json.Number
	if err := json.Unmarshal(raw, &numVal); err == nil {
		return numVal.String()
	}

	var boolVal bool
	if err := json.Unmarshal(raw, &boolVal); err == nil {
		return strconv.FormatBool(boolVal)
	}

	return string(raw)
}

// FlexibleInt decodes an integer written either as a JSON number or as a
// numeric string ("12"). Null/empty yields 0.
func FlexibleInt(raw json.RawMessage) (int, error) {
	if isEmpty(raw) {
		return 0, nil
	}

	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		s = strings.TrimSpace(s)
		if s == "" {
			return 0, nil
		}
		v, err := strconv.Atoi(s)
		if err != nil {
			return 0, fmt.Errorf("invalid integer %q: %w", s, err)
		}
		return v, nil
	}

	return 0, fmt.Errorf("invalid integer value %s", string(raw))
}

// FlexibleBool decodes a boolean written as true/false, "true"/"false",
// "yes"/"no" or 1/0. Null/empty yields false.
func FlexibleBool(raw json.RawMessage) (bool, error) {
	if isEmpty(raw) {
		return false, nil
	}

	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b, nil
	}

	switch strings.ToLower(strings.TrimSpace(FlexibleStringValue(raw))) {
	case "true", "yes", "y", "1":
		return true, nil
	case "false", "no", "n", "0", "":
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean value %s", string(raw))
}

func isEmpty(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}
