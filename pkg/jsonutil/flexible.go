// Package jsonutil decodes the loosely typed JSON values generators tend to
// produce: numbers quoted as strings, percentages, scalars where lists belong.
package jsonutil

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// FlexibleStringValue converts a json.RawMessage to a string, handling cases where
// LLMs return numbers or booleans instead of strings. Returns empty string for null/empty.
func FlexibleStringValue(raw json.RawMessage) string {
	if isNull(raw) {
		return ""
	}

	var strVal string
	if err := json.Unmarshal(raw, &strVal); err == nil {
		return strings.TrimSpace(strVal)
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

// FlexibleFloat reads a number that may arrive as a JSON number or as a
// string such as "42", "0.75" or "85%". A trailing percent sign divides by
// 100 only when asPercentOfOne is set; otherwise it is simply stripped.
// ok is false for null, empty, unparseable or non-finite input.
func FlexibleFloat(raw json.RawMessage, asPercentOfOne bool) (value float64, ok bool) {
	if isNull(raw) {
		return 0, false
	}

	if err := json.Unmarshal(raw, &value); err == nil {
		return value, true
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, false
	}
	s = strings.TrimSpace(s)
	percent := strings.HasSuffix(s, "%")
	s = strings.TrimSpace(strings.TrimSuffix(s, "%"))
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return 0, false
	}

	value, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, false
	}
	if percent && asPercentOfOne {
		value /= 100
	}
	return value, true
}

// FlexibleOptionalFloat is FlexibleFloat for optional fields: it returns nil
// when the value is absent or not numeric ("unknown", "n/a").
func FlexibleOptionalFloat(raw json.RawMessage) *float64 {
	v, ok := FlexibleFloat(raw, false)
	if !ok {
		return nil
	}
	return &v
}

// FlexibleStringList reads a list of strings. Non-string elements are
// stringified; a bare string becomes a one-element list and null an empty one.
func FlexibleStringList(raw json.RawMessage) ([]string, error) {
	if isNull(raw) {
		return []string{}, nil
	}

	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err == nil {
		out := make([]string, 0, len(elems))
		for _, e := range elems {
			if s := FlexibleStringValue(e); s != "" {
				out = append(out, s)
			}
		}
		return out, nil
	}

	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		single = strings.TrimSpace(single)
		if single == "" {
			return []string{}, nil
		}
		return []string{single}, nil
	}

	return nil, fmt.Errorf("expected list of strings, got %s", truncate(string(raw), 40))
}

func isNull(raw json.RawMessage) bool {
	trimmed := strings.TrimSpace(string(raw))
	return trimmed == "" || trimmed == "null"
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
