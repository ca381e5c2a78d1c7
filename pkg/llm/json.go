package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrNoJSON is returned when a completion contains no parseable JSON object.
var ErrNoJSON = errors.New("no JSON object found in response")

// reasoningBlockPattern matches <think>...</think> preambles some models emit.
var reasoningBlockPattern = regexp.MustCompile(`(?s)<think>.*?</think>`)

// ExtractJSONObject returns the first balanced, valid JSON object in a
// completion. Reasoning blocks and markdown fences are tolerated.
func ExtractJSONObject(response string) (string, error) {
	cleaned := reasoningBlockPattern.ReplaceAllString(response, "")

	for offset := 0; offset < len(cleaned); {
		start := strings.IndexByte(cleaned[offset:], '{')
		if start < 0 {
			break
		}
		start += offset

		candidate, ok := balancedObject(cleaned[start:])
		if ok && json.Valid([]byte(candidate)) {
			return candidate, nil
		}
		offset = start + 1
	}

	return "", ErrNoJSON
}

// balancedObject scans s (which starts with '{') to the matching '}',
// skipping braces inside string literals.
func balancedObject(s string) (string, bool) {
	depth := 0
	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		c := s[i]

		switch {
		case escaped:
			escaped = false
		case inString && c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return s[:i+1], true
			}
		}
	}

	return "", false
}

// ParseJSONResponse extracts the JSON object from a completion and decodes it into T.
func ParseJSONResponse[T any](response string) (T, error) {
	var result T

	raw, err := ExtractJSONObject(response)
	if err != nil {
		return result, err
	}

	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return result, fmt.Errorf("unmarshal JSON: %w", err)
	}

	return result, nil
}
