package plugin

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
	"unicode"
)

var fencedBlock = regexp.MustCompile("(?s)```(?:json)?(.*?)```")

// ErrNoJSONObject is returned when model output holds no JSON object.
var ErrNoJSONObject = errors.New("no json object in model output")

// CleanJSON extracts the JSON object embedded in free-form model output.
// Fenced code blocks are unwrapped, stray backticks removed and the result is
// sliced from the first '{' to the last '}'. It returns "" when no object is present.
func CleanJSON(raw string) string {
	s := fencedBlock.ReplaceAllString(raw, "$1")
	s = strings.ReplaceAll(s, "`", "")
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end < start {
		return ""
	}
	return strings.TrimSpace(s[start : end+1])
}

// ParseJSONObject cleans raw with CleanJSON and decodes it into v.
func ParseJSONObject(raw string, v any) error {
	cleaned := CleanJSON(raw)
	if cleaned == "" {
		return ErrNoJSONObject
	}
	return json.Unmarshal([]byte(cleaned), v)
}

// ParseJSONArray decodes the first JSON array found in raw.
func ParseJSONArray(raw string, v any) error {
	s := fencedBlock.ReplaceAllString(raw, "$1")
	s = strings.ReplaceAll(s, "`", "")
	start := strings.Index(s, "[")
	end := strings.LastIndex(s, "]")
	if start < 0 || end < start {
		return errors.New("no json array in model output")
	}
	return json.Unmarshal([]byte(s[start:end+1]), v)
}

// CleanToken reduces a model answer to a single upper-case word.
func CleanToken(raw string) string {
	s := strings.ReplaceAll(raw, "`", "")
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	word := strings.TrimFunc(fields[0], func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return strings.ToUpper(word)
}

func equalFold(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
