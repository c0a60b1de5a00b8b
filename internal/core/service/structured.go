package service

import (
	"encoding/json"
	"strings"

	"github.com/acqadvantage/assistant-api/internal/core/domain"
)

// ExtractStructured locates and parses the JSON object embedded in raw
// assistant output. The assistant is expected to emit one object, possibly
// surrounded by prose or markdown code fencing.
//
// Policy: strip fence markers, try the longest brace-delimited substring
// (first '{' to last '}'), then fall back to balanced-brace candidates. A
// text with no parseable object yields domain.ErrMalformedAssistantOutput —
// an expected, recoverable condition, not a fatal one.
func ExtractStructured(text string) (json.RawMessage, error) {
	cleaned := stripFences(text)

	start := strings.IndexByte(cleaned, '{')
	end := strings.LastIndexByte(cleaned, '}')
	if start < 0 || end <= start {
		return nil, domain.ErrMalformedAssistantOutput
	}

	if candidate := cleaned[start : end+1]; json.Valid([]byte(candidate)) {
		return json.RawMessage(candidate), nil
	}

	// The widest span failed (stray braces in surrounding prose). Scan each
	// opening brace for its balanced close and keep the longest valid object.
	var best string
	for i := start; i >= 0 && i < len(cleaned); i = indexByteFrom(cleaned, '{', i+1) {
		candidate := balancedObject(cleaned[i:])
		if candidate != "" && len(candidate) > len(best) && json.Valid([]byte(candidate)) {
			best = candidate
		}
	}
	if best == "" {
		return nil, domain.ErrMalformedAssistantOutput
	}
	return json.RawMessage(best), nil
}

// stripFences removes markdown code-fence lines, leaving their contents.
func stripFences(text string) string {
	if !strings.Contains(text, "```") {
		return text
	}
	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

// balancedObject returns the shortest prefix of s (which must start at '{')
// whose braces balance, respecting JSON string literals and escapes.
func balancedObject(s string) string {
	depth := 0
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return s[:i+1]
			}
		}
	}
	return ""
}

func indexByteFrom(s string, c byte, from int) int {
	if from >= len(s) {
		return -1
	}
	i := strings.IndexByte(s[from:], c)
	if i < 0 {
		return -1
	}
	return from + i
}
