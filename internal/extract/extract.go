// Package extract recovers a single JSON object from free-form generation output.
package extract

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMalformedOutput means no candidate in the text parses as a JSON object.
	ErrMalformedOutput = errors.New("malformed output: no JSON object found")
	// ErrEmptyResponse is returned for blank input. It matches ErrMalformedOutput.
	ErrEmptyResponse = fmt.Errorf("empty response: %w", ErrMalformedOutput)
)

const fence = "```"

// Object returns the JSON object text embedded in raw, unchanged.
//
// Candidates are tried in order: the whole trimmed text when it is a balanced object, then
// every fenced code block, then each top-level brace-balanced span of the text. The first
// candidate that parses as a JSON object wins.
func Object(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", ErrEmptyResponse
	}

	if strings.HasPrefix(trimmed, "{") && strings.HasSuffix(trimmed, "}") {
		if span, ok := firstObject(trimmed); ok && len(span) == len(trimmed) && isObject(span) {
			return span, nil
		}
	}

	for _, block := range fencedBlocks(trimmed) {
		if isObject(block) {
			return block, nil
		}
		if span, ok := firstObject(block); ok && isObject(span) {
			return span, nil
		}
	}

	rest := trimmed
	for {
		start := strings.IndexByte(rest, '{')
		if start < 0 {
			break
		}
		if span, ok := firstObject(rest[start:]); ok && isObject(span) {
			return span, nil
		}
		rest = rest[start+1:]
	}
	return "", ErrMalformedOutput
}

// Decode extracts the object from raw and unmarshals it into a generic map.
func Decode(raw string) (map[string]any, error) {
	payload, err := Object(raw)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(payload), &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}
	return out, nil
}

// fencedBlocks returns the trimmed contents of every ``` block, minus a leading language tag.
func fencedBlocks(s string) []string {
	var blocks []string
	for {
		open := strings.Index(s, fence)
		if open < 0 {
			return blocks
		}
		body := s[open+len(fence):]
		end := strings.Index(body, fence)
		if end < 0 {
			return blocks
		}
		content := body[:end]
		if nl := strings.IndexByte(content, '\n'); nl >= 0 {
			if tag := strings.TrimSpace(content[:nl]); !strings.ContainsAny(tag, "{}[\"") {
				content = content[nl+1:]
			}
		}
		if c := strings.TrimSpace(content); c != "" {
			blocks = append(blocks, c)
		}
		s = body[end+len(fence):]
	}
}

// firstObject returns the span from the first '{' to its matching '}', counting depth outside
// string literals only.
func firstObject(input string) (string, bool) {
	start := -1
	depth := 0
	inString := false
	escaped := false
	for i := 0; i < len(input); i++ {
		ch := input[i]
		if escaped {
			escaped = false
			continue
		}
		if ch == '\\' && inString {
			escaped = true
			continue
		}
		if ch == '"' && start >= 0 {
			inString = !inString
			continue
		}
		if inString {
			continue
		}
		switch ch {
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 {
				return input[start : i+1], true
			}
		}
	}
	return "", false
}

func isObject(s string) bool {
	var v map[string]json.RawMessage
	return json.Unmarshal([]byte(s), &v) == nil && v != nil
}
