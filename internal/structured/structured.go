// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package structured decodes JSON embedded in free-form model output. Model
// responses often wrap the payload in a Markdown code fence, surround it with
// prose, or leave trailing commas; Decode tolerates all three.
package structured

import (
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/pdiddy/litreview/pkg/types"
)

// Decode extracts the JSON value from text and unmarshals it into v. Every
// failure wraps types.ErrStructuredOutput.
func Decode(text string, v any) error {
	payload := Extract(text)
	if payload == "" {
		return eris.Wrap(types.ErrStructuredOutput, "no JSON value in model output")
	}
	if err := json.Unmarshal([]byte(payload), v); err != nil {
		return eris.Wrapf(types.ErrStructuredOutput, "decoding model output: %v", err)
	}
	return nil
}

// Extract returns the JSON object or array found in text with code fences
// and trailing commas removed. It returns "" when no value is present.
func Extract(text string) string {
	s := StripFences(text)
	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return ""
	}
	end := matchingClose(s, start)
	if end < 0 {
		// Unbalanced; hand the tail to the decoder so it reports the error.
		return RemoveTrailingCommas(strings.TrimSpace(s[start:]))
	}
	return RemoveTrailingCommas(s[start : end+1])
}

// StripFences returns the body of the first fenced code block in text, or
// text itself when there is no fence. A language tag after the opening fence
// is dropped.
func StripFences(text string) string {
	const fence = "```"
	open := strings.Index(text, fence)
	if open < 0 {
		return strings.TrimSpace(text)
	}
	body := text[open+len(fence):]
	if nl := strings.IndexByte(body, '\n'); nl >= 0 && !strings.ContainsAny(body[:nl], "{[") {
		body = body[nl+1:]
	}
	if end := strings.Index(body, fence); end >= 0 {
		body = body[:end]
	}
	return strings.TrimSpace(body)
}

// matchingClose returns the index of the bracket closing the one at start,
// skipping brackets inside string literals.
func matchingClose(s string, start int) int {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// RemoveTrailingCommas drops commas that directly precede a closing bracket,
// ignoring commas inside string literals.
func RemoveTrailingCommas(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			b.WriteByte(c)
			continue
		}
		if c == '"' {
			inString = true
		}
		if c == ',' {
			j := i + 1
			for j < len(s) && strings.IndexByte(" \t\r\n", s[j]) >= 0 {
				j++
			}
			if j < len(s) && (s[j] == '}' || s[j] == ']') {
				continue
			}
		}
		b.WriteByte(c)
	}
	return b.String()
}
