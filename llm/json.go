// ABOUTME: Best-effort structured decoding of reasoning provider responses.
// ABOUTME: Tries a direct parse, then code-fence stripping, then the first embedded JSON fragment.

package llm

import (
	"encoding/json"
	"strings"
)

// Decode unmarshals a provider response into v. It tries the raw text first,
// then the text with Markdown code fences stripped, then the first embedded
// JSON object or array. It never panics and never returns a parse error;
// callers use the boolean and fall back when decoding fails.
func Decode(raw string, v any) bool {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return false
	}
	if json.Unmarshal([]byte(trimmed), v) == nil {
		return true
	}
	if fenced := stripFences(trimmed); fenced != trimmed {
		if json.Unmarshal([]byte(fenced), v) == nil {
			return true
		}
	}
	if fragment, ok := ExtractFragment(trimmed); ok {
		return json.Unmarshal([]byte(fragment), v) == nil
	}
	return false
}

// stripFences removes a surrounding Markdown code fence, with or without a
// language tag.
func stripFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	body := s[3:]
	if idx := strings.Index(body, "\n"); idx >= 0 {
		body = body[idx+1:]
	}
	if idx := strings.LastIndex(body, "```"); idx >= 0 {
		body = body[:idx]
	}
	return strings.TrimSpace(body)
}

// ExtractFragment finds the first balanced JSON object or array embedded in
// free text. It tracks string literals and escapes so braces inside strings
// do not confuse the balance count.
func ExtractFragment(s string) (string, bool) {
	start := -1
	var open, close byte
	for i := 0; i < len(s); i++ {
		if s[i] == '{' {
			start, open, close = i, '{', '}'
			break
		}
		if s[i] == '[' {
			start, open, close = i, '[', ']'
			break
		}
	}
	if start < 0 {
		return "", false
	}

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
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}
