package enrichment

import (
	"strings"
)

// stripFences removes a markdown code fence around a model answer
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
}

// repairJSON balances a truncated JSON answer. It keeps every array element
// that was fully written, drops the partial tail and closes the open
// brackets. Text after a complete document is cut. The result can be
// syntactically valid yet miss elements the model meant to send.
func repairJSON(s string) (string, bool) {
	s = stripFences(s)
	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return "", false
	}
	s = s[start:]

	var stack []byte
	var safeStack []byte
	lastSafe := -1
	inString, escaped := false, false

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
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{', '[':
			stack = append(stack, c)
		case '}', ']':
			if len(stack) == 0 {
				return "", false
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return s[:i+1], true
			}
			if stack[len(stack)-1] == '[' {
				lastSafe = i + 1
				safeStack = append(safeStack[:0], stack...)
			}
		}
	}

	if lastSafe < 0 {
		return "", false
	}

	var b strings.Builder
	b.WriteString(s[:lastSafe])
	for j := len(safeStack) - 1; j >= 0; j-- {
		if safeStack[j] == '[' {
			b.WriteByte(']')
		} else {
			b.WriteByte('}')
		}
	}
	return b.String(), true
}
