package classifier

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var (
	fencePattern         = regexp.MustCompile("(?s)```[a-zA-Z]*\\s*(.*?)```")
	trailingCommaPattern = regexp.MustCompile(`,(\s*[}\]])`)
)

const maxObjects = 4

// ParseVerdict turns raw model output into a Verdict. It tries, in order: the
// text as is, the content of a markdown code fence, each balanced JSON
// object found in the text, and each object after repairing trailing commas and raw control
// characters inside strings.
func ParseVerdict(raw string) (*Verdict, error) {
	text := strings.TrimSpace(strings.TrimPrefix(raw, "\ufeff"))
	if text == "" {
		return nil, fmt.Errorf("%w: empty output", ErrInvalidResponse)
	}

	candidates := []string{text}
	if m := fencePattern.FindStringSubmatch(text); m != nil {
		candidates = append(candidates, strings.TrimSpace(m[1]))
	}
	for _, obj := range objects(text, maxObjects) {
		candidates = append(candidates, obj, repair(obj))
	}

	var lastErr error
	for _, c := range candidates {
		v, err := decode(c)
		if err == nil {
			return v, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, lastErr)
}

func decode(s string) (*Verdict, error) {
	var v Verdict
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, err
	}
	if len(v.Steps) == 0 {
		return nil, fmt.Errorf("no steps in verdict")
	}
	return &v, nil
}

// objects returns up to limit balanced {...} spans of s, in order. An opening
// brace that never closes is skipped and the scan resumes after it.
func objects(s string, limit int) []string {
	var out []string
	for i := 0; i < len(s) && len(out) < limit; {
		start := strings.IndexByte(s[i:], '{')
		if start < 0 {
			break
		}
		start += i
		obj, ok := balancedFrom(s, start)
		if !ok {
			i = start + 1
			continue
		}
		out = append(out, obj)
		i = start + len(obj)
	}
	return out
}

// balancedFrom returns the balanced object opening at s[start], honoring
// JSON strings.
func balancedFrom(s string, start int) (string, bool) {
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
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

// repair drops trailing commas and escapes control characters that appear
// inside string literals.
func repair(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	inString := false
	escaped := false
	for _, r := range s {
		if inString {
			switch {
			case escaped:
				escaped = false
			case r == '\\':
				escaped = true
			case r == '"':
				inString = false
			case r == '\n':
				b.WriteString(`\n`)
				continue
			case r == '\r':
				b.WriteString(`\r`)
				continue
			case r == '\t':
				b.WriteString(`\t`)
				continue
			case r < 0x20:
				continue
			}
		} else if r == '"' {
			inString = true
		}
		b.WriteRune(r)
	}
	return trailingCommaPattern.ReplaceAllString(b.String(), "$1")
}
