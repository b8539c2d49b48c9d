package jsonutils

import (
	"regexp"
	"strings"

	"github.com/tidwall/gjson"
)

var reTrailingComma = regexp.MustCompile(`,(\s*[}\]])`)

// ExtractJSON returns the first balanced {...} span in input that parses as a
// JSON object. Braces inside JSON strings do not count toward balance.
//
// A span that is not valid as-is has trailing commas dropped before it is
// rejected, and a reply whose quotes are all escaped is retried unescaped.
// ExtractJSON never panics; ok is false when nothing usable was found.
func ExtractJSON(input string) (fragment string, ok bool) {
	// Remove BOMs and invisible control characters
	input = strings.Map(func(r rune) rune {
		if r == '\uFEFF' || r == '\u200B' || r == '\u200C' || r == '\u200D' {
			return -1 // skip
		}
		return r
	}, input)

	if fragment, ok = scan(input); ok {
		return fragment, true
	}
	// Some models escape the whole object: {\"summary\": ...}
	if strings.Contains(input, `\"`) {
		return scan(strings.ReplaceAll(input, `\"`, `"`))
	}
	return "", false
}

func scan(input string) (string, bool) {
	for start := strings.IndexByte(input, '{'); start >= 0; {
		if end := matchBrace(input, start); end > start {
			if candidate, valid := repair(input[start : end+1]); valid {
				return candidate, true
			}
		}
		next := strings.IndexByte(input[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return "", false
}

// matchBrace returns the index of the brace closing the one at start, or -1.
func matchBrace(s string, start int) int {
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
				return i
			}
		}
	}
	return -1
}

func repair(candidate string) (string, bool) {
	if isObject(candidate) {
		return candidate, true
	}

	// Remove any trailing commas before closing braces/brackets
	fixed := reTrailingComma.ReplaceAllString(candidate, "$1")
	if isObject(fixed) {
		return fixed, true
	}
	return "", false
}

func isObject(s string) bool {
	return gjson.Valid(s) && gjson.Parse(s).IsObject()
}
