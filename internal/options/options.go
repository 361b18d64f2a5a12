package options

import (
	"strings"
	"unicode"
)

// IsFlag reports whether token opens a flag. Negative numbers are values.
func IsFlag(token string) bool {
	if len(token) < 2 || token[0] != '-' {
		return false
	}
	r := rune(token[1])
	return !unicode.IsDigit(r) && r != '.'
}

// index returns the position of the first occurrence of flag and whether a
// value token follows it.
func index(list []string, flag string) (int, bool) {
	for i, token := range list {
		if token != flag {
			continue
		}
		hasValue := i+1 < len(list) && !IsFlag(list[i+1])
		return i, hasValue
	}
	return -1, false
}

// Has reports whether flag is present, boolean or valued.
func Has(list []string, flag string) bool {
	i, _ := index(list, flag)
	return i >= 0
}

// Value returns the value that follows the first occurrence of flag, or def
// when the flag is absent. A boolean occurrence yields an empty string.
func Value(list []string, flag, def string) string {
	i, hasValue := index(list, flag)
	if i < 0 {
		return def
	}
	if !hasValue {
		return ""
	}
	return list[i+1]
}

// Clear removes the first occurrence of flag and its value, if any.
func Clear(list []string, flag string) []string {
	i, hasValue := index(list, flag)
	if i < 0 {
		return clone(list)
	}
	end := i + 1
	if hasValue {
		end++
	}
	out := make([]string, 0, len(list)-(end-i))
	out = append(out, list[:i]...)
	return append(out, list[end:]...)
}

// Set replaces the value of the first occurrence of flag in place, or
// appends flag and value when the flag is absent.
func Set(list []string, flag, value string) []string {
	i, hasValue := index(list, flag)
	if i < 0 {
		out := make([]string, 0, len(list)+2)
		out = append(out, list...)
		return append(out, flag, value)
	}
	if hasValue {
		out := clone(list)
		out[i+1] = value
		return out
	}
	out := make([]string, 0, len(list)+1)
	out = append(out, list[:i+1]...)
	out = append(out, value)
	return append(out, list[i+1:]...)
}

// Parse splits a raw option string on whitespace. Single and double quotes
// group words into one token and are stripped.
func Parse(raw string) []string {
	var (
		tokens  []string
		current strings.Builder
		quote   rune
		inToken bool
	)
	for _, r := range raw {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
				continue
			}
			current.WriteRune(r)
		case r == '\'' || r == '"':
			quote = r
			inToken = true
		case unicode.IsSpace(r):
			if inToken {
				tokens = append(tokens, current.String())
				current.Reset()
				inToken = false
			}
		default:
			current.WriteRune(r)
			inToken = true
		}
	}
	if inToken {
		tokens = append(tokens, current.String())
	}
	return tokens
}

// Join renders tokens as a shell-like command line for logs.
func Join(list []string) string {
	parts := make([]string, len(list))
	for i, token := range list {
		if token == "" || strings.ContainsAny(token, " \t'\"") {
			parts[i] = "'" + strings.ReplaceAll(token, "'", `'\''`) + "'"
			continue
		}
		parts[i] = token
	}
	return strings.Join(parts, " ")
}

func clone(list []string) []string {
	out := make([]string, len(list))
	copy(out, list)
	return out
}
