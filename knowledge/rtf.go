package knowledge

import (
	"strconv"
	"strings"
)

// Control words opening destinations that carry no body text.
var rtfSkipDestinations = map[string]bool{
	"fonttbl":    true,
	"colortbl":   true,
	"stylesheet": true,
	"info":       true,
	"pict":       true,
	"header":     true,
	"footer":     true,
	"footnote":   true,
	"generator":  true,
	"themedata":  true,
}

// RTFToText extracts plain text from RTF source. It is deliberately
// tolerant: unknown control words are dropped, never treated as errors,
// since real-world exports are full of vendor extensions.
func RTFToText(src string) string {
	var out strings.Builder
	// Stack of "inside a skipped destination" flags, one per open group.
	skip := []bool{false}
	top := func() bool { return skip[len(skip)-1] }

	i := 0
	for i < len(src) {
		switch c := src[i]; c {
		case '{':
			skip = append(skip, top())
			i++
		case '}':
			if len(skip) > 1 {
				skip = skip[:len(skip)-1]
			}
			i++
		case '\\':
			i = consumeControl(src, i, &out, skip, top())
		case '\r', '\n':
			// Raw newlines are layout in the source, not content.
			i++
		default:
			if !top() {
				out.WriteByte(c)
			}
			i++
		}
	}
	return strings.TrimSpace(out.String())
}

// consumeControl handles one backslash sequence starting at i and returns
// the index of the first byte after it.
func consumeControl(src string, i int, out *strings.Builder, skip []bool, skipping bool) int {
	if i+1 >= len(src) {
		return i + 1
	}
	next := src[i+1]

	switch {
	case next == '\\' || next == '{' || next == '}':
		if !skipping {
			out.WriteByte(next)
		}
		return i + 2
	case next == '~':
		if !skipping {
			out.WriteByte(' ')
		}
		return i + 2
	case next == '*':
		// Ignorable destination: skip the enclosing group.
		skip[len(skip)-1] = true
		return i + 2
	case next == '\'':
		if i+3 < len(src) {
			if b, err := strconv.ParseUint(src[i+2:i+4], 16, 8); err == nil && !skipping {
				out.WriteRune(rune(b))
			}
			return i + 4
		}
		return i + 2
	}

	// Control word: letters, optional signed numeric parameter, optional
	// single space delimiter.
	j := i + 1
	for j < len(src) && isASCIILetter(src[j]) {
		j++
	}
	word := src[i+1 : j]
	param := ""
	if j < len(src) && (src[j] == '-' || isASCIIDigit(src[j])) {
		k := j
		if src[k] == '-' {
			k++
		}
		for k < len(src) && isASCIIDigit(src[k]) {
			k++
		}
		param = src[j:k]
		j = k
	}
	if j < len(src) && src[j] == ' ' {
		j++
	}

	if word == "" {
		return j
	}
	if rtfSkipDestinations[word] {
		skip[len(skip)-1] = true
		return j
	}
	if skipping {
		return j
	}

	switch word {
	case "par", "line", "sect", "page":
		out.WriteByte('\n')
	case "tab":
		out.WriteByte('\t')
	case "lquote", "rquote":
		out.WriteByte('\'')
	case "ldblquote", "rdblquote":
		out.WriteByte('"')
	case "emdash", "endash":
		out.WriteByte('-')
	case "u":
		if n, err := strconv.Atoi(param); err == nil {
			if n < 0 {
				n += 65536
			}
			out.WriteRune(rune(n))
		}
		// One fallback character follows a \u escape.
		if j < len(src) {
			if src[j] == '\\' && j+3 < len(src) && src[j+1] == '\'' {
				j += 4
			} else if src[j] != '\\' && src[j] != '{' && src[j] != '}' {
				j++
			}
		}
	}
	return j
}

func isASCIILetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

func isASCIIDigit(b byte) bool {
	return b >= '0' && b <= '9'
}
