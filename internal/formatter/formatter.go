// Package formatter normalizes the indentation of project XML. It only ever
// rewrites leading whitespace: tags, attributes, values and comments pass
// through byte for byte, so formatting can never change build semantics.
package formatter

import (
	"strings"
)

const indentUnit = "  "

// Format returns the text with every line re-indented to its element depth.
func Format(text string) string {
	lines := strings.Split(text, "\n")
	var b strings.Builder
	depth := 0
	inComment := false

	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			if i < len(lines)-1 {
				b.WriteByte('\n')
			}
			continue
		}

		if inComment {
			// Comment bodies keep their own layout.
			b.WriteString(line)
		} else {
			opens, closes := countTags(trimmed)
			if strings.HasPrefix(trimmed, "</") && depth > 0 {
				depth--
				closes--
			}
			b.WriteString(strings.Repeat(indentUnit, depth))
			b.WriteString(trimmed)
			depth += opens - closes
			if depth < 0 {
				depth = 0
			}
		}

		if strings.Contains(trimmed, "<!--") && !strings.Contains(trimmed, "-->") {
			inComment = true
		}
		if inComment && strings.Contains(trimmed, "-->") {
			inComment = false
		}
		if i < len(lines)-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// countTags counts the element tags opened and closed on one line, skipping
// comments, processing instructions and the doctype.
func countTags(line string) (opens, closes int) {
	i := 0
	for i < len(line) {
		j := strings.IndexByte(line[i:], '<')
		if j < 0 {
			break
		}
		i += j
		rest := line[i:]
		switch {
		case strings.HasPrefix(rest, "<!--"):
			end := strings.Index(rest, "-->")
			if end < 0 {
				return opens, closes
			}
			i += end + 3
		case strings.HasPrefix(rest, "<?") || strings.HasPrefix(rest, "<!"):
			i++
		case strings.HasPrefix(rest, "</"):
			closes++
			i += 2
		default:
			end := strings.IndexByte(rest, '>')
			if end < 0 {
				opens++
				i++
				continue
			}
			if rest[end-1] == '/' {
				// self-closing, no depth change
			} else {
				opens++
			}
			i += end + 1
		}
	}
	return opens, closes
}
