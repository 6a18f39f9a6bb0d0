package browse

import (
	"html"
	"regexp"
	"strings"
)

var (
	htmlTagRegex   = regexp.MustCompile(`<[^>]*>`)
	htmlBreakRegex = regexp.MustCompile(`(?i)<\s*(br|/p|/li|/h[1-6])\s*/?>`)
)

// extractText converts a description body to plain text. Paragraph and line
// breaks become newlines; every other tag is stripped and whitespace within a
// line collapsed.
func extractText(content string) string {
	withBreaks := htmlBreakRegex.ReplaceAllString(content, "\n")
	plain := html.UnescapeString(htmlTagRegex.ReplaceAllString(withBreaks, ""))

	var lines []string
	for _, line := range strings.Split(plain, "\n") {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

// wordWrap wraps every line of text at width.
func wordWrap(text string, width int) string {
	var out []string
	for _, paragraph := range strings.Split(text, "\n") {
		words := strings.Fields(paragraph)
		if len(words) == 0 {
			continue
		}
		line := words[0]
		for _, w := range words[1:] {
			if len(line)+1+len(w) <= width {
				line += " " + w
			} else {
				out = append(out, line)
				line = w
			}
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}
