package utils

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

// WrapText wraps text at word boundaries to fit within maxWidth.
// Returns a slice of lines.
func WrapText(text string, maxWidth int) []string {
	text = strings.TrimSpace(text)
	words := strings.Fields(text)

	var lines []string
	var currentLine strings.Builder
	currentWidth := 0

	for _, word := range words {
		wordWidth := runewidth.StringWidth(word)

		if currentWidth == 0 {
			currentLine.WriteString(word)
			currentWidth = wordWidth
		} else if currentWidth+1+wordWidth <= maxWidth {
			currentLine.WriteString(" ")
			currentLine.WriteString(word)
			currentWidth += 1 + wordWidth
		} else {
			lines = append(lines, currentLine.String())
			currentLine.Reset()
			currentLine.WriteString(word)
			currentWidth = wordWidth
		}
	}

	if currentLine.Len() > 0 {
		lines = append(lines, currentLine.String())
	}

	return lines
}

// TruncateWithWidth truncates text to fit within maxWidth, accounting
// for Unicode character widths. Adds "..." when truncated.
func TruncateWithWidth(text string, maxWidth int) string {
	if runewidth.StringWidth(text) <= maxWidth {
		return text
	}

	width := 0
	for i, r := range text {
		width += runewidth.RuneWidth(r)
		if width > maxWidth-3 {
			return text[:i] + "..."
		}
	}
	return text
}
