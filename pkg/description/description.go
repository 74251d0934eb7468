// Package description provides section-based description manipulation.
// Sections are identified by header prefixes (emoji + text, e.g.
// "🎵 Tracklist:"), which lets a correlation re-run update its own section
// instead of blindly appending a second copy.
package description

import (
	"strings"
	"unicode"
)

// isEmojiOrSpecialStart checks if a string starts with an emoji or special
// character. Used to detect section boundaries.
func isEmojiOrSpecialStart(s string) bool {
	r := []rune(s)
	if len(r) == 0 {
		return false
	}
	first := r[0]
	return first > 127 ||
		unicode.IsSymbol(first) ||
		unicode.In(first, unicode.So)
}

// FindSection locates a section by its header prefix in a description.
// Returns start index, end index (exclusive), and whether found.
// A section ends at a blank line followed by an emoji/symbol start, or at
// the end of the string.
func FindSection(description, headerPrefix string) (start, end int, found bool) {
	if description == "" || headerPrefix == "" {
		return 0, 0, false
	}

	start = strings.Index(description, headerPrefix)
	if start == -1 {
		return 0, 0, false
	}

	searchFrom := start + len(headerPrefix)
	remaining := description[searchFrom:]

	lines := strings.Split(remaining, "\n")
	for i, line := range lines {
		// A blank line followed by an emoji start is a section boundary.
		if strings.TrimSpace(line) == "" && i+1 < len(lines) {
			nextLine := lines[i+1]
			if isEmojiOrSpecialStart(strings.TrimSpace(nextLine)) {
				end = start + len(headerPrefix) + strings.Index(remaining, "\n"+nextLine) - 1
				for end > start && (description[end-1] == '\n' || description[end-1] == ' ') {
					end--
				}
				return start, end, true
			}
		}
	}

	// No boundary found - section extends to end of string.
	end = len(description)
	for end > start && (description[end-1] == '\n' || description[end-1] == ' ') {
		end--
	}
	return start, end, true
}

// HasSection checks if a description contains a section with the given header.
func HasSection(description, headerPrefix string) bool {
	_, _, found := FindSection(description, headerPrefix)
	return found
}

// ReplaceSection replaces a section (from header to next section or EOF)
// with new content. If the section doesn't exist, the new content is
// appended after a blank line.
func ReplaceSection(description, headerPrefix, newContent string) string {
	start, end, found := FindSection(description, headerPrefix)
	if !found {
		if description != "" {
			return description + "\n\n" + newContent
		}
		return newContent
	}

	before := strings.TrimRight(description[:start], "\n ")
	after := strings.TrimLeft(description[end:], "\n ")

	var result strings.Builder
	if before != "" {
		result.WriteString(before)
		result.WriteString("\n\n")
	}
	result.WriteString(newContent)
	if after != "" {
		result.WriteString("\n\n")
		result.WriteString(after)
	}

	return result.String()
}
