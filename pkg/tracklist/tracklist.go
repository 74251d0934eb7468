// Package tracklist formats the listening-history block written into an
// activity description.
package tracklist

import (
	"strings"

	"github.com/activitrax/server/pkg/description"
	"github.com/activitrax/server/pkg/providers/spotify"
)

// SectionHeader marks the start of a generated tracklist block. It doubles
// as the idempotency sentinel: a description already containing it gets its
// block replaced rather than a second copy appended.
const SectionHeader = "🎵 Tracklist:"

const (
	divider = "--------------------------"
	footer  = "provided by activitrax.io"
)

// FormatBlock renders the tracklist block: the section header, one
// "<artist> - <name>" line per track in the order given, and the footer
// attribution. Callers pass tracks in chronological order.
func FormatBlock(tracks []spotify.Track) string {
	var b strings.Builder
	b.WriteString(SectionHeader)
	b.WriteString("\n")
	b.WriteString(divider)
	b.WriteString("\n")
	for _, track := range tracks {
		b.WriteString(track.Artist)
		b.WriteString(" - ")
		b.WriteString(track.Name)
		b.WriteString("\n")
	}
	b.WriteString(divider)
	b.WriteString("\n")
	b.WriteString(footer)
	return b.String()
}

// Merge combines an existing description with a generated block. An empty
// description yields the block alone; existing content "A" and block "B"
// yield "A\n\nB"; an existing generated section is replaced in place.
func Merge(existing, block string) string {
	return description.ReplaceSection(existing, SectionHeader, block)
}

// HasBlock reports whether a description already carries a generated
// tracklist section.
func HasBlock(desc string) bool {
	return description.HasSection(desc, SectionHeader)
}
