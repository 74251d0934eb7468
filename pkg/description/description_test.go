package description

import (
	"testing"
)

func TestHasSection(t *testing.T) {
	tests := []struct {
		name         string
		description  string
		headerPrefix string
		expected     bool
	}{
		{
			name:         "Section found at start",
			description:  "🎵 Tracklist:\nArtist - Song",
			headerPrefix: "🎵 Tracklist:",
			expected:     true,
		},
		{
			name:         "Section found after existing content",
			description:  "Morning run\n\n🎵 Tracklist:\nArtist - Song",
			headerPrefix: "🎵 Tracklist:",
			expected:     true,
		},
		{
			name:         "Section not found",
			description:  "Some description without the section",
			headerPrefix: "🎵 Tracklist:",
			expected:     false,
		},
		{
			name:         "Empty description",
			description:  "",
			headerPrefix: "🎵 Tracklist:",
			expected:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := HasSection(tt.description, tt.headerPrefix)
			if result != tt.expected {
				t.Errorf("HasSection() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestReplaceSection(t *testing.T) {
	tests := []struct {
		name         string
		description  string
		headerPrefix string
		newContent   string
		expected     string
	}{
		{
			name:         "Append to empty description",
			description:  "",
			headerPrefix: "🎵 Tracklist:",
			newContent:   "🎵 Tracklist:\nX - Song1",
			expected:     "🎵 Tracklist:\nX - Song1",
		},
		{
			name:         "Append when section absent",
			description:  "Morning run",
			headerPrefix: "🎵 Tracklist:",
			newContent:   "🎵 Tracklist:\nX - Song1",
			expected:     "Morning run\n\n🎵 Tracklist:\nX - Song1",
		},
		{
			name:         "Replace section occupying whole description",
			description:  "🎵 Tracklist:\nOld - Track",
			headerPrefix: "🎵 Tracklist:",
			newContent:   "🎵 Tracklist:\nNew - Track",
			expected:     "🎵 Tracklist:\nNew - Track",
		},
		{
			name:         "Replace section keeps preceding content",
			description:  "Morning run\n\n🎵 Tracklist:\nOld - Track",
			headerPrefix: "🎵 Tracklist:",
			newContent:   "🎵 Tracklist:\nNew - Track",
			expected:     "Morning run\n\n🎵 Tracklist:\nNew - Track",
		},
		{
			name:         "Replace section bounded by another emoji section",
			description:  "🎵 Tracklist:\nOld - Track\n\n❤️ Heart Rate:\n140 avg",
			headerPrefix: "🎵 Tracklist:",
			newContent:   "🎵 Tracklist:\nNew - Track",
			expected:     "🎵 Tracklist:\nNew - Track\n\n❤️ Heart Rate:\n140 avg",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ReplaceSection(tt.description, tt.headerPrefix, tt.newContent)
			if result != tt.expected {
				t.Errorf("ReplaceSection() = %q, want %q", result, tt.expected)
			}
		})
	}
}

func TestFindSectionExtendsToEnd(t *testing.T) {
	desc := "Run notes\n\n🎵 Tracklist:\nA - B\nC - D"
	start, end, found := FindSection(desc, "🎵 Tracklist:")
	if !found {
		t.Fatal("expected section to be found")
	}
	if got := desc[start:end]; got != "🎵 Tracklist:\nA - B\nC - D" {
		t.Errorf("section = %q", got)
	}
}
