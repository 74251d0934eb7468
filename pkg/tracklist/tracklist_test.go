package tracklist

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/activitrax/server/pkg/providers/spotify"
)

func TestFormatBlock(t *testing.T) {
	tracks := []spotify.Track{
		{Name: "Song1", Artist: "X", PlayedAt: time.Date(2023, 1, 1, 10, 10, 0, 0, time.UTC)},
		{Name: "Song2", Artist: "Y", PlayedAt: time.Date(2023, 1, 1, 10, 20, 0, 0, time.UTC)},
	}

	block := FormatBlock(tracks)

	assert.True(t, strings.HasPrefix(block, SectionHeader))
	assert.Contains(t, block, "X - Song1\nY - Song2")
	assert.Contains(t, block, "provided by activitrax.io")
}

func TestFormatBlockSingleLinePerTrack(t *testing.T) {
	block := FormatBlock([]spotify.Track{{Name: "Song1", Artist: "X"}})

	if got := strings.Count(block, "X - Song1"); got != 1 {
		t.Errorf("expected exactly one formatted line, found %d", got)
	}
}

func TestMergeAppendsToExistingDescription(t *testing.T) {
	merged := Merge("A", "B")
	assert.Equal(t, "A\n\nB", merged)
}

func TestMergeEmptyDescription(t *testing.T) {
	merged := Merge("", "B")
	assert.Equal(t, "B", merged)
}

func TestMergeReplacesExistingBlock(t *testing.T) {
	first := FormatBlock([]spotify.Track{{Name: "Song1", Artist: "X"}})
	second := FormatBlock([]spotify.Track{{Name: "Song2", Artist: "Y"}})

	once := Merge("Morning run", first)
	twice := Merge(once, second)

	assert.Equal(t, 1, strings.Count(twice, SectionHeader), "duplicate runs must not double-append")
	assert.Contains(t, twice, "Y - Song2")
	assert.NotContains(t, twice, "X - Song1")
	assert.True(t, strings.HasPrefix(twice, "Morning run"))
}

func TestHasBlock(t *testing.T) {
	block := FormatBlock([]spotify.Track{{Name: "Song1", Artist: "X"}})
	assert.True(t, HasBlock(Merge("notes", block)))
	assert.False(t, HasBlock("notes"))
}
