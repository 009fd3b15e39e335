package fallback

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseGenerationLine(t *testing.T) {
	gen, ok, err := parseGenerationLine("  42   2025-10-03 09:15:30   (current)")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 42, gen.ID)
	assert.True(t, gen.Current)
	assert.Equal(t, time.Date(2025, 10, 3, 9, 15, 30, 0, time.Local), gen.Timestamp)
}

func TestParseGenerationLineNotCurrent(t *testing.T) {
	gen, ok, err := parseGenerationLine("   7   2025-01-01 00:00:00")
	require.NoError(t, err)
	require.True(t, ok)
	assert.False(t, gen.Current)
	assert.Equal(t, 7, gen.ID)
}

func TestParseGenerationLineSkipsNoise(t *testing.T) {
	for _, line := range []string{
		"",
		"warning: profile is owned by root",
		"generation  notanumber  2025-01-01",
		"  7   2025-13-45",
	} {
		_, ok, err := parseGenerationLine(line)
		require.NoError(t, err, "line %q", line)
		assert.False(t, ok, "line %q should not match", line)
	}
}

func TestParseGenerationList(t *testing.T) {
	gens, err := parseGenerationList(sampleListing)
	require.NoError(t, err)
	require.Len(t, gens, 3)
	assert.Equal(t, []int{5, 6, 7}, []int{gens[0].ID, gens[1].ID, gens[2].ID})
	assert.True(t, gens[2].Current)
	assert.False(t, gens[0].Current)
}

func TestParseGenerationListEmpty(t *testing.T) {
	_, err := parseGenerationList("no generations here\n")
	require.Error(t, err)
}
