package utils

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTruncateChars(t *testing.T) {
	assert.Equal(t, "short", TruncateChars("short", 100))
	assert.Equal(t, "", TruncateChars("", 10))

	long := "the quick brown fox jumps over the lazy dog"
	cut := TruncateChars(long, 20)
	assert.LessOrEqual(t, len(cut), 20)
	// Breaks at a word boundary, not mid-word
	assert.False(t, strings.HasSuffix(cut, "f"))

	// Zero or negative budget leaves the string alone
	assert.Equal(t, long, TruncateChars(long, 0))
}

func TestTruncateCharsRuneBoundary(t *testing.T) {
	// Two-byte runes with no whitespace: an odd byte budget lands inside a
	// rune and must back off to the boundary.
	long := strings.Repeat("é", 30)
	cut := TruncateChars(long, 25)
	assert.True(t, utf8.ValidString(cut), "cut must not split a rune")
	assert.LessOrEqual(t, len(cut), 25)
	assert.NotEmpty(t, cut)
}

func TestChunkText(t *testing.T) {
	assert.Nil(t, ChunkText("", 100))
	assert.Equal(t, []string{"hello"}, ChunkText("hello", 100))

	text := "First sentence here. Second sentence here. Third sentence here."
	chunks := ChunkText(text, 25)
	require.Greater(t, len(chunks), 1)
	for _, chunk := range chunks {
		assert.LessOrEqual(t, len(chunk), 25)
		assert.NotEmpty(t, chunk)
	}
	// No text is lost
	assert.Equal(t, strings.Join(strings.Fields(text), " "), strings.Join(strings.Fields(strings.Join(chunks, " ")), " "))
}

func TestChunkTextNoBoundary(t *testing.T) {
	chunks := ChunkText(strings.Repeat("a", 50), 20)
	require.Len(t, chunks, 3)
	assert.Equal(t, 20, len(chunks[0]))

	// Multi-byte runes without any break point still chunk on rune
	// boundaries.
	for _, chunk := range ChunkText(strings.Repeat("é", 30), 25) {
		assert.True(t, utf8.ValidString(chunk))
		assert.LessOrEqual(t, len(chunk), 25)
	}
}

func TestOutputFolderName(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	a := OutputFolderName("impact of remote work", "external", at)
	b := OutputFolderName("impact of remote work", "external", at)
	assert.Equal(t, a, b, "same inputs must map to the same folder")
	assert.Len(t, a, 16)

	c := OutputFolderName("impact of remote work", "external", at.Add(time.Second))
	assert.NotEqual(t, a, c, "repeated task at a later time must not collide")

	d := OutputFolderName("impact of remote work", "hybrid", at)
	assert.NotEqual(t, a, d)
}

func TestDedupStrings(t *testing.T) {
	in := []string{"a", "b", "a", "", "c", "b"}
	assert.Equal(t, []string{"a", "b", "c"}, DedupStrings(in))
	assert.Empty(t, DedupStrings(nil))
}

func TestNormalizeWhitespace(t *testing.T) {
	assert.Equal(t, "a b c", NormalizeWhitespace("  a\t b\n\nc "))
}
