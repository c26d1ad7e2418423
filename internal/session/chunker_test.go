// file: internal/session/chunker_test.go
package session

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitChunks_RespectsSizeBudget(t *testing.T) {
	text := strings.Repeat("abcdefgh", 10)
	chunks := splitChunks(text, 16)

	require.Len(t, chunks, 5, "80 bytes at a 16-byte budget should yield 5 chunks.")
	for i, chunk := range chunks {
		assert.LessOrEqual(t, len(chunk), 16, "Chunk %d exceeds the size budget.", i)
	}
	assert.Equal(t, text, strings.Join(chunks, ""), "Chunks should reassemble into the input.")
}

func TestSplitChunks_NeverSplitsRunes(t *testing.T) {
	// Multi-byte runes placed so a naive byte split would land mid-rune.
	text := "héllo wörld — ünïcode ﬂows"
	for size := 1; size <= 8; size++ {
		for i, chunk := range splitChunks(text, size) {
			assert.True(t, utf8.ValidString(chunk),
				"Chunk %d at size %d should be valid UTF-8.", i, size)
		}
	}
	assert.Equal(t, text, strings.Join(splitChunks(text, 4), ""),
		"Reassembly should be lossless.")
}

func TestSplitChunks_EmptyText_YieldsNoChunks(t *testing.T) {
	assert.Nil(t, splitChunks("", 16), "Empty text should stream zero chunks.")
}

func TestSplitChunks_ZeroSize_UsesDefault(t *testing.T) {
	text := strings.Repeat("x", DefaultChunkSize+1)
	chunks := splitChunks(text, 0)
	require.Len(t, chunks, 2, "Text one byte over the default budget should split in two.")
	assert.Len(t, chunks[0], DefaultChunkSize, "First chunk should fill the default budget.")
}

func TestSplitChunks_OversizedRune_EmittedWhole(t *testing.T) {
	chunks := splitChunks("€", 1) // 3-byte rune against a 1-byte budget.
	require.Len(t, chunks, 1, "A rune wider than the budget still travels in one chunk.")
	assert.Equal(t, "€", chunks[0], "The rune should survive intact.")
}
