package chunking

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSlidingWindow(t *testing.T) {
	t.Run("rejects non-positive size", func(t *testing.T) {
		_, err := NewSlidingWindow(0, 0)
		assert.ErrorIs(t, err, ErrInvalidConfiguration)
	})

	t.Run("rejects negative overlap", func(t *testing.T) {
		_, err := NewSlidingWindow(10, -1)
		assert.ErrorIs(t, err, ErrInvalidConfiguration)
	})

	t.Run("rejects overlap equal to size", func(t *testing.T) {
		_, err := NewSlidingWindow(50, 50)
		assert.ErrorIs(t, err, ErrInvalidConfiguration)
	})

	t.Run("accepts zero overlap", func(t *testing.T) {
		_, err := NewSlidingWindow(10, 0)
		assert.NoError(t, err)
	})
}

func TestSlidingWindowChunk(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("window offsets advance by size minus overlap", func(t *testing.T) {
		// 25 characters, size 10, overlap 4: starts at 0, 6, 12, 18, 24.
		text := strings.Repeat("abcde", 5)
		chunker, err := NewSlidingWindow(10, 4)
		require.NoError(t, err)

		chunks, err := chunker.Chunk([]StructuralUnit{{Text: text, Page: 1}}, "doc-1", now)
		require.NoError(t, err)
		require.Len(t, chunks, 5)

		flat := []rune(text)
		for i, chunk := range chunks {
			start := i * 6
			end := start + 10
			if end > len(flat) {
				end = len(flat)
			}
			assert.Equal(t, string(flat[start:end]), chunk.Text)
			assert.Equal(t, i, chunk.Metadata.ChunkIndex)
		}
	})

	t.Run("every character is covered", func(t *testing.T) {
		text := "The quick brown fox jumps over the lazy dog near the river bank."
		chunker, err := NewSlidingWindow(20, 5)
		require.NoError(t, err)

		chunks, err := chunker.Chunk([]StructuralUnit{{Text: text, Page: 1}}, "doc-1", now)
		require.NoError(t, err)
		require.NotEmpty(t, chunks)

		var rebuilt strings.Builder
		prevEnd := 0
		for i, chunk := range chunks {
			start := i * 15
			runes := []rune(chunk.Text)
			require.GreaterOrEqual(t, prevEnd, start, "window %d leaves a gap", i)
			rebuilt.WriteString(string(runes[prevEnd-start:]))
			prevEnd = start + len(runes)
		}
		assert.Equal(t, text, rebuilt.String())
	})

	t.Run("units joined with newline before slicing", func(t *testing.T) {
		chunker, err := NewSlidingWindow(100, 0)
		require.NoError(t, err)

		chunks, err := chunker.Chunk([]StructuralUnit{
			{Text: "alpha", Page: 1},
			{Text: "beta", Page: 2},
		}, "doc-1", now)
		require.NoError(t, err)
		require.Len(t, chunks, 1)
		assert.Equal(t, "alpha\nbeta", chunks[0].Text)
		assert.Equal(t, 1, chunks[0].Metadata.PageStart)
		assert.Equal(t, 2, chunks[0].Metadata.PageEnd)
	})

	t.Run("section path always empty", func(t *testing.T) {
		chunker, err := NewSlidingWindow(10, 0)
		require.NoError(t, err)

		chunks, err := chunker.Chunk([]StructuralUnit{
			{Text: "tagged text here", Page: 1, Section: "# Overview"},
		}, "doc-1", now)
		require.NoError(t, err)
		for _, chunk := range chunks {
			assert.NotNil(t, chunk.Metadata.SectionPath)
			assert.Empty(t, chunk.Metadata.SectionPath)
		}
	})

	t.Run("metadata carries document id and timestamp", func(t *testing.T) {
		chunker, err := NewSlidingWindow(50, 10)
		require.NoError(t, err)

		chunks, err := chunker.Chunk([]StructuralUnit{{Text: "short", Page: 3}}, "doc-42", now)
		require.NoError(t, err)
		require.Len(t, chunks, 1)
		assert.Equal(t, "doc-42", chunks[0].Metadata.DocumentID)
		assert.Equal(t, now, chunks[0].Metadata.UploadedAt)
		assert.Equal(t, 3, chunks[0].Metadata.PageStart)
	})

	t.Run("empty units produce no chunks", func(t *testing.T) {
		chunker, err := NewSlidingWindow(10, 4)
		require.NoError(t, err)

		chunks, err := chunker.Chunk(nil, "doc-1", now)
		require.NoError(t, err)
		assert.Empty(t, chunks)
	})

	t.Run("multibyte text sliced on runes", func(t *testing.T) {
		text := strings.Repeat("héllo", 4)
		chunker, err := NewSlidingWindow(5, 0)
		require.NoError(t, err)

		chunks, err := chunker.Chunk([]StructuralUnit{{Text: text, Page: 1}}, "doc-1", now)
		require.NoError(t, err)
		require.Len(t, chunks, 4)
		for _, chunk := range chunks {
			assert.Equal(t, "héllo", chunk.Text)
		}
	})
}
