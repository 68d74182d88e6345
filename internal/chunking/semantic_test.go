package chunking

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSemantic(t *testing.T) {
	t.Run("rejects non-positive budget", func(t *testing.T) {
		_, err := NewSemantic(0, ModeParagraph)
		assert.ErrorIs(t, err, ErrInvalidConfiguration)
	})

	t.Run("rejects unknown mode", func(t *testing.T) {
		_, err := NewSemantic(300, SemanticMode("word"))
		assert.ErrorIs(t, err, ErrInvalidConfiguration)
	})

	t.Run("empty mode defaults to paragraph", func(t *testing.T) {
		_, err := NewSemantic(300, "")
		assert.NoError(t, err)
	})
}

func TestSemanticChunk(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("accumulated chunks respect the budget", func(t *testing.T) {
		chunker, err := NewSemantic(50, ModeParagraph)
		require.NoError(t, err)

		units := []StructuralUnit{
			{Text: "first paragraph of text", Page: 1},
			{Text: "second paragraph of text", Page: 1},
			{Text: "third paragraph of text here", Page: 2},
		}
		chunks, err := chunker.Chunk(units, "doc-1", now)
		require.NoError(t, err)
		require.NotEmpty(t, chunks)

		for _, chunk := range chunks {
			assert.LessOrEqual(t, utf8.RuneCountInString(chunk.Text), 50)
		}
	})

	t.Run("parts joined with a blank line", func(t *testing.T) {
		chunker, err := NewSemantic(300, ModeParagraph)
		require.NoError(t, err)

		chunks, err := chunker.Chunk([]StructuralUnit{
			{Text: "alpha", Page: 1},
			{Text: "beta", Page: 1},
		}, "doc-1", now)
		require.NoError(t, err)
		require.Len(t, chunks, 1)
		assert.Equal(t, "alpha\n\nbeta", chunks[0].Text)
	})

	t.Run("oversized part becomes its own chunk", func(t *testing.T) {
		chunker, err := NewSemantic(20, ModeParagraph)
		require.NoError(t, err)

		big := strings.Repeat("x", 35)
		chunks, err := chunker.Chunk([]StructuralUnit{
			{Text: "small", Page: 1},
			{Text: big, Page: 1},
			{Text: "tail", Page: 1},
		}, "doc-1", now)
		require.NoError(t, err)
		require.Len(t, chunks, 3)
		assert.Equal(t, "small", chunks[0].Text)
		assert.Equal(t, big, chunks[1].Text)
		assert.Equal(t, "tail", chunks[2].Text)
	})

	t.Run("section path follows the most recent header", func(t *testing.T) {
		chunker, err := NewSemantic(10, ModeParagraph)
		require.NoError(t, err)

		chunks, err := chunker.Chunk([]StructuralUnit{
			{Text: "# Intro", Page: 1, Section: "# Intro"},
			{Text: "first body", Page: 1, Section: "# Intro"},
			{Text: "# Terms", Page: 2, Section: "# Terms"},
			{Text: "second body", Page: 2, Section: "# Terms"},
		}, "doc-1", now)
		require.NoError(t, err)
		require.Len(t, chunks, 4)
		assert.Equal(t, []string{"# Intro"}, chunks[0].Metadata.SectionPath)
		assert.Equal(t, []string{"# Intro"}, chunks[1].Metadata.SectionPath)
		assert.Equal(t, []string{"# Terms"}, chunks[2].Metadata.SectionPath)
		assert.Equal(t, []string{"# Terms"}, chunks[3].Metadata.SectionPath)
	})

	t.Run("sentence mode splits on terminal punctuation", func(t *testing.T) {
		chunker, err := NewSemantic(25, ModeSentence)
		require.NoError(t, err)

		chunks, err := chunker.Chunk([]StructuralUnit{
			{Text: "First sentence here. Second one follows! Third ends it?", Page: 1},
		}, "doc-1", now)
		require.NoError(t, err)
		require.Len(t, chunks, 3)
		assert.Equal(t, "First sentence here.", chunks[0].Text)
		assert.Equal(t, "Second one follows!", chunks[1].Text)
		assert.Equal(t, "Third ends it?", chunks[2].Text)
	})

	t.Run("sentence mode keeps abbreviations before lowercase together", func(t *testing.T) {
		chunker, err := NewSemantic(300, ModeSentence)
		require.NoError(t, err)

		chunks, err := chunker.Chunk([]StructuralUnit{
			{Text: "The value is approx. five units total.", Page: 1},
		}, "doc-1", now)
		require.NoError(t, err)
		require.Len(t, chunks, 1)
		assert.Equal(t, "The value is approx. five units total.", chunks[0].Text)
	})

	t.Run("page range spans contributing units", func(t *testing.T) {
		chunker, err := NewSemantic(300, ModeParagraph)
		require.NoError(t, err)

		chunks, err := chunker.Chunk([]StructuralUnit{
			{Text: "from page one", Page: 1},
			{Text: "from page three", Page: 3},
		}, "doc-1", now)
		require.NoError(t, err)
		require.Len(t, chunks, 1)
		assert.Equal(t, 1, chunks[0].Metadata.PageStart)
		assert.Equal(t, 3, chunks[0].Metadata.PageEnd)
	})

	t.Run("indices are sequential", func(t *testing.T) {
		chunker, err := NewSemantic(10, ModeParagraph)
		require.NoError(t, err)

		chunks, err := chunker.Chunk([]StructuralUnit{
			{Text: "one two three", Page: 1},
			{Text: "four five six", Page: 1},
			{Text: "seven eight", Page: 1},
		}, "doc-1", now)
		require.NoError(t, err)
		for i, chunk := range chunks {
			assert.Equal(t, i, chunk.Metadata.ChunkIndex)
		}
	})

	t.Run("empty input produces no chunks", func(t *testing.T) {
		chunker, err := NewSemantic(300, ModeParagraph)
		require.NoError(t, err)

		chunks, err := chunker.Chunk(nil, "doc-1", now)
		require.NoError(t, err)
		assert.Empty(t, chunks)
	})
}
