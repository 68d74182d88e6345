package vectorstore

import (
	"testing"
	"time"

	"github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dev1505/docqa/internal/chunking"
)

func TestChunkPayloadRoundtrip(t *testing.T) {
	uploadedAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	embedded := chunking.EmbeddedChunk{
		Chunk: chunking.Chunk{
			Text: "Widgets are small devices.",
			Metadata: chunking.ChunkMetadata{
				DocumentID:  "doc-1",
				PageStart:   2,
				PageEnd:     3,
				SectionPath: []string{"# Overview"},
				ChunkIndex:  7,
				UploadedAt:  uploadedAt,
			},
		},
		Vector: []float32{0.1, 0.2},
	}

	payload := chunkPayload("report.pdf", embedded)
	hit := hitFromPoint(&qdrant.ScoredPoint{Score: 0.42, Payload: payload})

	assert.InDelta(t, 0.42, hit.Score, 1e-6)
	assert.Equal(t, "Widgets are small devices.", hit.Text)
	assert.Equal(t, "doc-1", hit.DocumentID)
	assert.Equal(t, "report.pdf", hit.Filename)
	assert.Equal(t, 2, hit.PageStart)
	assert.Equal(t, 3, hit.PageEnd)
	assert.Equal(t, []string{"# Overview"}, hit.SectionPath)
	assert.Equal(t, 7, hit.ChunkIndex)

	parsed, err := time.Parse(time.RFC3339, hit.UploadedAt)
	require.NoError(t, err)
	assert.True(t, uploadedAt.Equal(parsed))
}

func TestHitFromPointMissingFields(t *testing.T) {
	hit := hitFromPoint(&qdrant.ScoredPoint{Score: 0.1, Payload: map[string]*qdrant.Value{}})

	assert.Empty(t, hit.Text)
	assert.Zero(t, hit.PageStart)
	assert.Nil(t, hit.SectionPath)
}

func TestEmptySectionPathSurvives(t *testing.T) {
	embedded := chunking.EmbeddedChunk{
		Chunk: chunking.Chunk{
			Text: "window chunk",
			Metadata: chunking.ChunkMetadata{
				DocumentID:  "doc-2",
				PageStart:   1,
				PageEnd:     1,
				SectionPath: []string{},
				UploadedAt:  time.Now().UTC(),
			},
		},
	}

	payload := chunkPayload("a.txt", embedded)
	hit := hitFromPoint(&qdrant.ScoredPoint{Payload: payload})
	assert.Empty(t, hit.SectionPath)
}
