package chunking

import (
	"errors"
	"time"
)

// ErrInvalidConfiguration is returned when chunker parameters are rejected
// before any document work starts.
var ErrInvalidConfiguration = errors.New("invalid chunking configuration")

// StructuralUnit is a paragraph- or header-sized span of one page's text.
// Units never span pages; Section is the enclosing heading, empty when the
// unit appears before any header.
type StructuralUnit struct {
	Text    string
	Page    int
	Section string
}

type ChunkMetadata struct {
	DocumentID  string    `json:"document_id"`
	PageStart   int       `json:"page_start"`
	PageEnd     int       `json:"page_end"`
	SectionPath []string  `json:"section_path"`
	ChunkIndex  int       `json:"chunk_index"`
	UploadedAt  time.Time `json:"uploaded_at"`
}

// Chunk is the atomic unit retrieved at query time. ChunkIndex values
// assign a total order matching the order of appearance in the source
// document: 0..N-1 with no gaps within one chunking run.
type Chunk struct {
	Text     string        `json:"text"`
	Metadata ChunkMetadata `json:"metadata"`
}

type EmbeddedChunk struct {
	Chunk  Chunk     `json:"chunk"`
	Vector []float32 `json:"vector"`
}

// Chunker turns structural units into an ordered chunk sequence. Zero units
// or fully blank input yields zero chunks and no error.
type Chunker interface {
	Chunk(units []StructuralUnit, documentID string, now time.Time) ([]Chunk, error)
}
