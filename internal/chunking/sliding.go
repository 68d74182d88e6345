package chunking

import (
	"fmt"
	"strings"
	"time"
)

// DefaultWindowSize is the default sliding window width in characters.
const DefaultWindowSize = 100

// DefaultWindowOverlap is the default overlap between consecutive windows.
const DefaultWindowOverlap = 80

// SlidingWindow slices the document's flattened text into fixed-size,
// overlapping character windows. Section tagging is ignored in this mode.
type SlidingWindow struct {
	chunkSize int
	overlap   int
}

func NewSlidingWindow(chunkSize, overlap int) (*SlidingWindow, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", ErrInvalidConfiguration, chunkSize)
	}
	if overlap < 0 {
		return nil, fmt.Errorf("%w: overlap must be non-negative, got %d", ErrInvalidConfiguration, overlap)
	}
	if overlap >= chunkSize {
		return nil, fmt.Errorf("%w: overlap %d must be smaller than chunk size %d", ErrInvalidConfiguration, overlap, chunkSize)
	}
	return &SlidingWindow{chunkSize: chunkSize, overlap: overlap}, nil
}

func (s *SlidingWindow) Chunk(units []StructuralUnit, documentID string, now time.Time) ([]Chunk, error) {
	if len(units) == 0 {
		return nil, nil
	}

	texts := make([]string, len(units))
	for i, u := range units {
		texts[i] = u.Text
	}
	flat := []rune(strings.Join(texts, "\n"))

	step := s.chunkSize - s.overlap
	var chunks []Chunk

	for start, index := 0, 0; start < len(flat); start, index = start+step, index+1 {
		end := start + s.chunkSize
		if end > len(flat) {
			end = len(flat)
		}
		text := string(flat[start:end])
		pageStart, pageEnd := windowPages(units, text)

		chunks = append(chunks, Chunk{
			Text: text,
			Metadata: ChunkMetadata{
				DocumentID:  documentID,
				PageStart:   pageStart,
				PageEnd:     pageEnd,
				SectionPath: []string{},
				ChunkIndex:  index,
				UploadedAt:  now,
			},
		})
	}

	return chunks, nil
}

// windowPages attributes a page range to a window by substring matching
// against the original unit texts. Repeated text across pages can
// mis-attribute; that is accepted heuristic behavior, not an error.
func windowPages(units []StructuralUnit, text string) (int, int) {
	pageStart, pageEnd := 0, 0
	for _, u := range units {
		if !strings.Contains(text, u.Text) {
			continue
		}
		if pageStart == 0 || u.Page < pageStart {
			pageStart = u.Page
		}
		if u.Page > pageEnd {
			pageEnd = u.Page
		}
	}
	if pageStart == 0 {
		return 1, 1
	}
	return pageStart, pageEnd
}
