package chunking

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

// SemanticMode selects how a structural unit is split into parts before
// accumulation.
type SemanticMode string

const (
	ModeParagraph SemanticMode = "paragraph"
	ModeSentence  SemanticMode = "sentence"
	ModeSection   SemanticMode = "section"
)

// DefaultSemanticMaxChunkSize is the default character budget per chunk.
const DefaultSemanticMaxChunkSize = 300

var sentenceBoundaryRegex = regexp.MustCompile(`[.!?]\s+[A-Z]`)

// Semantic accumulates structural units into chunks bounded by a character
// budget, tracking the enclosing section and the page range each chunk
// touches. Sections do not nest: a unit carrying a section resets the path
// to that single heading.
type Semantic struct {
	maxChunkSize int
	mode         SemanticMode
}

func NewSemantic(maxChunkSize int, mode SemanticMode) (*Semantic, error) {
	if maxChunkSize <= 0 {
		return nil, fmt.Errorf("%w: max chunk size must be positive, got %d", ErrInvalidConfiguration, maxChunkSize)
	}
	switch mode {
	case "":
		mode = ModeParagraph
	case ModeParagraph, ModeSentence, ModeSection:
	default:
		return nil, fmt.Errorf("%w: unknown semantic mode %q", ErrInvalidConfiguration, mode)
	}
	return &Semantic{maxChunkSize: maxChunkSize, mode: mode}, nil
}

func (s *Semantic) Chunk(units []StructuralUnit, documentID string, now time.Time) ([]Chunk, error) {
	var chunks []Chunk
	var acc string
	var pages []int
	sectionPath := []string{}
	index := 0

	flush := func() {
		if acc == "" {
			return
		}
		chunks = append(chunks, Chunk{
			Text: acc,
			Metadata: ChunkMetadata{
				DocumentID:  documentID,
				PageStart:   minPage(pages),
				PageEnd:     maxPage(pages),
				SectionPath: append([]string(nil), sectionPath...),
				ChunkIndex:  index,
				UploadedAt:  now,
			},
		})
		index++
		acc = ""
		pages = nil
	}

	for _, unit := range units {
		if unit.Section != "" {
			sectionPath = []string{unit.Section}
		}

		for _, part := range s.split(unit.Text) {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}

			if acc != "" && utf8.RuneCountInString(acc)+2+utf8.RuneCountInString(part) > s.maxChunkSize {
				flush()
			}
			if acc != "" {
				acc += "\n\n"
			}
			acc += part
			pages = append(pages, unit.Page)
		}
	}

	flush()
	return chunks, nil
}

// split divides unit text according to the mode. Sentence mode cuts after
// terminal punctuation followed by whitespace and a capital letter;
// paragraph and section modes keep the unit whole (the segmenter has
// already dissolved blank-line runs).
func (s *Semantic) split(text string) []string {
	if s.mode != ModeSentence {
		return []string{text}
	}
	locs := sentenceBoundaryRegex.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return []string{text}
	}
	parts := make([]string, 0, len(locs)+1)
	start := 0
	for _, loc := range locs {
		parts = append(parts, text[start:loc[0]+1])
		start = loc[1] - 1
	}
	parts = append(parts, text[start:])
	return parts
}

func minPage(pages []int) int {
	m := pages[0]
	for _, p := range pages[1:] {
		if p < m {
			m = p
		}
	}
	return m
}

func maxPage(pages []int) int {
	m := pages[0]
	for _, p := range pages[1:] {
		if p > m {
			m = p
		}
	}
	return m
}
