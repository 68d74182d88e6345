// Package rerank re-orders raw similarity-ranked retrieval hits using a
// weighted blend of similarity, recency, structural importance, and
// neighbor adjacency.
package rerank

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// ErrInvalidTimestamp is returned when a hit carries an uploaded_at value
// that cannot be parsed; the whole re-rank fails rather than silently
// defaulting.
var ErrInvalidTimestamp = errors.New("invalid uploaded_at timestamp")

// Blend weights. Fixed constants summing to 1.0; similarity dominates,
// recency rewards freshness, hierarchy boosts canonically important
// sections, adjacency rewards chunks next to already-strong hits.
const (
	weightSimilarity = 0.55
	weightRecency    = 0.20
	weightHierarchy  = 0.15
	weightAdjacency  = 0.10
)

// topRelevant is how many hits, ranked by raw similarity, define the
// relevant set used for adjacency bonuses.
const topRelevant = 5

var importantSections = map[string]struct{}{
	"definition":   {},
	"definitions":  {},
	"overview":     {},
	"introduction": {},
}

// Hit is a denormalized chunk projection plus its raw similarity score,
// as returned by the vector store for one query.
type Hit struct {
	Score       float64  `json:"score"`
	Text        string   `json:"text"`
	DocumentID  string   `json:"document_id"`
	Filename    string   `json:"filename"`
	PageStart   int      `json:"page_start"`
	PageEnd     int      `json:"page_end"`
	SectionPath []string `json:"section_path"`
	ChunkIndex  int      `json:"chunk_index"`
	UploadedAt  string   `json:"uploaded_at"`
}

// RerankedHit decorates a Hit with its composite score. The output of
// Rerank is always a permutation of its input.
type RerankedHit struct {
	Hit
	FinalScore float64 `json:"final_score"`
}

// Rerank scores every hit and returns the hits stable-sorted descending by
// final score. The reference time defaults to the current UTC time when
// now is the zero value. Given identical inputs and reference time the
// result is deterministic.
func Rerank(hits []Hit, now time.Time) ([]RerankedHit, error) {
	if now.IsZero() {
		now = time.Now().UTC()
	}

	relevant := relevantSet(hits)

	reranked := make([]RerankedHit, 0, len(hits))
	for _, hit := range hits {
		recency, err := recencyScore(hit.UploadedAt, now)
		if err != nil {
			return nil, err
		}

		score := weightSimilarity*hit.Score +
			weightRecency*recency +
			weightHierarchy*hierarchyScore(hit.SectionPath) +
			weightAdjacency*adjacencyScore(hit.ChunkIndex, relevant)

		reranked = append(reranked, RerankedHit{Hit: hit, FinalScore: score})
	}

	sort.SliceStable(reranked, func(i, j int) bool {
		return reranked[i].FinalScore > reranked[j].FinalScore
	})

	return reranked, nil
}

// relevantSet collects the chunk indices of the top hits by raw similarity.
func relevantSet(hits []Hit) map[int]struct{} {
	top := make([]Hit, len(hits))
	copy(top, hits)
	sort.SliceStable(top, func(i, j int) bool {
		return top[i].Score > top[j].Score
	})
	if len(top) > topRelevant {
		top = top[:topRelevant]
	}

	set := make(map[int]struct{}, len(top))
	for _, hit := range top {
		set[hit.ChunkIndex] = struct{}{}
	}
	return set
}

// recencyScore is 1/(1+age_seconds): approaches 1 for fresh uploads and 0
// for very old ones.
func recencyScore(uploadedAt string, now time.Time) (float64, error) {
	ts, err := time.Parse(time.RFC3339, uploadedAt)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTimestamp, uploadedAt)
	}
	age := now.Sub(ts).Seconds()
	return 1.0 / (1.0 + age), nil
}

func hierarchyScore(sectionPath []string) float64 {
	for _, section := range sectionPath {
		if _, ok := importantSections[strings.ToLower(section)]; ok {
			return 1.0
		}
	}
	return 0.0
}

// adjacencyScore is binary: a hit with one qualifying neighbor earns the
// same bonus as one with two.
func adjacencyScore(chunkIndex int, relevant map[int]struct{}) float64 {
	if _, ok := relevant[chunkIndex-1]; ok {
		return 0.5
	}
	if _, ok := relevant[chunkIndex+1]; ok {
		return 0.5
	}
	return 0.0
}
