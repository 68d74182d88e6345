// Package vectorstore persists embedded chunks in Qdrant and runs the
// similarity queries retrieval is built on.
package vectorstore

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/dev1505/docqa/internal/chunking"
	"github.com/dev1505/docqa/internal/config"
	"github.com/dev1505/docqa/internal/rerank"
)

type Store struct {
	client     *qdrant.Client
	collection string
}

// New connects to Qdrant and makes sure the collection exists with the
// expected vector geometry and a keyword index on filename for filtered
// search.
func New(ctx context.Context, cfg config.QdrantConfig) (*Store, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	s := &Store{client: client, collection: cfg.Collection}

	if err := s.ensureCollection(ctx, cfg.VectorSize); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ensure collection %s: %w", cfg.Collection, err)
	}

	return s, nil
}

func (s *Store) ensureCollection(ctx context.Context, vectorSize uint64) error {
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return err
	}
	if exists {
		log.Printf("qdrant collection %q already exists", s.collection)
		return nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     vectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
		HnswConfig: &qdrant.HnswConfigDiff{
			M:           qdrant.PtrOf(uint64(16)),
			EfConstruct: qdrant.PtrOf(uint64(100)),
		},
		OptimizersConfig: &qdrant.OptimizersConfigDiff{
			DefaultSegmentNumber: qdrant.PtrOf(uint64(2)),
		},
	})
	if err != nil {
		return err
	}

	_, err = s.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
		CollectionName: s.collection,
		FieldName:      "filename",
		FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create filename index: %w", err)
	}

	log.Printf("created qdrant collection %q (size %d, cosine)", s.collection, vectorSize)
	return nil
}

// StoreEmbeddings upserts one point per embedded chunk in a single batch.
func (s *Store) StoreEmbeddings(ctx context.Context, filename string, chunks []chunking.EmbeddedChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	points := make([]*qdrant.PointStruct, 0, len(chunks))
	for _, chunk := range chunks {
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewID(uuid.New().String()),
			Vectors: qdrant.NewVectors(chunk.Vector...),
			Payload: chunkPayload(filename, chunk),
		})
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Points:         points,
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		return fmt.Errorf("failed to upsert %d points: %w", len(points), err)
	}

	log.Printf("stored %d embedded chunks for %q", len(points), filename)
	return nil
}

// Search embeds nothing itself; it runs a similarity query for an already
// embedded vector, optionally filtered to one filename.
func (s *Store) Search(ctx context.Context, vector []float32, topK uint64, filename string) ([]rerank.Hit, error) {
	query := &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(topK),
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if filename != "" {
		query.Filter = &qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatch("filename", filename),
			},
		}
	}

	points, err := s.client.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("qdrant query failed: %w", err)
	}

	hits := make([]rerank.Hit, 0, len(points))
	for _, point := range points {
		hits = append(hits, hitFromPoint(point))
	}
	return hits, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

func chunkPayload(filename string, chunk chunking.EmbeddedChunk) map[string]*qdrant.Value {
	meta := chunk.Chunk.Metadata

	sectionPath := make([]interface{}, len(meta.SectionPath))
	for i, section := range meta.SectionPath {
		sectionPath[i] = section
	}

	return qdrant.NewValueMap(map[string]interface{}{
		"filename":     filename,
		"document_id":  meta.DocumentID,
		"page_start":   meta.PageStart,
		"page_end":     meta.PageEnd,
		"section_path": sectionPath,
		"chunk_index":  meta.ChunkIndex,
		"uploaded_at":  meta.UploadedAt.Format(time.RFC3339),
		"text":         chunk.Chunk.Text,
	})
}

func hitFromPoint(point *qdrant.ScoredPoint) rerank.Hit {
	payload := point.GetPayload()
	return rerank.Hit{
		Score:       float64(point.GetScore()),
		Text:        stringField(payload, "text"),
		DocumentID:  stringField(payload, "document_id"),
		Filename:    stringField(payload, "filename"),
		PageStart:   intField(payload, "page_start"),
		PageEnd:     intField(payload, "page_end"),
		SectionPath: stringsField(payload, "section_path"),
		ChunkIndex:  intField(payload, "chunk_index"),
		UploadedAt:  stringField(payload, "uploaded_at"),
	}
}

func stringField(payload map[string]*qdrant.Value, key string) string {
	if v, ok := payload[key]; ok {
		return v.GetStringValue()
	}
	return ""
}

func intField(payload map[string]*qdrant.Value, key string) int {
	if v, ok := payload[key]; ok {
		return int(v.GetIntegerValue())
	}
	return 0
}

func stringsField(payload map[string]*qdrant.Value, key string) []string {
	v, ok := payload[key]
	if !ok {
		return nil
	}
	list := v.GetListValue()
	if list == nil {
		return nil
	}
	values := list.GetValues()
	out := make([]string, 0, len(values))
	for _, value := range values {
		out = append(out, value.GetStringValue())
	}
	return out
}
