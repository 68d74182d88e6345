// Package service composes extraction, chunking, embedding, and the
// persistence collaborators into the ingest, search, and answer
// operations exposed over HTTP.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dev1505/docqa/internal/chunking"
	"github.com/dev1505/docqa/internal/config"
	"github.com/dev1505/docqa/internal/docstore"
	"github.com/dev1505/docqa/internal/rerank"
)

// Collaborator contracts. Each is normalized at the adapter boundary so
// the core never unwraps client-specific result shapes.
type (
	Embedder interface {
		Embed(ctx context.Context, text string) ([]float32, error)
	}

	Extractor interface {
		ExtractPages(ctx context.Context, data []byte, contentType string) ([]string, error)
	}

	VectorStore interface {
		StoreEmbeddings(ctx context.Context, filename string, chunks []chunking.EmbeddedChunk) error
		Search(ctx context.Context, vector []float32, topK uint64, filename string) ([]rerank.Hit, error)
	}

	DocumentStore interface {
		Insert(ctx context.Context, doc docstore.Document) error
		List(ctx context.Context) ([]docstore.Document, error)
	}

	ObjectStore interface {
		Upload(ctx context.Context, key string, data []byte, contentType string) error
	}

	Completer interface {
		Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	}
)

// ChunkingMethod names one of the two chunker strategies a caller can pick
// per upload.
type ChunkingMethod string

const (
	MethodSlidingWindow    ChunkingMethod = "SLIDING_WINDOW"
	MethodSemanticChunking ChunkingMethod = "SEMANTIC_CHUNKING"
)

func ParseChunkingMethod(s string) (ChunkingMethod, error) {
	switch ChunkingMethod(strings.ToUpper(strings.TrimSpace(s))) {
	case MethodSlidingWindow:
		return MethodSlidingWindow, nil
	case MethodSemanticChunking, "":
		return MethodSemanticChunking, nil
	default:
		return "", fmt.Errorf("%w: unknown chunking method %q", chunking.ErrInvalidConfiguration, s)
	}
}

// Upload is one file submitted for ingestion.
type Upload struct {
	Filename string
	MimeType string
	Data     []byte
	Method   ChunkingMethod
}

// IngestResult reports which persistence stages completed, so a partial
// failure (metadata row written, vectors not) is distinguishable from
// total success or total failure.
type IngestResult struct {
	DocumentID     string `json:"document_id"`
	Filename       string `json:"filename"`
	ChunkCount     int    `json:"chunk_count"`
	MetadataStored bool   `json:"metadata_stored"`
	ObjectStored   bool   `json:"object_stored"`
	VectorsStored  bool   `json:"vectors_stored"`
	Message        string `json:"message,omitempty"`
}

// AnswerResult is an LLM-composed answer together with the re-ranked
// citations it was grounded on.
type AnswerResult struct {
	Answer      string               `json:"answer"`
	Citations   []rerank.RerankedHit `json:"citations"`
	RespondedAt time.Time            `json:"responded_at"`
}

type Service struct {
	embedder  Embedder
	extractor Extractor
	vectors   VectorStore
	docs      DocumentStore
	objects   ObjectStore
	llm       Completer
	chunking  config.ChunkingConfig
	topK      int
	maxTopK   int
}

func New(embedder Embedder, extractor Extractor, vectors VectorStore, docs DocumentStore,
	objects ObjectStore, llm Completer, chunkingCfg config.ChunkingConfig, retrievalCfg config.RetrievalConfig) *Service {
	return &Service{
		embedder:  embedder,
		extractor: extractor,
		vectors:   vectors,
		docs:      docs,
		objects:   objects,
		llm:       llm,
		chunking:  chunkingCfg,
		topK:      retrievalCfg.TopK,
		maxTopK:   retrievalCfg.MaxTopK,
	}
}

func (s *Service) chunkerFor(method ChunkingMethod) (chunking.Chunker, error) {
	switch method {
	case MethodSlidingWindow:
		return chunking.NewSlidingWindow(s.chunking.SlidingWindowSize, s.chunking.SlidingWindowOverlap)
	case MethodSemanticChunking:
		return chunking.NewSemantic(s.chunking.SemanticMaxChunkSize, chunking.SemanticMode(s.chunking.SemanticMode))
	default:
		return nil, fmt.Errorf("%w: unknown chunking method %q", chunking.ErrInvalidConfiguration, method)
	}
}

// Ingest stores the document's metadata row, its raw bytes, and its
// embedded chunks, in that order. The chunker configuration is validated
// before any I/O. Vectors are upserted in one batch only after every chunk
// has been embedded, so a cancellation mid-ingest persists no partial
// chunk set.
func (s *Service) Ingest(ctx context.Context, up Upload) (*IngestResult, error) {
	now := time.Now().UTC()
	result := &IngestResult{
		DocumentID: uuid.New().String(),
		Filename:   up.Filename,
	}

	chunker, err := s.chunkerFor(up.Method)
	if err != nil {
		return result, err
	}

	doc := documentFor(result.DocumentID, up, now)
	if err := s.docs.Insert(ctx, doc); err != nil {
		return result, fmt.Errorf("metadata store: %w", err)
	}
	result.MetadataStored = true

	if err := s.objects.Upload(ctx, result.DocumentID, up.Data, up.MimeType); err != nil {
		return result, fmt.Errorf("object store: %w", err)
	}
	result.ObjectStored = true

	pages, err := s.extractor.ExtractPages(ctx, up.Data, up.MimeType)
	if err != nil {
		return result, fmt.Errorf("text extraction: %w", err)
	}

	units := chunking.StructuralUnits(pages)
	chunks, err := chunker.Chunk(units, result.DocumentID, now)
	if err != nil {
		return result, err
	}

	if len(chunks) == 0 {
		result.VectorsStored = true
		result.Message = "uploaded document is not parsable; nothing was indexed"
		log.Printf("document %s (%s) produced no chunks", result.DocumentID, up.Filename)
		return result, nil
	}

	embedded, err := s.embedAll(ctx, chunks)
	if err != nil {
		return result, err
	}

	if err := s.vectors.StoreEmbeddings(ctx, up.Filename, embedded); err != nil {
		return result, fmt.Errorf("vector store: %w", err)
	}
	result.VectorsStored = true
	result.ChunkCount = len(chunks)

	log.Printf("ingested document %s (%s): %d chunks via %s", result.DocumentID, up.Filename, len(chunks), up.Method)
	return result, nil
}

// embedAll embeds chunks with bounded concurrency, keeping the result
// slice in chunk order.
func (s *Service) embedAll(ctx context.Context, chunks []chunking.Chunk) ([]chunking.EmbeddedChunk, error) {
	embedded := make([]chunking.EmbeddedChunk, len(chunks))
	semaphore := make(chan struct{}, s.chunking.EmbedConcurrency)

	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	for i, chunk := range chunks {
		wg.Add(1)
		go func(i int, chunk chunking.Chunk) {
			defer wg.Done()

			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			vector, err := s.embedder.Embed(ctx, chunk.Text)
			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = fmt.Errorf("embedding chunk %d: %w", chunk.Metadata.ChunkIndex, err)
				}
				mu.Unlock()
				return
			}
			embedded[i] = chunking.EmbeddedChunk{Chunk: chunk, Vector: vector}
		}(i, chunk)
	}

	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return embedded, nil
}

// Search embeds the query, retrieves topK raw hits (optionally filtered to
// one filename), and re-ranks them.
func (s *Service) Search(ctx context.Context, query string, topK int, filename string) ([]rerank.RerankedHit, error) {
	if topK <= 0 {
		topK = s.topK
	}
	if topK > s.maxTopK {
		topK = s.maxTopK
	}

	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	hits, err := s.vectors.Search(ctx, vector, uint64(topK), filename)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	if len(hits) == 0 {
		return nil, nil
	}

	return rerank.Rerank(hits, time.Now().UTC())
}

const answerSystemPrompt = "You are given a question and supporting document texts arranged after " +
	"reranking. Give a detailed answer; the answer should contain the information from the texts " +
	"provided, and may add related context that is not available in the texts."

type contextSnippet struct {
	Text       string  `json:"text"`
	Score      float64 `json:"score"`
	FinalScore float64 `json:"final_score"`
}

// Answer retrieves and re-ranks context for the query, serializes it into
// the prompt, and returns the model's composed answer with its citations.
func (s *Service) Answer(ctx context.Context, query string) (*AnswerResult, error) {
	hits, err := s.Search(ctx, query, s.topK, "")
	if err != nil {
		return nil, err
	}

	snippets := make([]contextSnippet, len(hits))
	for i, hit := range hits {
		snippets[i] = contextSnippet{Text: hit.Text, Score: hit.Score, FinalScore: hit.FinalScore}
	}
	contextJSON, err := json.MarshalIndent(snippets, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("serializing context: %w", err)
	}

	userPrompt := fmt.Sprintf("Question:\n%s\n\nContext:\n%s", query, contextJSON)

	answer, err := s.llm.Complete(ctx, answerSystemPrompt, userPrompt)
	if err != nil {
		return nil, fmt.Errorf("language model: %w", err)
	}

	return &AnswerResult{
		Answer:      answer,
		Citations:   hits,
		RespondedAt: time.Now().UTC(),
	}, nil
}

// Documents lists every ingested document, newest first.
func (s *Service) Documents(ctx context.Context) ([]docstore.Document, error) {
	docs, err := s.docs.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	return docs, nil
}

func documentFor(id string, up Upload, now time.Time) docstore.Document {
	size := int64(len(up.Data))
	return docstore.Document{
		ID:         id,
		Filename:   up.Filename,
		SizeBytes:  size,
		SizeKB:     roundTo(float64(size)/1024, 2),
		SizeMB:     roundTo(float64(size)/(1024*1024), 2),
		UploadedAt: now,
		Extension:  strings.TrimPrefix(filepath.Ext(up.Filename), "."),
		MimeType:   up.MimeType,
	}
}

func roundTo(v float64, places int) float64 {
	factor := 1.0
	for i := 0; i < places; i++ {
		factor *= 10
	}
	return float64(int64(v*factor+0.5)) / factor
}
