// Package api exposes the document QA pipeline over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/dev1505/docqa/internal/chunking"
	"github.com/dev1505/docqa/internal/docstore"
	"github.com/dev1505/docqa/internal/extract"
	"github.com/dev1505/docqa/internal/rerank"
	"github.com/dev1505/docqa/internal/service"
)

// DocumentQA is the slice of the orchestrator the handlers need.
type DocumentQA interface {
	Ingest(ctx context.Context, up service.Upload) (*service.IngestResult, error)
	Search(ctx context.Context, query string, topK int, filename string) ([]rerank.RerankedHit, error)
	Answer(ctx context.Context, query string) (*service.AnswerResult, error)
	Documents(ctx context.Context) ([]docstore.Document, error)
}

type Server struct {
	qa             DocumentQA
	maxUploadBytes int64
	mux            *http.ServeMux
}

func NewServer(qa DocumentQA, maxUploadSizeMB int64) *Server {
	if maxUploadSizeMB <= 0 {
		maxUploadSizeMB = 64
	}
	s := &Server{qa: qa, maxUploadBytes: maxUploadSizeMB << 20, mux: http.NewServeMux()}
	s.mux.HandleFunc("POST /upload/file", s.handleUpload)
	s.mux.HandleFunc("POST /api/verify-citation", s.handleSearch)
	s.mux.HandleFunc("POST /get/context-output", s.handleAnswer)
	s.mux.HandleFunc("GET /documents", s.handleDocuments)
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	s.mux.ServeHTTP(w, r)
	log.Printf("%s %s (%s)", r.Method, r.URL.Path, time.Since(start).Round(time.Millisecond))
}

// response is the envelope every endpoint answers with.
type response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(s.maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("parsing multipart form: %w", err))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.New("missing file field"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("reading upload: %w", err))
		return
	}

	methodParam := r.FormValue("chunking_method")
	if methodParam == "" {
		methodParam = r.URL.Query().Get("chunking_method")
	}
	method, err := service.ParseChunkingMethod(methodParam)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = extract.ContentTypeForFilename(header.Filename)
	}

	result, err := s.qa.Ingest(r.Context(), service.Upload{
		Filename: header.Filename,
		MimeType: mimeType,
		Data:     data,
		Method:   method,
	})
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, chunking.ErrInvalidConfiguration) {
			status = http.StatusBadRequest
		}
		log.Printf("upload %s failed: %v", header.Filename, err)
		writeJSON(w, status, response{Success: false, Data: result, Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, response{Success: true, Data: result})
}

type searchRequest struct {
	Query    string `json:"query"`
	TopK     int    `json:"top_k"`
	Filename string `json:"filename"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	req, err := decodeSearchRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	hits, err := s.qa.Search(r.Context(), req.Query, req.TopK, req.Filename)
	if err != nil {
		log.Printf("search %q failed: %v", req.Query, err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if hits == nil {
		hits = []rerank.RerankedHit{}
	}

	writeJSON(w, http.StatusOK, response{Success: true, Data: hits})
}

func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	req, err := decodeSearchRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	result, err := s.qa.Answer(r.Context(), req.Query)
	if err != nil {
		log.Printf("answer %q failed: %v", req.Query, err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, http.StatusOK, response{Success: true, Data: result})
}

func (s *Server) handleDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.qa.Documents(r.Context())
	if err != nil {
		log.Printf("listing documents failed: %v", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if docs == nil {
		docs = []docstore.Document{}
	}
	writeJSON(w, http.StatusOK, response{Success: true, Data: docs})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, response{Success: true, Data: "ok"})
}

// decodeSearchRequest accepts the query either as a JSON body or as
// query parameters, body taking precedence.
func decodeSearchRequest(r *http.Request) (searchRequest, error) {
	var req searchRequest
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			return req, fmt.Errorf("decoding request body: %w", err)
		}
	}
	if req.Query == "" {
		req.Query = r.URL.Query().Get("query")
	}
	if req.TopK == 0 {
		if raw := r.URL.Query().Get("top_k"); raw != "" {
			topK, err := strconv.Atoi(raw)
			if err != nil {
				return req, fmt.Errorf("invalid top_k %q", raw)
			}
			req.TopK = topK
		}
	}
	if req.Filename == "" {
		req.Filename = r.URL.Query().Get("filename")
	}
	if req.Query == "" {
		return req, errors.New("missing query")
	}
	return req, nil
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, response{Success: false, Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, body response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("encoding response: %v", err)
	}
}
