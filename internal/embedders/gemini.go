package embedders

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/dev1505/docqa/internal/config"
)

// GeminiEmbedder maps text to a fixed-dimension vector via the Gemini
// embedContent endpoint. The same function embeds both document chunks and
// queries; identical text yields identical vectors.
type GeminiEmbedder struct {
	apiKey    string
	model     string
	dimension int
	baseURL   string
	client    *http.Client
}

func NewGeminiEmbedder(cfg config.GeminiConfig) *GeminiEmbedder {
	return &GeminiEmbedder{
		apiKey:    cfg.APIKey,
		model:     cfg.Model,
		dimension: cfg.VectorSize,
		baseURL:   "https://generativelanguage.googleapis.com/v1beta/models",
		client:    &http.Client{},
	}
}

func (ge *GeminiEmbedder) Dimension() int {
	return ge.dimension
}

func (ge *GeminiEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("input text cannot be empty")
	}

	apiURL := fmt.Sprintf("%s/%s:embedContent?key=%s", ge.baseURL, ge.model, ge.apiKey)

	reqBody := map[string]interface{}{
		"content": map[string]interface{}{
			"parts": []map[string]interface{}{
				{
					"text": text,
				},
			},
		},
		"taskType":             "RETRIEVAL_DOCUMENT",
		"outputDimensionality": ge.dimension,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("error marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := ge.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error sending request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var response struct {
		Embedding struct {
			Values []float32 `json:"values"`
		} `json:"embedding"`
	}

	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("error unmarshaling response: %w", err)
	}

	if len(response.Embedding.Values) == 0 {
		return nil, fmt.Errorf("empty embedding returned")
	}

	return response.Embedding.Values, nil
}
