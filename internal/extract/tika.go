// Package extract talks to an Apache Tika server to turn uploaded bytes
// into per-page text, with an OCR fallback pass for pages whose extracted
// text is below the confidence threshold.
package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"log"
	"net/http"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/dev1505/docqa/internal/config"
	"github.com/dev1505/docqa/internal/text"
)

var errUnparsable = errors.New("tika could not parse the document")

var (
	pageDivRegex  = regexp.MustCompile(`<div[^>]*class="page"[^>]*>`)
	blockEndRegex = regexp.MustCompile(`</(p|div|h[1-6]|li|tr|td|th)>`)
	tagRegex      = regexp.MustCompile(`<[^>]*>`)
)

type Client struct {
	serverURL     string
	httpClient    *http.Client
	retryAttempts int
	retryDelay    time.Duration
	ocrThreshold  int
	cleaner       *text.Cleaner
}

func NewClient(cfg config.TikaConfig) *Client {
	return &Client{
		serverURL: strings.TrimRight(cfg.ServerURL, "/"),
		httpClient: &http.Client{
			Timeout: cfg.Timeout.Duration,
		},
		retryAttempts: cfg.RetryAttempts,
		retryDelay:    cfg.RetryDelay.Duration,
		ocrThreshold:  cfg.OCRThreshold,
		cleaner:       text.NewCleaner(true),
	}
}

// ExtractPages returns one cleaned string per page, in document order.
// Unparsable input yields a nil slice and no error; a Tika transport or
// server failure is an error.
func (c *Client) ExtractPages(ctx context.Context, data []byte, contentType string) ([]string, error) {
	body, err := c.extractWithRetry(ctx, data, contentType, false)
	if errors.Is(err, errUnparsable) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	pages := c.splitPages(body)
	if len(pages) == 0 {
		return nil, nil
	}

	if c.needsOCR(pages, contentType) {
		ocrBody, err := c.extractWithRetry(ctx, data, contentType, true)
		if err != nil {
			log.Printf("OCR fallback pass failed, keeping extracted text: %v", err)
			return pages, nil
		}
		ocrPages := c.splitPages(ocrBody)
		for i := range pages {
			if len(pages[i]) >= c.ocrThreshold {
				continue
			}
			if i < len(ocrPages) && ocrPages[i] != "" {
				pages[i] = ocrPages[i]
			}
		}
	}

	return pages, nil
}

func (c *Client) needsOCR(pages []string, contentType string) bool {
	if contentType != "application/pdf" {
		return false
	}
	for _, page := range pages {
		if len(page) < c.ocrThreshold {
			return true
		}
	}
	return false
}

func (c *Client) extractWithRetry(ctx context.Context, data []byte, contentType string, ocr bool) (string, error) {
	var lastErr error

	for attempt := 0; attempt <= c.retryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(c.retryDelay):
			}
		}

		body, err := c.extractAttempt(ctx, data, contentType, ocr)
		if err == nil || errors.Is(err, errUnparsable) {
			return body, err
		}
		lastErr = err
	}

	return "", fmt.Errorf("failed after %d attempts: %w", c.retryAttempts+1, lastErr)
}

func (c *Client) extractAttempt(ctx context.Context, data []byte, contentType string, ocr bool) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.serverURL+"/tika", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to create tika request: %w", err)
	}

	if contentType == "" {
		contentType = "application/octet-stream"
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/xml")
	if ocr {
		req.Header.Set("X-Tika-PDFOcrStrategy", "ocr_only")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to execute tika request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnprocessableEntity {
		return "", errUnparsable
	}
	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("tika server returned status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read tika response: %w", err)
	}

	return string(body), nil
}

// splitPages cuts Tika's XHTML output on its per-page divs. Formats Tika
// does not paginate come back as a single page.
func (c *Client) splitPages(body string) []string {
	locs := pageDivRegex.FindAllStringIndex(body, -1)
	if len(locs) == 0 {
		page := c.cleaner.Clean(stripTags(body))
		if page == "" {
			return nil
		}
		return []string{page}
	}

	pages := make([]string, 0, len(locs))
	for i, loc := range locs {
		end := len(body)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		pages = append(pages, c.cleaner.Clean(stripTags(body[loc[1]:end])))
	}
	return pages
}

func stripTags(s string) string {
	s = blockEndRegex.ReplaceAllString(s, "\n")
	s = tagRegex.ReplaceAllString(s, "")
	return html.UnescapeString(s)
}

// ContentTypeForFilename maps common document extensions to the MIME type
// Tika should be told about; everything else is sent as an octet stream.
func ContentTypeForFilename(filename string) string {
	switch filepath.Ext(filename) {
	case ".pdf":
		return "application/pdf"
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case ".doc":
		return "application/msword"
	case ".txt":
		return "text/plain"
	case ".html":
		return "text/html"
	case ".rtf":
		return "application/rtf"
	case ".odt":
		return "application/vnd.oasis.opendocument.text"
	default:
		return "application/octet-stream"
	}
}
