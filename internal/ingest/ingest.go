// Package ingest reads uploaded files and web pages into raw document content.
package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/go-shiori/go-readability"

	"zproposal/internal/logging"
)

// ErrInvalidURL is returned by FetchPage for anything but an absolute http(s) URL.
var ErrInvalidURL = errors.New("invalid URL")

// Reader turns uploads and URLs into (name, bytes) pairs under the guardrails.
type Reader struct {
	guardrails *Guardrails
	client     *http.Client
	logger     *logging.Logger
}

// NewReader creates a Reader. A nil client means http.DefaultClient.
func NewReader(guardrails *Guardrails, client *http.Client, logger *logging.Logger) *Reader {
	if client == nil {
		client = http.DefaultClient
	}
	return &Reader{guardrails: guardrails, client: client, logger: logger}
}

// Guardrails returns the limits this reader enforces.
func (r *Reader) Guardrails() *Guardrails {
	return r.guardrails
}

// ReadUpload reads a multipart file part, enforcing the guardrails even when
// the declared size is wrong.
func (r *Reader) ReadUpload(file multipart.File, header *multipart.FileHeader) (string, []byte, error) {
	name := filepath.Base(header.Filename)
	if err := r.guardrails.Check(name, header.Size); err != nil {
		return "", nil, err
	}
	data, err := r.readLimited(file, name)
	if err != nil {
		return "", nil, err
	}
	r.logger.WithFields(map[string]interface{}{
		"file": name,
		"size": len(data),
	}).Debug("upload read")
	return name, data, nil
}

// ReadFile is ReadUpload for a plain reader, used by the inbox watcher.
func (r *Reader) ReadFile(name string, size int64, src io.Reader) ([]byte, error) {
	if err := r.guardrails.Check(name, size); err != nil {
		return nil, err
	}
	return r.readLimited(src, name)
}

func (r *Reader) readLimited(src io.Reader, name string) ([]byte, error) {
	limit := r.guardrails.MaxFileSize
	if limit <= 0 {
		data, err := io.ReadAll(src)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", name, err)
		}
		return data, nil
	}
	data, err := io.ReadAll(io.LimitReader(src, limit+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: %s is larger than %d bytes", ErrTooLarge, name, limit)
	}
	return data, nil
}

// FetchPage downloads a web page and extracts its readable text. The returned
// name is derived from the page title, or the host when there is none, and
// always ends in .txt.
func (r *Reader) FetchPage(ctx context.Context, rawURL string) (string, string, error) {
	logger := r.logger.WithContext("url", rawURL)

	parsedURL, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (parsedURL.Scheme != "http" && parsedURL.Scheme != "https") || parsedURL.Host == "" {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsedURL.String(), nil)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		logger.Error("failed to fetch URL: %v", err)
		return "", "", fmt.Errorf("failed to fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", "", fmt.Errorf("failed to fetch URL: %s", resp.Status)
	}

	page, err := r.readLimited(resp.Body, parsedURL.Host)
	if err != nil {
		logger.Warn("page rejected: %v", err)
		return "", "", err
	}

	// Parse HTML using go-readability
	article, err := readability.FromReader(bytes.NewReader(page), parsedURL)
	if err != nil {
		logger.Error("failed to parse HTML: %v", err)
		return "", "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	text := strings.TrimSpace(article.TextContent)
	if text == "" {
		return "", "", fmt.Errorf("no readable text found at %s", parsedURL.Host)
	}

	name := pageName(article.Title, parsedURL.Host)
	logger.WithFields(map[string]interface{}{
		"name":      name,
		"text_size": len(text),
	}).Debug("URL content fetched and parsed")
	return name, text, nil
}

var unsafeNameChars = regexp.MustCompile(`[^\w\-. ]+`)

func pageName(title, host string) string {
	base := strings.TrimSpace(unsafeNameChars.ReplaceAllString(title, " "))
	base = strings.Join(strings.Fields(base), " ")
	if base == "" {
		base = host
	}
	if len(base) > 80 {
		base = strings.TrimSpace(base[:80])
	}
	return base + ".txt"
}
