// Package media downloads post images.
package media

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// NoImage is the placeholder older scrapers stored instead of a URL.
const NoImage = "Sin imagen"

// Retriever downloads an image into memory. It never returns an error:
// a missing image must not abort ingestion.
type Retriever struct {
	client    *http.Client
	userAgent string
	maxBytes  int64
	logger    *zap.SugaredLogger
}

// Option configures a Retriever
type Option func(*Retriever)

// WithHTTPClient replaces the default client (timeout is then the caller's
// responsibility).
func WithHTTPClient(c *http.Client) Option {
	return func(r *Retriever) { r.client = c }
}

// WithMaxBytes caps the accepted body size.
func WithMaxBytes(n int64) Option {
	return func(r *Retriever) { r.maxBytes = n }
}

// NewRetriever creates a retriever with a client bounded by timeout.
func NewRetriever(userAgent string, timeout time.Duration, logger *zap.SugaredLogger, opts ...Option) *Retriever {
	r := &Retriever{
		client:    &http.Client{Timeout: timeout},
		userAgent: userAgent,
		maxBytes:  10 << 20,
		logger:    logger.Named("media"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Downloadable reports whether url is worth a network call.
func Downloadable(url string) bool {
	if url == "" || url == NoImage {
		return false
	}
	return strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://")
}

// Fetch returns the image bytes at url, or nil when there is nothing to
// download or the download fails.
func (r *Retriever) Fetch(ctx context.Context, url string) []byte {
	if !Downloadable(url) {
		return nil
	}

	r.logger.Info("Downloading post image")
	data, err := r.download(ctx, url)
	if err != nil {
		r.logger.Warnw("Image download failed, continuing without image", "error", err)
		return nil
	}
	r.logger.Infof("Downloaded image (%d bytes)", len(data))
	return data
}

func (r *Retriever) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, r.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(data)) > r.maxBytes {
		return nil, fmt.Errorf("image larger than %d bytes", r.maxBytes)
	}
	return data, nil
}
