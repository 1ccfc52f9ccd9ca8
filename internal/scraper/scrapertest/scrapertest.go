// Package scrapertest provides in-memory browser sessions for tests that
// exercise the extractor and the ingestion pipeline without Chrome.
package scrapertest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/cgpvp/cgpvp/internal/scraper"
)

// Post is one post container on a fake page.
type Post struct {
	Text     string
	NoText   bool // the container has no message node
	ImageURL string
	// Truncated posts render TruncatedText until the expansion control is
	// clicked.
	Truncated     bool
	TruncatedText string
}

// Page is a fake rendered page. Posts[0] is the newest.
type Page struct {
	Posts []Post
}

// Session answers the extractor scripts from a Page.
type Session struct {
	mu       sync.Mutex
	page     Page
	expanded bool
	closed   bool
	calls    int
	// EvaluateErr, when set, is returned by every Evaluate call.
	EvaluateErr error
}

// NewSession returns a session over page.
func NewSession(page Page) *Session {
	return &Session{page: page}
}

// Evaluate implements scraper.Session.
func (s *Session) Evaluate(_ context.Context, expression string, res any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls++
	if s.EvaluateErr != nil {
		return s.EvaluateErr
	}
	if s.closed {
		return fmt.Errorf("session closed")
	}

	var out any
	switch expression {
	case scraper.ExpandLatestJS:
		result := map[string]any{"count": len(s.page.Posts), "expanded": false}
		if len(s.page.Posts) > 0 && s.page.Posts[0].Truncated {
			s.expanded = true
			result["expanded"] = true
		}
		out = result
	case scraper.ReadLatestJS:
		if len(s.page.Posts) == 0 {
			out = map[string]any{"found": false, "hasText": false, "text": "", "imageUrl": ""}
			break
		}
		p := s.page.Posts[0]
		text := p.Text
		if p.Truncated && !s.expanded {
			text = p.TruncatedText
		}
		out = map[string]any{
			"found":    true,
			"hasText":  !p.NoText,
			"text":     text,
			"imageUrl": p.ImageURL,
		}
	default:
		return fmt.Errorf("unexpected expression")
	}

	// Round-trip through JSON like the DevTools protocol does
	b, err := json.Marshal(out)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, res)
}

// Close implements scraper.Session.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Closed reports whether Close was called.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Calls returns the number of Evaluate calls.
func (s *Session) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// Opener hands out sessions per target URL.
type Opener struct {
	mu       sync.Mutex
	pages    map[string]Page
	sessions []*Session
	// Err, when set, is returned by OpenSession.
	Err error
}

// NewOpener returns an opener serving pages keyed by URL.
func NewOpener(pages map[string]Page) *Opener {
	return &Opener{pages: pages}
}

// OpenSession implements scraper.Opener.
func (o *Opener) OpenSession(_ context.Context, targetURL string) (scraper.Session, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.Err != nil {
		return nil, o.Err
	}
	page, ok := o.pages[targetURL]
	if !ok {
		return nil, fmt.Errorf("failed to load page: %s unreachable", targetURL)
	}
	s := NewSession(page)
	o.sessions = append(o.sessions, s)
	return s, nil
}

// Sessions returns every session handed out so far.
func (o *Opener) Sessions() []*Session {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]*Session(nil), o.sessions...)
}
