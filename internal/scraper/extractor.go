package scraper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/cgpvp/cgpvp/internal/types"
)

// ErrTextMissing means the newest post has no text node. The run for that
// source is abandoned; the next scheduled run tries again.
var ErrTextMissing = errors.New("post text node not found")

// Extractor pulls the newest post off a loaded page
type Extractor struct {
	expandSettle time.Duration
	now          func() time.Time
	logger       *zap.SugaredLogger
}

// NewExtractor creates an extractor. expandSettle is the fixed wait after
// clicking the "show more" control.
func NewExtractor(expandSettle time.Duration, logger *zap.SugaredLogger) *Extractor {
	return &Extractor{
		expandSettle: expandSettle,
		now:          time.Now,
		logger:       logger.Named("scraper"),
	}
}

// expandResult mirrors the object returned by ExpandLatestJS
type expandResult struct {
	Count    int  `json:"count"`
	Expanded bool `json:"expanded"`
}

// rawPost mirrors the object returned by ReadLatestJS
type rawPost struct {
	Found    bool   `json:"found"`
	HasText  bool   `json:"hasText"`
	Text     string `json:"text"`
	ImageURL string `json:"imageUrl"`
}

// ExtractLatest returns the newest post on the page, or nil when the page
// has no post containers.
func (e *Extractor) ExtractLatest(ctx context.Context, s Session) (*types.PostDraft, error) {
	var probe expandResult
	if err := s.Evaluate(ctx, ExpandLatestJS, &probe); err != nil {
		return nil, fmt.Errorf("failed to query post containers: %w", err)
	}

	if probe.Count == 0 {
		e.logger.Info("No post containers found on page")
		return nil, nil
	}
	e.logger.Infof("Found %d post containers, using the first", probe.Count)

	if probe.Expanded {
		e.logger.Infof("Expanded truncated text, waiting %v", e.expandSettle)
		if err := Sleep(ctx, e.expandSettle); err != nil {
			return nil, err
		}
	} else {
		e.logger.Info("No expansion control, post is short or already expanded")
	}

	var raw rawPost
	if err := s.Evaluate(ctx, ReadLatestJS, &raw); err != nil {
		return nil, fmt.Errorf("failed to read post: %w", err)
	}
	if !raw.Found {
		// The container vanished between the two queries
		e.logger.Info("Post container disappeared after expansion")
		return nil, nil
	}
	if !raw.HasText {
		return nil, ErrTextMissing
	}

	draft := &types.PostDraft{
		Text:        strings.TrimSpace(raw.Text),
		ImageURL:    strings.TrimSpace(raw.ImageURL),
		CollectedAt: e.now(),
	}

	if draft.ImageURL == "" {
		e.logger.Info("Post has no image")
	}
	e.logger.Infof("Extracted post text (%d chars)", len([]rune(draft.Text)))

	return draft, nil
}

func jsStringArray(values []string) string {
	b, err := json.Marshal(values)
	if err != nil {
		panic(err)
	}
	return string(b)
}
