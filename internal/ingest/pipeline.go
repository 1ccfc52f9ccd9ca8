// Package ingest runs the scrape, derive and persist flow for the configured
// news sources.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cgpvp/cgpvp/internal/identity"
	"github.com/cgpvp/cgpvp/internal/media"
	"github.com/cgpvp/cgpvp/internal/metrics"
	"github.com/cgpvp/cgpvp/internal/scraper"
	"github.com/cgpvp/cgpvp/internal/store"
	"github.com/cgpvp/cgpvp/internal/types"
)

// Extractor reads the newest post from a loaded page.
type Extractor interface {
	ExtractLatest(ctx context.Context, s scraper.Session) (*types.PostDraft, error)
}

// ImageFetcher downloads post images. A nil result means no image.
type ImageFetcher interface {
	Fetch(ctx context.Context, url string) []byte
}

// Upserter persists post records.
type Upserter interface {
	UpsertPost(ctx context.Context, r *types.PostRecord) error
}

// Options configures a Pipeline.
type Options struct {
	Sources []types.Source
	// CacheDir receives run snapshots when CacheRuns is set
	CacheDir  string
	CacheRuns bool
}

// Pipeline holds the collaborators of an ingestion run.
type Pipeline struct {
	// mu serializes runs so only one browser is alive at a time
	mu sync.Mutex

	opener    scraper.Opener
	extractor Extractor
	images    ImageFetcher
	store     Upserter
	metrics   *metrics.Metrics
	opts      Options
	logger    *zap.SugaredLogger
}

// New creates a Pipeline. m may be nil.
func New(opener scraper.Opener, extractor Extractor, images ImageFetcher, st Upserter, m *metrics.Metrics, opts Options, logger *zap.SugaredLogger) *Pipeline {
	return &Pipeline{
		opener:    opener,
		extractor: extractor,
		images:    images,
		store:     st,
		metrics:   m,
		opts:      opts,
		logger:    logger.Named("ingest"),
	}
}

// RunAll ingests every configured source in order. A failing source does not
// stop the others; all failures are returned joined.
func (p *Pipeline) RunAll(ctx context.Context) error {
	var errs []error
	for _, src := range p.opts.Sources {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if _, err := p.Run(ctx, src); err != nil {
			p.logger.Errorw("Source ingestion failed", "source", src.Name, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", src.Name, err))
		}
	}
	return errors.Join(errs...)
}

// Run ingests the newest post of src. It returns nil, nil when the page shows
// no posts. The browser session is closed on every path.
func (p *Pipeline) Run(ctx context.Context, src types.Source) (*types.PostRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	log := p.logger.With("source", src.Name)
	start := time.Now()
	result := metrics.ResultFailed
	defer func() {
		p.metrics.ObserveRun(src.Name, result, time.Since(start).Seconds())
	}()

	log.Infof("Starting scrape of %s", src.URL)
	session, err := p.opener.OpenSession(ctx, src.URL)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", src.URL, err)
	}
	defer func() {
		log.Info("Closing browser session")
		if err := session.Close(); err != nil {
			log.Warnf("Browser did not close cleanly: %v", err)
		}
	}()

	log.Info("Extracting latest post")
	draft, err := p.extractor.ExtractLatest(ctx, session)
	if err != nil {
		return nil, fmt.Errorf("extract latest post: %w", err)
	}
	if draft == nil {
		log.Info("No posts found, nothing to store")
		result = metrics.ResultEmpty
		return nil, nil
	}
	p.snapshot(log, src.Name, store.StepDraft, draft)

	id, title := identity.Derive(draft.Text)
	rec := &types.PostRecord{
		ID:          id,
		Title:       title,
		Content:     draft.Text,
		CollectedAt: draft.CollectedAt,
		Origin:      types.OriginFacebook,
	}
	p.attachImage(ctx, log, src, draft.ImageURL, rec)

	log.Infof("Persisting post %s (%q)", rec.ID, rec.Title)
	if err := p.store.UpsertPost(ctx, rec); err != nil {
		return nil, err
	}
	p.snapshot(log, src.Name, store.StepRecord, rec)

	result = metrics.ResultOK
	log.Infof("Stored post %s in %v", rec.ID, time.Since(start).Round(time.Millisecond))
	return rec, nil
}

// attachImage fills the image of rec according to the source's image mode.
// Image problems never fail the run.
func (p *Pipeline) attachImage(ctx context.Context, log *zap.SugaredLogger, src types.Source, url string, rec *types.PostRecord) {
	if src.ImageMode == types.ImageModeURL {
		if media.Downloadable(url) {
			rec.ImageURL = url
			p.metrics.ObserveImage(metrics.ImageURLOnly)
		} else {
			p.metrics.ObserveImage(metrics.ImageMissing)
		}
		return
	}

	if !media.Downloadable(url) {
		log.Info("No image to download")
		p.metrics.ObserveImage(metrics.ImageMissing)
		return
	}

	rec.Image = p.images.Fetch(ctx, url)
	if rec.Image == nil {
		p.metrics.ObserveImage(metrics.ImageFailed)
		return
	}
	p.metrics.ObserveImage(metrics.ImageDownloaded)
}

// snapshot writes a debugging copy of a step's output. Failures are logged
// only.
func (p *Pipeline) snapshot(log *zap.SugaredLogger, source string, step store.StepName, data any) {
	if !p.opts.CacheRuns || p.opts.CacheDir == "" {
		return
	}
	path, err := store.SaveStepOutput(p.opts.CacheDir, source, step, data)
	if err != nil {
		log.Warnf("Failed to cache %s: %v", step, err)
		return
	}
	log.Debugf("Cached %s to %s", step, path)
}
