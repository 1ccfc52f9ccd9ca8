package scraper

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// Session is a loaded page the extractor can query. Close must be called on
// every path; it terminates the browser process.
type Session interface {
	Evaluate(ctx context.Context, expression string, res any) error
	Close() error
}

// Opener starts a browser session on a target page.
type Opener interface {
	OpenSession(ctx context.Context, targetURL string) (Session, error)
}

// CookieSource supplies login cookies to inject before navigation. A nil
// slice with a nil error means "browse anonymously".
type CookieSource interface {
	SessionCookies() ([]*network.Cookie, error)
}

// Fetcher drives a headless Chrome through chromedp
type Fetcher struct {
	allocOpts  []chromedp.ExecAllocatorOption
	pageSettle time.Duration
	cookies    CookieSource
	logger     *zap.SugaredLogger
}

// NewFetcher creates a fetcher. pageSettle is the fixed wait after
// navigation that lets client-side rendering finish.
func NewFetcher(allocOpts []chromedp.ExecAllocatorOption, pageSettle time.Duration, cookies CookieSource, logger *zap.SugaredLogger) *Fetcher {
	return &Fetcher{
		allocOpts:  allocOpts,
		pageSettle: pageSettle,
		cookies:    cookies,
		logger:     logger.Named("scraper"),
	}
}

// OpenSession launches the browser, navigates to targetURL and waits the
// settle delay. On error the browser has already been torn down.
func (f *Fetcher) OpenSession(ctx context.Context, targetURL string) (Session, error) {
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, f.allocOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	s := &chromeSession{
		ctx: browserCtx,
		cancel: func() {
			browserCancel()
			allocCancel()
		},
	}

	if err := f.injectCookies(browserCtx); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to inject cookies: %w", err)
	}

	f.logger.Infof("Navigating to %s", targetURL)
	if err := chromedp.Run(browserCtx, chromedp.Navigate(targetURL)); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to load page: %w", err)
	}

	f.logger.Infof("Waiting %v for the page to render", f.pageSettle)
	if err := Sleep(ctx, f.pageSettle); err != nil {
		s.Close()
		return nil, err
	}

	return s, nil
}

// injectCookies sets stored cookies in the browser context
func (f *Fetcher) injectCookies(ctx context.Context) error {
	if f.cookies == nil {
		return nil
	}
	cookies, err := f.cookies.SessionCookies()
	if err != nil {
		return err
	}
	if len(cookies) == 0 {
		return nil
	}

	f.logger.Infof("Injecting %d stored cookies", len(cookies))
	return chromedp.Run(ctx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			for _, c := range cookies {
				err := network.SetCookie(c.Name, c.Value).
					WithDomain(c.Domain).
					WithPath(c.Path).
					WithSecure(c.Secure).
					WithHTTPOnly(c.HTTPOnly).
					WithSameSite(c.SameSite).
					Do(ctx)

				if err != nil {
					return err
				}
			}
			return nil
		}),
	)
}

type chromeSession struct {
	ctx    context.Context
	cancel func()
}

// Evaluate runs expression on the page. Actions must run on the browser
// context, which already inherits the run's deadline, so ctx is only checked
// up front.
func (s *chromeSession) Evaluate(ctx context.Context, expression string, res any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return chromedp.Run(s.ctx, chromedp.Evaluate(expression, res))
}

// Close gracefully closes the browser, then releases the allocator, which
// kills the Chrome process if it is still alive.
func (s *chromeSession) Close() error {
	err := chromedp.Cancel(s.ctx)
	s.cancel()
	return err
}

// Sleep waits for d or until ctx is done. Settle delays go through here so a
// run timeout can cut them short.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
