package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// LoginURL is where the interactive login starts
const LoginURL = "https://www.facebook.com/login"

// LoginTimeout is how long the user has to finish logging in
const LoginTimeout = 5 * time.Minute

// Manager handles Facebook authentication
type Manager struct {
	cookieStore *CookieStore
	allocOpts   []chromedp.ExecAllocatorOption
	logger      *zap.SugaredLogger
}

// NewManager creates a new auth manager. allocOpts should describe a visible
// browser since the user types their credentials into it.
func NewManager(cookieStore *CookieStore, allocOpts []chromedp.ExecAllocatorOption, logger *zap.SugaredLogger) *Manager {
	return &Manager{
		cookieStore: cookieStore,
		allocOpts:   allocOpts,
		logger:      logger.Named("auth"),
	}
}

// IsAuthenticated checks if we have valid stored credentials
func (m *Manager) IsAuthenticated() bool {
	return m.cookieStore.IsValid()
}

// Login opens a browser window for the user to log in to Facebook and saves
// the session cookies once the login is detected.
func (m *Manager) Login(ctx context.Context) error {
	allocCtx, cancel := chromedp.NewExecAllocator(ctx, m.allocOpts...)
	defer cancel()

	browserCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	m.logger.Infof("Opening %s, log in within %v", LoginURL, LoginTimeout)
	if err := chromedp.Run(browserCtx, chromedp.Navigate(LoginURL)); err != nil {
		return fmt.Errorf("failed to navigate to login page: %w", err)
	}

	cookies, err := m.waitForLogin(browserCtx)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	if err := m.cookieStore.Save(cookies); err != nil {
		return fmt.Errorf("failed to save cookies: %w", err)
	}
	m.logger.Infof("Saved %d cookies", len(cookies))
	return nil
}

// waitForLogin polls the browser until the c_user cookie appears, which
// Facebook only sets for a logged in account.
func (m *Manager) waitForLogin(ctx context.Context) ([]*network.Cookie, error) {
	timeout := time.After(LoginTimeout)
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-timeout:
			return nil, fmt.Errorf("login timeout exceeded")
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			cookies, err := m.extractCookies(ctx)
			if err != nil {
				continue
			}
			for _, c := range cookies {
				if c.Name == "c_user" && c.Value != "" {
					return cookies, nil
				}
			}
		}
	}
}

// extractCookies gets all cookies from the browser
func (m *Manager) extractCookies(ctx context.Context) ([]*network.Cookie, error) {
	var cookies []*network.Cookie

	err := chromedp.Run(ctx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			cookies, err = storage.GetCookies().Do(ctx)
			return err
		}),
	)

	return cookies, err
}

// Logout clears stored credentials
func (m *Manager) Logout() error {
	return m.cookieStore.Clear()
}
