package auth

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chromedp/cdproto/network"

	"github.com/cgpvp/cgpvp/internal/config"
)

// RequiredCookies must all be present for a stored Facebook session to count
// as logged in.
var RequiredCookies = []string{"c_user", "xs"}

// CookieStore handles storage of Facebook session cookies
type CookieStore struct {
	path string
	now  func() time.Time
}

// StoredCookies represents the persisted cookie data
type StoredCookies struct {
	Cookies    []*network.Cookie `json:"cookies"`
	CapturedAt time.Time         `json:"captured_at"`
	// ExpiresAt is the earliest expiry of the required cookies, zero when
	// they are all session cookies
	ExpiresAt time.Time `json:"expires_at"`
}

// NewCookieStore creates a cookie store at the given path
func NewCookieStore(path string) *CookieStore {
	return &CookieStore{path: path, now: time.Now}
}

// DefaultCookieStorePath returns the default path for cookie storage
func DefaultCookieStorePath() (string, error) {
	configDir, err := config.ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "cookies.json"), nil
}

func isRequired(name string) bool {
	for _, r := range RequiredCookies {
		if name == r {
			return true
		}
	}
	return false
}

// Save persists cookies to disk, readable by the owner only
func (cs *CookieStore) Save(cookies []*network.Cookie) error {
	if err := os.MkdirAll(filepath.Dir(cs.path), 0700); err != nil {
		return err
	}

	var earliest time.Time
	for _, c := range cookies {
		if !isRequired(c.Name) || c.Expires <= 0 {
			continue
		}
		exp := time.Unix(int64(c.Expires), 0)
		if earliest.IsZero() || exp.Before(earliest) {
			earliest = exp
		}
	}

	stored := StoredCookies{
		Cookies:    cookies,
		CapturedAt: cs.now(),
		ExpiresAt:  earliest,
	}

	data, err := json.MarshalIndent(stored, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(cs.path, data, 0600)
}

// Load retrieves cookies from disk
func (cs *CookieStore) Load() (*StoredCookies, error) {
	data, err := os.ReadFile(cs.path)
	if err != nil {
		return nil, err
	}

	var stored StoredCookies
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, err
	}

	return &stored, nil
}

// IsValid checks that the required cookies are stored and unexpired
func (cs *CookieStore) IsValid() bool {
	stored, err := cs.Load()
	if err != nil {
		return false
	}
	return cs.valid(stored)
}

func (cs *CookieStore) valid(stored *StoredCookies) bool {
	if !stored.ExpiresAt.IsZero() && cs.now().After(stored.ExpiresAt) {
		return false
	}

	found := make(map[string]bool)
	for _, c := range stored.Cookies {
		if isRequired(c.Name) && c.Value != "" {
			found[c.Name] = true
		}
	}
	return len(found) == len(RequiredCookies)
}

// Clear removes stored cookies. Clearing an empty store is not an error.
func (cs *CookieStore) Clear() error {
	err := os.Remove(cs.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// SessionCookies returns the facebook.com cookies of a valid stored session.
// Missing or expired cookies yield nil so the scraper browses anonymously.
func (cs *CookieStore) SessionCookies() ([]*network.Cookie, error) {
	stored, err := cs.Load()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	if !cs.valid(stored) {
		return nil, nil
	}

	var fbCookies []*network.Cookie
	for _, c := range stored.Cookies {
		if strings.TrimPrefix(c.Domain, ".") == "facebook.com" {
			fbCookies = append(fbCookies, c)
		}
	}

	return fbCookies, nil
}
