// Package identity derives the content-addressed ID and display title of a
// scraped post.
package identity

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
)

// TitleLimit is the number of characters of content kept in a title.
const TitleLimit = 80

// Ellipsis is appended to titles cut at TitleLimit.
const Ellipsis = "..."

// Derive returns the stable ID and the title for content. Content is trimmed
// before hashing so whitespace-only differences map to the same ID.
func Derive(content string) (id, title string) {
	content = strings.TrimSpace(content)
	return Hash(content), Title(content)
}

// Hash is the hex md5 digest of the UTF-8 bytes of s.
func Hash(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

// Title cuts s to TitleLimit characters, adding Ellipsis when it was longer.
// Characters are counted as runes so multi-byte text is never split.
func Title(s string) string {
	runes := []rune(s)
	if len(runes) <= TitleLimit {
		return s
	}
	return string(runes[:TitleLimit]) + Ellipsis
}
