package service

import (
	"crypto/rand"
	"math/big"
	"regexp"
	"strings"
)

var (
	slugStrip      = regexp.MustCompile(`[^\w\s-]`)
	slugWhitespace = regexp.MustCompile(`\s+`)
	slugAllowed    = regexp.MustCompile(`[^a-z0-9_-]`)
)

const base36 = "0123456789abcdefghijklmnopqrstuvwxyz"

// Slugify derives a URL slug from a business or owner name: lowercase, drop
// anything but ASCII word characters, whitespace and hyphens, turn whitespace
// runs into "-" and trim hyphens at both ends. Names with no usable
// characters (e.g. entirely non-Latin) get "shop-" plus five random base36
// characters.
func Slugify(name string) string {
	s := strings.ToLower(name)
	s = slugStrip.ReplaceAllString(s, "")
	s = slugWhitespace.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if s == "" {
		return "shop-" + randomBase36(5)
	}
	return s
}

// NormalizeSlug lowercases s and strips everything outside [a-z0-9_-].
// The result may be empty.
func NormalizeSlug(s string) string {
	return slugAllowed.ReplaceAllString(strings.ToLower(strings.TrimSpace(s)), "")
}

// withSuffix appends "-" and four random base36 characters.
func withSuffix(slug string) string {
	return slug + "-" + randomBase36(4)
}

func randomBase36(n int) string {
	var sb strings.Builder
	sb.Grow(n)
	max := big.NewInt(int64(len(base36)))
	for i := 0; i < n; i++ {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			panic("crypto/rand unavailable: " + err.Error())
		}
		sb.WriteByte(base36[idx.Int64()])
	}
	return sb.String()
}
