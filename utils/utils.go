package utils

import (
	"fmt"
	"net/url"
	"path"
	"strings"
	"unicode"
	"unicode/utf8"
)

// IsAbsoluteHTTPURL reports whether rawURL has an http(s) scheme and a host.
func IsAbsoluteHTTPURL(rawURL string) bool {
	if rawURL == "" {
		return false
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}

	return u.Host != ""
}

// SiteRoot reduces a URL to "scheme://host/".
func SiteRoot(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("failed to parse url %q: %w", rawURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("url %q has no scheme or host", rawURL)
	}

	return fmt.Sprintf("%s://%s/", u.Scheme, u.Host), nil
}

// ResolveURL resolves href against base. Returns "" when either fails to parse.
func ResolveURL(base, href string) string {
	b, err := url.Parse(base)
	if err != nil {
		return ""
	}

	link, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return ""
	}

	return b.ResolveReference(link).String()
}

// SpeciesName turns ".../species/abditibacterium-utsteinense" into
// "Abditibacterium utsteinense".
func SpeciesName(speciesURL string) string {
	slug := speciesURL
	if u, err := url.Parse(speciesURL); err == nil && u.Path != "" {
		slug = u.Path
	}
	slug = path.Base(slug)
	if slug == "." || slug == "/" {
		return ""
	}

	return capitalize(strings.ReplaceAll(slug, "-", " "))
}

// capitalize upper-cases the first rune and lower-cases the rest.
func capitalize(s string) string {
	if s == "" {
		return s
	}
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + strings.ToLower(s[size:])
}

// SplitSequence splits a downloaded FASTA body at its first newline.
// A body with no newline is all header.
func SplitSequence(content string) (header, sequence string) {
	header, sequence, _ = strings.Cut(content, "\n")
	return header, sequence
}
