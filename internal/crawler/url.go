package crawler

import (
	"fmt"
	"net/url"
	"path"
	"strings"
)

var unsupportedExtensions = []string{".pdf", ".doc", ".docx", ".ppt", ".pptx", ".xls", ".xlsx"}

// NormalizeURL standardizes a URL to avoid duplicates.
// It lowercases the scheme and host, removes default ports, and sorts query parameters.
// It also removes fragments.
func NormalizeURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)

	if u.Scheme == "http" && strings.HasSuffix(u.Host, ":80") {
		u.Host = strings.TrimSuffix(u.Host, ":80")
	}
	if u.Scheme == "https" && strings.HasSuffix(u.Host, ":443") {
		u.Host = strings.TrimSuffix(u.Host, ":443")
	}

	u.Fragment = ""

	q := u.Query()
	u.RawQuery = q.Encode()

	return u.String(), nil
}

// NormalizeWebsite produces the ledger key for a homepage: scheme and host
// lowercased, a missing scheme defaulted to https, trailing slash removed.
func NormalizeWebsite(raw string) string {
	value := strings.TrimSpace(raw)
	if value == "" {
		return ""
	}
	if !strings.Contains(value, "://") {
		value = "https://" + value
	}
	normalized, err := NormalizeURL(value)
	if err != nil {
		return strings.TrimRight(strings.ToLower(value), "/")
	}
	return strings.TrimRight(normalized, "/")
}

// JoinPath resolves a site-relative path such as "/programs" against website.
func JoinPath(website, relPath string) (string, error) {
	base, err := url.Parse(NormalizeWebsite(website))
	if err != nil {
		return "", fmt.Errorf("parse website: %w", err)
	}
	joined := *base
	joined.Path = path.Join("/", base.Path, relPath)
	joined.RawQuery = ""
	joined.Fragment = ""
	return joined.String(), nil
}

// ResolveLink turns an anchor href into an absolute http(s) URL without a
// fragment. It returns false for mail, phone, script and fragment-only links.
func ResolveLink(base *url.URL, href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return "", false
	}
	lower := strings.ToLower(href)
	for _, scheme := range []string{"mailto:", "tel:", "javascript:", "data:"} {
		if strings.HasPrefix(lower, scheme) {
			return "", false
		}
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	abs := base.ResolveReference(ref)
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return "", false
	}
	abs.Fragment = ""
	return abs.String(), true
}

// SameSite compares hosts case-insensitively, treating a leading "www." as
// insignificant.
func SameSite(a, b *url.URL) bool {
	if a == nil || b == nil {
		return false
	}
	return siteHost(a.Hostname()) == siteHost(b.Hostname())
}

// HostOf returns the lowercased host of rawURL, or "" when it cannot be parsed.
func HostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// HasUnsupportedExtension reports whether the URL path points at an office
// document rather than a web page.
func HasUnsupportedExtension(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	p := strings.ToLower(u.Path)
	for _, ext := range unsupportedExtensions {
		if strings.HasSuffix(p, ext) {
			return true
		}
	}
	return false
}

func siteHost(host string) string {
	return strings.TrimPrefix(strings.ToLower(host), "www.")
}
