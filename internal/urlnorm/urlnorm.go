// Package urlnorm canonicalizes and scopes URLs for the crawl frontier.
// Equivalent URLs normalize to identical strings, so the normalized form
// doubles as the dedup key.
package urlnorm

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"net/url"
	"path"
	"regexp"
	"sort"
	"strings"
)

// trackingParams are advertising and analytics query parameters stripped
// during normalization; they never affect page content.
var trackingParams = map[string]struct{}{
	"utm_source":   {},
	"utm_medium":   {},
	"utm_campaign": {},
	"utm_term":     {},
	"utm_content":  {},
	"fbclid":       {},
	"gclid":        {},
	"msclkid":      {},
}

var assetExtensions = map[string]struct{}{
	".jpg": {}, ".jpeg": {}, ".png": {}, ".gif": {}, ".webp": {}, ".svg": {},
	".ico": {}, ".css": {}, ".js": {}, ".map": {}, ".json": {}, ".xml": {},
	".pdf": {}, ".zip": {}, ".rar": {}, ".7z": {}, ".gz": {}, ".tar": {},
	".mp4": {}, ".mp3": {}, ".mov": {}, ".avi": {},
	".woff": {}, ".woff2": {}, ".ttf": {}, ".eot": {},
}

var unsafeFilenameChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)

// Normalizer resolves, canonicalizes, and scope-filters discovered links
// against a single seed site. It is side-effect free and safe for reuse
// across pages of one crawl.
type Normalizer struct {
	seedHost  string
	keepQuery bool
}

// New builds a Normalizer scoped to the seed URL's site. The www prefix is
// ignored when comparing hosts.
func New(seedURL string, keepQuery bool) (*Normalizer, error) {
	u, err := url.Parse(seedURL)
	if err != nil {
		return nil, fmt.Errorf("parse seed URL: %w", err)
	}
	host := stripWWW(u.Hostname())
	if host == "" {
		return nil, fmt.Errorf("seed URL has no host: %q", seedURL)
	}
	return &Normalizer{seedHost: host, keepQuery: keepQuery}, nil
}

// Resolve resolves href against base and returns the canonical absolute
// form without the site scope check, so off-site links still resolve. ok
// is false when the link is discarded entirely: empty or fragment-only
// refs, non-http(s) schemes (mailto:, tel:, javascript:), and
// asset-extension paths.
func (n *Normalizer) Resolve(href, baseURL string) (normalized string, ok bool) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return "", false
	}
	lower := strings.ToLower(href)
	for _, scheme := range []string{"javascript:", "mailto:", "tel:", "data:"} {
		if strings.HasPrefix(lower, scheme) {
			return "", false
		}
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		return "", false
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	abs := base.ResolveReference(ref)
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return "", false
	}
	if looksLikeAsset(abs.Path) {
		return "", false
	}
	return canonicalize(abs, n.keepQuery), true
}

// Normalize is Resolve plus the site scope check: off-site hosts are
// filtered out. The result is a valid frontier key.
func (n *Normalizer) Normalize(href, baseURL string) (normalized string, ok bool) {
	u, ok := n.Resolve(href, baseURL)
	if !ok {
		return "", false
	}
	if !n.SameSite(u) {
		return "", false
	}
	return u, true
}

// SameSite reports whether raw points at the seed site, www-insensitive.
func (n *Normalizer) SameSite(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return stripWWW(u.Hostname()) == n.seedHost
}

// Canonicalize returns the stable canonical form of an absolute URL:
// lowercased scheme and host, default port removed, trailing slash trimmed
// (root kept), fragment dropped, query either dropped or kept with tracking
// parameters stripped and keys sorted.
func Canonicalize(raw string, keepQuery bool) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("canonicalize %q: %w", raw, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("canonicalize %q: missing scheme or host", raw)
	}
	return canonicalize(u, keepQuery), nil
}

func canonicalize(u *url.URL, keepQuery bool) string {
	out := *u
	out.Scheme = strings.ToLower(u.Scheme)
	out.Host = normalizeHost(out.Scheme, u)
	out.Path = normalizePath(u.Path)
	out.Fragment = ""
	out.RawFragment = ""
	if keepQuery {
		out.RawQuery = cleanQuery(u.Query())
	} else {
		out.RawQuery = ""
	}
	return out.String()
}

func normalizeHost(scheme string, u *url.URL) string {
	host := strings.ToLower(u.Hostname())
	port := u.Port()
	if port == "" {
		return host
	}
	if (scheme == "http" && port == "80") || (scheme == "https" && port == "443") {
		return host
	}
	return host + ":" + port
}

func normalizePath(p string) string {
	if p == "" || p == "/" {
		return "/"
	}
	cleaned := path.Clean(p)
	if cleaned == "/" {
		return "/"
	}
	return strings.TrimSuffix(cleaned, "/")
}

func cleanQuery(values url.Values) string {
	keys := make([]string, 0, len(values))
	for k := range values {
		if _, tracking := trackingParams[k]; !tracking {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return ""
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		for j, v := range values[k] {
			if i > 0 || j > 0 {
				b.WriteByte('&')
			}
			b.WriteString(url.QueryEscape(k))
			b.WriteByte('=')
			b.WriteString(url.QueryEscape(v))
		}
	}
	return b.String()
}

func looksLikeAsset(p string) bool {
	ext := strings.ToLower(path.Ext(p))
	_, ok := assetExtensions[ext]
	return ok
}

func stripWWW(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	return strings.TrimPrefix(host, "www.")
}

// SafeFilename derives a filesystem-safe name for a page's raw HTML from its
// URL: host, flattened path, and a short digest to keep names unique after
// sanitization.
func SafeFilename(raw string) string {
	u, err := url.Parse(raw)
	host := "site"
	p := "/"
	if err == nil {
		if h := u.Hostname(); h != "" {
			host = h
		}
		p = u.Path
	}

	base := "home"
	if p != "" && p != "/" {
		base = strings.ReplaceAll(strings.Trim(p, "/"), "/", "_")
	}
	base = unsafeFilenameChars.ReplaceAllString(base, "_")
	base = strings.Trim(base, " .")
	if base == "" {
		base = "page"
	}

	sum := sha1.Sum([]byte(raw))
	return fmt.Sprintf("%s_%s_%s.html", host, base, hex.EncodeToString(sum[:])[:10])
}
