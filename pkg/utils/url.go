// Package utils holds URL helpers shared by the fetcher, the policy gate and
// the frontier.
package utils

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// ErrNotHTTP is returned for URLs that are not absolute http(s) URLs
var ErrNotHTTP = errors.New("not an absolute http(s) URL")

// NormalizeURL turns a raw absolute URL into the key used for deduplication:
// scheme and host lowercased, fragment dropped, empty path replaced by "/".
// The query string is kept.
func NormalizeURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("parse %q: %w", raw, err)
	}
	return normalize(u)
}

func normalize(u *url.URL) (string, error) {
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", fmt.Errorf("%q: %w", u.String(), ErrNotHTTP)
	}
	if u.Host == "" {
		return "", fmt.Errorf("%q: %w", u.String(), ErrNotHTTP)
	}
	out := *u
	out.Scheme = scheme
	out.Host = strings.ToLower(u.Host)
	out.Fragment = ""
	out.RawFragment = ""
	out.User = nil
	if out.Path == "" {
		out.Path = "/"
		out.RawPath = ""
	}
	return out.String(), nil
}

// ResolveURL resolves href against base and normalizes the result
func ResolveURL(base *url.URL, href string) (string, error) {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", fmt.Errorf("parse %q: %w", href, err)
	}
	return normalize(base.ResolveReference(ref))
}

// HostOf returns the lowercase host (with port) of a URL
func HostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Host)
}

// SiteOf returns the registrable domain (eTLD+1) of a URL. Hosts without a
// public suffix, like IP addresses, fall back to the bare hostname.
func SiteOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	hostname := strings.ToLower(u.Hostname())
	if net.ParseIP(hostname) != nil {
		return hostname
	}
	site, err := publicsuffix.EffectiveTLDPlusOne(hostname)
	if err != nil {
		return hostname
	}
	return site
}

var assetExtensions = []string{
	".jpg", ".jpeg", ".png", ".gif", ".svg", ".webp", ".ico",
	".pdf", ".zip", ".gz", ".tar", ".mp4", ".mp3", ".css", ".js",
}

// IsWebpageURL reports whether the path does not end in a known asset extension
func IsWebpageURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	p := strings.ToLower(u.Path)
	for _, ext := range assetExtensions {
		if strings.HasSuffix(p, ext) {
			return false
		}
	}
	return true
}

// IsWebpageMIME reports whether a Content-Type header names an HTML-ish document.
// An empty header is accepted since many small servers omit it.
func IsWebpageMIME(contentType string) bool {
	if contentType == "" {
		return true
	}
	mimeType := strings.TrimSpace(strings.Split(strings.ToLower(contentType), ";")[0])
	switch mimeType {
	case "text/html", "application/xhtml+xml", "application/xhtml", "text/xml", "application/xml", "text/plain":
		return true
	}
	return false
}
