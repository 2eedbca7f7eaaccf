// Package extractor pulls outbound links and a page title out of HTML.
package extractor

import (
	"bytes"
	"net/url"
	"strings"

	"github.com/markusmobius/go-trafilatura"
	"golang.org/x/net/html"

	"github.com/amosWeiskopf/rankcrawl/pkg/utils"
)

// Options controls what Extract keeps
type Options struct {
	// SkipAssets drops links whose path ends in an image, archive, css/js or pdf extension
	SkipAssets bool
	// Titles enables title extraction through trafilatura metadata
	Titles bool
}

// Extractor handles link and metadata extraction from HTML
type Extractor struct {
	opts Options
}

// Page is what one HTML document yields
type Page struct {
	Links []string
	Title string
}

// New creates a new Extractor instance
func New(opts Options) *Extractor {
	return &Extractor{opts: opts}
}

// Extract parses body fetched from pageURL. Links come back absolute,
// normalized, deduplicated and in document order.
func (e *Extractor) Extract(body []byte, pageURL *url.URL) (Page, error) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return Page{}, err
	}

	var page Page
	var fallbackTitle string
	base := pageURL
	seen := make(map[string]bool)
	var hrefs []string

	var f func(*html.Node)
	f = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "a", "area":
				if href, ok := attr(n, "href"); ok && href != "" {
					hrefs = append(hrefs, href)
				}
			case "base":
				if href, ok := attr(n, "href"); ok {
					if u, err := pageURL.Parse(strings.TrimSpace(href)); err == nil {
						base = u
					}
				}
			case "title":
				if fallbackTitle == "" && n.FirstChild != nil {
					fallbackTitle = strings.TrimSpace(n.FirstChild.Data)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			f(c)
		}
	}
	f(doc)

	// <base> may appear after anchors in malformed documents, so resolve last
	for _, href := range hrefs {
		link, ok := e.resolve(base, href)
		if !ok || seen[link] {
			continue
		}
		seen[link] = true
		page.Links = append(page.Links, link)
	}

	page.Title = fallbackTitle
	if e.opts.Titles {
		if t := metadataTitle(body, pageURL); t != "" {
			page.Title = t
		}
	}
	return page, nil
}

func (e *Extractor) resolve(base *url.URL, href string) (string, bool) {
	lower := strings.ToLower(strings.TrimSpace(href))
	if strings.HasPrefix(lower, "#") ||
		strings.HasPrefix(lower, "mailto:") ||
		strings.HasPrefix(lower, "javascript:") ||
		strings.HasPrefix(lower, "tel:") {
		return "", false
	}
	link, err := utils.ResolveURL(base, href)
	if err != nil {
		return "", false
	}
	if e.opts.SkipAssets && !utils.IsWebpageURL(link) {
		return "", false
	}
	return link, true
}

// metadataTitle asks trafilatura for the document title. Trafilatura refuses
// documents with too little main content, which is common for link hubs, so
// errors just mean "no title".
func metadataTitle(body []byte, pageURL *url.URL) string {
	result, err := trafilatura.Extract(bytes.NewReader(body), trafilatura.Options{
		OriginalURL: pageURL,
	})
	if err != nil || result == nil {
		return ""
	}
	return strings.TrimSpace(result.Metadata.Title)
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val, true
		}
	}
	return "", false
}
