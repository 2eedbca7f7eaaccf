// Package fetcher is the HTTP side of the crawl: it downloads pages, extracts
// their links and serves robots.txt documents to the policy gate.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/amosWeiskopf/rankcrawl/internal/models"
	"github.com/amosWeiskopf/rankcrawl/pkg/extractor"
	"github.com/amosWeiskopf/rankcrawl/pkg/robots"
	"github.com/amosWeiskopf/rankcrawl/pkg/utils"
)

const (
	DefaultUserAgent     = "rankcrawl/1.0"
	DefaultTimeout       = 15 * time.Second
	DefaultRobotsTimeout = 5 * time.Second
	DefaultMaxBodyBytes  = 5 << 20

	maxRobotsBytes = 512 << 10
)

// Fetcher retrieves one URL and reports its outbound links
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) models.FetchResult
}

// Config holds fetcher settings
type Config struct {
	UserAgent     string
	Timeout       time.Duration
	RobotsTimeout time.Duration
	MaxBodyBytes  int64
	SkipAssets    bool
	Titles        bool
}

// HTTPFetcher implements Fetcher and robots.RobotsFetcher over net/http
type HTTPFetcher struct {
	client    *http.Client
	cfg       Config
	extractor *extractor.Extractor
	logger    *zap.Logger
}

var (
	_ Fetcher              = (*HTTPFetcher)(nil)
	_ robots.RobotsFetcher = (*HTTPFetcher)(nil)
)

// New creates an HTTPFetcher with a pooled transport
func New(cfg Config, logger *zap.Logger) *HTTPFetcher {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        50,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     30 * time.Second,
	}
	return NewWithClient(&http.Client{Transport: transport}, cfg, logger)
}

// NewWithClient creates an HTTPFetcher around an existing client
func NewWithClient(client *http.Client, cfg Config, logger *zap.Logger) *HTTPFetcher {
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.RobotsTimeout <= 0 {
		cfg.RobotsTimeout = DefaultRobotsTimeout
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPFetcher{
		client:    client,
		cfg:       cfg,
		extractor: extractor.New(extractor.Options{SkipAssets: cfg.SkipAssets, Titles: cfg.Titles}),
		logger:    logger,
	}
}

// Fetch downloads rawURL. Transport errors and non-200 statuses come back as
// failures; non-HTML documents succeed with no links.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) models.FetchResult {
	ctx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return models.Failed(rawURL, 0, fmt.Sprintf("build request: %v", err))
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return models.Failed(rawURL, 0, err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// drain a little so the connection can be reused
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return models.Failed(rawURL, resp.StatusCode, fmt.Sprintf("status %d", resp.StatusCode))
	}

	contentType := resp.Header.Get("Content-Type")
	if !utils.IsWebpageMIME(contentType) {
		f.logger.Debug("non-webpage MIME", zap.String("url", rawURL), zap.String("content_type", contentType))
		return models.Succeeded(rawURL, resp.StatusCode, nil, "")
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.cfg.MaxBodyBytes))
	if err != nil {
		return models.Failed(rawURL, resp.StatusCode, fmt.Sprintf("read body: %v", err))
	}

	// links resolve against the final URL after redirects
	base := resp.Request.URL
	if base == nil {
		base, _ = url.Parse(rawURL)
	}
	page, err := f.extractor.Extract(body, base)
	if err != nil {
		f.logger.Debug("html parse failed", zap.String("url", rawURL), zap.Error(err))
		return models.Succeeded(rawURL, resp.StatusCode, nil, "")
	}
	return models.Succeeded(rawURL, resp.StatusCode, page.Links, page.Title)
}

// FetchRobots implements robots.RobotsFetcher
func (f *HTTPFetcher) FetchRobots(ctx context.Context, scheme, host string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, f.cfg.RobotsTimeout)
	defer cancel()

	robotsURL := (&url.URL{Scheme: scheme, Host: host, Path: "/robots.txt"}).String()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return "", fmt.Errorf("build robots request: %w", err)
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", robotsURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", robots.StatusError(resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRobotsBytes))
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read %s: %w", robotsURL, err)
	}
	return string(body), nil
}
