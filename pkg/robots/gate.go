// Package robots is the per-host crawl policy gate.
//
// Each host's robots.txt is fetched lazily, at most once per run, and cached
// for the rest of the run. Concurrent first lookups for one host share a single
// fetch; lookups for other hosts proceed independently.
//
// When the document cannot be fetched, answers with a non-200 status, or cannot
// be parsed, the host is treated as permit-all (fail-open). Config.FailClosed
// flips that to deny-all.
package robots

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// ErrStatus is wrapped by fetchers when robots.txt answers with a non-200 status
var ErrStatus = errors.New("robots.txt unavailable")

// RobotsFetcher retrieves the raw robots.txt document of a host
type RobotsFetcher interface {
	FetchRobots(ctx context.Context, scheme, host string) (string, error)
}

// Observer receives one call per robots fetch attempt
type Observer interface {
	ObserveRobotsFetch(host string, err error)
}

// Checker answers whether a URL may be fetched
type Checker interface {
	Permits(ctx context.Context, rawURL string) bool
}

// Config holds gate settings
type Config struct {
	UserAgent  string
	FailClosed bool
	Observer   Observer
}

// Gate caches one Policy per host
type Gate struct {
	fetcher RobotsFetcher
	cfg     Config
	logger  *zap.Logger
	now     func() time.Time

	cache sync.Map // host -> *Policy
	group singleflight.Group

	fetches  atomic.Int64
	failures atomic.Int64
}

// Stats describes gate activity
type Stats struct {
	Hosts    int
	Fetches  int64
	Failures int64
}

// New creates a Gate
func New(fetcher RobotsFetcher, cfg Config, logger *zap.Logger) *Gate {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{
		fetcher: fetcher,
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
	}
}

// Permits implements Checker. URLs that cannot be parsed are refused.
func (g *Gate) Permits(ctx context.Context, rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return false
	}
	policy := g.PolicyFor(ctx, u.Scheme, u.Host)

	target := u.EscapedPath()
	if u.RawQuery != "" {
		target += "?" + u.RawQuery
	}
	allowed := policy.Allows(target)
	if !allowed {
		g.logger.Debug("robots disallow", zap.String("url", rawURL))
	}
	return allowed
}

// PolicyFor returns the cached policy for host, fetching it on first use.
// Concurrent callers share one fetch, and each stops waiting when its own ctx
// is done. The shared fetch is not tied to any caller, so one caller's
// cancellation never leaves the others with a fallback policy.
func (g *Gate) PolicyFor(ctx context.Context, scheme, host string) *Policy {
	key := strings.ToLower(host)
	if p, ok := g.cache.Load(key); ok {
		return p.(*Policy)
	}

	detached := context.WithoutCancel(ctx)
	ch := g.group.DoChan(key, func() (any, error) {
		if p, ok := g.cache.Load(key); ok {
			return p, nil
		}
		p := g.load(detached, scheme, key)
		g.cache.Store(key, p)
		return p, nil
	})

	select {
	case res := <-ch:
		return res.Val.(*Policy)
	case <-ctx.Done():
		// answered for this caller only; the cache is filled by the shared fetch
		return g.fallback(key, ctx.Err())
	}
}

// load fetches and parses robots.txt, falling back per Config.FailClosed
func (g *Gate) load(ctx context.Context, scheme, host string) *Policy {
	if scheme == "" {
		scheme = "http"
	}
	g.fetches.Add(1)
	doc, err := g.fetcher.FetchRobots(ctx, scheme, host)
	if err == nil {
		var policy *Policy
		policy, err = Parse(host, doc, g.cfg.UserAgent)
		if err == nil {
			policy.FetchedAt = g.now()
			g.observe(host, nil)
			g.logger.Debug("robots loaded",
				zap.String("host", host),
				zap.String("agent", policy.Agent),
				zap.Int("allow_rules", len(policy.Allow)),
				zap.Int("disallow_rules", len(policy.Disallow)))
			return policy
		}
	}

	g.failures.Add(1)
	g.observe(host, err)
	if g.cfg.FailClosed {
		g.logger.Warn("robots unavailable; denying host", zap.String("host", host), zap.Error(err))
	} else {
		g.logger.Warn("robots unavailable; allowing host", zap.String("host", host), zap.Error(err))
	}
	return g.fallback(host, err)
}

func (g *Gate) fallback(host string, err error) *Policy {
	if g.cfg.FailClosed {
		return DenyAllPolicy(host, err.Error(), g.now())
	}
	return PermitAllPolicy(host, err.Error(), g.now())
}

func (g *Gate) observe(host string, err error) {
	if g.cfg.Observer != nil {
		g.cfg.Observer.ObserveRobotsFetch(host, err)
	}
}

// Stats returns a point-in-time view of the gate
func (g *Gate) Stats() Stats {
	hosts := 0
	g.cache.Range(func(_, _ any) bool {
		hosts++
		return true
	})
	return Stats{Hosts: hosts, Fetches: g.fetches.Load(), Failures: g.failures.Load()}
}

// Cached returns the cached policy for host, if any
func (g *Gate) Cached(host string) (*Policy, bool) {
	p, ok := g.cache.Load(strings.ToLower(host))
	if !ok {
		return nil, false
	}
	return p.(*Policy), true
}

// AllowAll permits every URL. It stands in for the gate when robots.txt is
// not respected.
type AllowAll struct{}

// Permits implements Checker
func (AllowAll) Permits(context.Context, string) bool { return true }

// StatusError reports a non-200 robots.txt response
func StatusError(code int) error {
	return fmt.Errorf("%w: status %d", ErrStatus, code)
}
