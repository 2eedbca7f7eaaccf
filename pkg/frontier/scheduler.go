// Package frontier runs the breadth-first crawl: a fixed pool of workers
// shares one queue, one link graph and one policy gate until the unique-URL
// target is reached or nothing is left to visit.
package frontier

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/amosWeiskopf/rankcrawl/internal/models"
	"github.com/amosWeiskopf/rankcrawl/pkg/fetcher"
	"github.com/amosWeiskopf/rankcrawl/pkg/graph"
	"github.com/amosWeiskopf/rankcrawl/pkg/robots"
	"github.com/amosWeiskopf/rankcrawl/pkg/utils"
)

var (
	// ErrInvalidArgument is returned for a target or worker count below one
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrInvalidSeed is returned when the seed is not an absolute http(s) URL
	ErrInvalidSeed = errors.New("invalid seed URL")
)

// DefaultRetryBackoff is the pause before the single retry of a failed fetch
const DefaultRetryBackoff = 100 * time.Millisecond

// Scope limits which discovered links are enqueued
type Scope string

const (
	ScopeAny  Scope = "any"
	ScopeHost Scope = "host"
	ScopeSite Scope = "site"
)

// ParseScope validates a scope name. The empty string means ScopeAny.
func ParseScope(s string) (Scope, error) {
	switch Scope(s) {
	case "", ScopeAny:
		return ScopeAny, nil
	case ScopeHost, ScopeSite:
		return Scope(s), nil
	}
	return "", fmt.Errorf("%w: unknown scope %q", ErrInvalidArgument, s)
}

// Recorder receives crawl events, typically for metrics
type Recorder interface {
	VisitRecorded(v models.Visit)
	EdgesRecorded(n int)
	WorkerActive(delta int)
}

type nopRecorder struct{}

func (nopRecorder) VisitRecorded(models.Visit) {}
func (nopRecorder) EdgesRecorded(int)          {}
func (nopRecorder) WorkerActive(int)           {}

// Options tunes a Scheduler
type Options struct {
	Scope Scope
	// MaxRetries is clamped to 0 or 1
	MaxRetries   int
	RetryBackoff time.Duration
	// RequestsPerSecond caps fetches across all workers; 0 means unlimited
	RequestsPerSecond float64
	// ProgressInterval is how often progress is logged; 0 disables it
	ProgressInterval time.Duration
	Recorder         Recorder
}

// Scheduler holds the collaborators shared by every run. Per-run state lives
// in Run, so one Scheduler can serve several concurrent runs.
type Scheduler struct {
	fetcher fetcher.Fetcher
	gate    robots.Checker
	opts    Options
	logger  *zap.Logger
}

// Outcome is everything a finished run produced
type Outcome struct {
	Seed   string
	Target int
	// Visited holds the claimed keys in claim order
	Visited []string
	// Visits holds one record per claimed key, in the same order
	Visits []models.Visit
	// Refused holds the claimed URLs the policy gate turned away, in claim
	// order. They count toward Target but were never fetched.
	Refused []models.Visit
	Graph   *graph.Store
	// Partial is set when fewer than Target URLs were visited
	Partial    bool
	Fetched    int
	Failed     int
	Disallowed int
	Elapsed    time.Duration
}

// New creates a Scheduler. A nil gate permits every URL.
func New(f fetcher.Fetcher, gate robots.Checker, opts Options, logger *zap.Logger) *Scheduler {
	if gate == nil {
		gate = robots.AllowAll{}
	}
	if opts.Scope == "" {
		opts.Scope = ScopeAny
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.MaxRetries > 1 {
		opts.MaxRetries = 1
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = DefaultRetryBackoff
	}
	if opts.Recorder == nil {
		opts.Recorder = nopRecorder{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{fetcher: f, gate: gate, opts: opts, logger: logger}
}

type run struct {
	s       *Scheduler
	target  int
	seed    string
	graph   *graph.Store
	queue   *Queue
	limiter *rate.Limiter
	logger  *zap.Logger

	enqueued sync.Map

	mu     sync.Mutex
	visits map[string]models.Visit
}

// Run crawls from seed until target unique URLs have been visited or the
// frontier is exhausted. On cancellation it returns what was gathered so far
// together with ctx.Err().
func (s *Scheduler) Run(ctx context.Context, seed string, target, workers int) (*Outcome, error) {
	if target < 1 {
		return nil, fmt.Errorf("%w: target %d < 1", ErrInvalidArgument, target)
	}
	if workers < 1 {
		return nil, fmt.Errorf("%w: workers %d < 1", ErrInvalidArgument, workers)
	}
	key, err := utils.NormalizeURL(seed)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSeed, err)
	}

	r := &run{
		s:      s,
		target: target,
		seed:   key,
		graph:  graph.NewStore(),
		queue:  NewQueue(),
		logger: s.logger.With(zap.String("seed", key)),
		visits: make(map[string]models.Visit),
	}
	if s.opts.RequestsPerSecond > 0 {
		burst := int(s.opts.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		r.limiter = rate.NewLimiter(rate.Limit(s.opts.RequestsPerSecond), burst)
	}

	r.graph.AddNode(key)
	r.enqueued.Store(key, struct{}{})
	r.queue.Push(key)

	started := time.Now()
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		<-runCtx.Done()
		r.queue.Close()
	}()
	if s.opts.ProgressInterval > 0 {
		go r.trackProgress(runCtx, s.opts.ProgressInterval)
	}

	r.logger.Info("crawl started", zap.Int("target", target), zap.Int("workers", workers),
		zap.String("scope", string(s.opts.Scope)))

	g, gctx := errgroup.WithContext(runCtx)
	for i := 0; i < workers; i++ {
		id := i
		g.Go(func() error {
			r.work(gctx, id)
			return nil
		})
	}
	_ = g.Wait()

	out := r.outcome(time.Since(started))
	nodes, edges := r.graph.Stats()
	r.logger.Info("crawl finished",
		zap.Int("visited", len(out.Visited)),
		zap.Int("fetched", out.Fetched),
		zap.Int("failed", out.Failed),
		zap.Int("disallowed", out.Disallowed),
		zap.Int("nodes", nodes),
		zap.Int("edges", edges),
		zap.Bool("partial", out.Partial),
		zap.Duration("elapsed", out.Elapsed))

	if err := ctx.Err(); err != nil {
		out.Partial = true
		return out, err
	}
	return out, nil
}

func (r *run) work(ctx context.Context, id int) {
	for {
		key, ok := r.queue.Pop()
		if !ok {
			return
		}
		r.s.opts.Recorder.WorkerActive(1)
		r.process(ctx, id, key)
		r.s.opts.Recorder.WorkerActive(-1)
		r.queue.Done()
	}
}

func (r *run) process(ctx context.Context, id int, key string) {
	switch r.graph.Claim(key, r.target) {
	case graph.AlreadyVisited:
		return
	case graph.BudgetExhausted:
		// nothing left in the queue can be claimed any more
		r.queue.Close()
		return
	}

	started := time.Now()
	visit := models.Visit{URL: key, Worker: id}
	defer func() {
		visit.Duration = time.Since(started)
		r.record(visit)
	}()

	if !r.s.gate.Permits(ctx, key) {
		visit.Status = models.StatusDisallowed
		visit.Reason = "disallowed by robots.txt"
		return
	}

	res := r.fetch(ctx, key)
	visit.StatusCode = res.StatusCode
	if !res.OK() {
		visit.Status = models.StatusFailed
		visit.Reason = res.Reason
		r.logger.Debug("fetch failed", zap.String("url", key), zap.Int("status", res.StatusCode),
			zap.String("reason", res.Reason))
		return
	}

	visit.Status = models.StatusFetched
	visit.Title = res.Title
	visit.Outbound = len(res.Links)

	added := 0
	for _, link := range res.Links {
		if r.graph.AddEdge(key, link) {
			added++
		}
		r.enqueue(link)
	}
	r.s.opts.Recorder.EdgesRecorded(added)
}

// enqueue pushes link once, while budget remains and when it is in scope
func (r *run) enqueue(link string) {
	if r.graph.VisitedCount() >= r.target || r.graph.IsVisited(link) || !r.inScope(link) {
		return
	}
	if _, loaded := r.enqueued.LoadOrStore(link, struct{}{}); loaded {
		return
	}
	r.queue.Push(link)
}

func (r *run) inScope(link string) bool {
	switch r.s.opts.Scope {
	case ScopeHost:
		return utils.HostOf(link) == utils.HostOf(r.seed)
	case ScopeSite:
		return utils.SiteOf(link) == utils.SiteOf(r.seed)
	default:
		return true
	}
}

// fetch applies the rate limit and the bounded retry. Only transport errors,
// 429 and 5xx are retried.
func (r *run) fetch(ctx context.Context, key string) models.FetchResult {
	var res models.FetchResult
	for attempt := 0; attempt <= r.s.opts.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(r.s.opts.RetryBackoff):
			case <-ctx.Done():
				return res
			}
		}
		if r.limiter != nil {
			if err := r.limiter.Wait(ctx); err != nil {
				return models.Failed(key, 0, fmt.Sprintf("rate limiter: %v", err))
			}
		}
		res = r.s.fetcher.Fetch(ctx, key)
		if res.OK() || !retryable(res) || ctx.Err() != nil {
			return res
		}
		r.logger.Debug("retrying fetch", zap.String("url", key), zap.Int("attempt", attempt+1))
	}
	return res
}

func retryable(res models.FetchResult) bool {
	return res.StatusCode == 0 || res.StatusCode == 429 || res.StatusCode >= 500
}

func (r *run) record(v models.Visit) {
	r.mu.Lock()
	r.visits[v.URL] = v
	r.mu.Unlock()
	r.s.opts.Recorder.VisitRecorded(v)
}

func (r *run) outcome(elapsed time.Duration) *Outcome {
	order := r.graph.Order()
	out := &Outcome{
		Seed:    r.seed,
		Target:  r.target,
		Visited: order,
		Visits:  make([]models.Visit, 0, len(order)),
		Graph:   r.graph,
		Partial: len(order) < r.target,
		Elapsed: elapsed,
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, key := range order {
		v, ok := r.visits[key]
		if !ok {
			// claimed but interrupted before a record was written
			v = models.Visit{URL: key, Status: models.StatusFailed, Reason: "interrupted"}
		}
		switch v.Status {
		case models.StatusFetched:
			out.Fetched++
		case models.StatusDisallowed:
			out.Refused = append(out.Refused, v)
		default:
			out.Failed++
		}
		out.Visits = append(out.Visits, v)
	}
	out.Disallowed = len(out.Refused)
	return out
}

func (r *run) trackProgress(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.logger.Info("crawl progress",
				zap.Int("visited", r.graph.VisitedCount()),
				zap.Int("target", r.target),
				zap.Int("queued", r.queue.Len()),
				zap.Int("in_flight", r.queue.InFlight()))
		}
	}
}
