// Package app wires configuration into a crawl, ranks the result and writes
// the report. The CLI is a thin shell around it.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/amosWeiskopf/rankcrawl/internal/config"
	"github.com/amosWeiskopf/rankcrawl/internal/models"
	"github.com/amosWeiskopf/rankcrawl/pkg/analyzer"
	"github.com/amosWeiskopf/rankcrawl/pkg/fetcher"
	"github.com/amosWeiskopf/rankcrawl/pkg/frontier"
	"github.com/amosWeiskopf/rankcrawl/pkg/graph"
	"github.com/amosWeiskopf/rankcrawl/pkg/metrics"
	"github.com/amosWeiskopf/rankcrawl/pkg/rank"
	"github.com/amosWeiskopf/rankcrawl/pkg/reporter"
	"github.com/amosWeiskopf/rankcrawl/pkg/results"
	"github.com/amosWeiskopf/rankcrawl/pkg/robots"
	"github.com/amosWeiskopf/rankcrawl/pkg/storage"
)

// App runs one configured crawl
type App struct {
	cfg    *config.Config
	logger *zap.Logger
	client *http.Client
	stdout io.Writer
	stderr io.Writer
	runID  string
	now    func() time.Time
}

// Option customizes an App
type Option func(*App)

// WithHTTPClient replaces the default pooled client
func WithHTTPClient(c *http.Client) Option {
	return func(a *App) { a.client = c }
}

// WithOutput redirects the report and the partial-result note
func WithOutput(stdout, stderr io.Writer) Option {
	return func(a *App) {
		a.stdout = stdout
		a.stderr = stderr
	}
}

// WithRunID fixes the run identifier instead of generating one
func WithRunID(id string) Option {
	return func(a *App) { a.runID = id }
}

// New creates an App
func New(cfg *config.Config, logger *zap.Logger, opts ...Option) *App {
	a := &App{
		cfg:    cfg,
		stdout: io.Discard,
		stderr: io.Discard,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.runID == "" {
		a.runID = uuid.NewString()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	a.logger = logger.With(zap.String("run_id", a.runID))
	return a
}

// RunID returns the identifier attached to every log line of this run
func (a *App) RunID() string {
	return a.runID
}

// Crawl runs the whole pipeline for seed and renders the report. When ctx is
// cancelled mid-crawl the partial report is still rendered and ctx.Err() is
// returned.
func (a *App) Crawl(ctx context.Context, seed string) (*models.Report, error) {
	cfg := a.cfg
	started := a.now()

	collector, err := metrics.New()
	if err != nil {
		return nil, err
	}

	fcfg := fetcher.Config{
		UserAgent:     cfg.Crawler.UserAgent,
		Timeout:       cfg.Crawler.Timeout,
		RobotsTimeout: cfg.Robots.Timeout,
		MaxBodyBytes:  cfg.Crawler.MaxBodyBytes,
		SkipAssets:    cfg.Crawler.SkipAssets,
		Titles:        cfg.Crawler.ExtractTitles,
	}
	var f *fetcher.HTTPFetcher
	if a.client != nil {
		f = fetcher.NewWithClient(a.client, fcfg, a.logger)
	} else {
		f = fetcher.New(fcfg, a.logger)
	}

	var gate robots.Checker = robots.AllowAll{}
	var robotsGate *robots.Gate
	if cfg.Robots.Respect {
		robotsGate = robots.New(f, robots.Config{
			UserAgent:  cfg.Crawler.UserAgent,
			FailClosed: cfg.Robots.FailClosed,
			Observer:   collector,
		}, a.logger)
		gate = robotsGate
		if cfg.Robots.FailClosed {
			a.logger.Info("robots.txt failures deny the host")
		} else {
			a.logger.Info("robots.txt failures allow the host")
		}
	} else {
		a.logger.Warn("robots.txt is not respected")
	}

	scope, err := frontier.ParseScope(cfg.Crawler.Scope)
	if err != nil {
		return nil, err
	}
	sched := frontier.New(f, gate, frontier.Options{
		Scope:             scope,
		MaxRetries:        cfg.Crawler.MaxRetries,
		RequestsPerSecond: cfg.Crawler.RequestsPerSecond,
		ProgressInterval:  cfg.Crawler.ProgressInterval,
		Recorder:          collector,
	}, a.logger)

	out, crawlErr := sched.Run(ctx, seed, cfg.Crawler.Target, cfg.Crawler.Workers)
	if out == nil {
		return nil, crawlErr
	}

	report := &models.Report{
		RunID:     a.runID,
		Seed:      out.Seed,
		Mode:      cfg.Crawler.Mode,
		Target:    cfg.Crawler.Target,
		StartedAt: started,
	}
	basic := results.Basic(out.Visited, cfg.Crawler.Target)
	report.Partial = basic.Partial || out.Partial

	nodes, edges := out.Graph.Stats()
	report.Stats = models.CrawlStats{
		Visited:    len(basic.URLs),
		Fetched:    out.Fetched,
		Failed:     out.Failed,
		Disallowed: out.Disallowed,
		Nodes:      nodes,
		Edges:      edges,
	}
	if robotsGate != nil {
		report.Stats.RobotsHosts = robotsGate.Stats().Hosts
	}

	snap := out.Graph.Snapshot()
	summary := analyzer.New(cfg.Output.TopHosts).Analyze(snap, out.Seed)
	report.Graph = &summary
	var scores map[string]float64
	switch cfg.Crawler.Mode {
	case "pagerank":
		rankSnap := snap
		if cfg.Rank.Scope == "visited" {
			rankSnap = snap.Induced()
		}
		res, err := rank.Compute(rankSnap, rank.Options{
			Damping:       cfg.Rank.Damping,
			MaxIterations: cfg.Rank.MaxIterations,
			Tolerance:     cfg.Rank.Tolerance,
		})
		if err != nil {
			return nil, fmt.Errorf("rank: %w", err)
		}
		collector.RankFinished(res.Iterations, res.Delta)
		if !res.Converged {
			a.logger.Warn("pagerank did not converge",
				zap.Int("iterations", res.Iterations), zap.Float64("delta", res.Delta))
		}
		scores = res.Scores
		opts := results.RankedOptions{Top: cfg.Output.Top}
		if cfg.Output.ExcludeSeed {
			opts.ExcludeSeed = out.Seed
		}
		report.Ranked = results.Ranked(res, opts)
		report.Stats.RankIterations = res.Iterations
		report.Stats.RankConverged = res.Converged
		report.Stats.RankDelta = res.Delta
	default:
		report.URLs = basic.URLs
	}

	report.FinishedAt = a.now()
	report.Elapsed = report.FinishedAt.Sub(started)

	if path := cfg.Storage.ExportPath; path != "" {
		if err := a.export(ctx, path, report, snap, out.Visits, scores); err != nil {
			return nil, err
		}
	}
	if path := cfg.Metrics.TextfilePath; path != "" {
		if err := collector.WriteTextfile(path); err != nil {
			return nil, err
		}
		a.logger.Debug("metrics written", zap.String("path", path))
	}

	if err := reporter.New().Render(a.stdout, report, cfg.Output.Format); err != nil {
		return nil, fmt.Errorf("render report: %w", err)
	}
	if report.Partial {
		fmt.Fprintf(a.stderr, "partial result: visited %d of %d requested URLs\n", report.Stats.Visited, report.Target)
	}
	return report, crawlErr
}

// export writes the graph even when the crawl was cancelled
func (a *App) export(ctx context.Context, path string, report *models.Report, snap *graph.Snapshot, visits []models.Visit, scores map[string]float64) error {
	db, err := storage.Open(path)
	if err != nil {
		return err
	}
	defer db.Close()

	err = db.Export(context.WithoutCancel(ctx), storage.Run{
		RunID:    report.RunID,
		Seed:     report.Seed,
		Mode:     report.Mode,
		Started:  report.StartedAt,
		Finished: report.FinishedAt,
		Partial:  report.Partial,
		Snapshot: snap,
		Visits:   visits,
		Scores:   scores,
	})
	if err != nil {
		return err
	}
	a.logger.Info("graph exported", zap.String("path", db.Path()), zap.Int("nodes", snap.Len()))
	return nil
}

// IsInterrupted reports whether err came from a cancelled crawl
func IsInterrupted(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
