package app

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/amosWeiskopf/rankcrawl/internal/config"
	"github.com/amosWeiskopf/rankcrawl/pkg/frontier"
	"github.com/amosWeiskopf/rankcrawl/pkg/storage"
)

func newSite(t *testing.T) *httptest.Server {
	t.Helper()
	pages := map[string][]string{
		"/":          {"/a", "/b", "/private/x"},
		"/a":         {"/b", "/"},
		"/b":         {"/a"},
		"/private/x": {"/"},
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "User-agent: *\nDisallow: /private\n")
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		links, ok := pages[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		if strings.HasPrefix(r.URL.Path, "/private") {
			t.Errorf("disallowed page fetched: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprintf(w, "<html><head><title>page %s</title></head><body>", r.URL.Path)
		for _, l := range links {
			fmt.Fprintf(w, `<a href="%s">%s</a>`, l, l)
		}
		fmt.Fprint(w, "</body></html>")
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	chdir(t, t.TempDir())
	cfg, err := config.Load(nil, "")
	require.NoError(t, err)
	cfg.Crawler.ProgressInterval = 0
	return cfg
}

func lines(s string) []string {
	return strings.Split(strings.TrimRight(s, "\n"), "\n")
}

func TestCrawlBasic(t *testing.T) {
	server := newSite(t)
	cfg := testConfig(t)
	cfg.Crawler.Target = 10
	cfg.Crawler.Workers = 2

	var stdout, stderr bytes.Buffer
	a := New(cfg, zap.NewNop(), WithHTTPClient(server.Client()), WithOutput(&stdout, &stderr), WithRunID("run-basic"))

	report, err := a.Crawl(context.Background(), server.URL)
	require.NoError(t, err)

	got := lines(stdout.String())
	sort.Strings(got)
	// the disallowed page is claimed and listed, but never fetched
	assert.Equal(t, []string{server.URL + "/", server.URL + "/a", server.URL + "/b", server.URL + "/private/x"}, got)
	assert.True(t, report.Partial)
	assert.Contains(t, stderr.String(), "partial result: visited 4 of 10")
	assert.Equal(t, 1, report.Stats.Disallowed)
	assert.Equal(t, 1, report.Stats.RobotsHosts)
	assert.Equal(t, "run-basic", report.RunID)
	require.NotNil(t, report.Graph)
	assert.Zero(t, report.Graph.Unvisited)
	assert.Zero(t, report.Graph.ExternalEdges)
}

func TestCrawlPageRankWithArtifacts(t *testing.T) {
	server := newSite(t)
	cfg := testConfig(t)
	dir := t.TempDir()
	cfg.Crawler.Mode = "pagerank"
	cfg.Crawler.Target = 4
	cfg.Crawler.Workers = 1
	cfg.Output.ExcludeSeed = true
	cfg.Storage.ExportPath = filepath.Join(dir, "graph.db")
	cfg.Metrics.TextfilePath = filepath.Join(dir, "rankcrawl.prom")

	var stdout bytes.Buffer
	a := New(cfg, zap.NewNop(), WithHTTPClient(server.Client()), WithOutput(&stdout, &bytes.Buffer{}))

	report, err := a.Crawl(context.Background(), server.URL+"/")
	require.NoError(t, err)
	assert.False(t, report.Partial)
	assert.NotEmpty(t, a.RunID())

	out := lines(stdout.String())
	// every graph node except the seed, including the refused /private/x
	require.Len(t, out, 3)
	for _, l := range out {
		assert.Regexp(t, `^URL: http://\S+ \|\| \(PageRank: \d\.\d{4}\)$`, l)
		assert.NotContains(t, l, server.URL+"/ ")
	}
	assert.True(t, report.Stats.RankConverged)

	db, err := storage.Open(cfg.Storage.ExportPath)
	require.NoError(t, err)
	defer db.Close()
	nodes, err := db.Nodes(context.Background())
	require.NoError(t, err)
	assert.Len(t, nodes, 4)
	for _, n := range nodes {
		assert.True(t, n.Score.Valid)
		if strings.Contains(n.Key, "/private") {
			assert.True(t, n.Visited)
			assert.Equal(t, "disallowed", n.Status)
		}
	}

	prom, err := os.ReadFile(cfg.Metrics.TextfilePath)
	require.NoError(t, err)
	assert.Contains(t, string(prom), `rankcrawl_pages_total{status="fetched"} 3`)
	assert.Contains(t, string(prom), "rankcrawl_robots_fetches_total 1")
}

func TestCrawlRankVisitedScope(t *testing.T) {
	server := newSite(t)
	cfg := testConfig(t)
	cfg.Crawler.Mode = "pagerank"
	cfg.Crawler.Target = 3
	cfg.Crawler.Workers = 1
	cfg.Rank.Scope = "visited"

	var stdout bytes.Buffer
	a := New(cfg, zap.NewNop(), WithHTTPClient(server.Client()), WithOutput(&stdout, &bytes.Buffer{}))
	report, err := a.Crawl(context.Background(), server.URL)
	require.NoError(t, err)

	assert.Len(t, report.Ranked, 3)
	assert.NotContains(t, stdout.String(), "/private")
}

func TestCrawlIgnoringRobots(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "User-agent: *\nDisallow: /\n")
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<a href="/next">next</a>`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	cfg := testConfig(t)
	cfg.Crawler.Target = 2
	cfg.Robots.Respect = false

	a := New(cfg, nil, WithHTTPClient(server.Client()))
	report, err := a.Crawl(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Len(t, report.URLs, 2)
	assert.Zero(t, report.Stats.RobotsHosts)
}

func TestCrawlInvalidSeed(t *testing.T) {
	cfg := testConfig(t)
	report, err := New(cfg, zap.NewNop()).Crawl(context.Background(), "not a url")
	assert.ErrorIs(t, err, frontier.ErrInvalidSeed)
	assert.Nil(t, report)
}

func TestCrawlCancelled(t *testing.T) {
	server := newSite(t)
	cfg := testConfig(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var stderr bytes.Buffer
	a := New(cfg, zap.NewNop(), WithHTTPClient(server.Client()), WithOutput(&bytes.Buffer{}, &stderr))
	report, err := a.Crawl(ctx, server.URL)
	require.Error(t, err)
	assert.True(t, IsInterrupted(err))
	require.NotNil(t, report)
	assert.True(t, report.Partial)
	assert.Contains(t, stderr.String(), "partial result")
}

// chdir changes the working directory for the duration of the test and
// restores it on cleanup (stand-in for testing.T.Chdir, Go 1.24+).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
