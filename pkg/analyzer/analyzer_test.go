package analyzer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/amosWeiskopf/rankcrawl/internal/models"
	"github.com/amosWeiskopf/rankcrawl/pkg/graph"
)

func TestAnalyze(t *testing.T) {
	snap := graph.NewSnapshot(map[string][]string{
		"https://example.com/":      {"https://example.com/a", "https://other.org/x", "https://cdn.example.com/s"},
		"https://example.com/a":     {"https://other.org/x", "https://other.org/y"},
		"https://example.com/b":     nil,
		"https://other.org/x":       nil,
		"https://other.org/y":       nil,
		"https://cdn.example.com/s": nil,
	}, "https://example.com/", "https://example.com/a", "https://example.com/b")

	got := New(0).Analyze(snap, "https://example.com/")

	assert.Equal(t, 2, got.InternalEdges)
	assert.Equal(t, 2, got.ExternalEdges)
	assert.Equal(t, 1, got.Sinks)
	assert.Equal(t, 3, got.Unvisited)
	assert.Equal(t, 2, got.MaxInbound)
	assert.Equal(t, []models.HostCount{
		{Host: "other.org", Links: 3},
		{Host: "cdn.example.com", Links: 1},
	}, got.TopHosts)
}

func TestAnalyzeTopHostsLimit(t *testing.T) {
	snap := graph.NewSnapshot(map[string][]string{
		"https://a.com/": {"https://c.com/", "https://b.com/", "https://d.com/"},
	}, "https://a.com/")

	got := New(2).Analyze(snap, "https://a.com/")
	assert.Equal(t, []models.HostCount{
		{Host: "b.com", Links: 1},
		{Host: "c.com", Links: 1},
	}, got.TopHosts)
}

func TestAnalyzeEmpty(t *testing.T) {
	assert.Equal(t, models.GraphSummary{}, New(5).Analyze(nil, "https://a.com/"))
}
