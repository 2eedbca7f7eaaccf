package reporter

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amosWeiskopf/rankcrawl/internal/models"
)

func rankedReport() *models.Report {
	return &models.Report{
		RunID:  "run-1",
		Seed:   "http://a.test/",
		Mode:   "pagerank",
		Target: 3,
		Ranked: []models.RankedURL{
			{URL: "http://c.test/", Score: 0.48751, Inbound: 2},
			{URL: "http://b.test/", Score: 0.3, Inbound: 1},
		},
		Stats:      models.CrawlStats{Visited: 3, Fetched: 3, RankIterations: 9, RankConverged: true},
		FinishedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestRenderText(t *testing.T) {
	r := New()

	var buf bytes.Buffer
	require.NoError(t, r.Render(&buf, rankedReport(), "text"))
	assert.Equal(t,
		"URL: http://c.test/ || (PageRank: 0.4875)\nURL: http://b.test/ || (PageRank: 0.3000)\n",
		buf.String())

	buf.Reset()
	basic := &models.Report{Mode: "basic", URLs: []string{"http://a.test/", "http://b.test/"}}
	require.NoError(t, r.Render(&buf, basic, ""))
	assert.Equal(t, "http://a.test/\nhttp://b.test/\n", buf.String())
}

func TestRenderJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, New().Render(&buf, rankedReport(), "json"))

	var decoded models.Report
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "run-1", decoded.RunID)
	require.Len(t, decoded.Ranked, 2)
	assert.Equal(t, 2, decoded.Ranked[0].Inbound)
}

func TestRenderMarkdown(t *testing.T) {
	report := rankedReport()
	report.Partial = true
	report.Stats.Visited = 2
	report.Graph = &models.GraphSummary{
		InternalEdges: 4,
		ExternalEdges: 1,
		TopHosts:      []models.HostCount{{Host: "c.test", Links: 2}},
	}

	var buf bytes.Buffer
	require.NoError(t, New().Render(&buf, report, "markdown"))
	out := buf.String()

	assert.Contains(t, out, "# Crawl Report for http://a.test/")
	assert.Contains(t, out, "**Partial result:** visited 2 of 3")
	assert.Contains(t, out, "| 1 | http://c.test/ | 0.4875 | 2 |")
	assert.Contains(t, out, "- Internal edges: 4")
	assert.Contains(t, out, "| c.test | 2 |")
}

func TestRenderHTMLEscapes(t *testing.T) {
	report := &models.Report{Mode: "basic", Seed: "http://a.test/", URLs: []string{"http://a.test/?q=<script>"}}

	var buf bytes.Buffer
	require.NoError(t, New().Render(&buf, report, "html"))
	assert.NotContains(t, buf.String(), "<script>")
	assert.Contains(t, buf.String(), "<li>")
}

func TestRenderUnsupported(t *testing.T) {
	err := New().Render(&bytes.Buffer{}, rankedReport(), "pdf")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
	assert.False(t, ValidFormat("pdf"))
	assert.True(t, ValidFormat("markdown"))
}
