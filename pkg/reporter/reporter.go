package reporter

import (
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"strings"

	"github.com/amosWeiskopf/rankcrawl/internal/models"
)

// ErrUnsupportedFormat is returned by Render for an unknown format name
var ErrUnsupportedFormat = errors.New("unsupported format")

// Formats lists the names Render accepts
var Formats = []string{"text", "json", "markdown", "html"}

// Reporter handles report generation in various formats
type Reporter struct {
	html *template.Template
}

// New creates a new Reporter instance
func New() *Reporter {
	return &Reporter{html: template.Must(template.New("report").Funcs(template.FuncMap{
		"score": formatScore,
	}).Parse(htmlTemplate))}
}

// ValidFormat reports whether Render knows format
func ValidFormat(format string) bool {
	for _, f := range Formats {
		if f == format {
			return true
		}
	}
	return false
}

// Render writes report to w in the given format
func (r *Reporter) Render(w io.Writer, report *models.Report, format string) error {
	switch format {
	case "", "text":
		return r.renderText(w, report)
	case "json":
		return r.renderJSON(w, report)
	case "markdown":
		return r.renderMarkdown(w, report)
	case "html":
		if err := r.html.Execute(w, report); err != nil {
			return fmt.Errorf("failed to execute template: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}

func formatScore(v float64) string {
	return fmt.Sprintf("%.4f", v)
}

// renderText prints one URL per line in basic mode, and one scored line per
// URL in pagerank mode
func (r *Reporter) renderText(w io.Writer, report *models.Report) error {
	var b strings.Builder
	if report.Mode == "pagerank" {
		for _, ru := range report.Ranked {
			fmt.Fprintf(&b, "URL: %s || (PageRank: %s)\n", ru.URL, formatScore(ru.Score))
		}
	} else {
		for _, u := range report.URLs {
			b.WriteString(u)
			b.WriteByte('\n')
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func (r *Reporter) renderJSON(w io.Writer, report *models.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	return nil
}

func (r *Reporter) renderMarkdown(w io.Writer, report *models.Report) error {
	var buf strings.Builder

	fmt.Fprintf(&buf, "# Crawl Report for %s\n\n", report.Seed)
	fmt.Fprintf(&buf, "*Run %s, generated on %s*\n\n", report.RunID, report.FinishedAt.Format("January 2, 2006 15:04:05"))
	if report.Partial {
		fmt.Fprintf(&buf, "> **Partial result:** visited %d of %d requested URLs.\n\n", report.Stats.Visited, report.Target)
	}

	fmt.Fprintf(&buf, "## Summary\n\n")
	fmt.Fprintf(&buf, "| Metric | Value |\n")
	fmt.Fprintf(&buf, "|--------|-------|\n")
	fmt.Fprintf(&buf, "| Mode | %s |\n", report.Mode)
	fmt.Fprintf(&buf, "| Target | %d |\n", report.Target)
	fmt.Fprintf(&buf, "| Visited | %d |\n", report.Stats.Visited)
	fmt.Fprintf(&buf, "| Fetched | %d |\n", report.Stats.Fetched)
	fmt.Fprintf(&buf, "| Failed | %d |\n", report.Stats.Failed)
	fmt.Fprintf(&buf, "| Disallowed | %d |\n", report.Stats.Disallowed)
	fmt.Fprintf(&buf, "| Graph nodes | %d |\n", report.Stats.Nodes)
	fmt.Fprintf(&buf, "| Graph edges | %d |\n", report.Stats.Edges)
	fmt.Fprintf(&buf, "| Robots hosts | %d |\n", report.Stats.RobotsHosts)
	fmt.Fprintf(&buf, "| Elapsed | %s |\n\n", report.Elapsed)

	if g := report.Graph; g != nil {
		fmt.Fprintf(&buf, "## Link Graph\n\n")
		fmt.Fprintf(&buf, "- Internal edges: %d\n", g.InternalEdges)
		fmt.Fprintf(&buf, "- External edges: %d\n", g.ExternalEdges)
		fmt.Fprintf(&buf, "- Dead ends: %d\n", g.Sinks)
		fmt.Fprintf(&buf, "- Unvisited nodes: %d\n", g.Unvisited)
		fmt.Fprintf(&buf, "- Max inbound: %d\n\n", g.MaxInbound)
		if len(g.TopHosts) > 0 {
			fmt.Fprintf(&buf, "| Host | Links |\n")
			fmt.Fprintf(&buf, "|------|-------|\n")
			for _, hc := range g.TopHosts {
				fmt.Fprintf(&buf, "| %s | %d |\n", hc.Host, hc.Links)
			}
			fmt.Fprintf(&buf, "\n")
		}
	}

	if report.Mode == "pagerank" {
		fmt.Fprintf(&buf, "## PageRank\n\n")
		fmt.Fprintf(&buf, "Converged: %t after %d iterations (delta %.6f)\n\n",
			report.Stats.RankConverged, report.Stats.RankIterations, report.Stats.RankDelta)
		fmt.Fprintf(&buf, "| # | URL | Score | Inbound |\n")
		fmt.Fprintf(&buf, "|---|-----|-------|---------|\n")
		for i, ru := range report.Ranked {
			fmt.Fprintf(&buf, "| %d | %s | %s | %d |\n", i+1, ru.URL, formatScore(ru.Score), ru.Inbound)
		}
	} else {
		fmt.Fprintf(&buf, "## Visited URLs\n\n")
		for i, u := range report.URLs {
			fmt.Fprintf(&buf, "%d. %s\n", i+1, u)
		}
	}

	_, err := io.WriteString(w, buf.String())
	return err
}

const htmlTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <title>Crawl Report - {{.Seed}}</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, Arial, sans-serif; max-width: 1200px; margin: 0 auto; padding: 20px; color: #333; }
        .header { background: linear-gradient(135deg, #667eea 0%, #764ba2 100%); color: white; padding: 2rem; border-radius: 10px; }
        .partial { border-left: 4px solid #ffc107; padding: 1rem; margin: 1rem 0; }
        table { border-collapse: collapse; width: 100%; margin: 1rem 0; }
        th, td { text-align: left; padding: 0.5rem; border-bottom: 1px solid #ddd; }
    </style>
</head>
<body>
    <div class="header">
        <h1>Crawl Report</h1>
        <p>{{.Seed}} &middot; {{.Mode}} &middot; run {{.RunID}}</p>
    </div>
    {{if .Partial}}<div class="partial">Partial result: visited {{.Stats.Visited}} of {{.Target}} requested URLs.</div>{{end}}
    <table>
        <tr><th>Visited</th><td>{{.Stats.Visited}}</td></tr>
        <tr><th>Fetched</th><td>{{.Stats.Fetched}}</td></tr>
        <tr><th>Failed</th><td>{{.Stats.Failed}}</td></tr>
        <tr><th>Disallowed</th><td>{{.Stats.Disallowed}}</td></tr>
        <tr><th>Edges</th><td>{{.Stats.Edges}}</td></tr>
    </table>
    {{if .Ranked}}
    <table>
        <tr><th>#</th><th>URL</th><th>PageRank</th><th>Inbound</th></tr>
        {{range $i, $r := .Ranked}}<tr><td>{{$i}}</td><td>{{$r.URL}}</td><td>{{score $r.Score}}</td><td>{{$r.Inbound}}</td></tr>
        {{end}}
    </table>
    {{else}}
    <ol>
        {{range .URLs}}<li>{{.}}</li>
        {{end}}
    </ol>
    {{end}}
</body>
</html>
`
