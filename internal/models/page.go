package models

import "time"

// FetchKind distinguishes the two shapes a fetch can take
type FetchKind int

const (
	// FetchSuccess means the page was retrieved and its links extracted
	FetchSuccess FetchKind = iota
	// FetchFailure covers transport errors and non-OK statuses alike
	FetchFailure
)

func (k FetchKind) String() string {
	switch k {
	case FetchSuccess:
		return "success"
	case FetchFailure:
		return "failure"
	default:
		return "unknown"
	}
}

// FetchResult is what the fetch/extract collaborator hands back for one URL.
// A failure never carries links.
type FetchResult struct {
	Kind       FetchKind `json:"kind"`
	URL        string    `json:"url"`
	StatusCode int       `json:"status_code"`
	Links      []string  `json:"links,omitempty"`
	Title      string    `json:"title,omitempty"`
	Reason     string    `json:"reason,omitempty"`
}

// Succeeded builds a success result
func Succeeded(url string, status int, links []string, title string) FetchResult {
	return FetchResult{Kind: FetchSuccess, URL: url, StatusCode: status, Links: links, Title: title}
}

// Failed builds a failure result
func Failed(url string, status int, reason string) FetchResult {
	return FetchResult{Kind: FetchFailure, URL: url, StatusCode: status, Reason: reason}
}

// OK reports whether the fetch succeeded
func (r FetchResult) OK() bool {
	return r.Kind == FetchSuccess
}

// VisitStatus is the outcome recorded for a claimed URL
type VisitStatus string

const (
	StatusFetched    VisitStatus = "fetched"
	StatusFailed     VisitStatus = "failed"
	StatusDisallowed VisitStatus = "disallowed"
)

// Visit records what happened to one claimed URL
type Visit struct {
	URL        string        `json:"url"`
	Status     VisitStatus   `json:"status"`
	StatusCode int           `json:"status_code,omitempty"`
	Outbound   int           `json:"outbound"`
	Title      string        `json:"title,omitempty"`
	Reason     string        `json:"reason,omitempty"`
	Worker     int           `json:"worker"`
	Duration   time.Duration `json:"duration"`
}

// RankedURL is one line of the pagerank output
type RankedURL struct {
	URL     string  `json:"url"`
	Score   float64 `json:"score"`
	Inbound int     `json:"inbound"`
}

// Report is the final, ordered output of a crawl run
type Report struct {
	RunID      string        `json:"run_id"`
	Seed       string        `json:"seed"`
	Mode       string        `json:"mode"`
	Target     int           `json:"target"`
	Partial    bool          `json:"partial"`
	URLs       []string      `json:"urls,omitempty"`
	Ranked     []RankedURL   `json:"ranked,omitempty"`
	Stats      CrawlStats    `json:"stats"`
	Graph      *GraphSummary `json:"graph,omitempty"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Elapsed    time.Duration `json:"elapsed"`
}

// CrawlStats summarises a crawl run
type CrawlStats struct {
	Visited        int     `json:"visited"`
	Fetched        int     `json:"fetched"`
	Failed         int     `json:"failed"`
	Disallowed     int     `json:"disallowed"`
	Nodes          int     `json:"nodes"`
	Edges          int     `json:"edges"`
	RobotsHosts    int     `json:"robots_hosts"`
	RankIterations int     `json:"rank_iterations,omitempty"`
	RankConverged  bool    `json:"rank_converged,omitempty"`
	RankDelta      float64 `json:"rank_delta,omitempty"`
}

// HostCount is the number of cross-host links pointing at one host
type HostCount struct {
	Host  string `json:"host"`
	Links int    `json:"links"`
}

// GraphSummary describes the shape of the discovered link graph
type GraphSummary struct {
	Sinks         int         `json:"sinks"`
	Unvisited     int         `json:"unvisited"`
	MaxInbound    int         `json:"max_inbound"`
	InternalEdges int         `json:"internal_edges"`
	ExternalEdges int         `json:"external_edges"`
	TopHosts      []HostCount `json:"top_hosts,omitempty"`
}
