// Package results orders crawl and rank output for reporting.
package results

import (
	"sort"

	"github.com/amosWeiskopf/rankcrawl/internal/models"
	"github.com/amosWeiskopf/rankcrawl/pkg/rank"
)

// BasicResult is the visited list of a run
type BasicResult struct {
	URLs    []string
	Partial bool
}

// Basic returns visited in claim order, truncated to target. The result is
// partial when fewer than target URLs were visited.
func Basic(visited []string, target int) BasicResult {
	n := len(visited)
	if target >= 0 && n > target {
		n = target
	}
	urls := make([]string, n)
	copy(urls, visited[:n])
	return BasicResult{URLs: urls, Partial: len(urls) < target}
}

// RankedOptions filters the ranked listing
type RankedOptions struct {
	// ExcludeSeed drops this key from the listing
	ExcludeSeed string
	// Top keeps the first Top entries; 0 keeps all
	Top int
}

// Ranked lists every scored key by descending score, ties broken by ascending key
func Ranked(res *rank.Result, opts RankedOptions) []models.RankedURL {
	if res == nil {
		return nil
	}
	out := make([]models.RankedURL, 0, len(res.Scores))
	for key, score := range res.Scores {
		if opts.ExcludeSeed != "" && key == opts.ExcludeSeed {
			continue
		}
		out = append(out, models.RankedURL{URL: key, Score: score, Inbound: res.Inbound[key]})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].URL < out[j].URL
	})
	if opts.Top > 0 && len(out) > opts.Top {
		out = out[:opts.Top]
	}
	return out
}
