// Package analyzer summarises the shape of a crawl graph: how many pages are
// dead ends, how much of the linking stays on the seed's site, and which hosts
// attract the most links.
package analyzer

import (
	"sort"

	"github.com/amosWeiskopf/rankcrawl/internal/models"
	"github.com/amosWeiskopf/rankcrawl/pkg/graph"
	"github.com/amosWeiskopf/rankcrawl/pkg/utils"
)

// DefaultTopHosts is how many hosts Analyze lists when top is not positive
const DefaultTopHosts = 10

// Analyzer performs link-graph analysis
type Analyzer struct {
	topHosts int
}

// New creates a new Analyzer instance
func New(topHosts int) *Analyzer {
	if topHosts <= 0 {
		topHosts = DefaultTopHosts
	}
	return &Analyzer{topHosts: topHosts}
}

// Analyze summarises snap. Edges are internal when both ends share the seed's
// registrable domain.
func (a *Analyzer) Analyze(snap *graph.Snapshot, seed string) models.GraphSummary {
	summary := models.GraphSummary{}
	if snap == nil || snap.Len() == 0 {
		return summary
	}
	seedSite := utils.SiteOf(seed)

	sites := make([]string, snap.Len())
	hosts := make([]string, snap.Len())
	for i, key := range snap.Keys() {
		sites[i] = utils.SiteOf(key)
		hosts[i] = utils.HostOf(key)
	}

	hostLinks := make(map[string]int)
	inbound := snap.InDegrees()
	for i := 0; i < snap.Len(); i++ {
		if !snap.Visited(i) {
			summary.Unvisited++
		} else if snap.OutDegree(i) == 0 {
			summary.Sinks++
		}
		if inbound[i] > summary.MaxInbound {
			summary.MaxInbound = inbound[i]
		}
		for _, j := range snap.Out(i) {
			if sites[i] == seedSite && sites[j] == seedSite {
				summary.InternalEdges++
			} else {
				summary.ExternalEdges++
			}
			if hosts[j] != hosts[i] {
				hostLinks[hosts[j]]++
			}
		}
	}

	summary.TopHosts = make([]models.HostCount, 0, len(hostLinks))
	for host, n := range hostLinks {
		summary.TopHosts = append(summary.TopHosts, models.HostCount{Host: host, Links: n})
	}
	sort.Slice(summary.TopHosts, func(i, j int) bool {
		if summary.TopHosts[i].Links == summary.TopHosts[j].Links {
			return summary.TopHosts[i].Host < summary.TopHosts[j].Host
		}
		return summary.TopHosts[i].Links > summary.TopHosts[j].Links
	})
	if len(summary.TopHosts) > a.topHosts {
		summary.TopHosts = summary.TopHosts[:a.topHosts]
	}
	return summary
}
