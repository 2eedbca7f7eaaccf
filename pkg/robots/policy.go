package robots

import (
	"bufio"
	"fmt"
	"strings"
	"time"

	"github.com/temoto/robotstxt"
)

// Policy is the crawl permission entry cached for one host
type Policy struct {
	Host string
	// Agent is the group name the rules were taken from, empty for none
	Agent     string
	Allow     []string
	Disallow  []string
	FetchedAt time.Time
	// PermitAll is set when the document could not be fetched or parsed
	PermitAll bool
	// DenyAll is set instead of PermitAll when the gate fails closed
	DenyAll bool
	Reason  string

	group *robotstxt.Group
}

// PermitAllPolicy returns the fail-open entry for host
func PermitAllPolicy(host, reason string, at time.Time) *Policy {
	return &Policy{Host: host, PermitAll: true, Reason: reason, FetchedAt: at}
}

// DenyAllPolicy returns the fail-closed entry for host
func DenyAllPolicy(host, reason string, at time.Time) *Policy {
	return &Policy{Host: host, DenyAll: true, Reason: reason, FetchedAt: at}
}

// Allows reports whether path may be fetched. The longest matching rule
// decides; on equal length Disallow wins.
func (p *Policy) Allows(path string) bool {
	if p.PermitAll {
		return true
	}
	if p.DenyAll {
		return false
	}
	if p.group == nil {
		return true
	}
	if path == "" {
		path = "/"
	}
	return p.group.Test(path)
}

type group struct {
	allow    []string
	disallow []string
}

// Parse extracts the rules that apply to userAgent. The group whose agent name
// is the longest prefix of the agent's product token is used, else the "*"
// group, else everything is permitted. Sitemap, Crawl-delay and unknown
// directives are dropped before the rules reach the matcher, so a malformed
// value in one of them never discards the document.
func Parse(host, doc, userAgent string) (*Policy, error) {
	groups, agents, err := scanGroups(doc)
	if err != nil {
		return nil, fmt.Errorf("scan robots for %s: %w", host, err)
	}

	data, err := robotstxt.FromString(canonical(groups, agents))
	if err != nil {
		return nil, fmt.Errorf("parse robots for %s: %w", host, err)
	}

	policy := &Policy{Host: host}
	chosen := data.FindGroup(productToken(userAgent))
	policy.group = chosen
	for _, agent := range agents {
		// FindGroup returns the group stored under agent itself
		if data.FindGroup(agent) == chosen {
			policy.Agent = agent
			policy.Allow = groups[agent].allow
			policy.Disallow = groups[agent].disallow
			break
		}
	}
	return policy, nil
}

// scanGroups collects Allow/Disallow prefixes per lowercased agent name.
// Consecutive User-agent lines share a group. agents lists names in order of
// first appearance.
func scanGroups(doc string) (map[string]*group, []string, error) {
	groups := make(map[string]*group)
	var agents, current []string
	inRules := false

	scanner := bufio.NewScanner(strings.NewReader(doc))
	for scanner.Scan() {
		line := scanner.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)

		switch key {
		case "user-agent":
			if inRules {
				current = nil
				inRules = false
			}
			agent := strings.ToLower(value)
			if agent == "" || strings.ContainsAny(agent, " \t") {
				continue
			}
			if _, ok := groups[agent]; !ok {
				groups[agent] = &group{}
				agents = append(agents, agent)
			}
			current = append(current, agent)
		case "allow", "disallow":
			if len(current) == 0 {
				continue
			}
			inRules = true
			if value == "" || strings.ContainsAny(value, " \t") {
				// empty Disallow means allow everything
				continue
			}
			for _, agent := range current {
				g := groups[agent]
				if key == "allow" {
					g.allow = append(g.allow, value)
				} else {
					g.disallow = append(g.disallow, value)
				}
			}
		default:
			// any other directive ends the agent list of the current group
			if len(current) > 0 {
				inRules = true
			}
		}
	}
	return groups, agents, scanner.Err()
}

// canonical re-emits one group per agent with every Disallow ahead of every
// Allow. The matcher keeps the first of several equally long matches, which
// makes Disallow win ties. A group without rules gets "Allow: /" so it still
// shadows the "*" group.
func canonical(groups map[string]*group, agents []string) string {
	var b strings.Builder
	for _, agent := range agents {
		g := groups[agent]
		fmt.Fprintf(&b, "User-agent: %s\n", agent)
		for _, prefix := range g.disallow {
			fmt.Fprintf(&b, "Disallow: %s\n", prefix)
		}
		for _, prefix := range g.allow {
			fmt.Fprintf(&b, "Allow: %s\n", prefix)
		}
		if len(g.allow) == 0 && len(g.disallow) == 0 {
			b.WriteString("Allow: /\n")
		}
		b.WriteString("\n")
	}
	return b.String()
}

// productToken turns "RankCrawl/1.0 (+url)" into "rankcrawl"
func productToken(userAgent string) string {
	ua := strings.ToLower(strings.TrimSpace(userAgent))
	if i := strings.IndexAny(ua, "/ "); i >= 0 {
		ua = ua[:i]
	}
	return ua
}
