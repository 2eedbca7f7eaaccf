// Package graph records the link graph discovered during a crawl.
//
// Nodes are created on first sight and never removed. Each node guards its own
// outbound set, so writers working on different source pages never contend.
// The visited transition and the unique-visit counter share one critical
// region so the crawl budget can never be overshot.
package graph

import (
	"sort"
	"sync"
)

// ClaimResult is the outcome of Store.Claim
type ClaimResult int

const (
	// Claimed means this caller moved the node to visited
	Claimed ClaimResult = iota
	// AlreadyVisited means another caller got there first
	AlreadyVisited
	// BudgetExhausted means the unique-visit budget is spent
	BudgetExhausted
)

func (r ClaimResult) String() string {
	switch r {
	case Claimed:
		return "claimed"
	case AlreadyVisited:
		return "already_visited"
	case BudgetExhausted:
		return "budget_exhausted"
	default:
		return "unknown"
	}
}

type node struct {
	mu       sync.Mutex
	visited  bool
	outbound map[string]struct{}
}

// Store is a concurrency-safe link graph
type Store struct {
	mu    sync.RWMutex
	nodes map[string]*node

	claimMu sync.Mutex
	order   []string
}

// NewStore creates an empty graph
func NewStore() *Store {
	return &Store{nodes: make(map[string]*node)}
}

// ensure returns the node for key, creating it unvisited if needed
func (s *Store) ensure(key string) *node {
	s.mu.RLock()
	n, ok := s.nodes[key]
	s.mu.RUnlock()
	if ok {
		return n
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if n, ok = s.nodes[key]; ok {
		return n
	}
	n = &node{outbound: make(map[string]struct{})}
	s.nodes[key] = n
	return n
}

// AddNode makes sure key exists as a node
func (s *Store) AddNode(key string) {
	s.ensure(key)
}

// AddEdge records to in from's outbound set. Both nodes are created if missing.
// It reports whether the edge is new.
func (s *Store) AddEdge(from, to string) bool {
	s.ensure(to)
	src := s.ensure(from)

	src.mu.Lock()
	defer src.mu.Unlock()
	if _, ok := src.outbound[to]; ok {
		return false
	}
	src.outbound[to] = struct{}{}
	return true
}

// MarkVisited moves key from unvisited to visited and reports whether this
// call did it. It does not consult any budget.
func (s *Store) MarkVisited(key string) bool {
	return s.Claim(key, 0) == Claimed
}

// Claim marks key visited only if it was unvisited and fewer than budget nodes
// have been claimed so far. A budget <= 0 means unlimited.
func (s *Store) Claim(key string, budget int) ClaimResult {
	n := s.ensure(key)

	s.claimMu.Lock()
	defer s.claimMu.Unlock()

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.visited {
		return AlreadyVisited
	}
	if budget > 0 && len(s.order) >= budget {
		return BudgetExhausted
	}
	n.visited = true
	s.order = append(s.order, key)
	return Claimed
}

// IsVisited reports whether key has been claimed
func (s *Store) IsVisited(key string) bool {
	s.mu.RLock()
	n, ok := s.nodes[key]
	s.mu.RUnlock()
	if !ok {
		return false
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.visited
}

// Has reports whether key exists as a node
func (s *Store) Has(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.nodes[key]
	return ok
}

// VisitedCount returns the number of claimed nodes
func (s *Store) VisitedCount() int {
	s.claimMu.Lock()
	defer s.claimMu.Unlock()
	return len(s.order)
}

// Order returns the claimed keys in claim order
func (s *Store) Order() []string {
	s.claimMu.Lock()
	defer s.claimMu.Unlock()
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Len returns the number of nodes
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.nodes)
}

// Outbound returns the sorted outbound neighbors of key
func (s *Store) Outbound(key string) []string {
	s.mu.RLock()
	n, ok := s.nodes[key]
	s.mu.RUnlock()
	if !ok {
		return nil
	}
	return n.neighbors()
}

func (n *node) neighbors() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.outbound))
	for k := range n.outbound {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Stats returns node and edge counts
func (s *Store) Stats() (nodeCount, edgeCount int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, n := range s.nodes {
		n.mu.Lock()
		edgeCount += len(n.outbound)
		n.mu.Unlock()
	}
	return len(s.nodes), edgeCount
}

// Snapshot copies the graph into an immutable view. It must only be called
// once the crawl has finished writing.
func (s *Store) Snapshot() *Snapshot {
	s.mu.RLock()
	keys := make([]string, 0, len(s.nodes))
	for k := range s.nodes {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	snap := &Snapshot{
		keys:     keys,
		index:    make(map[string]int, len(keys)),
		outbound: make([][]int, len(keys)),
		visited:  make([]bool, len(keys)),
	}
	for i, k := range keys {
		snap.index[k] = i
	}
	for i, k := range keys {
		n := s.nodes[k]
		n.mu.Lock()
		snap.visited[i] = n.visited
		targets := make([]int, 0, len(n.outbound))
		for to := range n.outbound {
			targets = append(targets, snap.index[to])
		}
		n.mu.Unlock()
		sort.Ints(targets)
		snap.outbound[i] = targets
	}
	s.mu.RUnlock()
	return snap
}
