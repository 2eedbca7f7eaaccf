package graph

// Snapshot is a frozen, index-addressed copy of a Store. Node indices follow
// the ascending order of the keys.
type Snapshot struct {
	keys     []string
	index    map[string]int
	outbound [][]int
	visited  []bool
}

// NewSnapshot builds a snapshot straight from an adjacency map. Targets that
// are not keys of adj become unvisited nodes. Every key in visited is marked.
func NewSnapshot(adj map[string][]string, visited ...string) *Snapshot {
	s := NewStore()
	for from, targets := range adj {
		s.AddNode(from)
		for _, to := range targets {
			s.AddEdge(from, to)
		}
	}
	for _, k := range visited {
		s.MarkVisited(k)
	}
	return s.Snapshot()
}

// Len returns the number of nodes
func (s *Snapshot) Len() int {
	return len(s.keys)
}

// Keys returns the node keys in index order
func (s *Snapshot) Keys() []string {
	out := make([]string, len(s.keys))
	copy(out, s.keys)
	return out
}

// Key returns the key of node i
func (s *Snapshot) Key(i int) string {
	return s.keys[i]
}

// Index returns the index of key
func (s *Snapshot) Index(key string) (int, bool) {
	i, ok := s.index[key]
	return i, ok
}

// Out returns the outbound neighbor indices of node i. Callers must not modify it.
func (s *Snapshot) Out(i int) []int {
	return s.outbound[i]
}

// OutDegree returns the number of distinct outbound neighbors of node i
func (s *Snapshot) OutDegree(i int) int {
	return len(s.outbound[i])
}

// Visited reports whether node i was claimed during the crawl
func (s *Snapshot) Visited(i int) bool {
	return s.visited[i]
}

// EdgeCount returns the total number of edges
func (s *Snapshot) EdgeCount() int {
	total := 0
	for _, out := range s.outbound {
		total += len(out)
	}
	return total
}

// Adjacency returns the graph as key -> sorted outbound keys
func (s *Snapshot) Adjacency() map[string][]string {
	adj := make(map[string][]string, len(s.keys))
	for i, k := range s.keys {
		targets := make([]string, len(s.outbound[i]))
		for j, t := range s.outbound[i] {
			targets[j] = s.keys[t]
		}
		adj[k] = targets
	}
	return adj
}

// InDegrees derives the inbound reference count of every node
func (s *Snapshot) InDegrees() []int {
	in := make([]int, len(s.keys))
	for _, out := range s.outbound {
		for _, t := range out {
			in[t]++
		}
	}
	return in
}

// Induced returns the subgraph made of visited nodes only. Edges pointing at
// unvisited nodes are dropped, which may turn pages into sinks.
func (s *Snapshot) Induced() *Snapshot {
	keys := make([]string, 0, len(s.keys))
	remap := make([]int, len(s.keys))
	for i, k := range s.keys {
		remap[i] = -1
		if s.visited[i] {
			remap[i] = len(keys)
			keys = append(keys, k)
		}
	}

	sub := &Snapshot{
		keys:     keys,
		index:    make(map[string]int, len(keys)),
		outbound: make([][]int, len(keys)),
		visited:  make([]bool, len(keys)),
	}
	for i, k := range keys {
		sub.index[k] = i
		sub.visited[i] = true
	}
	for i, out := range s.outbound {
		ni := remap[i]
		if ni < 0 {
			continue
		}
		targets := make([]int, 0, len(out))
		for _, t := range out {
			if nt := remap[t]; nt >= 0 {
				targets = append(targets, nt)
			}
		}
		sub.outbound[ni] = targets
	}
	return sub
}
