// Package rank computes PageRank over a frozen crawl graph.
package rank

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"

	"github.com/amosWeiskopf/rankcrawl/pkg/graph"
)

const (
	DefaultDamping       = 0.85
	DefaultMaxIterations = 200
	DefaultTolerance     = 0.001
)

// ErrInvalidOptions is returned for out-of-range damping, tolerance or iterations
var ErrInvalidOptions = errors.New("invalid rank options")

// Options controls the power iteration
type Options struct {
	Damping       float64
	MaxIterations int
	Tolerance     float64

	// OnIteration, when set, is called after every iteration with the new
	// vector (indexed like the snapshot) and the L1 delta.
	OnIteration func(iteration int, scores []float64, delta float64)
}

// DefaultOptions returns the standard damping, iteration cap and tolerance
func DefaultOptions() Options {
	return Options{
		Damping:       DefaultDamping,
		MaxIterations: DefaultMaxIterations,
		Tolerance:     DefaultTolerance,
	}
}

// Validate checks the option ranges
func (o Options) Validate() error {
	if o.Damping < 0 || o.Damping >= 1 {
		return fmt.Errorf("%w: damping %v not in [0,1)", ErrInvalidOptions, o.Damping)
	}
	if o.MaxIterations < 1 {
		return fmt.Errorf("%w: max iterations %d < 1", ErrInvalidOptions, o.MaxIterations)
	}
	if o.Tolerance <= 0 {
		return fmt.Errorf("%w: tolerance %v <= 0", ErrInvalidOptions, o.Tolerance)
	}
	return nil
}

// Result is the stationary distribution plus how the iteration ended
type Result struct {
	Scores     map[string]float64
	Inbound    map[string]int
	Iterations int
	Converged  bool
	Delta      float64
}

// Compute runs power iteration over snap. Sinks hand their score to every node
// evenly on each step, so the vector keeps summing to one.
func Compute(snap *graph.Snapshot, opts Options) (*Result, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	n := snap.Len()
	res := &Result{
		Scores:  make(map[string]float64, n),
		Inbound: make(map[string]int, n),
	}
	if n == 0 {
		res.Converged = true
		return res, nil
	}

	// inbound adjacency is derived here, once
	inbound := make([][]int, n)
	outDeg := make([]float64, n)
	var sinks []int
	for u := 0; u < n; u++ {
		out := snap.Out(u)
		outDeg[u] = float64(len(out))
		if len(out) == 0 {
			sinks = append(sinks, u)
		}
		for _, v := range out {
			inbound[v] = append(inbound[v], u)
		}
	}

	size := float64(n)
	d := opts.Damping
	rank := make([]float64, n)
	for i := range rank {
		rank[i] = 1 / size
	}
	next := make([]float64, n)

	for iter := 1; iter <= opts.MaxIterations; iter++ {
		sinkMass := 0.0
		for _, u := range sinks {
			sinkMass += rank[u]
		}
		base := (1-d)/size + d*sinkMass/size

		for v := 0; v < n; v++ {
			sum := 0.0
			for _, u := range inbound[v] {
				sum += rank[u] / outDeg[u]
			}
			next[v] = base + d*sum
		}

		delta := floats.Distance(next, rank, 1)
		rank, next = next, rank
		res.Iterations = iter
		res.Delta = delta
		if opts.OnIteration != nil {
			opts.OnIteration(iter, rank, delta)
		}
		if delta < opts.Tolerance {
			res.Converged = true
			break
		}
	}

	// remove floating-point drift
	if total := floats.Sum(rank); total > 0 {
		floats.Scale(1/total, rank)
	}

	for i, k := range snap.Keys() {
		res.Scores[k] = rank[i]
		res.Inbound[k] = len(inbound[i])
	}
	return res, nil
}

// Sum returns the total mass of a score map
func Sum(scores map[string]float64) float64 {
	vals := make([]float64, 0, len(scores))
	for _, v := range scores {
		vals = append(vals, v)
	}
	return floats.Sum(vals)
}
