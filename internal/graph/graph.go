// Package graph provides the live structure of the harmony engine.
//
// A Structure owns the ordered node set of the current level. Node order
// defines the stable indices used by snapshots; it only changes when the
// node set is rebuilt by AdvanceLevel or Replace.
package graph

import (
	"math"
	"slices"
)

// Structure is the node graph of one session.
type Structure struct {
	nodes    []*Node
	level    int
	harmony  float64
	previous *Pattern
}

// NewStructure creates an empty structure at level 1.
func NewStructure() *Structure {
	return &Structure{level: 1}
}

// Level returns the current level.
func (s *Structure) Level() int {
	return s.level
}

// Harmony returns the last computed harmony score.
func (s *Structure) Harmony() float64 {
	return s.harmony
}

// Previous returns the frozen previous level, or nil before the first advance.
func (s *Structure) Previous() *Pattern {
	return s.previous
}

// Len returns the number of live nodes.
func (s *Structure) Len() int {
	return len(s.nodes)
}

// Nodes returns the live nodes in index order. The slice is a copy; the
// nodes are not.
func (s *Structure) Nodes() []*Node {
	return slices.Clone(s.nodes)
}

// Node returns the node at index i.
func (s *Structure) Node(i int) (*Node, bool) {
	if i < 0 || i >= len(s.nodes) {
		return nil, false
	}
	return s.nodes[i], true
}

// Index returns the index of n, or -1.
func (s *Structure) Index(n *Node) int {
	return slices.Index(s.nodes, n)
}

// AddNode appends n and recomputes harmony.
func (s *Structure) AddNode(n *Node) {
	s.nodes = append(s.nodes, n)
	s.ComputeHarmony()
}

// ComputeHarmony scores the live node set, stores and returns the result.
func (s *Structure) ComputeHarmony() float64 {
	s.harmony = Score(s.nodes, s.level).Harmony
	return s.harmony
}

// Breakdown scores the live node set without storing the result.
func (s *Structure) Breakdown() Breakdown {
	return Score(s.nodes, s.level)
}

// Toggle connects a and b, or disconnects them if they are already
// connected, and recomputes harmony. It reports whether the pair is
// connected afterwards.
func (s *Structure) Toggle(a, b *Node) bool {
	if a.IsConnected(b) {
		a.Disconnect(b)
		s.ComputeHarmony()
		return false
	}
	connected := a.ConnectTo(b)
	s.ComputeHarmony()
	return connected
}

// EdgeCount returns the number of undirected edges among live nodes.
func (s *Structure) EdgeCount() int {
	return Score(s.nodes, s.level).Edges
}

// Freeze captures the live nodes into a Pattern.
func (s *Structure) Freeze() *Pattern {
	return Freeze(s.nodes)
}

// AdvanceLevel freezes the live nodes into Previous, clears them, moves to
// the next level and resets harmony. Generating the next node set is up to
// the caller.
func (s *Structure) AdvanceLevel() int {
	s.previous = s.Freeze()
	s.nodes = nil
	s.level++
	s.harmony = 0
	return s.level
}

// Replace swaps the whole live state at once.
func (s *Structure) Replace(nodes []*Node, level int, harmony float64) {
	s.nodes = nodes
	s.level = max(1, level)
	s.harmony = math.Max(0, math.Min(100, harmony))
}

// Hint suggests the next move for the live node set.
func (s *Structure) Hint() string {
	return Hint(s.nodes)
}
