package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStructure(t *testing.T) {
	t.Parallel()

	s := NewStructure()

	assert.NotNil(t, s)
	assert.Equal(t, 1, s.Level())
	assert.Equal(t, 0, s.Len())
	assert.Zero(t, s.Harmony())
	assert.Nil(t, s.Previous())
}

func TestStructure_AddNode(t *testing.T) {
	t.Parallel()

	t.Run("RecomputesHarmony", func(t *testing.T) {
		t.Parallel()
		s := NewStructure()
		s.AddNode(NewNode(400, 300, 40, 0.5, 1, nil))

		assert.Equal(t, 1, s.Len())
		assert.InDelta(t, 50.96, s.Harmony(), 1e-9)
	})

	t.Run("StableIndices", func(t *testing.T) {
		t.Parallel()
		s := NewStructure()
		a := NewNode(0, 0, 40, 0.5, 1, nil)
		b := NewNode(1, 0, 40, 0.5, 1, nil)
		s.AddNode(a)
		s.AddNode(b)

		got, ok := s.Node(1)
		require.True(t, ok)
		assert.Same(t, b, got)
		assert.Equal(t, 0, s.Index(a))
		assert.Equal(t, -1, s.Index(NewNode(0, 0, 1, 0, 1, nil)))

		_, ok = s.Node(2)
		assert.False(t, ok)
		_, ok = s.Node(-1)
		assert.False(t, ok)
	})
}

func TestStructure_Toggle(t *testing.T) {
	t.Parallel()

	s := NewStructure()
	a := NewNode(0, 0, 40, 0.4, 1, nil)
	b := NewNode(1, 0, 40, 0.6, 1, nil)
	s.AddNode(a)
	s.AddNode(b)
	before := s.Harmony()

	assert.True(t, s.Toggle(a, b))
	assert.Equal(t, 1, s.EdgeCount())
	assert.NotEqual(t, before, s.Harmony())
	assertSymmetric(t, s.Nodes())

	assert.False(t, s.Toggle(b, a))
	assert.Equal(t, 0, s.EdgeCount())
	assert.InDelta(t, before, s.Harmony(), 1e-12)
	assertSymmetric(t, s.Nodes())
}

func TestStructure_AdvanceLevel(t *testing.T) {
	t.Parallel()

	s := NewStructure()
	a := NewNode(100, 100, 40, 0.3, 2, nil)
	b := NewNode(200, 100, 40, 0.7, 1, nil)
	b.Shape = ShapeHexagon
	s.AddNode(a)
	s.AddNode(b)
	s.Toggle(a, b)

	level := s.AdvanceLevel()

	assert.Equal(t, 2, level)
	assert.Equal(t, 2, s.Level())
	assert.Equal(t, 0, s.Len())
	assert.Zero(t, s.Harmony())

	prev := s.Previous()
	require.NotNil(t, prev)
	assert.Equal(t, []Point{{100, 100}, {200, 100}}, prev.Positions)
	assert.Equal(t, []Adjacency{{0, []int{1}}, {1, []int{0}}}, prev.Adjacency)
	assert.Equal(t, []Shape{ShapeCircle, ShapeHexagon}, prev.Shapes)
	assert.Equal(t, []float64{0.3, 0.7}, prev.Traits)
	assert.Equal(t, []int{2, 1}, prev.Levels)
	assert.Len(t, prev.Colors, 2)
}

func TestStructure_Replace(t *testing.T) {
	t.Parallel()

	s := NewStructure()
	s.AddNode(NewNode(0, 0, 40, 0.5, 1, nil))

	nodes := []*Node{NewNode(5, 5, 100, 0.6, 2, nil)}
	s.Replace(nodes, 3, 140)

	assert.Equal(t, 3, s.Level())
	assert.Equal(t, 100.0, s.Harmony(), "harmony stays within bounds")
	assert.Equal(t, 1, s.Len())
	assert.Same(t, nodes[0], s.Nodes()[0])

	s.Replace(nil, 0, 12.5)
	assert.Equal(t, 1, s.Level())
	assert.Equal(t, 12.5, s.Harmony())
}

func TestStructure_Hint(t *testing.T) {
	t.Parallel()

	s := NewStructure()
	s.AddNode(NewNode(0, 0, 40, 0.5, 1, nil))

	assert.Equal(t, HintMoreConnections, s.Hint())
}
