// Package layout generates the node set of each new level.
//
// Level 1 is a single seed node. Level 2 is a pair of container nodes that
// both embed the frozen first level. From level 3 on, N nodes are placed by
// blending an evenly spaced circle with an "organic" layout derived from the
// previous level's positions. How organic the result is depends on the
// previous level's average trait.
package layout

import (
	"math"

	"github.com/Benny93/harmony-go/internal/graph"
)

// Placement constants.
const (
	Radius          = 120.0
	PairOffset      = Radius / 2
	NodeSize        = 100.0
	InitialNodeSize = 40.0
	InitialTrait    = 0.5

	// Traits alternate around the balance point by index parity.
	evenTrait = 0.4
	oddTrait  = 0.6

	organicLow  = 1.0 / 3
	organicHigh = 2.0 / 3
)

// Canvas is the drawing area the layout is centered on.
type Canvas struct {
	Width  float64 `json:"width" toml:"width"`
	Height float64 `json:"height" toml:"height"`
}

// DefaultCanvas returns the 800x600 canvas.
func DefaultCanvas() Canvas {
	return Canvas{Width: 800, Height: 600}
}

// Center returns the middle of the canvas.
func (c Canvas) Center() graph.Point {
	return graph.Point{X: c.Width / 2, Y: c.Height / 2}
}

// Result is the output of one generation step.
type Result struct {
	Nodes []*graph.Node

	// AvgTrait is the previous level's mean trait (0.5 when unknown).
	AvgTrait float64

	// OrganicFactor is the blend weight used for levels above 2.
	OrganicFactor float64

	// Span is the largest distance between two previous-level positions.
	Span float64
}

// Generator places nodes on a canvas.
type Generator struct {
	canvas Canvas
}

// New creates a generator. A canvas with a non-positive dimension is
// replaced by DefaultCanvas.
func New(canvas Canvas) *Generator {
	if canvas.Width <= 0 || canvas.Height <= 0 {
		canvas = DefaultCanvas()
	}
	return &Generator{canvas: canvas}
}

// Canvas returns the canvas the generator places nodes on.
func (g *Generator) Canvas() Canvas {
	return g.canvas
}

// Initial returns the level 1 seed node: centered, balanced, no pattern.
func (g *Generator) Initial() *graph.Node {
	c := g.canvas.Center()
	return graph.NewNode(c.X, c.Y, InitialNodeSize, InitialTrait, 1, nil)
}

// Generate produces the nodes of level from the frozen previous level.
// The returned nodes have no edges; the caller adds them to the structure.
func (g *Generator) Generate(prev *graph.Pattern, level int) Result {
	res := Result{
		AvgTrait: prev.AverageTrait(InitialTrait),
		Span:     Span(prev),
	}

	switch {
	case level <= 1:
		res.Nodes = []*graph.Node{g.Initial()}
	case level == 2:
		res.Nodes = g.pair(prev)
	default:
		res.OrganicFactor = OrganicFactor(res.AvgTrait)
		res.Nodes = g.blend(prev, level, res.OrganicFactor)
	}
	return res
}

func (g *Generator) pair(prev *graph.Pattern) []*graph.Node {
	c := g.canvas.Center()
	left := graph.NewNode(c.X-PairOffset, c.Y, NodeSize, oddTrait, 2, prev)
	right := graph.NewNode(c.X+PairOffset, c.Y, NodeSize, evenTrait, 2, prev)

	// ShapeAt cycles, so a one-node previous level gives both the same shape.
	if s, ok := prev.ShapeAt(0); ok {
		left.Shape = s
	}
	if s, ok := prev.ShapeAt(1); ok {
		right.Shape = s
	}
	return []*graph.Node{left, right}
}

func (g *Generator) blend(prev *graph.Pattern, level int, organic float64) []*graph.Node {
	c := g.canvas.Center()
	centroid, hasPrev := prev.Centroid()
	nodeLevel := min(level, graph.MaxLevel)

	nodes := make([]*graph.Node, level)
	for i := range level {
		angle := 2 * math.Pi * float64(i) / float64(level)
		geo := graph.Point{
			X: c.X + Radius*math.Cos(angle),
			Y: c.Y + Radius*math.Sin(angle),
		}

		org := geo
		if hasPrev {
			p := prev.Positions[i%len(prev.Positions)]
			vx, vy := p.X-centroid.X, p.Y-centroid.Y
			if length := math.Hypot(vx, vy); length > 0 {
				vx *= Radius / length
				vy *= Radius / length
			}
			org = graph.Point{X: c.X + vx, Y: c.Y + vy}
		}

		trait := evenTrait
		if i%2 == 1 {
			trait = oddTrait
		}

		n := graph.NewNode(
			geo.X*(1-organic)+org.X*organic,
			geo.Y*(1-organic)+org.Y*organic,
			NodeSize, trait, nodeLevel, prev,
		)
		if s, ok := prev.ShapeAt(i); ok {
			n.Shape = s
		}
		nodes[i] = n
	}
	return nodes
}

// OrganicFactor maps an average trait onto the geometric/organic blend
// weight: 0 below 1/3, 1 above 2/3, linear in between.
func OrganicFactor(avgTrait float64) float64 {
	switch {
	case avgTrait < organicLow:
		return 0
	case avgTrait > organicHigh:
		return 1
	default:
		return (avgTrait - organicLow) / (organicHigh - organicLow)
	}
}

// Span returns the maximum pairwise distance between the positions of p,
// or Radius when p has fewer than two distinct positions.
func Span(p *graph.Pattern) float64 {
	var span float64
	for i := 0; i < p.Len(); i++ {
		for j := i + 1; j < p.Len(); j++ {
			span = math.Max(span, p.Positions[i].Distance(p.Positions[j]))
		}
	}
	if span == 0 {
		return Radius
	}
	return span
}
