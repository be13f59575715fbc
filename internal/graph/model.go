// Package graph provides the node graph at the heart of the harmony engine.
//
// It defines the weighted, positioned Node (a vertex carrying a love/logic
// trait, a shape and an evolution level), the frozen Pattern that captures a
// completed level, and the Structure that owns the live node set, scores it
// and drives level transitions.
package graph

import (
	"math"
	"slices"
)

// MaxLevel is the highest evolution level a node can reach.
const MaxLevel = 4

// Trait bounds. 0 is pure logic, 1 is pure love.
const (
	TraitLogic    = 0.0
	TraitBalanced = 0.5
	TraitLove     = 1.0
)

// Shape is the visual tag of a node.
type Shape int

const (
	ShapeCircle Shape = iota
	ShapeSquare
	ShapeStar
	ShapeHexagon
	ShapePentagon
	ShapeTriangle
	ShapeDiamond
	ShapeCross
	ShapeHeart
	ShapeCrescent

	// ShapeCount is the number of distinct shapes.
	ShapeCount = 10
)

var shapeNames = [ShapeCount]string{
	"circle", "square", "star", "hexagon", "pentagon",
	"triangle", "diamond", "cross", "heart", "crescent",
}

// String returns the lowercase shape name.
func (s Shape) String() string {
	if s < 0 || int(s) >= ShapeCount {
		return "unknown"
	}
	return shapeNames[s]
}

// Next returns the shape that follows s in the cycle.
func (s Shape) Next() Shape {
	return Shape((int(s) + 1) % ShapeCount)
}

// Direction is the evolution direction of a container node.
type Direction int

const (
	DirectionUp Direction = iota
	DirectionDown
)

// String returns "up" or "down".
func (d Direction) String() string {
	if d == DirectionDown {
		return "down"
	}
	return "up"
}

// Point is a position on the canvas.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Distance returns the euclidean distance between p and q.
func (p Point) Distance(q Point) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

// RGB is an 8-bit color triple.
type RGB struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

// Palette anchors for the trait gradient.
var (
	ColorLove    = RGB{255, 141, 0}
	ColorLogic   = RGB{1, 148, 220}
	ColorBalance = RGB{151, 218, 167}
)

// TraitColor maps a trait ratio onto the logic → balance → love gradient.
func TraitColor(trait float64) RGB {
	if math.Abs(trait-0.5) < 0.05 {
		return ColorBalance
	}
	target := ColorLove
	if trait < 0.5 {
		target = ColorLogic
	}
	t := math.Abs(trait-0.5) * 2
	blend := func(from, to uint8) uint8 {
		return uint8(int(float64(from) + t*(float64(to)-float64(from))))
	}
	return RGB{
		R: blend(ColorBalance.R, target.R),
		G: blend(ColorBalance.G, target.G),
		B: blend(ColorBalance.B, target.B),
	}
}

// Rand is the randomness a node needs for spawning and pattern growth.
// *math/rand/v2.Rand satisfies it.
type Rand interface {
	Float64() float64
	IntN(n int) int
}

// NodeAdder receives newly spawned nodes.
type NodeAdder interface {
	AddNode(n *Node)
}

// Node is a positioned, weighted vertex of the current level.
type Node struct {
	// X and Y are the canvas position.
	X, Y float64

	// Size is the node diameter.
	Size float64

	// Trait is the love/logic ratio in [0,1].
	Trait float64

	// Level is the evolution level in [1, MaxLevel].
	Level int

	// Shape is the visual tag.
	Shape Shape

	// Pattern is the embedded snapshot of a previous level, or nil.
	Pattern *Pattern

	// Direction drives level oscillation for container nodes.
	Direction Direction

	peers []*Node
}

// NewNode creates a node with trait and level clamped to their ranges.
// A node embedding a pattern starts with the pattern's first shape.
func NewNode(x, y, size, trait float64, level int, pattern *Pattern) *Node {
	n := &Node{
		X:       x,
		Y:       y,
		Size:    size,
		Trait:   clampTrait(trait),
		Level:   clampLevel(level),
		Pattern: pattern,
	}
	if pattern != nil && len(pattern.Shapes) > 0 {
		n.Shape = pattern.Shapes[0]
	}
	return n
}

// clampTrait maps NaN to the balanced trait.
func clampTrait(v float64) float64 {
	if math.IsNaN(v) {
		return TraitBalanced
	}
	return math.Max(TraitLogic, math.Min(TraitLove, v))
}

func clampLevel(v int) int {
	return max(1, min(MaxLevel, v))
}

// Position returns the node position as a Point.
func (n *Node) Position() Point {
	return Point{X: n.X, Y: n.Y}
}

// Color is derived from the trait.
func (n *Node) Color() RGB {
	return TraitColor(n.Trait)
}

// IsContainer reports whether the node embeds a collapsed previous level.
func (n *Node) IsContainer() bool {
	return n.Pattern != nil
}

// AdjustTrait shifts the trait by delta, clamped to [0,1], and returns it.
func (n *Node) AdjustTrait(delta float64) float64 {
	if math.IsNaN(delta) {
		return n.Trait
	}
	n.Trait = clampTrait(n.Trait + delta)
	return n.Trait
}

// ChangeShape cycles to the next shape and returns it.
func (n *Node) ChangeShape() Shape {
	n.Shape = n.Shape.Next()
	return n.Shape
}

// Evolve raises the level of a plain node up to MaxLevel, returning false at
// the cap. Container nodes oscillate between 1 and MaxLevel and grow their
// embedded pattern on every call.
func (n *Node) Evolve(rng Rand) bool {
	if !n.IsContainer() {
		if n.Level >= MaxLevel {
			return false
		}
		n.Level++
		return true
	}

	switch {
	case n.Direction == DirectionUp && n.Level < MaxLevel:
		n.Level++
	case n.Direction == DirectionDown && n.Level > 1:
		n.Level--
	case n.Level >= MaxLevel:
		n.Level--
	default:
		n.Level++
	}

	if n.Level >= MaxLevel {
		n.Direction = DirectionDown
	} else if n.Level <= 1 {
		n.Direction = DirectionUp
	}

	n.Pattern = n.Pattern.Enhance(rng)
	return true
}

// ConnectTo adds a symmetric edge. It returns false for self loops and
// existing edges.
func (n *Node) ConnectTo(other *Node) bool {
	if other == nil || other == n || n.IsConnected(other) {
		return false
	}
	n.peers = append(n.peers, other)
	other.peers = append(other.peers, n)
	return true
}

// Disconnect removes the edge between n and other from both sides.
func (n *Node) Disconnect(other *Node) bool {
	if other == nil || !n.IsConnected(other) {
		return false
	}
	n.peers = slices.DeleteFunc(n.peers, func(p *Node) bool { return p == other })
	other.peers = slices.DeleteFunc(other.peers, func(p *Node) bool { return p == n })
	return true
}

// IsConnected reports whether n and other share an edge.
func (n *Node) IsConnected(other *Node) bool {
	return slices.Contains(n.peers, other)
}

// Peers returns the connected nodes in insertion order.
func (n *Node) Peers() []*Node {
	return slices.Clone(n.peers)
}

// Degree returns the number of connected peers.
func (n *Node) Degree() int {
	return len(n.peers)
}

// Child placement relative to the parent size.
const (
	childDistanceContainer = 0.6
	childDistancePlain     = 0.8
	childTraitJitter       = 0.1
)

// SpawnChild creates a node near n that inherits its trait (with jitter),
// size, level, shape and pattern, connects it to n and hands it to into.
func (n *Node) SpawnChild(rng Rand, into NodeAdder) *Node {
	angle := rng.Float64() * 2 * math.Pi
	distance := n.Size * childDistancePlain
	if n.IsContainer() {
		distance = n.Size * childDistanceContainer
	}

	trait := n.Trait + (rng.Float64()*2-1)*childTraitJitter

	child := &Node{
		X:         n.X + distance*math.Cos(angle),
		Y:         n.Y + distance*math.Sin(angle),
		Size:      n.Size,
		Trait:     clampTrait(trait),
		Level:     n.Level,
		Shape:     n.Shape,
		Pattern:   n.Pattern,
		Direction: n.Direction,
	}
	n.ConnectTo(child)

	if into != nil {
		into.AddNode(child)
	}
	return child
}
