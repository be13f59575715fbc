package graph

import "slices"

// Adjacency lists the targets of one pattern point by index.
type Adjacency struct {
	Source  int   `json:"source"`
	Targets []int `json:"targets"`
}

// Pattern is a frozen, index-addressed copy of a completed level. Patterns
// are never mutated in place; Enhance returns a new value.
type Pattern struct {
	Positions []Point     `json:"positions"`
	Adjacency []Adjacency `json:"adjacency"`
	Colors    []RGB       `json:"colors,omitempty"`
	Shapes    []Shape     `json:"shapes,omitempty"`
	Levels    []int       `json:"levels,omitempty"`
	Traits    []float64   `json:"traits,omitempty"`
}

// Freeze captures nodes into a Pattern. Edges to nodes outside the slice
// are not recorded.
func Freeze(nodes []*Node) *Pattern {
	index := make(map[*Node]int, len(nodes))
	for i, n := range nodes {
		index[n] = i
	}

	p := &Pattern{
		Positions: make([]Point, len(nodes)),
		Adjacency: make([]Adjacency, len(nodes)),
		Colors:    make([]RGB, len(nodes)),
		Shapes:    make([]Shape, len(nodes)),
		Levels:    make([]int, len(nodes)),
		Traits:    make([]float64, len(nodes)),
	}
	for i, n := range nodes {
		targets := make([]int, 0, len(n.peers))
		for _, peer := range n.peers {
			if j, ok := index[peer]; ok {
				targets = append(targets, j)
			}
		}
		p.Positions[i] = n.Position()
		p.Adjacency[i] = Adjacency{Source: i, Targets: targets}
		p.Colors[i] = n.Color()
		p.Shapes[i] = n.Shape
		p.Levels[i] = n.Level
		p.Traits[i] = n.Trait
	}
	return p
}

// Len returns the number of points in the pattern.
func (p *Pattern) Len() int {
	if p == nil {
		return 0
	}
	return len(p.Positions)
}

// Centroid returns the mean position, and false for an empty pattern.
func (p *Pattern) Centroid() (Point, bool) {
	if p.Len() == 0 {
		return Point{}, false
	}
	var c Point
	for _, pos := range p.Positions {
		c.X += pos.X
		c.Y += pos.Y
	}
	n := float64(len(p.Positions))
	return Point{X: c.X / n, Y: c.Y / n}, true
}

// AverageTrait returns the mean trait, or fallback when none are recorded.
func (p *Pattern) AverageTrait(fallback float64) float64 {
	if p == nil || len(p.Traits) == 0 {
		return fallback
	}
	var sum float64
	for _, t := range p.Traits {
		sum += t
	}
	return sum / float64(len(p.Traits))
}

// ShapeAt cycles through the recorded shapes by index.
func (p *Pattern) ShapeAt(i int) (Shape, bool) {
	if p == nil || len(p.Shapes) == 0 {
		return ShapeCircle, false
	}
	return p.Shapes[i%len(p.Shapes)], true
}

// EdgeCount returns the number of distinct undirected edges.
func (p *Pattern) EdgeCount() int {
	if p == nil {
		return 0
	}
	type edge struct{ a, b int }
	seen := make(map[edge]struct{})
	for _, adj := range p.Adjacency {
		for _, t := range adj.Targets {
			a, b := min(adj.Source, t), max(adj.Source, t)
			if a != b {
				seen[edge{a, b}] = struct{}{}
			}
		}
	}
	return len(seen)
}

// Clone returns a deep copy.
func (p *Pattern) Clone() *Pattern {
	if p == nil {
		return nil
	}
	adj := make([]Adjacency, len(p.Adjacency))
	for i, a := range p.Adjacency {
		adj[i] = Adjacency{Source: a.Source, Targets: slices.Clone(a.Targets)}
	}
	return &Pattern{
		Positions: slices.Clone(p.Positions),
		Adjacency: adj,
		Colors:    slices.Clone(p.Colors),
		Shapes:    slices.Clone(p.Shapes),
		Levels:    slices.Clone(p.Levels),
		Traits:    slices.Clone(p.Traits),
	}
}

const (
	enhanceRounds = 3
	enhanceJitter = 10.0
)

// Enhance returns a denser copy of p: up to three interpolated points, each
// placed between a random point and its successor and wired to both.
// Per-point attributes of the original points are kept as they are.
func (p *Pattern) Enhance(rng Rand) *Pattern {
	if p == nil {
		return nil
	}
	out := p.Clone()
	n := len(p.Positions)
	if n <= 1 {
		return out
	}

	for range min(enhanceRounds, n) {
		i := rng.IntN(n)
		j := (i + 1) % n
		a, b := p.Positions[i], p.Positions[j]

		mid := Point{
			X: (a.X+b.X)/2 + (rng.Float64()*2-1)*enhanceJitter,
			Y: (a.Y+b.Y)/2 + (rng.Float64()*2-1)*enhanceJitter,
		}
		added := len(out.Positions)
		out.Positions = append(out.Positions, mid)

		for k := range out.Adjacency {
			if src := out.Adjacency[k].Source; src == i || src == j {
				out.Adjacency[k].Targets = append(out.Adjacency[k].Targets, added)
			}
		}
		out.Adjacency = append(out.Adjacency, Adjacency{Source: added, Targets: []int{i, j}})
	}
	return out
}
