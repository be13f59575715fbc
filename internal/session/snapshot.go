package session

import (
	"fmt"
	"slices"

	"github.com/Benny93/harmony-go/internal/graph"
)

// NodeData is the serialized form of one node. Edges are stored separately
// by index in Snapshot.Connections.
type NodeData struct {
	X         float64         `json:"x"`
	Y         float64         `json:"y"`
	Size      float64         `json:"size"`
	Trait     float64         `json:"trait"`
	Level     int             `json:"level"`
	Shape     graph.Shape     `json:"shape"`
	Direction graph.Direction `json:"direction"`
	Pattern   *graph.Pattern  `json:"pattern,omitempty"`
}

// Snapshot is a full, index-addressed copy of a session.
type Snapshot struct {
	Nodes        []NodeData `json:"nodes"`
	Connections  [][]int    `json:"connections"`
	Level        int        `json:"level"`
	Harmony      float64    `json:"harmony"`
	PlayerScore  float64    `json:"player_score"`
	LevelBonuses []float64  `json:"level_bonuses"`
	State        State      `json:"state,omitempty"`
}

// RestoreReport describes what Restore rebuilt.
type RestoreReport struct {
	Nodes        int
	Edges        int
	DroppedEdges int

	// ClampedLevels counts nodes whose level was outside [1, graph.MaxLevel].
	ClampedLevels int
}

// Clone returns a deep copy of snap.
func (snap Snapshot) Clone() Snapshot {
	out := snap
	out.Nodes = slices.Clone(snap.Nodes)
	for i := range out.Nodes {
		out.Nodes[i].Pattern = snap.Nodes[i].Pattern.Clone()
	}
	if snap.Connections != nil {
		out.Connections = make([][]int, len(snap.Connections))
		for i, row := range snap.Connections {
			out.Connections[i] = slices.Clone(row)
		}
	}
	out.LevelBonuses = slices.Clone(snap.LevelBonuses)
	return out
}

// Snapshot captures the current session. Patterns are shared, not copied;
// they are never mutated.
func (s *Session) Snapshot() Snapshot {
	nodes := s.structure.Nodes()
	index := make(map[*graph.Node]int, len(nodes))
	for i, n := range nodes {
		index[n] = i
	}

	snap := Snapshot{
		Nodes:        make([]NodeData, len(nodes)),
		Connections:  make([][]int, len(nodes)),
		Level:        s.structure.Level(),
		Harmony:      s.structure.Harmony(),
		PlayerScore:  s.score,
		LevelBonuses: slices.Clone(s.bonuses),
		State:        s.state,
	}
	for i, n := range nodes {
		snap.Nodes[i] = NodeData{
			X:         n.X,
			Y:         n.Y,
			Size:      n.Size,
			Trait:     n.Trait,
			Level:     n.Level,
			Shape:     n.Shape,
			Direction: n.Direction,
			Pattern:   n.Pattern,
		}
		targets := make([]int, 0, n.Degree())
		for _, p := range n.Peers() {
			if j, ok := index[p]; ok {
				targets = append(targets, j)
			}
		}
		snap.Connections[i] = targets
	}
	return snap
}

func validateSnapshot(snap Snapshot) error {
	if snap.Level < 1 {
		return fmt.Errorf("%w: level %d", ErrMalformedSnapshot, snap.Level)
	}
	if len(snap.Connections) > len(snap.Nodes) {
		return fmt.Errorf("%w: %d adjacency rows for %d nodes",
			ErrMalformedSnapshot, len(snap.Connections), len(snap.Nodes))
	}
	for i, d := range snap.Nodes {
		if d.Size <= 0 {
			return fmt.Errorf("%w: node %d has size %g", ErrMalformedSnapshot, i, d.Size)
		}
		if d.Shape < 0 || int(d.Shape) >= graph.ShapeCount {
			return fmt.Errorf("%w: node %d has shape %d", ErrMalformedSnapshot, i, d.Shape)
		}
	}
	return nil
}

// Restore replaces the session state with snap. Nodes are rebuilt first and
// wired second, then swapped in at once; on error nothing changes. Edges
// pointing out of range or back at their own node are dropped and counted,
// as are node levels clamped into range.
func (s *Session) Restore(snap Snapshot) (RestoreReport, error) {
	if err := validateSnapshot(snap); err != nil {
		return RestoreReport{}, err
	}

	report := RestoreReport{Nodes: len(snap.Nodes)}
	nodes := make([]*graph.Node, len(snap.Nodes))
	for i, d := range snap.Nodes {
		n := graph.NewNode(d.X, d.Y, d.Size, d.Trait, d.Level, d.Pattern)
		n.Shape = d.Shape
		n.Direction = d.Direction
		if n.Level != d.Level {
			report.ClampedLevels++
			s.logger.Warn("clamping node level", "node", i, "level", d.Level, "clamped", n.Level)
		}
		nodes[i] = n
	}

	for i, row := range snap.Connections {
		for _, j := range row {
			if j < 0 || j >= len(nodes) || j == i {
				report.DroppedEdges++
				s.logger.Warn("dropping malformed edge", "from", i, "to", j, "nodes", len(nodes))
				continue
			}
			if nodes[i].ConnectTo(nodes[j]) {
				report.Edges++
			}
		}
	}

	s.structure.Replace(nodes, snap.Level, snap.Harmony)
	s.score = snap.PlayerScore
	s.bonuses = slices.Clone(snap.LevelBonuses)
	s.state = snap.State
	return report, nil
}
