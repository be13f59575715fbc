// Package session owns one play-through of the harmony engine: the live
// structure, the layout generator, the undo history, the player score and
// the level targets.
//
// Every mutating action validates its node indices, pushes a snapshot,
// mutates and recomputes harmony. A Session is not safe for concurrent use;
// callers serialize access on a single goroutine.
package session

import (
	"fmt"
	"log/slog"
	"math/rand/v2"
	"slices"

	"github.com/Benny93/harmony-go/internal/graph"
	"github.com/Benny93/harmony-go/internal/layout"
)

// State is the play state of a session.
type State int

const (
	StatePlaying State = iota
	StateGameOver
)

// String returns "playing" or "game over".
func (st State) String() string {
	if st == StateGameOver {
		return "game over"
	}
	return "playing"
}

// Options configures a new Session. Zero values pick defaults.
type Options struct {
	HistoryCapacity int
	Difficulty      float64
	Canvas          layout.Canvas
	Rand            graph.Rand
	Logger          *slog.Logger
}

// Session is a single game.
type Session struct {
	structure  *graph.Structure
	generator  *layout.Generator
	history    *History
	rng        graph.Rand
	logger     *slog.Logger
	difficulty float64
	score      float64
	bonuses    []float64
	state      State
}

// New creates a session at level 1 with the seed node in place.
func New(opts Options) *Session {
	if opts.Difficulty == 0 {
		opts.Difficulty = DefaultDifficulty
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	s := &Session{
		generator:  layout.New(opts.Canvas),
		history:    NewHistory(opts.HistoryCapacity),
		rng:        opts.Rand,
		logger:     opts.Logger,
		difficulty: ClampDifficulty(opts.Difficulty),
	}
	s.reset()
	return s
}

func (s *Session) reset() {
	s.structure = graph.NewStructure()
	s.structure.AddNode(s.generator.Initial())
	s.score = 0
	s.bonuses = nil
	s.state = StatePlaying
	s.history.Clear()
}

// Structure returns the live structure. Mutate it through Session actions
// so that undo snapshots are taken.
func (s *Session) Structure() *graph.Structure { return s.structure }

// Level returns the current level.
func (s *Session) Level() int { return s.structure.Level() }

// Harmony returns the current harmony percentage.
func (s *Session) Harmony() float64 { return s.structure.Harmony() }

// Score returns the accumulated player score.
func (s *Session) Score() float64 { return s.score }

// Bonuses returns the bonus earned for each completed level.
func (s *Session) Bonuses() []float64 { return slices.Clone(s.bonuses) }

// State returns the play state.
func (s *Session) State() State { return s.state }

// Difficulty returns the difficulty knob value.
func (s *Session) Difficulty() float64 { return s.difficulty }

// UndoDepth returns the number of snapshots available to Undo.
func (s *Session) UndoDepth() int { return s.history.Len() }

// SetDifficulty moves the difficulty knob, clamped to its range, and
// returns the applied value.
func (s *Session) SetDifficulty(d float64) float64 {
	s.difficulty = ClampDifficulty(d)
	return s.difficulty
}

// Target returns the harmony needed to complete the current level, and
// false when the level has no target.
func (s *Session) Target() (float64, bool) {
	level := s.structure.Level()
	if !HasTarget(level, s.difficulty) {
		return 0, false
	}
	return Target(level, s.difficulty), true
}

// Hint suggests the next move.
func (s *Session) Hint() string {
	return s.structure.Hint()
}

func (s *Session) node(i int) (*graph.Node, error) {
	n, ok := s.structure.Node(i)
	if !ok {
		return nil, fmt.Errorf("%w: %d (structure has %d nodes)", ErrNodeIndex, i, s.structure.Len())
	}
	return n, nil
}

func (s *Session) playing() error {
	if s.state == StateGameOver {
		return ErrGameOver
	}
	return nil
}

// commit recomputes harmony after a mutation and logs the breakdown.
func (s *Session) commit(action string, index int) {
	s.structure.ComputeHarmony()
	b := s.structure.Breakdown()
	s.logger.Debug("harmony updated",
		"action", action,
		"node", index,
		"harmony", b.Harmony,
		"balance", b.Balance,
		"connection_ratio", b.ConnectionRatio,
		"evolution", b.AvgEvolution,
		"disharmony", b.Disharmony,
	)
}

// AdjustTrait shifts the trait of node i by delta and returns the new trait.
func (s *Session) AdjustTrait(i int, delta float64) (float64, error) {
	if err := s.playing(); err != nil {
		return 0, err
	}
	if !finite(delta) {
		return 0, fmt.Errorf("%w: trait delta %v", ErrNotFinite, delta)
	}
	n, err := s.node(i)
	if err != nil {
		return 0, err
	}
	s.history.Push(s.Snapshot())
	trait := n.AdjustTrait(delta)
	s.commit("adjust_trait", i)
	return trait, nil
}

// Evolve evolves node i. It reports false when a plain node is already at
// the maximum level, in which case nothing changes and no undo entry is kept.
func (s *Session) Evolve(i int) (bool, error) {
	if err := s.playing(); err != nil {
		return false, err
	}
	n, err := s.node(i)
	if err != nil {
		return false, err
	}
	if !n.IsContainer() && n.Level >= graph.MaxLevel {
		return false, nil
	}
	s.history.Push(s.Snapshot())
	evolved := n.Evolve(s.rng)
	s.commit("evolve", i)
	return evolved, nil
}

// ChangeShape cycles the shape of node i and returns the new shape.
func (s *Session) ChangeShape(i int) (graph.Shape, error) {
	if err := s.playing(); err != nil {
		return graph.ShapeCircle, err
	}
	n, err := s.node(i)
	if err != nil {
		return graph.ShapeCircle, err
	}
	s.history.Push(s.Snapshot())
	shape := n.ChangeShape()
	s.commit("change_shape", i)
	return shape, nil
}

// SpawnChild grows a connected child next to node i and returns its index.
func (s *Session) SpawnChild(i int) (int, error) {
	if err := s.playing(); err != nil {
		return -1, err
	}
	n, err := s.node(i)
	if err != nil {
		return -1, err
	}
	s.history.Push(s.Snapshot())
	child := n.SpawnChild(s.rng, s.structure)
	s.commit("spawn_child", i)
	return s.structure.Index(child), nil
}

// Toggle connects nodes i and j, or disconnects them when already
// connected. It reports whether they are connected afterwards.
func (s *Session) Toggle(i, j int) (bool, error) {
	if err := s.playing(); err != nil {
		return false, err
	}
	if i == j {
		return false, fmt.Errorf("%w: %d", ErrSameNode, i)
	}
	a, err := s.node(i)
	if err != nil {
		return false, err
	}
	b, err := s.node(j)
	if err != nil {
		return false, err
	}
	s.history.Push(s.Snapshot())
	connected := s.structure.Toggle(a, b)
	s.commit("toggle", i)
	return connected, nil
}

// Undo restores the most recent snapshot. It reports false when there is
// nothing to undo or the game is over.
func (s *Session) Undo() bool {
	if s.state == StateGameOver {
		return false
	}
	snap, ok := s.history.Pop()
	if !ok {
		return false
	}
	if _, err := s.Restore(snap); err != nil {
		s.logger.Error("undo failed", "error", err)
		return false
	}
	return true
}

// Restart returns to level 1 with a zero score and an empty history.
func (s *Session) Restart() {
	s.reset()
	s.logger.Debug("session restarted")
}

// LevelResult describes a completion attempt.
type LevelResult struct {
	Level         int     `json:"level"`
	Harmony       float64 `json:"harmony"`
	Target        float64 `json:"target"`
	HasTarget     bool    `json:"has_target"`
	Bonus         float64 `json:"bonus"`
	Score         float64 `json:"score"`
	NextLevel     int     `json:"next_level,omitempty"`
	Nodes         int     `json:"nodes,omitempty"`
	OrganicFactor float64 `json:"organic_factor,omitempty"`
}

// Complete finishes the current level. When harmony reaches the target (or
// the level has none) the bonus is banked and the next level is generated
// from the frozen current one. Otherwise the session is over and
// ErrTargetNotReached is returned.
func (s *Session) Complete() (LevelResult, error) {
	if err := s.playing(); err != nil {
		return LevelResult{}, err
	}

	level := s.structure.Level()
	res := LevelResult{Level: level, Harmony: s.structure.Harmony()}
	res.Target, res.HasTarget = s.Target()

	if res.HasTarget && res.Harmony < res.Target {
		s.state = StateGameOver
		res.Score = s.score
		s.logger.Info("target not reached", "level", level, "harmony", res.Harmony, "target", res.Target)
		return res, fmt.Errorf("%w: %.1f%% of %.1f%%", ErrTargetNotReached, res.Harmony, res.Target)
	}

	res.Bonus = Bonus(level, s.difficulty, res.Harmony, res.Target)
	s.score += res.Bonus
	s.bonuses = append(s.bonuses, res.Bonus)
	res.Score = s.score

	next := s.structure.AdvanceLevel()
	gen := s.generator.Generate(s.structure.Previous(), next)
	for _, n := range gen.Nodes {
		s.structure.AddNode(n)
	}
	res.NextLevel = next
	res.Nodes = len(gen.Nodes)
	res.OrganicFactor = gen.OrganicFactor

	s.logger.Info("level complete",
		"level", level,
		"harmony", res.Harmony,
		"bonus", res.Bonus,
		"score", s.score,
		"next_level", next,
		"organic_factor", gen.OrganicFactor,
		"span", gen.Span,
	)
	return res, nil
}

// Status is a read-only summary of the session.
type Status struct {
	Level           int             `json:"level"`
	Harmony         float64         `json:"harmony"`
	Target          float64         `json:"target"`
	HasTarget       bool            `json:"has_target"`
	Difficulty      float64         `json:"difficulty"`
	DifficultyLabel string          `json:"difficulty_label"`
	Score           float64         `json:"score"`
	Nodes           int             `json:"nodes"`
	Edges           int             `json:"edges"`
	State           string          `json:"state"`
	UndoDepth       int             `json:"undo_depth"`
	Hint            string          `json:"hint"`
	Breakdown       graph.Breakdown `json:"breakdown"`
}

// Status summarizes the session.
func (s *Session) Status() Status {
	st := Status{
		Level:           s.structure.Level(),
		Harmony:         s.structure.Harmony(),
		Difficulty:      s.difficulty,
		DifficultyLabel: DifficultyLabel(s.difficulty),
		Score:           s.score,
		Nodes:           s.structure.Len(),
		Edges:           s.structure.EdgeCount(),
		State:           s.state.String(),
		UndoDepth:       s.history.Len(),
		Hint:            s.structure.Hint(),
		Breakdown:       s.structure.Breakdown(),
	}
	st.Target, st.HasTarget = s.Target()
	return st
}
