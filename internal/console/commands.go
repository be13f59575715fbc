package console

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/Benny93/harmony-go/internal/graph"
	"github.com/Benny93/harmony-go/internal/session"
)

var helpText = []struct{ usage, desc string }{
	{"help", "show this list"},
	{"nodes", "list nodes (* marks the selection)"},
	{"select <i>", "select node i"},
	{"up [step]", "shift the selected trait towards love"},
	{"down [step]", "shift the selected trait towards logic"},
	{"evolve", "evolve the selected node"},
	{"shape", "cycle the selected node's shape"},
	{"child", "spawn a connected child of the selected node"},
	{"connect <j>", "toggle the edge between the selection and j"},
	{"connect <i> <j>", "toggle the edge between i and j"},
	{"undo", "undo the last action"},
	{"hint", "suggest a move"},
	{"status", "show level, harmony and score"},
	{"target", "show the harmony target of this level"},
	{"difficulty [d]", "show or set difficulty (1-10)"},
	{"complete", "complete the level"},
	{"restart", "start over (enter twice to confirm)"},
	{"save", "save the game"},
	{"quit, exit", "save and leave"},
}

// Execute runs one command line and reports whether the console should
// stop. Errors are printed, never returned.
func (c *Console) Execute(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}
	cmd, args := strings.ToLower(fields[0]), fields[1:]

	if cmd != "restart" {
		c.pendingRestart = false
	}

	var err error
	switch cmd {
	case "help", "?":
		c.help()
	case "nodes", "ls":
		c.nodes()
	case "select", "sel":
		err = c.selectNode(args)
	case "up", "love":
		err = c.adjust(args, 1)
	case "down", "logic":
		err = c.adjust(args, -1)
	case "evolve":
		err = c.evolve()
	case "shape":
		err = c.shape()
	case "child", "spawn":
		err = c.child()
	case "connect", "toggle":
		err = c.connect(args)
	case "undo":
		c.undo()
	case "hint":
		c.printf("%s\n", c.game.Hint())
	case "status":
		c.status()
	case "target":
		c.target()
	case "difficulty":
		err = c.difficulty(args)
	case "complete":
		c.complete(ctx)
	case "restart":
		c.restart()
	case "save":
		err = c.saveCmd(ctx)
	case "quit", "exit":
		return true
	default:
		err = fmt.Errorf("unknown command %q, type `help` for a list", cmd)
	}

	if err != nil {
		c.fail.Fprintf(c.out, "error: %v\n", err)
	}
	return false
}

func (c *Console) help() {
	c.head.Fprintln(c.out, "Commands")
	for _, h := range helpText {
		c.printf("  %-18s %s\n", h.usage, h.desc)
	}
}

func (c *Console) nodes() {
	snap := c.game.Snapshot()
	for i, n := range snap.Nodes {
		mark := " "
		if i == c.selected {
			mark = "*"
		}
		c.printf("%s %2d  %-9s trait %.2f  level %d  peers %v", mark, i, n.Shape, n.Trait, n.Level, snap.Connections[i])
		if n.Pattern != nil {
			c.printf("  embeds %d", n.Pattern.Len())
		}
		c.printf("\n")
	}
}

func parseIndex(s string) (int, error) {
	i, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid node index %q", s)
	}
	return i, nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func (c *Console) selectNode(args []string) error {
	if len(args) != 1 {
		return errors.New("usage: select <i>")
	}
	i, err := parseIndex(args[0])
	if err != nil {
		return err
	}
	if _, ok := c.game.Structure().Node(i); !ok {
		return fmt.Errorf("%w: %d", session.ErrNodeIndex, i)
	}
	c.selected = i
	c.printf("selected node %d\n", i)
	return nil
}

func (c *Console) adjust(args []string, sign float64) error {
	step := c.step
	if len(args) > 0 {
		v, err := strconv.ParseFloat(args[0], 64)
		if err != nil || !isFinite(v) || v <= 0 {
			return fmt.Errorf("invalid step %q", args[0])
		}
		step = v
	}
	trait, err := c.game.AdjustTrait(c.selected, sign*step)
	if err != nil {
		return err
	}
	c.printf("node %d trait %.2f, harmony %.1f%%\n", c.selected, trait, c.game.Harmony())
	return nil
}

func (c *Console) evolve() error {
	evolved, err := c.game.Evolve(c.selected)
	if err != nil {
		return err
	}
	if !evolved {
		c.warn.Fprintf(c.out, "node %d is already at level %d\n", c.selected, graph.MaxLevel)
		return nil
	}
	n, _ := c.game.Structure().Node(c.selected)
	c.printf("node %d now level %d, harmony %.1f%%\n", c.selected, n.Level, c.game.Harmony())
	return nil
}

func (c *Console) shape() error {
	shape, err := c.game.ChangeShape(c.selected)
	if err != nil {
		return err
	}
	c.printf("node %d is now a %s\n", c.selected, shape)
	return nil
}

func (c *Console) child() error {
	idx, err := c.game.SpawnChild(c.selected)
	if err != nil {
		return err
	}
	c.printf("spawned node %d from node %d, harmony %.1f%%\n", idx, c.selected, c.game.Harmony())
	return nil
}

func (c *Console) connect(args []string) error {
	var a, b int
	var err error
	switch len(args) {
	case 1:
		a = c.selected
		if b, err = parseIndex(args[0]); err != nil {
			return err
		}
	case 2:
		if a, err = parseIndex(args[0]); err != nil {
			return err
		}
		if b, err = parseIndex(args[1]); err != nil {
			return err
		}
	default:
		return errors.New("usage: connect <j> | connect <i> <j>")
	}

	connected, err := c.game.Toggle(a, b)
	if err != nil {
		return err
	}
	verb := "disconnected"
	if connected {
		verb = "connected"
	}
	c.printf("%s %d and %d, harmony %.1f%%\n", verb, a, b, c.game.Harmony())
	return nil
}

// clampSelection keeps the selection valid after the node set shrinks.
func (c *Console) clampSelection() {
	if c.selected >= c.game.Structure().Len() {
		c.selected = 0
	}
}

func (c *Console) undo() {
	if !c.game.Undo() {
		c.warn.Fprintln(c.out, "nothing to undo")
		return
	}
	c.clampSelection()
	c.printf("undone, harmony %.1f%%\n", c.game.Harmony())
}

func (c *Console) printStatusLine() {
	st := c.game.Status()
	target := "none"
	if st.HasTarget {
		target = fmt.Sprintf("%.1f%%", st.Target)
	}
	c.printf("level %d  harmony %.1f%%  target %s  score %.1f  nodes %d  edges %d\n",
		st.Level, st.Harmony, target, st.Score, st.Nodes, st.Edges)
}

func (c *Console) status() {
	st := c.game.Status()
	c.head.Fprintf(c.out, "Level %d (%s)\n", st.Level, st.State)
	c.printStatusLine()
	c.printf("difficulty %.1f (%s), undo steps %d\n", st.Difficulty, st.DifficultyLabel, st.UndoDepth)
	b := st.Breakdown
	c.printf("balance %.2f  connections %.2f  evolution %.2f  disharmony %.3f\n",
		b.Balance, b.ConnectionFactor, b.EvolutionFactor, b.Disharmony)
}

func (c *Console) target() {
	target, ok := c.game.Target()
	if !ok {
		c.printf("no target at level %d\n", c.game.Level())
		return
	}
	h := c.game.Harmony()
	if h >= target {
		c.ok.Fprintf(c.out, "target %.1f%% reached (harmony %.1f%%)\n", target, h)
		return
	}
	c.warn.Fprintf(c.out, "target %.1f%%, harmony %.1f%% (%.1f to go)\n", target, h, target-h)
}

func (c *Console) difficulty(args []string) error {
	if len(args) == 0 {
		d := c.game.Difficulty()
		c.printf("difficulty %.1f (%s)\n", d, session.DifficultyLabel(d))
		return nil
	}
	v, err := strconv.ParseFloat(args[0], 64)
	if err != nil || !isFinite(v) {
		return fmt.Errorf("invalid difficulty %q", args[0])
	}
	d := c.game.SetDifficulty(v)
	c.printf("difficulty %.1f (%s)\n", d, session.DifficultyLabel(d))
	return nil
}

func (c *Console) complete(ctx context.Context) {
	res, err := c.game.Complete()
	switch {
	case errors.Is(err, session.ErrGameOver):
		c.fail.Fprintf(c.out, "error: %v\n", err)
		return
	case errors.Is(err, session.ErrTargetNotReached):
		c.fail.Fprintf(c.out, "Game over: harmony %.1f%% is below the target %.1f%%. Final score %.1f\n",
			res.Harmony, res.Target, res.Score)
		c.printf("type `restart` twice to play again\n")
		c.recordLevel(ctx, res, false)
		return
	case err != nil:
		c.fail.Fprintf(c.out, "error: %v\n", err)
		return
	}

	if res.HasTarget {
		c.ok.Fprintf(c.out, "Level %d complete! harmony %.1f%% of %.1f%%, bonus %.1f, score %.1f\n",
			res.Level, res.Harmony, res.Target, res.Bonus, res.Score)
	} else {
		c.ok.Fprintf(c.out, "Level %d complete! harmony %.1f%%, score %.1f\n", res.Level, res.Harmony, res.Score)
	}
	c.selected = 0
	c.printf("level %d: %d new nodes, connect them to build harmony\n", res.NextLevel, res.Nodes)
	c.recordLevel(ctx, res, true)
}

func (c *Console) restart() {
	if !c.pendingRestart {
		c.pendingRestart = true
		c.warn.Fprintln(c.out, "type `restart` again to lose all progress")
		return
	}
	c.pendingRestart = false
	c.game.Restart()
	c.selected = 0
	c.ok.Fprintln(c.out, "restarted at level 1")
}

func (c *Console) saveCmd(ctx context.Context) error {
	if err := c.save(ctx); err != nil {
		return err
	}
	c.ok.Fprintf(c.out, "saved game %s\n", c.record.ID)
	return nil
}
