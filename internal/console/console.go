// Package console runs an interactive, line-oriented harmony session.
//
// Input lines are read on a separate goroutine; every session mutation
// happens on the goroutine that called Run.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/fatih/color"

	"github.com/Benny93/harmony-go/internal/config"
	"github.com/Benny93/harmony-go/internal/session"
	"github.com/Benny93/harmony-go/internal/storage"
)

const prompt = "harmony> "

// Options configures a Console.
type Options struct {
	In  io.Reader
	Out io.Writer

	// TraitStep is the default amount for up and down.
	TraitStep float64

	// Store and Game enable saving. Game carries the ID across saves.
	Store storage.Backend
	Game  *storage.SavedGame

	// Configs delivers reloaded configuration while the console runs.
	Configs <-chan *config.Config

	Logger *slog.Logger
}

// Console maps input lines to session operations.
type Console struct {
	game    *session.Session
	in      io.Reader
	out     io.Writer
	step    float64
	store   storage.Backend
	record  *storage.SavedGame
	configs <-chan *config.Config
	logger  *slog.Logger

	selected       int
	pendingRestart bool

	ok   *color.Color
	warn *color.Color
	fail *color.Color
	head *color.Color
}

// New creates a console driving game.
func New(game *session.Session, opts Options) *Console {
	if opts.TraitStep <= 0 {
		opts.TraitStep = config.DefaultTraitStep
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Store != nil && opts.Game == nil {
		opts.Game = &storage.SavedGame{}
	}
	return &Console{
		game:    game,
		in:      opts.In,
		out:     opts.Out,
		step:    opts.TraitStep,
		store:   opts.Store,
		record:  opts.Game,
		configs: opts.Configs,
		logger:  opts.Logger,
		ok:      color.New(color.FgGreen),
		warn:    color.New(color.FgYellow),
		fail:    color.New(color.FgRed),
		head:    color.New(color.FgCyan, color.Bold),
	}
}

// Selected returns the index of the selected node.
func (c *Console) Selected() int { return c.selected }

// GameID returns the ID of the saved game, empty before the first save.
func (c *Console) GameID() string {
	if c.record == nil {
		return ""
	}
	return c.record.ID
}

// Run reads commands until quit, end of input or cancellation. The game is
// saved on the way out when a store is configured.
func (c *Console) Run(ctx context.Context) error {
	if c.in == nil || c.out == nil {
		return fmt.Errorf("console input and output must not be nil")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(c.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	c.printf("%s\n", c.head.Sprint("Harmony"))
	c.printf("Type `help` for commands.\n")
	c.printStatusLine()

	for {
		c.printf("%s", prompt)
		select {
		case <-ctx.Done():
			c.printf("\n")
			c.finish(ctx)
			return ctx.Err()

		case cfg, ok := <-c.configs:
			if !ok {
				c.configs = nil
				continue
			}
			c.applyConfig(cfg)

		case line, ok := <-lines:
			if !ok {
				c.printf("\n")
				c.finish(ctx)
				select {
				case err := <-readErr:
					return err
				default:
					return nil
				}
			}
			if quit := c.Execute(ctx, line); quit {
				c.finish(ctx)
				return nil
			}
		}
	}
}

func (c *Console) applyConfig(cfg *config.Config) {
	if cfg == nil {
		return
	}
	if cfg.Game.TraitStep > 0 {
		c.step = cfg.Game.TraitStep
	}
	d := c.game.SetDifficulty(cfg.Game.Difficulty)
	c.logger.Debug("config reloaded", "difficulty", d, "trait_step", c.step)
	c.warn.Fprintf(c.out, "\nconfig reloaded: difficulty %.1f (%s), trait step %.2f\n",
		d, session.DifficultyLabel(d), c.step)
}

// finish saves the game on exit.
func (c *Console) finish(ctx context.Context) {
	if c.store == nil {
		return
	}
	if err := c.save(context.WithoutCancel(ctx)); err != nil {
		c.fail.Fprintf(c.out, "saving game: %v\n", err)
		return
	}
	c.ok.Fprintf(c.out, "Saved game %s\n", c.record.ID)
}

func (c *Console) save(ctx context.Context) error {
	if c.store == nil {
		return fmt.Errorf("saving is disabled")
	}
	c.record.Snapshot = c.game.Snapshot()
	c.record.Difficulty = c.game.Difficulty()
	return c.store.SaveGame(ctx, c.record)
}

// recordLevel stores the outcome of a completion attempt.
func (c *Console) recordLevel(ctx context.Context, res session.LevelResult, passed bool) {
	if c.store == nil {
		return
	}
	if err := c.save(ctx); err != nil {
		c.fail.Fprintf(c.out, "saving game: %v\n", err)
		return
	}
	if err := c.store.AppendLevelRecord(ctx, storage.NewLevelRecord(c.record.ID, res, passed)); err != nil {
		c.fail.Fprintf(c.out, "recording level: %v\n", err)
	}
}

func (c *Console) printf(format string, args ...any) {
	fmt.Fprintf(c.out, format, args...)
}
