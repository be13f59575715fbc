// Package cmd provides CLI command implementations for Harmony.
package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/fatih/color"

	"github.com/Benny93/harmony-go/internal/config"
	"github.com/Benny93/harmony-go/internal/console"
	"github.com/Benny93/harmony-go/internal/session"
	"github.com/Benny93/harmony-go/internal/storage"
	"github.com/Benny93/harmony-go/mcp"
)

// Version is set at build time via ldflags.
var Version = "dev"

var (
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	bold   = color.New(color.Bold)
)

// PlayCmd starts an interactive game.
type PlayCmd struct {
	Seed        uint64  `help:"RNG seed (0 uses the config seed, or a random one)"`
	Difficulty  float64 `help:"Difficulty from 1 to 10 (0 uses the config value)"`
	Resume      string  `help:"ID of a saved game to resume"`
	WatchConfig bool    `help:"Reload difficulty and trait step when the config file changes"`
	NoSave      bool    `help:"Keep the game in memory only"`

	in  io.Reader `kong:"-"`
	out io.Writer `kong:"-"`
}

// Run executes the play command.
func (c *PlayCmd) Run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := slog.Default()

	store, err := openGameStore(cfg, c.NoSave)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	seed := pickSeed(c.Seed, cfg.Game.Seed)
	game := newSession(cfg, seed, c.Difficulty, logger)
	record := &storage.SavedGame{Seed: seed}
	out := writerOr(c.out, os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if c.Resume != "" {
		saved, err := store.LoadGame(ctx, c.Resume)
		if err != nil {
			return fmt.Errorf("loading game: %w", err)
		}
		if saved == nil {
			return fmt.Errorf("no saved game %s. Run 'harmony list' to see saved games", c.Resume)
		}
		game.SetDifficulty(saved.Difficulty)
		if c.Difficulty > 0 {
			game.SetDifficulty(c.Difficulty)
		}
		report, err := game.Restore(saved.Snapshot)
		if err != nil {
			return fmt.Errorf("restoring game %s: %w", saved.ID, err)
		}
		if report.DroppedEdges > 0 {
			yellow.Fprintf(out, "Dropped %d malformed edges\n", report.DroppedEdges)
		}
		if report.ClampedLevels > 0 {
			yellow.Fprintf(out, "Clamped %d out-of-range node levels\n", report.ClampedLevels)
		}
		green.Fprintf(out, "Resumed game %s at level %d\n", saved.ID, saved.Level())
		record = saved
	}

	var configs chan *config.Config
	if c.WatchConfig {
		configs = make(chan *config.Config, 1)
		go func() {
			err := config.Watch(ctx, config.Path(), func(cfg *config.Config) {
				select {
				case configs <- cfg:
				default:
				}
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("config watch stopped", "error", err)
			}
		}()
	}

	con := console.New(game, console.Options{
		In:        readerOr(c.in, os.Stdin),
		Out:       out,
		TraitStep: cfg.Game.TraitStep,
		Store:     store,
		Game:      record,
		Configs:   configs,
		Logger:    logger,
	})

	err = con.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// MCPCmd starts the MCP server.
type MCPCmd struct {
	Seed       uint64  `help:"RNG seed (0 uses the config seed, or a random one)"`
	Difficulty float64 `help:"Difficulty from 1 to 10 (0 uses the config value)"`
	NoSave     bool    `help:"Do not record the game"`
}

// Run executes the mcp command.
func (c *MCPCmd) Run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := slog.Default()

	store, err := openGameStore(cfg, c.NoSave)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	seed := pickSeed(c.Seed, cfg.Game.Seed)
	game := newSession(cfg, seed, c.Difficulty, logger)
	record := &storage.SavedGame{Seed: seed}

	server := mcp.NewServer(game, Version)
	server.OnLevel = func(ctx context.Context, res session.LevelResult, completeErr error) {
		record.Snapshot = game.Snapshot()
		record.Difficulty = game.Difficulty()
		if err := store.SaveGame(ctx, record); err != nil {
			logger.Error("saving game", "error", err)
			return
		}
		if err := store.AppendLevelRecord(ctx, storage.NewLevelRecord(record.ID, res, completeErr == nil)); err != nil {
			logger.Error("recording level", "error", err)
		}
	}

	// Note: No output to stdout - MCP server uses stdio for JSON-RPC only
	err = server.Run(ctx, os.Stdin, os.Stdout)
	if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// ListCmd lists saved games.
type ListCmd struct {
	out io.Writer `kong:"-"`
}

// Run executes the list command.
func (c *ListCmd) Run() error {
	out := writerOr(c.out, os.Stdout)
	store, err := loadStorage()
	if errors.Is(err, errNoGames) {
		fmt.Fprintln(out, "No saved games found")
		return nil
	}
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	games, err := store.ListGames(context.Background())
	if err != nil {
		return fmt.Errorf("listing games: %w", err)
	}
	if len(games) == 0 {
		fmt.Fprintln(out, "No saved games found")
		return nil
	}

	fmt.Fprintln(out, "Saved games:")
	for _, g := range games {
		fmt.Fprintf(out, "\n  %s\n", bold.Sprint(g.ID))
		fmt.Fprintf(out, "    Level:      %d\n", g.Level())
		fmt.Fprintf(out, "    Harmony:    %.1f%%\n", g.Harmony())
		fmt.Fprintf(out, "    Score:      %.1f\n", g.Score())
		fmt.Fprintf(out, "    Difficulty: %.1f (%s)\n", g.Difficulty, session.DifficultyLabel(g.Difficulty))
		fmt.Fprintf(out, "    Saved:      %s\n", g.SavedAt.Local().Format("2006-01-02 15:04:05"))
	}
	return nil
}

// StatusCmd shows one saved game and its level history.
type StatusCmd struct {
	ID string `arg:"" help:"Saved game ID"`

	out io.Writer `kong:"-"`
}

// Run executes the status command.
func (c *StatusCmd) Run() error {
	out := writerOr(c.out, os.Stdout)
	store, err := loadStorage()
	if errors.Is(err, errNoGames) {
		return fmt.Errorf("no saved game %s", c.ID)
	}
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	g, err := store.LoadGame(ctx, c.ID)
	if err != nil {
		return fmt.Errorf("loading game: %w", err)
	}
	if g == nil {
		return fmt.Errorf("no saved game %s", c.ID)
	}
	records, err := store.LevelRecords(ctx, c.ID)
	if err != nil {
		return fmt.Errorf("loading level records: %w", err)
	}

	fmt.Fprintf(out, "Game %s\n", g.ID)
	fmt.Fprintf(out, "  State:      %s\n", g.Snapshot.State)
	fmt.Fprintf(out, "  Level:      %d\n", g.Level())
	fmt.Fprintf(out, "  Harmony:    %.1f%%\n", g.Harmony())
	fmt.Fprintf(out, "  Score:      %.1f\n", g.Score())
	fmt.Fprintf(out, "  Nodes:      %d\n", len(g.Snapshot.Nodes))
	fmt.Fprintf(out, "  Difficulty: %.1f (%s)\n", g.Difficulty, session.DifficultyLabel(g.Difficulty))
	fmt.Fprintf(out, "  Seed:       %d\n", g.Seed)
	fmt.Fprintf(out, "  Saved:      %s\n", g.SavedAt.Local().Format("2006-01-02 15:04:05"))

	if len(records) == 0 {
		return nil
	}
	fmt.Fprintln(out, "\nLevels:")
	for _, r := range records {
		target := "none"
		if r.HasTarget {
			target = fmt.Sprintf("%.1f%%", r.Target)
		}
		result := green.Sprint("passed")
		if !r.Passed {
			result = color.RedString("failed")
		}
		fmt.Fprintf(out, "  %2d  harmony %5.1f%%  target %-6s  bonus %5.1f  %s\n",
			r.Level, r.Harmony, target, r.Bonus, result)
	}
	return nil
}

// CleanCmd deletes saved games.
type CleanCmd struct {
	ID    string `arg:"" optional:"" help:"Saved game ID (all games if omitted)"`
	Force bool   `short:"f" help:"Skip confirmation"`

	in  io.Reader `kong:"-"`
	out io.Writer `kong:"-"`
}

// Run executes the clean command.
func (c *CleanCmd) Run() error {
	out := writerOr(c.out, os.Stdout)
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	dir := cfg.StorageDir()
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return fmt.Errorf("no saved games at %s. Nothing to clean", dir)
	}

	target := "all saved games"
	if c.ID != "" {
		target = "game " + c.ID
	}
	if !c.Force {
		fmt.Fprintf(out, "Delete %s? [y/N] ", target)
		var response string
		_, _ = fmt.Fscanln(readerOr(c.in, os.Stdin), &response)
		if response != "y" && response != "Y" {
			fmt.Fprintln(out, "Aborted")
			return nil
		}
	}

	store := storage.NewBadgerBackend()
	if err := store.Initialize(dir, false); err != nil {
		return fmt.Errorf("initializing storage: %w", err)
	}
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	ids := []string{c.ID}
	if c.ID == "" {
		games, err := store.ListGames(ctx)
		if err != nil {
			return fmt.Errorf("listing games: %w", err)
		}
		ids = ids[:0]
		for _, g := range games {
			ids = append(ids, g.ID)
		}
	}

	deleted := 0
	for _, id := range ids {
		found, err := store.DeleteGame(ctx, id)
		if err != nil {
			return fmt.Errorf("deleting game %s: %w", id, err)
		}
		if found {
			deleted++
		}
	}
	if c.ID != "" && deleted == 0 {
		return fmt.Errorf("no saved game %s", c.ID)
	}

	green.Fprintf(out, "Deleted %d saved game(s)\n", deleted)
	return nil
}

// SetupCmd writes the default config and prints the MCP client snippet.
type SetupCmd struct {
	Format string `help:"Output format (json|text)" enum:"json,text" default:"json"`
	Force  bool   `help:"Overwrite an existing config file"`

	out io.Writer `kong:"-"`
}

// Run executes the setup command.
func (c *SetupCmd) Run() error {
	// Validate format
	if c.Format != "json" && c.Format != "text" {
		return fmt.Errorf("invalid format: %s (must be json or text)", c.Format)
	}
	out := writerOr(c.out, os.Stdout)

	created, err := config.EnsureExists(c.Force)
	if err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	if created {
		green.Fprintf(out, "✓ Created config at %s\n", config.Path())
	} else {
		fmt.Fprintf(out, "Config exists at %s (use --force to overwrite)\n", config.Path())
	}

	fmt.Fprintln(out, "\nMCP client configuration:")
	return writeConfig(out, generateMCPConfig(), c.Format)
}

func generateMCPConfig() map[string]any {
	return map[string]any{
		"mcpServers": map[string]any{
			"harmony": map[string]any{
				"command": "harmony",
				"args":    []string{"mcp"},
			},
		},
	}
}

func writeConfig(w io.Writer, cfg map[string]any, format string) error {
	if format == "json" {
		content, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return fmt.Errorf("marshaling JSON: %w", err)
		}
		_, err = fmt.Fprintf(w, "%s\n", content)
		return err
	}

	// Text format - just output key-value pairs
	var sb strings.Builder
	sb.WriteString("# MCP Configuration for Harmony\n")
	sb.WriteString("# Generated by harmony setup\n\n")
	for key, value := range cfg {
		sb.WriteString(fmt.Sprintf("%s: %s\n", key, toJSON(value)))
	}
	_, err := io.WriteString(w, sb.String())
	return err
}

// ScoreCmd scores a snapshot file without starting a game.
type ScoreCmd struct {
	File string `arg:"" type:"existingfile" help:"Snapshot JSON file"`
	JSON bool   `help:"Print the status as JSON"`

	out io.Writer `kong:"-"`
}

// Run executes the score command.
func (c *ScoreCmd) Run() error {
	out := writerOr(c.out, os.Stdout)
	data, err := os.ReadFile(c.File)
	if err != nil {
		return fmt.Errorf("reading snapshot: %w", err)
	}

	var snap session.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("parsing snapshot: %w", err)
	}

	game := session.New(session.Options{Logger: slog.Default()})
	report, err := game.Restore(snap)
	if err != nil {
		return err
	}
	// Score the structure as it stands, not the harmony stored in the file.
	game.Structure().ComputeHarmony()
	st := game.Status()

	if c.JSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(st)
	}

	b := st.Breakdown
	fmt.Fprintf(out, "## %s\n\n", filepath.Base(c.File))
	fmt.Fprintf(out, "Level:       %d\n", st.Level)
	fmt.Fprintf(out, "Nodes:       %d\n", report.Nodes)
	fmt.Fprintf(out, "Edges:       %d\n", report.Edges)
	if report.DroppedEdges > 0 {
		yellow.Fprintf(out, "Dropped:     %d malformed edges\n", report.DroppedEdges)
	}
	if report.ClampedLevels > 0 {
		yellow.Fprintf(out, "Clamped:     %d node levels\n", report.ClampedLevels)
	}
	fmt.Fprintf(out, "Harmony:     %.2f%% (stored %.2f%%)\n", st.Harmony, snap.Harmony)
	fmt.Fprintf(out, "Balance:     %.3f (avg trait %.3f)\n", b.Balance, b.AvgTrait)
	fmt.Fprintf(out, "Connections: %.3f (ratio %.3f)\n", b.ConnectionFactor, b.ConnectionRatio)
	fmt.Fprintf(out, "Evolution:   %.3f (avg level %.3f)\n", b.EvolutionFactor, b.AvgEvolution)
	fmt.Fprintf(out, "Disharmony:  %.3f\n", b.Disharmony)
	fmt.Fprintf(out, "\nHint: %s\n", st.Hint)
	return nil
}

// Helper functions

var errNoGames = errors.New("no saved games")

func writerOr(w, fallback io.Writer) io.Writer {
	if w != nil {
		return w
	}
	return fallback
}

func readerOr(r, fallback io.Reader) io.Reader {
	if r != nil {
		return r
	}
	return fallback
}

func pickSeed(flag, configured uint64) uint64 {
	switch {
	case flag != 0:
		return flag
	case configured != 0:
		return configured
	default:
		return rand.Uint64()
	}
}

func newSession(cfg *config.Config, seed uint64, difficulty float64, logger *slog.Logger) *session.Session {
	if difficulty <= 0 {
		difficulty = cfg.Game.Difficulty
	}
	return session.New(session.Options{
		HistoryCapacity: cfg.Game.HistoryCapacity,
		Difficulty:      difficulty,
		Canvas:          cfg.Canvas,
		Rand:            rand.New(rand.NewPCG(seed, seed)),
		Logger:          logger,
	})
}

// openGameStore opens the badger store for writing, or an in-memory store
// when nothing should persist.
func openGameStore(cfg *config.Config, inMemory bool) (storage.Backend, error) {
	if inMemory {
		store := storage.NewMemoryBackend()
		if err := store.Initialize("", false); err != nil {
			return nil, err
		}
		return store, nil
	}

	dir := cfg.StorageDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating storage directory: %w", err)
	}
	store := storage.NewBadgerBackend()
	if err := store.Initialize(dir, false); err != nil {
		return nil, fmt.Errorf("initializing storage: %w", err)
	}
	return store, nil
}

// loadStorage opens the saved games read-only.
func loadStorage() (*storage.BadgerBackend, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	dbPath := cfg.StorageDir()
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return nil, errNoGames
	}

	store := storage.NewBadgerBackend()
	if err := store.Initialize(dbPath, true); err != nil {
		return nil, fmt.Errorf("initializing storage: %w", err)
	}
	return store, nil
}

func toJSON(v any) string {
	bytes, _ := json.Marshal(v)
	return string(bytes)
}

// newLogger builds the diagnostics logger. Warnings and errors are shown by
// default so they do not interleave with console output.
func newLogger(w io.Writer, verbose, quiet bool) *slog.Logger {
	level := slog.LevelWarn
	switch {
	case verbose:
		level = slog.LevelDebug
	case quiet:
		level = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// CLI is the root Kong command structure.
type CLI struct {
	Version kong.VersionFlag `help:"Show version information"`
	Verbose bool             `short:"v" help:"Enable verbose output"`
	Quiet   bool             `short:"q" help:"Suppress non-essential output"`

	// Commands
	Play   PlayCmd   `cmd:"" help:"Play an interactive game"`
	MCP    MCPCmd    `cmd:"" help:"Start MCP server (stdio transport)"`
	List   ListCmd   `cmd:"" help:"List saved games"`
	Status StatusCmd `cmd:"" help:"Show a saved game and its levels"`
	Clean  CleanCmd  `cmd:"" help:"Delete saved games"`
	Setup  SetupCmd  `cmd:"" help:"Write the default config and print the MCP client config"`
	Score  ScoreCmd  `cmd:"" help:"Score a snapshot file"`
}

// NewCLI creates a new CLI instance.
func NewCLI() *CLI {
	return &CLI{}
}

func (c *CLI) parser(options ...kong.Option) (*kong.Kong, error) {
	options = append([]kong.Option{
		kong.Name("harmony"),
		kong.Description("Grow structures of love and logic towards harmony"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact:             true,
			NoExpandSubcommands: true,
		}),
		kong.Vars{
			"version": Version,
		},
	}, options...)
	return kong.New(c, options...)
}

// Execute parses command-line arguments and executes the selected command.
func (c *CLI) Execute(args []string) error {
	parser, err := c.parser()
	if err != nil {
		return err
	}
	kongCtx, err := parser.Parse(args)
	parser.FatalIfErrorf(err)

	slog.SetDefault(newLogger(os.Stderr, c.Verbose, c.Quiet))
	return kongCtx.Run()
}
