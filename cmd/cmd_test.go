package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Benny93/harmony-go/internal/config"
	"github.com/Benny93/harmony-go/internal/session"
	"github.com/Benny93/harmony-go/internal/storage"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

// isolate points the config and data directories at a temp dir.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(dir, "data"))
	return dir
}

func playedSession(t *testing.T) *session.Session {
	t.Helper()
	s := session.New(session.Options{
		Rand:   rand.New(rand.NewPCG(1, 1)),
		Logger: slog.New(slog.DiscardHandler),
	})
	_, err := s.SpawnChild(0)
	require.NoError(t, err)
	return s
}

// saveGames stores n games, each with one passed level record.
func saveGames(t *testing.T, n int) []string {
	t.Helper()
	cfg, err := config.Load()
	require.NoError(t, err)
	store, err := openGameStore(cfg, false)
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	var ids []string
	for range n {
		game := &storage.SavedGame{Difficulty: 4, Seed: 7, Snapshot: playedSession(t).Snapshot()}
		require.NoError(t, store.SaveGame(ctx, game))
		rec := storage.NewLevelRecord(game.ID, session.LevelResult{Level: 1, Harmony: 55}, true)
		require.NoError(t, store.AppendLevelRecord(ctx, rec))
		ids = append(ids, game.ID)
	}
	return ids
}

func TestSetupCmd_Run(t *testing.T) {
	t.Run("CreatesConfig", func(t *testing.T) {
		isolate(t)
		var out bytes.Buffer

		cmd := &SetupCmd{Format: "json", out: &out}
		require.NoError(t, cmd.Run())

		_, err := os.Stat(config.Path())
		assert.NoError(t, err)
		assert.Contains(t, out.String(), "Created config at "+config.Path())

		start := strings.Index(out.String(), "{")
		require.GreaterOrEqual(t, start, 0)
		var snippet map[string]any
		require.NoError(t, json.Unmarshal([]byte(out.String()[start:]), &snippet))
		servers := snippet["mcpServers"].(map[string]any)
		assert.Equal(t, "harmony", servers["harmony"].(map[string]any)["command"])
	})

	t.Run("KeepsExisting", func(t *testing.T) {
		isolate(t)
		cfg := config.Default()
		cfg.Game.Difficulty = 2
		require.NoError(t, config.Save(cfg))

		var out bytes.Buffer
		require.NoError(t, (&SetupCmd{Format: "text", out: &out}).Run())
		assert.Contains(t, out.String(), "Config exists")
		assert.Contains(t, out.String(), "# MCP Configuration for Harmony")

		loaded, err := config.Load()
		require.NoError(t, err)
		assert.Equal(t, 2.0, loaded.Game.Difficulty)

		out.Reset()
		require.NoError(t, (&SetupCmd{Format: "json", Force: true, out: &out}).Run())
		loaded, err = config.Load()
		require.NoError(t, err)
		assert.Equal(t, session.DefaultDifficulty, loaded.Game.Difficulty)
	})

	t.Run("InvalidFormat", func(t *testing.T) {
		isolate(t)
		err := (&SetupCmd{Format: "yaml", out: &bytes.Buffer{}}).Run()
		assert.ErrorContains(t, err, "invalid format")
	})
}

func TestScoreCmd_Run(t *testing.T) {
	t.Parallel()

	writeSnapshot := func(t *testing.T, snap session.Snapshot) string {
		t.Helper()
		data, err := json.Marshal(snap)
		require.NoError(t, err)
		path := filepath.Join(t.TempDir(), "snap.json")
		require.NoError(t, os.WriteFile(path, data, 0o644))
		return path
	}

	t.Run("Text", func(t *testing.T) {
		t.Parallel()
		path := writeSnapshot(t, playedSession(t).Snapshot())

		var out bytes.Buffer
		require.NoError(t, (&ScoreCmd{File: path, out: &out}).Run())
		assert.Contains(t, out.String(), "## snap.json")
		assert.Contains(t, out.String(), "Nodes:       2")
		assert.Contains(t, out.String(), "Edges:       1")
		assert.NotContains(t, out.String(), "Dropped")
		assert.Contains(t, out.String(), "Hint: ")
	})

	t.Run("JSON", func(t *testing.T) {
		t.Parallel()
		game := playedSession(t)
		path := writeSnapshot(t, game.Snapshot())

		var out bytes.Buffer
		require.NoError(t, (&ScoreCmd{File: path, JSON: true, out: &out}).Run())

		var st session.Status
		require.NoError(t, json.Unmarshal(out.Bytes(), &st))
		assert.Equal(t, 2, st.Nodes)
		assert.InDelta(t, game.Harmony(), st.Harmony, 1e-9)
	})

	t.Run("DroppedEdges", func(t *testing.T) {
		t.Parallel()
		snap := playedSession(t).Snapshot()
		snap.Connections[0] = append(snap.Connections[0], 0, 9)
		path := writeSnapshot(t, snap)

		var out bytes.Buffer
		require.NoError(t, (&ScoreCmd{File: path, out: &out}).Run())
		assert.Contains(t, out.String(), "Dropped:     2 malformed edges")
	})

	t.Run("ClampedLevels", func(t *testing.T) {
		t.Parallel()
		snap := playedSession(t).Snapshot()
		snap.Nodes[1].Level = 9
		path := writeSnapshot(t, snap)

		var out bytes.Buffer
		require.NoError(t, (&ScoreCmd{File: path, out: &out}).Run())
		assert.Contains(t, out.String(), "Clamped:     1 node levels")
	})

	t.Run("Malformed", func(t *testing.T) {
		t.Parallel()
		snap := playedSession(t).Snapshot()
		snap.Level = 0
		err := (&ScoreCmd{File: writeSnapshot(t, snap), out: &bytes.Buffer{}}).Run()
		assert.ErrorIs(t, err, session.ErrMalformedSnapshot)
	})

	t.Run("NotJSON", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "bad.json")
		require.NoError(t, os.WriteFile(path, []byte("{nodes"), 0o644))
		err := (&ScoreCmd{File: path, out: &bytes.Buffer{}}).Run()
		assert.ErrorContains(t, err, "parsing snapshot")
	})

	t.Run("MissingFile", func(t *testing.T) {
		t.Parallel()
		err := (&ScoreCmd{File: "/nonexistent/snap.json", out: &bytes.Buffer{}}).Run()
		assert.ErrorContains(t, err, "reading snapshot")
	})
}

func TestListCmd_Run(t *testing.T) {
	t.Run("NoGames", func(t *testing.T) {
		isolate(t)
		var out bytes.Buffer
		require.NoError(t, (&ListCmd{out: &out}).Run())
		assert.Equal(t, "No saved games found\n", out.String())
	})

	t.Run("ListsGames", func(t *testing.T) {
		isolate(t)
		ids := saveGames(t, 2)

		var out bytes.Buffer
		require.NoError(t, (&ListCmd{out: &out}).Run())
		for _, id := range ids {
			assert.Contains(t, out.String(), id)
		}
		assert.Contains(t, out.String(), "Difficulty: 4.0 (Easy)")
	})
}

func TestStatusCmd_Run(t *testing.T) {
	t.Run("ShowsGame", func(t *testing.T) {
		isolate(t)
		id := saveGames(t, 1)[0]

		var out bytes.Buffer
		require.NoError(t, (&StatusCmd{ID: id, out: &out}).Run())
		assert.Contains(t, out.String(), "Game "+id)
		assert.Contains(t, out.String(), "State:      playing")
		assert.Contains(t, out.String(), "Nodes:      2")
		assert.Contains(t, out.String(), "Seed:       7")
		assert.Contains(t, out.String(), "Levels:")
		assert.Contains(t, out.String(), "passed")
	})

	t.Run("UnknownGame", func(t *testing.T) {
		isolate(t)
		saveGames(t, 1)
		err := (&StatusCmd{ID: "missing", out: &bytes.Buffer{}}).Run()
		assert.EqualError(t, err, "no saved game missing")
	})

	t.Run("NoStorage", func(t *testing.T) {
		isolate(t)
		err := (&StatusCmd{ID: "missing", out: &bytes.Buffer{}}).Run()
		assert.EqualError(t, err, "no saved game missing")
	})
}

func TestCleanCmd_Run(t *testing.T) {
	t.Run("NothingToClean", func(t *testing.T) {
		isolate(t)
		err := (&CleanCmd{Force: true, out: &bytes.Buffer{}}).Run()
		assert.ErrorContains(t, err, "Nothing to clean")
	})

	t.Run("Aborted", func(t *testing.T) {
		isolate(t)
		saveGames(t, 1)

		var out bytes.Buffer
		require.NoError(t, (&CleanCmd{in: strings.NewReader("n\n"), out: &out}).Run())
		assert.Contains(t, out.String(), "Delete all saved games? [y/N] Aborted")

		var list bytes.Buffer
		require.NoError(t, (&ListCmd{out: &list}).Run())
		assert.Contains(t, list.String(), "Saved games:")
	})

	t.Run("DeleteOne", func(t *testing.T) {
		isolate(t)
		ids := saveGames(t, 2)

		var out bytes.Buffer
		require.NoError(t, (&CleanCmd{ID: ids[0], in: strings.NewReader("y\n"), out: &out}).Run())
		assert.Contains(t, out.String(), "Deleted 1 saved game(s)")

		var list bytes.Buffer
		require.NoError(t, (&ListCmd{out: &list}).Run())
		assert.NotContains(t, list.String(), ids[0])
		assert.Contains(t, list.String(), ids[1])
	})

	t.Run("DeleteUnknown", func(t *testing.T) {
		isolate(t)
		saveGames(t, 1)
		err := (&CleanCmd{ID: "missing", Force: true, out: &bytes.Buffer{}}).Run()
		assert.EqualError(t, err, "no saved game missing")
	})

	t.Run("DeleteAll", func(t *testing.T) {
		isolate(t)
		saveGames(t, 3)

		var out bytes.Buffer
		require.NoError(t, (&CleanCmd{Force: true, out: &out}).Run())
		assert.Contains(t, out.String(), "Deleted 3 saved game(s)")

		var list bytes.Buffer
		require.NoError(t, (&ListCmd{out: &list}).Run())
		assert.Equal(t, "No saved games found\n", list.String())
	})
}

func TestPlayCmd_Run(t *testing.T) {
	t.Run("NoSave", func(t *testing.T) {
		isolate(t)
		var out bytes.Buffer
		cmd := &PlayCmd{Seed: 3, NoSave: true, in: strings.NewReader("up\nstatus\nquit\n"), out: &out}
		require.NoError(t, cmd.Run())

		assert.Contains(t, out.String(), "node 0 trait 0.55")
		assert.Contains(t, out.String(), "Level 1 (playing)")

		cfg, err := config.Load()
		require.NoError(t, err)
		_, err = os.Stat(cfg.StorageDir())
		assert.True(t, os.IsNotExist(err), "nothing is written to disk")
	})

	t.Run("SaveAndResume", func(t *testing.T) {
		isolate(t)
		var out bytes.Buffer
		cmd := &PlayCmd{Seed: 3, Difficulty: 3, in: strings.NewReader("child\ncomplete\nquit\n"), out: &out}
		require.NoError(t, cmd.Run())
		assert.Contains(t, out.String(), "Level 1 complete!")

		store, err := loadStorage()
		require.NoError(t, err)
		games, err := store.ListGames(context.Background())
		require.NoError(t, err)
		require.NoError(t, store.Close())
		require.Len(t, games, 1)
		id := games[0].ID
		assert.Equal(t, 2, games[0].Level())
		assert.Equal(t, uint64(3), games[0].Seed)

		out.Reset()
		resume := &PlayCmd{Resume: id, in: strings.NewReader("difficulty\nquit\n"), out: &out}
		require.NoError(t, resume.Run())
		assert.Contains(t, out.String(), "Resumed game "+id+" at level 2")
		assert.Contains(t, out.String(), "difficulty 3.0 (Easy)")

		var list bytes.Buffer
		require.NoError(t, (&ListCmd{out: &list}).Run())
		assert.Equal(t, 1, strings.Count(list.String(), "Level:"), "resuming saves to the same game")
	})

	t.Run("ResumeUnknown", func(t *testing.T) {
		isolate(t)
		cmd := &PlayCmd{Resume: "missing", in: strings.NewReader(""), out: &bytes.Buffer{}}
		assert.ErrorContains(t, cmd.Run(), "no saved game missing")
	})
}

func TestPickSeed(t *testing.T) {
	t.Parallel()

	assert.Equal(t, uint64(5), pickSeed(5, 9))
	assert.Equal(t, uint64(9), pickSeed(0, 9))
}

func TestNewLogger(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	tests := []struct {
		name           string
		verbose, quiet bool
		enabled        slog.Level
		disabled       slog.Level
	}{
		{"Default", false, false, slog.LevelWarn, slog.LevelInfo},
		{"Verbose", true, false, slog.LevelDebug, slog.LevelDebug - 1},
		{"Quiet", false, true, slog.LevelError, slog.LevelWarn},
		{"VerboseWins", true, true, slog.LevelDebug, slog.LevelDebug - 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := newLogger(&bytes.Buffer{}, tt.verbose, tt.quiet)
			assert.True(t, logger.Enabled(ctx, tt.enabled))
			assert.False(t, logger.Enabled(ctx, tt.disabled))
		})
	}
}

func TestCLI_Parse(t *testing.T) {
	t.Parallel()

	t.Run("Play", func(t *testing.T) {
		cli := NewCLI()
		parser, err := cli.parser()
		require.NoError(t, err)

		kctx, err := parser.Parse([]string{"-v", "play", "--seed", "3", "--difficulty", "7.5", "--no-save", "--watch-config"})
		require.NoError(t, err)
		assert.Equal(t, "play", kctx.Command())
		assert.True(t, cli.Verbose)
		assert.Equal(t, uint64(3), cli.Play.Seed)
		assert.Equal(t, 7.5, cli.Play.Difficulty)
		assert.True(t, cli.Play.NoSave)
		assert.True(t, cli.Play.WatchConfig)
	})

	t.Run("Clean", func(t *testing.T) {
		cli := NewCLI()
		parser, err := cli.parser()
		require.NoError(t, err)

		_, err = parser.Parse([]string{"clean", "abc", "-f"})
		require.NoError(t, err)
		assert.Equal(t, "abc", cli.Clean.ID)
		assert.True(t, cli.Clean.Force)
	})

	t.Run("SetupRejectsFormat", func(t *testing.T) {
		cli := NewCLI()
		parser, err := cli.parser()
		require.NoError(t, err)

		_, err = parser.Parse([]string{"setup", "--format", "yaml"})
		assert.Error(t, err)
	})

	t.Run("UnknownCommand", func(t *testing.T) {
		cli := NewCLI()
		parser, err := cli.parser()
		require.NoError(t, err)

		_, err = parser.Parse([]string{"analyze"})
		assert.Error(t, err)
	})
}
