package storage

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Benny93/harmony-go/internal/session"
)

// backends returns a fresh initialized instance of every implementation.
func backends(t *testing.T) map[string]Backend {
	t.Helper()

	mem := NewMemoryBackend()
	require.NoError(t, mem.Initialize("", false))

	bdg := NewBadgerBackend()
	require.NoError(t, bdg.Initialize(filepath.Join(t.TempDir(), "badger"), false))
	t.Cleanup(func() { bdg.Close() })

	return map[string]Backend{"Memory": mem, "Badger": bdg}
}

func playedSnapshot(t *testing.T) session.Snapshot {
	t.Helper()
	s := session.New(session.Options{
		Rand:   rand.New(rand.NewPCG(3, 4)),
		Logger: slog.New(slog.DiscardHandler),
	})
	_, err := s.SpawnChild(0)
	require.NoError(t, err)
	_, err = s.AdjustTrait(1, 0.1)
	require.NoError(t, err)
	return s.Snapshot()
}

func TestBackend_SaveAndLoad(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	for name, backend := range backends(t) {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			game := &SavedGame{Difficulty: 7, Seed: 99, Snapshot: playedSnapshot(t)}
			require.NoError(t, backend.SaveGame(ctx, game))

			_, err := uuid.Parse(game.ID)
			require.NoError(t, err, "ID is a UUID")
			assert.False(t, game.SavedAt.IsZero())

			loaded, err := backend.LoadGame(ctx, game.ID)
			require.NoError(t, err)
			require.NotNil(t, loaded)
			assert.Equal(t, game.ID, loaded.ID)
			assert.True(t, game.SavedAt.Equal(loaded.SavedAt))
			assert.Equal(t, 7.0, loaded.Difficulty)
			assert.Equal(t, uint64(99), loaded.Seed)
			assert.Equal(t, game.Snapshot, loaded.Snapshot)
			assert.Equal(t, 1, loaded.Level())
			assert.Equal(t, game.Snapshot.Harmony, loaded.Harmony())
		})
	}
}

func TestBackend_StoredGameIsDetached(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	for name, backend := range backends(t) {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			game := &SavedGame{Snapshot: playedSnapshot(t)}
			game.Snapshot.LevelBonuses = []float64{3}
			require.NoError(t, backend.SaveGame(ctx, game))
			want := game.Snapshot.Clone()

			game.Snapshot.Nodes[0].Trait = 0.99
			game.Snapshot.Connections[0][0] = 7
			game.Snapshot.LevelBonuses[0] = 42

			loaded, err := backend.LoadGame(ctx, game.ID)
			require.NoError(t, err)
			require.NotNil(t, loaded)
			assert.Equal(t, want, loaded.Snapshot, "caller writes after save do not leak in")

			loaded.Snapshot.Nodes[0].Trait = 0.01
			loaded.Snapshot.LevelBonuses[0] = 13

			again, err := backend.LoadGame(ctx, game.ID)
			require.NoError(t, err)
			assert.Equal(t, want, again.Snapshot, "writes to a loaded copy do not leak back")
		})
	}
}

func TestBackend_SaveReplaces(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	for name, backend := range backends(t) {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			game := &SavedGame{Snapshot: playedSnapshot(t)}
			require.NoError(t, backend.SaveGame(ctx, game))
			id := game.ID

			game.Snapshot.PlayerScore = 12.5
			require.NoError(t, backend.SaveGame(ctx, game))
			assert.Equal(t, id, game.ID, "ID is kept on resave")

			games, err := backend.ListGames(ctx)
			require.NoError(t, err)
			require.Len(t, games, 1)
			assert.Equal(t, 12.5, games[0].Score())
		})
	}
}

func TestBackend_LoadMissing(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	for name, backend := range backends(t) {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			game, err := backend.LoadGame(ctx, "does-not-exist")
			assert.NoError(t, err)
			assert.Nil(t, game)
		})
	}
}

func TestBackend_ListGames(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	for name, backend := range backends(t) {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			first := &SavedGame{Snapshot: playedSnapshot(t)}
			second := &SavedGame{Snapshot: playedSnapshot(t)}
			require.NoError(t, backend.SaveGame(ctx, first))
			require.NoError(t, backend.SaveGame(ctx, second))

			games, err := backend.ListGames(ctx)
			require.NoError(t, err)
			require.Len(t, games, 2)
			assert.False(t, games[0].SavedAt.Before(games[1].SavedAt), "newest first")
		})
	}
}

func TestBackend_LevelRecords(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	for name, backend := range backends(t) {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			game := &SavedGame{Snapshot: playedSnapshot(t)}
			require.NoError(t, backend.SaveGame(ctx, game))

			for _, level := range []int{10, 2, 1} {
				rec := NewLevelRecord(game.ID, session.LevelResult{Level: level, Harmony: float64(level)}, true)
				require.NoError(t, backend.AppendLevelRecord(ctx, rec))
			}
			retry := NewLevelRecord(game.ID, session.LevelResult{Level: 2, Harmony: 80}, false)
			require.NoError(t, backend.AppendLevelRecord(ctx, retry))
			require.NoError(t, backend.AppendLevelRecord(ctx, NewLevelRecord("other", session.LevelResult{Level: 1}, true)))

			records, err := backend.LevelRecords(ctx, game.ID)
			require.NoError(t, err)
			require.Len(t, records, 3)
			assert.Equal(t, []int{1, 2, 10}, []int{records[0].Level, records[1].Level, records[2].Level})
			assert.Equal(t, 80.0, records[1].Harmony, "same level is replaced")
			assert.False(t, records[1].Passed)
		})
	}
}

func TestBackend_DeleteGame(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	for name, backend := range backends(t) {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			game := &SavedGame{Snapshot: playedSnapshot(t)}
			require.NoError(t, backend.SaveGame(ctx, game))
			require.NoError(t, backend.AppendLevelRecord(ctx, NewLevelRecord(game.ID, session.LevelResult{Level: 1}, true)))

			found, err := backend.DeleteGame(ctx, game.ID)
			require.NoError(t, err)
			assert.True(t, found)

			loaded, err := backend.LoadGame(ctx, game.ID)
			require.NoError(t, err)
			assert.Nil(t, loaded)

			records, err := backend.LevelRecords(ctx, game.ID)
			require.NoError(t, err)
			assert.Empty(t, records)

			found, err = backend.DeleteGame(ctx, game.ID)
			require.NoError(t, err)
			assert.False(t, found)
		})
	}
}

func TestMemoryBackend_Lifecycle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	backend := NewMemoryBackend()
	assert.False(t, backend.IsInitialized())
	assert.ErrorIs(t, backend.SaveGame(ctx, &SavedGame{}), ErrNotInitialized)

	require.NoError(t, backend.Initialize("/tmp/test", false))
	assert.True(t, backend.IsInitialized())

	require.NoError(t, backend.Close())
	assert.False(t, backend.IsInitialized())
	_, err := backend.ListGames(ctx)
	assert.ErrorIs(t, err, ErrNotInitialized)

	require.NoError(t, backend.Initialize("/tmp/test", false), "reopening after close works")
	games, err := backend.ListGames(ctx)
	require.NoError(t, err)
	assert.Empty(t, games)
}
