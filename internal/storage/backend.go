// Package storage persists saved games and per-level results.
//
// It defines the Backend interface that all storage implementations must
// satisfy, along with the records they store. Saved games carry a full
// session snapshot so a play-through can be resumed exactly.
package storage

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Benny93/harmony-go/internal/session"
)

// SavedGame is a persisted session.
type SavedGame struct {
	// ID is a UUID assigned on first save.
	ID string `json:"id"`

	// SavedAt is the time of the last save.
	SavedAt time.Time `json:"saved_at"`

	// Difficulty is the knob value at save time.
	Difficulty float64 `json:"difficulty"`

	// Seed is the RNG seed the session was started with.
	Seed uint64 `json:"seed"`

	// Snapshot is the full session state.
	Snapshot session.Snapshot `json:"snapshot"`
}

// Level returns the saved level.
func (g *SavedGame) Level() int { return g.Snapshot.Level }

// Harmony returns the saved harmony.
func (g *SavedGame) Harmony() float64 { return g.Snapshot.Harmony }

// Score returns the saved player score.
func (g *SavedGame) Score() float64 { return g.Snapshot.PlayerScore }

// LevelRecord is the result of one completed (or failed) level.
type LevelRecord struct {
	GameID      string    `json:"game_id"`
	Level       int       `json:"level"`
	Harmony     float64   `json:"harmony"`
	Target      float64   `json:"target"`
	HasTarget   bool      `json:"has_target"`
	Bonus       float64   `json:"bonus"`
	Score       float64   `json:"score"`
	Passed      bool      `json:"passed"`
	CompletedAt time.Time `json:"completed_at"`
}

// NewLevelRecord converts a completion attempt into a record.
func NewLevelRecord(gameID string, res session.LevelResult, passed bool) LevelRecord {
	return LevelRecord{
		GameID:      gameID,
		Level:       res.Level,
		Harmony:     res.Harmony,
		Target:      res.Target,
		HasTarget:   res.HasTarget,
		Bonus:       res.Bonus,
		Score:       res.Score,
		Passed:      passed,
		CompletedAt: time.Now().UTC(),
	}
}

// prepare assigns an ID and timestamp before a save.
func prepare(g *SavedGame) {
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	g.SavedAt = time.Now().UTC()
}

// Backend defines the interface for storage implementations.
//
// Implementations must be thread-safe and support concurrent access.
type Backend interface {
	// Initialize opens or creates the storage backend at the given path.
	// If readOnly is true, the backend is opened in read-only mode.
	Initialize(path string, readOnly bool) error

	// Close releases all resources held by the backend.
	Close() error

	// SaveGame inserts or replaces a game. An empty ID is filled in with a
	// new UUID; SavedAt is set to now.
	SaveGame(ctx context.Context, g *SavedGame) error

	// LoadGame returns a game by ID, or nil if not found.
	LoadGame(ctx context.Context, id string) (*SavedGame, error)

	// ListGames returns all games, most recently saved first.
	ListGames(ctx context.Context) ([]*SavedGame, error)

	// DeleteGame removes a game and its level records. It reports whether
	// the game existed.
	DeleteGame(ctx context.Context, id string) (bool, error)

	// AppendLevelRecord stores a level result, replacing any earlier
	// record for the same game and level.
	AppendLevelRecord(ctx context.Context, rec LevelRecord) error

	// LevelRecords returns the records of a game ordered by level.
	LevelRecords(ctx context.Context, gameID string) ([]LevelRecord, error)
}
