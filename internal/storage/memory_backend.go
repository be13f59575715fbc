package storage

import (
	"context"
	"sort"
	"sync"
)

// MemoryBackend is an in-memory implementation of Backend, used by
// `play --no-save` and tests.
type MemoryBackend struct {
	mu          sync.RWMutex
	games       map[string]SavedGame
	levels      map[string]map[int]LevelRecord
	initialized bool
}

// copyGame detaches a game from the caller's slices.
func copyGame(g *SavedGame) SavedGame {
	out := *g
	out.Snapshot = g.Snapshot.Clone()
	return out
}

// NewMemoryBackend creates a new in-memory storage backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		games:  make(map[string]SavedGame),
		levels: make(map[string]map[int]LevelRecord),
	}
}

// Initialize implements Backend.
func (m *MemoryBackend) Initialize(path string, readOnly bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.games == nil {
		m.games = make(map[string]SavedGame)
		m.levels = make(map[string]map[int]LevelRecord)
	}
	m.initialized = true
	return nil
}

// Close implements Backend.
func (m *MemoryBackend) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.games = nil
	m.levels = nil
	m.initialized = false
	return nil
}

// IsInitialized reports whether Initialize has been called since the last Close.
func (m *MemoryBackend) IsInitialized() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.initialized
}

// SaveGame implements Backend.
func (m *MemoryBackend) SaveGame(ctx context.Context, g *SavedGame) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.initialized {
		return ErrNotInitialized
	}
	prepare(g)
	m.games[g.ID] = copyGame(g)
	return nil
}

// LoadGame implements Backend.
func (m *MemoryBackend) LoadGame(ctx context.Context, id string) (*SavedGame, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.initialized {
		return nil, ErrNotInitialized
	}
	g, ok := m.games[id]
	if !ok {
		return nil, nil
	}
	out := copyGame(&g)
	return &out, nil
}

// ListGames implements Backend.
func (m *MemoryBackend) ListGames(ctx context.Context) ([]*SavedGame, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.initialized {
		return nil, ErrNotInitialized
	}
	games := make([]*SavedGame, 0, len(m.games))
	for _, g := range m.games {
		out := copyGame(&g)
		games = append(games, &out)
	}
	sortGames(games)
	return games, nil
}

// DeleteGame implements Backend.
func (m *MemoryBackend) DeleteGame(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.initialized {
		return false, ErrNotInitialized
	}
	_, found := m.games[id]
	delete(m.games, id)
	delete(m.levels, id)
	return found, nil
}

// AppendLevelRecord implements Backend.
func (m *MemoryBackend) AppendLevelRecord(ctx context.Context, rec LevelRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.initialized {
		return ErrNotInitialized
	}
	if m.levels[rec.GameID] == nil {
		m.levels[rec.GameID] = make(map[int]LevelRecord)
	}
	m.levels[rec.GameID][rec.Level] = rec
	return nil
}

// LevelRecords implements Backend.
func (m *MemoryBackend) LevelRecords(ctx context.Context, gameID string) ([]LevelRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.initialized {
		return nil, ErrNotInitialized
	}
	var records []LevelRecord
	for _, rec := range m.levels[gameID] {
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Level < records[j].Level })
	return records, nil
}
