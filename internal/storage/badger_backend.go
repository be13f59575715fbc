package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/dgraph-io/badger/v4"
)

// Key prefixes for different data types
const (
	prefixGame  = "g:" // saved game
	prefixLevel = "l:" // level record, l:<game id>:<level>
)

// ErrNotInitialized is returned when a backend is used before Initialize.
var ErrNotInitialized = errors.New("storage backend not initialized")

// BadgerBackend is a BadgerDB-backed storage implementation.
type BadgerBackend struct {
	db          *badger.DB
	initialized bool
	mu          sync.RWMutex
}

// NewBadgerBackend creates a new BadgerDB backend.
func NewBadgerBackend() *BadgerBackend {
	return &BadgerBackend{}
}

// Initialize opens or creates the BadgerDB database at the given path.
func (b *BadgerBackend) Initialize(path string, readOnly bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	opts := badger.DefaultOptions(path).
		WithNumCompactors(2).
		WithNumMemtables(5).
		WithLoggingLevel(badger.ERROR) // Suppress INFO/WARNING logs

	if readOnly {
		opts = opts.WithReadOnly(true)
	}

	var err error
	b.db, err = badger.Open(opts)
	if err != nil {
		return fmt.Errorf("opening badger DB: %w", err)
	}

	b.initialized = true
	return nil
}

// Close releases all resources held by the backend.
func (b *BadgerBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.db == nil {
		return nil
	}

	err := b.db.Close()
	b.db = nil
	b.initialized = false
	return err
}

func (b *BadgerBackend) gameKey(id string) []byte {
	return []byte(prefixGame + id)
}

func (b *BadgerBackend) levelPrefix(gameID string) []byte {
	return []byte(prefixLevel + gameID + ":")
}

// levelKey zero-pads the level so records iterate in level order.
func (b *BadgerBackend) levelKey(gameID string, level int) []byte {
	return []byte(fmt.Sprintf("%s%s:%06d", prefixLevel, gameID, level))
}

// SaveGame inserts or replaces a game.
func (b *BadgerBackend) SaveGame(ctx context.Context, g *SavedGame) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.initialized {
		return ErrNotInitialized
	}

	prepare(g)
	data, err := json.Marshal(g)
	if err != nil {
		return fmt.Errorf("marshaling game: %w", err)
	}

	return b.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(b.gameKey(g.ID), data); err != nil {
			return fmt.Errorf("setting game: %w", err)
		}
		return nil
	})
}

// LoadGame returns a game by ID, or nil if not found.
func (b *BadgerBackend) LoadGame(ctx context.Context, id string) (*SavedGame, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.initialized {
		return nil, ErrNotInitialized
	}

	txn := b.db.NewTransaction(false)
	defer txn.Discard()

	item, err := txn.Get(b.gameKey(id))
	if err == badger.ErrKeyNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting game: %w", err)
	}

	var g SavedGame
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &g)
	}); err != nil {
		return nil, fmt.Errorf("unmarshaling game: %w", err)
	}

	return &g, nil
}

// ListGames returns all games, most recently saved first.
func (b *BadgerBackend) ListGames(ctx context.Context) ([]*SavedGame, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.initialized {
		return nil, ErrNotInitialized
	}

	txn := b.db.NewTransaction(false)
	defer txn.Discard()

	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(prefixGame)
	it := txn.NewIterator(opts)
	defer it.Close()

	var games []*SavedGame
	for it.Rewind(); it.Valid(); it.Next() {
		var g SavedGame
		if err := it.Item().Value(func(val []byte) error {
			return json.Unmarshal(val, &g)
		}); err != nil {
			return nil, fmt.Errorf("unmarshaling game: %w", err)
		}
		games = append(games, &g)
	}

	sortGames(games)
	return games, nil
}

// DeleteGame removes a game and its level records.
func (b *BadgerBackend) DeleteGame(ctx context.Context, id string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.initialized {
		return false, ErrNotInitialized
	}

	found := false
	err := b.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(b.gameKey(id)); err == nil {
			found = true
		} else if err != badger.ErrKeyNotFound {
			return fmt.Errorf("getting game: %w", err)
		}

		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = b.levelPrefix(id)
		it := txn.NewIterator(opts)

		var keysToDelete [][]byte
		for it.Rewind(); it.Valid(); it.Next() {
			keysToDelete = append(keysToDelete, it.Item().KeyCopy(nil))
		}
		it.Close()

		if found {
			keysToDelete = append(keysToDelete, b.gameKey(id))
		}
		for _, key := range keysToDelete {
			if err := txn.Delete(key); err != nil {
				return fmt.Errorf("deleting %s: %w", key, err)
			}
		}
		return nil
	})
	return found, err
}

// AppendLevelRecord stores a level result.
func (b *BadgerBackend) AppendLevelRecord(ctx context.Context, rec LevelRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.initialized {
		return ErrNotInitialized
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshaling level record: %w", err)
	}

	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(b.levelKey(rec.GameID, rec.Level), data)
	})
}

// LevelRecords returns the records of a game ordered by level.
func (b *BadgerBackend) LevelRecords(ctx context.Context, gameID string) ([]LevelRecord, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.initialized {
		return nil, ErrNotInitialized
	}

	txn := b.db.NewTransaction(false)
	defer txn.Discard()

	opts := badger.DefaultIteratorOptions
	opts.Prefix = b.levelPrefix(gameID)
	it := txn.NewIterator(opts)
	defer it.Close()

	var records []LevelRecord
	for it.Rewind(); it.Valid(); it.Next() {
		var rec LevelRecord
		if err := it.Item().Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		}); err != nil {
			return nil, fmt.Errorf("unmarshaling level record: %w", err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// sortGames orders games newest first, breaking ties by ID.
func sortGames(games []*SavedGame) {
	sort.Slice(games, func(i, j int) bool {
		if games[i].SavedAt.Equal(games[j].SavedAt) {
			return games[i].ID < games[j].ID
		}
		return games[i].SavedAt.After(games[j].SavedAt)
	})
}
