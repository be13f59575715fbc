// Package config loads and saves the harmony configuration file.
//
// The file lives at $XDG_CONFIG_HOME/harmony/config.toml (falling back to
// ~/.config/harmony/config.toml). Missing files yield defaults.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/Benny93/harmony-go/internal/layout"
	"github.com/Benny93/harmony-go/internal/session"
)

const appName = "harmony"

// DefaultTraitStep is the trait change of a single up/down command.
const DefaultTraitStep = 0.05

// Config holds harmony configuration.
type Config struct {
	Game    GameConfig    `toml:"game"`
	Canvas  layout.Canvas `toml:"canvas"`
	Storage StorageConfig `toml:"storage"`
}

// GameConfig controls session defaults.
type GameConfig struct {
	Difficulty      float64 `toml:"difficulty"`
	HistoryCapacity int     `toml:"history_capacity"`
	Seed            uint64  `toml:"seed"` // 0 picks a random seed
	TraitStep       float64 `toml:"trait_step"`
}

// StorageConfig controls where saved games are kept.
type StorageConfig struct {
	Dir string `toml:"dir"` // empty means DataDir()/badger
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Game: GameConfig{
			Difficulty:      session.DefaultDifficulty,
			HistoryCapacity: session.DefaultHistoryCapacity,
			TraitStep:       DefaultTraitStep,
		},
		Canvas: layout.DefaultCanvas(),
	}
}

// Validate clamps out-of-range values back into range. NaN and infinite
// values fall back to defaults.
func (c *Config) Validate() {
	if math.IsNaN(c.Game.Difficulty) || math.IsInf(c.Game.Difficulty, 0) {
		c.Game.Difficulty = session.DefaultDifficulty
	}
	c.Game.Difficulty = session.ClampDifficulty(c.Game.Difficulty)
	if c.Game.HistoryCapacity < 1 {
		c.Game.HistoryCapacity = session.DefaultHistoryCapacity
	}
	if !(c.Game.TraitStep > 0 && c.Game.TraitStep <= 1) {
		c.Game.TraitStep = DefaultTraitStep
	}
	if !(c.Canvas.Width > 0 && c.Canvas.Height > 0) || math.IsInf(c.Canvas.Width, 0) || math.IsInf(c.Canvas.Height, 0) {
		c.Canvas = layout.DefaultCanvas()
	}
}

// StorageDir returns the badger directory for saved games.
func (c *Config) StorageDir() string {
	if c.Storage.Dir != "" {
		return c.Storage.Dir
	}
	return filepath.Join(DataDir(), "badger")
}

// ConfigDir returns the harmony config directory path.
func ConfigDir() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, _ := os.UserHomeDir()
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, appName)
}

// DataDir returns the harmony data directory path.
func DataDir() string {
	dir := os.Getenv("XDG_DATA_HOME")
	if dir == "" {
		home, _ := os.UserHomeDir()
		dir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dir, appName)
}

// Path returns the config file path.
func Path() string {
	return filepath.Join(ConfigDir(), "config.toml")
}

// Load reads the config file. A missing file yields defaults.
func Load() (*Config, error) {
	return LoadFrom(Path())
}

// LoadFrom reads the config at path on top of the defaults and validates it.
func LoadFrom(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	cfg.Validate()
	return cfg, nil
}

// Save writes the config to the default path.
func Save(cfg *Config) error {
	return SaveTo(Path(), cfg)
}

// SaveTo writes the config to path, creating parent directories.
func SaveTo(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

// EnsureExists creates the config file with defaults if it doesn't exist.
// It reports whether a file was written.
func EnsureExists(force bool) (bool, error) {
	if _, err := os.Stat(Path()); err == nil && !force {
		return false, nil
	}
	if err := Save(Default()); err != nil {
		return false, err
	}
	return true, nil
}
