// Package config handles application configuration for a chesschain node.
//
// A node runs in one of two roles — player or main-node — but both share
// the same Config shape, since a demo process may run either (or both,
// for local multi-node testing) from one data directory.
package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// Config holds a node's runtime configuration.
type Config struct {
	// Core
	DataDir string `conf:"datadir"`

	// Game is the inner-chain policy every Player mines under.
	Game GamePolicyConfig

	// Main is the global-chain policy every MainNode mines under.
	Main MainPolicyConfig

	// P2P networking, used only when running in multi-process mode via
	// internal/netp2p; a single-process demo wires Players/MainNodes
	// in-process and leaves this disabled.
	P2P P2PConfig

	// Journal controls the on-disk audit trail.
	Journal JournalConfig

	// Logging
	Log LogConfig
}

// GamePolicyConfig mirrors game.Policy, parameterized for config loading.
type GamePolicyConfig struct {
	TerminalLength int `conf:"game.terminal_length"`
	Difficulty     int `conf:"game.difficulty"`
}

// MainPolicyConfig mirrors the difficulty a MainNode mines MainBlocks at.
type MainPolicyConfig struct {
	Difficulty int `conf:"main.difficulty"`
}

// P2PConfig holds peer-to-peer network settings.
type P2PConfig struct {
	Enabled    bool     `conf:"p2p.enabled"`
	ListenAddr string   `conf:"p2p.listen"`
	Port       int      `conf:"p2p.port"`
	Seeds      []string `conf:"p2p.seeds"`
	NoDiscover bool     `conf:"p2p.nodiscover"`
}

// JournalConfig controls the on-disk JSON audit trail and its optional
// badger-backed KV mirror.
type JournalConfig struct {
	Enabled bool `conf:"journal.enabled"`
	Badger  bool `conf:"journal.badger"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `conf:"log.level"`
	File  string `conf:"log.file"`
	JSON  bool   `conf:"log.json"`
}

// DefaultDataDir returns the platform-specific default data directory.
//
//	Linux:   ~/.chesschain
//	macOS:   ~/Library/Application Support/Chesschain
//	Windows: %APPDATA%\Chesschain
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".chesschain"
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "Chesschain")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData != "" {
			return filepath.Join(appData, "Chesschain")
		}
		return filepath.Join(home, "AppData", "Roaming", "Chesschain")
	default:
		return filepath.Join(home, ".chesschain")
	}
}

// JournalDir returns the directory the journal recorder writes into.
func (c *Config) JournalDir() string {
	return filepath.Join(c.DataDir, "journal")
}

// BadgerDir returns the directory the optional badger KV mirror opens.
func (c *Config) BadgerDir() string {
	return filepath.Join(c.DataDir, "kv")
}

// ConfigFile returns the config file path.
func (c *Config) ConfigFile() string {
	return filepath.Join(c.DataDir, "chesschain.conf")
}
