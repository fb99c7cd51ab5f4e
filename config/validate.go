package config

import "fmt"

// Validate checks runtime node config for obvious operator mistakes.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if cfg.Game.TerminalLength < 1 {
		return fmt.Errorf("game.terminal_length must be at least 1")
	}
	if cfg.Game.Difficulty < 0 {
		return fmt.Errorf("game.difficulty must not be negative")
	}
	if cfg.Main.Difficulty < 0 {
		return fmt.Errorf("main.difficulty must not be negative")
	}
	if cfg.P2P.Port < 0 || cfg.P2P.Port > 65535 {
		return fmt.Errorf("p2p.port must be in range [0, 65535]")
	}
	return nil
}
