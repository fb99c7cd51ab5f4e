package config

import (
	"github.com/klingnet-chess/chesschain/internal/game"
	"github.com/klingnet-chess/chesschain/internal/mainchain"
	"github.com/klingnet-chess/chesschain/pkg/block"
)

// DefaultP2PPort is the listen port a node binds when none is configured.
const DefaultP2PPort = 4001

// Default returns the default node configuration. Unlike the donor, there
// is only one network: every chesschain node plays by the same rules, so
// there is nothing equivalent to a mainnet/testnet split.
func Default() *Config {
	return &Config{
		DataDir: DefaultDataDir(),
		Game: GamePolicyConfig{
			TerminalLength: game.DefaultPolicy.TerminalLength,
			Difficulty:     block.DefaultGameBlockDifficulty,
		},
		Main: MainPolicyConfig{
			Difficulty: mainchain.DefaultMainBlockDifficulty,
		},
		P2P: P2PConfig{
			Enabled:    false,
			ListenAddr: "0.0.0.0",
			Port:       DefaultP2PPort,
			Seeds:      []string{},
			NoDiscover: false,
		},
		Journal: JournalConfig{
			Enabled: true,
			Badger:  false,
		},
		Log: LogConfig{
			Level: "info",
			JSON:  false,
		},
	}
}
