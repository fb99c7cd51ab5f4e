// Package mainchain implements the global chain of completed games: the
// MainBlock payload type and the MainChain that tracks player ratings as
// blocks are appended.
package mainchain

import (
	"github.com/klingnet-chess/chesschain/internal/game"
	"github.com/klingnet-chess/chesschain/pkg/block"
)

// DefaultMainBlockDifficulty is the difficulty a freshly constructed
// MainNode mines at, distinct from (and higher than) GameBlock's default.
const DefaultMainBlockDifficulty = 7

// MainBlock is a Header plus a batch of completed Games — one link in the
// global chain. It is not part of pkg/block because its payload embeds
// game.Game, and internal/game already imports pkg/block for GameBlock;
// putting MainBlock there too would create an import cycle.
type MainBlock struct {
	block.Header
	Games []game.Game `json:"games"`
}

// GenesisMainBlock returns the trivial genesis block: index 0, previousHash
// "0", no games. Mined at difficulty 0, so its proof-of-work holds
// immediately. Its timestamp is fixed at 0, so every MainChain starts from
// the same genesis hash and a block mined on one node links on every other.
func GenesisMainBlock() *MainBlock {
	b := &MainBlock{Header: block.NewHeader(0, block.GenesisPreviousHash, 0)}
	b.Timestamp = 0
	b.Mine(b.CanonicalPayload(), nil)
	return b
}

// NewMainBlock constructs a block at the given chain position carrying the
// given completed games, ready to be mined at difficulty.
func NewMainBlock(index uint64, previousHash string, games []game.Game, difficulty int) *MainBlock {
	b := &MainBlock{
		Header: block.NewHeader(index, previousHash, difficulty),
		Games:  games,
	}
	b.Hash = b.ComputeHash(b.CanonicalPayload())
	return b
}

// CanonicalPayload concatenates each game's canonical form, in order — the
// payload half of the block's hash input.
func (b *MainBlock) CanonicalPayload() string {
	var out string
	for i := range b.Games {
		out += b.Games[i].Canonical()
	}
	return out
}

// MineBlock sets the block's difficulty, then searches for a nonce
// satisfying the proof-of-work predicate.
func (b *MainBlock) MineBlock(difficulty int, running func() bool) bool {
	b.Difficulty = difficulty
	return b.Mine(b.CanonicalPayload(), running)
}

// VerifyOwnHash reports whether the block's stored hash is the correct
// digest of its current fields and satisfies its own difficulty.
func (b *MainBlock) VerifyOwnHash() bool {
	return b.VerifyHash(b.CanonicalPayload())
}

// VerifyGames reports whether every game carried in the block is a valid,
// complete transaction.
func (b *MainBlock) VerifyGames() bool {
	for i := range b.Games {
		if !b.Games[i].IsValidTransaction() || !b.Games[i].VerifyValidGame() {
			return false
		}
	}
	return true
}
