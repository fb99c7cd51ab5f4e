package block

import "github.com/klingnet-chess/chesschain/pkg/move"

// DefaultGameBlockDifficulty is the original implementation's
// BlockGame default (BlockGame::BlockGame sets difficulty=4).
const DefaultGameBlockDifficulty = 4

// GameBlock is a Header plus an ordered sequence of Moves: one link in a
// Game's inner chain.
type GameBlock struct {
	Header
	Moves []move.Move `json:"moves"`
}

// GenesisGameBlock returns the trivial genesis block for a new Game:
// index 0, previousHash "0", no moves. It is "mined" at difficulty 0, so
// the empty-prefix proof-of-work check holds immediately.
func GenesisGameBlock() *GameBlock {
	b := &GameBlock{Header: NewHeader(0, GenesisPreviousHash, 0)}
	b.Mine(b.CanonicalPayload(), nil)
	return b
}

// NewGameBlock constructs a block at the given chain position with the
// given moves, ready to be mined at difficulty.
func NewGameBlock(index uint64, previousHash string, moves []move.Move, difficulty int) *GameBlock {
	b := &GameBlock{
		Header: NewHeader(index, previousHash, difficulty),
		Moves:  moves,
	}
	b.Hash = b.ComputeHash(b.CanonicalPayload())
	return b
}

// CanonicalPayload is the concatenation of each move's canonical form,
// in order — the payload half of the block's hash input.
func (b *GameBlock) CanonicalPayload() string {
	var out string
	for i := range b.Moves {
		out += b.Moves[i].Canonical()
	}
	return out
}

// MineBlock sets the block's difficulty, then searches for a nonce
// satisfying the proof-of-work predicate. running is sampled once per
// nonce so stop() causes prompt exit from a long-running mining loop.
func (b *GameBlock) MineBlock(difficulty int, running func() bool) bool {
	b.Difficulty = difficulty
	return b.Mine(b.CanonicalPayload(), running)
}

// VerifyOwnHash reports whether the block's stored hash is the correct
// digest of its current fields and satisfies its own difficulty.
func (b *GameBlock) VerifyOwnHash() bool {
	return b.VerifyHash(b.CanonicalPayload())
}

// VerifyMoves reports whether every move in the block is individually
// valid (signature verifies, fields well-formed).
func (b *GameBlock) VerifyMoves() bool {
	for i := range b.Moves {
		if !b.Moves[i].IsValid() {
			return false
		}
	}
	return true
}
