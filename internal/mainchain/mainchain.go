package mainchain

import (
	"errors"
	"sync"
)

// ErrEmptyChain is returned by Tip when the chain has no blocks, which
// should not happen outside of a zero-value MainChain.
var ErrEmptyChain = errors.New("mainchain: chain is empty")

// MainChain is the global chain of MainBlocks plus the rating ledger it
// maintains as a side effect of appending blocks. Safe for concurrent use.
type MainChain struct {
	mu     sync.RWMutex
	chain  []MainBlock
	rating map[string]float64
}

// NewMainChain returns a MainChain seeded with a genesis block.
func NewMainChain() *MainChain {
	return &MainChain{
		chain:  []MainBlock{*GenesisMainBlock()},
		rating: make(map[string]float64),
	}
}

// AddBlock appends newBlock and atomically folds its completed games into
// the rating ledger. Callers must have already verified the block's link,
// proof-of-work, and game payloads.
func (mc *MainChain) AddBlock(newBlock MainBlock) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.updateRating(newBlock)
	mc.chain = append(mc.chain, newBlock)
}

// updateRating applies the rating update rule for each completed game in
// block: the winner gains 1, the loser loses 1. Must be called with mc.mu
// held for writing.
func (mc *MainChain) updateRating(block MainBlock) {
	for _, g := range block.Games {
		if !g.Complete {
			continue
		}
		if g.Players[0] == g.WinnerID {
			mc.rating[g.Players[0]]++
			mc.rating[g.Players[1]]--
		} else {
			mc.rating[g.Players[0]]--
			mc.rating[g.Players[1]]++
		}
	}
}

// Tip returns a copy of the chain's most recent block.
func (mc *MainChain) Tip() (MainBlock, error) {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	if len(mc.chain) == 0 {
		return MainBlock{}, ErrEmptyChain
	}
	return mc.chain[len(mc.chain)-1], nil
}

// Chain returns a copy of the full chain.
func (mc *MainChain) Chain() []MainBlock {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	out := make([]MainBlock, len(mc.chain))
	copy(out, mc.chain)
	return out
}

// Len returns the number of blocks in the chain.
func (mc *MainChain) Len() int {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	return len(mc.chain)
}

// GetRating returns address's current rating, defaulting to 0 for an
// address that has never appeared in a completed game.
func (mc *MainChain) GetRating(address string) float64 {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	return mc.rating[address]
}

// VerifyNewBlock reports whether newBlock may legally follow the current
// tip and carries only valid completed games.
func (mc *MainChain) VerifyNewBlock(newBlock *MainBlock) error {
	tip, err := mc.Tip()
	if err != nil {
		return err
	}
	if !newBlock.VerifyLink(tip.Hash) {
		return errBrokenLink
	}
	if !newBlock.VerifyOwnHash() {
		return errInvalidPoW
	}
	if !newBlock.VerifyGames() {
		return errInvalidGame
	}
	return nil
}

var (
	errBrokenLink  = errors.New("mainchain: block does not link to current tip")
	errInvalidPoW  = errors.New("mainchain: block fails proof-of-work or hash check")
	errInvalidGame = errors.New("mainchain: block contains an invalid or incomplete game")
)
