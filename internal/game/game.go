// Package game implements the per-game inner chain: two players' alternating
// moves, mined cooperatively into a short chain of GameBlocks.
package game

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"

	"github.com/klingnet-chess/chesschain/pkg/block"
)

// Game errors.
var (
	ErrNotEnoughPlayers = errors.New("game: at least two players are required")
	ErrAlreadyEnded     = errors.New("game: already ended")
	ErrNotYetTerminal   = errors.New("game: chain has not reached terminal length")
	ErrEmptyChain       = errors.New("game: chain is empty")
	ErrBrokenLink       = errors.New("game: block does not link to current tip")
	ErrInvalidPoW       = errors.New("game: block fails proof-of-work or hash check")
	ErrInvalidMove      = errors.New("game: block contains an invalid move")
)

// Policy parameterizes the rule the original implementation hard-coded: a
// game ends once its chain reaches TerminalLength blocks (genesis plus two
// mined blocks), and the winner is the receiver of the first move in the
// final block. Both look arbitrary in the source but are preserved as an
// explicit, overridable policy rather than baked into the type.
type Policy struct {
	TerminalLength int
	Difficulty     int
}

// DefaultPolicy is the original implementation's behavior: three-block
// chains, difficulty 4.
var DefaultPolicy = Policy{TerminalLength: 3, Difficulty: block.DefaultGameBlockDifficulty}

// Game is one inner chain shared by exactly two players.
type Game struct {
	GameID   int64             `json:"gameId"`
	Players  [2]string         `json:"players"`
	Chain    []block.GameBlock `json:"chain"`
	WinnerID string            `json:"winnerId"`
	Complete bool              `json:"complete"`
	Policy   Policy            `json:"-"`
}

// New constructs a Game with a genesis block and a freshly drawn random id,
// mirroring the original implementation's `rand() % 1000000`.
func New(players [2]string, policy Policy) (*Game, error) {
	if players[0] == "" || players[1] == "" {
		return nil, ErrNotEnoughPlayers
	}
	id, err := randomGameID()
	if err != nil {
		return nil, fmt.Errorf("game: %w", err)
	}
	g := &Game{
		GameID:  id,
		Players: players,
		Chain:   []block.GameBlock{*block.GenesisGameBlock()},
		Policy:  policy,
	}
	return g, nil
}

// Genesis returns a Game holding only the genesis block, with no players
// assigned yet — the shared value two rendezvousing Players adopt at the
// start of startGame.
func Genesis(policy Policy) *Game {
	return &Game{
		Chain:  []block.GameBlock{*block.GenesisGameBlock()},
		Policy: policy,
	}
}

// Clone returns an independent deep copy of g: its Chain slice is copied so
// that appends by one owner never alias another's view of the same game.
// Two Players adopting the same starting Game at startGame each take their
// own Clone, then stay in sync purely through gossiped blocks rather than a
// shared mutable reference.
func (g *Game) Clone() *Game {
	clone := *g
	clone.Chain = append([]block.GameBlock(nil), g.Chain...)
	return &clone
}

var gameIDSpan = big.NewInt(1_000_000)

func randomGameID() (int64, error) {
	n, err := rand.Int(rand.Reader, gameIDSpan)
	if err != nil {
		return 0, fmt.Errorf("draw random game id: %w", err)
	}
	return n.Int64(), nil
}

// LastBlock returns the chain's tip.
func (g *Game) LastBlock() (*block.GameBlock, error) {
	if len(g.Chain) == 0 {
		return nil, ErrEmptyChain
	}
	return &g.Chain[len(g.Chain)-1], nil
}

// AddBlock appends newBlock to the chain. Callers must have already verified
// the block's link and proof-of-work via VerifyNewBlock.
func (g *Game) AddBlock(newBlock block.GameBlock) {
	g.Chain = append(g.Chain, newBlock)
}

// VerifyNewBlock reports whether newBlock may legally follow the current
// tip: its previousHash must equal the tip's hash, its own hash/PoW must
// check out, and every move inside it must verify.
func (g *Game) VerifyNewBlock(newBlock *block.GameBlock) error {
	tip, err := g.LastBlock()
	if err != nil {
		return err
	}
	if !newBlock.VerifyLink(tip.Hash) {
		return ErrBrokenLink
	}
	if !newBlock.VerifyOwnHash() {
		return ErrInvalidPoW
	}
	if !newBlock.VerifyMoves() {
		return ErrInvalidMove
	}
	return nil
}

// VerifyValidGame reports whether g's entire chain is internally consistent:
// starts with a genesis block, every link and PoW/moves check holds, and —
// if marked complete — the chain is exactly at TerminalLength with WinnerID
// matching the policy's win rule.
func (g *Game) VerifyValidGame() bool {
	if len(g.Chain) == 0 {
		return false
	}
	genesis := g.Chain[0]
	if genesis.Index != 0 || genesis.PreviousHash != block.GenesisPreviousHash || len(genesis.Moves) != 0 {
		return false
	}
	for i := 1; i < len(g.Chain); i++ {
		prev, cur := g.Chain[i-1], g.Chain[i]
		if !cur.VerifyLink(prev.Hash) {
			return false
		}
		if !cur.VerifyOwnHash() {
			return false
		}
		if !cur.VerifyMoves() {
			return false
		}
	}
	if g.Complete {
		if len(g.Chain) != g.terminalLength() {
			return false
		}
		if g.WinnerID != g.expectedWinner() {
			return false
		}
	}
	return true
}

// EndGame is idempotent-by-guard: a non-empty WinnerID makes it a no-op
// (the original implementation logs a warning and returns). Otherwise, if
// the chain has reached TerminalLength, it finalizes the game — setting
// Complete and WinnerID from the receiver of the final block's first move.
// If the chain has not yet reached TerminalLength, it reports
// ErrNotYetTerminal.
func (g *Game) EndGame() error {
	if g.WinnerID != "" {
		return ErrAlreadyEnded
	}
	if len(g.Chain) != g.terminalLength() {
		return ErrNotYetTerminal
	}
	g.WinnerID = g.expectedWinner()
	g.Complete = true
	return nil
}

func (g *Game) terminalLength() int {
	if g.Policy.TerminalLength <= 0 {
		return DefaultPolicy.TerminalLength
	}
	return g.Policy.TerminalLength
}

// expectedWinner is the receiver of the first move in the final block —
// preserved verbatim from the original implementation's win rule, which
// looks arbitrary but is not this package's decision to change.
func (g *Game) expectedWinner() string {
	last := g.Chain[len(g.Chain)-1]
	if len(last.Moves) == 0 {
		return ""
	}
	return last.Moves[0].Receiver
}

// Canonical renders g's moves in chain order, the form embedded in a
// MainBlock's hash input when the Game is carried as a completed
// transaction.
func (g *Game) Canonical() string {
	var out string
	for _, b := range g.Chain {
		out += b.CanonicalPayload()
	}
	return out
}

// DedupKey is the tuple MainNode uses to suppress duplicate completed-game
// submissions: (gameId, players, winnerId, complete).
type DedupKey struct {
	GameID   int64
	Players  [2]string
	WinnerID string
	Complete bool
}

// Key returns g's dedup tuple.
func (g *Game) Key() DedupKey {
	return DedupKey{GameID: g.GameID, Players: g.Players, WinnerID: g.WinnerID, Complete: g.Complete}
}

// IsValidTransaction reports whether g is eligible for submission to a
// main node's mempool: completeness flag set, chain non-empty, exactly two
// distinct players, and a non-empty winner.
func (g *Game) IsValidTransaction() bool {
	if !g.Complete {
		return false
	}
	if len(g.Chain) == 0 {
		return false
	}
	if g.Players[0] == "" || g.Players[1] == "" || g.Players[0] == g.Players[1] {
		return false
	}
	return g.WinnerID != ""
}

// LoserID returns the game's other player.
func (g *Game) LoserID() string {
	if g.WinnerID == g.Players[0] {
		return g.Players[1]
	}
	return g.Players[0]
}
