// Package player implements the Player node: one side of a two-player
// game, mining its shared inner chain cooperatively with its opponent and
// submitting finished games to connected main nodes.
package player

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/klingnet-chess/chesschain/internal/game"
	"github.com/klingnet-chess/chesschain/internal/log"
	"github.com/klingnet-chess/chesschain/internal/mempool"
	"github.com/klingnet-chess/chesschain/pkg/block"
	"github.com/klingnet-chess/chesschain/pkg/crypto"
	"github.com/klingnet-chess/chesschain/pkg/move"
)

// MovesPerBlock is the fixed batch size a Player drains from its pending
// queue before mining a new GameBlock.
const MovesPerBlock = 5

// MineIdleDelay is the cooperative yield a Player sleeps after each mined
// block, before looping back to wait for the next batch.
const MineIdleDelay = 2 * time.Second

// Player errors.
var (
	ErrNoOpponent      = errors.New("player: no opponent set")
	ErrInvalidMove     = errors.New("player: move is invalid")
	ErrNoMainNodes     = errors.New("player: no main node connected")
	ErrRejectStartGame = errors.New("player: startGame called with an opponent already set and a non-nil incoming opponent")
)

// Peer is what a Player needs from another Player to exchange moves and
// blocks — an in-process stand-in for network transport. internal/netp2p
// bridges this interface to real libp2p gossip when peer-to-peer transport
// is enabled; tests and single-process demos wire Players directly.
type Peer interface {
	ID() string
	ReceiveTransaction(m move.Move, fromPeer string)
	ReceiveBlock(b block.GameBlock, fromPeer string)
}

// PeerConnector is implemented by anything that must learn about a new
// peer connection reciprocally, mirroring the original implementation's
// recursive connectPeer.
type PeerConnector interface {
	ConnectPeer(p Peer)
}

// MainNodeTarget is what a Player needs from a connected main node: submit
// a completed game, and know whether it is still accepting submissions.
type MainNodeTarget interface {
	ID() string
	Running() bool
	AddTransaction(g game.Game, fromPeer string) error
}

// Journal is an optional audit sink a Player reports its state transitions
// to. A nil Journal disables reporting; internal/journal provides the
// concrete JSON-file (and optional badger-backed) implementation.
type Journal interface {
	LogMessage(nodeID, message string)
	RecordMempool(nodeID string, moves []move.Move)
	RecordBlockchain(nodeID string, chain []block.GameBlock)
	RecordCompleteGames(nodeID string, games []game.Game)
}

// Player is one side of a two-player game.
type Player struct {
	priv   *crypto.PrivateKey
	pub    string
	nodeID string
	policy game.Policy

	mu         sync.RWMutex
	blockchain *game.Game
	opponent   Peer
	peers      map[string]Peer
	mainNodes  map[string]MainNodeTarget

	pendingMoves   *mempool.Pool[move.Move, move.Key]
	completedGames *mempool.Pool[game.Game, game.DedupKey]

	journal Journal
	logger  zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New constructs a Player with a freshly generated secp256k1 identity and
// an empty genesis-only Game, ready to rendezvous with an opponent via
// StartGame.
func New(policy game.Policy) (*Player, error) {
	priv, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("player: generate key: %w", err)
	}
	return newWithKey(priv, policy), nil
}

// NewFromKeyPair constructs a Player from a previously derived identity
// (see pkg/crypto.GenerateFromMnemonic), for long-lived nodes that persist
// their mnemonic across restarts.
func NewFromKeyPair(kp *crypto.KeyPair, policy game.Policy) *Player {
	return newWithKey(kp.PrivateKey, policy)
}

// NewJoining constructs a Player exactly like New, then connects it to
// every peer in peers and runs syncPeers: adopting a peer's chain if it
// is strictly longer than the freshly allocated genesis, and replaying
// that peer's pending moves. This is the boot-with-existing-peers path
// (see syncPeers).
func NewJoining(policy game.Policy, peers []Peer) (*Player, error) {
	p, err := New(policy)
	if err != nil {
		return nil, err
	}
	for _, peer := range peers {
		p.ConnectPeer(peer)
	}
	p.syncPeers()
	return p, nil
}

func newWithKey(priv *crypto.PrivateKey, policy game.Policy) *Player {
	if policy.TerminalLength <= 0 {
		policy = game.DefaultPolicy
	}
	ctx, cancel := context.WithCancel(context.Background())
	nodeID := priv.NodeID()
	p := &Player{
		priv:       priv,
		pub:        priv.PublicKeyPEM(),
		nodeID:     nodeID,
		policy:     policy,
		blockchain: game.Genesis(policy),
		peers:      make(map[string]Peer),
		mainNodes:  make(map[string]MainNodeTarget),
		pendingMoves: mempool.New[move.Move, move.Key](func(m move.Move) move.Key {
			return m.DedupKey()
		}),
		completedGames: mempool.New[game.Game, game.DedupKey](func(g game.Game) game.DedupKey {
			return g.Key()
		}),
		logger: log.WithNodeID(log.Player, nodeID),
		ctx:    ctx,
		cancel: cancel,
	}
	p.logger.Info().Msg("node started")
	return p
}

// ID returns the Player's node identity (last 40 characters of its
// sanitized public-key PEM).
func (p *Player) ID() string { return p.nodeID }

// PublicKey returns the Player's PEM-encoded public key.
func (p *Player) PublicKey() string { return p.pub }

// Running reports whether the Player has not yet been stopped.
func (p *Player) Running() bool { return p.ctx.Err() == nil }

// SetJournal attaches an audit sink. Must be called before Start.
func (p *Player) SetJournal(j Journal) { p.journal = j }

// Snapshot returns a copy of the Player's current Game, safe to inspect
// concurrently with mining.
func (p *Player) Snapshot() game.Game {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return *p.blockchain
}

// PendingCount returns the number of moves currently queued for mining.
func (p *Player) PendingCount() int { return p.pendingMoves.Len() }

// PendingMoves returns a snapshot of moves currently queued for mining,
// used by a peer's syncPeers to replay this Player's pending queue.
func (p *Player) PendingMoves() []move.Move { return p.pendingMoves.Snapshot() }

// Start launches the Player's long-running mining loop in the background.
func (p *Player) Start() {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.mineLoop()
	}()
}

// Stop signals the mining loop to exit and waits for it to return.
func (p *Player) Stop() {
	p.cancel()
	p.pendingMoves.Broadcast()
	p.wg.Wait()
	p.logger.Info().Msg("stopped")
}

// CreateMove builds, signs, and submits a Move from this Player to its
// opponent carrying the given payload.
func (p *Player) CreateMove(data string) error {
	p.mu.RLock()
	opponent := p.opponent
	p.mu.RUnlock()
	if opponent == nil {
		p.logger.Warn().Msg("opponent is not set")
		return ErrNoOpponent
	}

	m, err := move.New(p.pub, opponent.ID(), data)
	if err != nil {
		return fmt.Errorf("player: create move: %w", err)
	}
	if err := m.Sign(p.priv); err != nil {
		return fmt.Errorf("player: sign move: %w", err)
	}
	if !m.IsValid() {
		return fmt.Errorf("player: %w: freshly signed move failed verification", ErrInvalidMove)
	}

	p.logger.Info().Str("data", data).Msg("move created")
	return p.AddMove(*m)
}

// AddMove validates and enqueues a locally created move, then gossips it to
// every connected peer.
func (p *Player) AddMove(m move.Move) error {
	return p.addMove(m, "")
}

// ReceiveTransaction validates and enqueues a move received from fromPeer,
// forwarding gossip to every peer except fromPeer.
func (p *Player) ReceiveTransaction(m move.Move, fromPeer string) {
	_ = p.addMove(m, fromPeer)
}

func (p *Player) addMove(m move.Move, fromPeer string) error {
	if !isValidMove(m) {
		p.logger.Warn().Msg("invalid move rejected")
		return ErrInvalidMove
	}
	if !p.pendingMoves.Add(m) {
		p.logger.Debug().Msg("duplicate move ignored")
		return nil
	}
	p.reportMempool()
	p.broadcastTransaction(m, fromPeer)
	return nil
}

// isValidMove performs the shallow well-formedness check (non-empty data,
// sender and receiver) and then the full signature check in IsValid, so
// every move that reaches addMove is verified cryptographically.
func isValidMove(m move.Move) bool {
	if m.Data == "" || m.Sender == "" || m.Receiver == "" {
		return false
	}
	return m.IsValid()
}

func (p *Player) broadcastTransaction(m move.Move, fromPeer string) {
	p.mu.RLock()
	peers := make([]Peer, 0, len(p.peers))
	for id, peer := range p.peers {
		if id == fromPeer {
			continue
		}
		peers = append(peers, peer)
	}
	p.mu.RUnlock()

	for _, peer := range peers {
		p.logger.Debug().Str("to", peer.ID()).Msg("move broadcast")
		peer.ReceiveTransaction(m, p.nodeID)
	}
}

// StartGame is the atomic rendezvous two Players perform to begin a game
// together. If this Player has no opponent yet, it adopts shared as its
// blockchain, sets opponent, connects it as a peer, and returns true. If
// opponent is nil while this Player already has one set, it clears local
// state and returns false (the opponent disconnected). Any other
// combination is rejected.
func (p *Player) StartGame(opponent Peer, shared *game.Game) (bool, error) {
	p.mu.Lock()
	switch {
	case p.opponent == nil && opponent != nil:
		p.opponent = opponent
		p.blockchain = shared.Clone()
		p.mu.Unlock()
		p.ConnectPeer(opponent)
		p.logger.Info().Str("opponent", opponent.ID()).Msg("game started")
		return true, nil
	case p.opponent != nil && opponent == nil:
		p.opponent = nil
		p.mu.Unlock()
		return false, nil
	default:
		p.mu.Unlock()
		return false, ErrRejectStartGame
	}
}

// ConnectPeer registers p bidirectionally with peer, recursing at most once
// to avoid the cycle a naive mutual-registration would otherwise cause.
func (p *Player) ConnectPeer(peer Peer) {
	p.mu.Lock()
	_, exists := p.peers[peer.ID()]
	if !exists {
		p.peers[peer.ID()] = peer
	}
	p.mu.Unlock()

	if exists {
		p.logger.Debug().Str("peer", peer.ID()).Msg("already connected")
		return
	}
	p.logger.Info().Str("peer", peer.ID()).Msg("connected")
	if connector, ok := peer.(PeerConnector); ok {
		connector.ConnectPeer(p)
	}
}

// syncPeers adopts a connected peer's chain when it is strictly longer
// than this Player's own, then replays that peer's pending moves through
// addMove so none are lost in the handoff. Mirrors the original
// implementation's join-time catch-up (Player::syncPeers); a peer is only
// synced against when it exposes Snapshot and PendingMoves, since a bare
// Peer over real network transport carries no such state to read.
func (p *Player) syncPeers() {
	p.mu.RLock()
	peers := make([]Peer, 0, len(p.peers))
	for _, peer := range p.peers {
		peers = append(peers, peer)
	}
	p.mu.RUnlock()

	for _, peer := range peers {
		syncable, ok := peer.(interface {
			Snapshot() game.Game
			PendingMoves() []move.Move
		})
		if !ok {
			continue
		}

		peerGame := syncable.Snapshot()
		p.mu.Lock()
		longer := len(peerGame.Chain) > len(p.blockchain.Chain)
		if longer {
			p.blockchain = peerGame.Clone()
		}
		p.mu.Unlock()
		if !longer {
			continue
		}
		p.logger.Info().Str("peer", peer.ID()).Msg("adopting longer chain")

		for _, m := range syncable.PendingMoves() {
			_ = p.addMove(m, peer.ID())
		}
	}
}

// ConnectNode registers a main node as a submission target for completed
// games. Idempotent.
func (p *Player) ConnectNode(n MainNodeTarget) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.mainNodes[n.ID()]; exists {
		p.logger.Debug().Str("node", n.ID()).Msg("already connected")
		return
	}
	p.mainNodes[n.ID()] = n
	p.logger.Info().Str("node", n.ID()).Msg("connected to main node")
}

// ReceiveBlock validates a block proposed by fromPeer against the current
// chain tip. If valid, it appends the block, finalizes the game if the
// chain has reached its terminal length, re-broadcasts (excluding
// fromPeer), and prunes any pending moves the block already carries.
func (p *Player) ReceiveBlock(b block.GameBlock, fromPeer string) {
	p.mu.Lock()
	bc := p.blockchain

	for i := range bc.Chain {
		if bc.Chain[i].Hash == b.Hash {
			p.mu.Unlock()
			p.logger.Debug().Str("hash", b.Hash).Msg("duplicate block ignored")
			return
		}
	}

	if err := bc.VerifyNewBlock(&b); err != nil {
		p.mu.Unlock()
		p.logger.Warn().Err(err).Str("from", fromPeer).Msg("rejected invalid block")
		return
	}

	bc.AddBlock(b)
	p.logger.Info().Str("from", fromPeer).Str("hash", b.Hash).Msg("block accepted")
	p.reportBlockchain()

	if len(bc.Chain) == p.terminalLength() {
		p.finalizeGame()
	}
	p.mu.Unlock()

	p.broadcastBlock(b, fromPeer)
	p.prunePending(b.Moves)
}

func (p *Player) broadcastBlock(b block.GameBlock, fromPeer string) {
	p.mu.RLock()
	peers := make([]Peer, 0, len(p.peers))
	for id, peer := range p.peers {
		if id == fromPeer {
			continue
		}
		peers = append(peers, peer)
	}
	p.mu.RUnlock()

	for _, peer := range peers {
		p.logger.Debug().Str("to", peer.ID()).Str("hash", b.Hash).Msg("block broadcast")
		peer.ReceiveBlock(b, p.nodeID)
	}
}

func (p *Player) prunePending(mined []move.Move) {
	minedKeys := make(map[move.Key]struct{}, len(mined))
	for _, m := range mined {
		minedKeys[m.DedupKey()] = struct{}{}
	}
	kept := make([]move.Move, 0)
	for _, m := range p.pendingMoves.Drain(0) {
		if _, found := minedKeys[m.DedupKey()]; !found {
			kept = append(kept, m)
		}
	}
	for _, m := range kept {
		p.pendingMoves.Add(m)
	}
	p.reportMempool()
}

// finalizeGame must be called with p.mu held. It ends the current game,
// enqueues it for submission to connected main nodes, and resets the
// Player to a fresh genesis-only Game awaiting a new opponent.
func (p *Player) finalizeGame() {
	bc := p.blockchain
	p.logger.Info().Int64("gameId", bc.GameID).Msg("game ended")
	if err := bc.EndGame(); err != nil && !errors.Is(err, game.ErrAlreadyEnded) {
		p.logger.Warn().Err(err).Msg("endGame failed")
		return
	}
	p.completedGames.Add(*bc)
	p.reportCompletedGames()
	p.blockchain = game.Genesis(p.policy)
	p.opponent = nil
}

func (p *Player) terminalLength() int {
	if p.policy.TerminalLength <= 0 {
		return game.DefaultPolicy.TerminalLength
	}
	return p.policy.TerminalLength
}

// mineLoop is the Player's long-running mining goroutine: one per Player,
// started by Start.
func (p *Player) mineLoop() {
	for p.ctx.Err() == nil {
		p.mu.Lock()
		if len(p.blockchain.Chain) == p.terminalLength() {
			p.finalizeGame()
		}
		p.mu.Unlock()

		p.sendCompleteGames()

		_, ok := p.pendingMoves.Wait(MovesPerBlock, func() bool { return p.ctx.Err() == nil })
		if !ok {
			return
		}
		batch := p.pendingMoves.Drain(MovesPerBlock)
		if len(batch) < MovesPerBlock {
			continue
		}

		p.mu.RLock()
		bc := p.blockchain
		tip, err := bc.LastBlock()
		p.mu.RUnlock()
		if err != nil {
			p.logger.Error().Err(err).Msg("no chain tip to mine from")
			continue
		}

		nb := block.NewGameBlock(tip.Index+1, tip.Hash, batch, p.policy.Difficulty)
		if !nb.MineBlock(p.policy.Difficulty, func() bool { return p.ctx.Err() == nil }) {
			// Cancelled mid-mine; the batch is lost from the queue but that
			// is acceptable on shutdown.
			return
		}

		p.mu.Lock()
		if err := bc.VerifyNewBlock(nb); err != nil {
			p.mu.Unlock()
			p.logger.Error().Err(err).Msg("mined an invalid block")
			continue
		}
		bc.AddBlock(*nb)
		p.logger.Info().Str("hash", nb.Hash).Msg("block mined")
		p.reportBlockchain()
		terminal := len(bc.Chain) == p.terminalLength()
		if terminal {
			p.finalizeGame()
		}
		p.mu.Unlock()

		p.broadcastBlock(*nb, p.nodeID)

		select {
		case <-p.ctx.Done():
			return
		case <-time.After(MineIdleDelay):
		}
	}
}

func (p *Player) sendCompleteGames() {
	p.mu.RLock()
	nodes := make([]MainNodeTarget, 0, len(p.mainNodes))
	for _, n := range p.mainNodes {
		nodes = append(nodes, n)
	}
	p.mu.RUnlock()

	if len(nodes) == 0 {
		if p.completedGames.Len() > 0 {
			p.logger.Warn().Msg("no main node connected")
		}
		return
	}

	for _, g := range p.completedGames.Drain(0) {
		sent := false
		for _, n := range nodes {
			if !n.Running() {
				continue
			}
			if err := n.AddTransaction(g, p.nodeID); err != nil {
				p.logger.Error().Err(err).Str("node", n.ID()).Msg("failed to submit completed game")
				continue
			}
			sent = true
		}
		if !sent {
			p.completedGames.Add(g)
		}
	}
	p.reportCompletedGames()
}

func (p *Player) reportMempool() {
	if p.journal == nil {
		return
	}
	p.journal.RecordMempool(p.nodeID, p.pendingMoves.Snapshot())
}

func (p *Player) reportBlockchain() {
	if p.journal == nil {
		return
	}
	p.journal.RecordBlockchain(p.nodeID, append([]block.GameBlock(nil), p.blockchain.Chain...))
}

func (p *Player) reportCompletedGames() {
	if p.journal == nil {
		return
	}
	p.journal.RecordCompleteGames(p.nodeID, p.completedGames.Snapshot())
}
