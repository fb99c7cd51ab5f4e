// Package mainnode implements the MainNode: one member of the gossip
// fleet that mines completed games into the global MainChain.
package mainnode

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/klingnet-chess/chesschain/internal/game"
	"github.com/klingnet-chess/chesschain/internal/log"
	"github.com/klingnet-chess/chesschain/internal/mainchain"
	"github.com/klingnet-chess/chesschain/internal/mempool"
)

// GamesPerBlock is the maximum number of completed games a MainNode drains
// into a single MainBlock.
const GamesPerBlock = 10

// MineIdleDelay is the cooperative yield a MainNode sleeps after each mined
// block, before looping back to wait for the next batch.
const MineIdleDelay = 1 * time.Second

// MainNode errors.
var (
	ErrNoPeers       = errors.New("mainnode: at least one peer is required to join")
	ErrInvalidGame   = errors.New("mainnode: game is not a valid completed transaction")
	ErrChainRequired = errors.New("mainnode: an existing chain is required")
)

// Peer is what a MainNode needs from another MainNode to exchange completed
// games and mined blocks — an in-process stand-in for network transport.
// internal/netp2p bridges this interface to real libp2p gossip.
type Peer interface {
	ID() string
	Running() bool
	ReceiveTransaction(g game.Game, fromPeer string)
	ReceiveBlock(b mainchain.MainBlock, fromPeer string)
}

// Journal is an optional audit sink a MainNode reports its state
// transitions to. A nil Journal disables reporting.
type Journal interface {
	LogMessage(nodeID, message string)
	RecordMempool(nodeID string, games []game.Game)
	RecordBlockchain(nodeID string, chain []mainchain.MainBlock)
}

// MainNode is one member of the global-chain gossip fleet.
type MainNode struct {
	nodeID     string
	difficulty int

	mu    sync.RWMutex
	chain *mainchain.MainChain
	peers map[string]Peer

	pendingGames *mempool.Pool[game.Game, game.DedupKey]

	journal Journal
	logger  zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New wraps an existing MainChain — the constructor used when a MainNode is
// stood up around chain state that already exists (tests, or a node
// restored from persisted state). chain is never reassigned after
// construction; it is the MainNode's chain for its entire lifetime.
func New(chain *mainchain.MainChain, difficulty int) (*MainNode, error) {
	if chain == nil {
		return nil, ErrChainRequired
	}
	return newMainNode(chain, difficulty), nil
}

// NewJoining allocates a fresh MainChain and connects to every running peer
// in peers, mirroring the original implementation's "join the network"
// constructor. Unlike that constructor, the freshly allocated chain is
// never thrown away and reallocated; it is built once, here, and kept for
// the node's entire lifetime.
func NewJoining(peers []Peer, difficulty int) (*MainNode, error) {
	if len(peers) == 0 {
		return nil, ErrNoPeers
	}
	n := newMainNode(mainchain.NewMainChain(), difficulty)
	for _, peer := range peers {
		if peer.Running() {
			n.ConnectPeer(peer)
		}
	}
	n.syncPeers()
	return n, nil
}

func newMainNode(chain *mainchain.MainChain, difficulty int) *MainNode {
	if difficulty < 0 {
		difficulty = mainchain.DefaultMainBlockDifficulty
	}
	nodeID, err := randomNodeID()
	if err != nil {
		// Entropy exhaustion is unrecoverable; randomNodeID only fails if
		// crypto/rand itself is broken.
		panic(fmt.Errorf("mainnode: %w", err))
	}
	ctx, cancel := context.WithCancel(context.Background())
	n := &MainNode{
		nodeID:     nodeID,
		difficulty: difficulty,
		chain:      chain,
		peers:      make(map[string]Peer),
		pendingGames: mempool.New[game.Game, game.DedupKey](func(g game.Game) game.DedupKey {
			return g.Key()
		}),
		logger: log.WithNodeID(log.MainNode, nodeID),
		ctx:    ctx,
		cancel: cancel,
	}
	n.logger.Info().Msg("node started")
	return n
}

var nodeIDSpan = big.NewInt(9_000_000_000)

// randomNodeID mirrors the original implementation's
// `1000000000 + rand() % 9000000000`: a main node's identity is a random
// large integer, unlike a Player's PEM-derived identity, since MainNode
// carries no cryptographic key pair of its own.
func randomNodeID() (string, error) {
	n, err := rand.Int(rand.Reader, nodeIDSpan)
	if err != nil {
		return "", fmt.Errorf("draw random node id: %w", err)
	}
	return fmt.Sprintf("%d", 1_000_000_000+n.Int64()), nil
}

// ID returns the MainNode's node identity.
func (n *MainNode) ID() string { return n.nodeID }

// Running reports whether the MainNode has not yet been stopped.
func (n *MainNode) Running() bool { return n.ctx.Err() == nil }

// SetJournal attaches an audit sink. Must be called before Start.
func (n *MainNode) SetJournal(j Journal) { n.journal = j }

// Chain returns the MainNode's MainChain. The pointer is stable for the
// node's entire lifetime.
func (n *MainNode) Chain() *mainchain.MainChain { return n.chain }

// PendingCount returns the number of completed games currently queued for
// mining.
func (n *MainNode) PendingCount() int { return n.pendingGames.Len() }

// PendingGames returns a snapshot of completed games currently queued for
// mining, used by a peer's syncPeers to replay this node's pending queue.
func (n *MainNode) PendingGames() []game.Game { return n.pendingGames.Snapshot() }

// Start launches the MainNode's long-running mining loop in the
// background.
func (n *MainNode) Start() {
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		n.mineLoop()
	}()
}

// Stop signals the mining loop to exit and waits for it to return.
func (n *MainNode) Stop() {
	n.cancel()
	n.pendingGames.Broadcast()
	n.wg.Wait()
	n.logger.Info().Msg("stopped")
}

// AddTransaction validates and enqueues a locally submitted completed game,
// then gossips it to every connected peer. Satisfies player.MainNodeTarget.
func (n *MainNode) AddTransaction(g game.Game, fromPeer string) error {
	return n.addTransaction(g, fromPeer)
}

// ReceiveTransaction validates and enqueues a completed game received from
// fromPeer, forwarding gossip to every peer except fromPeer.
func (n *MainNode) ReceiveTransaction(g game.Game, fromPeer string) {
	_ = n.addTransaction(g, fromPeer)
}

func (n *MainNode) addTransaction(g game.Game, fromPeer string) error {
	if !isValidTransaction(g) || !g.VerifyValidGame() {
		n.logger.Warn().Int64("gameId", g.GameID).Msg("invalid game rejected")
		return ErrInvalidGame
	}
	if !n.pendingGames.Add(g) {
		n.logger.Debug().Int64("gameId", g.GameID).Msg("duplicate game ignored")
		return nil
	}
	n.reportMempool()
	n.broadcastTransaction(g, fromPeer)
	return nil
}

// isValidTransaction is the shallow well-formedness check the original
// implementation runs before the full chain/PoW verification in
// verifyValidGame: completeness flag, non-empty chain, exactly two
// players, non-empty winner.
func isValidTransaction(g game.Game) bool {
	return g.IsValidTransaction()
}

func (n *MainNode) broadcastTransaction(g game.Game, fromPeer string) {
	n.mu.RLock()
	peers := make([]Peer, 0, len(n.peers))
	for id, peer := range n.peers {
		if id == fromPeer {
			continue
		}
		peers = append(peers, peer)
	}
	n.mu.RUnlock()

	for _, peer := range peers {
		n.logger.Debug().Str("to", peer.ID()).Msg("game broadcast")
		peer.ReceiveTransaction(g, n.nodeID)
	}
}

// ConnectPeer registers n bidirectionally with peer, recursing at most once
// to avoid the cycle a naive mutual-registration would otherwise cause.
func (n *MainNode) ConnectPeer(peer Peer) {
	if peer.ID() == n.nodeID {
		n.logger.Debug().Msg("refusing to connect to self")
		return
	}
	n.mu.Lock()
	_, exists := n.peers[peer.ID()]
	if !exists {
		n.peers[peer.ID()] = peer
	}
	n.mu.Unlock()

	if exists {
		n.logger.Debug().Str("peer", peer.ID()).Msg("already connected")
		return
	}
	n.logger.Info().Str("peer", peer.ID()).Msg("connected")
	if connector, ok := peer.(interface{ ConnectPeer(Peer) }); ok {
		connector.ConnectPeer(n)
	}
}

// ReceiveBlock validates a block proposed by fromPeer against the current
// chain tip. If valid, it appends the block (atomically folding the block's
// games into the rating ledger), re-broadcasts (excluding fromPeer), and
// removes any pending games the block already carries. The duplicate
// check, verification, and append run under n.mu so that a concurrent
// ReceiveBlock or the node's own mineLoop can never both pass
// VerifyNewBlock against the same tip and both append.
func (n *MainNode) ReceiveBlock(b mainchain.MainBlock, fromPeer string) {
	n.mu.Lock()
	for _, existing := range n.chain.Chain() {
		if existing.Hash == b.Hash {
			n.mu.Unlock()
			n.logger.Debug().Str("hash", b.Hash).Msg("duplicate block ignored")
			return
		}
	}

	if err := n.chain.VerifyNewBlock(&b); err != nil {
		n.mu.Unlock()
		n.logger.Warn().Err(err).Str("from", fromPeer).Msg("rejected invalid block")
		return
	}

	n.chain.AddBlock(b)
	n.logger.Info().Str("from", fromPeer).Str("hash", b.Hash).Msg("block accepted")
	n.reportBlockchain()
	n.mu.Unlock()

	n.broadcastBlock(b, fromPeer)
	n.prunePending(b.Games)
}

func (n *MainNode) broadcastBlock(b mainchain.MainBlock, fromPeer string) {
	n.mu.RLock()
	peers := make([]Peer, 0, len(n.peers))
	for id, peer := range n.peers {
		if id == fromPeer {
			continue
		}
		peers = append(peers, peer)
	}
	n.mu.RUnlock()

	for _, peer := range peers {
		n.logger.Debug().Str("to", peer.ID()).Str("hash", b.Hash).Msg("block broadcast")
		peer.ReceiveBlock(b, n.nodeID)
	}
}

func (n *MainNode) prunePending(mined []game.Game) {
	minedKeys := make(map[game.DedupKey]struct{}, len(mined))
	for _, g := range mined {
		minedKeys[g.Key()] = struct{}{}
	}
	kept := make([]game.Game, 0)
	for _, g := range n.pendingGames.Drain(0) {
		if _, found := minedKeys[g.Key()]; !found {
			kept = append(kept, g)
		}
	}
	for _, g := range kept {
		n.pendingGames.Add(g)
	}
	n.reportMempool()
}

// syncPeers adopts the longest running peer's chain if it outgrows this
// node's own, then replays every peer's pending games through
// addTransaction. Each peer's state is read only through its own exported
// Chain/PendingGames accessors, so no node ever reaches into another's
// internal lock. A peer that exposes neither (a bridge standing in for a
// real network connection with no local state to read) is skipped.
func (n *MainNode) syncPeers() {
	n.mu.RLock()
	peers := make([]Peer, 0, len(n.peers))
	for _, peer := range n.peers {
		peers = append(peers, peer)
	}
	n.mu.RUnlock()

	if len(peers) == 0 {
		return
	}

	for _, peer := range peers {
		if !peer.Running() {
			continue
		}
		syncable, ok := peer.(interface {
			Chain() *mainchain.MainChain
			PendingGames() []game.Game
		})
		if !ok {
			continue
		}
		if syncable.Chain().Len() > n.chain.Len() {
			n.logger.Info().Str("peer", peer.ID()).Msg("adopting longer chain")
			for _, b := range syncable.Chain().Chain()[n.chain.Len():] {
				n.ReceiveBlock(b, peer.ID())
			}
		}
		for _, g := range syncable.PendingGames() {
			_ = n.addTransaction(g, peer.ID())
		}
	}
}

// mineLoop is the MainNode's long-running mining goroutine: one per node,
// started by Start.
func (n *MainNode) mineLoop() {
	for {
		batch, ok := n.pendingGames.Wait(1, func() bool { return n.ctx.Err() == nil })
		if !ok {
			return
		}
		if len(batch) > GamesPerBlock {
			batch = batch[:GamesPerBlock]
		}
		batch = n.pendingGames.Drain(len(batch))
		if len(batch) == 0 {
			continue
		}

		n.logger.Info().Int("count", len(batch)).Msg("mining main block")

		tip, err := n.chain.Tip()
		if err != nil {
			n.logger.Error().Err(err).Msg("no chain tip to mine from")
			continue
		}

		nb := mainchain.NewMainBlock(tip.Index+1, tip.Hash, batch, n.difficulty)
		if !nb.MineBlock(n.difficulty, func() bool { return n.ctx.Err() == nil }) {
			return
		}

		n.mu.Lock()
		if err := n.chain.VerifyNewBlock(nb); err != nil {
			n.mu.Unlock()
			n.logger.Error().Err(err).Msg("mined an invalid block")
			continue
		}
		n.chain.AddBlock(*nb)
		n.logger.Info().Str("hash", nb.Hash).Msg("block mined")
		n.reportBlockchain()
		n.mu.Unlock()

		n.broadcastBlock(*nb, n.nodeID)

		select {
		case <-n.ctx.Done():
			return
		case <-time.After(MineIdleDelay):
		}
	}
}

func (n *MainNode) reportMempool() {
	if n.journal == nil {
		return
	}
	n.journal.RecordMempool(n.nodeID, n.pendingGames.Snapshot())
}

func (n *MainNode) reportBlockchain() {
	if n.journal == nil {
		return
	}
	n.journal.RecordBlockchain(n.nodeID, n.chain.Chain())
}
