package mainnode

import (
	"sync"
	"testing"
	"time"

	"github.com/klingnet-chess/chesschain/internal/game"
	"github.com/klingnet-chess/chesschain/internal/mainchain"
	"github.com/klingnet-chess/chesschain/pkg/block"
	"github.com/klingnet-chess/chesschain/pkg/crypto"
	"github.com/klingnet-chess/chesschain/pkg/move"
)

func completedGame(t *testing.T) game.Game {
	t.Helper()
	p1, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey() error: %v", err)
	}
	p2, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey() error: %v", err)
	}
	p1PEM, p2PEM := p1.PublicKeyPEM(), p2.PublicKeyPEM()

	g, err := game.New([2]string{p1PEM, p2PEM}, game.Policy{TerminalLength: 3, Difficulty: 0})
	if err != nil {
		t.Fatalf("game.New() error: %v", err)
	}
	for i := 0; i < 2; i++ {
		tip, _ := g.LastBlock()
		m, err := move.New(p1PEM, p2PEM, "e4")
		if err != nil {
			t.Fatalf("move.New() error: %v", err)
		}
		if err := m.Sign(p1); err != nil {
			t.Fatalf("Sign() error: %v", err)
		}
		nb := block.NewGameBlock(tip.Index+1, tip.Hash, []move.Move{*m}, 0)
		nb.MineBlock(0, nil)
		g.AddBlock(*nb)
	}
	if err := g.EndGame(); err != nil {
		t.Fatalf("EndGame() error: %v", err)
	}
	return *g
}

func TestNew_RequiresChain(t *testing.T) {
	if _, err := New(nil, 0); err != ErrChainRequired {
		t.Errorf("New(nil, 0) error = %v, want ErrChainRequired", err)
	}
}

func TestNew_AssignsStableNodeID(t *testing.T) {
	n, err := New(mainchain.NewMainChain(), 0)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if n.ID() == "" {
		t.Error("ID() should not be empty")
	}
	if n.ID() != n.ID() {
		t.Error("ID() should be stable")
	}
}

func TestNewJoining_RequiresPeers(t *testing.T) {
	if _, err := NewJoining(nil, 0); err != ErrNoPeers {
		t.Errorf("NewJoining(nil, 0) error = %v, want ErrNoPeers", err)
	}
}

func TestNewJoining_AllocatesOwnChain(t *testing.T) {
	n1, err := New(mainchain.NewMainChain(), 0)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	joiner, err := NewJoining([]Peer{n1}, 0)
	if err != nil {
		t.Fatalf("NewJoining() error: %v", err)
	}
	if joiner.Chain() == n1.Chain() {
		t.Error("NewJoining should allocate its own chain, not alias a peer's")
	}
	if joiner.Chain().Len() != 1 {
		t.Errorf("fresh chain Len() = %d, want 1 (genesis)", joiner.Chain().Len())
	}
}

func TestNewJoining_SyncsLongerChainAndPendingGames(t *testing.T) {
	n1, _ := New(mainchain.NewMainChain(), 0)

	g1 := completedGame(t)
	genesis, _ := n1.Chain().Tip()
	b := mainchain.NewMainBlock(1, genesis.Hash, []game.Game{g1}, 0)
	b.MineBlock(0, nil)
	n1.ReceiveBlock(*b, "")
	if n1.Chain().Len() != 2 {
		t.Fatalf("setup: n1 Chain().Len() = %d, want 2", n1.Chain().Len())
	}

	g2 := completedGame(t)
	if err := n1.AddTransaction(g2, ""); err != nil {
		t.Fatalf("AddTransaction() error: %v", err)
	}

	joiner, err := NewJoining([]Peer{n1}, 0)
	if err != nil {
		t.Fatalf("NewJoining() error: %v", err)
	}
	if joiner.Chain().Len() != n1.Chain().Len() {
		t.Errorf("joiner Chain().Len() = %d, want %d", joiner.Chain().Len(), n1.Chain().Len())
	}
	if joiner.PendingCount() != 1 {
		t.Errorf("joiner PendingCount() = %d, want 1 (synced from peer)", joiner.PendingCount())
	}
}

func TestReceiveBlock_ConcurrentCompetingBlocksStayLinked(t *testing.T) {
	n, _ := New(mainchain.NewMainChain(), 0)
	genesis, _ := n.Chain().Tip()

	g1, g2 := completedGame(t), completedGame(t)
	b1 := mainchain.NewMainBlock(1, genesis.Hash, []game.Game{g1}, 0)
	b1.MineBlock(0, nil)
	b2 := mainchain.NewMainBlock(1, genesis.Hash, []game.Game{g2}, 0)
	b2.MineBlock(0, nil)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); n.ReceiveBlock(*b1, "") }()
	go func() { defer wg.Done(); n.ReceiveBlock(*b2, "") }()
	wg.Wait()

	chain := n.Chain().Chain()
	if len(chain) != 2 {
		t.Fatalf("Chain().Len() = %d, want 2 (only one of two competing blocks should be accepted)", len(chain))
	}
	if !chain[1].VerifyLink(chain[0].Hash) {
		t.Error("chain[1] does not link to chain[0] after concurrent ReceiveBlock")
	}
}

func TestAddTransaction_RejectsInvalidGame(t *testing.T) {
	n, _ := New(mainchain.NewMainChain(), 0)
	p1, _ := crypto.GenerateKey()
	p2, _ := crypto.GenerateKey()
	incomplete, _ := game.New([2]string{p1.PublicKeyPEM(), p2.PublicKeyPEM()}, game.DefaultPolicy)

	if err := n.AddTransaction(*incomplete, ""); err != ErrInvalidGame {
		t.Errorf("AddTransaction() error = %v, want ErrInvalidGame", err)
	}
}

func TestAddTransaction_DedupsAndGossips(t *testing.T) {
	n1, _ := New(mainchain.NewMainChain(), 0)
	n2, _ := New(mainchain.NewMainChain(), 0)
	n1.ConnectPeer(n2)

	g := completedGame(t)
	if err := n1.AddTransaction(g, ""); err != nil {
		t.Fatalf("AddTransaction() error: %v", err)
	}
	if n2.PendingCount() != 1 {
		t.Errorf("n2 pending after gossip = %d, want 1", n2.PendingCount())
	}
	if err := n1.AddTransaction(g, ""); err != nil {
		t.Fatalf("AddTransaction() (dup) error: %v", err)
	}
	if n1.PendingCount() != 1 {
		t.Errorf("n1 pending after duplicate = %d, want 1", n1.PendingCount())
	}
}

func TestConnectPeer_IsBidirectionalAndRefusesSelf(t *testing.T) {
	n1, _ := New(mainchain.NewMainChain(), 0)
	n2, _ := New(mainchain.NewMainChain(), 0)

	n1.ConnectPeer(n1)
	n1.mu.RLock()
	_, selfConnected := n1.peers[n1.ID()]
	n1.mu.RUnlock()
	if selfConnected {
		t.Error("ConnectPeer should refuse to connect a node to itself")
	}

	n1.ConnectPeer(n2)
	n1.mu.RLock()
	_, n1HasN2 := n1.peers[n2.ID()]
	n1.mu.RUnlock()
	n2.mu.RLock()
	_, n2HasN1 := n2.peers[n1.ID()]
	n2.mu.RUnlock()
	if !n1HasN2 || !n2HasN1 {
		t.Error("ConnectPeer should register both directions")
	}
}

func TestMineLoop_MinesCompletedGameIntoBlock(t *testing.T) {
	n, err := New(mainchain.NewMainChain(), 0)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	n.Start()
	defer n.Stop()

	g := completedGame(t)
	if err := n.AddTransaction(g, ""); err != nil {
		t.Fatalf("AddTransaction() error: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if n.Chain().Len() >= 2 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	if n.Chain().Len() < 2 {
		t.Fatalf("Chain().Len() = %d, want at least 2 after mining", n.Chain().Len())
	}
	if got := n.Chain().GetRating(g.WinnerID); got != 1 {
		t.Errorf("winner rating = %v, want 1", got)
	}
}

func TestReceiveBlock_RejectsDuplicateHash(t *testing.T) {
	n1, _ := New(mainchain.NewMainChain(), 0)
	n2, _ := New(mainchain.NewMainChain(), 0)

	g := completedGame(t)
	genesis, _ := n1.Chain().Tip()
	b := mainchain.NewMainBlock(1, genesis.Hash, []game.Game{g}, 0)
	b.MineBlock(0, nil)

	n1.ReceiveBlock(*b, "")
	if n1.Chain().Len() != 2 {
		t.Fatalf("n1 Chain().Len() = %d, want 2", n1.Chain().Len())
	}

	n2.ReceiveBlock(*b, "")
	n2.ReceiveBlock(*b, "") // duplicate, should be ignored
	if n2.Chain().Len() != 2 {
		t.Errorf("n2 Chain().Len() after duplicate = %d, want 2", n2.Chain().Len())
	}
}
