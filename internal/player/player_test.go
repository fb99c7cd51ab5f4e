package player

import (
	"sync"
	"testing"
	"time"

	"github.com/klingnet-chess/chesschain/internal/game"
	"github.com/klingnet-chess/chesschain/pkg/block"
	"github.com/klingnet-chess/chesschain/pkg/move"
)

// fakeMainNode is a minimal MainNodeTarget double that records every
// submitted game.
type fakeMainNode struct {
	mu      sync.Mutex
	id      string
	running bool
	got     []game.Game
}

func newFakeMainNode(id string) *fakeMainNode { return &fakeMainNode{id: id, running: true} }

func (f *fakeMainNode) ID() string    { return f.id }
func (f *fakeMainNode) Running() bool { return f.running }
func (f *fakeMainNode) AddTransaction(g game.Game, fromPeer string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.got = append(f.got, g)
	return nil
}
func (f *fakeMainNode) submitted() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.got)
}

func fastPolicy() game.Policy {
	return game.Policy{TerminalLength: 3, Difficulty: 0}
}

func TestNew_AssignsStableNodeID(t *testing.T) {
	p, err := New(fastPolicy())
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if len(p.ID()) != 40 {
		t.Errorf("ID() length = %d, want 40", len(p.ID()))
	}
	if p.ID() != p.ID() {
		t.Error("ID() should be stable")
	}
}

func TestCreateMove_RequiresOpponent(t *testing.T) {
	p, _ := New(fastPolicy())
	if err := p.CreateMove("e4"); err != ErrNoOpponent {
		t.Errorf("CreateMove() error = %v, want ErrNoOpponent", err)
	}
}

func TestStartGame_Rendezvous(t *testing.T) {
	p1, _ := New(fastPolicy())
	p2, _ := New(fastPolicy())
	shared := game.Genesis(fastPolicy())

	ok1, err := p1.StartGame(p2, shared)
	if err != nil || !ok1 {
		t.Fatalf("p1.StartGame() = (%v, %v), want (true, nil)", ok1, err)
	}
	ok2, err := p2.StartGame(p1, shared)
	if err != nil || !ok2 {
		t.Fatalf("p2.StartGame() = (%v, %v), want (true, nil)", ok2, err)
	}

	if err := p1.CreateMove("e4"); err != nil {
		t.Errorf("CreateMove() after rendezvous: %v", err)
	}
}

func TestStartGame_RejectsWhenAlreadySet(t *testing.T) {
	p1, _ := New(fastPolicy())
	p2, _ := New(fastPolicy())
	p3, _ := New(fastPolicy())
	shared := game.Genesis(fastPolicy())

	if ok, err := p1.StartGame(p2, shared); !ok || err != nil {
		t.Fatalf("first StartGame() = (%v, %v)", ok, err)
	}
	if ok, err := p1.StartGame(p3, shared); ok || err != ErrRejectStartGame {
		t.Errorf("second StartGame() = (%v, %v), want (false, ErrRejectStartGame)", ok, err)
	}
}

func TestConnectPeer_IsBidirectionalAndIdempotent(t *testing.T) {
	p1, _ := New(fastPolicy())
	p2, _ := New(fastPolicy())

	p1.ConnectPeer(p2)
	p1.mu.RLock()
	_, p1HasP2 := p1.peers[p2.ID()]
	p1.mu.RUnlock()
	p2.mu.RLock()
	_, p2HasP1 := p2.peers[p1.ID()]
	p2.mu.RUnlock()

	if !p1HasP2 || !p2HasP1 {
		t.Error("ConnectPeer should register both directions")
	}

	// Calling again should be a no-op, not an infinite recursion.
	p1.ConnectPeer(p2)
}

func TestAddMove_DedupsAndGossips(t *testing.T) {
	p1, _ := New(fastPolicy())
	p2, _ := New(fastPolicy())
	shared := game.Genesis(fastPolicy())
	p1.StartGame(p2, shared)
	p2.StartGame(p1, shared)

	if err := p1.CreateMove("e4"); err != nil {
		t.Fatalf("CreateMove() error: %v", err)
	}
	if p2.PendingCount() != 1 {
		t.Errorf("p2 pending after gossip = %d, want 1", p2.PendingCount())
	}
	for _, m := range p2.PendingMoves() {
		p2.ReceiveTransaction(m, p1.ID())
	}
	if p2.PendingCount() != 1 {
		t.Errorf("p2 pending after duplicate = %d, want 1", p2.PendingCount())
	}
}

func TestNewJoining_SyncsLongerChainAndPendingMoves(t *testing.T) {
	a, _ := New(fastPolicy())
	b, _ := New(fastPolicy())
	shared := game.Genesis(fastPolicy())
	if ok, err := a.StartGame(b, shared); !ok || err != nil {
		t.Fatalf("a.StartGame() = (%v, %v)", ok, err)
	}
	if ok, err := b.StartGame(a, shared); !ok || err != nil {
		t.Fatalf("b.StartGame() = (%v, %v)", ok, err)
	}

	tip, err := a.blockchain.LastBlock()
	if err != nil {
		t.Fatalf("LastBlock() error: %v", err)
	}
	m, err := move.New(a.pub, b.pub, "e4")
	if err != nil {
		t.Fatalf("move.New() error: %v", err)
	}
	if err := m.Sign(a.priv); err != nil {
		t.Fatalf("Sign() error: %v", err)
	}
	nb := block.NewGameBlock(tip.Index+1, tip.Hash, []move.Move{*m}, 0)
	nb.MineBlock(0, nil)
	a.mu.Lock()
	a.blockchain.AddBlock(*nb)
	a.mu.Unlock()

	if err := a.CreateMove("e5"); err != nil {
		t.Fatalf("a.CreateMove() error: %v", err)
	}

	joiner, err := NewJoining(fastPolicy(), []Peer{a})
	if err != nil {
		t.Fatalf("NewJoining() error: %v", err)
	}
	if got, want := len(joiner.Snapshot().Chain), len(a.Snapshot().Chain); got != want {
		t.Errorf("joiner chain length = %d, want %d", got, want)
	}
	if joiner.PendingCount() != 1 {
		t.Errorf("joiner PendingCount() = %d, want 1 (synced from peer)", joiner.PendingCount())
	}
}

func TestPlayToCompletion_EndToEnd(t *testing.T) {
	p1, err := New(fastPolicy())
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	p2, err := New(fastPolicy())
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	mn1 := newFakeMainNode("mn1")
	p1.ConnectNode(mn1)
	p2.ConnectNode(mn1)

	shared := game.Genesis(fastPolicy())
	if ok, err := p1.StartGame(p2, shared); !ok || err != nil {
		t.Fatalf("p1.StartGame() = (%v, %v)", ok, err)
	}
	if ok, err := p2.StartGame(p1, shared); !ok || err != nil {
		t.Fatalf("p2.StartGame() = (%v, %v)", ok, err)
	}

	p1.Start()
	p2.Start()
	defer p1.Stop()
	defer p2.Stop()

	for i := 0; i < 5; i++ {
		if err := p1.CreateMove("e4"); err != nil {
			t.Fatalf("p1.CreateMove() error: %v", err)
		}
		if err := p2.CreateMove("e5"); err != nil {
			t.Fatalf("p2.CreateMove() error: %v", err)
		}
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if mn1.submitted() >= 1 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	if got := mn1.submitted(); got < 1 {
		t.Fatalf("main node received %d completed games, want at least 1", got)
	}
}
