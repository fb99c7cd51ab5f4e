package block

import (
	"testing"

	"github.com/klingnet-chess/chesschain/pkg/crypto"
	"github.com/klingnet-chess/chesschain/pkg/move"
)

func signedMove(t *testing.T, sender *crypto.PrivateKey, senderPEM, receiverPEM, data string) move.Move {
	t.Helper()
	m, err := move.New(senderPEM, receiverPEM, data)
	if err != nil {
		t.Fatalf("move.New() error: %v", err)
	}
	if err := m.Sign(sender); err != nil {
		t.Fatalf("Sign() error: %v", err)
	}
	return *m
}

func TestGenesisGameBlock(t *testing.T) {
	g := GenesisGameBlock()
	if g.Index != 0 {
		t.Errorf("Index = %d, want 0", g.Index)
	}
	if g.PreviousHash != GenesisPreviousHash {
		t.Errorf("PreviousHash = %q, want %q", g.PreviousHash, GenesisPreviousHash)
	}
	if !g.VerifyOwnHash() {
		t.Error("genesis block should verify its own hash")
	}
	if len(g.Moves) != 0 {
		t.Error("genesis block should have no moves")
	}
}

func TestNewGameBlock_MineAndVerify(t *testing.T) {
	sender, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey() error: %v", err)
	}
	receiver, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey() error: %v", err)
	}
	senderPEM, receiverPEM := sender.PublicKeyPEM(), receiver.PublicKeyPEM()

	moves := []move.Move{signedMove(t, sender, senderPEM, receiverPEM, "e4")}

	genesis := GenesisGameBlock()
	b := NewGameBlock(1, genesis.Hash, moves, 1)
	if !b.MineBlock(1, nil) {
		t.Fatal("MineBlock() returned false for an uncancelled run")
	}
	if !b.VerifyOwnHash() {
		t.Error("mined block should verify its own hash")
	}
	if !b.VerifyLink(genesis.Hash) {
		t.Error("block should link to genesis hash")
	}
	if !b.VerifyMoves() {
		t.Error("block moves should all be valid")
	}
}

func TestGameBlock_VerifyMoves_RejectsInvalid(t *testing.T) {
	sender, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey() error: %v", err)
	}
	receiver, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey() error: %v", err)
	}

	m := signedMove(t, sender, sender.PublicKeyPEM(), receiver.PublicKeyPEM(), "e4")
	m.Data = "e5" // tamper after signing

	b := &GameBlock{Header: NewHeader(1, "0", 0), Moves: []move.Move{m}}
	if b.VerifyMoves() {
		t.Error("tampered move should fail VerifyMoves")
	}
}

func TestGameBlock_CanonicalPayload_OrderSensitive(t *testing.T) {
	sender, _ := crypto.GenerateKey()
	receiver, _ := crypto.GenerateKey()
	senderPEM, receiverPEM := sender.PublicKeyPEM(), receiver.PublicKeyPEM()

	m1 := signedMove(t, sender, senderPEM, receiverPEM, "e4")
	m2 := signedMove(t, sender, senderPEM, receiverPEM, "d4")

	b1 := &GameBlock{Moves: []move.Move{m1, m2}}
	b2 := &GameBlock{Moves: []move.Move{m2, m1}}

	if b1.CanonicalPayload() == b2.CanonicalPayload() {
		t.Error("CanonicalPayload should be sensitive to move order")
	}
}
