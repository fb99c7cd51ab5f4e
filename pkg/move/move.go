// Package move defines the signed per-turn message players exchange.
package move

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"

	"github.com/klingnet-chess/chesschain/pkg/crypto"
)

// Move errors, surfaced from locally-initiated actions per the
// propagation policy; gossip paths drop these silently with a log entry
// instead of returning them to a caller.
var (
	ErrEmptyData      = errors.New("move: data must not be empty")
	ErrEmptySender    = errors.New("move: sender must not be empty")
	ErrEmptyReceiver  = errors.New("move: receiver must not be empty")
	ErrSenderReceiver = errors.New("move: sender and receiver must differ")
	ErrUnsigned       = errors.New("move: signature not yet set")
)

// idLow and idSpan bound the uniform range the original implementation
// draws move identifiers from: 1_000_000_000 + rand()%9_000_000_000.
var (
	idLow  = big.NewInt(1_000_000_000)
	idSpan = big.NewInt(9_000_000_000)
)

// Move is a signed message from one player to another carrying opaque
// game data. Once signed it is never mutated; it is copied by value into
// GameBlocks and over the wire.
type Move struct {
	ID        int64  `json:"id"`
	Sender    string `json:"sender"`
	Receiver  string `json:"receiver"`
	Data      string `json:"data"`
	Signature []byte `json:"signature"`
}

// Key is the deduplication tuple used by pending-move queues: (id,
// sender, receiver, data).
type Key struct {
	ID       int64
	Sender   string
	Receiver string
	Data     string
}

// New constructs an unsigned Move with a freshly drawn random id.
// sender and receiver are PEM-encoded public keys.
func New(sender, receiver, data string) (*Move, error) {
	if data == "" {
		return nil, ErrEmptyData
	}
	if sender == "" {
		return nil, ErrEmptySender
	}
	if receiver == "" {
		return nil, ErrEmptyReceiver
	}
	if sender == receiver {
		return nil, ErrSenderReceiver
	}

	id, err := randomID()
	if err != nil {
		return nil, fmt.Errorf("move: %w", err)
	}

	return &Move{
		ID:       id,
		Sender:   sender,
		Receiver: receiver,
		Data:     data,
	}, nil
}

// randomID draws uniformly from [1e9, 1e10), using crypto/rand rather
// than a seeded PRNG — the original's libc rand() has no cryptographic
// requirement here, but crypto/rand is the idiomatic Go replacement for
// "uniform over a wide range" with no seeding concerns.
func randomID() (int64, error) {
	n, err := rand.Int(rand.Reader, idSpan)
	if err != nil {
		return 0, fmt.Errorf("draw random id: %w", err)
	}
	return idLow.Int64() + n.Int64(), nil
}

// SigningBytes returns the canonical bytes signed by Sign: the
// concatenation sender ‖ receiver ‖ data.
func (m *Move) SigningBytes() []byte {
	return []byte(m.Sender + m.Receiver + m.Data)
}

// Sign computes the detached signature over SigningBytes and stores it.
// priv must correspond to the Move's Sender public key; callers
// constructing a Move on behalf of a player are responsible for that
// invariant, checked by the subsequent IsValid call.
func (m *Move) Sign(priv *crypto.PrivateKey) error {
	digest := crypto.Sum256(m.SigningBytes())
	sig, err := priv.Sign(digest[:])
	if err != nil {
		return fmt.Errorf("move: sign: %w", err)
	}
	m.Signature = sig
	return nil
}

// IsValid reports whether the Move is well-formed: non-empty data,
// non-empty and distinct sender/receiver, and a signature that verifies
// under Sender. It never panics on malformed input.
func (m *Move) IsValid() bool {
	if m.Data == "" || m.Sender == "" || m.Receiver == "" || m.Sender == m.Receiver {
		return false
	}
	if len(m.Signature) == 0 {
		return false
	}
	pub, err := crypto.ParsePublicKeyPEM(m.Sender)
	if err != nil {
		return false
	}
	digest := crypto.Sum256(m.SigningBytes())
	return crypto.VerifySignature(digest[:], m.Signature, pub)
}

// Canonical returns the canonical string form used wherever a Move is
// embedded in a block hash input: sender ‖ receiver ‖ data ‖
// hex(signature), byte for byte matching the original implementation's
// Move::toString.
func (m *Move) Canonical() string {
	return m.Sender + m.Receiver + m.Data + hex.EncodeToString(m.Signature)
}

// DedupKey returns the tuple used to detect duplicate moves in a
// pending queue or inside a received block.
func (m *Move) DedupKey() Key {
	return Key{ID: m.ID, Sender: m.Sender, Receiver: m.Receiver, Data: m.Data}
}
