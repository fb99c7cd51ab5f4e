// Package block defines the shared block header and proof-of-work
// mining primitive used by both the per-game chain (GameBlock) and the
// main chain (MainBlock, in internal/mainchain).
package block

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/klingnet-chess/chesschain/pkg/crypto"
)

// GenesisPreviousHash is the literal previousHash value of any chain's
// genesis block.
const GenesisPreviousHash = "0"

// Header holds the fields GameBlock and MainBlock share: position in
// the chain, link to the predecessor, mining metadata, and the content
// hash itself.
type Header struct {
	Index        uint64 `json:"index"`
	PreviousHash string `json:"previousHash"`
	Timestamp    int64  `json:"timestamp"`
	Nonce        uint64 `json:"nonce"`
	Hash         string `json:"hash"`
	Difficulty   int    `json:"difficulty"`
}

// NewHeader captures a provisional header at construction time: nonce 0,
// timestamp now, hash not yet computed. Mine fills in Hash.
func NewHeader(index uint64, previousHash string, difficulty int) Header {
	return Header{
		Index:        index,
		PreviousHash: previousHash,
		Timestamp:    time.Now().Unix(),
		Nonce:        0,
		Difficulty:   difficulty,
	}
}

// hashInput renders the decimal-text concatenation that is hashed to
// produce a block's content hash: index ‖ previousHash ‖ timestamp ‖
// nonce ‖ payloadCanonical. This mirrors the original implementation's
// stringstream construction (BlockGame::calculateHash /
// MainBlock::calculateHash) byte for byte, not a binary encoding.
func (h *Header) hashInput(payloadCanonical string) string {
	var b strings.Builder
	b.WriteString(strconv.FormatUint(h.Index, 10))
	b.WriteString(h.PreviousHash)
	b.WriteString(strconv.FormatInt(h.Timestamp, 10))
	b.WriteString(strconv.FormatUint(h.Nonce, 10))
	b.WriteString(payloadCanonical)
	return b.String()
}

// ComputeHash recomputes the content hash from the header's current
// fields and the given payload canonical string, without mutating Hash.
func (h *Header) ComputeHash(payloadCanonical string) string {
	return crypto.HashHex([]byte(h.hashInput(payloadCanonical)))
}

// VerifyPoW reports whether hash begins with difficulty hexadecimal '0'
// characters — the literal prefix check the spec requires, not a
// numeric big.Int target comparison.
func VerifyPoW(hash string, difficulty int) bool {
	if difficulty <= 0 {
		return true
	}
	if len(hash) < difficulty {
		return false
	}
	return hash[:difficulty] == strings.Repeat("0", difficulty)
}

// Mine repeatedly increments Nonce and recomputes Hash until the
// proof-of-work predicate holds, then stops. running is polled once per
// nonce attempt so a caller's stop() causes prompt exit; a nil running
// never cancels (suitable for cheap, low-difficulty mining such as
// genesis blocks). Mine sets Hash even if cancelled mid-search, to
// whatever the header's state is at cancellation — callers must check
// the return value before treating a block as mined.
func (h *Header) Mine(payloadCanonical string, running func() bool) bool {
	target := strings.Repeat("0", h.Difficulty)
	for {
		if running != nil && !running() {
			return false
		}
		h.Hash = h.ComputeHash(payloadCanonical)
		if strings.HasPrefix(h.Hash, target) {
			return true
		}
		h.Nonce++
	}
}

// VerifyLink reports whether h correctly follows predecessor in a chain:
// h.PreviousHash must equal predecessor's hash.
func (h *Header) VerifyLink(predecessorHash string) bool {
	return h.PreviousHash == predecessorHash
}

// VerifyHash reports whether h.Hash is both the correct recomputed
// digest of h's fields plus payloadCanonical, and satisfies h's own
// proof-of-work difficulty.
func (h *Header) VerifyHash(payloadCanonical string) bool {
	if h.Hash != h.ComputeHash(payloadCanonical) {
		return false
	}
	return VerifyPoW(h.Hash, h.Difficulty)
}

// String renders a short diagnostic form for logging.
func (h *Header) String() string {
	return fmt.Sprintf("block#%d hash=%s prev=%s nonce=%d diff=%d", h.Index, h.Hash, h.PreviousHash, h.Nonce, h.Difficulty)
}
