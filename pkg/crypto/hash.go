// Package crypto provides cryptographic primitives for the chess chain.
package crypto

import (
	"encoding/hex"

	"github.com/zeebo/blake3"
)

// Sum256 computes the raw 32-byte BLAKE3-256 digest of data.
// Used as signing input, where a fixed-size digest is required.
func Sum256(data []byte) [32]byte {
	return blake3.Sum256(data)
}

// HashHex computes the BLAKE3-256 digest of data and renders it as
// lowercase hexadecimal. Every hash/previousHash field in the chain
// uses this form.
func HashHex(data []byte) string {
	sum := Sum256(data)
	return hex.EncodeToString(sum[:])
}
