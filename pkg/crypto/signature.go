package crypto

import (
	"encoding/pem"
	"fmt"
	"strings"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/schnorr"
)

// Signer signs messages with a private key using Schnorr/secp256k1.
type Signer interface {
	// Sign produces a Schnorr signature over a 32-byte hash.
	Sign(hash []byte) ([]byte, error)
	// PublicKey returns the compressed 33-byte public key.
	PublicKey() []byte
}

// Verifier verifies Schnorr/secp256k1 signatures.
type Verifier interface {
	// Verify checks a Schnorr signature against a hash and compressed public key.
	Verify(hash, signature, publicKey []byte) bool
}

// PrivateKey wraps a secp256k1 private key for Schnorr signing.
type PrivateKey struct {
	key *secp256k1.PrivateKey
}

// GenerateKey creates a new random secp256k1 private key.
func GenerateKey() (*PrivateKey, error) {
	key, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	return &PrivateKey{key: key}, nil
}

// PrivateKeyFromBytes creates a PrivateKey from a 32-byte secret.
func PrivateKeyFromBytes(b []byte) (*PrivateKey, error) {
	if len(b) != 32 {
		return nil, fmt.Errorf("private key must be 32 bytes, got %d", len(b))
	}
	key := secp256k1.PrivKeyFromBytes(b)
	return &PrivateKey{key: key}, nil
}

// Sign produces a Schnorr signature over a 32-byte hash.
func (pk *PrivateKey) Sign(hash []byte) ([]byte, error) {
	if len(hash) != 32 {
		return nil, fmt.Errorf("hash must be 32 bytes, got %d", len(hash))
	}
	sig, err := schnorr.Sign(pk.key, hash)
	if err != nil {
		return nil, fmt.Errorf("schnorr sign: %w", err)
	}
	return sig.Serialize(), nil
}

// PublicKey returns the compressed 33-byte public key.
func (pk *PrivateKey) PublicKey() []byte {
	return pk.key.PubKey().SerializeCompressed()
}

// PublicKeyPEM returns the PEM-text encoding of the compressed public key.
// Public keys double as player identifiers (see NodeID), so the wire
// format always carries them as PEM text rather than raw bytes.
func (pk *PrivateKey) PublicKeyPEM() string {
	return PublicKeyPEM(pk.PublicKey())
}

// NodeID returns the stable player identifier derived from the public
// key: the last 40 characters of the PEM text with line breaks stripped.
func (pk *PrivateKey) NodeID() string {
	return NodeIDFromPEM(pk.PublicKeyPEM())
}

// Serialize returns the 32-byte private key scalar.
func (pk *PrivateKey) Serialize() []byte {
	return pk.key.Serialize()
}

// Zero securely zeroes the private key memory.
func (pk *PrivateKey) Zero() {
	pk.key.Zero()
}

// VerifySignature checks a Schnorr signature against a 32-byte hash
// and a compressed public key. Returns false on any error.
func VerifySignature(hash, signature, publicKey []byte) bool {
	pubKey, err := secp256k1.ParsePubKey(publicKey)
	if err != nil {
		return false
	}
	sig, err := schnorr.ParseSignature(signature)
	if err != nil {
		return false
	}
	return sig.Verify(hash, pubKey)
}

// SchnorrVerifier implements the Verifier interface.
type SchnorrVerifier struct{}

// Verify checks a Schnorr signature against a hash and compressed public key.
func (v SchnorrVerifier) Verify(hash, signature, publicKey []byte) bool {
	return VerifySignature(hash, signature, publicKey)
}

// pemBlockType labels the PEM envelope this package emits. The compressed
// secp256k1 point is not an ASN.1 SubjectPublicKeyInfo; PEM here is just
// the text envelope the wire format and node-identity scheme need, not an
// interoperable X.509 key.
const pemBlockType = "CHESSCHAIN PUBLIC KEY"

// PublicKeyPEM encodes a compressed public key as PEM text.
func PublicKeyPEM(pubKey []byte) string {
	block := &pem.Block{Type: pemBlockType, Bytes: pubKey}
	return string(pem.EncodeToMemory(block))
}

// ParsePublicKeyPEM decodes a PEM-text public key back to its raw
// compressed bytes.
func ParsePublicKeyPEM(pemText string) ([]byte, error) {
	block, _ := pem.Decode([]byte(pemText))
	if block == nil {
		return nil, fmt.Errorf("parse public key PEM: no PEM block found")
	}
	if _, err := secp256k1.ParsePubKey(block.Bytes); err != nil {
		return nil, fmt.Errorf("parse public key PEM: %w", err)
	}
	return block.Bytes, nil
}

// SanitizePEM strips line breaks from PEM text, matching the form the
// original implementation uses when deriving a node identifier.
func SanitizePEM(pemText string) string {
	s := strings.ReplaceAll(pemText, "\r\n", "")
	return strings.ReplaceAll(s, "\n", "")
}

// NodeIDFromPEM derives a player node identifier: the last 40 characters
// of the sanitized (newline-stripped) public-key PEM text.
func NodeIDFromPEM(pemText string) string {
	sanitized := SanitizePEM(pemText)
	if len(sanitized) <= 40 {
		return sanitized
	}
	return sanitized[len(sanitized)-40:]
}
