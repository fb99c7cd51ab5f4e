package crypto

import (
	"fmt"

	"github.com/tyler-smith/go-bip32"
	"github.com/tyler-smith/go-bip39"
)

// MnemonicEntropyBits is the entropy size for 24-word mnemonics.
const MnemonicEntropyBits = 256

// playerDerivationPath is a single hardened BIP-32 step scoping a
// player's identity under its own purpose constant, distinct from any
// coin/account/change/index hierarchy a spending wallet would need —
// this domain has no balances to derive addresses for, only one signing
// key per player.
const playerDerivationPath = bip32.FirstHardenedChild + 9999

// KeyPair bundles a signing key with the mnemonic it was derived from,
// so a player's identity can be written down and restored later.
type KeyPair struct {
	*PrivateKey
	mnemonic string
}

// Mnemonic returns the 24-word BIP-39 phrase this key pair was derived
// from. Empty if the key pair was constructed directly (GenerateKey),
// not from a mnemonic.
func (kp *KeyPair) Mnemonic() string {
	return kp.mnemonic
}

// GenerateMnemonic creates a new 24-word BIP-39 mnemonic.
func GenerateMnemonic() (string, error) {
	entropy, err := bip39.NewEntropy(MnemonicEntropyBits)
	if err != nil {
		return "", fmt.Errorf("generate entropy: %w", err)
	}
	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return "", fmt.Errorf("generate mnemonic: %w", err)
	}
	return mnemonic, nil
}

// ValidateMnemonic checks if a mnemonic is valid per BIP-39 (correct
// word count, valid words, valid checksum).
func ValidateMnemonic(mnemonic string) bool {
	return bip39.IsMnemonicValid(mnemonic)
}

// NewRandomKeyPair generates a fresh mnemonic and derives a key pair
// from it, the identity-generation path a new player takes.
func NewRandomKeyPair() (*KeyPair, error) {
	mnemonic, err := GenerateMnemonic()
	if err != nil {
		return nil, err
	}
	return GenerateFromMnemonic(mnemonic, "")
}

// GenerateFromMnemonic derives a player's secp256k1 identity from a
// BIP-39 mnemonic and optional passphrase through one BIP-32 hardened
// derivation step.
func GenerateFromMnemonic(mnemonic, passphrase string) (*KeyPair, error) {
	if !ValidateMnemonic(mnemonic) {
		return nil, fmt.Errorf("generate from mnemonic: invalid mnemonic")
	}
	seed := bip39.NewSeed(mnemonic, passphrase)

	master, err := bip32.NewMasterKey(seed)
	if err != nil {
		return nil, fmt.Errorf("generate from mnemonic: derive master key: %w", err)
	}
	child, err := master.NewChildKey(playerDerivationPath)
	if err != nil {
		return nil, fmt.Errorf("generate from mnemonic: derive child key: %w", err)
	}

	raw := child.Key
	if len(raw) == 33 && raw[0] == 0 {
		raw = raw[1:]
	}
	priv, err := PrivateKeyFromBytes(raw)
	if err != nil {
		return nil, fmt.Errorf("generate from mnemonic: %w", err)
	}

	return &KeyPair{PrivateKey: priv, mnemonic: mnemonic}, nil
}
