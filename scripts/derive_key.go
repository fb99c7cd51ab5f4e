// derive_key.go prints the node ID and public key for a saved mnemonic file.
// Usage: go run scripts/derive_key.go <mnemonicfile>
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/klingnet-chess/chesschain/pkg/crypto"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: derive_key <mnemonicfile>")
		os.Exit(1)
	}
	data, err := os.ReadFile(os.Args[1])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	mnemonic := strings.TrimSpace(string(data))
	kp, err := crypto.GenerateFromMnemonic(mnemonic, "")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Printf("node_id=%s\n", kp.NodeID())
	fmt.Printf("pubkey_pem=\n%s\n", kp.PublicKeyPEM())
}
