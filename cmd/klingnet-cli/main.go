// klingnet-cli is a companion tool for managing a klingnetd player identity.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/klingnet-chess/chesschain/config"
	"github.com/klingnet-chess/chesschain/pkg/crypto"
	"golang.org/x/term"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "keygen":
		cmdKeygen(os.Args[2:])
	case "inspect":
		cmdInspect(os.Args[2:])
	case "id":
		cmdID(os.Args[2:])
	case "help", "--help", "-h":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprint(os.Stderr, `Usage: klingnet-cli <command> [flags]

Commands:
  keygen --out <file> [--encrypt] [--force]
                             Generate a new 24-word mnemonic and node identity
  inspect --mnemonic-file <file> [--encrypted]
                             Show the node ID and public key for a saved mnemonic
  id --datadir <path>        Show the node ID for a running node's saved identity

--encrypt protects the written file with a passphrase (Argon2id +
XChaCha20-Poly1305), entered twice at the terminal. Pass --encrypted to
inspect to decrypt it back with that same passphrase. An encrypted file
cannot be dropped in directly as <datadir>/player.mnemonic: klingnetd
always reads that file as a plain mnemonic.

A mnemonic file holds the 24-word BIP-39 phrase klingnetd persists at
<datadir>/player.mnemonic for a networked player. Keep it secret; anyone
holding it can sign moves as that player.
`)
}

// ── keygen ──────────────────────────────────────────────────────────────

func cmdKeygen(args []string) {
	fs := flag.NewFlagSet("keygen", flag.ExitOnError)
	out := fs.String("out", "", "File to write the mnemonic to (required)")
	force := fs.Bool("force", false, "Overwrite an existing file")
	encrypt := fs.Bool("encrypt", false, "Encrypt the written file with a passphrase")
	fs.Parse(args)

	if *out == "" {
		fatal("Usage: klingnet-cli keygen --out <file>")
	}
	if _, err := os.Stat(*out); err == nil && !*force {
		fatal("%s already exists (use --force to overwrite)", *out)
	}

	mnemonic, err := crypto.GenerateMnemonic()
	if err != nil {
		fatal("generate mnemonic: %v", err)
	}
	kp, err := crypto.GenerateFromMnemonic(mnemonic, "")
	if err != nil {
		fatal("derive identity: %v", err)
	}

	contents := []byte(mnemonic + "\n")
	if *encrypt {
		passphrase, err := readPassphrase("Enter passphrase: ")
		if err != nil {
			fatal("read passphrase: %v", err)
		}
		confirm, err := readPassphrase("Confirm passphrase: ")
		if err != nil {
			fatal("read passphrase: %v", err)
		}
		if passphrase != confirm {
			fatal("passphrases do not match")
		}
		contents, err = crypto.Encrypt(contents, []byte(passphrase), crypto.DefaultEncryptionParams())
		if err != nil {
			fatal("encrypt mnemonic: %v", err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(*out), 0o700); err != nil {
		fatal("create directory: %v", err)
	}
	if err := os.WriteFile(*out, contents, 0o600); err != nil {
		fatal("write mnemonic file: %v", err)
	}

	fmt.Printf("Identity written to %s\n", *out)
	fmt.Printf("Node ID: %s\n", kp.NodeID())
	fmt.Println("\nBack up this file. It is the only way to recover this identity.")
}

// ── inspect ─────────────────────────────────────────────────────────────

func cmdInspect(args []string) {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	path := fs.String("mnemonic-file", "", "Path to a saved mnemonic file")
	encrypted := fs.Bool("encrypted", false, "The file was written with keygen --encrypt")
	fs.Parse(args)

	if *path == "" {
		fatal("Usage: klingnet-cli inspect --mnemonic-file <file>")
	}

	var mnemonic string
	if *encrypted {
		data, err := os.ReadFile(*path)
		if err != nil {
			fatal("read mnemonic file: %v", err)
		}
		passphrase, err := readPassphrase("Enter passphrase: ")
		if err != nil {
			fatal("read passphrase: %v", err)
		}
		plaintext, err := crypto.Decrypt(data, []byte(passphrase))
		if err != nil {
			fatal("decrypt mnemonic: %v", err)
		}
		mnemonic = strings.TrimSpace(string(plaintext))
		if !crypto.ValidateMnemonic(mnemonic) {
			fatal("decrypted data is not a valid mnemonic")
		}
	} else {
		var err error
		mnemonic, err = readMnemonicFile(*path)
		if err != nil {
			fatal("read mnemonic file: %v", err)
		}
	}

	kp, err := crypto.GenerateFromMnemonic(mnemonic, "")
	if err != nil {
		fatal("derive identity: %v", err)
	}

	fmt.Printf("Node ID:    %s\n", kp.NodeID())
	fmt.Printf("Public Key:\n%s\n", kp.PublicKeyPEM())
}

// ── id ──────────────────────────────────────────────────────────────────

func cmdID(args []string) {
	fs := flag.NewFlagSet("id", flag.ExitOnError)
	dataDir := fs.String("datadir", config.DefaultDataDir(), "Node data directory")
	fs.Parse(args)

	path := filepath.Join(*dataDir, "player.mnemonic")
	mnemonic, err := readMnemonicFile(path)
	if err != nil {
		fatal("no saved player identity at %s: %v", path, err)
	}

	kp, err := crypto.GenerateFromMnemonic(mnemonic, "")
	if err != nil {
		fatal("derive identity: %v", err)
	}
	fmt.Println(kp.NodeID())
}

func readMnemonicFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	mnemonic := strings.TrimSpace(string(data))
	if !crypto.ValidateMnemonic(mnemonic) {
		return "", fmt.Errorf("invalid mnemonic in %s", path)
	}
	return mnemonic, nil
}

// readPassphrase prompts for a passphrase without echoing input to the
// terminal.
func readPassphrase(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	data, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
