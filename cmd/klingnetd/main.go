// Chesschain node daemon.
//
// Usage:
//
//	klingnetd                   Run the in-process demo topology
//	klingnetd --role=player     Join a gossip mesh as a single Player
//	klingnetd --role=mainnode   Join a gossip mesh as a single MainNode
//	klingnetd --help            Show help
package main

import (
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/klingnet-chess/chesschain/config"
	"github.com/klingnet-chess/chesschain/internal/game"
	"github.com/klingnet-chess/chesschain/internal/journal"
	klog "github.com/klingnet-chess/chesschain/internal/log"
	"github.com/klingnet-chess/chesschain/internal/mainchain"
	"github.com/klingnet-chess/chesschain/internal/mainnode"
	"github.com/klingnet-chess/chesschain/internal/netp2p"
	"github.com/klingnet-chess/chesschain/internal/player"
	"github.com/klingnet-chess/chesschain/pkg/crypto"
	"github.com/rs/zerolog"
)

var moveRand = rand.New(rand.NewSource(time.Now().UnixNano()))

func main() {
	// ── 1. Load config (defaults → file → flags) ────────────────────────
	cfg, flags, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// ── 2. Init logger ───────────────────────────────────────────────────
	if err := klog.Init(cfg.Log.Level, cfg.Log.JSON, cfg.Log.File); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logger: %v\n", err)
		os.Exit(1)
	}
	logger := klog.WithComponent("daemon")

	policy := game.Policy{TerminalLength: cfg.Game.TerminalLength, Difficulty: cfg.Game.Difficulty}

	logger.Info().
		Str("role", flags.Role).
		Int("game_terminal_length", policy.TerminalLength).
		Int("game_difficulty", policy.Difficulty).
		Int("main_difficulty", cfg.Main.Difficulty).
		Msg("starting chesschain node")

	// ── 3. Journal ────────────────────────────────────────────────────────
	var rec *journal.Recorder
	if cfg.Journal.Enabled {
		var kv journal.KVStore
		if cfg.Journal.Badger {
			kv, err = journal.NewBadgerStore(cfg.BadgerDir())
			if err != nil {
				logger.Fatal().Err(err).Str("path", cfg.BadgerDir()).Msg("failed to open badger store")
			}
		}
		rec, err = journal.NewRecorder(cfg.JournalDir(), kv)
		if err != nil {
			logger.Fatal().Err(err).Str("path", cfg.JournalDir()).Msg("failed to create journal recorder")
		}
	}

	// ── 4. Signal handling ───────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	switch flags.Role {
	case "player":
		runNetworkedPlayer(cfg, policy, rec, sigCh, logger)
	case "mainnode":
		runNetworkedMainNode(cfg, rec, sigCh, logger)
	default:
		runDemo(policy, cfg.Main.Difficulty, rec, sigCh, logger)
	}

	logger.Info().Msg("goodbye")
}

// runDemo wires the in-process topology: three gossip-connected MainNodes
// and four Player pairs, each pair playing out a short exchange of moves
// while every node mines in the background. It runs until a run-length
// deadline elapses or a shutdown signal arrives, whichever is first.
func runDemo(policy game.Policy, mainDifficulty int, rec *journal.Recorder, sigCh <-chan os.Signal, logger zerolog.Logger) {
	chain := mainchain.NewMainChain()
	node1, err := mainnode.New(chain, mainDifficulty)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create first main node")
	}
	node2, err := mainnode.NewJoining([]mainnode.Peer{node1}, mainDifficulty)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create second main node")
	}
	node3, err := mainnode.NewJoining([]mainnode.Peer{node1, node2}, mainDifficulty)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create third main node")
	}
	node1.ConnectPeer(node2)
	node1.ConnectPeer(node3)
	node2.ConnectPeer(node3)
	nodes := []*mainnode.MainNode{node1, node2, node3}

	if rec != nil {
		mnj := journal.NewMainNodeJournal(rec)
		for _, n := range nodes {
			n.SetJournal(mnj)
		}
	}

	type pair struct {
		a, b *player.Player
	}
	var pairs []pair
	for i := 0; i < 4; i++ {
		a, err := player.New(policy)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to create player")
		}
		b, err := player.New(policy)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to create player")
		}
		if rec != nil {
			pj := journal.NewPlayerJournal(rec)
			a.SetJournal(pj)
			b.SetJournal(pj)
		}
		shared := game.Genesis(policy)
		if _, err := a.StartGame(b, shared); err != nil {
			logger.Fatal().Err(err).Msg("failed to start game")
		}
		if _, err := b.StartGame(a, shared); err != nil {
			logger.Fatal().Err(err).Msg("failed to start game")
		}
		node := nodes[i%len(nodes)]
		a.ConnectNode(node)
		b.ConnectNode(node)
		pairs = append(pairs, pair{a: a, b: b})
	}

	logger.Info().Int("games", len(pairs)).Int("main_nodes", len(nodes)).Msg("topology ready")

	for _, n := range nodes {
		n.Start()
	}
	for _, pr := range pairs {
		pr.a.Start()
		pr.b.Start()
	}

	// Alternate turns across every pair, matching the original demo's
	// fixed-length exchange, with a short delay so mining keeps up.
	for turn := 0; turn < 10; turn++ {
		moverIsA := turn%2 == 0
		for _, pr := range pairs {
			p := pr.b
			if moverIsA {
				p = pr.a
			}
			if err := p.CreateMove(randomMove()); err != nil {
				logger.Warn().Err(err).Str("player", p.ID()).Msg("move rejected")
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	logger.Info().Msg("moves submitted, waiting for shutdown")

	deadline := time.After(30 * time.Second)
	select {
	case sig := <-sigCh:
		logger.Info().Str("signal", sig.String()).Msg("shutdown signal received")
	case <-deadline:
		logger.Info().Msg("demo run complete")
	}

	for _, pr := range pairs {
		pr.a.Stop()
		pr.b.Stop()
	}
	for _, n := range nodes {
		n.Stop()
	}
}

// runNetworkedPlayer joins a libp2p gossip mesh as a single Player, its
// local moves and mined blocks relayed to peers over the network instead
// of direct in-process calls.
func runNetworkedPlayer(cfg *config.Config, policy game.Policy, rec *journal.Recorder, sigCh <-chan os.Signal, logger zerolog.Logger) {
	kp, err := loadOrCreatePlayerIdentity(cfg.DataDir)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load player identity")
	}
	p := player.NewFromKeyPair(kp, policy)
	if rec != nil {
		p.SetJournal(journal.NewPlayerJournal(rec))
	}

	node := netp2p.New(netp2p.Config{
		ListenAddr: cfg.P2P.ListenAddr,
		Port:       cfg.P2P.Port,
		Seeds:      cfg.P2P.Seeds,
		DataDir:    cfg.DataDir,
	})
	bridge := netp2p.NewPlayerBridge(node, p)
	p.ConnectPeer(bridge)

	if err := node.Start(); err != nil {
		logger.Fatal().Err(err).Msg("failed to start gossip node")
	}
	if !cfg.P2P.NoDiscover {
		if err := node.EnableDiscovery(); err != nil {
			logger.Warn().Err(err).Msg("peer discovery unavailable")
		}
	}

	p.Start()
	logger.Info().Str("player_id", p.ID()).Str("gossip_id", node.ID()).Msg("player joined the mesh")

	<-sigCh
	logger.Info().Msg("shutdown signal received")
	p.Stop()
	if err := node.Stop(); err != nil {
		logger.Warn().Err(err).Msg("error stopping gossip node")
	}
}

// runNetworkedMainNode joins a libp2p gossip mesh as a single MainNode.
func runNetworkedMainNode(cfg *config.Config, rec *journal.Recorder, sigCh <-chan os.Signal, logger zerolog.Logger) {
	n, err := mainnode.New(mainchain.NewMainChain(), cfg.Main.Difficulty)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create main node")
	}
	if rec != nil {
		n.SetJournal(journal.NewMainNodeJournal(rec))
	}

	node := netp2p.New(netp2p.Config{
		ListenAddr: cfg.P2P.ListenAddr,
		Port:       cfg.P2P.Port,
		Seeds:      cfg.P2P.Seeds,
		DataDir:    cfg.DataDir,
	})
	bridge := netp2p.NewMainNodeBridge(node, n)
	n.ConnectPeer(bridge)

	if err := node.Start(); err != nil {
		logger.Fatal().Err(err).Msg("failed to start gossip node")
	}
	if !cfg.P2P.NoDiscover {
		if err := node.EnableDiscovery(); err != nil {
			logger.Warn().Err(err).Msg("peer discovery unavailable")
		}
	}

	n.Start()
	logger.Info().Str("node_id", n.ID()).Str("gossip_id", node.ID()).Msg("main node joined the mesh")

	<-sigCh
	logger.Info().Msg("shutdown signal received")
	n.Stop()
	if err := node.Stop(); err != nil {
		logger.Warn().Err(err).Msg("error stopping gossip node")
	}
}

// loadOrCreatePlayerIdentity reads a previously saved mnemonic from
// <dataDir>/player.mnemonic, or generates and persists a new one, so a
// Player's identity survives restarts the same way netp2p's gossip
// identity does.
func loadOrCreatePlayerIdentity(dataDir string) (*crypto.KeyPair, error) {
	path := filepath.Join(dataDir, "player.mnemonic")

	if data, err := os.ReadFile(path); err == nil {
		mnemonic := strings.TrimSpace(string(data))
		return crypto.GenerateFromMnemonic(mnemonic, "")
	}

	mnemonic, err := crypto.GenerateMnemonic()
	if err != nil {
		return nil, fmt.Errorf("generate mnemonic: %w", err)
	}
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(mnemonic+"\n"), 0o600); err != nil {
		return nil, fmt.Errorf("save mnemonic: %w", err)
	}
	return crypto.GenerateFromMnemonic(mnemonic, "")
}

var moveNotations = []string{
	"e4", "e5", "Nf3", "Nc6", "Bb5", "a6", "Ba4", "Nf6", "O-O", "Be7",
	"d4", "d6", "c3", "b5", "Bb3", "Na5", "Bc2", "c5", "Qe2", "Nc6",
}

func randomMove() string {
	return moveNotations[moveRand.Intn(len(moveNotations))]
}
