// Package netp2p bridges the in-process player.Peer and mainnode.Peer
// collaborator interfaces used by internal/player and internal/mainnode to real
// network gossip over libp2p, so cmd/klingnetd can run players and main
// nodes in separate OS processes instead of one demo process. The hard
// core (internal/game, internal/mainchain, internal/player,
// internal/mainnode) never imports this package.
package netp2p

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/libp2p/go-libp2p"
	dht "github.com/libp2p/go-libp2p-kad-dht"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	libp2pcrypto "github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/host"
	lp2ppeer "github.com/libp2p/go-libp2p/core/peer"

	klog "github.com/klingnet-chess/chesschain/internal/log"
)

// Config holds the listening and seed-peer configuration for a gossip
// node.
type Config struct {
	ListenAddr string
	Port       int
	Seeds      []string
	DataDir    string // persists the node's libp2p identity across restarts
}

// Node is a libp2p host joined to the gossip topics used by one role
// (player or main-node). Handlers are set before Start and invoked from
// the node's read loops.
type Node struct {
	host   host.Host
	pubsub *pubsub.PubSub
	dht    *dht.IpfsDHT
	config Config
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.RWMutex
	topics map[string]*pubsub.Topic
	subs   map[string]*pubsub.Subscription

	handlers map[string]func(Envelope)
}

// New constructs a Node. Call SetHandler for each topic of interest, then
// Start.
func New(cfg Config) *Node {
	ctx, cancel := context.WithCancel(context.Background())
	return &Node{
		config:   cfg,
		ctx:      ctx,
		cancel:   cancel,
		topics:   make(map[string]*pubsub.Topic),
		subs:     make(map[string]*pubsub.Subscription),
		handlers: make(map[string]func(Envelope)),
	}
}

// SetHandler registers fn to be invoked for every message received on
// topic, other than this node's own publications. Must be called before
// Start.
func (n *Node) SetHandler(topic string, fn func(Envelope)) {
	n.handlers[topic] = fn
}

// Start brings up the libp2p host, joins every topic with a registered
// handler, and connects to the configured seed peers.
func (n *Node) Start() error {
	addr := fmt.Sprintf("/ip4/%s/tcp/%d", n.config.ListenAddr, n.config.Port)
	opts := []libp2p.Option{libp2p.ListenAddrStrings(addr)}

	if n.config.DataDir != "" {
		priv, err := loadOrCreateIdentity(n.config.DataDir)
		if err != nil {
			return fmt.Errorf("netp2p: load identity: %w", err)
		}
		opts = append(opts, libp2p.Identity(priv))
	}

	h, err := libp2p.New(opts...)
	if err != nil {
		return fmt.Errorf("netp2p: create libp2p host: %w", err)
	}
	n.host = h

	ps, err := pubsub.NewGossipSub(n.ctx, h)
	if err != nil {
		h.Close()
		return fmt.Errorf("netp2p: create pubsub: %w", err)
	}
	n.pubsub = ps

	for topic, handler := range n.handlers {
		if err := n.joinTopic(topic, handler); err != nil {
			h.Close()
			return err
		}
	}

	for _, seed := range n.config.Seeds {
		go n.connectSeed(seed)
	}

	klog.NetP2P.Info().Str("id", h.ID().String()).Msg("node started")
	return nil
}

func (n *Node) joinTopic(topic string, handler func(Envelope)) error {
	t, err := n.pubsub.Join(topic)
	if err != nil {
		return fmt.Errorf("netp2p: join topic %s: %w", topic, err)
	}
	sub, err := t.Subscribe()
	if err != nil {
		return fmt.Errorf("netp2p: subscribe topic %s: %w", topic, err)
	}
	n.topics[topic] = t
	n.subs[topic] = sub
	go n.readLoop(sub, handler)
	return nil
}

func (n *Node) readLoop(sub *pubsub.Subscription, handler func(Envelope)) {
	for {
		msg, err := sub.Next(n.ctx)
		if err != nil {
			return // context cancelled on Stop.
		}
		if msg.ReceivedFrom == n.host.ID() {
			continue
		}
		var env Envelope
		if err := json.Unmarshal(msg.Data, &env); err != nil {
			klog.NetP2P.Warn().Err(err).Msg("dropping malformed message")
			continue
		}
		handler(env)
	}
}

// Publish gossips an envelope on topic.
func (n *Node) Publish(topic string, env Envelope) error {
	n.mu.RLock()
	t := n.topics[topic]
	n.mu.RUnlock()
	if t == nil {
		return fmt.Errorf("netp2p: not joined to topic %s", topic)
	}
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("netp2p: marshal envelope: %w", err)
	}
	return t.Publish(n.ctx, data)
}

func (n *Node) connectSeed(addr string) {
	info, err := lp2ppeer.AddrInfoFromString(addr)
	if err != nil {
		klog.NetP2P.Warn().Str("seed", addr).Err(err).Msg("invalid seed address")
		return
	}
	ctx, cancel := context.WithTimeout(n.ctx, 5*time.Second)
	defer cancel()
	if err := n.host.Connect(ctx, *info); err != nil {
		klog.NetP2P.Warn().Str("seed", addr).Err(err).Msg("failed to connect to seed")
		return
	}
	klog.NetP2P.Info().Str("seed", addr).Msg("connected to seed")
}

// ID returns this node's libp2p peer ID.
func (n *Node) ID() string {
	if n.host == nil {
		return ""
	}
	return n.host.ID().String()
}

// Stop tears down the host and every subscription.
func (n *Node) Stop() error {
	n.cancel()
	for _, sub := range n.subs {
		sub.Cancel()
	}
	if n.dht != nil {
		n.dht.Close()
	}
	if n.host == nil {
		return nil
	}
	return n.host.Close()
}

func loadOrCreateIdentity(dataDir string) (libp2pcrypto.PrivKey, error) {
	keyPath := filepath.Join(dataDir, "node.key")

	if data, err := os.ReadFile(keyPath); err == nil {
		keyBytes, err := hex.DecodeString(string(data))
		if err != nil {
			return nil, fmt.Errorf("decode node key: %w", err)
		}
		return libp2pcrypto.UnmarshalEd25519PrivateKey(keyBytes)
	}

	priv, _, err := libp2pcrypto.GenerateEd25519Key(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	raw, err := priv.Raw()
	if err != nil {
		return nil, fmt.Errorf("marshal key: %w", err)
	}
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	if err := os.WriteFile(keyPath, []byte(hex.EncodeToString(raw)), 0o600); err != nil {
		return nil, fmt.Errorf("save node key: %w", err)
	}
	return priv, nil
}
