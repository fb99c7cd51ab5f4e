package netp2p

import (
	"encoding/json"

	"github.com/klingnet-chess/chesschain/internal/game"
	"github.com/klingnet-chess/chesschain/internal/mainchain"
	"github.com/klingnet-chess/chesschain/pkg/block"
	"github.com/klingnet-chess/chesschain/pkg/move"
)

// LocalPlayer is the subset of player.Player a PlayerBridge delivers
// network-received messages into.
type LocalPlayer interface {
	ID() string
	ReceiveTransaction(m move.Move, fromPeer string)
	ReceiveBlock(b block.GameBlock, fromPeer string)
}

// PlayerBridge satisfies player.Peer by publishing to the player gossip
// mesh instead of calling an in-process opponent directly, and delivers
// messages received from that mesh into a local Player. One PlayerBridge
// stands in for the single opponent a Player is ever connected to.
type PlayerBridge struct {
	node  *Node
	local LocalPlayer
}

// NewPlayerBridge wires node's move/block topics to local. It does not
// register the bridge with local; the caller does that with ConnectPeer.
// Call before node.Start.
func NewPlayerBridge(node *Node, local LocalPlayer) *PlayerBridge {
	b := &PlayerBridge{node: node, local: local}
	node.SetHandler(TopicMoves, func(env Envelope) {
		var m move.Move
		if err := json.Unmarshal(env.Payload, &m); err != nil {
			return
		}
		local.ReceiveTransaction(m, env.FromNode)
	})
	node.SetHandler(TopicGameBlocks, func(env Envelope) {
		var gb block.GameBlock
		if err := json.Unmarshal(env.Payload, &gb); err != nil {
			return
		}
		local.ReceiveBlock(gb, env.FromNode)
	})
	return b
}

// ID returns the underlying network node's libp2p identity.
func (b *PlayerBridge) ID() string { return b.node.ID() }

// ReceiveTransaction publishes m to the move gossip topic on behalf of the
// local Player, standing in for a direct in-process call to the opponent.
func (b *PlayerBridge) ReceiveTransaction(m move.Move, fromPeer string) {
	b.publish(TopicMoves, MsgMove, m)
}

// ReceiveBlock publishes gb to the block gossip topic.
func (b *PlayerBridge) ReceiveBlock(gb block.GameBlock, fromPeer string) {
	b.publish(TopicGameBlocks, MsgGameBlock, gb)
}

func (b *PlayerBridge) publish(topic string, msgType MessageType, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	_ = b.node.Publish(topic, Envelope{Type: msgType, FromNode: b.local.ID(), Payload: data})
}

// LocalMainNode is the subset of mainnode.MainNode a MainNodeBridge
// delivers network-received messages into.
type LocalMainNode interface {
	ID() string
	ReceiveTransaction(g game.Game, fromPeer string)
	ReceiveBlock(b mainchain.MainBlock, fromPeer string)
}

// MainNodeBridge satisfies mainnode.Peer by publishing to the main-node
// gossip mesh instead of calling an in-process peer directly.
type MainNodeBridge struct {
	node  *Node
	local LocalMainNode
}

// NewMainNodeBridge wires node's game/mainblock topics to local.
func NewMainNodeBridge(node *Node, local LocalMainNode) *MainNodeBridge {
	b := &MainNodeBridge{node: node, local: local}
	node.SetHandler(TopicGames, func(env Envelope) {
		var g game.Game
		if err := json.Unmarshal(env.Payload, &g); err != nil {
			return
		}
		local.ReceiveTransaction(g, env.FromNode)
	})
	node.SetHandler(TopicMainBlocks, func(env Envelope) {
		var mb mainchain.MainBlock
		if err := json.Unmarshal(env.Payload, &mb); err != nil {
			return
		}
		local.ReceiveBlock(mb, env.FromNode)
	})
	return b
}

// ID returns the underlying network node's libp2p identity.
func (b *MainNodeBridge) ID() string { return b.node.ID() }

// Running reports whether the underlying network node is still connected.
// Over real transport there is no cheap liveness signal short of a
// handshake protocol (explicitly out of scope — see internal/p2p's
// heartbeat machinery in the donor for what that would look like), so a
// bridge reports itself running as long as it holds a node reference.
func (b *MainNodeBridge) Running() bool { return b.node != nil }

// ReceiveTransaction publishes g to the game gossip topic.
func (b *MainNodeBridge) ReceiveTransaction(g game.Game, fromPeer string) {
	b.publish(TopicGames, MsgGame, g)
}

// ReceiveBlock publishes mb to the main-block gossip topic.
func (b *MainNodeBridge) ReceiveBlock(mb mainchain.MainBlock, fromPeer string) {
	b.publish(TopicMainBlocks, MsgMainBlock, mb)
}

func (b *MainNodeBridge) publish(topic string, msgType MessageType, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	_ = b.node.Publish(topic, Envelope{Type: msgType, FromNode: b.local.ID(), Payload: data})
}
