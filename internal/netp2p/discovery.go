package netp2p

import (
	"context"
	"fmt"
	"time"

	dht "github.com/libp2p/go-libp2p-kad-dht"
	drouting "github.com/libp2p/go-libp2p/p2p/discovery/routing"
	dutil "github.com/libp2p/go-libp2p/p2p/discovery/util"

	klog "github.com/klingnet-chess/chesschain/internal/log"
)

const (
	dhtRendezvous         = "chesschain"
	dhtDiscoveryInterval  = 30 * time.Second
	dhtPeerConnectTimeout = 5 * time.Second
)

// EnableDiscovery joins a Kademlia DHT and periodically looks up other
// chesschain nodes under a shared rendezvous string, connecting to any it
// finds. Must be called after Start. Discovery is optional: a node given
// only seed addresses never needs this.
func (n *Node) EnableDiscovery() error {
	kadDHT, err := dht.New(n.ctx, n.host)
	if err != nil {
		return fmt.Errorf("netp2p: create dht: %w", err)
	}
	if err := kadDHT.Bootstrap(n.ctx); err != nil {
		return fmt.Errorf("netp2p: bootstrap dht: %w", err)
	}
	n.dht = kadDHT

	routingDiscovery := drouting.NewRoutingDiscovery(kadDHT)
	dutil.Advertise(n.ctx, routingDiscovery, dhtRendezvous)
	go n.runDiscovery(routingDiscovery)
	return nil
}

func (n *Node) runDiscovery(routingDiscovery *drouting.RoutingDiscovery) {
	ticker := time.NewTicker(dhtDiscoveryInterval)
	defer ticker.Stop()

	n.findPeers(routingDiscovery)
	for {
		select {
		case <-n.ctx.Done():
			return
		case <-ticker.C:
			n.findPeers(routingDiscovery)
		}
	}
}

func (n *Node) findPeers(routingDiscovery *drouting.RoutingDiscovery) {
	ctx, cancel := context.WithTimeout(n.ctx, 20*time.Second)
	defer cancel()

	peerCh, err := routingDiscovery.FindPeers(ctx, dhtRendezvous)
	if err != nil {
		return
	}
	for p := range peerCh {
		if p.ID == n.host.ID() || len(p.Addrs) == 0 {
			continue
		}
		connectCtx, connectCancel := context.WithTimeout(n.ctx, dhtPeerConnectTimeout)
		if err := n.host.Connect(connectCtx, p); err == nil {
			klog.NetP2P.Info().Str("peer", p.ID.String()).Msg("discovered via dht")
		}
		connectCancel()
	}
}
