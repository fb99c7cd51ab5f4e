package netp2p

import (
	"time"

	"github.com/libp2p/go-libp2p/core/peer"
)

// Peer is a connected libp2p peer, tracked for logging and diagnostics only
// — the hard core never reaches into this struct for consensus decisions.
type Peer struct {
	ID          peer.ID
	ConnectedAt time.Time
}
