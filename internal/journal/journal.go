// Package journal implements the on-disk audit trail a running node keeps
// of its own state: pending moves, chain contents, and completed games,
// plus a shared log of human-readable events. File naming follows the
// original implementation's ./data/<nodeId>_*.json convention.
package journal

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klingnet-chess/chesschain/internal/game"
	"github.com/klingnet-chess/chesschain/internal/mainchain"
	"github.com/klingnet-chess/chesschain/pkg/block"
	"github.com/klingnet-chess/chesschain/pkg/move"
)

// Recorder writes a node's state to JSON files under a data directory, and
// optionally mirrors the same records into a KVStore for fast-restart
// inspection without re-parsing every file.
type Recorder struct {
	dataDir string
	kv      KVStore

	mu sync.Mutex
}

// NewRecorder returns a Recorder rooted at dataDir, creating the directory
// if it does not already exist. kv may be nil to disable the KV mirror.
func NewRecorder(dataDir string, kv KVStore) (*Recorder, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("journal: create data dir: %w", err)
	}
	return &Recorder{dataDir: dataDir, kv: kv}, nil
}

type logEntry struct {
	Timestamp int64  `json:"timestamp"`
	NodeID    string `json:"nodeId"`
	Message   string `json:"message"`
}

// LogMessage appends a timestamped entry to the shared logs.json file.
func (r *Recorder) LogMessage(nodeID, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	path := filepath.Join(r.dataDir, "logs.json")
	var entries []logEntry
	r.readJSON(path, &entries)
	entries = append(entries, logEntry{
		Timestamp: time.Now().Unix(),
		NodeID:    nodeID,
		Message:   message,
	})
	r.writeJSON(path, entries)
}

func (r *Recorder) recordSnapshot(nodeID, kind string, v any) {
	r.mu.Lock()
	defer r.mu.Unlock()

	path := filepath.Join(r.dataDir, fmt.Sprintf("%s_%s.json", nodeID, kind))
	r.writeJSON(path, v)

	if r.kv != nil {
		if data, err := json.Marshal(v); err == nil {
			_ = r.kv.Put([]byte(mirrorKey(nodeID, kind)), data)
		}
	}
}

func mirrorKey(nodeID, kind string) string {
	return nodeID + ":" + kind
}

func (r *Recorder) readJSON(path string, v any) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	_ = json.Unmarshal(data, v)
}

func (r *Recorder) writeJSON(path string, v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return
	}
	_ = os.WriteFile(path, data, 0o644)
}

// PlayerJournal adapts a Recorder to player.Journal.
type PlayerJournal struct{ *Recorder }

// NewPlayerJournal wraps r for use by a Player.
func NewPlayerJournal(r *Recorder) PlayerJournal { return PlayerJournal{r} }

func (p PlayerJournal) RecordMempool(nodeID string, moves []move.Move) {
	p.recordSnapshot(nodeID, "mempool", moves)
}

func (p PlayerJournal) RecordBlockchain(nodeID string, chain []block.GameBlock) {
	p.recordSnapshot(nodeID, "blockchain", chain)
}

func (p PlayerJournal) RecordCompleteGames(nodeID string, games []game.Game) {
	p.recordSnapshot(nodeID, "completeGames", games)
}

// MainNodeJournal adapts a Recorder to mainnode.Journal.
type MainNodeJournal struct{ *Recorder }

// NewMainNodeJournal wraps r for use by a MainNode.
func NewMainNodeJournal(r *Recorder) MainNodeJournal { return MainNodeJournal{r} }

func (n MainNodeJournal) RecordMempool(nodeID string, games []game.Game) {
	n.recordSnapshot(nodeID, "mainMempool", games)
}

func (n MainNodeJournal) RecordBlockchain(nodeID string, chain []mainchain.MainBlock) {
	n.recordSnapshot(nodeID, "mainBlockchain", chain)
}
