// Package checkpoint periodically archives the full committed state to blob
// storage and can restore the newest archive into an empty store.
package checkpoint

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"aclchain/internal/blob"
	"aclchain/internal/infra/persistence"
)

// Snapshot is the archived form of the state map. Entry values round-trip
// through base64 under encoding/json.
type Snapshot struct {
	Height    uint64            `json:"height"`
	CreatedAt time.Time         `json:"created_at"`
	Entries   map[string][]byte `json:"entries"`
}

const keyPrefix = "checkpoints/"

// Exporter couples a state store with a blob backend.
type Exporter struct {
	store  persistence.Store
	blobs  blob.Store
	logger *slog.Logger
	now    func() time.Time
}

// NewExporter builds an exporter. logger may be nil.
func NewExporter(store persistence.Store, blobs blob.Store, logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{store: store, blobs: blobs, logger: logger, now: time.Now}
}

// Export archives the current state under a key that sorts by height.
func (e *Exporter) Export(ctx context.Context, height uint64) (blob.Info, error) {
	entries, err := e.store.ExportState(ctx)
	if err != nil {
		return blob.Info{}, fmt.Errorf("export state: %w", err)
	}
	snapshot := Snapshot{Height: height, CreatedAt: e.now().UTC(), Entries: entries}
	data, err := json.Marshal(snapshot)
	if err != nil {
		return blob.Info{}, fmt.Errorf("encode snapshot: %w", err)
	}
	key := fmt.Sprintf("%s%020d-%s.json", keyPrefix, height, snapshot.CreatedAt.Format("20060102T150405Z"))
	info, err := e.blobs.Put(ctx, key, bytes.NewReader(data), blob.PutOptions{
		ContentType: "application/json",
		Metadata:    map[string]string{"height": fmt.Sprintf("%d", height)},
	})
	if err != nil {
		return blob.Info{}, fmt.Errorf("archive snapshot: %w", err)
	}
	e.logger.Info("checkpoint exported", "key", key, "height", height, "entries", len(entries))
	return info, nil
}

// Latest decodes the newest archived snapshot. The second return is false
// when no checkpoint exists.
func (e *Exporter) Latest(ctx context.Context) (Snapshot, bool, error) {
	infos, err := e.blobs.List(ctx, keyPrefix)
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("list checkpoints: %w", err)
	}
	if len(infos) == 0 {
		return Snapshot{}, false, nil
	}
	newest := infos[len(infos)-1].Key
	_, rc, err := e.blobs.Get(ctx, newest)
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("get checkpoint %s: %w", newest, err)
	}
	defer func() { _ = rc.Close() }()
	data, err := io.ReadAll(rc)
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("read checkpoint %s: %w", newest, err)
	}
	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return Snapshot{}, false, fmt.Errorf("decode checkpoint %s: %w", newest, err)
	}
	return snapshot, true, nil
}

// Restore imports the newest snapshot into the store. Returns false when
// there is nothing to restore.
func (e *Exporter) Restore(ctx context.Context) (bool, error) {
	snapshot, ok, err := e.Latest(ctx)
	if err != nil || !ok {
		return false, err
	}
	if err := e.store.ImportState(ctx, snapshot.Entries); err != nil {
		return false, fmt.Errorf("import snapshot: %w", err)
	}
	e.logger.Info("checkpoint restored", "height", snapshot.Height, "entries", len(snapshot.Entries))
	return true, nil
}

// Prune deletes all but the keep newest checkpoints.
func (e *Exporter) Prune(ctx context.Context, keep int) (int, error) {
	if keep < 1 {
		keep = 1
	}
	infos, err := e.blobs.List(ctx, keyPrefix)
	if err != nil {
		return 0, fmt.Errorf("list checkpoints: %w", err)
	}
	if len(infos) <= keep {
		return 0, nil
	}
	var pruned int
	for _, info := range infos[:len(infos)-keep] {
		existed, err := e.blobs.Delete(ctx, info.Key)
		if err != nil {
			return pruned, fmt.Errorf("prune checkpoint %s: %w", info.Key, err)
		}
		if existed {
			pruned++
		}
	}
	return pruned, nil
}

// Run exports on every tick until ctx is done. height reports the current
// ledger height for the archive key.
func (e *Exporter) Run(ctx context.Context, interval time.Duration, height func() uint64, keep int) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := e.Export(ctx, height()); err != nil {
				e.logger.Error("checkpoint export failed", "error", err)
				continue
			}
			if _, err := e.Prune(ctx, keep); err != nil {
				e.logger.Error("checkpoint prune failed", "error", err)
			}
		}
	}
}
