// Package ledger runs the in-process commit pipeline: it verifies transaction
// envelopes, applies them serially through the handler registry, holds writes
// to their declared output sets, and commits the surviving entries to the
// state store.
package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"aclchain/internal/envelope"
	"aclchain/internal/handler"
	"aclchain/internal/infra/persistence"
	"aclchain/internal/observability"
	"aclchain/internal/state"
	"aclchain/pkg/addressing"
	"aclchain/pkg/domain"
)

// Status is the terminal disposition of a submitted transaction.
type Status string

const (
	StatusCommitted Status = "COMMITTED"
	StatusInvalid   Status = "INVALID"
	// StatusPending is reported by asynchronous frontends while a
	// transaction sits in their queue. The in-process ledger applies
	// synchronously and never stores it.
	StatusPending Status = "PENDING"
	StatusUnknown Status = "UNKNOWN"
)

// heightAddr stores the committed transaction count in the state store,
// written atomically with each commit. The key sits outside the family
// namespace so guarded handler writes can never reach it, and it travels
// through ExportState into checkpoints, so a restarted ledger resumes at
// the height the store last committed.
const heightAddr = "meta/height"

// Receipt records how a transaction was resolved. Reason carries the
// validation rejection verbatim for invalid transactions.
type Receipt struct {
	TransactionID string `json:"transaction_id"`
	Status        Status `json:"status"`
	Reason        string `json:"reason,omitempty"`
}

// Ledger applies transactions strictly one at a time. All exported methods
// are safe for concurrent use.
type Ledger struct {
	registry *handler.Registry
	store    persistence.Store
	logger   *slog.Logger
	metrics  *observability.Metrics

	mu       sync.Mutex
	receipts map[string]Receipt
	height   uint64
}

// New builds a ledger over the given store, resuming at the height the store
// last committed. metrics may be nil.
func New(ctx context.Context, registry *handler.Registry, store persistence.Store, logger *slog.Logger, metrics *observability.Metrics) (*Ledger, error) {
	if logger == nil {
		logger = slog.Default()
	}
	height, err := loadHeight(ctx, store)
	if err != nil {
		return nil, err
	}
	return &Ledger{
		registry: registry,
		store:    store,
		logger:   logger,
		metrics:  metrics,
		receipts: make(map[string]Receipt),
		height:   height,
	}, nil
}

func loadHeight(ctx context.Context, store persistence.Store) (uint64, error) {
	entries, err := store.GetState(ctx, []string{heightAddr})
	if err != nil {
		return 0, fmt.Errorf("load ledger height: %w", err)
	}
	raw, ok := entries[heightAddr]
	if !ok {
		return 0, nil
	}
	height, err := strconv.ParseUint(string(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("corrupt ledger height %q: %w", raw, err)
	}
	return height, nil
}

func encodeHeight(height uint64) []byte {
	return []byte(strconv.FormatUint(height, 10))
}

// Submit verifies and applies one transaction. Validation rejections resolve
// to an INVALID receipt with a nil error; the error return is reserved for
// internal faults, which leave the receipt UNKNOWN so the client may retry.
func (l *Ledger) Submit(ctx context.Context, tx envelope.Transaction) (Receipt, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	receipt, entries, err := l.applyLocked(ctx, tx, l.store)
	if err != nil {
		return receipt, err
	}
	if receipt.Status == StatusCommitted {
		if err := l.commitLocked(ctx, tx, entries); err != nil {
			return Receipt{TransactionID: tx.ID, Status: StatusUnknown}, err
		}
	} else {
		l.receipts[tx.ID] = receipt
	}
	return receipt, nil
}

// SubmitBatch applies the batch atomically: either every transaction commits
// or none does. The first invalid transaction aborts the rest.
func (l *Ledger) SubmitBatch(ctx context.Context, batch envelope.Batch) ([]Receipt, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	receipts := make([]Receipt, len(batch.Transactions))
	if err := envelope.VerifyBatch(batch); err != nil {
		for i, tx := range batch.Transactions {
			receipts[i] = Receipt{TransactionID: tx.ID, Status: StatusInvalid, Reason: err.Error()}
			l.receipts[tx.ID] = receipts[i]
		}
		return receipts, nil
	}

	staged := make(map[string][]byte)
	overlay := &overlayReader{base: l.store, pending: staged}
	for i, tx := range batch.Transactions {
		receipt, entries, err := l.applyLocked(ctx, tx, overlay)
		if err != nil {
			return receipts, err
		}
		receipts[i] = receipt
		if receipt.Status != StatusCommitted {
			l.abortBatchLocked(batch, receipts, i)
			return receipts, nil
		}
		for addr, data := range entries {
			staged[addr] = data
		}
	}

	staged[heightAddr] = encodeHeight(l.height + uint64(len(batch.Transactions)))
	if err := l.store.SetState(ctx, staged); err != nil {
		return receipts, fmt.Errorf("commit batch %s: %w", batch.ID, err)
	}
	for _, receipt := range receipts {
		l.receipts[receipt.TransactionID] = receipt
	}
	l.height += uint64(len(batch.Transactions))
	l.logger.Info("batch committed", "batch", batch.ID, "transactions", len(batch.Transactions), "height", l.height)
	return receipts, nil
}

// abortBatchLocked marks every already-validated transaction aborted once
// member i has been rejected.
func (l *Ledger) abortBatchLocked(batch envelope.Batch, receipts []Receipt, i int) {
	for j := range batch.Transactions {
		if j != i {
			receipts[j] = Receipt{
				TransactionID: batch.Transactions[j].ID,
				Status:        StatusInvalid,
				Reason:        fmt.Sprintf("batch aborted by invalid transaction %s", batch.Transactions[i].ID),
			}
		}
		l.receipts[batch.Transactions[j].ID] = receipts[j]
	}
}

// applyLocked runs envelope verification and validation against reader,
// returning the receipt and the write set without committing anything.
func (l *Ledger) applyLocked(ctx context.Context, tx envelope.Transaction, reader state.Reader) (Receipt, map[string][]byte, error) {
	started := time.Now()
	messageType := peekMessageType(tx.Payload)

	invalid := func(reason string) (Receipt, map[string][]byte, error) {
		l.metrics.ObserveApply(messageType, observability.ResultInvalid, time.Since(started))
		l.logger.Info("transaction invalid", "transaction", tx.ID, "type", messageType, "reason", reason)
		return Receipt{TransactionID: tx.ID, Status: StatusInvalid, Reason: reason}, nil, nil
	}

	if err := envelope.Verify(tx); err != nil {
		return invalid(err.Error())
	}

	guard := &guardedWriter{declared: make(map[string]bool, len(tx.Header.Outputs))}
	for _, addr := range tx.Header.Outputs {
		guard.declared[addr] = true
	}

	err := l.registry.Apply(ctx, tx.Header.SignerPublicKey, tx.Payload, reader, guard)
	switch {
	case err == nil:
	case domain.IsInvalid(err):
		return invalid(err.Error())
	default:
		l.metrics.ObserveApply(messageType, observability.ResultInternal, time.Since(started))
		return Receipt{TransactionID: tx.ID, Status: StatusUnknown}, nil,
			fmt.Errorf("apply transaction %s: %w", tx.ID, err)
	}
	if guard.violation != "" {
		return invalid(guard.violation)
	}

	l.metrics.ObserveApply(messageType, observability.ResultCommitted, time.Since(started))
	return Receipt{TransactionID: tx.ID, Status: StatusCommitted}, guard.entries, nil
}

func (l *Ledger) commitLocked(ctx context.Context, tx envelope.Transaction, entries map[string][]byte) error {
	if entries == nil {
		entries = make(map[string][]byte, 1)
	}
	entries[heightAddr] = encodeHeight(l.height + 1)
	if err := l.store.SetState(ctx, entries); err != nil {
		return fmt.Errorf("commit transaction %s: %w", tx.ID, err)
	}
	l.height++
	receipt := Receipt{TransactionID: tx.ID, Status: StatusCommitted}
	l.receipts[tx.ID] = receipt
	l.logger.Info("transaction committed", "transaction", tx.ID, "height", l.height)
	return nil
}

// Status reports the receipt for a transaction id, UNKNOWN when the ledger
// has never resolved it.
func (l *Ledger) Status(txID string) Receipt {
	l.mu.Lock()
	defer l.mu.Unlock()
	if receipt, ok := l.receipts[txID]; ok {
		return receipt
	}
	return Receipt{TransactionID: txID, Status: StatusUnknown}
}

// Height returns the number of committed transactions.
func (l *Ledger) Height() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.height
}

// peekMessageType extracts the payload type for logging and metrics without
// failing on malformed payloads.
func peekMessageType(payload []byte) string {
	var decoded domain.Payload
	if err := json.Unmarshal(payload, &decoded); err != nil || decoded.Type == "" {
		return "unknown"
	}
	return string(decoded.Type)
}

// guardedWriter buffers the flush and rejects writes that fall outside the
// transaction's declared outputs or the family namespace.
type guardedWriter struct {
	declared  map[string]bool
	entries   map[string][]byte
	violation string
}

func (w *guardedWriter) SetState(_ context.Context, entries map[string][]byte) error {
	if w.entries == nil {
		w.entries = make(map[string][]byte, len(entries))
	}
	for addr, data := range entries {
		if !addressing.InNamespace(addr) {
			w.violation = fmt.Sprintf("write to %s outside the %s namespace", addr, addressing.Namespace)
			continue
		}
		if !w.declared[addr] {
			w.violation = fmt.Sprintf("write to undeclared address %s", addr)
			continue
		}
		w.entries[addr] = data
	}
	return nil
}

// overlayReader serves staged batch writes over the committed store, so later
// transactions in a batch observe earlier ones.
type overlayReader struct {
	base    state.Reader
	pending map[string][]byte
}

func (r *overlayReader) GetState(ctx context.Context, addresses []string) (map[string][]byte, error) {
	out, err := r.base.GetState(ctx, addresses)
	if err != nil {
		return nil, err
	}
	for _, addr := range addresses {
		if data, ok := r.pending[addr]; ok {
			out[addr] = data
		}
	}
	return out, nil
}
