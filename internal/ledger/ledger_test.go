package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"aclchain/internal/envelope"
	"aclchain/internal/handler"
	"aclchain/internal/infra/persistence/memory"
	"aclchain/pkg/domain"
)

func newTestLedger(t *testing.T) (*Ledger, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	l, err := New(context.Background(), handler.NewRegistry(nil), store, nil, nil)
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}
	return l, store
}

func newTestClient(t *testing.T, l *Ledger, seedByte byte) *Client {
	t.Helper()
	signer, err := envelope.SignerFromSeed(bytes.Repeat([]byte{seedByte}, 32))
	if err != nil {
		t.Fatalf("signer: %v", err)
	}
	return NewClient(l, signer)
}

func TestSubmitCommitsAndRecordsReceipt(t *testing.T) {
	l, _ := newTestLedger(t)
	alice := newTestClient(t, l, 1)
	ctx := context.Background()

	tx, err := alice.Build(domain.MessageCreateUser, domain.CreateUserMessage{
		UserID: alice.ID(),
		Name:   "Alice",
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	receipt, err := l.Submit(ctx, tx)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if receipt.Status != StatusCommitted {
		t.Fatalf("status = %s, reason %q", receipt.Status, receipt.Reason)
	}
	if l.Height() != 1 {
		t.Fatalf("height = %d, want 1", l.Height())
	}
	if got := l.Status(tx.ID); got.Status != StatusCommitted {
		t.Fatalf("stored receipt = %+v", got)
	}
	if got := l.Status("never-submitted"); got.Status != StatusUnknown {
		t.Fatalf("unknown id receipt = %+v", got)
	}
}

func TestSubmitSurfacesRejectionReason(t *testing.T) {
	l, _ := newTestLedger(t)
	alice := newTestClient(t, l, 1)

	receipt, err := alice.Submit(context.Background(), domain.MessageCreateUser, domain.CreateUserMessage{
		UserID: alice.ID(),
		Name:   "Al",
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if receipt.Status != StatusInvalid {
		t.Fatalf("status = %s", receipt.Status)
	}
	if !strings.Contains(receipt.Reason, "must be longer") {
		t.Fatalf("reason = %q", receipt.Reason)
	}
	if l.Height() != 0 {
		t.Fatalf("invalid transaction advanced the height to %d", l.Height())
	}
}

func TestSubmitRejectsTamperedEnvelope(t *testing.T) {
	l, _ := newTestLedger(t)
	alice := newTestClient(t, l, 1)

	tx, err := alice.Build(domain.MessageCreateUser, domain.CreateUserMessage{
		UserID: alice.ID(),
		Name:   "Alice",
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	tx.Payload = []byte(`{"message_type":"CREATE_USER","content":{}}`)

	receipt, err := l.Submit(context.Background(), tx)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if receipt.Status != StatusInvalid || !strings.Contains(receipt.Reason, "digest mismatch") {
		t.Fatalf("receipt = %+v", receipt)
	}
}

func TestSubmitEnforcesDeclaredOutputs(t *testing.T) {
	l, store := newTestLedger(t)
	alice := newTestClient(t, l, 1)
	ctx := context.Background()

	content, _ := json.Marshal(domain.CreateUserMessage{UserID: alice.ID(), Name: "Alice"})
	payload, _ := json.Marshal(domain.Payload{Type: domain.MessageCreateUser, Content: content})

	// Sign a header that declares no outputs at all; the write the handler
	// produces must then be refused.
	signer, _ := envelope.SignerFromSeed(bytes.Repeat([]byte{1}, 32))
	tx, err := signer.Build(payload, nil, nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	receipt, err := l.Submit(ctx, tx)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if receipt.Status != StatusInvalid || !strings.Contains(receipt.Reason, "undeclared address") {
		t.Fatalf("receipt = %+v", receipt)
	}
	snapshot, _ := store.ExportState(ctx)
	if len(snapshot) != 0 {
		t.Fatalf("guarded write still reached the store: %v", snapshot)
	}
}

func TestSubmitUnknownTypeIsInternal(t *testing.T) {
	l, _ := newTestLedger(t)
	signer, _ := envelope.SignerFromSeed(bytes.Repeat([]byte{1}, 32))

	payload, _ := json.Marshal(domain.Payload{Type: "BOGUS", Content: []byte(`{}`)})
	tx, err := signer.Build(payload, nil, nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	receipt, err := l.Submit(context.Background(), tx)
	if err == nil {
		t.Fatal("unknown message type must be an internal fault, not a rejection")
	}
	if receipt.Status != StatusUnknown {
		t.Fatalf("status = %s, want UNKNOWN", receipt.Status)
	}
	if got := l.Status(tx.ID); got.Status != StatusUnknown {
		t.Fatalf("internal faults must not record a terminal receipt, got %+v", got)
	}
}

func TestSubmitBatchIsAtomic(t *testing.T) {
	l, store := newTestLedger(t)
	alice := newTestClient(t, l, 1)
	ctx := context.Background()

	// The second message is invalid, so the whole batch must abort,
	// including the valid first one.
	receipts, err := alice.SubmitBatch(ctx,
		Message{Type: domain.MessageCreateUser, Content: domain.CreateUserMessage{UserID: alice.ID(), Name: "Alice"}},
		Message{Type: domain.MessageCreateUser, Content: domain.CreateUserMessage{UserID: alice.ID(), Name: "Al"}},
	)
	if err != nil {
		t.Fatalf("submit batch: %v", err)
	}
	if len(receipts) != 2 {
		t.Fatalf("got %d receipts", len(receipts))
	}
	if receipts[1].Status != StatusInvalid || !strings.Contains(receipts[1].Reason, "must be longer") {
		t.Fatalf("receipts[1] = %+v", receipts[1])
	}
	if receipts[0].Status != StatusInvalid || !strings.Contains(receipts[0].Reason, "batch aborted") {
		t.Fatalf("receipts[0] = %+v", receipts[0])
	}
	snapshot, _ := store.ExportState(ctx)
	if len(snapshot) != 0 {
		t.Fatalf("aborted batch left state behind: %v", snapshot)
	}
	if l.Height() != 0 {
		t.Fatalf("height = %d", l.Height())
	}
}

func TestHeightSurvivesReopen(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	l, err := New(ctx, handler.NewRegistry(nil), store, nil, nil)
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}
	alice := newTestClient(t, l, 1)

	receipt, err := alice.Submit(ctx, domain.MessageCreateUser, domain.CreateUserMessage{
		UserID: alice.ID(),
		Name:   "Alice",
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if receipt.Status != StatusCommitted {
		t.Fatalf("status = %s, reason %q", receipt.Status, receipt.Reason)
	}

	// A fresh ledger over the committed store resumes at the stored height.
	reopened, err := New(ctx, handler.NewRegistry(nil), store, nil, nil)
	if err != nil {
		t.Fatalf("reopen ledger: %v", err)
	}
	if reopened.Height() != 1 {
		t.Fatalf("reopened height = %d, want 1", reopened.Height())
	}
}

func TestSubmitBatchReadsItsOwnWrites(t *testing.T) {
	l, _ := newTestLedger(t)
	alice := newTestClient(t, l, 1)
	bob := newTestClient(t, l, 2)
	ctx := context.Background()

	// Registering bob with alice as manager only validates if the batch's
	// first transaction is visible to its second.
	tx1, err := alice.Build(domain.MessageCreateUser, domain.CreateUserMessage{UserID: alice.ID(), Name: "Alice"})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	tx2, err := bob.Build(domain.MessageCreateUser, domain.CreateUserMessage{UserID: bob.ID(), Name: "Robert", ManagerID: alice.ID()})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	signer, _ := envelope.SignerFromSeed(bytes.Repeat([]byte{3}, 32))
	batch, err := signer.Bundle(tx1, tx2)
	if err != nil {
		t.Fatalf("bundle: %v", err)
	}

	receipts, err := l.SubmitBatch(ctx, batch)
	if err != nil {
		t.Fatalf("submit batch: %v", err)
	}
	for i, receipt := range receipts {
		if receipt.Status != StatusCommitted {
			t.Fatalf("receipts[%d] = %+v", i, receipt)
		}
	}
	if l.Height() != 2 {
		t.Fatalf("height = %d, want 2", l.Height())
	}
}
