package handler

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"aclchain/internal/state"
	"aclchain/pkg/domain"
)

// memState is a plain address->bytes map standing in for the ledger
// collaborator in handler tests.
type memState struct {
	entries map[string][]byte
	writes  int
}

func newMemState() *memState {
	return &memState{entries: make(map[string][]byte)}
}

func (m *memState) GetState(_ context.Context, addresses []string) (map[string][]byte, error) {
	out := make(map[string][]byte)
	for _, addr := range addresses {
		if data, ok := m.entries[addr]; ok {
			out[addr] = data
		}
	}
	return out, nil
}

func (m *memState) SetState(_ context.Context, entries map[string][]byte) error {
	m.writes++
	for addr, data := range entries {
		m.entries[addr] = data
	}
	return nil
}

func payloadBytes(t *testing.T, typ domain.MessageType, msg any) []byte {
	t.Helper()
	content, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal content: %v", err)
	}
	payload, err := json.Marshal(domain.Payload{Type: typ, Content: content})
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return payload
}

// apply routes one message through the registry against ms.
func apply(t *testing.T, reg *Registry, ms *memState, signer string, typ domain.MessageType, msg any) error {
	t.Helper()
	return reg.Apply(context.Background(), signer, payloadBytes(t, typ, msg), ms, ms)
}

// mustApply fails the test on any error.
func mustApply(t *testing.T, reg *Registry, ms *memState, signer string, typ domain.MessageType, msg any) {
	t.Helper()
	if err := apply(t, reg, ms, signer, typ, msg); err != nil {
		t.Fatalf("apply %s: %v", typ, err)
	}
}

// wantInvalid asserts err is a validation rejection whose reason contains
// substr.
func wantInvalid(t *testing.T, err error, substr string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected invalid transaction containing %q, got nil", substr)
	}
	if !domain.IsInvalid(err) {
		t.Fatalf("expected invalid transaction, got %T: %v", err, err)
	}
	if substr != "" && !strings.Contains(err.Error(), substr) {
		t.Fatalf("rejection reason %q does not contain %q", err.Error(), substr)
	}
}

// seedUsers registers a chain of users: each entry is (id, managerID).
func seedUsers(t *testing.T, reg *Registry, ms *memState, users [][2]string) {
	t.Helper()
	for _, u := range users {
		mustApply(t, reg, ms, u[0], domain.MessageCreateUser, domain.CreateUserMessage{
			UserID:    u[0],
			Name:      "User " + u[0],
			ManagerID: u[1],
		})
	}
}

// stateContext builds a read-only view over ms for assertions.
func stateContext(ms *memState) *state.Context {
	return state.NewContext(ms, nil)
}
