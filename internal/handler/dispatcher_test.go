package handler

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"aclchain/pkg/domain"
)

func TestApplyMalformedPayload(t *testing.T) {
	reg := NewRegistry(nil)
	ms := newMemState()
	err := reg.Apply(context.Background(), "alice", []byte("{not json"), ms, ms)
	wantInvalid(t, err, "malformed payload")
}

func TestApplyUnknownMessageType(t *testing.T) {
	reg := NewRegistry(nil)
	ms := newMemState()
	payload, _ := json.Marshal(domain.Payload{Type: "DROP_EVERYTHING", Content: []byte(`{}`)})

	err := reg.Apply(context.Background(), "alice", payload, ms, ms)
	if err == nil {
		t.Fatal("expected error for unknown message type")
	}
	if domain.IsInvalid(err) {
		t.Fatalf("unknown type must be an internal error, got invalid: %v", err)
	}
	var internal domain.InternalError
	if !errors.As(err, &internal) {
		t.Fatalf("expected InternalError, got %T: %v", err, err)
	}
}

func TestApplyRejectionWritesNothing(t *testing.T) {
	reg := NewRegistry(nil)
	ms := newMemState()
	writesBefore := ms.writes

	err := apply(t, reg, ms, "alice", domain.MessageCreateUser, domain.CreateUserMessage{
		UserID: "alice",
		Name:   "Al", // too short
	})
	wantInvalid(t, err, "")
	if ms.writes != writesBefore {
		t.Fatalf("rejected transaction reached the writer: %d writes", ms.writes-writesBefore)
	}
	if len(ms.entries) != 0 {
		t.Fatalf("state mutated by rejected transaction: %v", ms.entries)
	}
}

func TestApplyFlushesOnce(t *testing.T) {
	reg := NewRegistry(nil)
	ms := newMemState()
	seedUsers(t, reg, ms, [][2]string{{"alice", ""}})
	writesBefore := ms.writes

	// CREATE_ROLE touches three addresses; they all land in one SetState.
	mustApply(t, reg, ms, "alice", domain.MessageCreateRole, domain.CreateRoleMessage{
		RoleID: "role-1",
		Name:   "Deployers",
		Admins: []string{"alice"},
		Owners: []string{"alice"},
	})
	if got := ms.writes - writesBefore; got != 1 {
		t.Fatalf("SetState called %d times, want 1", got)
	}
}

func TestRegistryCoversTaxonomy(t *testing.T) {
	reg := NewRegistry(nil)
	types := []domain.MessageType{
		domain.MessageCreateUser, domain.MessageCreateRole, domain.MessageCreateTask,
	}
	for _, b := range kindBindings {
		types = append(types, b.propose, b.confirm, b.reject)
	}
	if len(types) != 36 {
		t.Fatalf("taxonomy has %d message types, want 36", len(types))
	}
	for _, typ := range types {
		if _, ok := reg.Handler(typ); !ok {
			t.Errorf("no handler registered for %s", typ)
		}
	}
}
