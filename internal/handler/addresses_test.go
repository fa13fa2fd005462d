package handler

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"aclchain/internal/state"
	"aclchain/pkg/addressing"
	"aclchain/pkg/domain"
)

func declare(t *testing.T, signer string, typ domain.MessageType, msg any) (inputs, outputs []string) {
	t.Helper()
	payload := payloadBytes(t, typ, msg)
	var decoded domain.Payload
	if err := json.Unmarshal(payload, &decoded); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	inputs, outputs, err := Declare(signer, decoded)
	if err != nil {
		t.Fatalf("declare %s: %v", typ, err)
	}
	return inputs, outputs
}

func TestDeclareCreateUser(t *testing.T) {
	inputs, outputs := declare(t, "boss", domain.MessageCreateUser, domain.CreateUserMessage{
		UserID:    "report",
		Name:      "Report",
		ManagerID: "boss",
	})

	wantIn := map[string]bool{
		addressing.User("report"): true,
		addressing.User("boss"):   true,
	}
	if len(inputs) != len(wantIn) {
		t.Fatalf("inputs = %v", inputs)
	}
	for _, addr := range inputs {
		if !wantIn[addr] {
			t.Fatalf("unexpected input %s", addr)
		}
	}
	if len(outputs) != 1 || outputs[0] != addressing.User("report") {
		t.Fatalf("outputs = %v", outputs)
	}
}

func TestDeclareUnknownType(t *testing.T) {
	_, _, err := Declare("alice", domain.Payload{Type: "BOGUS", Content: []byte(`{}`)})
	var internal domain.InternalError
	if !errors.As(err, &internal) {
		t.Fatalf("expected InternalError, got %T: %v", err, err)
	}
}

// trackingWriter records which addresses each SetState touches.
type trackingWriter struct {
	*memState
	written []string
}

func (w *trackingWriter) SetState(ctx context.Context, entries map[string][]byte) error {
	for addr := range entries {
		w.written = append(w.written, addr)
	}
	return w.memState.SetState(ctx, entries)
}

// TestDeclareCoversActualWrites replays a full scenario and checks, step by
// step, that every address a handler writes was declared as an output.
func TestDeclareCoversActualWrites(t *testing.T) {
	reg := NewRegistry(nil)
	ms := newMemState()

	steps := []struct {
		signer string
		typ    domain.MessageType
		msg    any
	}{
		{"alice", domain.MessageCreateUser, domain.CreateUserMessage{UserID: "alice", Name: "Alice"}},
		{"alice", domain.MessageCreateUser, domain.CreateUserMessage{UserID: "bob", Name: "Robert", ManagerID: "alice"}},
		{"carol", domain.MessageCreateUser, domain.CreateUserMessage{UserID: "carol", Name: "Carol"}},
		{"alice", domain.MessageCreateRole, domain.CreateRoleMessage{RoleID: "role-1", Name: "Deployers", Admins: []string{"alice"}, Owners: []string{"alice"}}},
		{"bob", domain.MessageCreateTask, domain.CreateTaskMessage{TaskID: "task-1", Name: "Rotate keys", Admins: []string{"bob"}, Owners: []string{"bob"}}},
		{"bob", domain.MessageProposeAddRoleMembers, domain.ProposeMessage{ProposalID: "p1", ObjectID: "role-1", RelatedID: "bob"}},
		{"alice", domain.MessageConfirmAddRoleMembers, domain.CloseMessage{ProposalID: "p1", ObjectID: "role-1", RelatedID: "bob"}},
		{"bob", domain.MessageProposeAddRoleAdmins, domain.ProposeMessage{ProposalID: "p2", ObjectID: "role-1", RelatedID: "bob"}},
		{"alice", domain.MessageRejectAddRoleAdmins, domain.CloseMessage{ProposalID: "p2", ObjectID: "role-1", RelatedID: "bob"}},
		{"bob", domain.MessageProposeRemoveRoleMembers, domain.ProposeMessage{ProposalID: "p3", ObjectID: "role-1", RelatedID: "bob"}},
		{"alice", domain.MessageConfirmRemoveRoleMembers, domain.CloseMessage{ProposalID: "p3", ObjectID: "role-1", RelatedID: "bob"}},
		{"alice", domain.MessageProposeAddRoleTasks, domain.ProposeMessage{ProposalID: "p4", ObjectID: "role-1", RelatedID: "task-1"}},
		{"bob", domain.MessageConfirmAddRoleTasks, domain.CloseMessage{ProposalID: "p4", ObjectID: "role-1", RelatedID: "task-1"}},
		{"alice", domain.MessageProposeUpdateUserManagers, domain.ProposeMessage{ProposalID: "p5", ObjectID: "bob", RelatedID: "carol"}},
		{"carol", domain.MessageConfirmUpdateUserManagers, domain.CloseMessage{ProposalID: "p5", ObjectID: "bob", RelatedID: "carol"}},
	}

	for _, step := range steps {
		_, outputs := declare(t, step.signer, step.typ, step.msg)
		declared := make(map[string]bool, len(outputs))
		for _, addr := range outputs {
			declared[addr] = true
			if !addressing.InNamespace(addr) {
				t.Fatalf("%s declared output %s outside namespace", step.typ, addr)
			}
		}

		writer := &trackingWriter{memState: ms}
		if err := reg.Apply(context.Background(), step.signer, payloadBytes(t, step.typ, step.msg), ms, writer); err != nil {
			t.Fatalf("apply %s: %v", step.typ, err)
		}
		for _, addr := range writer.written {
			if !declared[addr] {
				t.Errorf("%s wrote undeclared address %s (declared %v)", step.typ, addr, outputs)
			}
		}
	}
}

var _ state.Writer = (*trackingWriter)(nil)
