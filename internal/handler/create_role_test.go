package handler

import (
	"context"
	"testing"

	"aclchain/pkg/addressing"
	"aclchain/pkg/domain"
)

func TestCreateRole(t *testing.T) {
	reg := NewRegistry(nil)
	ms := newMemState()
	seedUsers(t, reg, ms, [][2]string{{"alice", ""}, {"bob", ""}})

	mustApply(t, reg, ms, "alice", domain.MessageCreateRole, domain.CreateRoleMessage{
		RoleID: "role-1",
		Name:   "Deployers",
		Admins: []string{"alice"},
		Owners: []string{"alice", "bob"},
	})

	ctx := context.Background()
	sc := stateContext(ms)
	role, ok, err := sc.FetchRole(ctx, "role-1")
	if err != nil || !ok {
		t.Fatalf("fetch role: ok=%v err=%v", ok, err)
	}
	if role.Name != "Deployers" {
		t.Fatalf("role name = %q", role.Name)
	}
	for _, check := range []struct {
		addr    string
		related string
	}{
		{addressing.RoleAdmins("role-1", "alice"), "alice"},
		{addressing.RoleOwners("role-1", "alice"), "alice"},
		{addressing.RoleOwners("role-1", "bob"), "bob"},
	} {
		held, err := sc.HasRelationship(ctx, check.addr, "role-1", check.related)
		if err != nil {
			t.Fatalf("has relationship: %v", err)
		}
		if !held {
			t.Fatalf("relationship for %s missing at %s", check.related, check.addr)
		}
	}
}

func TestCreateRoleRejections(t *testing.T) {
	tests := []struct {
		name   string
		msg    domain.CreateRoleMessage
		reason string
	}{
		{
			name:   "short name",
			msg:    domain.CreateRoleMessage{RoleID: "r", Name: "ops", Admins: []string{"alice"}, Owners: []string{"alice"}},
			reason: "must be longer",
		},
		{
			name:   "no admins",
			msg:    domain.CreateRoleMessage{RoleID: "r", Name: "Deployers", Owners: []string{"alice"}},
			reason: "admin",
		},
		{
			name:   "no owners",
			msg:    domain.CreateRoleMessage{RoleID: "r", Name: "Deployers", Admins: []string{"alice"}},
			reason: "owner",
		},
		{
			name:   "unknown member",
			msg:    domain.CreateRoleMessage{RoleID: "r", Name: "Deployers", Admins: []string{"ghost"}, Owners: []string{"alice"}},
			reason: "do not exist: ghost",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			reg := NewRegistry(nil)
			ms := newMemState()
			seedUsers(t, reg, ms, [][2]string{{"alice", ""}})
			err := apply(t, reg, ms, "alice", domain.MessageCreateRole, tc.msg)
			wantInvalid(t, err, tc.reason)
		})
	}
}

func TestCreateRoleDuplicate(t *testing.T) {
	reg := NewRegistry(nil)
	ms := newMemState()
	seedUsers(t, reg, ms, [][2]string{{"alice", ""}})
	msg := domain.CreateRoleMessage{RoleID: "role-1", Name: "Deployers", Admins: []string{"alice"}, Owners: []string{"alice"}}
	mustApply(t, reg, ms, "alice", domain.MessageCreateRole, msg)

	err := apply(t, reg, ms, "alice", domain.MessageCreateRole, msg)
	wantInvalid(t, err, "already exists")
}

func TestCreateTask(t *testing.T) {
	reg := NewRegistry(nil)
	ms := newMemState()
	seedUsers(t, reg, ms, [][2]string{{"alice", ""}})

	mustApply(t, reg, ms, "alice", domain.MessageCreateTask, domain.CreateTaskMessage{
		TaskID: "task-1",
		Name:   "Rotate keys",
		Admins: []string{"alice"},
		Owners: []string{"alice"},
	})

	ctx := context.Background()
	sc := stateContext(ms)
	if _, ok, err := sc.FetchTask(ctx, "task-1"); err != nil || !ok {
		t.Fatalf("fetch task: ok=%v err=%v", ok, err)
	}
	held, err := sc.HasRelationship(ctx, addressing.TaskOwners("task-1", "alice"), "task-1", "alice")
	if err != nil || !held {
		t.Fatalf("task owner relationship: held=%v err=%v", held, err)
	}
}
