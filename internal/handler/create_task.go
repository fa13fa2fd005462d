package handler

import (
	"context"
	"encoding/json"
	"strings"

	"aclchain/internal/state"
	"aclchain/pkg/addressing"
	"aclchain/pkg/domain"
)

// createTask validates and applies a CREATE_TASK message. The rule set
// mirrors createRole over the task address space, including the open
// creation policy.
func createTask(ctx context.Context, _ string, content []byte, sc *state.Context) error {
	var msg domain.CreateTaskMessage
	if err := json.Unmarshal(content, &msg); err != nil {
		return domain.Invalidf("malformed CREATE_TASK content: %v", err)
	}

	if len(msg.Name) <= minNameLength {
		return domain.Invalidf("task name %q must be longer than %d characters", msg.Name, minNameLength)
	}
	if len(msg.Admins) == 0 {
		return domain.Invalidf("task %s requires at least one admin", msg.TaskID)
	}
	if len(msg.Owners) == 0 {
		return domain.Invalidf("task %s requires at least one owner", msg.TaskID)
	}
	if _, exists, err := sc.FetchTask(ctx, msg.TaskID); err != nil {
		return err
	} else if exists {
		return domain.Invalidf("task %s already exists", msg.TaskID)
	}
	if missing, err := sc.UsersExist(ctx, dedupe(msg.Admins, msg.Owners)); err != nil {
		return err
	} else if len(missing) > 0 {
		return domain.Invalidf("users do not exist: %s", strings.Join(missing, ", "))
	}
	if err := sc.AppendTask(ctx, domain.Task{
		TaskID:   msg.TaskID,
		Name:     msg.Name,
		Metadata: msg.Metadata,
	}); err != nil {
		return err
	}
	for _, admin := range msg.Admins {
		if err := sc.AddIdentifier(ctx, addressing.TaskAdmins(msg.TaskID, admin), msg.TaskID, admin); err != nil {
			return err
		}
	}
	for _, owner := range msg.Owners {
		if err := sc.AddIdentifier(ctx, addressing.TaskOwners(msg.TaskID, owner), msg.TaskID, owner); err != nil {
			return err
		}
	}
	return nil
}
