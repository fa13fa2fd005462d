package handler

import (
	"context"
	"encoding/json"
	"strings"

	"aclchain/internal/state"
	"aclchain/pkg/addressing"
	"aclchain/pkg/domain"
)

// createRole validates and applies a CREATE_ROLE message. Any existing user
// may create a role; the signer carries no special authority here.
func createRole(ctx context.Context, _ string, content []byte, sc *state.Context) error {
	var msg domain.CreateRoleMessage
	if err := json.Unmarshal(content, &msg); err != nil {
		return domain.Invalidf("malformed CREATE_ROLE content: %v", err)
	}

	if len(msg.Name) <= minNameLength {
		return domain.Invalidf("role name %q must be longer than %d characters", msg.Name, minNameLength)
	}
	if len(msg.Admins) == 0 {
		return domain.Invalidf("role %s requires at least one admin", msg.RoleID)
	}
	if len(msg.Owners) == 0 {
		return domain.Invalidf("role %s requires at least one owner", msg.RoleID)
	}
	if _, exists, err := sc.FetchRole(ctx, msg.RoleID); err != nil {
		return err
	} else if exists {
		return domain.Invalidf("role %s already exists", msg.RoleID)
	}
	if missing, err := sc.UsersExist(ctx, dedupe(msg.Admins, msg.Owners)); err != nil {
		return err
	} else if len(missing) > 0 {
		return domain.Invalidf("users do not exist: %s", strings.Join(missing, ", "))
	}
	if err := sc.AppendRole(ctx, domain.Role{
		RoleID:   msg.RoleID,
		Name:     msg.Name,
		Metadata: msg.Metadata,
	}); err != nil {
		return err
	}
	for _, admin := range msg.Admins {
		if err := sc.AddIdentifier(ctx, addressing.RoleAdmins(msg.RoleID, admin), msg.RoleID, admin); err != nil {
			return err
		}
	}
	for _, owner := range msg.Owners {
		if err := sc.AddIdentifier(ctx, addressing.RoleOwners(msg.RoleID, owner), msg.RoleID, owner); err != nil {
			return err
		}
	}
	return nil
}

// dedupe merges id slices preserving first-seen order.
func dedupe(groups ...[]string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, group := range groups {
		for _, id := range group {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}
