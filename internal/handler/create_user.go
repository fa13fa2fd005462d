package handler

import (
	"context"
	"encoding/json"

	"aclchain/internal/state"
	"aclchain/pkg/domain"
)

// minNameLength is the exclusive lower bound on entity names.
const minNameLength = 4

// createUser validates and applies a CREATE_USER message. Rules run in order
// and the first failure wins.
func createUser(ctx context.Context, signer string, content []byte, sc *state.Context) error {
	var msg domain.CreateUserMessage
	if err := json.Unmarshal(content, &msg); err != nil {
		return domain.Invalidf("malformed CREATE_USER content: %v", err)
	}

	if len(msg.Name) <= minNameLength {
		return domain.Invalidf("user name %q must be longer than %d characters", msg.Name, minNameLength)
	}
	if signer != msg.UserID && (msg.ManagerID == "" || signer != msg.ManagerID) {
		return domain.Invalidf("signer %s is neither user %s nor the declared manager", signer, msg.UserID)
	}
	if _, exists, err := sc.FetchUser(ctx, msg.UserID); err != nil {
		return err
	} else if exists {
		return domain.Invalidf("user %s already exists", msg.UserID)
	}
	if msg.ManagerID != "" {
		if _, exists, err := sc.FetchUser(ctx, msg.ManagerID); err != nil {
			return err
		} else if !exists {
			return domain.Invalidf("manager %s not found", msg.ManagerID)
		}
	}

	return sc.AppendUser(ctx, domain.User{
		UserID:    msg.UserID,
		Name:      msg.Name,
		Metadata:  msg.Metadata,
		ManagerID: msg.ManagerID,
	})
}
