package handler

import (
	"encoding/json"

	"aclchain/pkg/addressing"
	"aclchain/pkg/domain"
)

// verb distinguishes the three operations of the proposal lifecycle.
type verb int

const (
	verbPropose verb = iota
	verbConfirm
	verbReject
)

// bindingFor resolves a proposal message type back to its kind binding.
func bindingFor(typ domain.MessageType) (kindBinding, verb, bool) {
	for _, binding := range kindBindings {
		switch typ {
		case binding.propose:
			return binding, verbPropose, true
		case binding.confirm:
			return binding, verbConfirm, true
		case binding.reject:
			return binding, verbReject, true
		}
	}
	return kindBinding{}, 0, false
}

// Declare computes the full set of addresses a transaction carrying the given
// payload might read (inputs) and might write (outputs). The ledger enforces
// that writes stay inside the declared outputs and uses the declarations to
// serialize conflicting transactions.
func Declare(signer string, payload domain.Payload) (inputs, outputs []string, err error) {
	switch payload.Type {
	case domain.MessageCreateUser:
		var msg domain.CreateUserMessage
		if err := json.Unmarshal(payload.Content, &msg); err != nil {
			return nil, nil, domain.Invalidf("malformed CREATE_USER content: %v", err)
		}
		user := addressing.User(msg.UserID)
		inputs = []string{user}
		if msg.ManagerID != "" {
			inputs = append(inputs, addressing.User(msg.ManagerID))
		}
		return dedupe(inputs), []string{user}, nil

	case domain.MessageCreateRole:
		var msg domain.CreateRoleMessage
		if err := json.Unmarshal(payload.Content, &msg); err != nil {
			return nil, nil, domain.Invalidf("malformed CREATE_ROLE content: %v", err)
		}
		attrs := addressing.RoleAttributes(msg.RoleID)
		writes := []string{attrs}
		reads := []string{attrs}
		for _, admin := range msg.Admins {
			reads = append(reads, addressing.User(admin))
			writes = append(writes, addressing.RoleAdmins(msg.RoleID, admin))
		}
		for _, owner := range msg.Owners {
			reads = append(reads, addressing.User(owner))
			writes = append(writes, addressing.RoleOwners(msg.RoleID, owner))
		}
		return dedupe(reads, writes), dedupe(writes), nil

	case domain.MessageCreateTask:
		var msg domain.CreateTaskMessage
		if err := json.Unmarshal(payload.Content, &msg); err != nil {
			return nil, nil, domain.Invalidf("malformed CREATE_TASK content: %v", err)
		}
		attrs := addressing.TaskAttributes(msg.TaskID)
		writes := []string{attrs}
		reads := []string{attrs}
		for _, admin := range msg.Admins {
			reads = append(reads, addressing.User(admin))
			writes = append(writes, addressing.TaskAdmins(msg.TaskID, admin))
		}
		for _, owner := range msg.Owners {
			reads = append(reads, addressing.User(owner))
			writes = append(writes, addressing.TaskOwners(msg.TaskID, owner))
		}
		return dedupe(reads, writes), dedupe(writes), nil
	}

	binding, v, ok := bindingFor(payload.Type)
	if !ok {
		return nil, nil, domain.Internalf(nil, "unknown message type %q", payload.Type)
	}
	kind := binding.kind

	var objectID, relatedID string
	switch v {
	case verbPropose:
		var msg domain.ProposeMessage
		if err := json.Unmarshal(payload.Content, &msg); err != nil {
			return nil, nil, domain.Invalidf("malformed propose content: %v", err)
		}
		objectID, relatedID = msg.ObjectID, msg.RelatedID
	default:
		var msg domain.CloseMessage
		if err := json.Unmarshal(payload.Content, &msg); err != nil {
			return nil, nil, domain.Invalidf("malformed close content: %v", err)
		}
		objectID, relatedID = msg.ObjectID, msg.RelatedID
	}

	proposal := addressing.Proposal(objectID, relatedID)
	reads := []string{
		proposal,
		addressing.Attributes(kind.objectEntity, objectID),
		addressing.Attributes(kind.relatedEntity, relatedID),
	}
	if kind.relAddress != nil {
		reads = append(reads, kind.relAddress(objectID, relatedID))
	}

	switch v {
	case verbPropose:
		if kind.proposeAuthAddr != nil {
			reads = append(reads, kind.proposeAuthAddr(signer, objectID, relatedID))
		}
		return dedupe(reads), []string{proposal}, nil
	case verbConfirm:
		if kind.closeAuthAddr != nil {
			reads = append(reads, kind.closeAuthAddr(signer, objectID, relatedID))
		}
		writes := []string{proposal}
		if kind.relAddress != nil {
			writes = append(writes, kind.relAddress(objectID, relatedID))
		} else {
			// Manager confirm rewrites the user attributes record.
			writes = append(writes, addressing.User(objectID))
		}
		return dedupe(reads, writes), dedupe(writes), nil
	default: // verbReject
		if kind.closeAuthAddr != nil {
			reads = append(reads, kind.closeAuthAddr(signer, objectID, relatedID))
		}
		return dedupe(reads), []string{proposal}, nil
	}
}
