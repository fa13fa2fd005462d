package handler

import (
	"context"

	"aclchain/internal/state"
	"aclchain/pkg/addressing"
	"aclchain/pkg/domain"
)

// authPredicate decides whether signer may open or close a proposal for the
// given (object, related) pair. It returns an InvalidTransactionError when
// the signer lacks authority.
type authPredicate func(ctx context.Context, sc *state.Context, signer, objectID, relatedID string) error

// relationshipKind parameterizes the generic proposal engine over one
// relationship. A nil relAddress marks the manager kind, whose confirm effect
// rewrites the user's manager field instead of a relationship set.
type relationshipKind struct {
	label         string
	addType       domain.ProposalType
	removeType    domain.ProposalType
	objectEntity  domain.EntityType
	relatedEntity domain.EntityType
	relAddress    func(objectID, relatedID string) string
	proposeAuth   authPredicate
	closeAuth     authPredicate

	// Addresses the authorization predicates read, declared ahead of
	// execution so the ledger can serialize conflicting transactions.
	// Either may be nil when the predicate reads only entity attributes.
	proposeAuthAddr func(signer, objectID, relatedID string) string
	closeAuthAddr   func(signer, objectID, relatedID string) string
}

// relatedUserOrManager allows the related user themself or their current
// manager to open the proposal.
func relatedUserOrManager(ctx context.Context, sc *state.Context, signer, _, relatedID string) error {
	if signer == relatedID {
		return nil
	}
	related, ok, err := sc.FetchUser(ctx, relatedID)
	if err != nil {
		return err
	}
	if ok && related.ManagerID != "" && signer == related.ManagerID {
		return nil
	}
	return domain.Invalidf("signer %s is neither user %s nor their manager", signer, relatedID)
}

// roleOwnerOf requires the signer to own the role named by objectID.
func roleOwnerOf(ctx context.Context, sc *state.Context, signer, objectID, _ string) error {
	has, err := sc.HasRelationship(ctx, addressing.RoleOwners(objectID, signer), objectID, signer)
	if err != nil {
		return err
	}
	if !has {
		return domain.Invalidf("signer %s is not an owner of role %s", signer, objectID)
	}
	return nil
}

// roleAdminOf requires the signer to administer the role named by objectID.
func roleAdminOf(ctx context.Context, sc *state.Context, signer, objectID, _ string) error {
	has, err := sc.HasRelationship(ctx, addressing.RoleAdmins(objectID, signer), objectID, signer)
	if err != nil {
		return err
	}
	if !has {
		return domain.Invalidf("signer %s is not an admin of role %s", signer, objectID)
	}
	return nil
}

// taskOwnerOfObject requires the signer to own the task named by objectID.
func taskOwnerOfObject(ctx context.Context, sc *state.Context, signer, objectID, _ string) error {
	has, err := sc.HasRelationship(ctx, addressing.TaskOwners(objectID, signer), objectID, signer)
	if err != nil {
		return err
	}
	if !has {
		return domain.Invalidf("signer %s is not an owner of task %s", signer, objectID)
	}
	return nil
}

// taskOwnerOfRelated requires the signer to own the task named by relatedID.
// Used by role-task proposals, where the task is the related entity.
func taskOwnerOfRelated(ctx context.Context, sc *state.Context, signer, _, relatedID string) error {
	has, err := sc.HasRelationship(ctx, addressing.TaskOwners(relatedID, signer), relatedID, signer)
	if err != nil {
		return err
	}
	if !has {
		return domain.Invalidf("signer %s is not an owner of task %s", signer, relatedID)
	}
	return nil
}

// currentManagerOf requires the signer to be the user's current manager. A
// user with no manager yet may nominate one themself.
func currentManagerOf(ctx context.Context, sc *state.Context, signer, objectID, _ string) error {
	user, ok, err := sc.FetchUser(ctx, objectID)
	if err != nil {
		return err
	}
	if !ok {
		return domain.Invalidf("user %s not found", objectID)
	}
	if user.ManagerID == "" {
		if signer == objectID {
			return nil
		}
		return domain.Invalidf("user %s has no manager; only the user may nominate one", objectID)
	}
	if signer != user.ManagerID {
		return domain.Invalidf("signer %s is not the current manager of user %s", signer, objectID)
	}
	return nil
}

// proposedManager requires the signer to be the prospective new manager.
func proposedManager(_ context.Context, _ *state.Context, signer, _, relatedID string) error {
	if signer != relatedID {
		return domain.Invalidf("signer %s is not the proposed manager %s", signer, relatedID)
	}
	return nil
}

// The seven relationship kinds. Constructed once; never mutated.
var (
	kindRoleAdmins = relationshipKind{
		label:         "role admin",
		addType:       domain.ProposalAddRoleAdmins,
		removeType:    domain.ProposalRemoveRoleAdmins,
		objectEntity:  domain.EntityRole,
		relatedEntity: domain.EntityUser,
		relAddress:    addressing.RoleAdmins,
		proposeAuth:   relatedUserOrManager,
		closeAuth:     roleAdminOf,
		closeAuthAddr: func(signer, objectID, _ string) string { return addressing.RoleAdmins(objectID, signer) },
	}
	kindRoleOwners = relationshipKind{
		label:         "role owner",
		addType:       domain.ProposalAddRoleOwners,
		removeType:    domain.ProposalRemoveRoleOwners,
		objectEntity:  domain.EntityRole,
		relatedEntity: domain.EntityUser,
		relAddress:    addressing.RoleOwners,
		proposeAuth:   relatedUserOrManager,
		closeAuth:     roleAdminOf,
		closeAuthAddr: func(signer, objectID, _ string) string { return addressing.RoleAdmins(objectID, signer) },
	}
	kindRoleMembers = relationshipKind{
		label:         "role member",
		addType:       domain.ProposalAddRoleMembers,
		removeType:    domain.ProposalRemoveRoleMembers,
		objectEntity:  domain.EntityRole,
		relatedEntity: domain.EntityUser,
		relAddress:    addressing.RoleMembers,
		proposeAuth:   relatedUserOrManager,
		closeAuth:     roleOwnerOf,
		closeAuthAddr: func(signer, objectID, _ string) string { return addressing.RoleOwners(objectID, signer) },
	}
	kindRoleTasks = relationshipKind{
		label:           "role task",
		addType:         domain.ProposalAddRoleTasks,
		removeType:      domain.ProposalRemoveRoleTasks,
		objectEntity:    domain.EntityRole,
		relatedEntity:   domain.EntityTask,
		relAddress:      addressing.RoleTasks,
		proposeAuth:     roleOwnerOf,
		closeAuth:       taskOwnerOfRelated,
		proposeAuthAddr: func(signer, objectID, _ string) string { return addressing.RoleOwners(objectID, signer) },
		closeAuthAddr:   func(signer, _, relatedID string) string { return addressing.TaskOwners(relatedID, signer) },
	}
	kindTaskAdmins = relationshipKind{
		label:         "task admin",
		addType:       domain.ProposalAddTaskAdmins,
		objectEntity:  domain.EntityTask,
		relatedEntity: domain.EntityUser,
		relAddress:    addressing.TaskAdmins,
		proposeAuth:   relatedUserOrManager,
		closeAuth:     taskOwnerOfObject,
		closeAuthAddr: func(signer, objectID, _ string) string { return addressing.TaskOwners(objectID, signer) },
	}
	kindTaskOwners = relationshipKind{
		label:         "task owner",
		addType:       domain.ProposalAddTaskOwners,
		objectEntity:  domain.EntityTask,
		relatedEntity: domain.EntityUser,
		relAddress:    addressing.TaskOwners,
		proposeAuth:   relatedUserOrManager,
		closeAuth:     taskOwnerOfObject,
		closeAuthAddr: func(signer, objectID, _ string) string { return addressing.TaskOwners(objectID, signer) },
	}
	kindUserManager = relationshipKind{
		label:         "user manager",
		addType:       domain.ProposalUpdateUserManagers,
		objectEntity:  domain.EntityUser,
		relatedEntity: domain.EntityUser,
		proposeAuth:   currentManagerOf,
		closeAuth:     proposedManager,
	}
)

// kindBinding wires one (kind, direction) to its three message types.
type kindBinding struct {
	kind    relationshipKind
	removal bool
	propose domain.MessageType
	confirm domain.MessageType
	reject  domain.MessageType
}

var kindBindings = []kindBinding{
	{kind: kindRoleAdmins, propose: domain.MessageProposeAddRoleAdmins, confirm: domain.MessageConfirmAddRoleAdmins, reject: domain.MessageRejectAddRoleAdmins},
	{kind: kindRoleOwners, propose: domain.MessageProposeAddRoleOwners, confirm: domain.MessageConfirmAddRoleOwners, reject: domain.MessageRejectAddRoleOwners},
	{kind: kindRoleMembers, propose: domain.MessageProposeAddRoleMembers, confirm: domain.MessageConfirmAddRoleMembers, reject: domain.MessageRejectAddRoleMembers},
	{kind: kindRoleTasks, propose: domain.MessageProposeAddRoleTasks, confirm: domain.MessageConfirmAddRoleTasks, reject: domain.MessageRejectAddRoleTasks},
	{kind: kindRoleAdmins, removal: true, propose: domain.MessageProposeRemoveRoleAdmins, confirm: domain.MessageConfirmRemoveRoleAdmins, reject: domain.MessageRejectRemoveRoleAdmins},
	{kind: kindRoleOwners, removal: true, propose: domain.MessageProposeRemoveRoleOwners, confirm: domain.MessageConfirmRemoveRoleOwners, reject: domain.MessageRejectRemoveRoleOwners},
	{kind: kindRoleMembers, removal: true, propose: domain.MessageProposeRemoveRoleMembers, confirm: domain.MessageConfirmRemoveRoleMembers, reject: domain.MessageRejectRemoveRoleMembers},
	{kind: kindRoleTasks, removal: true, propose: domain.MessageProposeRemoveRoleTasks, confirm: domain.MessageConfirmRemoveRoleTasks, reject: domain.MessageRejectRemoveRoleTasks},
	{kind: kindTaskAdmins, propose: domain.MessageProposeAddTaskAdmins, confirm: domain.MessageConfirmAddTaskAdmins, reject: domain.MessageRejectAddTaskAdmins},
	{kind: kindTaskOwners, propose: domain.MessageProposeAddTaskOwners, confirm: domain.MessageConfirmAddTaskOwners, reject: domain.MessageRejectAddTaskOwners},
	{kind: kindUserManager, propose: domain.MessageProposeUpdateUserManagers, confirm: domain.MessageConfirmUpdateUserManagers, reject: domain.MessageRejectUpdateUserManagers},
}

// proposalType returns the proposal type for the given direction.
func (k relationshipKind) proposalType(removal bool) domain.ProposalType {
	if removal {
		return k.removeType
	}
	return k.addType
}

// checkObject verifies the object entity exists.
func (k relationshipKind) checkObject(ctx context.Context, sc *state.Context, objectID string) error {
	var (
		ok  bool
		err error
	)
	switch k.objectEntity {
	case domain.EntityRole:
		_, ok, err = sc.FetchRole(ctx, objectID)
	case domain.EntityTask:
		_, ok, err = sc.FetchTask(ctx, objectID)
	case domain.EntityUser:
		_, ok, err = sc.FetchUser(ctx, objectID)
	}
	if err != nil {
		return err
	}
	if !ok {
		return domain.Invalidf("%s %s not found", k.objectEntity, objectID)
	}
	return nil
}

// checkRelated verifies the related entity exists.
func (k relationshipKind) checkRelated(ctx context.Context, sc *state.Context, relatedID string) error {
	var (
		ok  bool
		err error
	)
	switch k.relatedEntity {
	case domain.EntityTask:
		_, ok, err = sc.FetchTask(ctx, relatedID)
	default:
		_, ok, err = sc.FetchUser(ctx, relatedID)
	}
	if err != nil {
		return err
	}
	if !ok {
		return domain.Invalidf("%s %s not found", k.relatedEntity, relatedID)
	}
	return nil
}

// inRelationship reports whether relatedID currently holds the relationship.
// For the manager kind this means relatedID is the user's current manager.
func (k relationshipKind) inRelationship(ctx context.Context, sc *state.Context, objectID, relatedID string) (bool, error) {
	if k.relAddress == nil {
		user, ok, err := sc.FetchUser(ctx, objectID)
		if err != nil || !ok {
			return false, err
		}
		return user.ManagerID == relatedID, nil
	}
	return sc.HasRelationship(ctx, k.relAddress(objectID, relatedID), objectID, relatedID)
}

// applyAdd grants the relationship on confirm. For the manager kind it
// rewrites the user's manager field; otherwise it appends to the
// relationship set.
func (k relationshipKind) applyAdd(ctx context.Context, sc *state.Context, objectID, relatedID string) error {
	if k.relAddress == nil {
		user, ok, err := sc.FetchUser(ctx, objectID)
		if err != nil {
			return err
		}
		if !ok {
			return domain.Internalf(nil, "user %s vanished while confirming manager update", objectID)
		}
		user.ManagerID = relatedID
		return sc.StoreUser(ctx, user)
	}
	return sc.AddIdentifier(ctx, k.relAddress(objectID, relatedID), objectID, relatedID)
}

// applyRemove revokes the relationship on confirm of a removal proposal.
func (k relationshipKind) applyRemove(ctx context.Context, sc *state.Context, objectID, relatedID string) error {
	return sc.RemoveIdentifier(ctx, k.relAddress(objectID, relatedID), objectID, relatedID)
}
