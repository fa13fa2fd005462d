// Package addressing derives the fixed-width state keys under which aclchain
// records are stored. Addresses are 70 hex characters: a 6-character
// application namespace, a 2-character record tag, and 62 characters of
// SHA-512 derived digest. The mapping is pure and deterministic; collisions
// between logically distinct keys are tolerated by the container layer, never
// prevented here.
package addressing

import (
	"crypto/sha512"
	"encoding/hex"

	"aclchain/pkg/domain"
)

// Namespace is the first six hex characters of the SHA-512 digest of the
// family name "aclchain". Every address produced by this package starts with
// it, so a range query over the namespace returns only this application's
// records.
const Namespace = "921332"

// AddressLength is the total hex length of every state address.
const AddressLength = 70

// Record tags occupy two hex characters after the namespace and keep the
// per-entity and per-relationship address spaces disjoint.
const (
	tagUser        = "01"
	tagRoleAttrs   = "02"
	tagRoleAdmins  = "03"
	tagRoleOwners  = "04"
	tagRoleMembers = "05"
	tagRoleTasks   = "06"
	tagTaskAttrs   = "07"
	tagTaskAdmins  = "08"
	tagTaskOwners  = "09"
	tagProposal    = "0a"
)

func hash(value string, length int) string {
	sum := sha512.Sum512([]byte(value))
	return hex.EncodeToString(sum[:])[:length]
}

// User returns the address of a user attributes container.
func User(userID string) string {
	return Namespace + tagUser + hash(userID, 62)
}

// RoleAttributes returns the address of a role attributes container.
func RoleAttributes(roleID string) string {
	return Namespace + tagRoleAttrs + hash(roleID, 62)
}

// TaskAttributes returns the address of a task attributes container.
func TaskAttributes(taskID string) string {
	return Namespace + tagTaskAttrs + hash(taskID, 62)
}

// pair derives a two-identifier address: 32 digest characters for the object
// and 30 for the related entity.
func pair(tag, objectID, relatedID string) string {
	return Namespace + tag + hash(objectID, 32) + hash(relatedID, 30)
}

// RoleAdmins returns the address of the role-admin relationship container for
// (roleID, userID).
func RoleAdmins(roleID, userID string) string {
	return pair(tagRoleAdmins, roleID, userID)
}

// RoleOwners returns the address of the role-owner relationship container.
func RoleOwners(roleID, userID string) string {
	return pair(tagRoleOwners, roleID, userID)
}

// RoleMembers returns the address of the role-member relationship container.
func RoleMembers(roleID, userID string) string {
	return pair(tagRoleMembers, roleID, userID)
}

// RoleTasks returns the address of the role-task relationship container.
func RoleTasks(roleID, taskID string) string {
	return pair(tagRoleTasks, roleID, taskID)
}

// TaskAdmins returns the address of the task-admin relationship container.
func TaskAdmins(taskID, userID string) string {
	return pair(tagTaskAdmins, taskID, userID)
}

// TaskOwners returns the address of the task-owner relationship container.
func TaskOwners(taskID, userID string) string {
	return pair(tagTaskOwners, taskID, userID)
}

// Proposal returns the address holding every proposal ever opened between
// objectID and relatedID, regardless of proposal type.
func Proposal(objectID, relatedID string) string {
	return pair(tagProposal, objectID, relatedID)
}

// Attributes returns the attributes address for the given entity type.
func Attributes(entity domain.EntityType, id string) string {
	switch entity {
	case domain.EntityUser:
		return User(id)
	case domain.EntityRole:
		return RoleAttributes(id)
	case domain.EntityTask:
		return TaskAttributes(id)
	default:
		// Proposal addresses need both identifiers; there is no
		// single-id attributes form for them.
		return ""
	}
}

// InNamespace reports whether addr belongs to this application.
func InNamespace(addr string) bool {
	return len(addr) == AddressLength && addr[:len(Namespace)] == Namespace
}
