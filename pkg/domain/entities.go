// Package domain defines the persisted entities, relationship containers, and
// message taxonomy of the aclchain access-control ledger.
package domain

// EntityType identifies the type of record stored under a state address.
type EntityType string

// Supported entity type identifiers used in addressing and error reporting.
const (
	// EntityUser identifies a user attributes record.
	EntityUser EntityType = "user"
	// EntityRole identifies a role attributes record.
	EntityRole EntityType = "role"
	// EntityTask identifies a task attributes record.
	EntityTask EntityType = "task"
	// EntityProposal identifies a proposal record.
	EntityProposal EntityType = "proposal"
)

// ProposalStatus enumerates the proposal state machine. OPEN transitions
// exactly once to CONFIRMED or REJECTED; terminal states are immutable.
type ProposalStatus string

// Canonical proposal statuses.
const (
	ProposalOpen      ProposalStatus = "OPEN"
	ProposalConfirmed ProposalStatus = "CONFIRMED"
	ProposalRejected  ProposalStatus = "REJECTED"
)

// ProposalType identifies which relationship a proposal mutates.
type ProposalType string

// Canonical proposal types, one per relationship kind and direction.
const (
	ProposalAddRoleAdmins      ProposalType = "ADD_ROLE_ADMINS"
	ProposalAddRoleOwners      ProposalType = "ADD_ROLE_OWNERS"
	ProposalAddRoleMembers     ProposalType = "ADD_ROLE_MEMBERS"
	ProposalAddRoleTasks       ProposalType = "ADD_ROLE_TASKS"
	ProposalRemoveRoleAdmins   ProposalType = "REMOVE_ROLE_ADMINS"
	ProposalRemoveRoleOwners   ProposalType = "REMOVE_ROLE_OWNERS"
	ProposalRemoveRoleMembers  ProposalType = "REMOVE_ROLE_MEMBERS"
	ProposalRemoveRoleTasks    ProposalType = "REMOVE_ROLE_TASKS"
	ProposalAddTaskAdmins      ProposalType = "ADD_TASK_ADMINS"
	ProposalAddTaskOwners      ProposalType = "ADD_TASK_OWNERS"
	ProposalUpdateUserManagers ProposalType = "UPDATE_USER_MANAGERS"
)

// User is an identity keyed by its signing public key. ManagerID is empty
// until set at creation or through a confirmed manager-update proposal.
type User struct {
	UserID    string `json:"user_id"`
	Name      string `json:"name"`
	Metadata  string `json:"metadata,omitempty"`
	ManagerID string `json:"manager_id,omitempty"`
}

// Role groups users and tasks. Admin, owner, member, and task relationships
// live in separate containers keyed by (role_id, related_id).
type Role struct {
	RoleID   string `json:"role_id"`
	Name     string `json:"name"`
	Metadata string `json:"metadata,omitempty"`
}

// Task is a unit of work ownable and administrable by users.
type Task struct {
	TaskID   string `json:"task_id"`
	Name     string `json:"name"`
	Metadata string `json:"metadata,omitempty"`
}

// Proposal is a pending request to mutate a relationship, requiring a second
// authorized party's confirmation. Closer and CloseReason stay empty until the
// proposal leaves OPEN.
type Proposal struct {
	ProposalID  string         `json:"proposal_id"`
	Type        ProposalType   `json:"proposal_type"`
	ObjectID    string         `json:"object_id"`
	RelatedID   string         `json:"related_id"`
	Opener      string         `json:"opener"`
	Closer      string         `json:"closer,omitempty"`
	Status      ProposalStatus `json:"status"`
	OpenReason  string         `json:"open_reason,omitempty"`
	CloseReason string         `json:"close_reason,omitempty"`
	Metadata    string         `json:"metadata,omitempty"`
}

// RelationshipRecord holds the set of identifiers bound to an owning entity
// under one relationship kind. Identifiers preserves insertion order but is
// treated as a set: membership checks ignore position.
type RelationshipRecord struct {
	ObjectID    string   `json:"object_id"`
	Identifiers []string `json:"identifiers"`
}

// HasIdentifier reports whether id is present in the record's set.
func (r RelationshipRecord) HasIdentifier(id string) bool {
	for _, existing := range r.Identifiers {
		if existing == id {
			return true
		}
	}
	return false
}

// UserContainer is the record wrapper stored at a user address. Multiple
// users may share an address after a hash collision; consumers filter by
// exact UserID.
type UserContainer struct {
	Users []User `json:"users"`
}

// RoleContainer is the record wrapper stored at a role attributes address.
type RoleContainer struct {
	Roles []Role `json:"roles"`
}

// TaskContainer is the record wrapper stored at a task attributes address.
type TaskContainer struct {
	Tasks []Task `json:"tasks"`
}

// RelationshipContainer is the record wrapper stored at a relationship address.
type RelationshipContainer struct {
	Records []RelationshipRecord `json:"records"`
}

// ProposalContainer is the record wrapper stored at a proposal address. All
// historical proposals between one (object, related) pair share the address,
// distinguished by ProposalID and Status.
type ProposalContainer struct {
	Proposals []Proposal `json:"proposals"`
}

// OpenProposal returns the open proposal matching the given triple, if any.
func (c ProposalContainer) OpenProposal(objectID, relatedID string, typ ProposalType) (Proposal, bool) {
	for _, p := range c.Proposals {
		if p.Status == ProposalOpen && p.ObjectID == objectID && p.RelatedID == relatedID && p.Type == typ {
			return p, true
		}
	}
	return Proposal{}, false
}

// FindProposal returns the proposal with the given id and its index, if
// present. Colliding containers can hold proposals for other object/related
// pairs, so the lookup filters by the full triple.
func (c ProposalContainer) FindProposal(proposalID, objectID, relatedID string) (Proposal, int, bool) {
	for i, p := range c.Proposals {
		if p.ProposalID == proposalID && p.ObjectID == objectID && p.RelatedID == relatedID {
			return p, i, true
		}
	}
	return Proposal{}, -1, false
}
