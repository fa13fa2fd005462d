package domain

import "encoding/json"

// MessageType tags the payload content of a transaction. The set is closed: a
// payload carrying any other value is rejected as an internal error, since a
// correctly built client can never produce one.
type MessageType string

// Entity creation messages.
const (
	MessageCreateUser MessageType = "CREATE_USER"
	MessageCreateRole MessageType = "CREATE_ROLE"
	MessageCreateTask MessageType = "CREATE_TASK"
)

// Role relationship messages.
const (
	MessageProposeAddRoleAdmins  MessageType = "PROPOSE_ADD_ROLE_ADMINS"
	MessageConfirmAddRoleAdmins  MessageType = "CONFIRM_ADD_ROLE_ADMINS"
	MessageRejectAddRoleAdmins   MessageType = "REJECT_ADD_ROLE_ADMINS"
	MessageProposeAddRoleOwners  MessageType = "PROPOSE_ADD_ROLE_OWNERS"
	MessageConfirmAddRoleOwners  MessageType = "CONFIRM_ADD_ROLE_OWNERS"
	MessageRejectAddRoleOwners   MessageType = "REJECT_ADD_ROLE_OWNERS"
	MessageProposeAddRoleMembers MessageType = "PROPOSE_ADD_ROLE_MEMBERS"
	MessageConfirmAddRoleMembers MessageType = "CONFIRM_ADD_ROLE_MEMBERS"
	MessageRejectAddRoleMembers  MessageType = "REJECT_ADD_ROLE_MEMBERS"
	MessageProposeAddRoleTasks   MessageType = "PROPOSE_ADD_ROLE_TASKS"
	MessageConfirmAddRoleTasks   MessageType = "CONFIRM_ADD_ROLE_TASKS"
	MessageRejectAddRoleTasks    MessageType = "REJECT_ADD_ROLE_TASKS"

	MessageProposeRemoveRoleAdmins  MessageType = "PROPOSE_REMOVE_ROLE_ADMINS"
	MessageConfirmRemoveRoleAdmins  MessageType = "CONFIRM_REMOVE_ROLE_ADMINS"
	MessageRejectRemoveRoleAdmins   MessageType = "REJECT_REMOVE_ROLE_ADMINS"
	MessageProposeRemoveRoleOwners  MessageType = "PROPOSE_REMOVE_ROLE_OWNERS"
	MessageConfirmRemoveRoleOwners  MessageType = "CONFIRM_REMOVE_ROLE_OWNERS"
	MessageRejectRemoveRoleOwners   MessageType = "REJECT_REMOVE_ROLE_OWNERS"
	MessageProposeRemoveRoleMembers MessageType = "PROPOSE_REMOVE_ROLE_MEMBERS"
	MessageConfirmRemoveRoleMembers MessageType = "CONFIRM_REMOVE_ROLE_MEMBERS"
	MessageRejectRemoveRoleMembers  MessageType = "REJECT_REMOVE_ROLE_MEMBERS"
	MessageProposeRemoveRoleTasks   MessageType = "PROPOSE_REMOVE_ROLE_TASKS"
	MessageConfirmRemoveRoleTasks   MessageType = "CONFIRM_REMOVE_ROLE_TASKS"
	MessageRejectRemoveRoleTasks    MessageType = "REJECT_REMOVE_ROLE_TASKS"
)

// Task relationship messages.
const (
	MessageProposeAddTaskAdmins MessageType = "PROPOSE_ADD_TASK_ADMINS"
	MessageConfirmAddTaskAdmins MessageType = "CONFIRM_ADD_TASK_ADMINS"
	MessageRejectAddTaskAdmins  MessageType = "REJECT_ADD_TASK_ADMINS"
	MessageProposeAddTaskOwners MessageType = "PROPOSE_ADD_TASK_OWNERS"
	MessageConfirmAddTaskOwners MessageType = "CONFIRM_ADD_TASK_OWNERS"
	MessageRejectAddTaskOwners  MessageType = "REJECT_ADD_TASK_OWNERS"
)

// Manager hierarchy messages.
const (
	MessageProposeUpdateUserManagers MessageType = "PROPOSE_UPDATE_USER_MANAGERS"
	MessageConfirmUpdateUserManagers MessageType = "CONFIRM_UPDATE_USER_MANAGERS"
	MessageRejectUpdateUserManagers  MessageType = "REJECT_UPDATE_USER_MANAGERS"
)

// Payload is the tagged wire form of a transaction's content.
type Payload struct {
	Type    MessageType     `json:"message_type"`
	Content json.RawMessage `json:"content"`
}

// CreateUserMessage requests creation of a user record.
type CreateUserMessage struct {
	UserID    string `json:"user_id"`
	Name      string `json:"name"`
	Metadata  string `json:"metadata,omitempty"`
	ManagerID string `json:"manager_id,omitempty"`
}

// CreateRoleMessage requests creation of a role with its initial admin and
// owner sets.
type CreateRoleMessage struct {
	RoleID   string   `json:"role_id"`
	Name     string   `json:"name"`
	Metadata string   `json:"metadata,omitempty"`
	Admins   []string `json:"admins"`
	Owners   []string `json:"owners"`
}

// CreateTaskMessage requests creation of a task with its initial admin and
// owner sets.
type CreateTaskMessage struct {
	TaskID   string   `json:"task_id"`
	Name     string   `json:"name"`
	Metadata string   `json:"metadata,omitempty"`
	Admins   []string `json:"admins"`
	Owners   []string `json:"owners"`
}

// ProposeMessage opens a relationship proposal. ObjectID names the entity
// whose relationship set would change; RelatedID names the entity joining or
// leaving it.
type ProposeMessage struct {
	ProposalID string `json:"proposal_id"`
	ObjectID   string `json:"object_id"`
	RelatedID  string `json:"related_id"`
	Reason     string `json:"reason,omitempty"`
	Metadata   string `json:"metadata,omitempty"`
}

// CloseMessage confirms or rejects an open proposal.
type CloseMessage struct {
	ProposalID string `json:"proposal_id"`
	ObjectID   string `json:"object_id"`
	RelatedID  string `json:"related_id"`
	Reason     string `json:"reason,omitempty"`
}
