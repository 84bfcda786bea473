package access

import (
	"time"
)

// Role represents a user's role within a team
type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
	RoleViewer Role = "viewer"
)

// Valid reports whether the role is one of the closed set.
// Values read from storage that fail this check grant nothing.
func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RoleAdmin, RoleMember, RoleViewer:
		return true
	}
	return false
}

// SharePermission represents the permission level of a direct task share
type SharePermission string

const (
	PermissionView SharePermission = "view"
	PermissionEdit SharePermission = "edit"
)

// Valid reports whether the permission is one of the closed set
func (p SharePermission) Valid() bool {
	return p == PermissionView || p == PermissionEdit
}

// Action represents an operation a caller may attempt
type Action string

const (
	// Task-level actions
	ActionView   Action = "view"
	ActionEdit   Action = "edit"
	ActionDelete Action = "delete"
	ActionShare  Action = "share"

	// Team-level actions
	ActionCreateTask    Action = "create_task"
	ActionEditAnyTask   Action = "edit_any_task"
	ActionDeleteAnyTask Action = "delete_any_task"
	ActionInviteMember  Action = "invite_member"
	ActionRemoveMember  Action = "remove_member"
	ActionChangeRole    Action = "change_role"
	ActionDeleteTeam    Action = "delete_team"
)

// TaskAction reports whether the action is one of the four task-level
// actions a gate decision can answer.
func (a Action) TaskAction() bool {
	switch a {
	case ActionView, ActionEdit, ActionDelete, ActionShare:
		return true
	}
	return false
}

// ActionSet is a set of granted actions
type ActionSet map[Action]bool

// Has reports whether the set grants the action
func (s ActionSet) Has(a Action) bool {
	return s[a]
}

// teamActionTable maps each team role to the actions it grants. A member's
// right to edit or delete tasks they personally created is carried by the
// ownership channel, not by this table.
var teamActionTable = map[Role][]Action{
	RoleOwner: {
		ActionView, ActionCreateTask, ActionEditAnyTask, ActionDeleteAnyTask,
		ActionInviteMember, ActionRemoveMember, ActionChangeRole, ActionDeleteTeam,
	},
	RoleAdmin: {
		ActionView, ActionCreateTask, ActionEditAnyTask, ActionDeleteAnyTask,
		ActionInviteMember, ActionRemoveMember,
	},
	RoleMember: {ActionView, ActionCreateTask},
	RoleViewer: {ActionView},
}

// TeamActions returns the actions granted by a team role.
// Unknown roles return the empty set: fail closed.
func TeamActions(role Role) ActionSet {
	actions, ok := teamActionTable[role]
	if !ok {
		return ActionSet{}
	}
	set := make(ActionSet, len(actions))
	for _, a := range actions {
		set[a] = true
	}
	return set
}

// ShareActions returns the actions granted by a share permission.
// A share never grants delete or onward sharing. Unknown permissions
// return the empty set.
func ShareActions(permission SharePermission) ActionSet {
	switch permission {
	case PermissionView:
		return ActionSet{ActionView: true}
	case PermissionEdit:
		return ActionSet{ActionView: true, ActionEdit: true}
	}
	return ActionSet{}
}

// Channel identifies the authorization channel that contributed a grant
type Channel string

const (
	ChannelNone  Channel = "none"
	ChannelOwner Channel = "owner"
	ChannelTeam  Channel = "team"
	ChannelShare Channel = "share"
)

// Decision is the effective set of rights for one (caller, task) pair.
// Channels records which channels contributed, for diagnostics only;
// it is never written to a response body.
type Decision struct {
	CanView   bool      `json:"can_view"`
	CanEdit   bool      `json:"can_edit"`
	CanDelete bool      `json:"can_delete"`
	CanShare  bool      `json:"can_share"`
	Channels  []Channel `json:"-"`
	CheckedAt time.Time `json:"checked_at"`
}

// Grants reports whether the decision grants the given task action
func (d *Decision) Grants(action Action) bool {
	switch action {
	case ActionView:
		return d.CanView
	case ActionEdit:
		return d.CanEdit
	case ActionDelete:
		return d.CanDelete
	case ActionShare:
		return d.CanShare
	}
	return false
}

// Outcome is the result of an authorization request
type Outcome string

const (
	OutcomeAllowed         Outcome = "allowed"
	OutcomeDeniedNotFound  Outcome = "denied_not_found"
	OutcomeDeniedForbidden Outcome = "denied_forbidden"
)

// DenialReason is the closed set of reason kinds a denial may carry.
// Reasons are kinds, never free text, so response bodies cannot leak
// which channel was evaluated or what the caller almost had.
type DenialReason string

const (
	ReasonNotAuthenticated   DenialReason = "not_authenticated"
	ReasonNotFound           DenialReason = "not_found"
	ReasonForbidden          DenialReason = "forbidden"
	ReasonInvariantViolation DenialReason = "invariant_violation"
	ReasonStorageError       DenialReason = "storage_error"
)

// GuardResult is the discriminated result of a mutation guard check
type GuardResult struct {
	Allowed bool         `json:"allowed"`
	Reason  DenialReason `json:"reason,omitempty"`
}

func allowed() GuardResult {
	return GuardResult{Allowed: true}
}

func denied(reason DenialReason) GuardResult {
	return GuardResult{Allowed: false, Reason: reason}
}

// MutationKind identifies a guarded state-changing operation
type MutationKind string

const (
	MutationInviteMember MutationKind = "invite_member"
	MutationChangeRole   MutationKind = "change_role"
	MutationRemoveMember MutationKind = "remove_member"
	MutationLeaveTeam    MutationKind = "leave_team"
	MutationDeleteTeam   MutationKind = "delete_team"
)

// Task is the resolver's read model of a task. team_id is nil for a
// personal task.
type Task struct {
	ID        int64  `json:"id"`
	OwnerID   int64  `json:"owner_id"`
	TeamID    *int64 `json:"team_id,omitempty"`
	Title     string `json:"title"`
	Completed bool   `json:"completed"`
}

// Membership is one user's role in one team
type Membership struct {
	TeamID   int64     `json:"team_id"`
	UserID   int64     `json:"user_id"`
	Role     Role      `json:"role"`
	JoinedAt time.Time `json:"joined_at"`
}

// Share is a direct point-to-point share of a task with a user
type Share struct {
	TaskID           int64           `json:"task_id"`
	SharedWithUserID int64           `json:"shared_with_user_id"`
	SharedByUserID   int64           `json:"shared_by_user_id"`
	Permission       SharePermission `json:"permission"`
	CreatedAt        time.Time       `json:"created_at"`
}
