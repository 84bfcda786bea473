package audit

import (
	"encoding/json"
	"time"
)

// EventType represents the category of audit event
type EventType string

const (
	// Authentication events
	EventTypeAuthTokenValidate     EventType = "auth.token_validate"
	EventTypeAuthTokenValidateFail EventType = "auth.token_validate_fail"

	// Authorization events
	EventTypeAuthzDecision     EventType = "authz.decision"
	EventTypeAuthzAccessDenied EventType = "authz.access_denied"

	// Team mutation events
	EventTypeTeamCreate       EventType = "team.create"
	EventTypeTeamDelete       EventType = "team.delete"
	EventTypeTeamMemberAdd    EventType = "team.member_add"
	EventTypeTeamMemberRemove EventType = "team.member_remove"
	EventTypeTeamRoleChange   EventType = "team.role_change"

	// Share mutation events
	EventTypeShareCreate EventType = "share.create"
	EventTypeShareRevoke EventType = "share.revoke"

	// Invitation events
	EventTypeInviteCreate EventType = "invite.create"
	EventTypeInviteAccept EventType = "invite.accept"
	EventTypeInvitePurge  EventType = "invite.purge"

	// Task mutation events
	EventTypeTaskCreate EventType = "task.create"
	EventTypeTaskUpdate EventType = "task.update"
	EventTypeTaskDelete EventType = "task.delete"
)

// EventStatus represents the outcome of an event
type EventStatus string

const (
	EventStatusSuccess EventStatus = "success"
	EventStatusFailure EventStatus = "failure"
	EventStatusDenied  EventStatus = "denied"
)

// ResourceType represents the type of resource being accessed
type ResourceType string

const (
	ResourceTypeTask       ResourceType = "task"
	ResourceTypeTeam       ResourceType = "team"
	ResourceTypeShare      ResourceType = "share"
	ResourceTypeUser       ResourceType = "user"
	ResourceTypeInvitation ResourceType = "invitation"
)

// Event represents a single audit log entry
type Event struct {
	// Core fields
	ID        int64       `json:"id"`
	Timestamp time.Time   `json:"timestamp"`
	EventType EventType   `json:"event_type"`
	Status    EventStatus `json:"status"`

	// Actor information
	UserID   *int64 `json:"user_id,omitempty"`
	Username string `json:"username,omitempty"`

	// Resource information
	ResourceType ResourceType `json:"resource_type,omitempty"`
	ResourceID   string       `json:"resource_id,omitempty"`

	// Request context
	IPAddress string `json:"ip_address,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	Method    string `json:"method,omitempty"`
	Path      string `json:"path,omitempty"`

	// Additional details
	Message      string                 `json:"message,omitempty"`
	ErrorMessage string                 `json:"error_message,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
}

// ToJSON converts the audit event to JSON
func (e *Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}
