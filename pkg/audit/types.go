package audit

import (
	"encoding/json"
	"time"
)

// EventType represents the category of audit event
type EventType string

const (
	// Authentication events
	EventTypeAuthTokenCreate EventType = "auth.token_create"
	EventTypeAuthTokenRevoke EventType = "auth.token_revoke"

	// Authorization events
	EventTypeAuthzAccessDenied EventType = "authz.access_denied"

	// Membership events
	EventTypeMemberAdd        EventType = "membership.member_add"
	EventTypeMemberRemove     EventType = "membership.member_remove"
	EventTypeProjectSponsor   EventType = "membership.project_sponsor"
	EventTypeProjectUnsponsor EventType = "membership.project_unsponsor"

	// Data mutation events
	EventTypeDataTeamCreate    EventType = "data.team_create"
	EventTypeDataTeamDelete    EventType = "data.team_delete"
	EventTypeDataProjectCreate EventType = "data.project_create"
	EventTypeDataProjectDelete EventType = "data.project_delete"
	EventTypeDataBoardDelete   EventType = "data.board_delete"
	EventTypeDataWorkItemMove  EventType = "data.work_item_move"

	// Admin events
	EventTypeAdminUserCreate EventType = "admin.user_create"
)

// EventStatus represents the outcome of an event
type EventStatus string

const (
	EventStatusSuccess EventStatus = "success"
	EventStatusFailure EventStatus = "failure"
	EventStatusDenied  EventStatus = "denied"
)

// ResourceType represents the type of resource being touched
type ResourceType string

const (
	ResourceTypeUser     ResourceType = "user"
	ResourceTypeTeam     ResourceType = "team"
	ResourceTypeProject  ResourceType = "project"
	ResourceTypeBoard    ResourceType = "board"
	ResourceTypeWorkItem ResourceType = "work_item"
	ResourceTypeBugItem  ResourceType = "bug_item"
	ResourceTypeComment  ResourceType = "comment"
	ResourceTypeToken    ResourceType = "token"
)

// AuditEvent represents a single audit log entry
type AuditEvent struct {
	Timestamp time.Time   `json:"timestamp"`
	EventType EventType   `json:"event_type"`
	Status    EventStatus `json:"status"`

	// Actor
	UserID *int64 `json:"user_id,omitempty"`

	// Resource
	ResourceType ResourceType `json:"resource_type,omitempty"`
	ResourceID   string       `json:"resource_id,omitempty"`

	RequestID    string                 `json:"request_id,omitempty"`
	Message      string                 `json:"message,omitempty"`
	ErrorMessage string                 `json:"error_message,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
}

// ToJSON converts the audit event to JSON
func (e *AuditEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// FromJSON parses an audit event from JSON
func FromJSON(data []byte) (*AuditEvent, error) {
	var event AuditEvent
	err := json.Unmarshal(data, &event)
	return &event, err
}
