package audit

import (
	"context"
	"time"

	"github.com/quillback/taskdeck/pkg/contextkeys"
)

// Logger is the interface for audit logging
type Logger interface {
	// Log logs an audit event
	Log(ctx context.Context, event *Event) error

	// LogAuthorization logs an authorization decision for a resource
	LogAuthorization(ctx context.Context, eventType EventType, userID *int64, resourceType ResourceType, resourceID string, status EventStatus, message string) error

	// LogMutation logs a guarded mutation against a team or share
	LogMutation(ctx context.Context, eventType EventType, userID *int64, resourceType ResourceType, resourceID string, status EventStatus, message string) error

	// Close closes the logger and flushes any buffered logs
	Close() error
}

// buildBaseEvent creates a base audit event with common fields populated
func buildBaseEvent(ctx context.Context, eventType EventType, status EventStatus) *Event {
	return &Event{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		Status:    status,
		RequestID: contextkeys.GetRequestID(ctx),
		Metadata:  make(map[string]interface{}),
	}
}

// NoOpLogger is a logger that discards every event. It is used when audit
// logging is disabled and as the default in tests.
type NoOpLogger struct{}

func (l *NoOpLogger) Log(ctx context.Context, event *Event) error {
	return nil
}

func (l *NoOpLogger) LogAuthorization(ctx context.Context, eventType EventType, userID *int64, resourceType ResourceType, resourceID string, status EventStatus, message string) error {
	return nil
}

func (l *NoOpLogger) LogMutation(ctx context.Context, eventType EventType, userID *int64, resourceType ResourceType, resourceID string, status EventStatus, message string) error {
	return nil
}

func (l *NoOpLogger) Close() error {
	return nil
}
