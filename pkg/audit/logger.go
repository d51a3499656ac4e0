package audit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/plank/pkg/contextkeys"
)

// Logger is the interface for audit logging
type Logger interface {
	// Log records an audit event
	Log(ctx context.Context, event *AuditEvent) error

	// Close flushes and closes the logger
	Close() error
}

type noOpLogger struct{}

func (noOpLogger) Log(context.Context, *AuditEvent) error {
	return nil
}

func (noOpLogger) Close() error {
	return nil
}

// NoOp returns a logger that discards every event
func NoOp() Logger {
	return noOpLogger{}
}

// NewEvent builds an event stamped with the current time and the request id in ctx
func NewEvent(ctx context.Context, eventType EventType, status EventStatus) *AuditEvent {
	return &AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		Status:    status,
		RequestID: contextkeys.GetRequestID(ctx),
		Metadata:  make(map[string]interface{}),
	}
}

// Mutation records a successful change made by actorID
func Mutation(ctx context.Context, logger Logger, eventType EventType, actorID int64, resourceType ResourceType, resourceID int64, message string) error {
	event := NewEvent(ctx, eventType, EventStatusSuccess)
	event.UserID = &actorID
	event.ResourceType = resourceType
	event.ResourceID = strconv.FormatInt(resourceID, 10)
	event.Message = message
	return logger.Log(ctx, event)
}

// Denied records a refused operation
func Denied(ctx context.Context, logger Logger, actorID int64, resourceType ResourceType, resourceID int64, reason string) error {
	event := NewEvent(ctx, EventTypeAuthzAccessDenied, EventStatusDenied)
	event.UserID = &actorID
	event.ResourceType = resourceType
	event.ResourceID = strconv.FormatInt(resourceID, 10)
	event.Message = fmt.Sprintf("Access denied: %s", reason)
	return logger.Log(ctx, event)
}

// LogrusLogger writes audit events as structured logrus entries
type LogrusLogger struct {
	logger *logrus.Logger
}

// NewLogrusLogger creates an audit logger on top of logger
func NewLogrusLogger(logger *logrus.Logger) *LogrusLogger {
	if logger == nil {
		logger = logrus.New()
	}
	return &LogrusLogger{logger: logger}
}

// Log implements Logger
func (l *LogrusLogger) Log(ctx context.Context, event *AuditEvent) error {
	fields := logrus.Fields{
		"audit":      true,
		"event_type": string(event.EventType),
		"status":     string(event.Status),
	}
	if event.UserID != nil {
		fields["user_id"] = *event.UserID
	}
	if event.ResourceType != "" {
		fields["resource_type"] = string(event.ResourceType)
		fields["resource_id"] = event.ResourceID
	}
	if event.RequestID != "" {
		fields["request_id"] = event.RequestID
	}
	for k, v := range event.Metadata {
		fields[k] = v
	}

	entry := l.logger.WithFields(fields)
	if event.ErrorMessage != "" {
		entry = entry.WithField("error", event.ErrorMessage)
	}

	switch event.Status {
	case EventStatusDenied, EventStatusFailure:
		entry.Warn(event.Message)
	default:
		entry.Info(event.Message)
	}
	return nil
}

// Close implements Logger
func (l *LogrusLogger) Close() error {
	return nil
}
