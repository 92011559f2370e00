// Package notify maintains the single live notification row per record
// and fans live pending events out to best-effort sinks.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/crestline-erp/approvalflow/internal/application/port"
	"github.com/crestline-erp/approvalflow/internal/domain/entity"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// Channel owns the persisted pending records and the transient emitters.
// The persisted row is the source of truth; sink emissions are freshness
// hints only.
type Channel struct {
	store  port.NotificationStore
	sinks  []port.EventSink
	logger Logger
}

// NewChannel creates a notification channel. Sinks receive fire-and-forget
// role-keyed events; a nil or empty sink list disables live pushes.
func NewChannel(store port.NotificationStore, logger Logger, sinks ...port.EventSink) *Channel {
	return &Channel{
		store:  store,
		sinks:  sinks,
		logger: logger,
	}
}

// Open creates the PENDING notification for a freshly created record,
// addressed to the level-1 role.
func (c *Channel) Open(ctx context.Context, rec *entity.Record, def *entity.LevelDef, message string) (*entity.Notification, error) {
	now := time.Now()
	n := &entity.Notification{
		ID:         uuid.NewString(),
		RecordID:   rec.ID,
		WorkflowID: rec.WorkflowID,
		Role:       def.Role,
		Partition:  rec.Partition,
		Level:      def.Level,
		Status:     entity.NotificationPending,
		Message:    message,
		Version:    1,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := c.store.Create(ctx, n); err != nil {
		return nil, fmt.Errorf("create notification: %w", err)
	}
	return n, nil
}

// MoveTo repoints the live notification at the next level's role. The
// update is version-checked; a concurrent mover surfaces as
// approval.ErrConflict from the store.
func (c *Channel) MoveTo(ctx context.Context, n *entity.Notification, def *entity.LevelDef, message string) error {
	n.Level = def.Level
	n.Role = def.Role
	n.Status = entity.NotificationPending
	n.Message = message

	if err := c.store.Update(ctx, n); err != nil {
		return fmt.Errorf("move notification: %w", err)
	}
	return nil
}

// Finalize freezes the notification in a terminal status. Level and role
// are left as the last acting level and role for audit purposes.
func (c *Channel) Finalize(ctx context.Context, n *entity.Notification, status, message string) error {
	n.Status = status
	n.Message = message

	if err := c.store.Update(ctx, n); err != nil {
		return fmt.Errorf("finalize notification: %w", err)
	}
	return nil
}

// ForRecord loads the live notification row for a record.
func (c *Channel) ForRecord(ctx context.Context, recordID string) (*entity.Notification, error) {
	return c.store.GetByRecordID(ctx, recordID)
}

// Pending queries the live notification rows matching q.
func (c *Channel) Pending(ctx context.Context, q port.PendingQuery) ([]*entity.Notification, error) {
	return c.store.ListPending(ctx, q)
}

// Publish pushes evt to every sink. Sinks are fire-and-forget; failures
// are the sink's problem and never propagate.
func (c *Channel) Publish(ctx context.Context, role string, evt port.PendingEvent) {
	for _, s := range c.sinks {
		s.Emit(ctx, role, evt)
	}
	if c.logger != nil {
		c.logger.Info("Pending event published",
			"role", role,
			"record_id", evt.RecordID,
			"level", evt.Level,
		)
	}
}
