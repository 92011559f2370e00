package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/crestline-erp/approvalflow/internal/application/port"
	"github.com/crestline-erp/approvalflow/internal/domain/approval"
	"github.com/crestline-erp/approvalflow/internal/domain/entity"
)

// NotificationStore implements port.NotificationStore. Updates are guarded
// by the row version so concurrent movers of the same live notification
// cannot silently overwrite each other.
type NotificationStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewNotificationStore creates a new notification store
func NewNotificationStore(db *sql.DB, logger *zap.Logger) port.NotificationStore {
	return &NotificationStore{
		db:     db,
		logger: logger,
	}
}

// Create inserts the live notification row for a record. The record_id
// unique index enforces the single-live-row invariant.
func (s *NotificationStore) Create(ctx context.Context, n *entity.Notification) error {
	query := `
		INSERT INTO notifications (
			id, record_id, workflow_id, role, partition_value, level,
			status, message, version, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := exec(ctx, s.db).ExecContext(ctx, query,
		n.ID,
		n.RecordID,
		n.WorkflowID,
		n.Role,
		n.Partition,
		n.Level,
		n.Status,
		n.Message,
		n.Version,
		n.CreatedAt,
		n.UpdatedAt,
	)
	if err != nil {
		s.logger.Error("Failed to create notification",
			zap.String("record_id", n.RecordID), zap.Error(err))
		return fmt.Errorf("failed to create notification: %w", err)
	}

	return nil
}

// GetByRecordID retrieves the live notification row for a record
func (s *NotificationStore) GetByRecordID(ctx context.Context, recordID string) (*entity.Notification, error) {
	query := `
		SELECT id, record_id, workflow_id, role, partition_value, level,
			status, message, version, created_at, updated_at
		FROM notifications
		WHERE record_id = ?
	`

	var n entity.Notification
	err := exec(ctx, s.db).QueryRowContext(ctx, query, recordID).Scan(
		&n.ID,
		&n.RecordID,
		&n.WorkflowID,
		&n.Role,
		&n.Partition,
		&n.Level,
		&n.Status,
		&n.Message,
		&n.Version,
		&n.CreatedAt,
		&n.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: no notification for record %s", approval.ErrRecordNotFound, recordID)
	}
	if err != nil {
		s.logger.Error("Failed to get notification",
			zap.String("record_id", recordID), zap.Error(err))
		return nil, fmt.Errorf("failed to get notification: %w", err)
	}

	return &n, nil
}

// Update persists the row iff the caller's version still matches, then
// increments it. approval.ErrConflict on a stale version.
func (s *NotificationStore) Update(ctx context.Context, n *entity.Notification) error {
	query := `
		UPDATE notifications
		SET role = ?, level = ?, status = ?, message = ?,
			version = version + 1, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND version = ?
	`

	res, err := exec(ctx, s.db).ExecContext(ctx, query,
		n.Role,
		n.Level,
		n.Status,
		n.Message,
		n.ID,
		n.Version,
	)
	if err != nil {
		s.logger.Error("Failed to update notification",
			zap.String("id", n.ID), zap.Error(err))
		return fmt.Errorf("failed to update notification: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: notification %s version %d is stale", approval.ErrConflict, n.ID, n.Version)
	}

	n.Version++
	return nil
}

// ListPending retrieves PENDING notifications matching the query
func (s *NotificationStore) ListPending(ctx context.Context, q port.PendingQuery) ([]*entity.Notification, error) {
	if len(q.Levels) == 0 {
		return nil, nil
	}

	var sb strings.Builder
	sb.WriteString(`
		SELECT id, record_id, workflow_id, role, partition_value, level,
			status, message, version, created_at, updated_at
		FROM notifications
		WHERE workflow_id = ? AND role = ? AND status = ?`)
	args := []interface{}{q.WorkflowID, q.Role, entity.NotificationPending}

	sb.WriteString(" AND level IN (" + placeholders(len(q.Levels)) + ")")
	for _, l := range q.Levels {
		args = append(args, l)
	}

	if len(q.Partitions) > 0 {
		sb.WriteString(" AND partition_value IN (" + placeholders(len(q.Partitions)) + ")")
		for _, p := range q.Partitions {
			args = append(args, p)
		}
	}

	sb.WriteString(" ORDER BY created_at ASC")

	rows, err := exec(ctx, s.db).QueryContext(ctx, sb.String(), args...)
	if err != nil {
		s.logger.Error("Failed to list pending notifications",
			zap.String("workflow_id", q.WorkflowID), zap.String("role", q.Role), zap.Error(err))
		return nil, fmt.Errorf("failed to list pending notifications: %w", err)
	}
	defer rows.Close()

	var notifs []*entity.Notification
	for rows.Next() {
		var n entity.Notification
		err := rows.Scan(
			&n.ID,
			&n.RecordID,
			&n.WorkflowID,
			&n.Role,
			&n.Partition,
			&n.Level,
			&n.Status,
			&n.Message,
			&n.Version,
			&n.CreatedAt,
			&n.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		notifs = append(notifs, &n)
	}

	return notifs, rows.Err()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// Verify interface compliance
var _ port.NotificationStore = (*NotificationStore)(nil)
