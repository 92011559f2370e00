package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/crestline-erp/approvalflow/internal/application/port"
	"github.com/crestline-erp/approvalflow/internal/domain/entity"
)

// AuditStore implements port.AuditStore. Rows are append-only; nothing in
// this store mutates or deletes.
type AuditStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewAuditStore creates a new audit store
func NewAuditStore(db *sql.DB, logger *zap.Logger) port.AuditStore {
	return &AuditStore{
		db:     db,
		logger: logger,
	}
}

// Append writes one audit entry
func (s *AuditStore) Append(ctx context.Context, e *entity.AuditEntry) error {
	query := `
		INSERT INTO audit_entries (
			record_id, role, level, remarks, actor_id, actor_name, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	result, err := exec(ctx, s.db).ExecContext(ctx, query,
		e.RecordID,
		e.Role,
		e.Level,
		e.Remarks,
		e.ActorID,
		e.ActorName,
		e.CreatedAt,
	)
	if err != nil {
		s.logger.Error("Failed to append audit entry",
			zap.String("record_id", e.RecordID), zap.Error(err))
		return fmt.Errorf("failed to append audit entry: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	e.ID = id
	return nil
}

// ListByRecordID returns the full history for a record ordered by
// (level asc, created_at asc), which reconstructs the approval chain.
func (s *AuditStore) ListByRecordID(ctx context.Context, recordID string) ([]*entity.AuditEntry, error) {
	query := `
		SELECT id, record_id, role, level, remarks, actor_id, actor_name, created_at
		FROM audit_entries
		WHERE record_id = ?
		ORDER BY level ASC, created_at ASC
	`

	rows, err := exec(ctx, s.db).QueryContext(ctx, query, recordID)
	if err != nil {
		s.logger.Error("Failed to list audit entries",
			zap.String("record_id", recordID), zap.Error(err))
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer rows.Close()

	var entries []*entity.AuditEntry
	for rows.Next() {
		var e entity.AuditEntry
		err := rows.Scan(
			&e.ID,
			&e.RecordID,
			&e.Role,
			&e.Level,
			&e.Remarks,
			&e.ActorID,
			&e.ActorName,
			&e.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		entries = append(entries, &e)
	}

	return entries, rows.Err()
}

// ExistsForLevelRole reports whether the role already acted on the record
// at the given level. Levels never repeat, so any match means a duplicate.
func (s *AuditStore) ExistsForLevelRole(ctx context.Context, recordID string, level int, role string) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1 FROM audit_entries
			WHERE record_id = ? AND level = ? AND role = ?
		)
	`

	var exists bool
	err := exec(ctx, s.db).QueryRowContext(ctx, query, recordID, level, role).Scan(&exists)
	if err != nil {
		s.logger.Error("Failed to check audit entry existence",
			zap.String("record_id", recordID), zap.Int("level", level), zap.Error(err))
		return false, fmt.Errorf("failed to check audit entry: %w", err)
	}

	return exists, nil
}

// Verify interface compliance
var _ port.AuditStore = (*AuditStore)(nil)
