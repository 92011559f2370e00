package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/crestline-erp/approvalflow/internal/application/port"
)

// AssignmentStore implements port.AssignmentStore over the role-partition
// assignment tables. Roles absent from role_scopes act workflow-wide.
type AssignmentStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewAssignmentStore creates a new assignment store
func NewAssignmentStore(db *sql.DB, logger *zap.Logger) port.AssignmentStore {
	return &AssignmentStore{
		db:     db,
		logger: logger,
	}
}

// RolePartitions reports whether the role is partition-scoped and, if so,
// which partition values the actor may act on.
func (s *AssignmentStore) RolePartitions(ctx context.Context, role, actorID string) (bool, []string, error) {
	var scoped int
	err := exec(ctx, s.db).QueryRowContext(ctx,
		`SELECT partition_scoped FROM role_scopes WHERE role = ?`, role,
	).Scan(&scoped)
	if err == sql.ErrNoRows {
		return false, nil, nil
	}
	if err != nil {
		s.logger.Error("Failed to get role scope", zap.String("role", role), zap.Error(err))
		return false, nil, fmt.Errorf("failed to get role scope: %w", err)
	}
	if scoped == 0 {
		return false, nil, nil
	}

	rows, err := exec(ctx, s.db).QueryContext(ctx, `
		SELECT partition_value
		FROM role_partition_assignments
		WHERE role = ? AND actor_id = ?
		ORDER BY partition_value ASC
	`, role, actorID)
	if err != nil {
		s.logger.Error("Failed to list role partitions",
			zap.String("role", role), zap.String("actor_id", actorID), zap.Error(err))
		return false, nil, fmt.Errorf("failed to list role partitions: %w", err)
	}
	defer rows.Close()

	var partitions []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return false, nil, fmt.Errorf("failed to scan partition: %w", err)
		}
		partitions = append(partitions, p)
	}

	return true, partitions, rows.Err()
}

// Verify interface compliance
var _ port.AssignmentStore = (*AssignmentStore)(nil)
