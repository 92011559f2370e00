package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/crestline-erp/approvalflow/internal/application/port"
	"github.com/crestline-erp/approvalflow/internal/domain/approval"
	"github.com/crestline-erp/approvalflow/internal/domain/entity"
)

// WorkflowStore implements port.WorkflowStore. Definitions are provisioned
// out-of-band; this store only reads.
type WorkflowStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewWorkflowStore creates a new workflow store
func NewWorkflowStore(db *sql.DB, logger *zap.Logger) port.WorkflowStore {
	return &WorkflowStore{
		db:     db,
		logger: logger,
	}
}

// GetByID loads a workflow definition with its full level chain
func (s *WorkflowStore) GetByID(ctx context.Context, workflowID string) (*entity.Workflow, error) {
	var wf entity.Workflow
	var partitioned int
	err := exec(ctx, s.db).QueryRowContext(ctx,
		`SELECT id, entity_type, partitioned FROM workflows WHERE id = ?`, workflowID,
	).Scan(&wf.ID, &wf.EntityType, &partitioned)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", approval.ErrWorkflowNotFound, workflowID)
	}
	if err != nil {
		s.logger.Error("Failed to get workflow", zap.String("workflow_id", workflowID), zap.Error(err))
		return nil, fmt.Errorf("failed to get workflow: %w", err)
	}
	wf.Partitioned = partitioned != 0

	rows, err := exec(ctx, s.db).QueryContext(ctx, `
		SELECT level, role, partition_value, approval_limit
		FROM workflow_levels
		WHERE workflow_id = ?
		ORDER BY level ASC, partition_value ASC
	`, workflowID)
	if err != nil {
		s.logger.Error("Failed to get workflow levels", zap.String("workflow_id", workflowID), zap.Error(err))
		return nil, fmt.Errorf("failed to get workflow levels: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var d entity.LevelDef
		var limit sql.NullFloat64
		if err := rows.Scan(&d.Level, &d.Role, &d.Partition, &limit); err != nil {
			return nil, fmt.Errorf("failed to scan workflow level: %w", err)
		}
		if limit.Valid {
			d.ApprovalLimit = limit.Float64
		}
		wf.Levels = append(wf.Levels, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &wf, nil
}

// Verify interface compliance
var _ port.WorkflowStore = (*WorkflowStore)(nil)
