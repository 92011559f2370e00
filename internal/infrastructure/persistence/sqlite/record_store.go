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

// RecordStore implements port.RecordStore
type RecordStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewRecordStore creates a new record store
func NewRecordStore(db *sql.DB, logger *zap.Logger) port.RecordStore {
	return &RecordStore{
		db:     db,
		logger: logger,
	}
}

const recordColumns = `id, workflow_id, entity_ref, status, level, partition_value,
	batch_key, mirror_field, created_by, created_at, updated_at`

// Create inserts a new record
func (s *RecordStore) Create(ctx context.Context, rec *entity.Record) error {
	query := `
		INSERT INTO approval_records (
			id, workflow_id, entity_ref, status, level, partition_value,
			batch_key, mirror_field, created_by, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := exec(ctx, s.db).ExecContext(ctx, query,
		rec.ID,
		rec.WorkflowID,
		rec.EntityRef,
		rec.Status.String(),
		rec.Level,
		rec.Partition,
		rec.BatchKey,
		rec.MirrorField,
		rec.CreatedBy,
		rec.CreatedAt,
		rec.UpdatedAt,
	)
	if err != nil {
		s.logger.Error("Failed to create record", zap.String("record_id", rec.ID), zap.Error(err))
		return fmt.Errorf("failed to create record: %w", err)
	}

	return nil
}

// GetByID retrieves a record by ID
func (s *RecordStore) GetByID(ctx context.Context, id string) (*entity.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM approval_records WHERE id = ?`

	rec, err := scanRecord(exec(ctx, s.db).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", approval.ErrRecordNotFound, id)
	}
	if err != nil {
		s.logger.Error("Failed to get record", zap.String("record_id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get record: %w", err)
	}

	return rec, nil
}

// ListByBatchKey retrieves all records sharing a batch key, terminal ones
// included.
func (s *RecordStore) ListByBatchKey(ctx context.Context, workflowID, batchKey string) ([]*entity.Record, error) {
	query := `SELECT ` + recordColumns + `
		FROM approval_records
		WHERE workflow_id = ? AND batch_key = ?
		ORDER BY created_at ASC`

	rows, err := exec(ctx, s.db).QueryContext(ctx, query, workflowID, batchKey)
	if err != nil {
		s.logger.Error("Failed to list records by batch key",
			zap.String("batch_key", batchKey), zap.Error(err))
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	defer rows.Close()

	var records []*entity.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}

// ListByWorkflowID retrieves every record routed through a workflow
func (s *RecordStore) ListByWorkflowID(ctx context.Context, workflowID string) ([]*entity.Record, error) {
	query := `SELECT ` + recordColumns + `
		FROM approval_records
		WHERE workflow_id = ?
		ORDER BY created_at ASC`

	rows, err := exec(ctx, s.db).QueryContext(ctx, query, workflowID)
	if err != nil {
		s.logger.Error("Failed to list records by workflow",
			zap.String("workflow_id", workflowID), zap.Error(err))
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	defer rows.Close()

	var records []*entity.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}

// MoveLevel bumps the record's level with a compare-and-swap on
// (id, level, status) so a concurrent second advance at the same level
// fails the precondition.
func (s *RecordStore) MoveLevel(ctx context.Context, id string, fromLevel, toLevel int) error {
	query := `
		UPDATE approval_records
		SET level = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND level = ? AND status = ?
	`

	res, err := exec(ctx, s.db).ExecContext(ctx, query, toLevel, id, fromLevel, entity.StatusVerification.String())
	if err != nil {
		s.logger.Error("Failed to move record level", zap.String("record_id", id), zap.Error(err))
		return fmt.Errorf("failed to move level: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: record %s moved past level %d", approval.ErrConflict, id, fromLevel)
	}

	return nil
}

// SetTerminal stamps a terminal status iff the record is still in
// VERIFICATION. When the record carries a mirror field, a REJECTED status
// is mirrored into mirror_status for denormalized readers.
func (s *RecordStore) SetTerminal(ctx context.Context, id string, status entity.Status) error {
	if !status.IsTerminal() {
		return fmt.Errorf("status %s is not terminal", status)
	}

	query := `
		UPDATE approval_records
		SET status = ?,
			mirror_status = CASE WHEN mirror_field != '' AND ? = 'REJECTED' THEN 'Rejected' ELSE mirror_status END,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND status = ?
	`

	res, err := exec(ctx, s.db).ExecContext(ctx, query,
		status.String(), status.String(), id, entity.StatusVerification.String())
	if err != nil {
		s.logger.Error("Failed to finalize record", zap.String("record_id", id), zap.Error(err))
		return fmt.Errorf("failed to finalize record: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: record %s already terminal", approval.ErrConflict, id)
	}

	return nil
}

// rowScanner covers *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row rowScanner) (*entity.Record, error) {
	var rec entity.Record
	var status string
	err := row.Scan(
		&rec.ID,
		&rec.WorkflowID,
		&rec.EntityRef,
		&status,
		&rec.Level,
		&rec.Partition,
		&rec.BatchKey,
		&rec.MirrorField,
		&rec.CreatedBy,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	rec.Status = entity.Status(status)
	return &rec, nil
}

// Verify interface compliance
var _ port.RecordStore = (*RecordStore)(nil)
