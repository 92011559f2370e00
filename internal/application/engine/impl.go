package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/crestline-erp/approvalflow/internal/application/access"
	"github.com/crestline-erp/approvalflow/internal/application/notify"
	"github.com/crestline-erp/approvalflow/internal/application/port"
	"github.com/crestline-erp/approvalflow/internal/application/registry"
	"github.com/crestline-erp/approvalflow/internal/domain/approval"
	"github.com/crestline-erp/approvalflow/internal/domain/entity"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

const (
	msgAdvanced = "moved to next level"
	msgApproved = "approved"
	msgRejected = "rejected successfully"
)

// engineImpl is the concrete implementation of Engine. Every multi-step
// mutation (guard check, audit write, record mutation, notification
// update) runs inside one storage transaction; live emission happens after
// commit, fire-and-forget.
type engineImpl struct {
	records   port.RecordStore
	audit     port.AuditStore
	registry  *registry.Registry
	resolver  *access.Resolver
	channel   *notify.Channel
	txManager port.TransactionManager
	logger    Logger
}

// Option configures the engine.
type Option func(*engineImpl)

// WithLogger sets a logger for the engine.
func WithLogger(logger Logger) Option {
	return func(e *engineImpl) {
		e.logger = logger
	}
}

// NewEngine creates an approval engine.
func NewEngine(
	records port.RecordStore,
	audit port.AuditStore,
	reg *registry.Registry,
	resolver *access.Resolver,
	channel *notify.Channel,
	txManager port.TransactionManager,
	opts ...Option,
) Engine {
	e := &engineImpl{
		records:   records,
		audit:     audit,
		registry:  reg,
		resolver:  resolver,
		channel:   channel,
		txManager: txManager,
		logger:    nopLogger{},
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Create persists a record at level 1 and routes it to the level-1 role.
func (e *engineImpl) Create(ctx context.Context, input CreateInput, actor entity.Actor, remarks string) (*CreateResult, error) {
	if remarks == "" {
		return nil, fmt.Errorf("%w: remarks are required", approval.ErrValidation)
	}
	if input.WorkflowID == "" {
		return nil, fmt.Errorf("%w: workflow id is required", approval.ErrValidation)
	}

	wf, err := e.registry.Get(ctx, input.WorkflowID)
	if err != nil {
		return nil, err
	}
	if wf.Partitioned && input.Partition == "" {
		return nil, fmt.Errorf("%w: workflow %s requires a partition value", approval.ErrValidation, wf.ID)
	}

	def, err := e.registry.Resolve(ctx, wf.ID, 1, input.Partition)
	if err != nil {
		if errors.Is(err, approval.ErrLevelNotFound) {
			// Creation requires a level-1 route; a missing one is a
			// provisioning mistake, not chain exhaustion.
			return nil, fmt.Errorf("%w: workflow %s partition %q", approval.ErrWorkflowMisconfigured, wf.ID, input.Partition)
		}
		return nil, err
	}

	now := time.Now()
	rec := &entity.Record{
		ID:          uuid.NewString(),
		WorkflowID:  wf.ID,
		EntityRef:   input.EntityRef,
		Status:      entity.StatusVerification,
		Level:       1,
		Partition:   input.Partition,
		BatchKey:    input.BatchKey,
		MirrorField: input.MirrorField,
		CreatedBy:   actor.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	message := fmt.Sprintf("%s awaiting approval at level %d", wf.EntityType, def.Level)

	var n *entity.Notification
	err = e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := e.records.Create(txCtx, rec); err != nil {
			return fmt.Errorf("create record: %w", err)
		}

		if err := e.audit.Append(txCtx, &entity.AuditEntry{
			RecordID:  rec.ID,
			Role:      actor.Role,
			Level:     entity.CreationLevel,
			Remarks:   remarks,
			ActorID:   actor.ID,
			ActorName: actor.Name,
			CreatedAt: now,
		}); err != nil {
			return fmt.Errorf("append creation audit: %w", err)
		}

		created, err := e.channel.Open(txCtx, rec, def, message)
		if err != nil {
			return err
		}
		n = created
		return nil
	})
	if err != nil {
		e.logger.Error("Failed to create record", "error", err, "workflow_id", wf.ID)
		return nil, err
	}

	e.channel.Publish(ctx, def.Role, port.PendingEvent{
		WorkflowID: wf.ID,
		RecordID:   rec.ID,
		Level:      def.Level,
		Partition:  rec.Partition,
		Message:    message,
		Delta:      1,
	})

	e.logger.Info("Record created",
		"record_id", rec.ID,
		"workflow_id", wf.ID,
		"level_1_role", def.Role,
	)
	return &CreateResult{Record: rec, Notification: n}, nil
}

// Advance moves the record to the next level, or finalizes it as APPROVED
// when the registry reports the chain exhausted.
func (e *engineImpl) Advance(ctx context.Context, recordID string, actor entity.Actor, remarks string) (*ActionResult, error) {
	rec, err := e.records.GetByID(ctx, recordID)
	if err != nil {
		return nil, err
	}
	if rec.IsTerminal() {
		return nil, fmt.Errorf("%w: record %s is %s", approval.ErrInvalidState, rec.ID, rec.Status)
	}

	var (
		next      *entity.LevelDef
		exhausted bool
		message   string
	)

	err = e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		// Duplicate-approval guard, inside the same transaction as the
		// mutation it protects.
		acted, err := e.audit.ExistsForLevelRole(txCtx, rec.ID, rec.Level, actor.Role)
		if err != nil {
			return fmt.Errorf("duplicate guard: %w", err)
		}
		if acted {
			return fmt.Errorf("%w: record %s level %d role %s", approval.ErrAlreadyProcessed, rec.ID, rec.Level, actor.Role)
		}

		if err := e.audit.Append(txCtx, &entity.AuditEntry{
			RecordID:  rec.ID,
			Role:      actor.Role,
			Level:     rec.Level,
			Remarks:   remarks,
			ActorID:   actor.ID,
			ActorName: actor.Name,
			CreatedAt: time.Now(),
		}); err != nil {
			return fmt.Errorf("append audit: %w", err)
		}

		next, err = e.registry.Resolve(txCtx, rec.WorkflowID, rec.Level+1, rec.Partition)
		switch {
		case err == nil:
			if err := e.records.MoveLevel(txCtx, rec.ID, rec.Level, next.Level); err != nil {
				return err
			}
			rec.Level = next.Level

			n, err := e.channel.ForRecord(txCtx, rec.ID)
			if err != nil {
				return err
			}
			message = msgAdvanced
			pendingMsg := fmt.Sprintf("awaiting approval at level %d", next.Level)
			return e.channel.MoveTo(txCtx, n, next, pendingMsg)

		case errors.Is(err, approval.ErrLevelNotFound):
			// Chain exhausted: the record is fully approved.
			exhausted = true
			if err := e.records.SetTerminal(txCtx, rec.ID, entity.StatusApproved); err != nil {
				return err
			}
			rec.Status = entity.StatusApproved

			n, err := e.channel.ForRecord(txCtx, rec.ID)
			if err != nil {
				return err
			}
			message = msgApproved
			return e.channel.Finalize(txCtx, n, entity.NotificationApproved, msgApproved)

		default:
			return err
		}
	})
	if err != nil {
		e.logger.Error("Failed to advance record", "error", err, "record_id", recordID)
		return nil, err
	}

	if !exhausted {
		e.channel.Publish(ctx, next.Role, port.PendingEvent{
			WorkflowID: rec.WorkflowID,
			RecordID:   rec.ID,
			Level:      next.Level,
			Partition:  rec.Partition,
			Message:    fmt.Sprintf("awaiting approval at level %d", next.Level),
			Delta:      1,
		})
	}

	e.logger.Info("Record advanced",
		"record_id", rec.ID,
		"level", rec.Level,
		"status", rec.Status,
		"actor_role", actor.Role,
	)
	return &ActionResult{Record: rec, Message: message}, nil
}

// Reject finalizes the record as REJECTED. The level is left untouched so
// the history shows where the chain stopped.
func (e *engineImpl) Reject(ctx context.Context, recordID string, actor entity.Actor, remarks string) (*ActionResult, error) {
	rec, err := e.records.GetByID(ctx, recordID)
	if err != nil {
		return nil, err
	}
	if rec.IsTerminal() {
		return nil, fmt.Errorf("%w: record %s is %s", approval.ErrInvalidState, rec.ID, rec.Status)
	}

	err = e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := e.audit.Append(txCtx, &entity.AuditEntry{
			RecordID:  rec.ID,
			Role:      actor.Role,
			Level:     rec.Level,
			Remarks:   remarks,
			ActorID:   actor.ID,
			ActorName: actor.Name,
			CreatedAt: time.Now(),
		}); err != nil {
			return fmt.Errorf("append audit: %w", err)
		}

		if err := e.records.SetTerminal(txCtx, rec.ID, entity.StatusRejected); err != nil {
			// A concurrent terminal write means the record is already
			// closed; report it as such.
			if errors.Is(err, approval.ErrConflict) {
				return fmt.Errorf("%w: record %s", approval.ErrInvalidState, rec.ID)
			}
			return err
		}
		rec.Status = entity.StatusRejected

		n, err := e.channel.ForRecord(txCtx, rec.ID)
		if err != nil {
			return err
		}
		return e.channel.Finalize(txCtx, n, entity.NotificationRejected, msgRejected)
	})
	if err != nil {
		e.logger.Error("Failed to reject record", "error", err, "record_id", recordID)
		return nil, err
	}

	e.logger.Info("Record rejected",
		"record_id", rec.ID,
		"level", rec.Level,
		"actor_role", actor.Role,
	)
	return &ActionResult{Record: rec, Message: msgRejected}, nil
}

// ListPending resolves the role's eligible levels and returns the matching
// live notifications joined to their records and histories.
func (e *engineImpl) ListPending(ctx context.Context, workflowID, role, actorID string) ([]PendingItem, error) {
	defs, err := e.resolver.EligibleLevels(ctx, workflowID, role, actorID)
	if err != nil {
		return nil, err
	}

	wf, err := e.registry.Get(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	q := port.PendingQuery{WorkflowID: workflowID, Role: role}
	seenLevel := make(map[int]bool)
	seenPartition := make(map[string]bool)
	for _, d := range defs {
		if !seenLevel[d.Level] {
			seenLevel[d.Level] = true
			q.Levels = append(q.Levels, d.Level)
		}
		if wf.Partitioned && !seenPartition[d.Partition] {
			seenPartition[d.Partition] = true
			q.Partitions = append(q.Partitions, d.Partition)
		}
	}

	notifs, err := e.channel.Pending(ctx, q)
	if err != nil {
		return nil, err
	}

	items := make([]PendingItem, 0, len(notifs))
	for _, n := range notifs {
		rec, err := e.records.GetByID(ctx, n.RecordID)
		if err != nil {
			return nil, err
		}
		history, err := e.audit.ListByRecordID(ctx, n.RecordID)
		if err != nil {
			return nil, err
		}
		items = append(items, PendingItem{Record: rec, Notification: n, History: history})
	}

	return items, nil
}

// AdvanceBatch applies Advance to every record under the batch key. One
// item's failure never aborts the rest.
func (e *engineImpl) AdvanceBatch(ctx context.Context, workflowID, batchKey string, actor entity.Actor, remarks string) (*BatchResult, error) {
	return e.runBatch(ctx, workflowID, batchKey, func(id string) (*ActionResult, error) {
		return e.Advance(ctx, id, actor, remarks)
	})
}

// RejectBatch applies Reject to every record under the batch key.
func (e *engineImpl) RejectBatch(ctx context.Context, workflowID, batchKey string, actor entity.Actor, remarks string) (*BatchResult, error) {
	return e.runBatch(ctx, workflowID, batchKey, func(id string) (*ActionResult, error) {
		return e.Reject(ctx, id, actor, remarks)
	})
}

func (e *engineImpl) runBatch(ctx context.Context, workflowID, batchKey string, op func(id string) (*ActionResult, error)) (*BatchResult, error) {
	if batchKey == "" {
		return nil, fmt.Errorf("%w: batch key is required", approval.ErrValidation)
	}

	recs, err := e.records.ListByBatchKey(ctx, workflowID, batchKey)
	if err != nil {
		return nil, err
	}

	result := &BatchResult{}
	for _, rec := range recs {
		res, err := op(rec.ID)
		if err != nil {
			result.Failed = append(result.Failed, BatchFailure{RecordID: rec.ID, Reason: err.Error()})
			continue
		}
		result.Succeeded = append(result.Succeeded, res)
	}

	e.logger.Info("Batch processed",
		"batch_key", batchKey,
		"succeeded", len(result.Succeeded),
		"failed", len(result.Failed),
	)
	return result, nil
}

type nopLogger struct{}

func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
