// Package engine drives records through their workflow's level chain:
// creation at level 1, role-by-role advancement, finalization or
// rejection, the duplicate-approval guard, and the notification
// side-channel.
package engine

import (
	"context"

	"github.com/crestline-erp/approvalflow/internal/domain/entity"
)

// CreateInput carries the engine-relevant fields of a new record. The
// business module keeps everything else on its own side of the store.
type CreateInput struct {
	WorkflowID string `json:"workflow_id"`
	EntityRef  string `json:"entity_ref"`
	Partition  string `json:"partition,omitempty"`
	BatchKey   string `json:"batch_key,omitempty"`
	// MirrorField optionally names a caller-side column mirroring a
	// terminal REJECTED status.
	MirrorField string `json:"mirror_field,omitempty"`
}

// CreateResult is the outcome of Create.
type CreateResult struct {
	Record       *entity.Record       `json:"record"`
	Notification *entity.Notification `json:"notification"`
}

// ActionResult is the outcome of a single advance or reject.
type ActionResult struct {
	Record  *entity.Record `json:"record"`
	Message string         `json:"message"`
}

// PendingItem is one entry of a role's pending list: the record, its live
// notification, and the full approval history.
type PendingItem struct {
	Record       *entity.Record       `json:"record"`
	Notification *entity.Notification `json:"notification"`
	History      []*entity.AuditEntry `json:"history"`
}

// BatchFailure records one item that failed inside a batch operation.
type BatchFailure struct {
	RecordID string `json:"record_id"`
	Reason   string `json:"reason"`
}

// BatchResult partitions a batch into per-item successes and failures.
// Partial failure is the expected outcome here, not an error.
type BatchResult struct {
	Succeeded []*ActionResult `json:"succeeded"`
	Failed    []BatchFailure  `json:"failed"`
}

// Engine is the approval orchestrator consumed by business modules.
type Engine interface {
	// Create persists a record at level 1 / VERIFICATION, writes the
	// creation audit entry, opens the pending notification and emits to
	// the level-1 role. A workflow without a level-1 route for the
	// record's partition fails approval.ErrWorkflowMisconfigured.
	Create(ctx context.Context, input CreateInput, actor entity.Actor, remarks string) (*CreateResult, error)

	// Advance moves the record one level forward, or finalizes it as
	// APPROVED when the chain is exhausted.
	Advance(ctx context.Context, recordID string, actor entity.Actor, remarks string) (*ActionResult, error)

	// Reject finalizes the record as REJECTED at its current level.
	Reject(ctx context.Context, recordID string, actor entity.Actor, remarks string) (*ActionResult, error)

	// ListPending returns the records awaiting the role's action, each
	// with its ordered approval history.
	ListPending(ctx context.Context, workflowID, role, actorID string) ([]PendingItem, error)

	// AdvanceBatch applies Advance to every record sharing the batch key,
	// isolating per-item failures.
	AdvanceBatch(ctx context.Context, workflowID, batchKey string, actor entity.Actor, remarks string) (*BatchResult, error)

	// RejectBatch applies Reject to every record sharing the batch key.
	RejectBatch(ctx context.Context, workflowID, batchKey string, actor entity.Actor, remarks string) (*BatchResult, error)
}
