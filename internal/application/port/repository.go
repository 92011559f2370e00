package port

import (
	"context"

	"github.com/crestline-erp/approvalflow/internal/domain/entity"
)

// RecordStore defines the persistence operations the engine needs over the
// generic record shape. Each business module implements it for its own
// entity type; the sqlite implementation in infrastructure is the default.
type RecordStore interface {
	Create(ctx context.Context, rec *entity.Record) error

	// GetByID returns approval.ErrRecordNotFound when the id is unknown.
	GetByID(ctx context.Context, id string) (*entity.Record, error)

	// ListByBatchKey returns every record sharing the batch key, terminal
	// ones included.
	ListByBatchKey(ctx context.Context, workflowID, batchKey string) ([]*entity.Record, error)

	// ListByWorkflowID returns every record routed through the workflow,
	// oldest first. Feeds history reporting.
	ListByWorkflowID(ctx context.Context, workflowID string) ([]*entity.Record, error)

	// MoveLevel bumps the record from fromLevel to toLevel iff it is still
	// at fromLevel and non-terminal. approval.ErrConflict on a precondition
	// miss, so a concurrent second advance fails instead of racing past the
	// duplicate guard.
	MoveLevel(ctx context.Context, id string, fromLevel, toLevel int) error

	// SetTerminal stamps APPROVED or REJECTED iff the record is still
	// non-terminal. approval.ErrConflict on a precondition miss.
	SetTerminal(ctx context.Context, id string, status entity.Status) error
}

// WorkflowStore loads workflow definitions with their level chains.
// Definitions are provisioned out-of-band; the registry caches reads.
type WorkflowStore interface {
	// GetByID returns approval.ErrWorkflowNotFound when the id is unknown.
	GetByID(ctx context.Context, workflowID string) (*entity.Workflow, error)
}

// AuditStore is the append-only action history.
type AuditStore interface {
	Append(ctx context.Context, e *entity.AuditEntry) error

	// ListByRecordID returns the full history ordered by (level, created_at).
	ListByRecordID(ctx context.Context, recordID string) ([]*entity.AuditEntry, error)

	// ExistsForLevelRole reports whether the role already acted on the
	// record at the given level. Backs the duplicate-approval guard.
	ExistsForLevelRole(ctx context.Context, recordID string, level int, role string) (bool, error)
}

// PendingQuery selects live notifications for a role.
type PendingQuery struct {
	WorkflowID string
	Role       string
	Levels     []int
	// Partitions restricts partition-scoped roles; empty means
	// unrestricted.
	Partitions []string
}

// NotificationStore maintains the single live notification row per record.
type NotificationStore interface {
	Create(ctx context.Context, n *entity.Notification) error

	// GetByRecordID returns approval.ErrRecordNotFound when the record has
	// no notification.
	GetByRecordID(ctx context.Context, recordID string) (*entity.Notification, error)

	// Update persists the row iff n.Version still matches the stored
	// version, then increments it. approval.ErrConflict on a stale version.
	Update(ctx context.Context, n *entity.Notification) error

	ListPending(ctx context.Context, q PendingQuery) ([]*entity.Notification, error)
}

// AssignmentStore is the external role-partition assignment lookup used by
// partitioned workflows.
type AssignmentStore interface {
	// RolePartitions reports whether the role is partition-scoped and, if
	// scoped, which partition values the actor may act on.
	RolePartitions(ctx context.Context, role, actorID string) (scoped bool, partitions []string, err error)
}

// TransactionManager runs fn within a single storage transaction; nested
// calls reuse the transaction already on the context.
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
