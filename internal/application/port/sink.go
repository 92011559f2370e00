package port

import "context"

// PendingEvent is the payload pushed to live subscribers when a record
// lands on a role's desk. It is a freshness hint only; clients recover the
// authoritative pending set by re-querying the engine.
type PendingEvent struct {
	WorkflowID string `json:"workflow_id"`
	RecordID   string `json:"record_id"`
	Level      int    `json:"level"`
	Partition  string `json:"partition,omitempty"`
	Message    string `json:"message"`
	Delta      int    `json:"delta"`
}

// EventSink receives best-effort, fire-and-forget pushes keyed by role.
// Implementations must never block the caller; there is no acknowledgment,
// retry, or replay.
type EventSink interface {
	Emit(ctx context.Context, role string, evt PendingEvent)
}
