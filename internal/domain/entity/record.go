package entity

import "time"

// Record is the engine-visible projection of a business entity travelling
// through an approval workflow. Business modules own the full entity; the
// engine only reads and mutates the fields below.
type Record struct {
	ID         string    `json:"id"`
	WorkflowID string    `json:"workflow_id"`
	EntityRef  string    `json:"entity_ref"`
	Status     Status    `json:"status"`
	Level      int       `json:"level"`
	Partition  string    `json:"partition,omitempty"`
	BatchKey   string    `json:"batch_key,omitempty"`
	// MirrorField names an optional caller-side column that mirrors a
	// terminal REJECTED status for denormalized reads.
	MirrorField string    `json:"mirror_field,omitempty"`
	CreatedBy   string    `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// IsTerminal reports whether the record can no longer move through levels.
func (r *Record) IsTerminal() bool {
	return r.Status.IsTerminal()
}
