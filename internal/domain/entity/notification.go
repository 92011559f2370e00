package entity

import "time"

// Notification is the single live "awaiting action" row for a record.
// Exactly one PENDING notification exists per record while the record is
// non-terminal; it is updated in place on every level transition. Version
// is a monotonic counter used as an optimistic-concurrency precondition on
// every update.
type Notification struct {
	ID         string    `json:"id"`
	RecordID   string    `json:"record_id"`
	WorkflowID string    `json:"workflow_id"`
	Role       string    `json:"role"`
	Partition  string    `json:"partition,omitempty"`
	Level      int       `json:"level"`
	Status     string    `json:"status"`
	Message    string    `json:"message"`
	Version    int64     `json:"version"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
