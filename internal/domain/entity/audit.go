package entity

import "time"

// AuditEntry is one immutable action in a record's approval history.
// Level is the level the action was taken at; CreationLevel (0) marks the
// creation event. Ordering by (level asc, created_at asc) reconstructs the
// full history.
type AuditEntry struct {
	ID        int64     `json:"id"`
	RecordID  string    `json:"record_id"`
	Role      string    `json:"role"`
	Level     int       `json:"level"`
	Remarks   string    `json:"remarks"`
	ActorID   string    `json:"actor_id"`
	ActorName string    `json:"actor_name"`
	CreatedAt time.Time `json:"created_at"`
}
