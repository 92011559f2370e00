package entity

// Status represents the lifecycle state of a record in its workflow.
type Status string

const (
	StatusVerification Status = "VERIFICATION"
	StatusApproved     Status = "APPROVED"
	StatusRejected     Status = "REJECTED"
)

var terminalStatuses = map[Status]bool{
	StatusApproved: true,
	StatusRejected: true,
}

// IsTerminal returns true when no further level changes are permitted.
func (s Status) IsTerminal() bool {
	return terminalStatuses[s]
}

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// IsValid returns true if the status is one of the defined constants.
func (s Status) IsValid() bool {
	switch s {
	case StatusVerification, StatusApproved, StatusRejected:
		return true
	default:
		return false
	}
}

// Notification status constants. PENDING notifications are updated in
// place as the record moves; terminal statuses freeze the row.
const (
	NotificationPending  = "PENDING"
	NotificationApproved = "APPROVED"
	NotificationRejected = "REJECTED"
)

// CreationLevel is the reserved audit level for the creation event. Level
// definitions start at 1.
const CreationLevel = 0
