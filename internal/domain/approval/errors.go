// Package approval defines the error taxonomy shared by the workflow
// engine and its callers.
package approval

import "errors"

var (
	// ErrWorkflowNotFound is returned when the workflow id is unknown.
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrWorkflowMisconfigured is returned when a workflow has no level-1
	// route for the record's partition; creation requires one to exist.
	ErrWorkflowMisconfigured = errors.New("workflow has no level-1 route")

	// ErrLevelNotFound is returned when no level definition matches the
	// requested (level, partition). During an advance this is the normal
	// chain-exhaustion signal, not a caller error.
	ErrLevelNotFound = errors.New("no matching level definition")

	// ErrRecordNotFound is returned when the record id is unknown.
	ErrRecordNotFound = errors.New("record not found")

	// ErrInvalidState is returned when acting on a terminal record.
	ErrInvalidState = errors.New("record is in a terminal state")

	// ErrAlreadyProcessed is returned by the duplicate-approval guard when
	// the acting role already has an audit entry at the record's current
	// level.
	ErrAlreadyProcessed = errors.New("role already acted at this level")

	// ErrAccessDenied is returned when a role has no route at all in the
	// workflow.
	ErrAccessDenied = errors.New("role has no route in this workflow")

	// ErrValidation is returned for malformed input, e.g. missing remarks.
	ErrValidation = errors.New("validation failed")

	// ErrConflict is returned when an optimistic precondition fails, e.g.
	// a concurrent advance won the conditional level update.
	ErrConflict = errors.New("concurrent update conflict")
)
