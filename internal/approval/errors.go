package approval

import "errors"

var (
	// ErrNotFound is returned when a submitter, company, or expense is missing
	ErrNotFound = errors.New("not found")

	// ErrForbidden is returned when the caller is neither the named approver
	// nor an admin of the expense's company
	ErrForbidden = errors.New("forbidden")

	// ErrNoPendingStep is returned when a decision arrives with no matching
	// incomplete step, either because the approver was never assigned or
	// because they already decided
	ErrNoPendingStep = errors.New("no pending approval step for this approver")

	// ErrExpenseFinalized is returned by the recorder when the expense has
	// already reached a terminal status
	ErrExpenseFinalized = errors.New("expense already finalized")

	// ErrConflict is returned when a concurrent update was lost and retries
	// were exhausted
	ErrConflict = errors.New("concurrent update conflict")
)
