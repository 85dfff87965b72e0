package activity

import "errors"

var (
	// ErrNotFound is returned when an operation references an unknown
	// activity id.
	ErrNotFound = errors.New("activity: not found")
	// ErrUserNotFound is returned when a submission references an unknown
	// member.
	ErrUserNotFound = errors.New("activity: user not found")
	// ErrConflict is returned when a concurrent update invalidated the
	// version read at the start of the operation. The whole operation is
	// safe to retry: nothing was committed.
	ErrConflict = errors.New("activity: concurrent update conflict")
)
