package promotion

import "errors"

var (
	// ErrNotFound is returned when an operation references an unknown
	// promotion request id.
	ErrNotFound = errors.New("promotion: not found")
	// ErrUserNotFound is returned when a creation references an unknown
	// submitter.
	ErrUserNotFound = errors.New("promotion: user not found")
	// ErrPaymentNotConfirmed is returned when the payment reference did
	// not confirm as settled. The creation attempt is dead; the caller
	// must re-drive payment.
	ErrPaymentNotConfirmed = errors.New("promotion: payment not confirmed")
)
