package moderation

import (
	"fmt"

	"ecoledger/models"
)

// InvalidTransitionError reports a moderation decision that cannot be
// applied: an unknown target status or missing mandatory notes.
type InvalidTransitionError struct {
	Current models.PromotionStatus
	Target  models.PromotionStatus
	Reason  string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("moderation: cannot transition %s -> %s: %s", e.Current, e.Target, e.Reason)
}
