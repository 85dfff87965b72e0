// Package moderation implements the approval lifecycle shared by
// business and product promotion requests: an admin moves a request
// between PENDING_APPROVAL, APPROVED and REJECTED, with reviewer notes
// mandatory whenever the target status is anything other than APPROVED.
package moderation

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"ecoledger/models"
)

// Decision captures one admin action against a moderated record.
type Decision struct {
	Target     models.PromotionStatus
	Notes      string
	ReviewerID uuid.UUID
	At         time.Time
}

// KnownStatus reports whether s is part of the moderation lifecycle.
func KnownStatus(s models.PromotionStatus) bool {
	switch s {
	case models.PromotionPendingApproval, models.PromotionApproved, models.PromotionRejected:
		return true
	}
	return false
}

// NotesRequired reports whether a transition targeting s must carry
// non-blank reviewer notes. The rule is keyed on the target status, not
// on the transition pair: rejections and reconsiderations always need
// notes, approvals never do.
func NotesRequired(s models.PromotionStatus) bool {
	return s != models.PromotionApproved
}

// Apply validates a decision against the current status and returns the
// resulting status. It does not persist anything; callers run it inside
// their own transaction.
func Apply(current models.PromotionStatus, d Decision) (models.PromotionStatus, error) {
	if !KnownStatus(d.Target) {
		return current, &InvalidTransitionError{Current: current, Target: d.Target, Reason: "unknown target status"}
	}
	if NotesRequired(d.Target) && strings.TrimSpace(d.Notes) == "" {
		return current, &InvalidTransitionError{
			Current: current,
			Target:  d.Target,
			Reason:  fmt.Sprintf("reviewer notes are required when targeting %s", d.Target),
		}
	}
	return d.Target, nil
}

// NotificationTitle describes the new status to the submitter.
func NotificationTitle(target models.PromotionStatus) string {
	switch target {
	case models.PromotionApproved:
		return "Your listing has been approved"
	case models.PromotionRejected:
		return "Your listing has been rejected"
	default:
		return "Your listing is back under review"
	}
}
