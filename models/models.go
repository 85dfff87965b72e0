package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Role enumerations for persistence.
const (
	RoleMember = "member"
	RoleAdmin  = "admin"
)

// ActivityStatus represents the review state of a submitted activity.
type ActivityStatus string

// Activity review states. There is no edge back to PENDING_REVIEW.
const (
	ActivityPendingReview ActivityStatus = "PENDING_REVIEW"
	ActivityReviewed      ActivityStatus = "REVIEWED"
)

// ActivityType enumerates the kinds of ecological work members can log.
type ActivityType string

// Supported activity types.
const (
	TypeRecycling         ActivityType = "RECYCLING"
	TypeTreePlanting      ActivityType = "TREE_PLANTING"
	TypeComposting        ActivityType = "COMPOSTING"
	TypeCleanup           ActivityType = "CLEANUP"
	TypeWaterConservation ActivityType = "WATER_CONSERVATION"
	TypeEnergySaving      ActivityType = "ENERGY_SAVING"
)

// KnownActivityType reports whether t is one of the supported types.
func KnownActivityType(t ActivityType) bool {
	switch t {
	case TypeRecycling, TypeTreePlanting, TypeComposting, TypeCleanup, TypeWaterConservation, TypeEnergySaving:
		return true
	}
	return false
}

// PromotionStatus represents a state in the shared moderation lifecycle.
type PromotionStatus string

// Moderation states shared by business and product promotion requests.
const (
	PromotionPendingApproval PromotionStatus = "PENDING_APPROVAL"
	PromotionApproved        PromotionStatus = "APPROVED"
	PromotionRejected        PromotionStatus = "REJECTED"
)

// PromotionKind distinguishes the two listing payload variants.
type PromotionKind string

// Promotion request variants.
const (
	KindBusiness PromotionKind = "business"
	KindProduct  PromotionKind = "product"
)

// User stores member identity and the derived point balance. Level is
// never persisted; it is always recomputed from TotalPoints.
type User struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	Email       string    `gorm:"uniqueIndex"`
	Name        string    `gorm:"size:128"`
	Role        string    `gorm:"index"`
	TotalPoints int64     `gorm:"not null;default:0"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Activity describes a member-submitted ecological action across its
// review lifecycle.
type Activity struct {
	ID           uuid.UUID      `gorm:"type:uuid;primaryKey"`
	UserID       uuid.UUID      `gorm:"type:uuid;index"`
	Title        string         `gorm:"size:160"`
	Description  string         `gorm:"type:text"`
	Type         ActivityType   `gorm:"size:32;index"`
	Quantity     float64        `gorm:"not null"`
	Unit         string         `gorm:"size:32"`
	Date         time.Time      `gorm:"not null"`
	Status       ActivityStatus `gorm:"size:32;index"`
	Points       int64          `gorm:"not null;default:0"`
	Version      int64          `gorm:"not null;default:0"`
	ReviewedAt   *time.Time
	ReviewedByID *uuid.UUID `gorm:"type:uuid"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Evidence     []EvidenceFile `gorm:"constraint:OnDelete:CASCADE"`
}

// EvidenceFile captures an evidence attachment stored in the external
// object store. Position preserves submission order.
type EvidenceFile struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	ActivityID uuid.UUID `gorm:"type:uuid;index"`
	ObjectKey  string    `gorm:"size:255"`
	Position   int       `gorm:"not null"`
	CreatedAt  time.Time
}

// PromotionRequest describes a paid listing request. Both variants share
// the moderation state shape; the product variant additionally carries an
// ordered image set.
type PromotionRequest struct {
	ID               uuid.UUID       `gorm:"type:uuid;primaryKey"`
	SubmitterID      uuid.UUID       `gorm:"type:uuid;index"`
	Kind             PromotionKind   `gorm:"size:16;index"`
	Name             string          `gorm:"size:160"`
	Description      string          `gorm:"type:text"`
	Website          string          `gorm:"size:255"`
	Contact          string          `gorm:"size:128"`
	LogoKey          string          `gorm:"size:255"`
	PaymentReference string          `gorm:"size:128;not null"`
	Status           PromotionStatus `gorm:"size:32;index"`
	ReviewerNotes    string          `gorm:"size:512"`
	ReviewedByID     *uuid.UUID      `gorm:"type:uuid"`
	ReviewedAt       *time.Time
	SubmittedAt      time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
	Images           []PromotionImage `gorm:"constraint:OnDelete:CASCADE"`
}

// PromotionImage is a product gallery attachment, ordered by Position.
type PromotionImage struct {
	ID                 uuid.UUID `gorm:"type:uuid;primaryKey"`
	PromotionRequestID uuid.UUID `gorm:"type:uuid;index"`
	ObjectKey          string    `gorm:"size:255"`
	Position           int       `gorm:"not null"`
	CreatedAt          time.Time
}

// Event is the audit trail structure appended alongside every state
// transition.
type Event struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey"`
	SubjectID *uuid.UUID `gorm:"type:uuid;index"`
	UserID    uuid.UUID  `gorm:"type:uuid;index"`
	Action    string     `gorm:"size:64"`
	Details   string     `gorm:"type:text"`
	CreatedAt time.Time
}

// IdempotencyKey stores request idempotency metadata.
type IdempotencyKey struct {
	Key       string `gorm:"primaryKey;size:128"`
	RequestID string `gorm:"size:64"`
	Method    string `gorm:"size:8"`
	Path      string `gorm:"size:255"`
	Status    int
	Response  string `gorm:"type:text"`
	CreatedAt time.Time
}

// AutoMigrate performs all schema migrations for the service.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&User{},
		&Activity{},
		&EvidenceFile{},
		&PromotionRequest{},
		&PromotionImage{},
		&Event{},
		&IdempotencyKey{},
	)
}
