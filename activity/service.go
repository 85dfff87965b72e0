// Package activity implements the lifecycle of member-submitted
// ecological activities: submission, admin point awards, descriptive
// edits, deletion, and ad hoc owner notifications. Point mutations go
// through the ledger inside the same transaction as the status write.
package activity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"ecoledger/filestore"
	"ecoledger/ledger"
	"ecoledger/models"
	"ecoledger/notify"
	"ecoledger/observability/metrics"
	"ecoledger/validate"
)

// AwardScale is the fixed set of point values an admin may assign.
var AwardScale = []int64{10, 30, 50, 75, 100}

// MaxQuantity bounds the quantity field of a submission.
const MaxQuantity = 20

// Config captures the dependencies required to construct the service.
type Config struct {
	DB          *gorm.DB
	Notifier    notify.Notifier
	Files       filestore.Store
	Metrics     *metrics.PlatformMetrics
	Log         *slog.Logger
	MinEvidence int
	MaxEvidence int
	Now         func() time.Time
}

// Service coordinates activity lifecycle operations.
type Service struct {
	db          *gorm.DB
	notifier    notify.Notifier
	files       filestore.Store
	metrics     *metrics.PlatformMetrics
	log         *slog.Logger
	minEvidence int
	maxEvidence int
	now         func() time.Time
	locks       *recordLocks
}

// New constructs the service, applying defaults for optional settings.
func New(cfg Config) *Service {
	if cfg.MinEvidence <= 0 {
		cfg.MinEvidence = 1
	}
	if cfg.MaxEvidence < cfg.MinEvidence {
		cfg.MaxEvidence = cfg.MinEvidence + 2
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}
	return &Service{
		db:          cfg.DB,
		notifier:    cfg.Notifier,
		files:       cfg.Files,
		metrics:     cfg.Metrics,
		log:         cfg.Log,
		minEvidence: cfg.MinEvidence,
		maxEvidence: cfg.MaxEvidence,
		now:         cfg.Now,
		locks:       newRecordLocks(),
	}
}

// SubmitInput is the member-facing submission payload. Evidence arrives
// as object keys already uploaded to the external store.
type SubmitInput struct {
	UserID       uuid.UUID
	Title        string
	Description  string
	Type         models.ActivityType
	Quantity     float64
	Unit         string
	Date         time.Time
	EvidenceKeys []string
}

// Submit validates the payload and creates the activity with status
// PENDING_REVIEW and zero points. The ledger is untouched. Every
// violated field is reported, not just the first.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (*models.Activity, error) {
	now := s.now()

	var c validate.Collector
	if strings.TrimSpace(in.Title) == "" {
		c.Add("title", "must not be empty")
	}
	if !models.KnownActivityType(in.Type) {
		c.Add("type", fmt.Sprintf("unknown activity type %q", in.Type))
	}
	if in.Quantity <= 0 || in.Quantity > MaxQuantity {
		c.Add("quantity", fmt.Sprintf("must be greater than 0 and at most %d", MaxQuantity))
	}
	if strings.TrimSpace(in.Unit) == "" {
		c.Add("unit", "must not be empty")
	}
	if in.Date.IsZero() {
		c.Add("date", "is required")
	} else if in.Date.After(now) {
		c.Add("date", "must not be in the future")
	}
	if n := len(in.EvidenceKeys); n < s.minEvidence || n > s.maxEvidence {
		c.Add("evidence", fmt.Sprintf("between %d and %d files are required", s.minEvidence, s.maxEvidence))
	}
	for i, key := range in.EvidenceKeys {
		if strings.TrimSpace(key) == "" {
			c.Add("evidence", fmt.Sprintf("file %d has an empty object key", i+1))
		}
	}
	if err := c.Err(); err != nil {
		return nil, err
	}

	var owner models.User
	if err := s.db.WithContext(ctx).First(&owner, "id = ?", in.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	act := models.Activity{
		ID:          uuid.New(),
		UserID:      owner.ID,
		Title:       strings.TrimSpace(in.Title),
		Description: in.Description,
		Type:        in.Type,
		Quantity:    in.Quantity,
		Unit:        strings.TrimSpace(in.Unit),
		Date:        in.Date,
		Status:      models.ActivityPendingReview,
		Points:      0,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	for i, key := range in.EvidenceKeys {
		act.Evidence = append(act.Evidence, models.EvidenceFile{
			ID:         uuid.New(),
			ActivityID: act.ID,
			ObjectKey:  key,
			Position:   i,
			CreatedAt:  now,
		})
	}

	if err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&act).Error; err != nil {
			return err
		}
		return appendEvent(tx, act.ID, owner.ID, "activity.submitted", fmt.Sprintf("type=%s quantity=%.2f %s", act.Type, act.Quantity, act.Unit), now)
	}); err != nil {
		return nil, err
	}

	s.metrics.RecordSubmission()
	return &act, nil
}

// ValidAward reports whether points is on the fixed award scale.
func ValidAward(points int64) bool {
	for _, v := range AwardScale {
		if v == points {
			return true
		}
	}
	return false
}

// Award assigns points to an activity, first award or re-award alike.
// The ledger receives the delta between the new and previous values, the
// status moves to REVIEWED, and the owner is notified even when the
// delta is zero, since the admin action still stands. The status write,
// version bump, and ledger delta commit as one transaction.
func (s *Service) Award(ctx context.Context, activityID, adminID uuid.UUID, points int64) (*models.Activity, error) {
	if !ValidAward(points) {
		var c validate.Collector
		c.Add("points", fmt.Sprintf("must be one of %v", AwardScale))
		return nil, c.Err()
	}

	release := s.locks.acquire(activityID)
	defer release()

	now := s.now()
	var act models.Activity
	var delta int64

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&act, "id = ?", activityID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if err := tx.Where("activity_id = ?", act.ID).Order("position ASC").Find(&act.Evidence).Error; err != nil {
			return err
		}
		delta = points - act.Points

		res := tx.Model(&models.Activity{}).
			Where("id = ? AND version = ?", act.ID, act.Version).
			Updates(map[string]any{
				"status":         models.ActivityReviewed,
				"points":         points,
				"reviewed_at":    now,
				"reviewed_by_id": adminID,
				"version":        act.Version + 1,
				"updated_at":     now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrConflict
		}
		if err := ledger.ApplyDelta(tx, act.UserID, delta); err != nil {
			return err
		}
		return appendEvent(tx, act.ID, adminID, "activity.awarded", fmt.Sprintf("points=%d delta=%d", points, delta), now)
	})
	if err != nil {
		return nil, err
	}

	act.Status = models.ActivityReviewed
	act.Points = points
	act.Version++
	act.ReviewedAt = &now
	act.ReviewedByID = &adminID
	act.UpdatedAt = now

	s.metrics.RecordAward(string(act.Type))
	s.sendNotification(ctx, act.UserID, "Your activity has been reviewed",
		fmt.Sprintf("%q was awarded %d points.", act.Title, points))
	return &act, nil
}

// EditInput carries the descriptive fields an admin may correct. Status
// and points are never touched here.
type EditInput struct {
	Title       string
	Description string
	Type        models.ActivityType
	Quantity    float64
	Unit        string
	Date        time.Time
}

// EditDetails mutates descriptive fields only. No ledger effect.
func (s *Service) EditDetails(ctx context.Context, activityID, adminID uuid.UUID, in EditInput) (*models.Activity, error) {
	now := s.now()

	var c validate.Collector
	if strings.TrimSpace(in.Title) == "" {
		c.Add("title", "must not be empty")
	}
	if !models.KnownActivityType(in.Type) {
		c.Add("type", fmt.Sprintf("unknown activity type %q", in.Type))
	}
	if in.Quantity <= 0 || in.Quantity > MaxQuantity {
		c.Add("quantity", fmt.Sprintf("must be greater than 0 and at most %d", MaxQuantity))
	}
	if strings.TrimSpace(in.Unit) == "" {
		c.Add("unit", "must not be empty")
	}
	if in.Date.IsZero() {
		c.Add("date", "is required")
	} else if in.Date.After(now) {
		c.Add("date", "must not be in the future")
	}
	if err := c.Err(); err != nil {
		return nil, err
	}

	var act models.Activity
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&act, "id = ?", activityID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		res := tx.Model(&models.Activity{}).
			Where("id = ?", act.ID).
			Updates(map[string]any{
				"title":       strings.TrimSpace(in.Title),
				"description": in.Description,
				"type":        in.Type,
				"quantity":    in.Quantity,
				"unit":        strings.TrimSpace(in.Unit),
				"date":        in.Date,
				"updated_at":  now,
			})
		if res.Error != nil {
			return res.Error
		}
		return appendEvent(tx, act.ID, adminID, "activity.edited", "", now)
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, activityID)
}

// Delete reverses any awarded points through the ledger, destroys the
// record and its evidence rows, then notifies the owner. Evidence
// objects are removed from the external store best-effort after commit.
func (s *Service) Delete(ctx context.Context, activityID, adminID uuid.UUID) error {
	release := s.locks.acquire(activityID)
	defer release()

	now := s.now()
	var act models.Activity
	var keys []string

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Preload("Evidence").First(&act, "id = ?", activityID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		for _, ev := range act.Evidence {
			keys = append(keys, ev.ObjectKey)
		}
		if act.Points > 0 {
			if err := ledger.ApplyDelta(tx, act.UserID, -act.Points); err != nil {
				return err
			}
		}
		if err := tx.Where("activity_id = ?", act.ID).Delete(&models.EvidenceFile{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(&models.Activity{}, "id = ?", act.ID).Error; err != nil {
			return err
		}
		return appendEvent(tx, act.ID, adminID, "activity.deleted", fmt.Sprintf("points_reversed=%d", act.Points), now)
	})
	if err != nil {
		return err
	}

	if s.files != nil {
		for _, key := range keys {
			if err := s.files.Delete(ctx, key); err != nil {
				s.log.Warn("evidence object cleanup failed", "activity_id", act.ID, "object_key", key, "error", err)
			}
		}
	}

	message := fmt.Sprintf("%q was removed by a moderator.", act.Title)
	if act.Points > 0 {
		message = fmt.Sprintf("%q was removed by a moderator and %d points were deducted.", act.Title, act.Points)
	}
	s.sendNotification(ctx, act.UserID, "Your activity has been removed", message)
	return nil
}

// Notify sends an ad hoc admin message to the activity owner. No state
// changes; delivery failure is the operation's failure here since the
// message is the whole point.
func (s *Service) Notify(ctx context.Context, activityID, adminID uuid.UUID, title, message string) error {
	var c validate.Collector
	if strings.TrimSpace(title) == "" {
		c.Add("title", "must not be empty")
	}
	if strings.TrimSpace(message) == "" {
		c.Add("message", "must not be empty")
	}
	if err := c.Err(); err != nil {
		return err
	}

	act, err := s.Get(ctx, activityID)
	if err != nil {
		return err
	}
	if err := s.notifier.Send(ctx, act.UserID, title, message); err != nil {
		s.metrics.RecordNotifierFailure()
		return fmt.Errorf("activity: notification delivery failed: %w", err)
	}
	if err := appendEvent(s.db.WithContext(ctx), act.ID, adminID, "activity.notified", title, s.now()); err != nil {
		s.log.Warn("audit event write failed", "activity_id", act.ID, "error", err)
	}
	return nil
}

// Get loads one activity with its evidence.
func (s *Service) Get(ctx context.Context, activityID uuid.UUID) (*models.Activity, error) {
	var act models.Activity
	if err := s.db.WithContext(ctx).Preload("Evidence").First(&act, "id = ?", activityID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &act, nil
}

// ListByUser returns a member's activities, newest first.
func (s *Service) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Activity, error) {
	var acts []models.Activity
	if err := s.db.WithContext(ctx).Preload("Evidence").Where("user_id = ?", userID).Order("created_at DESC").Find(&acts).Error; err != nil {
		return nil, err
	}
	return acts, nil
}

// sendNotification delivers best-effort: failures are logged and counted
// but never escalate, because the state transition already committed.
func (s *Service) sendNotification(ctx context.Context, userID uuid.UUID, title, message string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Send(ctx, userID, title, message); err != nil {
		s.metrics.RecordNotifierFailure()
		s.log.Warn("notification delivery failed", "user_id", userID, "title", title, "error", err)
	}
}

func appendEvent(tx *gorm.DB, subjectID, actorID uuid.UUID, action, details string, at time.Time) error {
	event := models.Event{
		ID:        uuid.New(),
		SubjectID: &subjectID,
		UserID:    actorID,
		Action:    action,
		Details:   details,
		CreatedAt: at,
	}
	return tx.Create(&event).Error
}
