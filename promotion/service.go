// Package promotion implements the paid listing lifecycle for business
// and product promotion requests. Payment precedes creation; moderation
// precedes public visibility. The two variants share the moderation
// rules and differ only in payload shape.
package promotion

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

	"ecoledger/moderation"
	"ecoledger/models"
	"ecoledger/notify"
	"ecoledger/observability/metrics"
	"ecoledger/payment"
	"ecoledger/validate"
)

// Config captures the dependencies required to construct the service.
type Config struct {
	DB        *gorm.DB
	Payments  payment.Confirmer
	Notifier  notify.Notifier
	Metrics   *metrics.PlatformMetrics
	Log       *slog.Logger
	MinImages int
	MaxImages int
	Now       func() time.Time
}

// Service coordinates promotion request operations.
type Service struct {
	db        *gorm.DB
	payments  payment.Confirmer
	notifier  notify.Notifier
	metrics   *metrics.PlatformMetrics
	log       *slog.Logger
	minImages int
	maxImages int
	now       func() time.Time
}

// New constructs the service, applying defaults for optional settings.
func New(cfg Config) *Service {
	if cfg.MinImages <= 0 {
		cfg.MinImages = 1
	}
	if cfg.MaxImages < cfg.MinImages {
		cfg.MaxImages = cfg.MinImages + 4
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}
	return &Service{
		db:        cfg.DB,
		payments:  cfg.Payments,
		notifier:  cfg.Notifier,
		metrics:   cfg.Metrics,
		log:       cfg.Log,
		minImages: cfg.MinImages,
		maxImages: cfg.MaxImages,
		now:       cfg.Now,
	}
}

// CreateInput is the submitter-facing payload. Images arrive as object
// keys already uploaded to the external store; the product variant
// requires an ordered gallery within the configured bounds.
type CreateInput struct {
	SubmitterID      uuid.UUID
	Kind             models.PromotionKind
	Name             string
	Description      string
	Website          string
	Contact          string
	LogoKey          string
	ImageKeys        []string
	PaymentReference string
}

// Create verifies the payment reference settled, then persists the
// request with status PENDING_APPROVAL. Anything but a settled payment
// is a hard precondition failure.
func (s *Service) Create(ctx context.Context, in CreateInput) (*models.PromotionRequest, error) {
	now := s.now()

	var c validate.Collector
	if in.Kind != models.KindBusiness && in.Kind != models.KindProduct {
		c.Add("kind", fmt.Sprintf("must be %q or %q", models.KindBusiness, models.KindProduct))
	}
	if strings.TrimSpace(in.Name) == "" {
		c.Add("name", "must not be empty")
	}
	if strings.TrimSpace(in.LogoKey) == "" {
		c.Add("logo", "a logo object key is required")
	}
	if strings.TrimSpace(in.PaymentReference) == "" {
		c.Add("payment_reference", "is required")
	}
	if in.Kind == models.KindProduct {
		if n := len(in.ImageKeys); n < s.minImages || n > s.maxImages {
			c.Add("images", fmt.Sprintf("between %d and %d product images are required", s.minImages, s.maxImages))
		}
	} else if len(in.ImageKeys) > 0 {
		c.Add("images", "business listings carry a logo only")
	}
	if err := c.Err(); err != nil {
		return nil, err
	}

	var submitter models.User
	if err := s.db.WithContext(ctx).First(&submitter, "id = ?", in.SubmitterID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	status, err := s.payments.Confirm(ctx, in.PaymentReference)
	if err != nil {
		return nil, fmt.Errorf("promotion: payment confirmation: %w", err)
	}
	if !status.Settled() {
		return nil, fmt.Errorf("%w: reference %s reported %s", ErrPaymentNotConfirmed, in.PaymentReference, status)
	}

	req := models.PromotionRequest{
		ID:               uuid.New(),
		SubmitterID:      submitter.ID,
		Kind:             in.Kind,
		Name:             strings.TrimSpace(in.Name),
		Description:      in.Description,
		Website:          strings.TrimSpace(in.Website),
		Contact:          strings.TrimSpace(in.Contact),
		LogoKey:          in.LogoKey,
		PaymentReference: in.PaymentReference,
		Status:           models.PromotionPendingApproval,
		SubmittedAt:      now,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	for i, key := range in.ImageKeys {
		req.Images = append(req.Images, models.PromotionImage{
			ID:                 uuid.New(),
			PromotionRequestID: req.ID,
			ObjectKey:          key,
			Position:           i,
			CreatedAt:          now,
		})
	}

	if err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&req).Error; err != nil {
			return err
		}
		return appendEvent(tx, req.ID, submitter.ID, "promotion.submitted", fmt.Sprintf("kind=%s payment=%s", req.Kind, req.PaymentReference), now)
	}); err != nil {
		return nil, err
	}

	return &req, nil
}

// Review applies an admin moderation decision. The status write and
// audit event commit as one transaction; the submitter is notified after
// commit with the new status and notes.
func (s *Service) Review(ctx context.Context, requestID, reviewerID uuid.UUID, target models.PromotionStatus, notes string) (*models.PromotionRequest, error) {
	now := s.now()
	var req models.PromotionRequest

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&req, "id = ?", requestID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		next, err := moderation.Apply(req.Status, moderation.Decision{
			Target:     target,
			Notes:      notes,
			ReviewerID: reviewerID,
			At:         now,
		})
		if err != nil {
			return err
		}
		res := tx.Model(&models.PromotionRequest{}).
			Where("id = ?", req.ID).
			Updates(map[string]any{
				"status":         next,
				"reviewer_notes": strings.TrimSpace(notes),
				"reviewed_by_id": reviewerID,
				"reviewed_at":    now,
				"updated_at":     now,
			})
		if res.Error != nil {
			return res.Error
		}
		req.Status = next
		return appendEvent(tx, req.ID, reviewerID, fmt.Sprintf("promotion.%s", strings.ToLower(string(next))), strings.TrimSpace(notes), now)
	})
	if err != nil {
		return nil, err
	}

	req.ReviewerNotes = strings.TrimSpace(notes)
	req.ReviewedByID = &reviewerID
	req.ReviewedAt = &now
	req.UpdatedAt = now

	s.metrics.RecordTransition(string(req.Status))
	s.sendNotification(ctx, req.SubmitterID, moderation.NotificationTitle(req.Status), notificationBody(&req))
	return &req, nil
}

// Get loads one request with its images.
func (s *Service) Get(ctx context.Context, requestID uuid.UUID) (*models.PromotionRequest, error) {
	var req models.PromotionRequest
	if err := s.db.WithContext(ctx).Preload("Images").First(&req, "id = ?", requestID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &req, nil
}

// PublicList returns the publicly visible listings: approved requests
// only, regardless of transition history. Visibility is enforced here at
// the read boundary, never assumed from write-time filtering. An empty
// kind returns both variants.
func (s *Service) PublicList(ctx context.Context, kind models.PromotionKind) ([]models.PromotionRequest, error) {
	q := s.db.WithContext(ctx).Preload("Images").Where("status = ?", models.PromotionApproved)
	if kind != "" {
		q = q.Where("kind = ?", kind)
	}
	var reqs []models.PromotionRequest
	if err := q.Order("reviewed_at DESC").Find(&reqs).Error; err != nil {
		return nil, err
	}
	return reqs, nil
}

// ListPending returns the admin review queue, oldest first.
func (s *Service) ListPending(ctx context.Context) ([]models.PromotionRequest, error) {
	var reqs []models.PromotionRequest
	if err := s.db.WithContext(ctx).Preload("Images").
		Where("status = ?", models.PromotionPendingApproval).
		Order("submitted_at ASC").Find(&reqs).Error; err != nil {
		return nil, err
	}
	return reqs, nil
}

func notificationBody(req *models.PromotionRequest) string {
	body := fmt.Sprintf("Listing %q is now %s.", req.Name, req.Status)
	if req.ReviewerNotes != "" {
		body += " Reviewer notes: " + req.ReviewerNotes
	}
	return body
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
