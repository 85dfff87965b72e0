package ledger

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"ecoledger/models"
)

// PointsPerLevel is the fixed number of points spanned by each level.
const PointsPerLevel = 500

// ErrUserNotFound is returned when a balance mutation references an
// unknown user.
var ErrUserNotFound = errors.New("ledger: user not found")

// LevelOf derives a member's level from their point total. The level is
// a pure projection of the stored total and must never be persisted
// independently.
func LevelOf(totalPoints int64) int64 {
	if totalPoints < 0 {
		totalPoints = 0
	}
	return totalPoints/PointsPerLevel + 1
}

// ApplyDelta adds delta to the user's point total inside the caller's
// transaction, holding a row lock on the user record so concurrent
// awards serialize. The total is clamped at zero; deltas are bounded by
// previously awarded amounts, so the clamp only guards against drift.
func ApplyDelta(tx *gorm.DB, userID uuid.UUID, delta int64) error {
	if delta == 0 {
		return nil
	}
	var user models.User
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	total := user.TotalPoints + delta
	if total < 0 {
		total = 0
	}
	return tx.Model(&models.User{}).Where("id = ?", userID).Update("total_points", total).Error
}

// Balance is the point total and derived level reported to read paths.
type Balance struct {
	UserID      uuid.UUID `json:"user_id"`
	TotalPoints int64     `json:"total_points"`
	Level       int64     `json:"level"`
}

// BalanceOf loads a user's current balance and computes their level.
func BalanceOf(ctx context.Context, db *gorm.DB, userID uuid.UUID) (*Balance, error) {
	var user models.User
	if err := db.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &Balance{
		UserID:      user.ID,
		TotalPoints: user.TotalPoints,
		Level:       LevelOf(user.TotalPoints),
	}, nil
}
