package services

import (
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/sparkmeet/moderation-worker/internal/models"
	"gorm.io/gorm"
)

var ErrUserNotFound = errors.New("user not found")

// Reconciler keeps the user's derived profile fields consistent with the
// photo array: the main photo is the first non-rejected photo in sort order,
// and the visible count is the number of non-rejected photos.
type Reconciler struct {
	db *gorm.DB
}

func NewReconciler(db *gorm.DB) *Reconciler {
	return &Reconciler{db: db}
}

// Reconcile re-reads the user's current photo set and corrects mainPhoto and
// numOfPhotos if stale. Only fields that differ are written.
func (r *Reconciler) Reconcile(userID uuid.UUID) error {
	var user models.User
	if err := r.db.First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return err
	}

	active := user.ActivePhotos()

	var expectedMain *string
	if len(active) > 0 {
		expectedMain = &active[0].Path
	}
	expectedCount := len(active)

	updates := map[string]interface{}{}
	if !equalPtr(user.MainPhoto, expectedMain) {
		updates["main_photo"] = expectedMain
	}
	if user.NumOfPhotos != expectedCount {
		updates["num_of_photos"] = expectedCount
	}
	if len(updates) == 0 {
		return nil
	}

	slog.Info("reconciling profile state", "user_id", userID, "updates", len(updates))
	return r.db.Model(&models.User{}).Where("id = ?", userID).Updates(updates).Error
}

func equalPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
