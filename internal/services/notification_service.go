package services

import (
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"
	"github.com/sparkmeet/moderation-worker/internal/models"
	"github.com/sparkmeet/moderation-worker/internal/realtime"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// NotificationService persists review-outcome notifications and emits the
// matching realtime event. Everything here is best-effort: failures are
// logged and never undo already-persisted photo state.
type NotificationService struct {
	db      *gorm.DB
	emitter realtime.Emitter
}

func NewNotificationService(db *gorm.DB, emitter realtime.Emitter) *NotificationService {
	return &NotificationService{db: db, emitter: emitter}
}

// PhotoReviewOutcome is the payload for both the persisted notification and
// the realtime event.
type PhotoReviewOutcome struct {
	Rejected []models.UserPhoto `json:"rejected"`
	Approved []models.UserPhoto `json:"approved"`
}

// NotifyPhotoReview replaces any live review notifications for the user with
// exactly one new one and emits the corresponding realtime event.
func (s *NotificationService) NotifyPhotoReview(userID uuid.UUID, rejected, approved []models.UserPhoto) {
	kind := models.NotificationPhotosApproved
	event := realtime.EventPhotosApproved
	if len(rejected) > 0 {
		kind = models.NotificationPhotosNotApproved
		event = realtime.EventPhotosNotApproved
	}

	outcome := PhotoReviewOutcome{Rejected: rejected, Approved: approved}
	if outcome.Rejected == nil {
		outcome.Rejected = []models.UserPhoto{}
	}
	if outcome.Approved == nil {
		outcome.Approved = []models.UserPhoto{}
	}

	// At most one live notification of each kind per user.
	err := s.db.Where("recipient_id = ? AND type IN ?", userID,
		[]string{models.NotificationPhotosApproved, models.NotificationPhotosNotApproved}).
		Delete(&models.Notification{}).Error
	if err != nil {
		slog.Error("failed to delete stale review notifications", "user_id", userID, "error", err)
	}

	content, err := json.Marshal(outcome)
	if err != nil {
		slog.Error("failed to encode review notification", "user_id", userID, "error", err)
		return
	}

	notification := models.Notification{
		RecipientID: userID,
		Type:        kind,
		Content:     datatypes.JSON(content),
	}
	if err := s.db.Create(&notification).Error; err != nil {
		slog.Error("failed to create review notification", "user_id", userID, "error", err)
	}

	if err := s.emitter.Emit(userID, event, outcome); err != nil {
		slog.Error("failed to emit review event", "user_id", userID, "event", event, "error", err)
	}
}
