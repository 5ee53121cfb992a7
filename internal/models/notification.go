package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Notification kinds produced by the review pipeline. At most one live
// notification of each kind exists per user; the dispatcher deletes stale
// ones before creating a new one.
const (
	NotificationPhotosApproved    = "photos_approved"
	NotificationPhotosNotApproved = "photos_not_approved"
)

// Notification is the persisted counterpart of a realtime event.
type Notification struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	RecipientID uuid.UUID      `gorm:"type:uuid;not null;index" json:"recipient_id"`
	Type        string         `gorm:"size:50;not null;index" json:"type"`
	Content     datatypes.JSON `gorm:"type:jsonb" json:"content"`
	CreatedAt   time.Time      `json:"created_at"`
}

func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	return nil
}
