package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Review types.
const (
	ReviewTypeImage   = "image"
	ReviewTypeContent = "content"
	ReviewTypeFull    = "full"
)

// ReviewRecord is one queued unit of review work per user. The batch loop
// consumes records whose NeedsHumanReview is false or null; records flagged
// for a human stay until cleared out-of-band.
type ReviewRecord struct {
	ID               uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID           uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex" json:"user_id"`
	ReviewType       string         `gorm:"size:20;not null;default:'full'" json:"review_type"`
	NeedsHumanReview *bool          `gorm:"index" json:"needs_human_review,omitempty"`
	Analysis         datatypes.JSON `gorm:"type:jsonb" json:"analysis,omitempty"`
	CreatedAt        time.Time      `gorm:"index" json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

func (r *ReviewRecord) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
