package models

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is the profile record owned by the web tier. The worker only touches
// the moderation-relevant fields: the photo array, the main-photo pointer and
// visible count, the bio, and the suspension / under-review markers.
type User struct {
	ID              uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Email           string         `gorm:"not null;size:255;uniqueIndex" json:"email"`
	Name            string         `gorm:"size:100" json:"name"`
	Bio             string         `gorm:"type:text" json:"bio"`
	Photos          []UserPhoto    `gorm:"type:jsonb;serializer:json;default:'[]'" json:"photos"`
	MainPhoto       *string        `gorm:"type:text" json:"main_photo,omitempty"`
	NumOfPhotos     int            `gorm:"default:0" json:"num_of_photos"`
	IsUnderReview   bool           `gorm:"default:false" json:"is_under_review"`
	SuspendedAt     *time.Time     `json:"suspended_at,omitempty"`
	SuspendedReason string         `gorm:"size:500" json:"suspended_reason,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// ActivePhotos returns the non-rejected photos ordered by sort order.
func (u *User) ActivePhotos() []UserPhoto {
	active := make([]UserPhoto, 0, len(u.Photos))
	for _, p := range u.Photos {
		if !p.IsRejected {
			active = append(active, p)
		}
	}
	sort.SliceStable(active, func(i, j int) bool {
		return active[i].SortOrder < active[j].SortOrder
	})
	return active
}
