package models

import "time"

// UserPhoto is one element of a user's ordered photo collection. The whole
// collection is stored as a jsonb array on the user row, so this struct is
// serialized, not migrated.
type UserPhoto struct {
	Path             string    `json:"path"`
	SortOrder        int       `json:"sort_order"`
	IsRejected       bool      `json:"is_rejected"`
	Messages         []string  `json:"messages,omitempty"`
	CroppedImageData *CropData `json:"cropped_image_data,omitempty"`
	UploadedAt       time.Time `json:"uploaded_at"`
}

// CropData holds the derived-crop rectangle produced at upload time.
type CropData struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}
