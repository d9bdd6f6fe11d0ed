package models

import "time"

// Video is an immutable record of a stored asset, original or derived.
type Video struct {
	ID         int64
	UserID     int64
	Title      string
	Filename   string
	StorageKey string
	Score      *float64
	IsActive   bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// VideoTitle builds the display title used for uploaded and processed videos.
func VideoTitle(username string, at time.Time) string {
	return "video " + username + " " + at.Format("02_01_2006")
}
