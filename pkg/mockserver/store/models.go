package store

import (
	"time"
)

// Document kinds.
const (
	KindTeam        = "team"
	KindEnvironment = "environment"
	KindBuild       = "build"
	KindExecution   = "execution"
	KindScreenshot  = "screenshot"
	KindBaseline    = "baseline"
)

// Document is one stored Angles resource. Body holds the JSON object as
// returned by the API, without its _id.
type Document struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Kind      string    `gorm:"index;not null" json:"kind"`
	Parent    string    `gorm:"index" json:"parent"`
	Keep      bool      `gorm:"not null;default:false" json:"keep"`
	Body      string    `gorm:"type:text;not null" json:"body"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Image is the binary payload of a screenshot.
type Image struct {
	ScreenshotID string    `gorm:"primaryKey;size:36" json:"screenshot_id"`
	FileName     string    `gorm:"not null" json:"file_name"`
	ContentType  string    `gorm:"not null" json:"content_type"`
	Data         []byte    `gorm:"not null" json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}
