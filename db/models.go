package db

import (
	"gorm.io/gorm"
)

// Attempt statuses.
const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// Attempt is one download attempt of a batch run
type Attempt struct {
	gorm.Model
	RunID      string `gorm:"index"` // Batch run the attempt belongs to
	ModID      int    `gorm:"index"` // CurseForge mod id
	ModName    string // Mod name as reported by the catalog
	FileID     int    // CurseForge file id, zero on failure before resolution
	FileName   string // Downloaded file name
	FilePath   string // Final path inside the mods directory
	Status     string // StatusSucceeded or StatusFailed
	Error      string // Error message of a failed attempt
	Bytes      int64  // Bytes written
	DurationMS int64  // Wall time of the attempt
}
