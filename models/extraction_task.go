package models

import "time"

// ExtractionTask is the persisted snapshot of an extraction task.
// It corresponds to the 'extraction_tasks' table.
type ExtractionTask struct {
	ID              string    `gorm:"primaryKey"`
	VideoID         string    `gorm:"index;not null"`
	Status          string    `gorm:"index;not null;default:pending"`
	TotalFrames     int       `gorm:"not null"`
	FramesProcessed int       `gorm:"not null;default:0"`
	FramesExtracted int       `gorm:"not null;default:0"`
	Config          string    `gorm:"type:text;not null"` // resolved settings as JSON
	Error           *string   `gorm:""`                   // Nullable
	CreatedAt       time.Time `gorm:"index;autoCreateTime:false"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime:false"`
}

func (ExtractionTask) TableName() string {
	return "extraction_tasks"
}
