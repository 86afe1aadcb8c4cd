package extraction

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

var (
	ErrTaskNotFound      = errors.New("task not found")
	ErrInvalidTransition = errors.New("invalid task transition")
)

// Task tracks one extraction run. Values returned by a TaskStore are copies.
type Task struct {
	ID              string    `json:"task_id"`
	VideoID         string    `json:"video_id"`
	Status          Status    `json:"status"`
	TotalFrames     int       `json:"total_frames"`
	FramesProcessed int       `json:"frames_processed"`
	FramesExtracted int       `json:"frames_extracted"`
	Config          Settings  `json:"config"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
	Error           string    `json:"error,omitempty"`
}

func NewTask(videoID string, totalFrames int, settings Settings) Task {
	now := time.Now().UTC()
	return Task{
		ID:          uuid.NewString(),
		VideoID:     videoID,
		Status:      StatusPending,
		TotalFrames: totalFrames,
		Config:      settings,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func (t *Task) transition(to Status) error {
	allowed := false
	switch t.Status {
	case StatusPending:
		allowed = to == StatusProcessing || to == StatusFailed
	case StatusProcessing:
		allowed = to == StatusCompleted || to == StatusFailed
	}
	if !allowed {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.Status, to)
	}
	t.Status = to
	t.UpdatedAt = time.Now().UTC()
	return nil
}

// Start moves a pending task to processing.
func (t *Task) Start() error {
	return t.transition(StatusProcessing)
}

// Complete records a successful run.
func (t *Task) Complete(extracted int) error {
	if err := t.transition(StatusCompleted); err != nil {
		return err
	}
	t.FramesProcessed = t.TotalFrames
	t.FramesExtracted = extracted
	return nil
}

// Fail records an unrecovered error. A pending task may fail directly.
func (t *Task) Fail(reason string) error {
	if err := t.transition(StatusFailed); err != nil {
		return err
	}
	t.FramesProcessed = t.TotalFrames
	t.Error = reason
	return nil
}
