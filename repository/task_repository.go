package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/camden-git/clipcraft/extraction"
	"github.com/camden-git/clipcraft/models"
)

// TaskRepository persists extraction task snapshots with GORM.
type TaskRepository struct {
	DB *gorm.DB
}

var _ extraction.TaskStore = (*TaskRepository)(nil)

func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{DB: db}
}

func (r *TaskRepository) Create(ctx context.Context, task extraction.Task) error {
	row, err := toModel(task)
	if err != nil {
		return err
	}
	if err := r.DB.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("failed to create task %s: %w", task.ID, err)
	}
	return nil
}

func (r *TaskRepository) Get(ctx context.Context, id string) (extraction.Task, error) {
	return getTask(r.DB.WithContext(ctx), id)
}

// Update loads, mutates and saves the task inside one transaction.
func (r *TaskRepository) Update(ctx context.Context, id string, fn func(*extraction.Task) error) (extraction.Task, error) {
	var updated extraction.Task
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		task, err := getTask(tx, id)
		if err != nil {
			return err
		}
		if err := fn(&task); err != nil {
			return err
		}
		row, err := toModel(task)
		if err != nil {
			return err
		}
		if err := tx.Save(&row).Error; err != nil {
			return fmt.Errorf("failed to save task %s: %w", id, err)
		}
		updated = task
		return nil
	})
	if err != nil {
		return extraction.Task{}, err
	}
	return updated, nil
}

func (r *TaskRepository) List(ctx context.Context) ([]extraction.Task, error) {
	var rows []models.ExtractionTask
	if err := r.DB.WithContext(ctx).Order("created_at ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	tasks := make([]extraction.Task, 0, len(rows))
	for _, row := range rows {
		task, err := fromModel(row)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

func getTask(db *gorm.DB, id string) (extraction.Task, error) {
	var row models.ExtractionTask
	if err := db.Where("id = ?", id).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return extraction.Task{}, extraction.ErrTaskNotFound
		}
		return extraction.Task{}, fmt.Errorf("failed to get task %s: %w", id, err)
	}
	return fromModel(row)
}

func toModel(t extraction.Task) (models.ExtractionTask, error) {
	cfg, err := json.Marshal(t.Config)
	if err != nil {
		return models.ExtractionTask{}, fmt.Errorf("failed to encode task config: %w", err)
	}
	var errStr *string
	if t.Error != "" {
		e := t.Error
		errStr = &e
	}
	return models.ExtractionTask{
		ID:              t.ID,
		VideoID:         t.VideoID,
		Status:          string(t.Status),
		TotalFrames:     t.TotalFrames,
		FramesProcessed: t.FramesProcessed,
		FramesExtracted: t.FramesExtracted,
		Config:          string(cfg),
		Error:           errStr,
		CreatedAt:       t.CreatedAt,
		UpdatedAt:       t.UpdatedAt,
	}, nil
}

func fromModel(row models.ExtractionTask) (extraction.Task, error) {
	var settings extraction.Settings
	if err := json.Unmarshal([]byte(row.Config), &settings); err != nil {
		return extraction.Task{}, fmt.Errorf("failed to decode config of task %s: %w", row.ID, err)
	}
	task := extraction.Task{
		ID:              row.ID,
		VideoID:         row.VideoID,
		Status:          extraction.Status(row.Status),
		TotalFrames:     row.TotalFrames,
		FramesProcessed: row.FramesProcessed,
		FramesExtracted: row.FramesExtracted,
		Config:          settings,
		CreatedAt:       row.CreatedAt.UTC(),
		UpdatedAt:       row.UpdatedAt.UTC(),
	}
	if row.Error != nil {
		task.Error = *row.Error
	}
	return task, nil
}
