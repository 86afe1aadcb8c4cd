package repository

import (
	"github.com/camden-git/clipcraft/extraction"
)

// TaskRepositoryInterface is the task store backed by the database.
type TaskRepositoryInterface interface {
	extraction.TaskStore
}

var _ TaskRepositoryInterface = (*TaskRepository)(nil)
