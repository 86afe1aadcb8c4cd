package extraction

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// TaskStore holds task snapshots. Update applies fn to the stored task
// atomically and returns the result.
type TaskStore interface {
	Create(ctx context.Context, task Task) error
	Get(ctx context.Context, id string) (Task, error)
	Update(ctx context.Context, id string, fn func(*Task) error) (Task, error)
	List(ctx context.Context) ([]Task, error)
}

// MemoryTaskStore keeps tasks for the life of the process.
type MemoryTaskStore struct {
	mu    sync.RWMutex
	tasks map[string]Task
}

func NewMemoryTaskStore() *MemoryTaskStore {
	return &MemoryTaskStore{tasks: make(map[string]Task)}
}

func (m *MemoryTaskStore) Create(_ context.Context, task Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[task.ID]; ok {
		return fmt.Errorf("task %s already exists", task.ID)
	}
	m.tasks[task.ID] = task
	return nil
}

func (m *MemoryTaskStore) Get(_ context.Context, id string) (Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	task, ok := m.tasks[id]
	if !ok {
		return Task{}, ErrTaskNotFound
	}
	return task, nil
}

func (m *MemoryTaskStore) Update(_ context.Context, id string, fn func(*Task) error) (Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	task, ok := m.tasks[id]
	if !ok {
		return Task{}, ErrTaskNotFound
	}
	if err := fn(&task); err != nil {
		return Task{}, err
	}
	m.tasks[id] = task
	return task, nil
}

func (m *MemoryTaskStore) List(_ context.Context) ([]Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Task, 0, len(m.tasks))
	for _, t := range m.tasks {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
