package extraction

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskLifecycle(t *testing.T) {
	task := NewTask("vid", 300, Settings{SampleRate: 10})
	assert.Equal(t, StatusPending, task.Status)
	assert.NotEmpty(t, task.ID)
	assert.Zero(t, task.FramesProcessed)

	require.NoError(t, task.Start())
	assert.Equal(t, StatusProcessing, task.Status)
	assert.Zero(t, task.FramesProcessed)

	require.NoError(t, task.Complete(17))
	assert.Equal(t, StatusCompleted, task.Status)
	assert.Equal(t, 300, task.FramesProcessed)
	assert.Equal(t, 17, task.FramesExtracted)
	assert.True(t, task.Status.Terminal())
	assert.False(t, task.UpdatedAt.Before(task.CreatedAt))
}

func TestTaskFailure(t *testing.T) {
	task := NewTask("vid", 50, Settings{})
	require.NoError(t, task.Start())
	require.NoError(t, task.Fail("decode error"))
	assert.Equal(t, StatusFailed, task.Status)
	assert.Equal(t, "decode error", task.Error)
	assert.Equal(t, 50, task.FramesProcessed)

	pending := NewTask("vid", 50, Settings{})
	require.NoError(t, pending.Fail("interrupted"))
	assert.Equal(t, StatusFailed, pending.Status)
}

func TestTaskRejectsInvalidTransitions(t *testing.T) {
	task := NewTask("vid", 10, Settings{})
	assert.ErrorIs(t, task.Complete(1), ErrInvalidTransition)

	require.NoError(t, task.Start())
	assert.ErrorIs(t, task.Start(), ErrInvalidTransition)

	require.NoError(t, task.Complete(1))
	assert.ErrorIs(t, task.Fail("late"), ErrInvalidTransition)
	assert.ErrorIs(t, task.Start(), ErrInvalidTransition)
	assert.ErrorIs(t, task.Complete(2), ErrInvalidTransition)
	assert.Equal(t, StatusCompleted, task.Status)
	assert.Equal(t, 1, task.FramesExtracted)
	assert.Empty(t, task.Error)
}
