package av

import (
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// TaskState is the lifecycle state of a pipeline task.
type TaskState uint32

const (
	// TaskStateRunning indicates the task processes every tick.
	TaskStateRunning TaskState = iota
	// TaskStatePaused indicates ticks are skipped until Resume.
	TaskStatePaused
	// TaskStateCancelled indicates the task released its resources.
	TaskStateCancelled
)

// String returns a human readable state name.
func (s TaskState) String() string {
	switch s {
	case TaskStateRunning:
		return "running"
	case TaskStatePaused:
		return "paused"
	case TaskStateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// TimeProvider abstracts time for deterministic testing.
type TimeProvider interface {
	Now() time.Time
	Since(t time.Time) time.Duration
}

// DefaultTimeProvider uses the standard library time functions.
type DefaultTimeProvider struct{}

// Now returns the current time.
func (DefaultTimeProvider) Now() time.Time { return time.Now() }

// Since returns the time elapsed since t.
func (DefaultTimeProvider) Since(t time.Time) time.Duration { return time.Since(t) }

// taskControl holds the pause/resume/cancel state shared by the video and
// audio tasks. Transitions are lock-free so the hot path can check the
// state with a single load.
type taskControl struct {
	name  string
	state atomic.Uint32
}

func (c *taskControl) State() TaskState {
	return TaskState(c.state.Load())
}

func (c *taskControl) pause() error {
	if c.state.CompareAndSwap(uint32(TaskStateRunning), uint32(TaskStatePaused)) {
		c.logTransition("pause", TaskStatePaused)
		return nil
	}
	if c.State() == TaskStateCancelled {
		return ErrTaskCancelled
	}
	return ErrTaskPaused
}

func (c *taskControl) resume() error {
	if c.state.CompareAndSwap(uint32(TaskStatePaused), uint32(TaskStateRunning)) {
		c.logTransition("resume", TaskStateRunning)
		return nil
	}
	if c.State() == TaskStateCancelled {
		return ErrTaskCancelled
	}
	return ErrTaskNotPaused
}

// cancel reports whether this call performed the transition.
func (c *taskControl) cancel() bool {
	prev := TaskState(c.state.Swap(uint32(TaskStateCancelled)))
	if prev == TaskStateCancelled {
		return false
	}
	c.logTransition("cancel", TaskStateCancelled)
	return true
}

func (c *taskControl) logTransition(action string, to TaskState) {
	logrus.WithFields(logrus.Fields{
		"function": "taskControl." + action,
		"task":     c.name,
		"state":    to.String(),
	}).Info("Task state changed")
}
