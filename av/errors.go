package av

import "errors"

// Sentinel errors for av package operations.
// These errors enable reliable error classification using errors.Is().

// Task control errors.
var (
	// ErrTaskCancelled indicates the task was cancelled and will not run again.
	ErrTaskCancelled = errors.New("task cancelled")

	// ErrTaskPaused indicates the task is paused.
	ErrTaskPaused = errors.New("task is paused")

	// ErrTaskNotPaused indicates a resume was requested for a running task.
	ErrTaskNotPaused = errors.New("task is not paused")

	// ErrTaskAlreadyRunning indicates a driver is already running the task.
	ErrTaskAlreadyRunning = errors.New("task is already running")
)

// Session errors.
var (
	// ErrCapabilityUnavailable indicates a pipeline stage could not be
	// initialized. Only that modality fails to start.
	ErrCapabilityUnavailable = errors.New("capability unavailable")

	// ErrSessionClosed indicates the session has been closed.
	ErrSessionClosed = errors.New("session closed")
)
