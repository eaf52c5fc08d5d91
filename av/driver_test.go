package av

import (
	"context"
	"testing"
	"time"

	"github.com/opd-ai/avatarfx/av/video"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDriver(t *testing.T) (*Driver, *VideoTask) {
	t.Helper()
	s, _ := newTestSession(t)
	task, err := s.NewVideoTask(context.Background(), nil)
	require.NoError(t, err)
	d, err := NewDriver(task, 200)
	require.NoError(t, err)
	return d, task
}

func TestNewDriver_Validation(t *testing.T) {
	_, err := NewDriver(nil, 30)
	assert.Error(t, err)

	_, task := newTestDriver(t)
	for _, rate := range []float64{0, -1} {
		_, err := NewDriver(task, rate)
		assert.Error(t, err, "rate %v", rate)
	}

	d, err := NewDriver(task, 50)
	require.NoError(t, err)
	assert.Equal(t, 20*time.Millisecond, d.Interval())
}

func TestDriver_RunUntilContextDone(t *testing.T) {
	d, _ := newTestDriver(t)

	frames := make(chan VideoFrame, 1000)
	d.OnFrame(func(f VideoFrame) { frames <- f })

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err := d.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Greater(t, d.Ticks(), uint64(0))
	assert.Len(t, frames, int(d.Ticks()))
}

func TestDriver_ExitsWhenTaskCancelled(t *testing.T) {
	d, task := newTestDriver(t)

	d.OnFrame(func(VideoFrame) {
		if d.Ticks() >= 3 {
			task.Cancel()
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, d.Run(ctx))
	assert.Equal(t, uint64(3), d.Ticks())
}

func TestDriver_SkipsPausedTicks(t *testing.T) {
	d, task := newTestDriver(t)
	require.NoError(t, task.Pause())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	assert.ErrorIs(t, d.Run(ctx), context.DeadlineExceeded)
	assert.Zero(t, d.Ticks())
}

func TestDriver_FrameSource(t *testing.T) {
	d, task := newTestDriver(t)
	enabled := true
	task.session.Beauty().Update(video.BeautyUpdate{Enabled: &enabled})

	d.SetFrameSource(func() (*video.Frame, *video.FaceLandmarks) {
		return video.NewFrame(8, 8), nil
	})

	var got *video.Frame
	d.OnFrame(func(f VideoFrame) {
		got = f.Camera
		task.Cancel()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, d.Run(ctx))
	require.NotNil(t, got)
	assert.Equal(t, 8, got.Width)
}

func TestDriver_RunTwice(t *testing.T) {
	d, _ := newTestDriver(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	require.Eventually(t, d.running.Load, time.Second, time.Millisecond)
	assert.ErrorIs(t, d.Run(context.Background()), ErrTaskAlreadyRunning)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}
