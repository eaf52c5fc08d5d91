package av

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/opd-ai/avatarfx/av/video"
	"github.com/sirupsen/logrus"
)

// FrameSource supplies the camera frame and landmarks for a tick. Either
// may be nil.
type FrameSource func() (*video.Frame, *video.FaceLandmarks)

// Driver ticks a VideoTask at a fixed frame rate for hosts that have no
// display clock of their own.
type Driver struct {
	task     *VideoTask
	interval time.Duration
	source   FrameSource
	onFrame  func(VideoFrame)
	running  atomic.Bool
	ticks    atomic.Uint64
}

// NewDriver creates a driver for task at frameRate frames per second.
func NewDriver(task *VideoTask, frameRate float64) (*Driver, error) {
	if task == nil {
		return nil, errors.New("video task cannot be nil")
	}
	if frameRate <= 0 {
		return nil, fmt.Errorf("invalid frame rate: %v", frameRate)
	}

	interval := time.Duration(float64(time.Second) / frameRate)

	logrus.WithFields(logrus.Fields{
		"function": "NewDriver",
		"interval": interval,
	}).Info("Creating video driver")

	return &Driver{task: task, interval: interval}, nil
}

// SetFrameSource sets the camera input. Must be called before Run.
func (d *Driver) SetFrameSource(src FrameSource) { d.source = src }

// OnFrame sets the callback receiving each produced frame. Must be
// called before Run.
func (d *Driver) OnFrame(fn func(VideoFrame)) { d.onFrame = fn }

// Interval returns the tick period.
func (d *Driver) Interval() time.Duration { return d.interval }

// Ticks returns how many frames were produced.
func (d *Driver) Ticks() uint64 { return d.ticks.Load() }

// Run ticks until ctx is done or the task is cancelled. Paused ticks are
// skipped. It returns nil when the task was cancelled and ctx.Err()
// otherwise.
func (d *Driver) Run(ctx context.Context) error {
	if !d.running.CompareAndSwap(false, true) {
		return ErrTaskAlreadyRunning
	}
	defer d.running.Store(false)

	logrus.WithFields(logrus.Fields{
		"function": "Driver.Run",
	}).Info("Video driver started")

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logrus.WithFields(logrus.Fields{
				"function": "Driver.Run",
				"ticks":    d.ticks.Load(),
			}).Info("Video driver stopped")
			return ctx.Err()
		case <-ticker.C:
			if done := d.step(); done {
				return nil
			}
		}
	}
}

// step runs a single tick and reports whether the task has ended.
func (d *Driver) step() bool {
	var (
		frame *video.Frame
		lm    *video.FaceLandmarks
	)
	if d.source != nil {
		frame, lm = d.source()
	}

	out, err := d.task.Tick(frame, lm)
	switch {
	case errors.Is(err, ErrTaskPaused):
		return false
	case errors.Is(err, ErrTaskCancelled):
		logrus.WithFields(logrus.Fields{
			"function": "Driver.step",
			"ticks":    d.ticks.Load(),
		}).Info("Video task cancelled, driver exiting")
		return true
	case err != nil:
		return false
	}

	d.ticks.Add(1)
	if d.onFrame != nil {
		d.onFrame(out)
	}
	return false
}
