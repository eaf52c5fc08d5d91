package av

import (
	"context"
	"image"
	"time"

	"github.com/opd-ai/avatarfx/av/compositor"
	"github.com/opd-ai/avatarfx/av/video"
	"github.com/opd-ai/avatarfx/avatar"
	"github.com/opd-ai/avatarfx/expression"
	"github.com/sirupsen/logrus"
)

// VideoFrame is the output of one video tick.
type VideoFrame struct {
	Weights      expression.Weights
	HeadRotation [3]float64
	// Canvas is owned by the compositor and valid until the next tick.
	Canvas *image.RGBA
	Drawn  int
	Pose   avatar.Result
	// Camera is the beauty-filtered camera frame, nil when none was given.
	Camera *video.Frame
	Dirty  bool
}

// VideoTask runs one video frame per Tick: read the latest expression,
// smooth it, composite the emotion images, drive the avatar rig and
// filter the camera frame. Tick never waits for detection.
type VideoTask struct {
	control    taskControl
	session    *Session
	compositor *compositor.Compositor
	pose       *avatar.PoseDriver
	beauty     *video.BeautyFilter
	period     time.Duration
	tp         TimeProvider
}

func newVideoTask(s *Session, comp *compositor.Compositor, pose *avatar.PoseDriver, beauty *video.BeautyFilter) *VideoTask {
	logrus.WithFields(logrus.Fields{
		"function":   "newVideoTask",
		"session_id": s.ID.String(),
		"pose":       pose != nil,
	}).Info("Creating video task")

	return &VideoTask{
		control:    taskControl{name: "video"},
		session:    s,
		compositor: comp,
		pose:       pose,
		beauty:     beauty,
		period:     s.cfg.FramePeriod(),
		tp:         s.getTimeProvider(),
	}
}

// State returns the task state.
func (t *VideoTask) State() TaskState { return t.control.State() }

// Compositor returns the task's compositor.
func (t *VideoTask) Compositor() *compositor.Compositor { return t.compositor }

// Reconfigure swaps the emotion image set. Failed loads are counted.
func (t *VideoTask) Reconfigure(ctx context.Context, set compositor.ImageSet) (compositor.ConfigureResult, error) {
	if t.State() == TaskStateCancelled {
		return compositor.ConfigureResult{}, ErrTaskCancelled
	}
	res, err := t.compositor.Configure(ctx, set)
	t.session.metrics.LoadFailures(res.Failed)
	return res, err
}

// Tick produces one frame. camera and landmarks may be nil. A paused
// task returns ErrTaskPaused and a cancelled one ErrTaskCancelled
// without touching any state.
func (t *VideoTask) Tick(camera *video.Frame, landmarks *video.FaceLandmarks) (VideoFrame, error) {
	switch t.State() {
	case TaskStatePaused:
		return VideoFrame{}, ErrTaskPaused
	case TaskStateCancelled:
		return VideoFrame{}, ErrTaskCancelled
	}

	m := t.session.metrics
	frameStart := t.tp.Now()
	var out VideoFrame

	start := frameStart
	obs := t.session.tracker.Latest()
	out.Weights = t.session.smoother.SmoothWeights(obs.Weights)
	out.HeadRotation = t.session.smoother.SmoothVec3("head", obs.HeadRotation)
	m.ObserveStage(StageSmooth, t.tp.Since(start))

	start = t.tp.Now()
	out.Canvas, out.Drawn = t.compositor.Composite(out.Weights)
	out.Dirty = t.compositor.TakeDirty()
	m.ObserveStage(StageComposite, t.tp.Since(start))

	if t.pose != nil {
		start = t.tp.Now()
		out.Pose = t.pose.Apply(out.Weights, out.HeadRotation)
		m.ObserveStage(StagePose, t.tp.Since(start))
	}

	if camera != nil {
		start = t.tp.Now()
		filtered, err := t.beauty.ApplyWithLandmarks(camera, landmarks)
		m.ObserveStage(StageBeauty, t.tp.Since(start))
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"function":   "VideoTask.Tick",
				"session_id": t.session.ID.String(),
				"error":      err.Error(),
			}).Debug("Camera frame skipped")
		} else {
			out.Camera = filtered
		}
	}

	elapsed := t.tp.Since(frameStart)
	m.ObserveStage(StageFrame, elapsed)
	if t.period > 0 && elapsed > t.period {
		m.DeadlineMiss(PipelineVideo, elapsed, t.period)
	}

	logrus.WithFields(logrus.Fields{
		"function": "VideoTask.Tick",
		"drawn":    out.Drawn,
		"elapsed":  elapsed,
	}).Trace("Video frame complete")

	return out, nil
}

// Pause stops frame production until Resume.
func (t *VideoTask) Pause() error { return t.control.pause() }

// Resume restarts frame production.
func (t *VideoTask) Resume() error { return t.control.resume() }

// Cancel stops the task for good and releases the canvas, the image
// handles and the rig's expression slots. Cancelling twice returns
// ErrTaskCancelled.
func (t *VideoTask) Cancel() error {
	if !t.control.cancel() {
		return ErrTaskCancelled
	}
	if t.pose != nil {
		t.pose.Reset()
	}
	return t.compositor.Close()
}
