package av

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/opd-ai/avatarfx/av/audio"
	"github.com/opd-ai/avatarfx/av/compositor"
	"github.com/opd-ai/avatarfx/av/video"
	"github.com/opd-ai/avatarfx/avatar"
	"github.com/opd-ai/avatarfx/expression"
	"github.com/sirupsen/logrus"
)

// SessionConfig holds the per-session pipeline parameters.
type SessionConfig struct {
	Width           int
	Height          int
	FrameRate       float64
	SampleRate      int
	BlockSize       int
	RingBlocks      int
	SmoothingFactor float64
	Images          compositor.ImageSet
	Beauty          video.BeautySettings
	Voice           audio.VoiceChangerSettings
}

// DefaultSessionConfig returns a 512×512, 30 fps, 48 kHz / 4096-sample
// configuration with default effect settings.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		Width:           512,
		Height:          512,
		FrameRate:       30,
		SampleRate:      48000,
		BlockSize:       4096,
		RingBlocks:      audio.DefaultRingBlocks,
		SmoothingFactor: 0.3,
		Beauty:          video.DefaultBeautySettings(),
		Voice:           audio.DefaultVoiceChangerSettings(),
	}
}

// FramePeriod returns the video deadline.
func (c SessionConfig) FramePeriod() time.Duration {
	if c.FrameRate <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / c.FrameRate)
}

// BlockPeriod returns the audio deadline.
func (c SessionConfig) BlockPeriod() time.Duration {
	if c.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(c.BlockSize) / float64(c.SampleRate) * float64(time.Second))
}

type cancelable interface {
	Cancel() error
}

// Session is the per-call context object. It owns the settings stores,
// the expression tracker and smoother, and the image cache shared by its
// tasks. Nothing in it is process-wide.
type Session struct {
	ID uuid.UUID

	cfg      SessionConfig
	tracker  *expression.Tracker
	smoother *expression.Smoother
	beauty   *video.BeautyStore
	voice    *audio.VoiceStore
	cache    *compositor.Cache
	metrics  *Metrics

	mu           sync.Mutex
	tasks        []cancelable
	closed       bool
	timeProvider TimeProvider
}

// NewSession creates a session. A nil loader uses the default resource
// loader; a nil metrics gets a fresh recorder.
func NewSession(cfg SessionConfig, loader compositor.Loader, metrics *Metrics) *Session {
	if metrics == nil {
		metrics = NewMetrics()
	}

	s := &Session{
		ID:           uuid.New(),
		cfg:          cfg,
		tracker:      expression.NewTracker(nil),
		smoother:     expression.NewSmoother(cfg.SmoothingFactor),
		beauty:       video.NewBeautyStore(cfg.Beauty),
		voice:        audio.NewVoiceStore(cfg.Voice),
		cache:        compositor.NewCache(loader),
		metrics:      metrics,
		timeProvider: DefaultTimeProvider{},
	}
	metrics.sessionOpened()

	logrus.WithFields(logrus.Fields{
		"function":   "NewSession",
		"session_id": s.ID.String(),
		"width":      cfg.Width,
		"height":     cfg.Height,
		"block_size": cfg.BlockSize,
	}).Info("Session created")

	return s
}

// Config returns the session configuration.
func (s *Session) Config() SessionConfig { return s.cfg }

// Tracker returns the last-known expression holder fed by detection.
func (s *Session) Tracker() *expression.Tracker { return s.tracker }

// Smoother returns the session's expression smoother.
func (s *Session) Smoother() *expression.Smoother { return s.smoother }

// Beauty returns the beauty settings store.
func (s *Session) Beauty() *video.BeautyStore { return s.beauty }

// Voice returns the voice changer settings store.
func (s *Session) Voice() *audio.VoiceStore { return s.voice }

// Cache returns the session's image cache.
func (s *Session) Cache() *compositor.Cache { return s.cache }

// Metrics returns the metrics recorder.
func (s *Session) Metrics() *Metrics { return s.metrics }

// SetTimeProvider sets the clock used for stage timing by tasks created
// afterwards.
func (s *Session) SetTimeProvider(tp TimeProvider) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timeProvider = tp
}

func (s *Session) getTimeProvider() TimeProvider {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timeProvider
}

func (s *Session) register(t cancelable) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	s.tasks = append(s.tasks, t)
	return nil
}

// NewVideoTask builds the video pipeline: compositor, optional pose
// driver for rig, and beauty filter. Image load failures are logged and
// counted but do not fail the task. A nil rig disables pose driving.
func (s *Session) NewVideoTask(ctx context.Context, rig avatar.Rig) (*VideoTask, error) {
	if s.isClosed() {
		return nil, ErrSessionClosed
	}

	comp, err := compositor.New(s.cfg.Width, s.cfg.Height, s.cache)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function":   "Session.NewVideoTask",
			"session_id": s.ID.String(),
			"error":      err.Error(),
		}).Error("Video pipeline unavailable")
		return nil, fmt.Errorf("%w: video: %w", ErrCapabilityUnavailable, err)
	}

	if len(s.cfg.Images) > 0 {
		res, err := comp.Configure(ctx, s.cfg.Images)
		if err != nil {
			comp.Close()
			return nil, fmt.Errorf("%w: video: %w", ErrCapabilityUnavailable, err)
		}
		s.metrics.LoadFailures(res.Failed)
	}

	var pose *avatar.PoseDriver
	if rig != nil {
		pose = avatar.NewPoseDriver(rig)
	}

	t := newVideoTask(s, comp, pose, video.NewBeautyFilter(s.beauty))
	if err := s.register(t); err != nil {
		t.Cancel()
		return nil, err
	}
	return t, nil
}

// NewAudioTask builds the voice pipeline. A nil decoder uses Opus.
func (s *Session) NewAudioTask(decoder audio.PacketDecoder) (*AudioTask, error) {
	if s.isClosed() {
		return nil, ErrSessionClosed
	}

	shifter, err := audio.NewPitchShifter(audio.ShifterConfig{
		SampleRate: s.cfg.SampleRate,
		BlockSize:  s.cfg.BlockSize,
		Capacity:   s.cfg.RingBlocks * s.cfg.BlockSize,
	}, s.voice)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function":   "Session.NewAudioTask",
			"session_id": s.ID.String(),
			"error":      err.Error(),
		}).Error("Audio pipeline unavailable")
		return nil, fmt.Errorf("%w: audio: %w", ErrCapabilityUnavailable, err)
	}

	source, err := audio.NewPacketSource(decoder, uint32(s.cfg.SampleRate), s.cfg.BlockSize)
	if err != nil {
		shifter.Close()
		return nil, fmt.Errorf("%w: audio: %w", ErrCapabilityUnavailable, err)
	}

	t := newAudioTask(s, shifter, source)
	if err := s.register(t); err != nil {
		t.Cancel()
		return nil, err
	}
	return t, nil
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close cancels every task and disposes the image cache. It is idempotent.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	tasks := s.tasks
	s.tasks = nil
	s.mu.Unlock()

	for _, t := range tasks {
		t.Cancel()
	}
	s.cache.Dispose()
	s.metrics.sessionClosed()

	logrus.WithFields(logrus.Fields{
		"function":   "Session.Close",
		"session_id": s.ID.String(),
		"tasks":      len(tasks),
	}).Info("Session closed")

	return nil
}
