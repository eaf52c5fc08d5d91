package av

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"
)

// Stage names a timed pipeline step.
type Stage string

const (
	StageSmooth    Stage = "smooth"
	StageComposite Stage = "composite"
	StagePose      Stage = "pose"
	StageBeauty    Stage = "beauty"
	StageFrame     Stage = "frame"
	StageVoice     Stage = "voice"
)

// Pipeline labels for deadline accounting.
const (
	PipelineVideo = "video"
	PipelineAudio = "audio"
)

// StageReport summarizes one stage.
type StageReport struct {
	Count uint64
	Mean  time.Duration
	Peak  time.Duration
}

// Report is a point-in-time view of all pipeline metrics.
type Report struct {
	Stages              map[Stage]StageReport
	VideoDeadlineMisses uint64
	AudioDeadlineMisses uint64
	LoadFailures        uint64
	ActiveSessions      int
	Timestamp           time.Time
}

type stageStats struct {
	count uint64
	total time.Duration
	peak  time.Duration
}

// Metrics records per-stage durations, deadline misses and image load
// failures. Every value is exported on a private prometheus registry and
// kept in a plain summary for Snapshot.
//
// Example usage:
//
//	m := av.NewMetrics()
//	http.Handle("/metrics", promhttp.HandlerFor(m.Registry(), promhttp.HandlerOpts{}))
//	m.OnReport(func(r av.Report) { ... })
//	m.Start(5 * time.Second)
//	defer m.Stop()
type Metrics struct {
	registry       *prometheus.Registry
	stageDuration  *prometheus.HistogramVec
	deadlineMisses *prometheus.CounterVec
	loadFailures   prometheus.Counter
	activeSessions prometheus.Gauge

	mu       sync.RWMutex
	stages   map[Stage]*stageStats
	misses   map[string]uint64
	failures uint64
	sessions int

	running        bool
	cancel         context.CancelFunc
	reportCallback func(Report)
	timeProvider   TimeProvider
}

// NewMetrics creates a metrics recorder with its own registry.
func NewMetrics() *Metrics {
	logrus.WithFields(logrus.Fields{
		"function": "NewMetrics",
	}).Info("Creating pipeline metrics")

	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		stageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "avatarfx_stage_duration_seconds",
				Help:    "Duration of a pipeline stage per frame or block",
				Buckets: []float64{0.0001, 0.0005, 0.001, 0.002, 0.005, 0.01, 0.02, 0.05, 0.1},
			},
			[]string{"stage"},
		),
		deadlineMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "avatarfx_deadline_misses_total",
				Help: "Frames or blocks that took longer than their period",
			},
			[]string{"pipeline"},
		),
		loadFailures: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "avatarfx_image_load_failures_total",
				Help: "Image resources that failed to load",
			},
		),
		activeSessions: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "avatarfx_active_sessions",
				Help: "Number of open sessions",
			},
		),
		stages:       make(map[Stage]*stageStats),
		misses:       make(map[string]uint64),
		timeProvider: DefaultTimeProvider{},
	}
}

// Registry returns the prometheus registry holding every collector.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// SetTimeProvider sets the clock used to stamp reports.
func (m *Metrics) SetTimeProvider(tp TimeProvider) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.timeProvider = tp
}

// ObserveStage records one execution of stage.
func (m *Metrics) ObserveStage(stage Stage, d time.Duration) {
	m.stageDuration.WithLabelValues(string(stage)).Observe(d.Seconds())

	m.mu.Lock()
	st, ok := m.stages[stage]
	if !ok {
		st = &stageStats{}
		m.stages[stage] = st
	}
	st.count++
	st.total += d
	if d > st.peak {
		st.peak = d
	}
	m.mu.Unlock()
}

// DeadlineMiss counts a frame or block that overran its period.
func (m *Metrics) DeadlineMiss(pipeline string, elapsed, period time.Duration) {
	m.deadlineMisses.WithLabelValues(pipeline).Inc()

	m.mu.Lock()
	m.misses[pipeline]++
	m.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function": "Metrics.DeadlineMiss",
		"pipeline": pipeline,
		"elapsed":  elapsed,
		"period":   period,
	}).Debug("Deadline missed")
}

// LoadFailures adds n failed image loads.
func (m *Metrics) LoadFailures(n int) {
	if n <= 0 {
		return
	}
	m.loadFailures.Add(float64(n))

	m.mu.Lock()
	m.failures += uint64(n)
	m.mu.Unlock()
}

func (m *Metrics) sessionOpened() {
	m.activeSessions.Inc()
	m.mu.Lock()
	m.sessions++
	m.mu.Unlock()
}

func (m *Metrics) sessionClosed() {
	m.activeSessions.Dec()
	m.mu.Lock()
	m.sessions--
	m.mu.Unlock()
}

// Snapshot returns the current summary.
func (m *Metrics) Snapshot() Report {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r := Report{
		Stages:              make(map[Stage]StageReport, len(m.stages)),
		VideoDeadlineMisses: m.misses[PipelineVideo],
		AudioDeadlineMisses: m.misses[PipelineAudio],
		LoadFailures:        m.failures,
		ActiveSessions:      m.sessions,
		Timestamp:           m.timeProvider.Now(),
	}
	for stage, st := range m.stages {
		var mean time.Duration
		if st.count > 0 {
			mean = st.total / time.Duration(st.count)
		}
		r.Stages[stage] = StageReport{Count: st.count, Mean: mean, Peak: st.peak}
	}
	return r
}

// OnReport registers a callback for periodic reports.
func (m *Metrics) OnReport(callback func(Report)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reportCallback = callback

	logrus.WithFields(logrus.Fields{
		"function": "Metrics.OnReport",
	}).Debug("Report callback registered")
}

// Start begins periodic reporting at interval.
func (m *Metrics) Start(interval time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return ErrTaskAlreadyRunning
	}

	logrus.WithFields(logrus.Fields{
		"function": "Metrics.Start",
		"interval": interval,
	}).Info("Starting metrics reporting")

	ctx, cancel := context.WithCancel(context.Background())
	m.running = true
	m.cancel = cancel
	go m.reportLoop(ctx, interval)

	return nil
}

// Stop halts periodic reporting.
func (m *Metrics) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}
	m.running = false
	m.cancel()

	logrus.WithFields(logrus.Fields{
		"function": "Metrics.Stop",
	}).Info("Metrics reporting stopped")
}

// IsRunning returns whether periodic reporting is active.
func (m *Metrics) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running
}

func (m *Metrics) reportLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.generateReport()
		}
	}
}

func (m *Metrics) generateReport() {
	report := m.Snapshot()

	m.mu.RLock()
	callback := m.reportCallback
	m.mu.RUnlock()

	if logrus.IsLevelEnabled(logrus.TraceLevel) {
		logrus.WithFields(logrus.Fields{
			"function":     "Metrics.generateReport",
			"stages":       len(report.Stages),
			"video_misses": report.VideoDeadlineMisses,
			"audio_misses": report.AudioDeadlineMisses,
		}).Trace("Metrics report generated")
	}

	if callback != nil {
		callback(report)
	}
}
