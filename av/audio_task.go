package av

import (
	"github.com/opd-ai/avatarfx/av/audio"
	"github.com/sirupsen/logrus"
)

// AudioTask runs the voice changer for one session. Process is called by
// the audio callback once per block; RTP input is assembled into blocks
// first.
//
// The audio graph may deliver a block after Pause or Cancel, so both are
// pass-through rather than errors: a paused task returns the input and a
// cancelled task returns a copy without touching any state.
type AudioTask struct {
	control taskControl
	session *Session
	shifter *audio.PitchShifter
	source  *audio.PacketSource
	tp      TimeProvider
}

func newAudioTask(s *Session, shifter *audio.PitchShifter, source *audio.PacketSource) *AudioTask {
	logrus.WithFields(logrus.Fields{
		"function":   "newAudioTask",
		"session_id": s.ID.String(),
		"block_size": shifter.BlockSize(),
	}).Info("Creating audio task")

	return &AudioTask{
		control: taskControl{name: "audio"},
		session: s,
		shifter: shifter,
		source:  source,
		tp:      s.getTimeProvider(),
	}
}

// State returns the task state.
func (t *AudioTask) State() TaskState { return t.control.State() }

// Shifter returns the task's pitch shifter.
func (t *AudioTask) Shifter() *audio.PitchShifter { return t.shifter }

// Process transforms one block.
func (t *AudioTask) Process(in []float32) ([]float32, error) {
	if t.State() != TaskStateRunning {
		out := make([]float32, len(in))
		copy(out, in)
		return out, nil
	}

	start := t.tp.Now()
	out, err := t.shifter.Process(in)
	elapsed := t.tp.Since(start)
	if err != nil {
		return nil, err
	}

	m := t.session.metrics
	m.ObserveStage(StageVoice, elapsed)
	if period := t.session.cfg.BlockPeriod(); period > 0 && elapsed > period {
		m.DeadlineMiss(PipelineAudio, elapsed, period)
	}
	return out, nil
}

// ProcessRTP decodes one RTP packet and processes every block it
// completes. Duplicate and stale packets yield no blocks.
func (t *AudioTask) ProcessRTP(packet []byte) ([][]float32, error) {
	if t.State() == TaskStateCancelled {
		return nil, nil
	}

	blocks, err := t.source.WriteRTP(packet)
	if err != nil {
		return nil, err
	}

	out := make([][]float32, 0, len(blocks))
	for _, b := range blocks {
		processed, err := t.Process(b)
		if err != nil {
			return out, err
		}
		out = append(out, processed)
	}
	return out, nil
}

// SourceStats returns the RTP source counters.
func (t *AudioTask) SourceStats() audio.PacketSourceStats {
	return t.source.Stats()
}

// Pause makes Process pass audio through unchanged.
func (t *AudioTask) Pause() error { return t.control.pause() }

// Resume restores voice processing.
func (t *AudioTask) Resume() error { return t.control.resume() }

// Cancel disconnects the task. Later blocks pass through untouched.
func (t *AudioTask) Cancel() error {
	if !t.control.cancel() {
		return ErrTaskCancelled
	}
	return t.shifter.Close()
}
