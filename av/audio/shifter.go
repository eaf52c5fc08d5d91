package audio

import (
	"errors"
	"fmt"
	"math"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// Sentinel errors for the audio stages.
var (
	// ErrBlockSize indicates a block whose length differs from the
	// configured block size, or a non-positive block size.
	ErrBlockSize = errors.New("invalid audio block size")

	// ErrInvalidCapacity indicates a ring buffer too small for the block
	// size at the maximum pitch×speed factor.
	ErrInvalidCapacity = errors.New("invalid ring buffer capacity")

	// ErrDecode indicates a packet payload that could not be decoded.
	ErrDecode = errors.New("audio decode failed")
)

// Voice effect constants.
const (
	// RoboticFrequency is the buzz oscillator frequency in Hz.
	RoboticFrequency = 80.0

	// EchoDelayFraction places the echo tap this fraction of a block
	// behind the start of the current block.
	EchoDelayFraction = 0.3

	// DefaultRingBlocks sizes the ring buffer when no capacity is given.
	DefaultRingBlocks = 4
)

// ShifterConfig describes the audio graph the shifter is attached to.
type ShifterConfig struct {
	SampleRate int
	BlockSize  int
	// Capacity of the ring buffer in samples; 0 means
	// DefaultRingBlocks*BlockSize.
	Capacity int
}

// MinCapacity returns the smallest ring capacity that keeps the playback
// cursor behind the write cursor for a whole block at MaxCombinedFactor.
func MinCapacity(blockSize int) int {
	return requiredLag(blockSize, MaxCombinedFactor)
}

// requiredLag is the distance the playback cursor must trail the write
// cursor so that reading one block at factor f, including the
// interpolation neighbour, only touches written samples.
func requiredLag(blockSize int, f float64) int {
	return int(math.Ceil(float64(blockSize-1)*f)) + 2
}

// PitchShifter is the voice changer. Every input block is appended to a
// ring buffer; the output block is read back from a fractional playback
// cursor advancing 2^(semitones/12)×speed samples per output sample,
// then robotic and echo effects are mixed in and a limiter clamps the
// result to [-1, 1].
//
// Process must be called from a single goroutine (the audio callback).
// Settings are read once per block from the VoiceStore.
type PitchShifter struct {
	settings   *VoiceStore
	ring       *RingBuffer
	limiter    *LimiterEffect
	blockSize  int
	sampleRate int

	read      float64
	phase     float64
	phaseStep float64

	lag       float64
	reanchors atomic.Uint64
	disposed  atomic.Bool
}

// NewPitchShifter creates a shifter reading settings from store. A nil
// store gets default settings.
func NewPitchShifter(cfg ShifterConfig, store *VoiceStore) (*PitchShifter, error) {
	logrus.WithFields(logrus.Fields{
		"function":    "NewPitchShifter",
		"sample_rate": cfg.SampleRate,
		"block_size":  cfg.BlockSize,
		"capacity":    cfg.Capacity,
	}).Info("Creating pitch shifter")

	if cfg.BlockSize <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrBlockSize, cfg.BlockSize)
	}
	if cfg.SampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate: %d", cfg.SampleRate)
	}

	capacity := cfg.Capacity
	if capacity == 0 {
		capacity = DefaultRingBlocks * cfg.BlockSize
	}
	if minCap := MinCapacity(cfg.BlockSize); capacity < minCap {
		logrus.WithFields(logrus.Fields{
			"function": "NewPitchShifter",
			"capacity": capacity,
			"minimum":  minCap,
		}).Error("Ring buffer capacity too small")
		return nil, fmt.Errorf("%w: %d samples, need at least %d for block size %d",
			ErrInvalidCapacity, capacity, minCap, cfg.BlockSize)
	}

	ring, err := NewRingBuffer(capacity)
	if err != nil {
		return nil, err
	}

	if store == nil {
		store = NewVoiceStore(DefaultVoiceChangerSettings())
	}

	return &PitchShifter{
		settings:   store,
		ring:       ring,
		limiter:    NewLimiterEffect(),
		blockSize:  cfg.BlockSize,
		sampleRate: cfg.SampleRate,
		phaseStep:  2 * math.Pi * RoboticFrequency / float64(cfg.SampleRate),
	}, nil
}

// Settings returns the store this shifter reads.
func (p *PitchShifter) Settings() *VoiceStore {
	return p.settings
}

// BlockSize returns the fixed block length.
func (p *PitchShifter) BlockSize() int {
	return p.blockSize
}

// Process transforms one block. The input slice is not modified. After
// Close it returns a copy of the input without touching any state.
func (p *PitchShifter) Process(in []float32) ([]float32, error) {
	out := make([]float32, len(in))

	if p.disposed.Load() {
		copy(out, in)
		return out, nil
	}
	if len(in) != p.blockSize {
		return nil, fmt.Errorf("%w: got %d samples, want %d", ErrBlockSize, len(in), p.blockSize)
	}

	s := p.settings.Get()

	blockStart := p.ring.WriteCursor()
	p.ring.Write(in)

	if !s.Enabled {
		copy(out, in)
		return out, nil
	}

	f := s.CombinedFactor()
	p.anchor(f)

	capacity := float64(p.ring.Cap())
	for i := range out {
		v := p.ring.Interpolate(p.read)

		if s.Robotic > 0 {
			v = v*float32(1-s.Robotic*0.7) + float32(math.Sin(p.phase)*s.Robotic*0.3)
			p.phase += p.phaseStep
			if p.phase >= 2*math.Pi {
				p.phase -= 2 * math.Pi
			}
		}

		out[i] = v

		p.read += f
		if p.read >= capacity {
			p.read -= capacity
		}
	}

	if s.Echo > 0 {
		delay := int(math.Round(EchoDelayFraction * float64(p.blockSize)))
		dry := float32(1 - s.Echo*0.3)
		wet := float32(s.Echo * 0.2)
		for i := range out {
			out[i] = out[i]*dry + p.ring.At(blockStart+i-delay)*wet
		}
	}

	return p.limiter.Process(out)
}

// anchor keeps the playback cursor at least requiredLag behind the write
// cursor. A cursor that has fallen too close, or lapped, is moved back
// to exactly that distance.
func (p *PitchShifter) anchor(f float64) {
	required := float64(requiredLag(p.blockSize, f))
	lag := p.ring.Distance(p.read)

	if lag < required {
		p.read = p.ring.Wrap(float64(p.ring.WriteCursor()) - required)
		p.reanchors.Add(1)
		logrus.WithFields(logrus.Fields{
			"function": "PitchShifter.anchor",
			"lag":      lag,
			"required": required,
			"factor":   f,
		}).Trace("Playback cursor re-anchored")
		lag = required
	}

	p.lag = lag
}

// CursorDistance returns how far the playback cursor trailed the write
// cursor at the start of the last enabled block.
func (p *PitchShifter) CursorDistance() float64 {
	return p.lag
}

// Latency returns how many samples the last enabled block's playback
// started behind that block's first input sample. It is zero while the
// shifter is disabled.
func (p *PitchShifter) Latency() int {
	return max(0, int(math.Ceil(p.lag))-p.blockSize)
}

// Reanchors returns how many times the playback cursor was moved.
func (p *PitchShifter) Reanchors() uint64 {
	return p.reanchors.Load()
}

// Clipped returns the number of output samples the limiter clamped.
func (p *PitchShifter) Clipped() uint64 {
	return p.limiter.Clipped()
}

// GetName returns the effect name.
func (p *PitchShifter) GetName() string {
	s := p.settings.Get()
	return fmt.Sprintf("PitchShifter(%+.1fst, x%.2f)", s.PitchShift, s.Speed)
}

// Close marks the shifter disposed. Later Process calls are pass-through
// no-ops. It is idempotent.
func (p *PitchShifter) Close() error {
	if p.disposed.Swap(true) {
		return nil
	}

	logrus.WithFields(logrus.Fields{
		"function":  "PitchShifter.Close",
		"reanchors": p.reanchors.Load(),
		"clipped":   p.limiter.Clipped(),
	}).Info("Pitch shifter closed")

	return nil
}
