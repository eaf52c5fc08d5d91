package audio

import (
	"math"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// Voice changer ranges. Out-of-range values are clamped.
const (
	MinPitchShift = -12.0
	MaxPitchShift = 12.0
	MinSpeed      = 0.8
	MaxSpeed      = 1.5
)

// MaxCombinedFactor is the largest pitch×speed product the settings allow.
var MaxCombinedFactor = math.Pow(2, MaxPitchShift/12) * MaxSpeed

// VoiceChangerSettings is an immutable snapshot of the voice changer
// configuration.
type VoiceChangerSettings struct {
	Enabled    bool
	PitchShift float64 // semitones
	Speed      float64
	Robotic    float64 // 0..1
	Echo       float64 // 0..1
}

// DefaultVoiceChangerSettings returns a disabled, neutral configuration.
func DefaultVoiceChangerSettings() VoiceChangerSettings {
	return VoiceChangerSettings{Speed: 1}
}

// PitchFactor returns 2^(PitchShift/12).
func (s VoiceChangerSettings) PitchFactor() float64 {
	return math.Pow(2, s.PitchShift/12)
}

// CombinedFactor returns the cursor advance per output sample.
func (s VoiceChangerSettings) CombinedFactor() float64 {
	return s.PitchFactor() * s.Speed
}

func (s VoiceChangerSettings) clamped() VoiceChangerSettings {
	s.PitchShift = clamp(s.PitchShift, MinPitchShift, MaxPitchShift, 0)
	s.Speed = clamp(s.Speed, MinSpeed, MaxSpeed, 1)
	s.Robotic = clamp(s.Robotic, 0, 1, 0)
	s.Echo = clamp(s.Echo, 0, 1, 0)
	return s
}

func clamp(v, lo, hi, nan float64) float64 {
	if math.IsNaN(v) {
		return nan
	}
	return math.Max(lo, math.Min(hi, v))
}

// VoiceUpdate is a partial settings change; nil fields keep their value.
type VoiceUpdate struct {
	Enabled    *bool    `yaml:"enabled" mapstructure:"enabled"`
	PitchShift *float64 `yaml:"pitch_shift" mapstructure:"pitch_shift"`
	Speed      *float64 `yaml:"speed" mapstructure:"speed"`
	Robotic    *float64 `yaml:"robotic" mapstructure:"robotic"`
	Echo       *float64 `yaml:"echo" mapstructure:"echo"`
}

// VoiceStore publishes VoiceChangerSettings snapshots to the audio
// callback. Get never blocks; Update is copy-on-write.
type VoiceStore struct {
	mu      sync.Mutex
	current atomic.Pointer[VoiceChangerSettings]
}

// NewVoiceStore creates a store seeded with initial.
func NewVoiceStore(initial VoiceChangerSettings) *VoiceStore {
	s := &VoiceStore{}
	c := initial.clamped()
	s.current.Store(&c)
	return s
}

// Get returns the current snapshot.
func (s *VoiceStore) Get() VoiceChangerSettings {
	return *s.current.Load()
}

// Update applies a partial change and returns the resulting snapshot.
func (s *VoiceStore) Update(u VoiceUpdate) VoiceChangerSettings {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := *s.current.Load()
	if u.Enabled != nil {
		next.Enabled = *u.Enabled
	}
	if u.PitchShift != nil {
		next.PitchShift = *u.PitchShift
	}
	if u.Speed != nil {
		next.Speed = *u.Speed
	}
	if u.Robotic != nil {
		next.Robotic = *u.Robotic
	}
	if u.Echo != nil {
		next.Echo = *u.Echo
	}

	next = next.clamped()
	s.current.Store(&next)

	logrus.WithFields(logrus.Fields{
		"function":    "VoiceStore.Update",
		"enabled":     next.Enabled,
		"pitch_shift": next.PitchShift,
		"speed":       next.Speed,
		"robotic":     next.Robotic,
		"echo":        next.Echo,
	}).Debug("Voice changer settings updated")

	return next
}
