package expression

import (
	"math"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// Smoother applies exponential smoothing to named scalar channels:
//
//	smoothed = previous*(1-α) + new*α
//
// Every channel keeps its own previous value. α=1 passes the raw signal
// through, α=0 freezes each channel at its initial previous value. The
// factor may be changed at any time and takes effect on the next sample.
type Smoother struct {
	factor atomic.Uint64 // math.Float64bits of α

	mu       sync.Mutex
	previous map[string]float64
}

// NewSmoother creates a smoother with the given factor, clamped to [0,1].
func NewSmoother(factor float64) *Smoother {
	s := &Smoother{previous: make(map[string]float64)}
	s.SetFactor(factor)
	return s
}

// SetFactor updates α. Values outside [0,1] are clamped; NaN becomes 1.
func (s *Smoother) SetFactor(factor float64) {
	switch {
	case math.IsNaN(factor):
		factor = 1
	case factor < 0:
		factor = 0
	case factor > 1:
		factor = 1
	}
	s.factor.Store(math.Float64bits(factor))

	logrus.WithFields(logrus.Fields{
		"function": "Smoother.SetFactor",
		"factor":   factor,
	}).Debug("Smoothing factor updated")
}

// Factor returns the current α.
func (s *Smoother) Factor() float64 {
	return math.Float64frombits(s.factor.Load())
}

// Seed sets a channel's previous value without producing output.
func (s *Smoother) Seed(channel string, value float64) {
	s.mu.Lock()
	s.previous[channel] = value
	s.mu.Unlock()
}

// Smooth feeds one sample into a channel and returns the smoothed value.
// A channel that has never been seeded starts from zero.
func (s *Smoother) Smooth(channel string, value float64) float64 {
	alpha := s.Factor()

	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.previous[channel]
	next := prev*(1-alpha) + value*alpha
	s.previous[channel] = next
	return next
}

// SmoothWeights smooths every emotion bucket on its own channel. Emotion
// channels that were never seeded start from DefaultWeights.
func (s *Smoother) SmoothWeights(w Weights) Weights {
	alpha := s.Factor()
	defaults := DefaultWeights()

	s.mu.Lock()
	defer s.mu.Unlock()

	var out Weights
	for _, e := range Emotions {
		channel := weightChannel(e)
		prev, ok := s.previous[channel]
		if !ok {
			prev = defaults[e]
		}
		out[e] = prev*(1-alpha) + w[e]*alpha
		s.previous[channel] = out[e]
	}
	return out
}

// SmoothVec3 smooths a three-axis value on channels prefix.x, prefix.y and
// prefix.z.
func (s *Smoother) SmoothVec3(prefix string, v [3]float64) [3]float64 {
	return [3]float64{
		s.Smooth(prefix+".x", v[0]),
		s.Smooth(prefix+".y", v[1]),
		s.Smooth(prefix+".z", v[2]),
	}
}

// Reset forgets every channel's history.
func (s *Smoother) Reset() {
	s.mu.Lock()
	s.previous = make(map[string]float64)
	s.mu.Unlock()
}

func weightChannel(e Emotion) string {
	return "weight." + e.String()
}
