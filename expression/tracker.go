package expression

import (
	"sync/atomic"
	"time"
)

// Observation is the latest classification result for a single face.
type Observation struct {
	Weights      Weights
	HeadRotation [3]float64 // radians, x=pitch y=yaw z=roll
	Seen         time.Time
	Sequence     uint64
}

// Tracker holds the last known observation. Detection calls Observe
// whenever a result is ready; the render step calls Latest every frame and
// never blocks waiting for a fresh result.
type Tracker struct {
	mapper *Mapper
	latest atomic.Pointer[Observation]
	seq    atomic.Uint64
	now    func() time.Time
}

// NewTracker creates a tracker that starts at DefaultWeights.
func NewTracker(mapper *Mapper) *Tracker {
	if mapper == nil {
		mapper = NewMapper()
	}
	t := &Tracker{mapper: mapper, now: time.Now}
	t.latest.Store(&Observation{Weights: DefaultWeights()})
	return t
}

// Observe maps a frame of scores and publishes it as the latest observation.
func (t *Tracker) Observe(scores []Score, headRotation [3]float64) Observation {
	obs := &Observation{
		Weights:      t.mapper.Map(scores),
		HeadRotation: headRotation,
		Seen:         t.now(),
		Sequence:     t.seq.Add(1),
	}
	t.latest.Store(obs)
	return *obs
}

// Latest returns the most recent observation.
func (t *Tracker) Latest() Observation {
	return *t.latest.Load()
}
