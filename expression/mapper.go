package expression

import (
	"math"

	"github.com/sirupsen/logrus"
)

const (
	// neutralSuppression is how much of a non-neutral score is taken off the
	// neutral baseline.
	neutralSuppression = 0.3
)

// categoryEmotion maps a blendshape category to its emotion bucket.
// Unmapped categories report ok=false and are ignored by the mapper.
func categoryEmotion(category string) (Emotion, bool) {
	switch category {
	case "_neutral":
		return Neutral, true
	case "mouthSmileLeft", "mouthSmileRight", "cheekSquintLeft", "cheekSquintRight":
		return Happy, true
	case "eyeWideLeft", "eyeWideRight", "jawOpen", "browOuterUpLeft", "browOuterUpRight":
		return Surprised, true
	case "browDownLeft", "browDownRight", "noseSneerLeft", "noseSneerRight":
		return Angry, true
	case "mouthFrownLeft", "mouthFrownRight", "browInnerUp":
		return Sad, true
	default:
		return Neutral, false
	}
}

// Categories returns every blendshape category the mapper recognizes for
// the given emotion.
func Categories(e Emotion) []string {
	var out []string
	for _, name := range knownCategories {
		if mapped, ok := categoryEmotion(name); ok && mapped == e {
			out = append(out, name)
		}
	}
	return out
}

var knownCategories = []string{
	"_neutral",
	"mouthSmileLeft", "mouthSmileRight", "cheekSquintLeft", "cheekSquintRight",
	"eyeWideLeft", "eyeWideRight", "jawOpen", "browOuterUpLeft", "browOuterUpRight",
	"browDownLeft", "browDownRight", "noseSneerLeft", "noseSneerRight",
	"mouthFrownLeft", "mouthFrownRight", "browInnerUp",
}

// Mapper converts per-frame blendshape scores into normalized emotion weights.
//
// For every score whose category maps to a non-neutral bucket k the mapper
// keeps max(weights[k], score) and lowers the neutral baseline by
// score*0.3, floored at zero. The result is normalized so the buckets sum
// to one. Taking the max instead of the sum keeps stacked action units
// (left and right smile) from counting twice.
type Mapper struct{}

// NewMapper creates a mapper using the built-in category table.
func NewMapper() *Mapper {
	return &Mapper{}
}

// Map produces the emotion weights for one frame of scores. An empty input
// yields DefaultWeights.
func (m *Mapper) Map(scores []Score) Weights {
	weights := DefaultWeights()

	for _, s := range scores {
		e, ok := categoryEmotion(s.Category)
		if !ok || e == Neutral {
			continue
		}
		score := clampUnit(s.Score)
		if score > weights[e] {
			weights[e] = score
		}
		weights[Neutral] -= score * neutralSuppression
		if weights[Neutral] < 0 {
			weights[Neutral] = 0
		}
	}

	normalized := weights.Normalize()

	logrus.WithFields(logrus.Fields{
		"function":    "Mapper.Map",
		"score_count": len(scores),
		"dominant":    normalized.Dominant().String(),
	}).Trace("Mapped blendshape scores")

	return normalized
}

func clampUnit(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
