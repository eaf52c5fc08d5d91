package expression

import "fmt"

// Emotion identifies one of the closed set of emotion buckets.
type Emotion uint8

const (
	// Neutral is the resting baseline.
	Neutral Emotion = iota
	// Happy covers smiles and cheek raises.
	Happy
	// Surprised covers wide eyes, raised brows and an open jaw.
	Surprised
	// Angry covers lowered brows and nose sneers.
	Angry
	// Sad covers frowns and inner brow raises.
	Sad

	// EmotionCount is the number of emotion buckets.
	EmotionCount
)

// Emotions lists every bucket in declaration order.
var Emotions = [EmotionCount]Emotion{Neutral, Happy, Surprised, Angry, Sad}

// String returns the lower-case key used in configuration and channel names.
func (e Emotion) String() string {
	switch e {
	case Neutral:
		return "neutral"
	case Happy:
		return "happy"
	case Surprised:
		return "surprised"
	case Angry:
		return "angry"
	case Sad:
		return "sad"
	default:
		return fmt.Sprintf("Emotion(%d)", uint8(e))
	}
}

// ParseEmotion resolves a configuration key to an Emotion.
func ParseEmotion(key string) (Emotion, error) {
	for _, e := range Emotions {
		if e.String() == key {
			return e, nil
		}
	}
	return Neutral, fmt.Errorf("unknown emotion key: %q", key)
}

// Weights maps every emotion bucket to a value in [0,1].
// After Mapper.Map the values sum to 1.
type Weights [EmotionCount]float64

// DefaultWeights is the absent-signal distribution: fully neutral.
func DefaultWeights() Weights {
	var w Weights
	w[Neutral] = 1
	return w
}

// Get returns the weight of a single bucket.
func (w Weights) Get(e Emotion) float64 {
	if e >= EmotionCount {
		return 0
	}
	return w[e]
}

// Sum returns the total of all buckets.
func (w Weights) Sum() float64 {
	total := 0.0
	for _, v := range w {
		total += v
	}
	return total
}

// Normalize divides every bucket by the total. A zero total leaves the
// weights unchanged.
func (w Weights) Normalize() Weights {
	total := w.Sum()
	if total == 0 {
		return w
	}
	for i := range w {
		w[i] /= total
	}
	return w
}

// Dominant returns the bucket with the highest weight. Ties resolve to the
// earlier bucket in declaration order.
func (w Weights) Dominant() Emotion {
	best := Neutral
	for _, e := range Emotions {
		if w[e] > w[best] {
			best = e
		}
	}
	return best
}

// Map returns the weights keyed by emotion name.
func (w Weights) Map() map[string]float64 {
	out := make(map[string]float64, EmotionCount)
	for _, e := range Emotions {
		out[e.String()] = w[e]
	}
	return out
}

// Score is one classifier output for the current frame.
type Score struct {
	Category string  `json:"categoryName"`
	Score    float64 `json:"score"`
}
