// Package audio provides the voice changer stage for outgoing call audio.
//
// This file implements the small effects that sit around the pitch
// shifter: gain, the output limiter, and the chain that runs them.
package audio

import (
	"errors"
	"fmt"
	"math"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// AudioEffect defines the interface for audio processing effects.
//
// Effects process mono float32 samples in [-1, 1]. They may modify the
// slice in place and return it, or return a new slice.
type AudioEffect interface {
	// Process applies the effect to a block of samples
	Process(samples []float32) ([]float32, error)

	// GetName returns a human-readable name for the effect
	GetName() string

	// Close releases any resources used by the effect
	Close() error
}

// GainEffect implements linear gain with clipping protection.
//
// Gain values: 0.0 = silence, 1.0 = no change, >1.0 = amplification
type GainEffect struct {
	gain float32
}

// NewGainEffect creates a new gain control effect.
func NewGainEffect(gain float64) (*GainEffect, error) {
	logrus.WithFields(logrus.Fields{
		"function": "NewGainEffect",
		"gain":     gain,
	}).Info("Creating new gain effect")

	if err := validateGain(gain); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "NewGainEffect",
			"gain":     gain,
			"error":    err.Error(),
		}).Error("Gain validation failed")
		return nil, err
	}

	return &GainEffect{gain: float32(gain)}, nil
}

func validateGain(gain float64) error {
	if gain < 0.0 {
		return fmt.Errorf("gain cannot be negative: %f", gain)
	}
	if gain > 4.0 {
		return fmt.Errorf("gain too high (max 4.0): %f", gain)
	}
	return nil
}

// Process multiplies every sample by the gain and clips to [-1, 1].
func (g *GainEffect) Process(samples []float32) ([]float32, error) {
	clipped := 0
	for i, s := range samples {
		v := s * g.gain
		if v > 1 {
			v = 1
			clipped++
		} else if v < -1 {
			v = -1
			clipped++
		}
		samples[i] = v
	}

	if clipped > 0 {
		logrus.WithFields(logrus.Fields{
			"function":      "GainEffect.Process",
			"clipped_count": clipped,
			"total_samples": len(samples),
			"gain":          g.gain,
		}).Debug("Audio clipping detected during gain processing")
	}

	return samples, nil
}

// GetName returns the effect name for debugging and logging.
func (g *GainEffect) GetName() string {
	return fmt.Sprintf("Gain(%.2f)", g.gain)
}

// SetGain updates the gain value.
func (g *GainEffect) SetGain(gain float64) error {
	if err := validateGain(gain); err != nil {
		return err
	}
	g.gain = float32(gain)
	return nil
}

// GetGain returns the current gain value.
func (g *GainEffect) GetGain() float64 {
	return float64(g.gain)
}

// Close releases resources used by the gain effect.
func (g *GainEffect) Close() error {
	return nil
}

// LimiterEffect hard-clamps samples to [-1, 1]. It runs last in the
// voice changer so robotic and echo mixing can never leave the valid
// float sample range.
type LimiterEffect struct {
	clipped atomic.Uint64
}

// NewLimiterEffect creates a limiter.
func NewLimiterEffect() *LimiterEffect {
	return &LimiterEffect{}
}

// Process clamps samples in place.
func (l *LimiterEffect) Process(samples []float32) ([]float32, error) {
	n := 0
	for i, s := range samples {
		switch {
		case s > 1:
			samples[i] = 1
			n++
		case s < -1:
			samples[i] = -1
			n++
		case math.IsNaN(float64(s)):
			samples[i] = 0
			n++
		}
	}

	if n > 0 {
		l.clipped.Add(uint64(n))
		logrus.WithFields(logrus.Fields{
			"function":      "LimiterEffect.Process",
			"clipped_count": n,
			"total_samples": len(samples),
		}).Debug("Limiter clamped samples")
	}

	return samples, nil
}

// Clipped returns the total number of samples clamped so far.
func (l *LimiterEffect) Clipped() uint64 {
	return l.clipped.Load()
}

// GetName returns the effect name.
func (l *LimiterEffect) GetName() string {
	return "Limiter"
}

// Close releases resources used by the limiter.
func (l *LimiterEffect) Close() error {
	return nil
}

// EffectChain manages a sequence of audio effects.
//
// Effects run in the order they were added. If any effect returns an
// error, processing stops and the error is returned.
type EffectChain struct {
	effects []AudioEffect
}

// NewEffectChain creates a new audio effect chain.
func NewEffectChain() *EffectChain {
	return &EffectChain{
		effects: make([]AudioEffect, 0),
	}
}

// AddEffect adds an effect to the end of the processing chain.
func (e *EffectChain) AddEffect(effect AudioEffect) {
	logrus.WithFields(logrus.Fields{
		"function":     "EffectChain.AddEffect",
		"effect_name":  effect.GetName(),
		"new_position": len(e.effects),
	}).Info("Adding effect to audio chain")

	e.effects = append(e.effects, effect)
}

// Process applies all effects in the chain sequentially.
func (e *EffectChain) Process(samples []float32) ([]float32, error) {
	current := samples
	for i, effect := range e.effects {
		processed, err := effect.Process(current)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"function":     "EffectChain.Process",
				"effect_index": i,
				"effect_name":  effect.GetName(),
				"error":        err.Error(),
			}).Error("Effect processing failed")
			return nil, fmt.Errorf("effect %d (%s) failed: %w", i, effect.GetName(), err)
		}
		current = processed
	}
	return current, nil
}

// GetEffectCount returns the number of effects in the chain.
func (e *EffectChain) GetEffectCount() int {
	return len(e.effects)
}

// GetEffectNames returns the names of all effects in the chain.
func (e *EffectChain) GetEffectNames() []string {
	names := make([]string, len(e.effects))
	for i, effect := range e.effects {
		names[i] = effect.GetName()
	}
	return names
}

// Clear closes and removes all effects.
func (e *EffectChain) Clear() error {
	var errs []error
	for i, effect := range e.effects {
		if err := effect.Close(); err != nil {
			errs = append(errs, fmt.Errorf("effect %d (%s) close failed: %w", i, effect.GetName(), err))
		}
	}
	e.effects = e.effects[:0]
	return errors.Join(errs...)
}

// Close releases all effect resources.
func (e *EffectChain) Close() error {
	logrus.WithFields(logrus.Fields{
		"function":     "EffectChain.Close",
		"effect_count": len(e.effects),
	}).Info("Closing effect chain")

	return e.Clear()
}
