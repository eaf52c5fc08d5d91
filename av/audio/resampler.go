// Package audio provides the voice changer stage for outgoing call audio.
//
// This file implements streaming sample rate conversion, used when decoded
// or file audio arrives at a rate other than the audio graph's.
package audio

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// Resampler converts a mono float32 stream between sample rates.
//
// Uses linear interpolation and carries the last input sample and the
// fractional read position across calls, so consecutive chunks join
// without clicks.
type Resampler struct {
	inputRate  uint32
	outputRate uint32
	ratio      float64
	last       float32
	position   float64 // read position relative to the next chunk; -1 is last
}

// ResamplerConfig holds configuration for creating a resampler.
type ResamplerConfig struct {
	InputRate  uint32 // Input sample rate in Hz
	OutputRate uint32 // Output sample rate in Hz
}

// NewResampler creates a new audio resampler instance.
func NewResampler(config ResamplerConfig) (*Resampler, error) {
	logrus.WithFields(logrus.Fields{
		"function":    "NewResampler",
		"input_rate":  config.InputRate,
		"output_rate": config.OutputRate,
	}).Info("Creating new audio resampler")

	if config.InputRate == 0 || config.OutputRate == 0 {
		logrus.WithFields(logrus.Fields{
			"function":    "NewResampler",
			"input_rate":  config.InputRate,
			"output_rate": config.OutputRate,
			"error":       "invalid sample rates",
		}).Error("Sample rate validation failed")
		return nil, fmt.Errorf("invalid sample rates: input=%d, output=%d", config.InputRate, config.OutputRate)
	}

	return &Resampler{
		inputRate:  config.InputRate,
		outputRate: config.OutputRate,
		ratio:      float64(config.InputRate) / float64(config.OutputRate),
	}, nil
}

// Resample converts one chunk. Output length varies by at most one sample
// from len(input)*outputRate/inputRate.
func (r *Resampler) Resample(input []float32) []float32 {
	if len(input) == 0 {
		return nil
	}

	if r.inputRate == r.outputRate {
		out := make([]float32, len(input))
		copy(out, input)
		return out
	}

	n := float64(len(input))
	output := make([]float32, 0, r.CalculateOutputSize(len(input))+1)

	for r.position < n-1 {
		var a, b float32
		var frac float32

		if r.position < 0 {
			a, b = r.last, input[0]
			frac = float32(r.position + 1)
		} else {
			i := int(r.position)
			a, b = input[i], input[i+1]
			frac = float32(r.position - float64(i))
		}

		output = append(output, a+(b-a)*frac)
		r.position += r.ratio
	}

	r.position -= n
	r.last = input[len(input)-1]

	logrus.WithFields(logrus.Fields{
		"function":      "Resampler.Resample",
		"input_length":  len(input),
		"output_length": len(output),
		"position":      r.position,
	}).Trace("Chunk resampled")

	return output
}

// GetInputRate returns the configured input sample rate.
func (r *Resampler) GetInputRate() uint32 {
	return r.inputRate
}

// GetOutputRate returns the configured output sample rate.
func (r *Resampler) GetOutputRate() uint32 {
	return r.outputRate
}

// CalculateOutputSize estimates the output length for inputSize samples.
func (r *Resampler) CalculateOutputSize(inputSize int) int {
	return int(float64(inputSize)/r.ratio + 0.5)
}

// Reset clears the carried state.
func (r *Resampler) Reset() {
	r.last = 0
	r.position = 0
}
