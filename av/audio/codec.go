// Package audio provides the voice changer stage for outgoing call audio.
//
// This file implements decoding of incoming Opus payloads into float32
// PCM using the pion/opus decoder, plus int16 PCM conversions.
package audio

import (
	"fmt"

	"github.com/pion/opus"
	"github.com/sirupsen/logrus"
)

// PacketDecoder turns one compressed payload into mono float32 PCM and
// reports the rate it was decoded at.
type PacketDecoder interface {
	Decode(payload []byte) ([]float32, uint32, error)
}

// maxOpusFrameSamples covers 120 ms of stereo audio at 48 kHz.
const maxOpusFrameSamples = 5760 * 2

// opusUpsample is the factor pion/opus applies to the SILK output before
// writing PCM, so a wideband packet comes out at 48 kHz.
const opusUpsample = 3

// OpusDecoder wraps the pion/opus decoder.
type OpusDecoder struct {
	decoder opus.Decoder
	output  []float32
}

// NewOpusDecoder creates a decoder with a reusable output buffer.
func NewOpusDecoder() *OpusDecoder {
	logrus.WithFields(logrus.Fields{
		"function": "NewOpusDecoder",
	}).Info("Creating Opus decoder")

	return &OpusDecoder{
		decoder: opus.NewDecoder(),
		output:  make([]float32, maxOpusFrameSamples),
	}
}

// OutputRate returns the PCM rate pion/opus produces for a bandwidth.
func OutputRate(bandwidth opus.Bandwidth) uint32 {
	return uint32(bandwidth.SampleRate() * opusUpsample)
}

// Decode decodes one Opus packet. Stereo output is downmixed to mono.
func (d *OpusDecoder) Decode(payload []byte) ([]float32, uint32, error) {
	if len(payload) == 0 {
		return nil, 0, fmt.Errorf("%w: empty payload", ErrDecode)
	}

	bandwidth, isStereo, err := d.decoder.DecodeFloat32(payload, d.output)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function":  "OpusDecoder.Decode",
			"data_size": len(payload),
			"error":     err.Error(),
		}).Debug("Opus decode failed")
		return nil, 0, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	sampleRate := OutputRate(bandwidth)
	channels := 1
	if isStereo {
		channels = 2
	}

	count := len(d.output)
	if us := packetDurationMicros(payload); us > 0 {
		count = min(count, int(uint64(sampleRate)*uint64(us)/1_000_000)*channels)
	}

	var pcm []float32
	if isStereo {
		pcm = downmixStereo(d.output[:count])
	} else {
		pcm = make([]float32, count)
		copy(pcm, d.output[:count])
	}

	logrus.WithFields(logrus.Fields{
		"function":    "OpusDecoder.Decode",
		"bandwidth":   bandwidth.String(),
		"is_stereo":   isStereo,
		"samples":     len(pcm),
		"sample_rate": sampleRate,
	}).Trace("Opus packet decoded")

	return pcm, sampleRate, nil
}

// packetDurationMicros reads the TOC byte (RFC 6716 section 3.1) and
// returns the total duration of the packet, or 0 when it cannot tell.
func packetDurationMicros(payload []byte) int {
	if len(payload) == 0 {
		return 0
	}
	toc := payload[0]
	config := int(toc >> 3)

	var frame int
	switch {
	case config < 12: // SILK
		frame = [4]int{10000, 20000, 40000, 60000}[config%4]
	case config < 16: // Hybrid
		frame = [2]int{10000, 20000}[config%2]
	default: // CELT
		frame = [4]int{2500, 5000, 10000, 20000}[config%4]
	}

	frames := 1
	switch toc & 0x3 {
	case 1, 2:
		frames = 2
	case 3:
		if len(payload) < 2 {
			return 0
		}
		frames = int(payload[1] & 0x3f)
	}

	return frame * frames
}

// PCM16LEToFloat32 converts little-endian int16 PCM bytes to [-1, 1).
func PCM16LEToFloat32(data []byte) []float32 {
	out := make([]float32, len(data)/2)
	for i := range out {
		s := int16(uint16(data[2*i]) | uint16(data[2*i+1])<<8)
		out[i] = float32(s) / 32768
	}
	return out
}

// Int16ToFloat32 converts int16 samples to [-1, 1).
func Int16ToFloat32(samples []int16) []float32 {
	out := make([]float32, len(samples))
	for i, s := range samples {
		out[i] = float32(s) / 32768
	}
	return out
}

// Float32ToInt16 converts float samples to int16 with clipping.
func Float32ToInt16(samples []float32) []int16 {
	out := make([]int16, len(samples))
	for i, s := range samples {
		v := s * 32768
		switch {
		case v > 32767:
			out[i] = 32767
		case v < -32768:
			out[i] = -32768
		default:
			out[i] = int16(v)
		}
	}
	return out
}

func downmixStereo(interleaved []float32) []float32 {
	out := make([]float32, len(interleaved)/2)
	for i := range out {
		out[i] = (interleaved[2*i] + interleaved[2*i+1]) / 2
	}
	return out
}
