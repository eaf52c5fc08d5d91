package audio

import (
	"fmt"
	"math"
)

// RingBuffer is a fixed-capacity circular buffer of mono samples with an
// integer write cursor. Readers address it with absolute or fractional
// positions that wrap modulo the capacity.
type RingBuffer struct {
	data  []float32
	write int
}

// NewRingBuffer allocates a zeroed ring of the given capacity.
func NewRingBuffer(capacity int) (*RingBuffer, error) {
	if capacity <= 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCapacity, capacity)
	}
	return &RingBuffer{data: make([]float32, capacity)}, nil
}

// Cap returns the buffer capacity.
func (r *RingBuffer) Cap() int {
	return len(r.data)
}

// WriteCursor returns the index the next sample will be written to.
func (r *RingBuffer) WriteCursor() int {
	return r.write
}

// Write appends samples at the write cursor, overwriting the oldest data.
func (r *RingBuffer) Write(samples []float32) {
	n := len(r.data)
	for len(samples) > 0 {
		c := copy(r.data[r.write:], samples)
		samples = samples[c:]
		r.write = (r.write + c) % n
	}
}

// At returns the sample at index i, wrapped into range. Negative indices
// count back from zero.
func (r *RingBuffer) At(i int) float32 {
	n := len(r.data)
	i %= n
	if i < 0 {
		i += n
	}
	return r.data[i]
}

// Interpolate reads at a fractional position, blending the samples at
// floor(pos) and floor(pos)+1.
func (r *RingBuffer) Interpolate(pos float64) float32 {
	base := math.Floor(pos)
	frac := float32(pos - base)
	i := int(base)
	a := r.At(i)
	b := r.At(i + 1)
	return a + (b-a)*frac
}

// Wrap reduces a fractional position into [0, Cap()).
func (r *RingBuffer) Wrap(pos float64) float64 {
	n := float64(len(r.data))
	pos = math.Mod(pos, n)
	if pos < 0 {
		pos += n
	}
	return pos
}

// Distance returns how far pos trails the write cursor, in [0, Cap()).
func (r *RingBuffer) Distance(pos float64) float64 {
	return r.Wrap(float64(r.write) - pos)
}

// Reset zeroes the contents and rewinds the cursor.
func (r *RingBuffer) Reset() {
	clear(r.data)
	r.write = 0
}
