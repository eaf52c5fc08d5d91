package audio

import "fmt"

// Blocker assembles arbitrary-length chunks into fixed-size blocks.
type Blocker struct {
	size    int
	pending []float32
}

// NewBlocker creates an assembler for blocks of size samples.
func NewBlocker(size int) (*Blocker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrBlockSize, size)
	}
	return &Blocker{
		size:    size,
		pending: make([]float32, 0, size),
	}, nil
}

// Push appends samples and returns every block that became complete.
// Each returned block is a fresh slice.
func (b *Blocker) Push(samples []float32) [][]float32 {
	var blocks [][]float32
	for len(samples) > 0 {
		n := min(b.size-len(b.pending), len(samples))
		b.pending = append(b.pending, samples[:n]...)
		samples = samples[n:]

		if len(b.pending) == b.size {
			block := make([]float32, b.size)
			copy(block, b.pending)
			blocks = append(blocks, block)
			b.pending = b.pending[:0]
		}
	}
	return blocks
}

// Flush returns the partial block padded with silence, or nil when
// nothing is pending.
func (b *Blocker) Flush() []float32 {
	if len(b.pending) == 0 {
		return nil
	}
	block := make([]float32, b.size)
	copy(block, b.pending)
	b.pending = b.pending[:0]
	return block
}

// Pending returns the number of buffered samples.
func (b *Blocker) Pending() int {
	return len(b.pending)
}

// Size returns the block size.
func (b *Blocker) Size() int {
	return b.size
}
