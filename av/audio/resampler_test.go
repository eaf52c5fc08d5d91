package audio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewResamplerValidation(t *testing.T) {
	_, err := NewResampler(ResamplerConfig{InputRate: 0, OutputRate: 48000})
	assert.Error(t, err)

	r, err := NewResampler(ResamplerConfig{InputRate: 16000, OutputRate: 48000})
	require.NoError(t, err)
	assert.Equal(t, uint32(16000), r.GetInputRate())
	assert.Equal(t, uint32(48000), r.GetOutputRate())
	assert.Equal(t, 3000, r.CalculateOutputSize(1000))
}

func TestResamplerSameRateCopies(t *testing.T) {
	r, err := NewResampler(ResamplerConfig{InputRate: 48000, OutputRate: 48000})
	require.NoError(t, err)

	in := []float32{0.1, 0.2, 0.3}
	out := r.Resample(in)
	assert.Equal(t, in, out)
	out[0] = 9
	assert.Equal(t, float32(0.1), in[0])
	assert.Nil(t, r.Resample(nil))
}

func TestResamplerUpsampleInterpolates(t *testing.T) {
	r, err := NewResampler(ResamplerConfig{InputRate: 24000, OutputRate: 48000})
	require.NoError(t, err)

	out := r.Resample([]float32{0, 1, 2, 3})
	assert.InDeltaSlice(t, []float32{0, 0.5, 1, 1.5, 2, 2.5}, out, 1e-6)

	// the next chunk continues from the carried sample
	out = r.Resample([]float32{4, 5})
	assert.InDeltaSlice(t, []float32{3, 3.5, 4, 4.5}, out, 1e-6)
}

func TestResamplerStreamingLength(t *testing.T) {
	tests := []struct {
		in, out uint32
	}{
		{16000, 48000},
		{48000, 16000},
		{44100, 48000},
		{48000, 44100},
	}

	for _, tt := range tests {
		r, err := NewResampler(ResamplerConfig{InputRate: tt.in, OutputRate: tt.out})
		require.NoError(t, err)

		total := 0
		chunk := make([]float32, 441)
		for i := 0; i < 100; i++ {
			total += len(r.Resample(chunk))
		}
		want := float64(441*100) * float64(tt.out) / float64(tt.in)
		assert.InDelta(t, want, float64(total), 2, "%d -> %d", tt.in, tt.out)
	}
}

func TestResamplerReset(t *testing.T) {
	r, err := NewResampler(ResamplerConfig{InputRate: 8000, OutputRate: 16000})
	require.NoError(t, err)
	r.Resample([]float32{1, 1, 1})
	r.Reset()
	out := r.Resample([]float32{0, 0})
	assert.InDeltaSlice(t, []float32{0, 0}, out, 1e-6)
}
