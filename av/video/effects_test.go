package video

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// createTestFrame builds a frame with deterministic noise and a
// non-opaque alpha channel so alpha preservation is observable.
func createTestFrame(width, height int) *Frame {
	f := NewFrame(width, height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			i := (y*width + x) * 4
			f.Pix[i] = byte((x*73856093 ^ y*19349663) & 0xff)
			f.Pix[i+1] = byte((x*x*31 + y*17) & 0xff)
			f.Pix[i+2] = byte((x*y*y + 31) & 0xff)
			f.Pix[i+3] = byte(200 + (x+y)%50)
		}
	}
	return f
}

func solidFrame(width, height int, r, g, b byte) *Frame {
	f := NewFrame(width, height)
	for i := 0; i < len(f.Pix); i += 4 {
		f.Pix[i], f.Pix[i+1], f.Pix[i+2], f.Pix[i+3] = r, g, b, 255
	}
	return f
}

func pixel(f *Frame, x, y int) [4]byte {
	i := (y*f.Width + x) * 4
	return [4]byte{f.Pix[i], f.Pix[i+1], f.Pix[i+2], f.Pix[i+3]}
}

func TestFrameValidate(t *testing.T) {
	var nilFrame *Frame
	assert.ErrorIs(t, nilFrame.Validate(), ErrNilFrame)
	assert.ErrorIs(t, (&Frame{Width: 2, Height: 2, Pix: make([]byte, 15)}).Validate(), ErrInvalidFrame)
	assert.ErrorIs(t, (&Frame{Width: 0, Height: 2}).Validate(), ErrInvalidFrame)
	assert.NoError(t, NewFrame(3, 5).Validate())
}

func TestFrameImageSharesBuffer(t *testing.T) {
	f := NewFrame(4, 4)
	img := f.Image()
	img.Pix[0] = 42
	assert.Equal(t, byte(42), f.Pix[0])

	back := FrameFromImage(img)
	assert.Equal(t, f.Pix, back.Pix)
}

func TestSkinSmoothingKernelRadius(t *testing.T) {
	tests := []struct {
		strength float64
		radius   int
	}{
		{0, 1},
		{0.2, 1},
		{0.25, 2},
		{0.5, 2},
		{0.75, 3},
		{1.0, 3},
		{5.0, 3},
	}

	for _, tt := range tests {
		effect := NewSkinSmoothingEffect(tt.strength)
		assert.Equal(t, tt.radius, effect.KernelRadius(), "strength %.2f", tt.strength)
	}
}

func TestSkinSmoothingBorderAndAlpha(t *testing.T) {
	for _, strength := range []float64{0.3, 0.5, 0.8, 1.0} {
		effect := NewSkinSmoothingEffect(strength)
		frame := createTestFrame(32, 24)
		original := copyFrame(frame)

		result, err := effect.Apply(frame)
		require.NoError(t, err)

		// input untouched
		assert.Equal(t, original.Pix, frame.Pix)

		r := effect.KernelRadius()
		changed := false
		for y := 0; y < frame.Height; y++ {
			for x := 0; x < frame.Width; x++ {
				got, want := pixel(result, x, y), pixel(original, x, y)
				assert.Equal(t, want[3], got[3], "alpha at %d,%d", x, y)
				border := x < r || y < r || x >= frame.Width-r || y >= frame.Height-r
				if border {
					assert.Equal(t, want, got, "border pixel %d,%d with strength %.1f", x, y, strength)
				} else if want != got {
					changed = true
				}
			}
		}
		assert.True(t, changed, "strength %.1f should change interior", strength)
	}
}

func TestSkinSmoothingUniformFrame(t *testing.T) {
	frame := solidFrame(16, 16, 120, 80, 60)
	result, err := NewSkinSmoothingEffect(1).Apply(frame)
	require.NoError(t, err)
	assert.Equal(t, frame.Pix, result.Pix)
}

func TestSkinSmoothingTinyFrame(t *testing.T) {
	frame := createTestFrame(4, 4)
	result, err := NewSkinSmoothingEffect(1).Apply(frame)
	require.NoError(t, err)
	assert.Equal(t, frame.Pix, result.Pix)
}

func TestWhiteningEffect(t *testing.T) {
	tests := []struct {
		name     string
		strength float64
		in, want byte
	}{
		{"off", 0, 100, 100},
		{"half", 0.5, 100, 125},
		{"full", 1, 100, 150},
		{"clamped", 1, 250, 255},
		{"strength clamped", 3, 0, 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame := solidFrame(2, 2, tt.in, tt.in, tt.in)
			frame.Pix[3] = 10
			result, err := NewWhiteningEffect(tt.strength).Apply(frame)
			require.NoError(t, err)
			px := pixel(result, 0, 0)
			assert.Equal(t, [4]byte{tt.want, tt.want, tt.want, 10}, px)
		})
	}
}

func TestBrightnessContrastEffect(t *testing.T) {
	tests := []struct {
		name                 string
		brightness, contrast float64
		in, want             byte
	}{
		{"identity", 0, 0, 77, 77},
		{"midpoint fixed under contrast", 0, 50, 128, 128},
		{"contrast stretches", 0, 50, 200, 236},
		{"contrast compresses", 0, -50, 200, 164},
		{"brightness scales", 10, 0, 100, 110},
		{"darken", -50, 0, 100, 50},
		{"clamped high", 50, 50, 250, 255},
		{"clamped low", 0, 50, 10, 0},
		{"out of range settings clamp", 100, 0, 100, 150},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame := solidFrame(2, 2, tt.in, tt.in, tt.in)
			result, err := NewBrightnessContrastEffect(tt.brightness, tt.contrast).Apply(frame)
			require.NoError(t, err)
			assert.Equal(t, tt.want, result.Pix[0])
			assert.Equal(t, byte(255), result.Pix[3])
		})
	}
}

func TestEffectChain(t *testing.T) {
	chain := NewEffectChain()
	assert.Equal(t, 0, chain.GetEffectCount())

	_, err := chain.Apply(nil)
	assert.ErrorIs(t, err, ErrNilFrame)

	frame := solidFrame(4, 4, 100, 100, 100)
	out, err := chain.Apply(frame)
	require.NoError(t, err)
	assert.Equal(t, frame.Pix, out.Pix)
	assert.NotSame(t, frame, out)

	chain.AddEffect(NewWhiteningEffect(0.5))
	chain.AddEffect(NewBrightnessContrastEffect(10, 0))
	assert.Equal(t, 2, chain.GetEffectCount())

	out, err = chain.Apply(frame)
	require.NoError(t, err)
	// (100 + 25) * 1.1
	assert.Equal(t, byte(138), out.Pix[0])

	_, err = chain.Apply(&Frame{Width: 4, Height: 4, Pix: make([]byte, 3)})
	assert.ErrorIs(t, err, ErrInvalidFrame)

	chain.Clear()
	assert.Equal(t, 0, chain.GetEffectCount())
}

func BenchmarkSkinSmoothing640x480(b *testing.B) {
	frame := createTestFrame(640, 480)
	effect := NewSkinSmoothingEffect(1)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = effect.Apply(frame)
	}
}

func TestSkinSmoothingMatchesGaussianKernel(t *testing.T) {
	const size, c = 15, 7
	frame := solidFrame(size, size, 0, 0, 0)
	frame.Pix[(c*size+c)*4] = 255

	out, err := NewSkinSmoothingEffect(1).Apply(frame)
	require.NoError(t, err)

	// strength 1: 7x7 window, weights exp(-(dx²+dy²)/2) normalized to 1
	var sum float64
	for dy := -3; dy <= 3; dy++ {
		for dx := -3; dx <= 3; dx++ {
			sum += math.Exp(-float64(dx*dx+dy*dy) / 2)
		}
	}

	for dy := -3; dy <= 3; dy++ {
		for dx := -3; dx <= 3; dx++ {
			want := 255 * math.Exp(-float64(dx*dx+dy*dy)/2) / sum
			got := float64(pixel(out, c+dx, c+dy)[0])
			assert.InDelta(t, want, got, 1, "dx=%d dy=%d", dx, dy)
		}
	}

	// nothing leaks past the window
	assert.Zero(t, pixel(out, c+4, c)[0])
	assert.Zero(t, pixel(out, c, c-4)[0])
	assert.Zero(t, pixel(out, c, c)[1], "green untouched")
}
