package audio

import (
	"math"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func sine(n int, freq, rate float64, offset int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(0.5 * math.Sin(2*math.Pi*freq*float64(offset+i)/rate))
	}
	return out
}

func zeroCrossings(samples []float32) int {
	n := 0
	for i := 1; i < len(samples); i++ {
		if (samples[i-1] < 0) != (samples[i] < 0) {
			n++
		}
	}
	return n
}

func newTestShifter(t *testing.T, rate, block int, s VoiceChangerSettings) *PitchShifter {
	t.Helper()
	p, err := NewPitchShifter(ShifterConfig{SampleRate: rate, BlockSize: block}, NewVoiceStore(s))
	require.NoError(t, err)
	return p
}

func TestNewPitchShifterValidation(t *testing.T) {
	_, err := NewPitchShifter(ShifterConfig{SampleRate: 48000, BlockSize: 0}, nil)
	assert.ErrorIs(t, err, ErrBlockSize)

	_, err = NewPitchShifter(ShifterConfig{SampleRate: 48000, BlockSize: 256, Capacity: 300}, nil)
	assert.ErrorIs(t, err, ErrInvalidCapacity)

	_, err = NewPitchShifter(ShifterConfig{SampleRate: 0, BlockSize: 256}, nil)
	assert.Error(t, err)

	p, err := NewPitchShifter(ShifterConfig{SampleRate: 48000, BlockSize: 256, Capacity: MinCapacity(256)}, nil)
	require.NoError(t, err)
	assert.Equal(t, MinCapacity(256), p.ring.Cap())
	assert.Equal(t, 256, p.BlockSize())
}

func TestMinCapacity(t *testing.T) {
	assert.Equal(t, 3.0, MaxCombinedFactor)
	assert.Equal(t, 12287, MinCapacity(4096))
	assert.LessOrEqual(t, MinCapacity(4096), DefaultRingBlocks*4096)
}

func TestPitchShifterRejectsWrongBlock(t *testing.T) {
	p := newTestShifter(t, 48000, 64, DefaultVoiceChangerSettings())
	_, err := p.Process(make([]float32, 63))
	assert.ErrorIs(t, err, ErrBlockSize)
}

func TestPitchShifterDisabledPassThrough(t *testing.T) {
	p := newTestShifter(t, 48000, 128, VoiceChangerSettings{Enabled: false, PitchShift: 7, Speed: 1.5, Robotic: 1, Echo: 1})

	for b := 0; b < 3; b++ {
		in := sine(128, 300, 48000, b*128)
		out, err := p.Process(in)
		require.NoError(t, err)
		assert.Equal(t, in, out)
		assert.Equal(t, ((b+1)*128)%p.ring.Cap(), p.ring.WriteCursor(), "ring keeps being fed")
	}
	assert.Zero(t, p.Latency())
}

func TestPitchShifterNeutralReconstructsInput(t *testing.T) {
	const block = 256
	p := newTestShifter(t, 48000, block, VoiceChangerSettings{Enabled: true, Speed: 1})

	var in, out []float32
	for b := 0; b < 10; b++ {
		blk := sine(block, 440, 48000, b*block)
		res, err := p.Process(blk)
		require.NoError(t, err)
		in = append(in, blk...)
		out = append(out, res...)
	}

	// one sample of latency
	assert.Equal(t, 1, p.Latency())
	assert.Equal(t, float32(0), out[0])
	for n := 1; n < len(out); n++ {
		require.InDelta(t, in[n-1], out[n], 1e-7, "sample %d", n)
	}
	assert.Equal(t, uint64(1), p.Reanchors())
}

func TestPitchShifterCursorNeverOverruns(t *testing.T) {
	tests := []struct {
		name  string
		pitch float64
		speed float64
	}{
		{"maximum factor", MaxPitchShift, MaxSpeed},
		{"minimum factor", MinPitchShift, MinSpeed},
		{"fifth up, fast", 7, 1.2},
		{"slow", 0, MinSpeed},
		{"neutral", 0, 1},
	}

	const block = 128
	rng := rand.New(rand.NewSource(7))

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := VoiceChangerSettings{Enabled: true, PitchShift: tt.pitch, Speed: tt.speed}
			p := newTestShifter(t, 48000, block, s)
			f := s.CombinedFactor()
			capacity := float64(p.ring.Cap())

			in := make([]float32, block)
			for b := 0; b < 300; b++ {
				for i := range in {
					in[i] = rng.Float32()*2 - 1
				}
				out, err := p.Process(in)
				require.NoError(t, err)
				require.Len(t, out, block)

				lag := p.CursorDistance()
				// furthest sample touched this block, including the
				// interpolation neighbour, is strictly behind the write cursor
				require.Less(t, float64(block-1)*f+1, lag, "block %d", b)
				require.GreaterOrEqual(t, lag, float64(requiredLag(block, f)), "block %d", b)
				require.Less(t, lag, capacity, "block %d", b)
			}
		})
	}
}

func TestPitchShifterChangesFrequency(t *testing.T) {
	tests := []struct {
		name  string
		pitch float64
		speed float64
	}{
		{"octave up", 12, 1},
		{"octave down", -12, 1},
		{"faster", 0, 1.5},
	}

	const block = 4096
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := VoiceChangerSettings{Enabled: true, PitchShift: tt.pitch, Speed: tt.speed}
			p := newTestShifter(t, 48000, block, s)

			var in, out []float32
			for b := 0; b < 6; b++ {
				in = sine(block, 440, 48000, b*block)
				var err error
				out, err = p.Process(in)
				require.NoError(t, err)
			}

			ratio := float64(zeroCrossings(out)) / float64(zeroCrossings(in))
			assert.InDelta(t, s.CombinedFactor(), ratio, 0.05)
		})
	}
}

func TestPitchShifterRoboticPhaseIsContinuous(t *testing.T) {
	const (
		block = 100
		rate  = 8000
	)
	p := newTestShifter(t, rate, block, VoiceChangerSettings{Enabled: true, Speed: 1, Robotic: 1})

	var out []float32
	for b := 0; b < 3; b++ {
		res, err := p.Process(make([]float32, block))
		require.NoError(t, err)
		out = append(out, res...)
	}

	for n, got := range out {
		want := 0.3 * math.Sin(2*math.Pi*RoboticFrequency*float64(n)/rate)
		require.InDelta(t, want, got, 1e-5, "sample %d", n)
	}
}

func TestPitchShifterRoboticAttenuatesDirect(t *testing.T) {
	p := newTestShifter(t, 48000, 64, VoiceChangerSettings{Enabled: true, Speed: 1, Robotic: 0.5})
	in := make([]float32, 64)
	for i := range in {
		in[i] = 0.5
	}
	_, err := p.Process(in)
	require.NoError(t, err)
	out, err := p.Process(in)
	require.NoError(t, err)

	// phase is 64 steps in; direct path is 0.5*(1-0.35)
	phase := 2 * math.Pi * RoboticFrequency * 64 / 48000
	assert.InDelta(t, 0.5*0.65+math.Sin(phase)*0.15, out[0], 1e-5)
}

func TestPitchShifterEchoTap(t *testing.T) {
	const block = 100
	p := newTestShifter(t, 48000, block, VoiceChangerSettings{Enabled: true, Speed: 1, Echo: 1})

	in := make([]float32, block)
	in[0] = 1
	out, err := p.Process(in)
	require.NoError(t, err)

	for i, v := range out {
		switch i {
		case 1:
			assert.InDelta(t, 0.7, v, 1e-6, "direct path, attenuated")
		case 30:
			assert.InDelta(t, 0.2, v, 1e-6, "echo tap 30%% of a block back")
		default:
			assert.InDelta(t, 0, v, 1e-6, "sample %d", i)
		}
	}
}

func TestPitchShifterOutputStaysInRange(t *testing.T) {
	p := newTestShifter(t, 48000, 256, VoiceChangerSettings{Enabled: true, PitchShift: 3, Speed: 1.1, Robotic: 1, Echo: 1})
	g, err := NewGainEffect(4)
	require.NoError(t, err)

	chain := NewEffectChain()
	chain.AddEffect(g)
	chain.AddEffect(p)

	for b := 0; b < 20; b++ {
		out, err := chain.Process(sine(256, 220, 48000, b*256))
		require.NoError(t, err)
		for _, v := range out {
			require.LessOrEqual(t, v, float32(1))
			require.GreaterOrEqual(t, v, float32(-1))
		}
	}
}

func TestPitchShifterSettingsApplyNextBlock(t *testing.T) {
	store := NewVoiceStore(VoiceChangerSettings{Enabled: true, Speed: 1})
	p, err := NewPitchShifter(ShifterConfig{SampleRate: 48000, BlockSize: 32}, store)
	require.NoError(t, err)

	in := sine(32, 1000, 48000, 0)
	out1, err := p.Process(in)
	require.NoError(t, err)
	assert.NotEqual(t, in, out1)

	store.Update(VoiceUpdate{Enabled: ptr(false)})
	out2, err := p.Process(in)
	require.NoError(t, err)
	assert.Equal(t, in, out2)
	assert.Contains(t, p.GetName(), "PitchShifter")
}

func TestPitchShifterCloseIsSafeNoOp(t *testing.T) {
	p := newTestShifter(t, 48000, 64, VoiceChangerSettings{Enabled: true, Speed: 1.5})
	_, err := p.Process(make([]float32, 64))
	require.NoError(t, err)
	cursor := p.ring.WriteCursor()

	require.NoError(t, p.Close())
	require.NoError(t, p.Close())

	in := sine(64, 440, 48000, 0)
	out, err := p.Process(in)
	require.NoError(t, err)
	assert.Equal(t, in, out)
	assert.Equal(t, cursor, p.ring.WriteCursor())

	// wrong sizes are tolerated once disposed
	_, err = p.Process(make([]float32, 3))
	assert.NoError(t, err)
}

func TestPitchShifterConcurrentSettingsWriter(t *testing.T) {
	store := NewVoiceStore(VoiceChangerSettings{Enabled: true, Speed: 1})
	p, err := NewPitchShifter(ShifterConfig{SampleRate: 48000, BlockSize: 128}, store)
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			store.Update(VoiceUpdate{PitchShift: ptr(float64(i%25 - 12)), Speed: ptr(0.8 + float64(i%8)*0.1)})
		}
	}()

	for b := 0; b < 200; b++ {
		_, err := p.Process(sine(128, 440, 48000, b*128))
		require.NoError(t, err)
	}
	wg.Wait()
}

func TestVoiceStoreClampingAndPartialUpdate(t *testing.T) {
	store := NewVoiceStore(DefaultVoiceChangerSettings())

	s := store.Update(VoiceUpdate{PitchShift: ptr(20.0), Robotic: ptr(-1.0)})
	assert.Equal(t, 12.0, s.PitchShift)
	assert.Equal(t, 0.0, s.Robotic)
	assert.Equal(t, 1.0, s.Speed)
	assert.False(t, s.Enabled)

	s = store.Update(VoiceUpdate{Speed: ptr(0.1), Echo: ptr(3.0)})
	assert.Equal(t, MinSpeed, s.Speed)
	assert.Equal(t, 1.0, s.Echo)
	assert.Equal(t, 12.0, s.PitchShift, "untouched field keeps its value")

	s = store.Update(VoiceUpdate{Speed: ptr(math.NaN()), Enabled: ptr(true)})
	assert.Equal(t, 1.0, s.Speed)
	assert.True(t, s.Enabled)
	assert.Equal(t, s, store.Get())
}

func TestCombinedFactor(t *testing.T) {
	s := VoiceChangerSettings{PitchShift: 12, Speed: 1.5}
	assert.InDelta(t, 3.0, s.CombinedFactor(), 1e-12)
	s = VoiceChangerSettings{PitchShift: -12, Speed: 0.8}
	assert.InDelta(t, 0.4, s.CombinedFactor(), 1e-12)
}

func BenchmarkPitchShifter4096(b *testing.B) {
	p, err := NewPitchShifter(ShifterConfig{SampleRate: 48000, BlockSize: 4096},
		NewVoiceStore(VoiceChangerSettings{Enabled: true, PitchShift: 5, Speed: 1.2, Robotic: 0.3, Echo: 0.4}))
	require.NoError(b, err)
	in := sine(4096, 440, 48000, 0)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = p.Process(in)
	}
}
