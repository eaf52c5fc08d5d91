package video

import (
	"image/color"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func TestBeautyFilterDisabledIsNoOp(t *testing.T) {
	store := NewBeautyStore(DefaultBeautySettings())
	store.Update(BeautyUpdate{
		Smoothing:  ptr(1.0),
		Brightness: ptr(40.0),
		Whitening:  ptr(1.0),
	})
	filter := NewBeautyFilter(store)

	frame := createTestFrame(64, 48)
	original := append([]byte(nil), frame.Pix...)

	out, err := filter.Apply(frame)
	require.NoError(t, err)
	assert.Same(t, frame, out)
	assert.Equal(t, original, out.Pix)
}

func TestBeautyFilterEnabled(t *testing.T) {
	filter := NewBeautyFilter(nil)
	filter.Settings().Update(BeautyUpdate{
		Enabled:   ptr(true),
		Smoothing: ptr(0.0),
		Whitening: ptr(0.5),
	})

	frame := solidFrame(8, 8, 100, 100, 100)
	out, err := filter.Apply(frame)
	require.NoError(t, err)
	assert.NotSame(t, frame, out)
	assert.Equal(t, byte(125), out.Pix[0])
	assert.Equal(t, byte(100), frame.Pix[0], "input must not be modified")
}

func TestBeautyFilterAllZeroIsIdentity(t *testing.T) {
	store := NewBeautyStore(BeautySettings{Enabled: true})
	filter := NewBeautyFilter(store)

	frame := createTestFrame(32, 32)
	out, err := filter.Apply(frame)
	require.NoError(t, err)
	assert.Equal(t, frame.Pix, out.Pix)
}

func TestBeautyFilterBorderSafety(t *testing.T) {
	store := NewBeautyStore(BeautySettings{Enabled: true, Smoothing: 1})
	filter := NewBeautyFilter(store)

	frame := createTestFrame(40, 30)
	out, err := filter.Apply(frame)
	require.NoError(t, err)

	r := NewSkinSmoothingEffect(1).KernelRadius()
	for x := 0; x < frame.Width; x++ {
		for y := 0; y < r; y++ {
			assert.Equal(t, pixel(frame, x, y), pixel(out, x, y))
			assert.Equal(t, pixel(frame, x, frame.Height-1-y), pixel(out, x, frame.Height-1-y))
		}
	}
}

func TestBeautyFilterRejectsBadFrames(t *testing.T) {
	filter := NewBeautyFilter(nil)
	_, err := filter.Apply(nil)
	assert.ErrorIs(t, err, ErrNilFrame)
	_, err = filter.Apply(&Frame{Width: 2, Height: 2, Pix: []byte{1}})
	assert.ErrorIs(t, err, ErrInvalidFrame)
}

func TestBeautyStoreClamping(t *testing.T) {
	store := NewBeautyStore(DefaultBeautySettings())
	s := store.Update(BeautyUpdate{
		Smoothing:  ptr(2.0),
		Whitening:  ptr(-1.0),
		Brightness: ptr(80.0),
		Contrast:   ptr(-80.0),
	})

	assert.Equal(t, 1.0, s.Smoothing)
	assert.Equal(t, 0.0, s.Whitening)
	assert.Equal(t, 50.0, s.Brightness)
	assert.Equal(t, -50.0, s.Contrast)
	assert.Equal(t, s, store.Get())
}

func TestBeautyStorePartialUpdate(t *testing.T) {
	store := NewBeautyStore(DefaultBeautySettings())
	store.Update(BeautyUpdate{Brightness: ptr(20.0)})
	s := store.Update(BeautyUpdate{Smoothing: ptr(0.9)})

	assert.Equal(t, 20.0, s.Brightness)
	assert.Equal(t, 0.9, s.Smoothing)
	assert.Equal(t, DefaultBeautySettings().Whitening, s.Whitening)
}

func TestBeautyStoreMakeupUpdate(t *testing.T) {
	store := NewBeautyStore(DefaultBeautySettings())
	s := store.Update(BeautyUpdate{
		Lipstick: &MakeupUpdate{Enabled: ptr(true), Color: ptr("#ff0000")},
		Blush:    &MakeupUpdate{Color: ptr("not-a-color")},
	})

	assert.True(t, s.Makeup.Lipstick.Enabled)
	assert.Equal(t, color.RGBA{R: 255, A: 255}, s.Makeup.Lipstick.Color)
	assert.Equal(t, DefaultBeautySettings().Makeup.Blush, s.Makeup.Blush)
}

func TestBeautyStoreConcurrentUpdates(t *testing.T) {
	store := NewBeautyStore(DefaultBeautySettings())

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			store.Update(BeautyUpdate{Brightness: ptr(10.0)})
		}()
		go func() {
			defer wg.Done()
			store.Update(BeautyUpdate{Contrast: ptr(-10.0)})
			_ = store.Get()
		}()
	}
	wg.Wait()

	s := store.Get()
	assert.Equal(t, 10.0, s.Brightness)
	assert.Equal(t, -10.0, s.Contrast)
}

func TestParseHexColor(t *testing.T) {
	tests := []struct {
		in      string
		want    color.RGBA
		wantErr bool
	}{
		{"#c8325a", color.RGBA{R: 0xc8, G: 0x32, B: 0x5a, A: 0xff}, false},
		{"00ff00", color.RGBA{G: 0xff, A: 0xff}, false},
		{" #0000FF ", color.RGBA{B: 0xff, A: 0xff}, false},
		{"#fff", color.RGBA{}, true},
		{"#gggggg", color.RGBA{}, true},
	}

	for _, tt := range tests {
		got, err := ParseHexColor(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
		assert.Equal(t, tt.want, mustParse(t, HexColor(got)))
	}
}

func mustParse(t *testing.T, s string) color.RGBA {
	c, err := ParseHexColor(s)
	require.NoError(t, err)
	return c
}

func TestMakeupLipstick(t *testing.T) {
	frame := solidFrame(40, 40, 0, 0, 0)
	lm := &FaceLandmarks{
		Lips: []Point{{10, 20}, {30, 20}, {30, 30}, {10, 30}},
	}
	makeup := Makeup{
		Lipstick: MakeupElement{Enabled: true, Color: color.RGBA{R: 200, G: 50, B: 90, A: 255}},
	}

	drawn, err := NewMakeupRenderer().Render(frame, lm, makeup)
	require.NoError(t, err)
	assert.Equal(t, 1, drawn)

	inside := pixel(frame, 20, 25)
	assert.InDelta(t, 80, int(inside[0]), 2)
	assert.InDelta(t, 20, int(inside[1]), 2)
	assert.Equal(t, byte(255), inside[3])

	assert.Equal(t, [4]byte{0, 0, 0, 255}, pixel(frame, 2, 2))
}

func TestMakeupSkipsMissingRegions(t *testing.T) {
	frame := solidFrame(20, 20, 10, 10, 10)
	original := append([]byte(nil), frame.Pix...)
	makeup := Makeup{
		Lipstick:  MakeupElement{Enabled: true, Color: color.RGBA{R: 255, A: 255}},
		Eyeshadow: MakeupElement{Enabled: true, Color: color.RGBA{B: 255, A: 255}},
		Blush:     MakeupElement{Enabled: true, Color: color.RGBA{R: 255, G: 128, A: 255}},
	}

	r := NewMakeupRenderer()
	drawn, err := r.Render(frame, &FaceLandmarks{Lips: []Point{{1, 1}, {2, 2}}}, makeup)
	require.NoError(t, err)
	assert.Equal(t, 0, drawn)

	drawn, err = r.Render(frame, nil, makeup)
	require.NoError(t, err)
	assert.Equal(t, 0, drawn)
	assert.Equal(t, original, frame.Pix)
}

func TestMakeupEyesAndBlush(t *testing.T) {
	frame := solidFrame(100, 100, 0, 0, 0)
	lm := &FaceLandmarks{
		LeftEye:  []Point{{25, 40}, {35, 38}, {45, 40}, {35, 42}},
		RightEye: []Point{{55, 40}, {65, 38}, {75, 40}, {65, 42}},
		Face:     &Rect{X: 10, Y: 10, W: 80, H: 80},
	}
	makeup := Makeup{
		Eyeshadow: MakeupElement{Enabled: true, Color: color.RGBA{B: 255, A: 255}},
		Blush:     MakeupElement{Enabled: true, Color: color.RGBA{R: 255, A: 255}},
	}

	drawn, err := NewMakeupRenderer().Render(frame, lm, makeup)
	require.NoError(t, err)
	assert.Equal(t, 4, drawn)

	assert.Greater(t, pixel(frame, 35, 40)[2], byte(0), "left eyeshadow")
	assert.Greater(t, pixel(frame, 65, 40)[2], byte(0), "right eyeshadow")
	// blush centres at face centre ± W/4, shifted down by H/10
	assert.Greater(t, pixel(frame, 30, 58)[0], byte(0), "left blush")
	assert.Greater(t, pixel(frame, 70, 58)[0], byte(0), "right blush")
	assert.Equal(t, [4]byte{0, 0, 0, 255}, pixel(frame, 50, 15))
}

func TestMakeupOffFrameLandmarksAreClipped(t *testing.T) {
	frame := solidFrame(20, 20, 0, 0, 0)
	lm := &FaceLandmarks{Lips: []Point{{-50, -50}, {80, -10}, {10, 90}}}
	makeup := Makeup{Lipstick: MakeupElement{Enabled: true, Color: color.RGBA{R: 255, A: 255}}}

	_, err := NewMakeupRenderer().Render(frame, lm, makeup)
	require.NoError(t, err)
}

func TestBeautyFilterAppliesMakeupWhenEnabled(t *testing.T) {
	store := NewBeautyStore(BeautySettings{
		Enabled: true,
		Makeup: Makeup{
			Lipstick: MakeupElement{Enabled: true, Color: color.RGBA{R: 255, A: 255}},
		},
	})
	filter := NewBeautyFilter(store)

	frame := solidFrame(40, 40, 0, 0, 0)
	lm := &FaceLandmarks{Lips: []Point{{10, 20}, {30, 20}, {30, 30}, {10, 30}}}

	out, err := filter.ApplyWithLandmarks(frame, lm)
	require.NoError(t, err)
	assert.Greater(t, pixel(out, 20, 25)[0], byte(0))
	assert.Equal(t, byte(0), pixel(frame, 20, 25)[0], "input must not be modified")
}

func TestBeautyFilterDisabledSkipsMakeup(t *testing.T) {
	lipstick := MakeupElement{Enabled: true, Color: color.RGBA{R: 255, A: 255}}
	lm := &FaceLandmarks{Lips: []Point{{10, 20}, {30, 20}, {30, 30}, {10, 30}}}

	tests := []struct {
		name    string
		enabled bool
		changed bool
	}{
		{name: "disabled", enabled: false, changed: false},
		{name: "enabled", enabled: true, changed: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			filter := NewBeautyFilter(NewBeautyStore(BeautySettings{
				Enabled: tt.enabled,
				Makeup:  Makeup{Lipstick: lipstick},
			}))
			frame := solidFrame(40, 40, 0, 0, 0)
			original := append([]byte(nil), frame.Pix...)

			out, err := filter.ApplyWithLandmarks(frame, lm)
			require.NoError(t, err)
			if tt.changed {
				assert.NotEqual(t, original, out.Pix)
				return
			}
			assert.Same(t, frame, out)
			assert.Equal(t, original, out.Pix)
		})
	}
}

func BenchmarkBeautyFilter640x480(b *testing.B) {
	store := NewBeautyStore(BeautySettings{
		Enabled:    true,
		Smoothing:  0.6,
		Whitening:  0.3,
		Brightness: 10,
		Contrast:   0.1,
		Makeup: Makeup{
			Lipstick: MakeupElement{Enabled: true, Color: color.RGBA{R: 180, G: 40, B: 70, A: 255}},
		},
	})
	filter := NewBeautyFilter(store)
	frame := createTestFrame(640, 480)
	lm := &FaceLandmarks{Lips: []Point{{280, 330}, {360, 330}, {360, 370}, {280, 370}}}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := filter.ApplyWithLandmarks(frame, lm); err != nil {
			b.Fatal(err)
		}
	}
}

func TestBeautyFilterStageOrder(t *testing.T) {
	store := NewBeautyStore(BeautySettings{Enabled: true, Whitening: 0.5, Contrast: 50})
	filter := NewBeautyFilter(store)

	out, err := filter.Apply(solidFrame(4, 4, 100, 100, 100))
	require.NoError(t, err)

	curve := NewBrightnessContrastEffect(0, 50)
	whitenFirst := curve.lut[100+25]
	curveFirst := clampByte(float64(curve.lut[100]) + 25)
	require.NotEqual(t, whitenFirst, curveFirst)

	assert.Equal(t, whitenFirst, pixel(out, 1, 1)[0], "whitening runs before the tone curve")
}

func TestBeautyFilterSmoothsBeforeToneCurve(t *testing.T) {
	// checkerboard where brightening 200 clips at 255, so blurring after
	// the curve would give a different result
	frame := NewFrame(9, 9)
	for i := 0; i < len(frame.Pix); i += 4 {
		v := byte(60)
		if (i/4)%2 == 0 {
			v = 200
		}
		frame.Pix[i], frame.Pix[i+1], frame.Pix[i+2], frame.Pix[i+3] = v, v, v, 255
	}

	settings := BeautySettings{Enabled: true, Smoothing: 1, Brightness: 50}
	out, err := NewBeautyFilter(NewBeautyStore(settings)).Apply(frame)
	require.NoError(t, err)

	smoothed, err := NewSkinSmoothingEffect(1).Apply(frame)
	require.NoError(t, err)
	want, err := NewBrightnessContrastEffect(50, 0).Apply(smoothed)
	require.NoError(t, err)

	brightened, err := NewBrightnessContrastEffect(50, 0).Apply(frame)
	require.NoError(t, err)
	reversed, err := NewSkinSmoothingEffect(1).Apply(brightened)
	require.NoError(t, err)

	require.NotEqual(t, reversed.Pix, want.Pix)

	assert.Equal(t, want.Pix, out.Pix)
}
