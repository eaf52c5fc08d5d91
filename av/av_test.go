package av

import (
	"context"
	"errors"
	"image"
	"image/color"
	"sync"
	"time"

	"github.com/opd-ai/avatarfx/av/compositor"
	"github.com/opd-ai/avatarfx/expression"
)

// mockTimeProvider advances by step on every Now and Since call.
type mockTimeProvider struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

func newMockTimeProvider(step time.Duration) *mockTimeProvider {
	return &mockTimeProvider{now: time.Unix(1700000000, 0), step: step}
}

func (m *mockTimeProvider) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(m.step)
	return m.now
}

func (m *mockTimeProvider) Since(t time.Time) time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(m.step)
	return m.now.Sub(t)
}

func (m *mockTimeProvider) setStep(step time.Duration) {
	m.mu.Lock()
	m.step = step
	m.mu.Unlock()
}

func ptr[T any](v T) *T { return &v }

type solidLoader struct{}

func (solidLoader) Load(_ context.Context, ref string) (image.Image, error) {
	var c color.RGBA
	switch ref {
	case "neutral":
		c = color.RGBA{R: 128, G: 128, B: 128, A: 255}
	case "happy":
		c = color.RGBA{R: 255, G: 220, A: 255}
	case "sad":
		c = color.RGBA{B: 255, A: 255}
	default:
		return nil, errors.New("not found")
	}
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img, nil
}

func testConfig() SessionConfig {
	cfg := DefaultSessionConfig()
	cfg.Width = 16
	cfg.Height = 16
	cfg.SampleRate = 48000
	cfg.BlockSize = 4
	cfg.RingBlocks = 4
	cfg.SmoothingFactor = 1
	cfg.Images = compositor.ImageSet{
		expression.Neutral: "neutral",
		expression.Happy:   "happy",
		expression.Sad:     "sad",
		expression.Angry:   "missing",
	}
	return cfg
}
