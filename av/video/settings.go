package video

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// Setting ranges. Out-of-range values are clamped, never rejected.
const (
	MinToneAdjust = -50.0
	MaxToneAdjust = 50.0
)

// MakeupElement is one overlay (lipstick, eyeshadow or blush).
type MakeupElement struct {
	Enabled bool
	Color   color.RGBA
}

// Makeup groups the three overlay elements.
type Makeup struct {
	Lipstick  MakeupElement
	Eyeshadow MakeupElement
	Blush     MakeupElement
}

// BeautySettings is an immutable snapshot of the filter configuration.
type BeautySettings struct {
	Enabled    bool
	Smoothing  float64 // 0..1
	Brightness float64 // -50..50
	Contrast   float64 // -50..50
	Whitening  float64 // 0..1
	Makeup     Makeup
}

// DefaultBeautySettings returns a disabled filter with moderate defaults.
func DefaultBeautySettings() BeautySettings {
	return BeautySettings{
		Enabled:   false,
		Smoothing: 0.5,
		Whitening: 0.2,
		Makeup: Makeup{
			Lipstick:  MakeupElement{Color: color.RGBA{R: 0xc8, G: 0x32, B: 0x5a, A: 0xff}},
			Eyeshadow: MakeupElement{Color: color.RGBA{R: 0x8a, G: 0x5a, B: 0x9e, A: 0xff}},
			Blush:     MakeupElement{Color: color.RGBA{R: 0xf0, G: 0x80, B: 0x80, A: 0xff}},
		},
	}
}

func (s BeautySettings) clamped() BeautySettings {
	s.Smoothing = clampRange(s.Smoothing, 0, 1)
	s.Whitening = clampRange(s.Whitening, 0, 1)
	s.Brightness = clampRange(s.Brightness, MinToneAdjust, MaxToneAdjust)
	s.Contrast = clampRange(s.Contrast, MinToneAdjust, MaxToneAdjust)
	return s
}

// MakeupUpdate changes only the non-nil fields of a MakeupElement.
// Color is a "#rrggbb" hex string.
type MakeupUpdate struct {
	Enabled *bool   `yaml:"enabled" mapstructure:"enabled"`
	Color   *string `yaml:"color" mapstructure:"color"`
}

// BeautyUpdate is a partial settings change; nil fields keep their value.
type BeautyUpdate struct {
	Enabled    *bool         `yaml:"enabled" mapstructure:"enabled"`
	Smoothing  *float64      `yaml:"smoothing" mapstructure:"smoothing"`
	Brightness *float64      `yaml:"brightness" mapstructure:"brightness"`
	Contrast   *float64      `yaml:"contrast" mapstructure:"contrast"`
	Whitening  *float64      `yaml:"whitening" mapstructure:"whitening"`
	Lipstick   *MakeupUpdate `yaml:"lipstick" mapstructure:"lipstick"`
	Eyeshadow  *MakeupUpdate `yaml:"eyeshadow" mapstructure:"eyeshadow"`
	Blush      *MakeupUpdate `yaml:"blush" mapstructure:"blush"`
}

// BeautyStore holds the current settings. Readers load a snapshot
// without locking; writers copy, modify and swap under a mutex so two
// concurrent partial updates never lose each other's fields.
type BeautyStore struct {
	mu      sync.Mutex
	current atomic.Pointer[BeautySettings]
}

// NewBeautyStore creates a store seeded with the given settings.
func NewBeautyStore(initial BeautySettings) *BeautyStore {
	s := &BeautyStore{}
	c := initial.clamped()
	s.current.Store(&c)
	return s
}

// Get returns the current snapshot.
func (s *BeautyStore) Get() BeautySettings {
	return *s.current.Load()
}

// Replace swaps in a whole new settings value.
func (s *BeautyStore) Replace(settings BeautySettings) BeautySettings {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := settings.clamped()
	s.current.Store(&c)
	return c
}

// Update applies a partial change and returns the resulting snapshot.
// The new values take effect from the next frame.
func (s *BeautyStore) Update(u BeautyUpdate) BeautySettings {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := *s.current.Load()
	if u.Enabled != nil {
		next.Enabled = *u.Enabled
	}
	if u.Smoothing != nil {
		next.Smoothing = *u.Smoothing
	}
	if u.Brightness != nil {
		next.Brightness = *u.Brightness
	}
	if u.Contrast != nil {
		next.Contrast = *u.Contrast
	}
	if u.Whitening != nil {
		next.Whitening = *u.Whitening
	}
	applyMakeupUpdate(&next.Makeup.Lipstick, u.Lipstick, "lipstick")
	applyMakeupUpdate(&next.Makeup.Eyeshadow, u.Eyeshadow, "eyeshadow")
	applyMakeupUpdate(&next.Makeup.Blush, u.Blush, "blush")

	next = next.clamped()
	s.current.Store(&next)

	logrus.WithFields(logrus.Fields{
		"function":   "BeautyStore.Update",
		"enabled":    next.Enabled,
		"smoothing":  next.Smoothing,
		"brightness": next.Brightness,
		"contrast":   next.Contrast,
		"whitening":  next.Whitening,
	}).Debug("Beauty settings updated")

	return next
}

func applyMakeupUpdate(el *MakeupElement, u *MakeupUpdate, name string) {
	if u == nil {
		return
	}
	if u.Enabled != nil {
		el.Enabled = *u.Enabled
	}
	if u.Color != nil {
		c, err := ParseHexColor(*u.Color)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "applyMakeupUpdate",
				"element":  name,
				"color":    *u.Color,
				"error":    err.Error(),
			}).Warn("Ignoring invalid makeup color")
			return
		}
		el.Color = c
	}
}

// ParseHexColor parses "#rrggbb" or "rrggbb" into an opaque color.
func ParseHexColor(s string) (color.RGBA, error) {
	h := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(h) != 6 {
		return color.RGBA{}, fmt.Errorf("color %q: want 6 hex digits", s)
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("color %q: %w", s, err)
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, nil
}

// HexColor formats a color as "#rrggbb".
func HexColor(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}
