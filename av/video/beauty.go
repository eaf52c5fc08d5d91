package video

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// BeautyFilter is the per-frame beauty stage. It reads a settings
// snapshot once per frame, so updates land on the next frame and never
// half-way through one.
//
// Stage order is skin smoothing, whitening, then brightness/contrast.
// Makeup is drawn last, on top of the filtered frame.
//
// Enabled is the master switch for the whole stage, makeup included.
// When it is false, Apply and ApplyWithLandmarks return the input frame
// itself and nothing is drawn, whatever the per-element makeup flags say.
type BeautyFilter struct {
	settings *BeautyStore
	makeup   *MakeupRenderer

	mu        sync.Mutex
	smoothing *SkinSmoothingEffect
}

// NewBeautyFilter creates a filter reading from store. A nil store gets
// a fresh one with default settings.
func NewBeautyFilter(store *BeautyStore) *BeautyFilter {
	if store == nil {
		store = NewBeautyStore(DefaultBeautySettings())
	}

	logrus.WithFields(logrus.Fields{
		"function": "NewBeautyFilter",
		"enabled":  store.Get().Enabled,
	}).Info("Creating beauty filter")

	return &BeautyFilter{
		settings: store,
		makeup:   NewMakeupRenderer(),
	}
}

// Settings returns the store backing this filter.
func (bf *BeautyFilter) Settings() *BeautyStore {
	return bf.settings
}

// Apply runs the enabled effects over frame.
func (bf *BeautyFilter) Apply(frame *Frame) (*Frame, error) {
	return bf.ApplyWithLandmarks(frame, nil)
}

// ApplyWithLandmarks runs the effects and then paints any enabled makeup
// for the regions present in lm. A disabled filter draws no makeup.
func (bf *BeautyFilter) ApplyWithLandmarks(frame *Frame, lm *FaceLandmarks) (*Frame, error) {
	if err := frame.Validate(); err != nil {
		return nil, err
	}

	s := bf.settings.Get()
	if !s.Enabled {
		return frame, nil
	}

	result, err := bf.chainFor(s).Apply(frame)
	if err != nil {
		return nil, err
	}

	if lm != nil {
		drawn, err := bf.makeup.Render(result, lm, s.Makeup)
		if err != nil {
			return nil, err
		}
		logrus.WithFields(logrus.Fields{
			"function": "BeautyFilter.ApplyWithLandmarks",
			"shapes":   drawn,
		}).Trace("Makeup rendered")
	}

	return result, nil
}

// GetName returns the stage name.
func (bf *BeautyFilter) GetName() string {
	return "BeautyFilter"
}

func (bf *BeautyFilter) chainFor(s BeautySettings) *EffectChain {
	chain := NewEffectChain()

	if s.Smoothing > 0 {
		chain.AddEffect(bf.smoothingEffect(s.Smoothing))
	}
	if s.Whitening > 0 {
		chain.AddEffect(NewWhiteningEffect(s.Whitening))
	}
	if s.Brightness != 0 || s.Contrast != 0 {
		chain.AddEffect(NewBrightnessContrastEffect(s.Brightness, s.Contrast))
	}

	return chain
}

// smoothingEffect caches the kernel for the last strength seen.
func (bf *BeautyFilter) smoothingEffect(strength float64) *SkinSmoothingEffect {
	bf.mu.Lock()
	defer bf.mu.Unlock()

	if bf.smoothing == nil || bf.smoothing.strength != strength {
		bf.smoothing = NewSkinSmoothingEffect(strength)
	}
	return bf.smoothing
}
