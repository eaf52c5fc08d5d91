// Package video provides the per-frame beauty filter for outgoing camera
// video.
//
// This file implements the pixel effects the beauty filter is built from:
// Gaussian skin smoothing, whitening, and brightness/contrast.
package video

import (
	"fmt"
	"math"
)

// Effect represents a video effect that can be applied to frames.
type Effect interface {
	// Apply processes a video frame and returns the modified frame
	Apply(frame *Frame) (*Frame, error)
	// GetName returns the effect name for identification
	GetName() string
}

// EffectChain manages multiple effects applied in sequence.
type EffectChain struct {
	effects []Effect
}

// NewEffectChain creates a new effect processing chain.
func NewEffectChain() *EffectChain {
	return &EffectChain{
		effects: make([]Effect, 0),
	}
}

// AddEffect adds an effect to the processing chain.
func (ec *EffectChain) AddEffect(effect Effect) {
	ec.effects = append(ec.effects, effect)
}

// Apply processes a frame through all effects in the chain.
func (ec *EffectChain) Apply(frame *Frame) (*Frame, error) {
	if frame == nil {
		return nil, ErrNilFrame
	}

	// If no effects, return a copy
	if len(ec.effects) == 0 {
		return copyFrame(frame), nil
	}

	current := frame
	for i, effect := range ec.effects {
		result, err := effect.Apply(current)
		if err != nil {
			return nil, fmt.Errorf("effect %d (%s) failed: %w", i, effect.GetName(), err)
		}
		current = result
	}

	return current, nil
}

// GetEffectCount returns the number of effects in the chain.
func (ec *EffectChain) GetEffectCount() int {
	return len(ec.effects)
}

// Clear removes all effects from the chain.
func (ec *EffectChain) Clear() {
	ec.effects = ec.effects[:0]
}

// SkinSmoothingEffect blurs the color channels with a normalized Gaussian
// kernel whose window grows with strength.
//
// Kernel dimension is 3 + floor(strength*4); taps run from -size/2 to
// +size/2 around each pixel with weight exp(-(dx²+dy²)/(2·strength²)).
// The kernel is separable, so the effect runs one horizontal and one
// vertical pass. Pixels closer than size/2 to any edge are copied
// unchanged. All reads come from the input frame, never from the output
// being written.
type SkinSmoothingEffect struct {
	strength float64
	half     int
	kernel   []float64 // 1D taps, sums to 1
}

// NewSkinSmoothingEffect creates a smoothing effect.
// strength: 0.0 (off) to 1.0 (7-tap window)
func NewSkinSmoothingEffect(strength float64) *SkinSmoothingEffect {
	strength = clampRange(strength, 0, 1)

	size := 3 + int(math.Floor(strength*4))
	half := size / 2

	se := &SkinSmoothingEffect{
		strength: strength,
		half:     half,
	}
	if strength == 0 {
		return se
	}

	se.kernel = make([]float64, 2*half+1)
	sum := 0.0
	denom := 2 * strength * strength
	for i := range se.kernel {
		d := float64(i - half)
		se.kernel[i] = math.Exp(-(d * d) / denom)
		sum += se.kernel[i]
	}
	for i := range se.kernel {
		se.kernel[i] /= sum
	}

	return se
}

// KernelRadius returns how many pixels the window reaches on each side.
func (se *SkinSmoothingEffect) KernelRadius() int {
	return se.half
}

// Apply smooths the RGB channels; alpha is left untouched.
func (se *SkinSmoothingEffect) Apply(frame *Frame) (*Frame, error) {
	if err := frame.Validate(); err != nil {
		return nil, err
	}

	result := copyFrame(frame)
	if se.strength == 0 {
		return result, nil
	}

	w, h, r := frame.Width, frame.Height, se.half
	if w <= 2*r || h <= 2*r {
		// frame is all border
		return result, nil
	}

	src := frame.Pix
	stride := w * 4

	// horizontal pass over every row, interior columns only
	temp := make([]float32, len(src))
	for y := 0; y < h; y++ {
		row := y * stride
		for x := r; x < w-r; x++ {
			var acc [3]float64
			for k, weight := range se.kernel {
				idx := row + (x+k-r)*4
				acc[0] += float64(src[idx]) * weight
				acc[1] += float64(src[idx+1]) * weight
				acc[2] += float64(src[idx+2]) * weight
			}
			idx := row + x*4
			temp[idx] = float32(acc[0])
			temp[idx+1] = float32(acc[1])
			temp[idx+2] = float32(acc[2])
		}
	}

	// vertical pass writes interior pixels only
	dst := result.Pix
	for y := r; y < h-r; y++ {
		for x := r; x < w-r; x++ {
			var acc [3]float64
			for k, weight := range se.kernel {
				idx := (y+k-r)*stride + x*4
				acc[0] += float64(temp[idx]) * weight
				acc[1] += float64(temp[idx+1]) * weight
				acc[2] += float64(temp[idx+2]) * weight
			}
			idx := y*stride + x*4
			dst[idx] = clampByte(acc[0])
			dst[idx+1] = clampByte(acc[1])
			dst[idx+2] = clampByte(acc[2])
		}
	}

	return result, nil
}

// GetName returns the effect name.
func (se *SkinSmoothingEffect) GetName() string {
	return fmt.Sprintf("SkinSmoothing(%.2f)", se.strength)
}

// WhiteningEffect lifts every color channel by strength*50.
type WhiteningEffect struct {
	strength float64
	boost    float64
}

// NewWhiteningEffect creates a whitening effect.
// strength: 0.0 (no change) to 1.0 (+50 per channel)
func NewWhiteningEffect(strength float64) *WhiteningEffect {
	strength = clampRange(strength, 0, 1)
	return &WhiteningEffect{
		strength: strength,
		boost:    strength * 50,
	}
}

// Apply adds the boost to R, G and B, clamped to 255.
func (we *WhiteningEffect) Apply(frame *Frame) (*Frame, error) {
	if err := frame.Validate(); err != nil {
		return nil, err
	}

	result := copyFrame(frame)
	for i := 0; i < len(result.Pix); i += 4 {
		result.Pix[i] = clampByte(float64(result.Pix[i]) + we.boost)
		result.Pix[i+1] = clampByte(float64(result.Pix[i+1]) + we.boost)
		result.Pix[i+2] = clampByte(float64(result.Pix[i+2]) + we.boost)
	}

	return result, nil
}

// GetName returns the effect name.
func (we *WhiteningEffect) GetName() string {
	return fmt.Sprintf("Whitening(%.2f)", we.strength)
}

// BrightnessContrastEffect applies the classic per-channel tone curve
//
//	v = clamp(((x-128)*(1+contrast/100) + 128) * (1+brightness/100))
//
// through a 256-entry lookup table.
type BrightnessContrastEffect struct {
	brightness float64
	contrast   float64
	lut        [256]byte
}

// NewBrightnessContrastEffect creates the tone curve.
// brightness, contrast: -50 to +50, 0 = no change
func NewBrightnessContrastEffect(brightness, contrast float64) *BrightnessContrastEffect {
	bc := &BrightnessContrastEffect{
		brightness: clampRange(brightness, -50, 50),
		contrast:   clampRange(contrast, -50, 50),
	}

	contrastFactor := 1 + bc.contrast/100
	brightnessFactor := 1 + bc.brightness/100
	for x := range bc.lut {
		v := ((float64(x)-128)*contrastFactor + 128) * brightnessFactor
		bc.lut[x] = clampByte(v)
	}

	return bc
}

// Apply maps R, G and B through the lookup table.
func (bc *BrightnessContrastEffect) Apply(frame *Frame) (*Frame, error) {
	if err := frame.Validate(); err != nil {
		return nil, err
	}

	result := copyFrame(frame)
	for i := 0; i < len(result.Pix); i += 4 {
		result.Pix[i] = bc.lut[result.Pix[i]]
		result.Pix[i+1] = bc.lut[result.Pix[i+1]]
		result.Pix[i+2] = bc.lut[result.Pix[i+2]]
	}

	return result, nil
}

// GetName returns the effect name.
func (bc *BrightnessContrastEffect) GetName() string {
	return fmt.Sprintf("BrightnessContrast(%+.0f,%+.0f)", bc.brightness, bc.contrast)
}

func clampRange(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		v = 0
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
