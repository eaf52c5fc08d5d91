package video

import (
	"errors"
	"fmt"
	"image"
	"image/draw"
)

// Sentinel errors for frame validation.
var (
	// ErrNilFrame indicates a nil frame was passed to a stage.
	ErrNilFrame = errors.New("input frame cannot be nil")

	// ErrInvalidFrame indicates a frame whose buffer does not match its size.
	ErrInvalidFrame = errors.New("invalid frame")
)

// Frame is a raw RGBA video frame as delivered by a capture source:
// Width × Height pixels, 4 bytes per pixel, rows packed without padding.
type Frame struct {
	Width  int
	Height int
	Pix    []byte
}

// NewFrame allocates a zeroed frame.
func NewFrame(width, height int) *Frame {
	return &Frame{
		Width:  width,
		Height: height,
		Pix:    make([]byte, width*height*4),
	}
}

// FrameFromImage copies any image into a new frame.
func FrameFromImage(img image.Image) *Frame {
	b := img.Bounds()
	f := NewFrame(b.Dx(), b.Dy())
	draw.Draw(f.Image(), f.Image().Bounds(), img, b.Min, draw.Src)
	return f
}

// Image returns an *image.RGBA view sharing the frame's pixel buffer.
func (f *Frame) Image() *image.RGBA {
	return &image.RGBA{
		Pix:    f.Pix,
		Stride: f.Width * 4,
		Rect:   image.Rect(0, 0, f.Width, f.Height),
	}
}

// Validate checks that the buffer length matches the dimensions.
func (f *Frame) Validate() error {
	if f == nil {
		return ErrNilFrame
	}
	if f.Width <= 0 || f.Height <= 0 {
		return fmt.Errorf("%w: dimensions %dx%d", ErrInvalidFrame, f.Width, f.Height)
	}
	if want := f.Width * f.Height * 4; len(f.Pix) != want {
		return fmt.Errorf("%w: buffer is %d bytes, want %d", ErrInvalidFrame, len(f.Pix), want)
	}
	return nil
}

// copyFrame creates a deep copy of a video frame.
func copyFrame(frame *Frame) *Frame {
	return &Frame{
		Width:  frame.Width,
		Height: frame.Height,
		Pix:    append([]byte(nil), frame.Pix...),
	}
}

func clampByte(v float64) byte {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return byte(v + 0.5)
}
