package video

import (
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/vector"
)

// Overlay opacities.
const (
	LipstickAlpha  = 0.4
	EyeshadowAlpha = 0.3
	BlushAlpha     = 0.2
)

// kappa places cubic control points so four curves approximate an ellipse.
const kappa = 0.5522847498

// Point is a landmark position in frame pixels.
type Point struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
}

// Rect is a face bounding box in frame pixels.
type Rect struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
	W float32 `json:"width"`
	H float32 `json:"height"`
}

// FaceLandmarks carries the regions a face tracker reported for a frame.
// Any region may be empty when the tracker did not see it.
type FaceLandmarks struct {
	Lips     []Point `json:"lips,omitempty"`
	LeftEye  []Point `json:"leftEye,omitempty"`
	RightEye []Point `json:"rightEye,omitempty"`
	Face     *Rect   `json:"face,omitempty"`
}

// MakeupRenderer paints translucent overlays onto a frame in place.
type MakeupRenderer struct {
	raster *vector.Rasterizer
}

// NewMakeupRenderer creates a renderer; the rasterizer is reused across
// frames of the same size.
func NewMakeupRenderer() *MakeupRenderer {
	return &MakeupRenderer{}
}

// Render draws every enabled element whose landmarks are present.
// It returns the number of shapes drawn.
func (mr *MakeupRenderer) Render(frame *Frame, lm *FaceLandmarks, makeup Makeup) (int, error) {
	if err := frame.Validate(); err != nil {
		return 0, err
	}
	if lm == nil {
		return 0, nil
	}

	dst := frame.Image()
	drawn := 0

	if makeup.Lipstick.Enabled && len(lm.Lips) >= 3 {
		mr.fill(dst, makeup.Lipstick.Color, LipstickAlpha, func(r *vector.Rasterizer) {
			polygon(r, lm.Lips, frame.Width, frame.Height)
		})
		drawn++
	}

	if makeup.Eyeshadow.Enabled {
		for _, eye := range [][]Point{lm.LeftEye, lm.RightEye} {
			if len(eye) == 0 {
				continue
			}
			cx, cy, rx, ry := eyeEllipse(eye)
			mr.fill(dst, makeup.Eyeshadow.Color, EyeshadowAlpha, func(r *vector.Rasterizer) {
				ellipse(r, cx, cy, rx, ry, frame.Width, frame.Height)
			})
			drawn++
		}
	}

	if makeup.Blush.Enabled && lm.Face != nil && lm.Face.W > 0 && lm.Face.H > 0 {
		f := lm.Face
		cx := f.X + f.W/2
		cy := f.Y + f.H/2 + f.H*0.1
		off := f.W * 0.25
		rx, ry := f.W*0.12, f.H*0.08
		for _, x := range []float32{cx - off, cx + off} {
			mr.fill(dst, makeup.Blush.Color, BlushAlpha, func(r *vector.Rasterizer) {
				ellipse(r, x, cy, rx, ry, frame.Width, frame.Height)
			})
			drawn++
		}
	}

	return drawn, nil
}

func (mr *MakeupRenderer) fill(dst *image.RGBA, c color.RGBA, alpha float64, path func(*vector.Rasterizer)) {
	b := dst.Bounds()
	if mr.raster == nil {
		mr.raster = vector.NewRasterizer(b.Dx(), b.Dy())
	} else {
		mr.raster.Reset(b.Dx(), b.Dy())
	}
	mr.raster.DrawOp = draw.Over

	path(mr.raster)

	src := image.NewUniform(color.NRGBA{R: c.R, G: c.G, B: c.B, A: uint8(alpha*255 + 0.5)})
	mr.raster.Draw(dst, b, src, image.Point{})
}

// eyeEllipse returns an ellipse around the eye centroid sized from the
// landmark spread.
func eyeEllipse(eye []Point) (cx, cy, rx, ry float32) {
	minX, minY := eye[0].X, eye[0].Y
	maxX, maxY := minX, minY
	for _, p := range eye {
		cx += p.X
		cy += p.Y
		minX, maxX = min(minX, p.X), max(maxX, p.X)
		minY, maxY = min(minY, p.Y), max(maxY, p.Y)
	}
	n := float32(len(eye))
	cx, cy = cx/n, cy/n

	rx = max((maxX-minX)*0.6, 2)
	ry = max(max(maxY-minY, (maxX-minX)*0.3)*0.8, 2)
	return cx, cy, rx, ry
}

func clampPoint(x, y float32, w, h int) (float32, float32) {
	return min(max(x, 0), float32(w)), min(max(y, 0), float32(h))
}

func polygon(r *vector.Rasterizer, pts []Point, w, h int) {
	x, y := clampPoint(pts[0].X, pts[0].Y, w, h)
	r.MoveTo(x, y)
	for _, p := range pts[1:] {
		x, y = clampPoint(p.X, p.Y, w, h)
		r.LineTo(x, y)
	}
	r.ClosePath()
}

func ellipse(r *vector.Rasterizer, cx, cy, rx, ry float32, w, h int) {
	kx, ky := rx*kappa, ry*kappa
	c := func(x, y float32) (float32, float32) { return clampPoint(x, y, w, h) }

	r.MoveTo(c(cx+rx, cy))
	ax, ay := c(cx+rx, cy+ky)
	bx, by := c(cx+kx, cy+ry)
	ex, ey := c(cx, cy+ry)
	r.CubeTo(ax, ay, bx, by, ex, ey)
	ax, ay = c(cx-kx, cy+ry)
	bx, by = c(cx-rx, cy+ky)
	ex, ey = c(cx-rx, cy)
	r.CubeTo(ax, ay, bx, by, ex, ey)
	ax, ay = c(cx-rx, cy-ky)
	bx, by = c(cx-kx, cy-ry)
	ex, ey = c(cx, cy-ry)
	r.CubeTo(ax, ay, bx, by, ex, ey)
	ax, ay = c(cx+kx, cy-ry)
	bx, by = c(cx+rx, cy-ky)
	ex, ey = c(cx+rx, cy)
	r.CubeTo(ax, ay, bx, by, ex, ey)
	r.ClosePath()
}
