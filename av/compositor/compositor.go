package compositor

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/opd-ai/avatarfx/expression"
	"github.com/sirupsen/logrus"
	"golang.org/x/image/draw"
)

// Sentinel errors for the compositor.
var (
	// ErrUnsupportedRef indicates an image reference the loader cannot resolve.
	ErrUnsupportedRef = errors.New("unsupported image reference")

	// ErrCacheDisposed indicates use of a cache after session end.
	ErrCacheDisposed = errors.New("image cache disposed")

	// ErrInvalidCanvas indicates a canvas with zero area.
	ErrInvalidCanvas = errors.New("invalid canvas size")
)

// MinDrawWeight is the smallest weight that produces a draw.
const MinDrawWeight = 0.01

// ImageSet maps each emotion to an image reference. Emotions without a
// reference fall back to the neutral image.
type ImageSet map[expression.Emotion]string

// resolve returns the reference to use for e.
func (s ImageSet) resolve(e expression.Emotion) string {
	if ref := s[e]; ref != "" {
		return ref
	}
	return s[expression.Neutral]
}

// ConfigureResult reports what Configure managed to load.
type ConfigureResult struct {
	Loaded int
	Failed int
}

// Compositor crossfades one image per emotion into a fixed canvas.
//
// Images are drawn in ascending weight order with global alpha equal to
// the weight, so the dominant expression is painted last and ends up on
// top. Weights below MinDrawWeight are skipped.
type Compositor struct {
	cache  *Cache
	scaler draw.Scaler

	mu      sync.Mutex
	canvas  *image.RGBA
	handles [expression.EmotionCount]*Handle
	closed  bool

	version  atomic.Uint64
	uploaded atomic.Uint64
}

// New creates a compositor with a width × height canvas.
func New(width, height int, cache *Cache) (*Compositor, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidCanvas, width, height)
	}
	if cache == nil {
		cache = NewCache(nil)
	}

	logrus.WithFields(logrus.Fields{
		"function": "compositor.New",
		"width":    width,
		"height":   height,
	}).Info("Creating image blend compositor")

	return &Compositor{
		cache:  cache,
		scaler: draw.ApproxBiLinear,
		canvas: image.NewRGBA(image.Rect(0, 0, width, height)),
	}, nil
}

// Configure loads the images for set, replacing the previous set. Images
// that fail to load are logged and left empty; they never abort the call.
func (c *Compositor) Configure(ctx context.Context, set ImageSet) (ConfigureResult, error) {
	var (
		next   [expression.EmotionCount]*Handle
		result ConfigureResult
	)

	for _, e := range expression.Emotions {
		ref := set.resolve(e)
		if ref == "" {
			continue
		}
		h, err := c.cache.Acquire(ctx, ref)
		if err != nil {
			if errors.Is(err, ErrCacheDisposed) {
				releaseAll(c.cache, next[:])
				return result, err
			}
			logrus.WithFields(logrus.Fields{
				"function": "Compositor.Configure",
				"emotion":  e.String(),
				"ref":      describeRef(ref),
				"error":    err.Error(),
			}).Warn("Image failed to load, skipping")
			result.Failed++
			continue
		}
		next[e] = h
		result.Loaded++
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		releaseAll(c.cache, next[:])
		return result, ErrCacheDisposed
	}
	prev := c.handles
	c.handles = next
	c.mu.Unlock()

	releaseAll(c.cache, prev[:])

	logrus.WithFields(logrus.Fields{
		"function": "Compositor.Configure",
		"loaded":   result.Loaded,
		"failed":   result.Failed,
	}).Info("Image set configured")

	return result, nil
}

func releaseAll(cache *Cache, handles []*Handle) {
	for _, h := range handles {
		cache.Release(h)
	}
}

// Composite clears the canvas and draws every loaded image whose weight
// reaches MinDrawWeight. It returns the number of images drawn. The
// returned canvas is only valid until the next Composite call.
func (c *Compositor) Composite(weights expression.Weights) (*image.RGBA, int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, 0
	}

	clear(c.canvas.Pix)

	order := drawOrder(weights)
	drawn := 0
	for _, e := range order {
		w := weights[e]
		h := c.handles[e]
		if w < MinDrawWeight || h == nil {
			continue
		}
		src := h.Image()
		mask := image.NewUniform(color.Alpha{A: alphaOf(w)})
		c.scaler.Scale(c.canvas, c.canvas.Bounds(), src, src.Bounds(), draw.Over, &draw.Options{SrcMask: mask})
		drawn++
	}

	c.version.Add(1)

	logrus.WithFields(logrus.Fields{
		"function": "Compositor.Composite",
		"drawn":    drawn,
		"dominant": weights.Dominant().String(),
	}).Trace("Composite complete")

	return c.canvas, drawn
}

// drawOrder sorts emotions by ascending weight; ties keep enum order.
func drawOrder(weights expression.Weights) []expression.Emotion {
	order := make([]expression.Emotion, 0, expression.EmotionCount)
	order = append(order, expression.Emotions[:]...)
	sort.SliceStable(order, func(i, j int) bool {
		return weights[order[i]] < weights[order[j]]
	})
	return order
}

func alphaOf(w float64) uint8 {
	if w >= 1 {
		return 255
	}
	a := w*255 + 0.5
	if a < 1 {
		return 1
	}
	return uint8(a)
}

// TakeDirty reports whether the canvas changed since the last call and
// marks it uploaded.
func (c *Compositor) TakeDirty() bool {
	v := c.version.Load()
	return c.uploaded.Swap(v) != v
}

// Snapshot returns a copy of the canvas safe to use from another goroutine.
func (c *Compositor) Snapshot() *image.RGBA {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	out := image.NewRGBA(c.canvas.Rect)
	copy(out.Pix, c.canvas.Pix)
	return out
}

// Bounds returns the canvas bounds.
func (c *Compositor) Bounds() image.Rectangle {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.canvas == nil {
		return image.Rectangle{}
	}
	return c.canvas.Rect
}

// Close releases all image handles and the canvas. It is idempotent.
func (c *Compositor) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	prev := c.handles
	c.handles = [expression.EmotionCount]*Handle{}
	c.canvas = nil
	c.mu.Unlock()

	releaseAll(c.cache, prev[:])

	logrus.WithFields(logrus.Fields{
		"function": "Compositor.Close",
	}).Info("Compositor closed")

	return nil
}
