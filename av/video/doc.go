// Package video provides the beauty filter stage for outgoing camera video.
//
// Frames are raw RGBA buffers straight from the capture source. The filter
// runs a fixed sequence of pixel effects and, optionally, paints makeup
// overlays from face landmarks:
//
//	Camera RGBA → Skin smoothing → Whitening → Brightness/Contrast → Makeup → Out
//
// # Frames
//
//	frame := &video.Frame{
//	    Width:  640,
//	    Height: 480,
//	    Pix:    rgba, // 640*480*4 bytes, row-major
//	}
//
// Frame.Image returns an *image.RGBA view sharing the same buffer, so the
// frame can be handed to image/draw and golang.org/x/image without copying.
//
// # Beauty Filter
//
// BeautyFilter reads its configuration from a BeautyStore. Settings are
// swapped atomically and read once per frame:
//
//	store := video.NewBeautyStore(video.DefaultBeautySettings())
//	filter := video.NewBeautyFilter(store)
//
//	on := true
//	strength := 0.8
//	store.Update(video.BeautyUpdate{Enabled: &on, Smoothing: &strength})
//
//	out, err := filter.Apply(frame)
//
// A disabled filter returns the input frame unchanged. Out-of-range values
// are clamped: smoothing and whitening to [0, 1], brightness and contrast
// to [-50, 50].
//
// # Effects
//
// The individual effects implement the Effect interface and can be chained
// directly:
//
//	chain := video.NewEffectChain()
//	chain.AddEffect(video.NewSkinSmoothingEffect(0.5))
//	chain.AddEffect(video.NewBrightnessContrastEffect(10, 5))
//	out, err := chain.Apply(frame)
//
// Skin smoothing leaves a border as wide as its kernel radius untouched and
// preserves alpha.
//
// # Makeup
//
// MakeupRenderer fills lips as a polygon, eyeshadow as ellipses around each
// eye, and blush as two ellipses either side of the face centre, using
// golang.org/x/image/vector. Regions without landmarks are skipped.
package video
