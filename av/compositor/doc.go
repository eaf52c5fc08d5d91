// Package compositor blends one image per recognized expression into a
// single avatar frame.
//
// Each frame the compositor clears its canvas and draws every image whose
// expression weight is at least MinDrawWeight, scaled to the canvas, with
// global alpha equal to the weight. Images are drawn in ascending weight
// order so the dominant expression lands on top:
//
//	cache := compositor.NewCache(nil)
//	defer cache.Dispose()
//
//	c, err := compositor.New(1024, 1024, cache)
//	if err != nil {
//	    return err
//	}
//	defer c.Close()
//
//	_, err = c.Configure(ctx, compositor.ImageSet{
//	    expression.Neutral: "avatars/neutral.png",
//	    expression.Happy:   "https://example.com/happy.webp",
//	})
//
//	canvas, drawn := c.Composite(weights)
//	if c.TakeDirty() {
//	    upload(canvas)
//	}
//
// Images are loaded through a content-addressed Cache keyed by the
// BLAKE2b digest of the reference, so an image shared between expressions
// or reused across reconfigurations is decoded once. A reference that
// fails to load is logged and skipped.
package compositor
