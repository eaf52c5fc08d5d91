// Package expression turns face-tracker blendshape scores into a small,
// normalized emotion distribution that drives avatar puppeting and image
// blending.
//
// The package covers three steps of the video pipeline:
//
//	Scores → Mapper → Weights → Smoother → {compositor, pose driver}
//
// # Mapper
//
// Mapper folds named blendshape categories (mouthSmileLeft, browDownRight,
// ...) into the five emotion buckets Neutral, Happy, Surprised, Angry and
// Sad. The strongest cue per bucket wins and strong non-neutral cues pull
// the neutral baseline down:
//
//	weights := expression.NewMapper().Map([]expression.Score{
//	    {Category: "mouthSmileLeft", Score: 0.9},
//	})
//
// # Smoother
//
// Smoother applies exponential smoothing per named channel so emotion
// weights and head-rotation axes never bleed into each other:
//
//	s := expression.NewSmoother(0.5)
//	smoothed := s.SmoothWeights(weights)
//	yaw := s.Smooth("head.y", rawYaw)
//
// # Tracker
//
// Detection runs opportunistically and may lag the display clock. Tracker
// holds the last known result so the render step never waits:
//
//	tracker.Observe(scores, headRotation) // detection side
//	obs := tracker.Latest()               // render side
package expression
