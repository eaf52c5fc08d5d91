// Package avatar drives a rigged avatar from smoothed expression weights
// and head rotation.
package avatar

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/opd-ai/avatarfx/expression"
	"github.com/sirupsen/logrus"
)

// HeadBone is the default joint receiving head rotation.
const HeadBone = "head"

// SlotNames returns the rig slot names an emotion is written to. Rigs
// name some expressions differently (VRM uses joy and sorrow), so an
// emotion may map to more than one slot; absent slots are ignored.
func SlotNames(e expression.Emotion) []string {
	switch e {
	case expression.Neutral:
		return []string{"neutral"}
	case expression.Happy:
		return []string{"happy", "joy"}
	case expression.Surprised:
		return []string{"surprised"}
	case expression.Angry:
		return []string{"angry"}
	case expression.Sad:
		return []string{"sad", "sorrow"}
	default:
		return nil
	}
}

// Result reports what an Apply call reached on the rig.
type Result struct {
	Slots int
	Head  bool
}

// PoseDriver writes expression weights and head rotation into a Rig.
// It performs no smoothing of its own.
type PoseDriver struct {
	rig      Rig
	headBone string
}

// NewPoseDriver creates a driver for rig.
func NewPoseDriver(rig Rig) *PoseDriver {
	logrus.WithFields(logrus.Fields{
		"function": "NewPoseDriver",
	}).Info("Creating avatar pose driver")

	return &PoseDriver{
		rig:      rig,
		headBone: HeadBone,
	}
}

// SetHeadBone changes the joint receiving head rotation.
func (d *PoseDriver) SetHeadBone(name string) {
	d.headBone = name
}

// Apply sets every known slot from weights and rotates the head joint by
// headRotation, given as X, Y, Z Euler angles in radians.
func (d *PoseDriver) Apply(weights expression.Weights, headRotation [3]float64) Result {
	var res Result
	if d.rig == nil {
		return res
	}

	for _, e := range expression.Emotions {
		w := float32(weights.Get(e))
		for _, slot := range SlotNames(e) {
			if d.rig.SetExpression(slot, w) {
				res.Slots++
			}
		}
	}

	q := HeadQuat(headRotation)
	res.Head = d.rig.SetBoneRotation(d.headBone, q)

	logrus.WithFields(logrus.Fields{
		"function": "PoseDriver.Apply",
		"slots":    res.Slots,
		"head":     res.Head,
	}).Trace("Pose applied")

	return res
}

// Reset zeroes every known slot and returns how many existed.
func (d *PoseDriver) Reset() int {
	if d.rig == nil {
		return 0
	}
	n := 0
	for _, e := range expression.Emotions {
		for _, slot := range SlotNames(e) {
			if d.rig.SetExpression(slot, 0) {
				n++
			}
		}
	}

	logrus.WithFields(logrus.Fields{
		"function": "PoseDriver.Reset",
		"slots":    n,
	}).Debug("Pose reset")

	return n
}

// HeadQuat converts X, Y, Z Euler angles in radians to a quaternion.
func HeadQuat(rot [3]float64) mgl32.Quat {
	return mgl32.AnglesToQuat(float32(rot[0]), float32(rot[1]), float32(rot[2]), mgl32.XYZ)
}
