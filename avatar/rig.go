package avatar

import (
	"sort"
	"sync"

	"github.com/go-gl/mathgl/mgl32"
)

// Rig is the avatar model the pose driver writes into. The rig owns its
// lifecycle; the driver only sets values. Setters report whether the
// named target exists.
type Rig interface {
	SetExpression(name string, weight float32) bool
	SetBoneRotation(bone string, rotation mgl32.Quat) bool
}

// MemoryRig is a Rig holding plain values, for hosts that render
// elsewhere and for tests.
type MemoryRig struct {
	mu          sync.RWMutex
	expressions map[string]float32
	bones       map[string]mgl32.Quat
}

// NewMemoryRig creates a rig exposing exactly the given slots and bones.
func NewMemoryRig(slots, bones []string) *MemoryRig {
	r := &MemoryRig{
		expressions: make(map[string]float32, len(slots)),
		bones:       make(map[string]mgl32.Quat, len(bones)),
	}
	for _, s := range slots {
		r.expressions[s] = 0
	}
	for _, b := range bones {
		r.bones[b] = mgl32.QuatIdent()
	}
	return r
}

// SetExpression sets a slot weight if the slot exists.
func (r *MemoryRig) SetExpression(name string, weight float32) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.expressions[name]; !ok {
		return false
	}
	r.expressions[name] = weight
	return true
}

// SetBoneRotation sets a bone rotation if the bone exists.
func (r *MemoryRig) SetBoneRotation(bone string, rotation mgl32.Quat) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.bones[bone]; !ok {
		return false
	}
	r.bones[bone] = rotation
	return true
}

// Expression returns a slot weight.
func (r *MemoryRig) Expression(name string) (float32, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.expressions[name]
	return w, ok
}

// Bone returns a bone rotation.
func (r *MemoryRig) Bone(name string) (mgl32.Quat, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	q, ok := r.bones[name]
	return q, ok
}

// Expressions returns a copy of all slot weights.
func (r *MemoryRig) Expressions() map[string]float32 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]float32, len(r.expressions))
	for k, v := range r.expressions {
		out[k] = v
	}
	return out
}

// Slots returns the slot names in sorted order.
func (r *MemoryRig) Slots() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.expressions))
	for k := range r.expressions {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
