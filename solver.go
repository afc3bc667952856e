package collide

import "github.com/go-gl/mathgl/mgl32"

// Solver is the physics collaborator that owns bodies and answers exact
// overlap queries. The engine reads from it and never mutates it.
type Solver interface {
	Bodies() []BodyID
	Position(id BodyID) (mgl32.Vec3, bool)
	BoundingBox(id BodyID) (AABB, bool)
	ExactOverlap(a, b BodyID) bool
}

// Tagger is implemented by solvers that can label bodies. Trigger filters
// read tags through it.
type Tagger interface {
	Tags(id BodyID) []string
}

// Camera supplies the active view-projection matrix. ok is false when there
// is no active camera.
type Camera interface {
	ViewProjection() (vp mgl32.Mat4, ok bool)
}

// StaticCamera is a Camera with a fixed matrix.
type StaticCamera struct {
	VP     mgl32.Mat4
	Active bool
}

func (c *StaticCamera) ViewProjection() (mgl32.Mat4, bool) {
	if c == nil || !c.Active {
		return mgl32.Mat4{}, false
	}
	return c.VP, true
}

// PerspectiveCamera builds an active StaticCamera looking from eye at target.
// fovY is in degrees.
func PerspectiveCamera(eye, target, up mgl32.Vec3, fovY, aspect, near, far float32) *StaticCamera {
	proj := mgl32.Perspective(mgl32.DegToRad(fovY), aspect, near, far)
	view := mgl32.LookAtV(eye, target, up)
	return &StaticCamera{VP: proj.Mul4(view), Active: true}
}
