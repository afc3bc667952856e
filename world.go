package collide

import (
	"math"
	"slices"

	"github.com/go-gl/mathgl/mgl32"
)

// Body is a rigid body as the reference World stores it.
type Body struct {
	ID       BodyID
	Position mgl32.Vec3
	Rotation mgl32.Quat
	Scale    mgl32.Vec3
	Shape    Shape
	Tags     []string
	// Disabled bodies report no bounding box, like bodies mid-construction.
	Disabled bool
}

func (b *Body) rotation() mgl32.Quat {
	if b.Rotation.Len() < 1e-6 {
		return mgl32.QuatIdent()
	}
	return b.Rotation.Normalize()
}

func (b *Body) scale() mgl32.Vec3 {
	s := absVec(b.Scale)
	for i := 0; i < 3; i++ {
		if s[i] < 0.001 {
			s[i] = 1
		}
	}
	return s
}

func (b *Body) axes() [3]mgl32.Vec3 {
	rot := b.rotation()
	return [3]mgl32.Vec3{
		rot.Rotate(mgl32.Vec3{1, 0, 0}),
		rot.Rotate(mgl32.Vec3{0, 1, 0}),
		rot.Rotate(mgl32.Vec3{0, 0, 1}),
	}
}

func (b *Body) obb() OBB {
	half := b.Shape.localHalfExtents()
	s := b.scale()
	return OBB{
		Center: b.Position,
		Half:   mgl32.Vec3{half.X() * s.X(), half.Y() * s.Y(), half.Z() * s.Z()},
		Axes:   b.axes(),
	}
}

// radius is the shape radius under the largest scale perpendicular to Y
// (spheres use all three axes).
func (b *Body) radius() float32 {
	s := b.scale()
	m := float32(math.Max(float64(s.X()), float64(s.Z())))
	if b.Shape.Kind == ShapeSphere {
		m = float32(math.Max(float64(m), float64(s.Y())))
	}
	return b.Shape.Radius * m
}

// segment returns the end points of the capsule/cylinder core.
func (b *Body) segment() (mgl32.Vec3, mgl32.Vec3) {
	up := b.axes()[1].Mul(b.Shape.HalfHeight * b.scale().Y())
	return b.Position.Sub(up), b.Position.Add(up)
}

// AABB returns the world-space bounds of the body. It encloses everything
// the exact tests treat as part of the shape.
func (b *Body) AABB() AABB {
	switch b.Shape.Kind {
	case ShapeSphere:
		r := b.radius()
		return NewAABBFromCenter(b.Position, mgl32.Vec3{r, r, r})
	case ShapeCapsule:
		return b.capsuleBounds()
	case ShapeCylinder:
		// Box pairs see the oriented box, capsule pairs a capsule.
		return b.boxBounds().Union(b.capsuleBounds())
	}
	return b.boxBounds()
}

func (b *Body) boxBounds() AABB {
	o := b.obb()
	var half mgl32.Vec3
	for i := 0; i < 3; i++ {
		half[i] = absf(o.Axes[0][i])*o.Half[0] +
			absf(o.Axes[1][i])*o.Half[1] +
			absf(o.Axes[2][i])*o.Half[2]
	}
	return NewAABBFromCenter(b.Position, half)
}

func (b *Body) capsuleBounds() AABB {
	p, q := b.segment()
	r := b.radius()
	pad := mgl32.Vec3{r, r, r}
	return AABB{
		Min: mgl32.Vec3{min(p[0], q[0]), min(p[1], q[1]), min(p[2], q[2])}.Sub(pad),
		Max: mgl32.Vec3{max(p[0], q[0]), max(p[1], q[1]), max(p[2], q[2])}.Add(pad),
	}
}

// World is an in-memory Solver: it owns bodies and answers exact overlap
// queries by shape kind. It does no integration.
type World struct {
	bodies map[BodyID]*Body
	order  []BodyID
	nextID BodyID
}

func NewWorld() *World {
	return &World{
		bodies: make(map[BodyID]*Body),
		nextID: 1,
	}
}

// AddBody stores a copy of b under a fresh id and returns the id.
func (w *World) AddBody(b Body) BodyID {
	id := w.nextID
	w.nextID++
	b.ID = id
	b.Tags = slices.Clone(b.Tags)
	if b.Scale == (mgl32.Vec3{}) {
		b.Scale = mgl32.Vec3{1, 1, 1}
	}
	w.bodies[id] = &b
	w.order = append(w.order, id)
	return id
}

func (w *World) RemoveBody(id BodyID) bool {
	if _, ok := w.bodies[id]; !ok {
		return false
	}
	delete(w.bodies, id)
	w.order = slices.DeleteFunc(w.order, func(x BodyID) bool { return x == id })
	return true
}

// Body returns the stored body for in-place edits, or nil.
func (w *World) Body(id BodyID) *Body {
	return w.bodies[id]
}

func (w *World) Len() int { return len(w.order) }

func (w *World) SetPosition(id BodyID, pos mgl32.Vec3) {
	if b := w.bodies[id]; b != nil {
		b.Position = pos
	}
}

func (w *World) Translate(id BodyID, delta mgl32.Vec3) {
	if b := w.bodies[id]; b != nil {
		b.Position = b.Position.Add(delta)
	}
}

func (w *World) SetRotation(id BodyID, rot mgl32.Quat) {
	if b := w.bodies[id]; b != nil {
		b.Rotation = rot
	}
}

func (w *World) SetScale(id BodyID, scale mgl32.Vec3) {
	if b := w.bodies[id]; b != nil {
		b.Scale = scale
	}
}

func (w *World) SetTags(id BodyID, tags ...string) {
	if b := w.bodies[id]; b != nil {
		b.Tags = slices.Clone(tags)
	}
}

func (w *World) SetDisabled(id BodyID, disabled bool) {
	if b := w.bodies[id]; b != nil {
		b.Disabled = disabled
	}
}

// Bodies implements Solver.
func (w *World) Bodies() []BodyID {
	return slices.Clone(w.order)
}

// Position implements Solver.
func (w *World) Position(id BodyID) (mgl32.Vec3, bool) {
	b := w.bodies[id]
	if b == nil {
		return mgl32.Vec3{}, false
	}
	return b.Position, true
}

// BoundingBox implements Solver.
func (w *World) BoundingBox(id BodyID) (AABB, bool) {
	b := w.bodies[id]
	if b == nil || b.Disabled {
		return AABB{}, false
	}
	return b.AABB(), true
}

// Tags implements Tagger.
func (w *World) Tags(id BodyID) []string {
	if b := w.bodies[id]; b != nil {
		return b.Tags
	}
	return nil
}

// ExactOverlap implements Solver. Box, sphere and capsule pairs are exact;
// cylinders are approximated by their oriented box against boxes and
// cylinders and by a capsule against capsules.
func (w *World) ExactOverlap(a, b BodyID) bool {
	ba, bb := w.bodies[a], w.bodies[b]
	if ba == nil || bb == nil || ba.Disabled || bb.Disabled || a == b {
		return false
	}
	return Overlap(ba, bb)
}

// Overlap dispatches the exact test on the two shape kinds.
func Overlap(a, b *Body) bool {
	if a.Shape.Kind == ShapeCustom {
		if a.Shape.Overlap != nil {
			return a.Shape.Overlap(a, b)
		}
		return a.AABB().Overlaps(b.AABB())
	}
	if b.Shape.Kind == ShapeCustom {
		return Overlap(b, a)
	}
	if a.Shape.Kind > b.Shape.Kind {
		a, b = b, a
	}

	switch a.Shape.Kind {
	case ShapeBox:
		switch b.Shape.Kind {
		case ShapeBox, ShapeCylinder:
			return a.obb().Intersects(b.obb())
		case ShapeSphere:
			return sphereOBB(b.Position, b.radius(), a.obb())
		case ShapeCapsule:
			p, q := b.segment()
			return segmentOBB(p, q, b.radius(), a.obb())
		}
	case ShapeSphere:
		switch b.Shape.Kind {
		case ShapeSphere:
			r := a.radius() + b.radius()
			return a.Position.Sub(b.Position).LenSqr() <= r*r
		case ShapeCylinder:
			return sphereCylinder(a.Position, a.radius(), b)
		case ShapeCapsule:
			p, q := b.segment()
			r := a.radius() + b.radius()
			return closestOnSegment(p, q, a.Position).Sub(a.Position).Len() <= r
		}
	case ShapeCylinder:
		switch b.Shape.Kind {
		case ShapeCylinder:
			return a.obb().Intersects(b.obb())
		case ShapeCapsule:
			p1, q1 := a.segment()
			p2, q2 := b.segment()
			return segmentDistance(p1, q1, p2, q2) <= a.radius()+b.radius()
		}
	case ShapeCapsule:
		p1, q1 := a.segment()
		p2, q2 := b.segment()
		return segmentDistance(p1, q1, p2, q2) <= a.radius()+b.radius()
	}
	return a.AABB().Overlaps(b.AABB())
}

func sphereOBB(center mgl32.Vec3, r float32, box OBB) bool {
	return box.ClosestPoint(center).Sub(center).LenSqr() <= r*r
}

// segmentOBB alternates projections between the segment and the box; both
// are convex so the pair converges to the closest points.
func segmentOBB(p, q mgl32.Vec3, r float32, box OBB) bool {
	onSeg := closestOnSegment(p, q, box.Center)
	for i := 0; i < 8; i++ {
		onBox := box.ClosestPoint(onSeg)
		next := closestOnSegment(p, q, onBox)
		if next.Sub(onBox).LenSqr() <= r*r {
			return true
		}
		if next.ApproxEqualThreshold(onSeg, 1e-6) {
			break
		}
		onSeg = next
	}
	return box.ClosestPoint(onSeg).Sub(onSeg).LenSqr() <= r*r
}

func sphereCylinder(center mgl32.Vec3, r float32, cyl *Body) bool {
	axes := cyl.axes()
	d := center.Sub(cyl.Position)
	hh := cyl.Shape.HalfHeight * cyl.scale().Y()
	cr := cyl.radius()

	axial := mgl32.Clamp(d.Dot(axes[1]), -hh, hh)
	radial := d.Sub(axes[1].Mul(d.Dot(axes[1])))
	if l := radial.Len(); l > cr {
		radial = radial.Mul(cr / l)
	}
	closest := cyl.Position.Add(axes[1].Mul(axial)).Add(radial)
	return closest.Sub(center).LenSqr() <= r*r
}
