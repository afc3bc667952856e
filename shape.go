package collide

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

type ShapeKind int

const (
	ShapeBox ShapeKind = iota
	ShapeSphere
	ShapeCylinder
	ShapeCapsule
	ShapeCustom
)

func (k ShapeKind) String() string {
	switch k {
	case ShapeBox:
		return "box"
	case ShapeSphere:
		return "sphere"
	case ShapeCylinder:
		return "cylinder"
	case ShapeCapsule:
		return "capsule"
	case ShapeCustom:
		return "custom"
	}
	return "unknown"
}

// OverlapFunc is the exact test of a custom shape against any other body.
type OverlapFunc func(self, other *Body) bool

// Shape is a collision volume in body local space. Which fields matter
// depends on Kind: Box uses HalfExtents, Sphere uses Radius, Cylinder and
// Capsule use Radius and HalfHeight along local Y, Custom uses HalfExtents
// for its bounds and Overlap for the exact test.
type Shape struct {
	Kind        ShapeKind
	HalfExtents mgl32.Vec3
	Radius      float32
	HalfHeight  float32
	Overlap     OverlapFunc
}

func Box(halfExtents mgl32.Vec3) Shape {
	return Shape{Kind: ShapeBox, HalfExtents: halfExtents}
}

// Cube is a box with edge length size.
func Cube(size float32) Shape {
	h := size / 2
	return Box(mgl32.Vec3{h, h, h})
}

func Sphere(radius float32) Shape {
	return Shape{Kind: ShapeSphere, Radius: radius}
}

func Cylinder(radius, halfHeight float32) Shape {
	return Shape{Kind: ShapeCylinder, Radius: radius, HalfHeight: halfHeight}
}

func Capsule(radius, halfHeight float32) Shape {
	return Shape{Kind: ShapeCapsule, Radius: radius, HalfHeight: halfHeight}
}

func Custom(halfExtents mgl32.Vec3, overlap OverlapFunc) Shape {
	return Shape{Kind: ShapeCustom, HalfExtents: halfExtents, Overlap: overlap}
}

// localHalfExtents is the local-space box enclosing the shape.
func (s Shape) localHalfExtents() mgl32.Vec3 {
	switch s.Kind {
	case ShapeSphere:
		return mgl32.Vec3{s.Radius, s.Radius, s.Radius}
	case ShapeCylinder:
		return mgl32.Vec3{s.Radius, s.HalfHeight, s.Radius}
	case ShapeCapsule:
		return mgl32.Vec3{s.Radius, s.HalfHeight + s.Radius, s.Radius}
	default:
		return s.HalfExtents
	}
}

// OBB is an oriented box used by the box tests.
type OBB struct {
	Center mgl32.Vec3
	Half   mgl32.Vec3
	Axes   [3]mgl32.Vec3
}

// Intersects tests two OBBs with the separating axis theorem.
func (a OBB) Intersects(b OBB) bool {
	t := b.Center.Sub(a.Center)
	for i := 0; i < 3; i++ {
		if !overlapOnAxis(a, b, a.Axes[i], t) || !overlapOnAxis(a, b, b.Axes[i], t) {
			return false
		}
	}
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			axis := a.Axes[i].Cross(b.Axes[j])
			// Parallel edges give no axis.
			if axis.Len() > 1e-4 {
				if !overlapOnAxis(a, b, axis.Normalize(), t) {
					return false
				}
			}
		}
	}
	return true
}

func (a OBB) project(axis mgl32.Vec3) float32 {
	return a.Half.X()*absf(a.Axes[0].Dot(axis)) +
		a.Half.Y()*absf(a.Axes[1].Dot(axis)) +
		a.Half.Z()*absf(a.Axes[2].Dot(axis))
}

func overlapOnAxis(a, b OBB, axis, t mgl32.Vec3) bool {
	return absf(t.Dot(axis)) <= a.project(axis)+b.project(axis)
}

// ClosestPoint returns the point of the box nearest to p.
func (a OBB) ClosestPoint(p mgl32.Vec3) mgl32.Vec3 {
	d := p.Sub(a.Center)
	q := a.Center
	for i := 0; i < 3; i++ {
		dist := mgl32.Clamp(d.Dot(a.Axes[i]), -a.Half[i], a.Half[i])
		q = q.Add(a.Axes[i].Mul(dist))
	}
	return q
}

// closestOnSegment returns the point of segment [a,b] nearest to p.
func closestOnSegment(a, b, p mgl32.Vec3) mgl32.Vec3 {
	ab := b.Sub(a)
	den := ab.Dot(ab)
	if den == 0 {
		return a
	}
	t := mgl32.Clamp(p.Sub(a).Dot(ab)/den, 0, 1)
	return a.Add(ab.Mul(t))
}

// segmentDistance is the shortest distance between segments [p1,q1] and [p2,q2].
func segmentDistance(p1, q1, p2, q2 mgl32.Vec3) float32 {
	d1 := q1.Sub(p1)
	d2 := q2.Sub(p2)
	r := p1.Sub(p2)
	a := d1.Dot(d1)
	e := d2.Dot(d2)
	f := d2.Dot(r)

	var s, t float32
	switch {
	case a <= 1e-9 && e <= 1e-9:
		return r.Len()
	case a <= 1e-9:
		t = mgl32.Clamp(f/e, 0, 1)
	default:
		c := d1.Dot(r)
		if e <= 1e-9 {
			s = mgl32.Clamp(-c/a, 0, 1)
		} else {
			b := d1.Dot(d2)
			den := a*e - b*b
			if den != 0 {
				s = mgl32.Clamp((b*f-c*e)/den, 0, 1)
			}
			t = (b*s + f) / e
			if t < 0 {
				t = 0
				s = mgl32.Clamp(-c/a, 0, 1)
			} else if t > 1 {
				t = 1
				s = mgl32.Clamp((b-c)/a, 0, 1)
			}
		}
	}
	c1 := p1.Add(d1.Mul(s))
	c2 := p2.Add(d2.Mul(t))
	return c1.Sub(c2).Len()
}

func absf(f float32) float32 {
	return float32(math.Abs(float64(f)))
}
