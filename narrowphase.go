package collide

import "github.com/go-gl/mathgl/mgl32"

// WorldUp is the fallback contact normal for coincident bodies.
var WorldUp = mgl32.Vec3{0, 1, 0}

// CollisionInfo approximates a confirmed contact. Point is the midpoint of
// the two box centers and Normal points from B to A. Impulse is not known at
// this level and is always zero; ask the solver for exact values.
type CollisionInfo struct {
	A, B    BodyID
	Point   mgl32.Vec3
	Normal  mgl32.Vec3
	Impulse float32
}

// Flip swaps the two sides and reverses the normal.
func (c CollisionInfo) Flip() CollisionInfo {
	c.A, c.B = c.B, c.A
	c.Normal = c.Normal.Mul(-1)
	return c
}

// NarrowPhase confirms candidate pairs with the solver's exact test.
type NarrowPhase struct {
	solver Solver

	Tested    int
	Confirmed int
}

func NewNarrowPhase(solver Solver) *NarrowPhase {
	return &NarrowPhase{solver: solver}
}

// ResetCounters zeroes Tested and Confirmed.
func (n *NarrowPhase) ResetCounters() {
	n.Tested, n.Confirmed = 0, 0
}

// Confirm runs the exact test for a and b and builds the contact record.
func (n *NarrowPhase) Confirm(a, b BodyState) (CollisionInfo, bool) {
	if n.solver == nil || a.ID == b.ID {
		return CollisionInfo{}, false
	}
	n.Tested++
	if !n.solver.ExactOverlap(a.ID, b.ID) {
		return CollisionInfo{}, false
	}
	n.Confirmed++
	return MakeCollisionInfo(a, b), true
}

// MakeCollisionInfo synthesizes the approximate contact between a and b.
func MakeCollisionInfo(a, b BodyState) CollisionInfo {
	info := CollisionInfo{
		A:     a.ID,
		B:     b.ID,
		Point: a.Box.Center().Add(b.Box.Center()).Mul(0.5),
	}
	d := a.Position.Sub(b.Position)
	if l := d.Len(); l > 0 && finite(l) {
		info.Normal = d.Mul(1 / l)
	} else {
		info.Normal = WorldUp
	}
	return info
}
