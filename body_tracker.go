package collide

import "github.com/go-gl/mathgl/mgl32"

// BodyState is the tracked geometry of one body for the current frame.
type BodyState struct {
	ID       BodyID
	Position mgl32.Vec3
	Box      AABB
	// Moved is the distance travelled since the last index rebuild.
	Moved float32
}

type trackedBody struct {
	state    BodyState
	lastPos  mgl32.Vec3
	seen     bool
	hasShape bool
	frame    uint64
}

// BodyTracker snapshots positions and bounds from the solver every frame and
// accumulates how far each body moved since the last rebuild.
type BodyTracker struct {
	solver  Solver
	bodies  map[BodyID]*trackedBody
	order   []BodyID
	frame   uint64
	skipped int
}

func NewBodyTracker(solver Solver) *BodyTracker {
	return &BodyTracker{
		solver: solver,
		bodies: make(map[BodyID]*trackedBody),
	}
}

// UpdateSnapshot re-reads every body the solver reports. Bodies without a
// position or a valid box are left out of this frame's snapshot. Bodies the
// solver stopped reporting are forgotten.
func (t *BodyTracker) UpdateSnapshot() {
	t.frame++
	t.order = t.order[:0]
	t.skipped = 0
	if t.solver == nil {
		clear(t.bodies)
		return
	}

	for _, id := range t.solver.Bodies() {
		tb, ok := t.bodies[id]
		if !ok {
			tb = &trackedBody{}
			t.bodies[id] = tb
		}
		if tb.frame == t.frame {
			// Reported twice by the solver.
			continue
		}
		tb.frame = t.frame

		pos, okPos := t.solver.Position(id)
		box, okBox := t.solver.BoundingBox(id)
		if !okPos || !okBox || !finiteVec(pos) || !box.Valid() {
			tb.hasShape = false
			t.skipped++
			continue
		}

		if tb.seen {
			tb.state.Moved += pos.Sub(tb.lastPos).Len()
		}
		tb.lastPos = pos
		tb.seen = true
		tb.hasShape = true
		tb.state.ID = id
		tb.state.Position = pos
		tb.state.Box = box
		t.order = append(t.order, id)
	}

	for id, tb := range t.bodies {
		if tb.frame != t.frame {
			delete(t.bodies, id)
		}
	}
}

// Snapshot returns the bodies with usable geometry this frame, in solver order.
func (t *BodyTracker) Snapshot() []BodyState {
	out := make([]BodyState, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, t.bodies[id].state)
	}
	return out
}

// State returns the current frame's state of id, if it has usable geometry.
func (t *BodyTracker) State(id BodyID) (BodyState, bool) {
	tb, ok := t.bodies[id]
	if !ok || !tb.hasShape || tb.frame != t.frame {
		return BodyState{}, false
	}
	return tb.state, true
}

// Len is the number of bodies with usable geometry this frame.
func (t *BodyTracker) Len() int { return len(t.order) }

// Skipped is the number of bodies left out this frame for missing geometry.
func (t *BodyTracker) Skipped() int { return t.skipped }

// MovedFraction is the share of snapshot bodies whose accumulated movement
// exceeds threshold.
func (t *BodyTracker) MovedFraction(threshold float32) float32 {
	if len(t.order) == 0 {
		return 0
	}
	moved := 0
	for _, id := range t.order {
		if t.bodies[id].state.Moved > threshold {
			moved++
		}
	}
	return float32(moved) / float32(len(t.order))
}

func (t *BodyTracker) ResetMovement() {
	for _, tb := range t.bodies {
		tb.state.Moved = 0
	}
}

// Reset forgets every tracked body.
func (t *BodyTracker) Reset() {
	clear(t.bodies)
	t.order = t.order[:0]
	t.skipped = 0
}
