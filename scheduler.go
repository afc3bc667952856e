package collide

import "time"

// RebuildReason says why the scheduler asked for a rebuild.
type RebuildReason uint8

const (
	RebuildNone RebuildReason = iota
	RebuildInitial
	RebuildInterval
	RebuildMovement
	RebuildForced
)

func (r RebuildReason) String() string {
	switch r {
	case RebuildNone:
		return "none"
	case RebuildInitial:
		return "initial"
	case RebuildInterval:
		return "interval"
	case RebuildMovement:
		return "movement"
	case RebuildForced:
		return "forced"
	}
	return "unknown"
}

// RebuildScheduler decides per frame whether the spatial index is rebuilt or
// the previous frame's index is reused. Elapsed time is the sum of the frame
// deltas passed to Decide, so a paused simulation never rebuilds on its own.
type RebuildScheduler struct {
	interval       time.Duration
	adaptive       bool
	moveThreshold  float32
	fractionToFire float32

	elapsed time.Duration
	built   bool
	forced  bool
	last    RebuildReason
}

func NewRebuildScheduler(cfg Config) *RebuildScheduler {
	return &RebuildScheduler{
		interval:       cfg.RebuildInterval,
		adaptive:       cfg.AdaptiveRebuild,
		moveThreshold:  cfg.MovementThreshold,
		fractionToFire: cfg.MovedFractionThreshold,
	}
}

// Decide advances the timer by dt and returns the rebuild reason for this
// frame, RebuildNone meaning "reuse the index".
func (s *RebuildScheduler) Decide(dt time.Duration, tracker *BodyTracker) RebuildReason {
	if dt > 0 {
		s.elapsed += dt
	}

	switch {
	case !s.built:
		s.last = RebuildInitial
	case s.forced:
		s.last = RebuildForced
	case s.elapsed >= s.interval:
		s.last = RebuildInterval
	case s.adaptive && s.movedEnough(tracker):
		s.last = RebuildMovement
	default:
		s.last = RebuildNone
	}
	return s.last
}

func (s *RebuildScheduler) movedEnough(tracker *BodyTracker) bool {
	if tracker == nil {
		return false
	}
	f := tracker.MovedFraction(s.moveThreshold)
	return f > 0 && f >= s.fractionToFire
}

// ShouldRebuild is Decide reduced to a bool.
func (s *RebuildScheduler) ShouldRebuild(dt time.Duration, tracker *BodyTracker) bool {
	return s.Decide(dt, tracker) != RebuildNone
}

// MarkRebuilt resets the timer after the index was rebuilt.
func (s *RebuildScheduler) MarkRebuilt() {
	s.elapsed = 0
	s.built = true
	s.forced = false
}

// Invalidate forces a rebuild on the next frame.
func (s *RebuildScheduler) Invalidate() {
	s.forced = true
}

func (s *RebuildScheduler) Elapsed() time.Duration { return s.elapsed }

func (s *RebuildScheduler) LastReason() RebuildReason { return s.last }
