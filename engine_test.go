package collide

import (
	"bytes"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngine_EndToEnd(t *testing.T) {
	w := NewWorld()
	a := w.AddBody(Body{Position: mgl32.Vec3{0, 0, 0}, Shape: Cube(1)})
	b := w.AddBody(Body{Position: mgl32.Vec3{2, 0, 0}, Shape: Cube(1)})

	cfg := DefaultConfig()
	cfg.CellSize = 10
	e := NewEngine(w, nil, cfg)
	defer e.Dispose()

	var calls []handlerCall
	e.RegisterCollisionHandler(Bodies(a), Bodies(b), func(x, y BodyID, info CollisionInfo) {
		calls = append(calls, handlerCall{x, y, info})
	})

	e.Update(tick)
	assert.Equal(t, []PairKey{MakePairKey(a, b)}, e.CandidatePairs(), "one coarse cell holds both bodies")
	assert.Empty(t, e.Collisions())
	assert.Empty(t, calls)

	w.SetPosition(b, mgl32.Vec3{0.5, 0, 0})
	e.Update(tick)
	require.Len(t, calls, 1)
	assert.Equal(t, a, calls[0].a)
	assert.Equal(t, b, calls[0].b)
	assert.Equal(t, mgl32.Vec3{-1, 0, 0}, calls[0].info.Normal)
	assert.Equal(t, mgl32.Vec3{0.25, 0, 0}, calls[0].info.Point)

	st := e.Stats()
	assert.Equal(t, 1, st.Confirmed)
	assert.Equal(t, 1, st.HandlerCalls)
	assert.Equal(t, 2, st.Tracked)
}

func TestEngine_HandlerPerConfirmedPair(t *testing.T) {
	w := NewWorld()
	hub := w.AddBody(Body{Shape: Cube(2)})
	w.AddBody(Body{Position: mgl32.Vec3{1, 0, 0}, Shape: Cube(1)})
	w.AddBody(Body{Position: mgl32.Vec3{-1, 0, 0}, Shape: Cube(1)})
	w.AddBody(Body{Position: mgl32.Vec3{40, 0, 0}, Shape: Cube(1)})

	e := NewEngine(w, nil, DefaultConfig())
	defer e.Dispose()

	var others []BodyID
	e.RegisterCollisionHandler(Bodies(hub), AnyBody, func(x, y BodyID, info CollisionInfo) {
		assert.Equal(t, hub, x)
		others = append(others, y)
	})

	e.Update(tick)
	assert.ElementsMatch(t, []BodyID{2, 3}, others)

	// Each frame the overlap holds, the handler fires again.
	e.Update(tick)
	assert.Len(t, others, 4)
}

func TestEngine_RemoveCollisionHandler(t *testing.T) {
	w := NewWorld()
	a := w.AddBody(Body{Shape: Cube(1)})
	w.AddBody(Body{Position: mgl32.Vec3{0.2, 0, 0}, Shape: Cube(1)})
	e := NewEngine(w, nil, DefaultConfig())

	calls := 0
	id := e.RegisterCollisionHandler(Bodies(a), AnyBody, func(BodyID, BodyID, CollisionInfo) { calls++ })
	e.Update(tick)
	assert.True(t, e.RemoveCollisionHandler(id))
	e.Update(tick)
	assert.Equal(t, 1, calls)
	assert.False(t, e.RemoveCollisionHandler(id))
}

func TestEngine_TriggerLifecycle(t *testing.T) {
	w := NewWorld()
	zone := w.AddBody(Body{Shape: Cube(4), Tags: []string{"zone"}})
	player := w.AddBody(Body{Position: mgl32.Vec3{10, 0, 0}, Shape: Cube(1), Tags: []string{"player"}})
	ghost := w.AddBody(Body{Position: mgl32.Vec3{0, 0, 0}, Shape: Cube(1), Tags: []string{"player", "ghost"}})

	e := NewEngine(w, nil, DefaultConfig())
	defer e.Dispose()

	var enter, stay, exit []BodyID
	id := e.RegisterTriggerZone(zone, TriggerOptions{
		Filter:  &TriggerFilter{Include: []string{"player"}, Exclude: []string{"ghost"}},
		OnEnter: func(trigger, other BodyID, info CollisionInfo) { enter = append(enter, other) },
		OnStay:  func(trigger, other BodyID, info CollisionInfo) { stay = append(stay, other) },
		OnExit:  func(trigger, other BodyID, info CollisionInfo) { exit = append(exit, other) },
	})

	e.Update(tick)
	assert.Empty(t, enter, "the ghost overlaps but is excluded")
	assert.Equal(t, 1, e.Stats().Confirmed)

	w.SetPosition(player, mgl32.Vec3{1, 0, 0})
	e.Update(tick)
	assert.Equal(t, []BodyID{player}, enter)
	assert.Empty(t, stay)
	assert.Equal(t, 1, e.Stats().TriggerEnter)
	assert.True(t, e.Triggers().IsActive(id, MakePairKey(zone, player)))

	e.Update(tick)
	assert.Equal(t, []BodyID{player}, enter, "no second enter while overlapping")
	assert.Equal(t, []BodyID{player}, stay)
	assert.Equal(t, 1, e.Stats().TriggerStay)

	w.SetPosition(player, mgl32.Vec3{10, 0, 0})
	e.Update(tick)
	assert.Equal(t, []BodyID{player}, exit)
	assert.Equal(t, 1, e.Stats().TriggerExit)

	e.Update(tick)
	assert.Len(t, exit, 1)
	assert.NotContains(t, enter, ghost)
}

func TestEngine_TriggerExitOnBodyRemoval(t *testing.T) {
	w := NewWorld()
	zone := w.AddBody(Body{Shape: Sphere(2)})
	visitor := w.AddBody(Body{Position: mgl32.Vec3{1, 0, 0}, Shape: Sphere(0.5)})

	e := NewEngine(w, nil, DefaultConfig())
	defer e.Dispose()

	var exits []BodyID
	e.RegisterTriggerZone(zone, TriggerOptions{
		OnExit: func(_, other BodyID, _ CollisionInfo) { exits = append(exits, other) },
	})
	e.Update(tick)
	require.Len(t, e.Triggers().Active(), 1)

	w.RemoveBody(visitor)
	e.Update(tick)
	assert.Equal(t, []BodyID{visitor}, exits)
	assert.Empty(t, e.Triggers().Active())
}

func TestEngine_RemoveTriggerVolume(t *testing.T) {
	w := NewWorld()
	zone := w.AddBody(Body{Shape: Cube(2)})
	w.AddBody(Body{Shape: Cube(1)})
	e := NewEngine(w, nil, DefaultConfig())

	exits := 0
	id := e.RegisterTriggerZone(zone, TriggerOptions{OnExit: func(BodyID, BodyID, CollisionInfo) { exits++ }})
	e.Update(tick)
	assert.True(t, e.RemoveTriggerVolume(id))
	assert.False(t, e.RemoveTriggerVolume(id))
	e.Update(tick)
	assert.Zero(t, exits)
	assert.Zero(t, e.Triggers().Len())
}

func TestEngine_BruteForceMatchesGrid(t *testing.T) {
	w := NewWorld()
	for x := 0; x < 6; x++ {
		for z := 0; z < 6; z++ {
			shape := Cube(1.2)
			if (x+z)%2 == 0 {
				shape = Sphere(0.6)
			}
			w.AddBody(Body{Position: mgl32.Vec3{float32(x), 0, float32(z)}, Shape: shape})
		}
	}

	cfg := DefaultConfig()
	cfg.CellSize = 1
	e := NewEngine(w, nil, cfg)
	defer e.Dispose()

	e.Update(tick)
	grid := e.Collisions()
	gridStats := e.Stats()
	require.NotEmpty(t, grid)

	e.SetUseSpatialPartitioning(false)
	assert.False(t, e.UseSpatialPartitioning())
	e.Update(tick)
	brute := e.Collisions()
	assert.ElementsMatch(t, grid, brute)
	assert.Equal(t, 36*35/2, e.Stats().Comparisons)
	assert.Equal(t, 36*35/2, e.Stats().CandidatePairs)
	assert.Less(t, gridStats.CandidatePairs, e.Stats().CandidatePairs)

	e.SetUseSpatialPartitioning(true)
	e.Update(tick)
	assert.True(t, e.Stats().Rebuilt, "switching back rebuilds the index")
	assert.ElementsMatch(t, grid, e.Collisions())
}

func TestEngine_FrustumCulling(t *testing.T) {
	w := NewWorld()
	front := w.AddBody(Body{Position: mgl32.Vec3{0, 0, -10}, Shape: Cube(1)})
	w.AddBody(Body{Position: mgl32.Vec3{0.5, 0, -10}, Shape: Cube(1)})
	w.AddBody(Body{Position: mgl32.Vec3{0, 0, 10}, Shape: Cube(1)})
	w.AddBody(Body{Position: mgl32.Vec3{0.5, 0, 10}, Shape: Cube(1)})

	cam := PerspectiveCamera(mgl32.Vec3{}, mgl32.Vec3{0, 0, -1}, mgl32.Vec3{0, 1, 0}, 90, 1, 1, 100)
	cfg := DefaultConfig()
	cfg.FrustumCulling = true

	for _, partitioned := range []bool{true, false} {
		cfg.UseSpatialPartitioning = partitioned
		e := NewEngine(w, cam, cfg)
		e.Update(tick)

		hits := e.Collisions()
		require.Len(t, hits, 1, "partitioned=%v", partitioned)
		assert.Equal(t, MakePairKey(front, front+1), MakePairKey(hits[0].A, hits[0].B))
		assert.Equal(t, 2, e.Stats().Culled)
		assert.Equal(t, 2, e.Stats().Indexed)
		e.Dispose()
	}

	// Turning the camera around swaps the visible pair.
	cam.VP = PerspectiveCamera(mgl32.Vec3{}, mgl32.Vec3{0, 0, 1}, mgl32.Vec3{0, 1, 0}, 90, 1, 1, 100).VP
	cfg.UseSpatialPartitioning = true
	e := NewEngine(w, cam, cfg)
	defer e.Dispose()
	e.Update(tick)
	require.Len(t, e.Collisions(), 1)
	assert.Equal(t, float32(10), e.Collisions()[0].Point.Z())
}

func TestEngine_CullingWithoutCamera(t *testing.T) {
	w := NewWorld()
	w.AddBody(Body{Position: mgl32.Vec3{0, 0, 500}, Shape: Cube(1)})
	w.AddBody(Body{Position: mgl32.Vec3{0.5, 0, 500}, Shape: Cube(1)})

	log := &recordingLogger{}
	cfg := DefaultConfig()
	cfg.FrustumCulling = true
	e := NewEngine(w, nil, cfg, WithLogger(log))
	defer e.Dispose()

	assert.True(t, log.contains("WARN", "without a camera"))
	e.Update(tick)
	assert.Len(t, e.Collisions(), 1)
	assert.Zero(t, e.Stats().Culled)

	// An inactive camera behaves the same.
	e2 := NewEngine(w, &StaticCamera{}, cfg)
	defer e2.Dispose()
	e2.Update(tick)
	assert.Len(t, e2.Collisions(), 1)
}

func TestEngine_ReusesIndexUntilRebuild(t *testing.T) {
	w := NewWorld()
	a := w.AddBody(Body{Shape: Cube(1)})
	w.AddBody(Body{Position: mgl32.Vec3{30, 0, 0}, Shape: Cube(1)})

	cfg := DefaultConfig()
	cfg.RebuildInterval = time.Hour
	cfg.AdaptiveRebuild = false
	e := NewEngine(w, nil, cfg)
	defer e.Dispose()

	e.Update(tick)
	assert.True(t, e.Stats().Rebuilt)
	assert.Equal(t, RebuildInitial, e.Scheduler().LastReason())

	e.Update(tick)
	assert.False(t, e.Stats().Rebuilt)

	// A new body forces a rebuild so it is indexed right away.
	c := w.AddBody(Body{Position: mgl32.Vec3{0.3, 0, 0}, Shape: Cube(1)})
	e.Update(tick)
	assert.True(t, e.Stats().Rebuilt)
	assert.Equal(t, []PairKey{MakePairKey(a, c)}, e.CandidatePairs())

	e.Update(tick)
	assert.False(t, e.Stats().Rebuilt)
	assert.Equal(t, 3, e.Index().Len())
}

func TestEngine_ReplacedBodyForcesRebuild(t *testing.T) {
	w := NewWorld()
	a := w.AddBody(Body{Shape: Cube(1)})
	b := w.AddBody(Body{Position: mgl32.Vec3{30, 0, 0}, Shape: Cube(1)})

	cfg := DefaultConfig()
	cfg.RebuildInterval = time.Hour
	cfg.AdaptiveRebuild = false
	e := NewEngine(w, nil, cfg)
	defer e.Dispose()
	e.Update(tick)
	e.Update(tick)
	require.False(t, e.Stats().Rebuilt)

	// Same population size, different members.
	w.RemoveBody(b)
	c := w.AddBody(Body{Position: mgl32.Vec3{0.3, 0, 0}, Shape: Cube(1)})
	e.Update(tick)
	assert.True(t, e.Stats().Rebuilt)
	assert.Equal(t, RebuildForced, e.Scheduler().LastReason())
	require.Len(t, e.Collisions(), 1)
	assert.Equal(t, MakePairKey(a, c), MakePairKey(e.Collisions()[0].A, e.Collisions()[0].B))

	e.Update(tick)
	assert.False(t, e.Stats().Rebuilt)
}

func TestEngine_BoxOffsetFromPosition(t *testing.T) {
	// Pivots 20 apart, both boxes centred on (10,0,0).
	s := newFakeSolver()
	s.add(1, mgl32.Vec3{0, 0, 0}, 1)
	s.add(2, mgl32.Vec3{20, 0, 0}, 1)
	s.offset[1] = mgl32.Vec3{10, 0, 0}
	s.offset[2] = mgl32.Vec3{-10, 0, 0}

	for _, partitioned := range []bool{true, false} {
		cfg := DefaultConfig()
		cfg.UseSpatialPartitioning = partitioned
		e := NewEngine(s, nil, cfg)
		e.Update(tick)
		assert.Equal(t, []PairKey{MakePairKey(1, 2)}, e.CandidatePairs(), "partitioned=%v", partitioned)
		assert.Equal(t, 1, e.Stats().Confirmed, "partitioned=%v", partitioned)
		e.Dispose()
	}
}

func TestEngine_FrustumRefreshedEveryFrame(t *testing.T) {
	w := NewWorld()
	w.AddBody(Body{Position: mgl32.Vec3{0, 0, -10}, Shape: Cube(1)})

	cam := PerspectiveCamera(mgl32.Vec3{}, mgl32.Vec3{0, 0, -1}, mgl32.Vec3{0, 1, 0}, 90, 1, 1, 100)
	cfg := DefaultConfig()
	cfg.FrustumCulling = true
	cfg.RebuildInterval = time.Hour
	cfg.AdaptiveRebuild = false
	e := NewEngine(w, cam, cfg)
	defer e.Dispose()

	e.Update(tick)
	assert.Equal(t, ExtractFrustum(cam.VP), e.Visibility().Planes())

	cam.VP = PerspectiveCamera(mgl32.Vec3{}, mgl32.Vec3{0, 0, 1}, mgl32.Vec3{0, 1, 0}, 90, 1, 1, 100).VP
	e.Update(tick)
	assert.False(t, e.Stats().Rebuilt)
	assert.Equal(t, ExtractFrustum(cam.VP), e.Visibility().Planes())

	cam.Active = false
	e.Update(tick)
	assert.False(t, e.Visibility().Active())
}

func TestEngine_IntervalRebuild(t *testing.T) {
	w := NewWorld()
	w.AddBody(Body{Shape: Cube(1)})
	cfg := DefaultConfig()
	cfg.RebuildInterval = 50 * time.Millisecond
	cfg.AdaptiveRebuild = false
	e := NewEngine(w, nil, cfg)
	defer e.Dispose()

	var rebuilt []bool
	for i := 0; i < 5; i++ {
		e.Update(20 * time.Millisecond)
		rebuilt = append(rebuilt, e.Stats().Rebuilt)
	}
	// Initial, then 20+20+20 >= 50.
	assert.Equal(t, []bool{true, false, false, true, false}, rebuilt)
}

func TestEngine_AdaptiveRebuild(t *testing.T) {
	w := NewWorld()
	var ids []BodyID
	for i := 0; i < 10; i++ {
		ids = append(ids, w.AddBody(Body{Position: mgl32.Vec3{float32(i) * 5, 0, 0}, Shape: Cube(1)}))
	}
	cfg := DefaultConfig()
	cfg.RebuildInterval = time.Hour
	cfg.MovementThreshold = 1
	cfg.MovedFractionThreshold = 0.3
	e := NewEngine(w, nil, cfg)
	defer e.Dispose()
	e.Update(tick)

	w.Translate(ids[0], mgl32.Vec3{0, 3, 0})
	w.Translate(ids[1], mgl32.Vec3{0, 3, 0})
	e.Update(tick)
	assert.False(t, e.Stats().Rebuilt, "20% moved")

	w.Translate(ids[2], mgl32.Vec3{0, 3, 0})
	e.Update(tick)
	assert.True(t, e.Stats().Rebuilt, "30% moved")
	assert.Equal(t, RebuildMovement, e.Scheduler().LastReason())

	// Movement is measured from the last rebuild.
	e.Update(tick)
	assert.False(t, e.Stats().Rebuilt)
}

func TestEngine_SkipsBodiesWithoutGeometry(t *testing.T) {
	w := NewWorld()
	a := w.AddBody(Body{Shape: Cube(1)})
	b := w.AddBody(Body{Position: mgl32.Vec3{0.2, 0, 0}, Shape: Cube(1)})
	e := NewEngine(w, nil, DefaultConfig())
	defer e.Dispose()

	w.SetDisabled(b, true)
	assert.NotPanics(t, func() { e.Update(tick) })
	assert.Equal(t, 1, e.Stats().Skipped)
	assert.Empty(t, e.Collisions())

	w.SetDisabled(b, false)
	e.Update(tick)
	require.Len(t, e.Collisions(), 1)
	assert.Equal(t, MakePairKey(a, b), MakePairKey(e.Collisions()[0].A, e.Collisions()[0].B))
}

func TestEngine_HandlersSurvivePanics(t *testing.T) {
	w := NewWorld()
	a := w.AddBody(Body{Shape: Cube(1)})
	w.AddBody(Body{Position: mgl32.Vec3{0.2, 0, 0}, Shape: Cube(1)})

	log := &recordingLogger{}
	e := NewEngine(w, nil, DefaultConfig(), WithLogger(log))
	defer e.Dispose()

	e.RegisterCollisionHandler(Bodies(a), AnyBody, func(BodyID, BodyID, CollisionInfo) { panic("handler bug") })
	entered := 0
	e.RegisterTriggerZone(a, TriggerOptions{OnEnter: func(BodyID, BodyID, CollisionInfo) { entered++ }})

	assert.NotPanics(t, func() { e.Update(tick) })
	assert.Equal(t, 1, entered)
	assert.True(t, log.contains("ERROR", "handler bug"))
}

func TestEngine_RecoversFromSolverPanic(t *testing.T) {
	s := newFakeSolver()
	s.add(1, mgl32.Vec3{}, 1)
	s.add(2, mgl32.Vec3{0.2, 0, 0}, 1)

	log := &recordingLogger{}
	cfg := DefaultConfig()
	cfg.RebuildInterval = time.Hour
	e := NewEngine(s, nil, cfg, WithLogger(log))
	defer e.Dispose()

	e.Update(tick)
	e.Update(tick)
	require.False(t, e.Stats().Rebuilt)

	s.overlap = func(a, b BodyID) bool { panic("solver exploded") }
	assert.NotPanics(t, func() { e.Update(tick) })
	assert.True(t, log.contains("ERROR", "solver exploded"))

	s.overlap = nil
	e.Update(tick)
	assert.True(t, e.Stats().Rebuilt)
	assert.Equal(t, RebuildForced, e.Scheduler().LastReason())
	assert.Len(t, e.Collisions(), 1)
}

func TestEngine_DebugRecorder(t *testing.T) {
	w := NewWorld()
	w.AddBody(Body{Shape: Cube(1)})
	w.AddBody(Body{Position: mgl32.Vec3{0.2, 0, 0}, Shape: Cube(1)})

	buf := &closeBuffer{}
	rec := NewDebugRecorder(buf, true)
	e := NewEngine(w, nil, DefaultConfig(), WithDebugRecorder(rec))
	e.Update(tick)
	e.Update(tick)
	e.Dispose()
	assert.Equal(t, 1, buf.closed)

	frames, err := ReadDebugFrames(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	require.Len(t, frames, 2)
	assert.True(t, frames[0].Rebuilt)
	assert.Equal(t, "initial", frames[0].Reason)
	assert.NotEmpty(t, frames[0].Cells)
	assert.Len(t, frames[0].Confirmed, 1)
	assert.Equal(t, uint64(2), frames[1].Frame)
}

func TestEngine_DebugRecorderFailureDisablesIt(t *testing.T) {
	w := NewWorld()
	w.AddBody(Body{Shape: Cube(1)})
	log := &recordingLogger{}
	e := NewEngine(w, nil, DefaultConfig(), WithLogger(log), WithDebugRecorder(NewDebugRecorder(failingWriter{}, false)))
	defer e.Dispose()

	assert.NotPanics(t, func() { e.Update(tick) })
	assert.True(t, log.contains("WARN", "debug recorder disabled"))
	assert.NotPanics(t, func() { e.Update(tick) })
}

func TestEngine_Dispose(t *testing.T) {
	w := NewWorld()
	a := w.AddBody(Body{Shape: Cube(1)})
	w.AddBody(Body{Position: mgl32.Vec3{0.2, 0, 0}, Shape: Cube(1)})
	e := NewEngine(w, nil, DefaultConfig())
	e.RegisterCollisionHandler(Bodies(a), AnyBody, func(BodyID, BodyID, CollisionInfo) {})
	e.RegisterTriggerZone(a, TriggerOptions{})
	e.Update(tick)

	assert.NotPanics(t, func() {
		e.Dispose()
		e.Dispose()
	})
	assert.True(t, e.Disposed())
	assert.Zero(t, e.Handlers().Len())
	assert.Zero(t, e.Triggers().Len())
	assert.Zero(t, e.Index().Len())
	assert.Empty(t, e.CandidatePairs())

	// Everything after disposal is a no-op.
	e.Update(tick)
	assert.Equal(t, HandlerID{}, e.RegisterCollisionHandler(Bodies(a), AnyBody, nil))
	assert.Equal(t, TriggerID{}, e.RegisterTriggerZone(a, TriggerOptions{}))
	assert.Zero(t, e.Handlers().Len())
}

func TestEngine_NormalizesConfig(t *testing.T) {
	log := &recordingLogger{}
	cfg := DefaultConfig()
	cfg.CellSize = 0
	e := NewEngine(NewWorld(), nil, cfg, WithLogger(log))
	defer e.Dispose()

	assert.Equal(t, DefaultCellSize, e.Config().CellSize)
	assert.Equal(t, DefaultCellSize, e.Index().CellSize())
	assert.True(t, log.contains("WARN", "cell size"))
	assert.NotPanics(t, func() { e.Update(tick) })
}

func TestEngine_DebugConfigEnablesDebugLogging(t *testing.T) {
	log := &recordingLogger{}
	cfg := DefaultConfig()
	cfg.Debug = true
	w := NewWorld()
	w.AddBody(Body{Shape: Cube(1)})
	e := NewEngine(w, nil, cfg, WithLogger(log))
	defer e.Dispose()

	e.Update(tick)
	assert.True(t, log.contains("DEBUG", "index rebuilt (initial)"))
}

func BenchmarkEngineUpdate(b *testing.B) {
	w := NewWorld()
	for i := 0; i < 1000; i++ {
		x, y, z := i%10, (i/10)%10, i/100
		w.AddBody(Body{Position: mgl32.Vec3{float32(x), float32(y), float32(z)}.Mul(3), Shape: Cube(1)})
	}
	cfg := DefaultConfig()
	cfg.RebuildInterval = 0
	e := NewEngine(w, nil, cfg)
	defer e.Dispose()
	b.ResetTimer()
	for n := 0; n < b.N; n++ {
		e.Update(tick)
	}
}
