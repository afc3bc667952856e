package collide

import (
	"time"
)

// FrameStats describes the last detection pass.
type FrameStats struct {
	Frame          uint64        `msgpack:"frame"`
	Rebuilt        bool          `msgpack:"rebuilt"`
	Tracked        int           `msgpack:"tracked"`
	Skipped        int           `msgpack:"skipped"`
	Indexed        int           `msgpack:"indexed"`
	Culled         int           `msgpack:"culled"`
	CandidatePairs int           `msgpack:"candidates"`
	Comparisons    int           `msgpack:"comparisons"`
	Confirmed      int           `msgpack:"confirmed"`
	HandlerCalls   int           `msgpack:"handler_calls"`
	TriggerEnter   int           `msgpack:"trigger_enter"`
	TriggerStay    int           `msgpack:"trigger_stay"`
	TriggerExit    int           `msgpack:"trigger_exit"`
	Duration       time.Duration `msgpack:"duration"`
}

type Option func(*Engine)

func WithLogger(logger Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithDebugRecorder streams every frame to rec. The engine closes it on Dispose.
func WithDebugRecorder(rec *DebugRecorder) Option {
	return func(e *Engine) {
		e.recorder = rec
	}
}

// Engine runs one broad phase, narrow phase and notification pass per
// Update. It is not safe for concurrent use; register and unregister from
// the same goroutine that calls Update.
type Engine struct {
	cfg    Config
	solver Solver
	logger Logger

	index      *SpatialIndex
	tracker    *BodyTracker
	visibility *VisibilityFilter
	scheduler  *RebuildScheduler
	finder     *PairFinder
	narrow     *NarrowPhase
	handlers   *HandlerRegistry
	triggers   *TriggerTracker
	recorder   *DebugRecorder

	// indexed lists the bodies inserted at the last rebuild; members holds
	// every tracked body at that rebuild, culled ones included.
	indexed    []BodyID
	members    map[BodyID]struct{}
	candidates []PairKey
	confirmed  []CollisionInfo
	stats      FrameStats
	frame      uint64
	disposed   bool
}

// NewEngine wires the components around solver and camera. camera may be
// nil; frustum culling then treats everything as visible.
func NewEngine(solver Solver, camera Camera, cfg Config, opts ...Option) *Engine {
	e := &Engine{
		solver:  solver,
		logger:  NewNopLogger(),
		members: make(map[BodyID]struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	if cfg.Debug {
		e.logger.SetDebug(true)
	}
	for _, w := range cfg.Normalize() {
		e.logger.Warnf("collide: %s", w)
	}
	if cfg.FrustumCulling && camera == nil {
		e.logger.Warnf("collide: frustum culling enabled without a camera, every body counts as visible")
	}
	e.cfg = cfg

	var tagger Tagger
	if t, ok := solver.(Tagger); ok {
		tagger = t
	}

	e.index = NewSpatialIndex(cfg.CellSize)
	e.tracker = NewBodyTracker(solver)
	e.visibility = NewVisibilityFilter(camera)
	e.scheduler = NewRebuildScheduler(cfg)
	e.finder = NewPairFinder()
	e.narrow = NewNarrowPhase(solver)
	e.handlers = NewHandlerRegistry(e.logger)
	e.triggers = NewTriggerTracker(tagger, e.logger)
	return e
}

func (e *Engine) Config() Config { return e.cfg }

func (e *Engine) Logger() Logger { return e.logger }

func (e *Engine) Index() *SpatialIndex { return e.index }

func (e *Engine) Tracker() *BodyTracker { return e.tracker }

func (e *Engine) Visibility() *VisibilityFilter { return e.visibility }

func (e *Engine) Scheduler() *RebuildScheduler { return e.scheduler }

func (e *Engine) Handlers() *HandlerRegistry { return e.handlers }

func (e *Engine) Triggers() *TriggerTracker { return e.triggers }

func (e *Engine) Stats() FrameStats { return e.stats }

func (e *Engine) Disposed() bool { return e.disposed }

// CandidatePairs returns the broad phase output of the last Update.
func (e *Engine) CandidatePairs() []PairKey {
	out := make([]PairKey, len(e.candidates))
	copy(out, e.candidates)
	return out
}

// Collisions returns the confirmed overlaps of the last Update.
func (e *Engine) Collisions() []CollisionInfo {
	out := make([]CollisionInfo, len(e.confirmed))
	copy(out, e.confirmed)
	return out
}

// RegisterCollisionHandler calls cb for confirmed overlaps between a body in
// a and a body in b. Pass AnyBody (nil) as b to match every second body.
func (e *Engine) RegisterCollisionHandler(a, b Criteria, cb CollisionCallback) HandlerID {
	if e.disposed {
		return HandlerID{}
	}
	return e.handlers.Register(a, b, cb)
}

func (e *Engine) RemoveCollisionHandler(id HandlerID) bool {
	if e.disposed {
		return false
	}
	return e.handlers.Remove(id)
}

// RegisterTriggerZone turns body into a trigger volume.
func (e *Engine) RegisterTriggerZone(body BodyID, opts TriggerOptions) TriggerID {
	if e.disposed {
		return TriggerID{}
	}
	return e.triggers.Register(body, opts)
}

func (e *Engine) RemoveTriggerVolume(id TriggerID) bool {
	if e.disposed {
		return false
	}
	return e.triggers.Remove(id)
}

// SetUseSpatialPartitioning switches between the grid and the brute force
// all-pairs search.
func (e *Engine) SetUseSpatialPartitioning(on bool) {
	if e.disposed || e.cfg.UseSpatialPartitioning == on {
		return
	}
	e.cfg.UseSpatialPartitioning = on
	e.scheduler.Invalidate()
	e.logger.Debugf("collide: spatial partitioning %v", on)
}

func (e *Engine) UseSpatialPartitioning() bool { return e.cfg.UseSpatialPartitioning }

// Update runs one detection pass. It never panics: a failing pass is logged
// and the next frame rebuilds the index.
func (e *Engine) Update(dt time.Duration) {
	if e.disposed {
		return
	}
	start := time.Now()
	e.frame++
	e.stats = FrameStats{Frame: e.frame}

	defer func() {
		if rec := recover(); rec != nil {
			e.logger.Errorf("collide: frame %d aborted: %v", e.frame, rec)
			e.scheduler.Invalidate()
		}
		e.stats.Duration = time.Since(start)
	}()

	e.pass(dt)
}

func (e *Engine) pass(dt time.Duration) {
	e.tracker.UpdateSnapshot()
	e.stats.Tracked = e.tracker.Len()
	e.stats.Skipped = e.tracker.Skipped()
	if e.stats.Skipped > 0 {
		e.logger.Debugf("collide: %d bodies without geometry skipped", e.stats.Skipped)
	}

	if e.cfg.FrustumCulling {
		e.visibility.Update()
	}

	bodies := e.tracker.Snapshot()
	if e.cfg.UseSpatialPartitioning {
		if e.membershipChanged(bodies) {
			e.scheduler.Invalidate()
		}
		reason := e.scheduler.Decide(dt, e.tracker)
		if reason != RebuildNone {
			e.rebuild(bodies, reason)
		}
		e.candidates = e.finder.FindPairs(e.index, e.indexedStates())
	} else {
		e.candidates = e.finder.BruteForce(e.visibleStates(bodies))
	}
	e.stats.Indexed = len(e.indexed)
	e.stats.CandidatePairs = len(e.candidates)
	e.stats.Comparisons = e.finder.Comparisons

	e.confirmed = e.confirmed[:0]
	e.narrow.ResetCounters()
	e.triggers.BeginFrame()
	for _, pair := range e.candidates {
		a, okA := e.tracker.State(pair.A)
		b, okB := e.tracker.State(pair.B)
		if !okA || !okB {
			continue
		}
		info, hit := e.narrow.Confirm(a, b)
		if !hit {
			continue
		}
		e.confirmed = append(e.confirmed, info)
		e.stats.HandlerCalls += e.handlers.Notify(a.ID, b.ID, info)
		e.triggers.Observe(a.ID, b.ID, info)
	}
	e.triggers.EndFrame()

	ev := e.triggers.Events()
	e.stats.Confirmed = len(e.confirmed)
	e.stats.TriggerEnter, e.stats.TriggerStay, e.stats.TriggerExit = ev.Enter, ev.Stay, ev.Exit

	e.record()
}

// rebuild clears the index and refills it from the snapshot, leaving out
// bodies outside the frustum when culling is on.
func (e *Engine) rebuild(bodies []BodyState, reason RebuildReason) {
	e.index.Clear()
	e.indexed = e.indexed[:0]
	clear(e.members)
	for _, b := range bodies {
		e.members[b.ID] = struct{}{}
		if e.cfg.FrustumCulling && !e.visibility.IsBoxVisible(b.Box) {
			e.stats.Culled++
			continue
		}
		// The solver's pivot need not be the box centre; the query padding
		// only covers half extents around the centre.
		e.index.InsertExtent(b.ID, b.Box.Center(), b.Box.HalfExtents())
		e.indexed = append(e.indexed, b.ID)
	}
	e.tracker.ResetMovement()
	e.scheduler.MarkRebuilt()
	e.stats.Rebuilt = true
	e.logger.Debugf("collide: index rebuilt (%s): %d bodies in %d cells, %d culled",
		reason, e.index.Len(), e.index.CellCount(), e.stats.Culled)
}

// membershipChanged reports whether the tracked set differs from the one the
// index was built from.
func (e *Engine) membershipChanged(bodies []BodyState) bool {
	if len(bodies) != len(e.members) {
		return true
	}
	for _, b := range bodies {
		if _, ok := e.members[b.ID]; !ok {
			return true
		}
	}
	return false
}

// indexedStates returns the current state of every body inserted at the last
// rebuild that still has geometry.
func (e *Engine) indexedStates() []BodyState {
	out := make([]BodyState, 0, len(e.indexed))
	for _, id := range e.indexed {
		if st, ok := e.tracker.State(id); ok {
			out = append(out, st)
		}
	}
	return out
}

func (e *Engine) visibleStates(bodies []BodyState) []BodyState {
	e.indexed = e.indexed[:0]
	if !e.cfg.FrustumCulling {
		for _, b := range bodies {
			e.indexed = append(e.indexed, b.ID)
		}
		return bodies
	}
	out := bodies[:0]
	for _, b := range bodies {
		if !e.visibility.IsBoxVisible(b.Box) {
			e.stats.Culled++
			continue
		}
		out = append(out, b)
		e.indexed = append(e.indexed, b.ID)
	}
	return out
}

func (e *Engine) record() {
	if e.recorder == nil {
		return
	}
	frame := DebugFrame{
		Frame:     e.frame,
		Rebuilt:   e.stats.Rebuilt,
		Pairs:     e.candidates,
		Confirmed: e.confirmed,
		Stats:     e.stats,
	}
	if e.stats.Rebuilt {
		frame.Reason = e.scheduler.LastReason().String()
	}
	if e.recorder.WantsCells() {
		e.index.Cells(func(key CellKey, ids []BodyID) bool {
			frame.Cells = append(frame.Cells, DebugCell{
				Key:    key,
				Bounds: e.index.CellBounds(key),
				Bodies: append([]BodyID(nil), ids...),
			})
			return true
		})
	}
	if err := e.recorder.Record(frame); err != nil {
		e.logger.Warnf("collide: debug recorder disabled: %v", err)
		e.closeRecorder()
	}
}

func (e *Engine) closeRecorder() {
	if e.recorder == nil {
		return
	}
	if err := e.recorder.Close(); err != nil {
		e.logger.Errorf("collide: %v", err)
	}
	e.recorder = nil
}

// Dispose releases the index, both registries and the debug recorder.
// Calling it again does nothing.
func (e *Engine) Dispose() {
	if e.disposed {
		return
	}
	e.disposed = true
	e.closeRecorder()
	e.index.Clear()
	e.tracker.Reset()
	e.handlers.Clear()
	e.triggers.Clear()
	e.indexed = nil
	clear(e.members)
	e.candidates = nil
	e.confirmed = nil
	e.logger.Debugf("collide: engine disposed after %d frames", e.frame)
}
