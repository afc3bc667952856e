package collide

import (
	"cmp"
	"slices"

	"github.com/google/uuid"
)

// TriggerID identifies a trigger zone registration.
type TriggerID uuid.UUID

func (id TriggerID) String() string { return uuid.UUID(id).String() }

// TriggerFilter decides which bodies a trigger reacts to. Every configured
// rule must pass.
type TriggerFilter struct {
	// Include, when not empty, requires the body to carry one of these tags.
	Include []string
	// Exclude rejects bodies carrying any of these tags.
	Exclude []string
	// Predicate, when set, must return true.
	Predicate func(body BodyID) bool
}

func (f *TriggerFilter) accepts(body BodyID, tags []string) bool {
	if f == nil {
		return true
	}
	if len(f.Include) > 0 && !sharesTag(f.Include, tags) {
		return false
	}
	if sharesTag(f.Exclude, tags) {
		return false
	}
	return f.Predicate == nil || f.Predicate(body)
}

func sharesTag(want, have []string) bool {
	for _, t := range have {
		if slices.Contains(want, t) {
			return true
		}
	}
	return false
}

// TriggerCallback receives the trigger body, the other body and the contact
// info oriented with the trigger as A.
type TriggerCallback func(trigger, other BodyID, info CollisionInfo)

type TriggerOptions struct {
	Filter  *TriggerFilter
	OnEnter TriggerCallback
	OnStay  TriggerCallback
	OnExit  TriggerCallback
}

type triggerEntry struct {
	id   TriggerID
	body BodyID
	opts TriggerOptions
}

// ActiveTrigger is one overlapping, already announced (trigger, pair) entry.
type ActiveTrigger struct {
	Trigger TriggerID
	Pair    PairKey
}

type activeState struct {
	entry *triggerEntry
	other BodyID
	info  CollisionInfo
	frame uint64
}

// TriggerEvents counts the callbacks fired during one frame.
type TriggerEvents struct {
	Enter, Stay, Exit int
}

// TriggerTracker keeps the enter/stay/exit lifecycle of trigger zones. Per
// frame: BeginFrame, Observe for each confirmed overlap, EndFrame to sweep
// the entries that were not observed and fire their exits.
type TriggerTracker struct {
	entries []*triggerEntry
	byBody  map[BodyID][]*triggerEntry
	active  map[ActiveTrigger]*activeState
	tags    Tagger
	logger  Logger
	frame   uint64
	events  TriggerEvents
}

func NewTriggerTracker(tags Tagger, logger Logger) *TriggerTracker {
	if logger == nil {
		logger = NewNopLogger()
	}
	return &TriggerTracker{
		byBody: make(map[BodyID][]*triggerEntry),
		active: make(map[ActiveTrigger]*activeState),
		tags:   tags,
		logger: logger,
	}
}

// Register makes body a trigger zone.
func (t *TriggerTracker) Register(body BodyID, opts TriggerOptions) TriggerID {
	e := &triggerEntry{id: TriggerID(uuid.New()), body: body, opts: opts}
	t.entries = append(t.entries, e)
	t.byBody[body] = append(t.byBody[body], e)
	return e.id
}

// Remove unregisters a trigger. Its active overlaps are dropped without
// firing exit.
func (t *TriggerTracker) Remove(id TriggerID) bool {
	i := slices.IndexFunc(t.entries, func(e *triggerEntry) bool { return e.id == id })
	if i < 0 {
		return false
	}
	e := t.entries[i]
	t.entries = slices.Delete(t.entries, i, i+1)

	list := slices.DeleteFunc(t.byBody[e.body], func(x *triggerEntry) bool { return x == e })
	if len(list) == 0 {
		delete(t.byBody, e.body)
	} else {
		t.byBody[e.body] = list
	}

	for key := range t.active {
		if key.Trigger == id {
			delete(t.active, key)
		}
	}
	return true
}

func (t *TriggerTracker) IsTrigger(body BodyID) bool {
	return len(t.byBody[body]) > 0
}

func (t *TriggerTracker) Len() int { return len(t.entries) }

// Active returns the currently overlapping entries.
func (t *TriggerTracker) Active() []ActiveTrigger {
	out := make([]ActiveTrigger, 0, len(t.active))
	for key := range t.active {
		out = append(out, key)
	}
	return out
}

// IsActive reports whether the trigger currently overlaps the pair.
func (t *TriggerTracker) IsActive(id TriggerID, pair PairKey) bool {
	_, ok := t.active[ActiveTrigger{Trigger: id, Pair: pair}]
	return ok
}

func (t *TriggerTracker) Clear() {
	t.entries = nil
	clear(t.byBody)
	clear(t.active)
}

// BeginFrame starts a detection pass.
func (t *TriggerTracker) BeginFrame() {
	t.frame++
	t.events = TriggerEvents{}
}

// Observe handles one confirmed overlap. Each side that is a trigger fires
// enter the first time it sees the pair and stay afterwards.
func (t *TriggerTracker) Observe(a, b BodyID, info CollisionInfo) {
	if len(t.byBody) == 0 {
		return
	}
	if info.A != a {
		info = info.Flip()
	}
	for _, e := range slices.Clone(t.byBody[a]) {
		t.observeSide(e, b, info)
	}
	for _, e := range slices.Clone(t.byBody[b]) {
		t.observeSide(e, a, info.Flip())
	}
}

func (t *TriggerTracker) observeSide(e *triggerEntry, other BodyID, info CollisionInfo) {
	if !e.opts.Filter.accepts(other, t.tagsOf(other)) {
		return
	}
	key := ActiveTrigger{Trigger: e.id, Pair: MakePairKey(e.body, other)}
	if st, ok := t.active[key]; ok {
		if st.frame == t.frame {
			return
		}
		st.frame = t.frame
		st.info = info
		t.events.Stay++
		t.fire(e, e.opts.OnStay, "stay", other, info)
		return
	}
	t.events.Enter++
	t.fire(e, e.opts.OnEnter, "enter", other, info)
	// The callback may have removed the trigger.
	if !slices.Contains(t.entries, e) {
		return
	}
	t.active[key] = &activeState{entry: e, other: other, info: info, frame: t.frame}
}

// EndFrame fires exit for every active entry that was not observed since
// BeginFrame and forgets it.
func (t *TriggerTracker) EndFrame() {
	var ended []ActiveTrigger
	for key, st := range t.active {
		if st.frame != t.frame {
			ended = append(ended, key)
		}
	}
	// Map order is random; keep exits deterministic.
	slices.SortFunc(ended, func(x, y ActiveTrigger) int {
		if c := cmp.Compare(x.Pair.A, y.Pair.A); c != 0 {
			return c
		}
		if c := cmp.Compare(x.Pair.B, y.Pair.B); c != 0 {
			return c
		}
		return slices.Compare(x.Trigger[:], y.Trigger[:])
	})
	for _, key := range ended {
		st, ok := t.active[key]
		if !ok {
			continue
		}
		delete(t.active, key)
		t.events.Exit++
		t.fire(st.entry, st.entry.opts.OnExit, "exit", st.other, st.info)
	}
}

// Events returns the callback counts of the current frame.
func (t *TriggerTracker) Events() TriggerEvents { return t.events }

func (t *TriggerTracker) tagsOf(body BodyID) []string {
	if t.tags == nil {
		return nil
	}
	return t.tags.Tags(body)
}

func (t *TriggerTracker) fire(e *triggerEntry, cb TriggerCallback, kind string, other BodyID, info CollisionInfo) {
	if cb == nil {
		return
	}
	defer func() {
		if rec := recover(); rec != nil {
			t.logger.Errorf("trigger %s %s callback panicked with body %d: %v", e.id, kind, other, rec)
		}
	}()
	cb(e.body, other, info)
}
