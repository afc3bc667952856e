package collide

import (
	"slices"

	"github.com/google/uuid"
)

// HandlerID identifies a collision handler registration.
type HandlerID uuid.UUID

func (id HandlerID) String() string { return uuid.UUID(id).String() }

// Criteria selects bodies by id. A nil Criteria used as the second side of a
// registration matches any body.
type Criteria []BodyID

// Bodies builds a Criteria from ids.
func Bodies(ids ...BodyID) Criteria { return Criteria(ids) }

// AnyBody is the wildcard second criteria.
var AnyBody Criteria

func (c Criteria) Matches(id BodyID) bool {
	return slices.Contains(c, id)
}

// CollisionCallback receives a confirmed overlap, oriented so that info.A
// matched the registration's first criteria.
type CollisionCallback func(a, b BodyID, info CollisionInfo)

type handlerEntry struct {
	id        HandlerID
	criteriaA Criteria
	criteriaB Criteria
	callback  CollisionCallback
}

func (h *handlerEntry) matches(a, b BodyID) bool {
	if !h.criteriaA.Matches(a) {
		return false
	}
	return h.criteriaB == nil || h.criteriaB.Matches(b)
}

// HandlerRegistry stores collision handlers and dispatches confirmed
// overlaps to them in registration order.
type HandlerRegistry struct {
	entries []*handlerEntry
	logger  Logger
}

func NewHandlerRegistry(logger Logger) *HandlerRegistry {
	if logger == nil {
		logger = NewNopLogger()
	}
	return &HandlerRegistry{logger: logger}
}

// Register adds a handler for overlaps between a body in a and a body in b.
// A nil b matches any second body. Criteria slices are copied.
func (r *HandlerRegistry) Register(a, b Criteria, cb CollisionCallback) HandlerID {
	id := HandlerID(uuid.New())
	entry := &handlerEntry{
		id:        id,
		criteriaA: slices.Clone(a),
		callback:  cb,
	}
	if b != nil {
		entry.criteriaB = slices.Clone(b)
		if entry.criteriaB == nil {
			entry.criteriaB = Criteria{}
		}
	}
	r.entries = append(r.entries, entry)
	return id
}

func (r *HandlerRegistry) Remove(id HandlerID) bool {
	for i, e := range r.entries {
		if e.id == id {
			r.entries = slices.Delete(r.entries, i, i+1)
			return true
		}
	}
	return false
}

func (r *HandlerRegistry) Len() int { return len(r.entries) }

func (r *HandlerRegistry) Clear() { r.entries = nil }

// IDs returns the registered handler ids in registration order.
func (r *HandlerRegistry) IDs() []HandlerID {
	ids := make([]HandlerID, len(r.entries))
	for i, e := range r.entries {
		ids[i] = e.id
	}
	return ids
}

// Notify invokes every handler matching the pair, each at most once. A
// handler that does not match (a, b) is tried as (b, a) with the flipped
// info. It returns the number of invocations.
func (r *HandlerRegistry) Notify(a, b BodyID, info CollisionInfo) int {
	calls := 0
	// Handlers may unregister themselves from inside the callback.
	entries := slices.Clone(r.entries)
	for _, e := range entries {
		switch {
		case e.matches(a, b):
			r.invoke(e, a, b, info)
		case e.matches(b, a):
			r.invoke(e, b, a, info.Flip())
		default:
			continue
		}
		calls++
	}
	return calls
}

func (r *HandlerRegistry) invoke(e *handlerEntry, a, b BodyID, info CollisionInfo) {
	if e.callback == nil {
		return
	}
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Errorf("collision handler %s panicked on %d/%d: %v", e.id, a, b, rec)
		}
	}()
	e.callback(a, b, info)
}
