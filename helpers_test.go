package collide

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl32"
)

// recordingLogger keeps every line for assertions.
type recordingLogger struct {
	mu    sync.Mutex
	debug bool
	lines []string
}

func (l *recordingLogger) DebugEnabled() bool { return l.debug }
func (l *recordingLogger) SetDebug(on bool)   { l.debug = on }

func (l *recordingLogger) add(level, format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, level+": "+fmt.Sprintf(format, args...))
}

func (l *recordingLogger) Debugf(format string, args ...any) {
	if l.debug {
		l.add("DEBUG", format, args...)
	}
}
func (l *recordingLogger) Infof(format string, args ...any)  { l.add("INFO", format, args...) }
func (l *recordingLogger) Warnf(format string, args ...any)  { l.add("WARN", format, args...) }
func (l *recordingLogger) Errorf(format string, args ...any) { l.add("ERROR", format, args...) }

func (l *recordingLogger) contains(level, substr string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, line := range l.lines {
		if strings.HasPrefix(line, level+": ") && strings.Contains(line, substr) {
			return true
		}
	}
	return false
}

// fakeSolver is a Solver over axis aligned boxes whose exact test is the box
// test, unless overlap is set. A box sits at its body's position plus offset.
type fakeSolver struct {
	order   []BodyID
	pos     map[BodyID]mgl32.Vec3
	half    map[BodyID]mgl32.Vec3
	offset  map[BodyID]mgl32.Vec3
	noBox   map[BodyID]bool
	tags    map[BodyID][]string
	overlap func(a, b BodyID) bool
	exact   int
}

func newFakeSolver() *fakeSolver {
	return &fakeSolver{
		pos:    make(map[BodyID]mgl32.Vec3),
		half:   make(map[BodyID]mgl32.Vec3),
		offset: make(map[BodyID]mgl32.Vec3),
		noBox:  make(map[BodyID]bool),
		tags:   make(map[BodyID][]string),
	}
}

// add places a cube of edge size at pos.
func (s *fakeSolver) add(id BodyID, pos mgl32.Vec3, size float32) {
	if _, ok := s.pos[id]; !ok {
		s.order = append(s.order, id)
	}
	s.pos[id] = pos
	s.half[id] = mgl32.Vec3{size / 2, size / 2, size / 2}
}

func (s *fakeSolver) move(id BodyID, pos mgl32.Vec3) { s.pos[id] = pos }

func (s *fakeSolver) remove(id BodyID) {
	delete(s.pos, id)
	delete(s.half, id)
	for i, x := range s.order {
		if x == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

func (s *fakeSolver) Bodies() []BodyID {
	return append([]BodyID(nil), s.order...)
}

func (s *fakeSolver) Position(id BodyID) (mgl32.Vec3, bool) {
	p, ok := s.pos[id]
	return p, ok
}

func (s *fakeSolver) BoundingBox(id BodyID) (AABB, bool) {
	if s.noBox[id] {
		return AABB{}, false
	}
	p, ok := s.pos[id]
	if !ok {
		return AABB{}, false
	}
	return NewAABBFromCenter(p.Add(s.offset[id]), s.half[id]), true
}

func (s *fakeSolver) ExactOverlap(a, b BodyID) bool {
	s.exact++
	if s.overlap != nil {
		return s.overlap(a, b)
	}
	ba, _ := s.BoundingBox(a)
	bb, _ := s.BoundingBox(b)
	return ba.Overlaps(bb)
}

func (s *fakeSolver) Tags(id BodyID) []string { return s.tags[id] }

func cubeState(id BodyID, pos mgl32.Vec3, size float32) BodyState {
	h := size / 2
	return BodyState{ID: id, Position: pos, Box: NewAABBFromCenter(pos, mgl32.Vec3{h, h, h})}
}

const tick = 16 * time.Millisecond
