package collide

import "strconv"

// PairKey is the canonical, order independent key of two bodies: A < B.
type PairKey struct {
	A, B BodyID
}

// MakePairKey orders the two ids so MakePairKey(a,b) == MakePairKey(b,a).
func MakePairKey(a, b BodyID) PairKey {
	if b < a {
		a, b = b, a
	}
	return PairKey{A: a, B: b}
}

func (k PairKey) String() string {
	return strconv.FormatUint(uint64(k.A), 10) + ":" + strconv.FormatUint(uint64(k.B), 10)
}

// Has reports whether id is one side of the pair.
func (k PairKey) Has(id BodyID) bool {
	return k.A == id || k.B == id
}

// Other returns the side that is not id.
func (k PairKey) Other(id BodyID) BodyID {
	if k.A == id {
		return k.B
	}
	return k.A
}

// PairFinder turns the spatial index into a deduplicated candidate list.
// Buffers are reused between frames.
type PairFinder struct {
	seen    map[PairKey]struct{}
	present map[BodyID]struct{}
	buf     []BodyID

	// Comparisons counts candidate examinations of the last call. It is the
	// cost measure for comparing partitioned and brute force searches.
	Comparisons int
}

func NewPairFinder() *PairFinder {
	return &PairFinder{
		seen:    make(map[PairKey]struct{}),
		present: make(map[BodyID]struct{}),
	}
}

// FindPairs queries index with each body's own box. bodies are the current
// states of the indexed bodies; ids returned by the index that are not in
// bodies (removed since the last rebuild) are ignored.
func (f *PairFinder) FindPairs(index *SpatialIndex, bodies []BodyState) []PairKey {
	clear(f.seen)
	clear(f.present)
	f.Comparisons = 0
	if index == nil || len(bodies) < 2 {
		return nil
	}
	for _, b := range bodies {
		f.present[b.ID] = struct{}{}
	}

	var pairs []PairKey
	for _, b := range bodies {
		f.buf = index.AppendRange(f.buf[:0], b.Box.Min, b.Box.Max)
		for _, other := range f.buf {
			f.Comparisons++
			if other == b.ID {
				continue
			}
			if _, ok := f.present[other]; !ok {
				continue
			}
			key := MakePairKey(b.ID, other)
			if _, dup := f.seen[key]; dup {
				continue
			}
			f.seen[key] = struct{}{}
			pairs = append(pairs, key)
		}
	}
	return pairs
}

// BruteForce emits every unordered pair. It is the O(n²) reference used when
// spatial partitioning is switched off.
func (f *PairFinder) BruteForce(bodies []BodyState) []PairKey {
	f.Comparisons = 0
	if len(bodies) < 2 {
		return nil
	}
	pairs := make([]PairKey, 0, len(bodies)*(len(bodies)-1)/2)
	for i := 0; i < len(bodies); i++ {
		for j := i + 1; j < len(bodies); j++ {
			f.Comparisons++
			if bodies[i].ID == bodies[j].ID {
				continue
			}
			pairs = append(pairs, MakePairKey(bodies[i].ID, bodies[j].ID))
		}
	}
	return pairs
}
