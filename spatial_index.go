package collide

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// DefaultCellSize is used when a non-positive cell size is requested.
const DefaultCellSize float32 = 2.0

// CellKey addresses one cell of the uniform grid.
type CellKey struct {
	X, Y, Z int
}

// SpatialIndex is a uniform hash grid keyed by integer cell coordinates.
// Bodies are placed by a single point; queries widen the cell range by
// one adjacent cell plus the largest half extent inserted so far, so bodies
// straddling a cell boundary are still returned.
type SpatialIndex struct {
	cellSize float32
	cells    map[CellKey][]BodyID
	count    int
	occupied int
	reach    float32
}

func NewSpatialIndex(cellSize float32) *SpatialIndex {
	if !(cellSize > 0) || !finite(cellSize) {
		cellSize = DefaultCellSize
	}
	return &SpatialIndex{
		cellSize: cellSize,
		cells:    make(map[CellKey][]BodyID),
	}
}

func (idx *SpatialIndex) CellSize() float32 { return idx.cellSize }

// Len is the number of insertions since the last Clear.
func (idx *SpatialIndex) Len() int { return idx.count }

// CellCount is the number of non-empty cells.
func (idx *SpatialIndex) CellCount() int { return idx.occupied }

// Reach is the query padding contributed by InsertExtent.
func (idx *SpatialIndex) Reach() float32 { return idx.reach }

func (idx *SpatialIndex) Clear() {
	// Drop the map once roaming bodies have left mostly dead cells behind.
	if len(idx.cells) > 4*idx.occupied+64 {
		idx.cells = make(map[CellKey][]BodyID, idx.occupied)
		idx.count, idx.occupied, idx.reach = 0, 0, 0
		return
	}
	// Keep the slices so the next rebuild reuses their capacity.
	for k, ids := range idx.cells {
		if cap(ids) > 64 {
			delete(idx.cells, k)
			continue
		}
		idx.cells[k] = ids[:0]
	}
	idx.count = 0
	idx.occupied = 0
	idx.reach = 0
}

func (idx *SpatialIndex) CellOf(pos mgl32.Vec3) CellKey {
	return CellKey{
		X: idx.cellIndex(pos.X()),
		Y: idx.cellIndex(pos.Y()),
		Z: idx.cellIndex(pos.Z()),
	}
}

func (idx *SpatialIndex) Insert(id BodyID, pos mgl32.Vec3) {
	if !finiteVec(pos) {
		return
	}
	key := idx.CellOf(pos)
	if len(idx.cells[key]) == 0 {
		idx.occupied++
	}
	idx.cells[key] = append(idx.cells[key], id)
	idx.count++
}

// InsertExtent inserts like Insert and widens future queries by the largest
// half extent seen.
func (idx *SpatialIndex) InsertExtent(id BodyID, pos, halfExtents mgl32.Vec3) {
	if !finiteVec(pos) {
		return
	}
	idx.Insert(id, pos)
	h := absVec(halfExtents)
	for i := 0; i < 3; i++ {
		if finite(h[i]) && h[i] > idx.reach {
			idx.reach = h[i]
		}
	}
}

// QueryRange returns every body in the cells spanned by [min,max] and their
// neighbours. Results are unordered and may contain duplicates when a caller
// inserted the same body twice.
func (idx *SpatialIndex) QueryRange(min, max mgl32.Vec3) []BodyID {
	return idx.AppendRange(nil, min, max)
}

// AppendRange is QueryRange appending into buf.
func (idx *SpatialIndex) AppendRange(buf []BodyID, min, max mgl32.Vec3) []BodyID {
	if idx.occupied == 0 || !finiteVec(min) || !finiteVec(max) {
		return buf
	}
	pad := mgl32.Vec3{idx.reach, idx.reach, idx.reach}
	lo := idx.CellOf(min.Sub(pad))
	hi := idx.CellOf(max.Add(pad))
	lo.X, lo.Y, lo.Z = lo.X-1, lo.Y-1, lo.Z-1
	hi.X, hi.Y, hi.Z = hi.X+1, hi.Y+1, hi.Z+1

	// Huge ranges walk the occupied cells instead of the range.
	span := float64(hi.X-lo.X+1) * float64(hi.Y-lo.Y+1) * float64(hi.Z-lo.Z+1)
	if span > float64(len(idx.cells)) {
		for key, ids := range idx.cells {
			if key.X >= lo.X && key.X <= hi.X &&
				key.Y >= lo.Y && key.Y <= hi.Y &&
				key.Z >= lo.Z && key.Z <= hi.Z {
				buf = append(buf, ids...)
			}
		}
		return buf
	}

	for x := lo.X; x <= hi.X; x++ {
		for y := lo.Y; y <= hi.Y; y++ {
			for z := lo.Z; z <= hi.Z; z++ {
				buf = append(buf, idx.cells[CellKey{x, y, z}]...)
			}
		}
	}
	return buf
}

// Cells calls fn for every non-empty cell until fn returns false.
func (idx *SpatialIndex) Cells(fn func(key CellKey, ids []BodyID) bool) {
	for key, ids := range idx.cells {
		if len(ids) == 0 {
			continue
		}
		if !fn(key, ids) {
			return
		}
	}
}

// CellBounds returns the world-space box covered by a cell.
func (idx *SpatialIndex) CellBounds(key CellKey) AABB {
	min := mgl32.Vec3{float32(key.X), float32(key.Y), float32(key.Z)}.Mul(idx.cellSize)
	return AABB{Min: min, Max: min.Add(mgl32.Vec3{idx.cellSize, idx.cellSize, idx.cellSize})}
}

// maxCell bounds cell coordinates so far away positions share the edge cells
// instead of overflowing int.
const maxCell = 1 << 30

func (idx *SpatialIndex) cellIndex(pos float32) int {
	c := math.Floor(float64(pos / idx.cellSize))
	return int(math.Max(-maxCell, math.Min(maxCell, c)))
}
