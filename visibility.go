package collide

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Frustum plane order.
const (
	PlaneLeft = iota
	PlaneRight
	PlaneBottom
	PlaneTop
	PlaneNear
	PlaneFar
)

// ExtractFrustum extracts the 6 planes of the frustum from the view-projection matrix.
// Returns planes in order: Left, Right, Bottom, Top, Near, Far.
// Plane is Ax + By + Cz + D = 0 with the normal pointing inside.
func ExtractFrustum(vp mgl32.Mat4) [6]mgl32.Vec4 {
	var planes [6]mgl32.Vec4
	row := func(r int) mgl32.Vec4 {
		return mgl32.Vec4{vp.At(r, 0), vp.At(r, 1), vp.At(r, 2), vp.At(r, 3)}
	}
	r0, r1, r2, r3 := row(0), row(1), row(2), row(3)

	planes[PlaneLeft] = r3.Add(r0)
	planes[PlaneRight] = r3.Sub(r0)
	planes[PlaneBottom] = r3.Add(r1)
	planes[PlaneTop] = r3.Sub(r1)
	// OpenGL-style -1..1 depth
	planes[PlaneNear] = r3.Add(r2)
	planes[PlaneFar] = r3.Sub(r2)

	for i := 0; i < 6; i++ {
		length := float32(math.Sqrt(float64(planes[i][0]*planes[i][0] + planes[i][1]*planes[i][1] + planes[i][2]*planes[i][2])))
		if length > 0 {
			planes[i] = planes[i].Mul(1.0 / length)
		}
	}
	return planes
}

// VisibilityFilter culls bodies against the active camera frustum.
type VisibilityFilter struct {
	camera Camera
	planes [6]mgl32.Vec4
	active bool
}

func NewVisibilityFilter(camera Camera) *VisibilityFilter {
	return &VisibilityFilter{camera: camera}
}

// Update refreshes the planes from the camera. Without a usable camera the
// filter treats everything as visible.
func (f *VisibilityFilter) Update() {
	f.active = false
	if f.camera == nil {
		return
	}
	vp, ok := f.camera.ViewProjection()
	if !ok {
		return
	}
	for i := 0; i < 16; i++ {
		if !finite(vp[i]) {
			return
		}
	}
	f.planes = ExtractFrustum(vp)
	f.active = true
}

// Active reports whether the last Update found a camera.
func (f *VisibilityFilter) Active() bool { return f.active }

func (f *VisibilityFilter) Planes() [6]mgl32.Vec4 { return f.planes }

// IsBoxVisible is conservative: a box is culled only when all eight corners
// are behind one single plane.
func (f *VisibilityFilter) IsBoxVisible(box AABB) bool {
	if !f.active {
		return true
	}
	corners := box.Corners()
	for _, plane := range f.planes {
		allOutside := true
		for _, c := range corners {
			if plane.Dot(c.Vec4(1)) >= 0 {
				allOutside = false
				break
			}
		}
		if allOutside {
			return false
		}
	}
	return true
}
