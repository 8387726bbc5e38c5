package refgeom

import (
	"math"

	"github.com/gekko3d/snap/snaprt/rt/core"
	"github.com/go-gl/mathgl/mgl64"
)

type AxisTag int

const (
	AxisNone AxisTag = iota
	AxisX
	AxisY
	AxisZ
)

var axisNames = [...]string{"none", "x_axis", "y_axis", "z_axis"}

func (a AxisTag) String() string {
	if a < AxisNone || a > AxisZ {
		return "unknown"
	}
	return axisNames[a]
}

// Axes lists the three axis tags in order.
var Axes = [3]AxisTag{AxisX, AxisY, AxisZ}

type PlaneKind int

const (
	PlaneHorizontal PlaneKind = iota // XY
	PlaneVerticalXZ
	PlaneVerticalYZ
)

// MainAxis is the axis lying in the plane that the plane is drawn along.
func (k PlaneKind) MainAxis() AxisTag {
	switch k {
	case PlaneVerticalYZ:
		return AxisY
	case PlaneVerticalXZ:
		return AxisZ
	default:
		return AxisX
	}
}

// Reference is the drawing frame: an origin and three orthonormal axes.
type Reference struct {
	Origin mgl64.Vec3
	Axes   [3]mgl64.Vec3
}

// Default is the world frame, Z up.
func Default() Reference {
	return Reference{
		Axes: [3]mgl64.Vec3{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}},
	}
}

func (r Reference) Axis(tag AxisTag) (mgl64.Vec3, bool) {
	if tag < AxisX || tag > AxisZ {
		return mgl64.Vec3{}, false
	}
	return core.SafeNormalize(r.Axes[tag-AxisX])
}

func (r Reference) PlaneNormal(kind PlaneKind) (mgl64.Vec3, bool) {
	switch kind {
	case PlaneVerticalXZ:
		return r.Axis(AxisY)
	case PlaneVerticalYZ:
		return r.Axis(AxisX)
	default:
		return r.Axis(AxisZ)
	}
}

type PlaneHit struct {
	Kind  PlaneKind
	Point mgl64.Vec3
	T     float64
	// Incidence is the angle in radians between the ray and the plane
	// normal; zero when looking straight at the plane.
	Incidence float64
}

// HitPlane intersects ray with the construction plane of kind through the
// given point. Hits behind the ray origin or beyond far report false.
func (r Reference) HitPlane(ray core.Ray, kind PlaneKind, through mgl64.Vec3, far float64) (PlaneHit, bool) {
	n, ok := r.PlaneNormal(kind)
	if !ok {
		return PlaneHit{}, false
	}
	pl, ok := core.PlaneFromPointNormal(through, n)
	if !ok {
		return PlaneHit{}, false
	}
	t, ok := pl.IntersectRay(ray)
	if !ok || t <= 0 || (far > 0 && t > far) {
		return PlaneHit{}, false
	}
	dir, ok := core.SafeNormalize(ray.Direction)
	if !ok {
		return PlaneHit{}, false
	}
	cos := math.Min(math.Abs(dir.Dot(n)), 1)
	return PlaneHit{
		Kind:      kind,
		Point:     ray.At(t),
		T:         t,
		Incidence: math.Acos(cos),
	}, true
}

type AxisHit struct {
	Axis  AxisTag
	Point mgl64.Vec3 // on the axis
	T     float64    // along the ray
	S     float64    // along the axis from its origin
	// DistSq is the squared pixel distance between the axis point and the
	// ray's closest point.
	DistSq float64
}

// HitAxis snaps ray onto the infinite axis through the given point if the two
// pass within maxDist pixels of each other.
func (r Reference) HitAxis(proj core.Projector, ray core.Ray, tag AxisTag, through mgl64.Vec3, maxDist float64) (AxisHit, bool) {
	dir, ok := r.Axis(tag)
	if !ok {
		return AxisHit{}, false
	}
	t, s, ok := core.ClosestPoints(ray.Origin, ray.Direction, through, dir)
	if !ok || t <= 0 {
		return AxisHit{}, false
	}
	p := through.Add(dir.Mul(s))
	d := proj.DistanceSq(p, ray.At(t))
	if math.IsInf(d, 1) || d > maxDist*maxDist {
		return AxisHit{}, false
	}
	return AxisHit{Axis: tag, Point: p, T: t, S: s, DistSq: d}, true
}

// AxisCrossing finds where segment a-b crosses the axis through the given
// point. The two must pass within eps, scaled by the segment length, of each
// other. It returns the crossing on the segment and its parameter.
func (r Reference) AxisCrossing(a, b mgl64.Vec3, tag AxisTag, through mgl64.Vec3, eps float64) (mgl64.Vec3, float64, bool) {
	dir, ok := r.Axis(tag)
	if !ok {
		return mgl64.Vec3{}, 0, false
	}
	seg := b.Sub(a)
	s, u, ok := core.ClosestPoints(a, seg, through, dir)
	if !ok || s < 0 || s > 1 {
		return mgl64.Vec3{}, 0, false
	}
	p := a.Add(seg.Mul(s))
	q := through.Add(dir.Mul(u))
	tol := eps * math.Max(1, seg.Len())
	if p.Sub(q).LenSqr() > tol*tol {
		return mgl64.Vec3{}, 0, false
	}
	return p, s, true
}

// AxisPlaneCrossing intersects the axis through the given point with plane.
func (r Reference) AxisPlaneCrossing(plane core.Plane, tag AxisTag, through mgl64.Vec3) (mgl64.Vec3, bool) {
	dir, ok := r.Axis(tag)
	if !ok {
		return mgl64.Vec3{}, false
	}
	ray := core.Ray{Origin: through, Direction: dir}
	t, ok := plane.IntersectRay(ray)
	if !ok {
		return mgl64.Vec3{}, false
	}
	return ray.At(t), true
}
