package core

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// parallelEpsilon is the squared-sine threshold below which two directions are
// treated as parallel.
const parallelEpsilon = 1e-12

type Ray struct {
	Origin    mgl64.Vec3
	Direction mgl64.Vec3
}

func (r Ray) At(t float64) mgl64.Vec3 {
	return r.Origin.Add(r.Direction.Mul(t))
}

// Transformed maps the ray through m. The direction is not renormalized, so
// parameters stay comparable across spaces.
func (r Ray) Transformed(m mgl64.Mat4) Ray {
	return Ray{
		Origin:    m.Mul4x1(r.Origin.Vec4(1)).Vec3(),
		Direction: m.Mul4x1(r.Direction.Vec4(0)).Vec3(),
	}
}

// Plane is the set of points p with Normal·p + D = 0. Normal is unit length.
type Plane struct {
	Normal mgl64.Vec3
	D      float64
}

func PlaneFromPointNormal(p, n mgl64.Vec3) (Plane, bool) {
	n, ok := SafeNormalize(n)
	if !ok {
		return Plane{}, false
	}
	return Plane{Normal: n, D: -n.Dot(p)}, true
}

func (pl Plane) SignedDistance(p mgl64.Vec3) float64 {
	return pl.Normal.Dot(p) + pl.D
}

// Origin returns the point of the plane closest to the coordinate origin.
func (pl Plane) Origin() mgl64.Vec3 {
	return pl.Normal.Mul(-pl.D)
}

// Project returns the orthogonal projection of p onto the plane.
func (pl Plane) Project(p mgl64.Vec3) mgl64.Vec3 {
	return p.Sub(pl.Normal.Mul(pl.SignedDistance(p)))
}

// IntersectRay returns the ray parameter where the ray meets the plane. It
// reports false for rays parallel to the plane and for non-finite results;
// negative parameters are returned as-is and left to the caller.
func (pl Plane) IntersectRay(r Ray) (float64, bool) {
	denom := pl.Normal.Dot(r.Direction)
	if math.Abs(denom) < 1e-12*math.Max(1, r.Direction.Len()) {
		return 0, false
	}
	t := -pl.SignedDistance(r.Origin) / denom
	if !finite(t) {
		return 0, false
	}
	return t, true
}

// Transformed maps a plane expressed in local space to the space of world.
// worldInv must be the inverse of world.
func (pl Plane) Transformed(world, worldInv mgl64.Mat4) (Plane, bool) {
	n := worldInv.Transpose().Mul4x1(pl.Normal.Vec4(0)).Vec3()
	p := world.Mul4x1(pl.Origin().Vec4(1)).Vec3()
	return PlaneFromPointNormal(p, n)
}

// ClosestPoints returns the parameters s on the line p0+s*d0 and t on the line
// p1+t*d1 of the closest approach between the two infinite lines. It reports
// false when the lines are parallel or a direction has zero length.
func ClosestPoints(p0, d0, p1, d1 mgl64.Vec3) (s, t float64, ok bool) {
	r := p0.Sub(p1)
	a := d0.Dot(d0)
	b := d0.Dot(d1)
	e := d1.Dot(d1)
	if a < 1e-24 || e < 1e-24 {
		return 0, 0, false
	}
	det := a*e - b*b
	if det <= parallelEpsilon*a*e {
		return 0, 0, false
	}
	c := d0.Dot(r)
	f := d1.Dot(r)
	s = (b*f - c*e) / det
	t = (a*f - b*c) / det
	if !finite(s) || !finite(t) {
		return 0, 0, false
	}
	return s, t, true
}

// ClosestOnSegment returns the parameter in [0,1] of the point of segment
// a-b closest to p. Zero-length segments report false.
func ClosestOnSegment(a, b, p mgl64.Vec3) (float64, bool) {
	d := b.Sub(a)
	l2 := d.LenSqr()
	if l2 < 1e-24 {
		return 0, false
	}
	return mgl64.Clamp(p.Sub(a).Dot(d)/l2, 0, 1), true
}

// SafeNormalize normalizes v and reports false for zero or non-finite input.
func SafeNormalize(v mgl64.Vec3) (mgl64.Vec3, bool) {
	l := v.Len()
	if l < 1e-300 || !finite(l) {
		return mgl64.Vec3{}, false
	}
	return v.Mul(1 / l), true
}

func TransformPoint(m mgl64.Mat4, p mgl64.Vec3) mgl64.Vec3 {
	return m.Mul4x1(p.Vec4(1)).Vec3()
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// Finite reports whether every component of v is a finite number.
func Finite(v mgl64.Vec3) bool {
	return finite(v[0]) && finite(v[1]) && finite(v[2])
}
