package core

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

type Projection int

const (
	Perspective Projection = iota
	Orthographic
)

// Camera maps between world space and the editor viewport. Screen coordinates
// are pixels with the origin at the top-left corner and y pointing down.
type Camera struct {
	Eye    mgl64.Vec3
	Target mgl64.Vec3
	Up     mgl64.Vec3

	Projection  Projection
	FovY        float64 // degrees, perspective only
	OrthoHeight float64 // world units covered vertically, orthographic only
	Near, Far   float64

	Width, Height int
}

func NewCamera(width, height int) *Camera {
	return &Camera{
		Eye:         mgl64.Vec3{10, -10, 8},
		Target:      mgl64.Vec3{0, 0, 0},
		Up:          mgl64.Vec3{0, 0, 1}, // Z-up
		Projection:  Perspective,
		FovY:        35,
		OrthoHeight: 10,
		Near:        0.01,
		Far:         10000,
		Width:       width,
		Height:      height,
	}
}

func (c *Camera) Forward() mgl64.Vec3 {
	f, ok := SafeNormalize(c.Target.Sub(c.Eye))
	if !ok {
		return mgl64.Vec3{0, 1, 0}
	}
	return f
}

// up returns an up vector usable with the current view direction.
func (c *Camera) up() mgl64.Vec3 {
	f := c.Forward()
	up, ok := SafeNormalize(c.Up)
	if !ok {
		up = mgl64.Vec3{0, 0, 1}
	}
	if f.Cross(up).LenSqr() < 1e-12 {
		// Looking straight along up: pick any perpendicular.
		up = mgl64.Vec3{0, 1, 0}
		if f.Cross(up).LenSqr() < 1e-12 {
			up = mgl64.Vec3{1, 0, 0}
		}
	}
	return up
}

func (c *Camera) View() mgl64.Mat4 {
	eye := c.Eye
	return mgl64.LookAtV(eye, eye.Add(c.Forward()), c.up())
}

func (c *Camera) Aspect() float64 {
	if c.Width <= 0 || c.Height <= 0 {
		return 1
	}
	return float64(c.Width) / float64(c.Height)
}

func (c *Camera) Proj() mgl64.Mat4 {
	aspect := c.Aspect()
	if c.Projection == Orthographic {
		h := c.OrthoHeight / 2
		w := h * aspect
		return mgl64.Ortho(-w, w, -h, h, c.Near, c.Far)
	}
	return mgl64.Perspective(mgl64.DegToRad(c.FovY), aspect, c.Near, c.Far)
}

func (c *Camera) ViewProj() mgl64.Mat4 {
	return c.Proj().Mul4(c.View())
}

// DistanceFromOrigin is the eye's distance from the world origin.
func (c *Camera) DistanceFromOrigin() float64 {
	return c.Eye.Len()
}

// RayAt casts the world-space ray through the pixel at (x, y). Perspective
// rays start at the eye; orthographic rays start on the near plane.
func (c *Camera) RayAt(x, y float64) Ray {
	inv := c.ViewProj().Inv()
	ndcX := 2*x/float64(max(c.Width, 1)) - 1
	ndcY := 1 - 2*y/float64(max(c.Height, 1))

	near := unproject(inv, ndcX, ndcY, -1)
	far := unproject(inv, ndcX, ndcY, 1)

	if c.Projection == Orthographic {
		return Ray{Origin: near, Direction: c.Forward()}
	}
	dir, ok := SafeNormalize(far.Sub(c.Eye))
	if !ok {
		dir = c.Forward()
	}
	return Ray{Origin: c.Eye, Direction: dir}
}

func unproject(inv mgl64.Mat4, x, y, z float64) mgl64.Vec3 {
	p := inv.Mul4x1(mgl64.Vec4{x, y, z, 1})
	if math.Abs(p[3]) < 1e-300 {
		return p.Vec3()
	}
	return p.Vec3().Mul(1 / p[3])
}

// WorldToScreen projects p to pixel coordinates. It reports false for points
// behind or at the eye.
func (c *Camera) WorldToScreen(p mgl64.Vec3) (float64, float64, bool) {
	return projectWith(c.ViewProj(), c.Width, c.Height, c.Projection, p)
}

// ScreenDistanceSq is the squared pixel distance between the projections of a
// and b, or +Inf when either cannot be projected.
func (c *Camera) ScreenDistanceSq(a, b mgl64.Vec3) float64 {
	return c.Projector().DistanceSq(a, b)
}

// Projector caches the view-projection for repeated screen-space comparisons
// within one query.
func (c *Camera) Projector() Projector {
	return Projector{vp: c.ViewProj(), w: c.Width, h: c.Height, proj: c.Projection}
}

type Projector struct {
	vp   mgl64.Mat4
	w, h int
	proj Projection
}

func (p Projector) ViewProj() mgl64.Mat4 {
	return p.vp
}

// Size is the viewport in pixels.
func (p Projector) Size() (int, int) {
	return p.w, p.h
}

func (p Projector) Project(v mgl64.Vec3) (float64, float64, bool) {
	return projectWith(p.vp, p.w, p.h, p.proj, v)
}

func (p Projector) DistanceSq(a, b mgl64.Vec3) float64 {
	ax, ay, ok := p.Project(a)
	if !ok {
		return math.Inf(1)
	}
	bx, by, ok := p.Project(b)
	if !ok {
		return math.Inf(1)
	}
	dx, dy := ax-bx, ay-by
	d := dx*dx + dy*dy
	if math.IsNaN(d) {
		return math.Inf(1)
	}
	return d
}

// PixelDistanceSq is the squared distance between the projection of a and the pixel (x, y).
func (p Projector) PixelDistanceSq(a mgl64.Vec3, x, y float64) float64 {
	ax, ay, ok := p.Project(a)
	if !ok {
		return math.Inf(1)
	}
	dx, dy := ax-x, ay-y
	d := dx*dx + dy*dy
	if math.IsNaN(d) {
		return math.Inf(1)
	}
	return d
}

func projectWith(vp mgl64.Mat4, w, h int, proj Projection, p mgl64.Vec3) (float64, float64, bool) {
	clip := vp.Mul4x1(p.Vec4(1))
	cw := clip[3]
	if proj == Perspective && cw <= 1e-9 {
		return 0, 0, false
	}
	// Orthographic w is constant; behind the camera means before the near plane.
	if proj == Orthographic && clip[2] < -cw {
		return 0, 0, false
	}
	if math.Abs(cw) < 1e-300 {
		return 0, 0, false
	}
	nx, ny := clip[0]/cw, clip[1]/cw
	if !finite(nx) || !finite(ny) {
		return 0, 0, false
	}
	sx := (nx + 1) / 2 * float64(w)
	sy := (1 - ny) / 2 * float64(h)
	return sx, sy, true
}
