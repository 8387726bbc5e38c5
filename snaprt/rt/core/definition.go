package core

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
)

var ErrDegenerateFace = errors.New("degenerate face")

// Line is an edge between two points of its definition.
type Line struct {
	A, B int
	// Hidden lines are kept in the topology but are neither drawn nor snapped to.
	Hidden bool
	Smooth bool
}

// Face is a planar loop of point indices.
type Face struct {
	Loop      []int
	Material  int
	Plane     Plane
	Triangles [][3]int
}

// ComponentDefinition owns geometry and the child instances placed inside it.
// It is read-only while queries run.
type ComponentDefinition struct {
	ID       uuid.UUID
	Name     string
	Points   []mgl64.Vec3
	Lines    []Line
	Faces    []Face
	Children []*ComponentInstance
}

// ComponentInstance places a definition inside a parent definition.
type ComponentInstance struct {
	Definition *ComponentDefinition
	Local      mgl64.Mat4
	Hidden     bool
}

func NewDefinition(name string) *ComponentDefinition {
	return &ComponentDefinition{
		ID:   uuid.New(),
		Name: name,
	}
}

func (d *ComponentDefinition) AddPoint(p mgl64.Vec3) int {
	d.Points = append(d.Points, p)
	return len(d.Points) - 1
}

func (d *ComponentDefinition) AddLine(a, b int) (int, error) {
	if a == b || a < 0 || b < 0 || a >= len(d.Points) || b >= len(d.Points) {
		return -1, fmt.Errorf("line %d-%d in %q: invalid point indices", a, b, d.Name)
	}
	d.Lines = append(d.Lines, Line{A: a, B: b})
	return len(d.Lines) - 1, nil
}

// AddFace appends a face over loop, deriving its plane and triangulation.
func (d *ComponentDefinition) AddFace(loop []int, material int) (int, error) {
	if len(loop) < 3 {
		return -1, fmt.Errorf("face in %q with %d points: %w", d.Name, len(loop), ErrDegenerateFace)
	}
	pts := make([]mgl64.Vec3, len(loop))
	for i, idx := range loop {
		if idx < 0 || idx >= len(d.Points) {
			return -1, fmt.Errorf("face in %q: point index %d out of range", d.Name, idx)
		}
		pts[i] = d.Points[idx]
	}

	plane, ok := newellPlane(pts)
	if !ok {
		return -1, fmt.Errorf("face in %q: %w", d.Name, ErrDegenerateFace)
	}
	tris := triangulate(pts, plane.Normal)
	if len(tris) == 0 {
		return -1, fmt.Errorf("face in %q: no triangulation: %w", d.Name, ErrDegenerateFace)
	}
	for i := range tris {
		for k := 0; k < 3; k++ {
			tris[i][k] = loop[tris[i][k]]
		}
	}

	d.Faces = append(d.Faces, Face{
		Loop:      append([]int(nil), loop...),
		Material:  material,
		Plane:     plane,
		Triangles: tris,
	})
	return len(d.Faces) - 1, nil
}

func (d *ComponentDefinition) AddInstance(child *ComponentDefinition, local mgl64.Mat4) *ComponentInstance {
	inst := &ComponentInstance{Definition: child, Local: local}
	d.Children = append(d.Children, inst)
	return inst
}

// LineEnds returns the local endpoints of line i.
func (d *ComponentDefinition) LineEnds(i int) (mgl64.Vec3, mgl64.Vec3) {
	l := d.Lines[i]
	return d.Points[l.A], d.Points[l.B]
}

// Contains reports whether p, assumed to lie on the face plane, is inside the
// face loop (even-odd rule in the dominant projection).
func (f *Face) Contains(points []mgl64.Vec3, p mgl64.Vec3) bool {
	u, v := dominantAxes(f.Plane.Normal)
	px, py := p[u], p[v]
	inside := false
	n := len(f.Loop)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		a := points[f.Loop[i]]
		b := points[f.Loop[j]]
		ax, ay := a[u], a[v]
		bx, by := b[u], b[v]
		if (ay > py) != (by > py) {
			x := (bx-ax)*(py-ay)/(by-ay) + ax
			if px < x {
				inside = !inside
			}
		}
	}
	return inside
}

func newellPlane(pts []mgl64.Vec3) (Plane, bool) {
	var n, centroid mgl64.Vec3
	for i := range pts {
		a := pts[i]
		b := pts[(i+1)%len(pts)]
		n[0] += (a[1] - b[1]) * (a[2] + b[2])
		n[1] += (a[2] - b[2]) * (a[0] + b[0])
		n[2] += (a[0] - b[0]) * (a[1] + b[1])
		centroid = centroid.Add(a)
	}
	centroid = centroid.Mul(1 / float64(len(pts)))
	return PlaneFromPointNormal(centroid, n)
}

// dominantAxes returns the two coordinate axes spanning the projection plane
// that drops the largest normal component, ordered so the projected loop keeps
// the winding it has around n.
func dominantAxes(n mgl64.Vec3) (int, int) {
	ax, ay, az := math.Abs(n[0]), math.Abs(n[1]), math.Abs(n[2])
	switch {
	case ax >= ay && ax >= az:
		if n[0] >= 0 {
			return 1, 2
		}
		return 2, 1
	case ay >= az:
		if n[1] >= 0 {
			return 2, 0
		}
		return 0, 2
	default:
		if n[2] >= 0 {
			return 0, 1
		}
		return 1, 0
	}
}

// triangulate ear-clips a planar polygon. Indices refer to pts.
func triangulate(pts []mgl64.Vec3, normal mgl64.Vec3) [][3]int {
	u, v := dominantAxes(normal)
	p2 := make([]mgl64.Vec2, len(pts))
	for i, p := range pts {
		p2[i] = mgl64.Vec2{p[u], p[v]}
	}

	remaining := make([]int, len(pts))
	for i := range remaining {
		remaining[i] = i
	}

	var tris [][3]int
	guard := 0
	for len(remaining) > 3 && guard < len(pts)*len(pts) {
		guard++
		clipped := false
		for i := range remaining {
			ia := remaining[(i+len(remaining)-1)%len(remaining)]
			ib := remaining[i]
			ic := remaining[(i+1)%len(remaining)]
			if cross2(p2[ia], p2[ib], p2[ic]) <= 0 {
				continue
			}
			if anyInside(p2, remaining, ia, ib, ic) {
				continue
			}
			tris = append(tris, [3]int{ia, ib, ic})
			remaining = append(remaining[:i], remaining[i+1:]...)
			clipped = true
			break
		}
		if !clipped {
			// Self-intersecting or collinear leftovers: fan the rest.
			for i := 1; i+1 < len(remaining); i++ {
				tris = append(tris, [3]int{remaining[0], remaining[i], remaining[i+1]})
			}
			return tris
		}
	}
	if len(remaining) == 3 {
		tris = append(tris, [3]int{remaining[0], remaining[1], remaining[2]})
	}
	return tris
}

func cross2(a, b, c mgl64.Vec2) float64 {
	return (b[0]-a[0])*(c[1]-a[1]) - (b[1]-a[1])*(c[0]-a[0])
}

func anyInside(p2 []mgl64.Vec2, remaining []int, ia, ib, ic int) bool {
	for _, k := range remaining {
		if k == ia || k == ib || k == ic {
			continue
		}
		p := p2[k]
		if cross2(p2[ia], p2[ib], p) >= 0 && cross2(p2[ib], p2[ic], p) >= 0 && cross2(p2[ic], p2[ia], p) >= 0 {
			return true
		}
	}
	return false
}
