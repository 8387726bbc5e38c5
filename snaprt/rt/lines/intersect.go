package lines

import (
	"math"

	"github.com/gekko3d/snap/snaprt/rt/core"
	"github.com/go-gl/mathgl/mgl64"
)

// paramSlack admits line parameters that miss [0,1] by rounding only.
const paramSlack = 1e-9

type TargetKind int

const (
	TargetRay TargetKind = iota
	TargetSegment
)

// Target is what scene lines are measured against: a ray (t >= 0) or a
// segment (t in [0,1] from A to B).
type Target struct {
	Kind      TargetKind
	Origin    mgl64.Vec3
	Direction mgl64.Vec3
}

func RayTarget(r core.Ray) Target {
	return Target{Kind: TargetRay, Origin: r.Origin, Direction: r.Direction}
}

func SegmentTarget(a, b mgl64.Vec3) Target {
	return Target{Kind: TargetSegment, Origin: a, Direction: b.Sub(a)}
}

func (t Target) At(u float64) mgl64.Vec3 {
	return t.Origin.Add(t.Direction.Mul(u))
}

func (t Target) clamp(u float64) float64 {
	if u < 0 {
		return 0
	}
	if t.Kind == TargetSegment && u > 1 {
		return 1
	}
	return u
}

// Mode selects how a scene line is paired with the target.
type Mode int

const (
	// ModeClosest takes the closest point of each scene segment to the target.
	ModeClosest Mode = iota
	// ModeParametric takes the closest approach of the two infinite lines and
	// keeps it only where it falls on the scene segment. T is not clamped.
	ModeParametric
)

// Candidate is a scene line in world space, as seen by a LineFilter.
type Candidate struct {
	Frame    *core.Frame
	Instance int // index into Frame.Instances
	Line     int
	A, B     mgl64.Vec3
}

func (c Candidate) Definition() *core.ComponentDefinition {
	return c.Frame.Instances[c.Instance].Definition
}

// Hit is the best line found by ClosestLineHit.
type Hit struct {
	Point       mgl64.Vec3 // on the scene line
	TargetPoint mgl64.Vec3 // on the target
	Instance    int        // index into Frame.Instances
	Line        int
	A, B        mgl64.Vec3 // world endpoints of the scene line
	T           float64    // parameter on the target
	S           float64    // parameter on the scene line, A at 0
	DistSq      float64    // squared pixels between Point and TargetPoint
}

type LineFilter func(c Candidate) bool
type ResultFilter func(h Hit) bool

type Query struct {
	Target        Target
	Projector     core.Projector
	MaxScreenDist float64
	Mode          Mode
	LineFilter    LineFilter
	ResultFilter  ResultFilter
	// Index narrows the scan for ray targets cast through Cursor. It never
	// changes the result.
	Index  *ScreenGrid
	Cursor *mgl64.Vec2
}

// ClosestLineHit scans the lines of every instance in frame and returns the
// one nearest to the target in screen space, within MaxScreenDist pixels.
// Ties keep the earlier line in frame order.
func ClosestLineHit(frame *core.Frame, q Query) (Hit, bool) {
	if frame == nil || q.MaxScreenDist <= 0 {
		return Hit{}, false
	}
	limit := q.MaxScreenDist * q.MaxScreenDist
	best := Hit{DistSq: math.Inf(1)}
	found := false

	consider := func(instIdx, line int, world mgl64.Mat4) {
		def := frame.Instances[instIdx].Definition
		a, b := def.LineEnds(line)
		c := Candidate{
			Frame:    frame,
			Instance: instIdx,
			Line:     line,
			A:        core.TransformPoint(world, a),
			B:        core.TransformPoint(world, b),
		}
		if q.LineFilter != nil && !q.LineFilter(c) {
			return
		}
		h, ok := measure(q, c)
		if !ok || h.DistSq > limit || h.DistSq >= best.DistSq {
			return
		}
		if q.ResultFilter != nil && !q.ResultFilter(h) {
			return
		}
		best = h
		found = true
	}

	if q.Index != nil && q.Target.Kind == TargetRay && q.Cursor != nil {
		q.Index.Update(frame, q.Projector)
		for _, e := range q.Index.Query(q.Cursor.X(), q.Cursor.Y(), q.MaxScreenDist) {
			consider(e.Instance, e.Line, frame.Instances[e.Instance].World)
		}
		return best, found
	}

	for i := range frame.Instances {
		inst := &frame.Instances[i]
		for l := range inst.Definition.Lines {
			consider(i, l, inst.World)
		}
	}
	return best, found
}

// measure pairs one scene segment with the target. Degenerate pairs report false.
func measure(q Query, c Candidate) (Hit, bool) {
	d := c.B.Sub(c.A)
	if d.LenSqr() < 1e-24 {
		return Hit{}, false
	}
	tgt := q.Target
	t, s, ok := core.ClosestPoints(tgt.Origin, tgt.Direction, c.A, d)
	if !ok {
		return Hit{}, false
	}

	switch q.Mode {
	case ModeParametric:
		if s < -paramSlack || s > 1+paramSlack {
			return Hit{}, false
		}
		s = mgl64.Clamp(s, 0, 1)
	default:
		if s < 0 || s > 1 {
			s = mgl64.Clamp(s, 0, 1)
			t = projectOnto(tgt, c.A.Add(d.Mul(s)))
		}
		if ct := tgt.clamp(t); ct != t {
			t = ct
			if s2, ok := core.ClosestOnSegment(c.A, c.B, tgt.At(t)); ok {
				s = s2
			}
		}
	}

	h := Hit{
		Point:       c.A.Add(d.Mul(s)),
		TargetPoint: tgt.At(t),
		Instance:    c.Instance,
		Line:        c.Line,
		A:           c.A,
		B:           c.B,
		T:           t,
		S:           s,
	}
	if !core.Finite(h.Point) || !core.Finite(h.TargetPoint) {
		return Hit{}, false
	}
	h.DistSq = q.Projector.DistanceSq(h.Point, h.TargetPoint)
	if math.IsInf(h.DistSq, 1) {
		return Hit{}, false
	}
	return h, true
}

func projectOnto(tgt Target, p mgl64.Vec3) float64 {
	l2 := tgt.Direction.LenSqr()
	if l2 < 1e-24 {
		return 0
	}
	return p.Sub(tgt.Origin).Dot(tgt.Direction) / l2
}

// VisibleOnly drops hidden lines.
func VisibleOnly(c Candidate) bool {
	return !c.Definition().Lines[c.Line].Hidden
}

// EnabledOnly drops lines of instances outside the entered context.
func EnabledOnly(c Candidate) bool {
	return c.Frame.Instances[c.Instance].Enabled
}

// ExcludeLine drops one line of def in every instance of it.
func ExcludeLine(def *core.ComponentDefinition, line int) LineFilter {
	return func(c Candidate) bool {
		return c.Line != line || c.Definition() != def
	}
}

func AllLines(filters ...LineFilter) LineFilter {
	return func(c Candidate) bool {
		for _, f := range filters {
			if f != nil && !f(c) {
				return false
			}
		}
		return true
	}
}

// WithinSegment keeps hits whose target parameter lies in [0,1].
func WithinSegment() ResultFilter {
	return func(h Hit) bool {
		return h.T >= -paramSlack && h.T <= 1+paramSlack
	}
}

// InFrontOfPlane keeps hits on the viewer's side of plane, allowing eps of
// penetration. A viewer on the plane keeps everything.
func InFrontOfPlane(plane core.Plane, viewer mgl64.Vec3, eps float64) ResultFilter {
	side := plane.SignedDistance(viewer)
	return func(h Hit) bool {
		if side == 0 {
			return true
		}
		sd := plane.SignedDistance(h.Point)
		if side < 0 {
			sd = -sd
		}
		return sd >= -eps
	}
}

func AllResults(filters ...ResultFilter) ResultFilter {
	return func(h Hit) bool {
		for _, f := range filters {
			if f != nil && !f(h) {
				return false
			}
		}
		return true
	}
}
