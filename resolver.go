package snap

import (
	"math"

	"github.com/gekko3d/snap/snaprt/rt/core"
	"github.com/gekko3d/snap/snaprt/rt/lines"
	"github.com/gekko3d/snap/snaprt/rt/pick"
	"github.com/gekko3d/snap/snaprt/rt/refgeom"
	"github.com/go-gl/mathgl/mgl64"
)

type candidateKind int

const (
	candFace candidateKind = iota
	candLine
	candAxis
	candPlane
	candFree
)

// Point-on-line priority classes, highest first.
const (
	prioEndpoint = iota
	prioMidpoint
	prioPlaneCrossing
	prioAxisCrossing
)

// candidate is one possible answer to a query. Which fields are meaningful
// depends on kind.
type candidate struct {
	kind     candidateKind
	snap     SnapKind
	pos      mgl64.Vec3
	distSq   float64
	priority int

	instance int // index into Frame.Instances, -1 for reference geometry
	point    int
	line     int
	face     int
	axis     refgeom.AxisTag
	plane    refgeom.PlaneKind
	t, s     float64
}

func newCandidate(kind candidateKind, snap SnapKind, pos mgl64.Vec3) candidate {
	return candidate{kind: kind, snap: snap, pos: pos, instance: -1, point: -1, line: -1, face: -1}
}

// nearest reduces cands to the one to report. A candidate must lie within
// tolSq. Against the current best it must be strictly nearer when of the same
// priority, nearer by more than band when of a lower priority, and no farther
// than band when of a higher priority.
func nearest(cands []candidate, tolSq, band float64) (candidate, bool) {
	var best candidate
	found := false
	for _, c := range cands {
		if math.IsNaN(c.distSq) || c.distSq > tolSq {
			continue
		}
		if !found {
			best, found = c, true
			continue
		}
		dc, db := math.Sqrt(c.distSq), math.Sqrt(best.distSq)
		switch {
		case c.priority == best.priority:
			if c.distSq < best.distSq {
				best = c
			}
		case c.priority > best.priority:
			if dc+band < db {
				best = c
			}
		default:
			if dc <= db+band {
				best = c
			}
		}
	}
	return best, found
}

// axisLine is an active reference axis: a direction tag through a point.
type axisLine struct {
	tag     refgeom.AxisTag
	through mgl64.Vec3
}

// faceHit is the id-buffer hit refined to the exact ray/plane intersection.
type faceHit struct {
	instance int
	face     int
	point    mgl64.Vec3
	plane    core.Plane
}

// resolver holds the inputs of one query. It is built per call and never
// mutated by the functions that read it.
type resolver struct {
	cfg    Config
	frame  *core.Frame
	cam    *core.Camera
	proj   core.Projector
	buffer *pick.Buffer
	ref    refgeom.Reference
	grid   *lines.ScreenGrid

	x, y  float64
	ray   core.Ray
	opts  QueryOptions
	tol   float64
	tolSq float64
	axes  []axisLine
}

func (r *resolver) usesReference() bool {
	return r.opts.Mode != ModeSelect
}

// activeAxes lists the axes through the reference origin, when enabled, and
// through the reference point, when set.
func activeAxes(cfg Config, ref refgeom.Reference, opts QueryOptions) []axisLine {
	if opts.Mode == ModeSelect {
		return nil
	}
	var out []axisLine
	if cfg.AxesEnabled {
		for _, tag := range refgeom.Axes {
			out = append(out, axisLine{tag: tag, through: ref.Origin})
		}
	}
	if rp := opts.ReferencePoint; rp != nil && core.Finite(*rp) && !rp.ApproxEqual(ref.Origin) {
		for _, tag := range refgeom.Axes {
			out = append(out, axisLine{tag: tag, through: *rp})
		}
	}
	return out
}

func (r *resolver) resolve() (HitPoint, bool) {
	fh, hasFace, err := r.pickFace()
	if err != nil {
		// Without the id buffer occlusion is unknown; report nothing.
		return noHit(), false
	}

	if c, ok := r.parametricHit(); ok {
		return r.toHit(c), true
	}

	if lh, ok := r.lineHit(fh, hasFace); ok {
		var plane *core.Plane
		if hasFace {
			plane = &fh.plane
		}
		return r.toHit(r.pointOnLine(lh, plane)), true
	}

	if hasFace {
		return r.toHit(r.refineFace(fh)), true
	}

	if !r.usesReference() {
		return noHit(), false
	}
	if c, ok := r.axisHit(); ok {
		return r.toHit(c), true
	}
	if c, ok := r.planeHit(); ok {
		return r.toHit(c), true
	}
	return r.toHit(r.freePoint()), true
}

// pickFace samples the id buffer and intersects the ray with the hit face.
// An error means the buffer could not be read.
func (r *resolver) pickFace() (faceHit, bool, error) {
	s, ok, err := r.buffer.Sample(r.x, r.y)
	if err != nil || !ok {
		return faceHit{}, false, err
	}
	idx, ok := r.frame.Lookup(s.DefIndex, s.Instance)
	if !ok {
		return faceHit{}, false, nil
	}
	inst := &r.frame.Instances[idx]
	if s.Face < 0 || s.Face >= len(inst.Definition.Faces) {
		return faceHit{}, false, nil
	}
	plane, ok := inst.Definition.Faces[s.Face].Plane.Transformed(inst.World, inst.WorldInv)
	if !ok {
		return faceHit{}, false, nil
	}
	t, ok := plane.IntersectRay(r.ray)
	if !ok || t < 0 {
		return faceHit{}, false, nil
	}
	return faceHit{instance: idx, face: s.Face, point: r.ray.At(t), plane: plane}, true, nil
}

func (r *resolver) lineFilter() lines.LineFilter {
	if ex := r.opts.ExcludeLine; ex != nil {
		return lines.AllLines(lines.VisibleOnly, lines.ExcludeLine(ex.Definition, ex.Line))
	}
	return lines.VisibleOnly
}

func (r *resolver) lineQuery() lines.Query {
	return lines.Query{
		Target:        lines.RayTarget(r.ray),
		Projector:     r.proj,
		MaxScreenDist: r.tol,
		Mode:          lines.ModeClosest,
		LineFilter:    r.lineFilter(),
		Index:         r.grid,
		Cursor:        &mgl64.Vec2{r.x, r.y},
	}
}

// lineHit runs the line search, restricted to lines not behind the hit face.
func (r *resolver) lineHit(fh faceHit, hasFace bool) (lines.Hit, bool) {
	q := r.lineQuery()
	if hasFace {
		eps := r.cfg.PlaneEpsilon * math.Max(1, fh.point.Sub(r.cam.Eye).Len())
		q.ResultFilter = lines.InFrontOfPlane(fh.plane, r.cam.Eye, eps)
	}
	return lines.ClosestLineHit(r.frame, q)
}

// parametricHit finds where the drawn segment crosses a scene line near the cursor.
func (r *resolver) parametricHit() (candidate, bool) {
	seg := r.opts.Parametric
	if seg == nil {
		return candidate{}, false
	}
	nearCursor := func(h lines.Hit) bool {
		return r.proj.PixelDistanceSq(h.Point, r.x, r.y) <= r.tolSq
	}
	q := lines.Query{
		Target:        lines.SegmentTarget(seg.A, seg.B),
		Projector:     r.proj,
		MaxScreenDist: r.tol,
		Mode:          lines.ModeParametric,
		LineFilter:    r.lineFilter(),
		ResultFilter:  lines.AllResults(lines.WithinSegment(), nearCursor),
	}
	h, ok := lines.ClosestLineHit(r.frame, q)
	if !ok {
		return candidate{}, false
	}
	c := newCandidate(candLine, KindLine, h.Point)
	c.instance, c.line, c.t, c.s = h.Instance, h.Line, h.T, h.S
	c.distSq = r.proj.PixelDistanceSq(h.Point, r.x, r.y)
	return c, true
}

// pointOnLine refines a point on a scene line to its endpoints, midpoint,
// crossing with the face plane or crossing with an active axis.
func (r *resolver) pointOnLine(h lines.Hit, facePlane *core.Plane) candidate {
	base := newCandidate(candLine, KindLine, h.Point)
	base.instance, base.line, base.s = h.Instance, h.Line, h.S

	def := r.frame.Instances[h.Instance].Definition
	ln := def.Lines[h.Line]

	at := func(snap SnapKind, prio int, pos mgl64.Vec3, s float64) candidate {
		c := base
		c.snap, c.priority, c.pos, c.s = snap, prio, pos, s
		c.distSq = r.proj.DistanceSq(pos, h.Point)
		return c
	}

	a := at(KindPoint, prioEndpoint, h.A, 0)
	a.point = ln.A
	b := at(KindPoint, prioEndpoint, h.B, 1)
	b.point = ln.B
	cands := []candidate{a, b, at(KindLineMiddle, prioMidpoint, h.A.Add(h.B).Mul(0.5), 0.5)}

	if facePlane != nil {
		seg := core.Ray{Origin: h.A, Direction: h.B.Sub(h.A)}
		if s, ok := facePlane.IntersectRay(seg); ok && s >= 0 && s <= 1 {
			cands = append(cands, at(KindPlaneIntersection, prioPlaneCrossing, seg.At(s), s))
		}
	}
	for _, ax := range r.axes {
		if p, s, ok := r.ref.AxisCrossing(h.A, h.B, ax.tag, ax.through, r.cfg.PlaneEpsilon); ok {
			c := at(KindAxisIntersection, prioAxisCrossing, p, s)
			c.axis = ax.tag
			cands = append(cands, c)
		}
	}

	if c, ok := nearest(cands, r.tolSq, r.cfg.PriorityBandPixels); ok {
		return c
	}
	return base
}

// refineFace snaps a face point onto an active axis crossing the face.
func (r *resolver) refineFace(fh faceHit) candidate {
	base := newCandidate(candFace, KindFace, fh.point)
	base.instance, base.face = fh.instance, fh.face

	inst := &r.frame.Instances[fh.instance]
	face := &inst.Definition.Faces[fh.face]
	var cands []candidate
	for _, ax := range r.axes {
		p, ok := r.ref.AxisPlaneCrossing(fh.plane, ax.tag, ax.through)
		if !ok || !face.Contains(inst.Definition.Points, core.TransformPoint(inst.WorldInv, p)) {
			continue
		}
		c := base
		c.snap, c.pos, c.axis = KindAxisIntersection, p, ax.tag
		c.distSq = r.proj.DistanceSq(p, fh.point)
		cands = append(cands, c)
	}
	if c, ok := nearest(cands, r.tolSq, 0); ok {
		return c
	}
	return base
}

// axisHit snaps the ray onto the nearest active axis.
func (r *resolver) axisHit() (candidate, bool) {
	var cands []candidate
	for _, ax := range r.axes {
		h, ok := r.ref.HitAxis(r.proj, r.ray, ax.tag, ax.through, r.tol)
		if !ok || (r.cam.Far > 0 && h.T > r.cam.Far) {
			continue
		}
		c := newCandidate(candAxis, KindAxisIntersection, h.Point)
		c.axis, c.distSq, c.t = ax.tag, h.DistSq, h.T
		cands = append(cands, c)
	}
	return nearest(cands, r.tolSq, 0)
}

// planeHit intersects the construction planes: horizontal first, else the
// vertical plane facing the camera most.
func (r *resolver) planeHit() (candidate, bool) {
	through := r.ref.Origin
	if rp := r.opts.ReferencePoint; rp != nil && core.Finite(*rp) {
		through = *rp
	}
	toCand := func(h refgeom.PlaneHit) candidate {
		c := newCandidate(candPlane, KindPlaneIntersection, h.Point)
		c.plane, c.t = h.Kind, h.T
		return c
	}
	if h, ok := r.ref.HitPlane(r.ray, refgeom.PlaneHorizontal, through, r.cam.Far); ok {
		return toCand(h), true
	}
	xz, okXZ := r.ref.HitPlane(r.ray, refgeom.PlaneVerticalXZ, through, r.cam.Far)
	yz, okYZ := r.ref.HitPlane(r.ray, refgeom.PlaneVerticalYZ, through, r.cam.Far)
	switch {
	case okXZ && okYZ:
		if yz.Incidence < xz.Incidence {
			return toCand(yz), true
		}
		return toCand(xz), true
	case okXZ:
		return toCand(xz), true
	case okYZ:
		return toCand(yz), true
	}
	return candidate{}, false
}

// freePoint is a point along the ray with no semantic snap.
func (r *resolver) freePoint() candidate {
	d := r.cam.DistanceFromOrigin()
	if r.cam.Far > 0 {
		d = math.Min(r.cam.Far/10, d)
	}
	c := newCandidate(candFree, KindFree, r.ray.At(d))
	c.t = d
	return c
}

func (r *resolver) toHit(c candidate) HitPoint {
	h := noHit()
	h.Position = c.pos
	h.Kind = c.snap
	h.Epoch = r.frame.Epoch
	h.LineSnap = c.axis
	h.T, h.S = c.t, c.s

	switch c.kind {
	case candPlane:
		h.OnPlane, h.Plane = true, c.plane
	case candFace, candLine:
		inst := &r.frame.Instances[c.instance]
		h.Definition = inst.Definition
		h.InstanceID = inst.ID
		h.Transform = inst.World
		h.Point, h.Line, h.Face = c.point, c.line, c.face
	}
	return h
}
