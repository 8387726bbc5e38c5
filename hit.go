package snap

import (
	"github.com/gekko3d/snap/snaprt/rt/core"
	"github.com/gekko3d/snap/snaprt/rt/refgeom"
	"github.com/go-gl/mathgl/mgl64"
)

// SnapKind is the semantic category of a resolved hit point.
type SnapKind int

const (
	KindNone SnapKind = iota
	KindPoint
	KindLine
	KindLineMiddle
	KindPlaneIntersection
	KindAxisIntersection
	KindFace
	KindFree
)

var kindNames = [...]string{
	KindNone:              "none",
	KindPoint:             "point",
	KindLine:              "line",
	KindLineMiddle:        "line_middle",
	KindPlaneIntersection: "plane_intersection",
	KindAxisIntersection:  "axis_intersection",
	KindFace:              "face",
	KindFree:              "free",
}

func (k SnapKind) String() string {
	if k < KindNone || int(k) >= len(kindNames) {
		return "unknown"
	}
	return kindNames[k]
}

// Mode is the interaction the query serves.
type Mode int

const (
	ModeSelect Mode = iota
	ModeDraw
	ModeCamera
)

// DistanceClass picks the pixel tolerance of a query.
type DistanceClass int

const (
	DistanceSnap DistanceClass = iota
	DistanceSelect
)

// LineRef names one line of a definition.
type LineRef struct {
	Definition *core.ComponentDefinition
	Line       int
}

// Segment is the line being drawn, in world space.
type Segment struct {
	A, B mgl64.Vec3
}

type QueryOptions struct {
	Mode     Mode
	Distance DistanceClass
	// ExcludeLine is ignored by the line search, typically the line being drawn.
	ExcludeLine *LineRef
	// ReferencePoint is the last snapped point of the current gesture.
	ReferencePoint *mgl64.Vec3
	// Parametric switches the line search to crossings with the drawn
	// segment, reported with T along it.
	Parametric *Segment
}

// HitPoint is the result of one query. Index fields are -1 when absent.
type HitPoint struct {
	Position mgl64.Vec3
	Kind     SnapKind

	Point int // point index in Definition
	Line  int // line index in Definition
	Face  int // face index in Definition

	Definition *core.ComponentDefinition
	InstanceID int
	// Transform is the local-to-world transform of the instance.
	Transform mgl64.Mat4
	Epoch     core.Epoch

	LineSnap refgeom.AxisTag
	OnPlane  bool
	Plane    refgeom.PlaneKind

	// T is the parameter along the drawn segment for parametric hits, S the
	// parameter along the hit line.
	T float64
	S float64
}

func noHit() HitPoint {
	return HitPoint{Point: -1, Line: -1, Face: -1, InstanceID: -1, Transform: mgl64.Ident4()}
}

// LineRef returns the line the point lies on, if any.
func (h HitPoint) LineRef() (LineRef, bool) {
	if h.Line < 0 || h.Definition == nil {
		return LineRef{}, false
	}
	return LineRef{Definition: h.Definition, Line: h.Line}, true
}

var axisColors = [...]string{refgeom.AxisX: "Red", refgeom.AxisY: "Green", refgeom.AxisZ: "Blue"}

// Label is the tooltip text shown for the hit.
func (h HitPoint) Label() string {
	switch h.Kind {
	case KindPoint:
		return "Endpoint"
	case KindLineMiddle:
		return "Midpoint"
	case KindLine:
		return "On Edge"
	case KindFace:
		return "On Face"
	case KindPlaneIntersection:
		if h.OnPlane {
			return "On Plane"
		}
		return "Intersection"
	case KindAxisIntersection:
		if h.LineSnap >= refgeom.AxisX && h.LineSnap <= refgeom.AxisZ {
			if h.Line >= 0 {
				return "Intersection"
			}
			return "On " + axisColors[h.LineSnap] + " Axis"
		}
		return "Intersection"
	}
	return ""
}
