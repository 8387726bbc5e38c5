package lines

import (
	"math/rand"
	"testing"

	"github.com/gekko3d/snap/snaprt/rt/core"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func topDown() *core.Camera {
	cam := core.NewCamera(400, 400)
	cam.Eye = mgl64.Vec3{0, 0, 10}
	cam.Target = mgl64.Vec3{0, 0, 0}
	cam.Up = mgl64.Vec3{0, 1, 0}
	return cam
}

func lineDef(name string, pts ...mgl64.Vec3) *core.ComponentDefinition {
	d := core.NewDefinition(name)
	for _, p := range pts {
		d.AddPoint(p)
	}
	for i := 0; i+1 < len(pts); i += 2 {
		if _, err := d.AddLine(i, i+1); err != nil {
			panic(err)
		}
	}
	return d
}

func cursorQuery(cam *core.Camera, p mgl64.Vec3, maxDist float64) Query {
	x, y, _ := cam.WorldToScreen(p)
	return Query{
		Target:        RayTarget(cam.RayAt(x, y)),
		Projector:     cam.Projector(),
		MaxScreenDist: maxDist,
		Cursor:        &mgl64.Vec2{x, y},
	}
}

func TestClosestLineHit_Ray(t *testing.T) {
	root := lineDef("root", mgl64.Vec3{-1, 0, 0}, mgl64.Vec3{1, 0, 0})
	frame := core.NewRegistry(root).Frame()
	cam := topDown()

	h, ok := ClosestLineHit(frame, cursorQuery(cam, mgl64.Vec3{0.3, 0.02, 0}, 5))
	require.True(t, ok)
	assert.Equal(t, 0, h.Instance)
	assert.Equal(t, 0, h.Line)
	assert.InDelta(t, 0.3, h.Point.X(), 1e-5)
	assert.InDelta(t, 0, h.Point.Y(), 1e-12)
	assert.InDelta(t, 0.65, h.S, 1e-5)
	assert.Greater(t, h.DistSq, 0.0)

	// Past the end the endpoint is the closest point.
	h, ok = ClosestLineHit(frame, cursorQuery(cam, mgl64.Vec3{1.02, 0, 0}, 5))
	require.True(t, ok)
	assert.InDelta(t, 1, h.S, 1e-12)

	_, ok = ClosestLineHit(frame, cursorQuery(cam, mgl64.Vec3{0.3, 0.5, 0}, 5))
	assert.False(t, ok, "outside the pixel tolerance")
}

func TestClosestLineHit_ParametricCrossing(t *testing.T) {
	root := lineDef("root",
		mgl64.Vec3{0, 0, 0}, mgl64.Vec3{2, 2, 0},
		mgl64.Vec3{0, 2, 0}, mgl64.Vec3{2, 0, 0},
	)
	frame := core.NewRegistry(root).Frame()
	cam := topDown()

	// The line being drawn against the scene.
	q := Query{
		Target:        SegmentTarget(mgl64.Vec3{0, 2, 0}, mgl64.Vec3{2, 0, 0}),
		Projector:     cam.Projector(),
		MaxScreenDist: 5,
		Mode:          ModeParametric,
		LineFilter:    ExcludeLine(root, 1),
		ResultFilter:  WithinSegment(),
	}
	h, ok := ClosestLineHit(frame, q)
	require.True(t, ok)
	assert.Equal(t, 0, h.Line)
	assert.InDelta(t, 0.5, h.T, 1e-12)
	assert.InDelta(t, 0.5, h.S, 1e-12)
	assert.True(t, h.Point.ApproxEqual(mgl64.Vec3{1, 1, 0}))

	// A ray through the crossing resolves to one of the two lines, inside both.
	rq := cursorQuery(cam, mgl64.Vec3{1, 1, 0}, 5)
	rq.Mode = ModeParametric
	h, ok = ClosestLineHit(frame, rq)
	require.True(t, ok)
	assert.Contains(t, []int{0, 1}, h.Line)
	assert.Greater(t, h.S, 0.0)
	assert.Less(t, h.S, 1.0)

	// The drawn segment stops short of the crossing.
	q.Target = SegmentTarget(mgl64.Vec3{0, 2, 0}, mgl64.Vec3{0.5, 1.5, 0})
	_, ok = ClosestLineHit(frame, q)
	assert.False(t, ok)
}

func TestClosestLineHit_Filters(t *testing.T) {
	root := lineDef("root",
		mgl64.Vec3{-1, 0, 0}, mgl64.Vec3{1, 0, 0},
		mgl64.Vec3{-1, 0.02, -3}, mgl64.Vec3{1, 0.02, -3},
	)
	frame := core.NewRegistry(root).Frame()
	cam := topDown()
	q := cursorQuery(cam, mgl64.Vec3{0.2, 0, 0}, 5)

	h, ok := ClosestLineHit(frame, q)
	require.True(t, ok)
	assert.Equal(t, 0, h.Line)

	root.Lines[0].Hidden = true
	q.LineFilter = VisibleOnly
	h, ok = ClosestLineHit(frame, q)
	require.True(t, ok)
	assert.Equal(t, 1, h.Line)

	// A face at z = -1 hides the lower line.
	plane, _ := core.PlaneFromPointNormal(mgl64.Vec3{0, 0, -1}, mgl64.Vec3{0, 0, 1})
	q.ResultFilter = InFrontOfPlane(plane, cam.Eye, 1e-6)
	_, ok = ClosestLineHit(frame, q)
	assert.False(t, ok)

	root.Lines[0].Hidden = false
	q.LineFilter = AllLines(VisibleOnly, ExcludeLine(root, 0))
	q.ResultFilter = nil
	h, ok = ClosestLineHit(frame, q)
	require.True(t, ok)
	assert.Equal(t, 1, h.Line)
}

func TestInFrontOfPlane_Tolerance(t *testing.T) {
	plane, _ := core.PlaneFromPointNormal(mgl64.Vec3{}, mgl64.Vec3{0, 0, 1})
	keep := InFrontOfPlane(plane, mgl64.Vec3{0, 0, 5}, 1e-6)
	assert.True(t, keep(Hit{Point: mgl64.Vec3{0, 0, 0}}))
	assert.True(t, keep(Hit{Point: mgl64.Vec3{0, 0, -1e-7}}))
	assert.False(t, keep(Hit{Point: mgl64.Vec3{0, 0, -1e-3}}))

	below := InFrontOfPlane(plane, mgl64.Vec3{0, 0, -5}, 1e-6)
	assert.True(t, below(Hit{Point: mgl64.Vec3{0, 0, -1}}))
	assert.False(t, below(Hit{Point: mgl64.Vec3{0, 0, 1}}))
}

func TestClosestLineHit_DegenerateLinesSkipped(t *testing.T) {
	root := core.NewDefinition("root")
	a := root.AddPoint(mgl64.Vec3{0, 0, 0})
	b := root.AddPoint(mgl64.Vec3{0, 0, 0})
	_, err := root.AddLine(a, b)
	require.NoError(t, err)
	// A line seen end-on is parallel to the ray.
	c := root.AddPoint(mgl64.Vec3{0, 0, 1})
	_, err = root.AddLine(a, c)
	require.NoError(t, err)

	frame := core.NewRegistry(root).Frame()
	cam := topDown()
	_, ok := ClosestLineHit(frame, cursorQuery(cam, mgl64.Vec3{}, 5))
	assert.False(t, ok)
}

func TestClosestLineHit_InstancesTieInFrameOrder(t *testing.T) {
	seg := lineDef("seg", mgl64.Vec3{-1, 0, 0}, mgl64.Vec3{1, 0, 0})
	root := core.NewDefinition("root")
	root.AddInstance(seg, mgl64.Ident4())
	root.AddInstance(seg, mgl64.Ident4())
	frame := core.NewRegistry(root).Frame()

	h, ok := ClosestLineHit(frame, cursorQuery(topDown(), mgl64.Vec3{0.5, 0.01, 0}, 5))
	require.True(t, ok)
	assert.Equal(t, 1, h.Instance, "first seg instance follows the root")
}

func TestScreenGrid_MatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	seg := core.NewDefinition("mesh")
	for i := 0; i < 60; i++ {
		a := seg.AddPoint(mgl64.Vec3{rng.Float64()*8 - 4, rng.Float64()*8 - 4, rng.Float64()*2 - 1})
		b := seg.AddPoint(mgl64.Vec3{rng.Float64()*8 - 4, rng.Float64()*8 - 4, rng.Float64()*2 - 1})
		_, err := seg.AddLine(a, b)
		require.NoError(t, err)
	}
	// One line reaching behind the eye.
	a := seg.AddPoint(mgl64.Vec3{0.5, 0.5, 0})
	b := seg.AddPoint(mgl64.Vec3{0.5, 0.5, 30})
	_, err := seg.AddLine(a, b)
	require.NoError(t, err)

	root := core.NewDefinition("root")
	root.AddInstance(seg, mgl64.Ident4())
	root.AddInstance(seg, core.Translation(1, -2, 0).ObjectToWorld())
	frame := core.NewRegistry(root).Frame()

	cam := core.NewCamera(320, 240)
	cam.Eye = mgl64.Vec3{6, -8, 7}
	grid := NewScreenGrid(16)

	for i := 0; i < 300; i++ {
		x, y := rng.Float64()*320, rng.Float64()*240
		q := Query{
			Target:        RayTarget(cam.RayAt(x, y)),
			Projector:     cam.Projector(),
			MaxScreenDist: 8,
			Cursor:        &mgl64.Vec2{x, y},
		}
		want, wantOK := ClosestLineHit(frame, q)
		q.Index = grid
		got, gotOK := ClosestLineHit(frame, q)

		require.Equal(t, wantOK, gotOK, "cursor (%.2f, %.2f)", x, y)
		if wantOK {
			assert.Equal(t, want.Instance, got.Instance)
			assert.Equal(t, want.Line, got.Line)
			assert.Equal(t, want.Point, got.Point)
		}
	}
}

func TestScreenGrid_RebuildsOnViewChange(t *testing.T) {
	root := lineDef("root", mgl64.Vec3{-1, 0, 0}, mgl64.Vec3{1, 0, 0})
	frame := core.NewRegistry(root).Frame()
	cam := topDown()
	grid := NewScreenGrid(16)

	grid.Update(frame, cam.Projector())
	x, y, _ := cam.WorldToScreen(mgl64.Vec3{0, 0, 0})
	assert.Len(t, grid.Query(x, y, 2), 1)

	cam.Eye = mgl64.Vec3{5, 0, 10}
	cam.Target = mgl64.Vec3{5, 0, 0}
	grid.Update(frame, cam.Projector())
	assert.Empty(t, grid.Query(x, y, 2))
}

func TestScreenGrid_EndpointAtEyePlane(t *testing.T) {
	// The first endpoint projects millions of cells off screen.
	root := lineDef("root",
		mgl64.Vec3{1, 0.73, 10 - 2e-9}, mgl64.Vec3{0, 0, 0},
		mgl64.Vec3{-1, 1, 0}, mgl64.Vec3{1, 1, 0},
	)
	frame := core.NewRegistry(root).Frame()
	cam := topDown()
	grid := NewScreenGrid(16)

	grid.Build(frame, cam.Projector())
	assert.Contains(t, grid.always, 0)
	assert.LessOrEqual(t, len(grid.cells), maxInsertCells)

	x, y, ok := cam.WorldToScreen(mgl64.Vec3{0, 0, 0})
	require.True(t, ok)
	assert.Contains(t, grid.Query(x, y, 4), Entry{Instance: 0, Line: 0})

	q := Query{
		Target:        RayTarget(cam.RayAt(x, y)),
		Projector:     cam.Projector(),
		MaxScreenDist: 8,
		Cursor:        &mgl64.Vec2{x, y},
	}
	want, wantOK := ClosestLineHit(frame, q)
	q.Index = grid
	got, gotOK := ClosestLineHit(frame, q)
	require.Equal(t, wantOK, gotOK)
	assert.Equal(t, want.Line, got.Line)
}
