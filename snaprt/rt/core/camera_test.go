package core

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCamera_RayRoundTrip(t *testing.T) {
	cam := NewCamera(800, 600)
	for _, px := range [][2]float64{{400, 300}, {10, 20}, {790, 590}, {123.5, 456.25}} {
		ray := cam.RayAt(px[0], px[1])
		assert.InDelta(t, 1.0, ray.Direction.Len(), 1e-12)

		x, y, ok := cam.WorldToScreen(ray.At(7))
		require.True(t, ok)
		assert.InDelta(t, px[0], x, 1e-6)
		assert.InDelta(t, px[1], y, 1e-6)
	}
}

func TestCamera_CenterRayLooksAtTarget(t *testing.T) {
	cam := NewCamera(640, 480)
	ray := cam.RayAt(320, 240)
	assert.True(t, ray.Origin.ApproxEqual(cam.Eye))
	assert.True(t, ray.Direction.ApproxEqualThreshold(cam.Forward(), 1e-9))
}

func TestCamera_OrthographicRaysAreParallel(t *testing.T) {
	cam := NewCamera(640, 480)
	cam.Projection = Orthographic
	a := cam.RayAt(0, 0)
	b := cam.RayAt(600, 400)
	assert.True(t, a.Direction.ApproxEqual(b.Direction))
	assert.False(t, a.Origin.ApproxEqual(b.Origin))

	x, y, ok := cam.WorldToScreen(b.At(3))
	require.True(t, ok)
	assert.InDelta(t, 600, x, 1e-6)
	assert.InDelta(t, 400, y, 1e-6)
}

func TestCamera_DegenerateProjectionIsInfinite(t *testing.T) {
	cam := NewCamera(640, 480)
	behind := cam.Eye.Sub(cam.Forward().Mul(5))

	_, _, ok := cam.WorldToScreen(behind)
	assert.False(t, ok)
	assert.True(t, math.IsInf(cam.ScreenDistanceSq(behind, cam.Target), 1))
	assert.True(t, math.IsInf(cam.ScreenDistanceSq(cam.Eye, cam.Target), 1))
	assert.Equal(t, 0.0, cam.ScreenDistanceSq(cam.Target, cam.Target))
}

func TestCamera_OrthographicBehindIsInfinite(t *testing.T) {
	cam := NewCamera(640, 480)
	cam.Projection = Orthographic
	behind := cam.Eye.Sub(cam.Forward().Mul(5))
	ahead := cam.Eye.Add(cam.Forward().Mul(5))

	_, _, ok := cam.WorldToScreen(behind)
	assert.False(t, ok)
	assert.True(t, math.IsInf(cam.ScreenDistanceSq(behind, cam.Target), 1))

	_, _, ok = cam.WorldToScreen(ahead)
	assert.True(t, ok)
	assert.False(t, math.IsInf(cam.ScreenDistanceSq(ahead, cam.Target), 1))
}

func TestCamera_ScreenDistanceIsZoomIndependent(t *testing.T) {
	cam := NewCamera(800, 600)
	a := mgl64.Vec3{0, 0, 0}
	b := mgl64.Vec3{0.1, 0, 0}
	near := cam.ScreenDistanceSq(a, b)

	cam.Eye = cam.Eye.Mul(2)
	far := cam.ScreenDistanceSq(a, b)
	assert.Less(t, far, near)
	assert.InDelta(t, near/4, far, near*0.05)
}

func TestCamera_LookingStraightDown(t *testing.T) {
	cam := NewCamera(100, 100)
	cam.Eye = mgl64.Vec3{0, 0, 10}
	cam.Target = mgl64.Vec3{0, 0, 0}

	ray := cam.RayAt(50, 50)
	assert.True(t, Finite(ray.Direction))
	assert.InDelta(t, -1, ray.Direction.Z(), 1e-9)
}
