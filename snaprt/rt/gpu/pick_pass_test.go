package gpu

import (
	"testing"
	"unsafe"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
)

func TestGLToWebGPU_DepthRange(t *testing.T) {
	near := glToWebGPU.Mul4x1(mgl64.Vec4{0.3, -0.2, -2, 2})
	far := glToWebGPU.Mul4x1(mgl64.Vec4{0.3, -0.2, 2, 2})

	assert.InDelta(t, 0, near[2]/near[3], 1e-12)
	assert.InDelta(t, 1, far[2]/far[3], 1e-12)
	assert.Equal(t, 0.3, near[0])
	assert.Equal(t, -0.2, far[1])
}

func TestPickVertex_Layout(t *testing.T) {
	assert.Equal(t, uintptr(20), unsafe.Sizeof(PickVertex{}))
	assert.Equal(t, uintptr(12), unsafe.Offsetof(PickVertex{}.IDs))
}

func TestPickPass_BytesPerRowAligned(t *testing.T) {
	p := &PickPass{Width: 65}
	assert.Equal(t, uint32(512), p.bytesPerRow())
	p.Width = 64
	assert.Equal(t, uint32(256), p.bytesPerRow())
}

// NewPickPass releases a half-built pass when a later resource fails.
func TestPickPass_ReleasePartial(t *testing.T) {
	p := &PickPass{Width: 4, Height: 4}
	assert.NotPanics(t, func() {
		p.Release()
		p.Release()
	})
	assert.Nil(t, p.Pipeline)
	assert.Nil(t, p.BindGroup)
	assert.Nil(t, p.CameraBuffer)
}
