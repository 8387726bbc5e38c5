package pick

import (
	"errors"
	"fmt"
	"math"

	"github.com/gekko3d/snap/snaprt/rt/core"
	"github.com/go-gl/mathgl/mgl64"
)

var ErrUnavailable = errors.New("pick buffer unavailable")

// Backend renders id triangles off-screen and reads single pixels back.
// Draw replaces the previous contents; ReadPixel returns None for both
// channels where nothing was drawn.
type Backend interface {
	Resize(width, height int) error
	Draw(viewProj mgl64.Mat4, tris []Triangle) error
	ReadPixel(x, y int) (id, instance uint32, err error)
}

// Sample is one decoded pixel of the id buffer.
type Sample struct {
	DefIndex int
	Face     int
	Instance int
}

// Buffer is the id-buffer cache for one viewport. It renders in EnsureCurrent
// and only then; Sample reads whatever the last render produced.
type Buffer struct {
	backend Backend

	valid     bool
	available bool
	epoch     core.Epoch
	viewProj  mgl64.Mat4
	width     int
	height    int
	enc       Encoding
	tris      []Triangle
	renders   int
}

func NewBuffer(backend Backend) *Buffer {
	return &Buffer{backend: backend}
}

// Invalidate forces the next EnsureCurrent to render.
func (b *Buffer) Invalidate() {
	b.valid = false
}

// Available reports whether the last render succeeded.
func (b *Buffer) Available() bool {
	return b.valid && b.available
}

// Renders counts completed renders.
func (b *Buffer) Renders() int {
	return b.renders
}

func (b *Buffer) Encoding() Encoding {
	return b.enc
}

// Current reports whether the buffer holds a successful render of frame as
// seen by cam.
func (b *Buffer) Current(frame *core.Frame, cam *core.Camera) bool {
	if !b.Available() || frame == nil || cam == nil {
		return false
	}
	return b.epoch == frame.Epoch && b.viewProj == cam.ViewProj() &&
		b.width == cam.Width && b.height == cam.Height
}

// EnsureCurrent renders frame through draw unless the buffer already holds a
// render of the same epoch, view-projection and size. A nil draw uses
// DrawFrame. After a failure the buffer is unavailable and the next call
// renders again.
func (b *Buffer) EnsureCurrent(frame *core.Frame, cam *core.Camera, draw DrawFunc) error {
	if frame == nil || cam == nil {
		b.available = false
		return fmt.Errorf("ensure current: %w", ErrUnavailable)
	}
	if b.Current(frame, cam) {
		return nil
	}
	vp := cam.ViewProj()

	b.valid = true
	b.available = false
	b.epoch = frame.Epoch
	b.viewProj = vp

	if cam.Width <= 0 || cam.Height <= 0 {
		return fmt.Errorf("viewport %dx%d: %w", cam.Width, cam.Height, ErrUnavailable)
	}
	if b.width != cam.Width || b.height != cam.Height {
		if err := b.backend.Resize(cam.Width, cam.Height); err != nil {
			b.width, b.height = 0, 0
			return fmt.Errorf("resize pick backend: %w", err)
		}
		b.width, b.height = cam.Width, cam.Height
	}

	if draw == nil {
		draw = DrawFrame
	}
	b.enc = NewEncoding(frame)
	b.tris = b.tris[:0]
	draw(frame, b.enc, func(t Triangle) {
		b.tris = append(b.tris, t)
	})
	if err := b.backend.Draw(vp, b.tris); err != nil {
		return fmt.Errorf("draw pick pass: %w", err)
	}
	b.available = true
	b.renders++
	return nil
}

// Sample decodes the pixel under (x, y). It reports false where nothing was
// drawn and outside the viewport. A buffer that is unavailable, or a readback
// that fails, yields an error wrapping ErrUnavailable; a failed readback also
// forces the next EnsureCurrent to render.
func (b *Buffer) Sample(x, y float64) (Sample, bool, error) {
	if !b.Available() {
		return Sample{}, false, ErrUnavailable
	}
	if math.IsNaN(x) || math.IsNaN(y) {
		return Sample{}, false, nil
	}
	px, py := int(math.Floor(x)), int(math.Floor(y))
	if px < 0 || py < 0 || px >= b.width || py >= b.height {
		return Sample{}, false, nil
	}
	id, inst, err := b.backend.ReadPixel(px, py)
	if err != nil {
		b.available = false
		b.valid = false
		return Sample{}, false, fmt.Errorf("read pixel (%d, %d): %w: %w", px, py, ErrUnavailable, err)
	}
	defIdx, face, ok := b.enc.Decode(id)
	if !ok {
		return Sample{}, false, nil
	}
	instID, ok := DecodeInstance(inst)
	if !ok {
		return Sample{}, false, nil
	}
	return Sample{DefIndex: defIdx, Face: face, Instance: instID}, true, nil
}
