package snap

import (
	"errors"
	"fmt"

	"github.com/gekko3d/snap/snaprt/rt/core"
	"github.com/gekko3d/snap/snaprt/rt/lines"
	"github.com/gekko3d/snap/snaprt/rt/pick"
	"github.com/gekko3d/snap/snaprt/rt/refgeom"
)

// Engine owns the per-viewport hit-testing state: the flattened hierarchy,
// the camera and the id buffer. All methods run on the caller's thread;
// queries never render and never mutate.
type Engine struct {
	cfg    Config
	log    Logger
	reg    *core.Registry
	cam    *core.Camera
	buffer *pick.Buffer
	ref    refgeom.Reference
	grid   *lines.ScreenGrid
	draw   pick.DrawFunc

	tooltips    *core.TooltipRenderer
	tooltipsErr error
}

// NewEngine wires a viewport over root. A nil logger logs nothing.
func NewEngine(root *core.ComponentDefinition, cam *core.Camera, backend pick.Backend, cfg Config, logger Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("new engine: %w", err)
	}
	if root == nil || cam == nil || backend == nil {
		return nil, errors.New("new engine: root, camera and backend are required")
	}
	e := &Engine{
		cfg:    cfg,
		log:    orNop(logger),
		reg:    core.NewRegistry(root),
		cam:    cam,
		buffer: pick.NewBuffer(backend),
		ref:    refgeom.Default(),
	}
	if cfg.LineIndex {
		e.grid = lines.NewScreenGrid(cfg.GridCellPixels)
	}
	return e, nil
}

func (e *Engine) Config() Config               { return e.cfg }
func (e *Engine) Logger() Logger               { return e.log }
func (e *Engine) Registry() *core.Registry     { return e.reg }
func (e *Engine) Camera() *core.Camera         { return e.cam }
func (e *Engine) Reference() refgeom.Reference { return e.ref }
func (e *Engine) PickBuffer() *pick.Buffer     { return e.buffer }

// SceneChanged invalidates the flattened hierarchy and the id buffer after
// any geometry, transform, parent or visibility edit.
func (e *Engine) SceneChanged() {
	e.reg.Invalidate()
	e.buffer.Invalidate()
}

func (e *Engine) SetCamera(cam *core.Camera) {
	if cam == nil {
		return
	}
	e.cam = cam
	e.buffer.Invalidate()
}

func (e *Engine) Resize(width, height int) {
	e.cam.Width, e.cam.Height = width, height
	e.buffer.Invalidate()
}

// Enter sets the editing context. Instances outside it stay pickable but
// are flagged disabled.
func (e *Engine) Enter(path ...*core.ComponentInstance) {
	e.reg.Enter(path...)
	e.buffer.Invalidate()
}

func (e *Engine) SetReference(ref refgeom.Reference) {
	e.ref = ref
}

// SetDrawFunc replaces the id-pass draw callback. nil restores pick.DrawFrame.
func (e *Engine) SetDrawFunc(draw pick.DrawFunc) {
	e.draw = draw
	e.buffer.Invalidate()
}

// RenderFrame brings the flattened hierarchy and the id buffer up to date.
// It renders only when something changed since the last call. A render
// failure leaves queries reporting no hit until a later call succeeds.
func (e *Engine) RenderFrame() error {
	rebuild := e.reg.Dirty()
	frame := e.reg.Frame()
	if rebuild {
		e.log.Debugf("flattened hierarchy: epoch %d, %d instances", frame.Epoch, len(frame.Instances))
	}

	before := e.buffer.Renders()
	if err := e.buffer.EnsureCurrent(frame, e.cam, e.draw); err != nil {
		e.log.Warnf("pick buffer unavailable: %v", err)
		return err
	}
	if e.buffer.Renders() != before {
		e.log.Debugf("rendered pick buffer %dx%d at epoch %d", e.cam.Width, e.cam.Height, frame.Epoch)
	}
	if e.grid != nil {
		e.grid.Update(frame, e.cam.Projector())
	}
	return nil
}

// QueryHit resolves the hit under the pixel (x, y). It reports false when
// nothing qualifies for opts.Mode, and whenever the last RenderFrame is
// out of date or failed.
func (e *Engine) QueryHit(x, y float64, opts QueryOptions) (HitPoint, bool) {
	frame := e.reg.Current()
	if frame == nil || !e.buffer.Current(frame, e.cam) {
		return noHit(), false
	}
	r := resolver{
		cfg:    e.cfg,
		frame:  frame,
		cam:    e.cam,
		proj:   e.cam.Projector(),
		buffer: e.buffer,
		ref:    e.ref,
		grid:   e.grid,
		x:      x,
		y:      y,
		ray:    e.cam.RayAt(x, y),
		opts:   opts,
		tol:    e.cfg.Tolerance(opts.Distance),
		axes:   activeAxes(e.cfg, e.ref, opts),
	}
	r.tolSq = r.tol * r.tol
	if !core.Finite(r.ray.Direction) || !core.Finite(r.ray.Origin) {
		return noHit(), false
	}
	h, ok := r.resolve()
	if !e.buffer.Available() {
		e.log.Warnf("pick readback failed at (%.1f, %.1f); no hit until the next render", x, y)
	}
	return h, ok
}

// InstancePathFor returns the chain from the root to instance id of def as
// numbered in the frame of the given epoch.
func (e *Engine) InstancePathFor(def *core.ComponentDefinition, id int, epoch core.Epoch) (core.InstancePath, error) {
	path, err := e.reg.InstancePath(def, id, epoch)
	if err != nil {
		e.log.Warnf("instance path: %v", err)
		return nil, err
	}
	return path, nil
}

// Tooltip returns the overlay item labelling hit at the cursor, or false for
// hits without a label.
func (e *Engine) Tooltip(hit HitPoint, x, y float64) (core.TooltipItem, bool) {
	label := hit.Label()
	if label == "" {
		return core.TooltipItem{}, false
	}
	return core.TooltipItem{
		Text:       label,
		Position:   [2]float32{float32(x) + 16, float32(y) + 16},
		Scale:      1,
		Color:      [4]float32{1, 1, 1, 1},
		Background: [4]float32{0, 0, 0, 0.6},
	}, true
}

// TooltipRenderer lazily builds the glyph atlas used to draw tooltips. The
// engine does not draw; hosts with an overlay pass upload Atlas once and
// feed BuildVertices the items returned by Tooltip.
func (e *Engine) TooltipRenderer() (*core.TooltipRenderer, error) {
	if e.tooltips == nil && e.tooltipsErr == nil {
		e.tooltips, e.tooltipsErr = core.NewTooltipRenderer(nil, 14)
		if e.tooltipsErr != nil {
			e.log.Errorf("tooltip font: %v", e.tooltipsErr)
		}
	}
	return e.tooltips, e.tooltipsErr
}
