package main

import (
	"flag"
	"fmt"
	"math"
	"runtime"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gekko3d/snap"
	"github.com/gekko3d/snap/snaprt/rt/core"
	"github.com/gekko3d/snap/snaprt/rt/gpu"
	"github.com/gekko3d/snap/snaprt/rt/pick"
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/go-gl/mathgl/mgl64"
)

func init() {
	runtime.LockOSThread()
}

var modeNames = map[snap.Mode]string{
	snap.ModeSelect: "select",
	snap.ModeDraw:   "draw",
	snap.ModeCamera: "camera",
}

func demoScene() *core.ComponentDefinition {
	root := core.NewDefinition("model")
	box := core.NewBox("box", mgl64.Vec3{-0.5, -0.5, 0}, mgl64.Vec3{0.5, 0.5, 1})
	row := core.NewDefinition("row")
	for i := 0; i < 3; i++ {
		row.AddInstance(box, core.Translation(float64(i)*2, 0, 0).ObjectToWorld())
	}
	root.AddInstance(row, mgl64.Ident4())
	root.AddInstance(row, core.Translation(0, 3, 0).ObjectToWorld())

	a := root.AddPoint(mgl64.Vec3{-2, -2, 0})
	b := root.AddPoint(mgl64.Vec3{6, 5, 2})
	if _, err := root.AddLine(a, b); err != nil {
		panic(err)
	}
	return root
}

// newGPUBackend requests a headless device for the id pass.
func newGPUBackend() (*gpu.PickPass, error) {
	instance := wgpu.CreateInstance(nil)
	defer instance.Release()
	adapter, err := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		PowerPreference: wgpu.PowerPreferenceHighPerformance,
	})
	if err != nil {
		return nil, err
	}
	device, err := adapter.RequestDevice(nil)
	if err != nil {
		return nil, err
	}
	return gpu.NewPickPass(device)
}

func main() {
	configPath := flag.String("config", "", "YAML file with snapping settings")
	useGPU := flag.Bool("gpu", false, "Render the pick buffer on the GPU")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	cfg := snap.DefaultConfig()
	if *configPath != "" {
		var err error
		if cfg, err = snap.LoadConfig(*configPath); err != nil {
			panic(err)
		}
	}
	cfg.Debug = cfg.Debug || *debug
	logger := snap.NewConfigLogger(cfg)
	if *configPath != "" {
		logger.Infof("loaded config %s", *configPath)
	}

	if err := glfw.Init(); err != nil {
		panic(err)
	}
	defer glfw.Terminate()

	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	window, err := glfw.CreateWindow(1280, 720, "Snap", nil, nil)
	if err != nil {
		panic(err)
	}
	defer window.Destroy()

	var backend pick.Backend = pick.NewRaster()
	if *useGPU {
		pass, err := newGPUBackend()
		if err != nil {
			panic(err)
		}
		defer pass.Release()
		backend = pass
	}

	width, height := window.GetFramebufferSize()
	cam := core.NewCamera(width, height)
	engine, err := snap.NewEngine(demoScene(), cam, backend, cfg, logger)
	if err != nil {
		panic(err)
	}

	mode := snap.ModeDraw
	var anchor *mgl64.Vec3
	var last snap.HitPoint
	var lastOK bool

	window.SetFramebufferSizeCallback(func(w *glfw.Window, width, height int) {
		engine.Resize(width, height)
	})

	window.SetCursorPosCallback(func(w *glfw.Window, xpos, ypos float64) {
		// Cursor coordinates are in window units; the pick buffer is in pixels.
		ww, wh := w.GetSize()
		fw, fh := w.GetFramebufferSize()
		if ww > 0 && wh > 0 {
			xpos *= float64(fw) / float64(ww)
			ypos *= float64(fh) / float64(wh)
		}
		last, lastOK = engine.QueryHit(xpos, ypos, snap.QueryOptions{Mode: mode, ReferencePoint: anchor})
		title := fmt.Sprintf("Snap [%s]", modeNames[mode])
		if lastOK {
			title += fmt.Sprintf(" %s (%.2f, %.2f, %.2f)", last.Kind,
				last.Position.X(), last.Position.Y(), last.Position.Z())
			// The window has no overlay pass; the label goes to the title instead of tooltip quads.
			if tip, ok := engine.Tooltip(last, xpos, ypos); ok {
				title += " " + tip.Text
			}
		}
		w.SetTitle(title)
	})

	window.SetMouseButtonCallback(func(w *glfw.Window, button glfw.MouseButton, action glfw.Action, mods glfw.ModifierKey) {
		if button != glfw.MouseButtonLeft || action != glfw.Press {
			return
		}
		if !lastOK {
			anchor = nil
			return
		}
		p := last.Position
		anchor = &p
		if last.Definition != nil {
			path, err := engine.InstancePathFor(last.Definition, last.InstanceID, last.Epoch)
			if err == nil {
				logger.Infof("picked %s #%d at depth %d", last.Definition.Name, last.InstanceID, len(path)-1)
			}
		}
	})

	window.SetKeyCallback(func(w *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
		if action != glfw.Press && action != glfw.Repeat {
			return
		}
		switch key {
		case glfw.KeyEscape:
			w.SetShouldClose(true)
		case glfw.KeyTab:
			mode = (mode + 1) % 3
			anchor = nil
		case glfw.KeyLeft, glfw.KeyRight:
			angle := 0.05
			if key == glfw.KeyLeft {
				angle = -angle
			}
			s, c := math.Sin(angle), math.Cos(angle)
			e := cam.Eye.Sub(cam.Target)
			cam.Eye = cam.Target.Add(mgl64.Vec3{e.X()*c - e.Y()*s, e.X()*s + e.Y()*c, e.Z()})
		case glfw.KeyUp, glfw.KeyDown:
			f := 0.9
			if key == glfw.KeyDown {
				f = 1 / f
			}
			cam.Eye = cam.Target.Add(cam.Eye.Sub(cam.Target).Mul(f))
		}
	})

	for !window.ShouldClose() {
		glfw.PollEvents()
		// Failures are logged; queries report nothing until a render succeeds.
		_ = engine.RenderFrame()
		glfw.WaitEventsTimeout(1.0 / 60)
	}
}
