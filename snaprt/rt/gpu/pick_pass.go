package gpu

import (
	"encoding/binary"
	"errors"
	"fmt"
	"unsafe"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gekko3d/snap/snaprt/rt/pick"
	"github.com/gekko3d/snap/snaprt/rt/shaders"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/go-gl/mathgl/mgl64"
)

// PickVertex matches the WGSL VertexInput
type PickVertex struct {
	Pos [3]float32
	IDs [2]uint32
}

// glToWebGPU remaps clip z from [-w, w] to [0, w].
var glToWebGPU = mgl64.Mat4{
	1, 0, 0, 0,
	0, 1, 0, 0,
	0, 0, 0.5, 0,
	0, 0, 0.5, 1,
}

// PickPass renders the id buffer on the GPU. It implements pick.Backend; Draw
// blocks until both id targets are read back, so ReadPixel is a memory read.
type PickPass struct {
	Device   *wgpu.Device
	Pipeline *wgpu.RenderPipeline

	CameraBuffer *wgpu.Buffer
	BindGroup    *wgpu.BindGroup

	VertexBuffer *wgpu.Buffer
	VertexCap    uint32

	IDTexture       *wgpu.Texture
	IDView          *wgpu.TextureView
	InstanceTexture *wgpu.Texture
	InstanceView    *wgpu.TextureView
	DepthTexture    *wgpu.Texture
	DepthView       *wgpu.TextureView

	IDReadback       *wgpu.Buffer
	InstanceReadback *wgpu.Buffer

	Width, Height uint32

	ids       []uint32
	instances []uint32
	vertices  []PickVertex
}

var _ pick.Backend = (*PickPass)(nil)

// NewPickPass builds the id pipeline on device. Resources created before a
// failure are released; the layouts are released once the pipeline and bind
// group hold them.
func NewPickPass(device *wgpu.Device) (pass *PickPass, err error) {
	p := &PickPass{Device: device}
	defer func() {
		if err != nil {
			p.Release()
		}
	}()

	shaderModule, err := device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "PickShader",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: shaders.PickWGSL},
	})
	if err != nil {
		return nil, err
	}
	defer shaderModule.Release()

	bgl, err := device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label: "PickCameraBGL",
		Entries: []wgpu.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: wgpu.ShaderStageVertex,
				Buffer: wgpu.BufferBindingLayout{
					Type:           wgpu.BufferBindingTypeUniform,
					MinBindingSize: 64,
				},
			},
		},
	})
	if err != nil {
		return nil, err
	}
	defer bgl.Release()

	pipelineLayout, err := device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		BindGroupLayouts: []*wgpu.BindGroupLayout{bgl},
	})
	if err != nil {
		return nil, err
	}
	defer pipelineLayout.Release()

	idTarget := wgpu.ColorTargetState{
		Format:    wgpu.TextureFormatR32Uint,
		WriteMask: wgpu.ColorWriteMaskAll,
	}
	p.Pipeline, err = device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  "PickPipeline",
		Layout: pipelineLayout,
		Vertex: wgpu.VertexState{
			Module:     shaderModule,
			EntryPoint: "vs_main",
			Buffers: []wgpu.VertexBufferLayout{
				{
					ArrayStride: uint64(unsafe.Sizeof(PickVertex{})),
					StepMode:    wgpu.VertexStepModeVertex,
					Attributes: []wgpu.VertexAttribute{
						{
							Format:         wgpu.VertexFormatFloat32x3,
							Offset:         0,
							ShaderLocation: 0,
						},
						{
							Format:         wgpu.VertexFormatUint32x2,
							Offset:         12,
							ShaderLocation: 1,
						},
					},
				},
			},
		},
		Fragment: &wgpu.FragmentState{
			Module:     shaderModule,
			EntryPoint: "fs_main",
			Targets:    []wgpu.ColorTargetState{idTarget, idTarget},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  wgpu.PrimitiveTopologyTriangleList,
			FrontFace: wgpu.FrontFaceCCW,
			CullMode:  wgpu.CullModeNone,
		},
		DepthStencil: &wgpu.DepthStencilState{
			Format:            wgpu.TextureFormatDepth32Float,
			DepthWriteEnabled: true,
			DepthCompare:      wgpu.CompareFunctionLess,
			StencilFront:      wgpu.StencilFaceState{Compare: wgpu.CompareFunctionAlways},
			StencilBack:       wgpu.StencilFaceState{Compare: wgpu.CompareFunctionAlways},
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return nil, err
	}

	p.CameraBuffer, err = device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "PickCameraBuffer",
		Size:  64,
		Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, err
	}

	p.BindGroup, err = device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  "PickCameraBG",
		Layout: bgl,
		Entries: []wgpu.BindGroupEntry{
			{
				Binding: 0,
				Buffer:  p.CameraBuffer,
				Size:    64,
			},
		},
	})
	if err != nil {
		return nil, err
	}

	return p, nil
}

func (p *PickPass) releaseTargets() {
	for _, v := range []*wgpu.TextureView{p.IDView, p.InstanceView, p.DepthView} {
		if v != nil {
			v.Release()
		}
	}
	for _, t := range []*wgpu.Texture{p.IDTexture, p.InstanceTexture, p.DepthTexture} {
		if t != nil {
			t.Release()
		}
	}
	for _, b := range []*wgpu.Buffer{p.IDReadback, p.InstanceReadback} {
		if b != nil {
			b.Release()
		}
	}
	p.IDView, p.InstanceView, p.DepthView = nil, nil, nil
	p.IDTexture, p.InstanceTexture, p.DepthTexture = nil, nil, nil
	p.IDReadback, p.InstanceReadback = nil, nil
}

func (p *PickPass) createTarget(label string, format wgpu.TextureFormat, usage wgpu.TextureUsage) (*wgpu.Texture, *wgpu.TextureView, error) {
	tex, err := p.Device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         label,
		Size:          wgpu.Extent3D{Width: p.Width, Height: p.Height, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        format,
		Usage:         usage,
	})
	if err != nil {
		return nil, nil, err
	}
	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return nil, nil, err
	}
	return tex, view, nil
}

func (p *PickPass) bytesPerRow() uint32 {
	return (p.Width*4 + 255) & ^uint32(255)
}

func (p *PickPass) Resize(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("pick pass size %dx%d", width, height)
	}
	p.releaseTargets()
	p.Width, p.Height = uint32(width), uint32(height)
	p.ids = make([]uint32, width*height)
	p.instances = make([]uint32, width*height)

	var err error
	attach := wgpu.TextureUsageRenderAttachment | wgpu.TextureUsageCopySrc
	if p.IDTexture, p.IDView, err = p.createTarget("PickIDTex", wgpu.TextureFormatR32Uint, attach); err != nil {
		return err
	}
	if p.InstanceTexture, p.InstanceView, err = p.createTarget("PickInstanceTex", wgpu.TextureFormatR32Uint, attach); err != nil {
		return err
	}
	if p.DepthTexture, p.DepthView, err = p.createTarget("PickDepthTex", wgpu.TextureFormatDepth32Float, wgpu.TextureUsageRenderAttachment); err != nil {
		return err
	}

	size := uint64(p.bytesPerRow()) * uint64(p.Height)
	if p.IDReadback, err = p.Device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "PickIDReadback",
		Size:  size,
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
	}); err != nil {
		return err
	}
	if p.InstanceReadback, err = p.Device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "PickInstanceReadback",
		Size:  size,
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
	}); err != nil {
		return err
	}
	return nil
}

func (p *PickPass) uploadVertices(tris []pick.Triangle) error {
	p.vertices = p.vertices[:0]
	for _, t := range tris {
		for _, v := range t.P {
			p.vertices = append(p.vertices, PickVertex{
				Pos: [3]float32{float32(v[0]), float32(v[1]), float32(v[2])},
				IDs: [2]uint32{t.ID, t.Instance},
			})
		}
	}
	if len(p.vertices) == 0 {
		return nil
	}

	count := uint32(len(p.vertices))
	stride := uint64(unsafe.Sizeof(PickVertex{}))
	if p.VertexBuffer == nil || p.VertexCap < count {
		if p.VertexBuffer != nil {
			p.VertexBuffer.Release()
		}
		p.VertexCap = count + count/2
		var err error
		p.VertexBuffer, err = p.Device.CreateBuffer(&wgpu.BufferDescriptor{
			Label: "PickVertexBuffer",
			Size:  uint64(p.VertexCap) * stride,
			Usage: wgpu.BufferUsageVertex | wgpu.BufferUsageCopyDst,
		})
		if err != nil {
			p.VertexCap = 0
			return err
		}
	}
	size := uint64(count) * stride
	p.Device.GetQueue().WriteBuffer(p.VertexBuffer, 0, unsafe.Slice((*byte)(unsafe.Pointer(&p.vertices[0])), size))
	return nil
}

func (p *PickPass) Draw(viewProj mgl64.Mat4, tris []pick.Triangle) error {
	if p.IDTexture == nil {
		return errors.New("pick pass not sized")
	}
	if err := p.uploadVertices(tris); err != nil {
		return err
	}

	m := glToWebGPU.Mul4(viewProj)
	var vp mgl32.Mat4
	for i := range m {
		vp[i] = float32(m[i])
	}
	p.Device.GetQueue().WriteBuffer(p.CameraBuffer, 0, unsafe.Slice((*byte)(unsafe.Pointer(&vp[0])), 64))

	encoder, err := p.Device.CreateCommandEncoder(nil)
	if err != nil {
		return err
	}
	defer encoder.Release()

	pass := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{
			{
				View:       p.IDView,
				LoadOp:     wgpu.LoadOpClear,
				StoreOp:    wgpu.StoreOpStore,
				ClearValue: wgpu.Color{},
			},
			{
				View:       p.InstanceView,
				LoadOp:     wgpu.LoadOpClear,
				StoreOp:    wgpu.StoreOpStore,
				ClearValue: wgpu.Color{},
			},
		},
		DepthStencilAttachment: &wgpu.RenderPassDepthStencilAttachment{
			View:            p.DepthView,
			DepthLoadOp:     wgpu.LoadOpClear,
			DepthStoreOp:    wgpu.StoreOpStore,
			DepthClearValue: 1,
		},
	})
	if len(p.vertices) > 0 {
		pass.SetPipeline(p.Pipeline)
		pass.SetBindGroup(0, p.BindGroup, nil)
		pass.SetVertexBuffer(0, p.VertexBuffer, 0, uint64(len(p.vertices))*uint64(unsafe.Sizeof(PickVertex{})))
		pass.Draw(uint32(len(p.vertices)), 1, 0, 0)
	}
	if err := pass.End(); err != nil {
		return err
	}

	bytesPerRow := p.bytesPerRow()
	for _, c := range []struct {
		tex *wgpu.Texture
		buf *wgpu.Buffer
	}{{p.IDTexture, p.IDReadback}, {p.InstanceTexture, p.InstanceReadback}} {
		encoder.CopyTextureToBuffer(
			&wgpu.ImageCopyTexture{
				Texture:  c.tex,
				MipLevel: 0,
				Origin:   wgpu.Origin3D{0, 0, 0},
			},
			&wgpu.ImageCopyBuffer{
				Buffer: c.buf,
				Layout: wgpu.TextureDataLayout{
					Offset:       0,
					BytesPerRow:  bytesPerRow,
					RowsPerImage: p.Height,
				},
			},
			&wgpu.Extent3D{Width: p.Width, Height: p.Height, DepthOrArrayLayers: 1},
		)
	}

	cmd, err := encoder.Finish(nil)
	if err != nil {
		return err
	}
	defer cmd.Release()
	p.Device.GetQueue().Submit(cmd)

	if err := p.readback(p.IDReadback, p.ids); err != nil {
		return fmt.Errorf("read face ids: %w", err)
	}
	if err := p.readback(p.InstanceReadback, p.instances); err != nil {
		return fmt.Errorf("read instance ids: %w", err)
	}
	return nil
}

// readback maps buf, waiting for the device, and unpacks its padded rows into dst.
func (p *PickPass) readback(buf *wgpu.Buffer, dst []uint32) error {
	size := buf.GetSize()
	var done, mapped bool
	buf.MapAsync(wgpu.MapModeRead, 0, size, func(status wgpu.BufferMapAsyncStatus) {
		mapped = status == wgpu.BufferMapAsyncStatusSuccess
		done = true
	})
	for !done {
		p.Device.Poll(true, nil)
	}
	if !mapped {
		return errors.New("map readback buffer failed")
	}
	defer buf.Unmap()

	data := buf.GetMappedRange(0, uint(size))
	bytesPerRow := int(p.bytesPerRow())
	w, h := int(p.Width), int(p.Height)
	for y := 0; y < h; y++ {
		row := data[y*bytesPerRow:]
		for x := 0; x < w; x++ {
			dst[y*w+x] = binary.LittleEndian.Uint32(row[x*4:])
		}
	}
	return nil
}

func (p *PickPass) ReadPixel(x, y int) (uint32, uint32, error) {
	w, h := int(p.Width), int(p.Height)
	if x < 0 || y < 0 || x >= w || y >= h {
		return pick.None, pick.None, fmt.Errorf("pixel (%d, %d) outside %dx%d", x, y, w, h)
	}
	i := y*w + x
	return p.ids[i], p.instances[i], nil
}

func (p *PickPass) Release() {
	p.releaseTargets()
	if p.VertexBuffer != nil {
		p.VertexBuffer.Release()
		p.VertexBuffer = nil
	}
	if p.BindGroup != nil {
		p.BindGroup.Release()
		p.BindGroup = nil
	}
	if p.CameraBuffer != nil {
		p.CameraBuffer.Release()
		p.CameraBuffer = nil
	}
	if p.Pipeline != nil {
		p.Pipeline.Release()
		p.Pipeline = nil
	}
}
