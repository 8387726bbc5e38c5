package pick

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Raster is a CPU Backend: a z-buffered triangle rasterizer writing the two
// id channels. Faces are double sided.
type Raster struct {
	Width  int
	Height int

	ids       []uint32
	instances []uint32
	depth     []float64 // NDC z, +Inf where empty
}

func NewRaster() *Raster {
	return &Raster{}
}

func (r *Raster) Resize(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("raster size %dx%d", width, height)
	}
	n := width * height
	r.Width, r.Height = width, height
	r.ids = make([]uint32, n)
	r.instances = make([]uint32, n)
	r.depth = make([]float64, n)
	r.clear()
	return nil
}

func (r *Raster) clear() {
	for i := range r.depth {
		r.ids[i] = None
		r.instances[i] = None
		r.depth[i] = math.Inf(1)
	}
}

func (r *Raster) Draw(viewProj mgl64.Mat4, tris []Triangle) error {
	if r.Width == 0 || r.Height == 0 {
		return errors.New("raster not sized")
	}
	r.clear()

	var in, out [8]mgl64.Vec4
	for _, t := range tris {
		for i, p := range t.P {
			in[i] = viewProj.Mul4x1(p.Vec4(1))
		}
		n := clipNear(in[:3], out[:0])
		if n < 3 {
			continue
		}
		// Clipped polygons are convex; fan them.
		for i := 1; i+1 < n; i++ {
			r.rasterize(out[0], out[i], out[i+1], t.ID, t.Instance)
		}
	}
	return nil
}

func (r *Raster) ReadPixel(x, y int) (uint32, uint32, error) {
	if x < 0 || y < 0 || x >= r.Width || y >= r.Height {
		return None, None, fmt.Errorf("pixel (%d, %d) outside %dx%d", x, y, r.Width, r.Height)
	}
	i := y*r.Width + x
	return r.ids[i], r.instances[i], nil
}

// clipNear clips a clip-space polygon against z >= -w (the GL near plane) and
// appends the result to dst, returning its vertex count.
func clipNear(poly []mgl64.Vec4, dst []mgl64.Vec4) int {
	dist := func(v mgl64.Vec4) float64 { return v[2] + v[3] }
	n := len(poly)
	for i := 0; i < n; i++ {
		a, b := poly[i], poly[(i+1)%n]
		da, db := dist(a), dist(b)
		if da >= 0 {
			dst = append(dst, a)
		}
		if (da >= 0) != (db >= 0) {
			t := da / (da - db)
			dst = append(dst, a.Add(b.Sub(a).Mul(t)))
		}
	}
	return len(dst)
}

func (r *Raster) toScreen(v mgl64.Vec4) (x, y, z float64, ok bool) {
	if v[3] <= 1e-12 {
		return 0, 0, 0, false
	}
	inv := 1 / v[3]
	nx, ny, nz := v[0]*inv, v[1]*inv, v[2]*inv
	return (nx + 1) / 2 * float64(r.Width), (1 - ny) / 2 * float64(r.Height), nz, true
}

// rasterize fills a clip-space triangle, sampling at pixel centers. Depth is
// NDC z, which is affine in screen space.
func (r *Raster) rasterize(a, b, c mgl64.Vec4, id, instance uint32) {
	x0, y0, z0, ok0 := r.toScreen(a)
	x1, y1, z1, ok1 := r.toScreen(b)
	x2, y2, z2, ok2 := r.toScreen(c)
	if !ok0 || !ok1 || !ok2 {
		return
	}

	area := (x1-x0)*(y2-y0) - (x2-x0)*(y1-y0)
	if math.Abs(area) < 1e-12 {
		return
	}
	invArea := 1 / area

	minX := max(int(math.Floor(min(x0, x1, x2))), 0)
	maxX := min(int(math.Ceil(max(x0, x1, x2))), r.Width-1)
	minY := max(int(math.Floor(min(y0, y1, y2))), 0)
	maxY := min(int(math.Ceil(max(y0, y1, y2))), r.Height-1)

	for py := minY; py <= maxY; py++ {
		sy := float64(py) + 0.5
		row := py * r.Width
		for px := minX; px <= maxX; px++ {
			sx := float64(px) + 0.5
			w0 := ((x1-sx)*(y2-sy) - (x2-sx)*(y1-sy)) * invArea
			w1 := ((x2-sx)*(y0-sy) - (x0-sx)*(y2-sy)) * invArea
			w2 := 1 - w0 - w1
			if w0 < 0 || w1 < 0 || w2 < 0 {
				continue
			}
			z := w0*z0 + w1*z1 + w2*z2
			if z > 1 {
				continue
			}
			i := row + px
			if z >= r.depth[i] {
				continue
			}
			r.depth[i] = z
			r.ids[i] = id
			r.instances[i] = instance
		}
	}
}
