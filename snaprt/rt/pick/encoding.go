package pick

import (
	"sort"

	"github.com/gekko3d/snap/snaprt/rt/core"
	"github.com/go-gl/mathgl/mgl64"
)

// None is the value both id channels hold where nothing was drawn.
const None uint32 = 0

// Encoding packs (definition index, face index) pairs of one frame into a
// single non-zero id. Each definition owns a contiguous range of ids.
type Encoding struct {
	faceBase []uint32 // per definition index, first id minus one
	total    uint32
}

func NewEncoding(frame *core.Frame) Encoding {
	if frame == nil {
		return Encoding{}
	}
	enc := Encoding{faceBase: make([]uint32, len(frame.Definitions))}
	for i, d := range frame.Definitions {
		enc.faceBase[i] = enc.total
		enc.total += uint32(len(d.Faces))
	}
	return enc
}

func (e Encoding) Encode(defIndex, face int) uint32 {
	return e.faceBase[defIndex] + uint32(face) + 1
}

func (e Encoding) Decode(id uint32) (defIndex, face int, ok bool) {
	if id == None || id > e.total {
		return 0, 0, false
	}
	v := id - 1
	// Last definition whose range starts at or before v; empty ranges share a
	// start with their successor, so search for the first start beyond v.
	i := sort.Search(len(e.faceBase), func(i int) bool { return e.faceBase[i] > v }) - 1
	if i < 0 {
		return 0, 0, false
	}
	return i, int(v - e.faceBase[i]), true
}

func EncodeInstance(id int) uint32 {
	return uint32(id) + 1
}

func DecodeInstance(v uint32) (int, bool) {
	if v == None {
		return 0, false
	}
	return int(v - 1), true
}

// Triangle is one world-space triangle tagged with its pick ids.
type Triangle struct {
	P        [3]mgl64.Vec3
	ID       uint32
	Instance uint32
}

// DrawFunc is the draw callback handed to a render. It emits every triangle
// that should be pickable, tagged with ids from enc.
type DrawFunc func(frame *core.Frame, enc Encoding, emit func(Triangle))

// DrawFrame is the default DrawFunc: every face of every instance, disabled
// ones included.
func DrawFrame(frame *core.Frame, enc Encoding, emit func(Triangle)) {
	if frame == nil {
		return
	}
	for _, inst := range frame.Instances {
		def := inst.Definition
		if len(def.Faces) == 0 {
			continue
		}
		world := make([]mgl64.Vec3, len(def.Points))
		for i, p := range def.Points {
			world[i] = core.TransformPoint(inst.World, p)
		}
		instID := EncodeInstance(inst.ID)
		for fi, f := range def.Faces {
			id := enc.Encode(inst.DefIndex, fi)
			for _, tri := range f.Triangles {
				emit(Triangle{
					P:        [3]mgl64.Vec3{world[tri[0]], world[tri[1]], world[tri[2]]},
					ID:       id,
					Instance: instID,
				})
			}
		}
	}
}
