package lines

import (
	"math"
	"sort"

	"github.com/gekko3d/snap/snaprt/rt/core"
	"github.com/go-gl/mathgl/mgl64"
)

// Entry names one line of one flattened instance.
type Entry struct {
	Instance int
	Line     int
}

// ScreenGrid buckets the projected bounding boxes of scene lines into square
// pixel cells. It is rebuilt whenever the frame epoch, the view-projection or
// the viewport size changes.
type ScreenGrid struct {
	cellSize float64
	cells    map[uint64][]int
	entries  []Entry
	// always holds entries that cannot be projected, they are returned by
	// every query.
	always []int

	built bool
	epoch core.Epoch
	vp    mgl64.Mat4
	w, h  int
}

func NewScreenGrid(cellSize float64) *ScreenGrid {
	if cellSize <= 0 {
		cellSize = 32
	}
	return &ScreenGrid{
		cellSize: cellSize,
		cells:    make(map[uint64][]int),
	}
}

func (grid *ScreenGrid) Clear() {
	for k := range grid.cells {
		delete(grid.cells, k)
	}
	grid.entries = grid.entries[:0]
	grid.always = grid.always[:0]
	grid.built = false
}

// Update rebuilds the grid if it was built for another frame or view.
func (grid *ScreenGrid) Update(frame *core.Frame, proj core.Projector) {
	w, h := proj.Size()
	if grid.built && grid.epoch == frame.Epoch && grid.vp == proj.ViewProj() && grid.w == w && grid.h == h {
		return
	}
	grid.Build(frame, proj)
}

func (grid *ScreenGrid) Build(frame *core.Frame, proj core.Projector) {
	grid.Clear()
	grid.built = true
	grid.epoch = frame.Epoch
	grid.vp = proj.ViewProj()
	grid.w, grid.h = proj.Size()

	for i := range frame.Instances {
		inst := &frame.Instances[i]
		for l := range inst.Definition.Lines {
			a, b := inst.Definition.LineEnds(l)
			idx := len(grid.entries)
			grid.entries = append(grid.entries, Entry{Instance: i, Line: l})

			ax, ay, okA := proj.Project(core.TransformPoint(inst.World, a))
			bx, by, okB := proj.Project(core.TransformPoint(inst.World, b))
			if !okA || !okB {
				grid.always = append(grid.always, idx)
				continue
			}
			grid.insert(idx, math.Min(ax, bx), math.Min(ay, by), math.Max(ax, bx), math.Max(ay, by))
		}
	}
}

// maxInsertCells caps the cells one line may occupy.
const maxInsertCells = 4096

func (grid *ScreenGrid) insert(idx int, minX, minY, maxX, maxY float64) {
	// Lines spanning far beyond the viewport are cheaper to check every time.
	// The span is measured in floating point: endpoints near the eye plane
	// project to coordinates that overflow an int cell product.
	spanX := math.Floor(maxX/grid.cellSize) - math.Floor(minX/grid.cellSize) + 1
	spanY := math.Floor(maxY/grid.cellSize) - math.Floor(minY/grid.cellSize) + 1
	if !(spanX*spanY <= maxInsertCells) {
		grid.always = append(grid.always, idx)
		return
	}
	x0, x1 := grid.getCellIndex(minX), grid.getCellIndex(maxX)
	y0, y1 := grid.getCellIndex(minY), grid.getCellIndex(maxY)
	for x := x0; x <= x1; x++ {
		for y := y0; y <= y1; y++ {
			key := grid.hashKey(x, y)
			grid.cells[key] = append(grid.cells[key], idx)
		}
	}
}

// Query returns the lines whose projected bounds come within radius pixels
// of (x, y), in frame order.
func (grid *ScreenGrid) Query(x, y, radius float64) []Entry {
	x0, x1 := grid.getCellIndex(x-radius), grid.getCellIndex(x+radius)
	y0, y1 := grid.getCellIndex(y-radius), grid.getCellIndex(y+radius)

	unique := make(map[int]struct{})
	var ids []int
	add := func(idx int) {
		if _, ok := unique[idx]; !ok {
			unique[idx] = struct{}{}
			ids = append(ids, idx)
		}
	}
	for _, idx := range grid.always {
		add(idx)
	}
	for cx := x0; cx <= x1; cx++ {
		for cy := y0; cy <= y1; cy++ {
			for _, idx := range grid.cells[grid.hashKey(cx, cy)] {
				add(idx)
			}
		}
	}
	sort.Ints(ids)

	out := make([]Entry, len(ids))
	for i, idx := range ids {
		out[i] = grid.entries[idx]
	}
	return out
}

func (grid *ScreenGrid) getCellIndex(pos float64) int {
	return int(math.Floor(pos / grid.cellSize))
}

func (grid *ScreenGrid) hashKey(x, y int) uint64 {
	const p1 = 73856093
	const p2 = 19349663
	return uint64(x*p1 ^ y*p2)
}
