package core

import (
	"github.com/go-gl/mathgl/mgl64"
)

var boxEdges = [12][2]int{
	{0, 1}, {1, 2}, {2, 3}, {3, 0},
	{4, 5}, {5, 6}, {6, 7}, {7, 4},
	{0, 4}, {1, 5}, {2, 6}, {3, 7},
}

// Loops wind counter-clockwise seen from outside.
var boxFaces = [6][4]int{
	{0, 3, 2, 1}, // bottom
	{4, 5, 6, 7}, // top
	{0, 1, 5, 4}, // front (-Y)
	{3, 7, 6, 2}, // back (+Y)
	{0, 4, 7, 3}, // left (-X)
	{1, 2, 6, 5}, // right (+X)
}

// NewBox builds an axis-aligned box definition spanning minB..maxB.
func NewBox(name string, minB, maxB mgl64.Vec3) *ComponentDefinition {
	d := NewDefinition(name)
	for i := 0; i < 8; i++ {
		p := minB
		if i == 1 || i == 2 || i == 5 || i == 6 {
			p[0] = maxB[0]
		}
		if i == 2 || i == 3 || i == 6 || i == 7 {
			p[1] = maxB[1]
		}
		if i >= 4 {
			p[2] = maxB[2]
		}
		d.AddPoint(p)
	}
	for _, e := range boxEdges {
		// Indices are fixed and valid.
		_, _ = d.AddLine(e[0], e[1])
	}
	for _, f := range boxFaces {
		if _, err := d.AddFace(f[:], 0); err != nil {
			// Only a flat box degenerates; keep its edges.
			continue
		}
	}
	return d
}
