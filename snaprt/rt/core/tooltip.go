package core

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

type TextVertex struct {
	Pos   [2]float32
	UV    [2]float32
	Color [4]float32
}

// TooltipItem is one snap label. Position is the preferred top-left corner
// of the text in pixels; the label is shifted to stay inside the viewport.
type TooltipItem struct {
	Text     string
	Position [2]float32
	Scale    float32
	Color    [4]float32
	// Background fills a padded panel behind the text when its alpha is > 0.
	Background [4]float32
}

type GlyphInfo struct {
	UVMin [2]float32
	UVMax [2]float32
	Size  [2]float32
	Off   [2]float32
	Adv   float32
}

const (
	atlasSize = 256
	glyphGap  = 4
)

// TooltipRenderer rasterizes printable ASCII into an alpha atlas and turns
// snap labels into overlay quads for the host renderer. The atlas texel at
// the origin is opaque and backs the label panels.
type TooltipRenderer struct {
	Atlas   *image.Alpha
	Glyphs  map[rune]GlyphInfo
	Face    font.Face
	Padding float32
}

// NewTooltipRenderer uses fontData (OpenType/TrueType) or the bundled Go Regular face when nil.
func NewTooltipRenderer(fontData []byte, fontSize float64) (*TooltipRenderer, error) {
	if fontData == nil {
		fontData = goregular.TTF
	}
	f, err := opentype.Parse(fontData)
	if err != nil {
		return nil, fmt.Errorf("parse tooltip font: %w", err)
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    fontSize,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("tooltip face: %w", err)
	}
	atlas, glyphs := packGlyphs(face)
	return &TooltipRenderer{
		Atlas:   atlas,
		Glyphs:  glyphs,
		Face:    face,
		Padding: 3,
	}, nil
}

// packGlyphs lays the glyphs out in rows, left to right, starting past the
// solid texel block.
func packGlyphs(face font.Face) (*image.Alpha, map[rune]GlyphInfo) {
	atlas := image.NewAlpha(image.Rect(0, 0, atlasSize, atlasSize))
	draw.Draw(atlas, image.Rect(0, 0, 2, 2), image.NewUniform(color.Alpha{A: 0xff}), image.Point{}, draw.Src)

	glyphs := make(map[rune]GlyphInfo)
	x, y, rowHeight := 2+glyphGap, 2, 0
	for r := rune(' '); r <= '~'; r++ {
		bounds, mask, maskp, adv, ok := face.Glyph(fixed.Point26_6{}, r)
		if !ok {
			continue
		}
		w, h := bounds.Dx(), bounds.Dy()
		if x+w >= atlasSize {
			x, y, rowHeight = 2, y+rowHeight+glyphGap, 0
		}
		if y+h >= atlasSize {
			break
		}
		draw.Draw(atlas, image.Rect(x, y, x+w, y+h), mask, maskp, draw.Src)
		glyphs[r] = GlyphInfo{
			UVMin: [2]float32{float32(x) / atlasSize, float32(y) / atlasSize},
			UVMax: [2]float32{float32(x+w) / atlasSize, float32(y+h) / atlasSize},
			Size:  [2]float32{float32(w), float32(h)},
			Off:   [2]float32{float32(bounds.Min.X), float32(bounds.Min.Y)},
			Adv:   float32(adv) / 64,
		}
		x += w + glyphGap
		rowHeight = max(rowHeight, h)
	}
	return atlas, glyphs
}

// quadBuilder appends pixel-space rectangles as two NDC triangles each.
type quadBuilder struct {
	sw, sh float32
	out    []TextVertex
}

func (q *quadBuilder) add(x0, y0, x1, y1 float32, uvMin, uvMax [2]float32, c [4]float32) {
	nx0, ny0 := x0/q.sw*2-1, 1-y0/q.sh*2
	nx1, ny1 := x1/q.sw*2-1, 1-y1/q.sh*2
	q.out = append(q.out,
		TextVertex{Pos: [2]float32{nx0, ny0}, UV: uvMin, Color: c},
		TextVertex{Pos: [2]float32{nx1, ny0}, UV: [2]float32{uvMax[0], uvMin[1]}, Color: c},
		TextVertex{Pos: [2]float32{nx0, ny1}, UV: [2]float32{uvMin[0], uvMax[1]}, Color: c},
		TextVertex{Pos: [2]float32{nx1, ny0}, UV: [2]float32{uvMax[0], uvMin[1]}, Color: c},
		TextVertex{Pos: [2]float32{nx1, ny1}, UV: uvMax, Color: c},
		TextVertex{Pos: [2]float32{nx0, ny1}, UV: [2]float32{uvMin[0], uvMax[1]}, Color: c},
	)
}

// Place returns the top-left text corner of item after keeping its padded
// panel inside a screenW x screenH viewport.
func (tr *TooltipRenderer) Place(item TooltipItem, screenW, screenH int) (float32, float32) {
	w, h := tr.MeasureText(item.Text, item.Scale)
	pad := tr.Padding * item.Scale
	x, y := item.Position[0], item.Position[1]
	x = min(x, float32(screenW)-w-pad)
	y = min(y, float32(screenH)-h-pad)
	return max(x, pad), max(y, pad)
}

// BuildVertices emits an optional background panel and two triangles per glyph
// for each item, in normalized device coordinates.
func (tr *TooltipRenderer) BuildVertices(items []TooltipItem, screenW, screenH int) []TextVertex {
	q := quadBuilder{sw: float32(screenW), sh: float32(screenH), out: make([]TextVertex, 0, len(items)*6)}
	if tr == nil || screenW <= 0 || screenH <= 0 {
		return q.out
	}
	ascent := float32(tr.Face.Metrics().Ascent.Ceil())
	solid := [2]float32{0.5 / atlasSize, 0.5 / atlasSize}

	for _, item := range items {
		x, y := tr.Place(item, screenW, screenH)
		if item.Background[3] > 0 {
			w, h := tr.MeasureText(item.Text, item.Scale)
			pad := tr.Padding * item.Scale
			q.add(x-pad, y-pad, x+w+pad, y+h+pad, solid, solid, item.Background)
		}

		baseline := y + ascent*item.Scale
		for _, r := range item.Text {
			g, ok := tr.Glyphs[r]
			if !ok {
				continue
			}
			q.add(
				x+g.Off[0]*item.Scale, baseline+g.Off[1]*item.Scale,
				x+(g.Off[0]+g.Size[0])*item.Scale, baseline+(g.Off[1]+g.Size[1])*item.Scale,
				g.UVMin, g.UVMax, item.Color,
			)
			x += g.Adv * item.Scale
		}
	}
	return q.out
}

// MeasureText returns the pixel width and height of a single-line label.
func (tr *TooltipRenderer) MeasureText(text string, scale float32) (float32, float32) {
	if tr == nil {
		return 0, 0
	}
	var width float32
	for _, r := range text {
		if g, ok := tr.Glyphs[r]; ok {
			width += g.Adv * scale
		}
	}
	return width, float32(tr.Face.Metrics().Height.Ceil()) * scale
}
