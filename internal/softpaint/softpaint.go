// Package softpaint draws HiPS quads into an image with a software
// rasterizer. It backs the command line renderer and the engine tests that
// need actual pixels.
package softpaint

import (
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"

	"github.com/gogpu/hips"
	"github.com/gogpu/hips/geom"
	"github.com/gogpu/hips/projection"
)

// RGBA is a color with float components in [0, 1], not premultiplied.
type RGBA struct {
	R, G, B, A float64
}

// Painter implements hips.Painter on an NRGBA image.
type Painter struct {
	img  *image.NRGBA
	proj projection.Projection

	// Quads counts the quads painted since the last Clear.
	Quads int
}

// New returns a painter drawing into img through proj.
func New(img *image.NRGBA, proj projection.Projection) *Painter {
	return &Painter{img: img, proj: proj}
}

// Image returns the target image.
func (p *Painter) Image() *image.NRGBA { return p.img }

// Clear fills the image with c.
func (p *Painter) Clear(c color.Color) {
	draw.Draw(p.img, p.img.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
	p.Quads = 0
}

// vertex is a projected grid point.
type vertex struct {
	x, y float64
	uv   [2]float64
}

// PaintQuad implements hips.Painter.
func (p *Painter) PaintQuad(q hips.Quad) error {
	n := max(q.Split, 1)
	grid := q.Map.Grid(n)
	view := make([]geom.Vec4, len(grid))
	for i, g := range grid {
		v := q.Rotation.MulVec3(g.XYZ())
		view[i] = geom.Vec4{v[0], v[1], v[2], g[3]}
	}

	var left, right projection.Projection
	if p.proj.HasDiscontinuity() {
		left, right, _ = p.proj.Split()
	}
	for i := range n {
		for j := range n {
			idx := [4]int{i*(n+1) + j, i*(n+1) + j + 1, (i+1)*(n+1) + j, (i+1)*(n+1) + j + 1}
			uv := [4][2]float64{
				{float64(j) / float64(n), float64(i) / float64(n)},
				{float64(j+1) / float64(n), float64(i) / float64(n)},
				{float64(j) / float64(n), float64(i+1) / float64(n)},
				{float64(j+1) / float64(n), float64(i+1) / float64(n)},
			}
			var cell [4]geom.Vec4
			for k, id := range idx {
				cell[k] = view[id]
			}
			if left != nil && p.crossesDiscontinuity(cell) {
				p.paintCell(left, cell, uv, &q)
				p.paintCell(right, cell, uv, &q)
				continue
			}
			p.paintCell(p.proj, cell, uv, &q)
		}
	}
	p.Quads++
	return nil
}

func (p *Painter) crossesDiscontinuity(c [4]geom.Vec4) bool {
	for _, e := range [4][2]int{{0, 1}, {1, 3}, {3, 2}, {2, 0}} {
		if p.proj.IntersectsDiscontinuity(c[e[0]].XYZ(), c[e[1]].XYZ()) {
			return true
		}
	}
	return false
}

func (p *Painter) paintCell(proj projection.Projection, cell [4]geom.Vec4, uv [4][2]float64, q *hips.Quad) {
	b := p.img.Bounds()
	w, h := float64(b.Dx()), float64(b.Dy())
	var vs [4]vertex
	for k, c := range cell {
		clip := proj.Project(c)
		if clip[3] <= 0 {
			return
		}
		ndc := projection.NDC(clip)
		vs[k] = vertex{
			x:  (ndc[0] + 1) / 2 * w,
			y:  (1 - ndc[1]) / 2 * h,
			uv: uv[k],
		}
	}
	p.fillTriangle(vs[0], vs[1], vs[3], q)
	p.fillTriangle(vs[0], vs[3], vs[2], q)
}

// fillTriangle rasterizes a triangle with pixel center sampling. Both
// windings are accepted.
func (p *Painter) fillTriangle(a, b, c vertex, q *hips.Quad) {
	area := edge(a, b, c.x, c.y)
	if math.Abs(area) < 1e-12 {
		return
	}
	bounds := p.img.Bounds()
	x0 := max(int(math.Floor(min(a.x, b.x, c.x))), bounds.Min.X)
	x1 := min(int(math.Ceil(max(a.x, b.x, c.x))), bounds.Max.X-1)
	y0 := max(int(math.Floor(min(a.y, b.y, c.y))), bounds.Min.Y)
	y1 := min(int(math.Ceil(max(a.y, b.y, c.y))), bounds.Max.Y-1)

	for y := y0; y <= y1; y++ {
		py := float64(y) + 0.5
		for x := x0; x <= x1; x++ {
			px := float64(x) + 0.5
			w0 := edge(b, c, px, py) / area
			w1 := edge(c, a, px, py) / area
			w2 := 1 - w0 - w1
			if w0 < 0 || w1 < 0 || w2 < 0 {
				continue
			}
			uv := [2]float64{
				w0*a.uv[0] + w1*b.uv[0] + w2*c.uv[0],
				w0*a.uv[1] + w1*b.uv[1] + w2*c.uv[1],
			}
			p.blend(x, y, p.shade(uv, q))
		}
	}
}

func edge(a, b vertex, x, y float64) float64 {
	return (b.x-a.x)*(y-a.y) - (b.y-a.y)*(x-a.x)
}

// shade returns the color of a quad at a tile UV coordinate.
func (p *Painter) shade(uv [2]float64, q *hips.Quad) RGBA {
	c := RGBA{q.Color[0], q.Color[1], q.Color[2], q.Color[3] * q.Fade}
	if q.Texture == nil || q.Texture.Image == nil {
		return c
	}
	t := q.UV.Apply(uv)
	tex := q.Texture.Image
	tb := tex.Bounds()
	tx := tb.Min.X + clamp(int(t[0]*float64(tb.Dx())), 0, tb.Dx()-1)
	ty := tb.Min.Y + clamp(int(t[1]*float64(tb.Dy())), 0, tb.Dy()-1)
	s := tex.NRGBAAt(tx, ty)
	c.R *= float64(s.R) / 255
	c.G *= float64(s.G) / 255
	c.B *= float64(s.B) / 255
	c.A *= float64(s.A) / 255
	return c
}

// blend composites c over the pixel (x, y).
func (p *Painter) blend(x, y int, c RGBA) {
	if c.A <= 0 {
		return
	}
	d := p.img.NRGBAAt(x, y)
	da := float64(d.A) / 255
	a := c.A + da*(1-c.A)
	mix := func(s float64, dc uint8) uint8 {
		v := (s*c.A + float64(dc)/255*da*(1-c.A)) / a
		return uint8(math.Round(clampf(v) * 255))
	}
	p.img.SetNRGBA(x, y, color.NRGBA{
		R: mix(c.R, d.R),
		G: mix(c.G, d.G),
		B: mix(c.B, d.B),
		A: uint8(math.Round(clampf(a) * 255)),
	})
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}

func clampf(v float64) float64 {
	return max(0, min(v, 1))
}
