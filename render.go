package hips

import (
	"errors"

	"github.com/gogpu/hips/frames"
	"github.com/gogpu/hips/geom"
	"github.com/gogpu/hips/uvmap"
)

// Quad is a tile to draw.
type Quad struct {
	// Frame is the frame of the survey the tile belongs to.
	Frame frames.Frame

	// Rotation turns Frame into the view frame.
	Rotation geom.Mat3

	// Map is the UV map of the tile.
	Map uvmap.Map

	// Texture is nil for a solid color quad.
	Texture *Texture

	// UV maps Map coordinates into Texture.
	UV UVRect

	// Split is the number of subdivisions per side.
	Split int

	Fade  float64
	Color [4]float64

	Order, Pix int
}

// Painter receives the quads of a frame.
type Painter interface {
	PaintQuad(q Quad) error
}

// PainterFunc adapts a function to the Painter interface.
type PainterFunc func(q Quad) error

// PaintQuad calls f(q).
func (f PainterFunc) PaintQuad(q Quad) error { return f(q) }

// Progress receives the loading progress of surveys after each render.
type Progress interface {
	Report(id, label string, loaded, total int)
}

// ProgressFunc adapts a function to the Progress interface.
type ProgressFunc func(id, label string, loaded, total int)

// Report calls f.
func (f ProgressFunc) Report(id, label string, loaded, total int) {
	f(id, label, loaded, total)
}

var opaqueWhite = [4]float64{1, 1, 1, 1}

// Render draws the visible tiles of the survey with rc.Painter and
// returns the number of quads painted. Tiles are loaded on the worker
// pool; a survey that is not ready renders nothing.
func (s *Survey) Render(rc *RenderContext) (int, error) {
	if rc.Painter == nil {
		return 0, ErrNoPainter
	}
	color := rc.Color
	if color == [4]float64{} {
		color = opaqueWhite
	}
	if color[3] == 0 {
		return 0, nil
	}
	if !s.Update() {
		return 0, nil
	}

	rot := rc.observer().Rotation(s.frame, frames.View)
	var painted, loaded, total int
	err := s.traverse(rc, func(order, pix int, flags Flags) error {
		total++
		res := s.TileTexture(order, pix, flags|LoadInThread)
		if res.Complete {
			loaded++
		}
		q := Quad{
			Frame:    s.frame,
			Rotation: rot,
			Map:      res.Map,
			Texture:  res.Texture,
			UV:       res.UV,
			Split:    res.Split,
			Fade:     res.Fade,
			Color:    color,
			Order:    order,
			Pix:      pix,
		}
		if res.Texture == nil {
			if s.opts.fillColor == nil {
				return nil
			}
			fill := *s.opts.fillColor
			for i := range q.Color {
				q.Color[i] *= fill[i]
			}
		}
		if err := rc.Painter.PaintQuad(q); err != nil {
			return err
		}
		painted++
		return nil
	})
	if errors.Is(err, ErrQueueOverflow) {
		s.engine.log.Warn("hips: traversal aborted", "url", s.url, "err", err)
	}
	if p := s.engine.opts.progress; p != nil {
		p.Report(s.url, s.Label(), loaded, total)
	}
	return painted, err
}
