package hips

import (
	"math"

	"github.com/gogpu/hips/frames"
	"github.com/gogpu/hips/geom"
	"github.com/gogpu/hips/healpix"
	"github.com/gogpu/hips/projection"
	"github.com/gogpu/hips/uvmap"
)

// MaxRenderOrder is the highest order the renderer descends to.
const MaxRenderOrder = 9

// traverseQueueSize is the capacity of the traversal ring buffer.
const traverseQueueSize = 1024

// Iterate walks the HEALPix tree breadth first from the twelve base
// pixels. fn is called for each visited pixel; the children of a pixel are
// visited when fn returns true. Iterate stops at the first error of fn and
// returns ErrQueueOverflow if too many pixels are pending at once.
func Iterate(fn func(order, pix int) (bool, error)) error {
	type node struct{ order, pix int }
	var (
		queue      [traverseQueueSize]node
		start, cnt int
	)
	for pix := range healpix.NPix(0) {
		queue[cnt] = node{0, pix}
		cnt++
	}
	for cnt > 0 {
		n := queue[start]
		start = (start + 1) % len(queue)
		cnt--

		descend, err := fn(n.order, n.pix)
		if err != nil {
			return err
		}
		if !descend {
			continue
		}
		if cnt+4 >= len(queue) {
			return ErrQueueOverflow
		}
		for i := range 4 {
			queue[(start+cnt)%len(queue)] = node{n.order + 1, n.pix*4 + i}
			cnt++
		}
	}
	return nil
}

// RenderContext describes a frame to render.
type RenderContext struct {
	Projection projection.Projection

	// Observer gives the rotation from the survey frame to the view frame.
	// A nil Observer uses frames.NewStatic.
	Observer frames.Observer

	Painter Painter

	// Color multiplies the tile colors. The zero value is opaque white.
	Color [4]float64

	// Angle is the apparent angular diameter of the rendered body in
	// radians. Zero means the whole sky; smaller values render a planet
	// seen from outside.
	Angle float64

	// FramebufferWidth is the width of the target in pixels. Zero uses the
	// width of the projection window.
	FramebufferWidth float64
}

func (rc *RenderContext) observer() frames.Observer {
	if rc.Observer == nil {
		return frames.NewStatic()
	}
	return rc.Observer
}

// RenderOrder returns the order at which the tiles of the survey have
// about the resolution of the screen, and the flags to render them with.
func (s *Survey) RenderOrder(rc *RenderContext) (int, Flags) {
	w := rc.FramebufferWidth
	if w <= 0 {
		w, _ = rc.Projection.WindowSize()
	}
	angle := rc.Angle
	if angle <= 0 {
		angle = 2 * math.Pi
	}
	tw := s.tileWidth
	if tw <= 0 {
		tw = DefaultTileWidth
	}
	pixPerRad := w / rc.Projection.FovX()
	order := int(math.Round(math.Log2(pixPerRad * angle / (4 * math.Sqrt2 * float64(tw)))))

	var flags Flags
	if angle < 2*math.Pi {
		flags |= Exterior
	}
	if order < -5 && s.HasAllsky() {
		flags |= ForceAllsky
	}
	order = min(order, MaxRenderOrder)
	if s.maxOrder > 0 {
		order = min(order, s.maxOrder)
	}
	return max(order, s.minOrder), flags
}

// RenderTraverse calls fn for every visible tile at the render order of
// rc, parents first. The flags passed to fn are those returned by
// RenderOrder.
func (s *Survey) RenderTraverse(rc *RenderContext, fn func(order, pix int, flags Flags) error) error {
	if !s.Update() {
		return nil
	}
	return s.traverse(rc, fn)
}

// traverse is RenderTraverse on a survey already updated for this frame.
func (s *Survey) traverse(rc *RenderContext, fn func(order, pix int, flags Flags) error) error {
	order, flags := s.RenderOrder(rc)
	rot := rc.observer().Rotation(s.frame, frames.View)
	outside := flags&Exterior == 0

	return Iterate(func(o, p int) (bool, error) {
		m := uvmap.NewHealpix(o, p, true, outside)
		if isClipped(rc.Projection, m, rot, o) {
			return false, nil
		}
		if o < order {
			return true, nil
		}
		return false, fn(o, p, flags)
	})
}

// isClipped reports whether the tile is certainly outside the view.
func isClipped(proj projection.Projection, m uvmap.Map, rot geom.Mat3, order int) bool {
	if proj.ClipCap(m.BoundingCap(), rot) {
		return true
	}
	if order < 2 {
		return false
	}
	var clip [4]geom.Vec4
	for i, c := range m.Corners() {
		v := rot.MulVec3(c.XYZ())
		clip[i] = proj.Project(geom.Vec4{v[0], v[1], v[2], c[3]})
	}
	return projection.IsQuadClipped(clip)
}
