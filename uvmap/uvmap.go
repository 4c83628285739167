// Package uvmap describes parametric surfaces on the sphere: mappings from
// the unit UV square [0,1]² to homogeneous 3D positions.
//
// Two kinds of maps exist. HEALPix maps cover one (order, pix) pixel and can
// be subdivided into their four children; function maps wrap an arbitrary
// caller supplied mapping.
package uvmap

import (
	"errors"

	"github.com/gogpu/hips/geom"
	"github.com/gogpu/hips/healpix"
)

// ErrNotSubdividable is returned by Subdivide for maps that are not HEALPix
// pixels.
var ErrNotSubdividable = errors.New("uvmap: only healpix maps can be subdivided")

// Kind identifies the variant of a Map.
type Kind uint8

const (
	// KindHealpix is a map over a single HEALPix pixel.
	KindHealpix Kind = iota + 1

	// KindFunc is a map backed by a caller supplied function.
	KindFunc
)

// Func maps a UV coordinate to a homogeneous position.
type Func func(uv [2]float64) geom.Vec4

// NormalFunc returns the surface normal at a UV coordinate.
type NormalFunc func(uv [2]float64) geom.Vec3

// Map is a parametric surface from [0,1]² to homogeneous positions.
// The zero value is not usable; create maps with NewHealpix or NewFunc.
type Map struct {
	kind Kind

	// HEALPix variant.
	order      int
	pix        int
	mat        geom.Mat3
	swapped    bool
	atInfinity bool

	// Func variant.
	fn     Func
	normal NormalFunc
}

// NewHealpix returns the map of the pixel (order, pix).
//
// swap exchanges the two UV axes, which flips the winding of the quad so
// that it faces the inside of the sphere. atInfinity selects w = 0 for the
// mapped positions (stars, deep sky surveys); otherwise w = 1 (planet
// surfaces seen from nearby).
func NewHealpix(order, pix int, swap, atInfinity bool) Map {
	m := healpix.Mat3(order, pix)
	if swap {
		m = m.SwapColumns01()
	}
	return Map{
		kind:       KindHealpix,
		order:      order,
		pix:        pix,
		mat:        m,
		swapped:    swap,
		atInfinity: atInfinity,
	}
}

// NewFunc returns a map backed by fn. normal may be nil.
func NewFunc(fn Func, normal NormalFunc) Map {
	return Map{kind: KindFunc, fn: fn, normal: normal}
}

// Kind returns the variant of the map.
func (m Map) Kind() Kind { return m.kind }

// Order returns the HEALPix order of the map, or -1 for function maps.
func (m Map) Order() int {
	if m.kind != KindHealpix {
		return -1
	}
	return m.order
}

// Pix returns the HEALPix pixel of the map, or -1 for function maps.
func (m Map) Pix() int {
	if m.kind != KindHealpix {
		return -1
	}
	return m.pix
}

// Swapped reports whether the UV axes are exchanged.
func (m Map) Swapped() bool { return m.swapped }

// AtInfinity reports whether the map produces points at infinity.
func (m Map) AtInfinity() bool { return m.atInfinity }

// At maps a UV coordinate to a homogeneous position.
func (m Map) At(uv [2]float64) geom.Vec4 {
	if m.kind == KindFunc {
		return m.fn(uv)
	}
	v := healpix.XY2Vec(m.mat.MulVec2(uv))
	w := 1.0
	if m.atInfinity {
		w = 0
	}
	return v.Vec4(w)
}

// Normal returns the surface normal at uv. HEALPix maps are on the unit
// sphere so the normal is the position itself. The second result is false
// for function maps created without a normal function.
func (m Map) Normal(uv [2]float64) (geom.Vec3, bool) {
	switch {
	case m.kind == KindHealpix:
		return m.At(uv).XYZ().Normalize(), true
	case m.normal != nil:
		return m.normal(uv), true
	}
	return geom.Vec3{}, false
}

// Subdivide returns the four maps of the children pixels at order+1.
// Child i is the pixel 4·pix + i.
func (m Map) Subdivide() ([4]Map, error) {
	var out [4]Map
	if m.kind != KindHealpix {
		return out, ErrNotSubdividable
	}
	for i := range 4 {
		out[i] = NewHealpix(m.order+1, m.pix*4+i, m.swapped, m.atInfinity)
	}
	return out, nil
}

// Corners returns the positions of the four UV corners
// (0,0), (1,0), (0,1), (1,1).
func (m Map) Corners() [4]geom.Vec4 {
	var out [4]geom.Vec4
	for i := range 4 {
		out[i] = m.At([2]float64{float64(i % 2), float64(i / 2)})
	}
	return out
}

// BoundingCap returns the cap centered on the normalized centroid of the
// four corners, with the minimum corner dot product as aperture.
func (m Map) BoundingCap() geom.Cap {
	c := m.Corners()
	return geom.CapFromPoints(c[0].XYZ(), c[1].XYZ(), c[2].XYZ(), c[3].XYZ())
}

// Grid evaluates the map on a regular (n+1)×(n+1) lattice. The result is
// row major with v as the row index.
func (m Map) Grid(n int) []geom.Vec4 {
	if n < 1 {
		n = 1
	}
	out := make([]geom.Vec4, 0, (n+1)*(n+1))
	for i := range n + 1 {
		for j := range n + 1 {
			out = append(out, m.At([2]float64{float64(j) / float64(n), float64(i) / float64(n)}))
		}
	}
	return out
}
