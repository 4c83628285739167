// Package projection maps view-space directions to normalized device
// coordinates and back.
//
// The view frame looks toward -Z with +X to the right and +Y up. Project
// returns homogeneous clip coordinates: a point is inside the viewport when
// w > 0 and |x|, |y| <= w. Unproject takes normalized device coordinates in
// [-1, 1]² and returns a unit view direction.
//
// Cylindrical and pseudo-cylindrical projections (mercator, hammer,
// mollweide) are discontinuous along the half plane behind the viewer.
// Geometry crossing it is drawn twice, once with each half returned by
// Split.
package projection

import (
	"errors"
	"fmt"
	"math"

	"github.com/gogpu/hips/geom"
	"github.com/gogpu/hips/healpix"
)

// ErrUnknownKind is returned by New and ParseKind for unsupported
// projection kinds.
var ErrUnknownKind = errors.New("projection: unknown kind")

// Kind identifies a projection.
type Kind uint8

// Supported projection kinds.
const (
	KindPerspective Kind = iota + 1
	KindStereographic
	KindMercator
	KindHammer
	KindMollweide
	KindHealpix
	KindJNowView
)

var kindNames = map[Kind]string{
	KindPerspective:   "perspective",
	KindStereographic: "stereographic",
	KindMercator:      "mercator",
	KindHammer:        "hammer",
	KindMollweide:     "mollweide",
	KindHealpix:       "healpix",
	KindJNowView:      "jnow_view",
}

// String returns the lower case name of the kind.
func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// ParseKind returns the kind with the given name. Only the kinds accepted by
// New can be parsed.
func ParseKind(name string) (Kind, error) {
	for k, s := range kindNames {
		if s == name && k != KindHealpix && k != KindJNowView {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownKind, name)
}

// Projection is the contract the renderer and the traversal consume.
type Projection interface {
	Kind() Kind
	Name() string

	// Project maps a view-space position to clip coordinates.
	Project(v geom.Vec4) geom.Vec4

	// Unproject maps normalized device coordinates to a unit view
	// direction. ok is false outside the valid domain.
	Unproject(ndc [2]float64) (v geom.Vec3, ok bool)

	// ClipCap reports whether the cap, once rotated to the view frame by
	// rot, lies entirely outside the visible region. It may return false
	// for caps that are in fact invisible, never the reverse.
	ClipCap(c geom.Cap, rot geom.Mat3) bool

	HasDiscontinuity() bool

	// IntersectsDiscontinuity reports whether the segment between the two
	// view directions crosses the discontinuity.
	IntersectsDiscontinuity(a, b geom.Vec3) bool

	// Split returns the two halves of a discontinuous projection. ok is
	// false for continuous projections and for halves.
	Split() (left, right Projection, ok bool)

	FovX() float64
	WindowSize() (w, h float64)
}

// New returns a projection of the given kind with horizontal field of view
// fovx (radians) for a window of w×h pixels.
func New(kind Kind, fovx, w, h float64) (Projection, error) {
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("projection: invalid window size %vx%v", w, h)
	}
	b := base{kind: kind, fovx: fovx, w: w, h: h}
	aspect := w / h
	switch kind {
	case KindPerspective:
		fovy := 2 * math.Atan(math.Tan(fovx/2)/aspect)
		b.sx = math.Tan(fovx / 2)
		b.sy = b.sx / aspect
		p := &perspective{base: b, mat: geom.InfinitePerspective(fovy, aspect, 0.1)}
		p.viewport = viewportCap(p)
		return p, nil
	case KindStereographic:
		b.sx = 2 * math.Tan(fovx/4)
		b.sy = b.sx / aspect
		p := &stereographic{base: b}
		p.viewport = viewportCap(p)
		return p, nil
	case KindMercator, KindHammer, KindMollweide:
		b.sx = fovx / 2
		b.sy = b.sx / aspect
		p := &cylindrical{base: b}
		p.viewport = viewportCap(p)
		return p, nil
	}
	return nil, fmt.Errorf("%w: %v", ErrUnknownKind, kind)
}

type base struct {
	kind     Kind
	fovx     float64
	w, h     float64
	sx, sy   float64
	viewport geom.Cap
}

func (b *base) Kind() Kind                 { return b.kind }
func (b *base) Name() string               { return b.kind.String() }
func (b *base) FovX() float64              { return b.fovx }
func (b *base) WindowSize() (w, h float64) { return b.w, b.h }

func (b *base) ClipCap(c geom.Cap, rot geom.Mat3) bool {
	return !b.viewport.Intersects(c.Rotate(rot))
}

func (b *base) HasDiscontinuity() bool                      { return false }
func (b *base) IntersectsDiscontinuity(_, _ geom.Vec3) bool { return false }
func (b *base) Split() (Projection, Projection, bool)       { return nil, nil, false }

// viewportCap returns a cap that contains every direction visible through
// p, computed from samples of the viewport border. It falls back to the full
// sphere when the border leaves the projection domain.
func viewportCap(p Projection) geom.Cap {
	const steps = 8
	center, ok := p.Unproject([2]float64{0, 0})
	if !ok {
		return geom.FullSphere
	}
	c := geom.Cap{Axis: center, Cos: 1}
	for i := range steps {
		t := -1 + 2*float64(i)/steps
		for _, ndc := range [4][2]float64{{t, -1}, {1, t}, {-t, 1}, {-1, -t}} {
			v, ok := p.Unproject(ndc)
			if !ok {
				return geom.FullSphere
			}
			c.Cos = min(c.Cos, center.Dot(v))
		}
	}
	// Widen a little so that the cap stays conservative between samples.
	a := c.Angle() * 1.05
	if a >= math.Pi {
		return geom.FullSphere
	}
	c.Cos = math.Cos(a)
	return c
}

type perspective struct {
	base
	mat geom.Mat4
}

func (p *perspective) Project(v geom.Vec4) geom.Vec4 {
	return p.mat.MulVec4(v)
}

func (p *perspective) Unproject(ndc [2]float64) (geom.Vec3, bool) {
	return geom.Vec3{ndc[0] * p.sx, ndc[1] * p.sy, -1}.Normalize(), true
}

type stereographic struct {
	base
}

func (p *stereographic) Project(v geom.Vec4) geom.Vec4 {
	d := v.XYZ().Normalize()
	if d[2] >= 1 {
		// The point behind the viewer maps to infinity.
		return geom.Vec4{}
	}
	k := 2 / (1 - d[2])
	return geom.Vec4{d[0] * k / p.sx, d[1] * k / p.sy, 0, 1}
}

func (p *stereographic) Unproject(ndc [2]float64) (geom.Vec3, bool) {
	x, y := ndc[0]*p.sx, ndc[1]*p.sy
	lqq := 0.25 * (x*x + y*y)
	return geom.Vec3{x, y, lqq - 1}.Mul(1 / (lqq + 1)), true
}

// cylindrical implements the projections parameterized by longitude and
// latitude around the view direction. side is 0 for the full projection,
// -1 for the left half and +1 for the right half.
type cylindrical struct {
	base
	side int
}

func lonLat(v geom.Vec3) (lon, lat float64) {
	v = v.Normalize()
	return math.Atan2(v[0], -v[2]), math.Asin(max(-1, min(1, v[1])))
}

func fromLonLat(lon, lat float64) geom.Vec3 {
	cl := math.Cos(lat)
	return geom.Vec3{cl * math.Sin(lon), math.Sin(lat), -cl * math.Cos(lon)}
}

func (p *cylindrical) Name() string {
	switch p.side {
	case -1:
		return p.kind.String() + "_left"
	case 1:
		return p.kind.String() + "_right"
	}
	return p.kind.String()
}

func (p *cylindrical) Project(v geom.Vec4) geom.Vec4 {
	lon, lat := lonLat(v.XYZ())
	switch {
	case p.side < 0 && lon > 0:
		lon -= 2 * math.Pi
	case p.side > 0 && lon < 0:
		lon += 2 * math.Pi
	}
	x, y := p.forward(lon, lat)
	return geom.Vec4{x / p.sx, y / p.sy, 0, 1}
}

func (p *cylindrical) Unproject(ndc [2]float64) (geom.Vec3, bool) {
	lon, lat, ok := p.inverse(ndc[0]*p.sx, ndc[1]*p.sy)
	return fromLonLat(lon, lat), ok
}

func (p *cylindrical) forward(lon, lat float64) (x, y float64) {
	switch p.kind {
	case KindMercator:
		s := math.Sin(lat)
		if math.Abs(s) >= 1 {
			return lon, math.Copysign(1024, s)
		}
		return lon, 0.5 * math.Log((1+s)/(1-s))
	case KindHammer:
		z := math.Sqrt(1 + math.Cos(lat)*math.Cos(lon/2))
		return 2 * math.Sqrt2 * math.Cos(lat) * math.Sin(lon/2) / z, math.Sqrt2 * math.Sin(lat) / z
	default:
		theta := mollweideTheta(lat)
		return 2 * math.Sqrt2 / math.Pi * lon * math.Cos(theta), math.Sqrt2 * math.Sin(theta)
	}
}

func (p *cylindrical) inverse(x, y float64) (lon, lat float64, ok bool) {
	switch p.kind {
	case KindMercator:
		return x, math.Atan(math.Sinh(y)), math.Abs(x) < math.Pi
	case KindHammer:
		zsq := 1 - x*x/16 - y*y/4
		ok = x*x/8+y*y/2 < 1
		z := math.Sqrt(max(0, zsq))
		lon = 2 * math.Atan2(z*x, 2*(2*zsq-1))
		lat = math.Asin(max(-1, min(1, y*z)))
		return lon, lat, ok
	default:
		s := y / math.Sqrt2
		if math.Abs(s) > 1 {
			return 0, 0, false
		}
		theta := math.Asin(s)
		lat = math.Asin(max(-1, min(1, (2*theta+math.Sin(2*theta))/math.Pi)))
		c := math.Cos(theta)
		if c == 0 {
			return 0, lat, x == 0
		}
		lon = math.Pi * x / (2 * math.Sqrt2 * c)
		return lon, lat, math.Abs(lon) <= math.Pi
	}
}

// mollweideTheta solves 2θ + sin 2θ = π sin φ with Newton iterations.
func mollweideTheta(lat float64) float64 {
	const (
		maxIter   = 10
		precision = 1e-9
	)
	if math.Abs(lat) >= math.Pi/2 {
		return lat
	}
	k := math.Pi * math.Sin(lat)
	theta := lat
	for range maxIter {
		d := 2 + 2*math.Cos(2*theta)
		if math.Abs(d) < precision {
			break
		}
		d = (2*theta + math.Sin(2*theta) - k) / d
		theta -= d
		if math.Abs(d) < precision {
			break
		}
	}
	return theta
}

func (p *cylindrical) HasDiscontinuity() bool { return p.side == 0 }

func (p *cylindrical) IntersectsDiscontinuity(a, b geom.Vec3) bool {
	if p.side != 0 {
		return false
	}
	if a[0]*b[0] > 0 {
		return false
	}
	if a[2] < 0 && b[2] < 0 {
		return false
	}
	if a[2] > 0 && b[2] > 0 {
		return true
	}
	x0 := math.Atan2(a[0], -a[2])
	x1 := math.Atan2(b[0], -b[2])
	return math.Abs(x0)+math.Abs(x1) >= math.Pi
}

func (p *cylindrical) Split() (Projection, Projection, bool) {
	if p.side != 0 {
		return nil, nil, false
	}
	left, right := *p, *p
	left.side, right.side = -1, 1
	return &left, &right, true
}

func (p *cylindrical) ClipCap(c geom.Cap, rot geom.Mat3) bool {
	c = c.Rotate(rot)
	if !p.viewport.Intersects(c) {
		return true
	}
	if p.side == 0 || c.Cos <= 0 {
		return false
	}
	// A half only shows its own side of the x = 0 plane.
	sin := math.Sqrt(1 - c.Cos*c.Cos)
	return -float64(p.side)*c.Axis[0] > sin
}

// Healpix is the backward only projection of a single HEALPix pixel: it
// maps the pixel UV square to directions on the sphere.
type Healpix struct {
	order, pix int
	mat        geom.Mat3
	atInfinity bool
}

// NewHealpix returns the projection of the pixel (order, pix). swap
// exchanges the UV axes.
func NewHealpix(order, pix int, swap, atInfinity bool) *Healpix {
	m := healpix.Mat3(order, pix)
	if swap {
		m = m.SwapColumns01()
	}
	return &Healpix{order: order, pix: pix, mat: m, atInfinity: atInfinity}
}

func (p *Healpix) Kind() Kind   { return KindHealpix }
func (p *Healpix) Name() string { return KindHealpix.String() }

// Project is not defined for the healpix projection and returns the zero
// vector.
func (p *Healpix) Project(geom.Vec4) geom.Vec4 { return geom.Vec4{} }

// Unproject maps a UV coordinate of the pixel to a direction.
func (p *Healpix) Unproject(uv [2]float64) (geom.Vec3, bool) {
	return healpix.XY2Vec(p.mat.MulVec2(uv)), true
}

// Backward is Unproject with the homogeneous coordinate attached.
func (p *Healpix) Backward(uv [2]float64) geom.Vec4 {
	v, _ := p.Unproject(uv)
	if p.atInfinity {
		return v.Vec4(0)
	}
	return v.Vec4(1)
}

func (p *Healpix) ClipCap(geom.Cap, geom.Mat3) bool            { return false }
func (p *Healpix) HasDiscontinuity() bool                      { return false }
func (p *Healpix) IntersectsDiscontinuity(_, _ geom.Vec3) bool { return false }
func (p *Healpix) Split() (Projection, Projection, bool)       { return nil, nil, false }
func (p *Healpix) FovX() float64                               { return 2 * math.Pi }
func (p *Healpix) WindowSize() (w, h float64)                  { return 1, 1 }

// JNowView is a projection applied after a fixed rotation, typically from
// the JNow frame to the view frame.
type JNowView struct {
	base Projection
	rot  geom.Mat3
}

// NewJNowView returns the projection that rotates its input by rot and then
// applies p.
func NewJNowView(p Projection, rot geom.Mat3) *JNowView {
	return &JNowView{base: p, rot: rot}
}

func (j *JNowView) Kind() Kind   { return KindJNowView }
func (j *JNowView) Name() string { return j.base.Name() + "+" + KindJNowView.String() }

func (j *JNowView) Project(v geom.Vec4) geom.Vec4 {
	r := j.rot.MulVec3(v.XYZ())
	return j.base.Project(r.Vec4(v[3]))
}

func (j *JNowView) Unproject(ndc [2]float64) (geom.Vec3, bool) {
	v, ok := j.base.Unproject(ndc)
	return j.rot.Transpose().MulVec3(v), ok
}

func (j *JNowView) ClipCap(c geom.Cap, rot geom.Mat3) bool {
	return j.base.ClipCap(c, j.rot.Mul(rot))
}

func (j *JNowView) HasDiscontinuity() bool { return j.base.HasDiscontinuity() }

func (j *JNowView) IntersectsDiscontinuity(a, b geom.Vec3) bool {
	return j.base.IntersectsDiscontinuity(j.rot.MulVec3(a), j.rot.MulVec3(b))
}

func (j *JNowView) Split() (Projection, Projection, bool) {
	l, r, ok := j.base.Split()
	if !ok {
		return nil, nil, false
	}
	return NewJNowView(l, j.rot), NewJNowView(r, j.rot), true
}

func (j *JNowView) FovX() float64              { return j.base.FovX() }
func (j *JNowView) WindowSize() (w, h float64) { return j.base.WindowSize() }

// IsQuadClipped reports whether the four clip-space corners of a quad lie
// outside the same side of the viewport. Quads with a corner at w <= 0 are
// never considered clipped.
func IsQuadClipped(clip [4]geom.Vec4) bool {
	for _, c := range clip {
		if c[3] <= 0 {
			return false
		}
	}
	for axis := range 2 {
		for _, sign := range [2]float64{-1, 1} {
			out := 0
			for _, c := range clip {
				if sign*c[axis] > c[3] {
					out++
				}
			}
			if out == 4 {
				return true
			}
		}
	}
	return false
}

// NDC returns the normalized device coordinates of a clip-space point.
func NDC(clip geom.Vec4) [2]float64 {
	if clip[3] == 0 {
		return [2]float64{clip[0], clip[1]}
	}
	return [2]float64{clip[0] / clip[3], clip[1] / clip[3]}
}
