// Package healpix implements the nested HEALPix pixelization of the sphere.
//
// Pixels are addressed by (order, pix) where order >= 0 and
// 0 <= pix < 12·4^order. Order 0 has the 12 base pixels, and every pixel at
// order N has the four children 4·pix + {0,1,2,3} at order N+1.
//
// The planar "xy" coordinates used by Mat3 and XY2Vec are the standard
// HEALPix projection plane, in which every base face is a square rotated by
// 45 degrees. Numerical results match the official HEALPix library for the
// nested scheme.
package healpix

import (
	"math"

	"github.com/gogpu/hips/geom"
)

// MaxOrder is the deepest order representable with 64-bit pixel indices.
const MaxOrder = 29

// Position of the base faces in the xy plane, in units of π/4.
var faces = [12][2]int{
	{1, 0}, {3, 0}, {5, 0}, {7, 0},
	{0, -1}, {2, -1}, {4, -1}, {6, -1},
	{1, -2}, {3, -2}, {5, -2}, {7, -2},
}

// NSide returns the number of pixels along a face side at the given order.
func NSide(order int) int {
	return 1 << order
}

// NPix returns the total number of pixels at the given order.
func NPix(order int) int {
	return 12 << (2 * order)
}

// spread interleaves the bits of v with zeros: bit i moves to bit 2i.
func spread(v uint64) uint64 {
	v &= 0xffffffff
	v = (v | v<<16) & 0x0000ffff0000ffff
	v = (v | v<<8) & 0x00ff00ff00ff00ff
	v = (v | v<<4) & 0x0f0f0f0f0f0f0f0f
	v = (v | v<<2) & 0x3333333333333333
	v = (v | v<<1) & 0x5555555555555555
	return v
}

// compress is the inverse of spread: it keeps the even bits of v.
func compress(v uint64) uint64 {
	v &= 0x5555555555555555
	v = (v | v>>1) & 0x3333333333333333
	v = (v | v>>2) & 0x0f0f0f0f0f0f0f0f
	v = (v | v>>4) & 0x00ff00ff00ff00ff
	v = (v | v>>8) & 0x0000ffff0000ffff
	v = (v | v>>16) & 0x00000000ffffffff
	return v
}

// XYF2Nest returns the nested index of the pixel at position (ix, iy) of
// the given base face.
func XYF2Nest(order, ix, iy, face int) int {
	return face<<(2*order) + int(spread(uint64(ix))|spread(uint64(iy))<<1)
}

// Nest2XYF returns the position (ix, iy) of a pixel inside its base face,
// and the face number.
func Nest2XYF(order, pix int) (ix, iy, face int) {
	face = pix >> (2 * order)
	p := uint64(pix) & (1<<(2*order) - 1)
	return int(compress(p)), int(compress(p >> 1)), face
}

// Mat3 returns the transformation from the unit UV square of a pixel to the
// HEALPix xy plane: xy = Mat3 · (u, v, 1). u runs along the ix axis of the
// face and v along the iy axis.
func Mat3(order, pix int) geom.Mat3 {
	ix, iy, face := Nest2XYF(order, pix)
	nside := float64(NSide(order))
	return geom.Mat3{
		{math.Pi / 4 / nside, math.Pi / 4 / nside, 0},
		{-math.Pi / 4 / nside, math.Pi / 4 / nside, 0},
		{
			(float64(faces[face][0]) + float64(ix-iy)/nside) * math.Pi / 4,
			(float64(faces[face][1]) + float64(ix+iy)/nside) * math.Pi / 4,
			1,
		},
	}
}

func xy2zphi(xy [2]float64) (z, phi float64) {
	x, y := xy[0], xy[1]
	if math.Abs(y) > math.Pi/4 {
		// Polar caps.
		sigma := 2 - math.Abs(y*4)/math.Pi
		z = 1 - sigma*sigma/3
		if y < 0 {
			z = -z
		}
		xc := -math.Pi + (2*math.Floor((x+math.Pi)*4/(2*math.Pi))+1)*math.Pi/4
		if sigma != 0 {
			phi = xc + (x-xc)/sigma
		} else {
			phi = x
		}
		return z, phi
	}
	return y * 8 / (math.Pi * 3), x
}

// XY2Vec maps a point of the HEALPix xy plane to a unit vector.
func XY2Vec(xy [2]float64) geom.Vec3 {
	z, phi := xy2zphi(xy)
	st := math.Sqrt((1 - z) * (1 + z))
	return geom.Vec3{st * math.Cos(phi), st * math.Sin(phi), z}
}

// XY2Ang maps a point of the HEALPix xy plane to colatitude and longitude.
func XY2Ang(xy [2]float64) (theta, phi float64) {
	z, phi := xy2zphi(xy)
	return math.Acos(z), phi
}

func xyf2xy(order, x, y, face int, dy float64) [2]float64 {
	nside := float64(NSide(order))
	return [2]float64{
		(float64(faces[face][0]) + float64(x-y)/nside) * math.Pi / 4,
		(float64(faces[face][1]) + (float64(x+y)+dy)/nside) * math.Pi / 4,
	}
}

// Pix2Vec returns the unit vector of the center of a pixel.
func Pix2Vec(order, pix int) geom.Vec3 {
	ix, iy, face := Nest2XYF(order, pix)
	return XY2Vec(xyf2xy(order, ix, iy, face, 1))
}

// Pix2Ang returns the colatitude and longitude of the center of a pixel.
func Pix2Ang(order, pix int) (theta, phi float64) {
	ix, iy, face := Nest2XYF(order, pix)
	return XY2Ang(xyf2xy(order, ix, iy, face, 1))
}

// fmodulo returns the non negative remainder of v1/v2.
func fmodulo(v1, v2 float64) float64 {
	if v1 >= 0 {
		if v1 < v2 {
			return v1
		}
		return math.Mod(v1, v2)
	}
	tmp := math.Mod(v1, v2) + v2
	if tmp == v2 {
		return 0
	}
	return tmp
}

func zphi2pix(order int, z, phi float64) int {
	nside := NSide(order)
	ns := float64(nside)
	za := math.Abs(z)
	tt := fmodulo(phi, 2*math.Pi) * (2 / math.Pi) // in [0,4)
	var face, ix, iy int

	if za <= 2.0/3.0 {
		// Equatorial region.
		t1 := ns * (0.5 + tt)
		t2 := ns * (z * 0.75)
		jp := int(t1 - t2) // ascending edge line
		jm := int(t1 + t2) // descending edge line
		ifp := jp >> order
		ifm := jm >> order
		switch {
		case ifp == ifm:
			face = ifp | 4
		case ifp < ifm:
			face = ifp
		default:
			face = ifm + 8
		}
		ix = jm & (nside - 1)
		iy = nside - (jp & (nside - 1)) - 1
	} else {
		// Polar caps.
		ntt := min(int(tt), 3)
		tp := tt - float64(ntt)
		tmp := ns * math.Sqrt(3*(1-za))
		jp := min(int(tp*tmp), nside-1)
		jm := min(int((1.0-tp)*tmp), nside-1)
		if z >= 0 {
			face = ntt
			ix = nside - jm - 1
			iy = nside - jp - 1
		} else {
			face = ntt + 8
			ix = jp
			iy = jm
		}
	}
	return XYF2Nest(order, ix, iy, face)
}

// Vec2Pix returns the pixel that contains the direction v. v doesn't need
// to be normalized.
func Vec2Pix(order int, v geom.Vec3) int {
	n := v.Norm()
	return zphi2pix(order, v[2]/n, math.Atan2(v[1], v[0]))
}

// Ang2Pix returns the pixel that contains the direction given by
// colatitude theta and longitude phi.
func Ang2Pix(order int, theta, phi float64) int {
	return zphi2pix(order, math.Cos(theta), phi)
}

// Boundaries returns the four corners of a pixel, in the order
// (0,0), (1,0), (0,1), (1,1) of the face (ix, iy) axes.
func Boundaries(order, pix int) [4]geom.Vec3 {
	ix, iy, face := Nest2XYF(order, pix)
	var out [4]geom.Vec3
	for i := range 4 {
		out[i] = XY2Vec(xyf2xy(order, ix+i%2, iy+i/2, face, 0))
	}
	return out
}

// BoundingCap returns a cap that contains the whole pixel.
func BoundingCap(order, pix int) geom.Cap {
	b := Boundaries(order, pix)
	return geom.CapFromPoints(b[:]...)
}

var (
	nbXOffset = [8]int{-1, -1, 0, 1, 1, 1, 0, -1}
	nbYOffset = [8]int{0, 1, 1, 1, 0, -1, -1, -1}

	nbFaceArray = [9][12]int{
		{8, 9, 10, 11, -1, -1, -1, -1, 10, 11, 8, 9}, // S
		{5, 6, 7, 4, 8, 9, 10, 11, 9, 10, 11, 8},     // SE
		{-1, -1, -1, -1, 5, 6, 7, 4, -1, -1, -1, -1}, // E
		{4, 5, 6, 7, 11, 8, 9, 10, 11, 8, 9, 10},     // SW
		{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11},       // center
		{1, 2, 3, 0, 0, 1, 2, 3, 5, 6, 7, 4},         // NE
		{-1, -1, -1, -1, 7, 4, 5, 6, -1, -1, -1, -1}, // W
		{3, 0, 1, 2, 3, 0, 1, 2, 4, 5, 6, 7},         // NW
		{2, 3, 0, 1, -1, -1, -1, -1, 0, 1, 2, 3},     // N
	}

	nbSwapArray = [9][3]int{
		{0, 0, 3}, // S
		{0, 0, 6}, // SE
		{0, 0, 0}, // E
		{0, 0, 5}, // SW
		{0, 0, 0}, // center
		{5, 0, 0}, // NE
		{0, 0, 0}, // W
		{6, 0, 0}, // NW
		{3, 0, 0}, // N
	}
)

// Neighbours returns the eight neighbours of a pixel in the order
// SW, W, NW, N, NE, E, SE, S. Missing neighbours (only possible around the
// corners of the base faces) are set to -1.
func Neighbours(order, pix int) [8]int {
	nside := NSide(order)
	ix, iy, face := Nest2XYF(order, pix)
	var out [8]int
	for i := range 8 {
		x := ix + nbXOffset[i]
		y := iy + nbYOffset[i]
		nb := 4
		if x < 0 {
			x += nside
			nb--
		} else if x >= nside {
			x -= nside
			nb++
		}
		if y < 0 {
			y += nside
			nb -= 3
		} else if y >= nside {
			y -= nside
			nb += 3
		}
		f := nbFaceArray[nb][face]
		if f < 0 {
			out[i] = -1
			continue
		}
		bits := nbSwapArray[nb][face>>2]
		if bits&1 != 0 {
			x = nside - x - 1
		}
		if bits&2 != 0 {
			y = nside - y - 1
		}
		if bits&4 != 0 {
			x, y = y, x
		}
		out[i] = XYF2Nest(order, x, y, f)
	}
	return out
}
