// Package geom provides the small fixed-size vector and matrix types used by
// the HEALPix, UV-map and projection packages.
//
// All matrices are column-major: M[j] is column j, so M[j][i] is the element
// at row i, column j. This matches the layout of the HEALPix UV transforms,
// where the last column holds the translation.
package geom

import "math"

// Vec3 is a 3D vector, usually a direction on the unit sphere.
type Vec3 [3]float64

// Vec4 is a homogeneous 3D vector. W is 0 for points at infinity
// (directions) and 1 for finite points.
type Vec4 [4]float64

// Add returns v + w.
func (v Vec3) Add(w Vec3) Vec3 {
	return Vec3{v[0] + w[0], v[1] + w[1], v[2] + w[2]}
}

// Sub returns v - w.
func (v Vec3) Sub(w Vec3) Vec3 {
	return Vec3{v[0] - w[0], v[1] - w[1], v[2] - w[2]}
}

// Mul returns v scaled by s.
func (v Vec3) Mul(s float64) Vec3 {
	return Vec3{v[0] * s, v[1] * s, v[2] * s}
}

// Dot returns the dot product of v and w.
func (v Vec3) Dot(w Vec3) float64 {
	return v[0]*w[0] + v[1]*w[1] + v[2]*w[2]
}

// Cross returns the cross product v × w.
func (v Vec3) Cross(w Vec3) Vec3 {
	return Vec3{
		v[1]*w[2] - v[2]*w[1],
		v[2]*w[0] - v[0]*w[2],
		v[0]*w[1] - v[1]*w[0],
	}
}

// Norm returns the euclidean length of v.
func (v Vec3) Norm() float64 {
	return math.Sqrt(v.Dot(v))
}

// Normalize returns v scaled to unit length.
// The zero vector is returned unchanged.
func (v Vec3) Normalize() Vec3 {
	n := v.Norm()
	if n == 0 {
		return v
	}
	return v.Mul(1 / n)
}

// IsNormalized reports whether v has unit length within a small tolerance.
func (v Vec3) IsNormalized() bool {
	return math.Abs(v.Dot(v)-1) < 1e-9
}

// Vec4 returns v as a homogeneous vector with the given w.
func (v Vec3) Vec4(w float64) Vec4 {
	return Vec4{v[0], v[1], v[2], w}
}

// XYZ drops the w component.
func (v Vec4) XYZ() Vec3 {
	return Vec3{v[0], v[1], v[2]}
}

// Sep returns the angular separation in radians between two directions.
// The vectors don't need to be normalized.
func Sep(a, b Vec3) float64 {
	// atan2 of |a×b| and a·b is accurate for both small and large angles.
	return math.Atan2(a.Cross(b).Norm(), a.Dot(b))
}

// Mix linearly interpolates between a and b.
func Mix(a, b [2]float64, t float64) [2]float64 {
	return [2]float64{a[0]*(1-t) + b[0]*t, a[1]*(1-t) + b[1]*t}
}
