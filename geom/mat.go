package geom

import "math"

// Mat3 is a column-major 3x3 matrix.
type Mat3 [3][3]float64

// Mat4 is a column-major 4x4 matrix.
type Mat4 [4][4]float64

// Identity3 returns the 3x3 identity matrix.
func Identity3() Mat3 {
	return Mat3{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
}

// Identity4 returns the 4x4 identity matrix.
func Identity4() Mat4 {
	return Mat4{{1, 0, 0, 0}, {0, 1, 0, 0}, {0, 0, 1, 0}, {0, 0, 0, 1}}
}

// MulVec3 returns m·v.
func (m Mat3) MulVec3(v Vec3) Vec3 {
	var out Vec3
	for i := range 3 {
		out[i] = m[0][i]*v[0] + m[1][i]*v[1] + m[2][i]*v[2]
	}
	return out
}

// MulVec2 applies m to the 2D point v (with an implicit 1 as third
// coordinate) and returns the first two components.
func (m Mat3) MulVec2(v [2]float64) [2]float64 {
	p := m.MulVec3(Vec3{v[0], v[1], 1})
	return [2]float64{p[0], p[1]}
}

// Mul returns m·n.
func (m Mat3) Mul(n Mat3) Mat3 {
	var out Mat3
	for j := range 3 {
		out[j] = m.MulVec3(n[j])
	}
	return out
}

// Transpose returns the transpose of m. For a rotation this is the inverse.
func (m Mat3) Transpose() Mat3 {
	var out Mat3
	for i := range 3 {
		for j := range 3 {
			out[i][j] = m[j][i]
		}
	}
	return out
}

// SwapColumns01 returns m with its first two columns exchanged. Applied to
// a UV transform it swaps the roles of u and v.
func (m Mat3) SwapColumns01() Mat3 {
	m[0], m[1] = m[1], m[0]
	return m
}

// RotationX returns the rotation of angle a around the X axis.
func RotationX(a float64) Mat3 {
	c, s := math.Cos(a), math.Sin(a)
	return Mat3{{1, 0, 0}, {0, c, s}, {0, -s, c}}
}

// RotationY returns the rotation of angle a around the Y axis.
func RotationY(a float64) Mat3 {
	c, s := math.Cos(a), math.Sin(a)
	return Mat3{{c, 0, -s}, {0, 1, 0}, {s, 0, c}}
}

// RotationZ returns the rotation of angle a around the Z axis.
func RotationZ(a float64) Mat3 {
	c, s := math.Cos(a), math.Sin(a)
	return Mat3{{c, s, 0}, {-s, c, 0}, {0, 0, 1}}
}

// MulVec4 returns m·v.
func (m Mat4) MulVec4(v Vec4) Vec4 {
	var out Vec4
	for i := range 4 {
		out[i] = m[0][i]*v[0] + m[1][i]*v[1] + m[2][i]*v[2] + m[3][i]*v[3]
	}
	return out
}

// Perspective returns an OpenGL style perspective matrix. fovy is in
// radians.
func Perspective(fovy, aspect, near, far float64) Mat4 {
	f := 1 / math.Tan(fovy/2)
	var m Mat4
	m[0][0] = f / aspect
	m[1][1] = f
	m[2][2] = (far + near) / (near - far)
	m[2][3] = -1
	m[3][2] = 2 * far * near / (near - far)
	return m
}

// InfinitePerspective returns a perspective matrix with the far plane at
// infinity.
func InfinitePerspective(fovy, aspect, near float64) Mat4 {
	f := 1 / math.Tan(fovy/2)
	var m Mat4
	m[0][0] = f / aspect
	m[1][1] = f
	m[2][2] = -1
	m[2][3] = -1
	m[3][2] = -2 * near
	return m
}
