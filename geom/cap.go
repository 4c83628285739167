package geom

import "math"

// Cap is a spherical cap: all the unit vectors v such that
// v·Axis >= Cos. A cap with Cos <= -1 covers the full sphere.
type Cap struct {
	Axis Vec3
	Cos  float64
}

// FullSphere is the cap that contains every direction.
var FullSphere = Cap{Axis: Vec3{0, 0, 1}, Cos: -1}

// CapFromPoints returns the cap centered on the normalized centroid of
// the points, with the smallest aperture that contains all of them.
func CapFromPoints(points ...Vec3) Cap {
	var axis Vec3
	for _, p := range points {
		axis = axis.Add(p)
	}
	axis = axis.Normalize()
	c := Cap{Axis: axis, Cos: 1}
	for _, p := range points {
		if d := axis.Dot(p.Normalize()); d < c.Cos {
			c.Cos = d
		}
	}
	return c
}

// Angle returns the aperture of the cap in radians.
func (c Cap) Angle() float64 {
	return math.Acos(max(-1, min(1, c.Cos)))
}

// Contains reports whether the direction v lies inside the cap.
func (c Cap) Contains(v Vec3) bool {
	return c.Axis.Dot(v.Normalize()) >= c.Cos
}

// Intersects reports whether the two caps overlap.
func (c Cap) Intersects(o Cap) bool {
	if c.Cos <= -1 || o.Cos <= -1 {
		return true
	}
	a := c.Angle() + o.Angle()
	if a >= math.Pi {
		return true
	}
	return Sep(c.Axis, o.Axis) <= a
}

// Rotate returns the cap with its axis transformed by the rotation m.
func (c Cap) Rotate(m Mat3) Cap {
	return Cap{Axis: m.MulVec3(c.Axis), Cos: c.Cos}
}
