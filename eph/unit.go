package eph

import "math"

// Unit is the physical unit of a float column. The low bits are
// conversion factors relative to the base unit of the high bits.
type Unit uint32

// Units.
const (
	UnitRad    Unit = 1 << 16
	UnitDeg         = UnitRad | 1    // ×π/180
	UnitArcmin      = UnitDeg | 2    // ×1/60
	UnitArcsec      = UnitArcmin | 4 // ×1/60

	UnitVMag = Unit(3 << 16)

	UnitRadPerYear = Unit(6 << 16)
	UnitYear       = Unit(7 << 16)
	UnitKmPerSec   = Unit(8 << 16)
)

// Factor bits.
const (
	bitDeg  Unit = 1
	bitMin  Unit = 2
	bitSec  Unit = 4
	bitYear Unit = 8
)

// Convert converts v from unit src to unit dst. A zero dst, or equal
// units, returns v unchanged.
func Convert(src, dst Unit, v float64) float64 {
	if dst == 0 || src == dst {
		return v
	}
	has := func(u, bit Unit) bool { return u&bit != 0 }

	switch {
	case has(src, bitDeg) && !has(dst, bitDeg):
		v *= math.Pi / 180
	case !has(src, bitDeg) && has(dst, bitDeg):
		v *= 180 / math.Pi
	}
	for _, bit := range []Unit{bitMin, bitSec} {
		switch {
		case has(src, bit) && !has(dst, bit):
			v /= 60
		case !has(src, bit) && has(dst, bit):
			v *= 60
		}
	}
	switch {
	case has(src, bitYear) && !has(dst, bitYear):
		v *= 365.25
	case !has(src, bitYear) && has(dst, bitYear):
		v /= 365.25
	}
	return v
}
