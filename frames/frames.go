// Package frames names the reference frames a survey can be expressed in and
// defines the rotation oracle the renderer queries to move between them.
//
// No astrometry lives here: an Observer only hands out rotation matrices.
package frames

import (
	"fmt"
	"math"
	"strings"

	"github.com/gogpu/hips/geom"
)

// Frame is a named reference frame.
type Frame uint8

// Frames, ordered like the forward transformation chain.
const (
	ICRF Frame = iota
	CIRS
	JNow
	Observed
	View
	Galactic
	Ecliptic

	numFrames
)

var frameNames = [numFrames]string{"icrf", "cirs", "jnow", "observed", "view", "galactic", "ecliptic"}

func (f Frame) String() string {
	if f < numFrames {
		return frameNames[f]
	}
	return fmt.Sprintf("Frame(%d)", uint8(f))
}

// Parse returns the frame of a HiPS hips_frame value or a frame name.
// "equatorial" is an alias for ICRF.
func Parse(s string) (Frame, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "equatorial" || s == "" {
		return ICRF, nil
	}
	for i, n := range frameNames {
		if n == s {
			return Frame(i), nil
		}
	}
	return 0, fmt.Errorf("frames: unknown frame %q", s)
}

// Observer hands out the rotation from one frame to another.
type Observer interface {
	Rotation(from, to Frame) geom.Mat3
}

// Rotation from ICRS to galactic coordinates.
var icrfToGalactic = geom.Mat3{
	{-0.054875560416215368, 0.494109427875583674, -0.867666149019004701},
	{-0.873437090234885049, -0.444829629960011178, -0.198076373431201528},
	{-0.483835015548713227, 0.746982244497218891, 0.455983776175066922},
}

// Mean obliquity of the ecliptic at J2000.0.
const obliquityJ2000 = 84381.406 / 3600 * math.Pi / 180

// Static is an observer whose frames are fixed rotations of ICRF. The
// astrometric frames (CIRS, JNow, Observed) default to ICRF; the view frame
// is set with SetView.
type Static struct {
	toICRF [numFrames]geom.Mat3
}

// NewStatic returns a static observer looking toward ICRF -Z.
func NewStatic() *Static {
	s := &Static{}
	for i := range s.toICRF {
		s.toICRF[i] = geom.Identity3()
	}
	s.toICRF[Galactic] = icrfToGalactic.Transpose()
	s.toICRF[Ecliptic] = geom.RotationX(-obliquityJ2000).Transpose()
	return s
}

// SetFrame sets the rotation from f to ICRF.
func (s *Static) SetFrame(f Frame, toICRF geom.Mat3) {
	s.toICRF[f] = toICRF
}

// SetView sets the rotation from ICRF to the view frame, as returned by
// LookAt.
func (s *Static) SetView(icrfToView geom.Mat3) {
	s.toICRF[View] = icrfToView.Transpose()
}

// Rotation returns the rotation from one frame to another.
func (s *Static) Rotation(from, to Frame) geom.Mat3 {
	if from == to {
		return geom.Identity3()
	}
	return s.toICRF[to].Transpose().Mul(s.toICRF[from])
}

// LookAt returns the rotation from ICRF to a view frame that looks toward
// the equatorial direction (ra, dec), in radians, with the north pole up.
func LookAt(ra, dec float64) geom.Mat3 {
	sr, cr := math.Sincos(ra)
	sd, cd := math.Sincos(dec)
	dir := geom.Vec3{cd * cr, cd * sr, sd}
	up := geom.Vec3{-sd * cr, -sd * sr, cd}
	z := dir.Mul(-1)
	x := up.Cross(z)
	viewToICRF := geom.Mat3{x, up, z}
	return viewToICRF.Transpose()
}
