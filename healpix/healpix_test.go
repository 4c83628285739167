package healpix

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/gogpu/hips/geom"
)

// Reference values computed with the official healpix library:
// nside, pix, theta (deg), phi (deg), x, y, z.
var pix2vecVals = [][7]float64{
	{1, 0, 48.189685, 45.000000, 0.527046, 0.527046, 0.666667},
	{1, 1, 48.189685, 135.000000, -0.527046, 0.527046, 0.666667},
	{1, 2, 48.189685, 225.000000, -0.527046, -0.527046, 0.666667},
	{1, 3, 48.189685, 315.000000, 0.527046, -0.527046, 0.666667},
	{1, 4, 90.000000, 0.000000, 1.000000, 0.000000, 0.000000},
	{1, 5, 90.000000, 90.000000, 0.000000, 1.000000, 0.000000},
	{1, 6, 90.000000, 180.000000, -1.000000, 0.000000, 0.000000},
	{1, 7, 90.000000, 270.000000, -0.000000, -1.000000, 0.000000},
	{1, 8, 131.810315, 45.000000, 0.527046, 0.527046, -0.666667},
	{1, 9, 131.810315, 135.000000, -0.527046, 0.527046, -0.666667},
	{1, 10, 131.810315, 225.000000, -0.527046, -0.527046, -0.666667},
	{1, 11, 131.810315, 315.000000, 0.527046, -0.527046, -0.666667},
	{2, 0, 70.528779, 45.000000, 0.666667, 0.666667, 0.333333},
	{2, 1, 48.189685, 67.500000, 0.285235, 0.688619, 0.666667},
	{2, 2, 48.189685, 22.500000, 0.688619, 0.285235, 0.666667},
	{2, 3, 23.556464, 45.000000, 0.282597, 0.282597, 0.916667},
	{1024, 7399878, 114.460292, 266.528320, -0.055120, -0.908578, -0.414062},
	{256, 70836, 72.573677, 150.820312, -0.833022, 0.465173, 0.299479},
	{4, 82, 109.471221, 78.750000, 0.183933, 0.924693, -0.333333},
	{16, 32, 77.975301, 33.750000, 0.813225, 0.543380, 0.208333},
	{64, 11166, 34.126650, 188.804348, -0.554413, -0.085871, 0.827799},
	{4096, 54937164, 60.718881, 341.982422, 0.829458, -0.269789, 0.489095},
	{64, 9130, 60.000000, 214.453125, -0.714115, -0.489938, 0.500000},
	{256, 490296, 78.737020, 286.523438, 0.278930, -0.940240, 0.195312},
	{1024, 11358326, 111.221793, 245.083008, -0.392735, -0.845417, -0.361979},
	{256, 594660, 161.091949, 155.097087, -0.293921, 0.136452, -0.946040},
	{4, 2, 70.528779, 33.750000, 0.783917, 0.523797, 0.333333},
	{256, 162128, 36.235439, 253.615385, -0.166741, -0.567100, 0.806595},
}

func orderOf(nside float64) int {
	return int(math.Round(math.Log2(nside)))
}

func TestPix2VecReference(t *testing.T) {
	const eps = 1e-4
	for _, v := range pix2vecVals {
		order, pix := orderOf(v[0]), int(v[1])
		got := Pix2Vec(order, pix)
		theta, phi := Pix2Ang(order, pix)
		if math.Abs(theta*180/math.Pi-v[2]) > eps {
			t.Errorf("Pix2Ang(%d, %d) theta = %v, want %v", order, pix, theta*180/math.Pi, v[2])
		}
		if math.Abs(phi*180/math.Pi-v[3]) > eps {
			t.Errorf("Pix2Ang(%d, %d) phi = %v, want %v", order, pix, phi*180/math.Pi, v[3])
		}
		for i := range 3 {
			if math.Abs(got[i]-v[4+i]) > eps {
				t.Errorf("Pix2Vec(%d, %d) = %v, want %v", order, pix, got, v[4:])
				break
			}
		}
	}
}

func TestVec2PixRoundTrip(t *testing.T) {
	for _, v := range pix2vecVals {
		order, pix := orderOf(v[0]), int(v[1])
		if got := Vec2Pix(order, Pix2Vec(order, pix)); got != pix {
			t.Errorf("Vec2Pix(Pix2Vec(%d, %d)) = %d", order, pix, got)
		}
	}
}

func TestVec2PixClosestCenter(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	for order := 0; order <= 8; order++ {
		// Half the pixel diagonal bounds the distance to the center.
		maxSep := 2 * math.Sqrt(4*math.Pi/float64(NPix(order)))
		for range 200 {
			v := geom.Vec3{rng.NormFloat64(), rng.NormFloat64(), rng.NormFloat64()}.Normalize()
			pix := Vec2Pix(order, v)
			if pix < 0 || pix >= NPix(order) {
				t.Fatalf("Vec2Pix(%d, %v) = %d out of range", order, v, pix)
			}
			if sep := geom.Sep(Pix2Vec(order, pix), v); sep > maxSep {
				t.Errorf("order %d: center of pixel %d is %v rad from %v", order, pix, sep, v)
			}
			// Low order pixels are too distorted for the corner cap.
			c := BoundingCap(order, pix)
			if order >= 2 && geom.Sep(c.Axis, v) > c.Angle()*1.05 {
				t.Errorf("order %d: bounding cap of %d doesn't contain %v", order, pix, v)
			}
		}
	}
}

func TestNestXYFRoundTrip(t *testing.T) {
	for _, order := range []int{0, 1, 3, 7, 12, 20, MaxOrder} {
		for _, pix := range []int{0, 1, 5, NPix(order) / 3, NPix(order) - 1} {
			ix, iy, face := Nest2XYF(order, pix)
			if got := XYF2Nest(order, ix, iy, face); got != pix {
				t.Errorf("order %d: XYF2Nest(Nest2XYF(%d)) = %d", order, pix, got)
			}
		}
	}
}

func TestMat3MapsCenter(t *testing.T) {
	for _, v := range pix2vecVals {
		order, pix := orderOf(v[0]), int(v[1])
		m := Mat3(order, pix)
		got := XY2Vec(m.MulVec2([2]float64{0.5, 0.5}))
		want := Pix2Vec(order, pix)
		if geom.Sep(got, want) > 1e-9 {
			t.Errorf("Mat3(%d, %d) center = %v, want %v", order, pix, got, want)
		}
	}
}

func TestChildrenInsideParent(t *testing.T) {
	for pix := range NPix(1) {
		parent := BoundingCap(1, pix)
		for i := range 4 {
			c := Pix2Vec(2, pix*4+i)
			if !parent.Contains(c) {
				t.Errorf("child %d of (1, %d) is outside its parent", pix*4+i, pix)
			}
		}
	}
}

func TestNeighboursSymmetric(t *testing.T) {
	const order = 3
	for pix := range NPix(order) {
		for _, nb := range Neighbours(order, pix) {
			if nb < 0 {
				continue
			}
			found := false
			for _, back := range Neighbours(order, nb) {
				if back == pix {
					found = true
					break
				}
			}
			if !found {
				t.Fatalf("%d is a neighbour of %d but not the reverse", nb, pix)
			}
		}
	}
}

func TestNUNIQBijection(t *testing.T) {
	for order := 0; order <= MaxOrder; order++ {
		for _, pix := range []int{0, 1, NPix(order) - 1} {
			n := NUNIQ(order, pix)
			o, p, err := DecodeNUNIQ(n)
			if err != nil {
				t.Fatalf("DecodeNUNIQ(%d): %v", n, err)
			}
			if o != order || p != pix {
				t.Errorf("DecodeNUNIQ(NUNIQ(%d, %d)) = (%d, %d)", order, pix, o, p)
			}
			if NUNIQ(o, p) != n {
				t.Errorf("NUNIQ(DecodeNUNIQ(%d)) != %d", n, n)
			}
		}
	}
	if _, _, err := DecodeNUNIQ(3); err == nil {
		t.Error("DecodeNUNIQ(3) should fail")
	}
}

func TestNUNIQKnownValues(t *testing.T) {
	tests := []struct {
		order, pix int
		want       uint64
	}{
		{0, 0, 4},
		{0, 11, 15},
		{1, 0, 16},
		{3, 17, 273},
	}
	for _, tt := range tests {
		if got := NUNIQ(tt.order, tt.pix); got != tt.want {
			t.Errorf("NUNIQ(%d, %d) = %d, want %d", tt.order, tt.pix, got, tt.want)
		}
	}
}
