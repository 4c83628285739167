package geom

import (
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestMat3MulVec3ColumnMajor(t *testing.T) {
	// Last column is a translation for 2D points.
	m := Mat3{{2, 0, 0}, {0, 3, 0}, {5, 7, 1}}
	got := m.MulVec2([2]float64{1, 1})
	if got != [2]float64{7, 10} {
		t.Errorf("MulVec2 = %v, want [7 10]", got)
	}
}

func TestRotationTransposeIsInverse(t *testing.T) {
	r := RotationZ(0.3).Mul(RotationX(-1.1)).Mul(RotationY(2.0))
	v := Vec3{0.2, -0.5, 0.8}
	back := r.Transpose().MulVec3(r.MulVec3(v))
	for i := range 3 {
		if !almostEqual(back[i], v[i]) {
			t.Fatalf("R^T R v = %v, want %v", back, v)
		}
	}
}

func TestRotationZ(t *testing.T) {
	got := RotationZ(math.Pi / 2).MulVec3(Vec3{1, 0, 0})
	want := Vec3{0, 1, 0}
	for i := range 3 {
		if !almostEqual(got[i], want[i]) {
			t.Fatalf("RotationZ(pi/2)·x = %v, want %v", got, want)
		}
	}
}

func TestSep(t *testing.T) {
	tests := []struct {
		a, b Vec3
		want float64
	}{
		{Vec3{1, 0, 0}, Vec3{1, 0, 0}, 0},
		{Vec3{1, 0, 0}, Vec3{0, 1, 0}, math.Pi / 2},
		{Vec3{1, 0, 0}, Vec3{-2, 0, 0}, math.Pi},
	}
	for _, tt := range tests {
		if got := Sep(tt.a, tt.b); !almostEqual(got, tt.want) {
			t.Errorf("Sep(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestCapFromPoints(t *testing.T) {
	c := CapFromPoints(Vec3{1, 0, 0}, Vec3{0, 1, 0})
	want := Vec3{math.Sqrt2 / 2, math.Sqrt2 / 2, 0}
	for i := range 3 {
		if !almostEqual(c.Axis[i], want[i]) {
			t.Fatalf("axis = %v, want %v", c.Axis, want)
		}
	}
	if !almostEqual(c.Cos, math.Sqrt2/2) {
		t.Errorf("cos = %v, want %v", c.Cos, math.Sqrt2/2)
	}
	if !c.Contains(Vec3{1, 1, 0.1}) {
		t.Error("cap should contain its centroid direction")
	}
	if c.Contains(Vec3{-1, 0, 0}) {
		t.Error("cap should not contain the opposite direction")
	}
}

func TestCapIntersects(t *testing.T) {
	small := Cap{Axis: Vec3{0, 0, 1}, Cos: math.Cos(0.1)}
	tests := []struct {
		name string
		o    Cap
		want bool
	}{
		{"same", small, true},
		{"opposite", Cap{Axis: Vec3{0, 0, -1}, Cos: math.Cos(0.1)}, false},
		{"touching", Cap{Axis: Vec3{math.Sin(0.19), 0, math.Cos(0.19)}, Cos: math.Cos(0.1)}, true},
		{"full sphere", FullSphere, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := small.Intersects(tt.o); got != tt.want {
				t.Errorf("Intersects = %v, want %v", got, tt.want)
			}
		})
	}
}
