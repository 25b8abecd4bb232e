package vecmath

import "testing"

func TestSumMean(t *testing.T) {
	xs := []float64{1, 2, 3, 4}
	if got := Sum(xs); got != 10 {
		t.Errorf("Sum() = %v, want 10", got)
	}
	if got := Mean(xs); got != 2.5 {
		t.Errorf("Mean() = %v, want 2.5", got)
	}
	if got := Mean([]float64{}); got != 0 {
		t.Errorf("Mean(empty) = %v, want 0", got)
	}
}

func TestMaxMin(t *testing.T) {
	xs := []float64{3, 1, 4, 1, 5, 9, 2, 6}
	if got := Max(xs); got != 9 {
		t.Errorf("Max() = %v, want 9", got)
	}
	if got := Min(xs); got != 1 {
		t.Errorf("Min() = %v, want 1", got)
	}
}

func TestClamp(t *testing.T) {
	cases := []struct{ v, lo, hi, want float64 }{
		{5, 0, 10, 5},
		{-5, 0, 10, 0},
		{15, 0, 10, 10},
	}
	for _, c := range cases {
		if got := Clamp(c.v, c.lo, c.hi); got != c.want {
			t.Errorf("Clamp(%v, %v, %v) = %v, want %v", c.v, c.lo, c.hi, got, c.want)
		}
	}
}

func TestMapClamp(t *testing.T) {
	xs := []float64{-1, 0.5, 2}
	got := MapClamp(xs, 0, 1, func(x float64) float64 { return x })
	want := []float64{0, 0.5, 1}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("MapClamp()[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}
