// Package vecmath provides small vectorized helpers over float slices,
// used by the ETo kernel to keep hour-axis operations allocation-light
// and loop-free where the algorithm allows it.
package vecmath

import "golang.org/x/exp/constraints"

// Sum returns the sum of all elements.
func Sum[T constraints.Float](xs []T) T {
	var total T
	for _, x := range xs {
		total += x
	}
	return total
}

// Mean returns the arithmetic mean of all elements. Returns 0 for an
// empty slice.
func Mean[T constraints.Float](xs []T) T {
	if len(xs) == 0 {
		return 0
	}
	return Sum(xs) / T(len(xs))
}

// Max returns the largest element. Panics on an empty slice.
func Max[T constraints.Float](xs []T) T {
	m := xs[0]
	for _, x := range xs[1:] {
		if x > m {
			m = x
		}
	}
	return m
}

// Min returns the smallest element. Panics on an empty slice.
func Min[T constraints.Float](xs []T) T {
	m := xs[0]
	for _, x := range xs[1:] {
		if x < m {
			m = x
		}
	}
	return m
}

// MapClamp applies f element-wise and clamps each result into [lo, hi].
func MapClamp[T constraints.Float](xs []T, lo, hi T, f func(T) T) []T {
	out := make([]T, len(xs))
	for i, x := range xs {
		v := f(x)
		if v < lo {
			v = lo
		}
		if v > hi {
			v = hi
		}
		out[i] = v
	}
	return out
}

// Clamp bounds a single value into [lo, hi].
func Clamp[T constraints.Float](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
