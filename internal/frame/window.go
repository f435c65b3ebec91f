package frame

import "math"

// Vector helpers. All of them are trailing: output row i reads input rows <= i only.

// NaNs returns a slice of n NaN values.
func NaNs(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// IsFinite reports whether v is neither NaN nor infinite.
func IsFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// RollingSum returns the trailing n-row sum.
// Rows with i < n-1, and windows containing a NaN, are NaN.
func RollingSum(x []float64, n int) []float64 {
	out := NaNs(len(x))
	if n <= 0 {
		return out
	}
	for i := n - 1; i < len(x); i++ {
		sum := 0.0
		for j := i - n + 1; j <= i; j++ {
			sum += x[j]
		}
		out[i] = sum
	}
	return out
}

// RollingMean returns the trailing n-row simple moving average.
func RollingMean(x []float64, n int) []float64 {
	out := RollingSum(x, n)
	for i := range out {
		out[i] /= float64(n)
	}
	return out
}

// Diff returns x[i] - x[i-k]; the first k rows are NaN.
func Diff(x []float64, k int) []float64 {
	out := NaNs(len(x))
	for i := k; i < len(x); i++ {
		out[i] = x[i] - x[i-k]
	}
	return out
}

// CumSum returns the running sum. NaN inputs stay NaN in the output and
// are skipped by the sum.
func CumSum(x []float64) []float64 {
	out := make([]float64, len(x))
	sum := 0.0
	for i, v := range x {
		if math.IsNaN(v) {
			out[i] = math.NaN()
			continue
		}
		sum += v
		out[i] = sum
	}
	return out
}

// Div divides element-wise. Division by zero yields NaN.
func Div(a, b []float64) []float64 {
	out := make([]float64, len(a))
	for i := range a {
		if b[i] == 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = a[i] / b[i]
	}
	return out
}

// Mul multiplies element-wise.
func Mul(a, b []float64) []float64 {
	out := make([]float64, len(a))
	for i := range a {
		out[i] = a[i] * b[i]
	}
	return out
}

// Sub subtracts element-wise.
func Sub(a, b []float64) []float64 {
	out := make([]float64, len(a))
	for i := range a {
		out[i] = a[i] - b[i]
	}
	return out
}

// Add adds element-wise.
func Add(a, b []float64) []float64 {
	out := make([]float64, len(a))
	for i := range a {
		out[i] = a[i] + b[i]
	}
	return out
}

// Scale multiplies every element by k.
func Scale(x []float64, k float64) []float64 {
	return Map(x, func(v float64) float64 { return v * k })
}

// Map applies f to every element.
func Map(x []float64, f func(float64) float64) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = f(v)
	}
	return out
}

// Mean returns the mean of the finite values, NaN if there are none.
func Mean(x []float64) float64 {
	sum, n := 0.0, 0
	for _, v := range x {
		if IsFinite(v) {
			sum += v
			n++
		}
	}
	if n == 0 {
		return math.NaN()
	}
	return sum / float64(n)
}

// Max returns the largest finite value, NaN if there are none.
func Max(x []float64) float64 {
	m := math.NaN()
	for _, v := range x {
		if IsFinite(v) && (math.IsNaN(m) || v > m) {
			m = v
		}
	}
	return m
}
