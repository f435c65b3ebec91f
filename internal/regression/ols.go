// Package regression fits ordinary least squares models on log-transformed columns.
package regression

import (
	"errors"
	"fmt"
	"math"

	"decred-onchain-lab/internal/frame"
)

// ErrInsufficientData is returned when fewer than two usable rows remain
// or the regressor has no variance.
var ErrInsufficientData = errors.New("insufficient data for regression")

// Fit holds the parameters of ln(y) = Intercept + Slope*ln(x).
type Fit struct {
	X         string  `json:"x"`
	Y         string  `json:"y"`
	Intercept float64 `json:"intercept"`
	Slope     float64 `json:"slope"`
	RSquared  float64 `json:"r_squared"`
	N         int     `json:"n"`
}

// Predict returns exp(Intercept) * x^Slope.
func (f Fit) Predict(x float64) float64 {
	if !(x > 0) {
		return math.NaN()
	}
	return math.Exp(f.Intercept + f.Slope*math.Log(x))
}

// usable reports whether both x and y can enter the log transform.
func usable(x, y float64) bool {
	return frame.IsFinite(x) && frame.IsFinite(y) && x > 0 && y > 0
}

// FitLogLog fits ln(y) on ln(x) over rows where both columns are finite
// and strictly positive. Other rows are dropped before the transform.
func FitLogLog(t *frame.Table, x, y string) (Fit, error) {
	if err := t.Require(x, y); err != nil {
		return Fit{}, err
	}
	xs, _ := t.Column(x)
	ys, _ := t.Column(y)

	lx := make([]float64, 0, len(xs))
	ly := make([]float64, 0, len(ys))
	for i := range xs {
		if usable(xs[i], ys[i]) {
			lx = append(lx, math.Log(xs[i]))
			ly = append(ly, math.Log(ys[i]))
		}
	}

	f, err := OLS(lx, ly)
	if err != nil {
		return Fit{}, fmt.Errorf("fit ln(%s) ~ ln(%s): %w", y, x, err)
	}
	f.X, f.Y = x, y
	return f, nil
}

// OLS fits y = a + b*x by the closed-form normal equations.
// Sums are accumulated in index order so identical input gives identical output.
func OLS(x, y []float64) (Fit, error) {
	n := len(x)
	if n != len(y) {
		return Fit{}, fmt.Errorf("x has %d values, y has %d", n, len(y))
	}
	if n < 2 {
		return Fit{}, fmt.Errorf("%w: %d usable rows", ErrInsufficientData, n)
	}

	var sx, sy float64
	for i := 0; i < n; i++ {
		sx += x[i]
		sy += y[i]
	}
	mx, my := sx/float64(n), sy/float64(n)

	var sxx, sxy, syy float64
	for i := 0; i < n; i++ {
		dx, dy := x[i]-mx, y[i]-my
		sxx += dx * dx
		sxy += dx * dy
		syy += dy * dy
	}
	if sxx == 0 {
		return Fit{}, fmt.Errorf("%w: regressor is constant over %d rows", ErrInsufficientData, n)
	}

	slope := sxy / sxx
	intercept := my - slope*mx

	r2 := 1.0
	if syy > 0 {
		var sse float64
		for i := 0; i < n; i++ {
			e := y[i] - (intercept + slope*x[i])
			sse += e * e
		}
		r2 = 1 - sse/syy
	}

	return Fit{Intercept: intercept, Slope: slope, RSquared: r2, N: n}, nil
}

// Attach adds prefix_predict, prefix_residual and prefix_multiple columns.
// The residual is ln(y) - ln(predict); the multiple is y / predict.
// The prediction is defined wherever x > 0; residual and multiple only
// where y could have entered the fit.
func Attach(t *frame.Table, f Fit, prefix string) (*frame.Table, error) {
	if err := t.Require(f.X, f.Y); err != nil {
		return nil, err
	}
	xs, _ := t.Column(f.X)
	ys, _ := t.Column(f.Y)

	pred := frame.NaNs(t.Len())
	resid := frame.NaNs(t.Len())
	mult := frame.NaNs(t.Len())
	for i := range xs {
		if !frame.IsFinite(xs[i]) || !(xs[i] > 0) {
			continue
		}
		pred[i] = f.Predict(xs[i])
		if usable(xs[i], ys[i]) {
			resid[i] = math.Log(ys[i]) - math.Log(pred[i])
			mult[i] = ys[i] / pred[i]
		}
	}

	return t.WithColumns(
		frame.Col{Name: prefix + "_predict", Values: pred},
		frame.Col{Name: prefix + "_residual", Values: resid},
		frame.Col{Name: prefix + "_multiple", Values: mult},
	)
}
