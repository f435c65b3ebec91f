package metrics

import (
	"fmt"
	"math"
	"sort"

	"decred-onchain-lab/internal/frame"
)

// HistogramMetrics are the multiples binned for the distribution charts.
var HistogramMetrics = []string{ColMayer, ColMVRV, ColS2FCapMultiple, ColPuell, ColContractor, ColTic142d}

// HistogramRange is the binning of one metric: steps of Step from Lower
// to Upper.
type HistogramRange struct {
	Lower float64 `yaml:"lower"`
	Upper float64 `yaml:"upper"`
	Step  float64 `yaml:"step"`
}

// DefaultHistogramRanges bins the value multiples over 0.1 to 3.0 and the
// ticket multiples over 0.1 to 2.0.
func DefaultHistogramRanges() map[string]HistogramRange {
	wide := HistogramRange{Lower: 0.1, Upper: 3.0, Step: 0.1}
	narrow := HistogramRange{Lower: 0.1, Upper: 2.0, Step: 0.1}
	return map[string]HistogramRange{
		ColMayer:          wide,
		ColMVRV:           wide,
		ColS2FCapMultiple: wide,
		ColPuell:          wide,
		ColContractor:     narrow,
		ColTic142d:        narrow,
	}
}

// Bins returns the bin count, or ErrUnsupportedOption when the range is
// inverted or narrower than one step.
func (r HistogramRange) Bins() (int, error) {
	if !(r.Step > 0) || !(r.Upper > r.Lower) {
		return 0, fmt.Errorf("%w: histogram range [%v, %v) step %v", ErrUnsupportedOption, r.Lower, r.Upper, r.Step)
	}
	n := int(math.Round((r.Upper - r.Lower) / r.Step))
	if n < 1 {
		return 0, fmt.Errorf("%w: histogram range [%v, %v) narrower than step %v", ErrUnsupportedOption, r.Lower, r.Upper, r.Step)
	}
	return n, nil
}

// Bin is one histogram bucket covering [Lower, Upper).
type Bin struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
	Count int     `json:"count"`
	CDF   float64 `json:"cdf"`
}

// Distribution summarises one metric column.
type Distribution struct {
	Metric string       `json:"metric"`
	N      int          `json:"n"`
	Mean   frame.Number `json:"mean"`
	Stddev frame.Number `json:"stddev"`
	P10    frame.Number `json:"p10"`
	Median frame.Number `json:"median"`
	P90    frame.Number `json:"p90"`
	Bins   []Bin        `json:"bins"`
}

// Histogram bins the finite values of a column into steps from lo to hi.
// Values below lo fall in the first bin and values at or above hi in the
// last. CDF is the fraction of values at or below each bin's upper edge.
func Histogram(t *frame.Table, column string, lo, hi, step float64) (Distribution, error) {
	n, err := HistogramRange{Lower: lo, Upper: hi, Step: step}.Bins()
	if err != nil {
		return Distribution{}, err
	}
	vals, err := t.Column(column)
	if err != nil {
		return Distribution{}, err
	}

	finite := make([]float64, 0, len(vals))
	for _, v := range vals {
		if frame.IsFinite(v) {
			finite = append(finite, v)
		}
	}

	bins := make([]Bin, n)
	for i := range bins {
		bins[i].Lower = round(lo + float64(i)*step)
		bins[i].Upper = round(lo + float64(i+1)*step)
	}
	for _, v := range finite {
		i := int(math.Floor((v - lo) / step))
		if i < 0 {
			i = 0
		}
		if i >= n {
			i = n - 1
		}
		bins[i].Count++
	}
	cum := 0
	for i := range bins {
		cum += bins[i].Count
		if len(finite) > 0 {
			bins[i].CDF = float64(cum) / float64(len(finite))
		}
	}

	sorted := append([]float64(nil), finite...)
	sort.Float64s(sorted)
	mean := computeMean(finite)

	return Distribution{
		Metric: column,
		N:      len(finite),
		Mean:   frame.Number(mean),
		Stddev: frame.Number(computeStddev(finite, mean)),
		P10:    frame.Number(computePercentile(sorted, 0.10)),
		Median: frame.Number(computePercentile(sorted, 0.50)),
		P90:    frame.Number(computePercentile(sorted, 0.90)),
		Bins:   bins,
	}, nil
}

// Histograms bins every listed column that exists in t with its range in
// ranges, or fallback when it has none. Absent columns are skipped so
// partial metric selections still produce output.
func Histograms(t *frame.Table, columns []string, ranges map[string]HistogramRange, fallback HistogramRange) ([]Distribution, error) {
	var out []Distribution
	for _, c := range columns {
		if !t.Has(c) {
			continue
		}
		r, ok := ranges[c]
		if !ok {
			r = fallback
		}
		d, err := Histogram(t, c, r.Lower, r.Upper, r.Step)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

func round(v float64) float64 {
	return math.Round(v*1e9) / 1e9
}

// computeMean calculates the arithmetic mean.
func computeMean(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// computeStddev calculates sample standard deviation (n-1 denominator).
func computeStddev(values []float64, mean float64) float64 {
	n := len(values)
	if n < 2 {
		return math.NaN()
	}
	sumSq := 0.0
	for _, v := range values {
		d := v - mean
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(n-1))
}

// computePercentile uses linear interpolation.
// sorted must be pre-sorted ASC.
func computePercentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	if n == 1 {
		return sorted[0]
	}

	idx := p * float64(n-1)
	lower := int(idx)
	upper := lower + 1
	if upper >= n {
		return sorted[n-1]
	}

	frac := idx - float64(lower)
	return sorted[lower] + frac*(sorted[upper]-sorted[lower])
}
