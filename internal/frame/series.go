package frame

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// Series is a single named daily column as delivered by an upstream source.
type Series struct {
	Name   string
	Dates  []time.Time
	Values []float64
}

// Len returns the number of points.
func (s Series) Len() int { return len(s.Dates) }

// Prefixed returns a copy of s renamed to prefix+Name.
func (s Series) Prefixed(prefix string) Series {
	s.Name = prefix + s.Name
	return s
}

// sorted returns s ordered by day, failing on length mismatch or duplicate days.
func (s Series) sorted() (Series, error) {
	if len(s.Dates) != len(s.Values) {
		return Series{}, fmt.Errorf("series %q: %d dates, %d values", s.Name, len(s.Dates), len(s.Values))
	}
	idx := make([]int, len(s.Dates))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return s.Dates[idx[a]].Before(s.Dates[idx[b]]) })

	out := Series{Name: s.Name, Dates: make([]time.Time, len(idx)), Values: make([]float64, len(idx))}
	for j, i := range idx {
		out.Dates[j] = Day(s.Dates[i])
		out.Values[j] = s.Values[i]
		if j > 0 && out.Dates[j].Equal(out.Dates[j-1]) {
			return Series{}, fmt.Errorf("series %q: duplicate day %s", s.Name, out.Dates[j].Format(time.DateOnly))
		}
	}
	return out, nil
}

// Align builds a table indexed by the days of base and left-joins every
// other series onto it. Days missing from a joined series become NaN;
// points outside the base index are dropped.
func Align(base Series, others ...Series) (*Table, error) {
	b, err := base.sorted()
	if err != nil {
		return nil, err
	}
	t, err := New(b.Dates)
	if err != nil {
		return nil, err
	}
	cols := []Col{{Name: b.Name, Values: b.Values}}
	seen := map[string]bool{b.Name: true}

	for _, o := range others {
		if seen[o.Name] {
			return nil, fmt.Errorf("series %q joined twice", o.Name)
		}
		seen[o.Name] = true

		s, err := o.sorted()
		if err != nil {
			return nil, err
		}
		v := make([]float64, t.Len())
		for i := range v {
			v[i] = math.NaN()
		}
		for i, d := range s.Dates {
			if row := t.Index(d); row >= 0 {
				v[row] = s.Values[i]
			}
		}
		cols = append(cols, Col{Name: s.Name, Values: v})
	}
	return t.WithColumns(cols...)
}
