// Package insights builds the small summary tables shown on the website.
package insights

import (
	"fmt"

	"decred-onchain-lab/internal/frame"
	"decred-onchain-lab/internal/metrics"
)

// Row is a snapshot of one column.
type Row struct {
	Name      string       `json:"name"`
	Today     frame.Number `json:"today"`
	Yesterday frame.Number `json:"yesterday"`
	PastWeek  frame.Number `json:"past_week"`
	MA28      frame.Number `json:"28dayMA"`
}

const maWindow = 28

// Overview snapshots each column at the last row, the row before, seven
// rows back and the trailing 28-row mean at the last row. Short tables
// give NaN for offsets they cannot reach.
func Overview(t *frame.Table, columns []string) ([]Row, error) {
	if err := t.Require(columns...); err != nil {
		return nil, err
	}
	out := make([]Row, 0, len(columns))
	for _, c := range columns {
		v, _ := t.Column(c)
		ma := frame.RollingMean(v, maWindow)
		out = append(out, Row{
			Name:      c,
			Today:     frame.Number(at(v, 1)),
			Yesterday: frame.Number(at(v, 2)),
			PastWeek:  frame.Number(at(v, 7)),
			MA28:      frame.Number(at(ma, 1)),
		})
	}
	return out, nil
}

// at returns x[len-offset], NaN when out of range.
func at(x []float64, offset int) float64 {
	i := len(x) - offset
	if i < 0 || i >= len(x) {
		return nan
	}
	return x[i]
}

// TableSpec names an overview table and its columns.
type TableSpec struct {
	Name    string   `yaml:"name"`
	Columns []string `yaml:"columns"`
}

// DefaultTables returns the homepage tables.
func DefaultTables() []TableSpec {
	return []TableSpec{
		{
			Name:    "homepage_charts_table",
			Columns: []string{metrics.ColMVRV, metrics.ColMayer, metrics.ColPriceBTC, metrics.ColMrktGradient, metrics.ColUnrealisedPnL},
		},
		{
			Name: "homepage_metric_table",
			Columns: []string{
				metrics.ColPriceUSD, metrics.ColCapMrktCurUSD, metrics.ColTicPriceAvg, metrics.ColTicUSDCost,
				metrics.ColHashrateTHs, metrics.ColTxCnt, metrics.ColTxTfrValMean, metrics.ColAdrActCnt,
			},
		},
		{
			Name:    "homepage_featured_chart_insights",
			Columns: []string{metrics.MayerColumn(200), metrics.ColMayer, metrics.ColPriceUSD},
		},
	}
}

// Set is every insight artifact of a run.
type Set struct {
	Tables   map[string][]Row `json:"tables"`
	Order    []string         `json:"-"`
	Insights []Insight        `json:"insights"`
}

// Build computes every configured table and the headline insights.
// treasury may be nil, in which case the treasury insight is left out.
func Build(t, treasury *frame.Table, specs []TableSpec) (*Set, error) {
	set := &Set{Tables: make(map[string][]Row, len(specs))}
	for _, s := range specs {
		if _, dup := set.Tables[s.Name]; dup {
			return nil, fmt.Errorf("insight table %q defined twice", s.Name)
		}
		rows, err := Overview(t, s.Columns)
		if err != nil {
			return nil, fmt.Errorf("insight table %s: %w", s.Name, err)
		}
		set.Tables[s.Name] = rows
		set.Order = append(set.Order, s.Name)
	}
	hl, err := Headlines(t, treasury)
	if err != nil {
		return nil, err
	}
	set.Insights = hl
	return set, nil
}
