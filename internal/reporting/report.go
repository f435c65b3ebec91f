// Package reporting renders a pipeline run into publishable artifacts.
package reporting

import (
	"encoding/json"
	"fmt"
	"path"
	"time"

	"decred-onchain-lab/internal/events"
	"decred-onchain-lab/internal/frame"
	"decred-onchain-lab/internal/insights"
	"decred-onchain-lab/internal/metrics"
	"decred-onchain-lab/internal/mining"
	"decred-onchain-lab/internal/regression"
	"decred-onchain-lab/internal/staking"
	"decred-onchain-lab/internal/style"
	"decred-onchain-lab/internal/subsidy"
)

// Artifact names.
const (
	FullDataPrefix  = "full_decred_data"
	HeadlinesName   = "homepage_insights.json"
	S2FModelName    = "s2f_model.json"
	HardwareName    = "mining_hardware.json"
	StakingName     = "staking_roi.json"
	HistogramsName  = "hist_metrics.json"
	TreasuryName    = "dcr_treasury.json"
	CyclesName      = "event_cycles.json"
	IdealSupplyName = "dcr_ideal_supply.json"
	ManifestName    = "manifest.json"
	chartsDirectory = "charts"
)

// Content types.
const (
	ContentJSON    = "application/json"
	ContentCSV     = "text/csv"
	ContentParquet = "application/vnd.apache.parquet"
)

// Artifact is one rendered output file.
type Artifact struct {
	Name        string
	ContentType string
	Data        []byte
}

// Cycles holds the cycle comparison for one event kind.
type Cycles struct {
	Kind   events.Kind         `json:"kind"`
	Points []events.CyclePoint `json:"points"`
}

// Report is everything a run produced. Nil or empty parts are skipped.
type Report struct {
	RunID       string
	GeneratedAt time.Time
	Theme       style.Theme

	Table      *frame.Table
	Treasury   *frame.Table
	Insights   *insights.Set
	Fit        *regression.Fit
	Hardware   []mining.Summary
	Staking    *staking.Projection
	Supply     []subsidy.SupplyPoint
	Histograms []metrics.Distribution
	Events     []events.PricedEvent
	Cycles     []Cycles
	Charts     []style.Chart
}

// Artifacts renders the report in publishing order.
func (r *Report) Artifacts() ([]Artifact, error) {
	if r.Table == nil {
		return nil, fmt.Errorf("report %s has no table", r.RunID)
	}
	var out []Artifact
	add := func(name, contentType string, data []byte, err error) error {
		if err != nil {
			return fmt.Errorf("render %s: %w", name, err)
		}
		out = append(out, Artifact{Name: name, ContentType: contentType, Data: data})
		return nil
	}

	b, err := RenderTableJSON(r.Table)
	if err := add(FullDataPrefix+".json", ContentJSON, b, err); err != nil {
		return nil, err
	}
	b, err = RenderTableCSV(r.Table)
	if err := add(FullDataPrefix+".csv", ContentCSV, b, err); err != nil {
		return nil, err
	}
	b, err = RenderTableParquet(r.Table)
	if err := add(FullDataPrefix+".parquet", ContentParquet, b, err); err != nil {
		return nil, err
	}

	if r.Insights != nil {
		for _, name := range r.Insights.Order {
			b, err := RenderOverviewJSON(r.Insights.Tables[name])
			if err := add(name+".json", ContentJSON, b, err); err != nil {
				return nil, err
			}
		}
		b, err := RenderJSON(r.Insights.Insights)
		if err := add(HeadlinesName, ContentJSON, b, err); err != nil {
			return nil, err
		}
	}

	for _, c := range r.Charts {
		b, err := RenderChartJSON(c, r.Table, r.Theme)
		if err := add(ChartName(c.ID, r.Theme), ContentJSON, b, err); err != nil {
			return nil, err
		}
	}

	type optional struct {
		name string
		skip bool
		v    any
	}
	for _, o := range []optional{
		{S2FModelName, r.Fit == nil, r.Fit},
		{HardwareName, len(r.Hardware) == 0, r.Hardware},
		{StakingName, r.Staking == nil, r.Staking},
		{HistogramsName, len(r.Histograms) == 0, r.Histograms},
		{CyclesName, len(r.Cycles) == 0, cyclesDoc{Events: r.Events, Cycles: r.Cycles}},
		{IdealSupplyName, len(r.Supply) == 0, r.Supply},
	} {
		if o.skip {
			continue
		}
		b, err := RenderJSON(o.v)
		if err := add(o.name, ContentJSON, b, err); err != nil {
			return nil, err
		}
	}

	if r.Treasury != nil {
		b, err := RenderTableJSON(r.Treasury)
		if err := add(TreasuryName, ContentJSON, b, err); err != nil {
			return nil, err
		}
	}
	return out, nil
}

type cyclesDoc struct {
	Events []events.PricedEvent `json:"events"`
	Cycles []Cycles             `json:"cycles"`
}

// ChartName returns charts/<id>_<theme>.json.
func ChartName(id string, th style.Theme) string {
	return path.Join(chartsDirectory, fmt.Sprintf("%s_%s.json", id, th))
}

// RenderJSON encodes v with two-space indentation.
func RenderJSON(v any) ([]byte, error) {
	return json.MarshalIndent(v, "", "  ")
}
