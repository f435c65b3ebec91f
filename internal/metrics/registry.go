// Package metrics derives on-chain and price metrics from a daily table.
//
// Each step is a pure function: it checks its input columns, computes new
// columns from trailing data only and returns a new table. Steps run in
// registry order, which is also their dependency order.
package metrics

import (
	"errors"
	"fmt"
	"strings"

	"decred-onchain-lab/internal/frame"
	"decred-onchain-lab/internal/regression"
	"decred-onchain-lab/internal/subsidy"
)

// ErrUnsupportedOption is returned for unknown metric names and invalid parameters.
var ErrUnsupportedOption = errors.New("unsupported option")

// Params holds window lengths and protocol parameters for all steps.
type Params struct {
	Schedule          *subsidy.Schedule
	HeightOffset      int64 // block height before the first table row
	MayerWindow       int
	ContractorWindow  int
	PuellWindow       int
	GradientWindow    int
	TVWAPWindows      []int
	TicketWindow      int
	S2FFlowWindow     int
	RelativeWindows   []int
	NVTWindow         int
	RibbonWindows     []int
	MACDFast          float64
	MACDSlow          float64
	MACDSignal        float64
	BlocksPerDay      int64
	TicketLockedShare float64 // share of 142-day ticket spend assumed still locked
}

// DefaultParams returns the parameter set used by the published charts.
func DefaultParams() Params {
	return Params{
		Schedule:          subsidy.Mainnet(0),
		MayerWindow:       200,
		ContractorWindow:  30,
		PuellWindow:       365,
		GradientWindow:    28,
		TVWAPWindows:      []int{14, 28, 142},
		TicketWindow:      142,
		S2FFlowWindow:     28,
		RelativeWindows:   []int{28, 142},
		NVTWindow:         28,
		RibbonWindows:     []int{9, 14, 25, 40, 60, 90, 128, 200},
		MACDFast:          12,
		MACDSlow:          26,
		MACDSignal:        9,
		BlocksPerDay:      subsidy.BlocksPerDay,
		TicketLockedShare: 0.5,
	}
}

// Validate rejects non-positive windows.
func (p Params) Validate() error {
	windows := map[string]int{
		"mayer":      p.MayerWindow,
		"contractor": p.ContractorWindow,
		"puell":      p.PuellWindow,
		"gradient":   p.GradientWindow,
		"ticket":     p.TicketWindow,
		"s2f flow":   p.S2FFlowWindow,
		"nvt":        p.NVTWindow,
	}
	for name, w := range windows {
		if w <= 0 {
			return fmt.Errorf("%w: %s window %d", ErrUnsupportedOption, name, w)
		}
	}
	for _, set := range [][]int{p.TVWAPWindows, p.RelativeWindows, p.RibbonWindows} {
		for _, w := range set {
			if w <= 0 {
				return fmt.Errorf("%w: window %d", ErrUnsupportedOption, w)
			}
		}
	}
	if p.Schedule == nil {
		return fmt.Errorf("%w: no subsidy schedule", ErrUnsupportedOption)
	}
	if p.TicketLockedShare <= 0 {
		return fmt.Errorf("%w: ticket locked share %v", ErrUnsupportedOption, p.TicketLockedShare)
	}
	return p.Schedule.Validate()
}

// Artifacts collects non-tabular outputs of a run.
type Artifacts struct {
	S2F *regression.Fit
}

// Step is one named metric derivation.
type Step struct {
	Name     string
	Requires []string // steps that must run first
	Inputs   []string // columns that must exist before Apply
	Apply    func(t *frame.Table, p Params, a *Artifacts) (*frame.Table, error)
}

var registry = []Step{
	{Name: "base", Inputs: []string{ColPriceUSD, ColSplyCur, ColCapRealUSD, ColBlkCnt}, Apply: applyBase},
	{Name: "flows", Inputs: []string{ColPriceUSD, ColTicVol, ColTfrVol, ColAnonMixVol, ColTxCnt, ColTxTfrValAdjNtv}, Apply: applyFlows},
	{Name: "hashrate", Inputs: []string{ColHashRate}, Apply: applyHashrate},
	{Name: "income", Requires: []string{"base"}, Inputs: []string{ColIssContNtv}, Apply: applyIncome},
	{Name: "commitments", Requires: []string{"income", "flows"}, Apply: applyCommitments},
	{Name: "mvrv", Requires: []string{"base"}, Apply: applyMVRV},
	{Name: "relative_mvrv", Requires: []string{"mvrv"}, Inputs: []string{ColBTCPriceUSD, ColBTCCapMrktCur, ColBTCCapRealUSD}, Apply: applyRelativeMVRV},
	{Name: "btc_denominated", Requires: []string{"base"}, Inputs: []string{ColPriceBTC, ColBTCPriceUSD}, Apply: applyBTCDenominated},
	{Name: "unrealised_pnl", Requires: []string{"base"}, Apply: applyUnrealisedPnL},
	{Name: "mayer", Apply: applyMayer, Inputs: []string{ColPriceUSD}},
	{Name: "contractor", Apply: applyContractor, Inputs: []string{ColPriceUSD}},
	{Name: "puell", Requires: []string{"income"}, Apply: applyPuell},
	{Name: "gradient", Requires: []string{"base"}, Apply: applyGradient},
	{Name: "tvwap", Inputs: []string{ColPriceUSD, ColTicVol}, Apply: applyTVWAP},
	{Name: "ticket_multiple", Requires: []string{"flows"}, Apply: applyTicketMultiple},
	{Name: "nvt_rvt", Requires: []string{"base", "flows"}, Apply: applyNVT},
	{Name: "difficulty_ribbon", Inputs: []string{ColDiffMean}, Apply: applyRibbon},
	{Name: "macd", Inputs: []string{ColPriceUSD}, Apply: applyMACD},
	{Name: "s2f", Requires: []string{"base"}, Inputs: []string{ColIssContNtv}, Apply: applyS2F},
}

// Names returns every registered step name in dependency order.
func Names() []string {
	out := make([]string, len(registry))
	for i, s := range registry {
		out[i] = s.Name
	}
	return out
}

func lookup(name string) (int, bool) {
	for i, s := range registry {
		if s.Name == name {
			return i, true
		}
	}
	return -1, false
}

// Plan resolves names and their prerequisites into registry order.
// An empty list selects every step.
func Plan(names []string) ([]Step, error) {
	if len(names) == 0 {
		return append([]Step(nil), registry...), nil
	}
	selected := make(map[int]bool)
	var visit func(name string) error
	visit = func(name string) error {
		i, ok := lookup(strings.TrimSpace(name))
		if !ok {
			return fmt.Errorf("%w: metric %q (known: %s)", ErrUnsupportedOption, name, strings.Join(Names(), ", "))
		}
		if selected[i] {
			return nil
		}
		selected[i] = true
		for _, r := range registry[i].Requires {
			if err := visit(r); err != nil {
				return err
			}
		}
		return nil
	}
	for _, n := range names {
		if err := visit(n); err != nil {
			return nil, err
		}
	}

	var steps []Step
	for i, s := range registry {
		if selected[i] {
			steps = append(steps, s)
		}
	}
	return steps, nil
}

// Enrich runs the named steps (all when names is empty) and returns the
// enriched table. The input table is not modified.
func Enrich(t *frame.Table, names []string, p Params) (*frame.Table, *Artifacts, error) {
	return EnrichObserved(t, names, p, nil)
}

// StepObserver is notified after each step.
type StepObserver func(step string, err error)

// EnrichObserved is Enrich with a per-step callback.
func EnrichObserved(t *frame.Table, names []string, p Params, observe StepObserver) (*frame.Table, *Artifacts, error) {
	if err := p.Validate(); err != nil {
		return nil, nil, err
	}
	steps, err := Plan(names)
	if err != nil {
		return nil, nil, err
	}

	a := &Artifacts{}
	for _, s := range steps {
		next, err := runStep(s, t, p, a)
		if observe != nil {
			observe(s.Name, err)
		}
		if err != nil {
			return nil, nil, err
		}
		t = next
	}
	return t, a, nil
}

func runStep(s Step, t *frame.Table, p Params, a *Artifacts) (*frame.Table, error) {
	if err := t.Require(s.Inputs...); err != nil {
		return nil, fmt.Errorf("metric %s: %w", s.Name, err)
	}
	out, err := s.Apply(t, p, a)
	if err != nil {
		return nil, fmt.Errorf("metric %s: %w", s.Name, err)
	}
	return out, nil
}

// cols fetches columns already validated by Require.
func cols(t *frame.Table, names ...string) ([][]float64, error) {
	out := make([][]float64, len(names))
	for i, n := range names {
		v, err := t.Column(n)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
