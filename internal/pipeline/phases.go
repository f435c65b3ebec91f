package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"decred-onchain-lab/internal/events"
	"decred-onchain-lab/internal/frame"
	"decred-onchain-lab/internal/insights"
	"decred-onchain-lab/internal/metrics"
	"decred-onchain-lab/internal/mining"
	"decred-onchain-lab/internal/regression"
	"decred-onchain-lab/internal/reporting"
	"decred-onchain-lab/internal/staking"
	"decred-onchain-lab/internal/style"
	"decred-onchain-lab/internal/subsidy"
)

// ErrNoTip is returned when a live tip is requested without a tip source.
var ErrNoTip = errors.New("live tip requested without a tip source")

type inputs struct {
	dcr      []frame.Series
	btc      []frame.Series
	explorer []frame.Series
	treasury *frame.Table
}

func (p *Pipeline) fetch(ctx context.Context) (*inputs, error) {
	in := &inputs{}
	var err error
	if in.dcr, err = p.opts.Market.AssetMetrics(ctx, DCRAsset, DCRMetrics, p.opts.Start); err != nil {
		return nil, fmt.Errorf("%s metrics: %w", DCRAsset, err)
	}
	if in.btc, err = p.opts.Market.AssetMetrics(ctx, BTCAsset, BTCMetrics, p.opts.Start); err != nil {
		return nil, fmt.Errorf("%s metrics: %w", BTCAsset, err)
	}
	if in.explorer, err = p.opts.Explorer.Series(ctx, p.opts.Fields); err != nil {
		return nil, fmt.Errorf("explorer charts: %w", err)
	}
	if p.opts.TreasuryAddress != "" {
		if in.treasury, err = p.opts.Explorer.Treasury(ctx, p.opts.TreasuryAddress); err != nil {
			return nil, fmt.Errorf("treasury: %w", err)
		}
	}
	return in, nil
}

// assemble indexes every series on the Decred price dates. Bitcoin columns
// get the BTC_ prefix.
func assemble(in *inputs) (*frame.Table, error) {
	var base frame.Series
	found := false
	others := make([]frame.Series, 0, len(in.dcr)+len(in.btc)+len(in.explorer))
	for _, s := range in.dcr {
		if s.Name == metrics.ColPriceUSD && !found {
			base, found = s, true
			continue
		}
		others = append(others, s)
	}
	if !found {
		return nil, &frame.MissingColumnError{Column: metrics.ColPriceUSD}
	}
	for _, s := range in.btc {
		others = append(others, s.Prefixed(metrics.BTCPrefix))
	}
	others = append(others, in.explorer...)
	return frame.Align(base, others...)
}

func (p *Pipeline) enrich(t *frame.Table) (*frame.Table, []metrics.Step, *regression.Fit, error) {
	steps, err := metrics.Plan(p.opts.MetricNames)
	if err != nil {
		return nil, nil, nil, err
	}
	out, a, err := metrics.EnrichObserved(t, p.opts.MetricNames, p.opts.MetricParams, p.opts.Recorder.RecordStep)
	if err != nil {
		return nil, nil, nil, err
	}
	return out, steps, a.S2F, nil
}

// mining is skipped when no hardware is configured or the income step
// was not selected.
func (p *Pipeline) mining(log zerolog.Logger, t *frame.Table) (*frame.Table, []mining.Summary, error) {
	if len(p.opts.Devices) == 0 {
		return t, nil, nil
	}
	if !t.Has(metrics.ColPoWIncomeUSD) {
		log.Warn().Str("column", metrics.ColPoWIncomeUSD).Msg("mining economics skipped")
		return t, nil, nil
	}
	out, err := mining.Apply(t, p.opts.Devices, p.opts.Costs)
	if err != nil {
		return nil, nil, err
	}
	sum, err := mining.Summarize(out, p.opts.Devices, p.opts.Costs)
	if err != nil {
		return nil, nil, err
	}
	return out, sum, nil
}

// staking starts the projection at the last complete day, the second to
// last row, or the latest earlier row with a block height and ticket price
// when the explorer lags. The live tip replaces the start height and date.
func (p *Pipeline) staking(ctx context.Context, log zerolog.Logger, t *frame.Table) (*staking.Projection, error) {
	if p.opts.Staking.Tickets == 0 {
		return nil, nil
	}
	if err := t.Require(metrics.ColBlk, metrics.ColTicPriceAvg); err != nil {
		log.Warn().Err(err).Msg("staking projection skipped")
		return nil, nil
	}
	row := p.stakingRow(t)
	if row < 0 {
		log.Warn().Msg("staking projection skipped: no row with a block height and ticket price")
		return nil, nil
	}
	if last := t.Len() - 2; row < last {
		log.Warn().
			Str("date", t.Date(row).Format(time.DateOnly)).
			Int("lag_days", last-row).
			Msg("staking projection starts before the last complete day")
	}

	sp := p.opts.Staking
	sp.StartDate = t.Date(row)
	blk, _ := t.Value(metrics.ColBlk, row)
	sp.TicketPrice, _ = t.Value(metrics.ColTicPriceAvg, row)
	sp.StartHeight = int64(blk)

	if p.opts.LiveTip {
		if p.opts.Tip == nil {
			return nil, ErrNoTip
		}
		tip, err := p.opts.Tip.Next(ctx)
		if err != nil {
			return nil, fmt.Errorf("chain tip: %w", err)
		}
		sp.StartHeight = tip.Height
		sp.StartDate = frame.Day(tip.Time)
	}
	return staking.Project(p.opts.MetricParams.Schedule, sp)
}

// stakingRow walks back from the second to last row to the first row with
// a positive ticket price and, unless the live tip supplies it, a block
// height. It returns -1 when there is none.
func (p *Pipeline) stakingRow(t *frame.Table) int {
	for i := t.Len() - 2; i >= 0; i-- {
		price, _ := t.Value(metrics.ColTicPriceAvg, i)
		if !frame.IsFinite(price) || price <= 0 {
			continue
		}
		if blk, _ := t.Value(metrics.ColBlk, i); p.opts.LiveTip || (frame.IsFinite(blk) && blk > 0) {
			return i
		}
	}
	return -1
}

// cycles joins the events inside the table range and compares each cycle
// kind against them.
func cycles(t *frame.Table, kinds []events.Kind) ([]events.PricedEvent, []reporting.Cycles, error) {
	var inRange []events.Event
	for _, e := range events.Table() {
		if t.Index(e.Date) >= 0 {
			inRange = append(inRange, e)
		}
	}
	priced, err := events.Join(t, inRange)
	if err != nil {
		return nil, nil, err
	}
	var out []reporting.Cycles
	for _, k := range kinds {
		if !hasKind(inRange, k) {
			continue
		}
		pts, err := events.Cycles(t, inRange, k)
		if err != nil {
			return nil, nil, err
		}
		if len(pts) > 0 {
			out = append(out, reporting.Cycles{Kind: k, Points: pts})
		}
	}
	return priced, out, nil
}

// supply returns the ideal issuance curve, one point per day, up to the
// last observed height. A table without heights yields nil.
func (p *Pipeline) supply(t *frame.Table) []subsidy.SupplyPoint {
	s := p.opts.MetricParams.Schedule
	blk, err := t.Column(metrics.ColBlk)
	if s == nil || err != nil {
		return nil
	}
	for i := len(blk) - 1; i >= 0; i-- {
		if frame.IsFinite(blk[i]) && blk[i] > 0 {
			return s.Curve(int64(blk[i]), subsidy.BlocksPerDay)
		}
	}
	return nil
}

func hasKind(evs []events.Event, k events.Kind) bool {
	for _, e := range evs {
		if e.Kind == k || (k == events.KindBottom && e.Kind == events.KindGenesis) {
			return true
		}
	}
	return false
}

func (p *Pipeline) histograms(t *frame.Table) ([]metrics.Distribution, error) {
	h := p.opts.Histograms
	var present []string
	for _, c := range h.Metrics {
		if t.Has(c) {
			present = append(present, c)
		}
	}
	if len(present) == 0 {
		return nil, nil
	}
	return metrics.Histograms(t, present, h.Ranges, h.Fallback)
}

// insights drops tables whose columns come from steps that did not run.
func (p *Pipeline) insights(log zerolog.Logger, t, treasury *frame.Table) (*insights.Set, error) {
	specs := make([]insights.TableSpec, 0, len(p.opts.InsightTables))
	for _, s := range p.opts.InsightTables {
		if err := t.Require(s.Columns...); err != nil {
			if len(p.opts.MetricNames) == 0 {
				return nil, fmt.Errorf("insight table %s: %w", s.Name, err)
			}
			log.Warn().Str("table", s.Name).Err(err).Msg("insight table skipped")
			continue
		}
		specs = append(specs, s)
	}
	return insights.Build(t, treasury, specs)
}

// chartsFor keeps the charts whose steps ran and whose columns exist.
func chartsFor(charts []style.Chart, steps []string, t *frame.Table) []style.Chart {
	ran := make(map[string]bool, len(steps))
	for _, s := range steps {
		ran[s] = true
	}
	var out []style.Chart
outer:
	for _, c := range charts {
		for _, r := range c.Requires {
			if !ran[r] {
				continue outer
			}
		}
		if t.Require(c.Columns()...) != nil {
			continue
		}
		out = append(out, c)
	}
	return out
}
