// Package pipeline runs one end-to-end metric build:
// fetch → assemble → enrich → mining → staking → cycles → histograms →
// insights → publish → archive.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"decred-onchain-lab/internal/events"
	"decred-onchain-lab/internal/frame"
	"decred-onchain-lab/internal/insights"
	"decred-onchain-lab/internal/logging"
	"decred-onchain-lab/internal/metrics"
	"decred-onchain-lab/internal/mining"
	"decred-onchain-lab/internal/regression"
	"decred-onchain-lab/internal/reporting"
	"decred-onchain-lab/internal/sources/dcrdata"
	"decred-onchain-lab/internal/staking"
	"decred-onchain-lab/internal/style"
	"decred-onchain-lab/internal/subsidy"
)

// Coin Metrics assets and metrics fetched for the table.
var (
	DCRAsset   = "dcr"
	BTCAsset   = "btc"
	DCRMetrics = []string{
		metrics.ColPriceUSD, metrics.ColPriceBTC, metrics.ColSplyCur, metrics.ColCapRealUSD,
		metrics.ColIssContNtv, metrics.ColBlkCnt, metrics.ColHashRate, metrics.ColDiffMean,
		metrics.ColTxCnt, metrics.ColAdrActCnt, metrics.ColTxTfrValAdjNtv,
	}
	BTCMetrics = []string{metrics.ColPriceUSD, "CapMrktCurUSD", metrics.ColCapRealUSD}
)

// MarketSource delivers daily asset metrics.
type MarketSource interface {
	AssetMetrics(ctx context.Context, asset string, metrics []string, start time.Time) ([]frame.Series, error)
}

// ExplorerSource delivers explorer chart series and the treasury flow.
type ExplorerSource interface {
	Series(ctx context.Context, fields []dcrdata.Field) ([]frame.Series, error)
	Treasury(ctx context.Context, addr string) (*frame.Table, error)
}

// TipSource reports the current chain tip.
type TipSource interface {
	Next(ctx context.Context) (dcrdata.Tip, error)
}

// Publisher writes the rendered report.
type Publisher interface {
	Publish(ctx context.Context, r *reporting.Report) (*reporting.Manifest, error)
}

// Recorder receives run telemetry. *observability.Metrics implements it.
type Recorder interface {
	RecordStep(step string, err error)
	RecordPhase(phase string, elapsed time.Duration, err error)
	RecordTable(rows, columns int)
	MarkSuccess(at time.Time)
}

// HistogramOptions configures the distribution phase. Metrics without an
// entry in Ranges use Fallback.
type HistogramOptions struct {
	Metrics  []string
	Ranges   map[string]metrics.HistogramRange
	Fallback metrics.HistogramRange
}

// Options for creating a Pipeline.
type Options struct {
	// Required sources
	Market   MarketSource
	Explorer ExplorerSource

	// Optional; required when LiveTip is set
	Tip TipSource

	Start           time.Time
	TreasuryAddress string // empty skips the treasury fetch
	Fields          []dcrdata.Field

	MetricNames  []string // empty runs every step
	MetricParams metrics.Params

	Devices []mining.Device
	Costs   mining.Costs

	Staking staking.Params
	LiveTip bool

	InsightTables []insights.TableSpec
	Histograms    HistogramOptions
	CycleKinds    []events.Kind // empty compares bottoms and tops

	Theme  style.Theme
	Charts []style.Chart

	Publisher Publisher // nil skips publishing
	Archive   *Archive  // nil skips archiving
	Recorder  Recorder  // nil disables telemetry
}

// Pipeline runs the phases over one Options set.
type Pipeline struct {
	opts  Options
	log   zerolog.Logger
	clock func() time.Time
	runID func() string
}

// New creates a pipeline.
func New(opts Options) *Pipeline {
	if opts.Fields == nil {
		opts.Fields = dcrdata.DefaultFields
	}
	if opts.Recorder == nil {
		opts.Recorder = nopRecorder{}
	}
	if len(opts.CycleKinds) == 0 {
		opts.CycleKinds = []events.Kind{events.KindBottom, events.KindTop}
	}
	return &Pipeline{
		opts:  opts,
		log:   zerolog.Nop(),
		clock: func() time.Time { return time.Now().UTC() },
		runID: logging.NewRunID,
	}
}

// WithLogger sets the logger.
func (p *Pipeline) WithLogger(l zerolog.Logger) *Pipeline {
	p.log = l
	return p
}

// WithClock sets a custom clock function for deterministic output.
func (p *Pipeline) WithClock(clock func() time.Time) *Pipeline {
	p.clock = clock
	return p
}

// WithRunID fixes the run id generator.
func (p *Pipeline) WithRunID(f func() string) *Pipeline {
	p.runID = f
	return p
}

// Result is everything one run produced.
type Result struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Steps      []string

	Table      *frame.Table
	Treasury   *frame.Table
	Fit        *regression.Fit
	Hardware   []mining.Summary
	Staking    *staking.Projection
	Supply     []subsidy.SupplyPoint
	Events     []events.PricedEvent
	Cycles     []reporting.Cycles
	Histograms []metrics.Distribution
	Insights   *insights.Set
	Charts     []style.Chart
	Manifest   *reporting.Manifest
}

// Report converts the result for publishing.
func (r *Result) Report(th style.Theme) *reporting.Report {
	return &reporting.Report{
		RunID:       r.RunID,
		GeneratedAt: r.FinishedAt,
		Theme:       th,
		Table:       r.Table,
		Treasury:    r.Treasury,
		Insights:    r.Insights,
		Fit:         r.Fit,
		Hardware:    r.Hardware,
		Staking:     r.Staking,
		Supply:      r.Supply,
		Histograms:  r.Histograms,
		Events:      r.Events,
		Cycles:      r.Cycles,
		Charts:      r.Charts,
	}
}

// Run executes every phase. The first failing phase aborts the run and
// its error is returned wrapped with the phase name; a configured archive
// still records the failed run.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	res := &Result{RunID: p.runID(), StartedAt: p.clock()}
	log := logging.WithRun(p.log, res.RunID)
	log.Info().Time("start", p.opts.Start).Strs("metrics", p.opts.MetricNames).Msg("pipeline started")

	err := p.run(ctx, log, res)
	res.FinishedAt = p.clock()
	if p.opts.Archive != nil {
		aerr := p.phase(log, "archive", func() error { return p.opts.Archive.Write(ctx, res, err) })
		if err == nil {
			err = aerr
		}
	}
	if err != nil {
		log.Error().Err(err).Msg("pipeline failed")
		return res, err
	}

	p.opts.Recorder.MarkSuccess(res.FinishedAt)
	log.Info().
		Int("rows", res.Table.Len()).
		Int("columns", len(res.Table.Columns())).
		Dur("elapsed", res.FinishedAt.Sub(res.StartedAt)).
		Msg("pipeline completed")
	return res, nil
}

func (p *Pipeline) run(ctx context.Context, log zerolog.Logger, res *Result) error {
	var in *inputs
	if err := p.phase(log, "fetch", func() (err error) {
		in, err = p.fetch(ctx)
		return err
	}); err != nil {
		return err
	}
	res.Treasury = in.treasury

	var table *frame.Table
	if err := p.phase(log, "assemble", func() (err error) {
		table, err = assemble(in)
		return err
	}); err != nil {
		return err
	}

	var steps []metrics.Step
	if err := p.phase(log, "enrich", func() (err error) {
		table, steps, res.Fit, err = p.enrich(table)
		return err
	}); err != nil {
		return err
	}
	for _, s := range steps {
		res.Steps = append(res.Steps, s.Name)
	}

	if err := p.phase(log, "mining", func() (err error) {
		table, res.Hardware, err = p.mining(log, table)
		return err
	}); err != nil {
		return err
	}
	res.Table = table
	p.opts.Recorder.RecordTable(table.Len(), len(table.Columns()))

	if err := p.phase(log, "staking", func() (err error) {
		res.Staking, err = p.staking(ctx, log, table)
		return err
	}); err != nil {
		return err
	}
	if last, ok := res.Staking.Latest(); ok {
		log.Info().
			Int64("height", last.Height).
			Float64("roi_annual", last.ROIAnnual.Float()).
			Msg("staking projection")
	}
	if err := p.phase(log, "supply", func() error {
		res.Supply = p.supply(table)
		return nil
	}); err != nil {
		return err
	}
	if err := p.phase(log, "cycles", func() (err error) {
		res.Events, res.Cycles, err = cycles(table, p.opts.CycleKinds)
		return err
	}); err != nil {
		return err
	}
	if err := p.phase(log, "histograms", func() (err error) {
		res.Histograms, err = p.histograms(table)
		return err
	}); err != nil {
		return err
	}
	if err := p.phase(log, "insights", func() (err error) {
		res.Insights, err = p.insights(log, table, res.Treasury)
		return err
	}); err != nil {
		return err
	}
	res.Charts = chartsFor(p.opts.Charts, res.Steps, table)

	if p.opts.Publisher == nil {
		return nil
	}
	return p.phase(log, "publish", func() (err error) {
		res.FinishedAt = p.clock()
		res.Manifest, err = p.opts.Publisher.Publish(ctx, res.Report(p.opts.Theme))
		return err
	})
}

// Fit runs fetch, assemble and the s2f step with its prerequisites only.
func (p *Pipeline) Fit(ctx context.Context) (*regression.Fit, error) {
	log := logging.WithRun(p.log, p.runID())
	var in *inputs
	if err := p.phase(log, "fetch", func() (err error) {
		in, err = p.fetch(ctx)
		return err
	}); err != nil {
		return nil, err
	}
	table, err := assemble(in)
	if err != nil {
		return nil, fmt.Errorf("phase assemble: %w", err)
	}
	_, a, err := metrics.EnrichObserved(table, []string{"s2f"}, p.opts.MetricParams, p.opts.Recorder.RecordStep)
	if err != nil {
		return nil, fmt.Errorf("phase enrich: %w", err)
	}
	if a.S2F == nil {
		return nil, fmt.Errorf("phase enrich: s2f produced no fit")
	}
	return a.S2F, nil
}

func (p *Pipeline) phase(log zerolog.Logger, name string, f func() error) error {
	start := time.Now()
	err := f()
	elapsed := time.Since(start)
	p.opts.Recorder.RecordPhase(name, elapsed, err)
	if err != nil {
		return fmt.Errorf("phase %s: %w", name, err)
	}
	log.Debug().Str("phase", name).Dur("elapsed", elapsed).Msg("phase done")
	return nil
}

type nopRecorder struct{}

func (nopRecorder) RecordStep(string, error)                 {}
func (nopRecorder) RecordPhase(string, time.Duration, error) {}
func (nopRecorder) RecordTable(int, int)                     {}
func (nopRecorder) MarkSuccess(time.Time)                    {}
