package pipeline

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"gocloud.dev/blob/memblob"

	"decred-onchain-lab/internal/events"
	"decred-onchain-lab/internal/frame"
	"decred-onchain-lab/internal/insights"
	"decred-onchain-lab/internal/metrics"
	"decred-onchain-lab/internal/mining"
	"decred-onchain-lab/internal/reporting"
	"decred-onchain-lab/internal/sources"
	"decred-onchain-lab/internal/sources/dcrdata"
	"decred-onchain-lab/internal/staking"
	"decred-onchain-lab/internal/storage/memory"
	"decred-onchain-lab/internal/style"
)

const testDays = 800

var testStart = time.Date(2016, 2, 8, 0, 0, 0, 0, time.UTC)

func testDates(n int) []time.Time {
	out := make([]time.Time, n)
	for i := range out {
		out[i] = testStart.AddDate(0, 0, i)
	}
	return out
}

func series(name string, f func(i int) float64) frame.Series {
	s := frame.Series{Name: name, Dates: testDates(testDays), Values: make([]float64, testDays)}
	for i := range s.Values {
		s.Values[i] = f(i)
	}
	return s
}

type fakeMarket struct {
	calls []string
	err   error
}

func (m *fakeMarket) AssetMetrics(_ context.Context, asset string, names []string, _ time.Time) ([]frame.Series, error) {
	m.calls = append(m.calls, asset)
	if m.err != nil {
		return nil, m.err
	}
	if asset == BTCAsset {
		return []frame.Series{
			series(metrics.ColPriceUSD, func(int) float64 { return 10000 }),
			series("CapMrktCurUSD", func(int) float64 { return 2e11 }),
			series(metrics.ColCapRealUSD, func(int) float64 { return 1e11 }),
		}, nil
	}
	supply := 1_700_000.0
	sply := series(metrics.ColSplyCur, func(i int) float64 {
		supply += 8000 - float64(i)
		return supply
	})
	return []frame.Series{
		series(metrics.ColPriceUSD, func(i int) float64 { return 10 + float64(i%50) }),
		series(metrics.ColPriceBTC, func(int) float64 { return 0.001 }),
		sply,
		series(metrics.ColCapRealUSD, func(i int) float64 { return 5e6 + float64(i)*1e4 }),
		series(metrics.ColIssContNtv, func(i int) float64 { return 8000 - float64(i) }),
		series(metrics.ColBlkCnt, func(int) float64 { return 288 }),
		series(metrics.ColHashRate, func(i int) float64 { return 1000 + float64(i)*10 }),
		series(metrics.ColDiffMean, func(i int) float64 { return 1e9 + float64(i) }),
		series(metrics.ColTxCnt, func(int) float64 { return 4000 }),
		series(metrics.ColAdrActCnt, func(int) float64 { return 1500 }),
		series(metrics.ColTxTfrValAdjNtv, func(int) float64 { return 80000 }),
	}, nil
}

// fakeExplorer reports no ticket price for the last lagDays days.
type fakeExplorer struct{ lagDays int }

func (e fakeExplorer) Series(_ context.Context, fields []dcrdata.Field) ([]frame.Series, error) {
	values := map[string]func(int) float64{
		metrics.ColTicPriceAvg: func(i int) float64 {
			if i >= testDays-e.lagDays {
				return math.NaN()
			}
			return 120
		},
		metrics.ColTicVol:     func(i int) float64 { return 20000 + float64(i%7)*100 },
		metrics.ColTfrVol:     func(int) float64 { return 90000 },
		metrics.ColAnonMixVol: func(int) float64 { return 30000 },
	}
	out := make([]frame.Series, len(fields))
	for i, f := range fields {
		out[i] = series(f.Column, values[f.Column])
	}
	return out, nil
}

func (fakeExplorer) Treasury(_ context.Context, addr string) (*frame.Table, error) {
	if err := dcrdata.ValidateAddress(addr); err != nil {
		return nil, err
	}
	tbl, err := frame.New(testDates(60))
	if err != nil {
		return nil, err
	}
	in, out, net := make([]float64, 60), make([]float64, 60), make([]float64, 60)
	for i := range in {
		in[i], out[i], net[i] = 100, 40, 60
	}
	return tbl.WithColumns(
		frame.Col{Name: metrics.ColTreasuryIn, Values: in},
		frame.Col{Name: metrics.ColTreasuryOut, Values: out},
		frame.Col{Name: metrics.ColTreasuryNet, Values: net},
		frame.Col{Name: metrics.ColTreasuryBal, Values: frame.CumSum(net)},
	)
}

type fakeTip struct{ height int64 }

func (f fakeTip) Next(context.Context) (dcrdata.Tip, error) {
	return dcrdata.Tip{Height: f.height, Time: testStart.AddDate(0, 0, testDays)}, nil
}

func testOptions(t *testing.T) Options {
	t.Helper()
	sp := staking.DefaultParams()
	sp.Tickets = 2
	return Options{
		Market:          &fakeMarket{},
		Explorer:        fakeExplorer{},
		Start:           testStart,
		TreasuryAddress: "Dcur2mcGjmENx4DhNqDctW5wJCVyT3Qeqkx",
		MetricParams:    metrics.DefaultParams(),
		Devices: []mining.Device{
			{Model: "DR3", HashrateTHs: 7.8, PowerKW: 1.41, PriceUSD: 1500, BlkStart: 100000},
		},
		Costs:         mining.DefaultCosts(),
		Staking:       sp,
		InsightTables: insights.DefaultTables(),
		Histograms: HistogramOptions{
			Metrics:  metrics.HistogramMetrics,
			Ranges:   metrics.DefaultHistogramRanges(),
			Fallback: metrics.HistogramRange{Lower: 0, Upper: 5, Step: 0.5},
		},
		Theme:  style.Dark,
		Charts: style.Registry(),
	}
}

func fixedClock() time.Time { return time.Date(2018, 4, 20, 6, 0, 0, 0, time.UTC) }

func TestPipeline_Run_AllPhases(t *testing.T) {
	ctx := context.Background()
	bucket := memblob.OpenBucket(nil)
	defer bucket.Close()
	pub, err := reporting.NewPublisher(bucket)
	if err != nil {
		t.Fatalf("publisher: %v", err)
	}

	runs := memory.NewRunStore()
	points := memory.NewMetricPointStore()
	ins := memory.NewInsightStore()

	opts := testOptions(t)
	opts.Publisher = pub
	opts.Archive = &Archive{Runs: runs, Insights: ins, Points: points, BatchSize: 10000}

	res, err := New(opts).WithClock(fixedClock).WithRunID(func() string { return "run-1" }).Run(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if res.Table.Len() != testDays {
		t.Errorf("expected %d rows, got %d", testDays, res.Table.Len())
	}
	if len(res.Steps) != len(metrics.Names()) {
		t.Errorf("expected every step to run, got %v", res.Steps)
	}
	for _, c := range []string{metrics.ColBTCPriceUSD, metrics.ColMVRV, metrics.ColS2FCapMultiple, "DR3" + mining.SuffixCount} {
		if !res.Table.Has(c) {
			t.Errorf("missing column %s", c)
		}
	}
	if res.Fit == nil || res.Fit.N == 0 {
		t.Fatalf("expected s2f fit, got %+v", res.Fit)
	}
	if len(res.Hardware) != 1 {
		t.Errorf("expected 1 hardware summary, got %d", len(res.Hardware))
	}
	if res.Staking == nil || len(res.Staking.Points) == 0 {
		t.Fatalf("expected staking projection")
	}
	if res.Staking.Params.StartHeight != int64(288*(testDays-1)) {
		t.Errorf("staking start height = %d, want %d", res.Staking.Params.StartHeight, 288*(testDays-1))
	}
	if len(res.Cycles) != 2 {
		t.Errorf("expected bottom and top cycles, got %d", len(res.Cycles))
	}
	if len(res.Supply) != testDays || res.Supply[len(res.Supply)-1].Height != int64(288*testDays) {
		t.Errorf("ideal supply should reach the last height, got %d points", len(res.Supply))
	}
	if len(res.Insights.Insights) != 3 {
		t.Errorf("expected 3 headline insights, got %d", len(res.Insights.Insights))
	}
	if len(res.Charts) == 0 {
		t.Errorf("expected charts")
	}

	if res.Manifest == nil {
		t.Fatalf("expected manifest")
	}
	ok, err := bucket.Exists(ctx, reporting.ManifestName)
	if err != nil || !ok {
		t.Errorf("manifest not written: %v", err)
	}
	ok, _ = bucket.Exists(ctx, reporting.ChartName("mvrv", style.Dark))
	if !ok {
		t.Errorf("mvrv chart not written")
	}
	ok, _ = bucket.Exists(ctx, reporting.IdealSupplyName)
	if !ok {
		t.Errorf("ideal supply not written")
	}

	run, err := runs.GetByID(ctx, "run-1")
	if err != nil {
		t.Fatalf("run record: %v", err)
	}
	if run.Status != "ok" || run.Rows != testDays || run.S2FSlope == nil {
		t.Errorf("unexpected run record %+v", run)
	}
	if points.Count() == 0 {
		t.Errorf("expected archived metric points")
	}
	heads, err := ins.GetHeadlines(ctx, "run-1")
	if err != nil || len(heads) != 3 {
		t.Errorf("expected 3 archived headlines, got %d (%v)", len(heads), err)
	}
}

func TestPipeline_Run_FetchFailureIsArchived(t *testing.T) {
	ctx := context.Background()
	runs := memory.NewRunStore()

	opts := testOptions(t)
	opts.Market = &fakeMarket{err: &sources.UpstreamError{Source: "coinmetrics", Status: 503}}
	opts.Archive = &Archive{Runs: runs}

	_, err := New(opts).WithRunID(func() string { return "run-f" }).Run(ctx)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "phase fetch") {
		t.Errorf("error should name the phase: %v", err)
	}
	var up *sources.UpstreamError
	if !errors.As(err, &up) || up.Status != 503 {
		t.Errorf("expected upstream error, got %v", err)
	}

	run, err := runs.GetByID(ctx, "run-f")
	if err != nil {
		t.Fatalf("run record: %v", err)
	}
	if run.Status != "failed" || run.Error == "" {
		t.Errorf("expected failed run record, got %+v", run)
	}
}

func TestPipeline_Run_MetricSubset(t *testing.T) {
	opts := testOptions(t)
	opts.MetricNames = []string{"mayer"}

	res, err := New(opts).Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(res.Steps) != 1 || res.Steps[0] != "mayer" {
		t.Errorf("expected only mayer, got %v", res.Steps)
	}
	if len(res.Hardware) != 0 {
		t.Errorf("mining should be skipped without income columns")
	}
	if res.Staking != nil {
		t.Errorf("staking should not run without blk")
	}
	if res.Supply != nil {
		t.Errorf("ideal supply needs blk")
	}
	for _, c := range res.Charts {
		if c.ID != "mayer" {
			t.Errorf("unexpected chart %s", c.ID)
		}
	}
	if _, ok := res.Insights.Tables["homepage_featured_chart_insights"]; !ok {
		t.Errorf("featured insights only need mayer columns")
	}
	if _, ok := res.Insights.Tables["homepage_charts_table"]; ok {
		t.Errorf("charts table needs steps that did not run")
	}
}

func TestPipeline_Run_CycleKinds(t *testing.T) {
	opts := testOptions(t)
	opts.CycleKinds = []events.Kind{events.KindTop}

	res, err := New(opts).Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(res.Cycles) != 1 || res.Cycles[0].Kind != events.KindTop {
		t.Errorf("expected only the top cycle, got %+v", res.Cycles)
	}
}

func TestPipeline_Run_LaggingExplorer(t *testing.T) {
	opts := testOptions(t)
	opts.Explorer = fakeExplorer{lagDays: 2}

	res, err := New(opts).Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Staking == nil {
		t.Fatal("expected staking projection from an earlier row")
	}
	if got, want := res.Staking.Params.StartDate, testStart.AddDate(0, 0, testDays-3); !got.Equal(want) {
		t.Errorf("start date = %s, want %s", got, want)
	}
	if res.Staking.Params.StartHeight != int64(288*(testDays-2)) {
		t.Errorf("start height = %d, want %d", res.Staking.Params.StartHeight, 288*(testDays-2))
	}
	if res.Staking.Params.TicketPrice != 120 {
		t.Errorf("ticket price = %v", res.Staking.Params.TicketPrice)
	}

	opts.Explorer = fakeExplorer{lagDays: testDays}
	res, err = New(opts).Run(context.Background())
	if err != nil {
		t.Fatalf("run without ticket prices: %v", err)
	}
	if res.Staking != nil {
		t.Errorf("staking should be skipped without ticket prices")
	}
}

func TestPipeline_Run_LiveTip(t *testing.T) {
	opts := testOptions(t)
	opts.LiveTip = true

	_, err := New(opts).Run(context.Background())
	if !errors.Is(err, ErrNoTip) {
		t.Fatalf("expected ErrNoTip, got %v", err)
	}

	opts.Tip = fakeTip{height: 250000}
	res, err := New(opts).Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Staking.Params.StartHeight != 250000 {
		t.Errorf("expected tip height, got %d", res.Staking.Params.StartHeight)
	}
}

func TestPipeline_Fit(t *testing.T) {
	m := &fakeMarket{}
	opts := testOptions(t)
	opts.Market = m

	fit, err := New(opts).Fit(context.Background())
	if err != nil {
		t.Fatalf("fit: %v", err)
	}
	if fit.N == 0 || fit.Slope == 0 {
		t.Errorf("unexpected fit %+v", fit)
	}
	if len(m.calls) != 2 {
		t.Errorf("expected dcr and btc fetches, got %v", m.calls)
	}
}
