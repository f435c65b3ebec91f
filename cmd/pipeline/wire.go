package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"decred-onchain-lab/internal/config"
	"decred-onchain-lab/internal/logging"
	"decred-onchain-lab/internal/mining"
	"decred-onchain-lab/internal/observability"
	"decred-onchain-lab/internal/pipeline"
	"decred-onchain-lab/internal/regression"
	"decred-onchain-lab/internal/reporting"
	"decred-onchain-lab/internal/sources"
	"decred-onchain-lab/internal/sources/coinmetrics"
	"decred-onchain-lab/internal/sources/dcrdata"
	"decred-onchain-lab/internal/storage/clickhouse"
	"decred-onchain-lab/internal/storage/memory"
	"decred-onchain-lab/internal/storage/migrations"
	"decred-onchain-lab/internal/storage/postgres"
	"decred-onchain-lab/internal/style"
)

func run(ctx context.Context, cfg config.Config) error {
	log := logging.New(cfg.Log)
	m := observability.NewMetrics(cfg.Observability.Namespace)

	if addr := cfg.Observability.ListenAddr; addr != "" {
		bound, stop, err := serveMetrics(addr, m, log)
		if err != nil {
			return err
		}
		defer stop()
		log.Info().Str("addr", bound).Msg("serving metrics")
	}

	opts, closeAll, err := buildOptions(ctx, cfg, log, m)
	defer closeAll()
	if err != nil {
		return err
	}

	res, err := pipeline.New(opts).WithLogger(log).Run(ctx)
	if url := cfg.Observability.PushgatewayURL; url != "" && res != nil {
		if perr := m.Push(ctx, url, cfg.Observability.Job, res.RunID); perr != nil {
			log.Warn().Err(perr).Str("url", url).Msg("metrics push failed")
		}
	}
	if err != nil {
		return err
	}
	if res.Manifest != nil {
		log.Info().
			Str("bucket", cfg.Output.BucketURL).
			Int("files", len(res.Manifest.Files)).
			Msg("report published")
	}
	return nil
}

func fit(ctx context.Context, cfg config.Config, w io.Writer) error {
	log := logging.New(cfg.Log)
	opts := pipeline.Options{
		Market:       coinMetrics(cfg, log, nil),
		Explorer:     explorer(cfg, log, nil),
		MetricParams: cfg.MetricParams(),
	}
	start, err := cfg.StartDate()
	if err != nil {
		return err
	}
	opts.Start = start

	f, err := pipeline.New(opts).WithLogger(log).Fit(ctx)
	if err != nil {
		return err
	}
	return writeFit(w, f)
}

func writeFit(w io.Writer, f *regression.Fit) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(f)
}

// serveMetrics exposes m on /metrics and /health until stop is called.
func serveMetrics(addr string, m *observability.Metrics, log zerolog.Logger) (string, func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", func() {}, fmt.Errorf("metrics listener: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.Warn().Err(err).Msg("metrics server stopped")
		}
	}()
	stop := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
	return ln.Addr().String(), stop, nil
}

// buildOptions wires sources, publisher and archive from cfg. The returned
// close function is always safe to call.
func buildOptions(ctx context.Context, cfg config.Config, log zerolog.Logger, m *observability.Metrics) (pipeline.Options, func(), error) {
	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	start, err := cfg.StartDate()
	if err != nil {
		return pipeline.Options{}, closeAll, err
	}
	theme, err := style.ParseTheme(cfg.Theme)
	if err != nil {
		return pipeline.Options{}, closeAll, err
	}
	charts, err := style.Select(cfg.Output.Charts)
	if err != nil {
		return pipeline.Options{}, closeAll, err
	}

	kinds, err := cfg.CycleKinds()
	if err != nil {
		return pipeline.Options{}, closeAll, err
	}

	var devices []mining.Device
	if cfg.Mining.HardwareCSV != "" {
		if devices, err = mining.LoadHardwareFile(cfg.Mining.HardwareCSV); err != nil {
			return pipeline.Options{}, closeAll, fmt.Errorf("load hardware: %w", err)
		}
	}

	opts := pipeline.Options{
		Market:          coinMetrics(cfg, log, m),
		Explorer:        explorer(cfg, log, m),
		Start:           start,
		TreasuryAddress: cfg.Sources.TreasuryAddress,
		MetricNames:     cfg.Metrics.Names,
		MetricParams:    cfg.MetricParams(),
		Devices:         devices,
		Costs:           cfg.Mining.Costs,
		Staking:         cfg.StakingParams(),
		LiveTip:         cfg.Staking.LiveTip,
		InsightTables:   cfg.Insights.Tables,
		Histograms: pipeline.HistogramOptions{
			Metrics:  cfg.Histograms.Metrics,
			Ranges:   cfg.Histograms.Ranges,
			Fallback: cfg.Histograms.Fallback(),
		},
		CycleKinds: kinds,
		Theme:      theme,
		Charts:     charts,
		Recorder:   m,
	}
	if cfg.Staking.LiveTip {
		opts.Tip = dcrdata.NewTipWatcher(cfg.Sources.DCRDataWS, nil, logging.Component(log, "tip"))
	}

	bucket, err := reporting.OpenBucket(ctx, cfg.Output.BucketURL)
	if err != nil {
		return opts, closeAll, err
	}
	closers = append(closers, func() {
		if err := bucket.Close(); err != nil {
			log.Warn().Err(err).Msg("close bucket")
		}
	})
	pub, err := reporting.NewPublisher(bucket,
		reporting.WithPrefix(cfg.Output.Prefix),
		reporting.WithCompression(cfg.Output.Compress),
		reporting.WithPublishLogger(logging.Component(log, "publisher")),
		reporting.WithWriteObserver(func(_ string, size int) { m.RecordArtifact(size) }),
	)
	if err != nil {
		return opts, closeAll, err
	}
	opts.Publisher = pub

	archive, closeArchive, err := openArchive(ctx, cfg.Archive, log)
	closers = append(closers, closeArchive)
	if err != nil {
		return opts, closeAll, err
	}
	archive.Observe = m.RecordArchive
	opts.Archive = archive
	return opts, closeAll, nil
}

func newClient(name string, sc config.SourceConfig, log zerolog.Logger, m *observability.Metrics) *sources.Client {
	opts := []sources.Option{
		sources.WithTimeout(sc.Timeout),
		sources.WithRateLimit(sc.RatePerSecond, sc.Burst),
		sources.WithBreaker(sc.BreakerFailures, sc.BreakerCooldown),
		sources.WithLogger(logging.Component(log, name)),
	}
	if m != nil {
		opts = append(opts, sources.WithObserver(m.RecordFetch))
	}
	return sources.New(name, sc.BaseURL, opts...)
}

func coinMetrics(cfg config.Config, log zerolog.Logger, m *observability.Metrics) *coinmetrics.Client {
	return coinmetrics.New(newClient("coinmetrics", cfg.Sources.CoinMetrics, log, m), cfg.Sources.PageSize)
}

func explorer(cfg config.Config, log zerolog.Logger, m *observability.Metrics) *dcrdata.Client {
	return dcrdata.New(newClient("dcrdata", cfg.Sources.DCRData, log, m))
}

// openArchive selects Postgres for runs and insights and ClickHouse for
// metric points, applying the embedded schema first. A store without a DSN
// falls back to memory.
func openArchive(ctx context.Context, cfg config.ArchiveConfig, log zerolog.Logger) (*pipeline.Archive, func(), error) {
	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	a := &pipeline.Archive{
		Runs:     memory.NewRunStore(),
		Insights: memory.NewInsightStore(),
		Points:   memory.NewMetricPointStore(),
	}

	if cfg.PostgresDSN != "" {
		pool, err := postgres.NewPool(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, closeAll, fmt.Errorf("postgres archive: %w", err)
		}
		closers = append(closers, pool.Close)
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			return nil, closeAll, fmt.Errorf("postgres archive: %w", err)
		}
		a.Runs = postgres.NewRunStore(pool)
		a.Insights = postgres.NewInsightStore(pool)
	}
	if cfg.ClickHouseDSN != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickHouseDSN)
		if err != nil {
			return nil, closeAll, fmt.Errorf("clickhouse archive: %w", err)
		}
		closers = append(closers, func() {
			if err := conn.Close(); err != nil {
				log.Warn().Err(err).Msg("close clickhouse")
			}
		})
		a.Points = clickhouse.NewMetricPointStore(conn)
	}
	return a, closeAll, nil
}
