// Package config loads the pipeline configuration from YAML.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"decred-onchain-lab/internal/events"
	"decred-onchain-lab/internal/insights"
	"decred-onchain-lab/internal/logging"
	"decred-onchain-lab/internal/metrics"
	"decred-onchain-lab/internal/mining"
	"decred-onchain-lab/internal/staking"
	"decred-onchain-lab/internal/style"
	"decred-onchain-lab/internal/subsidy"
)

// Environment variables read by ApplyEnv.
const (
	EnvPostgresDSN   = "DCR_LAB_POSTGRES_DSN"
	EnvClickHouseDSN = "DCR_LAB_CLICKHOUSE_DSN"
	EnvPushgateway   = "DCR_LAB_PUSHGATEWAY_URL"
)

// DefaultTreasuryAddress is the Decred mainnet legacy treasury address.
const DefaultTreasuryAddress = "Dcur2mcGjmENx4DhNqDctW5wJCVyT3Qeqkx"

type Config struct {
	Theme string         `yaml:"theme"`
	Log   logging.Config `yaml:"log"`

	Output        OutputConfig        `yaml:"output"`
	Sources       SourcesConfig       `yaml:"sources"`
	Metrics       MetricsConfig       `yaml:"metrics"`
	Staking       StakingConfig       `yaml:"staking"`
	Mining        MiningConfig        `yaml:"mining"`
	Insights      InsightsConfig      `yaml:"insights"`
	Histograms    HistogramConfig     `yaml:"histograms"`
	Cycles        CyclesConfig        `yaml:"cycles"`
	Archive       ArchiveConfig       `yaml:"archive"`
	Observability ObservabilityConfig `yaml:"observability"`
}

type OutputConfig struct {
	BucketURL string   `yaml:"bucket_url"` // file://, s3:// or mem://
	Prefix    string   `yaml:"prefix"`
	Compress  string   `yaml:"compress"` // "", "gzip" or "zstd"
	Charts    []string `yaml:"charts"`   // chart ids, empty for all
}

type SourceConfig struct {
	BaseURL         string        `yaml:"base_url"`
	Timeout         time.Duration `yaml:"timeout"`
	RatePerSecond   float64       `yaml:"rate_per_second"`
	Burst           int           `yaml:"burst"`
	BreakerFailures uint32        `yaml:"breaker_failures"`
	BreakerCooldown time.Duration `yaml:"breaker_cooldown"`
}

type SourcesConfig struct {
	Start           string       `yaml:"start"` // first date, YYYY-MM-DD
	PageSize        int          `yaml:"page_size"`
	CoinMetrics     SourceConfig `yaml:"coinmetrics"`
	DCRData         SourceConfig `yaml:"dcrdata"`
	DCRDataWS       string       `yaml:"dcrdata_ws"`
	TreasuryAddress string       `yaml:"treasury_address"`
}

type MetricsConfig struct {
	Names             []string `yaml:"names"` // empty selects every step
	SplitChangeHeight int64    `yaml:"split_change_height"`
	MayerWindow       int      `yaml:"mayer_window"`
	PuellWindow       int      `yaml:"puell_window"`
	GradientWindow    int      `yaml:"gradient_window"`
	TVWAPWindows      []int    `yaml:"tvwap_windows"`
	TicketWindow      int      `yaml:"ticket_window"`
	S2FFlowWindow     int      `yaml:"s2f_flow_window"`
}

type StakingConfig struct {
	Tickets         int   `yaml:"tickets"`
	VoteDelayBlocks int64 `yaml:"vote_delay_blocks"`
	HorizonBlocks   int64 `yaml:"horizon_blocks"`
	StepBlocks      int64 `yaml:"step_blocks"`
	LiveTip         bool  `yaml:"live_tip"` // start from the explorer tip instead of the table
}

type MiningConfig struct {
	HardwareCSV string       `yaml:"hardware_csv"`
	Costs       mining.Costs `yaml:"costs"`
}

type InsightsConfig struct {
	Tables []insights.TableSpec `yaml:"tables"`
}

type HistogramConfig struct {
	Metrics []string `yaml:"metrics"`
	// range of metrics without an entry in Ranges
	Lower  float64                           `yaml:"lower"`
	Upper  float64                           `yaml:"upper"`
	Step   float64                           `yaml:"step"`
	Ranges map[string]metrics.HistogramRange `yaml:"ranges"`
}

// Fallback returns the range of metrics without their own.
func (h HistogramConfig) Fallback() metrics.HistogramRange {
	return metrics.HistogramRange{Lower: h.Lower, Upper: h.Upper, Step: h.Step}
}

type CyclesConfig struct {
	Kinds []string `yaml:"kinds"` // btm, top or genesis
}

// CycleKinds parses Cycles.Kinds.
func (c Config) CycleKinds() ([]events.Kind, error) {
	out := make([]events.Kind, 0, len(c.Cycles.Kinds))
	for _, s := range c.Cycles.Kinds {
		k, err := events.ParseKind(s)
		if err != nil {
			return nil, fmt.Errorf("cycles.kinds: %w", err)
		}
		out = append(out, k)
	}
	return out, nil
}

type ArchiveConfig struct {
	PostgresDSN   string `yaml:"postgres_dsn"`
	ClickHouseDSN string `yaml:"clickhouse_dsn"`
}

type ObservabilityConfig struct {
	Namespace      string `yaml:"namespace"`
	PushgatewayURL string `yaml:"pushgateway_url"`
	Job            string `yaml:"job"`
	ListenAddr     string `yaml:"listen_addr"` // serves /metrics during a run when set
}

func Default() Config {
	mp := metrics.DefaultParams()
	sp := staking.DefaultParams()
	return Config{
		Theme: string(style.Dark),
		Log:   logging.Config{Format: "console", Level: "info"},
		Output: OutputConfig{
			BucketURL: "file://./out",
		},
		Sources: SourcesConfig{
			Start:    "2016-02-08",
			PageSize: 10000,
			CoinMetrics: SourceConfig{
				BaseURL:         "https://community-api.coinmetrics.io/v4",
				Timeout:         30 * time.Second,
				RatePerSecond:   1.5,
				Burst:           1,
				BreakerFailures: 3,
				BreakerCooldown: time.Minute,
			},
			DCRData: SourceConfig{
				BaseURL:         "https://explorer.dcrdata.org/api",
				Timeout:         30 * time.Second,
				RatePerSecond:   2,
				Burst:           2,
				BreakerFailures: 3,
				BreakerCooldown: time.Minute,
			},
			DCRDataWS:       "wss://explorer.dcrdata.org/ps",
			TreasuryAddress: DefaultTreasuryAddress,
		},
		Metrics: MetricsConfig{
			MayerWindow:    mp.MayerWindow,
			PuellWindow:    mp.PuellWindow,
			GradientWindow: mp.GradientWindow,
			TVWAPWindows:   mp.TVWAPWindows,
			TicketWindow:   mp.TicketWindow,
			S2FFlowWindow:  mp.S2FFlowWindow,
		},
		Staking: StakingConfig{
			Tickets:         sp.Tickets,
			VoteDelayBlocks: sp.VoteDelayBlocks,
			HorizonBlocks:   sp.HorizonBlocks,
			StepBlocks:      sp.StepBlocks,
		},
		Mining: MiningConfig{
			HardwareCSV: "resources/data/dcr_mining_hardware.csv",
			Costs:       mining.DefaultCosts(),
		},
		Insights: InsightsConfig{Tables: insights.DefaultTables()},
		Histograms: HistogramConfig{
			Metrics: metrics.HistogramMetrics,
			Lower:   0.1,
			Upper:   3.0,
			Step:    0.1,
			Ranges:  metrics.DefaultHistogramRanges(),
		},
		Cycles: CyclesConfig{Kinds: []string{string(events.KindBottom), string(events.KindTop)}},
		Observability: ObservabilityConfig{
			Namespace: "dcr_onchain",
			Job:       "dcr_pipeline",
		},
	}
}

func LoadFile(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overrides connection strings from the environment.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvPostgresDSN); v != "" {
		c.Archive.PostgresDSN = v
	}
	if v := os.Getenv(EnvClickHouseDSN); v != "" {
		c.Archive.ClickHouseDSN = v
	}
	if v := os.Getenv(EnvPushgateway); v != "" {
		c.Observability.PushgatewayURL = v
	}
}

// StartDate parses Sources.Start.
func (c Config) StartDate() (time.Time, error) {
	t, err := time.Parse("2006-01-02", c.Sources.Start)
	if err != nil {
		return time.Time{}, fmt.Errorf("sources.start: %w", err)
	}
	return t.UTC(), nil
}

// MetricParams builds the metric parameters from the defaults and overrides.
func (c Config) MetricParams() metrics.Params {
	p := metrics.DefaultParams()
	p.Schedule = subsidy.Mainnet(c.Metrics.SplitChangeHeight)
	if c.Metrics.MayerWindow != 0 {
		p.MayerWindow = c.Metrics.MayerWindow
	}
	if c.Metrics.PuellWindow != 0 {
		p.PuellWindow = c.Metrics.PuellWindow
	}
	if c.Metrics.GradientWindow != 0 {
		p.GradientWindow = c.Metrics.GradientWindow
	}
	if len(c.Metrics.TVWAPWindows) > 0 {
		p.TVWAPWindows = c.Metrics.TVWAPWindows
	}
	if c.Metrics.TicketWindow != 0 {
		p.TicketWindow = c.Metrics.TicketWindow
	}
	if c.Metrics.S2FFlowWindow != 0 {
		p.S2FFlowWindow = c.Metrics.S2FFlowWindow
	}
	return p
}

// StakingParams returns the projection parameters; start height, date and
// ticket price are filled in by the pipeline.
func (c Config) StakingParams() staking.Params {
	p := staking.DefaultParams()
	p.Tickets = c.Staking.Tickets
	p.VoteDelayBlocks = c.Staking.VoteDelayBlocks
	p.HorizonBlocks = c.Staking.HorizonBlocks
	p.StepBlocks = c.Staking.StepBlocks
	return p
}
