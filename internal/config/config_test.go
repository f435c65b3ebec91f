package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"decred-onchain-lab/internal/events"
	"decred-onchain-lab/internal/metrics"
)

func TestDefaultValidates(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pipeline.yaml")
	data := []byte(`
theme: light
output:
  bucket_url: mem://
  compress: zstd
metrics:
  names: [mvrv, s2f]
  mayer_window: 100
staking:
  tickets: 3
mining:
  costs:
    power_usd_per_kwh: 0.08
`)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "light", cfg.Theme)
	assert.Equal(t, "zstd", cfg.Output.Compress)
	assert.Equal(t, []string{"mvrv", "s2f"}, cfg.Metrics.Names)
	assert.Equal(t, 100, cfg.MetricParams().MayerWindow)
	assert.Equal(t, 365, cfg.MetricParams().PuellWindow)
	assert.Equal(t, 3, cfg.StakingParams().Tickets)
	assert.Equal(t, 0.08, cfg.Mining.Costs.PowerUSDPerKWh)
	// untouched keys keep their defaults
	assert.Equal(t, 0.05, cfg.Mining.Costs.Overhead)
	assert.Equal(t, DefaultTreasuryAddress, cfg.Sources.TreasuryAddress)
	assert.Equal(t, 2.0, cfg.Histograms.Ranges[metrics.ColContractor].Upper)
}

func TestLoadFile_HistogramRanges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pipeline.yaml")
	data := []byte(`
histograms:
  ranges:
    Mayer_Multiple: {lower: 0.5, upper: 4.0, step: 0.25}
`)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, metrics.HistogramRange{Lower: 0.5, Upper: 4.0, Step: 0.25}, cfg.Histograms.Ranges[metrics.ColMayer])
	assert.Equal(t, metrics.HistogramRange{Lower: 0.1, Upper: 3.0, Step: 0.1}, cfg.Histograms.Ranges[metrics.ColMVRV])
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestApplyEnv(t *testing.T) {
	t.Setenv(EnvPostgresDSN, "postgres://x")
	t.Setenv(EnvPushgateway, "http://push:9091")
	cfg := Default()
	cfg.ApplyEnv()
	assert.Equal(t, "postgres://x", cfg.Archive.PostgresDSN)
	assert.Equal(t, "", cfg.Archive.ClickHouseDSN)
	assert.Equal(t, "http://push:9091", cfg.Observability.PushgatewayURL)
	// output location never comes from the environment
	assert.Equal(t, "file://./out", cfg.Output.BucketURL)
}

func TestCycleKinds(t *testing.T) {
	cfg := Default()
	kinds, err := cfg.CycleKinds()
	require.NoError(t, err)
	assert.Equal(t, []events.Kind{events.KindBottom, events.KindTop}, kinds)

	cfg.Cycles.Kinds = []string{"top"}
	kinds, err = cfg.CycleKinds()
	require.NoError(t, err)
	assert.Equal(t, []events.Kind{events.KindTop}, kinds)
}

func TestValidate_Rejects(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		is     error
	}{
		{"theme", func(c *Config) { c.Theme = "neon" }, metrics.ErrUnsupportedOption},
		{"metric", func(c *Config) { c.Metrics.Names = []string{"rainbow"} }, metrics.ErrUnsupportedOption},
		{"chart", func(c *Config) { c.Output.Charts = []string{"rainbow"} }, metrics.ErrUnsupportedOption},
		{"compress", func(c *Config) { c.Output.Compress = "lz4" }, metrics.ErrUnsupportedOption},
		{"window", func(c *Config) { c.Metrics.TVWAPWindows = []int{-1} }, metrics.ErrUnsupportedOption},
		{"start", func(c *Config) { c.Sources.Start = "08/02/2016" }, nil},
		{"tickets", func(c *Config) { c.Staking.Tickets = 0 }, nil},
		{"live tip", func(c *Config) { c.Staking.LiveTip = true; c.Sources.DCRDataWS = "" }, nil},
		{"histogram narrower than a step", func(c *Config) { c.Histograms.Lower, c.Histograms.Upper = 0, 0.04 }, metrics.ErrUnsupportedOption},
		{"histogram metric range", func(c *Config) {
			c.Histograms.Ranges = map[string]metrics.HistogramRange{metrics.ColMayer: {Lower: 2, Upper: 1, Step: 0.1}}
		}, metrics.ErrUnsupportedOption},
		{"cycle kind", func(c *Config) { c.Cycles.Kinds = []string{"btm", "peak"} }, metrics.ErrUnsupportedOption},
		{"tables", func(c *Config) { c.Insights.Tables = append(c.Insights.Tables, c.Insights.Tables[0]) }, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			if tc.is != nil {
				assert.True(t, errors.Is(err, tc.is), "got %v", err)
			}
		})
	}
}
