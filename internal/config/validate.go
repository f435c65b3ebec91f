package config

import (
	"fmt"
	"strings"

	"decred-onchain-lab/internal/metrics"
	"decred-onchain-lab/internal/style"
)

// Validate checks the configuration before a run.
func (c Config) Validate() error {
	if _, err := style.ParseTheme(c.Theme); err != nil {
		return err
	}
	if strings.TrimSpace(c.Output.BucketURL) == "" {
		return fmt.Errorf("output.bucket_url is required")
	}
	switch c.Output.Compress {
	case "", "gzip", "zstd":
	default:
		return fmt.Errorf("%w: output.compress %q", metrics.ErrUnsupportedOption, c.Output.Compress)
	}
	if _, err := style.Select(c.Output.Charts); err != nil {
		return err
	}
	if _, err := c.StartDate(); err != nil {
		return err
	}
	if c.Sources.PageSize <= 0 {
		return fmt.Errorf("sources.page_size must be positive")
	}
	for name, s := range map[string]SourceConfig{"coinmetrics": c.Sources.CoinMetrics, "dcrdata": c.Sources.DCRData} {
		if s.BaseURL == "" {
			return fmt.Errorf("sources.%s.base_url is required", name)
		}
		if s.RatePerSecond <= 0 || s.Burst <= 0 {
			return fmt.Errorf("sources.%s: rate and burst must be positive", name)
		}
		if s.BreakerFailures == 0 {
			return fmt.Errorf("sources.%s.breaker_failures must be positive", name)
		}
	}
	if _, err := metrics.Plan(c.Metrics.Names); err != nil {
		return err
	}
	if err := c.MetricParams().Validate(); err != nil {
		return err
	}
	if c.Staking.Tickets < 1 {
		return fmt.Errorf("staking.tickets must be at least 1")
	}
	if c.Staking.VoteDelayBlocks <= 0 || c.Staking.HorizonBlocks <= 0 || c.Staking.StepBlocks <= 0 {
		return fmt.Errorf("staking: block counts must be positive")
	}
	if c.Staking.LiveTip && c.Sources.DCRDataWS == "" {
		return fmt.Errorf("staking.live_tip requires sources.dcrdata_ws")
	}
	if c.Mining.Costs.PowerUSDPerKWh < 0 || c.Mining.Costs.Overhead < 0 || c.Mining.Costs.OpOverhead < 0 {
		return fmt.Errorf("mining.costs must not be negative")
	}
	if _, err := c.Histograms.Fallback().Bins(); err != nil {
		return fmt.Errorf("histograms: %w", err)
	}
	for name, r := range c.Histograms.Ranges {
		if _, err := r.Bins(); err != nil {
			return fmt.Errorf("histograms.ranges.%s: %w", name, err)
		}
	}
	if _, err := c.CycleKinds(); err != nil {
		return err
	}
	seen := map[string]bool{}
	for _, tbl := range c.Insights.Tables {
		if tbl.Name == "" || seen[tbl.Name] {
			return fmt.Errorf("insights.tables: empty or duplicate name %q", tbl.Name)
		}
		seen[tbl.Name] = true
	}
	return nil
}
