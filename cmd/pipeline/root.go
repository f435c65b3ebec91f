package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"decred-onchain-lab/internal/config"
)

// flags shared by every sub-command; zero values keep the file setting.
type flags struct {
	config      string
	output      string
	theme       string
	metrics     string
	tickets     int
	liveTip     bool
	metricsAddr string
}

func Execute(ctx context.Context) error {
	var f flags
	root := &cobra.Command{
		Use:           "pipeline",
		Short:         "Decred on-chain metric pipeline",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := root.PersistentFlags()
	pf.StringVar(&f.config, "config", "configs/pipeline.yaml", "path to the YAML configuration")
	pf.StringVar(&f.output, "output", "", "output bucket URL (file://, s3://, mem://)")
	pf.StringVar(&f.theme, "theme", "", "chart theme: dark or light")
	pf.StringVar(&f.metrics, "metrics", "", "comma separated metric steps, empty for all")
	pf.IntVar(&f.tickets, "tickets", 0, "tickets in the staking projection")
	pf.BoolVar(&f.liveTip, "live-tip", false, "start the staking projection at the explorer tip")
	pf.StringVar(&f.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address during the run")

	root.AddCommand(runCmd(&f), fitCmd(&f))
	return root.ExecuteContext(ctx)
}

func runCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Fetch, enrich, publish and archive one report",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(f)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}
}

func fitCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "fit",
		Short: "Fit the stock-to-flow model and print its coefficients",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(f)
			if err != nil {
				return err
			}
			return fit(cmd.Context(), cfg, cmd.OutOrStdout())
		},
	}
}

func loadConfig(f *flags) (config.Config, error) {
	cfg, err := config.LoadFile(f.config)
	if err != nil {
		return cfg, fmt.Errorf("load config: %w", err)
	}
	cfg.ApplyEnv()
	f.apply(&cfg)
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func (f *flags) apply(cfg *config.Config) {
	if f.output != "" {
		cfg.Output.BucketURL = f.output
	}
	if f.theme != "" {
		cfg.Theme = f.theme
	}
	if f.metrics != "" {
		var names []string
		for _, n := range strings.Split(f.metrics, ",") {
			if n = strings.TrimSpace(n); n != "" {
				names = append(names, n)
			}
		}
		cfg.Metrics.Names = names
	}
	if f.tickets > 0 {
		cfg.Staking.Tickets = f.tickets
	}
	if f.liveTip {
		cfg.Staking.LiveTip = true
	}
	if f.metricsAddr != "" {
		cfg.Observability.ListenAddr = f.metricsAddr
	}
}
