package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"CrowdedCOT/pkg/config"
)

// cli carries state shared by the subcommands of one invocation.
type cli struct {
	out        io.Writer
	configPath string
	logLevel   string
	cfg        *config.Config

	engine  engineFlags
	outputs outputFlags
	publish bool
}

type engineFlags struct {
	threshold   float64
	lookback    int
	minRequired int
	amLongPct   float64
	lfShortPct  float64
	confirm     int
	workers     int
}

type outputFlags struct {
	csv  string
	json string
	xlsx string
}

func newRootCmd(out io.Writer) *cobra.Command {
	c := &cli{out: out}

	root := &cobra.Command{
		Use:   "crowdedcot",
		Short: "Positioning crowding metrics from CFTC Traders in Financial Futures reports",
		Long: `crowdedcot loads weekly CFTC TFF positioning for the E-mini S&P 500 (ES) and
E-mini NASDAQ-100 (NQ), derives net positioning as a share of open interest,
rolling z-scores and percentile ranks, and flags crowded asset-manager longs
and leveraged-fund shorts.

Examples:
  crowdedcot cftc --start-date 2015-01-01 --output-csv out/tff.csv
  crowdedcot csv --path 'data/*.csv' --confirm-weeks 3
  crowdedcot clickhouse --init-schema --table cot.tff
  crowdedcot serve --config config/config.yaml`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadWithEnv(c.configPath)
			if err != nil {
				return err
			}
			if c.logLevel != "" {
				cfg.Log.Level = c.logLevel
			}
			c.cfg = cfg
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&c.configPath, "config", "", "YAML config file (defaults apply when empty)")
	pf.StringVar(&c.logLevel, "log-level", "", "log level override (debug, info, warn, error)")

	root.AddCommand(
		newCFTCCmd(c),
		newCSVCmd(c),
		newClickHouseCmd(c),
		newServeCmd(c),
	)
	return root
}

func (c *cli) bindEngineFlags(fs *pflag.FlagSet) {
	fs.Float64Var(&c.engine.threshold, "extreme-threshold", 0, "absolute z-score marking an extreme (default 2.0)")
	fs.IntVar(&c.engine.lookback, "lookback-weeks", 0, "rolling window length in weeks (default 260)")
	fs.IntVar(&c.engine.minRequired, "min-required-weeks", 0, "history needed before z-scores are reported (default 156)")
	fs.Float64Var(&c.engine.amLongPct, "am-long-pct", 0, "asset-manager percentile rank at or above which longs are crowded (default 90)")
	fs.Float64Var(&c.engine.lfShortPct, "lf-short-pct", 0, "leveraged-fund percentile rank at or below which shorts are crowded (default 10)")
	fs.IntVar(&c.engine.confirm, "confirm-weeks", 0, "consecutive extreme weeks required for confirmation (default 2)")
	fs.IntVar(&c.engine.workers, "workers", 0, "contracts computed in parallel (default 1)")
}

func (c *cli) bindOutputFlags(fs *pflag.FlagSet) {
	fs.StringVar(&c.outputs.csv, "output-csv", "", "write the derived table as CSV")
	fs.StringVar(&c.outputs.json, "output-json", "", "write the derived table as JSON records")
	fs.StringVar(&c.outputs.xlsx, "output-xlsx", "", "write the derived table as an Excel workbook")
	fs.BoolVar(&c.publish, "publish", false, "publish latest signals to Kafka (needs kafka.brokers)")
}

// applyEngineFlags overlays explicitly set engine flags on the config.
func (c *cli) applyEngineFlags(fs *pflag.FlagSet) error {
	p := &c.cfg.Engine.Params
	if fs.Changed("extreme-threshold") {
		p.Threshold = c.engine.threshold
	}
	if fs.Changed("lookback-weeks") {
		p.LookbackWeeks = c.engine.lookback
	}
	if fs.Changed("min-required-weeks") {
		p.MinRequiredWeeks = c.engine.minRequired
	}
	if fs.Changed("am-long-pct") {
		p.AMLongPctThreshold = c.engine.amLongPct
	}
	if fs.Changed("lf-short-pct") {
		p.LFShortPctThreshold = c.engine.lfShortPct
	}
	if fs.Changed("confirm-weeks") {
		p.ConfirmWeeks = c.engine.confirm
	}
	if fs.Changed("workers") {
		c.cfg.Engine.Workers = c.engine.workers
	}
	if err := c.cfg.Validate(); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}
	return nil
}
