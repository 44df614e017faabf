package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"CrowdedCOT/internal/di"
	"CrowdedCOT/internal/export"
	internalrepo "CrowdedCOT/internal/repository"
	"CrowdedCOT/internal/usecase"
	"CrowdedCOT/pkg/logger"
)

func newCFTCCmd(c *cli) *cobra.Command {
	var start, end, token, dataset string
	cmd := &cobra.Command{
		Use:   "cftc",
		Short: "Load TFF reports from the CFTC Public Reporting Environment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fs := cmd.Flags()
			c.cfg.Source.Kind = "cftc"
			if fs.Changed("start-date") {
				c.cfg.CFTC.StartDate = start
			}
			if fs.Changed("end-date") {
				c.cfg.CFTC.EndDate = end
			}
			if fs.Changed("api-token") {
				c.cfg.CFTC.APIToken = token
			}
			if fs.Changed("dataset-id") {
				c.cfg.CFTC.DatasetID = dataset
			}
			return c.runOnce(cmd)
		},
	}
	fs := cmd.Flags()
	fs.StringVar(&start, "start-date", "", "first report date, YYYY-MM-DD (default 2010-01-01)")
	fs.StringVar(&end, "end-date", "", "last report date, YYYY-MM-DD (default open-ended)")
	fs.StringVar(&token, "api-token", "", "Socrata app token (or COT_CFTC_API_TOKEN)")
	fs.StringVar(&dataset, "dataset-id", "", "dataset alias or Socrata id (default TFF_COMBINED)")
	c.bindEngineFlags(fs)
	c.bindOutputFlags(fs)
	return cmd
}

func newCSVCmd(c *cli) *cobra.Command {
	var paths []string
	cmd := &cobra.Command{
		Use:   "csv [path ...]",
		Short: "Load TFF observations from local CSV files",
		Long: `Load TFF observations from local CSV files. Paths and globs may be given
as arguments, with --path, or both: --path a.csv b.csv c.csv reads all three.`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c.cfg.Source.Kind = "csv"
			paths = append(paths, args...)
			if len(paths) > 0 {
				c.cfg.CSV.Paths = paths
			}
			return c.runOnce(cmd)
		},
	}
	fs := cmd.Flags()
	fs.StringArrayVar(&paths, "path", nil, "CSV file or glob; repeatable, extra arguments are paths too (or csv.paths)")
	c.bindEngineFlags(fs)
	c.bindOutputFlags(fs)
	return cmd
}

func newClickHouseCmd(c *cli) *cobra.Command {
	var table, start, end string
	var initSchema bool
	cmd := &cobra.Command{
		Use:   "clickhouse",
		Short: "Load TFF observations from a ClickHouse table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fs := cmd.Flags()
			c.cfg.Source.Kind = "clickhouse"
			if fs.Changed("table") {
				c.cfg.ClickHouse.Table = table
			}
			if fs.Changed("start-date") {
				c.cfg.CFTC.StartDate = start
			}
			if fs.Changed("end-date") {
				c.cfg.CFTC.EndDate = end
			}
			if initSchema {
				if err := c.initSchema(cmd.Context()); err != nil {
					return err
				}
			}
			return c.runOnce(cmd)
		},
	}
	fs := cmd.Flags()
	fs.StringVar(&table, "table", "", "source table (default cot_tff_observations)")
	fs.StringVar(&start, "start-date", "", "first report date, YYYY-MM-DD")
	fs.StringVar(&end, "end-date", "", "last report date, YYYY-MM-DD")
	fs.BoolVar(&initSchema, "init-schema", false, "create the table if it does not exist")
	c.bindEngineFlags(fs)
	c.bindOutputFlags(fs)
	return cmd
}

func (c *cli) initSchema(ctx context.Context) error {
	client, err := di.ProvideClickHouseClient(ctx, c.cfg)
	if err != nil {
		return err
	}
	defer client.Close()
	if err := client.InitSchema(ctx, internalrepo.Schema(c.cfg.ClickHouse.Table)); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

// runOnce loads, computes, writes the requested exports, prints the summary
// and optionally publishes.
func (c *cli) runOnce(cmd *cobra.Command) error {
	if err := c.applyEngineFlags(cmd.Flags()); err != nil {
		return err
	}
	// one-shot runs have no scrape endpoint
	c.cfg.Metrics.Enabled = false

	l, err := di.ProvideLogger(c.cfg)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	uc, cleanup, err := di.InitializeUseCase(ctx, c.cfg, l)
	if err != nil {
		return err
	}
	defer cleanup()

	res, err := uc.Run(ctx, usecase.RunParams{})
	if err != nil {
		return err
	}

	for _, o := range []struct {
		path   string
		format export.Format
	}{
		{c.outputs.csv, export.FormatCSV},
		{c.outputs.json, export.FormatJSON},
		{c.outputs.xlsx, export.FormatXLSX},
	} {
		if o.path == "" {
			continue
		}
		if err := export.ToFile(o.path, o.format, res.Table); err != nil {
			return err
		}
		l.Info("wrote output",
			logger.String("format", string(o.format)),
			logger.String("path", o.path),
			logger.Int("rows", len(res.Table.Rows)))
	}

	if err := export.WriteSummary(c.out, res.Table); err != nil {
		return err
	}

	if c.publish {
		if err := uc.Publish(ctx, res); err != nil {
			if errors.Is(err, usecase.ErrNoPublisher) {
				return fmt.Errorf("--publish needs kafka.brokers: %w", err)
			}
			return err
		}
	}
	return nil
}
