package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"CrowdedCOT/pkg/config"
)

// writeFixture writes n weekly ES rows whose asset-manager net long rises
// every week.
func writeFixture(t *testing.T, dir string, n int) string {
	t.Helper()
	var b strings.Builder
	b.WriteString("report_date,market_name,open_interest,asset_mgr_long,asset_mgr_short,lev_fund_long,lev_fund_short\n")
	d := time.Date(2023, 1, 3, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "%s,E-mini S&P 500,1000,%d,100,100,%d\n", d.AddDate(0, 0, 7*i).Format("2006-01-02"), 100+10*i, 100+5*i)
	}
	path := filepath.Join(dir, "es.csv")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd(&out)
	cmd.SetArgs(append(args, "--log-level", "error"))
	cmd.SetErr(&bytes.Buffer{})
	err := cmd.Execute()
	return out.String(), err
}

func TestCSVCommand(t *testing.T) {
	dir := t.TempDir()
	src := writeFixture(t, dir, 10)
	jsonOut := filepath.Join(dir, "out", "tff.json")
	xlsxOut := filepath.Join(dir, "out", "tff.xlsx")

	out, err := execute(t, "csv", "--path", src,
		"--lookback-weeks", "4", "--min-required-weeks", "3",
		"--output-json", jsonOut, "--output-xlsx", xlsxOut)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2, out)
	assert.Equal(t, "Latest report date: 2023-03-07", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "ES: am_z="), lines[1])
	assert.Contains(t, lines[1], "**EXTREME**")
	assert.Contains(t, lines[1], "[am crowded long confirmed]")

	b, err := os.ReadFile(jsonOut)
	require.NoError(t, err)
	var rows []map[string]interface{}
	require.NoError(t, json.Unmarshal(b, &rows))
	require.Len(t, rows, 10)
	assert.Equal(t, "ES", rows[0]["contract"])
	assert.Nil(t, rows[0]["am_z"])

	f, err := excelize.OpenFile(xlsxOut)
	require.NoError(t, err)
	defer f.Close()
	sheet, err := f.GetRows("positioning")
	require.NoError(t, err)
	assert.Len(t, sheet, 11)
}

func TestCSVCommandNoData(t *testing.T) {
	out, err := execute(t, "csv", "--path", filepath.Join(t.TempDir(), "*.csv"))
	require.NoError(t, err)
	assert.Equal(t, "No data returned.\n", out)
}

func TestInvalidFlags(t *testing.T) {
	src := writeFixture(t, t.TempDir(), 3)

	_, err := execute(t, "csv", "--path", src, "--am-long-pct", "150")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid flags")

	_, err = execute(t, "csv")
	require.Error(t, err, "csv needs a path")

	_, err = execute(t, "cftc", "--start-date", "01/02/2020")
	require.Error(t, err)
}

func TestPublishWithoutBrokers(t *testing.T) {
	src := writeFixture(t, t.TempDir(), 3)
	_, err := execute(t, "csv", "--path", src, "--publish")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kafka.brokers")
}

func TestCSVCommandPositionalPaths(t *testing.T) {
	dir := t.TempDir()
	es := writeFixture(t, dir, 10)

	var b strings.Builder
	b.WriteString("report_date,market_name,open_interest,asset_mgr_long,asset_mgr_short,lev_fund_long,lev_fund_short\n")
	d := time.Date(2023, 1, 3, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 10; i++ {
		fmt.Fprintf(&b, "%s,E-mini NASDAQ-100,1000,200,100,100,150\n", d.AddDate(0, 0, 7*i).Format("2006-01-02"))
	}
	nq := filepath.Join(dir, "nq.csv")
	require.NoError(t, os.WriteFile(nq, []byte(b.String()), 0o644))

	out, err := execute(t, "csv", "--path", es, nq, "--lookback-weeks", "4", "--min-required-weeks", "3")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3, out)
	assert.True(t, strings.HasPrefix(lines[1], "ES: "), lines[1])
	assert.True(t, strings.HasPrefix(lines[2], "NQ: "), lines[2])
}

func TestEngineFlagsKeepExplicitZero(t *testing.T) {
	c := &cli{cfg: config.Default()}
	fs := pflag.NewFlagSet("csv", pflag.ContinueOnError)
	c.bindEngineFlags(fs)
	require.NoError(t, fs.Parse([]string{"--lf-short-pct", "0", "--confirm-weeks", "3"}))

	require.NoError(t, c.applyEngineFlags(fs))
	p := c.cfg.Engine.Params
	assert.Equal(t, 0.0, p.LFShortPctThreshold)
	assert.Equal(t, 90.0, p.AMLongPctThreshold, "unset flags keep the config value")
	assert.Equal(t, 3, p.ConfirmWeeks)

	fs = pflag.NewFlagSet("csv", pflag.ContinueOnError)
	c = &cli{cfg: config.Default()}
	c.bindEngineFlags(fs)
	require.NoError(t, fs.Parse([]string{"--lookback-weeks", "0"}))
	require.Error(t, c.applyEngineFlags(fs))
}
