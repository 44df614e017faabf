package logger

import (
	"bufio"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readLines(t *testing.T, path string) []map[string]interface{} {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var out []map[string]interface{}
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var m map[string]interface{}
		require.NoError(t, json.Unmarshal(sc.Bytes(), &m), sc.Text())
		out = append(out, m)
	}
	require.NoError(t, sc.Err())
	return out
}

func TestJSONFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	l, err := New(&Config{Level: "info", Format: "json", Output: path})
	require.NoError(t, err)

	run := l.With(String("run_id", "run-1"))
	run.Info("loaded",
		Int("rows", 12),
		Bool("partial", false),
		Duration("latency_ms", 1500*time.Millisecond),
		Date("report_date", time.Date(2024, 2, 20, 15, 0, 0, 0, time.UTC)),
		Strings("contracts", []string{"ES", "NQ"}))
	run.Debug("dropped below level")
	l.Error("load failed", Error(errors.New("boom")))

	lines := readLines(t, path)
	require.Len(t, lines, 2)

	assert.Equal(t, "info", lines[0]["level"])
	assert.Equal(t, "loaded", lines[0]["message"])
	assert.Equal(t, "run-1", lines[0]["run_id"])
	assert.Equal(t, 12.0, lines[0]["rows"])
	assert.Equal(t, false, lines[0]["partial"])
	assert.Equal(t, 1500.0, lines[0]["latency_ms"])
	assert.Equal(t, "2024-02-20", lines[0]["report_date"])
	assert.Equal(t, "ES, NQ", lines[0]["contracts"])

	assert.Equal(t, "error", lines[1]["level"])
	assert.Equal(t, "boom", lines[1]["error"])
	assert.NotContains(t, lines[1], "run_id")
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(&Config{Level: "loud"})
	require.Error(t, err)
}
