package cftc

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CrowdedCOT/internal/domain/models"
	drepo "CrowdedCOT/internal/domain/repository"
)

var start = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

func record(date, market, oi, amL, amS, lfL, lfS string) map[string]string {
	return map[string]string{
		colReportDate:         date,
		colMarketName:         market,
		colOpenInterest:       oi,
		"asset_mgr_long_all":  amL,
		"asset_mgr_short_all": amS,
		"lev_fund_long_all":   lfL,
		"lev_fund_short_all":  lfS,
	}
}

func TestQuery(t *testing.T) {
	c := New(start, WithEndDate(time.Date(2021, 6, 30, 0, 0, 0, 0, time.UTC)), WithLimit(100))
	q := c.Query()

	assert.Equal(t, []string{"100"}, q["$limit"])
	assert.Equal(t, []string{colReportDate}, q["$order"])
	assert.Contains(t, q["$select"][0], "lev_fund_short_all")

	where := q["$where"][0]
	assert.Contains(t, where, colReportDate+" >= '2020-01-01'")
	assert.Contains(t, where, colReportDate+" <= '2021-06-30'")
	assert.Contains(t, where, "'E-MINI S&P 500'")
	assert.Contains(t, where, "'NASDAQ-100 E-MINI'")
	assert.Contains(t, where, " OR ")

	assert.NotContains(t, New(start).Query()["$where"][0], "<=")
}

func TestResolveDataset(t *testing.T) {
	assert.Equal(t, "6p9r-dwsc", ResolveDataset("TFF_COMBINED"))
	assert.Equal(t, "abcd-1234", ResolveDataset("abcd-1234"))
}

func TestLoad(t *testing.T) {
	var gotToken, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotToken = r.Header.Get("X-App-Token")
		gotPath = r.URL.Path
		assert.Equal(t, "50000", r.URL.Query().Get("$limit"))
		_ = json.NewEncoder(w).Encode([]map[string]string{
			record("2024-01-02T00:00:00.000", "E-MINI S&P 500", "2000", "900", "100", "100", "700"),
			record("2024-01-02T00:00:00.000", "nasdaq-100 e-mini", "1000", "x", "50", "10", "20"),
			record("2024-01-02T00:00:00.000", "GOLD", "1", "1", "1", "1", "1"),
		})
	}))
	defer srv.Close()

	c := New(start, WithBaseURL(srv.URL), WithAPIToken("tok"), WithRateLimit(100))
	assert.Equal(t, drepo.SourceCFTC, c.Kind())

	tbl, err := c.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok", gotToken)
	assert.Equal(t, "/6p9r-dwsc.json", gotPath)
	require.Len(t, tbl.Rows, 2, "unresolved markets are dropped")

	es := tbl.Rows[0]
	assert.Equal(t, "ES", es.Contract)
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), es.ReportDate)
	assert.Equal(t, 2000.0, es.OpenInterest)
	assert.Equal(t, models.Position{Long: 900, Short: 100}, es.Position(models.AssetManager))

	nq := tbl.Rows[1]
	assert.Equal(t, "NQ", nq.Contract)
	assert.True(t, math.IsNaN(nq.Position(models.AssetManager).Long), "bad numbers become null")
	assert.Equal(t, 50.0, nq.Position(models.AssetManager).Short)
}

func TestLoadEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("[]"))
	}))
	defer srv.Close()

	tbl, err := New(start, WithBaseURL(srv.URL)).Load(context.Background())
	require.NoError(t, err)
	assert.True(t, tbl.Empty())
}

func TestLoadRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("[]"))
	}))
	defer srv.Close()

	c := New(start, WithBaseURL(srv.URL), WithRetries(2, time.Millisecond), WithRateLimit(1000))
	_, err := c.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestLoadNoRetryByDefault(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "busy", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := New(start, WithBaseURL(srv.URL), WithRateLimit(1000)).Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestLoadDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "bad query", http.StatusBadRequest)
	}))
	defer srv.Close()

	c := New(start, WithBaseURL(srv.URL), WithRetries(3, time.Millisecond), WithRateLimit(1000))
	_, err := c.Load(context.Background())
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "400"))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}
