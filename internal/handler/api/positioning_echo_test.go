package api

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CrowdedCOT/internal/domain/models"
	domrepo "CrowdedCOT/internal/domain/repository"
	"CrowdedCOT/internal/services/positioning"
	"CrowdedCOT/internal/usecase"
	xhttp "CrowdedCOT/pkg/http"
	"CrowdedCOT/pkg/http/middleware"
	xlogger "CrowdedCOT/pkg/logger"
)

type stubSource struct {
	table *models.Table
	err   error
}

func (s *stubSource) Kind() domrepo.SourceKind { return domrepo.SourceCSV }

func (s *stubSource) Load(ctx context.Context) (*models.Table, error) { return s.table, s.err }

func stubTable() *models.Table {
	t := &models.Table{Categories: models.PrimaryCategories}
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	for _, contract := range []string{"NQ", "ES"} {
		for i := 0; i < 8; i++ {
			t.Rows = append(t.Rows, models.Observation{
				ReportDate:   start.AddDate(0, 0, 7*i),
				Contract:     contract,
				OpenInterest: 1000,
				Positions: map[models.Category]models.Position{
					models.AssetManager:   {Long: float64(100 + 20*i), Short: 100},
					models.LeveragedFunds: {Long: 100, Short: float64(100 + 20*i)},
				},
			})
		}
	}
	return t
}

type envelope struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newTestServer(t *testing.T, src *stubSource, opts ...xhttp.ServerOption) (*echo.Echo, *PositioningEchoHandler) {
	t.Helper()
	base := positioning.DefaultParams()
	base.LookbackWeeks, base.MinRequiredWeeks = 4, 3
	e, err := positioning.New(base)
	require.NoError(t, err)
	uc := usecase.NewPositioningUseCase(src, e)
	h := NewPositioningEchoHandler(xlogger.Nop(), uc, e.Params())
	srv := xhttp.NewServer(h, opts...)
	return srv.Echo(), h
}

func get(e *echo.Echo, target string, header ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, data interface{}) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	if data != nil {
		require.NoError(t, json.Unmarshal(env.Data, data))
	}
	return env
}

func TestPositioning(t *testing.T) {
	e, _ := newTestServer(t, &stubSource{table: stubTable()})

	rec := get(e, "/api/positioning")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body struct {
		RunID   string                   `json:"run_id"`
		Source  string                   `json:"source"`
		Params  positioning.Params       `json:"params"`
		Columns []string                 `json:"columns"`
		Total   int                      `json:"total"`
		Rows    []map[string]interface{} `json:"rows"`
	}
	env := decode(t, rec, &body)
	assert.Equal(t, http.StatusOK, env.Status)
	assert.NotEmpty(t, body.RunID)
	assert.Equal(t, "csv", body.Source)
	assert.Equal(t, 4, body.Params.LookbackWeeks)
	assert.Equal(t, positioning.Columns(models.PrimaryCategories), body.Columns)
	assert.Equal(t, 16, body.Total)
	require.Len(t, body.Rows, 16)
	assert.Equal(t, "ES", body.Rows[0]["contract"])
	assert.Nil(t, body.Rows[0]["am_z"], "first weeks have no z-score")
	assert.NotNil(t, body.Rows[7]["am_z"])
	assert.Equal(t, "private, max-age=300", rec.Header().Get(echo.HeaderCacheControl))
}

func TestPositioningContractAndOverrides(t *testing.T) {
	e, _ := newTestServer(t, &stubSource{table: stubTable()})

	rec := get(e, "/api/positioning?contract=nq&lookback_weeks=6&confirm_weeks=3")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body struct {
		Params positioning.Params       `json:"params"`
		Rows   []map[string]interface{} `json:"rows"`
	}
	decode(t, rec, &body)
	assert.Equal(t, 6, body.Params.LookbackWeeks)
	assert.Equal(t, 3, body.Params.MinRequiredWeeks, "untouched params keep the configured value")
	assert.Equal(t, 3, body.Params.ConfirmWeeks)
	require.Len(t, body.Rows, 8)
	for _, r := range body.Rows {
		assert.Equal(t, "NQ", r["contract"])
	}
}

func TestPositioningZeroOverride(t *testing.T) {
	e, _ := newTestServer(t, &stubSource{table: stubTable()})

	rec := get(e, "/api/positioning?lf_short_pct=0")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var body struct {
		Params positioning.Params       `json:"params"`
		Rows   []map[string]interface{} `json:"rows"`
	}
	decode(t, rec, &body)
	assert.Equal(t, 0.0, body.Params.LFShortPctThreshold)
	assert.Equal(t, 90.0, body.Params.AMLongPctThreshold)
	assert.Equal(t, 4, body.Params.LookbackWeeks)
	for _, r := range body.Rows {
		assert.Equal(t, false, r["lf_crowded_short"], "rank never reaches zero and z stays above -2")
	}

	rec = get(e, "/api/positioning?lookback_weeks=0")
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
}

func TestPositioningCSV(t *testing.T) {
	e, _ := newTestServer(t, &stubSource{table: stubTable()})

	rec := get(e, "/api/positioning?format=csv&contract=ES")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get(echo.HeaderContentType), "text/csv"))

	recs, err := csv.NewReader(rec.Body).ReadAll()
	require.NoError(t, err)
	require.Len(t, recs, 9)
	assert.Equal(t, positioning.ColReportDate, recs[0][0])
	assert.Equal(t, "ES", recs[1][1])
}

func TestPositioningValidation(t *testing.T) {
	e, _ := newTestServer(t, &stubSource{table: stubTable()})

	for _, target := range []string{
		"/api/positioning?format=xml",
		"/api/positioning?am_long_pct=150",
		"/api/positioning?lookback_weeks=-1",
		"/api/positioning?threshold=abc",
		"/api/positioning?contract=E1",
	} {
		t.Run(target, func(t *testing.T) {
			rec := get(e, target)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		})
	}

	rec := get(e, "/api/positioning?am_long_pct=150")
	var errs []xhttp.ValidationError
	decode(t, rec, &errs)
	require.NotEmpty(t, errs)
	assert.Equal(t, "am_long_pct", errs[0].Field)
	assert.Equal(t, "ERR_LTE", errs[0].Code)
}

func TestPositioningSourceError(t *testing.T) {
	e, _ := newTestServer(t, &stubSource{err: errors.New("upstream 503")})

	rec := get(e, "/api/positioning/latest")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	env := decode(t, rec, nil)
	assert.Contains(t, string(env.Data), "ERR_SOURCE")
	assert.NotContains(t, string(env.Data), "upstream 503", "causes stay in the logs")
}

func TestLatest(t *testing.T) {
	e, _ := newTestServer(t, &stubSource{table: stubTable()})

	rec := get(e, "/api/positioning/latest")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body struct {
		ReportDate *string                  `json:"report_date"`
		Summaries  []models.SummaryResponse `json:"summaries"`
	}
	decode(t, rec, &body)
	require.NotNil(t, body.ReportDate)
	assert.Equal(t, "2024-02-20", *body.ReportDate)
	require.Len(t, body.Summaries, 2)
	assert.Equal(t, "ES", body.Summaries[0].Contract)
	require.NotNil(t, body.Summaries[0].AMZ)
	assert.True(t, body.Summaries[0].AMCrowdedLong, "a rising ratio ranks at the top")
}

func TestLatestEmpty(t *testing.T) {
	e, _ := newTestServer(t, &stubSource{table: &models.Table{}})

	rec := get(e, "/api/positioning/latest")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		ReportDate *string                  `json:"report_date"`
		Summaries  []models.SummaryResponse `json:"summaries"`
	}
	decode(t, rec, &body)
	assert.Nil(t, body.ReportDate)
	assert.Empty(t, body.Summaries)
}

func TestHealth(t *testing.T) {
	e, h := newTestServer(t, &stubSource{table: stubTable()})

	rec := get(e, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)

	h.AddHealthCheck("clickhouse", func(ctx context.Context) error { return errors.New("down") })
	rec = get(e, "/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var status map[string]string
	decode(t, rec, &status)
	assert.Equal(t, "down", status["clickhouse"])
	assert.Equal(t, "csv", status["source"])
}

func TestBearerAuth(t *testing.T) {
	e, _ := newTestServer(t, &stubSource{table: stubTable()},
		xhttp.WithMiddleware(middleware.BearerAuth("s3cret", "/healthz")))

	assert.Equal(t, http.StatusUnauthorized, get(e, "/api/positioning/latest").Code)
	assert.Equal(t, http.StatusUnauthorized, get(e, "/api/positioning/latest", "Authorization", "Bearer nope").Code)
	assert.Equal(t, http.StatusOK, get(e, "/api/positioning/latest", "Authorization", "Bearer s3cret").Code)
	assert.Equal(t, http.StatusOK, get(e, "/api/positioning/latest", "Authorization", "bearer s3cret").Code)
	assert.Equal(t, http.StatusOK, get(e, "/healthz").Code)
}

type denyAfter struct{ n int }

func (d *denyAfter) Allow(string) bool {
	d.n--
	return d.n >= 0
}

func TestRateLimit(t *testing.T) {
	var rejected []string
	e, _ := newTestServer(t, &stubSource{table: stubTable()},
		xhttp.WithMiddleware(middleware.RateLimit(&denyAfter{n: 1}, func(route string) { rejected = append(rejected, route) })))

	assert.Equal(t, http.StatusOK, get(e, "/api/positioning/latest").Code)
	rec := get(e, "/api/positioning/latest")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
	assert.Equal(t, []string{"/api/positioning/latest"}, rejected)
}
