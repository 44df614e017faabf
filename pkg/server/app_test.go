package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CrowdedCOT/internal/domain/models"
	domrepo "CrowdedCOT/internal/domain/repository"
	"CrowdedCOT/internal/handler/api"
	"CrowdedCOT/internal/service/ratelimit"
	"CrowdedCOT/internal/services/positioning"
	"CrowdedCOT/internal/usecase"
	"CrowdedCOT/pkg/config"
	applogger "CrowdedCOT/pkg/logger"
)

type emptyRunner struct{}

func (emptyRunner) Run(ctx context.Context, p usecase.RunParams) (*usecase.RunResult, error) {
	return &usecase.RunResult{
		RunID:  "run-1",
		Source: domrepo.SourceCSV,
		Params: positioning.DefaultParams(),
		Table:  &models.DerivedTable{Columns: positioning.Columns(models.PrimaryCategories)},
	}, nil
}

func (emptyRunner) Source() domrepo.SourceKind { return domrepo.SourceCSV }

func newApp(t *testing.T, token string, lim *ratelimit.Limiter) *App {
	t.Helper()
	cfg := config.Default()
	cfg.Metrics.Enabled = false
	cfg.Server.AuthToken = token
	l := applogger.Nop()
	h := api.NewPositioningEchoHandler(l, emptyRunner{}, positioning.DefaultParams())
	return New(cfg, l, h, lim)
}

func get(a *App, path, token string) int {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.Echo().ServeHTTP(rec, req)
	return rec.Code
}

func TestAppAuth(t *testing.T) {
	a := newApp(t, "tok", nil)

	assert.Equal(t, http.StatusOK, get(a, "/healthz", ""))
	assert.Equal(t, http.StatusUnauthorized, get(a, "/api/positioning", ""))
	assert.Equal(t, http.StatusOK, get(a, "/api/positioning", "tok"))
	assert.Equal(t, http.StatusOK, get(a, "/api/positioning/latest", "tok"))
}

func TestAppRateLimit(t *testing.T) {
	a := newApp(t, "", ratelimit.New(0.001, 2))

	require.Equal(t, http.StatusOK, get(a, "/healthz", ""))
	require.Equal(t, http.StatusOK, get(a, "/healthz", ""))
	assert.Equal(t, http.StatusTooManyRequests, get(a, "/healthz", ""))
}

func TestAppNoMetricsRoute(t *testing.T) {
	a := newApp(t, "", nil)
	assert.Equal(t, http.StatusNotFound, get(a, "/metrics", ""))
}
