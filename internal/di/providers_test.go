package di

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domrepo "CrowdedCOT/internal/domain/repository"
	"CrowdedCOT/internal/service/cftc"
	"CrowdedCOT/pkg/config"
	"CrowdedCOT/pkg/logger"
)

func csvConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	body := "report_date,contract,open_interest,asset_mgr_long,asset_mgr_short,lev_fund_long,lev_fund_short\n" +
		"2024-01-02,ES,1000,600,100,100,500\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "es.csv"), []byte(body), 0o644))

	cfg := config.Default()
	cfg.Source.Kind = "csv"
	cfg.CSV.Paths = []string{filepath.Join(dir, "*.csv")}
	cfg.Metrics.Enabled = false
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestProvideDataSource(t *testing.T) {
	cfg := csvConfig(t)
	src, cleanup, err := ProvideDataSource(context.Background(), cfg, logger.Nop())
	require.NoError(t, err)
	defer cleanup()
	assert.Equal(t, domrepo.SourceCSV, src.Kind())

	cfg.Source.Kind = "cftc"
	src, _, err = ProvideDataSource(context.Background(), cfg, logger.Nop())
	require.NoError(t, err)
	assert.IsType(t, &cftc.Client{}, src)

	cfg.Source.Kind = "ftp"
	_, _, err = ProvideDataSource(context.Background(), cfg, logger.Nop())
	require.ErrorIs(t, err, domrepo.ErrUnknownSource)
}

func TestOptionalProviders(t *testing.T) {
	cfg := config.Default()

	pub, cleanup, err := ProvidePublisher(cfg, logger.Nop())
	require.NoError(t, err)
	cleanup()
	assert.Nil(t, pub, "no brokers, no publisher")

	cfg.Metrics.Enabled = false
	assert.Nil(t, ProvideMetrics(cfg))

	assert.NotNil(t, ProvideRateLimiter(cfg))
	cfg.Server.RateLimit.Enabled = false
	assert.Nil(t, ProvideRateLimiter(cfg))
}

func TestInitializeUseCase(t *testing.T) {
	uc, cleanup, err := InitializeUseCase(context.Background(), csvConfig(t), logger.Nop())
	require.NoError(t, err)
	defer cleanup()
	assert.Equal(t, domrepo.SourceCSV, uc.Source())
}

func TestInitializeApp(t *testing.T) {
	cfg := csvConfig(t)
	cfg.Server.AuthToken = "tok"
	app, cleanup, err := InitializeApp(context.Background(), cfg, logger.Nop())
	require.NoError(t, err)
	defer cleanup()

	rec := httptest.NewRecorder()
	app.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	app.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/positioning/latest", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/positioning/latest", nil)
	req.Header.Set("Authorization", "Bearer tok")
	rec = httptest.NewRecorder()
	app.Echo().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}
