package api

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"CrowdedCOT/internal/domain/models"
	domrepo "CrowdedCOT/internal/domain/repository"
	"CrowdedCOT/internal/export"
	apimetrics "CrowdedCOT/internal/service/metrics"
	"CrowdedCOT/internal/services/positioning"
	"CrowdedCOT/internal/usecase"
	xhttp "CrowdedCOT/pkg/http"
	xlogger "CrowdedCOT/pkg/logger"
)

// Runner is the use case behind the positioning endpoints.
type Runner interface {
	Run(ctx context.Context, p usecase.RunParams) (*usecase.RunResult, error)
	Source() domrepo.SourceKind
}

// HealthCheck reports whether a dependency is usable.
type HealthCheck func(ctx context.Context) error

// PositioningEchoHandler serves the derived table and latest signals.
type PositioningEchoHandler struct {
	logger *xlogger.Logger
	uc     Runner
	base   positioning.Params
	checks map[string]HealthCheck
}

// NewPositioningEchoHandler creates the handler. base holds the configured
// engine parameters that request overrides start from.
func NewPositioningEchoHandler(logger *xlogger.Logger, uc Runner, base positioning.Params) *PositioningEchoHandler {
	apimetrics.Register()
	return &PositioningEchoHandler{logger: logger, uc: uc, base: base, checks: make(map[string]HealthCheck)}
}

// AddHealthCheck registers a dependency checked by /healthz.
func (h *PositioningEchoHandler) AddHealthCheck(name string, fn HealthCheck) {
	h.checks[name] = fn
}

func (h *PositioningEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)
	g := e.Group("/api")
	g.GET("/positioning", h.Positioning)
	g.GET("/positioning/latest", h.Latest)
}

type positioningResponse struct {
	RunID      string             `json:"run_id"`
	Source     string             `json:"source"`
	Params     positioning.Params `json:"params"`
	Columns    []string           `json:"columns"`
	Total      int                `json:"total"`
	Rows       []export.Record    `json:"rows"`
	DurationMS int64              `json:"duration_ms"`
}

type latestResponse struct {
	RunID      string                   `json:"run_id"`
	ReportDate *string                  `json:"report_date"`
	Summaries  []models.SummaryResponse `json:"summaries"`
}

// Positioning returns the full derived table as JSON records or CSV.
func (h *PositioningEchoHandler) Positioning(c echo.Context) error {
	start := time.Now()
	var runErr error
	defer func() { apimetrics.Observe("positioning", start, runErr) }()

	req := &models.PositioningRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res, runErr := h.run(c, req.Contract, h.overrides(req))
	if runErr != nil {
		return h.fail(c, "positioning", runErr)
	}

	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=300")
	if req.Format == string(export.FormatCSV) {
		c.Response().Header().Set(echo.HeaderContentType, "text/csv; charset=utf-8")
		c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="positioning.csv"`)
		c.Response().WriteHeader(http.StatusOK)
		return export.WriteCSV(c.Response(), res.Table)
	}
	return xhttp.SuccessResponse(c, positioningResponse{
		RunID:      res.RunID,
		Source:     string(res.Source),
		Params:     res.Params,
		Columns:    res.Table.Columns,
		Total:      len(res.Table.Rows),
		Rows:       export.Records(res.Table),
		DurationMS: res.Duration.Milliseconds(),
	})
}

// Latest returns one summary per contract at the most recent report date.
func (h *PositioningEchoHandler) Latest(c echo.Context) error {
	start := time.Now()
	var runErr error
	defer func() { apimetrics.Observe("latest", start, runErr) }()

	req := &models.LatestRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res, runErr := h.run(c, req.Contract, nil)
	if runErr != nil {
		return h.fail(c, "latest", runErr)
	}

	out := latestResponse{RunID: res.RunID, Summaries: make([]models.SummaryResponse, 0, len(res.Summaries))}
	for _, s := range res.Summaries {
		out.Summaries = append(out.Summaries, models.NewSummaryResponse(s))
	}
	if latest, ok := res.Table.LatestDate(); ok {
		d := latest.Format("2006-01-02")
		out.ReportDate = &d
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=300")
	return xhttp.SuccessResponse(c, out)
}

// Health runs the registered checks; any failure answers 503.
func (h *PositioningEchoHandler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := map[string]string{"source": string(h.uc.Source())}
	healthy := true
	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			healthy = false
			status[name] = err.Error()
			h.logger.Warn("health check failed", xlogger.String("check", name), xlogger.Error(err))
			continue
		}
		status[name] = "ok"
	}
	if !healthy {
		return xhttp.ServiceUnavailableResponse(c, status)
	}
	return xhttp.SuccessResponse(c, status)
}

func (h *PositioningEchoHandler) run(c echo.Context, contract string, p *positioning.Params) (*usecase.RunResult, error) {
	return h.uc.Run(c.Request().Context(), usecase.RunParams{
		Params:   p,
		Contract: strings.ToUpper(contract),
	})
}

// overrides returns nil when the request keeps the configured parameters.
func (h *PositioningEchoHandler) overrides(req *models.PositioningRequest) *positioning.Params {
	if !req.HasOverrides() {
		return nil
	}
	p := h.base
	if req.Threshold != nil {
		p.Threshold = *req.Threshold
	}
	if req.LookbackWeeks != nil {
		p.LookbackWeeks = *req.LookbackWeeks
	}
	if req.MinRequiredWeeks != nil {
		p.MinRequiredWeeks = *req.MinRequiredWeeks
	}
	if req.AMLongPct != nil {
		p.AMLongPctThreshold = *req.AMLongPct
	}
	if req.LFShortPct != nil {
		p.LFShortPctThreshold = *req.LFShortPct
	}
	if req.ConfirmWeeks != nil {
		p.ConfirmWeeks = *req.ConfirmWeeks
	}
	return &p
}

func (h *PositioningEchoHandler) fail(c echo.Context, endpoint string, err error) error {
	if errors.Is(err, usecase.ErrInvalidParams) {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()))
	}
	h.logger.Error("positioning usecase error", xlogger.String("endpoint", endpoint), xlogger.Error(err))
	if errors.Is(err, context.DeadlineExceeded) {
		return xhttp.AppErrorResponse(c, xhttp.NewAppError("ERR_TIMEOUT", "", "source timed out", http.StatusGatewayTimeout).WithError(err))
	}
	return xhttp.AppErrorResponse(c, xhttp.NewAppError("ERR_SOURCE", "", "positioning run failed", http.StatusBadGateway).WithError(err))
}
