package server

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"

	"CrowdedCOT/internal/handler/api"
	apimetrics "CrowdedCOT/internal/service/metrics"
	"CrowdedCOT/internal/service/ratelimit"
	"CrowdedCOT/pkg/config"
	xhttp "CrowdedCOT/pkg/http"
	"CrowdedCOT/pkg/http/middleware"
	applogger "CrowdedCOT/pkg/logger"
)

// sweepEvery is how often idle rate-limit buckets are dropped.
const sweepEvery = time.Minute

// App runs the HTTP API until interrupted.
type App struct {
	cfg        *config.Config
	log        *applogger.Logger
	handler    *api.PositioningEchoHandler
	limiter    *ratelimit.Limiter
	httpServer *xhttp.Server
}

// New creates the application. limiter may be nil to disable throttling.
func New(cfg *config.Config, log *applogger.Logger, handler *api.PositioningEchoHandler, limiter *ratelimit.Limiter) *App {
	a := &App{cfg: cfg, log: log, handler: handler, limiter: limiter}
	a.httpServer = xhttp.NewServer(handler, a.serverOptions()...)
	return a
}

func (a *App) serverOptions() []xhttp.ServerOption {
	var mw []echo.MiddlewareFunc
	if a.limiter != nil {
		mw = append(mw, middleware.RateLimit(a.limiter, func(route string) {
			apimetrics.APIThrottled.WithLabelValues(route).Inc()
		}))
	}
	public := []string{"/healthz"}
	if a.cfg.Metrics.Enabled {
		public = append(public, a.cfg.Metrics.Path)
	}
	mw = append(mw, middleware.BearerAuth(a.cfg.Server.AuthToken, public...))

	opts := []xhttp.ServerOption{
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
		xhttp.WithCORS(a.cfg.Server.CORSOrigins),
		xhttp.WithLogger(a.log),
		xhttp.WithMiddleware(mw...),
	}
	if a.cfg.Metrics.Enabled {
		opts = append(opts, xhttp.WithMetricsPath(a.cfg.Metrics.Path))
	}
	return opts
}

// Echo exposes the router for tests.
func (a *App) Echo() *echo.Echo { return a.httpServer.Echo() }

// Run serves until ctx is cancelled, SIGINT/SIGTERM arrives or the listener
// fails, then shuts down gracefully.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := a.httpServer.Start()
	a.log.Info("serving positioning api",
		applogger.String("addr", a.httpServer.Addr()),
		applogger.String("source", a.cfg.Source.Kind),
		applogger.Bool("auth", a.cfg.Server.AuthToken != ""),
		applogger.Bool("rate_limit", a.limiter != nil))

	if a.limiter != nil {
		go a.sweep(ctx)
	}

	var runErr error
	select {
	case <-ctx.Done():
		a.log.Info("shutdown signal received")
	case err, ok := <-errCh:
		if ok && err != nil {
			runErr = err
			a.log.Error("http server failed", applogger.Error(err))
		}
	}
	return errors.Join(runErr, a.shutdown())
}

func (a *App) sweep(ctx context.Context) {
	t := time.NewTicker(sweepEvery)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := a.limiter.Sweep(10 * sweepEvery); n > 0 {
				a.log.Debug("rate limiter swept", applogger.Int("keys", n))
			}
		}
	}
}

func (a *App) shutdown() error {
	a.log.Info("shutting down...")
	if err := a.httpServer.Stop(context.Background()); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	a.log.Info("shutdown complete")
	return nil
}
