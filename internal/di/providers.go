package di

import (
	"context"
	"fmt"
	"time"

	domrepo "CrowdedCOT/internal/domain/repository"
	"CrowdedCOT/internal/handler/api"
	internalrepo "CrowdedCOT/internal/repository"
	"CrowdedCOT/internal/service/cftc"
	"CrowdedCOT/internal/service/ratelimit"
	"CrowdedCOT/internal/services/positioning"
	"CrowdedCOT/internal/usecase"
	pkgch "CrowdedCOT/pkg/clickhouse"
	"CrowdedCOT/pkg/config"
	xhttp "CrowdedCOT/pkg/http"
	pkgkafka "CrowdedCOT/pkg/kafka"
	"CrowdedCOT/pkg/logger"
	"CrowdedCOT/pkg/metrics"
	"CrowdedCOT/pkg/server"
	"CrowdedCOT/pkg/util"
)

// ProvideLogger builds the structured logger from the log section.
func ProvideLogger(cfg *config.Config) (*logger.Logger, error) {
	l, err := logger.New(&cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l.With(logger.String("env", cfg.Environment)), nil
}

// ProvideMetrics creates a Prometheus metrics recorder, or nil when metrics
// are disabled.
func ProvideMetrics(cfg *config.Config) domrepo.Metrics {
	if !cfg.Metrics.Enabled {
		return nil
	}
	return metrics.New(nil)
}

// ProvideEngine builds the positioning engine from the engine section.
func ProvideEngine(cfg *config.Config) (*positioning.Engine, error) {
	e, err := positioning.New(cfg.Engine.Params, positioning.WithWorkers(cfg.Engine.Workers))
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	return e, nil
}

// ProvideClickHouseClient opens a ClickHouse pool from the clickhouse section.
func ProvideClickHouseClient(ctx context.Context, cfg *config.Config) (*pkgch.Client, error) {
	client, err := pkgch.NewClient(ctx,
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.ReadTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, nil
}

// ProvideCFTCClient builds the CFTC Public Reporting loader.
func ProvideCFTCClient(cfg *config.Config, l *logger.Logger) *cftc.Client {
	start := util.ParseDateDefault(cfg.CFTC.StartDate, time.Date(2010, 1, 1, 0, 0, 0, 0, time.UTC))
	opts := []cftc.Option{
		cftc.WithBaseURL(cfg.CFTC.BaseURL),
		cftc.WithDataset(cfg.CFTC.DatasetID),
		cftc.WithAPIToken(cfg.CFTC.APIToken),
		cftc.WithLimit(cfg.CFTC.Limit),
		cftc.WithRetries(cfg.CFTC.MaxRetries, time.Second),
		cftc.WithRateLimit(cfg.CFTC.RPS),
		cftc.WithHTTPClient(xhttp.NewClient(xhttp.WithTimeout(cfg.CFTC.Timeout))),
		cftc.WithLogger(l),
	}
	if end, ok := util.ParseDate(cfg.CFTC.EndDate); ok {
		opts = append(opts, cftc.WithEndDate(end))
	}
	return cftc.New(start, opts...)
}

// ProvideDataSource picks the loader named by source.kind. The cleanup
// closes any connection the loader owns.
func ProvideDataSource(ctx context.Context, cfg *config.Config, l *logger.Logger) (domrepo.DataSource, func(), error) {
	noop := func() {}
	switch domrepo.SourceKind(cfg.Source.Kind) {
	case domrepo.SourceCFTC:
		return ProvideCFTCClient(cfg, l), noop, nil
	case domrepo.SourceCSV:
		src := internalrepo.NewCSVLoader(cfg.CSV.Paths)
		src.SetLogger(l)
		return src, noop, nil
	case domrepo.SourceClickHouse:
		client, err := ProvideClickHouseClient(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		src := internalrepo.NewCHLoader(client, cfg.ClickHouse.Table)
		src.SetLogger(l)
		from, _ := util.ParseDate(cfg.CFTC.StartDate)
		to, _ := util.ParseDate(cfg.CFTC.EndDate)
		src.SetRange(from, to)
		cleanup := func() {
			if err := client.Close(); err != nil {
				l.Warn("clickhouse close error", logger.Error(err))
			}
		}
		return src, cleanup, nil
	default:
		return nil, nil, fmt.Errorf("%w: %q", domrepo.ErrUnknownSource, cfg.Source.Kind)
	}
}

// ProvidePublisher creates the Kafka publisher, or nil when no brokers are
// configured.
func ProvidePublisher(cfg *config.Config, l *logger.Logger) (domrepo.Publisher, func(), error) {
	if !cfg.KafkaEnabled() {
		return nil, func() {}, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithMaxAttempts(cfg.Kafka.MaxAttempts),
		pkgkafka.WithTimeouts(cfg.Kafka.WriteTimeout, cfg.Kafka.WriteTimeout),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("kafka producer: %w", err)
	}
	pub := internalrepo.NewKafkaPublisher(producer, cfg.Kafka.Topic)
	pub.SetLogger(l)
	cleanup := func() {
		if err := pub.Close(); err != nil {
			l.Warn("kafka close error", logger.Error(err))
		}
	}
	return pub, cleanup, nil
}

// ProvidePositioningUseCase assembles the use case.
func ProvidePositioningUseCase(
	cfg *config.Config,
	src domrepo.DataSource,
	engine *positioning.Engine,
	pub domrepo.Publisher,
	m domrepo.Metrics,
	l *logger.Logger,
) *usecase.PositioningUseCase {
	opts := []usecase.Option{
		usecase.WithLogger(l),
		usecase.WithWorkers(cfg.Engine.Workers),
		usecase.WithTimeout(cfg.CFTC.Timeout * time.Duration(cfg.CFTC.MaxRetries+2)),
	}
	if pub != nil {
		opts = append(opts, usecase.WithPublisher(pub))
	}
	if m != nil {
		opts = append(opts, usecase.WithMetrics(m))
	}
	return usecase.NewPositioningUseCase(src, engine, opts...)
}

// ProvidePositioningHandler creates the HTTP handler and registers a health
// check for sources that can be pinged.
func ProvidePositioningHandler(
	l *logger.Logger,
	uc *usecase.PositioningUseCase,
	engine *positioning.Engine,
	src domrepo.DataSource,
) *api.PositioningEchoHandler {
	h := api.NewPositioningEchoHandler(l, uc, engine.Params())
	if hc, ok := src.(interface{ Health(context.Context) error }); ok {
		h.AddHealthCheck(string(src.Kind()), hc.Health)
	}
	return h
}

// ProvideRateLimiter returns the per-client limiter, or nil when disabled.
func ProvideRateLimiter(cfg *config.Config) *ratelimit.Limiter {
	if !cfg.Server.RateLimit.Enabled || cfg.Server.RateLimit.RPS <= 0 {
		return nil
	}
	return ratelimit.New(cfg.Server.RateLimit.RPS, cfg.Server.RateLimit.Burst)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *logger.Logger,
	h *api.PositioningEchoHandler,
	lim *ratelimit.Limiter,
) *server.App {
	return server.New(cfg, l, h, lim)
}
