package metrics

import (
	"math"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"CrowdedCOT/internal/domain/models"
	drepo "CrowdedCOT/internal/domain/repository"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	runsTotal   *prometheus.CounterVec
	rowsIn      *prometheus.CounterVec
	rowsOut     *prometheus.CounterVec
	errorsTotal *prometheus.CounterVec
	latestZ     *prometheus.GaugeVec
	latestPct   *prometheus.GaugeVec
	flags       *prometheus.GaugeVec
	extremes    *prometheus.CounterVec
	latency     *prometheus.HistogramVec
}

// New creates a recorder registered with reg, or the default registry when
// reg is nil.
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Recorder{
		runsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crowdedcot_engine_runs_total",
				Help: "Total number of positioning engine runs",
			},
			[]string{"source"},
		),
		rowsIn: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crowdedcot_engine_rows_in_total",
				Help: "Observations fed to the engine",
			},
			[]string{"source"},
		),
		rowsOut: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crowdedcot_engine_rows_out_total",
				Help: "Derived rows produced by the engine",
			},
			[]string{"source"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crowdedcot_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latestZ: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "crowdedcot_latest_zscore",
				Help: "Net-positioning z-score at the latest report date",
			},
			[]string{"contract", "category"},
		),
		latestPct: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "crowdedcot_latest_pct_rank",
				Help: "Net-positioning percentile rank at the latest report date",
			},
			[]string{"contract", "category"},
		),
		flags: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "crowdedcot_crowding_flag",
				Help: "Crowding flag at the latest report date (1 = set)",
			},
			[]string{"contract", "flag"},
		),
		extremes: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crowdedcot_extreme_signals_total",
				Help: "Latest-date summaries carrying a confirmed crowding flag",
			},
			[]string{"contract", "flag"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "crowdedcot_run_duration_seconds",
				Help:    "Duration of load+compute runs in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"source"},
		),
	}
}

// RecordRun records one engine run.
func (r *Recorder) RecordRun(source string, rowsIn, rowsOut int, d time.Duration) {
	r.runsTotal.WithLabelValues(source).Inc()
	r.rowsIn.WithLabelValues(source).Add(float64(rowsIn))
	r.rowsOut.WithLabelValues(source).Add(float64(rowsOut))
	r.latency.WithLabelValues(source).Observe(d.Seconds())
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordSummary exports a contract's latest metrics and flags. Null metrics
// remove the gauge instead of reporting NaN.
func (r *Recorder) RecordSummary(s models.Summary) {
	setOrDelete(r.latestZ, s.AMZ, s.Contract, string(models.AssetManager))
	setOrDelete(r.latestZ, s.LFZ, s.Contract, string(models.LeveragedFunds))
	setOrDelete(r.latestPct, s.AMPctRank, s.Contract, string(models.AssetManager))
	setOrDelete(r.latestPct, s.LFPctRank, s.Contract, string(models.LeveragedFunds))

	for flag, on := range map[string]bool{
		"am_crowded_long":            s.AMCrowdedLong,
		"lf_crowded_short":           s.LFCrowdedShort,
		"am_crowded_long_confirmed":  s.AMCrowdedLongConfirmed,
		"lf_crowded_short_confirmed": s.LFCrowdedShortConfirmed,
		"extreme_crowding":           s.ExtremeCrowding,
	} {
		v := 0.0
		if on {
			v = 1
		}
		r.flags.WithLabelValues(s.Contract, flag).Set(v)
	}
	if s.AMCrowdedLongConfirmed {
		r.extremes.WithLabelValues(s.Contract, "am_crowded_long_confirmed").Inc()
	}
	if s.LFCrowdedShortConfirmed {
		r.extremes.WithLabelValues(s.Contract, "lf_crowded_short_confirmed").Inc()
	}
}

func setOrDelete(g *prometheus.GaugeVec, v float64, labels ...string) {
	if math.IsNaN(v) {
		g.DeleteLabelValues(labels...)
		return
	}
	g.WithLabelValues(labels...).Set(v)
}

var _ drepo.Metrics = (*Recorder)(nil)
