package positioning

import (
	"sort"

	"golang.org/x/sync/errgroup"

	"CrowdedCOT/internal/domain/models"
	domsvc "CrowdedCOT/internal/domain/service"
	"CrowdedCOT/internal/services/features"
)

// Engine computes net positioning ratios, rolling z-scores, percentile ranks
// and crowding flags per contract. It holds no mutable state.
type Engine struct {
	params  Params
	workers int
}

// Option configures Engine.
type Option func(*Engine)

// WithWorkers computes contract partitions on up to n goroutines.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

// New builds an engine. Params are normalized (defaults, validation, clamp).
func New(p Params, opts ...Option) (*Engine, error) {
	np, err := p.Normalize()
	if err != nil {
		return nil, err
	}
	e := &Engine{params: np, workers: 1}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Params returns the normalized parameters in use.
func (e *Engine) Params() Params { return e.params }

// Compute derives the metrics table. An empty input yields an empty table.
func (e *Engine) Compute(t *models.Table) (*models.DerivedTable, error) {
	cats := []models.Category{models.AssetManager, models.LeveragedFunds}
	if t != nil {
		cats = models.NormalizeCategories(t.Categories)
	}
	out := &models.DerivedTable{Categories: cats, Columns: Columns(cats)}
	if t.Empty() {
		return out, nil
	}

	parts := partition(t.Rows)
	results := make([][]models.DerivedObservation, len(parts))

	if e.workers <= 1 || len(parts) == 1 {
		for i, p := range parts {
			results[i] = e.computeContract(p, cats)
		}
	} else {
		var g errgroup.Group
		g.SetLimit(e.workers)
		for i, p := range parts {
			i, p := i, p
			g.Go(func() error {
				results[i] = e.computeContract(p, cats)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	out.Rows = make([]models.DerivedObservation, 0, len(t.Rows))
	for _, r := range results {
		out.Rows = append(out.Rows, r...)
	}
	return out, nil
}

// partition groups rows by contract (ascending code) and orders each group by
// report date. Input rows are copied, never mutated.
func partition(rows []models.Observation) [][]models.Observation {
	groups := make(map[string][]models.Observation)
	for _, r := range rows {
		groups[r.Contract] = append(groups[r.Contract], r)
	}
	codes := make([]string, 0, len(groups))
	for c := range groups {
		codes = append(codes, c)
	}
	sort.Strings(codes)

	parts := make([][]models.Observation, 0, len(codes))
	for _, c := range codes {
		g := groups[c]
		sort.SliceStable(g, func(i, j int) bool { return g[i].ReportDate.Before(g[j].ReportDate) })
		parts = append(parts, g)
	}
	return parts
}

// computeContract runs the per-category pipeline and signal derivation on one
// date-ordered contract partition.
func (e *Engine) computeContract(rows []models.Observation, cats []models.Category) []models.DerivedObservation {
	n := len(rows)
	out := make([]models.DerivedObservation, n)
	for i, r := range rows {
		out[i] = models.DerivedObservation{
			Observation: r,
			Metrics:     make(map[models.Category]models.CategoryMetrics, len(cats)),
		}
	}

	oi := make([]float64, n)
	for i, r := range rows {
		oi[i] = r.OpenInterest
	}

	series := make(map[models.Category]categorySeries, len(cats))
	for _, c := range cats {
		s := e.deriveCategory(rows, oi, c)
		series[c] = s
		for i := range out {
			out[i].Metrics[c] = models.CategoryMetrics{NetPctOI: s.ratio[i], Z: s.z[i], PctRank: s.pct[i]}
		}
	}

	applySignals(out, series[models.AssetManager], series[models.LeveragedFunds], e.params)
	return out
}

type categorySeries struct {
	ratio []float64
	z     []float64
	pct   []float64
}

// deriveCategory is the shared ratio -> z-score -> percentile rank pipeline.
func (e *Engine) deriveCategory(rows []models.Observation, oi []float64, c models.Category) categorySeries {
	long := make([]float64, len(rows))
	short := make([]float64, len(rows))
	for i, r := range rows {
		p := r.Position(c)
		long[i], short[i] = p.Long, p.Short
	}
	ratio := features.NetPctOISeries(long, short, oi)
	mean, std := features.RollingMeanStd(ratio, e.params.LookbackWeeks, e.params.MinRequiredWeeks)
	return categorySeries{
		ratio: ratio,
		z:     features.ZScore(ratio, mean, std),
		pct:   features.RollingPercentileRank(ratio, e.params.LookbackWeeks),
	}
}

var _ domsvc.PositioningEngine = (*Engine)(nil)
