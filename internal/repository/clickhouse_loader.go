package repository

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"
	"time"

	"CrowdedCOT/internal/domain/models"
	domrepo "CrowdedCOT/internal/domain/repository"
	pkgch "CrowdedCOT/pkg/clickhouse"
	applogger "CrowdedCOT/pkg/logger"
)

// CHLoader implements DataSource backed by a ClickHouse table with one row per
// contract and report date. Long/short columns follow the CSV naming
// (asset_mgr_long, lev_fund_short, ...); nullable columns map to null.
type CHLoader struct {
	db    *sql.DB
	table string
	from  time.Time
	to    time.Time
	l     *applogger.Logger
}

func NewCHLoader(ch *pkgch.Client, table string) *CHLoader {
	return NewCHLoaderFromDB(ch.DB(), table)
}

// NewCHLoaderFromDB wraps an open database handle.
func NewCHLoaderFromDB(db *sql.DB, table string) *CHLoader {
	return &CHLoader{db: db, table: table, l: applogger.Nop()}
}

// SetLogger injects a structured logger.
func (s *CHLoader) SetLogger(l *applogger.Logger) { s.l = l }

// SetRange restricts report dates to [from, to]; zero bounds are open.
func (s *CHLoader) SetRange(from, to time.Time) {
	s.from, s.to = from, to
}

func (s *CHLoader) Kind() domrepo.SourceKind { return domrepo.SourceClickHouse }

// Health pings the database.
func (s *CHLoader) Health(ctx context.Context) error { return s.db.PingContext(ctx) }

// Query returns the SELECT statement and its arguments.
func (s *CHLoader) Query() (string, []interface{}) {
	cols := []string{"report_date", "contract", "market_name", "open_interest"}
	for _, c := range models.PrimaryCategories {
		cols = append(cols, c.RawPrefix()+"_long", c.RawPrefix()+"_short")
	}

	var where []string
	var args []interface{}
	if !s.from.IsZero() {
		where = append(where, "report_date >= ?")
		args = append(args, s.from)
	}
	if !s.to.IsZero() {
		where = append(where, "report_date <= ?")
		args = append(args, s.to)
	}

	q := fmt.Sprintf("SELECT %s FROM %s", strings.Join(cols, ", "), s.table)
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY contract ASC, report_date ASC"
	return q, args
}

func (s *CHLoader) Load(ctx context.Context) (*models.Table, error) {
	start := time.Now()
	q, args := s.Query()
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		s.l.Error("clickhouse load query error",
			applogger.String("table", s.table),
			applogger.Error(err),
		)
		return nil, fmt.Errorf("load clickhouse: %w", err)
	}
	defer rows.Close()

	t := &models.Table{Categories: models.PrimaryCategories}
	for rows.Next() {
		var (
			date                   time.Time
			contract, market       string
			oi, amL, amS, lfL, lfS sql.NullFloat64
		)
		if err := rows.Scan(&date, &contract, &market, &oi, &amL, &amS, &lfL, &lfS); err != nil {
			s.l.Error("clickhouse load scan error",
				applogger.String("table", s.table),
				applogger.Error(err),
			)
			return nil, fmt.Errorf("scan observation: %w", err)
		}
		if contract == "" {
			resolved, ok := domrepo.ResolveContract(market)
			if !ok {
				continue
			}
			contract = resolved
		}
		y, m, d := date.Date()
		t.Rows = append(t.Rows, models.Observation{
			ReportDate:   time.Date(y, m, d, 0, 0, 0, 0, time.UTC),
			Contract:     contract,
			MarketName:   market,
			OpenInterest: orNull(oi),
			Positions: map[models.Category]models.Position{
				models.AssetManager:   {Long: orNull(amL), Short: orNull(amS)},
				models.LeveragedFunds: {Long: orNull(lfL), Short: orNull(lfS)},
			},
		})
	}
	if err := rows.Err(); err != nil {
		s.l.Error("clickhouse load rows error",
			applogger.String("table", s.table),
			applogger.Error(err),
		)
		return nil, fmt.Errorf("rows: %w", err)
	}

	s.l.Info("clickhouse load ok",
		applogger.String("table", s.table),
		applogger.Int("rows", len(t.Rows)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return t, nil
}

func orNull(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}

var _ domrepo.DataSource = (*CHLoader)(nil)

// Schema returns the DDL of the observations table read by CHLoader.
func Schema(table string) []string {
	return []string{fmt.Sprintf(`
        CREATE TABLE IF NOT EXISTS %s (
            report_date     Date,
            contract        LowCardinality(String),
            market_name     String,
            open_interest   Nullable(Float64),
            asset_mgr_long  Nullable(Float64),
            asset_mgr_short Nullable(Float64),
            lev_fund_long   Nullable(Float64),
            lev_fund_short  Nullable(Float64)
        )
        ENGINE = ReplacingMergeTree
        ORDER BY (contract, report_date)
    `, table)}
}
