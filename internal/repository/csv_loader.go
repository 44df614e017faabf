package repository

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"CrowdedCOT/internal/domain/models"
	domrepo "CrowdedCOT/internal/domain/repository"
	applogger "CrowdedCOT/pkg/logger"
	"CrowdedCOT/pkg/util"
)

// CSV column names shared with the exports.
const (
	csvReportDate   = "report_date"
	csvContract     = "contract"
	csvMarketName   = "market_name"
	csvOpenInterest = "open_interest"
)

// CSVLoader reads TFF observations from local CSV files matched by glob
// patterns. Each file needs a header row with at least report_date.
type CSVLoader struct {
	patterns []string
	l        *applogger.Logger
}

func NewCSVLoader(patterns []string) *CSVLoader {
	return &CSVLoader{patterns: patterns, l: applogger.Nop()}
}

// SetLogger injects a structured logger.
func (s *CSVLoader) SetLogger(l *applogger.Logger) { s.l = l }

func (s *CSVLoader) Kind() domrepo.SourceKind { return domrepo.SourceCSV }

// Files expands the patterns in order; matches of one pattern are sorted and
// a file matched twice is read once.
func (s *CSVLoader) Files() ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	for _, p := range s.patterns {
		matches, err := filepath.Glob(p)
		if err != nil {
			return nil, fmt.Errorf("glob %q: %w", p, err)
		}
		sort.Strings(matches)
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				out = append(out, m)
			}
		}
	}
	return out, nil
}

// Load reads every matched file. No matches yields an empty table.
func (s *CSVLoader) Load(ctx context.Context) (*models.Table, error) {
	files, err := s.Files()
	if err != nil {
		return nil, fmt.Errorf("load csv: %w", err)
	}

	present := make(map[models.Category]bool)
	t := &models.Table{}
	dropped := 0
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rows, cats, skipped, err := readCSVFile(f)
		if err != nil {
			return nil, fmt.Errorf("load csv: %w", err)
		}
		for _, c := range cats {
			present[c] = true
		}
		t.Rows = append(t.Rows, rows...)
		dropped += skipped
	}

	cats := make([]models.Category, 0, len(present))
	for c := range present {
		cats = append(cats, c)
	}
	t.Categories = models.NormalizeCategories(cats)

	s.l.Info("csv: loaded",
		applogger.Int("files", len(files)),
		applogger.Int("rows", len(t.Rows)),
		applogger.Int("dropped", dropped),
		applogger.Strings("categories", categoryNames(t.Categories)))
	return t, nil
}

type csvLayout struct {
	date, contract, market, oi int
	long, short                map[models.Category]int
}

func parseHeader(header []string) (csvLayout, error) {
	l := csvLayout{date: -1, contract: -1, market: -1, oi: -1,
		long: make(map[models.Category]int), short: make(map[models.Category]int)}
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		switch h {
		case csvReportDate:
			l.date = i
		case csvContract:
			l.contract = i
		case csvMarketName:
			l.market = i
		case csvOpenInterest:
			l.oi = i
		default:
			for _, c := range models.AllCategories {
				switch h {
				case c.RawPrefix() + "_long":
					l.long[c] = i
				case c.RawPrefix() + "_short":
					l.short[c] = i
				}
			}
		}
	}
	if l.date < 0 {
		return l, errors.New("missing report_date column")
	}
	return l, nil
}

func (l csvLayout) categories() []models.Category {
	var out []models.Category
	for _, c := range models.AllCategories {
		_, okL := l.long[c]
		_, okS := l.short[c]
		if okL || okS {
			out = append(out, c)
		}
	}
	return out
}

func readCSVFile(path string) ([]models.Observation, []models.Category, int, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, nil, 0, err
	}
	defer fh.Close()

	r := csv.NewReader(fh)
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil, 0, nil
	}
	if err != nil {
		return nil, nil, 0, fmt.Errorf("%s: read header: %w", path, err)
	}
	layout, err := parseHeader(header)
	if err != nil {
		return nil, nil, 0, fmt.Errorf("%s: %w", path, err)
	}

	var out []models.Observation
	skipped := 0
	line := 1
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, nil, 0, fmt.Errorf("%s:%d: %w", path, line, err)
		}

		date, ok := util.ParseDate(cell(rec, layout.date))
		if !ok {
			return nil, nil, 0, fmt.Errorf("%s:%d: invalid report_date %q", path, line, cell(rec, layout.date))
		}
		o := models.Observation{
			ReportDate:   date,
			MarketName:   strings.TrimSpace(cell(rec, layout.market)),
			OpenInterest: util.ParseNumber(cell(rec, layout.oi)),
			Positions:    make(map[models.Category]models.Position),
		}
		if layout.contract >= 0 {
			o.Contract = strings.TrimSpace(cell(rec, layout.contract))
		} else if code, ok := domrepo.ResolveContract(o.MarketName); ok {
			o.Contract = code
		}
		if o.Contract == "" {
			skipped++
			continue
		}
		for _, c := range layout.categories() {
			o.Positions[c] = models.Position{
				Long:  util.ParseNumber(cellAt(rec, layout.long, c)),
				Short: util.ParseNumber(cellAt(rec, layout.short, c)),
			}
		}
		out = append(out, o)
	}
	return out, layout.categories(), skipped, nil
}

func cell(rec []string, i int) string {
	if i < 0 || i >= len(rec) {
		return ""
	}
	return rec[i]
}

func cellAt(rec []string, idx map[models.Category]int, c models.Category) string {
	i, ok := idx[c]
	if !ok {
		return ""
	}
	return cell(rec, i)
}

func categoryNames(cats []models.Category) []string {
	out := make([]string, len(cats))
	for i, c := range cats {
		out[i] = string(c)
	}
	return out
}

var _ domrepo.DataSource = (*CSVLoader)(nil)
