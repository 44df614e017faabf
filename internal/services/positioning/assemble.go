package positioning

import (
	"math"
	"strings"

	"CrowdedCOT/internal/domain/models"
)

const (
	ColReportDate   = "report_date"
	ColContract     = "contract"
	ColMarketName   = "market_name"
	ColOpenInterest = "open_interest"

	ColAMCrowdedLong           = "am_crowded_long"
	ColLFCrowdedShort          = "lf_crowded_short"
	ColAMCrowdedLongConfirmed  = "am_crowded_long_confirmed"
	ColLFCrowdedShortConfirmed = "lf_crowded_short_confirmed"
	ColExtremeCrowding         = "extreme_crowding"

	dateLayout = "2006-01-02"
)

// FlagColumns lists the boolean columns in output order.
var FlagColumns = []string{
	ColAMCrowdedLong,
	ColLFCrowdedShort,
	ColAMCrowdedLongConfirmed,
	ColLFCrowdedShortConfirmed,
	ColExtremeCrowding,
}

// LongColumn is the raw long-count column of c.
func LongColumn(c models.Category) string { return c.RawPrefix() + "_long" }

// ShortColumn is the raw short-count column of c.
func ShortColumn(c models.Category) string { return c.RawPrefix() + "_short" }

// NetPctColumn is the net-position-percent-of-OI column of c.
func NetPctColumn(c models.Category) string { return string(c) + "_net_pct_oi" }

// ZColumn is the rolling z-score column of c.
func ZColumn(c models.Category) string { return string(c) + "_z" }

// PctRankColumn is the rolling percentile rank column of c.
func PctRankColumn(c models.Category) string { return string(c) + "_pct_rank" }

// Columns returns the preferred column order for the given categories:
// identity, raw inputs, ratios, z-scores, percentile ranks, flags.
func Columns(cats []models.Category) []string {
	cols := []string{ColReportDate, ColContract, ColMarketName, ColOpenInterest}
	for _, c := range cats {
		cols = append(cols, LongColumn(c), ShortColumn(c))
	}
	for _, c := range cats {
		cols = append(cols, NetPctColumn(c))
	}
	for _, c := range cats {
		cols = append(cols, ZColumn(c))
	}
	for _, c := range cats {
		cols = append(cols, PctRankColumn(c))
	}
	return append(cols, FlagColumns...)
}

// Value returns the cell of row d in column col: a string, a bool, a float64,
// or nil for missing numbers and unknown columns.
func Value(d models.DerivedObservation, col string) interface{} {
	switch col {
	case ColReportDate:
		return d.ReportDate.Format(dateLayout)
	case ColContract:
		return d.Contract
	case ColMarketName:
		return d.MarketName
	case ColOpenInterest:
		return number(d.OpenInterest)
	case ColAMCrowdedLong:
		return d.AMCrowdedLong
	case ColLFCrowdedShort:
		return d.LFCrowdedShort
	case ColAMCrowdedLongConfirmed:
		return d.AMCrowdedLongConfirmed
	case ColLFCrowdedShortConfirmed:
		return d.LFCrowdedShortConfirmed
	case ColExtremeCrowding:
		return d.ExtremeCrowding
	}

	for _, c := range models.AllCategories {
		switch col {
		case LongColumn(c):
			return number(d.Position(c).Long)
		case ShortColumn(c):
			return number(d.Position(c).Short)
		case NetPctColumn(c):
			return number(d.Metric(c).NetPctOI)
		case ZColumn(c):
			return number(d.Metric(c).Z)
		case PctRankColumn(c):
			return number(d.Metric(c).PctRank)
		}
	}
	return nil
}

// Record returns the row's values in the table's column order.
func Record(t *models.DerivedTable, i int) []interface{} {
	row := t.Rows[i]
	out := make([]interface{}, len(t.Columns))
	for j, col := range t.Columns {
		out[j] = Value(row, col)
	}
	return out
}

// FilterContract returns a copy of t restricted to one contract code.
func FilterContract(t *models.DerivedTable, contract string) *models.DerivedTable {
	out := &models.DerivedTable{Categories: t.Categories, Columns: t.Columns}
	for _, r := range t.Rows {
		if strings.EqualFold(r.Contract, contract) {
			out.Rows = append(out.Rows, r)
		}
	}
	return out
}

// Latest summarizes each contract at the table's most recent report date.
func Latest(t *models.DerivedTable) []models.Summary {
	latest, ok := t.LatestDate()
	if !ok {
		return nil
	}
	var out []models.Summary
	for _, r := range t.Rows {
		if !r.ReportDate.Equal(latest) {
			continue
		}
		am := r.Metric(models.AssetManager)
		lf := r.Metric(models.LeveragedFunds)
		out = append(out, models.Summary{
			Contract:   r.Contract,
			ReportDate: r.ReportDate,
			AMZ:        am.Z,
			LFZ:        lf.Z,
			AMPctRank:  am.PctRank,
			LFPctRank:  lf.PctRank,
			Flags:      r.Flags,
		})
	}
	return out
}

func number(v float64) interface{} {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return v
}
