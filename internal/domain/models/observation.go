package models

import (
	"math"
	"time"
)

// Category identifies a TFF trader category.
type Category string

const (
	AssetManager     Category = "am"
	LeveragedFunds   Category = "lf"
	Dealer           Category = "dealer"
	OtherReportables Category = "other"
	NonReportables   Category = "nonrept"
)

// AllCategories lists categories in output column order.
var AllCategories = []Category{AssetManager, LeveragedFunds, Dealer, OtherReportables, NonReportables}

// PrimaryCategories are always present in a table.
var PrimaryCategories = []Category{AssetManager, LeveragedFunds}

// RawPrefix is the column prefix used for raw long/short counts.
func (c Category) RawPrefix() string {
	switch c {
	case AssetManager:
		return "asset_mgr"
	case LeveragedFunds:
		return "lev_fund"
	case Dealer:
		return "dealer"
	case OtherReportables:
		return "other_rept"
	case NonReportables:
		return "nonrept"
	default:
		return string(c)
	}
}

// IsPrimary reports whether c carries extreme/confirmation flags.
func (c Category) IsPrimary() bool {
	return c == AssetManager || c == LeveragedFunds
}

// ParseCategory resolves a category from its key or raw prefix.
func ParseCategory(s string) (Category, bool) {
	for _, c := range AllCategories {
		if s == string(c) || s == c.RawPrefix() {
			return c, true
		}
	}
	return "", false
}

// Null is the missing-value marker for numeric fields.
var Null = math.NaN()

// IsNull reports whether v is missing.
func IsNull(v float64) bool { return math.IsNaN(v) }

// Position holds long/short counts for one category. Missing counts are NaN.
type Position struct {
	Long  float64
	Short float64
}

// NullPosition returns a position with both sides missing.
func NullPosition() Position { return Position{Long: Null, Short: Null} }

// Observation is one weekly report row for a contract.
type Observation struct {
	ReportDate   time.Time
	Contract     string
	MarketName   string
	OpenInterest float64 // NaN when missing
	Positions    map[Category]Position
}

// Position returns the counts for c, or a null position when absent.
func (o Observation) Position(c Category) Position {
	if p, ok := o.Positions[c]; ok {
		return p
	}
	return NullPosition()
}

// Table is a uniform set of observations across contracts.
// Categories lists which trader categories the rows carry.
type Table struct {
	Categories []Category
	Rows       []Observation
}

// Empty reports whether the table has no rows.
func (t *Table) Empty() bool { return t == nil || len(t.Rows) == 0 }

// HasCategory reports whether c is present in the table.
func (t *Table) HasCategory(c Category) bool {
	if t == nil {
		return false
	}
	for _, tc := range t.Categories {
		if tc == c {
			return true
		}
	}
	return false
}

// NormalizeCategories orders cats by AllCategories and always includes the primaries.
func NormalizeCategories(cats []Category) []Category {
	seen := map[Category]bool{AssetManager: true, LeveragedFunds: true}
	for _, c := range cats {
		seen[c] = true
	}
	out := make([]Category, 0, len(AllCategories))
	for _, c := range AllCategories {
		if seen[c] {
			out = append(out, c)
		}
	}
	return out
}
