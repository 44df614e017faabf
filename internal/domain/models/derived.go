package models

import "time"

// CategoryMetrics are the derived series values for one category at one row.
// Missing values are NaN.
type CategoryMetrics struct {
	NetPctOI float64
	Z        float64
	PctRank  float64
}

// NullMetrics returns metrics with every value missing.
func NullMetrics() CategoryMetrics {
	return CategoryMetrics{NetPctOI: Null, Z: Null, PctRank: Null}
}

// Flags are the crowding signals of a row.
type Flags struct {
	AMCrowdedLong           bool
	LFCrowdedShort          bool
	AMCrowdedLongConfirmed  bool
	LFCrowdedShortConfirmed bool
	// ExtremeCrowding is the legacy aggregate of the unconfirmed flags.
	ExtremeCrowding bool
}

// DerivedObservation is an Observation enriched with metrics and flags.
type DerivedObservation struct {
	Observation
	Metrics map[Category]CategoryMetrics
	Flags
}

// Metric returns the metrics for c, or null metrics when absent.
func (d DerivedObservation) Metric(c Category) CategoryMetrics {
	if m, ok := d.Metrics[c]; ok {
		return m
	}
	return NullMetrics()
}

// DerivedTable is the engine output.
type DerivedTable struct {
	Categories []Category
	Columns    []string
	Rows       []DerivedObservation
}

// Empty reports whether the table has no rows.
func (t *DerivedTable) Empty() bool { return t == nil || len(t.Rows) == 0 }

// LatestDate returns the most recent report date in the table.
func (t *DerivedTable) LatestDate() (time.Time, bool) {
	if t.Empty() {
		return time.Time{}, false
	}
	latest := t.Rows[0].ReportDate
	for _, r := range t.Rows[1:] {
		if r.ReportDate.After(latest) {
			latest = r.ReportDate
		}
	}
	return latest, true
}

// Summary is the per-contract view at the latest report date.
type Summary struct {
	Contract   string
	ReportDate time.Time
	AMZ        float64
	LFZ        float64
	AMPctRank  float64
	LFPctRank  float64
	Flags
}
