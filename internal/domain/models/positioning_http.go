package models

import "math"

// Requests and responses of the positioning HTTP endpoints. Absent engine
// fields keep the server's configured parameters; a present field applies
// as given, zero included.

type PositioningRequest struct {
	Contract         string   `query:"contract" json:"contract" validate:"omitempty,alpha,max=8"`
	Format           string   `query:"format" json:"format" default:"json" validate:"oneof=json csv"`
	Threshold        *float64 `query:"threshold" json:"threshold,omitempty" validate:"omitempty,gt=0"`
	LookbackWeeks    *int     `query:"lookback_weeks" json:"lookback_weeks,omitempty" validate:"omitempty,gte=1,lte=2000"`
	MinRequiredWeeks *int     `query:"min_required_weeks" json:"min_required_weeks,omitempty" validate:"omitempty,gte=1,lte=2000"`
	AMLongPct        *float64 `query:"am_long_pct" json:"am_long_pct,omitempty" validate:"omitempty,gte=0,lte=100"`
	LFShortPct       *float64 `query:"lf_short_pct" json:"lf_short_pct,omitempty" validate:"omitempty,gte=0,lte=100"`
	ConfirmWeeks     *int     `query:"confirm_weeks" json:"confirm_weeks,omitempty" validate:"omitempty,gte=1,lte=52"`
}

// HasOverrides reports whether any engine parameter was supplied.
func (r PositioningRequest) HasOverrides() bool {
	return r.Threshold != nil || r.LookbackWeeks != nil || r.MinRequiredWeeks != nil ||
		r.AMLongPct != nil || r.LFShortPct != nil || r.ConfirmWeeks != nil
}

type LatestRequest struct {
	Contract string `query:"contract" json:"contract" validate:"omitempty,alpha,max=8"`
}

// SummaryResponse is one contract at the latest report date. Null metrics
// are JSON null.
type SummaryResponse struct {
	Contract                string   `json:"contract"`
	ReportDate              string   `json:"report_date"`
	AMZ                     *float64 `json:"am_z"`
	LFZ                     *float64 `json:"lf_z"`
	AMPctRank               *float64 `json:"am_pct_rank"`
	LFPctRank               *float64 `json:"lf_pct_rank"`
	AMCrowdedLong           bool     `json:"am_crowded_long"`
	LFCrowdedShort          bool     `json:"lf_crowded_short"`
	AMCrowdedLongConfirmed  bool     `json:"am_crowded_long_confirmed"`
	LFCrowdedShortConfirmed bool     `json:"lf_crowded_short_confirmed"`
	ExtremeCrowding         bool     `json:"extreme_crowding"`
}

// NewSummaryResponse converts s for the API.
func NewSummaryResponse(s Summary) SummaryResponse {
	return SummaryResponse{
		Contract:                s.Contract,
		ReportDate:              s.ReportDate.Format("2006-01-02"),
		AMZ:                     floatPtr(s.AMZ),
		LFZ:                     floatPtr(s.LFZ),
		AMPctRank:               floatPtr(s.AMPctRank),
		LFPctRank:               floatPtr(s.LFPctRank),
		AMCrowdedLong:           s.AMCrowdedLong,
		LFCrowdedShort:          s.LFCrowdedShort,
		AMCrowdedLongConfirmed:  s.AMCrowdedLongConfirmed,
		LFCrowdedShortConfirmed: s.LFCrowdedShortConfirmed,
		ExtremeCrowding:         s.ExtremeCrowding,
	}
}

func floatPtr(v float64) *float64 {
	if IsNull(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
