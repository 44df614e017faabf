package positioning

import (
	"fmt"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
)

// Params configures the positioning engine.
type Params struct {
	Threshold           float64 `yaml:"threshold" json:"threshold" query:"threshold" default:"2.0" validate:"gt=0"`
	LookbackWeeks       int     `yaml:"lookback_weeks" json:"lookback_weeks" query:"lookback_weeks" default:"260" validate:"gte=1"`
	MinRequiredWeeks    int     `yaml:"min_required_weeks" json:"min_required_weeks" query:"min_required_weeks" default:"156" validate:"gte=1"`
	AMLongPctThreshold  float64 `yaml:"am_long_pct_threshold" json:"am_long_pct_threshold" query:"am_long_pct" default:"90" validate:"gte=0,lte=100"`
	LFShortPctThreshold float64 `yaml:"lf_short_pct_threshold" json:"lf_short_pct_threshold" query:"lf_short_pct" default:"10" validate:"gte=0,lte=100"`
	ConfirmWeeks        int     `yaml:"confirm_weeks" json:"confirm_weeks" query:"confirm_weeks" default:"2" validate:"gte=1"`
}

var validate = validator.New()

// DefaultParams returns the documented defaults.
func DefaultParams() Params {
	var p Params
	_ = defaults.Set(&p)
	return p
}

// Normalize validates p and clamps the minimum history to the lookback
// length. Fields are taken as given, so a zero percentile threshold stays
// zero; start from DefaultParams to change only some of them.
func (p Params) Normalize() (Params, error) {
	if err := validate.Struct(p); err != nil {
		return p, fmt.Errorf("params: %w", err)
	}
	if p.MinRequiredWeeks > p.LookbackWeeks {
		p.MinRequiredWeeks = p.LookbackWeeks
	}
	return p, nil
}
