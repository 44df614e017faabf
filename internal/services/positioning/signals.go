package positioning

import (
	"math"

	"CrowdedCOT/internal/domain/models"
)

// crowdedLong is the asset-manager extreme test. NaN operands never match.
func crowdedLong(pct, z float64, p Params) bool {
	return (!math.IsNaN(pct) && pct >= p.AMLongPctThreshold) ||
		(!math.IsNaN(z) && z >= p.Threshold)
}

// crowdedShort is the leveraged-fund extreme test.
func crowdedShort(pct, z float64, p Params) bool {
	return (!math.IsNaN(pct) && pct <= p.LFShortPctThreshold) ||
		(!math.IsNaN(z) && z <= -p.Threshold)
}

// confirmed reports whether flags[i-k+1..i] are all true. Rows with fewer than
// k predecessors (inclusive) are never confirmed.
func confirmed(flags []bool, i, k int) bool {
	if k < 1 || i+1 < k {
		return false
	}
	for j := i - k + 1; j <= i; j++ {
		if !flags[j] {
			return false
		}
	}
	return true
}

// Confirmations evaluates the confirmation rule for every position of flags.
func Confirmations(flags []bool, k int) []bool {
	out := make([]bool, len(flags))
	for i := range flags {
		out[i] = confirmed(flags, i, k)
	}
	return out
}

func applySignals(rows []models.DerivedObservation, am, lf categorySeries, p Params) {
	n := len(rows)
	amExtreme := make([]bool, n)
	lfExtreme := make([]bool, n)
	for i := 0; i < n; i++ {
		amExtreme[i] = crowdedLong(am.pct[i], am.z[i], p)
		lfExtreme[i] = crowdedShort(lf.pct[i], lf.z[i], p)
	}
	amConf := Confirmations(amExtreme, p.ConfirmWeeks)
	lfConf := Confirmations(lfExtreme, p.ConfirmWeeks)

	for i := range rows {
		rows[i].Flags = models.Flags{
			AMCrowdedLong:           amExtreme[i],
			LFCrowdedShort:          lfExtreme[i],
			AMCrowdedLongConfirmed:  amConf[i],
			LFCrowdedShortConfirmed: lfConf[i],
			ExtremeCrowding:         amExtreme[i] || lfExtreme[i],
		}
	}
}
