package export

import (
	"fmt"
	"io"
	"math"

	"CrowdedCOT/internal/domain/models"
	"CrowdedCOT/internal/services/positioning"
)

// NoData is printed when a run produced no rows.
const NoData = "No data returned."

// WriteSummary prints the latest report date and one line per contract with
// its z-scores and crowding markers.
func WriteSummary(w io.Writer, t *models.DerivedTable) error {
	if t.Empty() {
		_, err := fmt.Fprintln(w, NoData)
		return err
	}
	latest, _ := t.LatestDate()
	if _, err := fmt.Fprintf(w, "Latest report date: %s\n", latest.Format("2006-01-02")); err != nil {
		return err
	}
	for _, s := range positioning.Latest(t) {
		if _, err := fmt.Fprintln(w, SummaryLine(s)); err != nil {
			return err
		}
	}
	return nil
}

// SummaryLine renders one contract, e.g.
// "ES: am_z=2.31, lf_z=-0.42 **EXTREME** [am crowded long confirmed]".
func SummaryLine(s models.Summary) string {
	line := fmt.Sprintf("%s: am_z=%s, lf_z=%s", s.Contract, fmtZ(s.AMZ), fmtZ(s.LFZ))
	if s.ExtremeCrowding {
		line += " **EXTREME**"
	}
	if s.AMCrowdedLongConfirmed {
		line += " [am crowded long confirmed]"
	}
	if s.LFCrowdedShortConfirmed {
		line += " [lf crowded short confirmed]"
	}
	return line
}

func fmtZ(v float64) string {
	if math.IsNaN(v) {
		return "nan"
	}
	return fmt.Sprintf("%.2f", v)
}
