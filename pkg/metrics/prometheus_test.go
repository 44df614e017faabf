package metrics

import (
	"math"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"CrowdedCOT/internal/domain/models"
)

func TestRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New(reg)

	r.RecordRun("csv", 10, 10, 250*time.Millisecond)
	r.RecordRun("csv", 4, 4, time.Second)
	r.RecordError("load")

	assert.Equal(t, 2.0, testutil.ToFloat64(r.runsTotal.WithLabelValues("csv")))
	assert.Equal(t, 14.0, testutil.ToFloat64(r.rowsIn.WithLabelValues("csv")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.errorsTotal.WithLabelValues("load")))

	r.RecordSummary(models.Summary{Contract: "ES", AMZ: 2.5, LFZ: -1, AMPctRank: 97, LFPctRank: math.NaN(),
		Flags: models.Flags{AMCrowdedLong: true, AMCrowdedLongConfirmed: true, ExtremeCrowding: true}})

	assert.Equal(t, 2.5, testutil.ToFloat64(r.latestZ.WithLabelValues("ES", "am")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.flags.WithLabelValues("ES", "am_crowded_long_confirmed")))
	assert.Equal(t, 0.0, testutil.ToFloat64(r.flags.WithLabelValues("ES", "lf_crowded_short")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.extremes.WithLabelValues("ES", "am_crowded_long_confirmed")))
	assert.Equal(t, 1, testutil.CollectAndCount(r.latestPct), "null lf pct rank is not exported")
	assert.Equal(t, 2, testutil.CollectAndCount(r.latestZ))
}
