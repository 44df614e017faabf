package features

import (
	"math"
	"sort"
)

// RollingMeanStd computes the trailing-window mean and sample standard deviation
// of series. The window at i covers series[max(0,i-window+1) : i+1]. Both outputs
// are NaN unless the window holds at least minHistory non-NaN values; the
// deviation is also NaN with fewer than two values, and exactly zero when every
// valid value in the window is identical.
func RollingMeanStd(series []float64, window, minHistory int) (mean, std []float64) {
	n := len(series)
	mean = nulls(n)
	std = nulls(n)
	if window <= 0 {
		return mean, std
	}
	if minHistory < 1 {
		minHistory = 1
	}
	for i := 0; i < n; i++ {
		start := i - window + 1
		if start < 0 {
			start = 0
		}
		cnt := 0
		sum := 0.0
		first := math.NaN()
		same := true
		for _, v := range series[start : i+1] {
			if math.IsNaN(v) {
				continue
			}
			if cnt == 0 {
				first = v
			} else if v != first {
				same = false
			}
			cnt++
			sum += v
		}
		if cnt < minHistory || cnt == 0 {
			continue
		}
		// A constant window is degenerate: sum/cnt can miss the value by an
		// ulp, which would leave a tiny non-zero deviation.
		if same {
			mean[i] = first
			if cnt >= 2 {
				std[i] = 0
			}
			continue
		}
		m := sum / float64(cnt)
		mean[i] = m
		if cnt < 2 {
			continue
		}
		ss := 0.0
		for _, v := range series[start : i+1] {
			if math.IsNaN(v) {
				continue
			}
			d := v - m
			ss += d * d
		}
		std[i] = math.Sqrt(ss / float64(cnt-1))
	}
	return mean, std
}

// RollingPercentileRank returns the inclusive percentile rank (PERCENTRANK.INC
// style) of each value within its trailing window: 100 * #{w <= x} / |W|, with
// NaNs excluded from W. The result is NaN when x is NaN or W is empty.
func RollingPercentileRank(series []float64, window int) []float64 {
	n := len(series)
	out := nulls(n)
	if window <= 0 {
		return out
	}
	buf := make([]float64, 0, window)
	for i := 0; i < n; i++ {
		x := series[i]
		if math.IsNaN(x) {
			continue
		}
		start := i - window + 1
		if start < 0 {
			start = 0
		}
		buf = buf[:0]
		for _, v := range series[start : i+1] {
			if !math.IsNaN(v) {
				buf = append(buf, v)
			}
		}
		if len(buf) == 0 {
			continue
		}
		sort.Float64s(buf)
		le := sort.Search(len(buf), func(k int) bool { return buf[k] > x })
		out[i] = 100 * float64(le) / float64(len(buf))
	}
	return out
}

// ZScore returns (x - mean) / std elementwise. Any NaN operand or a zero std
// yields NaN.
func ZScore(series, mean, std []float64) []float64 {
	out := nulls(len(series))
	for i, x := range series {
		if i >= len(mean) || i >= len(std) {
			break
		}
		m, s := mean[i], std[i]
		if math.IsNaN(x) || math.IsNaN(m) || math.IsNaN(s) || s == 0 {
			continue
		}
		out[i] = (x - m) / s
	}
	return out
}

func nulls(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
