package features

import "math"

// NetPctOI returns 100 * (long - short) / openInterest, or NaN when any input
// is missing or open interest is zero.
func NetPctOI(long, short, openInterest float64) float64 {
	if math.IsNaN(long) || math.IsNaN(short) || math.IsNaN(openInterest) || openInterest == 0 {
		return math.NaN()
	}
	return 100 * (long - short) / openInterest
}

// NetPctOISeries applies NetPctOI elementwise. The slices must have equal length.
func NetPctOISeries(long, short, openInterest []float64) []float64 {
	out := make([]float64, len(openInterest))
	for i := range openInterest {
		out[i] = NetPctOI(long[i], short[i], openInterest[i])
	}
	return out
}
