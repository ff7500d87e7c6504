package strategy

import (
	"math"
)

// validPrice reports whether p is a usable price.
func validPrice(p float64) bool {
	return p > 0 && !math.IsInf(p, 0)
}

// windowReturns returns simple returns between consecutive valid prices.
// Invalid prices are skipped, not bridged with a zero return.
func windowReturns(prices []float64) []float64 {
	var out []float64
	prev := math.NaN()
	for _, p := range prices {
		if !validPrice(p) {
			continue
		}
		if !math.IsNaN(prev) {
			out = append(out, p/prev-1)
		}
		prev = p
	}
	return out
}

// sampleStddev returns the n-1 standard deviation, NaN with fewer than 2 values.
func sampleStddev(values []float64) float64 {
	if len(values) < 2 {
		return math.NaN()
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))

	var sq float64
	for _, v := range values {
		d := v - mean
		sq += d * d
	}
	return math.Sqrt(sq / float64(len(values)-1))
}

// rollingMean returns the mean of col[i-n+1..i] at every i.
// The value is NaN until n valid prices fill the window, and whenever the
// window holds an invalid price.
func rollingMean(col []float64, n int) []float64 {
	out := make([]float64, len(col))
	var sum float64
	invalid := 0
	for i, p := range col {
		if validPrice(p) {
			sum += p
		} else {
			invalid++
		}
		if i >= n {
			old := col[i-n]
			if validPrice(old) {
				sum -= old
			} else {
				invalid--
			}
		}
		if i < n-1 || invalid > 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = sum / float64(n)
	}
	return out
}
