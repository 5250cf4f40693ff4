package valuation

// chartWidth is the number of points the performance chart renders.
const chartWidth = 12

// resampleToChartWidth returns label/value slices of exactly chartWidth
// entries (input permitting). Longer series are thinned by taking every
// n/12-th point and truncating; shorter series are padded by repeating the
// last point. Empty input passes through untouched.
func resampleToChartWidth(labels []string, values []float64) ([]string, []float64) {
	n := len(values)
	if n == 0 || n == chartWidth {
		return labels, values
	}
	if n > chartWidth {
		step := n / chartWidth
		outL := make([]string, 0, chartWidth)
		outV := make([]float64, 0, chartWidth)
		for i := 0; i < n && len(outV) < chartWidth; i += step {
			outL = append(outL, labels[i])
			outV = append(outV, values[i])
		}
		return outL, outV
	}
	outL := make([]string, 0, chartWidth)
	outV := make([]float64, 0, chartWidth)
	outL = append(outL, labels...)
	outV = append(outV, values...)
	for len(outV) < chartWidth {
		outL = append(outL, labels[n-1])
		outV = append(outV, values[n-1])
	}
	return outL, outV
}
