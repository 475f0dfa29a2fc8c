// Package sequence builds fixed-length lookback windows from ordered series.
package sequence

// Window is L consecutive inputs and the value that followed them.
type Window struct {
	Input  []float64
	Target float64
}

// Windows slides a length-L window over series and returns max(0, len(series)-L)
// windows; window i has Input series[i:i+L] and Target series[i+L]. A series
// shorter than L+1 yields no windows, which callers treat as insufficient history.
func Windows(series []float64, l int) []Window {
	if l <= 0 || len(series) < l+1 {
		return nil
	}
	out := make([]Window, 0, len(series)-l)
	for i := 0; i+l < len(series); i++ {
		input := make([]float64, l)
		copy(input, series[i:i+l])
		out = append(out, Window{Input: input, Target: series[i+l]})
	}
	return out
}

// LastWindow returns a copy of the final l values, or false if the series is shorter than l.
func LastWindow(series []float64, l int) ([]float64, bool) {
	if l <= 0 || len(series) < l {
		return nil, false
	}
	out := make([]float64, l)
	copy(out, series[len(series)-l:])
	return out, true
}
