package cluster

import (
	"github.com/montanaflynn/stats"
)

// standardize rescales every column of rows to zero mean and unit population
// variance, fit jointly over all rows. A constant column keeps unit scale and
// becomes all zeros. rows is not modified.
func standardize(rows [][]float64) [][]float64 {
	if len(rows) == 0 {
		return nil
	}
	dims := len(rows[0])
	out := make([][]float64, len(rows))
	for i := range rows {
		out[i] = make([]float64, dims)
	}

	col := make([]float64, len(rows))
	for d := 0; d < dims; d++ {
		for i, row := range rows {
			col[i] = row[d]
		}
		mean, _ := stats.Mean(col)
		std, _ := stats.StandardDeviationPopulation(col)
		if std == 0 {
			std = 1
		}
		for i, row := range rows {
			out[i][d] = (row[d] - mean) / std
		}
	}
	return out
}
