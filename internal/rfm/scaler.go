package rfm

import (
	"fmt"

	"customer-segments/internal/models"

	"github.com/montanaflynn/stats"
)

// FeatureMatrix returns rows of (recency_days, frequency, monetary)
func FeatureMatrix(features []models.CustomerFeatures) [][]float64 {
	points := make([][]float64, len(features))
	for i, f := range features {
		points[i] = []float64{
			float64(f.RecencyDays),
			float64(f.Frequency),
			f.Monetary.InexactFloat64(),
		}
	}
	return points
}

// Scaler centres each column on zero and scales it to unit population variance
type Scaler struct {
	Mean  []float64
	Scale []float64
}

// FitScaler computes per-column mean and population standard deviation.
// A constant column gets scale 1 so it transforms to all zeros.
func FitScaler(points [][]float64) (Scaler, error) {
	if len(points) == 0 {
		return Scaler{}, &DataError{Reason: "cannot fit scaler on empty input"}
	}
	dims := len(points[0])
	s := Scaler{Mean: make([]float64, dims), Scale: make([]float64, dims)}
	col := make(stats.Float64Data, len(points))
	for d := 0; d < dims; d++ {
		for i, p := range points {
			if len(p) != dims {
				return Scaler{}, &DataError{Reason: fmt.Sprintf("row %d has %d columns, want %d", i, len(p), dims)}
			}
			col[i] = p[d]
		}
		mean, err := stats.Mean(col)
		if err != nil {
			return Scaler{}, fmt.Errorf("failed to compute mean: %w", err)
		}
		std, err := stats.StandardDeviationPopulation(col)
		if err != nil {
			return Scaler{}, fmt.Errorf("failed to compute standard deviation: %w", err)
		}
		if std == 0 {
			std = 1
		}
		s.Mean[d] = mean
		s.Scale[d] = std
	}
	return s, nil
}

// Transform returns a standardised copy of points
func (s Scaler) Transform(points [][]float64) [][]float64 {
	out := make([][]float64, len(points))
	for i, p := range points {
		row := make([]float64, len(p))
		for d, v := range p {
			row[d] = (v - s.Mean[d]) / s.Scale[d]
		}
		out[i] = row
	}
	return out
}

// Standardize scales recency, frequency and monetary so that monetary, which
// spans orders of magnitude more, does not dominate distances.
func Standardize(features []models.CustomerFeatures) ([][]float64, error) {
	points := FeatureMatrix(features)
	s, err := FitScaler(points)
	if err != nil {
		return nil, err
	}
	return s.Transform(points), nil
}
