package model

import "math"

// DefaultTolerance is the prediction error, in rating points, counted as a
// hit by the tolerance metric.
const DefaultTolerance = 0.5

// Metrics reports held-out model quality.
type Metrics struct {
	Samples         int     `json:"samples"`
	MSE             float64 `json:"mse"`
	RMSE            float64 `json:"rmse"`
	MAE             float64 `json:"mae"`
	WithinTolerance float64 `json:"within_tolerance"`
	Tolerance       float64 `json:"tolerance"`
}

// Evaluate scores the model on a held-out sample set in eval mode.
func Evaluate(m *RatingModel, samples []Sample, ds *Dataset, tolerance float64) Metrics {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	metrics := Metrics{Samples: len(samples), Tolerance: tolerance}
	if len(samples) == 0 {
		return metrics
	}

	var sqSum, absSum float64
	hits := 0
	for _, s := range samples {
		pred := m.Score(s.UserIdx, s.HotelIdx, ds.UserFeatures[s.UserIdx], ds.HotelFeatures[s.HotelIdx])
		diff := pred - s.Rating
		sqSum += diff * diff
		absSum += math.Abs(diff)
		if math.Abs(diff) <= tolerance {
			hits++
		}
	}

	n := float64(len(samples))
	metrics.MSE = sqSum / n
	metrics.RMSE = math.Sqrt(metrics.MSE)
	metrics.MAE = absSum / n
	metrics.WithinTolerance = float64(hits) / n
	return metrics
}
