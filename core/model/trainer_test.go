package model

import (
	"context"
	"math"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// trainerFixture builds a small synthetic regression problem the model can
// actually learn: ratings derived from the feature vectors plus noise.
func trainerFixture(t *testing.T) (*RatingModel, *Dataset, TrainerConfig) {
	t.Helper()

	dims := Dims{
		NumUsers:        6,
		NumHotels:       5,
		UserFeatureDim:  4,
		HotelFeatureDim: 4,
		EmbeddingDim:    4,
		HiddenWidths:    []int{8},
	}

	rng := rand.New(rand.NewSource(17))
	userFeat := randomFeatures(rng, dims.NumUsers, dims.UserFeatureDim)
	hotelFeat := randomFeatures(rng, dims.NumHotels, dims.HotelFeatureDim)

	var samples []Sample
	for u := 0; u < dims.NumUsers; u++ {
		for h := 0; h < dims.NumHotels; h++ {
			rating := 1.0 + 2.0*userFeat[u][0] + 2.0*hotelFeat[h][0]
			if rating > 5 {
				rating = 5
			}
			samples = append(samples, Sample{UserIdx: u, HotelIdx: h, Rating: rating})
		}
	}

	train, val, test := Split(samples, 0.2, 0.2, 42)
	ds := &Dataset{
		Train:         train,
		Val:           val,
		Test:          test,
		UserFeatures:  userFeat,
		HotelFeatures: hotelFeat,
	}

	m, err := New(dims, Options{}, 42)
	require.NoError(t, err)

	cfg := DefaultTrainerConfig(filepath.Join(t.TempDir(), "ckpt"))
	cfg.MaxEpochs = 12
	cfg.Patience = 12
	cfg.BatchSize = 8
	cfg.LearningRate = 0.01
	return m, ds, cfg
}

func TestSplit(t *testing.T) {
	var samples []Sample
	for i := 0; i < 100; i++ {
		samples = append(samples, Sample{UserIdx: i, Rating: float64(1 + i%5)})
	}

	t.Run("fractions are honored", func(t *testing.T) {
		train, val, test := Split(samples, 0.2, 0.1, 42)
		assert.Equal(t, 100, len(train)+len(val)+len(test))
		assert.Equal(t, 20, len(test))
		assert.Equal(t, 8, len(val))
	})

	t.Run("test split is stratified by rounded rating", func(t *testing.T) {
		_, _, test := Split(samples, 0.2, 0.1, 42)
		bands := make(map[int]int)
		for _, s := range test {
			bands[int(math.Round(s.Rating))]++
		}
		for band := 1; band <= 5; band++ {
			assert.Equal(t, 4, bands[band], "band %d", band)
		}
	})

	t.Run("same seed reproduces the split", func(t *testing.T) {
		a1, b1, c1 := Split(append([]Sample{}, samples...), 0.2, 0.1, 42)
		a2, b2, c2 := Split(append([]Sample{}, samples...), 0.2, 0.1, 42)
		assert.Equal(t, a1, a2)
		assert.Equal(t, b1, b2)
		assert.Equal(t, c1, c2)
	})
}

func TestTrain(t *testing.T) {
	t.Run("loss decreases and the best checkpoint is kept", func(t *testing.T) {
		m, ds, cfg := trainerFixture(t)

		result, err := NewTrainer(m, cfg, nil, nil).Train(context.Background(), ds)
		require.NoError(t, err)

		require.NotEmpty(t, result.Epochs)
		assert.NotEmpty(t, result.RunID)
		assert.Less(t, result.BestValMSE, result.Epochs[0].ValMSE+1e-9)
		assert.True(t, CheckpointExists(cfg.CheckpointDir))

		// The model in memory is the best epoch, so its validation MSE
		// matches the reported best.
		total := 0.0
		for _, s := range ds.Val {
			pred := m.Score(s.UserIdx, s.HotelIdx, ds.UserFeatures[s.UserIdx], ds.HotelFeatures[s.HotelIdx])
			total += (pred - s.Rating) * (pred - s.Rating)
		}
		assert.InDelta(t, result.BestValMSE, total/float64(len(ds.Val)), 1e-9)
	})

	t.Run("empty training split fails", func(t *testing.T) {
		m, ds, cfg := trainerFixture(t)
		ds.Train = nil
		_, err := NewTrainer(m, cfg, nil, nil).Train(context.Background(), ds)
		assert.Error(t, err)
	})

	t.Run("cancellation stops at a batch boundary", func(t *testing.T) {
		m, ds, cfg := trainerFixture(t)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := NewTrainer(m, cfg, nil, nil).Train(ctx, ds)
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("recorder observes the full run", func(t *testing.T) {
		m, ds, cfg := trainerFixture(t)
		rec := &capturingRecorder{}

		result, err := NewTrainer(m, cfg, nil, rec).Train(context.Background(), ds)
		require.NoError(t, err)

		assert.Equal(t, result.RunID, rec.beganRun)
		assert.Len(t, rec.epochs, len(result.Epochs))
		assert.Equal(t, "completed", rec.finishStatus)
		assert.Equal(t, result.BestValMSE, rec.finishBest)
	})

	t.Run("checkpointed val MSE never increases across saves", func(t *testing.T) {
		m, ds, cfg := trainerFixture(t)
		rec := &capturingRecorder{}

		_, err := NewTrainer(m, cfg, nil, rec).Train(context.Background(), ds)
		require.NoError(t, err)

		prev := math.Inf(1)
		for _, stats := range rec.epochs {
			if stats.Improved {
				assert.Less(t, stats.ValMSE, prev)
				prev = stats.ValMSE
			}
		}
	})
}

func TestPlateauScheduler(t *testing.T) {
	t.Run("reduces after patience epochs without improvement", func(t *testing.T) {
		s := newPlateauScheduler(0.5, 2, 1e-6)

		lr, reduced := s.observe(1.0, 0.1)
		assert.False(t, reduced)
		assert.Equal(t, 0.1, lr)

		_, reduced = s.observe(1.5, 0.1)
		assert.False(t, reduced)

		lr, reduced = s.observe(1.4, 0.1)
		assert.True(t, reduced)
		assert.Equal(t, 0.05, lr)
	})

	t.Run("improvement resets the wait", func(t *testing.T) {
		s := newPlateauScheduler(0.5, 2, 1e-6)
		s.observe(1.0, 0.1)
		s.observe(1.5, 0.1)
		_, reduced := s.observe(0.9, 0.1)
		assert.False(t, reduced)
		_, reduced = s.observe(1.1, 0.1)
		assert.False(t, reduced)
	})

	t.Run("respects the floor", func(t *testing.T) {
		s := newPlateauScheduler(0.5, 1, 1e-6)
		s.observe(1.0, 2e-6)
		lr, reduced := s.observe(1.5, 2e-6)
		assert.True(t, reduced)
		assert.Equal(t, 1e-6, lr)

		s2 := newPlateauScheduler(0.5, 1, 1e-6)
		s2.observe(1.0, 1e-6)
		_, reduced = s2.observe(1.5, 1e-6)
		assert.False(t, reduced, "already at the floor")
	})
}

func TestEvaluate(t *testing.T) {
	m, ds, cfg := trainerFixture(t)
	_, err := NewTrainer(m, cfg, nil, nil).Train(context.Background(), ds)
	require.NoError(t, err)

	t.Run("metrics are consistent", func(t *testing.T) {
		metrics := Evaluate(m, ds.Test, ds, 0.5)

		assert.Equal(t, len(ds.Test), metrics.Samples)
		assert.InDelta(t, math.Sqrt(metrics.MSE), metrics.RMSE, 1e-12)
		assert.GreaterOrEqual(t, metrics.MAE, 0.0)
		assert.GreaterOrEqual(t, metrics.WithinTolerance, 0.0)
		assert.LessOrEqual(t, metrics.WithinTolerance, 1.0)
		assert.Equal(t, 0.5, metrics.Tolerance)
	})

	t.Run("zero tolerance falls back to the default", func(t *testing.T) {
		metrics := Evaluate(m, ds.Test, ds, 0)
		assert.Equal(t, DefaultTolerance, metrics.Tolerance)
	})

	t.Run("empty sample set", func(t *testing.T) {
		metrics := Evaluate(m, nil, ds, 0.5)
		assert.Zero(t, metrics.Samples)
		assert.Zero(t, metrics.MSE)
	})
}

// capturingRecorder is an in-memory RunRecorder for trainer tests.
type capturingRecorder struct {
	beganRun     string
	epochs       []EpochStats
	finishStatus string
	finishBest   float64
}

func (r *capturingRecorder) BeginRun(runID string, cfg TrainerConfig) error {
	r.beganRun = runID
	return nil
}

func (r *capturingRecorder) RecordEpoch(runID string, stats EpochStats) error {
	r.epochs = append(r.epochs, stats)
	return nil
}

func (r *capturingRecorder) FinishRun(runID string, bestValMSE float64, status string) error {
	r.finishStatus = status
	r.finishBest = bestValMSE
	return nil
}
