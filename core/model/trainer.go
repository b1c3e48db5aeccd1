package model

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/google/uuid"
)

// ErrTrainingDiverged indicates a non-finite loss. The run aborts
// immediately and the last good checkpoint is left untouched.
var ErrTrainingDiverged = errors.New("model: training diverged (non-finite loss)")

// =============================================================================
// Samples and splits
// =============================================================================

// Sample is one training example addressed by feature-matrix positions.
type Sample struct {
	UserIdx  int
	HotelIdx int
	Rating   float64
}

// Dataset bundles the split samples with the feature matrices they index.
type Dataset struct {
	Train []Sample
	Val   []Sample
	Test  []Sample

	UserFeatures  [][]float64
	HotelFeatures [][]float64
}

// Split partitions samples into train/val/test. The test split is taken
// first, stratified by rounded rating so each rating band is represented;
// the remainder is then shuffled into train and validation. All shuffles
// are driven by the seed, so splits are reproducible.
func Split(samples []Sample, testFraction, valFraction float64, seed int64) (train, val, test []Sample) {
	rng := rand.New(rand.NewSource(seed))

	byBand := make(map[int][]Sample)
	for _, s := range samples {
		band := int(math.Round(s.Rating))
		byBand[band] = append(byBand[band], s)
	}

	bands := make([]int, 0, len(byBand))
	for band := range byBand {
		bands = append(bands, band)
	}
	sort.Ints(bands)

	var rest []Sample
	for _, band := range bands {
		group := byBand[band]
		rng.Shuffle(len(group), func(i, j int) { group[i], group[j] = group[j], group[i] })
		cut := int(float64(len(group)) * testFraction)
		test = append(test, group[:cut]...)
		rest = append(rest, group[cut:]...)
	}

	rng.Shuffle(len(rest), func(i, j int) { rest[i], rest[j] = rest[j], rest[i] })
	valSize := int(float64(len(rest)) * valFraction)
	val = rest[:valSize]
	train = rest[valSize:]
	return train, val, test
}

// =============================================================================
// Trainer configuration
// =============================================================================

// TrainerConfig controls one training run.
type TrainerConfig struct {
	LearningRate  float64
	BatchSize     int
	MaxEpochs     int
	Patience      int
	ClipNorm      float64
	WeightDecay   float64
	LRFactor      float64
	LRPatience    int
	MinLR         float64
	Seed          int64
	CheckpointDir string
}

// DefaultTrainerConfig returns the documented training defaults.
func DefaultTrainerConfig(checkpointDir string) TrainerConfig {
	return TrainerConfig{
		LearningRate:  0.0005,
		BatchSize:     32,
		MaxEpochs:     100,
		Patience:      15,
		ClipNorm:      1.0,
		WeightDecay:   1e-5,
		LRFactor:      0.5,
		LRPatience:    5,
		MinLR:         1e-6,
		Seed:          42,
		CheckpointDir: checkpointDir,
	}
}

// EpochStats summarizes one epoch for logging and the run ledger.
type EpochStats struct {
	Epoch    int
	TrainMSE float64
	ValMSE   float64
	LR       float64
	Improved bool
	Duration time.Duration
}

// Result summarizes a completed run. The model it refers to has been reset
// to the best checkpoint, never the last epoch unless it was also the best.
type Result struct {
	RunID        string
	BestValMSE   float64
	Epochs       []EpochStats
	StoppedEarly bool
}

// RunRecorder receives training progress for durable run history. A nil
// recorder is allowed.
type RunRecorder interface {
	BeginRun(runID string, cfg TrainerConfig) error
	RecordEpoch(runID string, stats EpochStats) error
	FinishRun(runID string, bestValMSE float64, status string) error
}

// =============================================================================
// Trainer
// =============================================================================

// Trainer fits a RatingModel against synthesized labels with mini-batch
// gradient descent, gradient clipping, plateau learning-rate decay, and
// early stopping. Gradient accumulation within a batch is sequential, so a
// fixed seed reproduces the run exactly.
type Trainer struct {
	cfg      TrainerConfig
	model    *RatingModel
	logger   *slog.Logger
	recorder RunRecorder
}

// NewTrainer builds a trainer. logger may be nil; recorder may be nil.
func NewTrainer(m *RatingModel, cfg TrainerConfig, logger *slog.Logger, recorder RunRecorder) *Trainer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Trainer{cfg: cfg, model: m, logger: logger, recorder: recorder}
}

// Train runs the full loop and leaves the model holding the best-validation
// parameters. The best checkpoint is persisted to cfg.CheckpointDir as a
// side effect. Context cancellation is honored at batch boundaries.
func (t *Trainer) Train(ctx context.Context, ds *Dataset) (*Result, error) {
	if len(ds.Train) == 0 {
		return nil, fmt.Errorf("model: no training samples")
	}

	runID := uuid.NewString()
	if t.recorder != nil {
		if err := t.recorder.BeginRun(runID, t.cfg); err != nil {
			return nil, fmt.Errorf("model: record run start: %w", err)
		}
	}

	params := t.model.Params()
	optimizer := NewAdam(params, t.cfg.LearningRate, t.cfg.WeightDecay)
	scheduler := newPlateauScheduler(t.cfg.LRFactor, t.cfg.LRPatience, t.cfg.MinLR)
	rng := rand.New(rand.NewSource(t.cfg.Seed))

	result := &Result{RunID: runID, BestValMSE: math.Inf(1)}
	sinceBest := 0

	t.logger.Info("training started",
		"run_id", runID,
		"train_samples", len(ds.Train),
		"val_samples", len(ds.Val),
		"max_epochs", t.cfg.MaxEpochs)

	for epoch := 1; epoch <= t.cfg.MaxEpochs; epoch++ {
		start := time.Now()

		trainMSE, err := t.runEpoch(ctx, ds, optimizer, params, rng)
		if err != nil {
			t.finishRun(runID, result.BestValMSE, "failed")
			return nil, err
		}

		valMSE := t.meanSquaredError(ds.Val, ds)
		if !isFinite(valMSE) {
			t.finishRun(runID, result.BestValMSE, "failed")
			return nil, fmt.Errorf("%w: validation MSE %v at epoch %d", ErrTrainingDiverged, valMSE, epoch)
		}

		improved := valMSE < result.BestValMSE
		if improved {
			result.BestValMSE = valMSE
			sinceBest = 0
			meta := CheckpointMetadata{RunID: runID, ValMSE: valMSE, Epoch: epoch}
			if err := SaveCheckpoint(t.cfg.CheckpointDir, t.model, meta); err != nil {
				t.finishRun(runID, result.BestValMSE, "failed")
				return nil, err
			}
		} else {
			sinceBest++
		}

		if lr, reduced := scheduler.observe(valMSE, optimizer.LR()); reduced {
			optimizer.SetLR(lr)
			t.logger.Info("learning rate reduced", "run_id", runID, "lr", lr)
		}

		stats := EpochStats{
			Epoch:    epoch,
			TrainMSE: trainMSE,
			ValMSE:   valMSE,
			LR:       optimizer.LR(),
			Improved: improved,
			Duration: time.Since(start),
		}
		result.Epochs = append(result.Epochs, stats)

		if t.recorder != nil {
			if err := t.recorder.RecordEpoch(runID, stats); err != nil {
				t.logger.Warn("epoch record failed", "run_id", runID, "error", err)
			}
		}

		t.logger.Info("epoch complete",
			"run_id", runID,
			"epoch", epoch,
			"train_mse", trainMSE,
			"val_mse", valMSE,
			"improved", improved)

		if sinceBest >= t.cfg.Patience {
			result.StoppedEarly = true
			t.logger.Info("early stopping", "run_id", runID, "epoch", epoch, "patience", t.cfg.Patience)
			break
		}
	}

	// The returned model is the best checkpoint, not the last epoch.
	if _, err := LoadCheckpoint(t.cfg.CheckpointDir, t.model); err != nil {
		t.finishRun(runID, result.BestValMSE, "failed")
		return nil, fmt.Errorf("model: reload best checkpoint: %w", err)
	}

	t.finishRun(runID, result.BestValMSE, "completed")
	return result, nil
}

// runEpoch processes the training split in shuffled mini-batches and
// returns the mean training loss.
func (t *Trainer) runEpoch(ctx context.Context, ds *Dataset, optimizer *Adam, params []Param, rng *rand.Rand) (float64, error) {
	rng.Shuffle(len(ds.Train), func(i, j int) {
		ds.Train[i], ds.Train[j] = ds.Train[j], ds.Train[i]
	})

	totalLoss := 0.0
	batches := 0

	for start := 0; start < len(ds.Train); start += t.cfg.BatchSize {
		if err := ctx.Err(); err != nil {
			return 0, fmt.Errorf("model: training cancelled: %w", err)
		}

		end := start + t.cfg.BatchSize
		if end > len(ds.Train) {
			end = len(ds.Train)
		}
		batch := ds.Train[start:end]

		t.model.ZeroGrads()
		batchLoss := 0.0
		for _, s := range batch {
			pred := t.model.Forward(s.UserIdx, s.HotelIdx, ds.UserFeatures[s.UserIdx], ds.HotelFeatures[s.HotelIdx], true)
			diff := pred - s.Rating
			batchLoss += diff * diff
			t.model.Backward(2 * diff / float64(len(batch)))
		}
		batchLoss /= float64(len(batch))

		if !isFinite(batchLoss) {
			return 0, fmt.Errorf("%w: batch loss %v", ErrTrainingDiverged, batchLoss)
		}

		ClipGradNorm(params, t.cfg.ClipNorm)
		optimizer.Step(params)

		totalLoss += batchLoss
		batches++
	}

	return totalLoss / float64(batches), nil
}

// meanSquaredError evaluates the model on a sample set in eval mode.
func (t *Trainer) meanSquaredError(samples []Sample, ds *Dataset) float64 {
	if len(samples) == 0 {
		return 0
	}
	total := 0.0
	for _, s := range samples {
		pred := t.model.Score(s.UserIdx, s.HotelIdx, ds.UserFeatures[s.UserIdx], ds.HotelFeatures[s.HotelIdx])
		diff := pred - s.Rating
		total += diff * diff
	}
	return total / float64(len(samples))
}

func (t *Trainer) finishRun(runID string, bestValMSE float64, status string) {
	if t.recorder == nil {
		return
	}
	if err := t.recorder.FinishRun(runID, bestValMSE, status); err != nil {
		t.logger.Warn("run record failed", "run_id", runID, "error", err)
	}
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// =============================================================================
// Plateau scheduler
// =============================================================================

// plateauScheduler halves the learning rate after LRPatience epochs without
// a new best validation loss, down to a floor.
type plateauScheduler struct {
	factor   float64
	patience int
	minLR    float64

	best float64
	wait int
}

func newPlateauScheduler(factor float64, patience int, minLR float64) *plateauScheduler {
	return &plateauScheduler{
		factor:   factor,
		patience: patience,
		minLR:    minLR,
		best:     math.Inf(1),
	}
}

// observe feeds one validation loss and returns the new rate when a
// reduction fires.
func (p *plateauScheduler) observe(valLoss, currentLR float64) (float64, bool) {
	if valLoss < p.best {
		p.best = valLoss
		p.wait = 0
		return currentLR, false
	}

	p.wait++
	if p.wait < p.patience {
		return currentLR, false
	}

	p.wait = 0
	reduced := currentLR * p.factor
	if reduced < p.minLR {
		reduced = p.minLR
	}
	if reduced == currentLR {
		return currentLR, false
	}
	return reduced, true
}
