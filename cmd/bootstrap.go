// Package cmd provides the RoomRank CLI: training, recommendation,
// explanation, evaluation, and the dataset watcher.
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/adalundhe/roomrank/core/config"
	"github.com/adalundhe/roomrank/core/dataset"
	"github.com/adalundhe/roomrank/core/history"
	"github.com/adalundhe/roomrank/core/model"
	"github.com/adalundhe/roomrank/core/recommend"
	"github.com/adalundhe/roomrank/core/synth"
)

// app wires the shared pieces every command needs: config, loaded dataset,
// scoring engine, and the run ledger.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	store  *dataset.Store
	engine *recommend.Engine
	ledger *history.Ledger
}

func bootstrap() (*app, error) {
	logger := newLogger()

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	store := dataset.NewStore()
	snap, err := store.Reload(cfg.Dataset.UsersFile, cfg.Dataset.HotelsFile)
	if err != nil {
		return nil, err
	}
	logger.Debug("dataset loaded",
		slog.Int("users", snap.NumUsers()),
		slog.Int("hotels", snap.NumHotels()))

	engine, err := recommend.New(store, recommend.DefaultConfig(), logger)
	if err != nil {
		return nil, err
	}

	ledger, err := history.Open(cfg.History.Path)
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:    cfg,
		logger: logger,
		store:  store,
		engine: engine,
		ledger: ledger,
	}, nil
}

func (a *app) Close() {
	if a.ledger != nil {
		a.ledger.Close()
	}
}

// retrainConfig maps the loaded configuration onto the engine's retrain
// options.
func (a *app) retrainConfig() recommend.RetrainConfig {
	t := a.cfg.Training
	return recommend.RetrainConfig{
		Synth: synth.Config{
			NoiseStdDev: a.cfg.Synth.NoiseStdDev,
			Seed:        a.cfg.Synth.Seed,
		},
		Trainer: model.TrainerConfig{
			LearningRate:  t.LearningRate,
			BatchSize:     t.BatchSize,
			MaxEpochs:     t.MaxEpochs,
			Patience:      t.Patience,
			ClipNorm:      t.ClipNorm,
			WeightDecay:   t.WeightDecay,
			LRFactor:      t.LRFactor,
			LRPatience:    t.LRPatience,
			MinLR:         t.MinLR,
			Seed:          t.Seed,
			CheckpointDir: t.CheckpointDir,
		},
		Model: model.Options{
			FeatureDropout: a.cfg.Model.FeatureDropout,
			HiddenDropout:  a.cfg.Model.HiddenDropout,
			FinalDropout:   a.cfg.Model.FinalDropout,
		},
		Recorder:     a.ledger,
		EmbeddingDim: a.cfg.Model.EmbeddingDim,
		HiddenWidths: a.cfg.Model.HiddenWidths,
		TestFraction: t.TestFraction,
		ValFraction:  t.ValFraction,
	}
}

// loadModel restores the committed checkpoint and installs it on the
// engine. The saved shape must match the current dataset; if the dataset
// grew or shrank since training, the caller has to retrain.
func (a *app) loadModel() error {
	dir := a.cfg.Training.CheckpointDir
	if !model.CheckpointExists(dir) {
		return fmt.Errorf("no trained model at %s (run `roomrank train` first)", dir)
	}

	meta, err := model.ReadCheckpointMetadata(dir)
	if err != nil {
		return err
	}

	snap, err := a.store.Snapshot()
	if err != nil {
		return err
	}
	if meta.Dims.NumUsers != snap.NumUsers() || meta.Dims.NumHotels != snap.NumHotels() {
		return fmt.Errorf("checkpoint was trained on %d users / %d hotels but the dataset now has %d / %d; retrain required",
			meta.Dims.NumUsers, meta.Dims.NumHotels, snap.NumUsers(), snap.NumHotels())
	}

	m, err := model.New(meta.Dims, a.retrainConfig().Model, a.cfg.Training.Seed)
	if err != nil {
		return err
	}
	if _, err := model.LoadCheckpoint(dir, m); err != nil {
		return err
	}

	a.engine.SetModel(m)
	a.logger.Debug("model restored",
		slog.String("run_id", meta.RunID),
		slog.Float64("val_mse", meta.ValMSE),
		slog.Time("saved_at", meta.SavedAt))
	return nil
}
