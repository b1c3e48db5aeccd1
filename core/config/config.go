// Package config loads and validates the engine configuration from YAML.
// Every tunable has a documented default; a missing config file yields the
// default configuration rather than an error.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// Defaults
// =============================================================================

const (
	// DefaultEmbeddingDim is the learned embedding size per entity.
	DefaultEmbeddingDim = 64

	// DefaultLearningRate is the initial Adam learning rate.
	DefaultLearningRate = 0.0005

	// DefaultBatchSize is the mini-batch size for training.
	DefaultBatchSize = 32

	// DefaultMaxEpochs caps the training loop.
	DefaultMaxEpochs = 100

	// DefaultPatience is the early-stopping patience in epochs.
	DefaultPatience = 15

	// DefaultClipNorm is the global gradient-norm ceiling.
	DefaultClipNorm = 1.0

	// DefaultWeightDecay is the Adam L2 regularization coefficient.
	DefaultWeightDecay = 1e-5

	// DefaultLRFactor halves the learning rate on a validation plateau.
	DefaultLRFactor = 0.5

	// DefaultLRPatience is the plateau length, in epochs, before the
	// learning rate is reduced.
	DefaultLRPatience = 5

	// DefaultMinLR is the learning-rate floor.
	DefaultMinLR = 1e-6

	// DefaultNoiseStdDev is the Gaussian noise added to synthetic ratings.
	DefaultNoiseStdDev = 0.2

	// DefaultSeed drives every seeded random source for reproducible runs.
	DefaultSeed = 42
)

// DefaultHiddenWidths returns the default decreasing hidden-layer widths.
func DefaultHiddenWidths() []int {
	return []int{128, 64, 32}
}

// =============================================================================
// Config
// =============================================================================

// Config is the full engine configuration.
type Config struct {
	Dataset  DatasetConfig  `yaml:"dataset"`
	Model    ModelConfig    `yaml:"model"`
	Training TrainingConfig `yaml:"training"`
	Synth    SynthConfig    `yaml:"synthesis"`
	Watch    WatchConfig    `yaml:"watch"`
	History  HistoryConfig  `yaml:"history"`
}

// DatasetConfig points at the user and hotel record files.
type DatasetConfig struct {
	UsersFile  string `yaml:"users_file"`
	HotelsFile string `yaml:"hotels_file"`
}

// ModelConfig shapes the rating model.
type ModelConfig struct {
	EmbeddingDim   int     `yaml:"embedding_dim"`
	HiddenWidths   []int   `yaml:"hidden_widths"`
	FeatureDropout float64 `yaml:"feature_dropout"`
	HiddenDropout  float64 `yaml:"hidden_dropout"`
	FinalDropout   float64 `yaml:"final_dropout"`
}

// TrainingConfig controls the training loop.
type TrainingConfig struct {
	LearningRate  float64 `yaml:"learning_rate"`
	BatchSize     int     `yaml:"batch_size"`
	MaxEpochs     int     `yaml:"max_epochs"`
	Patience      int     `yaml:"patience"`
	ClipNorm      float64 `yaml:"clip_norm"`
	WeightDecay   float64 `yaml:"weight_decay"`
	LRFactor      float64 `yaml:"lr_factor"`
	LRPatience    int     `yaml:"lr_patience"`
	MinLR         float64 `yaml:"min_lr"`
	TestFraction  float64 `yaml:"test_fraction"`
	ValFraction   float64 `yaml:"val_fraction"`
	Seed          int64   `yaml:"seed"`
	CheckpointDir string  `yaml:"checkpoint_dir"`
}

// SynthConfig controls synthetic interaction generation.
type SynthConfig struct {
	NoiseStdDev float64 `yaml:"noise_stddev"`
	Seed        int64   `yaml:"seed"`
}

// WatchConfig controls dataset-change retraining.
type WatchConfig struct {
	Patterns   []string `yaml:"patterns"`
	DebounceMS int      `yaml:"debounce_ms"`
}

// HistoryConfig points at the training-run ledger.
type HistoryConfig struct {
	Path string `yaml:"path"`
}

// Default returns the configuration with every documented default applied.
func Default() *Config {
	return &Config{
		Dataset: DatasetConfig{
			UsersFile:  "data/users.json",
			HotelsFile: "data/hotels.json",
		},
		Model: ModelConfig{
			EmbeddingDim:   DefaultEmbeddingDim,
			HiddenWidths:   DefaultHiddenWidths(),
			FeatureDropout: 0.2,
			HiddenDropout:  0.3,
			FinalDropout:   0.2,
		},
		Training: TrainingConfig{
			LearningRate:  DefaultLearningRate,
			BatchSize:     DefaultBatchSize,
			MaxEpochs:     DefaultMaxEpochs,
			Patience:      DefaultPatience,
			ClipNorm:      DefaultClipNorm,
			WeightDecay:   DefaultWeightDecay,
			LRFactor:      DefaultLRFactor,
			LRPatience:    DefaultLRPatience,
			MinLR:         DefaultMinLR,
			TestFraction:  0.2,
			ValFraction:   0.1,
			Seed:          DefaultSeed,
			CheckpointDir: ".roomrank/checkpoint",
		},
		Synth: SynthConfig{
			NoiseStdDev: DefaultNoiseStdDev,
			Seed:        DefaultSeed,
		},
		Watch: WatchConfig{
			Patterns:   []string{"*.json"},
			DebounceMS: 500,
		},
		History: HistoryConfig{
			Path: ".roomrank/history.db",
		},
	}
}

// Load reads a YAML config file and overlays it on the defaults. A missing
// file returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the trainer or model cannot run with.
func (c *Config) Validate() error {
	if c.Model.EmbeddingDim <= 0 {
		return fmt.Errorf("config: embedding_dim must be positive, got %d", c.Model.EmbeddingDim)
	}
	if len(c.Model.HiddenWidths) == 0 {
		return fmt.Errorf("config: hidden_widths must not be empty")
	}
	for _, w := range c.Model.HiddenWidths {
		if w <= 0 {
			return fmt.Errorf("config: hidden_widths must be positive, got %d", w)
		}
	}
	if c.Training.LearningRate <= 0 {
		return fmt.Errorf("config: learning_rate must be positive, got %g", c.Training.LearningRate)
	}
	if c.Training.BatchSize <= 0 {
		return fmt.Errorf("config: batch_size must be positive, got %d", c.Training.BatchSize)
	}
	if c.Training.MaxEpochs <= 0 {
		return fmt.Errorf("config: max_epochs must be positive, got %d", c.Training.MaxEpochs)
	}
	if c.Training.Patience <= 0 {
		return fmt.Errorf("config: patience must be positive, got %d", c.Training.Patience)
	}
	if c.Training.ClipNorm <= 0 {
		return fmt.Errorf("config: clip_norm must be positive, got %g", c.Training.ClipNorm)
	}
	if c.Training.TestFraction <= 0 || c.Training.TestFraction >= 1 {
		return fmt.Errorf("config: test_fraction must be in (0,1), got %g", c.Training.TestFraction)
	}
	if c.Training.ValFraction <= 0 || c.Training.ValFraction >= 1 {
		return fmt.Errorf("config: val_fraction must be in (0,1), got %g", c.Training.ValFraction)
	}
	if c.Synth.NoiseStdDev < 0 {
		return fmt.Errorf("config: noise_stddev must be non-negative, got %g", c.Synth.NoiseStdDev)
	}
	return nil
}
