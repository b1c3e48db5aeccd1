package model

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc64"
	"math"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Checkpoint layout on disk: a directory holding shape metadata and the
// weight tensors.
const (
	checkpointMetadataFile = "metadata.yaml"
	checkpointWeightsFile  = "weights.bin"
	checkpointPendingExt   = ".pending"
	checkpointRetiredExt   = ".old"

	weightsMagic   uint32 = 0x524D524B // "RMRK"
	weightsVersion uint32 = 1
)

var (
	// ErrCheckpointIncompatible indicates a shape mismatch between the saved
	// checkpoint and the configured model. The caller must retrain; shapes
	// are never coerced.
	ErrCheckpointIncompatible = errors.New("model: checkpoint incompatible with configured model shape")

	// ErrCheckpointCorrupt indicates the weight file failed its integrity
	// checks.
	ErrCheckpointCorrupt = errors.New("model: checkpoint weights corrupt")
)

var crcTable = crc64.MakeTable(crc64.ECMA)

// CheckpointMetadata records the shape and provenance of a saved model.
type CheckpointMetadata struct {
	Version int       `yaml:"version"`
	RunID   string    `yaml:"run_id"`
	SavedAt time.Time `yaml:"saved_at"`
	Dims    Dims      `yaml:"dims"`
	ValMSE  float64   `yaml:"val_mse"`
	Epoch   int       `yaml:"epoch"`
}

// SaveCheckpoint persists the model under dir. The write goes to a pending
// directory first and is renamed into place, so an interrupted save never
// leaves a half-written checkpoint behind.
func SaveCheckpoint(dir string, m *RatingModel, meta CheckpointMetadata) error {
	meta.Version = int(weightsVersion)
	meta.Dims = m.dims
	if meta.SavedAt.IsZero() {
		meta.SavedAt = time.Now().UTC()
	}

	pending := dir + checkpointPendingExt
	if err := os.RemoveAll(pending); err != nil {
		return fmt.Errorf("model: clear pending checkpoint: %w", err)
	}
	if err := os.MkdirAll(pending, 0o755); err != nil {
		return fmt.Errorf("model: create pending checkpoint: %w", err)
	}

	metaBytes, err := yaml.Marshal(&meta)
	if err != nil {
		return fmt.Errorf("model: encode checkpoint metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(pending, checkpointMetadataFile), metaBytes, 0o644); err != nil {
		return fmt.Errorf("model: write checkpoint metadata: %w", err)
	}

	if err := os.WriteFile(filepath.Join(pending, checkpointWeightsFile), encodeWeights(m.Params()), 0o644); err != nil {
		return fmt.Errorf("model: write checkpoint weights: %w", err)
	}

	// Retire the previous checkpoint by rename rather than deleting it
	// first, so a crash between the two renames still leaves one complete
	// checkpoint on disk.
	retired := dir + checkpointRetiredExt
	if err := os.RemoveAll(retired); err != nil {
		return fmt.Errorf("model: clear retired checkpoint: %w", err)
	}
	if _, err := os.Stat(dir); err == nil {
		if err := os.Rename(dir, retired); err != nil {
			return fmt.Errorf("model: retire checkpoint: %w", err)
		}
	}
	if err := os.Rename(pending, dir); err != nil {
		return fmt.Errorf("model: commit checkpoint: %w", err)
	}
	if err := os.RemoveAll(retired); err != nil {
		return fmt.Errorf("model: drop retired checkpoint: %w", err)
	}
	return nil
}

// LoadCheckpoint restores saved parameters into m. The metadata shape must
// match the model's shape exactly; a mismatch returns
// ErrCheckpointIncompatible so the caller can trigger a retrain.
func LoadCheckpoint(dir string, m *RatingModel) (*CheckpointMetadata, error) {
	metaBytes, err := os.ReadFile(filepath.Join(dir, checkpointMetadataFile))
	if err != nil {
		return nil, fmt.Errorf("model: read checkpoint metadata: %w", err)
	}

	var meta CheckpointMetadata
	if err := yaml.Unmarshal(metaBytes, &meta); err != nil {
		return nil, fmt.Errorf("model: parse checkpoint metadata: %w", err)
	}

	if !meta.Dims.Equal(m.dims) {
		return nil, fmt.Errorf("%w: saved %+v, configured %+v", ErrCheckpointIncompatible, meta.Dims, m.dims)
	}

	data, err := os.ReadFile(filepath.Join(dir, checkpointWeightsFile))
	if err != nil {
		return nil, fmt.Errorf("model: read checkpoint weights: %w", err)
	}
	if err := decodeWeights(data, m.Params()); err != nil {
		return nil, err
	}
	return &meta, nil
}

// ReadCheckpointMetadata reads only the metadata file, so a caller can
// construct a model with the saved shape before restoring the weights.
func ReadCheckpointMetadata(dir string) (*CheckpointMetadata, error) {
	metaBytes, err := os.ReadFile(filepath.Join(dir, checkpointMetadataFile))
	if err != nil {
		return nil, fmt.Errorf("model: read checkpoint metadata: %w", err)
	}
	var meta CheckpointMetadata
	if err := yaml.Unmarshal(metaBytes, &meta); err != nil {
		return nil, fmt.Errorf("model: parse checkpoint metadata: %w", err)
	}
	return &meta, nil
}

// CheckpointExists reports whether dir holds a committed checkpoint.
func CheckpointExists(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, checkpointMetadataFile))
	return err == nil
}

// =============================================================================
// Weight encoding
// =============================================================================

// encodeWeights serializes every tensor in Params order:
// magic, version, tensor count, then per tensor a length and the raw
// float64 payload, followed by a CRC64 trailer over everything before it.
func encodeWeights(params []Param) []byte {
	var buf bytes.Buffer

	binary.Write(&buf, binary.LittleEndian, weightsMagic)
	binary.Write(&buf, binary.LittleEndian, weightsVersion)
	binary.Write(&buf, binary.LittleEndian, uint32(len(params)))

	for _, p := range params {
		binary.Write(&buf, binary.LittleEndian, uint64(len(p.Data)))
		for _, v := range p.Data {
			binary.Write(&buf, binary.LittleEndian, math.Float64bits(v))
		}
	}

	sum := crc64.Checksum(buf.Bytes(), crcTable)
	binary.Write(&buf, binary.LittleEndian, sum)
	return buf.Bytes()
}

func decodeWeights(data []byte, params []Param) error {
	if len(data) < 20 {
		return fmt.Errorf("%w: truncated file", ErrCheckpointCorrupt)
	}

	body, trailer := data[:len(data)-8], data[len(data)-8:]
	if crc64.Checksum(body, crcTable) != binary.LittleEndian.Uint64(trailer) {
		return fmt.Errorf("%w: checksum mismatch", ErrCheckpointCorrupt)
	}

	r := bytes.NewReader(body)
	var magic, version, count uint32
	binary.Read(r, binary.LittleEndian, &magic)
	binary.Read(r, binary.LittleEndian, &version)
	binary.Read(r, binary.LittleEndian, &count)

	if magic != weightsMagic {
		return fmt.Errorf("%w: invalid magic", ErrCheckpointCorrupt)
	}
	if version != weightsVersion {
		return fmt.Errorf("%w: unsupported weights version %d", ErrCheckpointIncompatible, version)
	}
	if int(count) != len(params) {
		return fmt.Errorf("%w: saved %d tensors, model has %d", ErrCheckpointIncompatible, count, len(params))
	}

	for _, p := range params {
		var length uint64
		if err := binary.Read(r, binary.LittleEndian, &length); err != nil {
			return fmt.Errorf("%w: truncated tensor header", ErrCheckpointCorrupt)
		}
		if int(length) != len(p.Data) {
			return fmt.Errorf("%w: tensor %s has %d values, expected %d", ErrCheckpointIncompatible, p.Name, length, len(p.Data))
		}
		for i := range p.Data {
			var bits uint64
			if err := binary.Read(r, binary.LittleEndian, &bits); err != nil {
				return fmt.Errorf("%w: truncated tensor payload", ErrCheckpointCorrupt)
			}
			p.Data[i] = math.Float64frombits(bits)
		}
	}
	return nil
}
