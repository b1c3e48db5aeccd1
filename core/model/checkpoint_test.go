package model

import (
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckpointRoundtrip(t *testing.T) {
	dims := testDims()
	dir := filepath.Join(t.TempDir(), "ckpt")

	m, err := New(dims, Options{}, 42)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(5))
	userFeat := randomFeatures(rng, dims.NumUsers, dims.UserFeatureDim)
	hotelFeat := randomFeatures(rng, dims.NumHotels, dims.HotelFeatureDim)
	want := m.Score(0, 0, userFeat[0], hotelFeat[0])

	require.NoError(t, SaveCheckpoint(dir, m, CheckpointMetadata{RunID: "run-1", ValMSE: 0.25, Epoch: 7}))
	assert.True(t, CheckpointExists(dir))

	t.Run("restores identical parameters", func(t *testing.T) {
		restored, err := New(dims, Options{}, 1234) // different seed on purpose
		require.NoError(t, err)
		require.NotEqual(t, want, restored.Score(0, 0, userFeat[0], hotelFeat[0]))

		meta, err := LoadCheckpoint(dir, restored)
		require.NoError(t, err)
		assert.Equal(t, "run-1", meta.RunID)
		assert.Equal(t, 0.25, meta.ValMSE)
		assert.Equal(t, 7, meta.Epoch)
		assert.Equal(t, want, restored.Score(0, 0, userFeat[0], hotelFeat[0]))
	})

	t.Run("metadata readable on its own", func(t *testing.T) {
		meta, err := ReadCheckpointMetadata(dir)
		require.NoError(t, err)
		assert.True(t, meta.Dims.Equal(dims))
		assert.Equal(t, "run-1", meta.RunID)
	})

	t.Run("resave replaces atomically", func(t *testing.T) {
		require.NoError(t, SaveCheckpoint(dir, m, CheckpointMetadata{RunID: "run-2"}))
		meta, err := ReadCheckpointMetadata(dir)
		require.NoError(t, err)
		assert.Equal(t, "run-2", meta.RunID)
		_, err = os.Stat(dir + checkpointPendingExt)
		assert.True(t, os.IsNotExist(err), "pending dir must be gone after commit")
		_, err = os.Stat(dir + checkpointRetiredExt)
		assert.True(t, os.IsNotExist(err), "retired dir must be gone after commit")
	})

	t.Run("stale retired dir from an interrupted save is cleared", func(t *testing.T) {
		retired := dir + checkpointRetiredExt
		require.NoError(t, os.MkdirAll(retired, 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(retired, "leftover"), []byte("x"), 0o644))

		require.NoError(t, SaveCheckpoint(dir, m, CheckpointMetadata{RunID: "run-3"}))
		meta, err := ReadCheckpointMetadata(dir)
		require.NoError(t, err)
		assert.Equal(t, "run-3", meta.RunID)
		_, err = os.Stat(retired)
		assert.True(t, os.IsNotExist(err))
	})
}

func TestCheckpointIncompatibleShape(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "ckpt")

	m, err := New(testDims(), Options{}, 42)
	require.NoError(t, err)
	require.NoError(t, SaveCheckpoint(dir, m, CheckpointMetadata{RunID: "run-1"}))

	other := testDims()
	other.NumUsers++
	grown, err := New(other, Options{}, 42)
	require.NoError(t, err)

	_, err = LoadCheckpoint(dir, grown)
	assert.ErrorIs(t, err, ErrCheckpointIncompatible)
}

func TestCheckpointCorruption(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "ckpt")

	m, err := New(testDims(), Options{}, 42)
	require.NoError(t, err)
	require.NoError(t, SaveCheckpoint(dir, m, CheckpointMetadata{RunID: "run-1"}))

	weightsPath := filepath.Join(dir, checkpointWeightsFile)

	t.Run("flipped byte fails the checksum", func(t *testing.T) {
		data, err := os.ReadFile(weightsPath)
		require.NoError(t, err)
		data[len(data)/2] ^= 0xFF
		require.NoError(t, os.WriteFile(weightsPath, data, 0o644))

		fresh, err := New(testDims(), Options{}, 42)
		require.NoError(t, err)
		_, err = LoadCheckpoint(dir, fresh)
		assert.ErrorIs(t, err, ErrCheckpointCorrupt)
	})

	t.Run("truncated file is corrupt", func(t *testing.T) {
		require.NoError(t, os.WriteFile(weightsPath, []byte{1, 2, 3}, 0o644))
		fresh, err := New(testDims(), Options{}, 42)
		require.NoError(t, err)
		_, err = LoadCheckpoint(dir, fresh)
		assert.ErrorIs(t, err, ErrCheckpointCorrupt)
	})

	t.Run("missing checkpoint", func(t *testing.T) {
		empty := filepath.Join(t.TempDir(), "none")
		assert.False(t, CheckpointExists(empty))
		fresh, err := New(testDims(), Options{}, 42)
		require.NoError(t, err)
		_, err = LoadCheckpoint(empty, fresh)
		assert.Error(t, err)
	})
}
