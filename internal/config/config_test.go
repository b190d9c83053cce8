package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 300*time.Second, cfg.DefaultJobTimeout)
	assert.Equal(t, 30*time.Second, cfg.TimeoutCheckInterval)
	assert.Equal(t, 100, cfg.HistoryCapacity)
	assert.Equal(t, time.Duration(0), cfg.RetentionAge)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("DOCUFLOW_PORT", "9090")
	t.Setenv("DOCUFLOW_JOB_TIMEOUT", "600")
	t.Setenv("DOCUFLOW_TIMEOUT_CHECK_INTERVAL", "5s")
	t.Setenv("DOCUFLOW_HISTORY_CAPACITY", "25")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 600*time.Second, cfg.DefaultJobTimeout, "bare integers are seconds")
	assert.Equal(t, 5*time.Second, cfg.TimeoutCheckInterval, "duration strings work too")
	assert.Equal(t, 25, cfg.HistoryCapacity)
}

func TestLoadRejectsBadCapacity(t *testing.T) {
	t.Setenv("DOCUFLOW_HISTORY_CAPACITY", "-1")
	_, err := Load()
	assert.Error(t, err)
}

func TestLoadStageWeights(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "stages.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
stages:
  - stage: uploading
    weight: 0.2
  - stage: ocr
    weight: 0.5
  - stage: convert
    weight: 0.3
`), 0o644))

	cfg := &Config{StageWeightsPath: path}
	stages, err := cfg.LoadStageWeights()
	require.NoError(t, err)
	require.Len(t, stages, 3)
	assert.Equal(t, "uploading", stages[0].Stage)
	assert.Equal(t, 0.5, stages[1].Weight)
}

func TestLoadStageWeightsUnconfigured(t *testing.T) {
	cfg := &Config{}
	stages, err := cfg.LoadStageWeights()
	require.NoError(t, err)
	assert.Nil(t, stages)
}

func TestLoadStageWeightsBadFile(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing file", func(t *testing.T) {
		cfg := &Config{StageWeightsPath: filepath.Join(dir, "nope.yaml")}
		_, err := cfg.LoadStageWeights()
		assert.Error(t, err)
	})

	t.Run("empty stages", func(t *testing.T) {
		path := filepath.Join(dir, "empty.yaml")
		require.NoError(t, os.WriteFile(path, []byte("stages: []"), 0o644))
		cfg := &Config{StageWeightsPath: path}
		_, err := cfg.LoadStageWeights()
		assert.Error(t, err)
	})
}
