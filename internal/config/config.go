package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all server-side settings. Values come from environment
// variables with sane defaults; a .env file is loaded first if present.
type Config struct {
	Port                 string
	DefaultJobTimeout    time.Duration
	TimeoutCheckInterval time.Duration
	HistoryCapacity      int
	WorkerCount          int
	QueueSize            int
	UploadDir            string
	StageWeightsPath     string
	// RetentionAge controls the terminal-job sweep. Zero disables sweeping
	// and terminal jobs are retained until deleted explicitly.
	RetentionAge time.Duration
}

// StageWeightConfig is one entry of the stage-weight YAML file.
type StageWeightConfig struct {
	Stage  string  `yaml:"stage"`
	Weight float64 `yaml:"weight"`
}

type stageWeightsFile struct {
	Stages []StageWeightConfig `yaml:"stages"`
}

// Load reads configuration from the environment. A .env file in the working
// directory is merged in first; missing files are not an error.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:                 getEnv("DOCUFLOW_PORT", "8080"),
		DefaultJobTimeout:    getEnvDuration("DOCUFLOW_JOB_TIMEOUT", 300*time.Second),
		TimeoutCheckInterval: getEnvDuration("DOCUFLOW_TIMEOUT_CHECK_INTERVAL", 30*time.Second),
		HistoryCapacity:      getEnvInt("DOCUFLOW_HISTORY_CAPACITY", 100),
		WorkerCount:          getEnvInt("DOCUFLOW_WORKER_COUNT", 3),
		QueueSize:            getEnvInt("DOCUFLOW_QUEUE_SIZE", 64),
		UploadDir:            getEnv("DOCUFLOW_UPLOAD_DIR", os.TempDir()),
		StageWeightsPath:     getEnv("DOCUFLOW_STAGE_WEIGHTS", ""),
		RetentionAge:         getEnvDuration("DOCUFLOW_RETENTION", 0),
	}

	if cfg.HistoryCapacity <= 0 {
		return nil, fmt.Errorf("history capacity must be positive, got %d", cfg.HistoryCapacity)
	}
	if cfg.WorkerCount <= 0 {
		return nil, fmt.Errorf("worker count must be positive, got %d", cfg.WorkerCount)
	}

	return cfg, nil
}

// LoadStageWeights parses the ordered stage-weight list from a YAML file.
// Returns nil when no path is configured so the caller falls back to the
// built-in defaults.
func (c *Config) LoadStageWeights() ([]StageWeightConfig, error) {
	if c.StageWeightsPath == "" {
		return nil, nil
	}

	data, err := os.ReadFile(c.StageWeightsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read stage weights file: %w", err)
	}

	var f stageWeightsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse stage weights file: %w", err)
	}
	if len(f.Stages) == 0 {
		return nil, fmt.Errorf("stage weights file %s defines no stages", c.StageWeightsPath)
	}

	return f.Stages, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
