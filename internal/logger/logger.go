// Package logger configures the process-wide zerolog logger and provides
// helpers that bind the fields shared across the conversion pipeline.
package logger

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var Logger zerolog.Logger

// Init sets up the global logger. The level comes from DOCUFLOW_LOG_LEVEL
// (falling back to LOG_LEVEL), defaulting to info.
func Init(serviceName string) {
	level := os.Getenv("DOCUFLOW_LOG_LEVEL")
	if level == "" {
		level = os.Getenv("LOG_LEVEL")
	}

	logLevel, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || logLevel == zerolog.NoLevel {
		logLevel = zerolog.InfoLevel
	}

	zerolog.SetGlobalLevel(logLevel)
	Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}).
		With().
		Str("service", serviceName).
		Timestamp().
		Logger()
}

// WithJobID returns a logger scoped to one conversion job.
func WithJobID(jobID string) *zerolog.Logger {
	l := Logger.With().Str("job_id", jobID).Logger()
	return &l
}

// WithStage returns a logger scoped to one stage of one conversion job.
func WithStage(jobID, stage string) *zerolog.Logger {
	l := Logger.With().Str("job_id", jobID).Str("stage", stage).Logger()
	return &l
}

// WithCorrelationID returns a logger carrying the request correlation ID.
func WithCorrelationID(correlationID string) *zerolog.Logger {
	l := Logger.With().Str("correlation_id", correlationID).Logger()
	return &l
}
