package config

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"
)

// Config is read from the environment; flags may override individual fields.
type Config struct {
	DBPath          string        `env:"UPLIFT_DB_PATH" envDefault:"./uplift.db"`
	LogLevel        string        `env:"UPLIFT_LOG_LEVEL" envDefault:"info"`
	SegmentWriteKey string        `env:"UPLIFT_SEGMENT_WRITE_KEY"`
	SweepInterval   time.Duration `env:"UPLIFT_SWEEP_INTERVAL" envDefault:"1m"`
	ConfidenceLevel float64       `env:"UPLIFT_CONFIDENCE_LEVEL" envDefault:"0.95"`
}

func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, errors.Wrap(err, "failed to parse environment")
	}
	return cfg, nil
}

// Logger builds the process logger from the configured level.
func (c Config) Logger() *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	return log
}
