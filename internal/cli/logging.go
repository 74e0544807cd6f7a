package cli

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/ayusman/handsoff/internal/config"
)

var log = logrus.WithField("component", "cli")

// setupLogging applies the configured level and format to logger.
func setupLogging(logger *logrus.Logger, cfg config.LogConfig) error {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	logger.SetLevel(level)

	switch cfg.Format {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	default:
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return nil
}
