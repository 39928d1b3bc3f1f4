// Package logging sets up the daemon's logrus output, adapted from
// pkg/log/log.go: debug mode logs to a file under the config directory at
// the level named by LOG_LEVEL (Debug if unset or invalid), production mode
// sets the level to Error and sends all output to io.Discard.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/sam-bristow/exclave/internal/config"
)

// NewLogger returns the daemon's root log entry.
func NewLogger(cfg *config.Config) *logrus.Entry {
	var log *logrus.Logger
	if cfg.Debug || os.Getenv("DEBUG") == "TRUE" {
		log = newDevelopmentLogger(cfg)
	} else {
		log = newProductionLogger()
	}

	log.Formatter = &logrus.TextFormatter{FullTimestamp: true}

	return log.WithFields(logrus.Fields{"debug": cfg.Debug})
}

func getLogLevel() logrus.Level {
	level, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil {
		return logrus.DebugLevel
	}
	return level
}

func newDevelopmentLogger(cfg *config.Config) *logrus.Logger {
	log := logrus.New()
	log.SetLevel(getLogLevel())

	file, err := os.OpenFile(filepath.Join(cfg.ConfigDir, "exclaved.log"),
		os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		fmt.Fprintln(os.Stderr, "unable to log to file:", err)
		log.SetOutput(os.Stderr)
		return log
	}
	log.SetOutput(file)
	return log
}

func newProductionLogger() *logrus.Logger {
	log := logrus.New()
	log.Out = io.Discard
	log.SetLevel(logrus.ErrorLevel)
	return log
}
