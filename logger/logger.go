// Package logger wraps logrus with the small surface the routing core
// and its demonstration CLI use for structured logging of topology
// events (redirections, pool churn, reconnects).
package logger

import (
	"os"

	"github.com/sirupsen/logrus"
)

var log = logrus.New()

// SetupLogger raises the log level to Debug when ENV=DEBUG.
func SetupLogger() {
	if os.Getenv("ENV") == "DEBUG" {
		log.SetLevel(logrus.DebugLevel)
	}
}

func Debug(args ...interface{}) {
	log.Debug(args...)
}

func Debugf(format string, args ...interface{}) {
	log.Debugf(format, args...)
}

func Info(args ...interface{}) {
	log.Info(args...)
}

func Infof(format string, args ...interface{}) {
	log.Infof(format, args...)
}

func Warn(args ...interface{}) {
	log.Warn(args...)
}

func Warnf(format string, args ...interface{}) {
	log.Warnf(format, args...)
}

func Error(args ...interface{}) {
	log.Error(args...)
}

func Errorf(format string, args ...interface{}) {
	log.Errorf(format, args...)
}

func Fatalf(format string, args ...interface{}) {
	log.Fatalf(format, args...)
}
