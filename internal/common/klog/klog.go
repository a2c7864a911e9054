// Package klog configures the process-wide logrus logger.
package klog

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Configure sets the global logrus output and formatter. jsonFormat selects
// structured JSON output (production) over the coloured text formatter
// (local development).
func Configure(level string, jsonFormat bool) {
	if jsonFormat {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{ForceColors: true, FullTimestamp: true})
	}
	logrus.SetOutput(os.Stdout)

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logrus.SetLevel(lvl)
}
