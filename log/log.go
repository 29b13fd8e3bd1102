// Package log provides logrus loggers configured for the engine.
package log

import (
	"os"
	"strconv"

	"github.com/sirupsen/logrus"
)

// DebugEnv is the environment variable that switches loggers to debug level.
const DebugEnv = "SYNTH_DEBUG"

var debug bool

func init() {
	var err error
	debug, err = strconv.ParseBool(os.Getenv(DebugEnv))
	if err != nil {
		debug = false
	}
}

// GetLogger returns a new logger instance.
func GetLogger() *logrus.Logger {
	l := logrus.New()
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	if debug {
		l.SetLevel(logrus.DebugLevel)
	}
	return l
}

// Component returns an entry for a named component of the engine, e.g.
// "speaker" or "midi". Entries share the output and level of l.
func Component(l *logrus.Logger, name string) *logrus.Entry {
	return l.WithField("component", name)
}
