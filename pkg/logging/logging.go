// Package logging wires the process-wide structured loggers. Components
// that log on hot paths (store, sync engine) take a *zap.SugaredLogger;
// the CLI and identity layer use logrus, matching the split already present
// in the codebase this package was adapted from.
package logging

import (
	"github.com/sirupsen/logrus"
	"go.uber.org/zap"
)

var (
	std  = logrus.StandardLogger()
	sug  *zap.SugaredLogger
)

func init() {
	z, err := zap.NewProduction()
	if err != nil {
		z = zap.NewNop()
	}
	sug = z.Sugar()
}

// Logrus returns the process-wide logrus logger used by the CLI and
// identity layer.
func Logrus() *logrus.Logger { return std }

// Sugar returns the process-wide zap sugared logger used by the store and
// sync engine.
func Sugar() *zap.SugaredLogger { return sug }

// SetLevel parses and applies a level name ("trace".."fatal") to the
// logrus logger. Unknown levels are ignored.
func SetLevel(level string) {
	if lvl, err := logrus.ParseLevel(level); err == nil {
		std.SetLevel(lvl)
	}
}
