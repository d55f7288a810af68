// Package logging defines the logger type shared across mirrorget packages.
package logging

import (
	"io"

	"github.com/sirupsen/logrus"
)

// Logger is the structured logger accepted by mirrorget components. It is
// satisfied by *logrus.Logger and *logrus.Entry, so callers can pass a
// component-scoped entry without any adaptation.
type Logger interface {
	logrus.FieldLogger
}

// NewLogger returns a logger writing text output to w at the given level.
func NewLogger(w io.Writer, level logrus.Level) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(w)
	log.SetLevel(level)
	return log
}

// Discard returns a logger that drops everything. It is the default for
// library consumers that don't configure logging.
func Discard() Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}
