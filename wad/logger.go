package wad

import (
	"io"

	"github.com/sirupsen/logrus"
)

var logger logrus.FieldLogger = newDiscardLogger()

// SetLogger sets the logger used by the package. Passing nil restores the
// default logger, which discards everything.
func SetLogger(l logrus.FieldLogger) {
	if l == nil {
		l = newDiscardLogger()
	}
	logger = l
}

func newDiscardLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
