package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// New builds the application logger. It is constructed once in main and
// passed explicitly to every component that logs; there is no package-level
// logger to mutate.
func New(level string) *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetOutput(os.Stdout)

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	log.SetLevel(lvl)

	return log
}

// NewNop returns a logger that discards everything. Used in tests.
func NewNop() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	log.SetLevel(logrus.PanicLevel)
	return log
}

// OpError logs a persistence or rendering failure with the originating
// operation name. The raw error stays server-side only.
func OpError(log *logrus.Logger, operation string, err error) {
	log.WithFields(logrus.Fields{
		"operation": operation,
	}).Error(err.Error())
}
