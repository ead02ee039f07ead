package util

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// RankedLogger is a leveled logger gated on the worker's rank: every call is
// a no-op unless the logger belongs to rank zero. The gating is decided once
// at construction; nothing is patched at call time. Without it, multi-worker
// runs emit every line once per worker.
type RankedLogger struct {
	rank int
	log  *logrus.Logger
}

// Logger is the process-wide logger, rank zero until InitLogger is called.
var Logger = NewRankedLogger(0)

// InitLogger rebinds the process-wide logger to the given rank and tees its
// output to a per-rank log file.
func InitLogger(rank int) {
	Logger = NewRankedLogger(rank)
	fname := fmt.Sprintf("train_logs_%d.txt", rank)
	if f, err := os.Create(fname); err == nil {
		Logger.log.SetOutput(io.MultiWriter(os.Stderr, f))
	}
}

func NewRankedLogger(rank int) *RankedLogger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return &RankedLogger{rank: rank, log: l}
}

// SetOutput redirects the underlying logger, mainly for tests.
func (l *RankedLogger) SetOutput(w io.Writer) {
	l.log.SetOutput(w)
}

// Quiet raises the level floor so that only errors get through, the
// equivalent of suppressing warnings.
func (l *RankedLogger) Quiet() {
	l.log.SetLevel(logrus.ErrorLevel)
}

func (l *RankedLogger) Debug(args ...interface{}) {
	if l.rank != 0 {
		return
	}
	l.log.Debug(args...)
}

func (l *RankedLogger) Info(args ...interface{}) {
	if l.rank != 0 {
		return
	}
	l.log.Info(args...)
}

func (l *RankedLogger) Infof(format string, args ...interface{}) {
	if l.rank != 0 {
		return
	}
	l.log.Infof(format, args...)
}

func (l *RankedLogger) Warning(args ...interface{}) {
	if l.rank != 0 {
		return
	}
	l.log.Warning(args...)
}

func (l *RankedLogger) Error(args ...interface{}) {
	if l.rank != 0 {
		return
	}
	l.log.Error(args...)
}

// Exception logs an error value with a message, the counterpart of logging
// inside an except block.
func (l *RankedLogger) Exception(err error, args ...interface{}) {
	if l.rank != 0 {
		return
	}
	l.log.WithError(err).Error(args...)
}

// Critical is the highest non-terminating level.
func (l *RankedLogger) Critical(args ...interface{}) {
	if l.rank != 0 {
		return
	}
	l.log.Error(args...)
}

// Fatal logs and exits the process. Nonzero ranks do not log and do not
// exit; their fate is decided by rank zero's teardown.
func (l *RankedLogger) Fatal(args ...interface{}) {
	if l.rank != 0 {
		return
	}
	l.log.Fatal(args...)
}
