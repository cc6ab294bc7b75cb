// Package nodelog centralises the structured logger used across the node.
// Every subsystem gets its own *logrus.Entry via For, which is the
// logrus-backed replacement for the teacher's ad-hoc
// log.Printf("SUBSYSTEM: ...") call sites.
package nodelog

import (
	"os"

	"github.com/sirupsen/logrus"
)

var base = newBase()

func newBase() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	l.SetLevel(logrus.InfoLevel)
	return l
}

// SetVerbose switches the logger to debug level, surfacing the
// drop-silently validation logging spec.md §7 asks for at verbose level.
func SetVerbose(verbose bool) {
	if verbose {
		base.SetLevel(logrus.DebugLevel)
		return
	}
	base.SetLevel(logrus.InfoLevel)
}

// For returns a logger scoped to one subsystem, e.g. nodelog.For("mempool").
func For(subsystem string) *logrus.Entry {
	return base.WithField("subsystem", subsystem)
}
