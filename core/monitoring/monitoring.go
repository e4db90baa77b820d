// Package monitoring reports errors and panics to an external tracker.
package monitoring

import (
	"strconv"
	"time"
)

// Monitor defines methods used for error reporting.
type Monitor interface {
	CaptureException(err error, tags map[string]string)
	Recover()
	Flush(timeout time.Duration)
}

type NopMonitor struct{}

func (NopMonitor) CaptureException(error, map[string]string) {}
func (NopMonitor) Recover()                                  {}
func (NopMonitor) Flush(time.Duration)                       {}

var current Monitor = NopMonitor{}

// Init sets the global monitor implementation.
func Init(m Monitor) {
	if m != nil {
		current = m
	}
}

// Current returns the global monitor. Goroutines report panics with
// defer monitoring.Current().Recover().
func Current() Monitor { return current }

// CaptureException records the error with optional tags.
func CaptureException(err error, tags map[string]string) {
	if current != nil && err != nil {
		current.CaptureException(err, tags)
	}
}

// RunTags builds the tags attached to errors raised while handling a run.
func RunTags(module string, orgID int64, runID string) map[string]string {
	tags := map[string]string{"module": module, "org": strconv.FormatInt(orgID, 10)}
	if runID != "" {
		tags["run"] = runID
	}
	return tags
}

// Flush flushes buffered events.
func Flush(d time.Duration) {
	if current != nil {
		current.Flush(d)
	}
}
