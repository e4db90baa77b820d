package monitoring

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type recordMonitor struct {
	errs []error
	tags map[string]string
}

func (r *recordMonitor) CaptureException(err error, tags map[string]string) {
	r.errs = append(r.errs, err)
	r.tags = tags
}
func (r *recordMonitor) Recover()            {}
func (r *recordMonitor) Flush(time.Duration) {}

func TestCaptureUsesCurrentMonitor(t *testing.T) {
	prev := Current()
	defer Init(prev)

	mon := &recordMonitor{}
	Init(mon)
	Init(nil)
	assert.Same(t, mon, Current())

	CaptureException(nil, nil)
	CaptureException(errors.New("solver unavailable"), RunTags("planner", 4, "r1"))
	assert.Len(t, mon.errs, 1)
	assert.Equal(t, map[string]string{"module": "planner", "org": "4", "run": "r1"}, mon.tags)
}

func TestRunTagsWithoutRun(t *testing.T) {
	assert.Equal(t, map[string]string{"module": "reconcile", "org": "2"}, RunTags("reconcile", 2, ""))
}
