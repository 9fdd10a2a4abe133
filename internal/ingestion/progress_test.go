package ingestion

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingEmitter struct {
	events []string
}

func (r *recordingEmitter) Emit(event string, data any) {
	r.events = append(r.events, event)
}

func TestProgressReporterThrottlesReport(t *testing.T) {
	emitter := &recordingEmitter{}
	r := NewProgressReporter(emitter, "import-1")

	r.Report(1, 100, "ingesting")
	r.Report(2, 100, "ingesting")
	r.Report(3, 100, "ingesting")

	require.Len(t, emitter.events, 1, "expected exactly one throttled report")
}

func TestProgressReporterCompletedBypassesThrottle(t *testing.T) {
	emitter := &recordingEmitter{}
	r := NewProgressReporter(emitter, "import-1")

	r.Report(1, 100, "ingesting")
	r.Completed()

	require.Len(t, emitter.events, 2, "expected report + completed events")
	assert.Equal(t, EventImportCompleted, emitter.events[1])
}

func TestProgressReporterNilIsNoop(t *testing.T) {
	var r *ProgressReporter
	r.Report(1, 2, "x")
	r.Completed()
	r.Failed(nil)
}

func TestProgressReporterNilEmitterIsNoop(t *testing.T) {
	r := NewProgressReporter(nil, "import-1")
	r.Report(1, 2, "x")
	r.Completed()
	r.Failed(nil)
}
