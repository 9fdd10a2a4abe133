package ingestion

import (
	"sync"
	"time"
)

// EventEmitter is the live-progress push channel; Emit is called once
// per chunk boundary (throttled) so a websocket bridge can forward the
// event to a connected client (SPEC_FULL.md "Live ingestion progress").
//
// Modeled on the teacher's internal/work.ProgressReporter/EventEmitter,
// trimmed to the single "numeric chunk progress" shape this pipeline
// needs — no retry counts, no work-type taxonomy.
type EventEmitter interface {
	Emit(event string, data any)
}

// ProgressEvent is emitted after each processed chunk.
type ProgressEvent struct {
	ImportID      string `json:"import_id"`
	ProcessedRows int64  `json:"processed_rows"`
	TotalRows     int64  `json:"total_rows"`
	Message       string `json:"message,omitempty"`
}

// CompletedEvent and FailedEvent close out an import's event stream.
type CompletedEvent struct {
	ImportID string `json:"import_id"`
}

type FailedEvent struct {
	ImportID string `json:"import_id"`
	Error    string `json:"error"`
}

const (
	EventImportProgress  = "ImportProgress"
	EventImportCompleted = "ImportCompleted"
	EventImportFailed    = "ImportFailed"
)

const progressThrottleInterval = 100 * time.Millisecond

// ProgressReporter throttles chunk-progress events for one import so a
// fast pipeline (small chunks, local Mongo) doesn't flood a connected
// websocket client.
type ProgressReporter struct {
	emitter  EventEmitter
	importID string

	mu         sync.Mutex
	lastReport time.Time
}

// NewProgressReporter builds a reporter for one import. emitter may be
// nil, in which case every call is a no-op (used by tests).
func NewProgressReporter(emitter EventEmitter, importID string) *ProgressReporter {
	return &ProgressReporter{emitter: emitter, importID: importID}
}

// Report emits a throttled progress update.
func (r *ProgressReporter) Report(processedRows, totalRows int64, message string) {
	if r == nil || r.emitter == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if time.Since(r.lastReport) < progressThrottleInterval {
		return
	}
	r.lastReport = time.Now()
	r.emitter.Emit(EventImportProgress, ProgressEvent{
		ImportID:      r.importID,
		ProcessedRows: processedRows,
		TotalRows:     totalRows,
		Message:       message,
	})
}

// Completed emits the terminal success event, bypassing the throttle.
func (r *ProgressReporter) Completed() {
	if r == nil || r.emitter == nil {
		return
	}
	r.emitter.Emit(EventImportCompleted, CompletedEvent{ImportID: r.importID})
}

// Failed emits the terminal failure event, bypassing the throttle.
func (r *ProgressReporter) Failed(err error) {
	if r == nil || r.emitter == nil {
		return
	}
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	r.emitter.Emit(EventImportFailed, FailedEvent{ImportID: r.importID, Error: msg})
}
