package domain

import "time"

// ImportStatus is one state of the import lifecycle (spec §4.2).
type ImportStatus string

const (
	ImportPending    ImportStatus = "pending"
	ImportProcessing ImportStatus = "processing"
	ImportCompleted  ImportStatus = "completed"
	ImportFailed     ImportStatus = "failed"
	ImportDeleting   ImportStatus = "deleting"
)

// NonTerminal reports whether a status is one a crash-recovery sweep must
// treat as orphaned: pending, processing, and deleting never survive a
// restart unattended.
func (s ImportStatus) NonTerminal() bool {
	switch s {
	case ImportPending, ImportProcessing, ImportDeleting:
		return true
	default:
		return false
	}
}

// allowedTransitions encodes the finite machine from spec §4.2. A
// transition not listed here is rejected by CanTransition.
var allowedTransitions = map[ImportStatus][]ImportStatus{
	ImportPending:    {ImportProcessing, ImportDeleting},
	ImportProcessing: {ImportCompleted, ImportFailed, ImportDeleting},
	ImportCompleted:  {},
	ImportFailed:     {},
	ImportDeleting:   {},
}

// CanTransition reports whether moving from "from" to "to" is a legal
// edge in the import status machine.
func CanTransition(from, to ImportStatus) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ImportRecord tracks the lifecycle of one ingestion job (spec §3).
type ImportRecord struct {
	ID            string       `bson:"_id" json:"id"`
	Filename      string       `bson:"filename" json:"filename"`
	UploadedAt    time.Time    `bson:"uploaded_at" json:"uploaded_at"`
	Status        ImportStatus `bson:"status" json:"status"`
	TotalRows     int64        `bson:"total_rows" json:"total_rows"`
	ProcessedRows int64        `bson:"processed_rows" json:"processed_rows"`
	SymbolsCount  int64        `bson:"symbols_count" json:"symbols_count"`
	Error         *string      `bson:"error" json:"error"`
}
