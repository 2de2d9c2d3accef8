package models

import "time"

// WriteRow is a local write waiting to be pushed.
type WriteRow struct {
	// NewDocumentState is the document as the local side wants it to be,
	// including the soft-delete flag.
	NewDocumentState Document `json:"newDocumentState"`

	// AssumedMasterState is the remote row the local side last saw.
	// nil means the document has never been seen remotely and is inserted.
	AssumedMasterState Document `json:"assumedMasterState,omitempty"`
}

// IsInsert reports whether the write creates a new remote row.
func (w WriteRow) IsInsert() bool {
	return w.AssumedMasterState == nil
}

// PendingWrite is a WriteRow together with the local revision it was read
// at. Acknowledgements carry the revision back so that a newer local edit
// is never marked as pushed.
type PendingWrite struct {
	Row      WriteRow
	Revision int64
}

// RemoteDocument is a remote row translated into document form, paired with
// the row's own checkpoint.
type RemoteDocument struct {
	Document   Document   `json:"document"`
	Checkpoint Checkpoint `json:"checkpoint"`
}

// PullResult is a batch of remote changes. Checkpoint is the position of
// the last document, or the input checkpoint when the batch is empty.
type PullResult struct {
	Checkpoint *Checkpoint       `json:"checkpoint"`
	Documents  []RemoteDocument `json:"documents"`
}

// ConflictInput is handed to a conflict resolver when a push was rejected.
type ConflictInput struct {
	NewDocumentState Document
	RealMasterState  Document
}

// ConflictResolution is the resolver's verdict. When IsEqual is true the
// two states are considered the same and nothing is written back.
type ConflictResolution struct {
	IsEqual  bool
	Document Document
}

// Change event types emitted by a change feed.
const (
	EventInsert = "INSERT"
	EventUpdate = "UPDATE"
	EventDelete = "DELETE"
)

// ChangeEvent is a single row change delivered by a change feed.
// A truncated event names the changed row by its key in Old and carries
// no New row.
type ChangeEvent struct {
	EventType string   `json:"eventType"`
	Table     string   `json:"table"`
	New       Document `json:"new,omitempty"`
	Old       Document `json:"old,omitempty"`
	Truncated bool     `json:"truncated,omitempty"`
}

// ReplicationStatus is a point-in-time snapshot of a replication session.
type ReplicationStatus struct {
	ReplicationID   string      `json:"replication_id"`
	Table           string      `json:"table"`
	Running         bool        `json:"running"`
	Live            bool        `json:"live"`
	InitialSyncDone bool        `json:"initial_sync_done"`
	Checkpoint      *Checkpoint `json:"checkpoint,omitempty"`
	PulledTotal     int64       `json:"pulled_total"`
	PushedTotal     int64       `json:"pushed_total"`
	ConflictsTotal  int64       `json:"conflicts_total"`
	ErrorsTotal     int64       `json:"errors_total"`
	LastError       string      `json:"last_error,omitempty"`
	LastErrorAt     *time.Time  `json:"last_error_at,omitempty"`
	FatalError      string      `json:"fatal_error,omitempty"`
}
