package integration

import (
	"fmt"
	"strings"
	"time"
)

// ---------------------------------------------------------------------------
// SyncMode
// ---------------------------------------------------------------------------

// SyncMode selects full or delta synchronization
type SyncMode string

const (
	// SyncModeFull re-reads every entity
	SyncModeFull SyncMode = "FULL"
	// SyncModeDelta reads entities changed after the request watermark
	SyncModeDelta SyncMode = "DELTA"
)

// IsValid returns true if the mode is valid
func (m SyncMode) IsValid() bool {
	return m == SyncModeFull || m == SyncModeDelta
}

// String returns the string representation of SyncMode
func (m SyncMode) String() string {
	return string(m)
}

// ---------------------------------------------------------------------------
// SyncStatus
// ---------------------------------------------------------------------------

// SyncStatus is the overall outcome of a sync run
type SyncStatus string

const (
	// SyncStatusCompleted indicates every entity was processed
	SyncStatusCompleted SyncStatus = "COMPLETED"
	// SyncStatusPartiallyCompleted indicates some entities failed
	SyncStatusPartiallyCompleted SyncStatus = "PARTIALLY_COMPLETED"
	// SyncStatusFailed indicates no entity could be processed
	SyncStatusFailed SyncStatus = "FAILED"
)

// String returns the string representation of SyncStatus
func (s SyncStatus) String() string {
	return string(s)
}

// SyncStatusFor derives the status from processed and failed counts
func SyncStatusFor(processed, failed int) SyncStatus {
	switch {
	case failed == 0:
		return SyncStatusCompleted
	case processed > 0:
		return SyncStatusPartiallyCompleted
	default:
		return SyncStatusFailed
	}
}

// ---------------------------------------------------------------------------
// Watermark
// ---------------------------------------------------------------------------

// Watermark is an opaque cursor marking the last synchronized point.
// Watermarks produced by the same provider are totally ordered by Compare;
// the empty watermark sorts before every other value.
type Watermark string

const (
	watermarkTimePrefix = "ts:"
	watermarkSeqPrefix  = "seq:"
	// fixed-width so lexical order equals chronological order
	watermarkTimeLayout = "20060102T150405.000000000Z"
)

// WatermarkFromTime encodes a point in time as a watermark
func WatermarkFromTime(t time.Time) Watermark {
	return Watermark(watermarkTimePrefix + t.UTC().Format(watermarkTimeLayout))
}

// WatermarkFromSequence encodes a change sequence number as a watermark
func WatermarkFromSequence(seq uint64) Watermark {
	return Watermark(fmt.Sprintf("%s%020d", watermarkSeqPrefix, seq))
}

// IsZero returns true for the empty watermark (nothing synced yet)
func (w Watermark) IsZero() bool {
	return w == ""
}

// Time decodes a time watermark
func (w Watermark) Time() (time.Time, error) {
	if w.IsZero() {
		return time.Time{}, nil
	}
	raw, ok := strings.CutPrefix(string(w), watermarkTimePrefix)
	if !ok {
		return time.Time{}, fmt.Errorf("%w: %q is not a time watermark", ErrInvalidWatermark, w)
	}
	t, err := time.Parse(watermarkTimeLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrInvalidWatermark, err)
	}
	return t, nil
}

// Sequence decodes a sequence watermark
func (w Watermark) Sequence() (uint64, error) {
	if w.IsZero() {
		return 0, nil
	}
	raw, ok := strings.CutPrefix(string(w), watermarkSeqPrefix)
	if !ok {
		return 0, fmt.Errorf("%w: %q is not a sequence watermark", ErrInvalidWatermark, w)
	}
	var seq uint64
	if _, err := fmt.Sscanf(raw, "%d", &seq); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidWatermark, err)
	}
	return seq, nil
}

// Compare returns -1, 0 or +1 depending on whether w sorts before, equal to, or after other
func (w Watermark) Compare(other Watermark) int {
	return strings.Compare(string(w), string(other))
}

// String returns the string representation of Watermark
func (w Watermark) String() string {
	return string(w)
}

// ---------------------------------------------------------------------------
// Sync request/result
// ---------------------------------------------------------------------------

// SyncRequest asks a provider to synchronize one entity type
type SyncRequest struct {
	// Entity is the entity type to synchronize
	Entity EntityType
	// Mode is full or delta
	Mode SyncMode
	// Watermark is the last synced point (delta only); empty means from the beginning
	Watermark Watermark
	// PageSize is the requested number of entities read per page
	PageSize int
}

// Validate validates the sync request
func (r *SyncRequest) Validate() error {
	if !r.Entity.IsValid() {
		return NewValidationError(CodeValidationFailed, fmt.Sprintf("unknown entity type %q", r.Entity))
	}
	if !r.Mode.IsValid() {
		return NewValidationError(CodeValidationFailed, fmt.Sprintf("unknown sync mode %q", r.Mode))
	}
	if r.Mode == SyncModeFull && !r.Watermark.IsZero() {
		return NewValidationError(CodeValidationFailed, "full sync does not accept a watermark")
	}
	return nil
}

// SyncResult reports the outcome of a sync run
type SyncResult struct {
	Entity    EntityType `json:"entity"`
	Mode      SyncMode   `json:"mode"`
	Total     int        `json:"total"`
	Processed int        `json:"processed"`
	Failed    int        `json:"failed"`
	// Watermark is the new cursor the caller persists for the next delta sync
	Watermark Watermark  `json:"watermark"`
	Status    SyncStatus `json:"status"`
}

// CheckWatermark verifies the result watermark did not move backwards
// relative to the request watermark
func (r *SyncResult) CheckWatermark(req SyncRequest) error {
	if req.Mode == SyncModeDelta && r.Watermark.Compare(req.Watermark) < 0 {
		return fmt.Errorf("%w: delta sync moved watermark backwards from %q to %q",
			ErrInvalidWatermark, req.Watermark, r.Watermark)
	}
	return nil
}

// SyncProgress is reported while a sync is running
type SyncProgress struct {
	Entity    EntityType
	Processed int
	Failed    int
	// Total is the expected total when known, otherwise -1
	Total int
}

// ProgressReporter receives sync progress. It is invoked at least once per
// page of entities processed, on the goroutine running the sync.
type ProgressReporter interface {
	Report(progress SyncProgress)
}

// ProgressFunc adapts a function into a ProgressReporter
type ProgressFunc func(SyncProgress)

// Report implements ProgressReporter
func (f ProgressFunc) Report(p SyncProgress) {
	f(p)
}

// ReportProgress invokes the reporter if it is not nil
func ReportProgress(r ProgressReporter, p SyncProgress) {
	if r != nil {
		r.Report(p)
	}
}
