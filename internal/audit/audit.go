// Package audit delivers content-free transformation records to external
// sinks. Delivery is asynchronous and fail-open: the de-identified result is
// never held back by a slow or broken sink.
package audit

import (
	"time"

	"github.com/google/uuid"
)

// Method is the de-identification method stamped on every record.
const Method = "HIPAA_SAFE_HARBOR"

// Outcomes for the Outcome field.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// Record is one transformation record. It must never carry PHI: no text,
// no span values, no token map material — only counts and identifiers the
// caller already knows.
type Record struct {
	Timestamp     time.Time `json:"timestamp"`
	Method        string    `json:"method"`
	Version       string    `json:"version"`
	Reversible    bool      `json:"reversible"`
	TotalDetected int       `json:"total_detected"`
	RequestID     string    `json:"request_id"`
	ProjectID     string    `json:"project_id,omitempty"`
	Outcome       string    `json:"outcome"`
}

// NewRecord assembles a record, filling timestamp and request id when absent.
func NewRecord(version, requestID, projectID string, reversible bool, totalDetected int, outcome string) *Record {
	if requestID == "" {
		requestID = uuid.NewString()
	}
	if outcome == "" {
		outcome = OutcomeSuccess
	}
	return &Record{
		Timestamp:     time.Now().UTC(),
		Method:        Method,
		Version:       version,
		Reversible:    reversible,
		TotalDetected: totalDetected,
		RequestID:     requestID,
		ProjectID:     projectID,
		Outcome:       outcome,
	}
}
