package domain

import "time"

// EventType identifies which part of a CVE changed.
type EventType string

const (
	EventNewCVE    EventType = "new_cve"
	EventCVSS2     EventType = "cvss2_change"
	EventCVSS3     EventType = "cvss3_change"
	EventCWE       EventType = "cwe_change"
	EventCPE       EventType = "cpe_change"
	EventSummary   EventType = "summary_change"
	EventReference EventType = "reference_change"
)

// Field returns the snapshot field an event type refers to.
func (t EventType) Field() string {
	switch t {
	case EventNewCVE:
		return "cve"
	case EventCVSS2:
		return "cvss2"
	case EventCVSS3:
		return "cvss3"
	case EventCWE:
		return "cwes"
	case EventCPE:
		return "cpes"
	case EventSummary:
		return "summary"
	case EventReference:
		return "references"
	}
	return string(t)
}

// Event is one detected difference. Old and New hold the JSON-compatible
// values of the field: float64 or nil for scores, string for the summary,
// sorted []string for the set-valued fields.
type Event struct {
	ID    string    `json:"id,omitempty"`
	Type  EventType `json:"type"`
	Field string    `json:"field"`
	Old   any       `json:"old"`
	New   any       `json:"new"`
}

// Change links one CVE to the events detected in one cycle. Immutable once
// created, apart from the Dispatched marker set by the dispatch stage.
type Change struct {
	ID         string    `json:"id"`
	ReportID   string    `json:"report_id"`
	CVEID      string    `json:"cve_id"`
	Events     []Event   `json:"events"`
	Dispatched bool      `json:"dispatched"`
	CreatedAt  time.Time `json:"created_at"`
}
