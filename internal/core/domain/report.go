package domain

import "time"

// Stage is a step of the notification cycle. Stages run in declaration order.
type Stage string

const (
	StageRefresh  Stage = "refresh"
	StageDetect   Stage = "detect"
	StageDispatch Stage = "dispatch"
	StageDeliver  Stage = "deliver"
	StageDone     Stage = "done"
)

// Stages lists the executable stages in order.
var Stages = []Stage{StageRefresh, StageDetect, StageDispatch, StageDeliver}

// Next returns the stage that follows s.
func (s Stage) Next() Stage {
	for i, st := range Stages {
		if st == s && i+1 < len(Stages) {
			return Stages[i+1]
		}
	}
	return StageDone
}

// ReportStatus is the outcome of a cycle.
type ReportStatus string

const (
	StatusRunning   ReportStatus = "running"
	StatusCompleted ReportStatus = "completed"
	StatusPartial   ReportStatus = "partial"
	StatusFailed    ReportStatus = "failed"
)

// Report is the journal row of one notification cycle. Alerts created
// during the cycle reference it.
type Report struct {
	ID              string       `json:"id"`
	Stage           Stage        `json:"stage"`
	Status          ReportStatus `json:"status"`
	FeedSince       time.Time    `json:"feed_since"`
	FeedUntil       time.Time    `json:"feed_until"`
	RecordsFetched  int          `json:"records_fetched"`
	ChangesDetected int          `json:"changes_detected"`
	AlertsCreated   int          `json:"alerts_created"`
	Errors          []string     `json:"errors,omitempty"`
	StartedAt       time.Time    `json:"started_at"`
	FinishedAt      *time.Time   `json:"finished_at,omitempty"`
}

// IsResumable reports whether a restarted process should continue the cycle.
func (r *Report) IsResumable() bool {
	return r.Status == StatusRunning && r.Stage != StageDone
}

// FeedRecord is a CVE snapshot fetched by the refresh stage and staged for
// the detect stage.
type FeedRecord struct {
	ID        uint        `json:"id"`
	ReportID  string      `json:"report_id"`
	Snapshot  CveSnapshot `json:"snapshot"`
	Processed bool        `json:"processed"`
}

// Alert links a report to a CVE for one user. There is at most one alert
// per (user, CVE, report).
type Alert struct {
	ID          string     `json:"id"`
	ReportID    string     `json:"report_id"`
	UserID      string     `json:"user_id"`
	CVEID       string     `json:"cve_id"`
	ChangeID    string     `json:"change_id"`
	CreatedAt   time.Time  `json:"created_at"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`
}

// CycleReport summarises one run_cycle invocation.
type CycleReport struct {
	ReportID        string       `json:"report_id"`
	Status          ReportStatus `json:"status"`
	ChangesDetected int          `json:"changes_detected"`
	AlertsCreated   int          `json:"alerts_created"`
	AlertsDelivered int          `json:"alerts_delivered"`
	Errors          []string     `json:"errors"`
}

// Notification is the payload handed to a notifier for one user.
type Notification struct {
	User     User     `json:"user"`
	ReportID string   `json:"report_id"`
	Alerts   []Alert  `json:"alerts"`
	CVEs     []CVE    `json:"cves"`
	Changes  []Change `json:"changes,omitempty"`
}
