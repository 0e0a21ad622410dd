// internal/purge/report.go
package purge

import (
	"time"

	"github.com/google/uuid"
)

// Phase names, in execution order.
const (
	PhaseAuthenticate = "authenticate"
	PhaseOpenSettings = "open_settings"
	PhaseTriggerPurge = "trigger_purge"
	PhaseConfirmPurge = "confirm_purge"
)

// PhaseStatus is the outcome of one phase.
type PhaseStatus string

const (
	StatusOK      PhaseStatus = "ok"
	StatusFailed  PhaseStatus = "failed"
	StatusSkipped PhaseStatus = "skipped"
)

// PhaseResult records one phase of a run.
type PhaseResult struct {
	Name     string        `json:"name"`
	Status   PhaseStatus   `json:"status"`
	Duration time.Duration `json:"duration_ns"`
	Error    string        `json:"error,omitempty"`
}

// Report summarizes a run. It never contains credentials.
type Report struct {
	RunID      string        `json:"run_id"`
	Variant    string        `json:"variant"`
	Host       string        `json:"host"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Phases     []PhaseResult `json:"phases"`
	TwoFactor  bool          `json:"two_factor"`
	DryRun     bool          `json:"dry_run"`
	Error      string        `json:"error,omitempty"`
}

// NewReport starts a report with a fresh run id.
func NewReport(variant, host string, dryRun bool, now time.Time) *Report {
	return &Report{
		RunID:     uuid.NewString(),
		Variant:   variant,
		Host:      host,
		StartedAt: now,
		DryRun:    dryRun,
	}
}

// Succeeded reports whether every phase completed.
func (r *Report) Succeeded() bool {
	if r.Error != "" || len(r.Phases) == 0 {
		return false
	}
	for _, p := range r.Phases {
		if p.Status != StatusOK {
			return false
		}
	}
	return true
}

// FailedPhase returns the name of the phase that failed, or "" when none did.
func (r *Report) FailedPhase() string {
	for _, p := range r.Phases {
		if p.Status == StatusFailed {
			return p.Name
		}
	}
	return ""
}
