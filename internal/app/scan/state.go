package scan

import (
	"time"

	"github.com/MOYARU/smarttest/internal/client"
	"github.com/MOYARU/smarttest/internal/fileset"
	msges "github.com/MOYARU/smarttest/internal/messages"
	"github.com/MOYARU/smarttest/internal/report"
)

type State int

const (
	StateIdle State = iota
	StateUploading
	StateScanningA
	StateScanningB
	StateAggregating
	StateDone
	StateErrored
)

var stateNames = map[State]string{
	StateIdle:        "idle",
	StateUploading:   "uploading",
	StateScanningA:   "scanning_a",
	StateScanningB:   "scanning_b",
	StateAggregating: "aggregating",
	StateDone:        "done",
	StateErrored:     "errored",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Terminal reports whether no further transition can happen in this run.
func (s State) Terminal() bool {
	return s == StateDone || s == StateErrored
}

// Step numbers match the four progress indicators, starting at 1.
type Step int

const (
	StepUpload Step = iota + 1
	StepScanA
	StepScanB
	StepResults
)

const stepCount = 4

func (s Step) Label() string {
	if s < StepUpload || s > StepResults {
		return "unknown step"
	}
	return msges.StepLabels[s-1]
}

func (s Step) String() string {
	return s.Label()
}

type StepStatus int

const (
	StepPending StepStatus = iota
	StepActive
	StepCompleted
	StepFailed
)

func (s StepStatus) String() string {
	switch s {
	case StepActive:
		return "active"
	case StepCompleted:
		return "completed"
	case StepFailed:
		return "failed"
	default:
		return "pending"
	}
}

func (s StepStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

type StepEvent struct {
	Step   Step       `json:"step"`
	Status StepStatus `json:"status"`
	At     time.Time  `json:"at"`
}

// Session is the state of one run. A new run replaces it entirely.
type Session struct {
	RunID      string                `json:"run_id"`
	State      State                 `json:"state"`
	Steps      [stepCount]StepStatus `json:"steps"`
	Files      []fileset.Entry       `json:"files,omitempty"`
	Project    client.ProjectHandle  `json:"project,omitempty"`
	OutcomeA   *report.ScanOutcome   `json:"outcome_a,omitempty"`
	OutcomeB   *report.ScanOutcome   `json:"outcome_b,omitempty"`
	View       *report.ViewModel     `json:"view,omitempty"`
	Error      string                `json:"error,omitempty"`
	StartedAt  time.Time             `json:"started_at"`
	FinishedAt time.Time             `json:"finished_at"`
	Events     []StepEvent           `json:"events,omitempty"`
}

func (s Session) StepStatus(step Step) StepStatus {
	if step < StepUpload || step > StepResults {
		return StepPending
	}
	return s.Steps[step-1]
}

func (s Session) Elapsed() time.Duration {
	if s.StartedAt.IsZero() {
		return 0
	}
	if s.FinishedAt.IsZero() {
		return time.Since(s.StartedAt)
	}
	return s.FinishedAt.Sub(s.StartedAt)
}

func (s Session) clone() Session {
	s.Files = append([]fileset.Entry(nil), s.Files...)
	s.Events = append([]StepEvent(nil), s.Events...)
	return s
}
