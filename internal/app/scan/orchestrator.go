package scan

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MOYARU/smarttest/internal/client"
	"github.com/MOYARU/smarttest/internal/fileset"
	"github.com/MOYARU/smarttest/internal/logging"
	"github.com/MOYARU/smarttest/internal/report"
)

var (
	ErrEmptyInput           = errors.New("no files to upload")
	ErrRunAlreadyInProgress = errors.New("a scan run is already in progress")
)

// UploadError ends a run in the Errored state. Message is what the sink
// was shown.
type UploadError struct {
	Message string
	Err     error
}

func (e *UploadError) Error() string {
	return "upload failed: " + e.Message
}

func (e *UploadError) Unwrap() error {
	return e.Err
}

// Transport is the backend as seen by the orchestrator. *client.Client
// implements it.
type Transport interface {
	Upload(ctx context.Context, files fileset.FileSet) (client.ProjectHandle, error)
	ScanCode(ctx context.Context, project client.ProjectHandle) (*client.ScanPayload, error)
	ScanDeepSource(ctx context.Context, project client.ProjectHandle) (*client.ScanPayload, error)
}

// Sink receives progress and results. Calls for one run arrive in order
// from the goroutine that called Start.
type Sink interface {
	OnStepStatus(step Step, status StepStatus)
	OnRunError(message string)
	OnResultsReady(vm report.ViewModel)
}

// MultiSink fans every call out to each sink in order.
type MultiSink []Sink

func (m MultiSink) OnStepStatus(step Step, status StepStatus) {
	for _, s := range m {
		s.OnStepStatus(step, status)
	}
}

func (m MultiSink) OnRunError(message string) {
	for _, s := range m {
		s.OnRunError(message)
	}
}

func (m MultiSink) OnResultsReady(vm report.ViewModel) {
	for _, s := range m {
		s.OnResultsReady(vm)
	}
}

type nopSink struct{}

func (nopSink) OnStepStatus(Step, StepStatus) {}
func (nopSink) OnRunError(string) {}
func (nopSink) OnResultsReady(report.ViewModel) {}

// Orchestrator drives upload, both scans and aggregation for one run at
// a time.
type Orchestrator struct {
	transport Transport
	sink      Sink
	logger    *slog.Logger
	now       func() time.Time

	mu      sync.Mutex
	running bool
	session Session
}

func NewOrchestrator(transport Transport, sink Sink, logger *slog.Logger) *Orchestrator {
	if sink == nil {
		sink = nopSink{}
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &Orchestrator{
		transport: transport,
		sink:      sink,
		logger:    logger,
		now:       time.Now,
	}
}

// Session returns a copy of the current or most recent run.
func (o *Orchestrator) Session() Session {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.session.clone()
}

func (o *Orchestrator) Running() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.running
}

// Reset drops the last session. It fails while a run is in flight.
func (o *Orchestrator) Reset() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.running {
		return ErrRunAlreadyInProgress
	}
	o.session = Session{}
	return nil
}

// Start runs one full scan and blocks until it reaches Done or Errored.
// ctx bounds the backend calls only; cancellation shows up as a failed
// upload or a failed scan outcome.
func (o *Orchestrator) Start(ctx context.Context, files fileset.FileSet) (Session, error) {
	if files.Empty() {
		return Session{}, ErrEmptyInput
	}

	o.mu.Lock()
	if o.running {
		o.mu.Unlock()
		return Session{}, ErrRunAlreadyInProgress
	}
	o.running = true
	o.session = Session{
		RunID:     uuid.NewString(),
		State:     StateIdle,
		Files:     files.Entries(),
		StartedAt: o.now(),
	}
	runID := o.session.RunID
	o.mu.Unlock()

	defer func() {
		o.mu.Lock()
		o.running = false
		o.mu.Unlock()
	}()

	log := o.logger.With("run_id", runID)
	log.Info("run started", "files", files.Len(), "bytes", files.TotalSize())

	o.enter(StateUploading, StepUpload)
	project, err := o.transport.Upload(ctx, files)
	if err != nil {
		msg := failureMessage(err, "upload failed")
		o.update(func(s *Session) {
			s.State = StateErrored
			s.Error = msg
			s.FinishedAt = o.now()
		})
		o.setStep(StepUpload, StepFailed)
		o.sink.OnRunError(msg)
		log.Warn("upload failed", "error", msg)
		return o.Session(), &UploadError{Message: msg, Err: err}
	}
	o.update(func(s *Session) { s.Project = project })
	o.setStep(StepUpload, StepCompleted)

	o.enter(StateScanningA, StepScanA)
	outcomeA := o.scan(ctx, report.ToolSnykCode, project)
	o.update(func(s *Session) { s.OutcomeA = &outcomeA })
	o.setStep(StepScanA, StepCompleted)

	o.enter(StateScanningB, StepScanB)
	outcomeB := o.scan(ctx, report.ToolDeepSource, project)
	o.update(func(s *Session) { s.OutcomeB = &outcomeB })
	o.setStep(StepScanB, StepCompleted)

	o.enter(StateAggregating, StepResults)
	vm := report.Build(outcomeA, outcomeB)
	o.update(func(s *Session) {
		s.View = &vm
		s.State = StateDone
		s.FinishedAt = o.now()
	})
	o.setStep(StepResults, StepCompleted)
	o.sink.OnResultsReady(vm)

	log.Info("run finished", "project", project, "snyk_ok", outcomeA.Success, "deepsource_ok", outcomeB.Success)
	return o.Session(), nil
}

func (o *Orchestrator) scan(ctx context.Context, tool report.Tool, project client.ProjectHandle) report.ScanOutcome {
	var (
		payload *client.ScanPayload
		err     error
	)
	switch tool {
	case report.ToolSnykCode:
		payload, err = o.transport.ScanCode(ctx, project)
	default:
		payload, err = o.transport.ScanDeepSource(ctx, project)
	}
	if err != nil {
		o.logger.Warn("scan failed", "tool", tool, "error", err)
		return ScanFailure(tool, err)
	}
	return report.SanitizeOutcome(payload.Outcome(tool))
}

// ScanFailure converts a transport error into a Failure outcome for tool.
func ScanFailure(tool report.Tool, err error) report.ScanOutcome {
	return report.SanitizeOutcome(report.Failed(tool, failureMessage(err, tool.DefaultFailure())))
}

func failureMessage(err error, fallback string) string {
	if err == nil {
		return fallback
	}
	msg := err.Error()
	var f *client.Failure
	if errors.As(err, &f) {
		msg = f.Message
	}
	if msg = strings.TrimSpace(msg); msg == "" {
		return fallback
	}
	return msg
}

func (o *Orchestrator) enter(state State, step Step) {
	o.update(func(s *Session) { s.State = state })
	o.setStep(step, StepActive)
}

func (o *Orchestrator) setStep(step Step, status StepStatus) {
	o.update(func(s *Session) {
		s.Steps[step-1] = status
		s.Events = append(s.Events, StepEvent{Step: step, Status: status, At: o.now()})
	})
	o.sink.OnStepStatus(step, status)
}

func (o *Orchestrator) update(fn func(*Session)) {
	o.mu.Lock()
	fn(&o.session)
	o.mu.Unlock()
}
