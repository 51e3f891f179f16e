package web

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/MOYARU/smarttest/internal/app/scan"
	"github.com/MOYARU/smarttest/internal/report"
)

// RunSink counts dashboard runs and step transitions and logs them. The
// page itself reads the orchestrator session, so nothing is buffered here.
type RunSink struct {
	logger *slog.Logger
	steps  *prometheus.CounterVec
	runs   *prometheus.CounterVec
}

func NewRunSink(reg prometheus.Registerer, logger *slog.Logger) *RunSink {
	s := &RunSink{
		logger: logger,
		steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "smarttest_step_transitions_total",
			Help: "Progress step transitions by step and status.",
		}, []string{"step", "status"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "smarttest_runs_total",
			Help: "Finished dashboard runs by result.",
		}, []string{"result"}),
	}
	reg.MustRegister(s.steps, s.runs)
	return s
}

func (s *RunSink) OnStepStatus(step scan.Step, status scan.StepStatus) {
	s.steps.WithLabelValues(step.Label(), status.String()).Inc()
	s.logger.Debug("step", "step", int(step), "label", step.Label(), "status", status.String())
}

func (s *RunSink) OnRunError(message string) {
	s.runs.WithLabelValues("errored").Inc()
	s.logger.Warn("run errored", "error", message)
}

func (s *RunSink) OnResultsReady(vm report.ViewModel) {
	result := "done"
	if vm.Degraded {
		result = "degraded"
	}
	s.runs.WithLabelValues(result).Inc()
	s.logger.Info("results ready", "result", result, "comparison_rows", len(vm.Comparison))
}
