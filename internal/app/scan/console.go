package scan

import (
	"io"

	"github.com/MOYARU/smarttest/internal/app/output"
	msges "github.com/MOYARU/smarttest/internal/messages"
	"github.com/MOYARU/smarttest/internal/report"
)

// ConsoleSink renders a run on a terminal.
type ConsoleSink struct {
	w          io.Writer
	showDetail bool
}

func NewConsoleSink(w io.Writer, showDetail bool) *ConsoleSink {
	return &ConsoleSink{w: w, showDetail: showDetail}
}

func (c *ConsoleSink) OnStepStatus(step Step, status StepStatus) {
	final := status == StepCompleted || status == StepFailed
	output.PrintStepProgress(c.w, int(step), stepCount, step.Label(), stepStatusText(status), final)
}

func (c *ConsoleSink) OnRunError(message string) {
	output.PrintRunError(c.w, message)
}

func (c *ConsoleSink) OnResultsReady(vm report.ViewModel) {
	output.PrintResults(c.w, vm)
	if !c.showDetail {
		return
	}
	for _, tv := range vm.Tools {
		output.PrintDetail(c.w, tv)
	}
}

func stepStatusText(s StepStatus) string {
	switch s {
	case StepActive:
		return msges.GetUIMessage("StepActive")
	case StepCompleted:
		return msges.GetUIMessage("StepCompleted")
	case StepFailed:
		return msges.GetUIMessage("StepFailed")
	default:
		return msges.GetUIMessage("StepPending")
	}
}
