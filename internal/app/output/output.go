package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/MOYARU/smarttest/internal/app/ui"
	"github.com/MOYARU/smarttest/internal/client"
	"github.com/MOYARU/smarttest/internal/fileset"
	msges "github.com/MOYARU/smarttest/internal/messages"
	"github.com/MOYARU/smarttest/internal/report"
)

// RunReport is everything written to a JSON or HTML report for one run.
type RunReport struct {
	RunID       string               `json:"run_id"`
	Server      string               `json:"server"`
	Project     string               `json:"project"`
	State       string               `json:"state"`
	StartTime   time.Time            `json:"start_time"`
	EndTime     time.Time            `json:"end_time"`
	Files       []fileset.Entry      `json:"files"`
	Outcomes    []report.ScanOutcome `json:"outcomes"`
	View        report.ViewModel     `json:"view"`
	Requests    int64                `json:"backend_requests"`
	RequestTime time.Duration        `json:"backend_request_time_ns"`
}

var progressMu sync.Mutex

const progressWidth = 30

// PrintStepProgress redraws the progress line for step out of total. A
// final update (completed or failed) ends the line.
func PrintStepProgress(w io.Writer, step, total int, label, status string, final bool) {
	progressMu.Lock()
	defer progressMu.Unlock()

	if total <= 0 {
		fmt.Fprintf(w, "\r [%s] 0%% | %s: %s\033[K", strings.Repeat("-", progressWidth), label, status)
		return
	}

	done := step - 1
	if final {
		done = step
	}
	if done < 0 {
		done = 0
	}
	if done > total {
		done = total
	}
	percentage := float64(done) / float64(total) * 100
	filled := progressWidth * done / total
	bar := strings.Repeat("#", filled) + strings.Repeat("-", progressWidth-filled)
	fmt.Fprintf(w, "\r [%s] %.0f%% | %s [%d/%d]: %s\033[K", bar, percentage, label, step, total, status)
	if final {
		fmt.Fprintln(w)
	}
}

// PrintFileList shows the upload candidates with human readable sizes.
func PrintFileList(w io.Writer, set fileset.FileSet) {
	fmt.Fprintf(w, "%s%s%s\n", ui.ColorWhite, msges.GetUIMessage("FilesSelected", set.Len(), fileset.FormatSize(set.TotalSize())), ui.ColorReset)
	for _, f := range set.Files() {
		fmt.Fprintf(w, " - %s %s(%s)%s\n", f.Name, ui.ColorGray, fileset.FormatSize(f.Size), ui.ColorReset)
	}
	if skipped := set.Skipped(); len(skipped) > 0 {
		fmt.Fprintf(w, "%s%s%s\n", ui.ColorGray, msges.GetUIMessage("FilesSkipped", len(skipped)), ui.ColorReset)
		for _, s := range skipped {
			fmt.Fprintf(w, "%s - %s: %s%s\n", ui.ColorGray, s.Name, s.Reason, ui.ColorReset)
		}
	}
}

func PrintRunError(w io.Writer, message string) {
	fmt.Fprintf(w, "\n%s%s%s\n", ui.ColorRed, msges.GetUIMessage("RunFailed", message), ui.ColorReset)
}

// PrintResults prints the summary dashboard: one block per tool, then the
// comparison rows.
func PrintResults(w io.Writer, vm report.ViewModel) {
	fmt.Fprintf(w, "\n%s%s%s\n", ui.ColorWhite, msges.GetUIMessage("ResultsTitle"), ui.ColorReset)
	for _, tv := range vm.Tools {
		printToolSummary(w, tv)
	}

	if len(vm.Comparison) > 0 {
		fmt.Fprintf(w, "\n%s%s%s\n", ui.ColorWhite, msges.GetUIMessage("ComparisonTitle"), ui.ColorReset)
		for _, row := range vm.Comparison {
			fmt.Fprintf(w, " - %s: %s%s%s\n", row.Title, ui.ColorGray, row.Detail, ui.ColorReset)
		}
	}
	if vm.Degraded {
		fmt.Fprintf(w, "\n%s%s%s\n", ui.ColorYellow, msges.GetUIMessage("Degraded"), ui.ColorReset)
	}
}

func printToolSummary(w io.Writer, tv report.ToolView) {
	statusColor := ui.ColorGreen
	if tv.Failed {
		statusColor = ui.ColorRed
	}
	fmt.Fprintf(w, "\n%s[%s]%s %s%s%s %s(%s)%s\n",
		ui.ColorWhite, tv.Label, ui.ColorReset,
		statusColor, tv.Status, ui.ColorReset,
		ui.ColorGray, tv.Duration, ui.ColorReset)

	fmt.Fprintf(w, "  %sCritical %d%s | %sHigh %d%s | %sMedium %d%s | %sLow %d%s | Total %d\n",
		ui.SeverityColor(string(report.SeverityCritical)), tv.Critical, ui.ColorReset,
		ui.SeverityColor(string(report.SeverityHigh)), tv.High, ui.ColorReset,
		ui.SeverityColor(string(report.SeverityMedium)), tv.Medium, ui.ColorReset,
		ui.SeverityColor(string(report.SeverityLow)), tv.Low, ui.ColorReset,
		tv.Total)
	fmt.Fprintf(w, "  Precision %s | Recall %s | F1 %s\n", tv.Precision.Text, tv.Recall.Text, tv.F1.Text)

	if tv.Failed {
		fmt.Fprintf(w, "  %s%s%s\n", ui.ColorRed, msges.GetUIMessage("ToolFailed", tv.Label, tv.Error), ui.ColorReset)
		if tv.Hint != "" {
			fmt.Fprintf(w, "  %s%s%s\n", ui.ColorYellow, tv.Hint, ui.ColorReset)
		}
	}
}

// PrintDetail prints the drill-down tables for one tool.
func PrintDetail(w io.Writer, tv report.ToolView) {
	d := tv.Detail
	fmt.Fprintf(w, "\n%s%s%s\n", ui.ColorWhite, msges.GetUIMessage("DetailTitle", tv.Label), ui.ColorReset)

	section := func(title string, rows [][2]string) {
		fmt.Fprintf(w, " %s%s%s\n", ui.ColorGray, title, ui.ColorReset)
		for _, r := range rows {
			fmt.Fprintf(w, "   %-22s %s\n", r[0], r[1])
		}
	}
	section(msges.GetUIMessage("DetailBasic"), [][2]string{
		{"Critical", fmt.Sprint(tv.Critical)},
		{"High", fmt.Sprint(tv.High)},
		{"Medium", fmt.Sprint(tv.Medium)},
		{"Low", fmt.Sprint(tv.Low)},
		{"Total issues", fmt.Sprint(tv.Total)},
		{"Scan duration", tv.Duration},
	})
	section(msges.GetUIMessage("DetailAccuracy"), [][2]string{
		{"Precision", d.Precision},
		{"Recall", d.Recall},
		{"F1 score", d.F1Score},
		{"True positives", fmt.Sprint(d.TruePositives)},
		{"False positives", fmt.Sprint(d.FalsePositives)},
		{"False negatives", fmt.Sprint(d.FalseNegatives)},
		{"False positive rate", d.FalsePositiveRate},
	})
	section(msges.GetUIMessage("DetailCoverage"), [][2]string{
		{"Coverage", d.CoveragePercent},
		{"Files analyzed", fmt.Sprint(d.FilesAnalyzed)},
		{"Lines analyzed", fmt.Sprint(d.LinesAnalyzed)},
	})
	section(msges.GetUIMessage("DetailEfficiency"), [][2]string{
		{"Average scan time", d.AverageScanTime},
		{"CPU usage", d.CPUUsage},
		{"Memory usage", d.MemoryUsage},
		{"Code quality score", d.CodeQualityScore},
	})
}

func PrintProjects(w io.Writer, list *client.ProjectList) {
	if list == nil || (len(list.Projects) == 0 && len(list.Available) == 0) {
		fmt.Fprintf(w, "%s%s%s\n", ui.ColorGray, msges.GetUIMessage("ProjectsEmpty"), ui.ColorReset)
		return
	}
	fmt.Fprintf(w, "%s%s%s\n", ui.ColorWhite, msges.GetUIMessage("ProjectsTitle"), ui.ColorReset)
	if len(list.Projects) == 0 {
		for _, name := range list.Available {
			fmt.Fprintf(w, " - %s\n", name)
		}
		return
	}
	for _, p := range list.Projects {
		state, color := msges.GetUIMessage("ProjectPresent"), ui.ColorGreen
		if !p.Exists {
			state, color = msges.GetUIMessage("ProjectMissing"), ui.ColorYellow
		}
		fmt.Fprintf(w, " - %s %s[%s]%s %s%s%s\n", p.Name, color, state, ui.ColorReset, ui.ColorGray, p.Path, ui.ColorReset)
	}
}

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

func reportFilename(project, ext string, now time.Time) string {
	name := unsafeFileChars.ReplaceAllString(project, "_")
	if name == "" {
		name = "run"
	}
	return fmt.Sprintf("smarttest_report_%s_%s.%s", name, now.Format("20060102_150405"), ext)
}

// SaveJSONReport writes rep into dir and returns the file path.
func SaveJSONReport(dir string, rep RunReport) (string, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	filename := filepath.Join(dir, reportFilename(rep.Project, "json", time.Now()))

	file, err := os.Create(filename)
	if err != nil {
		return "", err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(rep); err != nil {
		return "", err
	}
	return filename, nil
}
