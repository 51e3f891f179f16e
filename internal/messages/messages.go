package messages

import (
	"fmt"
)

// StepLabels are the four user-visible progress steps, in run order.
var StepLabels = [4]string{
	"Uploading files",
	"Running Snyk Code scan",
	"Running DeepSource scan",
	"Preparing results",
}

// uiMessages holds UI strings.
var uiMessages = map[string]string{
	"Server":                  "Backend: %s",
	"FilesSelected":           "Selected files (%d, %s):",
	"FilesSkipped":            "Skipped %d file(s):",
	"NoFiles":                 "No files selected. Pass a file or directory to upload.",
	"UploadPrompt":            "Upload these files to the backend for scanning?",
	"UploadAborted":           "Upload aborted by user.",
	"ScanCancelled":           "Scan cancelled.",
	"RunStarted":              "Run %s started",
	"RunFailed":               "Run failed: %s",
	"RunInProgress":           "A scan is already running.",
	"StepPending":             "pending",
	"StepActive":              "running",
	"StepCompleted":           "done",
	"StepFailed":              "failed",
	"ResultsTitle":            "--- Scan Results ---",
	"ComparisonTitle":         "--- Comparison ---",
	"DetailTitle":             "--- %s Detail ---",
	"DetailBasic":             "Basic metrics",
	"DetailAccuracy":          "Defect detection accuracy",
	"DetailCoverage":          "Code coverage",
	"DetailEfficiency":        "Operational efficiency",
	"ToolFailed":              "[!] %s failed: %s",
	"Degraded":                "[!] Results are partial: at least one scan failed.",
	"AllCompleted":            "All steps completed.",
	"RunElapsed":              "Run completed in %.2fs (%d backend requests)",
	"JSONReportSaved":         "JSON Report saved: %s",
	"JSONReportFailed":        "Failed to save JSON report: %v",
	"HTMLReportSaved":         "HTML Report saved: %s",
	"HTMLReportFailed":        "Failed to save HTML report: %v",
	"MetricsFileSaved":        "Metrics written: %s",
	"MetricsFileFailed":       "Failed to write metrics file: %v",
	"RedactionPatternInvalid": "Ignoring invalid redaction pattern: %s",
	"ConfigLoadFailed":        "Config %s unreadable, using defaults: %v",
	"ProjectsTitle":           "Backend projects:",
	"ProjectsEmpty":           "The backend reports no projects.",
	"ProjectMissing":          "missing",
	"ProjectPresent":          "present",
	"ProjectsFailed":          "Failed to list projects: %v",
	"HTMLReportTitle":         "Scan Comparison Report",
	"HTMLServer":              "Backend",
	"HTMLProject":             "Project",
	"HTMLScanTime":            "Scan Time",
	"HTMLDuration":            "Duration",
	"HTMLFiles":               "Uploaded Files",
	"DashboardTitle":          "smarttest dashboard",
	"DashboardIdle":           "No run yet. Choose files and start a scan.",
	"InteractiveWelcome":      "Welcome to smarttest interactive mode. Type 'help' for commands.",
	"InteractiveExit":         "Exiting program.",
	"InteractiveHelp":         "Available commands:",
	"InteractiveErrorPath":    "Error: at least one path required. Usage: scan <path> ...",
	"InteractiveScanFailed":   "Error running scan: %v",
	"InteractiveErrorUnknown": "Unknown command: %s",
	"ConfigUpdated":           "Updated %s in %s",
	"ConfigUpdateFailed":      "Failed to update config: %v",
	"ConfigSaved":             "Saved config to %s",
	"ConfigUsage":             "Usage: config show | set <key> <value> | save [path]",
	"DashboardListening":      "Dashboard listening on http://%s (backend %s)",
}

func GetUIMessage(id string, args ...interface{}) string {
	format, ok := uiMessages[id]
	if !ok || format == "" {
		return id
	}
	if len(args) > 0 {
		return fmt.Sprintf(format, args...)
	}
	return format
}
