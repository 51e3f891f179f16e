package report

import (
	"encoding/json"
	"strings"
)

type Tool string

const (
	ToolSnykCode   Tool = "snyk"
	ToolDeepSource Tool = "deepsource"
)

type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
)

// Label is the human name the backend also uses as tool_name.
func (t Tool) Label() string {
	switch t {
	case ToolSnykCode:
		return "Snyk Code"
	case ToolDeepSource:
		return "DeepSource"
	case "":
		return "Unknown tool"
	default:
		return string(t)
	}
}

// DefaultFailure is shown when a scan failed without saying why.
func (t Tool) DefaultFailure() string {
	return t.Label() + " scan failed"
}

func ParseTool(s string) (Tool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "snyk", "snyk-code", "code":
		return ToolSnykCode, true
	case "deepsource":
		return ToolDeepSource, true
	}
	return "", false
}

// Metrics is the normalized per-tool result block.
type Metrics struct {
	ToolName     string  `json:"tool_name"`
	Critical     int     `json:"critical"`
	High         int     `json:"high"`
	Medium       int     `json:"medium"`
	Low          int     `json:"low"`
	TotalIssues  int     `json:"total_issues"`
	ScanDuration float64 `json:"scan_duration"`
}

func DefaultMetrics(t Tool) Metrics {
	return Metrics{ToolName: t.Label()}
}

// AdvancedMetrics mirrors the backend's advanced_metrics object. Every
// part is optional; ratios are pointers so absence stays visible.
type AdvancedMetrics struct {
	DefectDetectionAccuracy *DetectionAccuracy     `json:"defect_detection_accuracy,omitempty"`
	CodeCoverage            *CodeCoverage          `json:"code_coverage,omitempty"`
	OperationalEfficiency   *OperationalEfficiency `json:"operational_efficiency,omitempty"`
	FalsePositiveRate       *float64               `json:"false_positive_rate,omitempty"`
	CodeQualityScore        *float64               `json:"code_quality_score,omitempty"`
}

type DetectionAccuracy struct {
	Precision      *float64 `json:"precision,omitempty"`
	Recall         *float64 `json:"recall,omitempty"`
	F1Score        *float64 `json:"f1_score,omitempty"`
	TruePositives  int      `json:"true_positives"`
	FalsePositives int      `json:"false_positives"`
	FalseNegatives int      `json:"false_negatives"`
	TrueNegatives  int      `json:"true_negatives"`
}

type CodeCoverage struct {
	Percent       float64 `json:"code_coverage_percent"`
	FilesAnalyzed int     `json:"files_analyzed"`
	LinesAnalyzed int     `json:"lines_analyzed"`
}

type OperationalEfficiency struct {
	AverageScanTime float64 `json:"average_scan_time"`
	CPUUsagePercent float64 `json:"cpu_usage_percent"`
	MemoryUsageMB   float64 `json:"memory_usage_mb"`
}

// ScanOutcome is the result of one scan call: Success carries metrics,
// Failure carries only an error message. The zero value is a Failure.
type ScanOutcome struct {
	Tool     Tool            `json:"tool"`
	Success  bool            `json:"success"`
	Metrics  Metrics         `json:"metrics"`
	Advanced AdvancedMetrics `json:"advanced_metrics"`
	Raw      json.RawMessage `json:"raw,omitempty"`
	Error    string          `json:"error,omitempty"`
}

func Succeeded(tool Tool, metrics *Metrics, advanced *AdvancedMetrics, raw json.RawMessage) ScanOutcome {
	out := ScanOutcome{
		Tool:    tool,
		Success: true,
		Metrics: DefaultMetrics(tool),
		Raw:     raw,
	}
	if metrics != nil {
		out.Metrics = *metrics
		if out.Metrics.ToolName == "" {
			out.Metrics.ToolName = tool.Label()
		}
	}
	if advanced != nil {
		out.Advanced = *advanced
	}
	return out
}

func Failed(tool Tool, message string) ScanOutcome {
	if strings.TrimSpace(message) == "" {
		message = tool.DefaultFailure()
	}
	return ScanOutcome{
		Tool:    tool,
		Metrics: DefaultMetrics(tool),
		Error:   message,
	}
}
