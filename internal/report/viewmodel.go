package report

import (
	"fmt"
	"math"
)

type ViewModel struct {
	Tools      []ToolView      `json:"tools"`
	Comparison []ComparisonRow `json:"comparison,omitempty"`
	// Degraded is true when at least one scan failed.
	Degraded bool `json:"degraded"`
}

type ToolView struct {
	Tool   Tool   `json:"tool"`
	Label  string `json:"label"`
	Failed bool   `json:"failed"`
	Status string `json:"status"`
	// Error is the tooltip text for a failed scan.
	Error string `json:"error,omitempty"`
	Hint  string `json:"hint,omitempty"`

	Critical        int     `json:"critical"`
	High            int     `json:"high"`
	Medium          int     `json:"medium"`
	Low             int     `json:"low"`
	Total           int     `json:"total_issues"`
	DurationSeconds float64 `json:"scan_duration"`
	Duration        string  `json:"duration"`

	Precision Badge   `json:"precision"`
	Recall    Badge   `json:"recall"`
	F1        Badge   `json:"f1_score"`
	Coverage  float64 `json:"coverage_percent"`

	Detail Detail `json:"detail"`
}

// Badge is a one-decimal summary percentage. Present reports whether the
// backend sent the ratio at all; Text is always filled.
type Badge struct {
	Present bool    `json:"present"`
	Percent float64 `json:"percent"`
	Text    string  `json:"text"`
}

// Detail backs the drill-down view; every value is pre-formatted with two
// decimals so renderers never deal with absent fields.
type Detail struct {
	Precision         string `json:"precision"`
	Recall            string `json:"recall"`
	F1Score           string `json:"f1_score"`
	TruePositives     int    `json:"true_positives"`
	FalsePositives    int    `json:"false_positives"`
	FalseNegatives    int    `json:"false_negatives"`
	FalsePositiveRate string `json:"false_positive_rate"`

	CoveragePercent string `json:"code_coverage_percent"`
	FilesAnalyzed   int    `json:"files_analyzed"`
	LinesAnalyzed   int    `json:"lines_analyzed"`

	AverageScanTime string `json:"average_scan_time"`
	CPUUsage        string `json:"cpu_usage"`
	MemoryUsage     string `json:"memory_usage"`

	CodeQualityScore string `json:"code_quality_score"`
}

const (
	StatusSuccess = "Success"
	StatusError   = "Error"
)

// Build turns two scan outcomes into the presentation model. It accepts
// any outcome, including zero values, and never returns partial data.
func Build(a, b ScanOutcome) ViewModel {
	vm := ViewModel{
		Tools: []ToolView{buildToolView(a), buildToolView(b)},
	}
	for _, tv := range vm.Tools {
		if tv.Failed {
			vm.Degraded = true
		}
	}
	vm.Comparison = buildComparison(vm.Tools[0], vm.Tools[1])
	return vm
}

func buildToolView(o ScanOutcome) ToolView {
	tv := ToolView{
		Tool:  o.Tool,
		Label: o.Tool.Label(),
	}

	if !o.Success {
		msg := o.Error
		if msg == "" {
			msg = o.Tool.DefaultFailure()
		}
		tv.Failed = true
		tv.Status = StatusError
		tv.Error = SanitizeText(msg)
		tv.Hint = failureHint(msg)
		tv.Duration = FormatSeconds(0)
		tv.Precision = badge(nil)
		tv.Recall = badge(nil)
		tv.F1 = badge(nil)
		tv.Detail = buildDetail(AdvancedMetrics{})
		return tv
	}

	m := o.Metrics
	tv.Status = StatusSuccess
	if m.ToolName != "" {
		tv.Label = m.ToolName
	}
	tv.Critical = nonNegative(m.Critical)
	tv.High = nonNegative(m.High)
	tv.Medium = nonNegative(m.Medium)
	tv.Low = nonNegative(m.Low)
	tv.Total = nonNegative(m.TotalIssues)
	tv.DurationSeconds = finite(m.ScanDuration)
	tv.Duration = FormatSeconds(tv.DurationSeconds)

	var acc DetectionAccuracy
	if o.Advanced.DefectDetectionAccuracy != nil {
		acc = *o.Advanced.DefectDetectionAccuracy
	}
	tv.Precision = badge(acc.Precision)
	tv.Recall = badge(acc.Recall)
	tv.F1 = badge(acc.F1Score)
	if o.Advanced.CodeCoverage != nil {
		tv.Coverage = finite(o.Advanced.CodeCoverage.Percent)
	}
	tv.Detail = buildDetail(o.Advanced)
	return tv
}

func buildDetail(adv AdvancedMetrics) Detail {
	var (
		acc DetectionAccuracy
		cov CodeCoverage
		eff OperationalEfficiency
	)
	if adv.DefectDetectionAccuracy != nil {
		acc = *adv.DefectDetectionAccuracy
	}
	if adv.CodeCoverage != nil {
		cov = *adv.CodeCoverage
	}
	if adv.OperationalEfficiency != nil {
		eff = *adv.OperationalEfficiency
	}

	quality := "n/a"
	if adv.CodeQualityScore != nil {
		quality = fmt.Sprintf("%.2f", finite(*adv.CodeQualityScore))
	}

	return Detail{
		Precision:         FormatRatio2(deref(acc.Precision)),
		Recall:            FormatRatio2(deref(acc.Recall)),
		F1Score:           FormatRatio2(deref(acc.F1Score)),
		TruePositives:     nonNegative(acc.TruePositives),
		FalsePositives:    nonNegative(acc.FalsePositives),
		FalseNegatives:    nonNegative(acc.FalseNegatives),
		FalsePositiveRate: FormatRatio2(deref(adv.FalsePositiveRate)),
		CoveragePercent:   fmt.Sprintf("%.2f%%", finite(cov.Percent)),
		FilesAnalyzed:     nonNegative(cov.FilesAnalyzed),
		LinesAnalyzed:     nonNegative(cov.LinesAnalyzed),
		AverageScanTime:   FormatSeconds(eff.AverageScanTime),
		CPUUsage:          fmt.Sprintf("%.2f%%", finite(eff.CPUUsagePercent)),
		MemoryUsage:       fmt.Sprintf("%.2f MB", finite(eff.MemoryUsageMB)),
		CodeQualityScore:  quality,
	}
}

func badge(ratio *float64) Badge {
	if ratio == nil {
		return Badge{Text: FormatRatio1(0)}
	}
	r := finite(*ratio)
	return Badge{
		Present: true,
		Percent: math.Round(r*1000) / 10,
		Text:    FormatRatio1(r),
	}
}

// FormatSeconds renders a duration in seconds with two decimals ("1.50s").
func FormatSeconds(v float64) string {
	return fmt.Sprintf("%.2fs", finite(v))
}

// FormatRatio1 renders a 0..1 ratio as a one-decimal percentage.
func FormatRatio1(ratio float64) string {
	return fmt.Sprintf("%.1f%%", finite(ratio)*100)
}

// FormatRatio2 renders a 0..1 ratio as a two-decimal percentage.
func FormatRatio2(ratio float64) string {
	return fmt.Sprintf("%.2f%%", finite(ratio)*100)
}

func deref(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}

func nonNegative(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
