package report

import (
	"fmt"
	"strings"
)

// ComparisonRow is one derived observation across both tools.
type ComparisonRow struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Winner string `json:"winner,omitempty"`
	Detail string `json:"detail"`
}

const snykInstallHint = "Snyk CLI setup on the backend host: 1) npm install -g snyk 2) snyk auth 3) check the configured Snyk path"

func failureHint(msg string) string {
	lower := strings.ToLower(msg)
	if strings.Contains(lower, "snyk cli") &&
		(strings.Contains(lower, "not found") || strings.Contains(lower, "bulunamad")) {
		return snykInstallHint
	}
	return ""
}

// buildComparison derives rows only when both scans succeeded; a failed
// tool reports zeros, which would make every comparison misleading.
func buildComparison(a, b ToolView) []ComparisonRow {
	if a.Failed || b.Failed {
		return nil
	}

	var rows []ComparisonRow

	if a.DurationSeconds > 0 && b.DurationSeconds > 0 && a.DurationSeconds != b.DurationSeconds {
		fast, slow := a, b
		if b.DurationSeconds < a.DurationSeconds {
			fast, slow = b, a
		}
		rows = append(rows, ComparisonRow{
			ID:     "SPEED",
			Title:  "Scan speed",
			Winner: fast.Label,
			Detail: fmt.Sprintf("%s was %.1fx faster than %s (%s vs %s)",
				fast.Label, slow.DurationSeconds/fast.DurationSeconds, slow.Label, fast.Duration, slow.Duration),
		})
	}

	if a.Total != b.Total {
		more, less := a, b
		if b.Total > a.Total {
			more, less = b, a
		}
		rows = append(rows, ComparisonRow{
			ID:     "ISSUES",
			Title:  "Issues reported",
			Winner: more.Label,
			Detail: fmt.Sprintf("%s reported %d issues, %s reported %d", more.Label, more.Total, less.Label, less.Total),
		})
	}

	if a.F1.Present && b.F1.Present && a.F1.Percent != b.F1.Percent {
		hi, lo := a, b
		if b.F1.Percent > a.F1.Percent {
			hi, lo = b, a
		}
		rows = append(rows, ComparisonRow{
			ID:     "F1",
			Title:  "Detection accuracy (F1)",
			Winner: hi.Label,
			Detail: fmt.Sprintf("%s %s vs %s %s", hi.Label, hi.F1.Text, lo.Label, lo.F1.Text),
		})
	}

	if a.Coverage != b.Coverage {
		hi, lo := a, b
		if b.Coverage > a.Coverage {
			hi, lo = b, a
		}
		rows = append(rows, ComparisonRow{
			ID:     "COVERAGE",
			Title:  "Code coverage",
			Winner: hi.Label,
			Detail: fmt.Sprintf("%s covered %s (%d files), %s covered %s (%d files)",
				hi.Label, hi.Detail.CoveragePercent, hi.Detail.FilesAnalyzed,
				lo.Label, lo.Detail.CoveragePercent, lo.Detail.FilesAnalyzed),
		})
	}

	return rows
}
