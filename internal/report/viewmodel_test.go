package report

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(v float64) *float64 { return &v }

func TestBuildIsTotal(t *testing.T) {
	success := Succeeded(ToolSnykCode, &Metrics{TotalIssues: 4, ScanDuration: 2}, nil, nil)
	failure := Failed(ToolDeepSource, "boom")

	cases := []struct {
		name string
		a, b ScanOutcome
	}{
		{"success/success", success, Succeeded(ToolDeepSource, nil, nil, nil)},
		{"success/failure", success, failure},
		{"failure/success", Failed(ToolSnykCode, ""), Succeeded(ToolDeepSource, nil, nil, nil)},
		{"failure/failure", Failed(ToolSnykCode, "x"), failure},
		{"zero values", ScanOutcome{}, ScanOutcome{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			vm := Build(tc.a, tc.b)
			require.Len(t, vm.Tools, 2)
			for _, tv := range vm.Tools {
				assert.NotEmpty(t, tv.Label)
				assert.NotEmpty(t, tv.Status)
				assert.NotEmpty(t, tv.Duration)
				assert.NotEmpty(t, tv.Precision.Text)
				assert.NotEmpty(t, tv.Detail.MemoryUsage)
				if tv.Failed {
					assert.NotEmpty(t, tv.Error)
					assert.Zero(t, tv.Total)
				}
			}
			assert.Equal(t, vm.Tools[0].Failed || vm.Tools[1].Failed, vm.Degraded)
		})
	}
}

func TestBuildDefaultsFormatAsZero(t *testing.T) {
	vm := Build(Succeeded(ToolSnykCode, nil, nil, nil), Succeeded(ToolDeepSource, &Metrics{}, &AdvancedMetrics{}, nil))
	for _, tv := range vm.Tools {
		assert.Equal(t, StatusSuccess, tv.Status)
		assert.Equal(t, "0.00s", tv.Duration)
		assert.Equal(t, "0.0%", tv.Precision.Text)
		assert.Equal(t, "0.0%", tv.Recall.Text)
		assert.Equal(t, "0.0%", tv.F1.Text)
		assert.False(t, tv.F1.Present)
		assert.Equal(t, "0.00%", tv.Detail.Precision)
		assert.Equal(t, "0.00%", tv.Detail.CoveragePercent)
		assert.Equal(t, "0.00s", tv.Detail.AverageScanTime)
		assert.Equal(t, "0.00 MB", tv.Detail.MemoryUsage)
		assert.Equal(t, "n/a", tv.Detail.CodeQualityScore)
	}
	assert.Equal(t, "Snyk Code", vm.Tools[0].Label)
	assert.Equal(t, "DeepSource", vm.Tools[1].Label)
}

func TestBuildPartialFailureScenario(t *testing.T) {
	a := Succeeded(ToolSnykCode, &Metrics{Critical: 2, High: 1, TotalIssues: 3, ScanDuration: 1.5}, nil, nil)
	b := Failed(ToolDeepSource, "tool unavailable")

	vm := Build(a, b)

	snyk, deep := vm.Tools[0], vm.Tools[1]
	assert.False(t, snyk.Failed)
	assert.Equal(t, 3, snyk.Total)
	assert.Equal(t, 2, snyk.Critical)
	assert.Equal(t, "1.50s", snyk.Duration)

	assert.True(t, deep.Failed)
	assert.Equal(t, StatusError, deep.Status)
	assert.Equal(t, "tool unavailable", deep.Error)
	assert.Zero(t, deep.Critical+deep.High+deep.Medium+deep.Low+deep.Total)
	assert.Equal(t, "0.00s", deep.Duration)
	assert.True(t, vm.Degraded)
	assert.Empty(t, vm.Comparison)
}

func TestBuildFormatsAdvancedMetrics(t *testing.T) {
	adv := &AdvancedMetrics{
		DefectDetectionAccuracy: &DetectionAccuracy{
			Precision: ptr(2.0 / 3.0), Recall: ptr(0.5), F1Score: ptr(0.5714),
			TruePositives: 2, FalsePositives: 1, FalseNegatives: 2,
		},
		CodeCoverage:          &CodeCoverage{Percent: 87.5, FilesAnalyzed: 12, LinesAnalyzed: 900},
		OperationalEfficiency: &OperationalEfficiency{AverageScanTime: 3.456, CPUUsagePercent: 41.25, MemoryUsageMB: 128},
		FalsePositiveRate:     ptr(0.25),
		CodeQualityScore:      ptr(7.5),
	}
	vm := Build(Succeeded(ToolSnykCode, &Metrics{TotalIssues: 3}, adv, nil), Failed(ToolDeepSource, ""))

	tv := vm.Tools[0]
	assert.True(t, tv.Precision.Present)
	assert.Equal(t, "66.7%", tv.Precision.Text)
	assert.InDelta(t, 66.7, tv.Precision.Percent, 1e-9)
	assert.Equal(t, "50.0%", tv.Recall.Text)
	assert.Equal(t, "57.1%", tv.F1.Text)

	d := tv.Detail
	assert.Equal(t, "66.67%", d.Precision)
	assert.Equal(t, "25.00%", d.FalsePositiveRate)
	assert.Equal(t, 2, d.TruePositives)
	assert.Equal(t, 1, d.FalsePositives)
	assert.Equal(t, 2, d.FalseNegatives)
	assert.Equal(t, "87.50%", d.CoveragePercent)
	assert.Equal(t, 12, d.FilesAnalyzed)
	assert.Equal(t, 900, d.LinesAnalyzed)
	assert.Equal(t, "3.46s", d.AverageScanTime)
	assert.Equal(t, "41.25%", d.CPUUsage)
	assert.Equal(t, "128.00 MB", d.MemoryUsage)
	assert.Equal(t, "7.50", d.CodeQualityScore)

	assert.Equal(t, "DeepSource scan failed", vm.Tools[1].Error)
}

func TestBuildClampsInvalidNumbers(t *testing.T) {
	m := &Metrics{Critical: -1, TotalIssues: -5, ScanDuration: math.NaN()}
	adv := &AdvancedMetrics{DefectDetectionAccuracy: &DetectionAccuracy{Precision: ptr(math.Inf(1))}}
	tv := Build(Succeeded(ToolSnykCode, m, adv, nil), ScanOutcome{}).Tools[0]

	assert.Zero(t, tv.Critical)
	assert.Zero(t, tv.Total)
	assert.Equal(t, "0.00s", tv.Duration)
	assert.Equal(t, "0.0%", tv.Precision.Text)
}

func TestBuildSnykCLIHint(t *testing.T) {
	vm := Build(Failed(ToolSnykCode, "Snyk CLI not found on PATH"), Failed(ToolDeepSource, "x"))
	assert.Contains(t, vm.Tools[0].Hint, "npm install -g snyk")
	assert.Empty(t, vm.Tools[1].Hint)
}

func TestBuildComparison(t *testing.T) {
	a := Succeeded(ToolSnykCode, &Metrics{TotalIssues: 5, ScanDuration: 4}, &AdvancedMetrics{
		DefectDetectionAccuracy: &DetectionAccuracy{F1Score: ptr(0.8)},
		CodeCoverage:            &CodeCoverage{Percent: 60, FilesAnalyzed: 3},
	}, nil)
	b := Succeeded(ToolDeepSource, &Metrics{TotalIssues: 2, ScanDuration: 1}, &AdvancedMetrics{
		DefectDetectionAccuracy: &DetectionAccuracy{F1Score: ptr(0.5)},
		CodeCoverage:            &CodeCoverage{Percent: 90, FilesAnalyzed: 3},
	}, nil)

	rows := Build(a, b).Comparison
	byID := map[string]ComparisonRow{}
	for _, r := range rows {
		byID[r.ID] = r
	}
	require.Len(t, byID, 4)
	assert.Equal(t, "DeepSource", byID["SPEED"].Winner)
	assert.Contains(t, byID["SPEED"].Detail, "4.0x faster")
	assert.Equal(t, "Snyk Code", byID["ISSUES"].Winner)
	assert.Equal(t, "Snyk Code", byID["F1"].Winner)
	assert.Equal(t, "DeepSource", byID["COVERAGE"].Winner)
}

func TestFailedUsesToolDefault(t *testing.T) {
	assert.Equal(t, "Snyk Code scan failed", Failed(ToolSnykCode, "  ").Error)
	assert.Equal(t, "DeepSource scan failed", Failed(ToolDeepSource, "").Error)
	assert.False(t, ScanOutcome{}.Success)
}
