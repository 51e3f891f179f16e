package output

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"github.com/MOYARU/smarttest/internal/client"
	"github.com/MOYARU/smarttest/internal/fileset"
	"github.com/MOYARU/smarttest/internal/report"
)

func sampleReport() RunReport {
	a := report.Succeeded(report.ToolSnykCode, &report.Metrics{Critical: 2, High: 1, TotalIssues: 3, ScanDuration: 1.5}, nil, nil)
	b := report.Failed(report.ToolDeepSource, "tool unavailable")
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	return RunReport{
		RunID:     "run-1",
		Server:    "http://localhost:5001",
		Project:   "proj1",
		State:     "done",
		StartTime: start,
		EndTime:   start.Add(3 * time.Second),
		Files:     []fileset.Entry{{Name: "app.py", Size: 1536}},
		Outcomes:  []report.ScanOutcome{a, b},
		View:      report.Build(a, b),
	}
}

func TestPrintResultsShowsBothTools(t *testing.T) {
	var buf bytes.Buffer
	PrintResults(&buf, sampleReport().View)
	out := buf.String()

	assert.Contains(t, out, "[Snyk Code]")
	assert.Contains(t, out, "1.50s")
	assert.Contains(t, out, "Total 3")
	assert.Contains(t, out, "[DeepSource]")
	assert.Contains(t, out, "DeepSource failed: tool unavailable")
	assert.Contains(t, out, "partial")
}

func TestPrintDetailAndProgress(t *testing.T) {
	var buf bytes.Buffer
	PrintDetail(&buf, sampleReport().View.Tools[1])
	assert.Contains(t, buf.String(), "Memory usage")
	assert.Contains(t, buf.String(), "0.00 MB")

	buf.Reset()
	PrintStepProgress(&buf, 2, 4, "Running Snyk Code scan", "running", false)
	assert.Contains(t, buf.String(), "25%")
	assert.False(t, strings.HasSuffix(buf.String(), "\n"))

	buf.Reset()
	PrintStepProgress(&buf, 4, 4, "Preparing results", "done", true)
	assert.Contains(t, buf.String(), "100%")
	assert.True(t, strings.HasSuffix(buf.String(), "\n"))
}

func TestPrintFileListAndProjects(t *testing.T) {
	var buf bytes.Buffer
	PrintFileList(&buf, fileset.New(fileset.FromBytes("main.go", make([]byte, 1536))))
	assert.Contains(t, buf.String(), "main.go")
	assert.Contains(t, buf.String(), "1.5 KB")

	buf.Reset()
	PrintProjects(&buf, &client.ProjectList{Projects: []client.ProjectInfo{{Name: "proj1", Exists: false, Path: "p"}}})
	assert.Contains(t, buf.String(), "proj1")
	assert.Contains(t, buf.String(), "missing")

	buf.Reset()
	PrintProjects(&buf, nil)
	assert.Contains(t, buf.String(), "no projects")
}

func TestSaveJSONReport(t *testing.T) {
	dir := t.TempDir()
	path, err := SaveJSONReport(dir, sampleReport())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(filepath.Base(path), "smarttest_report_proj1_"))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc struct {
		RunID string `json:"run_id"`
		View  struct {
			Tools []struct {
				Total    int    `json:"total_issues"`
				Duration string `json:"duration"`
				Error    string `json:"error"`
			} `json:"tools"`
		} `json:"view"`
	}
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Equal(t, "run-1", doc.RunID)
	require.Len(t, doc.View.Tools, 2)
	assert.Equal(t, 3, doc.View.Tools[0].Total)
	assert.Equal(t, "1.50s", doc.View.Tools[0].Duration)
	assert.Equal(t, "tool unavailable", doc.View.Tools[1].Error)
}

func TestRenderHTMLReport(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderHTMLReport(&buf, sampleReport()))

	doc, err := html.Parse(&buf)
	require.NoError(t, err)

	ids := map[string]*html.Node{}
	var titles []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			for _, a := range n.Attr {
				switch a.Key {
				case "id":
					ids[a.Val] = n
				case "title":
					titles = append(titles, a.Val)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	assert.Contains(t, ids, "tool-snyk")
	assert.Contains(t, ids, "tool-deepsource")
	assert.Contains(t, ids, "detail-snyk")
	assert.Contains(t, ids, "files")
	assert.Contains(t, titles, "tool unavailable")
}

func TestSaveHTMLReport(t *testing.T) {
	path, err := SaveHTMLReport(t.TempDir(), sampleReport())
	require.NoError(t, err)
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "Scan Comparison Report")
	assert.Contains(t, string(raw), "1.5 KB")
}
