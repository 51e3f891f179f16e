package output

import (
	"fmt"
	"html/template"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/MOYARU/smarttest/internal/fileset"
	msges "github.com/MOYARU/smarttest/internal/messages"
)

// HTMLReportData feeds the "report" template.
type HTMLReportData struct {
	RunReport
	ScanTime string
	Duration string

	UITitle    string
	UIServer   string
	UIProject  string
	UIScanTime string
	UIDuration string
	UIFiles    string
}

var templateFuncs = template.FuncMap{
	"formatSize": fileset.FormatSize,
	"barWidth": func(percent float64) float64 {
		if percent > 100 {
			return 100
		}
		return percent
	},
	"dict": func(kv ...any) map[string]any {
		m := make(map[string]any, len(kv)/2)
		for i := 0; i+1 < len(kv); i += 2 {
			m[fmt.Sprint(kv[i])] = kv[i+1]
		}
		return m
	},
}

// Templates returns a fresh copy of the shared result partials
// ("styles", "tool-cards", "tool-detail", "comparison", "report") so
// callers can add their own pages on top.
func Templates() *template.Template {
	return template.Must(template.New("partials").Funcs(templateFuncs).Parse(partialsTemplate))
}

func RenderHTMLReport(w io.Writer, rep RunReport) error {
	data := HTMLReportData{
		RunReport:  rep,
		ScanTime:   rep.StartTime.Format("2006-01-02 15:04:05"),
		Duration:   rep.EndTime.Sub(rep.StartTime).Round(10 * time.Millisecond).String(),
		UITitle:    msges.GetUIMessage("HTMLReportTitle"),
		UIServer:   msges.GetUIMessage("HTMLServer"),
		UIProject:  msges.GetUIMessage("HTMLProject"),
		UIScanTime: msges.GetUIMessage("HTMLScanTime"),
		UIDuration: msges.GetUIMessage("HTMLDuration"),
		UIFiles:    msges.GetUIMessage("HTMLFiles"),
	}
	return Templates().ExecuteTemplate(w, "report", data)
}

// SaveHTMLReport writes rep as a standalone HTML page into dir.
func SaveHTMLReport(dir string, rep RunReport) (string, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	filename := filepath.Join(dir, reportFilename(rep.Project, "html", time.Now()))

	f, err := os.Create(filename)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if err := RenderHTMLReport(f, rep); err != nil {
		return "", fmt.Errorf("failed to render html report: %w", err)
	}
	return filename, nil
}

const partialsTemplate = `
{{define "styles"}}
    <style>
        :root {
            --bg: #ffffff;
            --surface-soft: #fbfcfe;
            --text: #16324d;
            --muted: #5b738c;
            --line: #d9e1ea;
            --critical: #8e24aa;
            --high: #d64545;
            --medium: #e6a900;
            --low: #1d6eea;
            --ok: #2d7f4a;
            --radius-lg: 16px;
            --radius-md: 12px;
            --shadow-1: 0 8px 20px rgba(16, 53, 88, 0.08);
        }
        * { box-sizing: border-box; }
        body {
            font-family: "Segoe UI", "Inter", "Helvetica Neue", Arial, sans-serif;
            line-height: 1.6;
            color: var(--text);
            margin: 0;
            padding: 28px 16px 40px;
            background: var(--bg);
        }
        .page { max-width: 1240px; margin: 0 auto; }
        h1, h2, h3 { margin: 0; color: #0b3d6e; }
        .surface {
            border: 1px solid var(--line);
            border-radius: var(--radius-lg);
            box-shadow: var(--shadow-1);
            padding: 22px;
            margin-bottom: 20px;
        }
        .header-meta {
            display: grid;
            grid-template-columns: repeat(auto-fit, minmax(240px, 1fr));
            gap: 8px 16px;
            margin-top: 12px;
            color: var(--muted);
        }
        .tools { display: grid; grid-template-columns: 1fr 1fr; gap: 20px; }
        .tool { border-top: 4px solid var(--ok); }
        .tool.failed { border-top-color: var(--high); }
        .status { font-weight: 700; }
        .tool.failed .status { color: var(--high); }
        .counts { display: grid; grid-template-columns: repeat(5, 1fr); gap: 8px; margin: 14px 0; text-align: center; }
        .counts div { border: 1px solid var(--line); border-radius: var(--radius-md); padding: 8px; background: var(--surface-soft); }
        .counts strong { display: block; font-size: 1.5rem; }
        .critical strong { color: var(--critical); }
        .high strong { color: var(--high); }
        .medium strong { color: var(--medium); }
        .low strong { color: var(--low); }
        .bar { background: #eef3f8; border-radius: 999px; height: 10px; overflow: hidden; }
        .bar span { display: block; height: 100%; background: var(--low); }
        .badge-row { display: grid; grid-template-columns: 90px 1fr 60px; gap: 8px; align-items: center; margin: 4px 0; }
        .error { margin-top: 10px; padding: 10px; border-left: 5px solid var(--high); background: #fff1f1; }
        .hint { margin-top: 6px; color: var(--muted); }
        table { width: 100%; border-collapse: collapse; margin-top: 10px; font-size: .95rem; }
        th, td { border-bottom: 1px solid #e7edf4; padding: 6px 10px; text-align: right; }
        th:first-child, td:first-child { text-align: left; }
        thead th { background: #f5f9fd; color: #285b8a; }
        .files { max-height: 220px; overflow-y: auto; font-family: monospace; font-size: .9em; }
        @media (max-width: 900px) { .tools { grid-template-columns: 1fr; } }
    </style>
{{end}}

{{define "badge"}}
            <div class="badge-row"><span>{{.Name}}</span><div class="bar">{{if .Badge.Present}}<span style="width: {{barWidth .Badge.Percent}}%"></span>{{end}}</div><strong>{{.Badge.Text}}</strong></div>
{{end}}

{{define "tool-cards"}}
    <div class="tools">
        {{range .Tools}}
        <div class="tool surface{{if .Failed}} failed{{end}}" id="tool-{{.Tool}}">
            <h2>{{.Label}}</h2>
            <p><span class="status"{{if .Failed}} title="{{.Error}}"{{end}}>{{.Status}}</span> &middot; {{.Duration}}</p>
            <div class="counts">
                <div class="critical"><strong>{{.Critical}}</strong>Critical</div>
                <div class="high"><strong>{{.High}}</strong>High</div>
                <div class="medium"><strong>{{.Medium}}</strong>Medium</div>
                <div class="low"><strong>{{.Low}}</strong>Low</div>
                <div class="total"><strong>{{.Total}}</strong>Total</div>
            </div>
            {{template "badge" (dict "Name" "Precision" "Badge" .Precision)}}
            {{template "badge" (dict "Name" "Recall" "Badge" .Recall)}}
            {{template "badge" (dict "Name" "F1" "Badge" .F1)}}
            {{if .Failed}}
            <div class="error">{{.Error}}</div>
            {{if .Hint}}<div class="hint">{{.Hint}}</div>{{end}}
            {{end}}
        </div>
        {{end}}
    </div>
{{end}}

{{define "tool-detail"}}
    <div class="surface detail" id="detail-{{.Tool}}">
        <h3>{{.Label}}</h3>
        <table>
            <thead><tr><th>Basic metrics</th><th></th></tr></thead>
            <tbody>
                <tr><td>Critical</td><td>{{.Critical}}</td></tr>
                <tr><td>High</td><td>{{.High}}</td></tr>
                <tr><td>Medium</td><td>{{.Medium}}</td></tr>
                <tr><td>Low</td><td>{{.Low}}</td></tr>
                <tr><td>Total issues</td><td>{{.Total}}</td></tr>
                <tr><td>Scan duration</td><td>{{.Duration}}</td></tr>
            </tbody>
        </table>
        <table>
            <thead><tr><th>Defect detection accuracy</th><th></th></tr></thead>
            <tbody>
                <tr><td>Precision</td><td>{{.Detail.Precision}}</td></tr>
                <tr><td>Recall</td><td>{{.Detail.Recall}}</td></tr>
                <tr><td>F1 score</td><td>{{.Detail.F1Score}}</td></tr>
                <tr><td>True positives</td><td>{{.Detail.TruePositives}}</td></tr>
                <tr><td>False positives</td><td>{{.Detail.FalsePositives}}</td></tr>
                <tr><td>False negatives</td><td>{{.Detail.FalseNegatives}}</td></tr>
                <tr><td>False positive rate</td><td>{{.Detail.FalsePositiveRate}}</td></tr>
            </tbody>
        </table>
        <table>
            <thead><tr><th>Code coverage</th><th></th></tr></thead>
            <tbody>
                <tr><td>Coverage</td><td>{{.Detail.CoveragePercent}}</td></tr>
                <tr><td>Files analyzed</td><td>{{.Detail.FilesAnalyzed}}</td></tr>
                <tr><td>Lines analyzed</td><td>{{.Detail.LinesAnalyzed}}</td></tr>
            </tbody>
        </table>
        <table>
            <thead><tr><th>Operational efficiency</th><th></th></tr></thead>
            <tbody>
                <tr><td>Average scan time</td><td>{{.Detail.AverageScanTime}}</td></tr>
                <tr><td>CPU usage</td><td>{{.Detail.CPUUsage}}</td></tr>
                <tr><td>Memory usage</td><td>{{.Detail.MemoryUsage}}</td></tr>
                <tr><td>Code quality score</td><td>{{.Detail.CodeQualityScore}}</td></tr>
            </tbody>
        </table>
    </div>
{{end}}

{{define "comparison"}}
    {{if .Comparison}}
    <div class="surface" id="comparison">
        <h3>Comparison</h3>
        <table>
            <thead><tr><th>Aspect</th><th>Leader</th><th>Detail</th></tr></thead>
            <tbody>
                {{range .Comparison}}
                <tr><td>{{.Title}}</td><td>{{.Winner}}</td><td>{{.Detail}}</td></tr>
                {{end}}
            </tbody>
        </table>
    </div>
    {{end}}
{{end}}

{{define "report"}}<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{.UITitle}} - {{.Project}}</title>
    {{template "styles"}}
</head>
<body>
    <div class="page">
    <div class="surface header">
        <h1>{{.UITitle}}</h1>
        <div class="header-meta">
            <p><strong>{{.UIServer}}:</strong> {{.Server}}</p>
            <p><strong>{{.UIProject}}:</strong> {{.Project}}</p>
            <p><strong>{{.UIScanTime}}:</strong> {{.ScanTime}}</p>
            <p><strong>{{.UIDuration}}:</strong> {{.Duration}}</p>
        </div>
    </div>

    {{template "tool-cards" .View}}
    {{template "comparison" .View}}
    {{range .View.Tools}}{{template "tool-detail" .}}{{end}}

    <div class="surface" id="files">
        <h3>{{.UIFiles}} ({{len .Files}})</h3>
        <div class="files">
            <ul>
                {{range .Files}}<li>{{.Name}} ({{formatSize .Size}})</li>{{end}}
            </ul>
        </div>
    </div>
    </div>
</body>
</html>
{{end}}
`
