package web

import (
	"html/template"

	"github.com/MOYARU/smarttest/internal/app/output"
	"github.com/MOYARU/smarttest/internal/app/scan"
	msges "github.com/MOYARU/smarttest/internal/messages"
	"github.com/MOYARU/smarttest/internal/report"
)

type stepView struct {
	Number int
	Label  string
	Status string
}

type dashboardData struct {
	Title    string
	IdleText string
	Server   string
	Running  bool
	Session  scan.Session
	Steps    []stepView
	View     *report.ViewModel
}

type detailData struct {
	Title string
	Tool  report.ToolView
}

func newDashboardData(server string, session scan.Session, running bool) dashboardData {
	d := dashboardData{
		Title:    msges.GetUIMessage("DashboardTitle"),
		IdleText: msges.GetUIMessage("DashboardIdle"),
		Server:   server,
		Running:  running,
		Session:  session,
		View:     session.View,
	}
	for step := scan.StepUpload; step <= scan.StepResults; step++ {
		d.Steps = append(d.Steps, stepView{
			Number: int(step),
			Label:  step.Label(),
			Status: session.StepStatus(step).String(),
		})
	}
	return d
}

// pageTemplates adds the dashboard pages to the report partials.
func pageTemplates() *template.Template {
	return template.Must(output.Templates().Parse(pagesTemplate))
}

const pagesTemplate = `
{{define "dashboard"}}<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{.Title}}</title>
    {{if .Running}}<meta http-equiv="refresh" content="2">{{end}}
    {{template "styles"}}
    <style>
        .steps { display: grid; grid-template-columns: repeat(4, 1fr); gap: 10px; list-style: none; padding: 0; }
        .step { border: 1px solid var(--line); border-radius: var(--radius-md); padding: 10px; color: var(--muted); }
        .step.active { border-color: var(--low); color: var(--low); }
        .step.completed { border-color: var(--ok); color: var(--ok); }
        .step.failed { border-color: var(--high); color: var(--high); }
        form { display: inline-block; margin-right: 12px; }
    </style>
</head>
<body>
    <div class="page">
    <div class="surface header">
        <h1>{{.Title}}</h1>
        <div class="header-meta">
            <p><strong>Backend:</strong> {{.Server}}</p>
            {{with .Session.Project}}<p><strong>Project:</strong> {{.}}</p>{{end}}
            <p><strong>State:</strong> <span id="state">{{.Session.State}}</span></p>
        </div>
    </div>

    <div class="surface" id="upload">
        <form method="post" action="/scan" enctype="multipart/form-data">
            <input type="file" name="files" multiple{{if .Running}} disabled{{end}}>
            <button type="submit"{{if .Running}} disabled{{end}}>Scan</button>
        </form>
        <form method="post" action="/runs/reset">
            <button type="submit"{{if .Running}} disabled{{end}}>Reset</button>
        </form>
    </div>

    <div class="surface">
        <ol class="steps" id="steps">
            {{range .Steps}}<li class="step {{.Status}}" id="step-{{.Number}}">{{.Number}}. {{.Label}} <span class="status">{{.Status}}</span></li>{{end}}
        </ol>
    </div>

    {{with .Session.Error}}<div class="surface error" id="run-error">{{.}}</div>{{end}}

    {{if .View}}
    {{template "tool-cards" .View}}
    {{template "comparison" .View}}
    <div class="surface" id="details">
        {{range .View.Tools}}<p><a href="/runs/current/details/{{.Tool}}">{{.Label}}</a></p>{{end}}
    </div>
    {{else if not .Session.RunID}}
    <div class="surface" id="idle">{{.IdleText}}</div>
    {{end}}
    </div>
</body>
</html>
{{end}}

{{define "detail"}}<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <title>{{.Title}} - {{.Tool.Label}}</title>
    {{template "styles"}}
</head>
<body>
    <div class="page">
    <p><a href="/">&larr; {{.Title}}</a></p>
    {{template "tool-detail" .Tool}}
    </div>
</body>
</html>
{{end}}
`
