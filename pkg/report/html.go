package report

import (
	"fmt"
	"html/template"
	"os"
	"path/filepath"

	"github.com/uiflow/uiflow/pkg/runner"
)

// reportTemplate is the self-contained HTML report. Screenshot links are
// relative to the run directory so the file is portable with its run.
const reportTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}} — uiflow report</title>
<style>
  body { font-family: -apple-system, "Segoe UI", sans-serif; margin: 2rem; color: #1a1a2e; }
  h1 { font-size: 1.4rem; }
  .status-passed { color: #1a7f37; }
  .status-failed { color: #cf222e; }
  .status-skipped { color: #6e7781; }
  .summary { margin: 0.5rem 0 1.5rem; color: #57606a; }
  table { border-collapse: collapse; width: 100%; }
  th, td { text-align: left; padding: 0.45rem 0.7rem; border-bottom: 1px solid #d8dee4; font-size: 0.9rem; }
  tr.section-row td { background: #f6f8fa; font-weight: 600; }
  .failure-panel { background: #fff1f0; border: 1px solid #cf222e; border-radius: 6px; padding: 0.8rem 1rem; margin-top: 1.2rem; }
  .failure-panel pre { white-space: pre-wrap; margin: 0.3rem 0 0; }
  .duration { color: #57606a; white-space: nowrap; }
  a.screenshot { font-size: 0.85rem; }
</style>
</head>
<body>
<h1>{{.Title}} — <span class="status-{{.Status}}">{{.Status}}</span></h1>
<p class="summary">{{.Summary.Total}} steps · {{.Summary.Passed}} passed · {{.Summary.Failed}} failed · {{.Summary.Skipped}} skipped · {{printf "%.0f" .DurationMS}} ms · started {{.StartedAt}}</p>
<table>
  <tr><th>#</th><th>step</th><th>type</th><th>status</th><th>duration</th><th>screenshot</th></tr>
  {{$prevSection := ""}}
  {{range .Steps}}
    {{if and .Section (ne .Section $prevSection)}}
      <tr class="section-row"><td colspan="6">{{.Section}}</td></tr>
      {{$prevSection = .Section}}
    {{end}}
    <tr>
      <td>{{.StepIndex}}</td>
      <td>{{.StepName}}</td>
      <td>{{.StepType}}</td>
      <td class="status-{{.Status}}">{{.Status}}</td>
      <td class="duration">{{printf "%.0f" .DurationMS}} ms</td>
      <td>{{if .ScreenshotPath}}<a class="screenshot" href="{{.ScreenshotPath}}">{{.ScreenshotPath}}</a>{{end}}</td>
    </tr>
  {{end}}
</table>
{{range .Steps}}{{if eq .Status "failed"}}
<div class="failure-panel">
  <strong>Failed: {{.StepName}}</strong> ({{.StepType}}, step {{.StepIndex}})
  <pre>{{.Error}}</pre>
  {{range .Notes}}<pre>{{.}}</pre>{{end}}
  {{if .ScreenshotPath}}<p><a href="{{.ScreenshotPath}}">failure screenshot</a></p>{{end}}
</div>
{{end}}{{end}}
</body>
</html>
`

var htmlTmpl = template.Must(template.New("report").Parse(reportTemplate))

// WriteHTML writes report.html into outDir.
func WriteHTML(res *runner.ScenarioResult, outDir string) (string, error) {
	doc := buildDocument(res)
	path := filepath.Join(outDir, "report.html")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create report.html: %w", err)
	}
	defer f.Close()
	if err := htmlTmpl.Execute(f, doc); err != nil {
		return "", fmt.Errorf("render report.html: %w", err)
	}
	return path, nil
}
