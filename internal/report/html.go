package report

import (
	"bytes"
	"fmt"
	"html/template"
	"sort"
	"strings"

	"github.com/bl4ck0w1/sitelynx/pkg/models"
)

const htmlTemplateName = "report.html"

// HTMLRenderer turns a SiteReport into the self-contained HTML document that
// also serves as the PDF print source.
type HTMLRenderer struct {
	templates *reportTemplates
}

func NewHTMLRenderer() (*HTMLRenderer, error) {
	rt, err := newReportTemplates()
	if err != nil {
		return nil, err
	}
	return &HTMLRenderer{templates: rt}, nil
}

// LoadTemplateDir overrides the built-in template with operator-provided
// files. A file named report.html replaces the default document.
func (r *HTMLRenderer) LoadTemplateDir(dir string) error {
	return r.templates.OverrideFromDir(dir)
}

func (r *HTMLRenderer) Render(report *models.SiteReport) ([]byte, error) {
	t, ok := r.templates.lookup(htmlTemplateName)
	if !ok {
		return nil, fmt.Errorf("template %q not registered", htmlTemplateName)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, buildView(report)); err != nil {
		return nil, fmt.Errorf("render report: %w", err)
	}
	return buf.Bytes(), nil
}

type issueCount struct {
	Kind  models.IssueKind
	Count int
}

type duplicateGroup struct {
	Value string
	URLs  []string
}

type reportView struct {
	*models.SiteReport
	IssueCounts     []issueCount
	DuplicateTitles []duplicateGroup
	DuplicateMetas  []duplicateGroup
	Grades          []string
	WorstPages      []models.PageRecord
}

func buildView(report *models.SiteReport) *reportView {
	v := &reportView{
		SiteReport: report,
		Grades:     []string{"A", "B", "C", "D", "F"},
		WorstPages: WorstPages(report.Pages, 10),
	}
	for kind, n := range report.Summary.IssueCounts {
		v.IssueCounts = append(v.IssueCounts, issueCount{kind, n})
	}
	sort.Slice(v.IssueCounts, func(i, j int) bool {
		if v.IssueCounts[i].Count != v.IssueCounts[j].Count {
			return v.IssueCounts[i].Count > v.IssueCounts[j].Count
		}
		return v.IssueCounts[i].Kind < v.IssueCounts[j].Kind
	})
	v.DuplicateTitles = sortedGroups(report.Summary.DuplicateTitles)
	v.DuplicateMetas = sortedGroups(report.Summary.DuplicateMetaDescriptions)
	return v
}

func sortedGroups(groups map[string][]string) []duplicateGroup {
	out := make([]duplicateGroup, 0, len(groups))
	for value, urls := range groups {
		out = append(out, duplicateGroup{value, urls})
	}
	sort.Slice(out, func(i, j int) bool {
		if len(out[i].URLs) != len(out[j].URLs) {
			return len(out[i].URLs) > len(out[j].URLs)
		}
		return out[i].Value < out[j].Value
	})
	return out
}

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"gradeClass": func(grade string) string {
			return "grade-" + strings.ToLower(grade)
		},
		"label": func(kind models.IssueKind) string {
			return strings.ReplaceAll(string(kind), "_", " ")
		},
		"issueList": func(issues []models.Issue) string {
			parts := make([]string, len(issues))
			for i, is := range issues {
				parts[i] = string(is.Kind)
			}
			return strings.Join(parts, ", ")
		},
	}
}

const reportTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>SiteLynx Audit &mdash; {{.StartURL}}</title>
<style>
  body { font-family: -apple-system, "Segoe UI", Roboto, sans-serif; margin: 2rem; color: #1c1e21; }
  h1 { font-size: 1.5rem; } h2 { font-size: 1.15rem; margin-top: 2rem; }
  .meta { color: #606770; font-size: 0.85rem; }
  .state-aborted { color: #b00020; font-weight: 600; }
  .cards { display: flex; gap: 1rem; flex-wrap: wrap; margin: 1rem 0; }
  .card { border: 1px solid #dadde1; border-radius: 8px; padding: 0.75rem 1.25rem; min-width: 9rem; }
  .card .num { font-size: 1.6rem; font-weight: 700; }
  table { border-collapse: collapse; width: 100%; font-size: 0.85rem; }
  th, td { border: 1px solid #dadde1; padding: 0.35rem 0.6rem; text-align: left; vertical-align: top; }
  th { background: #f0f2f5; }
  td.url { word-break: break-all; max-width: 24rem; }
  .grade-a { color: #1b7f37; font-weight: 700; } .grade-b { color: #5a9216; font-weight: 700; }
  .grade-c { color: #b58900; font-weight: 700; } .grade-d { color: #d2691e; font-weight: 700; }
  .grade-f { color: #b00020; font-weight: 700; }
  .bar { display: inline-block; height: 0.8rem; background: #4267b2; vertical-align: middle; }
</style>
</head>
<body>
<h1>SiteLynx Audit Report</h1>
<p class="meta">
  {{.StartURL}} &middot; run {{.RunID}} &middot; generated {{.GeneratedAt.Format "2006-01-02 15:04:05 MST"}}
  {{if ne .State "completed"}}&middot; <span class="state-aborted">{{.State}} (partial results)</span>{{end}}
</p>

<div class="cards">
  <div class="card"><div class="num">{{.Summary.PagesCrawled}}</div>pages crawled</div>
  <div class="card"><div class="num">{{.Summary.PagesFailed}}</div>fetch failures</div>
  <div class="card"><div class="num">{{.Summary.NonIndexable}}</div>non-indexable</div>
  <div class="card"><div class="num">{{printf "%.1f" .Security.MeanScore}}</div>mean security score</div>
</div>

<h2>Security grades</h2>
<table>
  <tr><th>Grade</th><th>Pages</th><th></th></tr>
  {{$hist := .Security.GradeHistogram}}
  {{range .Grades}}
  <tr>
    <td class="{{gradeClass .}}">{{.}}</td>
    <td>{{index $hist .}}</td>
    <td><span class="bar" style="width: {{index $hist . | printf "%d"}}rem"></span></td>
  </tr>
  {{end}}
</table>
<p class="meta">Scores range {{.Security.MinScore}}&ndash;{{.Security.MaxScore}}.</p>

{{if .IssueCounts}}
<h2>Issues by kind</h2>
<table>
  <tr><th>Issue</th><th>Pages affected</th></tr>
  {{range .IssueCounts}}<tr><td>{{label .Kind}}</td><td>{{.Count}}</td></tr>{{end}}
</table>
{{end}}

{{if .DuplicateTitles}}
<h2>Duplicate titles</h2>
<table>
  <tr><th>Title</th><th>Pages</th></tr>
  {{range .DuplicateTitles}}
  <tr><td>{{.Value}}</td><td class="url">{{range .URLs}}{{.}}<br>{{end}}</td></tr>
  {{end}}
</table>
{{end}}

{{if .DuplicateMetas}}
<h2>Duplicate meta descriptions</h2>
<table>
  <tr><th>Description</th><th>Pages</th></tr>
  {{range .DuplicateMetas}}
  <tr><td>{{.Value}}</td><td class="url">{{range .URLs}}{{.}}<br>{{end}}</td></tr>
  {{end}}
</table>
{{end}}

{{if .WorstPages}}
<h2>Pages needing attention</h2>
<table>
  <tr><th>URL</th><th>Score</th><th>Issues</th></tr>
  {{range .WorstPages}}
  <tr>
    <td class="url">{{.URL}}</td>
    <td class="{{gradeClass .Security.Grade}}">{{.Security.Score}} ({{.Security.Grade}})</td>
    <td>{{issueList .Issues}}</td>
  </tr>
  {{end}}
</table>
{{end}}

<h2>All pages</h2>
<table>
  <tr><th>URL</th><th>Depth</th><th>Status</th><th>Score</th><th>Inbound</th><th>Issues</th></tr>
  {{range .Pages}}
  <tr>
    <td class="url">{{.URL}}</td>
    <td>{{.Depth}}</td>
    <td>{{if .FetchError}}error{{else}}{{.StatusCode}}{{end}}</td>
    <td>{{if .FetchError}}&mdash;{{else}}<span class="{{gradeClass .Security.Grade}}">{{.Security.Score}}</span>{{end}}</td>
    <td>{{.InboundLinkCount}}</td>
    <td>{{issueList .Issues}}</td>
  </tr>
  {{end}}
</table>
</body>
</html>
`
