package generateemailtemplate

import (
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"
)

var funcs = map[string]interface{}{
	"join": strings.Join,
	"inc":  func(i int) int { return i + 1 },
}

var htmlTemplate = htmltemplate.Must(htmltemplate.New("newsletter.html").Funcs(funcs).Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>{{.Title}}</title>
<style>
body { font-family: 'Segoe UI', Tahoma, Geneva, Verdana, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; background-color: #f4f4f4; }
.container { background-color: #ffffff; border-radius: 10px; padding: 30px; }
.header { text-align: center; margin-bottom: 30px; padding-bottom: 20px; border-bottom: 3px solid #3498db; }
.header h1 { color: #2c3e50; margin: 0; font-size: 28px; }
.stats { background: #ecf0f1; padding: 15px; border-radius: 8px; margin: 20px 0; text-align: center; }
.section h2 { color: #34495e; border-left: 4px solid #3498db; padding-left: 15px; }
.trend { display: inline-block; background: #eaf4fb; border-radius: 12px; padding: 2px 10px; margin: 2px; }
.news-item { background: #f8f9fa; padding: 20px; margin: 15px 0; border-radius: 8px; border-left: 4px solid #3498db; }
.news-title { font-weight: bold; color: #2c3e50; margin-bottom: 10px; }
.news-source { color: #7f8c8d; font-size: 12px; font-style: italic; }
.news-link { color: #3498db; text-decoration: none; font-weight: bold; }
.footer { margin-top: 40px; padding-top: 20px; border-top: 1px solid #ddd; text-align: center; color: #7f8c8d; font-size: 14px; }
</style>
</head>
<body>
<div class="container">
  <div class="header">
    <h1>Your Daily News Summary</h1>
    <p>News curation for {{join .Topics ", "}}</p>
  </div>
  <div class="greeting">{{.Greeting}}</div>
  <div class="stats">
    <p><strong>Today's Summary</strong></p>
    <p>Topics: {{join .Topics ", "}}</p>
    <p>News items: {{.NewsCount}}</p>
    <p>Generated: {{.GeneratedAt}}</p>
    {{- if .Sources}}
    <p>Sources used: {{join .Sources ", "}}</p>
    {{- end}}
  </div>
  <div class="section">
    <h2>Summary</h2>
    {{- range .Paragraphs}}
    <p>{{.}}</p>
    {{- end}}
  </div>
  {{- if or .Trends .Keywords}}
  <div class="section">
    <h2>Trending Topics</h2>
    <p>
    {{- range .Trends}}
      <span class="trend">{{.Topic}} ({{.Count}})</span>
    {{- end}}
    {{- range .Keywords}}
      <span class="trend">{{.Topic}} ({{.Count}})</span>
    {{- end}}
    </p>
  </div>
  {{- end}}
  {{- if .Stories}}
  <div class="section">
    <h2>Top Stories</h2>
    {{- range .Stories}}
    <div class="news-item">
      <div class="news-title">{{.Title}}</div>
      {{- if .Summary}}
      <div class="news-summary">{{.Summary}}</div>
      {{- end}}
      <div class="news-source">Source: {{.Source}}</div>
      {{- if .URL}}
      <a href="{{.URL}}" class="news-link" target="_blank">Read more</a>
      {{- end}}
    </div>
    {{- end}}
  </div>
  {{- end}}
  <div class="footer">
    <p>Generated by {{.AppName}}</p>
    <p>This newsletter was personalized for: {{join .Topics ", "}}</p>
  </div>
</div>
</body>
</html>
`))

var textTemplate = texttemplate.Must(texttemplate.New("newsletter.txt").Funcs(funcs).Parse(`Your Daily News Summary
=======================

{{.Greeting}}

Topics: {{join .Topics ", "}}
News items: {{.NewsCount}}
Generated: {{.GeneratedAt}}
{{- if .Sources}}
Sources used: {{join .Sources ", "}}
{{- end}}

SUMMARY
{{- range .Paragraphs}}

{{.}}
{{- end}}
{{- if or .Trends .Keywords}}

TRENDING TOPICS
{{- range .Trends}}
- {{.Topic}}: {{.Count}}
{{- end}}
{{- range .Keywords}}
- {{.Topic}}: {{.Count}}
{{- end}}
{{- end}}
{{- if .Stories}}

TOP STORIES
{{- range $i, $s := .Stories}}

{{inc $i}}. {{$s.Title}}
{{- if $s.Summary}}
   {{$s.Summary}}
{{- end}}
   Source: {{$s.Source}}
{{- if $s.URL}}
   Read more: {{$s.URL}}
{{- end}}
{{- end}}
{{- end}}

--
Generated by {{.AppName}}
`))
