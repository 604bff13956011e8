package render

import "html/template"

const css = `
body, html { margin: 0; padding: 0; font-family: 'Century Gothic', CenturyGothic, AppleGothic, sans-serif; background: #f3f4f6; color: #0f172a; }
header { background: linear-gradient(135deg, #1e3a8a, #0ea5e9); color: #fff; display: flex; align-items: center; gap: 18px; padding: 10px 20px; flex-wrap: wrap; }
header h1 { margin: 0; font-size: 1.5rem; }
header a { color: inherit; text-decoration: none; font-weight: 600; }
.wrap { max-width: 1100px; margin: 0 auto; padding: 22px 16px 40px; box-sizing: border-box; }
.card { background: #fff; border: 1px solid #e5e7eb; border-radius: 12px; box-shadow: 0 2px 6px rgba(15, 23, 42, .08); overflow: hidden; }
.top { display: grid; grid-template-columns: 1fr 1.2fr; gap: 18px; padding: 18px; align-items: start; }
@media (max-width: 900px) { .top { grid-template-columns: 1fr; } }
.media img { width: 100%; height: 360px; object-fit: cover; border-radius: 10px; display: block; }
.desc { color: #6b7280; line-height: 1.6; }
.meta { display: flex; flex-wrap: wrap; gap: 8px; margin: 10px 0 0; }
.pill { padding: 5px 10px; border-radius: 999px; background: #f3f4f6; border: 1px solid #e5e7eb; font-size: .85rem; white-space: nowrap; }
.pill b { color: #1e3a8a; }
.price { font-weight: bold; font-size: 1.1rem; color: #1e3a8a; }
.section { padding: 0 18px 18px; }
.section h2 { margin: 18px 0 10px; font-size: 1.1rem; color: #1e3a8a; }
.tech { width: 100%; border-collapse: collapse; border: 1px solid #e5e7eb; }
.tech td { padding: 10px 12px; border-bottom: 1px solid #e5e7eb; }
.tech td:first-child { width: 34%; font-weight: bold; background: #f8fafc; }
ul.index li { margin: 8px 0; }
footer { text-align: center; padding: 12px 0; margin-top: 20px; background: linear-gradient(135deg, #152a60, #0a70a0); color: #fff; }
`

var productTmpl = template.Must(template.New("product").Parse(`<!doctype html>
<html lang="{{.Lang}}">
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>{{.Title}}</title>
  <meta name="description" content="{{.Description}}">
  <style>` + css + `</style>
</head>
<body>
<header>
  <h1>{{.Site}}</h1>
  <a href="index.html">Volver</a>
</header>
<div class="wrap">
  <div class="card">
    <div class="top">
      <div class="media">{{if .Image}}<img src="{{.Image}}" alt="{{.Name}}">{{end}}</div>
      <div>
        <h2 class="title">{{.Name}}</h2>
        <p class="desc">{{.Summary}}</p>
        {{- if .Meta}}
        <div class="meta">{{range .Meta}}<span class="pill"><b>{{.Label}}:</b> {{.Value}}</span>{{end}}</div>
        {{- end}}
        <p class="price">Precio: {{.Price}}</p>
      </div>
    </div>
    <div class="section">
      {{- if .Bullets}}
      <h2>Características</h2>
      <ul class="bullets">{{range .Bullets}}<li>{{.}}</li>{{end}}</ul>
      {{- end}}
      {{- if .Tags}}
      <div class="meta">{{range .Tags}}<span class="pill">{{.}}</span>{{end}}</div>
      {{- end}}
      {{- if .Tech}}
      <h2>Ficha técnica</h2>
      <table class="tech">{{range .Tech}}<tr><td>{{.Label}}</td><td>{{.Value}}</td></tr>{{end}}</table>
      {{- end}}
      {{- if .FAQ}}
      <h2>Preguntas frecuentes</h2>
      <dl class="faq">{{range .FAQ}}<dt>{{.Q}}</dt><dd>{{.A}}</dd>{{end}}</dl>
      {{- end}}
    </div>
  </div>
</div>
<footer>{{.Footer}}</footer>
</body>
</html>
`))

var indexTmpl = template.Must(template.New("index").Parse(`<!doctype html>
<html lang="{{.Lang}}">
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>{{.Site}}</title>
  <style>` + css + `</style>
</head>
<body>
<header><h1>{{.Site}}</h1></header>
<div class="wrap">
  <div class="card section">
    <ul class="index">
    {{- range .Entries}}
      <li><a href="{{.File}}">{{.Name}}</a> <span class="pill">{{.Domain}}</span><br><span class="desc">{{.Summary}}</span></li>
    {{- end}}
    </ul>
  </div>
</div>
<footer>{{.Footer}}</footer>
</body>
</html>
`))
