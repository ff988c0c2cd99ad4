package export

import (
	"bytes"
	"html/template"
	"strings"
	"time"
)

var handoutTemplate = template.Must(
	template.New("handout").Funcs(template.FuncMap{
		"lower": strings.ToLower,
		"formatDate": func(t time.Time, layout string) string {
			return t.Format(layout)
		},
	}).Parse(handoutHTML),
)

// RenderHandoutHTML renders the sermon handout template.
func RenderHandoutHTML(doc SermonDocument) (string, error) {
	var buf bytes.Buffer
	if err := handoutTemplate.Execute(&buf, doc); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const handoutHTML = `<!DOCTYPE html>
<html lang="pt-BR">
<head>
  <meta charset="UTF-8">
  <title>{{.Title}}</title>
  <style>
    body { font-family: Georgia, serif; line-height: 1.6; max-width: 800px; margin: 2rem auto; }
    h1 { border-bottom: 2px solid #333; padding-bottom: 0.5rem; }
    .meta { color: #666; font-size: 0.9em; margin-bottom: 2rem; }
    .source { background: #f9f6ef; padding: 1rem; margin: 1rem 0; border-left: 3px solid #b08d3e; }
    .source .ref { font-weight: bold; margin-bottom: 0.25rem; }
    .anchor { margin-top: 1.5rem; }
    .anchor .tag { text-transform: uppercase; font-size: 0.75em; color: #b08d3e; letter-spacing: 0.05em; }
    .insight { background: #f5f5f5; padding: 0.75rem 1rem; margin: 0.5rem 0 0.5rem 1.5rem; border-left: 3px solid #333; }
    .insight .tag { text-transform: uppercase; font-size: 0.7em; color: #888; }
  </style>
</head>
<body>
  <h1>{{.Title}}</h1>
  <div class="meta">{{.Category}} | {{.Author}} | {{formatDate .UpdatedAt "02/01/2006"}}</div>
  {{range .Sources}}
  <div class="source">
    <div class="ref">{{.Reference}}</div>
    <div>{{.Text}}</div>
  </div>
  {{end}}
  {{range .Groups}}
  <div class="anchor">
    <div class="tag">{{.AnchorType}}</div>
    <p>{{.AnchorContent}}</p>
    {{range .Insights}}
    <div class="insight">
      <div class="tag">{{.Type}}</div>
      <div>{{.Content}}</div>
    </div>
    {{end}}
  </div>
  {{end}}
</body>
</html>`
