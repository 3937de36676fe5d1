package export

import (
	"bytes"
	"html/template"
	"strings"
	"time"
)

var documentTemplate = template.Must(template.New("document").Funcs(template.FuncMap{
	"lower": strings.ToLower,
	"formatDate": func(t time.Time, layout string) string {
		return t.Format(layout)
	},
}).Parse(documentTemplateHTML))

// TemplateData holds data for document template rendering
type TemplateData struct {
	Title       string
	ContentType string
	ContentHTML template.HTML
	Author      string
	SavedAt     time.Time
}

// RenderDocumentHTML renders the document template with provided data
func RenderDocumentHTML(data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := documentTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// DraftToHTML converts a plain-text draft into paragraph HTML. Blank lines
// separate paragraphs; single newlines become line breaks. All text is
// escaped.
func DraftToHTML(draft string) string {
	draft = strings.ReplaceAll(draft, "\r\n", "\n")
	blocks := strings.Split(draft, "\n\n")

	var b strings.Builder
	for _, block := range blocks {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		lines := strings.Split(block, "\n")
		escaped := make([]string, 0, len(lines))
		for _, line := range lines {
			escaped = append(escaped, template.HTMLEscapeString(strings.TrimSpace(line)))
		}
		b.WriteString("<p>")
		b.WriteString(strings.Join(escaped, "<br>"))
		b.WriteString("</p>")
	}
	return b.String()
}

const documentTemplateHTML = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>{{.Title}}</title>
  <style>
    body { font-family: Georgia, serif; line-height: 1.6; max-width: 720px; margin: 2rem auto; color: #222; }
    h1 { border-bottom: 2px solid #333; padding-bottom: 0.5rem; }
    .meta { color: #666; font-size: 0.9em; margin-bottom: 2rem; }
    p { margin: 0 0 1em; }
  </style>
</head>
<body>
  <h1>{{.Title}}</h1>
  <div class="meta">{{.ContentType | lower}} | {{.Author}} | {{formatDate .SavedAt "Jan 2, 2006"}}</div>
  <div>{{.ContentHTML}}</div>
</body>
</html>`
