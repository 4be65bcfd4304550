package publish

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/yuin/goldmark"

	"github.com/kingdomembassy/newsletter/internal/generate"
)

// documentTemplate is the fixed styled skeleton every issue is rendered
// into. Section markup is injected pre-converted; there is no
// section-specific layout beyond ordering.
var documentTemplate = template.Must(template.New("newsletter").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}} — {{.DateString}}</title>
<style>
  body { margin: 0; background: #f4f1ea; color: #2b2b2b; font-family: Georgia, 'Times New Roman', serif; line-height: 1.65; }
  .wrap { max-width: 680px; margin: 0 auto; padding: 32px 20px 64px; }
  header { text-align: center; border-bottom: 3px double #b8860b; padding-bottom: 24px; margin-bottom: 32px; }
  header h1 { margin: 0; font-size: 1.9em; letter-spacing: 0.02em; color: #1a2744; }
  header .date { color: #b8860b; font-variant: small-caps; letter-spacing: 0.12em; }
  header .theme { font-style: italic; color: #555; margin-top: 8px; }
  section { margin-bottom: 40px; }
  section > h2.section-title { font-size: 1.3em; color: #1a2744; border-left: 4px solid #b8860b; padding-left: 12px; }
  section h2, section h3 { color: #1a2744; }
  a { color: #8b5a00; }
  blockquote { border-left: 3px solid #ccc; margin-left: 0; padding-left: 16px; color: #555; font-style: italic; }
  footer { border-top: 1px solid #ccc; padding-top: 16px; font-size: 0.85em; color: #777; text-align: center; }
</style>
</head>
<body>
<div class="wrap">
<header>
  <h1>{{.Title}}</h1>
  <div class="date">{{.DateString}}</div>
  <div class="theme">{{.Theme}}{{if .Subtitle}} &mdash; {{.Subtitle}}{{end}}</div>
</header>
{{range .Sections}}<section>
  <h2 class="section-title">{{.Title}}</h2>
  {{.Body}}
</section>
{{end}}<footer>
  Generated {{.GeneratedAt}} &middot; Content source: {{.ContentSource}}
</footer>
</div>
</body>
</html>
`))

type renderedSection struct {
	Title string
	Body  template.HTML
}

type renderData struct {
	Title         string
	Subtitle      string
	DateString    string
	Theme         string
	GeneratedAt   string
	ContentSource string
	Sections      []renderedSection
}

// Render converts each section's markdown to HTML and assembles the
// final document.
func Render(n *generate.Newsletter) (string, error) {
	md := goldmark.New()

	sections := make([]renderedSection, 0, len(generate.SectionKeys))
	for _, key := range generate.SectionKeys {
		sec, ok := n.Sections[key]
		if !ok {
			continue
		}
		var buf bytes.Buffer
		if err := md.Convert([]byte(sec.Content), &buf); err != nil {
			return "", fmt.Errorf("converting %s markdown: %w", key, err)
		}
		sections = append(sections, renderedSection{
			Title: sec.Title,
			Body:  template.HTML(buf.String()),
		})
	}

	var out bytes.Buffer
	err := documentTemplate.Execute(&out, renderData{
		Title:         n.Metadata.Title,
		Subtitle:      n.Metadata.Subtitle,
		DateString:    n.Metadata.DateString,
		Theme:         n.Metadata.Theme,
		GeneratedAt:   n.Metadata.GeneratedAt,
		ContentSource: n.Metadata.ContentSource,
		Sections:      sections,
	})
	if err != nil {
		return "", fmt.Errorf("executing document template: %w", err)
	}
	return out.String(), nil
}
