package notify

import (
	"bytes"
	"errors"
	"text/template"
)

const DefaultTemplate = `[Over-engagement] {{.GrantCode}} / {{.SubLineCode}} {{.SubLineName}}
Engagement: {{.EngagementNumber}}
Notified: {{.Notified}}
Engaged: {{.Engaged}} ({{.Rate}})
Available: {{.Available}}
Signed by: {{.Actor}}
Detected at: {{.DetectedAt}}
Suggestion: amend the grant or move planned amounts before approving further engagements.`

// TemplateData provides fields for rendering notification content.
type TemplateData struct {
	GrantID          string
	GrantCode        string
	LineCode         string
	SubLineID        string
	SubLineCode      string
	SubLineName      string
	EngagementNumber string
	Notified         string
	Engaged          string
	Available        string
	Rate             string
	Actor            string
	DetectedAt       string
}

// Template renders notification content.
type Template struct {
	tpl *template.Template
}

// NewTemplate parses a notification template, falling back to DefaultTemplate.
func NewTemplate(tpl string) (*Template, error) {
	if tpl == "" {
		tpl = DefaultTemplate
	}
	parsed, err := template.New("over-engagement").Option("missingkey=error").Parse(tpl)
	if err != nil {
		return nil, err
	}
	return &Template{tpl: parsed}, nil
}

// Render applies the template to data.
func (t *Template) Render(data TemplateData) (string, error) {
	if t == nil || t.tpl == nil {
		return "", errors.New("notify template: nil")
	}
	var buf bytes.Buffer
	if err := t.tpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
