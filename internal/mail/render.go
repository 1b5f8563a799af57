package mail

import (
	"bytes"
	"embed"
	"fmt"
	"strings"
	"text/template"
)

//go:embed templates/*.tmpl
var templatesFS embed.FS

var templateNames = []string{TemplateWelcome, TemplateExpenseAdded, TemplatePasswordReset}

// KnownTemplate reports whether name has a template.
func KnownTemplate(name string) bool {
	for _, n := range templateNames {
		if n == name {
			return true
		}
	}
	return false
}

// Rendered is a message ready to send.
type Rendered struct {
	To      string
	Subject string
	Body    string
}

// Renderer turns Messages into subject and body text.
type Renderer struct {
	templates map[string]*template.Template
}

func NewRenderer() (*Renderer, error) {
	r := &Renderer{templates: make(map[string]*template.Template, len(templateNames))}
	for _, name := range templateNames {
		t, err := template.New(name).Option("missingkey=zero").
			ParseFS(templatesFS, "templates/"+name+".tmpl")
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		r.templates[name] = t
	}
	return r, nil
}

func (r *Renderer) Render(m Message) (Rendered, error) {
	if err := m.Validate(); err != nil {
		return Rendered{}, err
	}
	t := r.templates[m.Template]

	var subject, body bytes.Buffer
	if err := t.ExecuteTemplate(&subject, "subject", m.Data); err != nil {
		return Rendered{}, fmt.Errorf("render %s subject: %w", m.Template, err)
	}
	if err := t.ExecuteTemplate(&body, "body", m.Data); err != nil {
		return Rendered{}, fmt.Errorf("render %s body: %w", m.Template, err)
	}
	return Rendered{
		To:      m.To,
		Subject: strings.TrimSpace(subject.String()),
		Body:    strings.TrimLeft(body.String(), "\n"),
	}, nil
}
