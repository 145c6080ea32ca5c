package mail

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"

	"github.com/Masterminds/sprig/v3"

	"github.com/telekom/account-notifier/pkg/metrics"
)

// Template names.
const (
	TemplateAccountCreated = "account-created"
	TemplateAccountDeleted = "account-deleted"
)

//go:embed templates/*.html
var templateFS embed.FS

// templateVars lists the variables each template reads. Any of them missing
// from the caller's mapping is rendered as an empty string.
var templateVars = map[string][]string{
	TemplateAccountCreated: {"name", "email", "age", "accountId"},
	TemplateAccountDeleted: {"name", "email"},
}

// Renderer binds variables into the embedded HTML templates. It holds no
// mutable state and is safe for concurrent use.
type Renderer struct {
	templates *template.Template
}

// NewRenderer parses the embedded templates.
func NewRenderer() (*Renderer, error) {
	t, err := template.New("mail").Funcs(sprig.FuncMap()).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse mail templates: %w", err)
	}
	return &Renderer{templates: t}, nil
}

// Render executes the named template. Output depends only on name and vars.
// Variables are not validated: a missing one renders as a blank.
func (r *Renderer) Render(name string, vars map[string]any) (string, error) {
	t := r.templates.Lookup(name + ".html")
	if t == nil {
		metrics.MailRenderFailure.WithLabelValues("unknown").Inc()
		return "", fmt.Errorf("unknown mail template %q", name)
	}

	data := make(map[string]any, len(vars)+len(templateVars[name]))
	for _, k := range templateVars[name] {
		data[k] = ""
	}
	for k, v := range vars {
		if v != nil {
			data[k] = v
		}
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		metrics.MailRenderFailure.WithLabelValues(name).Inc()
		return "", fmt.Errorf("failed to render mail template %q: %w", name, err)
	}
	return buf.String(), nil
}
