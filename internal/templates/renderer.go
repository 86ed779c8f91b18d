// Package templates renders the shell scripts passed to instances as user
// data.
package templates

import (
	"bytes"
	"embed"
	"fmt"
	"io"
	"text/template"

	"github.com/kballard/go-shellquote"
)

// Template names.
const (
	StartupScript = "startup.sh"
	AMIBuilder    = "ami_builder.sh"
)

// Embed all templates at compile time
//
//go:embed *.tmpl
var templates embed.FS

var funcs = template.FuncMap{
	"quote": func(s string) string { return shellquote.Join(s) },
}

// Renderer handles template operations
type Renderer struct{}

// NewRenderer creates a new template renderer
func NewRenderer() *Renderer {
	return &Renderer{}
}

// RenderTemplate writes the named template executed with data to w.
func (r *Renderer) RenderTemplate(w io.Writer, templateName string, data any) error {
	// Read from embedded filesystem
	templateContent, err := templates.ReadFile(templateName + ".tmpl")
	if err != nil {
		return fmt.Errorf("unknown template %s: %w", templateName, err)
	}

	tmpl, err := template.New(templateName).Funcs(funcs).Option("missingkey=error").Parse(string(templateContent))
	if err != nil {
		return fmt.Errorf("failed to parse template %s: %w", templateName, err)
	}

	if err := tmpl.Execute(w, data); err != nil {
		return fmt.Errorf("failed to render template %s: %w", templateName, err)
	}
	return nil
}

// Render returns the named template executed with data.
func (r *Renderer) Render(templateName string, data any) (string, error) {
	var buf bytes.Buffer
	if err := r.RenderTemplate(&buf, templateName, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
