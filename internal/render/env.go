// Package render compiles templates with the report filters installed.
package render

import (
	"bytes"
	"embed"
	"fmt"
	htmltemplate "html/template"
	"io"
	texttemplate "text/template"
	"time"

	"ara/internal/filters"
	"ara/internal/logging"
)

//go:embed templates/*.html
var pageFS embed.FS

// Environment holds the filter registry and the parsed HTML pages.
type Environment struct {
	filters *filters.Registry
	pages   *htmltemplate.Template
}

// New builds an Environment whose pathtruncate filter uses pathMax.
func New(pathMax int) (*Environment, error) {
	reg := filters.New(filters.Options{PathMax: pathMax})
	pages, err := htmltemplate.New("pages").
		Funcs(htmltemplate.FuncMap(reg.FuncMap())).
		ParseFS(pageFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse pages: %w", err)
	}
	return &Environment{filters: reg, pages: pages}, nil
}

// Filters exposes the registry installed in this environment.
func (e *Environment) Filters() *filters.Registry { return e.filters }

// FromString compiles src as a plain text template. Output is not HTML
// escaped, so filter results come through verbatim.
func (e *Environment) FromString(src string) (*texttemplate.Template, error) {
	t, err := texttemplate.New("string").
		Option("missingkey=zero").
		Funcs(texttemplate.FuncMap(e.filters.FuncMap())).
		Parse(src)
	if err != nil {
		return nil, fmt.Errorf("parse template: %w", err)
	}
	return t, nil
}

// RenderString compiles src and executes it against data.
func (e *Environment) RenderString(src string, data any) (string, error) {
	t, err := e.FromString(src)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render template: %w", err)
	}
	return buf.String(), nil
}

// RenderPage executes the named HTML page into w.
func (e *Environment) RenderPage(w io.Writer, name string, data any) error {
	start := time.Now()
	var buf bytes.Buffer
	err := e.pages.ExecuteTemplate(&buf, name, data)
	logging.LogRender(name, time.Since(start), err)
	if err != nil {
		return fmt.Errorf("render page %s: %w", name, err)
	}
	_, err = buf.WriteTo(w)
	return err
}
