package ui

import (
	"context"
	"io"

	"github.com/a-h/templ"

	"ara/internal/store"
)

// PageRenderer renders a named page template.
type PageRenderer interface {
	RenderPage(w io.Writer, name string, data any) error
}

// Page adapts a named page template to a templ.Component.
func Page(r PageRenderer, name string, data any) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		return r.RenderPage(w, name, data)
	})
}

// Index lists playbooks.
func Index(r PageRenderer, playbooks []store.Playbook) templ.Component {
	return Page(r, "index.html", map[string]any{
		"Title":     "Playbooks",
		"Playbooks": playbooks,
	})
}

// PlaybookDetail shows one playbook and its task results.
func PlaybookDetail(r PageRenderer, p *store.Playbook, results []store.Result) templ.Component {
	return Page(r, "playbook.html", map[string]any{
		"Title":    "Playbook " + ShortID(p.ID),
		"Playbook": p,
		"Results":  results,
	})
}
