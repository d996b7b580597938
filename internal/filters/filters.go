// Package filters holds the named template filters used by the report pages.
package filters

import (
	"fmt"
	"sort"
)

// Filter names as they appear in templates.
const (
	NamePathTruncate = "pathtruncate"
	NameDateFmt      = "datefmt"
	NameTimeFmt      = "timefmt"
	NameFromJSON     = "from_json"
	NameToNiceJSON   = "to_nice_json"
	NameToNiceYAML   = "to_nice_yaml"
)

// DefaultPathMax is the display width used when none is configured.
const DefaultPathMax = 30

// Options configures the filters that need settings.
type Options struct {
	// PathMax is the width pathtruncate shortens paths to.
	PathMax int
}

// Registry is the fixed table of filters installed into a template engine.
type Registry struct {
	opts  Options
	funcs map[string]any
}

// New builds the registry. A non-positive PathMax falls back to DefaultPathMax.
func New(opts Options) *Registry {
	if opts.PathMax <= 0 {
		opts.PathMax = DefaultPathMax
	}
	r := &Registry{opts: opts}
	r.funcs = map[string]any{
		NamePathTruncate: func(path string) string { return PathTruncate(path, r.opts.PathMax) },
		NameDateFmt:      dateFilter,
		NameTimeFmt:      timeFilter,
		NameFromJSON:     FromJSON,
		NameToNiceJSON:   ToNiceJSON,
		NameToNiceYAML:   ToNiceYAML,
	}
	return r
}

// PathMax reports the configured truncation width.
func (r *Registry) PathMax() int { return r.opts.PathMax }

// Names lists the registered filter names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.funcs))
	for name := range r.funcs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the filter registered under name.
func (r *Registry) Lookup(name string) (any, error) {
	fn, ok := r.funcs[name]
	if !ok {
		return nil, fmt.Errorf("unknown filter %q", name)
	}
	return fn, nil
}

// FuncMap returns a copy of the table suitable for text/template and
// html/template FuncMaps.
func (r *Registry) FuncMap() map[string]any {
	out := make(map[string]any, len(r.funcs))
	for name, fn := range r.funcs {
		out[name] = fn
	}
	return out
}
