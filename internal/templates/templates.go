// Package templates renders the embedded HTML pages.
package templates

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"strings"

	"attendance/internal/entity"
)

//go:embed html/*.html
var files embed.FS

var pages = []string{"index", "login", "dashboard", "course", "profile", "error"}

// Page is the data every full page receives.
type Page struct {
	Title string
	// User is nil for anonymous visitors; the navbar is only shown when set.
	User *entity.User
	Data any
	// Refresh reloads the page after a moment when scripts are disabled.
	Refresh bool
}

type Renderer struct {
	basePath string
	sets     map[string]*template.Template
}

// New parses every page together with the shared layout. URLs produced by
// the "url" template func are prefixed with basePath.
func New(basePath string) (*Renderer, error) {
	r := &Renderer{
		basePath: strings.TrimRight(basePath, "/"),
		sets:     make(map[string]*template.Template, len(pages)),
	}
	funcs := template.FuncMap{
		"url":   r.URL,
		"upper": strings.ToUpper,
	}
	for _, name := range pages {
		t, err := template.New(name).Funcs(funcs).ParseFS(files, "html/layout.html", "html/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("templates.New: %s: %w", name, err)
		}
		r.sets[name] = t
	}
	return r, nil
}

// URL prefixes an application path, which may carry a query string, with
// the base path.
func (r *Renderer) URL(p string) string {
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return r.basePath + p
}

// Render writes the named page inside the layout.
func (r *Renderer) Render(w http.ResponseWriter, status int, name string, page Page) error {
	return r.execute(w, status, name, "layout", page)
}

// Fragment writes a single block of the named page, without the layout.
func (r *Renderer) Fragment(w http.ResponseWriter, status int, name, block string, data any) error {
	return r.execute(w, status, name, block, data)
}

func (r *Renderer) execute(w http.ResponseWriter, status int, name, block string, data any) error {
	t, ok := r.sets[name]
	if !ok {
		return fmt.Errorf("templates: unknown page %q", name)
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, block, data); err != nil {
		return fmt.Errorf("templates: %s/%s: %w", name, block, err)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}
