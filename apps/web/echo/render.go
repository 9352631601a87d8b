package echoweb

import (
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"path"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/hoaportal/core/auth"
	"github.com/trezcool/hoaportal/core/event"
)

type (
	// page is the data every web template receives.
	page struct {
		AppName string
		Title   string
		Auth    auth.State
		CSRF    string
		Notice  string
		Error   string
		Errors  map[string]string
		Form    interface{}
		Data    interface{}
	}

	// eventFormData is the admin event form as the inputs show it.
	eventFormData struct {
		Title       string `form:"title"`
		Description string `form:"description"`
		Category    string `form:"category"`
		Location    string `form:"location"`
		StartsAt    string `form:"startsAt"`
		Price       string `form:"price"`
		Capacity    string `form:"capacity"`
	}

	templateRenderer struct {
		templates map[string]*template.Template
	}
)

var _ echo.Renderer = (*templateRenderer)(nil)

var templateFuncs = template.FuncMap{
	"date": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.Format("Mon Jan 2, 2006 3:04 PM")
	},
	"money": func(v float64) string {
		return fmt.Sprintf("$%.2f", v)
	},
	"categories": func() []event.Category {
		return event.Categories
	},
	"eventForm": newEventFormData,
}

func newEventFormData(e event.Event) eventFormData {
	f := eventFormData{
		Title:       e.Title,
		Description: e.Description,
		Category:    e.Category,
		Location:    e.Location,
		Price:       fmt.Sprintf("%.2f", e.Price),
		Capacity:    fmt.Sprintf("%d", e.Capacity),
	}
	if !e.StartsAt.IsZero() {
		f.StartsAt = e.StartsAt.Format(event.DateLayout)
	}
	return f
}

// newTemplateRenderer parses every page of dir with the "_" prefixed partials of dir.
func newTemplateRenderer(fsys fs.FS, dir string) (*templateRenderer, error) {
	fps, err := fs.Glob(fsys, path.Join(dir, "*.gohtml"))
	if err != nil {
		return nil, errors.Wrap(err, "listing web templates")
	}

	var partials, pages []string
	for _, fp := range fps {
		if strings.HasPrefix(path.Base(fp), "_") {
			partials = append(partials, fp)
		} else {
			pages = append(pages, fp)
		}
	}

	r := &templateRenderer{templates: make(map[string]*template.Template, len(pages))}
	for _, fp := range pages {
		name := strings.TrimSuffix(path.Base(fp), ".gohtml")
		files := append(append([]string{}, partials...), fp)
		tmpl, err := template.New(name).Funcs(templateFuncs).ParseFS(fsys, files...)
		if err != nil {
			return nil, errors.Wrapf(err, "parsing web template %s", name)
		}
		r.templates[name] = tmpl
	}
	return r, nil
}

func (r *templateRenderer) Render(w io.Writer, name string, data interface{}, _ echo.Context) error {
	tmpl, ok := r.templates[name]
	if !ok {
		return errors.Errorf("web template %q not found", name)
	}
	return tmpl.ExecuteTemplate(w, "layout", data)
}
