// Package views renders the console pages from embedded html/template files.
package views

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"io"
	"strings"

	appI18n "github.com/pavelanni/galaxy-admin/internal/i18n"
	"github.com/pavelanni/galaxy-admin/internal/form"
	"github.com/pavelanni/galaxy-admin/internal/model"
)

//go:embed templates/*.html
var templatesFS embed.FS

// Flash is a one-shot notification shown above the page content.
type Flash struct {
	Kind    string // success, error or info
	Message string
}

// Page carries the fields every page needs.
type Page struct {
	TitleKey string
	Active   string
	CSRF     string
	Flash    *Flash
}

// IndexPage is the dashboard.
type IndexPage struct {
	Page
	APIBaseURL string
}

// SubjectPage is the create-subject form.
type SubjectPage struct {
	Page
	Form   form.Subject
	Errors form.ValidationErrors
}

// LessonPage is the lesson authoring form.
type LessonPage struct {
	Page
	Subjects    []model.Subject
	SubjectID   string
	Title       string
	Description string
	Questions   []model.Question
	Errors      form.ValidationErrors
	Topic       string
	AgeGroup    string
	Generating  bool
	Uploading   map[int]bool
}

// HistoryPage lists journal entries.
type HistoryPage struct {
	Page
	Enabled     bool
	Submissions []model.Submission
}

var pages = []string{"index", "subject", "lesson", "history"}

// Views holds one parsed template set per page.
type Views struct {
	sets map[string]*template.Template
}

// New parses every page together with the shared layout.
func New() (*Views, error) {
	v := &Views{sets: make(map[string]*template.Template)}
	for _, p := range pages {
		// Placeholder funcs; real ones are bound per request in Render.
		t, err := template.New(p).Funcs(funcMap(context.Background(), "")).
			ParseFS(templatesFS, "templates/layout.html", "templates/"+p+".html")
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", p, err)
		}
		v.sets[p] = t
	}
	return v, nil
}

// Render writes page using the request's localizer and base path.
func (v *Views) Render(ctx context.Context, w io.Writer, page string, data any) error {
	set, ok := v.sets[page]
	if !ok {
		return fmt.Errorf("unknown page %q", page)
	}
	t, err := set.Clone()
	if err != nil {
		return fmt.Errorf("clone %s: %w", page, err)
	}
	t.Funcs(funcMap(ctx, model.BasePathFromContext(ctx)))
	return t.ExecuteTemplate(w, "layout", data)
}

func funcMap(ctx context.Context, basePath string) template.FuncMap {
	return template.FuncMap{
		"t":  func(id string) string { return appI18n.T(ctx, id) },
		"tp": func(id string, n int) string { return appI18n.Tp(ctx, id, n) },
		"tn": func(id string, n int) string {
			return appI18n.Td(ctx, id, map[string]any{"N": n})
		},
		"path":      func(p string) string { return basePath + p },
		"languages": appI18n.Languages,
		"inc":       func(i int) int { return i + 1 },
		"join":      func(s []string) string { return strings.Join(s, ", ") },
		"hasError": func(errs form.ValidationErrors, field string) bool {
			for _, e := range errs {
				if e.Field == field {
					return true
				}
			}
			return false
		},
	}
}
