package handler

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/pavelanni/galaxy-admin/internal/api"
	"github.com/pavelanni/galaxy-admin/internal/handler/views"
	appI18n "github.com/pavelanni/galaxy-admin/internal/i18n"
	"github.com/pavelanni/galaxy-admin/internal/model"
)

// Remote is the subset of the platform API the console uses.
type Remote interface {
	ListSubjects(ctx context.Context) ([]model.Subject, error)
	CreateSubject(ctx context.Context, req model.SubjectRequest) (*model.Subject, error)
	CreateLesson(ctx context.Context, req model.LessonRequest) (*model.Lesson, error)
	UploadImage(ctx context.Context, filename string, r io.Reader) (string, error)
}

// Generator produces draft lesson content for a topic and age group.
type Generator interface {
	GenerateLessonContent(ctx context.Context, req model.GenerateRequest) (*model.GeneratedLesson, error)
}

// Journal records submission outcomes. It is optional.
type Journal interface {
	RecordSubmission(sub model.Submission) (int64, error)
	ListSubmissions(limit int) ([]model.Submission, error)
}

const (
	defaultMaxUploadSize = 10 << 20
	historyLimit         = 100
)

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	remote   Remote
	gen      Generator
	journal  Journal
	views    *views.Views
	sessions *sessionRegistry
	config   model.ConsoleConfig
}

// New creates a new Handler. journal may be nil.
func New(remote Remote, gen Generator, journal Journal, cfg model.ConsoleConfig) (*Handler, error) {
	v, err := views.New()
	if err != nil {
		return nil, fmt.Errorf("load views: %w", err)
	}
	if cfg.MaxUploadSize <= 0 {
		cfg.MaxUploadSize = defaultMaxUploadSize
	}
	return &Handler{
		remote:   remote,
		gen:      gen,
		journal:  journal,
		views:    v,
		sessions: newSessionRegistry(cfg.SessionTTL),
		config:   cfg,
	}, nil
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Use(appI18n.Middleware(h.cookiePath()))
	r.Group(func(r chi.Router) {
		r.Use(h.csrfMiddleware)
		r.Use(h.draftMiddleware)

		r.Get("/", h.handleIndex)
		r.Get("/subjects/new", h.handleSubjectPage)
		r.Post("/subjects", h.handleCreateSubject)
		r.Get("/lessons/new", h.handleLessonPage)
		r.Post("/lessons/draft", h.handleSaveDraft)
		r.Post("/lessons/import", h.handleImportLesson)
		r.Get("/lessons/export", h.handleExportLesson)
		r.Post("/lessons/generate", h.handleGenerate)
		r.Post("/lessons/questions/{index}/image", h.handleUploadImage)
		r.Post("/lessons", h.handleCreateLesson)
		r.Get("/history", h.handleHistory)
	})
}

// BasePathMiddleware stores the configured base path in the request context.
func (h *Handler) BasePathMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := model.ContextWithBasePath(r.Context(), h.config.BasePath)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// path prepends the base path to an absolute path.
func (h *Handler) path(p string) string {
	return h.config.BasePath + p
}

func (h *Handler) cookiePath() string {
	if h.config.BasePath != "" {
		return h.config.BasePath + "/"
	}
	return "/"
}

func (h *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	data := views.IndexPage{Page: h.page(r, "NavDashboard", "dashboard", nil)}
	if b, ok := h.remote.(interface{ BaseURL() string }); ok {
		data.APIBaseURL = b.BaseURL()
	}
	h.render(w, r, http.StatusOK, "index", data)
}

func (h *Handler) page(r *http.Request, titleKey, active string, flash *views.Flash) views.Page {
	return views.Page{
		TitleKey: titleKey,
		Active:   active,
		CSRF:     model.CSRFTokenFromContext(r.Context()),
		Flash:    flash,
	}
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, page string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := h.views.Render(r.Context(), w, page, data); err != nil {
		slog.Error("render error", "page", page, "error", err)
	}
}

// redirectWithFlash stores a notification for the next page view and redirects to p.
func (h *Handler) redirectWithFlash(w http.ResponseWriter, r *http.Request, sess *draftSession, p string, flash *views.Flash) {
	sess.mu.Lock()
	sess.flash = flash
	sess.mu.Unlock()
	http.Redirect(w, r, h.path(p), http.StatusSeeOther)
}

func (h *Handler) record(sub model.Submission) {
	if h.journal == nil {
		return
	}
	if _, err := h.journal.RecordSubmission(sub); err != nil {
		slog.Error("failed to record submission", "kind", sub.Kind, "error", err)
	}
}

func successFlash(ctx context.Context, key string) *views.Flash {
	return &views.Flash{Kind: "success", Message: appI18n.T(ctx, key)}
}

func infoFlash(ctx context.Context, key string) *views.Flash {
	return &views.Flash{Kind: "info", Message: appI18n.T(ctx, key)}
}

func errorFlash(ctx context.Context, key string) *views.Flash {
	return &views.Flash{Kind: "error", Message: appI18n.T(ctx, key)}
}

// remoteErrorFlash reports a failed platform call, adding the server's message when it sent one.
func remoteErrorFlash(ctx context.Context, key string, err error) *views.Flash {
	msg := appI18n.T(ctx, key)
	if s := api.ServerMessage(err); s != "" {
		msg += ": " + s
	}
	return &views.Flash{Kind: "error", Message: msg}
}
