package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pavelanni/galaxy-admin/internal/form"
	"github.com/pavelanni/galaxy-admin/internal/handler/views"
	"github.com/pavelanni/galaxy-admin/internal/model"
)

const (
	draftCookieName   = "draft"
	defaultSessionTTL = 12 * time.Hour

	slotGenerate = "generate"
	slotSubject  = "subject"
	slotLesson   = "lesson"
)

func imageSlot(index int) string { return "image:" + strconv.Itoa(index) }

// draftSession is one browser's authoring state. Remote calls run without
// mu held; in-flight slots keep a second identical request from starting.
type draftSession struct {
	mu       sync.Mutex
	lesson   *form.Lesson
	subject  form.Subject
	subjects []model.Subject
	topic    string
	ageGroup string
	flash    *views.Flash
	inflight map[string]bool
}

func newDraftSession() *draftSession {
	return &draftSession{
		lesson:   form.NewLesson(),
		inflight: make(map[string]bool),
	}
}

// begin claims slot. It returns false if the slot is already busy.
// Callers hold mu.
func (s *draftSession) begin(slot string) bool {
	if s.inflight[slot] {
		return false
	}
	s.inflight[slot] = true
	return true
}

// end releases slot. Callers hold mu.
func (s *draftSession) end(slot string) {
	delete(s.inflight, slot)
}

// popFlash returns and clears the pending notification. Callers hold mu.
func (s *draftSession) popFlash() *views.Flash {
	f := s.flash
	s.flash = nil
	return f
}

type sessionEntry struct {
	sess     *draftSession
	lastSeen time.Time
}

// sessionRegistry maps draft cookies to sessions and drops idle ones.
type sessionRegistry struct {
	mu       sync.Mutex
	ttl      time.Duration
	sessions map[string]*sessionEntry
	now      func() time.Time
}

func newSessionRegistry(ttl time.Duration) *sessionRegistry {
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return &sessionRegistry{
		ttl:      ttl,
		sessions: make(map[string]*sessionEntry),
		now:      time.Now,
	}
}

// get returns the live session for id and refreshes its idle timer.
func (r *sessionRegistry) get(id string) (*draftSession, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[id]
	if !ok {
		return nil, false
	}
	now := r.now()
	if now.Sub(e.lastSeen) > r.ttl {
		delete(r.sessions, id)
		return nil, false
	}
	e.lastSeen = now
	return e.sess, true
}

// create starts a new session and sweeps expired ones.
func (r *sessionRegistry) create() (string, *draftSession) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sweepLocked()
	id := uuid.NewString()
	sess := newDraftSession()
	r.sessions[id] = &sessionEntry{sess: sess, lastSeen: r.now()}
	return id, sess
}

// sweep drops every session idle for longer than the TTL.
func (r *sessionRegistry) sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sweepLocked()
}

func (r *sessionRegistry) sweepLocked() int {
	now := r.now()
	n := 0
	for id, e := range r.sessions {
		if now.Sub(e.lastSeen) > r.ttl {
			delete(r.sessions, id)
			n++
		}
	}
	if n > 0 {
		slog.Debug("expired draft sessions", "count", n)
	}
	return n
}

// SweepSessions drops idle drafts every interval until ctx is done.
func (h *Handler) SweepSessions(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.sessions.sweep()
		}
	}
}

func (r *sessionRegistry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

type draftCtxKey struct{}

// draftMiddleware attaches the browser's draft session, creating one when
// the cookie is missing or has expired.
func (h *Handler) draftMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var sess *draftSession
		if c, err := r.Cookie(draftCookieName); err == nil && c.Value != "" {
			sess, _ = h.sessions.get(c.Value)
		}
		if sess == nil {
			var id string
			id, sess = h.sessions.create()
			http.SetCookie(w, &http.Cookie{
				Name:     draftCookieName,
				Value:    id,
				Path:     h.cookiePath(),
				HttpOnly: true,
				Secure:   h.config.SecureCookies,
				SameSite: http.SameSiteLaxMode,
			})
		}
		ctx := context.WithValue(r.Context(), draftCtxKey{}, sess)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func draftFromContext(ctx context.Context) *draftSession {
	sess, _ := ctx.Value(draftCtxKey{}).(*draftSession)
	return sess
}
