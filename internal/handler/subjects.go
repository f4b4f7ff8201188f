package handler

import (
	"log/slog"
	"net/http"

	"github.com/pavelanni/galaxy-admin/internal/form"
	"github.com/pavelanni/galaxy-admin/internal/handler/views"
	"github.com/pavelanni/galaxy-admin/internal/model"
)

func (h *Handler) handleSubjectPage(w http.ResponseWriter, r *http.Request) {
	sess := draftFromContext(r.Context())
	sess.mu.Lock()
	flash := sess.popFlash()
	sess.mu.Unlock()
	h.renderSubject(w, r, sess, http.StatusOK, flash, nil)
}

func (h *Handler) handleCreateSubject(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := draftFromContext(ctx)

	sess.mu.Lock()
	sess.subject.Name = r.FormValue("name")
	sess.subject.Ages = r.FormValue("available_for_ages")
	if errs := sess.subject.Validate(); len(errs) > 0 {
		sess.mu.Unlock()
		h.renderSubject(w, r, sess, http.StatusUnprocessableEntity, errorFlash(ctx, "FixHighlightedFields"), errs)
		return
	}
	if !sess.begin(slotSubject) {
		sess.mu.Unlock()
		h.renderSubject(w, r, sess, http.StatusConflict, errorFlash(ctx, "RequestInProgress"), nil)
		return
	}
	req := sess.subject.Request()
	sess.mu.Unlock()

	created, err := h.remote.CreateSubject(ctx, req)

	sess.mu.Lock()
	sess.end(slotSubject)
	if err != nil {
		sess.mu.Unlock()
		slog.Error("failed to create subject", "name", req.Name, "error", err)
		h.record(model.Submission{
			Kind:    model.SubmissionSubject,
			Title:   req.Name,
			Status:  model.SubmissionFailed,
			Message: err.Error(),
		})
		h.renderSubject(w, r, sess, http.StatusBadGateway, remoteErrorFlash(ctx, "SubjectCreateFailed", err), nil)
		return
	}
	sess.subject.Reset()
	sess.mu.Unlock()

	sub := model.Submission{Kind: model.SubmissionSubject, Title: req.Name, Status: model.SubmissionOK}
	if created != nil {
		sub.RemoteID = created.ID
	}
	h.record(sub)
	slog.Info("created subject", "name", req.Name, "ages", req.AvailableForAges, "id", sub.RemoteID)

	h.redirectWithFlash(w, r, sess, "/subjects/new", successFlash(ctx, "SubjectCreated"))
}

func (h *Handler) renderSubject(w http.ResponseWriter, r *http.Request, sess *draftSession, status int, flash *views.Flash, errs form.ValidationErrors) {
	sess.mu.Lock()
	data := views.SubjectPage{
		Page:   h.page(r, "CreateNewSubject", "subject", flash),
		Form:   sess.subject,
		Errors: errs,
	}
	sess.mu.Unlock()
	h.render(w, r, status, "subject", data)
}
