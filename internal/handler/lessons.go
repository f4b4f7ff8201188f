package handler

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/pavelanni/galaxy-admin/internal/form"
	"github.com/pavelanni/galaxy-admin/internal/handler/views"
	"github.com/pavelanni/galaxy-admin/internal/model"
	"github.com/pavelanni/galaxy-admin/internal/store"
)

const lessonPage = "/lessons/new"

func (h *Handler) handleLessonPage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := draftFromContext(ctx)

	subjects, err := h.remote.ListSubjects(ctx)

	sess.mu.Lock()
	flash := sess.popFlash()
	if err != nil {
		slog.Error("failed to fetch subjects", "error", err)
		if flash == nil {
			flash = errorFlash(ctx, "SubjectsLoadFailed")
		}
	} else {
		sess.subjects = subjects
	}
	sess.mu.Unlock()

	h.renderLesson(w, r, sess, http.StatusOK, flash, nil)
}

func (h *Handler) handleSaveDraft(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := draftFromContext(ctx)

	sess.mu.Lock()
	applyLessonForm(sess, r)
	key := "DraftSaved"
	if r.FormValue("action") == "add-question" {
		sess.lesson.AddQuestion()
		key = "QuestionAdded"
	}
	sess.mu.Unlock()

	h.redirectWithFlash(w, r, sess, lessonPage, successFlash(ctx, key))
}

func (h *Handler) handleImportLesson(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := draftFromContext(ctx)

	file, header, err := r.FormFile("lesson_file")
	if err != nil {
		h.renderLesson(w, r, sess, http.StatusBadRequest, errorFlash(ctx, "NoFileSelected"), nil)
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		slog.Error("failed to read lesson file", "error", err)
		h.renderLesson(w, r, sess, http.StatusBadRequest, errorFlash(ctx, "InvalidJSONFile"), nil)
		return
	}

	sess.mu.Lock()
	applyLessonForm(sess, r)
	err = sess.lesson.ImportJSON(data)
	n := sess.lesson.Len()
	sess.mu.Unlock()
	if err != nil {
		slog.Warn("lesson import rejected", "file", header.Filename, "error", err)
		h.renderLesson(w, r, sess, http.StatusBadRequest, errorFlash(ctx, "InvalidJSONFile"), nil)
		return
	}

	slog.Info("imported lesson", "file", header.Filename, "questions", n)
	h.redirectWithFlash(w, r, sess, lessonPage, successFlash(ctx, "LessonImported"))
}

func (h *Handler) handleExportLesson(w http.ResponseWriter, r *http.Request) {
	sess := draftFromContext(r.Context())

	sess.mu.Lock()
	data, err := sess.lesson.ExportJSON()
	sess.mu.Unlock()
	if err != nil {
		slog.Error("failed to export lesson", "error", err)
		http.Error(w, "export failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="lesson.json"`)
	_, _ = w.Write(data)
}

func (h *Handler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := draftFromContext(ctx)

	sess.mu.Lock()
	applyLessonForm(sess, r)
	req := model.GenerateRequest{
		Topic:    strings.TrimSpace(sess.topic),
		AgeGroup: strings.TrimSpace(sess.ageGroup),
	}
	if req.Topic == "" || req.AgeGroup == "" {
		sess.mu.Unlock()
		h.renderLesson(w, r, sess, http.StatusUnprocessableEntity, errorFlash(ctx, "TopicAndAgeRequired"), nil)
		return
	}
	if !sess.begin(slotGenerate) {
		sess.mu.Unlock()
		h.renderLesson(w, r, sess, http.StatusConflict, errorFlash(ctx, "RequestInProgress"), nil)
		return
	}
	sess.mu.Unlock()

	var (
		resp *model.GeneratedLesson
		err  error
	)
	if h.gen == nil {
		err = fmt.Errorf("content generator not configured")
	} else {
		resp, err = h.gen.GenerateLessonContent(ctx, req)
		if err == nil && resp == nil {
			err = fmt.Errorf("content generator returned no lesson")
		}
	}

	sess.mu.Lock()
	sess.end(slotGenerate)
	if err != nil {
		sess.mu.Unlock()
		slog.Error("content generation failed", "topic", req.Topic, "age_group", req.AgeGroup, "error", err)
		h.renderLesson(w, r, sess, http.StatusBadGateway, remoteErrorFlash(ctx, "GenerateFailed", err), nil)
		return
	}
	sess.lesson.MergeAIResponse(*resp)
	n := sess.lesson.Len()
	sess.mu.Unlock()

	slog.Info("generated lesson content", "topic", req.Topic, "age_group", req.AgeGroup, "questions", n)
	h.redirectWithFlash(w, r, sess, lessonPage, successFlash(ctx, "ContentGenerated"))
}

func (h *Handler) handleUploadImage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := draftFromContext(ctx)

	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		h.renderLesson(w, r, sess, http.StatusBadRequest, errorFlash(ctx, "InvalidQuestionIndex"), nil)
		return
	}

	sess.mu.Lock()
	applyLessonForm(sess, r)
	if _, err := sess.lesson.Question(index); err != nil {
		sess.mu.Unlock()
		h.renderLesson(w, r, sess, http.StatusBadRequest, errorFlash(ctx, "InvalidQuestionIndex"), nil)
		return
	}
	version := sess.lesson.Version()
	sess.mu.Unlock()

	file, header, err := r.FormFile(fmt.Sprintf("q-%d-image", index))
	if err != nil {
		h.renderLesson(w, r, sess, http.StatusBadRequest, errorFlash(ctx, "NoFileSelected"), nil)
		return
	}
	defer file.Close()

	slot := imageSlot(index)
	sess.mu.Lock()
	if !sess.begin(slot) {
		sess.mu.Unlock()
		h.renderLesson(w, r, sess, http.StatusConflict, errorFlash(ctx, "RequestInProgress"), nil)
		return
	}
	sess.mu.Unlock()

	url, err := h.remote.UploadImage(ctx, header.Filename, file)

	sess.mu.Lock()
	sess.end(slot)
	if err != nil {
		sess.mu.Unlock()
		slog.Error("image upload failed", "question", index, "file", header.Filename, "error", err)
		h.renderLesson(w, r, sess, http.StatusBadGateway, remoteErrorFlash(ctx, "ImageUploadFailed", err), nil)
		return
	}
	if sess.lesson.Version() != version {
		// A generate, import or reset replaced the questions during the upload.
		sess.mu.Unlock()
		slog.Warn("question list replaced during upload, image dropped", "question", index, "url", url)
		h.redirectWithFlash(w, r, sess, lessonPage, infoFlash(ctx, "ImageDiscarded"))
		return
	}
	err = sess.lesson.AttachImage(index, url)
	sess.mu.Unlock()
	if err != nil {
		slog.Error("failed to attach image", "question", index, "url", url, "error", err)
	}

	slog.Info("uploaded image", "question", index, "url", url)
	h.redirectWithFlash(w, r, sess, lessonPage, successFlash(ctx, "ImageUploaded"))
}

func (h *Handler) handleCreateLesson(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := draftFromContext(ctx)

	sess.mu.Lock()
	applyLessonForm(sess, r)
	errs := sess.lesson.Validate(form.ValidateOptions{RequireAnswerInOptions: h.config.StrictAnswers})
	if len(errs) > 0 {
		sess.mu.Unlock()
		h.renderLesson(w, r, sess, http.StatusUnprocessableEntity, errorFlash(ctx, "FixHighlightedFields"), errs)
		return
	}
	if !sess.begin(slotLesson) {
		sess.mu.Unlock()
		h.renderLesson(w, r, sess, http.StatusConflict, errorFlash(ctx, "RequestInProgress"), nil)
		return
	}
	req := sess.lesson.Request()
	sess.mu.Unlock()

	created, err := h.remote.CreateLesson(ctx, req)
	sub := model.Submission{
		Kind:   model.SubmissionLesson,
		Title:  req.Title,
		Digest: store.LessonDigest(req),
		Status: model.SubmissionOK,
	}

	sess.mu.Lock()
	sess.end(slotLesson)
	if err != nil {
		sess.mu.Unlock()
		slog.Error("failed to create lesson", "title", req.Title, "error", err)
		sub.Status = model.SubmissionFailed
		sub.Message = err.Error()
		h.record(sub)
		h.renderLesson(w, r, sess, http.StatusBadGateway, remoteErrorFlash(ctx, "LessonCreateFailed", err), nil)
		return
	}
	sess.lesson.Reset()
	sess.mu.Unlock()

	if created != nil {
		sub.RemoteID = created.ID
	}
	h.record(sub)
	slog.Info("created lesson", "title", req.Title, "questions", len(req.Questions), "id", sub.RemoteID)

	h.redirectWithFlash(w, r, sess, lessonPage, successFlash(ctx, "LessonCreated"))
}

func (h *Handler) renderLesson(w http.ResponseWriter, r *http.Request, sess *draftSession, status int, flash *views.Flash, errs form.ValidationErrors) {
	sess.mu.Lock()
	l := sess.lesson
	data := views.LessonPage{
		Page:        h.page(r, "CreateNewLesson", "lesson", flash),
		Subjects:    sess.subjects,
		SubjectID:   l.SubjectID(),
		Title:       l.Title(),
		Description: l.Description(),
		Questions:   l.Questions(),
		Errors:      errs,
		Topic:       sess.topic,
		AgeGroup:    sess.ageGroup,
		Generating:  sess.inflight[slotGenerate],
		Uploading:   make(map[int]bool),
	}
	for i := range data.Questions {
		if sess.inflight[imageSlot(i)] {
			data.Uploading[i] = true
		}
	}
	sess.mu.Unlock()
	h.render(w, r, status, "lesson", data)
}

// applyLessonForm copies posted field values into the draft. Fields absent
// from the request are left alone. Callers hold sess.mu.
func applyLessonForm(sess *draftSession, r *http.Request) {
	l := sess.lesson
	if v, ok := formValue(r, "subject_id"); ok {
		_ = l.SetField(form.FieldSubjectID, v)
	}
	if v, ok := formValue(r, "title"); ok {
		_ = l.SetField(form.FieldTitle, v)
	}
	if v, ok := formValue(r, "description"); ok {
		_ = l.SetField(form.FieldDescription, v)
	}
	if v, ok := formValue(r, "ai_topic"); ok {
		sess.topic = v
	}
	if v, ok := formValue(r, "ai_age_group"); ok {
		sess.ageGroup = v
	}

	for i := 0; i < l.Len(); i++ {
		prefix := "q-" + strconv.Itoa(i) + "-"
		if v, ok := formValue(r, prefix+"text"); ok {
			_ = l.UpdateQuestionField(i, form.QuestionText, v)
		}
		if v, ok := formValue(r, prefix+"answer"); ok {
			_ = l.UpdateQuestionField(i, form.QuestionCorrectAnswer, v)
		}
		if v, ok := formValue(r, prefix+"image-prompt"); ok {
			_ = l.UpdateQuestionField(i, form.QuestionImagePrompt, v)
		}
		q, _ := l.Question(i)
		for j := range q.Options {
			if v, ok := formValue(r, prefix+"opt-"+strconv.Itoa(j)); ok {
				_ = l.UpdateOption(i, j, v)
			}
		}
	}
}

func formValue(r *http.Request, key string) (string, bool) {
	vs, ok := r.Form[key]
	if !ok || len(vs) == 0 {
		return "", false
	}
	return vs[0], true
}
