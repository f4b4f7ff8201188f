package store

import (
	"database/sql"
	"testing"
	"time"

	"github.com/pavelanni/galaxy-admin/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("newTestStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func recordTestSubmission(t *testing.T, s *Store, kind model.SubmissionKind, title string, status model.SubmissionStatus, digest string) int64 {
	t.Helper()
	id, err := s.RecordSubmission(model.Submission{
		Kind:   kind,
		Title:  title,
		Status: status,
		Digest: digest,
	})
	if err != nil {
		t.Fatalf("recordTestSubmission: %v", err)
	}
	return id
}

func TestSubmissionCRUD(t *testing.T) {
	s := newTestStore(t)

	count, err := s.SubmissionCount()
	if err != nil {
		t.Fatalf("SubmissionCount: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected 0 submissions, got %d", count)
	}

	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	id, err := s.RecordSubmission(model.Submission{
		Kind:      model.SubmissionLesson,
		Title:     "Planets",
		RemoteID:  "l1",
		Status:    model.SubmissionOK,
		Digest:    "abc",
		CreatedAt: at,
	})
	if err != nil {
		t.Fatalf("RecordSubmission: %v", err)
	}

	got, err := s.GetSubmission(id)
	if err != nil {
		t.Fatalf("GetSubmission: %v", err)
	}
	if got.Kind != model.SubmissionLesson || got.Title != "Planets" || got.RemoteID != "l1" {
		t.Errorf("unexpected submission %+v", got)
	}
	if !got.CreatedAt.Equal(at) {
		t.Errorf("created_at = %v, want %v", got.CreatedAt, at)
	}

	_, err = s.GetSubmission(9999)
	if err != sql.ErrNoRows {
		t.Errorf("expected ErrNoRows, got %v", err)
	}
}

func TestRecordSubmissionSetsTime(t *testing.T) {
	s := newTestStore(t)
	id := recordTestSubmission(t, s, model.SubmissionSubject, "Math", model.SubmissionOK, "")
	got, err := s.GetSubmission(id)
	if err != nil {
		t.Fatalf("GetSubmission: %v", err)
	}
	if got.CreatedAt.IsZero() {
		t.Error("expected created_at to be set")
	}
}

func TestListSubmissions(t *testing.T) {
	s := newTestStore(t)
	recordTestSubmission(t, s, model.SubmissionSubject, "Math", model.SubmissionOK, "")
	recordTestSubmission(t, s, model.SubmissionLesson, "Planets", model.SubmissionFailed, "d1")
	recordTestSubmission(t, s, model.SubmissionLesson, "Moons", model.SubmissionOK, "d2")

	tests := []struct {
		name      string
		limit     int
		wantCount int
		wantFirst string
	}{
		{"all", 0, 3, "Moons"},
		{"negative is all", -1, 3, "Moons"},
		{"limited", 2, 2, "Moons"},
		{"limit above count", 10, 3, "Moons"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			subs, err := s.ListSubmissions(tt.limit)
			if err != nil {
				t.Fatalf("ListSubmissions: %v", err)
			}
			if len(subs) != tt.wantCount {
				t.Fatalf("expected %d, got %d", tt.wantCount, len(subs))
			}
			if subs[0].Title != tt.wantFirst {
				t.Errorf("first = %q, want %q", subs[0].Title, tt.wantFirst)
			}
		})
	}
}

func TestLastSuccessfulByDigest(t *testing.T) {
	s := newTestStore(t)

	got, err := s.LastSuccessfulByDigest("d1")
	if err != nil || got != nil {
		t.Fatalf("expected nil, nil for unknown digest, got %v, %v", got, err)
	}

	recordTestSubmission(t, s, model.SubmissionLesson, "Planets", model.SubmissionFailed, "d1")
	got, err = s.LastSuccessfulByDigest("d1")
	if err != nil || got != nil {
		t.Fatalf("failed submissions must not count, got %v, %v", got, err)
	}

	id := recordTestSubmission(t, s, model.SubmissionLesson, "Planets", model.SubmissionOK, "d1")
	got, err = s.LastSuccessfulByDigest("d1")
	if err != nil {
		t.Fatalf("LastSuccessfulByDigest: %v", err)
	}
	if got == nil || got.ID != id {
		t.Errorf("expected submission %d, got %+v", id, got)
	}

	got, err = s.LastSuccessfulByDigest("")
	if err != nil || got != nil {
		t.Errorf("empty digest should never match, got %v, %v", got, err)
	}
}

func TestExportHistory(t *testing.T) {
	s := newTestStore(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	exp, err := s.ExportHistory(now)
	if err != nil {
		t.Fatalf("ExportHistory: %v", err)
	}
	if exp.Count != 0 || exp.Submissions == nil {
		t.Errorf("empty export should have a non-nil empty list, got %+v", exp)
	}

	recordTestSubmission(t, s, model.SubmissionSubject, "Math", model.SubmissionOK, "")
	exp, err = s.ExportHistory(now)
	if err != nil {
		t.Fatalf("ExportHistory: %v", err)
	}
	if exp.Count != 1 || exp.GeneratedAt != "2026-03-01T12:00:00Z" {
		t.Errorf("unexpected export %+v", exp)
	}
}

func TestLessonDigest(t *testing.T) {
	a := model.LessonRequest{SubjectID: "s1", Title: "Planets", Questions: []model.Question{{Text: "Q", Options: []string{"a", "b"}}}}
	b := a
	b.Questions = []model.Question{{Text: "Q", Options: []string{"a", "b"}}}

	if LessonDigest(a) != LessonDigest(b) {
		t.Error("equal payloads should share a digest")
	}
	if len(LessonDigest(a)) != 64 {
		t.Errorf("digest length = %d, want 64", len(LessonDigest(a)))
	}
	b.Questions[0].Options[1] = "c"
	if LessonDigest(a) == LessonDigest(b) {
		t.Error("different payloads should not share a digest")
	}
}
