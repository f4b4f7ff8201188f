package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/pavelanni/galaxy-admin/internal/model"
	"github.com/pavelanni/galaxy-admin/internal/store"
)

const lessonJSON = `{
  "title": "Planets",
  "description": "Our solar system",
  "questions": [
    {"text": "Largest planet?", "options": ["Mars", "Jupiter", "Venus"], "correctAnswer": "Jupiter"}
  ]
}`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", p, err)
	}
	return p
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := rootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append(args, "--log-level", "error"))
	err := root.Execute()
	return out.String(), err
}

// platform is a fake learning platform API that records what it receives.
type platform struct {
	mu        sync.Mutex
	subjects  []model.SubjectRequest
	lessons   []model.LessonRequest
	uploads   []string
	generates []model.GenerateRequest
}

func newPlatform(t *testing.T) (*platform, *httptest.Server) {
	t.Helper()
	p := &platform{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		p.mu.Lock()
		defer p.mu.Unlock()
		switch {
		case r.URL.Path == "/api/v1/admin/subjects" && r.Method == http.MethodGet:
			_, _ = w.Write([]byte(`[{"_id":"s1","name":"Astronomy","availableForAges":["6-8","9-12"]},{"_id":"s2","name":"Biology","availableForAges":["3-5"]}]`))
		case r.URL.Path == "/api/v1/admin/subjects":
			var req model.SubjectRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Errorf("decode subject: %v", err)
			}
			p.subjects = append(p.subjects, req)
			_ = json.NewEncoder(w).Encode(map[string]any{"_id": "subj-9", "name": req.Name, "availableForAges": req.AvailableForAges})
		case r.URL.Path == "/api/v1/admin/lessons":
			var req model.LessonRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Errorf("decode lesson: %v", err)
			}
			p.lessons = append(p.lessons, req)
			_, _ = w.Write([]byte(`{"_id":"lesson-42","title":"Planets"}`))
		case r.URL.Path == "/api/v1/upload/image":
			_, hdr, err := r.FormFile("image")
			if err != nil {
				t.Errorf("FormFile: %v", err)
				http.Error(w, "no image", http.StatusBadRequest)
				return
			}
			p.uploads = append(p.uploads, hdr.Filename)
			_ = json.NewEncoder(w).Encode(model.ImageUpload{ImageURL: "https://cdn.example.com/" + hdr.Filename})
		case r.URL.Path == "/api/v1/ai/generate":
			var req model.GenerateRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Errorf("decode generate: %v", err)
			}
			p.generates = append(p.generates, req)
			_, _ = w.Write([]byte(`{"title":"Volcanoes","description":"Hot mountains","questions":[` +
				`{"text":"What comes out?","options":["Lava","Water","Sand"],"correctAnswer":"Lava","imagePrompt":"an erupting volcano"},` +
				`{"text":"Is it hot?","correctAnswer":"Yes"}]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return p, srv
}

func (p *platform) counts() (subjects, lessons, uploads int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.subjects), len(p.lessons), len(p.uploads)
}

func TestParseImageFlag(t *testing.T) {
	tests := []struct {
		in       string
		wantIdx  int
		wantPath string
		wantErr  bool
	}{
		{"0=img.png", 0, "img.png", false},
		{" 2 =dir/a=b.png", 2, "dir/a=b.png", false},
		{"img.png", 0, "", true},
		{"x=img.png", 0, "", true},
		{"1=", 0, "", true},
	}
	for _, tt := range tests {
		idx, path, err := parseImageFlag(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseImageFlag(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && (idx != tt.wantIdx || path != tt.wantPath) {
			t.Errorf("parseImageFlag(%q) = %d, %q", tt.in, idx, path)
		}
	}
}

func TestLessonsValidateCommand(t *testing.T) {
	good := writeFile(t, "good.json", lessonJSON)
	out, err := execute(t, "lessons", "validate", "--file", good)
	if err != nil {
		t.Fatalf("validate good file: %v\n%s", err, out)
	}
	if !strings.Contains(out, `ok: "Planets" with 1 questions`) {
		t.Errorf("unexpected output: %s", out)
	}

	bad := writeFile(t, "bad.json", `{"title": "", "questions": [{"text": "Q"}]}`)
	out, err = execute(t, "lessons", "validate", "--file", bad)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(out, "title: required") || !strings.Contains(out, "questions[0].correctAnswer: required") {
		t.Errorf("missing field errors: %s", out)
	}
	if strings.Contains(out, "subjectId") {
		t.Errorf("subject should not be required without --subject: %s", out)
	}

	broken := writeFile(t, "broken.json", `{not json`)
	if _, err := execute(t, "lessons", "validate", "--file", broken); err == nil {
		t.Error("expected parse error")
	}
}

func TestLessonsCreateCommand(t *testing.T) {
	p, srv := newPlatform(t)

	file := writeFile(t, "planets.json", lessonJSON)
	img := writeFile(t, "jupiter.png", "png")
	journal := filepath.Join(t.TempDir(), "journal.db")
	args := []string{"lessons", "create", "--file", file, "--subject", "subj-1",
		"--image", "0=" + img, "--api-url", srv.URL, "--journal", journal}

	out, err := execute(t, args...)
	if err != nil {
		t.Fatalf("create: %v\n%s", err, out)
	}
	if !strings.Contains(out, "lesson-42") {
		t.Errorf("output should print the remote id: %s", out)
	}
	p.mu.Lock()
	req := p.lessons[0]
	p.mu.Unlock()
	if req.SubjectID != "subj-1" || req.Questions[0].ImageURL != "https://cdn.example.com/jupiter.png" {
		t.Errorf("unexpected lesson request %+v", req)
	}

	// The same file is skipped the second time.
	if out, err := execute(t, args...); err != nil {
		t.Fatalf("second create: %v\n%s", err, out)
	}
	if _, n, _ := p.counts(); n != 1 {
		t.Errorf("lesson requests = %d, want 1", n)
	}

	if out, err := execute(t, append(args, "--force")...); err != nil {
		t.Fatalf("forced create: %v\n%s", err, out)
	}
	if _, n, uploads := p.counts(); n != 2 || uploads != 2 {
		t.Errorf("after --force: lessons = %d, uploads = %d; want 2, 2", n, uploads)
	}

	db, err := store.New(journal)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	count, err := db.SubmissionCount()
	if err != nil || count != 2 {
		t.Errorf("journal entries = %d, %v; want 2", count, err)
	}

	out, err = execute(t, "history", "--journal", journal)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if !strings.Contains(out, "lesson-42") || !strings.Contains(out, "Planets") {
		t.Errorf("history output: %s", out)
	}
}

func TestLessonsCreateRejectsBadImageIndex(t *testing.T) {
	file := writeFile(t, "planets.json", lessonJSON)
	_, err := execute(t, "lessons", "create", "--file", file, "--subject", "s", "--image", "3=x.png", "--api-url", "http://127.0.0.1:1")
	if err == nil || !strings.Contains(err.Error(), "index out of range") {
		t.Errorf("err = %v, want index out of range", err)
	}
}

func TestLessonsCreateValidatesBeforeUpload(t *testing.T) {
	p, srv := newPlatform(t)

	file := writeFile(t, "bad.json", `{"title": "Planets", "questions": [{"text": "Largest?", "options": ["Mars", "Jupiter"]}]}`)
	img := writeFile(t, "jupiter.png", "png")
	_, err := execute(t, "lessons", "create", "--file", file, "--subject", "subj-1",
		"--image", "0="+img, "--api-url", srv.URL)
	if err == nil || !strings.Contains(err.Error(), "questions[0].correctAnswer") {
		t.Fatalf("err = %v, want correctAnswer validation error", err)
	}
	if _, lessons, uploads := p.counts(); lessons != 0 || uploads != 0 {
		t.Errorf("lessons = %d, uploads = %d; want nothing sent for an invalid file", lessons, uploads)
	}
}

func TestSubjectsCreateCommand(t *testing.T) {
	p, srv := newPlatform(t)
	journal := filepath.Join(t.TempDir(), "journal.db")

	out, err := execute(t, "subjects", "create", "--name", "Astronomy", "--ages", "3-5, 6-8",
		"--api-url", srv.URL, "--journal", journal)
	if err != nil {
		t.Fatalf("create: %v\n%s", err, out)
	}
	if strings.TrimSpace(out) != "subj-9" {
		t.Errorf("output = %q, want subj-9", out)
	}

	p.mu.Lock()
	req := p.subjects[0]
	p.mu.Unlock()
	if req.Name != "Astronomy" || !slices.Equal(req.AvailableForAges, []string{"3-5", "6-8"}) {
		t.Errorf("subject request = %+v", req)
	}

	db, err := store.New(journal)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	subs, err := db.ListSubmissions(0)
	if err != nil || len(subs) != 1 {
		t.Fatalf("journal = %v, %v; want one entry", subs, err)
	}
	if subs[0].Kind != model.SubmissionSubject || subs[0].RemoteID != "subj-9" || subs[0].Status != model.SubmissionOK {
		t.Errorf("journal entry = %+v", subs[0])
	}
}

func TestSubjectsCreateRejectsEmptyAges(t *testing.T) {
	p, srv := newPlatform(t)

	_, err := execute(t, "subjects", "create", "--name", "Astronomy", "--ages", " , ", "--api-url", srv.URL)
	if err == nil || !strings.Contains(err.Error(), "availableForAges") {
		t.Errorf("err = %v, want availableForAges error", err)
	}
	if n, _, _ := p.counts(); n != 0 {
		t.Errorf("subject requests = %d, want 0", n)
	}
}

func TestSubjectsListCommand(t *testing.T) {
	_, srv := newPlatform(t)

	out, err := execute(t, "subjects", "list", "--api-url", srv.URL)
	if err != nil {
		t.Fatalf("list: %v\n%s", err, out)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 {
		t.Fatalf("want header and two rows, got:\n%s", out)
	}
	if !strings.HasPrefix(lines[0], "ID") || !strings.Contains(lines[1], "Astronomy") || !strings.Contains(lines[1], "6-8, 9-12") {
		t.Errorf("unexpected listing:\n%s", out)
	}
}

func TestLessonsGenerateCommand(t *testing.T) {
	p, srv := newPlatform(t)
	outPath := filepath.Join(t.TempDir(), "volcanoes.json")

	out, err := execute(t, "lessons", "generate", "--topic", " Volcanoes ", "--age-group", "6-8",
		"--api-url", srv.URL, "-o", outPath)
	if err != nil {
		t.Fatalf("generate: %v\n%s", err, out)
	}
	p.mu.Lock()
	req := p.generates[0]
	p.mu.Unlock()
	if req != (model.GenerateRequest{Topic: "Volcanoes", AgeGroup: "6-8"}) {
		t.Errorf("generate request = %+v", req)
	}

	// The written file is a lesson file the create command can import.
	lesson, _, err := loadLessonFile(outPath)
	if err != nil {
		t.Fatalf("load generated file: %v", err)
	}
	if lesson.Title() != "Volcanoes" || lesson.Len() != 2 {
		t.Fatalf("lesson = %q with %d questions", lesson.Title(), lesson.Len())
	}
	qs := lesson.Questions()
	if qs[0].ImagePrompt != "an erupting volcano" || qs[0].ImageURL != "" {
		t.Errorf("question 0 = %+v", qs[0])
	}
	if !slices.Equal(qs[1].Options, []string{"", "", ""}) {
		t.Errorf("question 1 options = %q, want three blanks", qs[1].Options)
	}
}

func TestImagesUploadCommand(t *testing.T) {
	p, srv := newPlatform(t)
	img := writeFile(t, "moon.png", "png")

	out, err := execute(t, "images", "upload", img, "--api-url", srv.URL)
	if err != nil {
		t.Fatalf("upload: %v\n%s", err, out)
	}
	if strings.TrimSpace(out) != "https://cdn.example.com/moon.png" {
		t.Errorf("output = %q", out)
	}
	if _, _, n := p.counts(); n != 1 {
		t.Errorf("uploads = %d, want 1", n)
	}

	if _, err := execute(t, "images", "upload", filepath.Join(t.TempDir(), "missing.png"), "--api-url", srv.URL); err == nil {
		t.Error("expected error for a missing file")
	}
}

func TestHistoryCommand(t *testing.T) {
	journal := filepath.Join(t.TempDir(), "journal.db")
	db, err := store.New(journal)
	if err != nil {
		t.Fatal(err)
	}
	var lastID int64
	for _, sub := range []model.Submission{
		{Kind: model.SubmissionSubject, Title: "Astronomy", RemoteID: "s1", Status: model.SubmissionOK},
		{Kind: model.SubmissionLesson, Title: "Planets", Status: model.SubmissionFailed, Message: "boom"},
		{Kind: model.SubmissionLesson, Title: "Stars", RemoteID: "l2", Status: model.SubmissionOK, Digest: "abc123"},
	} {
		if lastID, err = db.RecordSubmission(sub); err != nil {
			t.Fatal(err)
		}
	}
	db.Close()

	out, err := execute(t, "history", "--journal", journal, "-n", "1")
	if err != nil {
		t.Fatalf("history: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Stars") || strings.Contains(out, "Planets") {
		t.Errorf("limited table should show only the newest entry:\n%s", out)
	}
	if !strings.Contains(out, "showing 1 of 3 entries") {
		t.Errorf("missing truncation note:\n%s", out)
	}

	jsonPath := filepath.Join(t.TempDir(), "history.json")
	if out, err := execute(t, "history", "--journal", journal, "--format", "json", "-o", jsonPath); err != nil {
		t.Fatalf("history json: %v\n%s", err, out)
	}
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		t.Fatal(err)
	}
	var export model.HistoryExport
	if err := json.Unmarshal(data, &export); err != nil {
		t.Fatalf("decode export: %v\n%s", err, data)
	}
	if export.Count != 3 || len(export.Submissions) != 3 || export.Submissions[1].Message != "boom" {
		t.Errorf("export = %+v", export)
	}

	out, err = execute(t, "history", "--journal", journal, "--id", strconv.FormatInt(lastID, 10))
	if err != nil {
		t.Fatalf("history --id: %v\n%s", err, out)
	}
	if !strings.Contains(out, "abc123") || !strings.Contains(out, "Stars") {
		t.Errorf("entry detail:\n%s", out)
	}

	if _, err := execute(t, "history", "--journal", journal, "--id", "999"); err == nil {
		t.Error("expected error for an unknown id")
	}
}
