package model

import (
	"context"
	"encoding/json"
	"time"
)

// Subject is a curriculum category lessons belong to, scoped to an age range.
type Subject struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	AvailableForAges []string `json:"availableForAges"`
}

// UnmarshalJSON accepts both the Mongo-style "_id" key the platform returns and a plain "id".
func (s *Subject) UnmarshalJSON(data []byte) error {
	var raw struct {
		MongoID          string   `json:"_id"`
		ID               string   `json:"id"`
		Name             string   `json:"name"`
		AvailableForAges []string `json:"availableForAges"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	s.ID = raw.MongoID
	if s.ID == "" {
		s.ID = raw.ID
	}
	s.Name = raw.Name
	s.AvailableForAges = raw.AvailableForAges
	return nil
}

// SubjectRequest is the payload for creating a subject.
type SubjectRequest struct {
	Name             string   `json:"name"`
	AvailableForAges []string `json:"availableForAges"`
}

// Question is one multiple-choice question of a lesson.
type Question struct {
	Text          string   `json:"text"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correctAnswer"`
	ImageURL      string   `json:"imageUrl"`
	ImagePrompt   string   `json:"imagePrompt,omitempty"`
}

// Clone returns a copy that shares no memory with q.
func (q Question) Clone() Question {
	c := q
	if q.Options != nil {
		c.Options = make([]string, len(q.Options))
		copy(c.Options, q.Options)
	}
	return c
}

// LessonRequest is the payload for creating a lesson.
type LessonRequest struct {
	SubjectID   string     `json:"subjectId"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Questions   []Question `json:"questions"`
}

// Lesson is a lesson as returned by the platform after creation.
type Lesson struct {
	ID          string     `json:"id"`
	SubjectID   string     `json:"subjectId"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Questions   []Question `json:"questions"`
}

// UnmarshalJSON accepts "_id" or "id" for the lesson identifier.
func (l *Lesson) UnmarshalJSON(data []byte) error {
	type plain Lesson
	var raw struct {
		plain
		MongoID string `json:"_id"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*l = Lesson(raw.plain)
	if raw.MongoID != "" {
		l.ID = raw.MongoID
	}
	return nil
}

// GenerateRequest asks the content generator for a lesson on a topic.
type GenerateRequest struct {
	Topic    string `json:"topic"`
	AgeGroup string `json:"ageGroup"`
}

// GeneratedQuestion is a question produced by the content generator.
// It never carries an image URL; images are attached by the operator afterwards.
type GeneratedQuestion struct {
	Text          string   `json:"text"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correctAnswer"`
	ImagePrompt   string   `json:"imagePrompt"`
}

// GeneratedLesson is the content generator's response.
type GeneratedLesson struct {
	Title       string              `json:"title"`
	Description string              `json:"description"`
	Questions   []GeneratedQuestion `json:"questions"`
}

// ImageUpload is the upload endpoint's response.
type ImageUpload struct {
	ImageURL string `json:"imageUrl"`
}

// SubmissionKind identifies what was submitted to the platform.
type SubmissionKind string

const (
	SubmissionSubject SubmissionKind = "subject"
	SubmissionLesson  SubmissionKind = "lesson"
)

// SubmissionStatus is the outcome of a submission.
type SubmissionStatus string

const (
	SubmissionOK     SubmissionStatus = "ok"
	SubmissionFailed SubmissionStatus = "failed"
)

// Submission is one journal entry describing a create call and its outcome.
type Submission struct {
	ID        int64            `json:"id"`
	Kind      SubmissionKind   `json:"kind"`
	Title     string           `json:"title"`
	RemoteID  string           `json:"remote_id,omitempty"`
	Status    SubmissionStatus `json:"status"`
	Message   string           `json:"message,omitempty"`
	Digest    string           `json:"digest,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}

// ConsoleConfig holds runtime console parameters set via CLI flags.
type ConsoleConfig struct {
	BasePath      string        // URL prefix for sub-path deployments (e.g. "/admin")
	SecureCookies bool          // Set Secure flag on cookies (disable for local dev)
	StrictAnswers bool          // Require correctAnswer to be one of the options
	SessionTTL    time.Duration // Idle lifetime of a console draft
	MaxUploadSize int64         // Max bytes accepted for image and JSON uploads
}

type basePathCtxKey struct{}

// ContextWithBasePath stores the base path prefix in context.
func ContextWithBasePath(ctx context.Context, basePath string) context.Context {
	return context.WithValue(ctx, basePathCtxKey{}, basePath)
}

// BasePathFromContext retrieves the base path from context (empty string if not set).
func BasePathFromContext(ctx context.Context) string {
	bp, _ := ctx.Value(basePathCtxKey{}).(string)
	return bp
}

type csrfCtxKey struct{}

// ContextWithCSRFToken stores the CSRF token in context.
func ContextWithCSRFToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, csrfCtxKey{}, token)
}

// CSRFTokenFromContext retrieves the CSRF token from context.
func CSRFTokenFromContext(ctx context.Context) string {
	t, _ := ctx.Value(csrfCtxKey{}).(string)
	return t
}
