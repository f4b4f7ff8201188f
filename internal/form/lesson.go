// Package form holds the in-memory authoring state for subjects and lessons
// before they are submitted to the platform.
package form

import (
	"errors"
	"fmt"

	"github.com/pavelanni/galaxy-admin/internal/model"
)

var (
	// ErrIndexOutOfRange is returned when a question or option index does not exist.
	ErrIndexOutOfRange = errors.New("index out of range")
	// ErrUnknownField is returned when a field name is not editable.
	ErrUnknownField = errors.New("unknown field")
)

// Field names a top-level lesson field.
type Field string

const (
	FieldSubjectID   Field = "subjectId"
	FieldTitle       Field = "title"
	FieldDescription Field = "description"
)

// QuestionField names a scalar field of a question.
type QuestionField string

const (
	QuestionText          QuestionField = "text"
	QuestionCorrectAnswer QuestionField = "correctAnswer"
	QuestionImageURL      QuestionField = "imageUrl"
	QuestionImagePrompt   QuestionField = "imagePrompt"
)

// DefaultOptionCount is the number of option slots a blank question starts with.
const DefaultOptionCount = 3

// BlankQuestion returns a question with empty text, three empty options,
// and no answer or image.
func BlankQuestion() model.Question {
	return model.Question{Options: make([]string, DefaultOptionCount)}
}

// Lesson is a lesson draft. It is owned by a single editing session and is
// not safe for concurrent use; callers serialize access.
type Lesson struct {
	subjectID   string
	title       string
	description string
	questions   []model.Question
	version     uint64
}

// NewLesson returns a draft in its initial state: one blank question.
func NewLesson() *Lesson {
	l := &Lesson{}
	l.Reset()
	return l
}

// SubjectID returns the selected subject.
func (l *Lesson) SubjectID() string { return l.subjectID }

// Title returns the lesson title.
func (l *Lesson) Title() string { return l.title }

// Description returns the lesson description.
func (l *Lesson) Description() string { return l.description }

// Version changes whenever the question list is replaced wholesale, so a
// question index taken under one version must not be used under another.
func (l *Lesson) Version() uint64 { return l.version }

// Len returns the number of questions.
func (l *Lesson) Len() int { return len(l.questions) }

// Questions returns a deep copy of the question list.
func (l *Lesson) Questions() []model.Question {
	return cloneQuestions(l.questions)
}

// Question returns a copy of the question at index.
func (l *Lesson) Question(index int) (model.Question, error) {
	if index < 0 || index >= len(l.questions) {
		return model.Question{}, fmt.Errorf("question %d: %w", index, ErrIndexOutOfRange)
	}
	return l.questions[index].Clone(), nil
}

// SetField replaces the title, description, or selected subject.
func (l *Lesson) SetField(field Field, value string) error {
	switch field {
	case FieldSubjectID:
		l.subjectID = value
	case FieldTitle:
		l.title = value
	case FieldDescription:
		l.description = value
	default:
		return fmt.Errorf("lesson field %q: %w", field, ErrUnknownField)
	}
	return nil
}

// AddQuestion appends a blank question.
func (l *Lesson) AddQuestion() {
	l.questions = append(l.questions, BlankQuestion())
}

// UpdateQuestionField replaces one scalar field of the question at index.
func (l *Lesson) UpdateQuestionField(index int, field QuestionField, value string) error {
	if index < 0 || index >= len(l.questions) {
		return fmt.Errorf("question %d: %w", index, ErrIndexOutOfRange)
	}
	q := &l.questions[index]
	switch field {
	case QuestionText:
		q.Text = value
	case QuestionCorrectAnswer:
		q.CorrectAnswer = value
	case QuestionImageURL:
		q.ImageURL = value
	case QuestionImagePrompt:
		q.ImagePrompt = value
	default:
		return fmt.Errorf("question field %q: %w", field, ErrUnknownField)
	}
	return nil
}

// UpdateOption replaces one option of the question at qIndex.
func (l *Lesson) UpdateOption(qIndex, oIndex int, value string) error {
	if qIndex < 0 || qIndex >= len(l.questions) {
		return fmt.Errorf("question %d: %w", qIndex, ErrIndexOutOfRange)
	}
	opts := l.questions[qIndex].Options
	if oIndex < 0 || oIndex >= len(opts) {
		return fmt.Errorf("question %d option %d: %w", qIndex, oIndex, ErrIndexOutOfRange)
	}
	opts[oIndex] = value
	return nil
}

// AttachImage sets the image URL of the question at qIndex.
func (l *Lesson) AttachImage(qIndex int, url string) error {
	return l.UpdateQuestionField(qIndex, QuestionImageURL, url)
}

// ReplaceAll overwrites title, description and the whole question list.
// The subject selection is kept.
func (l *Lesson) ReplaceAll(title, description string, questions []model.Question) {
	l.title = title
	l.description = description
	l.questions = cloneQuestions(questions)
	if l.questions == nil {
		l.questions = []model.Question{}
	}
	l.version++
}

// Reset returns the draft to its initial state.
func (l *Lesson) Reset() {
	l.subjectID = ""
	l.title = ""
	l.description = ""
	l.questions = []model.Question{BlankQuestion()}
	l.version++
}

// Request builds the create-lesson payload from the current draft.
func (l *Lesson) Request() model.LessonRequest {
	return model.LessonRequest{
		SubjectID:   l.subjectID,
		Title:       l.title,
		Description: l.description,
		Questions:   cloneQuestions(l.questions),
	}
}

func cloneQuestions(qs []model.Question) []model.Question {
	if qs == nil {
		return nil
	}
	out := make([]model.Question, len(qs))
	for i, q := range qs {
		out[i] = q.Clone()
	}
	return out
}
