package form

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/pavelanni/galaxy-admin/internal/model"
)

// ErrMalformedJSON is returned when an imported lesson file cannot be parsed.
var ErrMalformedJSON = errors.New("malformed lesson JSON")

// ImportJSON parses a lesson file and applies it to the draft.
//
// Title and description are only replaced when the file carries a non-empty
// string for them. The question list is always replaced: with the mapped
// questions when "questions" is an array, otherwise with an empty list.
// On a parse error the draft is left unchanged.
func (l *Lesson) ImportJSON(data []byte) error {
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedJSON, err)
	}
	if doc == nil {
		return fmt.Errorf("%w: top-level value must be an object", ErrMalformedJSON)
	}

	questions := []model.Question{}
	if raw, ok := doc["questions"].([]any); ok {
		questions = make([]model.Question, 0, len(raw))
		for i, item := range raw {
			if item == nil {
				return fmt.Errorf("%w: question %d is null", ErrMalformedJSON, i)
			}
			obj, _ := item.(map[string]any)
			questions = append(questions, importQuestion(obj))
		}
	}

	title := l.title
	if s := stringValue(doc, "title"); s != "" {
		title = s
	}
	description := l.description
	if s := stringValue(doc, "description"); s != "" {
		description = s
	}
	l.ReplaceAll(title, description, questions)
	return nil
}

// MergeAIResponse replaces the draft content with generated content.
// Generated questions never carry an image, so ImageURL is always empty.
func (l *Lesson) MergeAIResponse(resp model.GeneratedLesson) {
	questions := make([]model.Question, 0, len(resp.Questions))
	for _, gq := range resp.Questions {
		opts := gq.Options
		if opts == nil {
			opts = make([]string, DefaultOptionCount)
		}
		questions = append(questions, model.Question{
			Text:          gq.Text,
			Options:       opts,
			CorrectAnswer: gq.CorrectAnswer,
			ImageURL:      "",
			ImagePrompt:   gq.ImagePrompt,
		})
	}
	l.ReplaceAll(resp.Title, resp.Description, questions)
}

// ExportJSON renders the draft in the lesson file format accepted by ImportJSON.
func (l *Lesson) ExportJSON() ([]byte, error) {
	file := model.LessonFile{
		Title:       l.title,
		Description: l.description,
		Questions:   l.Questions(),
	}
	if file.Questions == nil {
		file.Questions = []model.Question{}
	}
	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal lesson: %w", err)
	}
	return data, nil
}

func importQuestion(obj map[string]any) model.Question {
	q := model.Question{
		Text:          stringValue(obj, "text"),
		CorrectAnswer: stringValue(obj, "correctAnswer"),
		ImageURL:      stringValue(obj, "imageUrl"),
		ImagePrompt:   stringValue(obj, "imagePrompt"),
	}
	if raw, ok := obj["options"].([]any); ok {
		q.Options = make([]string, len(raw))
		for i, o := range raw {
			q.Options[i], _ = o.(string)
		}
	} else {
		q.Options = make([]string, DefaultOptionCount)
	}
	return q
}

// stringValue returns m[key] when it is a string, "" otherwise.
func stringValue(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}
