package form

import (
	"fmt"
	"slices"
	"strings"
)

// FieldError describes one missing or invalid form field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e FieldError) Error() string {
	return e.Field + ": " + e.Message
}

// ValidationErrors lists every problem found in a form. A nil or empty list means valid.
type ValidationErrors []FieldError

func (v ValidationErrors) Error() string {
	msgs := make([]string, len(v))
	for i, e := range v {
		msgs[i] = e.Error()
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

// Err returns v as an error, or nil when v is empty.
func (v ValidationErrors) Err() error {
	if len(v) == 0 {
		return nil
	}
	return v
}

func (v *ValidationErrors) add(field, msg string) {
	*v = append(*v, FieldError{Field: field, Message: msg})
}

// ValidateOptions tunes lesson validation.
type ValidateOptions struct {
	// RequireAnswerInOptions rejects questions whose correct answer is not one of the options.
	RequireAnswerInOptions bool
}

// MinOptions is the smallest number of options a question may have.
const MinOptions = 2

// Validate checks that every required lesson field is filled in.
func (l *Lesson) Validate(opts ValidateOptions) ValidationErrors {
	var errs ValidationErrors
	if blank(l.subjectID) {
		errs.add(string(FieldSubjectID), "required")
	}
	if blank(l.title) {
		errs.add(string(FieldTitle), "required")
	}
	if blank(l.description) {
		errs.add(string(FieldDescription), "required")
	}
	for i, q := range l.questions {
		prefix := fmt.Sprintf("questions[%d]", i)
		if blank(q.Text) {
			errs.add(prefix+".text", "required")
		}
		if len(q.Options) < MinOptions {
			errs.add(prefix+".options", fmt.Sprintf("at least %d options required", MinOptions))
		}
		for j, o := range q.Options {
			if blank(o) {
				errs.add(fmt.Sprintf("%s.options[%d]", prefix, j), "required")
			}
		}
		if blank(q.CorrectAnswer) {
			errs.add(prefix+".correctAnswer", "required")
		} else if opts.RequireAnswerInOptions && !slices.Contains(q.Options, q.CorrectAnswer) {
			errs.add(prefix+".correctAnswer", "must match one of the options")
		}
	}
	return errs
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}
