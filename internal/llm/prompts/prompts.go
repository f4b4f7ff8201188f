package prompts

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"regexp"
	"strings"
	"sync"
	"text/template"
	"unicode/utf8"
)

//go:embed templates/*.txt
var templatesFS embed.FS

// FS returns the embedded prompt templates.
func FS() fs.FS { return templatesFS }

var (
	lessonTopicRegex        = regexp.MustCompile(`(?i)</?\s*lesson-topic\b[^>]*>`)
	systemInstructionsRegex = regexp.MustCompile(`(?i)</?\s*system-instructions\b[^>]*>`)
)

const (
	maxTopicRunes    = 500
	maxAgeGroupRunes = 50
)

var (
	loadOnce       sync.Once
	loadErr        error
	lessonTemplate *template.Template
)

// LessonData holds template data for lesson generation prompts.
type LessonData struct {
	Topic        string
	AgeGroup     string
	NumQuestions int
	NumOptions   int
}

// Load loads prompt templates from fsys.
// It uses sync.Once to ensure templates are loaded only once.
func Load(fsys fs.FS) error {
	loadOnce.Do(func() {
		const file = "templates/generate_lesson.txt"
		content, err := fs.ReadFile(fsys, file)
		if err != nil {
			loadErr = errors.New("failed to read prompt file " + file + ": " + err.Error())
			return
		}
		tmpl, err := template.New("lesson").Parse(string(content))
		if err != nil {
			loadErr = errors.New("failed to parse prompt template " + file + ": " + err.Error())
			return
		}
		lessonTemplate = tmpl
	})
	return loadErr
}

// BuildLessonPrompt renders the lesson generation prompt. Topic and age group
// are sanitized first.
func BuildLessonPrompt(data LessonData) (string, error) {
	if lessonTemplate == nil {
		if loadErr != nil {
			return "", fmt.Errorf("templates load failed: %w", loadErr)
		}
		return "", errors.New("templates not initialized: call Load first")
	}
	data.Topic = sanitizeInput(data.Topic, maxTopicRunes)
	data.AgeGroup = sanitizeInput(data.AgeGroup, maxAgeGroupRunes)

	var buf bytes.Buffer
	if err := lessonTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func sanitizeInput(s string, limit int) string {
	s = lessonTopicRegex.ReplaceAllString(s, "")
	s = systemInstructionsRegex.ReplaceAllString(s, "")
	s = strings.Join(strings.Fields(s), " ")

	if utf8.RuneCountInString(s) > limit {
		s = string([]rune(s)[:limit])
	}
	return s
}
