package model

// LessonFile is the on-disk JSON shape used to import and export lesson drafts.
// The subject is not part of the file; it is chosen when the lesson is submitted.
type LessonFile struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Questions   []Question `json:"questions"`
}

// HistoryExport is the top-level JSON structure for journal export.
type HistoryExport struct {
	GeneratedAt string       `json:"generated_at"`
	Count       int          `json:"count"`
	Submissions []Submission `json:"submissions"`
}
