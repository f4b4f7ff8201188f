package store

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"

	"github.com/pavelanni/galaxy-admin/internal/model"
)

// LastSuccessfulByDigest returns the most recent successful submission of a
// lesson file with the given digest.
// Returns nil and nil error if the file was never submitted successfully.
func (s *Store) LastSuccessfulByDigest(digest string) (*model.Submission, error) {
	if digest == "" {
		return nil, nil
	}
	var sub model.Submission
	err := s.db.QueryRow(
		`SELECT id, kind, title, remote_id, status, message, digest, created_at
		 FROM submissions WHERE digest = ? AND status = ? ORDER BY id DESC LIMIT 1`,
		digest, model.SubmissionOK,
	).Scan(&sub.ID, &sub.Kind, &sub.Title, &sub.RemoteID, &sub.Status, &sub.Message, &sub.Digest, &sub.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// LessonDigest fingerprints a lesson payload so repeated submissions of the
// same content can be detected.
func LessonDigest(req model.LessonRequest) string {
	data, err := json.Marshal(req)
	if err != nil {
		return ""
	}
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
