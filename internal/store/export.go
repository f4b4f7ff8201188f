package store

import (
	"fmt"
	"time"

	"github.com/pavelanni/galaxy-admin/internal/model"
)

// ExportHistory builds an export-ready snapshot of the whole journal.
func (s *Store) ExportHistory(now time.Time) (model.HistoryExport, error) {
	subs, err := s.ListSubmissions(0)
	if err != nil {
		return model.HistoryExport{}, fmt.Errorf("list submissions: %w", err)
	}
	if subs == nil {
		subs = []model.Submission{}
	}
	return model.HistoryExport{
		GeneratedAt: now.UTC().Format(time.RFC3339),
		Count:       len(subs),
		Submissions: subs,
	}, nil
}
