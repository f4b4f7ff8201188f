package handler

import (
	"log/slog"
	"net/http"

	"github.com/pavelanni/galaxy-admin/internal/handler/views"
)

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	data := views.HistoryPage{
		Page:    h.page(r, "SubmissionHistory", "history", nil),
		Enabled: h.journal != nil,
	}
	if h.journal != nil {
		subs, err := h.journal.ListSubmissions(historyLimit)
		if err != nil {
			slog.Error("failed to list submissions", "error", err)
			http.Error(w, "failed to load history", http.StatusInternalServerError)
			return
		}
		data.Submissions = subs
	}
	h.render(w, r, http.StatusOK, "history", data)
}
