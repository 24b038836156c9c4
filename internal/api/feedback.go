package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/feedtrack/internal/feedback"
)

func handleListFeedback(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		f := feedback.Filter{
			Category: feedback.Category(q.Get("category")),
			Priority: feedback.Priority(q.Get("priority")),
			Status:   feedback.Status(q.Get("status")),
		}
		if err := f.Validate(); err != nil {
			feedbackError(w, r, "read", err)
			return
		}

		records, err := deps.Feedback.List(r.Context(), f)
		if err != nil {
			feedbackError(w, r, "read", err)
			return
		}
		writeJSON(w, http.StatusOK, records)
	}
}

func handleFeedbackStats(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := deps.Feedback.Stats(r.Context())
		if err != nil {
			feedbackError(w, r, "read", err)
			return
		}
		writeJSON(w, http.StatusOK, stats)
	}
}

func handleGetFeedback(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, err := deps.Feedback.Get(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			feedbackError(w, r, "read", err)
			return
		}
		writeJSON(w, http.StatusOK, rec)
	}
}

func handleCreateFeedback(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in feedback.NewRecord
		if !decodeBody(w, r, &in) {
			return
		}

		rec, err := deps.Feedback.Create(r.Context(), in)
		if err != nil {
			feedbackError(w, r, "create", err)
			return
		}
		writeJSON(w, http.StatusCreated, rec)
	}
}

func handleUpdateFeedback(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var patch feedback.Patch
		if !decodeBody(w, r, &patch) {
			return
		}

		rec, err := deps.Feedback.Update(r.Context(), chi.URLParam(r, "id"), patch)
		if err != nil {
			feedbackError(w, r, "update", err)
			return
		}
		writeJSON(w, http.StatusOK, rec)
	}
}

func handleDeleteFeedback(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := deps.Feedback.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
			feedbackError(w, r, "delete", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "Feedback deleted successfully"})
	}
}
