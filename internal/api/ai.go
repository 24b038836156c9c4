package api

import (
	"net/http"
)

// AskRequest is the body of POST /api/ai/ask.
type AskRequest struct {
	Question string `json:"question"`
}

// AskResponse is the success body of POST /api/ai/ask.
type AskResponse struct {
	Answer string `json:"answer"`
}

func handleAsk(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AskRequest
		if !decodeBody(w, r, &req) {
			return
		}

		answer, err := deps.Assistant.Ask(r.Context(), req.Question)
		if err != nil {
			askError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, AskResponse{Answer: answer})
	}
}
