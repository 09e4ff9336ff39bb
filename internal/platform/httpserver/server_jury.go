package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"

	juryerrors "taskproof/contexts/verification/jury-consensus/domain/errors"
	juryhttp "taskproof/contexts/verification/jury-consensus/transport/http"
)

func (s *Server) registerJuryRoutes() {
	s.mux.HandleFunc("GET /api/v1/validators/queue", s.handleReviewQueue)
	s.mux.HandleFunc("POST /api/v1/queue/{item_id}/votes", s.handleCastVote)
}

func (s *Server) handleReviewQueue(w http.ResponseWriter, r *http.Request) {
	validatorID := r.Header.Get("X-User-Id")
	if validatorID == "" {
		writeJuryError(w, http.StatusUnauthorized, "missing_user", "X-User-Id header is required")
		return
	}

	resp, err := s.jury.Handler.ReviewQueueHandler(r.Context(), validatorID)
	if err != nil {
		writeJuryDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCastVote(w http.ResponseWriter, r *http.Request) {
	validatorID := r.Header.Get("X-User-Id")
	if validatorID == "" {
		writeJuryError(w, http.StatusUnauthorized, "missing_user", "X-User-Id header is required")
		return
	}

	var req juryhttp.CastVoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJuryError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	resp, err := s.jury.Handler.CastVoteHandler(r.Context(), validatorID, r.PathValue("item_id"), req)
	if err != nil {
		writeJuryDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJuryDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, juryerrors.ErrSubmissionNotFound):
		writeJuryError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, juryerrors.ErrInvalidVoteInput):
		writeJuryError(w, http.StatusBadRequest, "invalid_vote", err.Error())
	case errors.Is(err, juryerrors.ErrSelfReviewForbidden):
		writeJuryError(w, http.StatusForbidden, "self_review_forbidden", err.Error())
	case errors.Is(err, juryerrors.ErrDuplicateVote):
		writeJuryError(w, http.StatusConflict, "duplicate_vote", err.Error())
	case errors.Is(err, juryerrors.ErrSubmissionNotReviewable):
		writeJuryError(w, http.StatusConflict, "not_reviewable", err.Error())
	default:
		writeJuryError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writeJuryError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, juryhttp.ErrorResponse{
		Code:    code,
		Message: message,
	})
}
