package httpserver

import (
	"errors"
	"net/http"

	rewarderrors "taskproof/contexts/rewards/ledger-service/domain/errors"
	rewardhttp "taskproof/contexts/rewards/ledger-service/transport/http"
)

func (s *Server) registerRewardRoutes() {
	s.mux.HandleFunc("GET /api/v1/validators/{validator_id}/profile", s.handleGetProfile)
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	validatorID := r.PathValue("validator_id")
	resp, err := s.ledger.Handler.GetProfileHandler(r.Context(), validatorID)
	if err != nil {
		writeRewardDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeRewardDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, rewarderrors.ErrProfileNotFound):
		writeRewardError(w, http.StatusNotFound, "profile_not_found", err.Error())
	case errors.Is(err, rewarderrors.ErrInvalidAmount):
		writeRewardError(w, http.StatusBadRequest, "invalid_amount", err.Error())
	default:
		writeRewardError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writeRewardError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, rewardhttp.ErrorResponse{
		Code:    code,
		Message: message,
	})
}
