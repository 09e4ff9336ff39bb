package httpserver

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	httpSwagger "github.com/swaggo/http-swagger"

	ledgerservice "taskproof/contexts/rewards/ledger-service"
	juryconsensus "taskproof/contexts/verification/jury-consensus"
	submissionpipeline "taskproof/contexts/verification/submission-pipeline"
	pipelineerrors "taskproof/contexts/verification/submission-pipeline/domain/errors"
	pipelinehttp "taskproof/contexts/verification/submission-pipeline/transport/http"
	_ "taskproof/internal/platform/httpserver/docs"
)

type Server struct {
	mux         *http.ServeMux
	logger      *slog.Logger
	addr        string
	submissions submissionpipeline.Module
	jury        juryconsensus.Module
	ledger      ledgerservice.Module
}

func New(
	submissions submissionpipeline.Module,
	jury juryconsensus.Module,
	ledger ledgerservice.Module,
	logger *slog.Logger,
	addr string,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if addr == "" {
		addr = ":8080"
	}

	s := &Server{
		mux:         http.NewServeMux(),
		logger:      logger,
		addr:        addr,
		submissions: submissions,
		jury:        jury,
		ledger:      ledger,
	}
	s.registerRoutes()
	return s
}

func (s *Server) Start() error {
	s.logger.Info("http server starting",
		"event", "http_server_starting",
		"module", "internal/platform/httpserver",
		"layer", "platform",
		"addr", s.addr,
	)
	return http.ListenAndServe(s.addr, s.mux)
}

// Handler exposes the mux for tests.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) registerRoutes() {
	s.mux.Handle("/swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	s.mux.HandleFunc("GET /health", s.handleHealth)

	s.mux.HandleFunc("POST /api/v1/submissions", s.handleCreateSubmission)
	s.mux.HandleFunc("GET /api/v1/submissions/{submission_id}", s.handleGetSubmission)
	s.mux.HandleFunc("GET /api/v1/submissions/{submission_id}/trace", s.handleGetTrace)

	s.registerJuryRoutes()
	s.registerRewardRoutes()
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCreateSubmission(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		writeSubmissionError(w, http.StatusUnauthorized, "missing_user", "X-User-Id header is required")
		return
	}

	var req pipelinehttp.CreateSubmissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeSubmissionError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	resp, err := s.submissions.Handler.CreateSubmissionHandler(
		r.Context(),
		userID,
		r.Header.Get("Idempotency-Key"),
		req,
	)
	if err != nil {
		writeSubmissionDomainError(w, err)
		return
	}
	status := http.StatusCreated
	if resp.Replayed {
		status = http.StatusOK
	}
	writeJSON(w, status, resp)
}

func (s *Server) handleGetSubmission(w http.ResponseWriter, r *http.Request) {
	submissionID := r.PathValue("submission_id")
	resp, err := s.submissions.Handler.GetSubmissionHandler(r.Context(), submissionID)
	if err != nil {
		writeSubmissionDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetTrace(w http.ResponseWriter, r *http.Request) {
	submissionID := r.PathValue("submission_id")
	resp, err := s.submissions.Handler.GetTraceHandler(r.Context(), submissionID)
	if err != nil {
		writeSubmissionDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeSubmissionDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, pipelineerrors.ErrSubmissionNotFound),
		errors.Is(err, pipelineerrors.ErrCampaignNotFound),
		errors.Is(err, pipelineerrors.ErrCheckpointNotFound):
		writeSubmissionError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, pipelineerrors.ErrCampaignNotActive):
		writeSubmissionError(w, http.StatusConflict, "campaign_not_active", err.Error())
	case errors.Is(err, pipelineerrors.ErrInvalidSubmissionInput),
		errors.Is(err, pipelineerrors.ErrMissingGPS):
		writeSubmissionError(w, http.StatusBadRequest, "invalid_submission", err.Error())
	case errors.Is(err, pipelineerrors.ErrIdempotencyKeyRequired):
		writeSubmissionError(w, http.StatusBadRequest, "idempotency_key_required", err.Error())
	case errors.Is(err, pipelineerrors.ErrIdempotencyConflict):
		writeSubmissionError(w, http.StatusConflict, "idempotency_conflict", err.Error())
	case errors.Is(err, pipelineerrors.ErrAlreadyFinalized),
		errors.Is(err, pipelineerrors.ErrVerificationConflict):
		writeSubmissionError(w, http.StatusConflict, "conflict", err.Error())
	default:
		writeSubmissionError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writeSubmissionError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, pipelinehttp.ErrorResponse{
		Code:    code,
		Message: message,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
