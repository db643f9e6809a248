package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/terra-clan/challenge-engine/internal/progress"
)

type submitReportRequest struct {
	Done bool `json:"done"`
	// Value is a string on the wire; numeric strings like "12" are coerced
	Value string `json:"value"`
}

// handleSubmitReport records today's report for a participant
func (s *Server) handleSubmitReport(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r)
	participantID, ok := urlParamID(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "validation_error", "invalid participant id")
		return
	}

	if !s.authorizeParticipant(w, r, participantID, user.ID) {
		return
	}

	var req submitReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	report, err := s.progress.SubmitReport(r.Context(), participantID, req.Done, req.Value)
	if err != nil {
		s.respondProgressError(w, err, "failed to submit report")
		return
	}

	respondJSON(w, http.StatusCreated, report)
}

// handleGetProgress returns the derived progress view for a participant
func (s *Server) handleGetProgress(w http.ResponseWriter, r *http.Request) {
	participantID, ok := urlParamID(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "validation_error", "invalid participant id")
		return
	}

	p, err := s.progress.Compute(r.Context(), participantID)
	if err != nil {
		s.respondProgressError(w, err, "failed to compute progress")
		return
	}

	respondJSON(w, http.StatusOK, p)
}

// handleListReports returns the full report log of a participant
func (s *Server) handleListReports(w http.ResponseWriter, r *http.Request) {
	participantID, ok := urlParamID(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "validation_error", "invalid participant id")
		return
	}

	reports, err := s.repo.ListReports(r.Context(), participantID)
	if err != nil {
		slog.Error("failed to list reports", "error", err, "participant_id", participantID)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to list reports")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"reports": reports,
		"count":   len(reports),
	})
}

// handleRating returns the pre-sorted challenge leaderboard
func (s *Server) handleRating(w http.ResponseWriter, r *http.Request) {
	challengeID, ok := urlParamID(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "validation_error", "invalid challenge id")
		return
	}

	rating, err := s.progress.Rating(r.Context(), challengeID)
	if err != nil {
		s.respondProgressError(w, err, "failed to fetch rating")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"rating": rating,
		"count":  len(rating),
	})
}

// authorizeParticipant ensures the participant row belongs to the caller.
// Writes the error response and returns false when it does not.
func (s *Server) authorizeParticipant(w http.ResponseWriter, r *http.Request, participantID, userID int64) bool {
	p, err := s.repo.GetParticipantByID(r.Context(), participantID)
	if err != nil {
		slog.Error("failed to load participant", "error", err, "participant_id", participantID)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to load participant")
		return false
	}
	if p == nil {
		respondError(w, http.StatusNotFound, "not_found", "participant not found")
		return false
	}
	if p.UserID != userID {
		respondError(w, http.StatusForbidden, "forbidden", "reports can only be filed for yourself")
		return false
	}
	return true
}

// respondProgressError maps progress service errors to HTTP responses
func (s *Server) respondProgressError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, progress.ErrParticipantNotFound):
		respondError(w, http.StatusNotFound, "not_found", "participant not found")
	case errors.Is(err, progress.ErrChallengeNotFound):
		respondError(w, http.StatusNotFound, "not_found", "challenge not found")
	case errors.Is(err, progress.ErrNotStarted):
		respondError(w, http.StatusConflict, "not_started", "the challenge has not started yet")
	case errors.Is(err, progress.ErrEnded):
		respondError(w, http.StatusConflict, "ended", "the challenge has ended")
	case errors.Is(err, progress.ErrDailyLimitReached):
		respondError(w, http.StatusConflict, "daily_limit_reached", "the daily report limit is reached")
	case errors.Is(err, progress.ErrValueRequired):
		respondError(w, http.StatusBadRequest, "value_required", "a metric value is required")
	case errors.Is(err, progress.ErrInvalidValue):
		respondError(w, http.StatusBadRequest, "invalid_value", "the metric value must be a number")
	default:
		slog.Error(fallback, "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", fallback)
	}
}
