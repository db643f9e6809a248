package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/terra-clan/challenge-engine/internal/models"
)

// Response helpers

type apiResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *apiError   `json:"error,omitempty"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := apiResponse{
		Success: status >= 200 && status < 300,
		Data:    data,
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := apiResponse{
		Success: false,
		Error: &apiError{
			Code:    code,
			Message: message,
		},
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}

// urlParamID parses a positive int64 URL parameter
func urlParamID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// Health handlers

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.repo.Ping(r.Context()); err != nil {
		respondError(w, http.StatusServiceUnavailable, "not_ready", "service not ready")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ready",
	})
}

// Challenge handlers

func (s *Server) handleListChallenges(w http.ResponseWriter, r *http.Request) {
	filters := models.ChallengeFilters{Limit: 50}

	q := r.URL.Query()
	if v := q.Get("creator_id"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			filters.CreatorID = id
		}
	}
	if v := q.Get("entry_type"); v != "" {
		t := models.EntryType(v)
		if !t.IsValid() {
			respondError(w, http.StatusBadRequest, "validation_error", "unknown entry_type filter")
			return
		}
		filters.EntryType = t
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			filters.Limit = n
		}
	}
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			filters.Offset = n
		}
	}

	challenges, err := s.repo.ListChallenges(r.Context(), filters)
	if err != nil {
		slog.Error("failed to list challenges", "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to list challenges")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"challenges": challenges,
		"count":      len(challenges),
	})
}

// challengeView is the detail payload: the challenge plus the display
// participant count, prizes and the viewer's membership state.
type challengeView struct {
	Challenge        *models.Challenge    `json:"challenge"`
	ParticipantCount int                  `json:"participant_count"`
	Prizes           []*models.Prize      `json:"prizes,omitempty"`
	Participant      *models.Participant  `json:"participant,omitempty"`
	EntryRequest     *models.EntryRequest `json:"entry_request,omitempty"`
}

func (s *Server) handleGetChallenge(w http.ResponseWriter, r *http.Request) {
	id, ok := urlParamID(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "validation_error", "invalid challenge id")
		return
	}

	c, err := s.repo.GetChallenge(r.Context(), id)
	if err != nil {
		slog.Error("failed to get challenge", "error", err, "id", id)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to get challenge")
		return
	}
	if c == nil {
		respondError(w, http.StatusNotFound, "not_found", "challenge not found")
		return
	}

	view := challengeView{Challenge: c}

	// Display count comes from the cache when available
	if s.counter != nil {
		view.ParticipantCount, err = s.counter.Get(r.Context(), id)
	} else {
		view.ParticipantCount, err = s.repo.CountParticipants(r.Context(), id)
	}
	if err != nil {
		slog.Warn("failed to fetch participant count", "error", err, "challenge_id", id)
	}

	if c.HasRating {
		if view.Prizes, err = s.repo.ListPrizes(r.Context(), id); err != nil {
			slog.Warn("failed to list prizes", "error", err, "challenge_id", id)
		}
	}

	if user := userFrom(r); user != nil {
		if p, err := s.repo.GetParticipant(r.Context(), id, user.ID); err == nil {
			view.Participant = p
		}
		if view.Participant == nil && c.EntryType.RequiresApproval() {
			if req, err := s.repo.GetEntryRequestByUser(r.Context(), id, user.ID); err == nil {
				view.EntryRequest = req
			}
		}
	}

	respondJSON(w, http.StatusOK, view)
}

// Preset handlers

func (s *Server) handleListPresets(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"presets": s.presets.List(),
	})
}

func (s *Server) handleGetPreset(w http.ResponseWriter, r *http.Request) {
	p := s.presets.Get(chi.URLParam(r, "id"))
	if p == nil {
		respondError(w, http.StatusNotFound, "not_found", "preset not found")
		return
	}
	respondJSON(w, http.StatusOK, p)
}
