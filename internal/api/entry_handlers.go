package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/terra-clan/challenge-engine/internal/entry"
)

type joinRequest struct {
	RulesAccepted bool `json:"rules_accepted"`
}

// handleJoin joins a free challenge directly
func (s *Server) handleJoin(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r)
	challengeID, ok := urlParamID(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "validation_error", "invalid challenge id")
		return
	}

	var req joinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	result, err := s.entry.Join(r.Context(), challengeID, user.ID, req.RulesAccepted)
	if err != nil {
		s.respondEntryError(w, err, "failed to join challenge")
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// handleRequestEntry files an entry request for a paid or condition challenge
func (s *Server) handleRequestEntry(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r)
	challengeID, ok := urlParamID(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "validation_error", "invalid challenge id")
		return
	}

	var req joinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	request, created, err := s.entry.RequestEntry(r.Context(), challengeID, user.ID, req.RulesAccepted)
	if err != nil {
		s.respondEntryError(w, err, "failed to file entry request")
		return
	}

	request.DisplayName = user.DisplayName()
	// A repeated idempotent request is already on the moderation feed
	if created {
		s.requestsHub.Broadcast(challengeID, requestEvent{Type: "requested", Request: request})
	}
	respondJSON(w, http.StatusOK, request)
}

// handlePendingRequests returns the creator's moderation queue, oldest first
func (s *Server) handlePendingRequests(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r)
	challengeID, ok := urlParamID(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "validation_error", "invalid challenge id")
		return
	}

	requests, err := s.entry.PendingRequests(r.Context(), challengeID, user.ID)
	if err != nil {
		s.respondEntryError(w, err, "failed to list pending requests")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"requests": requests,
		"count":    len(requests),
	})
}

// handleApprove approves a pending entry request
func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r)
	requestID, ok := urlParamID(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "validation_error", "invalid request id")
		return
	}

	participant, err := s.entry.Approve(r.Context(), requestID, user.ID)
	if err != nil {
		s.respondEntryError(w, err, "failed to approve request")
		return
	}

	s.requestsHub.Broadcast(participant.ChallengeID, requestEvent{Type: "approved", RequestID: requestID})
	respondJSON(w, http.StatusOK, participant)
}

// handleReject declines a pending entry request
func (s *Server) handleReject(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r)
	requestID, ok := urlParamID(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "validation_error", "invalid request id")
		return
	}

	req, err := s.repo.GetEntryRequest(r.Context(), requestID)
	if err != nil || req == nil {
		respondError(w, http.StatusNotFound, "not_found", "entry request not found")
		return
	}

	if err := s.entry.Reject(r.Context(), requestID, user.ID); err != nil {
		s.respondEntryError(w, err, "failed to reject request")
		return
	}

	s.requestsHub.Broadcast(req.ChallengeID, requestEvent{Type: "rejected", RequestID: requestID})
	respondJSON(w, http.StatusOK, map[string]string{"status": "rejected"})
}

// handleGetInvite returns the challenge invite, creating it on first access
func (s *Server) handleGetInvite(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r)
	challengeID, ok := urlParamID(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "validation_error", "invalid challenge id")
		return
	}

	inv, err := s.entry.EnsureInvite(r.Context(), challengeID, user.ID)
	if err != nil {
		s.respondEntryError(w, err, "failed to get invite")
		return
	}

	respondJSON(w, http.StatusOK, inv)
}

type updateInviteRequest struct {
	IsActive *bool `json:"is_active,omitempty"`
	MaxUses  *int  `json:"max_uses,omitempty"`
	// Unlimited resets the usage cap when true
	Unlimited bool `json:"unlimited,omitempty"`
}

// handleUpdateInvite toggles the invite or changes its usage cap
func (s *Server) handleUpdateInvite(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r)
	challengeID, ok := urlParamID(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "validation_error", "invalid challenge id")
		return
	}

	var req updateInviteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	inv, err := s.entry.EnsureInvite(r.Context(), challengeID, user.ID)
	if err != nil {
		s.respondEntryError(w, err, "failed to get invite")
		return
	}

	if req.IsActive != nil {
		if inv, err = s.entry.SetInviteActive(r.Context(), challengeID, user.ID, *req.IsActive); err != nil {
			s.respondEntryError(w, err, "failed to update invite")
			return
		}
	}
	if req.Unlimited {
		if inv, err = s.entry.SetInviteMaxUses(r.Context(), challengeID, user.ID, nil); err != nil {
			s.respondEntryError(w, err, "failed to update invite")
			return
		}
	} else if req.MaxUses != nil {
		if inv, err = s.entry.SetInviteMaxUses(r.Context(), challengeID, user.ID, req.MaxUses); err != nil {
			s.respondEntryError(w, err, "failed to update invite")
			return
		}
	}

	respondJSON(w, http.StatusOK, inv)
}

// handleRedeemInvite joins a challenge through an invite code
func (s *Server) handleRedeemInvite(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r)
	code := chi.URLParam(r, "code")
	if code == "" {
		respondError(w, http.StatusBadRequest, "validation_error", "invite code is required")
		return
	}

	var req joinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	result, err := s.entry.Redeem(r.Context(), code, user.ID, req.RulesAccepted)
	if err != nil {
		s.respondEntryError(w, err, "failed to redeem invite")
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// respondEntryError maps entry service errors to HTTP responses
func (s *Server) respondEntryError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, entry.ErrChallengeNotFound):
		respondError(w, http.StatusNotFound, "not_found", "challenge not found")
	case errors.Is(err, entry.ErrRequestNotFound):
		respondError(w, http.StatusNotFound, "not_found", "entry request not found")
	case errors.Is(err, entry.ErrInviteNotFound):
		respondError(w, http.StatusNotFound, "not_found", "invite not found")
	case errors.Is(err, entry.ErrRulesNotAccepted):
		respondError(w, http.StatusBadRequest, "rules_not_accepted", "the challenge rules must be accepted first")
	case errors.Is(err, entry.ErrApprovalRequired):
		respondError(w, http.StatusConflict, "approval_required", "this challenge is joined through an entry request")
	case errors.Is(err, entry.ErrNoApprovalNeeded):
		respondError(w, http.StatusConflict, "no_approval_needed", "this challenge is joined directly")
	case errors.Is(err, entry.ErrAlreadyJoined):
		respondError(w, http.StatusConflict, "already_joined", "you are already a participant")
	case errors.Is(err, entry.ErrChallengeFull):
		respondError(w, http.StatusConflict, "challenge_full", "the challenge has no free spots")
	case errors.Is(err, entry.ErrRequestDecided):
		respondError(w, http.StatusConflict, "request_decided", "the request is already decided")
	case errors.Is(err, entry.ErrNotCreator):
		respondError(w, http.StatusForbidden, "forbidden", "only the challenge creator can do this")
	case errors.Is(err, entry.ErrInviteInactive):
		respondError(w, http.StatusGone, "invite_inactive", "the invite has been deactivated")
	case errors.Is(err, entry.ErrInviteExhausted):
		respondError(w, http.StatusGone, "invite_exhausted", "the invite has reached its usage cap")
	default:
		slog.Error(fallback, "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", fallback)
	}
}
