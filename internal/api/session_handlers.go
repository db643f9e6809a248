package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/terra-clan/challenge-engine/internal/auth"
	"github.com/terra-clan/challenge-engine/internal/models"
	"github.com/terra-clan/challenge-engine/internal/nav"
)

// userFrom returns the authenticated user of the request
func userFrom(r *http.Request) *models.User {
	return auth.UserFromContext(r.Context())
}

// sessionView describes where the client should render next
type sessionView struct {
	User       *models.User `json:"user"`
	Screen     nav.Screen   `json:"screen"`
	Context    nav.Context  `json:"context"`
	Redirected bool         `json:"redirected,omitempty"`
}

// handleGetSession returns the current screen for the user. A referral in
// the launch parameter re-routes to that challenge's detail screen before
// anything renders; an invite referral is resolved to its challenge first.
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r)
	if user == nil {
		respondError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return
	}

	navigator := s.navigatorFor(user.ID)
	redirected := false

	if raw := auth.StartParamFromContext(r.Context()); raw != "" {
		param, err := nav.ParseStartParam(raw)
		if err != nil {
			slog.Warn("invalid start param", "error", err, "user_id", user.ID)
		} else if param != nil {
			challengeID := param.ChallengeID
			if param.InviteCode != "" {
				if inv, ierr := s.repo.GetInviteByCode(r.Context(), param.InviteCode); ierr == nil && inv != nil {
					challengeID = inv.ChallengeID
				}
			}
			redirected = navigator.ApplyReferral(challengeID)
		}
	}

	screen, navCtx := navigator.Current()
	respondJSON(w, http.StatusOK, sessionView{
		User:       user,
		Screen:     screen,
		Context:    navCtx,
		Redirected: redirected,
	})
}

type navigateRequest struct {
	Screen  nav.Screen  `json:"screen"`
	Context nav.Context `json:"context"`
}

// handleNavigate replaces the user's current screen
func (s *Server) handleNavigate(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r)
	if user == nil {
		respondError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return
	}

	var req navigateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	navigator := s.navigatorFor(user.ID)
	if err := navigator.Navigate(req.Screen, req.Context); err != nil {
		respondError(w, http.StatusBadRequest, "unknown_screen", err.Error())
		return
	}

	screen, navCtx := navigator.Current()
	respondJSON(w, http.StatusOK, sessionView{
		User:    user,
		Screen:  screen,
		Context: navCtx,
	})
}
