package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/terra-clan/challenge-engine/internal/models"
	"github.com/terra-clan/challenge-engine/internal/presets"
	"github.com/terra-clan/challenge-engine/internal/wizard"
)

// wizardView is the wizard state returned after every wizard call
type wizardView struct {
	Step  wizard.Step   `json:"step"`
	Draft *wizard.Draft `json:"draft"`
}

func viewOf(w *wizard.Wizard) wizardView {
	step, draft := w.Snapshot()
	return wizardView{Step: step, Draft: &draft}
}

// handleWizardState returns the current wizard step and draft
func (s *Server) handleWizardState(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r)
	respondJSON(w, http.StatusOK, viewOf(s.wizardFor(user.ID)))
}

type wizardStartRequest struct {
	EntryType models.EntryType `json:"entry_type"`
	// PresetID pre-fills the draft from the catalog
	PresetID string `json:"preset_id,omitempty"`
}

// handleWizardStart opens a fresh wizard and picks the entry type. Free
// entry goes straight to settings; paid and condition stop at the
// confirmation step.
func (s *Server) handleWizardStart(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r)

	var req wizardStartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	s.resetWizard(user.ID)
	wz := s.wizardFor(user.ID)

	if err := wz.ChooseEntryType(req.EntryType); err != nil {
		respondError(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	if req.PresetID != "" {
		p := s.presets.Get(req.PresetID)
		if p == nil {
			respondError(w, http.StatusNotFound, "not_found", "preset not found")
			return
		}
		wz.UpdateDraft(func(d *wizard.Draft) { presets.Apply(p, d) })
	}

	respondJSON(w, http.StatusOK, viewOf(wz))
}

// handleWizardConfirm acknowledges the paid/condition warning step
func (s *Server) handleWizardConfirm(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r)
	wz := s.wizardFor(user.ID)

	if err := wz.ConfirmType(); err != nil {
		respondError(w, http.StatusConflict, "wrong_step", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, viewOf(wz))
}

// handleWizardDraft merges submitted fields into the draft. The report mode
// goes through the wizard so the simple-mode policy is applied.
func (s *Server) handleWizardDraft(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r)
	wz := s.wizardFor(user.ID)

	if wz.Step() != wizard.StepSettings {
		respondError(w, http.StatusConflict, "wrong_step", "the settings form is not open")
		return
	}

	var incoming wizard.Draft
	if err := json.NewDecoder(r.Body).Decode(&incoming); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	mode := incoming.ReportMode
	wz.UpdateDraft(func(d *wizard.Draft) {
		incoming.EntryType = d.EntryType // chosen on the first step, not editable here
		incoming.ReportMode = d.ReportMode
		*d = incoming
	})

	if mode != "" {
		if err := wz.SetReportMode(mode); err != nil {
			respondError(w, http.StatusBadRequest, "validation_error", err.Error())
			return
		}
	}

	respondJSON(w, http.StatusOK, viewOf(wz))
}

// handleWizardAdvance validates the settings and opens the preview
func (s *Server) handleWizardAdvance(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r)
	wz := s.wizardFor(user.ID)

	if err := wz.Advance(); err != nil {
		respondError(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	// The preview shows the exact payload that publish would insert
	preview := wz.BuildChallenge(user.ID, time.Now())
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"step":    wz.Step(),
		"preview": preview,
	})
}

// handleWizardBack returns from the preview to the settings form
func (s *Server) handleWizardBack(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r)
	wz := s.wizardFor(user.ID)

	if err := wz.Back(); err != nil {
		respondError(w, http.StatusConflict, "wrong_step", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, viewOf(wz))
}

// handleWizardPublish inserts the challenge, runs the post-publish tasks and
// announces it on the channel. The wizard session is discarded on success.
func (s *Server) handleWizardPublish(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r)
	wz := s.wizardFor(user.ID)

	c, warnings, err := wz.Publish(r.Context(), s.repo, user.ID, time.Now())
	if err != nil {
		switch {
		case errors.Is(err, wizard.ErrNotPreview):
			respondError(w, http.StatusConflict, "wrong_step", err.Error())
		case errors.Is(err, wizard.ErrInvalidDraft):
			respondError(w, http.StatusBadRequest, "validation_error", err.Error())
		default:
			slog.Error("failed to publish challenge", "error", err, "user_id", user.ID)
			respondError(w, http.StatusInternalServerError, "internal_error", "failed to publish challenge")
		}
		return
	}

	if s.notifier != nil {
		s.notifier.ChallengePublished(r.Context(), c, user.DisplayName())
	}
	if s.counter != nil {
		s.counter.Invalidate(r.Context(), c.ID)
	}

	s.resetWizard(user.ID)
	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"challenge": c,
		"warnings":  warnings,
	})
}
