package wizard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/terra-clan/challenge-engine/internal/models"
	"github.com/terra-clan/challenge-engine/internal/storage"
)

// Step identifies one step of the creation wizard
type Step string

const (
	// StepEntryType is the initial entry-type choice
	StepEntryType Step = "entry_type"
	// StepTypeConfirm is the extra confirmation step for paid and
	// condition challenges
	StepTypeConfirm Step = "type_confirm"
	// StepSettings is the detailed settings form
	StepSettings Step = "settings"
	// StepPreview renders the assembled payload read-only
	StepPreview Step = "preview"
	// StepSubmitted is terminal: the challenge has been published
	StepSubmitted Step = "submitted"
)

var validate = validator.New()

var (
	// ErrNotPreview means publish was called before the preview step
	ErrNotPreview = errors.New("the wizard is not at the preview step")
	// ErrInvalidDraft means the assembled payload failed validation
	ErrInvalidDraft = errors.New("invalid challenge payload")
)

// Draft accumulates the challenge fields across wizard steps
type Draft struct {
	Title       string `json:"title" validate:"required,min=3"`
	Description string `json:"description" validate:"required,min=6"`
	Rules       string `json:"rules"`

	EntryType          models.EntryType `json:"entry_type"`
	EntryPrice         *decimal.Decimal `json:"entry_price,omitempty"`
	EntryCurrency      string           `json:"entry_currency,omitempty"`
	PaymentMethod      string           `json:"payment_method,omitempty"`
	PaymentDescription string           `json:"payment_description,omitempty"`
	EntryCondition     string           `json:"entry_condition,omitempty"`
	ConditionContact   string           `json:"condition_contact,omitempty"`
	MaxParticipants    int              `json:"max_participants,omitempty"`

	StartMode    models.StartMode `json:"start_mode"`
	StartDate    *time.Time       `json:"start_date,omitempty"`
	DurationDays int              `json:"duration_days" validate:"required,gt=0"`

	ReportMode  models.ReportMode  `json:"report_mode"`
	MetricName  string             `json:"metric_name,omitempty"`
	HasGoal     bool               `json:"has_goal"`
	GoalValue   float64            `json:"goal_value,omitempty"`
	HasLimit    bool               `json:"has_limit"`
	LimitPerDay int                `json:"limit_per_day,omitempty"`
	HasProof    bool               `json:"has_proof"`
	ProofTypes  []models.ProofType `json:"proof_types,omitempty"`
	HasRating   bool               `json:"has_rating"`
	Prizes      []models.Prize     `json:"prizes,omitempty"`

	ChatLink string `json:"chat_link,omitempty"`
}

// Wizard is the multi-step challenge creation state machine:
// entry_type -> (settings | type_confirm -> settings) -> preview -> submitted.
// A wizard is shared between concurrent requests of one user, so all state
// access goes through the mutex.
type Wizard struct {
	mu    sync.Mutex
	step  Step
	draft Draft
}

// New creates a wizard positioned on the entry-type step with sane
// report defaults.
func New() *Wizard {
	return &Wizard{
		step: StepEntryType,
		draft: Draft{
			StartMode:   models.StartNow,
			ReportMode:  models.ReportSimple,
			HasLimit:    true,
			LimitPerDay: 1,
		},
	}
}

// Step returns the current wizard step
func (w *Wizard) Step() Step {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.step
}

// Snapshot returns a consistent copy of the step and draft for rendering
func (w *Wizard) Snapshot() (Step, Draft) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.step, w.draft
}

// UpdateDraft mutates the draft under the wizard lock
func (w *Wizard) UpdateDraft(fn func(d *Draft)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	fn(&w.draft)
}

// ChooseEntryType selects the entry type and advances. Free entry goes
// straight to the settings form; paid and condition pass through the
// type-confirmation step first.
func (w *Wizard) ChooseEntryType(t models.EntryType) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.step != StepEntryType {
		return fmt.Errorf("entry type can only be chosen on the %q step, current: %q", StepEntryType, w.step)
	}
	if !t.IsValid() {
		return fmt.Errorf("unknown entry type: %q", t)
	}

	w.draft.EntryType = t
	if t == models.EntryFree {
		w.step = StepSettings
	} else {
		w.step = StepTypeConfirm
	}
	return nil
}

// ConfirmType acknowledges the paid/condition choice and opens the
// detailed settings form.
func (w *Wizard) ConfirmType() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.step != StepTypeConfirm {
		return fmt.Errorf("nothing to confirm on step %q", w.step)
	}
	w.step = StepSettings
	return nil
}

// SetReportMode switches the report mode. Enabling simple mode force-enables
// the one-per-day limit and force-disables goal and proof: simple reports
// cannot carry a goal or require proof.
func (w *Wizard) SetReportMode(mode models.ReportMode) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	switch mode {
	case models.ReportSimple:
		w.draft.ReportMode = mode
		w.draft.HasLimit = true
		w.draft.LimitPerDay = 1
		w.draft.HasGoal = false
		w.draft.GoalValue = 0
		w.draft.HasProof = false
		w.draft.ProofTypes = nil
	case models.ReportResult:
		w.draft.ReportMode = mode
	default:
		return fmt.Errorf("unknown report mode: %q", mode)
	}
	return nil
}

// Advance moves from the settings form to the preview. The validation gate
// must hold; otherwise the wizard stays on the settings step.
func (w *Wizard) Advance() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.step != StepSettings {
		return fmt.Errorf("cannot advance from step %q", w.step)
	}

	if err := w.validateSettings(); err != nil {
		return err
	}

	w.step = StepPreview
	return nil
}

// Back returns from the preview to the settings form for editing
func (w *Wizard) Back() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.step != StepPreview {
		return fmt.Errorf("cannot go back from step %q", w.step)
	}
	w.step = StepSettings
	return nil
}

// validateSettings is the per-step gate checked before the preview opens
func (w *Wizard) validateSettings() error {
	d := &w.draft

	if err := validate.Struct(d); err != nil {
		return fmt.Errorf("settings incomplete: %w", err)
	}

	switch d.EntryType {
	case models.EntryPaid:
		if d.EntryPrice == nil || d.EntryPrice.LessThanOrEqual(decimal.Zero) {
			return fmt.Errorf("paid entry requires an amount")
		}
		if d.EntryCurrency == "" {
			return fmt.Errorf("paid entry requires a currency")
		}
		if d.PaymentDescription == "" {
			return fmt.Errorf("paid entry requires contact details")
		}
	case models.EntryCondition:
		if d.EntryCondition == "" {
			return fmt.Errorf("condition entry requires the condition text")
		}
		if d.ConditionContact == "" {
			return fmt.Errorf("condition entry requires contact details")
		}
	}

	if d.StartMode == models.StartDate && d.StartDate == nil {
		return fmt.Errorf("start date is required")
	}

	if d.ReportMode == models.ReportResult {
		if d.MetricName == "" {
			return fmt.Errorf("result reports require a metric name")
		}
		if d.HasGoal && d.GoalValue <= 0 {
			return fmt.Errorf("goal value is required when the goal is enabled")
		}
		if d.HasProof && len(d.ProofTypes) == 0 {
			return fmt.Errorf("at least one proof type is required when proof is enabled")
		}
	}

	return nil
}

// BuildChallenge assembles the publish payload from the draft. Entry-type
// field groups are included conditionally; the simple-report policy is
// applied unconditionally so a constructed payload can never violate it.
func (w *Wizard) BuildChallenge(creatorID int64, now time.Time) *models.Challenge {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buildChallenge(creatorID, now)
}

func (w *Wizard) buildChallenge(creatorID int64, now time.Time) *models.Challenge {
	d := &w.draft

	c := &models.Challenge{
		CreatorID:    creatorID,
		Title:        d.Title,
		Description:  d.Description,
		Rules:        d.Rules,
		EntryType:    d.EntryType,
		StartMode:    d.StartMode,
		DurationDays: d.DurationDays,
		ReportMode:   d.ReportMode,
		HasRating:    d.HasRating,
		ChatLink:     d.ChatLink,
	}

	switch d.EntryType {
	case models.EntryPaid:
		c.EntryPrice = d.EntryPrice
		c.EntryCurrency = d.EntryCurrency
		c.PaymentMethod = d.PaymentMethod
		c.PaymentDescription = d.PaymentDescription
	case models.EntryCondition:
		c.EntryCondition = d.EntryCondition
		c.ConditionContact = d.ConditionContact
		c.MaxParticipants = d.MaxParticipants
	}

	switch d.StartMode {
	case models.StartNow:
		startAt := now
		c.StartAt = &startAt
	case models.StartDate:
		c.StartDate = d.StartDate
		c.StartAt = d.StartDate
	}

	switch d.ReportMode {
	case models.ReportSimple:
		c.HasLimit = true
		c.LimitPerDay = 1
	case models.ReportResult:
		c.MetricName = d.MetricName
		c.HasGoal = d.HasGoal
		c.GoalValue = d.GoalValue
		c.HasLimit = d.HasLimit
		c.LimitPerDay = d.LimitPerDay
		c.HasProof = d.HasProof
		c.ProofTypes = d.ProofTypes
	}

	return c
}

// Store is the slice of the repository the publish step needs
type Store interface {
	CreateChallenge(ctx context.Context, c *models.Challenge) error
	CreatePrize(ctx context.Context, p *models.Prize) error
	CreateParticipant(ctx context.Context, p *models.Participant) error
}

// Publish inserts the challenge and runs the post-commit task list: prize
// rows, then the creator's self-join. Any failure before the challenge
// insert aborts the publish; failures after it are logged and returned as
// warnings without rolling back the challenge.
func (w *Wizard) Publish(ctx context.Context, store Store, creatorID int64, now time.Time) (*models.Challenge, []string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.step != StepPreview {
		return nil, nil, fmt.Errorf("%w, current step: %q", ErrNotPreview, w.step)
	}

	c := w.buildChallenge(creatorID, now)
	if err := c.Validate(); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidDraft, err)
	}

	if err := store.CreateChallenge(ctx, c); err != nil {
		return nil, nil, fmt.Errorf("failed to publish challenge: %w", err)
	}

	var warnings []string

	if c.HasRating {
		for _, prize := range w.draft.Prizes {
			if prize.Title == "" {
				continue
			}
			p := prize
			p.ChallengeID = c.ID
			if err := store.CreatePrize(ctx, &p); err != nil {
				slog.Error("failed to create prize", "error", err, "challenge_id", c.ID, "place", p.Place)
				warnings = append(warnings, fmt.Sprintf("prize for place %d was not saved", p.Place))
			}
		}
	}

	selfJoin := &models.Participant{ChallengeID: c.ID, UserID: creatorID}
	if err := store.CreateParticipant(ctx, selfJoin); err != nil && !storage.IsUniqueViolation(err) {
		slog.Error("failed to self-join creator", "error", err, "challenge_id", c.ID, "creator_id", creatorID)
		warnings = append(warnings, "creator was not joined automatically")
	}

	w.step = StepSubmitted
	return c, warnings, nil
}
