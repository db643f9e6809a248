package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// EntryType governs how a user becomes a participant
type EntryType string

const (
	EntryFree      EntryType = "free"
	EntryPaid      EntryType = "paid"
	EntryCondition EntryType = "condition"
)

// IsValid returns true if the entry type is one of the known values
func (t EntryType) IsValid() bool {
	return t == EntryFree || t == EntryPaid || t == EntryCondition
}

// RequiresApproval returns true if joining goes through the entry-request queue
func (t EntryType) RequiresApproval() bool {
	return t == EntryPaid || t == EntryCondition
}

// StartMode determines when a challenge starts
type StartMode string

const (
	StartNow  StartMode = "now"
	StartDate StartMode = "date"
)

// ReportMode determines the shape of daily reports
type ReportMode string

const (
	ReportSimple ReportMode = "simple"
	ReportResult ReportMode = "result"
)

// ProofType enumerates accepted proof attachments
type ProofType string

const (
	ProofPhoto ProofType = "photo"
	ProofVideo ProofType = "video"
	ProofText  ProofType = "text"
)

// Challenge represents a time-boxed commitment activity.
// Immutable once published; there is no edit path.
type Challenge struct {
	ID          int64     `json:"id"`
	CreatorID   int64     `json:"creator_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Rules       string    `json:"rules,omitempty"`
	EntryType   EntryType `json:"entry_type"`

	// Paid entry fields
	EntryPrice         *decimal.Decimal `json:"entry_price,omitempty"`
	EntryCurrency      string           `json:"entry_currency,omitempty"`
	PaymentMethod      string           `json:"payment_method,omitempty"`
	PaymentDescription string           `json:"payment_description,omitempty"`

	// Condition entry fields
	EntryCondition   string `json:"entry_condition,omitempty"`
	ConditionContact string `json:"condition_contact,omitempty"`

	// 0 means unlimited
	MaxParticipants int `json:"max_participants,omitempty"`

	StartMode    StartMode  `json:"start_mode"`
	StartDate    *time.Time `json:"start_date,omitempty"`
	StartAt      *time.Time `json:"start_at,omitempty"`
	DurationDays int        `json:"duration_days"`

	ReportMode  ReportMode  `json:"report_mode"`
	MetricName  string      `json:"metric_name,omitempty"`
	HasGoal     bool        `json:"has_goal"`
	GoalValue   float64     `json:"goal_value,omitempty"`
	HasLimit    bool        `json:"has_limit"`
	LimitPerDay int         `json:"limit_per_day,omitempty"`
	HasProof    bool        `json:"has_proof"`
	ProofTypes  []ProofType `json:"proof_types,omitempty"`
	HasRating   bool        `json:"has_rating"`

	ChatLink  string    `json:"chat_link,omitempty"`
	CreatedAt time.Time `json:"created_at"`

	// CreatorName is populated by the challenge-with-creator read view
	CreatorName string `json:"creator_name,omitempty"`
}

// Validate checks the structural invariants of a challenge payload:
// exactly one entry-type field group populated, matching EntryType, and the
// simple-report policy (no goal, no proof, limit fixed at one per day).
func (c *Challenge) Validate() error {
	if !c.EntryType.IsValid() {
		return fmt.Errorf("unknown entry type: %q", c.EntryType)
	}
	if c.DurationDays <= 0 {
		return fmt.Errorf("duration_days must be positive")
	}

	hasPaidFields := c.EntryPrice != nil || c.EntryCurrency != "" || c.PaymentMethod != "" || c.PaymentDescription != ""
	hasConditionFields := c.EntryCondition != "" || c.ConditionContact != ""

	switch c.EntryType {
	case EntryFree:
		if hasPaidFields || hasConditionFields {
			return fmt.Errorf("free challenge must not carry paid or condition fields")
		}
	case EntryPaid:
		if hasConditionFields {
			return fmt.Errorf("paid challenge must not carry condition fields")
		}
		if c.EntryPrice == nil || c.EntryPrice.LessThanOrEqual(decimal.Zero) {
			return fmt.Errorf("paid challenge requires a positive entry price")
		}
		if c.EntryCurrency == "" {
			return fmt.Errorf("paid challenge requires a currency")
		}
		if c.PaymentDescription == "" {
			return fmt.Errorf("paid challenge requires payment contact details")
		}
	case EntryCondition:
		if hasPaidFields {
			return fmt.Errorf("condition challenge must not carry paid fields")
		}
		if c.EntryCondition == "" {
			return fmt.Errorf("condition challenge requires the condition text")
		}
		if c.ConditionContact == "" {
			return fmt.Errorf("condition challenge requires contact details")
		}
	}

	if c.StartMode == StartDate && c.StartDate == nil {
		return fmt.Errorf("start_date is required when start_mode is %q", StartDate)
	}

	switch c.ReportMode {
	case ReportSimple:
		if c.HasGoal || c.HasProof {
			return fmt.Errorf("simple report mode cannot carry a goal or require proof")
		}
		if !c.HasLimit || c.LimitPerDay != 1 {
			return fmt.Errorf("simple report mode requires a limit of one report per day")
		}
	case ReportResult:
		if c.MetricName == "" {
			return fmt.Errorf("result report mode requires a metric name")
		}
		if c.HasGoal && c.GoalValue <= 0 {
			return fmt.Errorf("goal value must be positive when a goal is enabled")
		}
	default:
		return fmt.Errorf("unknown report mode: %q", c.ReportMode)
	}

	if c.HasProof && len(c.ProofTypes) == 0 {
		return fmt.Errorf("at least one proof type must be selected when proof is enabled")
	}
	if c.HasLimit && c.LimitPerDay <= 0 {
		return fmt.Errorf("limit_per_day must be positive when a limit is enabled")
	}

	return nil
}

// ChallengeFilters defines filters for listing challenges
type ChallengeFilters struct {
	CreatorID int64
	EntryType EntryType
	Limit     int
	Offset    int
}

// Prize is one row of a challenge leaderboard prize table
type Prize struct {
	ID          int64  `json:"id"`
	ChallengeID int64  `json:"challenge_id"`
	Place       int    `json:"place"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}
