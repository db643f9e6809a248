package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func validFreeChallenge() *Challenge {
	return &Challenge{
		CreatorID:    1,
		Title:        "Cold showers",
		Description:  "One cold shower a day",
		EntryType:    EntryFree,
		StartMode:    StartNow,
		DurationDays: 14,
		ReportMode:   ReportSimple,
		HasLimit:     true,
		LimitPerDay:  1,
	}
}

func TestValidateEntryGroupExclusivity(t *testing.T) {
	c := validFreeChallenge()
	if err := c.Validate(); err != nil {
		t.Fatalf("valid free challenge rejected: %v", err)
	}

	// Free challenge carrying paid fields
	price := decimal.NewFromInt(500)
	c.EntryPrice = &price
	if err := c.Validate(); err == nil {
		t.Error("free challenge with a price must be rejected")
	}

	// Paid challenge carrying condition fields
	paid := validFreeChallenge()
	paid.EntryType = EntryPaid
	paid.EntryPrice = &price
	paid.EntryCurrency = "RUB"
	paid.PaymentDescription = "send a receipt to @creator"
	if err := paid.Validate(); err != nil {
		t.Fatalf("valid paid challenge rejected: %v", err)
	}
	paid.EntryCondition = "subscribe"
	if err := paid.Validate(); err == nil {
		t.Error("paid challenge with condition fields must be rejected")
	}
}

func TestValidatePaidRequiresPriceAndContact(t *testing.T) {
	c := validFreeChallenge()
	c.EntryType = EntryPaid
	if err := c.Validate(); err == nil {
		t.Error("paid challenge without a price must be rejected")
	}

	zero := decimal.Zero
	c.EntryPrice = &zero
	c.EntryCurrency = "RUB"
	c.PaymentDescription = "contact @creator"
	if err := c.Validate(); err == nil {
		t.Error("paid challenge with a zero price must be rejected")
	}
}

func TestValidateSimpleModePolicy(t *testing.T) {
	c := validFreeChallenge()

	c.HasGoal = true
	if err := c.Validate(); err == nil {
		t.Error("simple challenge with a goal must be rejected")
	}

	c = validFreeChallenge()
	c.HasProof = true
	c.ProofTypes = []ProofType{ProofPhoto}
	if err := c.Validate(); err == nil {
		t.Error("simple challenge requiring proof must be rejected")
	}

	c = validFreeChallenge()
	c.LimitPerDay = 3
	if err := c.Validate(); err == nil {
		t.Error("simple challenge with a limit other than one must be rejected")
	}
}

func TestValidateResultMode(t *testing.T) {
	c := validFreeChallenge()
	c.ReportMode = ReportResult
	if err := c.Validate(); err == nil {
		t.Error("result challenge without a metric name must be rejected")
	}

	c.MetricName = "minutes"
	if err := c.Validate(); err != nil {
		t.Fatalf("valid result challenge rejected: %v", err)
	}

	c.HasGoal = true
	if err := c.Validate(); err == nil {
		t.Error("enabled goal with zero value must be rejected")
	}
	c.GoalValue = 300
	if err := c.Validate(); err != nil {
		t.Errorf("valid goal rejected: %v", err)
	}

	c.HasProof = true
	if err := c.Validate(); err == nil {
		t.Error("enabled proof without proof types must be rejected")
	}
	c.ProofTypes = []ProofType{ProofVideo, ProofText}
	if err := c.Validate(); err != nil {
		t.Errorf("valid proof settings rejected: %v", err)
	}
}

func TestValidateStartDate(t *testing.T) {
	c := validFreeChallenge()
	c.StartMode = StartDate
	if err := c.Validate(); err == nil {
		t.Error("date start without a date must be rejected")
	}

	start := time.Now().AddDate(0, 0, 3)
	c.StartDate = &start
	if err := c.Validate(); err != nil {
		t.Errorf("valid scheduled start rejected: %v", err)
	}
}

func TestEntryTypeRequiresApproval(t *testing.T) {
	if EntryFree.RequiresApproval() {
		t.Error("free entry must not require approval")
	}
	if !EntryPaid.RequiresApproval() || !EntryCondition.RequiresApproval() {
		t.Error("paid and condition entry must require approval")
	}
}

func TestInviteExhausted(t *testing.T) {
	inv := &ChallengeInvite{UsesCount: 5}
	if inv.Exhausted() {
		t.Error("an uncapped invite is never exhausted")
	}

	limit := 5
	inv.MaxUses = &limit
	if !inv.Exhausted() {
		t.Error("an invite at its cap is exhausted")
	}
}
