package models

import (
	"time"
)

// RequestStatus represents the state of an entry request
type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestApproved RequestStatus = "approved"
	RequestRejected RequestStatus = "rejected"
)

// Decided returns true if the request has reached a terminal state.
// A decided request is never reopened.
func (s RequestStatus) Decided() bool {
	return s == RequestApproved || s == RequestRejected
}

// EntryRequest is a pending application to join a paid or condition
// challenge. Unique per (challenge, user) pair; duplicate inserts are
// treated as idempotent success.
type EntryRequest struct {
	ID          int64         `json:"id"`
	ChallengeID int64         `json:"challenge_id"`
	UserID      int64         `json:"user_id"`
	Status      RequestStatus `json:"status"`
	CreatedAt   time.Time     `json:"created_at"`

	// DisplayName is populated when listing the moderator queue
	DisplayName string `json:"display_name,omitempty"`
}

// ChallengeInvite is a shareable token granting entry to a challenge.
// One per challenge, created lazily on first settings view.
type ChallengeInvite struct {
	ID          int64     `json:"id"`
	ChallengeID int64     `json:"challenge_id"`
	Code        string    `json:"code"`
	IsActive    bool      `json:"is_active"`
	MaxUses     *int      `json:"max_uses,omitempty"` // nil means unlimited
	UsesCount   int       `json:"uses_count"`
	CreatedBy   int64     `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
}

// Exhausted returns true if the invite has reached its usage cap
func (i *ChallengeInvite) Exhausted() bool {
	return i.MaxUses != nil && i.UsesCount >= *i.MaxUses
}
