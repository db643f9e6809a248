package entry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/terra-clan/challenge-engine/internal/models"
	"github.com/terra-clan/challenge-engine/internal/storage"
)

var (
	ErrChallengeNotFound = errors.New("challenge not found")
	ErrChallengeFull     = errors.New("challenge is full")
	ErrRulesNotAccepted  = errors.New("rules must be accepted before joining")
	ErrApprovalRequired  = errors.New("this challenge requires an entry request")
	ErrNoApprovalNeeded  = errors.New("this challenge is joined directly")
	ErrAlreadyJoined     = errors.New("user is already a participant")
	ErrRequestNotFound   = errors.New("entry request not found")
	ErrRequestDecided    = errors.New("entry request is already decided")
	ErrNotCreator        = errors.New("only the challenge creator can do this")
	ErrInviteNotFound    = errors.New("invite not found")
	ErrInviteInactive    = errors.New("invite is deactivated")
	ErrInviteExhausted   = errors.New("invite has reached its usage cap")
)

// Store is the slice of the repository the entry workflows need
type Store interface {
	GetChallenge(ctx context.Context, id int64) (*models.Challenge, error)
	GetParticipant(ctx context.Context, challengeID, userID int64) (*models.Participant, error)
	CreateParticipant(ctx context.Context, p *models.Participant) error
	CountParticipants(ctx context.Context, challengeID int64) (int, error)

	CreateEntryRequest(ctx context.Context, r *models.EntryRequest) error
	GetEntryRequest(ctx context.Context, id int64) (*models.EntryRequest, error)
	GetEntryRequestByUser(ctx context.Context, challengeID, userID int64) (*models.EntryRequest, error)
	ListPendingRequests(ctx context.Context, challengeID int64) ([]*models.EntryRequest, error)
	UpdateRequestStatus(ctx context.Context, id int64, status models.RequestStatus) error

	CreateInvite(ctx context.Context, inv *models.ChallengeInvite) error
	GetInviteByChallenge(ctx context.Context, challengeID int64) (*models.ChallengeInvite, error)
	GetInviteByCode(ctx context.Context, code string) (*models.ChallengeInvite, error)
	UpdateInvite(ctx context.Context, inv *models.ChallengeInvite) error
	IncrementInviteUses(ctx context.Context, id int64) error
}

// Notifier delivers entry workflow notifications. Delivery failures never
// fail the workflow.
type Notifier interface {
	EntryRequested(ctx context.Context, c *models.Challenge, req *models.EntryRequest)
	RequestApproved(ctx context.Context, c *models.Challenge, userID int64)
	RequestRejected(ctx context.Context, c *models.Challenge, userID int64)
}

// Invalidator drops a cached participant count after membership changes
type Invalidator interface {
	Invalidate(ctx context.Context, challengeID int64)
}

// Service implements the join, entry-request and invite workflows
type Service struct {
	store    Store
	notifier Notifier
	counter  Invalidator
}

// NewService creates the entry service. notifier and counter may be nil.
func NewService(store Store, notifier Notifier, counter Invalidator) *Service {
	return &Service{store: store, notifier: notifier, counter: counter}
}

// JoinResult is the outcome of a join attempt
type JoinResult struct {
	Participant   *models.Participant `json:"participant"`
	AlreadyJoined bool                `json:"already_joined"`
}

// Join adds the user to a free challenge. Joining is idempotent: an existing
// membership routes to the same result instead of erroring. Paid and
// condition challenges must go through RequestEntry instead.
func (s *Service) Join(ctx context.Context, challengeID, userID int64, rulesAccepted bool) (*JoinResult, error) {
	c, err := s.store.GetChallenge(ctx, challengeID)
	if err != nil {
		return nil, fmt.Errorf("failed to load challenge: %w", err)
	}
	if c == nil {
		return nil, ErrChallengeNotFound
	}
	if c.EntryType.RequiresApproval() {
		return nil, ErrApprovalRequired
	}

	if existing, err := s.store.GetParticipant(ctx, challengeID, userID); err != nil {
		return nil, fmt.Errorf("failed to check membership: %w", err)
	} else if existing != nil {
		return &JoinResult{Participant: existing, AlreadyJoined: true}, nil
	}

	if !rulesAccepted {
		return nil, ErrRulesNotAccepted
	}

	if err := s.checkCapacity(ctx, c); err != nil {
		return nil, err
	}

	return s.insertParticipant(ctx, challengeID, userID)
}

// RequestEntry files an entry request for a paid or condition challenge.
// Filing is idempotent per (challenge, user): a repeated request returns the
// existing one, whatever its status, with created false.
func (s *Service) RequestEntry(ctx context.Context, challengeID, userID int64, rulesAccepted bool) (*models.EntryRequest, bool, error) {
	c, err := s.store.GetChallenge(ctx, challengeID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to load challenge: %w", err)
	}
	if c == nil {
		return nil, false, ErrChallengeNotFound
	}
	if !c.EntryType.RequiresApproval() {
		return nil, false, ErrNoApprovalNeeded
	}

	if existing, err := s.store.GetParticipant(ctx, challengeID, userID); err != nil {
		return nil, false, fmt.Errorf("failed to check membership: %w", err)
	} else if existing != nil {
		return nil, false, ErrAlreadyJoined
	}

	if existing, err := s.store.GetEntryRequestByUser(ctx, challengeID, userID); err != nil {
		return nil, false, fmt.Errorf("failed to check existing request: %w", err)
	} else if existing != nil {
		return existing, false, nil
	}

	if !rulesAccepted {
		return nil, false, ErrRulesNotAccepted
	}

	req := &models.EntryRequest{
		ChallengeID: challengeID,
		UserID:      userID,
		Status:      models.RequestPending,
	}
	if err := s.store.CreateEntryRequest(ctx, req); err != nil {
		if storage.IsUniqueViolation(err) {
			existing, gerr := s.store.GetEntryRequestByUser(ctx, challengeID, userID)
			return existing, false, gerr
		}
		return nil, false, fmt.Errorf("failed to create entry request: %w", err)
	}

	if s.notifier != nil {
		s.notifier.EntryRequested(ctx, c, req)
	}
	return req, true, nil
}

// PendingRequests returns the moderator queue for a challenge, oldest first.
// Only the creator may read it.
func (s *Service) PendingRequests(ctx context.Context, challengeID, moderatorID int64) ([]*models.EntryRequest, error) {
	if _, err := s.requireCreator(ctx, challengeID, moderatorID); err != nil {
		return nil, err
	}
	return s.store.ListPendingRequests(ctx, challengeID)
}

// Approve turns a pending request into a membership. The participant count
// is re-fetched at decision time: approving into a full challenge fails with
// ErrChallengeFull and the request stays pending.
func (s *Service) Approve(ctx context.Context, requestID, moderatorID int64) (*models.Participant, error) {
	req, err := s.store.GetEntryRequest(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to load request: %w", err)
	}
	if req == nil {
		return nil, ErrRequestNotFound
	}
	if req.Status.Decided() {
		return nil, ErrRequestDecided
	}

	c, err := s.requireCreator(ctx, req.ChallengeID, moderatorID)
	if err != nil {
		return nil, err
	}

	if err := s.checkCapacity(ctx, c); err != nil {
		return nil, err
	}

	result, err := s.insertParticipant(ctx, req.ChallengeID, req.UserID)
	if err != nil {
		return nil, err
	}

	if err := s.store.UpdateRequestStatus(ctx, requestID, models.RequestApproved); err != nil {
		return nil, fmt.Errorf("failed to mark request approved: %w", err)
	}

	if s.notifier != nil {
		s.notifier.RequestApproved(ctx, c, req.UserID)
	}
	return result.Participant, nil
}

// Reject declines a pending request. Rejection is terminal: a decided
// request cannot be reopened or re-filed.
func (s *Service) Reject(ctx context.Context, requestID, moderatorID int64) error {
	req, err := s.store.GetEntryRequest(ctx, requestID)
	if err != nil {
		return fmt.Errorf("failed to load request: %w", err)
	}
	if req == nil {
		return ErrRequestNotFound
	}
	if req.Status.Decided() {
		return ErrRequestDecided
	}

	c, err := s.requireCreator(ctx, req.ChallengeID, moderatorID)
	if err != nil {
		return err
	}

	if err := s.store.UpdateRequestStatus(ctx, requestID, models.RequestRejected); err != nil {
		return fmt.Errorf("failed to mark request rejected: %w", err)
	}

	if s.notifier != nil {
		s.notifier.RequestRejected(ctx, c, req.UserID)
	}
	return nil
}

// EnsureInvite returns the challenge invite, creating it lazily with a fresh
// random code on first access. One invite exists per challenge.
func (s *Service) EnsureInvite(ctx context.Context, challengeID, creatorID int64) (*models.ChallengeInvite, error) {
	if _, err := s.requireCreator(ctx, challengeID, creatorID); err != nil {
		return nil, err
	}

	inv, err := s.store.GetInviteByChallenge(ctx, challengeID)
	if err != nil {
		return nil, fmt.Errorf("failed to load invite: %w", err)
	}
	if inv != nil {
		return inv, nil
	}

	inv = &models.ChallengeInvite{
		ChallengeID: challengeID,
		Code:        uuid.NewString(),
		IsActive:    true,
		CreatedBy:   creatorID,
	}
	if err := s.store.CreateInvite(ctx, inv); err != nil {
		if storage.IsUniqueViolation(err) {
			return s.store.GetInviteByChallenge(ctx, challengeID)
		}
		return nil, fmt.Errorf("failed to create invite: %w", err)
	}
	return inv, nil
}

// SetInviteActive toggles the invite without discarding its code or counters
func (s *Service) SetInviteActive(ctx context.Context, challengeID, creatorID int64, active bool) (*models.ChallengeInvite, error) {
	inv, err := s.EnsureInvite(ctx, challengeID, creatorID)
	if err != nil {
		return nil, err
	}

	inv.IsActive = active
	if err := s.store.UpdateInvite(ctx, inv); err != nil {
		return nil, fmt.Errorf("failed to update invite: %w", err)
	}
	return inv, nil
}

// SetInviteMaxUses caps the invite. A nil maxUses removes the cap.
func (s *Service) SetInviteMaxUses(ctx context.Context, challengeID, creatorID int64, maxUses *int) (*models.ChallengeInvite, error) {
	if maxUses != nil && *maxUses <= 0 {
		return nil, fmt.Errorf("max uses must be positive")
	}

	inv, err := s.EnsureInvite(ctx, challengeID, creatorID)
	if err != nil {
		return nil, err
	}

	inv.MaxUses = maxUses
	if err := s.store.UpdateInvite(ctx, inv); err != nil {
		return nil, fmt.Errorf("failed to update invite: %w", err)
	}
	return inv, nil
}

// Redeem joins a challenge through an invite code, bypassing the entry
// request queue. The usage counter only moves on a fresh join.
func (s *Service) Redeem(ctx context.Context, code string, userID int64, rulesAccepted bool) (*JoinResult, error) {
	inv, err := s.store.GetInviteByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to load invite: %w", err)
	}
	if inv == nil {
		return nil, ErrInviteNotFound
	}
	if !inv.IsActive {
		return nil, ErrInviteInactive
	}
	if inv.Exhausted() {
		return nil, ErrInviteExhausted
	}

	c, err := s.store.GetChallenge(ctx, inv.ChallengeID)
	if err != nil {
		return nil, fmt.Errorf("failed to load challenge: %w", err)
	}
	if c == nil {
		return nil, ErrChallengeNotFound
	}

	if existing, err := s.store.GetParticipant(ctx, inv.ChallengeID, userID); err != nil {
		return nil, fmt.Errorf("failed to check membership: %w", err)
	} else if existing != nil {
		return &JoinResult{Participant: existing, AlreadyJoined: true}, nil
	}

	if !rulesAccepted {
		return nil, ErrRulesNotAccepted
	}

	if err := s.checkCapacity(ctx, c); err != nil {
		return nil, err
	}

	result, err := s.insertParticipant(ctx, inv.ChallengeID, userID)
	if err != nil {
		return nil, err
	}

	if !result.AlreadyJoined {
		if err := s.store.IncrementInviteUses(ctx, inv.ID); err != nil {
			slog.Error("failed to increment invite uses", "error", err, "invite_id", inv.ID)
		}
	}
	return result, nil
}

// checkCapacity compares the authoritative participant count against the
// cap. A cap of zero means unlimited.
func (s *Service) checkCapacity(ctx context.Context, c *models.Challenge) error {
	if c.MaxParticipants <= 0 {
		return nil
	}

	count, err := s.store.CountParticipants(ctx, c.ID)
	if err != nil {
		return fmt.Errorf("failed to count participants: %w", err)
	}
	if count >= c.MaxParticipants {
		return ErrChallengeFull
	}
	return nil
}

// insertParticipant creates the membership row, treating a unique-constraint
// hit as a concurrent join and re-fetching the winner.
func (s *Service) insertParticipant(ctx context.Context, challengeID, userID int64) (*JoinResult, error) {
	p := &models.Participant{ChallengeID: challengeID, UserID: userID}
	if err := s.store.CreateParticipant(ctx, p); err != nil {
		if storage.IsUniqueViolation(err) {
			existing, gerr := s.store.GetParticipant(ctx, challengeID, userID)
			if gerr != nil {
				return nil, fmt.Errorf("failed to re-fetch participant: %w", gerr)
			}
			return &JoinResult{Participant: existing, AlreadyJoined: true}, nil
		}
		return nil, fmt.Errorf("failed to create participant: %w", err)
	}

	if s.counter != nil {
		s.counter.Invalidate(ctx, challengeID)
	}
	return &JoinResult{Participant: p}, nil
}

func (s *Service) requireCreator(ctx context.Context, challengeID, userID int64) (*models.Challenge, error) {
	c, err := s.store.GetChallenge(ctx, challengeID)
	if err != nil {
		return nil, fmt.Errorf("failed to load challenge: %w", err)
	}
	if c == nil {
		return nil, ErrChallengeNotFound
	}
	if c.CreatorID != userID {
		return nil, ErrNotCreator
	}
	return c, nil
}
