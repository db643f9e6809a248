package entry

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/terra-clan/challenge-engine/internal/models"
)

type fakeStore struct {
	challenges   map[int64]*models.Challenge
	participants []*models.Participant
	requests     []*models.EntryRequest
	invites      []*models.ChallengeInvite

	nextID             int64
	participantInserts int
	forceDuplicate     bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{challenges: make(map[int64]*models.Challenge), nextID: 1}
}

func (f *fakeStore) id() int64 {
	id := f.nextID
	f.nextID++
	return id
}

func uniqueViolation() error {
	return &pgconn.PgError{Code: "23505"}
}

func (f *fakeStore) GetChallenge(_ context.Context, id int64) (*models.Challenge, error) {
	return f.challenges[id], nil
}

func (f *fakeStore) GetParticipant(_ context.Context, challengeID, userID int64) (*models.Participant, error) {
	for _, p := range f.participants {
		if p.ChallengeID == challengeID && p.UserID == userID {
			return p, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) CreateParticipant(_ context.Context, p *models.Participant) error {
	f.participantInserts++
	if f.forceDuplicate {
		return uniqueViolation()
	}
	for _, existing := range f.participants {
		if existing.ChallengeID == p.ChallengeID && existing.UserID == p.UserID {
			return uniqueViolation()
		}
	}
	p.ID = f.id()
	f.participants = append(f.participants, p)
	return nil
}

func (f *fakeStore) CountParticipants(_ context.Context, challengeID int64) (int, error) {
	count := 0
	for _, p := range f.participants {
		if p.ChallengeID == challengeID {
			count++
		}
	}
	return count, nil
}

func (f *fakeStore) CreateEntryRequest(_ context.Context, r *models.EntryRequest) error {
	for _, existing := range f.requests {
		if existing.ChallengeID == r.ChallengeID && existing.UserID == r.UserID {
			return uniqueViolation()
		}
	}
	r.ID = f.id()
	f.requests = append(f.requests, r)
	return nil
}

func (f *fakeStore) GetEntryRequest(_ context.Context, id int64) (*models.EntryRequest, error) {
	for _, r := range f.requests {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) GetEntryRequestByUser(_ context.Context, challengeID, userID int64) (*models.EntryRequest, error) {
	for _, r := range f.requests {
		if r.ChallengeID == challengeID && r.UserID == userID {
			return r, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) ListPendingRequests(_ context.Context, challengeID int64) ([]*models.EntryRequest, error) {
	var out []*models.EntryRequest
	for _, r := range f.requests {
		if r.ChallengeID == challengeID && r.Status == models.RequestPending {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeStore) UpdateRequestStatus(_ context.Context, id int64, status models.RequestStatus) error {
	for _, r := range f.requests {
		if r.ID == id {
			r.Status = status
			return nil
		}
	}
	return errors.New("request not found")
}

func (f *fakeStore) CreateInvite(_ context.Context, inv *models.ChallengeInvite) error {
	for _, existing := range f.invites {
		if existing.ChallengeID == inv.ChallengeID {
			return uniqueViolation()
		}
	}
	inv.ID = f.id()
	f.invites = append(f.invites, inv)
	return nil
}

func (f *fakeStore) GetInviteByChallenge(_ context.Context, challengeID int64) (*models.ChallengeInvite, error) {
	for _, inv := range f.invites {
		if inv.ChallengeID == challengeID {
			return inv, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) GetInviteByCode(_ context.Context, code string) (*models.ChallengeInvite, error) {
	for _, inv := range f.invites {
		if inv.Code == code {
			return inv, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) UpdateInvite(_ context.Context, inv *models.ChallengeInvite) error {
	for i, existing := range f.invites {
		if existing.ID == inv.ID {
			f.invites[i] = inv
			return nil
		}
	}
	return errors.New("invite not found")
}

func (f *fakeStore) IncrementInviteUses(_ context.Context, id int64) error {
	for _, inv := range f.invites {
		if inv.ID == id {
			inv.UsesCount++
			return nil
		}
	}
	return errors.New("invite not found")
}

func freeChallenge(store *fakeStore, id int64, maxParticipants int) *models.Challenge {
	c := &models.Challenge{
		ID:              id,
		CreatorID:       100,
		EntryType:       models.EntryFree,
		MaxParticipants: maxParticipants,
	}
	store.challenges[id] = c
	return c
}

func conditionChallenge(store *fakeStore, id int64, maxParticipants int) *models.Challenge {
	c := &models.Challenge{
		ID:              id,
		CreatorID:       100,
		EntryType:       models.EntryCondition,
		EntryCondition:  "subscribe to the channel",
		MaxParticipants: maxParticipants,
	}
	store.challenges[id] = c
	return c
}

func TestJoinRequiresRulesAcceptance(t *testing.T) {
	store := newFakeStore()
	freeChallenge(store, 1, 0)
	svc := NewService(store, nil, nil)

	if _, err := svc.Join(context.Background(), 1, 7, false); !errors.Is(err, ErrRulesNotAccepted) {
		t.Fatalf("expected ErrRulesNotAccepted, got %v", err)
	}

	result, err := svc.Join(context.Background(), 1, 7, true)
	if err != nil {
		t.Fatalf("Join failed: %v", err)
	}
	if result.AlreadyJoined {
		t.Error("fresh join must not report already joined")
	}
}

func TestJoinIsIdempotent(t *testing.T) {
	store := newFakeStore()
	freeChallenge(store, 1, 0)
	svc := NewService(store, nil, nil)

	first, err := svc.Join(context.Background(), 1, 7, true)
	if err != nil {
		t.Fatalf("first Join failed: %v", err)
	}

	// Second attempt skips the rules gate: the user is already in
	second, err := svc.Join(context.Background(), 1, 7, false)
	if err != nil {
		t.Fatalf("second Join failed: %v", err)
	}
	if !second.AlreadyJoined {
		t.Error("repeat join must report already joined")
	}
	if second.Participant.ID != first.Participant.ID {
		t.Errorf("repeat join must route to the same membership, got %d and %d", first.Participant.ID, second.Participant.ID)
	}
}

func TestJoinConcurrentDuplicateResolvesToWinner(t *testing.T) {
	store := newFakeStore()
	freeChallenge(store, 1, 0)
	winner := &models.Participant{ID: 99, ChallengeID: 1, UserID: 7}
	svc := NewService(store, nil, nil)

	// The insert loses a race: the row appears between the existence
	// check and the insert.
	store.forceDuplicate = true
	store.participants = append(store.participants, winner)

	result, err := svc.Join(context.Background(), 1, 7, true)
	if err != nil {
		t.Fatalf("Join failed: %v", err)
	}
	if !result.AlreadyJoined || result.Participant.ID != 99 {
		t.Errorf("expected the concurrent winner, got %+v", result)
	}
}

func TestJoinRejectsApprovalChallenges(t *testing.T) {
	store := newFakeStore()
	conditionChallenge(store, 1, 0)
	svc := NewService(store, nil, nil)

	if _, err := svc.Join(context.Background(), 1, 7, true); !errors.Is(err, ErrApprovalRequired) {
		t.Fatalf("expected ErrApprovalRequired, got %v", err)
	}
}

func TestJoinFullChallenge(t *testing.T) {
	store := newFakeStore()
	freeChallenge(store, 1, 1)
	svc := NewService(store, nil, nil)

	if _, err := svc.Join(context.Background(), 1, 7, true); err != nil {
		t.Fatalf("Join failed: %v", err)
	}
	if _, err := svc.Join(context.Background(), 1, 8, true); !errors.Is(err, ErrChallengeFull) {
		t.Fatalf("expected ErrChallengeFull, got %v", err)
	}
}

func TestRequestEntryIsIdempotent(t *testing.T) {
	store := newFakeStore()
	conditionChallenge(store, 1, 0)
	svc := NewService(store, nil, nil)

	first, created, err := svc.RequestEntry(context.Background(), 1, 7, true)
	if err != nil {
		t.Fatalf("RequestEntry failed: %v", err)
	}
	if first.Status != models.RequestPending {
		t.Fatalf("expected pending, got %q", first.Status)
	}
	if !created {
		t.Error("the first filing must report a fresh request")
	}

	second, created, err := svc.RequestEntry(context.Background(), 1, 7, false)
	if err != nil {
		t.Fatalf("repeat RequestEntry failed: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("repeat request must return the existing one, got %d and %d", first.ID, second.ID)
	}
	if created {
		t.Error("a repeat filing must not report a fresh request")
	}
	if len(store.requests) != 1 {
		t.Errorf("expected a single request row, got %d", len(store.requests))
	}
}

func TestRejectedRequestStaysTerminal(t *testing.T) {
	store := newFakeStore()
	conditionChallenge(store, 1, 0)
	svc := NewService(store, nil, nil)

	req, _, err := svc.RequestEntry(context.Background(), 1, 7, true)
	if err != nil {
		t.Fatalf("RequestEntry failed: %v", err)
	}
	if err := svc.Reject(context.Background(), req.ID, 100); err != nil {
		t.Fatalf("Reject failed: %v", err)
	}

	if err := svc.Reject(context.Background(), req.ID, 100); !errors.Is(err, ErrRequestDecided) {
		t.Errorf("second reject must fail, got %v", err)
	}
	if _, err := svc.Approve(context.Background(), req.ID, 100); !errors.Is(err, ErrRequestDecided) {
		t.Errorf("approving a rejected request must fail, got %v", err)
	}

	// Re-filing returns the rejected request rather than reopening it
	again, created, err := svc.RequestEntry(context.Background(), 1, 7, true)
	if err != nil {
		t.Fatalf("re-file failed: %v", err)
	}
	if created {
		t.Error("re-filing must not report a fresh request")
	}
	if again.Status != models.RequestRejected {
		t.Errorf("re-filed request must stay rejected, got %q", again.Status)
	}
}

func TestApproveCreatesMembershipAndDecides(t *testing.T) {
	store := newFakeStore()
	conditionChallenge(store, 1, 0)
	svc := NewService(store, nil, nil)

	req, _, err := svc.RequestEntry(context.Background(), 1, 7, true)
	if err != nil {
		t.Fatalf("RequestEntry failed: %v", err)
	}

	if _, err := svc.Approve(context.Background(), req.ID, 55); !errors.Is(err, ErrNotCreator) {
		t.Fatalf("non-creator approval must fail, got %v", err)
	}

	p, err := svc.Approve(context.Background(), req.ID, 100)
	if err != nil {
		t.Fatalf("Approve failed: %v", err)
	}
	if p.UserID != 7 || p.ChallengeID != 1 {
		t.Errorf("unexpected membership: %+v", p)
	}
	if req.Status != models.RequestApproved {
		t.Errorf("request must be approved, got %q", req.Status)
	}
}

func TestApproveAtCapacityLeavesRequestPending(t *testing.T) {
	store := newFakeStore()
	conditionChallenge(store, 1, 5)
	svc := NewService(store, nil, nil)

	for userID := int64(1); userID <= 5; userID++ {
		store.participants = append(store.participants, &models.Participant{
			ID: userID, ChallengeID: 1, UserID: userID,
		})
	}

	req, _, err := svc.RequestEntry(context.Background(), 1, 7, true)
	if err != nil {
		t.Fatalf("RequestEntry failed: %v", err)
	}

	if _, err := svc.Approve(context.Background(), req.ID, 100); !errors.Is(err, ErrChallengeFull) {
		t.Fatalf("expected ErrChallengeFull, got %v", err)
	}
	if req.Status != models.RequestPending {
		t.Errorf("request must stay pending after a failed approval, got %q", req.Status)
	}
}

func TestPendingRequestsCreatorOnly(t *testing.T) {
	store := newFakeStore()
	conditionChallenge(store, 1, 0)
	svc := NewService(store, nil, nil)

	if _, _, err := svc.RequestEntry(context.Background(), 1, 7, true); err != nil {
		t.Fatalf("RequestEntry failed: %v", err)
	}

	if _, err := svc.PendingRequests(context.Background(), 1, 55); !errors.Is(err, ErrNotCreator) {
		t.Fatalf("expected ErrNotCreator, got %v", err)
	}

	queue, err := svc.PendingRequests(context.Background(), 1, 100)
	if err != nil {
		t.Fatalf("PendingRequests failed: %v", err)
	}
	if len(queue) != 1 {
		t.Errorf("expected one pending request, got %d", len(queue))
	}
}

func TestEnsureInviteIsLazyAndStable(t *testing.T) {
	store := newFakeStore()
	freeChallenge(store, 1, 0)
	svc := NewService(store, nil, nil)

	first, err := svc.EnsureInvite(context.Background(), 1, 100)
	if err != nil {
		t.Fatalf("EnsureInvite failed: %v", err)
	}
	if first.Code == "" || !first.IsActive {
		t.Fatalf("invite must be active with a code, got %+v", first)
	}

	second, err := svc.EnsureInvite(context.Background(), 1, 100)
	if err != nil {
		t.Fatalf("second EnsureInvite failed: %v", err)
	}
	if second.Code != first.Code {
		t.Errorf("the invite code must be stable, got %q then %q", first.Code, second.Code)
	}
}

func TestRedeemLifecycle(t *testing.T) {
	store := newFakeStore()
	freeChallenge(store, 1, 0)
	svc := NewService(store, nil, nil)

	inv, err := svc.EnsureInvite(context.Background(), 1, 100)
	if err != nil {
		t.Fatalf("EnsureInvite failed: %v", err)
	}

	result, err := svc.Redeem(context.Background(), inv.Code, 7, true)
	if err != nil {
		t.Fatalf("Redeem failed: %v", err)
	}
	if result.AlreadyJoined {
		t.Error("fresh redeem must not report already joined")
	}
	if inv.UsesCount != 1 {
		t.Errorf("uses count must move on a fresh join, got %d", inv.UsesCount)
	}

	// Repeat redeem: no error, no extra use burned
	if _, err := svc.Redeem(context.Background(), inv.Code, 7, true); err != nil {
		t.Fatalf("repeat Redeem failed: %v", err)
	}
	if inv.UsesCount != 1 {
		t.Errorf("repeat redeem must not burn a use, got %d", inv.UsesCount)
	}
}

func TestRedeemRespectsDeactivationAndCap(t *testing.T) {
	store := newFakeStore()
	freeChallenge(store, 1, 0)
	svc := NewService(store, nil, nil)

	inv, err := svc.EnsureInvite(context.Background(), 1, 100)
	if err != nil {
		t.Fatalf("EnsureInvite failed: %v", err)
	}

	if _, err := svc.SetInviteActive(context.Background(), 1, 100, false); err != nil {
		t.Fatalf("SetInviteActive failed: %v", err)
	}
	if _, err := svc.Redeem(context.Background(), inv.Code, 7, true); !errors.Is(err, ErrInviteInactive) {
		t.Fatalf("expected ErrInviteInactive, got %v", err)
	}

	if _, err := svc.SetInviteActive(context.Background(), 1, 100, true); err != nil {
		t.Fatalf("reactivation failed: %v", err)
	}

	maxUses := 1
	if _, err := svc.SetInviteMaxUses(context.Background(), 1, 100, &maxUses); err != nil {
		t.Fatalf("SetInviteMaxUses failed: %v", err)
	}

	if _, err := svc.Redeem(context.Background(), inv.Code, 7, true); err != nil {
		t.Fatalf("Redeem failed: %v", err)
	}
	if _, err := svc.Redeem(context.Background(), inv.Code, 8, true); !errors.Is(err, ErrInviteExhausted) {
		t.Fatalf("expected ErrInviteExhausted, got %v", err)
	}
}

func TestRedeemUnknownCode(t *testing.T) {
	svc := NewService(newFakeStore(), nil, nil)
	if _, err := svc.Redeem(context.Background(), "nope", 7, true); !errors.Is(err, ErrInviteNotFound) {
		t.Fatalf("expected ErrInviteNotFound, got %v", err)
	}
}
