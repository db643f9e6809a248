package storage

import (
	"context"
	"time"

	"github.com/terra-clan/challenge-engine/internal/models"
)

// Repository defines the interface for challenge persistence.
// Read methods return (nil, nil) when the entity does not exist.
type Repository interface {
	// Users
	UpsertUser(ctx context.Context, u *models.User) (*models.User, error)
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	GetUserByTelegramID(ctx context.Context, telegramID int64) (*models.User, error)

	// Challenges
	CreateChallenge(ctx context.Context, c *models.Challenge) error
	GetChallenge(ctx context.Context, id int64) (*models.Challenge, error)
	ListChallenges(ctx context.Context, filters models.ChallengeFilters) ([]*models.Challenge, error)

	// Prizes
	CreatePrize(ctx context.Context, p *models.Prize) error
	ListPrizes(ctx context.Context, challengeID int64) ([]*models.Prize, error)

	// Participants
	CreateParticipant(ctx context.Context, p *models.Participant) error
	GetParticipant(ctx context.Context, challengeID, userID int64) (*models.Participant, error)
	GetParticipantByID(ctx context.Context, id int64) (*models.Participant, error)
	CountParticipants(ctx context.Context, challengeID int64) (int, error)

	// Reports
	CreateReport(ctx context.Context, r *models.Report) error
	ListReports(ctx context.Context, participantID int64) ([]*models.Report, error)
	CountReportsForDate(ctx context.Context, participantID int64, date time.Time) (int, error)
	ChallengeRating(ctx context.Context, challengeID int64) ([]*models.RatingEntry, error)

	// Entry requests
	CreateEntryRequest(ctx context.Context, r *models.EntryRequest) error
	GetEntryRequest(ctx context.Context, id int64) (*models.EntryRequest, error)
	GetEntryRequestByUser(ctx context.Context, challengeID, userID int64) (*models.EntryRequest, error)
	ListPendingRequests(ctx context.Context, challengeID int64) ([]*models.EntryRequest, error)
	UpdateRequestStatus(ctx context.Context, id int64, status models.RequestStatus) error

	// Invites
	CreateInvite(ctx context.Context, inv *models.ChallengeInvite) error
	GetInviteByChallenge(ctx context.Context, challengeID int64) (*models.ChallengeInvite, error)
	GetInviteByCode(ctx context.Context, code string) (*models.ChallengeInvite, error)
	UpdateInvite(ctx context.Context, inv *models.ChallengeInvite) error
	IncrementInviteUses(ctx context.Context, id int64) error

	// Health
	Ping(ctx context.Context) error
	Close() error
}
