package progress

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/terra-clan/challenge-engine/internal/models"
)

var (
	ErrParticipantNotFound = errors.New("participant not found")
	ErrChallengeNotFound   = errors.New("challenge not found")
	ErrNotStarted          = errors.New("challenge has not started yet")
	ErrEnded               = errors.New("challenge has ended")
	ErrDailyLimitReached   = errors.New("daily report limit reached")
	ErrValueRequired       = errors.New("a metric value is required")
	ErrInvalidValue        = errors.New("metric value is not a number")
)

// Store is the slice of the repository the progress workflows need
type Store interface {
	GetChallenge(ctx context.Context, id int64) (*models.Challenge, error)
	GetParticipantByID(ctx context.Context, id int64) (*models.Participant, error)
	CreateReport(ctx context.Context, r *models.Report) error
	ListReports(ctx context.Context, participantID int64) ([]*models.Report, error)
	CountReportsForDate(ctx context.Context, participantID int64, date time.Time) (int, error)
	ChallengeRating(ctx context.Context, challengeID int64) ([]*models.RatingEntry, error)
}

// Service computes per-participant progress and accepts daily reports
type Service struct {
	store Store
	now   func() time.Time
}

// NewService creates the progress service
func NewService(store Store) *Service {
	return &Service{store: store, now: time.Now}
}

// Compute derives the progress view for a participant from the report log.
// The current day is 1-based and never drops below one; the percentage
// denominator never drops below one, so a zero goal yields a finite value.
func (s *Service) Compute(ctx context.Context, participantID int64) (*models.Progress, error) {
	_, challenge, err := s.load(ctx, participantID)
	if err != nil {
		return nil, err
	}

	reports, err := s.store.ListReports(ctx, participantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}

	return s.compute(challenge, reports, s.now()), nil
}

func (s *Service) compute(c *models.Challenge, reports []*models.Report, now time.Time) *models.Progress {
	p := &models.Progress{}

	today := dateOnly(now)
	for _, r := range reports {
		if r.IsDone {
			p.DoneDays++
		}
		p.TotalValue += r.Value
		if r.IsDone && dateOnly(r.ReportDate).Equal(today) {
			p.TodayDone = true
		}
	}

	p.CurrentDay = currentDay(c, now)
	if p.CurrentDay < 1 {
		p.CurrentDay = 1
	}

	switch {
	case c.ReportMode == models.ReportResult && c.HasGoal:
		p.ProgressPercent = percent(p.TotalValue, c.GoalValue)
	default:
		p.ProgressPercent = percent(float64(p.DoneDays), float64(c.DurationDays))
	}

	return p
}

// SubmitReport records a report for today. Simple challenges mark the day
// done; result challenges record a metric value, accepting numeric strings
// like "12" from the client. The per-day limit is checked before the insert.
func (s *Service) SubmitReport(ctx context.Context, participantID int64, done bool, rawValue string) (*models.Report, error) {
	_, challenge, err := s.load(ctx, participantID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	day := currentDay(challenge, now)
	if day < 1 {
		return nil, ErrNotStarted
	}
	if day > challenge.DurationDays {
		return nil, ErrEnded
	}

	report := &models.Report{
		ParticipantID: participantID,
		ReportDate:    dateOnly(now),
	}

	switch challenge.ReportMode {
	case models.ReportSimple:
		report.IsDone = true
	case models.ReportResult:
		value, err := parseValue(rawValue)
		if err != nil {
			return nil, err
		}
		report.Value = value
		report.IsDone = done || value > 0
	}

	if challenge.HasLimit {
		count, err := s.store.CountReportsForDate(ctx, participantID, report.ReportDate)
		if err != nil {
			return nil, fmt.Errorf("failed to count today's reports: %w", err)
		}
		if count >= challenge.LimitPerDay {
			return nil, ErrDailyLimitReached
		}
	}

	if err := s.store.CreateReport(ctx, report); err != nil {
		return nil, fmt.Errorf("failed to create report: %w", err)
	}
	return report, nil
}

// Rating returns the pre-sorted challenge leaderboard
func (s *Service) Rating(ctx context.Context, challengeID int64) ([]*models.RatingEntry, error) {
	c, err := s.store.GetChallenge(ctx, challengeID)
	if err != nil {
		return nil, fmt.Errorf("failed to load challenge: %w", err)
	}
	if c == nil {
		return nil, ErrChallengeNotFound
	}
	return s.store.ChallengeRating(ctx, challengeID)
}

func (s *Service) load(ctx context.Context, participantID int64) (*models.Participant, *models.Challenge, error) {
	participant, err := s.store.GetParticipantByID(ctx, participantID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load participant: %w", err)
	}
	if participant == nil {
		return nil, nil, ErrParticipantNotFound
	}

	challenge, err := s.store.GetChallenge(ctx, participant.ChallengeID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load challenge: %w", err)
	}
	if challenge == nil {
		return nil, nil, ErrChallengeNotFound
	}
	return participant, challenge, nil
}

// currentDay returns the 1-based day number of the challenge, unclamped:
// values below 1 mean not started, above the duration mean ended. The
// published progress view clamps at 1.
func currentDay(c *models.Challenge, now time.Time) int {
	if c.StartAt == nil {
		return 1
	}

	elapsed := dateOnly(now).Sub(dateOnly(*c.StartAt))
	return int(elapsed.Hours()/24) + 1
}

// parseValue coerces a client-supplied metric value. Clients send numbers
// as strings; both "12" and "12.5" are accepted.
func parseValue(raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, ErrValueRequired
	}

	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidValue, raw)
	}
	if value < 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidValue, raw)
	}
	return value, nil
}

// percent computes the display percentage, rounded to the nearest integer
// with a denominator floor of one, capped at 100.
func percent(value, goal float64) int {
	if goal < 1 {
		goal = 1
	}

	p := int(math.Round(value / goal * 100))
	if p > 100 {
		p = 100
	}
	if p < 0 {
		p = 0
	}
	return p
}

func dateOnly(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, t.Location())
}
