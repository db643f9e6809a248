package progress

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/terra-clan/challenge-engine/internal/models"
)

type fakeStore struct {
	challenges   map[int64]*models.Challenge
	participants map[int64]*models.Participant
	reports      []*models.Report
	rating       []*models.RatingEntry
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		challenges:   make(map[int64]*models.Challenge),
		participants: make(map[int64]*models.Participant),
	}
}

func (f *fakeStore) GetChallenge(_ context.Context, id int64) (*models.Challenge, error) {
	return f.challenges[id], nil
}

func (f *fakeStore) GetParticipantByID(_ context.Context, id int64) (*models.Participant, error) {
	return f.participants[id], nil
}

func (f *fakeStore) CreateReport(_ context.Context, r *models.Report) error {
	r.ID = int64(len(f.reports) + 1)
	f.reports = append(f.reports, r)
	return nil
}

func (f *fakeStore) ListReports(_ context.Context, participantID int64) ([]*models.Report, error) {
	var out []*models.Report
	for _, r := range f.reports {
		if r.ParticipantID == participantID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeStore) CountReportsForDate(_ context.Context, participantID int64, date time.Time) (int, error) {
	count := 0
	for _, r := range f.reports {
		if r.ParticipantID == participantID && r.ReportDate.Equal(date) {
			count++
		}
	}
	return count, nil
}

func (f *fakeStore) ChallengeRating(_ context.Context, challengeID int64) ([]*models.RatingEntry, error) {
	return f.rating, nil
}

// newService pins the clock for deterministic day math
func newService(store *fakeStore, now time.Time) *Service {
	svc := NewService(store)
	svc.now = func() time.Time { return now }
	return svc
}

func seed(store *fakeStore, c *models.Challenge) {
	c.ID = 1
	store.challenges[1] = c
	store.participants[10] = &models.Participant{ID: 10, ChallengeID: 1, UserID: 7}
}

func day(offset int) time.Time {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return base.AddDate(0, 0, offset)
}

func resultChallenge(goal float64) *models.Challenge {
	start := day(0)
	return &models.Challenge{
		EntryType:    models.EntryFree,
		StartMode:    models.StartNow,
		StartAt:      &start,
		DurationDays: 30,
		ReportMode:   models.ReportResult,
		MetricName:   "minutes",
		HasGoal:      goal > 0,
		GoalValue:    goal,
	}
}

func simpleChallenge(durationDays int) *models.Challenge {
	start := day(0)
	return &models.Challenge{
		EntryType:    models.EntryFree,
		StartMode:    models.StartNow,
		StartAt:      &start,
		DurationDays: durationDays,
		ReportMode:   models.ReportSimple,
		HasLimit:     true,
		LimitPerDay:  1,
	}
}

func TestComputeResultModeRoundTrip(t *testing.T) {
	store := newFakeStore()
	seed(store, resultChallenge(100))
	svc := newService(store, day(4))

	for i := 0; i < 4; i++ {
		store.reports = append(store.reports, &models.Report{
			ParticipantID: 10,
			ReportDate:    day(i),
			IsDone:        true,
			Value:         10,
		})
	}

	p, err := svc.Compute(context.Background(), 10)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}

	if p.DoneDays != 4 {
		t.Errorf("expected 4 done days, got %d", p.DoneDays)
	}
	if p.TotalValue != 40 {
		t.Errorf("expected total 40, got %v", p.TotalValue)
	}
	if p.ProgressPercent != 40 {
		t.Errorf("expected 40%%, got %d%%", p.ProgressPercent)
	}
	if p.CurrentDay != 5 {
		t.Errorf("expected day 5, got %d", p.CurrentDay)
	}
	if p.TodayDone {
		t.Error("no report was filed today")
	}
}

func TestComputeRoundsPercentage(t *testing.T) {
	store := newFakeStore()
	seed(store, resultChallenge(6))
	svc := newService(store, day(1))

	// 1/6 = 16.67%, rounds up to 17
	store.reports = append(store.reports, &models.Report{
		ParticipantID: 10, ReportDate: day(0), IsDone: true, Value: 1,
	})

	p, err := svc.Compute(context.Background(), 10)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	if p.ProgressPercent != 17 {
		t.Errorf("expected 17%%, got %d%%", p.ProgressPercent)
	}
}

func TestComputeTodayDoneRequiresDoneReport(t *testing.T) {
	store := newFakeStore()
	c := resultChallenge(100)
	seed(store, c)
	svc := newService(store, day(0))

	// A zero-value result report today does not mark the day done
	store.reports = append(store.reports, &models.Report{
		ParticipantID: 10, ReportDate: day(0), IsDone: false, Value: 0,
	})

	p, err := svc.Compute(context.Background(), 10)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	if p.TodayDone {
		t.Error("a not-done report must not mark today done")
	}

	store.reports = append(store.reports, &models.Report{
		ParticipantID: 10, ReportDate: day(0), IsDone: true, Value: 10,
	})
	p, err = svc.Compute(context.Background(), 10)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	if !p.TodayDone {
		t.Error("a done report today must mark today done")
	}
}

func TestComputeCurrentDayClampsBeforeStart(t *testing.T) {
	store := newFakeStore()
	c := simpleChallenge(30)
	start := day(5)
	c.StartMode = models.StartDate
	c.StartDate = &start
	c.StartAt = &start
	seed(store, c)
	svc := newService(store, day(0))

	p, err := svc.Compute(context.Background(), 10)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	if p.CurrentDay != 1 {
		t.Errorf("a not-yet-started challenge must report day 1, got %d", p.CurrentDay)
	}
}

func TestComputeCountsDoneRowsNotDays(t *testing.T) {
	store := newFakeStore()
	c := resultChallenge(100)
	c.HasLimit = true
	c.LimitPerDay = 3
	seed(store, c)
	svc := newService(store, day(1))

	// Two done rows on the same date each count
	for i := 0; i < 2; i++ {
		store.reports = append(store.reports, &models.Report{
			ParticipantID: 10, ReportDate: day(0), IsDone: true, Value: 10,
		})
	}

	p, err := svc.Compute(context.Background(), 10)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	if p.DoneDays != 2 {
		t.Errorf("expected 2 done rows counted, got %d", p.DoneDays)
	}
}

func TestComputeZeroGoalStaysFinite(t *testing.T) {
	store := newFakeStore()
	c := resultChallenge(0)
	c.HasGoal = true // goal enabled but value zero
	seed(store, c)
	svc := newService(store, day(1))

	store.reports = append(store.reports, &models.Report{
		ParticipantID: 10, ReportDate: day(0), IsDone: true, Value: 50,
	})

	p, err := svc.Compute(context.Background(), 10)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	if p.ProgressPercent != 100 {
		t.Errorf("zero goal must clamp, got %d%%", p.ProgressPercent)
	}
}

func TestComputeSimpleModeUsesDuration(t *testing.T) {
	store := newFakeStore()
	seed(store, simpleChallenge(10))
	svc := newService(store, day(3))

	for i := 0; i < 3; i++ {
		store.reports = append(store.reports, &models.Report{
			ParticipantID: 10, ReportDate: day(i), IsDone: true,
		})
	}

	p, err := svc.Compute(context.Background(), 10)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	if p.ProgressPercent != 30 {
		t.Errorf("expected 30%%, got %d%%", p.ProgressPercent)
	}
}

func TestSubmitReportCoercesNumericStrings(t *testing.T) {
	store := newFakeStore()
	seed(store, resultChallenge(100))
	svc := newService(store, day(0))

	r, err := svc.SubmitReport(context.Background(), 10, false, " 12 ")
	if err != nil {
		t.Fatalf("SubmitReport failed: %v", err)
	}
	if r.Value != 12 {
		t.Errorf("expected coerced value 12, got %v", r.Value)
	}
	if !r.IsDone {
		t.Error("a positive value must mark the day done")
	}

	if _, err := svc.SubmitReport(context.Background(), 10, false, "a lot"); err == nil {
		t.Error("non-numeric values must be rejected")
	}
	if _, err := svc.SubmitReport(context.Background(), 10, false, ""); !errors.Is(err, ErrValueRequired) {
		t.Errorf("expected ErrValueRequired, got %v", err)
	}
}

func TestSubmitReportEnforcesDailyLimit(t *testing.T) {
	store := newFakeStore()
	seed(store, simpleChallenge(30))
	svc := newService(store, day(2))

	if _, err := svc.SubmitReport(context.Background(), 10, true, ""); err != nil {
		t.Fatalf("first report failed: %v", err)
	}
	if _, err := svc.SubmitReport(context.Background(), 10, true, ""); !errors.Is(err, ErrDailyLimitReached) {
		t.Fatalf("expected ErrDailyLimitReached, got %v", err)
	}

	// The next day opens a fresh slot
	svc.now = func() time.Time { return day(3) }
	if _, err := svc.SubmitReport(context.Background(), 10, true, ""); err != nil {
		t.Errorf("next-day report failed: %v", err)
	}
}

func TestSubmitReportRespectsChallengeWindow(t *testing.T) {
	store := newFakeStore()
	seed(store, simpleChallenge(5))

	before := newService(store, day(-1))
	if _, err := before.SubmitReport(context.Background(), 10, true, ""); !errors.Is(err, ErrNotStarted) {
		t.Errorf("expected ErrNotStarted, got %v", err)
	}

	after := newService(store, day(5))
	if _, err := after.SubmitReport(context.Background(), 10, true, ""); !errors.Is(err, ErrEnded) {
		t.Errorf("expected ErrEnded, got %v", err)
	}
}

func TestRatingPassthrough(t *testing.T) {
	store := newFakeStore()
	seed(store, resultChallenge(100))
	store.rating = []*models.RatingEntry{
		{UserID: 1, DisplayName: "@alpha", TotalValue: 90, DoneDays: 9},
		{UserID: 2, DisplayName: "@beta", TotalValue: 70, DoneDays: 7},
	}
	svc := newService(store, day(1))

	rating, err := svc.Rating(context.Background(), 1)
	if err != nil {
		t.Fatalf("Rating failed: %v", err)
	}
	if len(rating) != 2 || rating[0].UserID != 1 {
		t.Errorf("unexpected rating order: %+v", rating)
	}

	if _, err := svc.Rating(context.Background(), 404); !errors.Is(err, ErrChallengeNotFound) {
		t.Errorf("expected ErrChallengeNotFound, got %v", err)
	}
}
