package models

import (
	"time"
)

// Participant is a confirmed membership of a user in a challenge.
// Unique per (challenge, user) pair, enforced by the database.
type Participant struct {
	ID          int64     `json:"id"`
	ChallengeID int64     `json:"challenge_id"`
	UserID      int64     `json:"user_id"`
	JoinedAt    time.Time `json:"joined_at"`
}

// Report is one daily progress submission. Immutable once created.
// Simple-mode challenges set IsDone; result-mode challenges set Value.
type Report struct {
	ID            int64     `json:"id"`
	ParticipantID int64     `json:"participant_id"`
	ReportDate    time.Time `json:"report_date"`
	IsDone        bool      `json:"is_done"`
	Value         float64   `json:"value"`
	CreatedAt     time.Time `json:"created_at"`
}

// Progress is the derived per-participant view of a challenge
type Progress struct {
	DoneDays        int     `json:"done_days"`
	TotalValue      float64 `json:"total_value"`
	CurrentDay      int     `json:"current_day"`
	ProgressPercent int     `json:"progress_percent"`
	TodayDone       bool    `json:"today_done"`
}

// RatingEntry is one row of the challenge leaderboard, pre-sorted by the
// aggregation query; clients never re-sort.
type RatingEntry struct {
	UserID      int64   `json:"user_id"`
	DisplayName string  `json:"display_name"`
	TotalValue  float64 `json:"total_value"`
	DoneDays    int     `json:"done_days"`
}
