package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/terra-clan/challenge-engine/internal/models"
)

// PostgresRepository implements Repository using PostgreSQL
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// PostgresConfig holds PostgreSQL connection configuration
type PostgresConfig struct {
	DSN          string
	MaxOpenConns int32
	MaxIdleConns int32
	MaxLifetime  time.Duration
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(ctx context.Context, cfg PostgresConfig) (*PostgresRepository, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DSN: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		poolConfig.MaxConns = cfg.MaxOpenConns
	} else {
		poolConfig.MaxConns = 25
	}

	if cfg.MaxIdleConns > 0 {
		poolConfig.MinConns = cfg.MaxIdleConns
	} else {
		poolConfig.MinConns = 5
	}

	if cfg.MaxLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxLifetime
	} else {
		poolConfig.MaxConnLifetime = 30 * time.Minute
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresRepository{pool: pool}, nil
}

// Ping checks database connectivity
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// Close closes the database connection pool
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// IsUniqueViolation reports whether err is a unique-constraint violation.
// Duplicate joins and duplicate entry requests surface this way and are
// treated by callers as success-equivalent.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// --- Users ---

// UpsertUser inserts or refreshes a user keyed by Telegram id
func (r *PostgresRepository) UpsertUser(ctx context.Context, u *models.User) (*models.User, error) {
	query := `
		INSERT INTO users (telegram_id, username, first_name, last_name)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (telegram_id) DO UPDATE
		SET username = EXCLUDED.username, first_name = EXCLUDED.first_name, last_name = EXCLUDED.last_name
		RETURNING id, created_at
	`

	out := *u
	err := r.pool.QueryRow(ctx, query, u.TelegramID, u.Username, u.FirstName, u.LastName).
		Scan(&out.ID, &out.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert user: %w", err)
	}

	return &out, nil
}

// GetUserByID retrieves a user by internal id
func (r *PostgresRepository) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	return r.getUser(ctx, "id", id)
}

// GetUserByTelegramID retrieves a user by Telegram id
func (r *PostgresRepository) GetUserByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	return r.getUser(ctx, "telegram_id", telegramID)
}

func (r *PostgresRepository) getUser(ctx context.Context, field string, value int64) (*models.User, error) {
	query := fmt.Sprintf(`
		SELECT id, telegram_id, username, first_name, last_name, created_at
		FROM users
		WHERE %s = $1
	`, field)

	var u models.User
	err := r.pool.QueryRow(ctx, query, value).Scan(
		&u.ID,
		&u.TelegramID,
		&u.Username,
		&u.FirstName,
		&u.LastName,
		&u.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &u, nil
}

// --- Challenges ---

// displayNameExpr prefers the handle, then the first name, then the raw id
const displayNameExpr = `
	CASE
		WHEN u.username <> '' THEN '@' || u.username
		WHEN u.first_name <> '' THEN u.first_name
		ELSE u.telegram_id::text
	END`

const challengeColumns = `
	c.id, c.creator_id, c.title, c.description, c.rules, c.entry_type,
	c.entry_price, c.entry_currency, c.payment_method, c.payment_description,
	c.entry_condition, c.condition_contact, c.max_participants,
	c.start_mode, c.start_date, c.start_at, c.duration_days,
	c.report_mode, c.metric_name, c.has_goal, c.goal_value,
	c.has_limit, c.limit_per_day, c.has_proof, c.proof_types,
	c.has_rating, c.chat_link, c.created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanChallenge(row rowScanner, withCreator bool) (*models.Challenge, error) {
	var c models.Challenge
	var rules, entryCurrency, paymentMethod, paymentDescription sql.NullString
	var entryCondition, conditionContact, metricName, chatLink sql.NullString
	var entryPrice sql.NullString
	var startDate, startAt sql.NullTime
	var proofTypesJSON []byte

	dest := []any{
		&c.ID, &c.CreatorID, &c.Title, &c.Description, &rules, &c.EntryType,
		&entryPrice, &entryCurrency, &paymentMethod, &paymentDescription,
		&entryCondition, &conditionContact, &c.MaxParticipants,
		&c.StartMode, &startDate, &startAt, &c.DurationDays,
		&c.ReportMode, &metricName, &c.HasGoal, &c.GoalValue,
		&c.HasLimit, &c.LimitPerDay, &c.HasProof, &proofTypesJSON,
		&c.HasRating, &chatLink, &c.CreatedAt,
	}
	if withCreator {
		dest = append(dest, &c.CreatorName)
	}

	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	c.Rules = rules.String
	c.EntryCurrency = entryCurrency.String
	c.PaymentMethod = paymentMethod.String
	c.PaymentDescription = paymentDescription.String
	c.EntryCondition = entryCondition.String
	c.ConditionContact = conditionContact.String
	c.MetricName = metricName.String
	c.ChatLink = chatLink.String

	if entryPrice.Valid {
		price, err := decimal.NewFromString(entryPrice.String)
		if err != nil {
			return nil, fmt.Errorf("failed to parse entry price: %w", err)
		}
		c.EntryPrice = &price
	}
	if startDate.Valid {
		c.StartDate = &startDate.Time
	}
	if startAt.Valid {
		c.StartAt = &startAt.Time
	}
	if proofTypesJSON != nil {
		if err := json.Unmarshal(proofTypesJSON, &c.ProofTypes); err != nil {
			return nil, fmt.Errorf("failed to unmarshal proof types: %w", err)
		}
	}

	return &c, nil
}

// CreateChallenge inserts a new challenge and fills in its id
func (r *PostgresRepository) CreateChallenge(ctx context.Context, c *models.Challenge) error {
	proofTypesJSON, err := json.Marshal(c.ProofTypes)
	if err != nil {
		return fmt.Errorf("failed to marshal proof types: %w", err)
	}

	var entryPrice any
	if c.EntryPrice != nil {
		entryPrice = c.EntryPrice.String()
	}

	query := `
		INSERT INTO challenges (
			creator_id, title, description, rules, entry_type,
			entry_price, entry_currency, payment_method, payment_description,
			entry_condition, condition_contact, max_participants,
			start_mode, start_date, start_at, duration_days,
			report_mode, metric_name, has_goal, goal_value,
			has_limit, limit_per_day, has_proof, proof_types,
			has_rating, chat_link
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
		        $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26)
		RETURNING id, created_at
	`

	err = r.pool.QueryRow(ctx, query,
		c.CreatorID, c.Title, c.Description, nullString(c.Rules), string(c.EntryType),
		entryPrice, nullString(c.EntryCurrency), nullString(c.PaymentMethod), nullString(c.PaymentDescription),
		nullString(c.EntryCondition), nullString(c.ConditionContact), c.MaxParticipants,
		string(c.StartMode), nullTime(c.StartDate), nullTime(c.StartAt), c.DurationDays,
		string(c.ReportMode), nullString(c.MetricName), c.HasGoal, c.GoalValue,
		c.HasLimit, c.LimitPerDay, c.HasProof, proofTypesJSON,
		c.HasRating, nullString(c.ChatLink),
	).Scan(&c.ID, &c.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to create challenge: %w", err)
	}

	return nil
}

// GetChallenge retrieves a challenge with its creator's display name
func (r *PostgresRepository) GetChallenge(ctx context.Context, id int64) (*models.Challenge, error) {
	query := `
		SELECT ` + challengeColumns + `, ` + displayNameExpr + `
		FROM challenges c
		JOIN users u ON u.id = c.creator_id
		WHERE c.id = $1
	`

	c, err := scanChallenge(r.pool.QueryRow(ctx, query, id), true)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get challenge: %w", err)
	}

	return c, nil
}

// ListChallenges returns challenges matching filters, newest first
func (r *PostgresRepository) ListChallenges(ctx context.Context, filters models.ChallengeFilters) ([]*models.Challenge, error) {
	query := `
		SELECT ` + challengeColumns + `, ` + displayNameExpr + `
		FROM challenges c
		JOIN users u ON u.id = c.creator_id
		WHERE 1=1
	`
	args := make([]any, 0)
	argNum := 1

	if filters.CreatorID != 0 {
		query += fmt.Sprintf(" AND c.creator_id = $%d", argNum)
		args = append(args, filters.CreatorID)
		argNum++
	}

	if filters.EntryType != "" {
		query += fmt.Sprintf(" AND c.entry_type = $%d", argNum)
		args = append(args, string(filters.EntryType))
		argNum++
	}

	query += " ORDER BY c.created_at DESC"

	if filters.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argNum)
		args = append(args, filters.Limit)
		argNum++
	}

	if filters.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argNum)
		args = append(args, filters.Offset)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list challenges: %w", err)
	}
	defer rows.Close()

	var challenges []*models.Challenge
	for rows.Next() {
		c, err := scanChallenge(rows, true)
		if err != nil {
			return nil, fmt.Errorf("failed to scan challenge: %w", err)
		}
		challenges = append(challenges, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating challenges: %w", err)
	}

	return challenges, nil
}

// --- Prizes ---

// CreatePrize inserts one prize row for a challenge
func (r *PostgresRepository) CreatePrize(ctx context.Context, p *models.Prize) error {
	query := `
		INSERT INTO prizes (challenge_id, place, title, description)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`

	err := r.pool.QueryRow(ctx, query, p.ChallengeID, p.Place, p.Title, nullString(p.Description)).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("failed to create prize: %w", err)
	}

	return nil
}

// ListPrizes returns prizes for a challenge ordered by place
func (r *PostgresRepository) ListPrizes(ctx context.Context, challengeID int64) ([]*models.Prize, error) {
	query := `
		SELECT id, challenge_id, place, title, description
		FROM prizes
		WHERE challenge_id = $1
		ORDER BY place ASC
	`

	rows, err := r.pool.Query(ctx, query, challengeID)
	if err != nil {
		return nil, fmt.Errorf("failed to list prizes: %w", err)
	}
	defer rows.Close()

	var prizes []*models.Prize
	for rows.Next() {
		var p models.Prize
		var description sql.NullString
		if err := rows.Scan(&p.ID, &p.ChallengeID, &p.Place, &p.Title, &description); err != nil {
			return nil, fmt.Errorf("failed to scan prize: %w", err)
		}
		p.Description = description.String
		prizes = append(prizes, &p)
	}

	return prizes, rows.Err()
}

// --- Participants ---

// CreateParticipant inserts a participant row. A duplicate (challenge, user)
// pair fails with a unique violation; callers check IsUniqueViolation.
func (r *PostgresRepository) CreateParticipant(ctx context.Context, p *models.Participant) error {
	query := `
		INSERT INTO participants (challenge_id, user_id)
		VALUES ($1, $2)
		RETURNING id, joined_at
	`

	err := r.pool.QueryRow(ctx, query, p.ChallengeID, p.UserID).Scan(&p.ID, &p.JoinedAt)
	if err != nil {
		return fmt.Errorf("failed to create participant: %w", err)
	}

	return nil
}

// GetParticipant retrieves a participant by (challenge, user) pair
func (r *PostgresRepository) GetParticipant(ctx context.Context, challengeID, userID int64) (*models.Participant, error) {
	query := `
		SELECT id, challenge_id, user_id, joined_at
		FROM participants
		WHERE challenge_id = $1 AND user_id = $2
	`

	var p models.Participant
	err := r.pool.QueryRow(ctx, query, challengeID, userID).Scan(&p.ID, &p.ChallengeID, &p.UserID, &p.JoinedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get participant: %w", err)
	}

	return &p, nil
}

// GetParticipantByID retrieves a participant by id
func (r *PostgresRepository) GetParticipantByID(ctx context.Context, id int64) (*models.Participant, error) {
	query := `
		SELECT id, challenge_id, user_id, joined_at
		FROM participants
		WHERE id = $1
	`

	var p models.Participant
	err := r.pool.QueryRow(ctx, query, id).Scan(&p.ID, &p.ChallengeID, &p.UserID, &p.JoinedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get participant: %w", err)
	}

	return &p, nil
}

// CountParticipants returns the authoritative participant count
func (r *PostgresRepository) CountParticipants(ctx context.Context, challengeID int64) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM participants WHERE challenge_id = $1`, challengeID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count participants: %w", err)
	}
	return count, nil
}

// --- Reports ---

// CreateReport inserts a report row. Reports are immutable.
func (r *PostgresRepository) CreateReport(ctx context.Context, rep *models.Report) error {
	query := `
		INSERT INTO reports (participant_id, report_date, is_done, value)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`

	err := r.pool.QueryRow(ctx, query,
		rep.ParticipantID,
		rep.ReportDate,
		rep.IsDone,
		rep.Value,
	).Scan(&rep.ID, &rep.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}

	return nil
}

// ListReports returns all reports for a participant, oldest first
func (r *PostgresRepository) ListReports(ctx context.Context, participantID int64) ([]*models.Report, error) {
	query := `
		SELECT id, participant_id, report_date, is_done, value, created_at
		FROM reports
		WHERE participant_id = $1
		ORDER BY report_date ASC, id ASC
	`

	rows, err := r.pool.Query(ctx, query, participantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	defer rows.Close()

	var reports []*models.Report
	for rows.Next() {
		var rep models.Report
		if err := rows.Scan(&rep.ID, &rep.ParticipantID, &rep.ReportDate, &rep.IsDone, &rep.Value, &rep.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}
		reports = append(reports, &rep)
	}

	return reports, rows.Err()
}

// CountReportsForDate returns how many reports a participant already
// submitted for the given calendar date. Used to enforce per-day limits.
func (r *PostgresRepository) CountReportsForDate(ctx context.Context, participantID int64, date time.Time) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM reports WHERE participant_id = $1 AND report_date = $2`,
		participantID, date,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count reports: %w", err)
	}
	return count, nil
}

// ChallengeRating returns the leaderboard for a challenge, pre-sorted by
// summed metric value then done-day count. Clients do not re-sort.
func (r *PostgresRepository) ChallengeRating(ctx context.Context, challengeID int64) ([]*models.RatingEntry, error) {
	query := `
		SELECT p.user_id, ` + displayNameExpr + `,
		       COALESCE(SUM(r.value), 0) AS total_value,
		       COUNT(*) FILTER (WHERE r.is_done) AS done_days
		FROM participants p
		JOIN users u ON u.id = p.user_id
		LEFT JOIN reports r ON r.participant_id = p.id
		WHERE p.challenge_id = $1
		GROUP BY p.user_id, u.username, u.first_name, u.telegram_id
		ORDER BY total_value DESC, done_days DESC
	`

	rows, err := r.pool.Query(ctx, query, challengeID)
	if err != nil {
		return nil, fmt.Errorf("failed to get challenge rating: %w", err)
	}
	defer rows.Close()

	var entries []*models.RatingEntry
	for rows.Next() {
		var e models.RatingEntry
		if err := rows.Scan(&e.UserID, &e.DisplayName, &e.TotalValue, &e.DoneDays); err != nil {
			return nil, fmt.Errorf("failed to scan rating entry: %w", err)
		}
		entries = append(entries, &e)
	}

	return entries, rows.Err()
}

// --- Entry requests ---

// CreateEntryRequest inserts a pending entry request. A duplicate
// (challenge, user) pair fails with a unique violation; callers treat that
// as success.
func (r *PostgresRepository) CreateEntryRequest(ctx context.Context, req *models.EntryRequest) error {
	query := `
		INSERT INTO entry_requests (challenge_id, user_id, status)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`

	err := r.pool.QueryRow(ctx, query, req.ChallengeID, req.UserID, string(req.Status)).
		Scan(&req.ID, &req.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create entry request: %w", err)
	}

	return nil
}

// GetEntryRequest retrieves a request by id
func (r *PostgresRepository) GetEntryRequest(ctx context.Context, id int64) (*models.EntryRequest, error) {
	query := `
		SELECT id, challenge_id, user_id, status, created_at
		FROM entry_requests
		WHERE id = $1
	`

	var req models.EntryRequest
	var status string
	err := r.pool.QueryRow(ctx, query, id).Scan(&req.ID, &req.ChallengeID, &req.UserID, &status, &req.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get entry request: %w", err)
	}
	req.Status = models.RequestStatus(status)

	return &req, nil
}

// GetEntryRequestByUser retrieves a request by (challenge, user) pair
func (r *PostgresRepository) GetEntryRequestByUser(ctx context.Context, challengeID, userID int64) (*models.EntryRequest, error) {
	query := `
		SELECT id, challenge_id, user_id, status, created_at
		FROM entry_requests
		WHERE challenge_id = $1 AND user_id = $2
	`

	var req models.EntryRequest
	var status string
	err := r.pool.QueryRow(ctx, query, challengeID, userID).Scan(&req.ID, &req.ChallengeID, &req.UserID, &status, &req.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get entry request: %w", err)
	}
	req.Status = models.RequestStatus(status)

	return &req, nil
}

// ListPendingRequests returns pending requests for a challenge in
// first-come-first-served order, annotated with display names.
func (r *PostgresRepository) ListPendingRequests(ctx context.Context, challengeID int64) ([]*models.EntryRequest, error) {
	query := `
		SELECT er.id, er.challenge_id, er.user_id, er.status, er.created_at, ` + displayNameExpr + `
		FROM entry_requests er
		JOIN users u ON u.id = er.user_id
		WHERE er.challenge_id = $1 AND er.status = 'pending'
		ORDER BY er.created_at ASC
	`

	rows, err := r.pool.Query(ctx, query, challengeID)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending requests: %w", err)
	}
	defer rows.Close()

	var requests []*models.EntryRequest
	for rows.Next() {
		var req models.EntryRequest
		var status string
		if err := rows.Scan(&req.ID, &req.ChallengeID, &req.UserID, &status, &req.CreatedAt, &req.DisplayName); err != nil {
			return nil, fmt.Errorf("failed to scan entry request: %w", err)
		}
		req.Status = models.RequestStatus(status)
		requests = append(requests, &req)
	}

	return requests, rows.Err()
}

// UpdateRequestStatus moves a request to a terminal status
func (r *PostgresRepository) UpdateRequestStatus(ctx context.Context, id int64, status models.RequestStatus) error {
	result, err := r.pool.Exec(ctx, `UPDATE entry_requests SET status = $2 WHERE id = $1`, id, string(status))
	if err != nil {
		return fmt.Errorf("failed to update entry request: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("entry request not found: %d", id)
	}

	return nil
}

// --- Invites ---

// CreateInvite inserts a new invite for a challenge
func (r *PostgresRepository) CreateInvite(ctx context.Context, inv *models.ChallengeInvite) error {
	query := `
		INSERT INTO challenge_invites (challenge_id, code, is_active, max_uses, uses_count, created_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`

	err := r.pool.QueryRow(ctx, query,
		inv.ChallengeID,
		inv.Code,
		inv.IsActive,
		inv.MaxUses,
		inv.UsesCount,
		inv.CreatedBy,
	).Scan(&inv.ID, &inv.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create invite: %w", err)
	}

	return nil
}

// GetInviteByChallenge retrieves the invite for a challenge
func (r *PostgresRepository) GetInviteByChallenge(ctx context.Context, challengeID int64) (*models.ChallengeInvite, error) {
	return r.getInvite(ctx, "challenge_id = $1", challengeID)
}

// GetInviteByCode retrieves an invite by its opaque code
func (r *PostgresRepository) GetInviteByCode(ctx context.Context, code string) (*models.ChallengeInvite, error) {
	return r.getInvite(ctx, "code = $1", code)
}

func (r *PostgresRepository) getInvite(ctx context.Context, where string, arg any) (*models.ChallengeInvite, error) {
	query := `
		SELECT id, challenge_id, code, is_active, max_uses, uses_count, created_by, created_at
		FROM challenge_invites
		WHERE ` + where

	var inv models.ChallengeInvite
	var maxUses sql.NullInt64
	err := r.pool.QueryRow(ctx, query, arg).Scan(
		&inv.ID,
		&inv.ChallengeID,
		&inv.Code,
		&inv.IsActive,
		&maxUses,
		&inv.UsesCount,
		&inv.CreatedBy,
		&inv.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get invite: %w", err)
	}

	if maxUses.Valid {
		v := int(maxUses.Int64)
		inv.MaxUses = &v
	}

	return &inv, nil
}

// UpdateInvite updates the activation flag and usage cap of an invite
func (r *PostgresRepository) UpdateInvite(ctx context.Context, inv *models.ChallengeInvite) error {
	result, err := r.pool.Exec(ctx,
		`UPDATE challenge_invites SET is_active = $2, max_uses = $3 WHERE id = $1`,
		inv.ID, inv.IsActive, inv.MaxUses,
	)
	if err != nil {
		return fmt.Errorf("failed to update invite: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("invite not found: %d", inv.ID)
	}

	return nil
}

// IncrementInviteUses bumps the usage counter atomically
func (r *PostgresRepository) IncrementInviteUses(ctx context.Context, id int64) error {
	_, err := r.pool.Exec(ctx, `UPDATE challenge_invites SET uses_count = uses_count + 1 WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to increment invite uses: %w", err)
	}
	return nil
}

// Helper functions for nullable values

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
