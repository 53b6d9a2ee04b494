package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/skillbridge/review-engine/internal/models"
)

// uniqueViolation is the Postgres error code for unique constraint violations
const uniqueViolation = "23505"

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
		poolConfig.MaxConns = 25 // default
	}

	if cfg.MaxIdleConns > 0 {
		poolConfig.MinConns = cfg.MaxIdleConns
	} else {
		poolConfig.MinConns = 5 // default
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

	// Test connection
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

// GetSessionsByStudent returns all of a student's sessions that count for
// eligibility, oldest first, with payments and schedule items attached.
func (r *PostgresRepository) GetSessionsByStudent(ctx context.Context, studentID string) ([]*models.Session, error) {
	query := `
		SELECT s.id, s.student_id, s.mentor_id, s.mentor_name, s.skill_name, s.status, s.created_at,
		       p.status, p.paid_at
		FROM sessions s
		LEFT JOIN payments p ON p.session_id = s.id
		WHERE s.student_id = $1
		  AND s.status NOT IN ('cancelled', 'rejected')
		ORDER BY s.created_at ASC
	`

	rows, err := r.pool.Query(ctx, query, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*models.Session

	for rows.Next() {
		var sess models.Session
		var statusStr string
		var paymentStatus sql.NullString
		var paidAt sql.NullTime

		err := rows.Scan(
			&sess.ID,
			&sess.StudentID,
			&sess.MentorID,
			&sess.MentorName,
			&sess.SkillName,
			&statusStr,
			&sess.CreatedAt,
			&paymentStatus,
			&paidAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}

		sess.Status = models.SessionStatus(statusStr)

		if paymentStatus.Valid {
			payment := &models.Payment{
				SessionID: sess.ID,
				Status:    models.PaymentStatus(paymentStatus.String),
			}
			if paidAt.Valid {
				payment.PaidAt = &paidAt.Time
			}
			sess.Payment = payment
		}

		sessions = append(sessions, &sess)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sessions: %w", err)
	}

	// Load schedule items for each session
	for _, sess := range sessions {
		items, err := r.getScheduleItems(ctx, sess.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to get schedule items for session %s: %w", sess.ID, err)
		}
		sess.ScheduleItems = items
	}

	return sessions, nil
}

// getScheduleItems returns the ordered schedule items for a session
func (r *PostgresRepository) getScheduleItems(ctx context.Context, sessionID string) ([]models.ScheduleItem, error) {
	query := `
		SELECT id, session_id, position, status
		FROM schedule_items
		WHERE session_id = $1
		ORDER BY position ASC
	`

	rows, err := r.pool.Query(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query schedule items: %w", err)
	}
	defer rows.Close()

	var items []models.ScheduleItem

	for rows.Next() {
		var item models.ScheduleItem
		var statusStr string

		if err := rows.Scan(&item.ID, &item.SessionID, &item.Position, &statusStr); err != nil {
			return nil, fmt.Errorf("failed to scan schedule item: %w", err)
		}

		item.Status = models.ScheduleItemStatus(statusStr)
		items = append(items, item)
	}

	return items, rows.Err()
}

// GetReviewRequests returns the full review ledger for a document key
func (r *PostgresRepository) GetReviewRequests(ctx context.Context, key models.DocumentKey) ([]*models.ReviewRequest, error) {
	query := `
		SELECT id, document_id, document_type, student_id, mentor_id, mentor_name, status, rating, feedback, created_at, reviewed_at
		FROM review_requests
		WHERE document_id = $1 AND document_type = $2 AND student_id = $3
		ORDER BY created_at ASC
	`

	rows, err := r.pool.Query(ctx, query, key.DocumentID, string(key.DocumentType), key.StudentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query review requests: %w", err)
	}
	defer rows.Close()

	return scanReviewRequests(rows)
}

// GetReviewRequest retrieves a review request by ID, nil when not found
func (r *PostgresRepository) GetReviewRequest(ctx context.Context, id string) (*models.ReviewRequest, error) {
	query := `
		SELECT id, document_id, document_type, student_id, mentor_id, mentor_name, status, rating, feedback, created_at, reviewed_at
		FROM review_requests
		WHERE id = $1
	`

	req, err := scanReviewRequest(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get review request: %w", err)
	}

	return req, nil
}

// CreateReviewRequest inserts a review request. The unique constraint on
// (document_type, document_id, student_id) makes the claim check and the
// insert one atomic operation: a second insert for the same document key
// fails with ErrAlreadyClaimed no matter how the callers interleave.
func (r *PostgresRepository) CreateReviewRequest(ctx context.Context, req *models.ReviewRequest) error {
	query := `
		INSERT INTO review_requests (id, document_id, document_type, student_id, mentor_id, mentor_name, status, rating, feedback, created_at, reviewed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.pool.Exec(ctx, query,
		req.ID,
		req.DocumentID,
		string(req.DocumentType),
		req.StudentID,
		req.MentorID,
		nullString(req.MentorName),
		string(req.Status),
		req.Rating,
		nullString(req.Feedback),
		req.CreatedAt,
		nullTime(req.ReviewedAt),
	)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrAlreadyClaimed
		}
		return fmt.Errorf("failed to create review request: %w", err)
	}

	return nil
}

// UpdateReviewRequest persists a verdict (status, rating, feedback)
func (r *PostgresRepository) UpdateReviewRequest(ctx context.Context, req *models.ReviewRequest) error {
	query := `
		UPDATE review_requests
		SET status = $2, rating = $3, feedback = $4, reviewed_at = $5
		WHERE id = $1
	`

	result, err := r.pool.Exec(ctx, query,
		req.ID,
		string(req.Status),
		req.Rating,
		nullString(req.Feedback),
		nullTime(req.ReviewedAt),
	)

	if err != nil {
		return fmt.Errorf("failed to update review request: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrReviewNotFound
	}

	return nil
}

// DeleteReviewRequest removes a review request, releasing the claim on
// its document
func (r *PostgresRepository) DeleteReviewRequest(ctx context.Context, id string) error {
	query := `DELETE FROM review_requests WHERE id = $1`

	result, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete review request: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrReviewNotFound
	}

	return nil
}

// ListReviewRequests returns review requests matching filters
func (r *PostgresRepository) ListReviewRequests(ctx context.Context, filters models.ReviewFilters) ([]*models.ReviewRequest, error) {
	query := `
		SELECT id, document_id, document_type, student_id, mentor_id, mentor_name, status, rating, feedback, created_at, reviewed_at
		FROM review_requests
		WHERE 1=1
	`
	args := make([]interface{}, 0)
	argNum := 1

	if filters.StudentID != "" {
		query += fmt.Sprintf(" AND student_id = $%d", argNum)
		args = append(args, filters.StudentID)
		argNum++
	}

	if filters.MentorID != "" {
		query += fmt.Sprintf(" AND mentor_id = $%d", argNum)
		args = append(args, filters.MentorID)
		argNum++
	}

	if filters.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argNum)
		args = append(args, string(filters.Status))
		argNum++
	}

	query += " ORDER BY created_at DESC"

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
		return nil, fmt.Errorf("failed to list review requests: %w", err)
	}
	defer rows.Close()

	return scanReviewRequests(rows)
}

// GetPendingRequestsOlderThan returns pending requests of a document type
// created before the cutoff, oldest first. Used by the claim expiry worker.
func (r *PostgresRepository) GetPendingRequestsOlderThan(ctx context.Context, docType models.DocumentType, cutoff time.Time) ([]*models.ReviewRequest, error) {
	query := `
		SELECT id, document_id, document_type, student_id, mentor_id, mentor_name, status, rating, feedback, created_at, reviewed_at
		FROM review_requests
		WHERE document_type = $1
		  AND status = 'pending'
		  AND created_at < $2
		ORDER BY created_at ASC
	`

	rows, err := r.pool.Query(ctx, query, string(docType), cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to query stale pending requests: %w", err)
	}
	defer rows.Close()

	return scanReviewRequests(rows)
}

// GetClientByApiKey returns the API client for a key, nil when unknown
func (r *PostgresRepository) GetClientByApiKey(ctx context.Context, apiKey string) (*models.ApiClient, error) {
	query := `
		SELECT id, name, api_key, is_active, created_at, last_used_at, permissions
		FROM api_clients
		WHERE api_key = $1
	`

	var client models.ApiClient
	var lastUsedAt sql.NullTime

	err := r.pool.QueryRow(ctx, query, apiKey).Scan(
		&client.ID,
		&client.Name,
		&client.ApiKey,
		&client.IsActive,
		&client.CreatedAt,
		&lastUsedAt,
		&client.Permissions,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get api client: %w", err)
	}

	if lastUsedAt.Valid {
		client.LastUsedAt = &lastUsedAt.Time
	}

	return &client, nil
}

// UpdateClientLastUsed records when an API key was last used
func (r *PostgresRepository) UpdateClientLastUsed(ctx context.Context, apiKey string) error {
	query := `UPDATE api_clients SET last_used_at = NOW() WHERE api_key = $1`

	if _, err := r.pool.Exec(ctx, query, apiKey); err != nil {
		return fmt.Errorf("failed to update client last_used_at: %w", err)
	}

	return nil
}

// rowScanner covers both pgx.Row and pgx.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

func scanReviewRequest(row rowScanner) (*models.ReviewRequest, error) {
	var req models.ReviewRequest
	var docTypeStr, statusStr string
	var mentorName, feedback sql.NullString
	var rating sql.NullInt32
	var reviewedAt sql.NullTime

	err := row.Scan(
		&req.ID,
		&req.DocumentID,
		&docTypeStr,
		&req.StudentID,
		&req.MentorID,
		&mentorName,
		&statusStr,
		&rating,
		&feedback,
		&req.CreatedAt,
		&reviewedAt,
	)
	if err != nil {
		return nil, err
	}

	req.DocumentType = models.DocumentType(docTypeStr)
	req.Status = models.ReviewStatus(statusStr)
	req.MentorName = mentorName.String
	req.Feedback = feedback.String

	if rating.Valid {
		v := int(rating.Int32)
		req.Rating = &v
	}

	if reviewedAt.Valid {
		req.ReviewedAt = &reviewedAt.Time
	}

	return &req, nil
}

func scanReviewRequests(rows pgx.Rows) ([]*models.ReviewRequest, error) {
	var requests []*models.ReviewRequest

	for rows.Next() {
		req, err := scanReviewRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan review request: %w", err)
		}
		requests = append(requests, req)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating review requests: %w", err)
	}

	return requests, nil
}

// nullString converts empty strings to NULL
func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// nullTime converts nil times to NULL
func nullTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}
