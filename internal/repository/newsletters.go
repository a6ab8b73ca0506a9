package repository

import (
	"context"
	"database/sql"
	"time"

	apperrors "newsletter-agent/internal/common/errors"
	"newsletter-agent/internal/models"

	"github.com/lib/pq"
)

// NewsletterStore keeps one log row per pipeline run.
type NewsletterStore struct {
	db *sql.DB
}

func NewNewsletterStore(db *sql.DB) *NewsletterStore {
	return &NewsletterStore{db: db}
}

// Log inserts entry and fills its id and creation time.
func (s *NewsletterStore) Log(ctx context.Context, entry *models.NewsletterLog) error {
	const q = `
		INSERT INTO newsletter_logs (run_id, user_email, subject, topics, status, failed_stage, error, news_count, sent_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at`

	var sentAt interface{}
	if entry.SentAt != nil {
		sentAt = *entry.SentAt
	}

	err := s.db.QueryRowContext(ctx, q,
		entry.RunID, entry.UserEmail, entry.Subject, pq.Array(entry.Topics),
		entry.Status, nullString(entry.FailedStage), nullString(entry.Error), entry.NewsCount, sentAt,
	).Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return apperrors.NewDatabaseInsertFailedError(err)
	}
	return nil
}

// MarkSent flips a generated run to sent.
func (s *NewsletterStore) MarkSent(ctx context.Context, runID string, sentAt time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE newsletter_logs SET status = $1, sent_at = $2 WHERE run_id = $3`,
		models.StatusSent, sentAt, runID)
	if err != nil {
		return apperrors.NewQueryExecutionFailedError("mark sent", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return apperrors.NewResourceNotFoundError("newsletter_logs", "run_id: "+runID)
	}
	return nil
}

// ListForUser returns the most recent runs for email, newest first.
func (s *NewsletterStore) ListForUser(ctx context.Context, email string, limit int) ([]models.NewsletterLog, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_id, user_email, subject, topics, status, failed_stage, error, news_count, created_at, sent_at
		FROM newsletter_logs
		WHERE user_email = $1
		ORDER BY created_at DESC
		LIMIT $2`, email, limit)
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("list newsletters", err)
	}
	defer rows.Close()

	out := []models.NewsletterLog{}
	for rows.Next() {
		var (
			entry        models.NewsletterLog
			topics       pq.StringArray
			stage, cause sql.NullString
			sentAt       sql.NullTime
		)
		if err := rows.Scan(&entry.ID, &entry.RunID, &entry.UserEmail, &entry.Subject, &topics,
			&entry.Status, &stage, &cause, &entry.NewsCount, &entry.CreatedAt, &sentAt); err != nil {
			return nil, apperrors.NewQueryExecutionFailedError("list newsletters", err)
		}
		entry.Topics = []string(topics)
		entry.FailedStage = stage.String
		entry.Error = cause.String
		if sentAt.Valid {
			t := sentAt.Time
			entry.SentAt = &t
		}
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("list newsletters", err)
	}
	return out, nil
}

// CountByStatus tallies runs per status, plus "today" for runs created since
// midnight UTC.
func (s *NewsletterStore) CountByStatus(ctx context.Context, now time.Time) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM newsletter_logs GROUP BY status`)
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("count newsletters", err)
	}
	defer rows.Close()

	counts := map[string]int{"total": 0}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, apperrors.NewQueryExecutionFailedError("count newsletters", err)
		}
		counts[status] = n
		counts["total"] += n
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("count newsletters", err)
	}

	midnight := now.UTC().Truncate(24 * time.Hour)
	var today int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM newsletter_logs WHERE created_at >= $1`, midnight).Scan(&today); err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("count newsletters", err)
	}
	counts["today"] = today
	return counts, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
