// Package repository persists subscribers, the newsletter log, the newsletter
// archive and cached tool results.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	apperrors "newsletter-agent/internal/common/errors"
	"newsletter-agent/internal/models"

	"github.com/lib/pq"
)

const userColumns = `email, name, topics, news_sources, delivery_time, output_format, is_active, created_at, updated_at`

// UserStore reads and writes subscribers.
type UserStore struct {
	db *sql.DB
}

func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db}
}

// Upsert registers u, or refreshes the preferences of an existing subscriber
// and reactivates it. It reports whether a new row was created.
func (s *UserStore) Upsert(ctx context.Context, u *models.User) (bool, error) {
	const q = `
		INSERT INTO users (email, name, topics, news_sources, delivery_time, output_format, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, TRUE)
		ON CONFLICT (email) DO UPDATE SET
			name = EXCLUDED.name,
			topics = EXCLUDED.topics,
			news_sources = EXCLUDED.news_sources,
			delivery_time = EXCLUDED.delivery_time,
			output_format = EXCLUDED.output_format,
			is_active = TRUE,
			updated_at = NOW()
		RETURNING created_at, updated_at, (xmax = 0) AS inserted`

	var inserted bool
	err := s.db.QueryRowContext(ctx, q,
		strings.ToLower(u.Email), u.Name, pq.Array(u.Topics), pq.Array(u.NewsSources), u.DeliveryTime, u.OutputFormat,
	).Scan(&u.CreatedAt, &u.UpdatedAt, &inserted)
	if err != nil {
		return false, apperrors.NewDatabaseInsertFailedError(err)
	}
	u.Email = strings.ToLower(u.Email)
	u.IsActive = true
	return inserted, nil
}

func (s *UserStore) Get(ctx context.Context, email string) (*models.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, strings.ToLower(email))
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewUserNotFoundError(email)
	}
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("get user", err)
	}
	return u, nil
}

// List returns subscribers ordered by sign-up time.
func (s *UserStore) List(ctx context.Context, activeOnly bool) ([]models.User, error) {
	q := `SELECT ` + userColumns + ` FROM users`
	if activeOnly {
		q += ` WHERE is_active`
	}
	q += ` ORDER BY created_at`
	return s.query(ctx, "list users", q)
}

// DueAt returns the active subscribers whose delivery time is hhmm.
func (s *UserStore) DueAt(ctx context.Context, hhmm string) ([]models.User, error) {
	return s.query(ctx, "users due", `SELECT `+userColumns+` FROM users WHERE is_active AND delivery_time = $1 ORDER BY created_at`, hhmm)
}

// Deactivate soft-deletes a subscriber.
func (s *UserStore) Deactivate(ctx context.Context, email string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET is_active = FALSE, updated_at = NOW() WHERE email = $1`, strings.ToLower(email))
	if err != nil {
		return apperrors.NewQueryExecutionFailedError("deactivate user", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return apperrors.NewQueryExecutionFailedError("deactivate user", err)
	}
	if n == 0 {
		return apperrors.NewUserNotFoundError(email)
	}
	return nil
}

// Counts returns the total and active subscriber counts.
func (s *UserStore) Counts(ctx context.Context) (total, active int, err error) {
	err = s.db.QueryRowContext(ctx, `SELECT COUNT(*), COUNT(*) FILTER (WHERE is_active) FROM users`).Scan(&total, &active)
	if err != nil {
		return 0, 0, apperrors.NewQueryExecutionFailedError("count users", err)
	}
	return total, active, nil
}

// PopularTopics ranks topics by the number of active subscribers following them.
func (s *UserStore) PopularTopics(ctx context.Context, limit int) ([]models.TopicCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT topic, COUNT(*) AS n
		FROM users, unnest(topics) AS topic
		WHERE is_active
		GROUP BY topic
		ORDER BY n DESC, topic
		LIMIT $1`, limit)
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("popular topics", err)
	}
	defer rows.Close()

	out := []models.TopicCount{}
	for rows.Next() {
		var tc models.TopicCount
		if err := rows.Scan(&tc.Topic, &tc.Count); err != nil {
			return nil, apperrors.NewQueryExecutionFailedError("popular topics", err)
		}
		out = append(out, tc)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("popular topics", err)
	}
	return out, nil
}

func (s *UserStore) query(ctx context.Context, name, q string, args ...interface{}) ([]models.User, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError(name, err)
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, apperrors.NewQueryExecutionFailedError(name, err)
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewQueryExecutionFailedError(name, err)
	}
	return users, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row scanner) (*models.User, error) {
	var u models.User
	var topics, sources pq.StringArray
	if err := row.Scan(&u.Email, &u.Name, &topics, &sources, &u.DeliveryTime, &u.OutputFormat, &u.IsActive, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	u.Topics = []string(topics)
	u.NewsSources = []string(sources)
	if u.Topics == nil {
		u.Topics = []string{}
	}
	return &u, nil
}
