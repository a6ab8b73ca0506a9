package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "newsletter-agent/internal/common/errors"
	"newsletter-agent/internal/models"
)

var userCols = []string{"email", "name", "topics", "news_sources", "delivery_time", "output_format", "is_active", "created_at", "updated_at"}

func TestUserStore_Upsert(t *testing.T) {
	tests := []struct {
		name     string
		inserted bool
	}{
		{name: "new subscriber", inserted: true},
		{name: "existing subscriber is refreshed", inserted: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()

			now := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
			mock.ExpectQuery(`INSERT INTO users .* ON CONFLICT \(email\) DO UPDATE`).
				WithArgs("ann@example.com", "Ann", pq.Array([]string{"technology"}), pq.Array([]string{"newsapi"}), "08:00", "html").
				WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at", "inserted"}).AddRow(now, now, tt.inserted))

			u := &models.User{
				Email:        "Ann@Example.com",
				Name:         "Ann",
				Topics:       []string{"technology"},
				NewsSources:  []string{"newsapi"},
				DeliveryTime: "08:00",
				OutputFormat: "html",
			}
			created, err := NewUserStore(db).Upsert(context.Background(), u)
			require.NoError(t, err)

			assert.Equal(t, tt.inserted, created)
			assert.Equal(t, "ann@example.com", u.Email)
			assert.True(t, u.IsActive)
			assert.Equal(t, now, u.CreatedAt)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestUserStore_Get(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		now := time.Now().UTC()
		mock.ExpectQuery(`SELECT email, name, topics .* FROM users WHERE email = \$1`).
			WithArgs("ann@example.com").
			WillReturnRows(sqlmock.NewRows(userCols).
				AddRow("ann@example.com", "Ann", "{technology,finance}", "{}", "08:00", "both", true, now, now))

		u, err := NewUserStore(db).Get(context.Background(), "ANN@example.com")
		require.NoError(t, err)
		assert.Equal(t, []string{"technology", "finance"}, u.Topics)
		assert.Equal(t, "both", u.OutputFormat)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing subscriber", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(`FROM users WHERE email`).
			WithArgs("ghost@example.com").
			WillReturnRows(sqlmock.NewRows(userCols))

		_, err = NewUserStore(db).Get(context.Background(), "ghost@example.com")
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeUserNotFound))
	})
}

func TestUserStore_ListAndDue(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now().UTC()
	mock.ExpectQuery(`FROM users WHERE is_active ORDER BY created_at`).
		WillReturnRows(sqlmock.NewRows(userCols).
			AddRow("a@example.com", "", "{science}", "{rss}", "07:30", "text", true, now, now).
			AddRow("b@example.com", "Bo", "{sports}", "{}", "09:00", "html", true, now, now))
	mock.ExpectQuery(`WHERE is_active AND delivery_time = \$1`).
		WithArgs("07:30").
		WillReturnRows(sqlmock.NewRows(userCols).
			AddRow("a@example.com", "", "{science}", "{rss}", "07:30", "text", true, now, now))

	store := NewUserStore(db)
	active, err := store.List(context.Background(), true)
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, "a", active[0].DisplayName())

	due, err := store.DueAt(context.Background(), "07:30")
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, []string{"rss"}, due[0].NewsSources)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserStore_Deactivate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`UPDATE users SET is_active = FALSE`).
		WithArgs("ann@example.com").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE users SET is_active = FALSE`).
		WithArgs("ghost@example.com").
		WillReturnResult(sqlmock.NewResult(0, 0))

	store := NewUserStore(db)
	assert.NoError(t, store.Deactivate(context.Background(), "ann@example.com"))

	err = store.Deactivate(context.Background(), "ghost@example.com")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeUserNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserStore_Stats(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT COUNT\(\*\), COUNT\(\*\) FILTER`).
		WillReturnRows(sqlmock.NewRows([]string{"total", "active"}).AddRow(5, 3))
	mock.ExpectQuery(`unnest\(topics\)`).
		WithArgs(5).
		WillReturnRows(sqlmock.NewRows([]string{"topic", "n"}).
			AddRow("technology", 3).
			AddRow("finance", 1))

	store := NewUserStore(db)
	total, active, err := store.Counts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	assert.Equal(t, 3, active)

	popular, err := store.PopularTopics(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, []models.TopicCount{{Topic: "technology", Count: 3}, {Topic: "finance", Count: 1}}, popular)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserStore_QueryFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`FROM users`).WillReturnError(assert.AnError)

	_, err = NewUserStore(db).List(context.Background(), false)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeQueryExecutionFailed))
	assert.True(t, apperrors.IsRetryable(err))
}
