package fetchstockdata

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	apperrors "newsletter-agent/internal/common/errors"
	"newsletter-agent/internal/common/logger"
	"newsletter-agent/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestConfig(baseURL string) *Config {
	return &Config{
		BaseURL:        baseURL,
		APIKey:         "demo",
		Symbols:        []string{"AAPL", "MSFT"},
		ItemsPerSymbol: 2,
		Timeout:        2 * time.Second,
	}
}

func feedFor(symbol string, n int) string {
	items := ""
	for i := 0; i < n; i++ {
		if i > 0 {
			items += ","
		}
		items += fmt.Sprintf(`{"title":"%s story %d","url":"https://example.com/%s/%d","time_published":"20240501T083000","summary":"summary %d","source":"Benzinga"}`,
			symbol, i, symbol, i, i)
	}
	return fmt.Sprintf(`{"items":"%d","feed":[%s]}`, n, items)
}

func TestHandler_Execute_Success(t *testing.T) {
	var tickers []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/query", r.URL.Path)
		assert.Equal(t, "NEWS_SENTIMENT", r.URL.Query().Get("function"))
		assert.Equal(t, "demo", r.URL.Query().Get("apikey"))
		symbol := r.URL.Query().Get("tickers")
		tickers = append(tickers, symbol)
		_, _ = w.Write([]byte(feedFor(symbol, 4)))
	}))
	defer server.Close()

	h := NewHandler(createTestConfig(server.URL), logger.NewTestLogger(t))
	out, err := h.Execute(context.Background(), &Input{Topics: []string{"finance"}})
	require.NoError(t, err)

	assert.Equal(t, []string{"AAPL", "MSFT"}, tickers)
	assert.Equal(t, models.SourceStocks, out.Source)
	require.Len(t, out.Records, 4)

	rec := out.Records[0]
	assert.Equal(t, "AAPL story 0", rec.Title)
	assert.Equal(t, "Benzinga - AAPL", rec.Publisher)
	assert.Equal(t, models.SourceStocks, rec.Source)
	assert.Equal(t, []string{"finance"}, rec.Topics)
	require.NotNil(t, rec.PublishedAt)
	assert.Equal(t, 8, rec.PublishedAt.Hour())
	assert.Empty(t, out.Failed)
}

func TestHandler_Execute_InputSymbolsOverrideDefaults(t *testing.T) {
	var tickers []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		symbol := r.URL.Query().Get("tickers")
		tickers = append(tickers, symbol)
		_, _ = w.Write([]byte(feedFor(symbol, 1)))
	}))
	defer server.Close()

	h := NewHandler(createTestConfig(server.URL), logger.NewNoOpLogger())
	out, err := h.Execute(context.Background(), &Input{Symbols: []string{" nvda", "NVDA", ""}})
	require.NoError(t, err)

	assert.Equal(t, []string{"NVDA"}, tickers)
	assert.Equal(t, []string{"NVDA"}, out.Symbols)
	assert.Len(t, out.Records, 1)
}

func TestHandler_Execute_PartialFailureKeepsRecords(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		symbol := r.URL.Query().Get("tickers")
		if symbol == "MSFT" {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(feedFor(symbol, 2)))
	}))
	defer server.Close()

	h := NewHandler(createTestConfig(server.URL), logger.NewNoOpLogger())
	out, err := h.Execute(context.Background(), &Input{})
	require.NoError(t, err)

	assert.Len(t, out.Records, 2)
	assert.Equal(t, []string{"MSFT"}, out.Failed)
}

func TestHandler_Execute_Failures(t *testing.T) {
	tests := []struct {
		name          string
		apiKey        string
		status        int
		body          string
		wantSentinel  error
		wantRetryable bool
	}{
		{
			name:         "missing api key",
			wantSentinel: ErrAPIKeyMissing,
		},
		{
			name:          "rate limited",
			apiKey:        "demo",
			status:        http.StatusOK,
			body:          `{"Note":"Thank you for using Alpha Vantage! Our standard API rate limit is 25 requests per day."}`,
			wantSentinel:  ErrRateLimited,
			wantRetryable: true,
		},
		{
			name:         "error message",
			apiKey:       "demo",
			status:       http.StatusOK,
			body:         `{"Error Message":"Invalid API call."}`,
			wantSentinel: ErrRejected,
		},
		{
			name:          "server error",
			apiKey:        "demo",
			status:        http.StatusInternalServerError,
			wantSentinel:  ErrUpstreamFailed,
			wantRetryable: true,
		},
		{
			name:         "malformed payload",
			apiKey:       "demo",
			status:       http.StatusOK,
			body:         `<html>`,
			wantSentinel: ErrUpstreamFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&calls, 1)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			cfg := createTestConfig(server.URL)
			cfg.APIKey = tt.apiKey
			h := NewHandler(cfg, logger.NewNoOpLogger())

			out, err := h.Execute(context.Background(), &Input{})
			require.Error(t, err)
			assert.Nil(t, out)
			assert.True(t, errors.Is(err, tt.wantSentinel), "got %v", err)
			assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeSourceUnavailable))
			assert.Equal(t, tt.wantRetryable, apperrors.IsRetryable(err))
			if tt.apiKey == "" {
				assert.Zero(t, atomic.LoadInt32(&calls))
			}
		})
	}
}
