package pipeline

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	apperrors "newsletter-agent/internal/common/errors"
	"newsletter-agent/internal/common/logger"
	"newsletter-agent/internal/models"
	"newsletter-agent/internal/tools"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type toolFunc func(ctx context.Context, params map[string]interface{}, call int) tools.ToolResult

type fakeExecutor struct {
	mu       sync.Mutex
	handlers map[tools.ToolID]toolFunc
	calls    map[tools.ToolID]int
	params   map[tools.ToolID][]map[string]interface{}
}

func newFakeExecutor(handlers map[tools.ToolID]toolFunc) *fakeExecutor {
	return &fakeExecutor{
		handlers: handlers,
		calls:    map[tools.ToolID]int{},
		params:   map[tools.ToolID][]map[string]interface{}{},
	}
}

func (f *fakeExecutor) Execute(ctx context.Context, name string, params map[string]interface{}) tools.ToolResult {
	id := tools.ToolID(name)
	f.mu.Lock()
	f.calls[id]++
	call := f.calls[id]
	f.params[id] = append(f.params[id], params)
	h := f.handlers[id]
	f.mu.Unlock()

	if h == nil {
		return tools.Fail(apperrors.NewToolNotFoundError(name))
	}
	return h(ctx, params, call)
}

func (f *fakeExecutor) callCount(id tools.ToolID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[id]
}

func ok(t *testing.T, v interface{}) tools.ToolResult {
	t.Helper()
	data, err := tools.ToMap(v)
	assert.NoError(t, err)
	return tools.OK(data)
}

func records(source string, n int) []models.Record {
	out := make([]models.Record, n)
	for i := range out {
		title := fmt.Sprintf("%s technology story %d", source, i)
		out[i] = models.Record{
			ID:     models.RecordID(source, "", title),
			Title:  title,
			Source: source,
			URL:    fmt.Sprintf("https://%s.example.com/%d", source, i),
		}
	}
	return out
}

func fetcher(t *testing.T, source string, n int) toolFunc {
	return func(context.Context, map[string]interface{}, int) tools.ToolResult {
		return ok(t, fetchResult{Source: source, Records: records(source, n)})
	}
}

// happyPath wires every stage to succeed. The aggregate fake passes records
// through and reports AGGREGATION_EMPTY for an empty fetch.
func happyPath(t *testing.T) map[tools.ToolID]toolFunc {
	return map[tools.ToolID]toolFunc{
		tools.FetchNews:       fetcher(t, models.SourceNewsAPI, 2),
		tools.FetchRSSFeeds:   fetcher(t, models.SourceRSS, 1),
		tools.FetchHackerNews: fetcher(t, models.SourceHackerNews, 1),
		tools.FetchStockData:  fetcher(t, models.SourceStocks, 1),
		tools.AggregateContent: func(_ context.Context, params map[string]interface{}, _ int) tools.ToolResult {
			var in aggregateParams
			require.NoError(t, tools.Decode(params, &in))
			var all []models.Record
			for _, r := range in.Results {
				all = append(all, r.Records...)
			}
			if len(all) == 0 {
				return tools.Fail(apperrors.NewAggregationEmptyError("no sources returned data"))
			}
			return ok(t, aggregateResult{Records: all})
		},
		tools.AnalyzeTrends: func(context.Context, map[string]interface{}, int) tools.ToolResult {
			return ok(t, trendResult{Trends: models.TrendSummary{Topics: []models.TopicCount{{Topic: "technology", Count: 3}}}})
		},
		tools.SummarizeContent: func(context.Context, map[string]interface{}, int) tools.ToolResult {
			return ok(t, summarizeResult{Summary: "A busy day in technology."})
		},
		tools.GenerateEmailTemplate: func(_ context.Context, params map[string]interface{}, _ int) tools.ToolResult {
			var in templateParams
			require.NoError(t, tools.Decode(params, &in))
			return ok(t, templateResult{Draft: models.NewsletterDraft{
				RunID:       in.RunID,
				UserEmail:   in.UserEmail,
				Subject:     "Your Daily News Summary - technology",
				TextBody:    in.Summary,
				Topics:      in.Topics,
				NewsCount:   len(in.Records),
				GeneratedAt: in.GeneratedAt,
			}})
		},
	}
}

func testOptions() Options {
	return Options{
		FetcherTimeout: time.Second,
		FetcherRetries: 1,
		MaxRecords:     20,
		DefaultSources: []string{models.SourceNewsAPI, models.SourceRSS},
		DefaultFormat:  models.FormatBoth,
	}
}

func baseRequest() Request {
	return Request{RunID: "run-1", UserEmail: "ann@example.com", UserName: "Ann", Topics: []string{"Technology", " "}}
}

func TestGenerate_Success(t *testing.T) {
	exec := newFakeExecutor(happyPath(t))
	fixed := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	o := New(exec, testOptions(), WithLogger(logger.NewTestLogger(t)), WithClock(func() time.Time { return fixed }))

	run, err := o.Generate(context.Background(), baseRequest())
	require.NoError(t, err)

	assert.Equal(t, StateDone, run.State)
	assert.Equal(t, "Done", run.Status())
	assert.Nil(t, run.Err)
	require.NotNil(t, run.Draft)
	assert.Equal(t, "run-1", run.Draft.RunID)
	assert.Equal(t, 3, run.Draft.NewsCount)
	assert.Equal(t, fixed, run.Draft.GeneratedAt)
	assert.Equal(t, []string{"technology"}, run.Topics)

	var path []State
	for _, tr := range run.Transitions {
		path = append(path, tr.To)
	}
	assert.Equal(t, []State{StateFetching, StateAggregating, StateAnalyzingTrends, StateSummarizing, StateBuildingTemplate, StateDone}, path)
	assert.Equal(t, StateIdle, run.Transitions[0].From)

	// default sources only, in fetch order
	assert.Zero(t, exec.callCount(tools.FetchHackerNews))
	var agg aggregateParams
	require.NoError(t, tools.Decode(exec.params[tools.AggregateContent][0], &agg))
	require.Len(t, agg.Results, 2)
	assert.Equal(t, models.SourceNewsAPI, agg.Results[0].Source)
	assert.Equal(t, models.SourceRSS, agg.Results[1].Source)
	assert.Equal(t, 20, agg.MaxRecords)

	var tpl templateParams
	require.NoError(t, tools.Decode(exec.params[tools.GenerateEmailTemplate][0], &tpl))
	assert.Equal(t, models.FormatBoth, tpl.Format)
	assert.Equal(t, "A busy day in technology.", tpl.Summary)
}

func TestGenerate_FetcherFailuresAreAbsorbed(t *testing.T) {
	handlers := happyPath(t)
	handlers[tools.FetchHackerNews] = func(_ context.Context, _ map[string]interface{}, call int) tools.ToolResult {
		return tools.Fail(apperrors.NewSourceUnavailableError("hackernews", fmt.Errorf("status 503 (call %d)", call), true))
	}
	handlers[tools.FetchStockData] = func(context.Context, map[string]interface{}, int) tools.ToolResult {
		return tools.Fail(apperrors.NewSourceUnavailableError("stocks", fmt.Errorf("malformed payload"), false))
	}
	exec := newFakeExecutor(handlers)
	o := New(exec, testOptions())

	req := baseRequest()
	req.Sources = []string{"news", "hacker_news", "yahoo_finance", "rss", "carrier-pigeon", "rss"}
	run, err := o.Generate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, StateDone, run.State)

	assert.Equal(t, 2, exec.callCount(tools.FetchHackerNews), "retryable failure is retried once")
	assert.Equal(t, 1, exec.callCount(tools.FetchStockData), "permanent failure is not retried")
	assert.Equal(t, 1, exec.callCount(tools.FetchRSSFeeds))

	require.Len(t, run.Sources, 4)
	statuses := map[string]SourceStatus{}
	for _, s := range run.Sources {
		statuses[s.Source] = s
	}
	assert.Equal(t, 2, statuses[models.SourceHackerNews].Attempts)
	assert.Equal(t, string(apperrors.ErrCodeSourceUnavailable), statuses[models.SourceHackerNews].Code)
	assert.Equal(t, 1, statuses[models.SourceStocks].Attempts)
	assert.Equal(t, 2, statuses[models.SourceNewsAPI].Records)
	assert.Empty(t, statuses[models.SourceRSS].Error)
	assert.Equal(t, 3, run.Draft.NewsCount)
}

func TestGenerate_AllFetchersFail(t *testing.T) {
	handlers := happyPath(t)
	down := func(context.Context, map[string]interface{}, int) tools.ToolResult {
		return tools.Fail(apperrors.NewSourceUnavailableError("x", fmt.Errorf("connection refused"), true))
	}
	handlers[tools.FetchNews] = down
	handlers[tools.FetchRSSFeeds] = down
	exec := newFakeExecutor(handlers)
	alerts := &recordingAlerter{}
	o := New(exec, testOptions(), WithAlerter(alerts))

	run, err := o.Generate(context.Background(), baseRequest())
	require.Error(t, err)

	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, StateAggregating, se.Stage)
	assert.Equal(t, "no sources returned data", se.Message)
	assert.Equal(t, "Failed(Aggregating)", run.Status())
	assert.Nil(t, run.Draft)

	assert.Zero(t, exec.callCount(tools.SummarizeContent))
	assert.Zero(t, exec.callCount(tools.GenerateEmailTemplate))
	require.Len(t, alerts.runs, 1)
	assert.Equal(t, StateAggregating, alerts.runs[0].FailedStage)
}

func TestGenerate_SummarizerFailures(t *testing.T) {
	t.Run("empty completion fails the run", func(t *testing.T) {
		handlers := happyPath(t)
		handlers[tools.SummarizeContent] = func(context.Context, map[string]interface{}, int) tools.ToolResult {
			return tools.Fail(apperrors.NewGenerationUnavailableError(fmt.Errorf("empty completion"), false))
		}
		exec := newFakeExecutor(handlers)

		run, err := New(exec, testOptions()).Generate(context.Background(), baseRequest())
		require.Error(t, err)
		assert.Equal(t, StateFailed, run.State)
		assert.Equal(t, StateSummarizing, run.FailedStage)
		assert.Equal(t, string(apperrors.ErrCodeGenerationUnavailable), run.Err.Code)
		assert.Nil(t, run.Draft)
		assert.Equal(t, 1, exec.callCount(tools.SummarizeContent))
		assert.Zero(t, exec.callCount(tools.GenerateEmailTemplate))

		stdErr := run.Err.StandardError()
		assert.Equal(t, "Summarizing", stdErr.Metadata["stage"])
	})

	t.Run("retryable failure retries with half the records", func(t *testing.T) {
		handlers := happyPath(t)
		handlers[tools.SummarizeContent] = func(_ context.Context, params map[string]interface{}, call int) tools.ToolResult {
			if call == 1 {
				return tools.Fail(apperrors.NewGenerationUnavailableError(fmt.Errorf("context_length_exceeded"), true))
			}
			return ok(t, summarizeResult{Summary: "Shorter briefing."})
		}
		exec := newFakeExecutor(handlers)

		run, err := New(exec, testOptions()).Generate(context.Background(), baseRequest())
		require.NoError(t, err)
		assert.Equal(t, StateDone, run.State)
		require.Equal(t, 2, exec.callCount(tools.SummarizeContent))

		var first, second summarizeParams
		require.NoError(t, tools.Decode(exec.params[tools.SummarizeContent][0], &first))
		require.NoError(t, tools.Decode(exec.params[tools.SummarizeContent][1], &second))
		assert.Len(t, first.Records, 3)
		assert.Len(t, second.Records, 1)
	})

	t.Run("second failure is final", func(t *testing.T) {
		handlers := happyPath(t)
		handlers[tools.SummarizeContent] = func(context.Context, map[string]interface{}, int) tools.ToolResult {
			return tools.Fail(apperrors.NewGenerationUnavailableError(fmt.Errorf("status 503"), true))
		}
		exec := newFakeExecutor(handlers)

		run, err := New(exec, testOptions()).Generate(context.Background(), baseRequest())
		require.Error(t, err)
		assert.Equal(t, StateSummarizing, run.FailedStage)
		assert.True(t, run.Err.Retryable)
		assert.Equal(t, 2, exec.callCount(tools.SummarizeContent))
	})
}

func TestGenerate_TemplateError(t *testing.T) {
	handlers := happyPath(t)
	handlers[tools.GenerateEmailTemplate] = func(context.Context, map[string]interface{}, int) tools.ToolResult {
		return tools.Fail(apperrors.NewTemplateError("summary is required"))
	}

	run, err := New(newFakeExecutor(handlers), testOptions()).Generate(context.Background(), baseRequest())
	require.Error(t, err)
	assert.Equal(t, "Failed(BuildingTemplate)", run.Status())
	assert.Equal(t, string(apperrors.ErrCodeTemplateError), run.Err.Code)
	assert.Nil(t, run.Draft)
}

func TestGenerate_Cancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	handlers := happyPath(t)
	handlers[tools.FetchNews] = func(fctx context.Context, _ map[string]interface{}, _ int) tools.ToolResult {
		cancel()
		<-fctx.Done()
		return tools.Fail(apperrors.NewSourceUnavailableError("newsapi", fctx.Err(), false))
	}
	exec := newFakeExecutor(handlers)

	run, err := New(exec, testOptions()).Generate(ctx, baseRequest())
	require.Error(t, err)
	assert.Equal(t, StateAggregating, run.FailedStage)
	assert.Equal(t, string(apperrors.ErrCodeRunCancelled), run.Err.Code)
	assert.Contains(t, run.Err.Message, "run cancelled")
	assert.Zero(t, exec.callCount(tools.AggregateContent))
}

func TestGenerate_InvalidRequest(t *testing.T) {
	exec := newFakeExecutor(happyPath(t))

	run, err := New(exec, testOptions()).Generate(context.Background(), Request{UserEmail: "ann@example.com", Topics: []string{"  "}})
	require.Error(t, err)
	assert.Equal(t, "Failed(Idle)", run.Status())
	assert.Equal(t, string(apperrors.ErrCodeInvalidParameters), run.Err.Code)
	assert.Contains(t, run.Err.Message, "at least one topic")
	assert.NotEmpty(t, run.ID)
	assert.Zero(t, exec.callCount(tools.FetchNews))
}

func TestSelectSources(t *testing.T) {
	o := New(newFakeExecutor(nil), Options{})

	tests := []struct {
		name      string
		requested []string
		want      []string
	}{
		{"empty means every source", nil, models.AllSources},
		{"auto means every source", []string{"AUTO"}, models.AllSources},
		{"aliases and dedupe", []string{"yahoo_finance", "stocks", "Hacker_News"}, []string{models.SourceStocks, models.SourceHackerNews}},
		{"unknown names skipped", []string{"rss", "weather"}, []string{models.SourceRSS}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, o.selectSources(tt.requested))
		})
	}
}

type mockRecorder struct {
	mock.Mock
}

func (m *mockRecorder) RecordRun(ctx context.Context, status string, duration time.Duration) {
	m.Called(ctx, status, duration)
}

func TestGenerate_RecordsRuns(t *testing.T) {
	t.Run("done", func(t *testing.T) {
		rec := &mockRecorder{}
		rec.On("RecordRun", mock.Anything, "Done", mock.AnythingOfType("time.Duration")).Once()

		o := New(newFakeExecutor(happyPath(t)), testOptions(), WithRecorder(rec))
		_, err := o.Generate(context.Background(), baseRequest())
		require.NoError(t, err)
		rec.AssertExpectations(t)
	})

	t.Run("failed", func(t *testing.T) {
		handlers := happyPath(t)
		handlers[tools.SummarizeContent] = func(context.Context, map[string]interface{}, int) tools.ToolResult {
			return tools.Fail(apperrors.NewGenerationUnavailableError(fmt.Errorf("quota"), false))
		}
		rec := &mockRecorder{}
		rec.On("RecordRun", mock.Anything, "Failed(Summarizing)", mock.AnythingOfType("time.Duration")).Once()

		o := New(newFakeExecutor(handlers), testOptions(), WithRecorder(rec))
		_, err := o.Generate(context.Background(), baseRequest())
		require.Error(t, err)
		rec.AssertExpectations(t)
	})
}
