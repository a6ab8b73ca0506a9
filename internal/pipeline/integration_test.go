package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"newsletter-agent/internal/common/config"
	"newsletter-agent/internal/common/logger"
	"newsletter-agent/internal/models"
	"newsletter-agent/internal/tools"
	aggregatecontent "newsletter-agent/internal/workers/content/aggregate-content"
	analyzetrends "newsletter-agent/internal/workers/content/analyze-trends"
	generateemailtemplate "newsletter-agent/internal/workers/content/generate-email-template"
	summarizecontent "newsletter-agent/internal/workers/content/summarize-content"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedChat struct {
	content string
	calls   int
}

func (s *scriptedChat) CreateChatCompletion(context.Context, openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	s.calls++
	return openai.ChatCompletionResponse{
		Model: "gpt-4o-mini",
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: s.content}},
		},
	}, nil
}

type fetchFunc func(context.Context, *fetchParams) (*fetchResult, error)

// newTestRegistry wires the real content stages behind stub fetchers and a
// scripted chat client.
func newTestRegistry(t *testing.T, chat *scriptedChat, fetchers map[tools.ToolID]fetchFunc) *tools.Registry {
	t.Helper()
	log := logger.NewNoOpLogger()

	all := []tools.Tool{
		aggregatecontent.NewHandler(&aggregatecontent.Config{
			MaxRecords:    20,
			TopicKeywords: config.DefaultTopicKeywords,
			Timeout:       time.Second,
		}, log).Tool(),
		analyzetrends.NewHandler(&analyzetrends.Config{
			Vocabulary: config.DefaultVocabulary,
			Keywords:   config.DefaultTrendKeywords,
			Limit:      analyzetrends.DefaultLimit,
		}, log).Tool(),
		summarizecontent.NewHandlerWithClient(&summarizecontent.Config{
			APIKey:       "test-key",
			Model:        "gpt-4o-mini",
			MaxTokens:    500,
			MaxRecords:   10,
			MaxBodyChars: 300,
			Timeout:      time.Second,
		}, chat, log).Tool(),
		generateemailtemplate.NewHandler(&generateemailtemplate.Config{
			DefaultFormat: models.FormatBoth,
			TopStories:    8,
			SummaryChars:  200,
			AppName:       "Newsletter Agent",
		}, log).Tool(),
	}
	for id, fn := range fetchers {
		all = append(all, tools.Typed(id, fn))
	}

	reg, err := tools.NewRegistry(all, tools.WithLogger(log))
	require.NoError(t, err)
	return reg
}

func stories(source string, titles ...string) fetchFunc {
	return func(context.Context, *fetchParams) (*fetchResult, error) {
		out := &fetchResult{Source: source}
		for _, title := range titles {
			url := "https://" + source + ".example.com/" + strings.ReplaceAll(strings.ToLower(title), " ", "-")
			out.Records = append(out.Records, models.Record{
				ID:     models.RecordID(source, url, title),
				Title:  title,
				Source: source,
				URL:    url,
				Topics: []string{"technology"},
			})
		}
		return out, nil
	}
}

func unavailable(context.Context, *fetchParams) (*fetchResult, error) {
	return nil, errors.New("connection refused")
}

func TestPipeline_EndToEnd(t *testing.T) {
	chat := &scriptedChat{content: "Chips and models dominated the day."}
	reg := newTestRegistry(t, chat, map[tools.ToolID]fetchFunc{
		tools.FetchNews:     stories(models.SourceNewsAPI, "Technology stocks rally on AI chips", "Startup funds new technology lab"),
		tools.FetchRSSFeeds: stories(models.SourceRSS, "technology stocks rally on AI chips", "Finance teams adopt technology"),
	})

	o := New(reg, testOptions())
	req := Request{UserEmail: "ann@example.com", UserName: "Ann", Topics: []string{"technology", "finance"}}
	run, err := o.Generate(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, run.Draft)

	draft := run.Draft
	assert.Equal(t, run.ID, draft.RunID)
	assert.Equal(t, 3, draft.NewsCount, "the repeated headline is merged")
	assert.Contains(t, draft.Subject, "technology")
	assert.Contains(t, draft.HTMLBody, "Chips and models dominated the day.")
	for _, topic := range req.Topics {
		assert.Contains(t, draft.TextBody, topic)
	}

	require.NotNil(t, run.Trends)
	require.NotEmpty(t, run.Trends.Topics)
	assert.Equal(t, "technology", run.Trends.Topics[0].Topic)
	assert.Equal(t, 3, run.Trends.Topics[0].Count)
	assert.Equal(t, 1, chat.calls)
}

func TestPipeline_AllSourcesDown(t *testing.T) {
	chat := &scriptedChat{content: "never used"}
	reg := newTestRegistry(t, chat, map[tools.ToolID]fetchFunc{
		tools.FetchNews:     unavailable,
		tools.FetchRSSFeeds: unavailable,
	})

	run, err := New(reg, testOptions()).Generate(context.Background(), baseRequest())
	require.Error(t, err)
	assert.Equal(t, "Failed(Aggregating)", run.Status())
	assert.Equal(t, "no sources returned data", run.Err.Message)
	assert.Nil(t, run.Draft)
	assert.Zero(t, chat.calls)
}

func TestPipeline_EmptySummary(t *testing.T) {
	chat := &scriptedChat{content: "   "}
	reg := newTestRegistry(t, chat, map[tools.ToolID]fetchFunc{
		tools.FetchNews:     stories(models.SourceNewsAPI, "Technology stocks rally"),
		tools.FetchRSSFeeds: stories(models.SourceRSS, "New technology standard"),
	})

	run, err := New(reg, testOptions()).Generate(context.Background(), baseRequest())
	require.Error(t, err)
	assert.Equal(t, "Failed(Summarizing)", run.Status())
	assert.Nil(t, run.Draft)
	assert.Equal(t, 1, chat.calls, "an empty completion is not retryable")
}
