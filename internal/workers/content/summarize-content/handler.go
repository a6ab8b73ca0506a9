package summarizecontent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"newsletter-agent/internal/common/camunda"
	apperrors "newsletter-agent/internal/common/errors"
	"newsletter-agent/internal/common/logger"
	"newsletter-agent/internal/tools"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	openai "github.com/sashabaranov/go-openai"
)

const (
	TaskType = "summarize-content"

	systemPrompt = "You are a newsletter editor. Write a short, engaging daily briefing for one reader " +
		"from the stories provided. Use only facts present in the stories. Group related stories, " +
		"mention sources by name and keep it under 300 words. Reply in plain text paragraphs without markup."
)

var (
	ErrAPIKeyMissing    = errors.New("LLM_API_KEY_MISSING")
	ErrNoRecords        = errors.New("LLM_NO_RECORDS")
	ErrCompletionFailed = errors.New("LLM_COMPLETION_FAILED")
	ErrEmptyCompletion  = errors.New("LLM_EMPTY_COMPLETION")
)

var (
	styleBlock = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	markupTag  = regexp.MustCompile(`<[^>]+>`)
	spaceRun   = regexp.MustCompile(`[ \t]+`)
	blankLines = regexp.MustCompile(`\n{3,}`)
)

// ChatClient is the slice of the OpenAI client the summarizer calls.
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

type Handler struct {
	config *Config
	client ChatClient
	logger logger.Logger
}

func NewHandler(config *Config, log logger.Logger) *Handler {
	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = strings.TrimRight(config.BaseURL, "/")
	}
	clientConfig.HTTPClient = &http.Client{Timeout: config.Timeout}

	return NewHandlerWithClient(config, openai.NewClientWithConfig(clientConfig), log)
}

func NewHandlerWithClient(config *Config, client ChatClient, log logger.Logger) *Handler {
	return &Handler{
		config: config,
		client: client,
		logger: log.With(map[string]interface{}{"taskType": TaskType}),
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	started := time.Now()
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		camunda.FailJob(client, job, apperrors.NewInvalidParametersError(TaskType, []string{err.Error()}), started, h.logger)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.execute(ctx, &input)
	if err != nil {
		camunda.FailJob(client, job, err, started, h.logger)
		return
	}

	camunda.CompleteJob(client, job, output, started, h.logger)
}

// Execute asks the model for a briefing over the records. It never makes up
// content: an error or an empty completion fails with GENERATION_UNAVAILABLE.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}

func (h *Handler) Tool() tools.Tool {
	return tools.Typed(tools.SummarizeContent, h.Execute)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if h.config.APIKey == "" {
		return nil, apperrors.NewGenerationUnavailableError(ErrAPIKeyMissing, false)
	}
	if len(input.Records) == 0 {
		return nil, apperrors.NewGenerationUnavailableError(ErrNoRecords, false)
	}

	prompt, used := h.buildPrompt(input)

	resp, err := h.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: h.config.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens:   h.config.MaxTokens,
		Temperature: float32(h.config.Temperature),
	})
	if err != nil {
		return nil, apperrors.NewGenerationUnavailableError(fmt.Errorf("%w: %w", ErrCompletionFailed, err), isRetryable(err))
	}

	var text string
	if len(resp.Choices) > 0 {
		text = cleanSummary(resp.Choices[0].Message.Content)
	}
	if text == "" {
		return nil, apperrors.NewGenerationUnavailableError(ErrEmptyCompletion, false)
	}

	h.logger.Info("summary generated", map[string]interface{}{
		"model":       resp.Model,
		"recordsUsed": used,
		"tokens":      resp.Usage.TotalTokens,
	})

	model := resp.Model
	if model == "" {
		model = h.config.Model
	}
	return &Output{
		Summary:     text,
		Model:       model,
		RecordsUsed: used,
		TokensUsed:  resp.Usage.TotalTokens,
	}, nil
}

// buildPrompt lists at most MaxRecords stories with their bodies truncated to
// MaxBodyChars.
func (h *Handler) buildPrompt(input *Input) (string, int) {
	records := input.Records
	if h.config.MaxRecords > 0 && len(records) > h.config.MaxRecords {
		records = records[:h.config.MaxRecords]
	}

	var parts []string
	if name := strings.TrimSpace(input.UserName); name != "" {
		parts = append(parts, fmt.Sprintf("Reader: %s", name))
	}
	if len(input.Topics) > 0 {
		parts = append(parts, fmt.Sprintf("Topics of interest: %s", strings.Join(input.Topics, ", ")))
	}

	parts = append(parts, "\nStories:")
	for i, r := range records {
		parts = append(parts, fmt.Sprintf("%d. %s (%s)", i+1, r.Title, r.DisplaySource()))
		if body := truncate(strings.TrimSpace(r.Summary), h.config.MaxBodyChars); body != "" {
			parts = append(parts, "   "+body)
		}
	}

	parts = append(parts, "\nWrite the briefing now.")
	return strings.Join(parts, "\n"), len(records)
}

func truncate(s string, max int) string {
	if max <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return strings.TrimSpace(string(runes[:max])) + "..."
}

// cleanSummary removes markup the model sometimes emits despite instructions.
func cleanSummary(s string) string {
	s = styleBlock.ReplaceAllString(s, "")
	s = markupTag.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = spaceRun.ReplaceAllString(s, " ")
	s = blankLines.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// isRetryable treats throttling, server errors and oversized prompts as worth
// another attempt with fewer records.
func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Code == "context_length_exceeded" {
			return true
		}
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= 500
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusTooManyRequests || reqErr.HTTPStatusCode >= 500
	}
	return true
}
