package analyzetrends

import (
	"context"
	"encoding/json"
	"time"

	"newsletter-agent/internal/common/camunda"
	apperrors "newsletter-agent/internal/common/errors"
	"newsletter-agent/internal/common/logger"
	"newsletter-agent/internal/tools"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "analyze-trends"

type Handler struct {
	config *Config
	logger logger.Logger
}

func NewHandler(config *Config, log logger.Logger) *Handler {
	return &Handler{
		config: config,
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

	output, err := h.execute(context.Background(), &input)
	if err != nil {
		camunda.FailJob(client, job, err, started, h.logger)
		return
	}

	camunda.CompleteJob(client, job, output, started, h.logger)
}

// Execute ranks the vocabulary by how many record titles mention each term.
// The input vocabulary and keywords override the configured ones.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}

func (h *Handler) Tool() tools.Tool {
	return tools.Typed(tools.AnalyzeTrends, h.Execute)
}

func (h *Handler) execute(_ context.Context, input *Input) (*Output, error) {
	vocabulary := input.Vocabulary
	if len(vocabulary) == 0 {
		vocabulary = h.config.Vocabulary
	}
	keywords := input.Keywords
	if len(keywords) == 0 {
		keywords = h.config.Keywords
	}
	limit := input.Limit
	if limit <= 0 {
		limit = h.config.Limit
	}

	summary := Extract(input.Records, vocabulary, keywords, limit)

	h.logger.Debug("trends extracted", map[string]interface{}{
		"records":  summary.RecordCount,
		"topics":   len(summary.Topics),
		"keywords": len(summary.Keywords),
	})
	return &Output{Trends: summary}, nil
}
