package aggregatecontent

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

const TaskType = "aggregate-content"

const (
	msgNothingFetched  = "no sources returned data"
	msgNothingRelevant = "no records matched the requested topics"
)

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

// Execute dedupes and filters the fetched records. It fails with
// AGGREGATION_EMPTY when nothing is left.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}

func (h *Handler) Tool() tools.Tool {
	return tools.Typed(tools.AggregateContent, h.Execute)
}

func (h *Handler) execute(_ context.Context, input *Input) (*Output, error) {
	limit := input.MaxRecords
	if limit <= 0 {
		limit = h.config.MaxRecords
	}

	out := Aggregate(input.Results, input.Topics, h.config.TopicKeywords, limit)

	h.logger.Info("content aggregated", map[string]interface{}{
		"fetched":    out.TotalFetched,
		"kept":       len(out.Records),
		"duplicates": out.Duplicates,
		"irrelevant": out.Irrelevant,
		"sources":    out.Sources,
	})

	if len(out.Records) == 0 {
		if out.TotalFetched == 0 {
			return nil, apperrors.NewAggregationEmptyError(msgNothingFetched)
		}
		return nil, apperrors.NewAggregationEmptyError(msgNothingRelevant)
	}
	return out, nil
}
