package generateemailtemplate

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

const TaskType = "generate-email-template"

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
	if input.GeneratedAt == nil {
		now := started.UTC()
		input.GeneratedAt = &now
	}

	output, err := h.execute(context.Background(), &input)
	if err != nil {
		camunda.FailJob(client, job, err, started, h.logger)
		return
	}

	camunda.CompleteJob(client, job, output, started, h.logger)
}

// Execute builds the newsletter draft. Missing required fields and render
// failures are reported as TEMPLATE_ERROR.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}

func (h *Handler) Tool() tools.Tool {
	return tools.Typed(tools.GenerateEmailTemplate, h.Execute)
}

func (h *Handler) execute(_ context.Context, input *Input) (*Output, error) {
	draft, err := h.Build(input)
	if err != nil {
		return nil, apperrors.NewTemplateError(err.Error())
	}

	h.logger.Info("newsletter built", map[string]interface{}{
		"runId":     draft.RunID,
		"format":    draft.Format,
		"newsCount": draft.NewsCount,
		"htmlBytes": len(draft.HTMLBody),
		"textBytes": len(draft.TextBody),
	})
	return &Output{Draft: *draft}, nil
}
