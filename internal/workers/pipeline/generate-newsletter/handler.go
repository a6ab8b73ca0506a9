package generatenewsletter

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"newsletter-agent/internal/common/camunda"
	apperrors "newsletter-agent/internal/common/errors"
	"newsletter-agent/internal/common/logger"
	"newsletter-agent/internal/pipeline"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "generate-newsletter"

// Generator runs the pipeline.
type Generator interface {
	Generate(ctx context.Context, req pipeline.Request) (*pipeline.Run, error)
}

type Handler struct {
	config    *Config
	generator Generator
	logger    logger.Logger
}

func NewHandler(config *Config, generator Generator, log logger.Logger) *Handler {
	if config.Timeout <= 0 {
		config.Timeout = defaultTimeout
	}
	return &Handler{
		config:    config,
		generator: generator,
		logger:    log.With(map[string]interface{}{"taskType": TaskType}),
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

	output, err := h.Execute(ctx, &input)
	if err != nil {
		camunda.FailJob(client, job, err, started, h.logger)
		return
	}

	camunda.CompleteJob(client, job, output, started, h.logger)
}

// Execute runs one pipeline. A failed run is returned as a StandardError
// carrying the failed stage in its metadata, so the process sees Failed(stage).
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	run, err := h.generator.Generate(ctx, pipeline.Request{
		RunID:      input.RunID,
		UserEmail:  input.UserEmail,
		UserName:   input.UserName,
		Topics:     input.Topics,
		Sources:    input.Sources,
		Symbols:    input.Symbols,
		Vocabulary: input.Vocabulary,
		Format:     input.Format,
	})
	if err != nil {
		var se *pipeline.StageError
		if errors.As(err, &se) {
			return nil, se.StandardError()
		}
		return nil, err
	}

	h.logger.Info("newsletter generated", map[string]interface{}{
		"runId":     run.ID,
		"userEmail": run.UserEmail,
		"newsCount": run.Draft.NewsCount,
	})
	return &Output{
		RunID:   run.ID,
		Status:  run.Status(),
		Draft:   run.Draft,
		Sources: run.Sources,
	}, nil
}
