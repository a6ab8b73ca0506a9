package camunda

import (
	"context"
	"time"

	"newsletter-agent/internal/common/config"
	"newsletter-agent/internal/common/errors"
	"newsletter-agent/internal/common/logger"
	"newsletter-agent/internal/common/metrics"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
	"go.uber.org/zap"
)

// JobHandler is implemented by every worker package's Handler.
type JobHandler interface {
	Handle(client worker.JobClient, job entities.Job)
}

// CamundaWorker is one open job subscription.
type CamundaWorker struct {
	worker   worker.JobWorker
	logger   *zap.Logger
	taskType string
}

// NewWorker opens a subscription for taskType. Job durations and outcomes are
// recorded by the handler through CompleteJob and FailJob.
func NewWorker(client zbc.Client, taskType string, wcfg config.WorkerConfig, handler JobHandler, logger *zap.Logger) *CamundaWorker {
	jobWorker := client.NewJobWorker().
		JobType(taskType).
		Handler(handler.Handle).
		MaxJobsActive(wcfg.MaxJobsActive).
		Timeout(config.GetDuration(wcfg.Timeout)).
		Open()

	logger.Info("worker started",
		zap.String("taskType", taskType),
		zap.Int("maxJobsActive", wcfg.MaxJobsActive),
	)

	return &CamundaWorker{worker: jobWorker, logger: logger, taskType: taskType}
}

func (w *CamundaWorker) TaskType() string {
	return w.taskType
}

func (w *CamundaWorker) Stop() {
	w.logger.Info("stopping worker", zap.String("taskType", w.taskType))
	w.worker.Close()
	w.worker.AwaitClose()
}

// CompleteJob completes job with output as its variables.
func CompleteJob(client worker.JobClient, job entities.Job, output interface{}, started time.Time, log logger.Logger) {
	metrics.WorkerJobDuration.WithLabelValues(job.Type).Observe(time.Since(started).Seconds())

	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		log.Error("failed to create complete job command", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err.Error(),
		})
		return
	}

	if _, err := cmd.Send(context.Background()); err != nil {
		log.Error("failed to send complete job command", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err.Error(),
		})
		return
	}
	metrics.WorkerJobsCompleted.WithLabelValues(job.Type).Inc()
}

// FailJob reports err for job through the shared error handler, which decides
// between a retrying fail command and a thrown BPMN error.
func FailJob(client worker.JobClient, job entities.Job, err error, started time.Time, log logger.Logger) {
	metrics.WorkerJobDuration.WithLabelValues(job.Type).Observe(time.Since(started).Seconds())

	stdErr := errors.AsStandardError(err)
	metrics.WorkerJobsFailed.WithLabelValues(job.Type, string(stdErr.Code)).Inc()

	errors.NewErrorHandler(log).HandleJobError(context.Background(), client, job, stdErr)
}
