// Package app assembles the newsletter service from configuration and
// connected clients. The worker manager and the CLI both build on it.
package app

import (
	"context"
	"fmt"

	"newsletter-agent/internal/api"
	awsclient "newsletter-agent/internal/common/aws"
	"newsletter-agent/internal/common/camunda"
	"newsletter-agent/internal/common/config"
	"newsletter-agent/internal/common/database"
	"newsletter-agent/internal/common/logger"
	"newsletter-agent/internal/newsletter"
	"newsletter-agent/internal/pipeline"
	"newsletter-agent/internal/repository"
	"newsletter-agent/internal/tools"
	sendnewsletter "newsletter-agent/internal/workers/delivery/send-newsletter"
	generatenewsletter "newsletter-agent/internal/workers/pipeline/generate-newsletter"

	"go.opentelemetry.io/otel/trace"
)

const toolCachePrefix = "newsletter:tools:"

// Deps are the connected clients. Everything but Postgres is optional.
type Deps struct {
	Postgres      *database.PostgresClient
	Redis         *database.RedisClient
	Elasticsearch *database.ElasticsearchClient
	Zeebe         *camunda.Client
	Tracer        trace.Tracer
	Recorder      pipeline.Recorder
}

type App struct {
	Config       *config.Config
	Tools        *tools.Registry
	Orchestrator *pipeline.Orchestrator
	Sender       *sendnewsletter.Handler
	Newsletters  *newsletter.Service
	Jobs         []Job
	Checks       map[string]api.Check
}

func New(ctx context.Context, cfg *config.Config, deps Deps, log logger.Logger) (*App, error) {
	if deps.Postgres == nil {
		return nil, fmt.Errorf("postgres client is required")
	}

	toolset := BuildTools(cfg, log)
	registryOpts := []tools.Option{tools.WithLogger(log)}
	if deps.Redis != nil && cfg.Tools.CacheTTL > 0 {
		cache := repository.NewFetchCache(deps.Redis.Client, toolCachePrefix)
		registryOpts = append(registryOpts, tools.WithCache(cache, config.GetDuration(cfg.Tools.CacheTTL)))
	}
	if deps.Tracer != nil {
		registryOpts = append(registryOpts, tools.WithTracer(deps.Tracer))
	}
	reg, err := toolset.Registry(cfg, registryOpts...)
	if err != nil {
		return nil, err
	}

	pipelineOpts := []pipeline.Option{pipeline.WithLogger(log)}
	if deps.Tracer != nil {
		pipelineOpts = append(pipelineOpts, pipeline.WithTracer(deps.Tracer))
	}
	if deps.Recorder != nil {
		pipelineOpts = append(pipelineOpts, pipeline.WithRecorder(deps.Recorder))
	}
	if sns := cfg.Delivery.AWS.SNS; sns.Enabled && sns.AlertTopicARN != "" {
		client, err := awsclient.NewSNSClient(ctx, cfg.Delivery.AWS.Region)
		if err != nil {
			return nil, fmt.Errorf("sns client: %w", err)
		}
		pipelineOpts = append(pipelineOpts, pipeline.WithAlerter(pipeline.NewSNSAlerter(client, sns.AlertTopicARN)))
	}
	orchestrator := pipeline.New(reg, pipeline.OptionsFromConfig(cfg), pipelineOpts...)

	sender, err := sendnewsletter.NewHandler(ctx, sendnewsletter.LoadConfig(cfg), log)
	if err != nil {
		return nil, fmt.Errorf("delivery: %w", err)
	}

	var archive newsletter.Archiver
	if deps.Elasticsearch != nil {
		archive = repository.NewArchive(deps.Elasticsearch.Client, cfg.Database.Elasticsearch.ArchiveIndex)
	}
	service := newsletter.NewService(
		newsletter.LoadConfig(cfg),
		repository.NewUserStore(deps.Postgres.DB),
		repository.NewNewsletterStore(deps.Postgres.DB),
		archive,
		orchestrator,
		sender,
		log,
	)

	jobs := toolset.Jobs()
	jobs = append(jobs,
		Job{TaskType: generatenewsletter.TaskType, Handler: generatenewsletter.NewHandler(generatenewsletter.LoadConfig(cfg), orchestrator, log)},
		Job{TaskType: sendnewsletter.TaskType, Handler: sender},
	)

	return &App{
		Config:       cfg,
		Tools:        reg,
		Orchestrator: orchestrator,
		Sender:       sender,
		Newsletters:  service,
		Jobs:         jobs,
		Checks:       checks(deps),
	}, nil
}

func checks(deps Deps) map[string]api.Check {
	out := map[string]api.Check{
		"postgres": deps.Postgres.Ping,
	}
	if deps.Redis != nil {
		out["redis"] = deps.Redis.Ping
	}
	if deps.Elasticsearch != nil {
		out["elasticsearch"] = deps.Elasticsearch.Ping
	}
	if deps.Zeebe != nil {
		out["zeebe"] = deps.Zeebe.HealthCheck
	}
	return out
}

// Server builds the HTTP API over the assembled service.
func (a *App) Server(log logger.Logger) *api.Server {
	return api.New(api.Config{
		AppName: a.Config.App.Name,
		Version: a.Config.App.Version,
	}, a.Newsletters, a.Tools, a.Checks, log)
}
