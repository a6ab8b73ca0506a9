package app

import (
	"fmt"

	"newsletter-agent/internal/common/camunda"
	"newsletter-agent/internal/common/config"
	"newsletter-agent/internal/common/logger"
	"newsletter-agent/internal/tools"
	ac "newsletter-agent/internal/workers/content/aggregate-content"
	at "newsletter-agent/internal/workers/content/analyze-trends"
	get "newsletter-agent/internal/workers/content/generate-email-template"
	sc "newsletter-agent/internal/workers/content/summarize-content"
	fhn "newsletter-agent/internal/workers/sources/fetch-hacker-news"
	fn "newsletter-agent/internal/workers/sources/fetch-news"
	frf "newsletter-agent/internal/workers/sources/fetch-rss-feeds"
	fsd "newsletter-agent/internal/workers/sources/fetch-stock-data"
	fw "newsletter-agent/internal/workers/sources/fetch-weather"
	"newsletter-agent/pkg/registry"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

// toolHandler is what every tool worker package's Handler offers: a Zeebe job
// handler and the same logic as a dispatchable tool.
type toolHandler interface {
	Handle(client worker.JobClient, job entities.Job)
	Tool() tools.Tool
}

// Job pairs a Zeebe task type with its handler.
type Job struct {
	TaskType string
	Handler  camunda.JobHandler
}

// Toolset is every tool handler built from one config.
type Toolset struct {
	handlers []toolHandler
}

// BuildTools constructs the handlers in dispatch order: sources first, then
// the content stages.
func BuildTools(cfg *config.Config, log logger.Logger) *Toolset {
	return &Toolset{handlers: []toolHandler{
		fn.NewHandler(fn.LoadConfig(cfg), log),
		fsd.NewHandler(fsd.LoadConfig(cfg), log),
		frf.NewHandler(frf.LoadConfig(cfg), log),
		fhn.NewHandler(fhn.LoadConfig(cfg), log),
		fw.NewHandler(fw.LoadConfig(cfg), log),
		ac.NewHandler(ac.LoadConfig(cfg), log),
		at.NewHandler(at.LoadConfig(cfg), log),
		sc.NewHandler(sc.LoadConfig(cfg), log),
		get.NewHandler(get.LoadConfig(cfg), log),
	}}
}

func (ts *Toolset) Tools() []tools.Tool {
	out := make([]tools.Tool, len(ts.handlers))
	for i, h := range ts.handlers {
		out[i] = h.Tool()
	}
	return out
}

// Jobs exposes each tool under its Zeebe task type.
func (ts *Toolset) Jobs() []Job {
	out := make([]Job, len(ts.handlers))
	for i, h := range ts.handlers {
		out[i] = Job{TaskType: h.Tool().ID().TaskType(), Handler: h}
	}
	return out
}

// Registry builds the dispatch table over the tools, attaching the catalog at
// cfg.Tools.CatalogPath when one is configured.
func (ts *Toolset) Registry(cfg *config.Config, opts ...tools.Option) (*tools.Registry, error) {
	if cfg.Tools.CatalogPath != "" {
		catalog, err := registry.LoadCatalog(cfg.Tools.CatalogPath)
		if err != nil {
			return nil, fmt.Errorf("load tool catalog: %w", err)
		}
		opts = append([]tools.Option{tools.WithCatalog(catalog)}, opts...)
	}
	reg, err := tools.NewRegistry(ts.Tools(), opts...)
	if err != nil {
		return nil, fmt.Errorf("build tool registry: %w", err)
	}
	return reg, nil
}
