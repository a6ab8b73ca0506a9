package pipeline

import (
	"context"
	"errors"
	"strings"
	"time"

	"newsletter-agent/internal/common/config"
	apperrors "newsletter-agent/internal/common/errors"
	"newsletter-agent/internal/common/logger"
	"newsletter-agent/internal/common/metrics"
	"newsletter-agent/internal/common/topics"
	"newsletter-agent/internal/models"
	"newsletter-agent/internal/tools"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// Executor dispatches a tool by name. *tools.Registry implements it.
type Executor interface {
	Execute(ctx context.Context, name string, params map[string]interface{}) tools.ToolResult
}

// SourceAuto selects the configured default sources.
const SourceAuto = "auto"

var sourceTools = map[string]tools.ToolID{
	models.SourceNewsAPI:    tools.FetchNews,
	models.SourceStocks:     tools.FetchStockData,
	models.SourceRSS:        tools.FetchRSSFeeds,
	models.SourceHackerNews: tools.FetchHackerNews,
}

type Options struct {
	FetcherTimeout time.Duration
	FetcherRetries int
	MaxRecords     int
	Vocabulary     []string
	Keywords       []string
	DefaultSources []string
	DefaultFormat  string
}

func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		FetcherTimeout: config.GetDuration(cfg.Pipeline.FetcherTimeout),
		FetcherRetries: cfg.Pipeline.FetcherRetries,
		MaxRecords:     cfg.Pipeline.MaxRecords,
		Vocabulary:     cfg.Pipeline.Vocabulary,
		Keywords:       cfg.Pipeline.Keywords,
		DefaultSources: cfg.Pipeline.DefaultSources,
		DefaultFormat:  cfg.Pipeline.DefaultFormat,
	}
}

// Request describes one run. Empty optional fields fall back to Options.
type Request struct {
	RunID      string   `json:"runId,omitempty"`
	UserEmail  string   `json:"userEmail"`
	UserName   string   `json:"userName,omitempty"`
	Topics     []string `json:"topics"`
	Sources    []string `json:"sources,omitempty"`
	Symbols    []string `json:"symbols,omitempty"`
	Vocabulary []string `json:"vocabulary,omitempty"`
	Keywords   []string `json:"keywords,omitempty"`
	Format     string   `json:"format,omitempty"`
}

// Orchestrator runs the fixed stage sequence over a tool executor. It holds no
// per-run state, so one instance serves concurrent runs.
type Orchestrator struct {
	tools    Executor
	opts     Options
	alerter  Alerter
	recorder Recorder
	logger   logger.Logger
	tracer   trace.Tracer
	now      func() time.Time
}

// Recorder receives the outcome and duration of every finished run.
type Recorder interface {
	RecordRun(ctx context.Context, status string, duration time.Duration)
}

type Option func(*Orchestrator)

func WithAlerter(a Alerter) Option {
	return func(o *Orchestrator) { o.alerter = a }
}

func WithRecorder(r Recorder) Option {
	return func(o *Orchestrator) { o.recorder = r }
}

func WithLogger(log logger.Logger) Option {
	return func(o *Orchestrator) { o.logger = log }
}

func WithTracer(tracer trace.Tracer) Option {
	return func(o *Orchestrator) { o.tracer = tracer }
}

// WithClock fixes the time source, used for the generation timestamp.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

func New(exec Executor, opts Options, options ...Option) *Orchestrator {
	if opts.FetcherTimeout <= 0 {
		opts.FetcherTimeout = 15 * time.Second
	}
	if opts.FetcherRetries < 0 {
		opts.FetcherRetries = 0
	}
	o := &Orchestrator{
		tools:  exec,
		opts:   opts,
		logger: logger.NewNoOpLogger(),
		tracer: otel.Tracer("newsletter-agent/pipeline"),
		now:    time.Now,
	}
	for _, opt := range options {
		opt(o)
	}
	o.logger = o.logger.With(map[string]interface{}{"component": "pipeline"})
	return o
}

type stage struct {
	state State
	run   func(context.Context, *runContext) error
}

func (o *Orchestrator) stages() []stage {
	return []stage{
		{StateFetching, o.fetch},
		{StateAggregating, o.aggregate},
		{StateAnalyzingTrends, o.analyze},
		{StateSummarizing, o.summarize},
		{StateBuildingTemplate, o.build},
	}
}

// Generate runs every stage in order and returns the run. On failure the run is
// Failed(stage), carries no draft, and the returned error is its *StageError.
func (o *Orchestrator) Generate(ctx context.Context, req Request) (*Run, error) {
	req.Topics = topics.Normalize(req.Topics)
	req.UserEmail = strings.TrimSpace(req.UserEmail)
	if req.RunID == "" {
		req.RunID = uuid.NewString()
	}

	run := &Run{
		ID:          req.RunID,
		UserEmail:   req.UserEmail,
		Topics:      req.Topics,
		State:       StateIdle,
		Sources:     []SourceStatus{},
		Transitions: []Transition{},
		StartedAt:   o.now().UTC(),
	}
	log := o.logger.With(map[string]interface{}{"runId": run.ID, "userEmail": run.UserEmail})

	ctx, span := o.tracer.Start(ctx, "pipeline.generate", trace.WithAttributes(
		attribute.String("run.id", run.ID),
		attribute.StringSlice("run.topics", run.Topics),
	))
	defer span.End()

	if problems := validateRequest(req); len(problems) > 0 {
		return o.fail(ctx, span, log, run, StateIdle, apperrors.NewInvalidParametersError("generate_newsletter", problems))
	}

	rc := &runContext{req: req, run: run}
	for _, st := range o.stages() {
		if err := ctx.Err(); err != nil {
			return o.fail(ctx, span, log, run, st.state, apperrors.NewRunCancelledError(err))
		}
		o.transition(log, run, st.state)

		stageCtx, stageSpan := o.tracer.Start(ctx, "stage."+string(st.state))
		started := time.Now()
		err := st.run(stageCtx, rc)
		metrics.StageDuration.WithLabelValues(string(st.state)).Observe(time.Since(started).Seconds())
		if err != nil {
			stageSpan.SetStatus(codes.Error, err.Error())
			stageSpan.End()
			return o.fail(ctx, span, log, run, st.state, err)
		}
		stageSpan.End()
	}

	o.transition(log, run, StateDone)
	run.FinishedAt = o.now().UTC()
	metrics.PipelineRuns.WithLabelValues(string(StateDone), "").Inc()
	o.record(ctx, run)
	log.Info("newsletter generated", map[string]interface{}{
		"subject":   run.Draft.Subject,
		"newsCount": run.Draft.NewsCount,
		"duration":  run.FinishedAt.Sub(run.StartedAt).String(),
	})
	return run, nil
}

func validateRequest(req Request) []string {
	var problems []string
	if req.UserEmail == "" {
		problems = append(problems, "user email is required")
	}
	if len(req.Topics) == 0 {
		problems = append(problems, "at least one topic is required")
	}
	return problems
}

func (o *Orchestrator) transition(log logger.Logger, run *Run, to State) {
	run.Transitions = append(run.Transitions, Transition{From: run.State, To: to, At: o.now().UTC()})
	log.Debug("state transition", map[string]interface{}{"from": string(run.State), "to": string(to)})
	run.State = to
}

func (o *Orchestrator) fail(ctx context.Context, span trace.Span, log logger.Logger, run *Run, at State, err error) (*Run, error) {
	stdErr := apperrors.AsStandardError(err)
	se := &StageError{
		Stage:     at,
		Code:      string(stdErr.Code),
		Message:   stdErr.Describe(),
		Retryable: stdErr.Retryable,
	}

	o.transition(log, run, StateFailed)
	run.FailedStage = at
	run.Err = se
	run.Draft = nil
	run.FinishedAt = o.now().UTC()

	span.SetStatus(codes.Error, se.Error())
	span.SetAttributes(attribute.String("run.failed_stage", string(at)), attribute.String("error.code", se.Code))
	metrics.PipelineRuns.WithLabelValues(string(StateFailed), string(at)).Inc()
	o.record(ctx, run)
	log.Error("newsletter run failed", map[string]interface{}{
		"stage":     string(at),
		"errorCode": se.Code,
		"error":     se.Message,
	})

	if o.alerter != nil {
		if alertErr := o.alerter.Alert(context.WithoutCancel(ctx), run); alertErr != nil {
			log.Warn("failure alert not sent", map[string]interface{}{"error": alertErr.Error()})
		}
	}
	return run, se
}

func (o *Orchestrator) record(ctx context.Context, run *Run) {
	if o.recorder == nil {
		return
	}
	o.recorder.RecordRun(context.WithoutCancel(ctx), run.Status(), run.FinishedAt.Sub(run.StartedAt))
}

// selectSources resolves aliases and "auto". Unknown names are skipped.
func (o *Orchestrator) selectSources(requested []string) []string {
	if len(requested) == 0 || (len(requested) == 1 && strings.EqualFold(requested[0], SourceAuto)) {
		requested = o.opts.DefaultSources
		if len(requested) == 0 {
			requested = models.AllSources
		}
	}

	seen := make(map[string]bool, len(requested))
	out := make([]string, 0, len(requested))
	for _, name := range requested {
		name = strings.ToLower(strings.TrimSpace(name))
		if alias, ok := models.SourceAliases[name]; ok {
			name = alias
		}
		if _, ok := sourceTools[name]; !ok || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}

// fetch fans out to every selected source. Failures are recorded and absorbed.
func (o *Orchestrator) fetch(ctx context.Context, rc *runContext) error {
	sources := o.selectSources(rc.req.Sources)
	results := make([]*models.SourceResult, len(sources))
	statuses := make([]SourceStatus, len(sources))

	var g errgroup.Group
	for i, source := range sources {
		i, source := i, source
		g.Go(func() error {
			results[i], statuses[i] = o.fetchOne(ctx, source, rc.req)
			return nil
		})
	}
	_ = g.Wait()

	rc.results = make([]models.SourceResult, 0, len(sources))
	for _, res := range results {
		if res != nil {
			rc.results = append(rc.results, *res)
		}
	}
	rc.run.Sources = statuses
	return nil
}

func (o *Orchestrator) fetchOne(ctx context.Context, source string, req Request) (*models.SourceResult, SourceStatus) {
	id := sourceTools[source]
	status := SourceStatus{Source: source}

	p := fetchParams{Topics: req.Topics}
	if source == models.SourceStocks {
		p.Symbols = req.Symbols
	}
	params, err := tools.ToMap(p)
	if err != nil {
		status.Error = err.Error()
		return nil, status
	}

	for attempt := 1; ; attempt++ {
		status.Attempts = attempt

		fetchCtx, cancel := context.WithTimeout(ctx, o.opts.FetcherTimeout)
		res := o.tools.Execute(fetchCtx, string(id), params)
		cancel()

		if res.Success {
			var out fetchResult
			if err := tools.Decode(res.Data, &out); err != nil {
				status.Error = err.Error()
				status.Code = string(apperrors.ErrCodeSourceUnavailable)
				break
			}
			if out.Source == "" {
				out.Source = source
			}
			status.Records = len(out.Records)
			return &models.SourceResult{Source: out.Source, Records: out.Records}, status
		}

		status.Error = res.Error
		status.Code = res.Code
		if !res.Retryable || attempt > o.opts.FetcherRetries || ctx.Err() != nil {
			break
		}
		o.logger.Debug("retrying fetcher", map[string]interface{}{"source": source, "attempt": attempt, "error": res.Error})
	}

	metrics.SourceFailures.WithLabelValues(source).Inc()
	o.logger.Warn("source unavailable, continuing without it", map[string]interface{}{
		"source":   source,
		"attempts": status.Attempts,
		"error":    status.Error,
	})
	return nil, status
}

func (o *Orchestrator) aggregate(ctx context.Context, rc *runContext) error {
	var out aggregateResult
	if err := o.call(ctx, tools.AggregateContent, aggregateParams{
		Results:    rc.results,
		Topics:     rc.req.Topics,
		MaxRecords: o.opts.MaxRecords,
	}, &out); err != nil {
		return err
	}
	rc.records = out.Records
	return nil
}

func (o *Orchestrator) analyze(ctx context.Context, rc *runContext) error {
	p := trendParams{Records: rc.records, Vocabulary: rc.req.Vocabulary, Keywords: rc.req.Keywords}
	if len(p.Vocabulary) == 0 {
		p.Vocabulary = o.opts.Vocabulary
	}
	if len(p.Keywords) == 0 {
		p.Keywords = o.opts.Keywords
	}

	var out trendResult
	if err := o.call(ctx, tools.AnalyzeTrends, p, &out); err != nil {
		return err
	}
	rc.trends = out.Trends
	rc.run.Trends = &out.Trends
	return nil
}

// summarize retries once with half the records when the first failure is
// retryable.
func (o *Orchestrator) summarize(ctx context.Context, rc *runContext) error {
	p := summarizeParams{Records: rc.records, Topics: rc.req.Topics, UserName: rc.req.UserName}

	var out summarizeResult
	err := o.call(ctx, tools.SummarizeContent, p, &out)
	if err != nil && apperrors.IsRetryable(err) && len(p.Records) > 1 && ctx.Err() == nil {
		p.Records = p.Records[:len(p.Records)/2]
		o.logger.Warn("retrying summary with fewer records", map[string]interface{}{
			"records": len(p.Records),
			"error":   err.Error(),
		})
		err = o.call(ctx, tools.SummarizeContent, p, &out)
	}
	if err != nil {
		return err
	}
	rc.summary = out.Summary
	return nil
}

func (o *Orchestrator) build(ctx context.Context, rc *runContext) error {
	format := rc.req.Format
	if format == "" {
		format = o.opts.DefaultFormat
	}

	var out templateResult
	if err := o.call(ctx, tools.GenerateEmailTemplate, templateParams{
		RunID:       rc.run.ID,
		UserEmail:   rc.req.UserEmail,
		UserName:    rc.req.UserName,
		Topics:      rc.req.Topics,
		Summary:     rc.summary,
		Trends:      rc.trends,
		Records:     rc.records,
		Format:      format,
		GeneratedAt: o.now().UTC(),
	}, &out); err != nil {
		return err
	}

	draft := out.Draft
	if draft.RunID == "" {
		draft.RunID = rc.run.ID
	}
	rc.run.Draft = &draft
	return nil
}

// call dispatches one stage tool. A failed envelope comes back as its
// *StandardError.
func (o *Orchestrator) call(ctx context.Context, id tools.ToolID, params interface{}, out interface{}) error {
	p, err := tools.ToMap(params)
	if err != nil {
		return apperrors.NewInternalError(err)
	}

	res := o.tools.Execute(ctx, string(id), p)
	if !res.Success {
		return res.Err()
	}
	if err := tools.Decode(res.Data, out); err != nil {
		return apperrors.NewInternalError(errors.Join(errors.New("decode "+string(id)+" result"), err))
	}
	return nil
}
