package tools

import (
	"context"
	stderrors "errors"
	"fmt"
	"sort"
	"time"

	"newsletter-agent/internal/common/errors"
	"newsletter-agent/internal/common/logger"
	"newsletter-agent/internal/common/metrics"
	"newsletter-agent/internal/common/validation"
	"newsletter-agent/pkg/registry"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Descriptor is the public view of a registered tool.
type Descriptor struct {
	Name        string                 `json:"name"`
	DisplayName string                 `json:"displayName,omitempty"`
	Description string                 `json:"description,omitempty"`
	Category    string                 `json:"category,omitempty"`
	TaskType    string                 `json:"taskType"`
	InputSchema map[string]interface{} `json:"inputSchema,omitempty"`
}

// Registry dispatches tools by name. It is built once and never modified, so
// concurrent Execute calls need no locking.
type Registry struct {
	tools      map[ToolID]Tool
	specs      map[ToolID]registry.ToolSpec
	validators map[ToolID]*validation.Validator
	cache      ResultCache
	cacheTTL   time.Duration
	logger     logger.Logger
	tracer     trace.Tracer
}

type Option func(*Registry)

// WithCatalog attaches descriptions, parameter schemas, timeouts and
// cacheability from the tool catalog.
func WithCatalog(cat *registry.ToolCatalog) Option {
	return func(r *Registry) {
		if cat == nil {
			return
		}
		for _, spec := range cat.Tools {
			r.specs[ToolID(spec.ID)] = spec
		}
	}
}

// WithCache enables result caching for tools the catalog marks cacheable.
func WithCache(cache ResultCache, ttl time.Duration) Option {
	return func(r *Registry) {
		r.cache = cache
		r.cacheTTL = ttl
	}
}

func WithLogger(log logger.Logger) Option {
	return func(r *Registry) {
		r.logger = log
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(r *Registry) {
		r.tracer = tracer
	}
}

// NewRegistry builds the dispatch table. Unknown or duplicate ids and catalog
// schemas that do not compile are startup errors.
func NewRegistry(tools []Tool, opts ...Option) (*Registry, error) {
	r := &Registry{
		tools:      make(map[ToolID]Tool, len(tools)),
		specs:      make(map[ToolID]registry.ToolSpec),
		validators: make(map[ToolID]*validation.Validator),
		logger:     logger.NewNoOpLogger(),
		tracer:     otel.Tracer("newsletter-agent/tools"),
	}
	for _, opt := range opts {
		opt(r)
	}

	for _, tool := range tools {
		id := tool.ID()
		if !id.Valid() {
			return nil, fmt.Errorf("unknown tool id %q", id)
		}
		if _, dup := r.tools[id]; dup {
			return nil, fmt.Errorf("tool %q registered twice", id)
		}
		r.tools[id] = tool

		if spec, ok := r.specs[id]; ok && len(spec.InputSchema) > 0 {
			v, err := validation.NewValidator(spec.InputSchema)
			if err != nil {
				return nil, fmt.Errorf("tool %q: %w", id, err)
			}
			r.validators[id] = v
		}
	}

	return r, nil
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.tools[ToolID(name)]
	return ok
}

// List returns a descriptor per registered tool, sorted by name.
func (r *Registry) List() []Descriptor {
	out := make([]Descriptor, 0, len(r.tools))
	for id := range r.tools {
		spec := r.specs[id]
		out = append(out, Descriptor{
			Name:        string(id),
			DisplayName: spec.DisplayName,
			Description: spec.Description,
			Category:    spec.Category,
			TaskType:    id.TaskType(),
			InputSchema: spec.InputSchema,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Execute dispatches name with params. It never panics and never returns a Go
// error: every failure, including an unknown name, is a failed ToolResult.
func (r *Registry) Execute(ctx context.Context, name string, params map[string]interface{}) (result ToolResult) {
	id := ToolID(name)
	tool, ok := r.tools[id]
	if !ok {
		metrics.ToolExecutions.WithLabelValues("unknown", "not_found").Inc()
		r.logger.Warn("tool not found", map[string]interface{}{"tool": name})
		return Fail(errors.NewToolNotFoundError(name))
	}

	ctx, span := r.tracer.Start(ctx, "tool."+name, trace.WithAttributes(attribute.String("tool", name)))
	started := time.Now()

	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("tool panicked", map[string]interface{}{"tool": name, "panic": fmt.Sprint(rec)})
			result = Fail(errors.NewInternalError(fmt.Errorf("tool %s panicked: %v", name, rec)))
		}

		outcome := "success"
		if !result.Success {
			outcome = "failure"
			span.SetStatus(codes.Error, result.Error)
			span.SetAttributes(attribute.String("error.code", result.Code))
		}
		metrics.ToolExecutions.WithLabelValues(name, outcome).Inc()
		span.End()

		r.logger.Debug("tool executed", map[string]interface{}{
			"tool":     name,
			"success":  result.Success,
			"code":     result.Code,
			"duration": time.Since(started).String(),
		})
	}()

	if params == nil {
		params = map[string]interface{}{}
	}

	if v, ok := r.validators[id]; ok {
		res := v.Validate(params)
		if !res.Valid {
			return Fail(errors.NewInvalidParametersError(name, res.GetErrorMessages()))
		}
	}

	spec := r.specs[id]
	cacheKey := ""
	if r.cache != nil && spec.Cacheable {
		if key, err := CacheKey(id, params); err == nil {
			cacheKey = key
			if cached, ok := r.lookup(ctx, name, key); ok {
				return OK(cached)
			}
		}
	}

	if timeout := spec.TimeoutOr(0); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	data, err := tool.Invoke(ctx, params)
	if err != nil {
		var paramErr *ParamError
		if stderrors.As(err, &paramErr) {
			return Fail(errors.NewInvalidParametersError(name, []string{paramErr.Err.Error()}))
		}
		return Fail(err)
	}

	if cacheKey != "" {
		r.store(ctx, name, cacheKey, data)
	}
	return OK(data)
}

func (r *Registry) lookup(ctx context.Context, name, key string) (map[string]interface{}, bool) {
	raw, ok, err := r.cache.Get(ctx, key)
	if err != nil {
		r.logger.Warn("tool cache read failed", map[string]interface{}{"tool": name, "error": err.Error()})
		return nil, false
	}
	if !ok {
		return nil, false
	}

	var data map[string]interface{}
	if err := decodeCached(raw, &data); err != nil {
		return nil, false
	}
	metrics.ToolCacheHits.WithLabelValues(name).Inc()
	return data, true
}

func (r *Registry) store(ctx context.Context, name, key string, data map[string]interface{}) {
	raw, err := encodeCached(data)
	if err != nil {
		return
	}
	if err := r.cache.Set(ctx, key, raw, r.cacheTTL); err != nil {
		r.logger.Warn("tool cache write failed", map[string]interface{}{"tool": name, "error": err.Error()})
	}
}
