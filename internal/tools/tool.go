package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
)

// ToolID is the closed set of dispatchable tools.
type ToolID string

const (
	FetchNews             ToolID = "fetch_news"
	FetchStockData        ToolID = "fetch_stock_data"
	FetchRSSFeeds         ToolID = "fetch_rss_feeds"
	FetchHackerNews       ToolID = "fetch_hacker_news"
	FetchWeather          ToolID = "fetch_weather"
	AggregateContent      ToolID = "aggregate_content"
	AnalyzeTrends         ToolID = "analyze_trends"
	SummarizeContent      ToolID = "summarize_content"
	GenerateEmailTemplate ToolID = "generate_email_template"
)

// KnownTools lists every ToolID in catalog order.
var KnownTools = []ToolID{
	FetchNews,
	FetchStockData,
	FetchRSSFeeds,
	FetchHackerNews,
	FetchWeather,
	AggregateContent,
	AnalyzeTrends,
	SummarizeContent,
	GenerateEmailTemplate,
}

func (id ToolID) Valid() bool {
	for _, known := range KnownTools {
		if id == known {
			return true
		}
	}
	return false
}

// TaskType is the Zeebe job type serving id.
func (id ToolID) TaskType() string {
	return strings.ReplaceAll(string(id), "_", "-")
}

// Tool is one named unit of work.
type Tool interface {
	ID() ToolID
	Invoke(ctx context.Context, params map[string]interface{}) (map[string]interface{}, error)
}

type typedTool[I any, O any] struct {
	id ToolID
	fn func(context.Context, *I) (*O, error)
}

// Typed binds fn to id. Parameters are decoded into I by their json tag names;
// the result is flattened into a map the same way encoding/json would.
func Typed[I any, O any](id ToolID, fn func(context.Context, *I) (*O, error)) Tool {
	return &typedTool[I, O]{id: id, fn: fn}
}

func (t *typedTool[I, O]) ID() ToolID { return t.id }

func (t *typedTool[I, O]) Invoke(ctx context.Context, params map[string]interface{}) (map[string]interface{}, error) {
	var input I
	if err := DecodeParams(params, &input); err != nil {
		return nil, err
	}

	out, err := t.fn(ctx, &input)
	if err != nil {
		return nil, err
	}
	return ToMap(out)
}

// DecodeParams decodes a loosely typed parameter map into out. Strings are
// accepted for numbers and booleans, RFC 3339 strings for time.Time.
func DecodeParams(params map[string]interface{}, out interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           out,
		DecodeHook:       mapstructure.StringToTimeHookFunc(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("build decoder: %w", err)
	}
	if err := decoder.Decode(params); err != nil {
		return &ParamError{Err: err}
	}
	return nil
}

// ParamError marks parameters that could not be bound to a tool's input.
type ParamError struct {
	Err error
}

func (e *ParamError) Error() string { return "decode parameters: " + e.Err.Error() }
func (e *ParamError) Unwrap() error { return e.Err }

// ToMap converts v into the generic map form carried in a ToolResult.
func ToMap(v interface{}) (map[string]interface{}, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	var out map[string]interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	return out, nil
}

// Decode converts a ToolResult payload back into a typed value.
func Decode(data map[string]interface{}, out interface{}) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}
