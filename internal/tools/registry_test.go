package tools

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"newsletter-agent/internal/common/errors"
	"newsletter-agent/internal/common/logger"
	"newsletter-agent/pkg/registry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoInput struct {
	Topics []string `json:"topics"`
	Limit  int      `json:"limit,omitempty"`
}

type echoOutput struct {
	Topics []string `json:"topics"`
	Limit  int      `json:"limit"`
}

type memCache struct {
	mu    sync.Mutex
	items map[string][]byte
}

func newMemCache() *memCache { return &memCache{items: map[string][]byte{}} }

func (c *memCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.items[key]
	return v, ok, nil
}

func (c *memCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = value
	return nil
}

func testCatalog() *registry.ToolCatalog {
	return &registry.ToolCatalog{Tools: []registry.ToolSpec{
		{
			ID:        string(FetchNews),
			TaskType:  "fetch-news",
			Category:  registry.CategorySources,
			Cacheable: true,
			InputSchema: map[string]interface{}{
				"type":     "object",
				"required": []interface{}{"topics"},
				"properties": map[string]interface{}{
					"topics": map[string]interface{}{
						"type":     "array",
						"minItems": 1,
						"items":    map[string]interface{}{"type": "string"},
					},
				},
			},
		},
	}}
}

func echoTool(id ToolID, calls *int) Tool {
	return Typed(id, func(_ context.Context, in *echoInput) (*echoOutput, error) {
		if calls != nil {
			*calls++
		}
		return &echoOutput{Topics: in.Topics, Limit: in.Limit}, nil
	})
}

func TestExecute_UnknownTool(t *testing.T) {
	reg, err := NewRegistry(nil)
	require.NoError(t, err)

	for _, name := range []string{"fetch_everything", "", "FETCH_NEWS"} {
		result := reg.Execute(context.Background(), name, nil)
		assert.False(t, result.Success)
		assert.Nil(t, result.Data)
		assert.Equal(t, string(errors.ErrCodeToolNotFound), result.Code)
		assert.Contains(t, result.Error, "'"+name+"'")
	}
}

func TestExecute_TypedBinding(t *testing.T) {
	reg, err := NewRegistry([]Tool{echoTool(AnalyzeTrends, nil)}, WithLogger(logger.NewTestLogger(t)))
	require.NoError(t, err)

	result := reg.Execute(context.Background(), string(AnalyzeTrends), map[string]interface{}{
		"topics": []interface{}{"technology", "finance"},
		"limit":  "3",
	})
	require.True(t, result.Success, result.Error)

	var out echoOutput
	require.NoError(t, Decode(result.Data, &out))
	assert.Equal(t, []string{"technology", "finance"}, out.Topics)
	assert.Equal(t, 3, out.Limit)
}

func TestExecute_InvalidParameters(t *testing.T) {
	reg, err := NewRegistry([]Tool{echoTool(FetchNews, nil), echoTool(AnalyzeTrends, nil)}, WithCatalog(testCatalog()))
	require.NoError(t, err)

	t.Run("schema violation", func(t *testing.T) {
		result := reg.Execute(context.Background(), string(FetchNews), map[string]interface{}{"topics": []interface{}{}})
		assert.False(t, result.Success)
		assert.Equal(t, string(errors.ErrCodeInvalidParameters), result.Code)
		assert.Contains(t, result.Error, "fetch_news")
	})

	t.Run("undecodable value", func(t *testing.T) {
		result := reg.Execute(context.Background(), string(AnalyzeTrends), map[string]interface{}{"limit": "many"})
		assert.False(t, result.Success)
		assert.Equal(t, string(errors.ErrCodeInvalidParameters), result.Code)
	})
}

func TestExecute_ConvertsFailures(t *testing.T) {
	failing := Typed(FetchRSSFeeds, func(context.Context, *echoInput) (*echoOutput, error) {
		return nil, errors.NewSourceUnavailableError("rss", stderrors.New("status 503"), true)
	})
	plain := Typed(FetchHackerNews, func(context.Context, *echoInput) (*echoOutput, error) {
		return nil, stderrors.New("boom")
	})
	panicking := Typed(SummarizeContent, func(context.Context, *echoInput) (*echoOutput, error) {
		panic("nil map write")
	})

	reg, err := NewRegistry([]Tool{failing, plain, panicking})
	require.NoError(t, err)

	tests := []struct {
		tool      ToolID
		code      errors.ErrorCode
		retryable bool
		contains  string
	}{
		{FetchRSSFeeds, errors.ErrCodeSourceUnavailable, true, "status 503"},
		{FetchHackerNews, errors.ErrCodeInternal, false, "boom"},
		{SummarizeContent, errors.ErrCodeInternal, false, "panicked"},
	}

	for _, tt := range tests {
		t.Run(string(tt.tool), func(t *testing.T) {
			var result ToolResult
			assert.NotPanics(t, func() {
				result = reg.Execute(context.Background(), string(tt.tool), nil)
			})
			assert.False(t, result.Success)
			assert.Equal(t, string(tt.code), result.Code)
			assert.Equal(t, tt.retryable, result.Retryable)
			assert.Contains(t, result.Error, tt.contains)

			stdErr := result.Err()
			require.NotNil(t, stdErr)
			assert.Equal(t, tt.code, stdErr.Code)
		})
	}
}

func TestExecute_CachesCacheableTools(t *testing.T) {
	calls := 0
	cache := newMemCache()
	reg, err := NewRegistry(
		[]Tool{echoTool(FetchNews, &calls)},
		WithCatalog(testCatalog()),
		WithCache(cache, time.Minute),
	)
	require.NoError(t, err)

	params := map[string]interface{}{"topics": []interface{}{"science"}}
	first := reg.Execute(context.Background(), string(FetchNews), params)
	second := reg.Execute(context.Background(), string(FetchNews), params)

	require.True(t, first.Success)
	require.True(t, second.Success)
	assert.Equal(t, 1, calls)
	assert.Equal(t, first.Data, second.Data)
	assert.Len(t, cache.items, 1)
}

func TestNewRegistry_RejectsBadTables(t *testing.T) {
	_, err := NewRegistry([]Tool{echoTool("fetch_everything", nil)})
	assert.ErrorContains(t, err, "unknown tool id")

	_, err = NewRegistry([]Tool{echoTool(FetchNews, nil), echoTool(FetchNews, nil)})
	assert.ErrorContains(t, err, "registered twice")
}

func TestList(t *testing.T) {
	reg, err := NewRegistry([]Tool{echoTool(SummarizeContent, nil), echoTool(FetchNews, nil)}, WithCatalog(testCatalog()))
	require.NoError(t, err)

	list := reg.List()
	require.Len(t, list, 2)
	assert.Equal(t, "fetch_news", list[0].Name)
	assert.Equal(t, "fetch-news", list[0].TaskType)
	assert.Equal(t, registry.CategorySources, list[0].Category)
	assert.NotEmpty(t, list[0].InputSchema)
	assert.Equal(t, "summarize_content", list[1].Name)
}

func TestCacheKey_StableAcrossMapOrder(t *testing.T) {
	a, err := CacheKey(FetchNews, map[string]interface{}{"topics": []string{"a"}, "pageSize": 5})
	require.NoError(t, err)
	b, err := CacheKey(FetchNews, map[string]interface{}{"pageSize": 5, "topics": []string{"a"}})
	require.NoError(t, err)
	assert.Equal(t, a, b)

	c, err := CacheKey(FetchRSSFeeds, map[string]interface{}{"pageSize": 5, "topics": []string{"a"}})
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}
