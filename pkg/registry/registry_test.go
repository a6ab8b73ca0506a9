package registry

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCatalog = `{
  "version": "1.0.0",
  "tools": [
    {
      "id": "fetch_news",
      "displayName": "Fetch News",
      "category": "sources",
      "taskType": "fetch-news",
      "timeout": "15s",
      "cacheable": true,
      "inputSchema": {
        "type": "object",
        "required": ["topics"],
        "properties": {"topics": {"type": "array", "items": {"type": "string"}}}
      }
    }
  ]
}`

func TestParseCatalog(t *testing.T) {
	cat, err := ParseCatalog([]byte(sampleCatalog))
	require.NoError(t, err)
	require.NoError(t, cat.Validate())

	spec, ok := cat.Find("fetch_news")
	require.True(t, ok)
	assert.True(t, spec.Cacheable)
	assert.Equal(t, 15*time.Second, spec.TimeoutOr(time.Second))

	_, ok = cat.Find("fetch_everything")
	assert.False(t, ok)
}

func TestValidate_Failures(t *testing.T) {
	tests := []struct {
		name    string
		catalog ToolCatalog
		wantErr string
	}{
		{"empty", ToolCatalog{}, "no tools"},
		{
			"duplicate",
			ToolCatalog{Tools: []ToolSpec{
				{ID: "analyze_trends", TaskType: "analyze-trends"},
				{ID: "analyze_trends", TaskType: "analyze-trends"},
			}},
			"duplicate tool id",
		},
		{
			"task type mismatch",
			ToolCatalog{Tools: []ToolSpec{{ID: "analyze_trends", TaskType: "trends"}}},
			"does not match id",
		},
		{
			"bad timeout",
			ToolCatalog{Tools: []ToolSpec{{ID: "analyze_trends", TaskType: "analyze-trends", Timeout: "soon"}}},
			"invalid timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.catalog.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSaveCatalog_RoundTrip(t *testing.T) {
	cat, err := ParseCatalog([]byte(sampleCatalog))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "tools.json")
	require.NoError(t, SaveCatalog(cat, path))

	_, err = os.Stat(path)
	require.NoError(t, err)

	loaded, err := LoadCatalog(path)
	require.NoError(t, err)
	assert.NotEmpty(t, loaded.LastUpdated)
	assert.Len(t, loaded.Tools, 1)
}

func TestShippedCatalogIsValid(t *testing.T) {
	cat, err := LoadCatalog(filepath.Join("..", "..", "configs", "tool-registry.json"))
	require.NoError(t, err)
	require.NoError(t, cat.Validate())
	assert.Len(t, cat.Tools, 9)
}

func TestAdd(t *testing.T) {
	cat, err := ParseCatalog([]byte(sampleCatalog))
	require.NoError(t, err)

	require.NoError(t, cat.Add(ToolSpec{ID: "fetch_weather", DisplayName: "Fetch Weather", Category: CategorySources}))

	spec, ok := cat.Find("fetch_weather")
	require.True(t, ok)
	assert.Equal(t, "fetch-weather", spec.TaskType)
	assert.Equal(t, "1.0.0", spec.Version)
	require.NoError(t, cat.Validate())

	assert.ErrorContains(t, cat.Add(ToolSpec{ID: "fetch_news"}), "already exists")
	assert.ErrorContains(t, cat.Add(ToolSpec{}), "id")
}

func TestUpdate(t *testing.T) {
	cat, err := ParseCatalog([]byte(sampleCatalog))
	require.NoError(t, err)

	require.NoError(t, cat.Update("fetch_news", "timeout", "30s"))
	require.NoError(t, cat.Update("fetch_news", "retries", "3"))
	require.NoError(t, cat.Update("fetch_news", "cacheable", "false"))
	require.NoError(t, cat.Update("fetch_news", "description", "Headlines from NewsAPI"))

	spec, _ := cat.Find("fetch_news")
	assert.Equal(t, 30*time.Second, spec.TimeoutOr(0))
	assert.Equal(t, 3, spec.Retries)
	assert.False(t, spec.Cacheable)
	assert.Equal(t, "Headlines from NewsAPI", spec.Description)

	tests := []struct {
		name, id, field, value, wantErr string
	}{
		{"unknown tool", "fetch_everything", "timeout", "1s", "not found"},
		{"unknown field", "fetch_news", "owner", "me", "unknown field"},
		{"bad timeout", "fetch_news", "timeout", "later", "invalid timeout"},
		{"negative retries", "fetch_news", "retries", "-1", "invalid retries"},
		{"bad bool", "fetch_news", "cacheable", "maybe", "invalid cacheable"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorContains(t, cat.Update(tt.id, tt.field, tt.value), tt.wantErr)
		})
	}
}
