package registry

// ToolCatalog is the on-disk description of every dispatchable tool.
type ToolCatalog struct {
	Version     string     `json:"version"`
	LastUpdated string     `json:"lastUpdated"`
	Tools       []ToolSpec `json:"tools"`
}

type ToolSpec struct {
	ID           string                 `json:"id"`
	DisplayName  string                 `json:"displayName"`
	Description  string                 `json:"description"`
	Category     string                 `json:"category"`
	Version      string                 `json:"version"`
	TaskType     string                 `json:"taskType"`
	InputSchema  map[string]interface{} `json:"inputSchema"`
	OutputSchema map[string]interface{} `json:"outputSchema,omitempty"`
	ErrorCodes   []string               `json:"errorCodes"`
	Timeout      string                 `json:"timeout"`
	Retries      int                    `json:"retries"`
	Cacheable    bool                   `json:"cacheable"`
	Tags         []string               `json:"tags,omitempty"`
}

// Categories.
const (
	CategorySources  = "sources"
	CategoryContent  = "content"
	CategoryDelivery = "delivery"
)
