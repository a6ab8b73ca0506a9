package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"
)

func LoadCatalog(path string) (*ToolCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseCatalog(data)
}

func ParseCatalog(data []byte) (*ToolCatalog, error) {
	var cat ToolCatalog
	if err := json.Unmarshal(data, &cat); err != nil {
		return nil, fmt.Errorf("parse tool catalog: %w", err)
	}
	return &cat, nil
}

func SaveCatalog(cat *ToolCatalog, path string) error {
	cat.LastUpdated = time.Now().UTC().Format(time.RFC3339)
	data, err := json.MarshalIndent(cat, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

// Find returns the spec for id.
func (c *ToolCatalog) Find(id string) (*ToolSpec, bool) {
	for i := range c.Tools {
		if c.Tools[i].ID == id {
			return &c.Tools[i], true
		}
	}
	return nil, false
}

// Validate checks ids are unique, task types follow the id, timeouts parse and
// every input schema compiles.
func (c *ToolCatalog) Validate() error {
	if len(c.Tools) == 0 {
		return fmt.Errorf("catalog contains no tools")
	}

	seen := make(map[string]bool, len(c.Tools))
	for _, spec := range c.Tools {
		if spec.ID == "" {
			return fmt.Errorf("tool missing required field: id")
		}
		if seen[spec.ID] {
			return fmt.Errorf("duplicate tool id: %s", spec.ID)
		}
		seen[spec.ID] = true

		if spec.TaskType != strings.ReplaceAll(spec.ID, "_", "-") {
			return fmt.Errorf("tool %s: taskType %q does not match id", spec.ID, spec.TaskType)
		}
		if spec.Timeout != "" {
			if _, err := time.ParseDuration(spec.Timeout); err != nil {
				return fmt.Errorf("tool %s: invalid timeout %q: %w", spec.ID, spec.Timeout, err)
			}
		}
		if spec.InputSchema != nil {
			if _, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(spec.InputSchema)); err != nil {
				return fmt.Errorf("tool %s: invalid input schema: %w", spec.ID, err)
			}
		}
	}
	return nil
}

// TimeoutOr parses the spec timeout, falling back to def.
func (s ToolSpec) TimeoutOr(def time.Duration) time.Duration {
	if d, err := time.ParseDuration(s.Timeout); err == nil && d > 0 {
		return d
	}
	return def
}

// Add appends spec. The task type defaults to the id with dashes.
func (c *ToolCatalog) Add(spec ToolSpec) error {
	if spec.ID == "" {
		return fmt.Errorf("tool missing required field: id")
	}
	if _, exists := c.Find(spec.ID); exists {
		return fmt.Errorf("tool with id %s already exists", spec.ID)
	}
	if spec.TaskType == "" {
		spec.TaskType = strings.ReplaceAll(spec.ID, "_", "-")
	}
	if spec.Version == "" {
		spec.Version = "1.0.0"
	}
	c.Tools = append(c.Tools, spec)
	return nil
}

// Update sets one scalar field of the tool with the given id.
func (c *ToolCatalog) Update(id, field, value string) error {
	spec, ok := c.Find(id)
	if !ok {
		return fmt.Errorf("tool with id %s not found", id)
	}

	switch field {
	case "displayName":
		spec.DisplayName = value
	case "description":
		spec.Description = value
	case "category":
		spec.Category = value
	case "version":
		spec.Version = value
	case "timeout":
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid timeout %q: %w", value, err)
		}
		spec.Timeout = value
	case "retries":
		retries, err := strconv.Atoi(value)
		if err != nil || retries < 0 {
			return fmt.Errorf("invalid retries value %q", value)
		}
		spec.Retries = retries
	case "cacheable":
		cacheable, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid cacheable value %q", value)
		}
		spec.Cacheable = cacheable
	default:
		return fmt.Errorf("unknown field: %s", field)
	}
	return nil
}
