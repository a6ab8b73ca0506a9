package main

import (
	"bytes"
	"fmt"
	"go/format"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/template"

	"newsletter-agent/pkg/registry"

	"github.com/spf13/cobra"
)

const modulePath = "newsletter-agent"

// workerData feeds the scaffold templates.
type workerData struct {
	Module      string
	ID          string
	Name        string
	PackageName string
	TaskType    string
	Fields      []field
}

type field struct {
	Name     string
	GoType   string
	JSONName string
	Required bool
	Comment  string
}

func scaffoldCMD() *cobra.Command {
	var catalogPath string
	var outputDir string
	var force bool

	cmd := &cobra.Command{
		Use:   "scaffold <tool_id>",
		Short: "Generate a worker package for a catalog entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := registry.LoadCatalog(catalogPath)
			if err != nil {
				return fmt.Errorf("failed to load catalog: %w", err)
			}
			spec, ok := cat.Find(args[0])
			if !ok {
				return fmt.Errorf("tool %q not found in %s", args[0], catalogPath)
			}

			files, err := renderScaffold(*spec)
			if err != nil {
				return err
			}

			dir := filepath.Join(outputDir, categoryDir(spec.Category), spec.TaskType)
			if _, err := os.Stat(dir); err == nil && !force {
				return fmt.Errorf("%s already exists, use --force to overwrite", dir)
			}
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return err
			}

			names := make([]string, 0, len(files))
			for name := range files {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				path := filepath.Join(dir, name)
				if err := os.WriteFile(path, files[name], 0o644); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "generated %s\n", path)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "\nNext steps:\n")
			fmt.Fprintf(cmd.OutOrStdout(), "  1. Add %q to tools.KnownTools\n", spec.ID)
			fmt.Fprintf(cmd.OutOrStdout(), "  2. Implement execute in %s\n", filepath.Join(dir, "handler.go"))
			fmt.Fprintf(cmd.OutOrStdout(), "  3. Append the handler to app.BuildTools\n")
			return nil
		},
	}
	cmd.Flags().StringVar(&catalogPath, "catalog", defaultCatalogPath, "path to the catalog file")
	cmd.Flags().StringVar(&outputDir, "output", "internal/workers", "workers root directory")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing package")
	return cmd
}

// renderScaffold returns gofmt-ed sources keyed by file name.
func renderScaffold(spec registry.ToolSpec) (map[string][]byte, error) {
	data := workerData{
		Module:      modulePath,
		ID:          spec.ID,
		Name:        spec.DisplayName,
		PackageName: strings.ReplaceAll(spec.TaskType, "-", ""),
		TaskType:    spec.TaskType,
		Fields:      schemaFields(spec.InputSchema),
	}
	if data.Name == "" {
		data.Name = spec.ID
	}

	templates := map[string]string{
		"config.go":       scaffoldConfig,
		"models.go":       scaffoldModels,
		"handler.go":      scaffoldHandler,
		"handler_test.go": scaffoldTest,
	}

	out := make(map[string][]byte, len(templates))
	for name, text := range templates {
		tmpl, err := template.New(name).Parse(text)
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		var buf bytes.Buffer
		if err := tmpl.Execute(&buf, data); err != nil {
			return nil, fmt.Errorf("render %s: %w", name, err)
		}
		src, err := format.Source(buf.Bytes())
		if err != nil {
			return nil, fmt.Errorf("format %s: %w", name, err)
		}
		out[name] = src
	}
	return out, nil
}

// schemaFields maps the top-level schema properties to struct fields, sorted
// by JSON name.
func schemaFields(schema map[string]interface{}) []field {
	props, _ := schema["properties"].(map[string]interface{})
	required := map[string]bool{}
	if list, ok := schema["required"].([]interface{}); ok {
		for _, r := range list {
			if name, ok := r.(string); ok {
				required[name] = true
			}
		}
	}

	fields := make([]field, 0, len(props))
	for name, raw := range props {
		prop, _ := raw.(map[string]interface{})
		desc, _ := prop["description"].(string)
		fields = append(fields, field{
			Name:     exportedName(name),
			GoType:   goType(prop),
			JSONName: name,
			Required: required[name],
			Comment:  desc,
		})
	}
	sort.Slice(fields, func(i, j int) bool { return fields[i].JSONName < fields[j].JSONName })
	return fields
}

func goType(prop map[string]interface{}) string {
	t := prop["type"]
	if list, ok := t.([]interface{}); ok && len(list) > 0 {
		t = list[0]
	}
	switch t {
	case "string":
		return "string"
	case "integer":
		return "int"
	case "number":
		return "float64"
	case "boolean":
		return "bool"
	case "object":
		return "map[string]interface{}"
	case "array":
		items, _ := prop["items"].(map[string]interface{})
		if items == nil {
			return "[]interface{}"
		}
		return "[]" + goType(items)
	default:
		return "interface{}"
	}
}

// exportedName turns userEmail or user_email into UserEmail.
func exportedName(name string) string {
	parts := strings.FieldsFunc(name, func(r rune) bool { return r == '_' || r == '-' })
	var b strings.Builder
	for _, p := range parts {
		b.WriteString(strings.ToUpper(p[:1]) + p[1:])
	}
	out := b.String()
	for _, initialism := range []string{"Id", "Url", "Html"} {
		if strings.HasSuffix(out, initialism) {
			out = strings.TrimSuffix(out, initialism) + strings.ToUpper(initialism)
		}
	}
	return out
}

func categoryDir(category string) string {
	switch category {
	case registry.CategorySources, registry.CategoryContent, registry.CategoryDelivery:
		return category
	case "":
		return "content"
	default:
		return strings.ToLower(category)
	}
}

const scaffoldConfig = `package {{ .PackageName }}

import (
	"time"

	"{{ .Module }}/internal/common/config"
)

type Config struct {
	Timeout time.Duration
}

func LoadConfig(cfg *config.Config) *Config {
	return &Config{
		Timeout: config.GetDuration(config.GetWorkerConfig(cfg, TaskType).Timeout),
	}
}
`

const scaffoldModels = `package {{ .PackageName }}

type Input struct {
{{- range .Fields }}
	{{ .Name }} {{ .GoType }} ` + "`json:\"{{ .JSONName }}{{ if not .Required }},omitempty{{ end }}\"`" + `{{ if .Comment }} // {{ .Comment }}{{ end }}
{{- end }}
}

type Output struct {
}
`

const scaffoldHandler = `package {{ .PackageName }}

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"{{ .Module }}/internal/common/camunda"
	apperrors "{{ .Module }}/internal/common/errors"
	"{{ .Module }}/internal/common/logger"
	"{{ .Module }}/internal/tools"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "{{ .TaskType }}"

type Handler struct {
	config *Config
	logger logger.Logger
}

func NewHandler(config *Config, log logger.Logger) *Handler {
	return &Handler{
		config: config,
		logger: log.With(map[string]interface{}{"taskType": TaskType}),
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	started := time.Now()
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		camunda.FailJob(client, job, apperrors.NewInvalidParametersError(TaskType, []string{err.Error()}), started, h.logger)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.Execute(ctx, &input)
	if err != nil {
		camunda.FailJob(client, job, err, started, h.logger)
		return
	}

	camunda.CompleteJob(client, job, output, started, h.logger)
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return nil, apperrors.NewInternalError(fmt.Errorf("%s is not implemented", TaskType))
}

func (h *Handler) Tool() tools.Tool {
	return tools.Typed(tools.ToolID("{{ .ID }}"), h.Execute)
}
`

const scaffoldTest = `package {{ .PackageName }}

import (
	"context"
	"testing"

	"{{ .Module }}/internal/common/logger"

	"github.com/stretchr/testify/assert"
)

func TestHandler_Execute(t *testing.T) {
	h := NewHandler(&Config{}, logger.NewTestLogger(t))

	_, err := h.Execute(context.Background(), &Input{})

	assert.Error(t, err)
}
`
