package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"newsletter-agent/internal/app"
	"newsletter-agent/internal/common/config"
	"newsletter-agent/internal/tools"

	"github.com/spf13/cobra"
)

func toolsCMD() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List or execute registered tools",
	}
	cmd.AddCommand(toolsListCMD(), toolsExecCMD())
	return cmd
}

func toolsListCMD() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered tools",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := localRegistry()
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tCATEGORY\tTASK TYPE\tDESCRIPTION")
			for _, d := range reg.List() {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", d.Name, d.Category, d.TaskType, d.Description)
			}
			return w.Flush()
		},
	}
}

func toolsExecCMD() *cobra.Command {
	var params string
	var paramsFile string
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "exec <tool_name>",
		Short: "Execute one tool and print its result envelope",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw := []byte(params)
			if paramsFile != "" {
				var err error
				if raw, err = readParams(paramsFile, cmd.InOrStdin()); err != nil {
					return err
				}
			}
			decoded := map[string]interface{}{}
			if len(raw) > 0 {
				if err := json.Unmarshal(raw, &decoded); err != nil {
					return fmt.Errorf("parameters must be a JSON object: %w", err)
				}
			}

			reg, err := localRegistry()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			res := reg.Execute(ctx, args[0], decoded)
			if err := printJSON(cmd.OutOrStdout(), res); err != nil {
				return err
			}
			if !res.Success {
				return fmt.Errorf("tool %s failed with %s", args[0], res.Code)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&params, "params", "p", "{}", "tool parameters as a JSON object")
	cmd.Flags().StringVarP(&paramsFile, "file", "f", "", "read parameters from a file, - for stdin")
	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "execution timeout")
	return cmd
}

// localRegistry builds the tools without Redis caching or Zeebe.
func localRegistry() (*tools.Registry, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return registryFor(cfg)
}

func registryFor(cfg *config.Config) (*tools.Registry, error) {
	log := newLogger()
	return app.BuildTools(cfg, log).Registry(cfg, tools.WithLogger(log))
}

func readParams(path string, stdin io.Reader) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(path)
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
