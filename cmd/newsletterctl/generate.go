package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"newsletter-agent/internal/models"
	"newsletter-agent/internal/pipeline"

	"github.com/spf13/cobra"
)

func generateCMD() *cobra.Command {
	var (
		req    pipeline.Request
		outDir string
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Run the pipeline once and print the draft without sending it",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			reg, err := registryFor(cfg)
			if err != nil {
				return err
			}
			if len(req.Topics) == 0 {
				req.Topics = cfg.Pipeline.DefaultTopics
			}

			orchestrator := pipeline.New(reg, pipeline.OptionsFromConfig(cfg), pipeline.WithLogger(newLogger()))
			run, runErr := orchestrator.Generate(cmd.Context(), req)

			out := cmd.OutOrStdout()
			if asJSON {
				if err := printJSON(out, run); err != nil {
					return err
				}
				return runErr
			}

			for _, s := range run.Sources {
				state := fmt.Sprintf("%d records", s.Records)
				if s.Error != "" {
					state = "unavailable: " + s.Error
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "source %-12s %s\n", s.Source, state)
			}
			if runErr != nil {
				return fmt.Errorf("run %s: %s", run.Status(), runErr)
			}

			if outDir != "" {
				return writeDraft(cmd, outDir, run.Draft)
			}
			fmt.Fprintln(out, "Subject:", run.Draft.Subject)
			fmt.Fprintln(out)
			if run.Draft.TextBody != "" {
				fmt.Fprintln(out, run.Draft.TextBody)
			} else {
				fmt.Fprintln(out, run.Draft.HTMLBody)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&req.UserEmail, "email", "preview@example.com", "recipient the draft is addressed to")
	cmd.Flags().StringVar(&req.UserName, "name", "", "recipient name")
	cmd.Flags().StringSliceVarP(&req.Topics, "topics", "t", nil, "topics (default from config)")
	cmd.Flags().StringSliceVarP(&req.Sources, "sources", "s", nil, "sources: newsapi, stocks, rss, hackernews or auto")
	cmd.Flags().StringSliceVar(&req.Symbols, "symbols", nil, "ticker symbols for the stocks source")
	cmd.Flags().StringVarP(&req.Format, "format", "f", "", "html, plain-text or both")
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "write the draft bodies into this directory")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the whole run as JSON")
	return cmd
}

func writeDraft(cmd *cobra.Command, dir string, draft *models.NewsletterDraft) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	base := filepath.Join(dir, strings.ReplaceAll(draft.RunID, "/", "_"))
	if draft.HTMLBody != "" {
		if err := os.WriteFile(base+".html", []byte(draft.HTMLBody), 0o644); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), base+".html")
	}
	if draft.TextBody != "" {
		if err := os.WriteFile(base+".txt", []byte(draft.TextBody), 0o644); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), base+".txt")
	}
	return nil
}
