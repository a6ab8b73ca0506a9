package main

import (
	"fmt"
	"text/tabwriter"

	"newsletter-agent/internal/tools"
	"newsletter-agent/pkg/registry"

	"github.com/spf13/cobra"
)

const defaultCatalogPath = "configs/tool-registry.json"

func catalogCMD() *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect and edit the tool catalog",
	}
	cmd.PersistentFlags().StringVar(&path, "path", defaultCatalogPath, "path to the catalog file")

	validate := &cobra.Command{
		Use:   "validate",
		Short: "Validate the catalog and check it covers every built-in tool",
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := registry.LoadCatalog(path)
			if err != nil {
				return fmt.Errorf("failed to load catalog: %w", err)
			}
			if err := cat.Validate(); err != nil {
				return err
			}
			for _, id := range tools.KnownTools {
				if _, ok := cat.Find(string(id)); !ok {
					fmt.Fprintf(cmd.ErrOrStderr(), "warning: tool %s has no catalog entry\n", id)
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Catalog validation passed. Found %d tools.\n", len(cat.Tools))
			return nil
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List catalog entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := registry.LoadCatalog(path)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tCATEGORY\tVERSION\tTIMEOUT\tRETRIES\tCACHEABLE")
			for _, spec := range cat.Tools {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%t\n", spec.ID, spec.Category, spec.Version, spec.Timeout, spec.Retries, spec.Cacheable)
			}
			return w.Flush()
		},
	}

	var spec registry.ToolSpec
	add := &cobra.Command{
		Use:   "add",
		Short: "Add a tool entry",
		RunE: func(cmd *cobra.Command, args []string) error {
			if spec.ID == "" || spec.DisplayName == "" || spec.Category == "" {
				return fmt.Errorf("id, display-name and category are required")
			}
			cat, err := registry.LoadCatalog(path)
			if err != nil {
				return fmt.Errorf("failed to load catalog: %w", err)
			}
			if err := cat.Add(spec); err != nil {
				return err
			}
			if err := cat.Validate(); err != nil {
				return err
			}
			if err := registry.SaveCatalog(cat, path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added tool: %s\n", spec.ID)
			return nil
		},
	}
	add.Flags().StringVar(&spec.ID, "id", "", "tool id (e.g. fetch_reddit)")
	add.Flags().StringVar(&spec.DisplayName, "display-name", "", "display name")
	add.Flags().StringVar(&spec.Description, "description", "", "description")
	add.Flags().StringVar(&spec.Category, "category", "", "sources, content or delivery")
	add.Flags().StringVar(&spec.Version, "version", "1.0.0", "version")
	add.Flags().StringVar(&spec.Timeout, "timeout", "10s", "execution timeout")
	add.Flags().IntVar(&spec.Retries, "retries", 0, "retries")
	add.Flags().BoolVar(&spec.Cacheable, "cacheable", false, "cache successful results")

	update := &cobra.Command{
		Use:   "update <id> <field> <value>",
		Short: "Update one field of a tool entry",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := registry.LoadCatalog(path)
			if err != nil {
				return fmt.Errorf("failed to load catalog: %w", err)
			}
			if err := cat.Update(args[0], args[1], args[2]); err != nil {
				return err
			}
			if err := registry.SaveCatalog(cat, path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated tool %s, field %s to %s\n", args[0], args[1], args[2])
			return nil
		},
	}

	cmd.AddCommand(validate, list, add, update)
	return cmd
}
