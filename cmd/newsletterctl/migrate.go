package main

import (
	"fmt"

	"newsletter-agent/internal/common/database"

	"github.com/spf13/cobra"
)

func migrateCMD() *cobra.Command {
	var dir string
	var direction string
	var steps int

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			if direction != "up" && direction != "down" {
				return fmt.Errorf("direction must be up or down, got %q", direction)
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			pg := cfg.Database.Postgres
			if dir != "" {
				pg.MigrationsPath = dir
			}
			if err := database.Migrate(pg, direction, steps); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "migrations %s applied\n", direction)
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "migrations source (default from config, file://migrations)")
	cmd.Flags().StringVar(&direction, "direction", "up", "up or down")
	cmd.Flags().IntVar(&steps, "steps", 0, "number of steps (0 = all)")
	return cmd
}
