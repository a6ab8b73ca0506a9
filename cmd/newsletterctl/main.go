// cmd/newsletterctl/main.go
package main

import (
	"fmt"
	"os"

	"newsletter-agent/internal/common/config"
	"newsletter-agent/internal/common/logger"

	"github.com/spf13/cobra"
)

var (
	cfgPath  string
	logLevel string
)

func main() {
	root := &cobra.Command{
		Use:           "newsletterctl",
		Short:         "Operate the newsletter agent: tools, catalog, migrations and dry runs",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default configs/config.yaml)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level")

	root.AddCommand(toolsCMD(), generateCMD(), catalogCMD(), scaffoldCMD(), migrateCMD())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	if cfgPath != "" {
		return config.LoadFromFile(cfgPath)
	}
	return config.Load()
}

func newLogger() logger.Logger {
	return logger.NewStructured(logLevel, "console", "stderr")
}
