package main

import (
	"fmt"
	"log"
	"os"

	"triadbalance/internal"
	"triadbalance/internal/config"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "triad",
		Short:         "Dynamic structural balance analysis of region time series",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
				log.Printf("[WARN] failed to load .env: %v", err)
			}
		},
	}
	rootCmd.PersistentFlags().String("config", "", "YAML configuration file (environment overrides it)")

	rootCmd.AddCommand(
		newAnalyzeCmd(),
		newSurrogateCmd(),
		newServeCmd(),
	)
	return rootCmd
}

// loadConfig reads the --config file when given, otherwise defaults plus environment
func loadConfig(cmd *cobra.Command) (*config.Config, *internal.Logger, error) {
	path, _ := cmd.Flags().GetString("config")

	var cfg *config.Config
	var err error
	if path != "" {
		cfg, err = config.LoadFile(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, nil, err
	}
	return cfg, internal.NewLogger(internal.ParseLogLevel(cfg.LogLevel)), nil
}
