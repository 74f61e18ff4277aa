package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/alejandroruanova/review-insights-service/internal/app"
	"github.com/alejandroruanova/review-insights-service/internal/pkg/config"
	"github.com/alejandroruanova/review-insights-service/internal/pkg/logger"
	"github.com/spf13/cobra"
)

var (
	jsonOutput bool

	cfg *config.Config
	log *slog.Logger
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:           "reviewctl",
	Short:         "Operate the review insights pipeline",
	Long:          `Administrative commands for migrating the schema, importing review exports, triggering fetches and draining the enrichment backlog.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load()
		if err != nil {
			return err
		}
		cfg = loaded
		log = logger.Initialize(cfg.Environment, cfg.LogLevel).With(slog.String("service", "reviewctl"))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Print results as JSON")

	rootCmd.AddCommand(migrateCmd, importCmd, formatsCmd, fetchCmd, drainCmd, analyzeCmd)
}

// withApp builds the application for one command and closes it afterwards
func withApp(fn func(a *app.App) error) error {
	a, err := app.New(cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

// printResult writes v as indented JSON, or as text when --json is off
func printResult(cmd *cobra.Command, text string, v interface{}) error {
	out := cmd.OutOrStdout()
	if !jsonOutput {
		_, err := fmt.Fprintln(out, text)
		return err
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
